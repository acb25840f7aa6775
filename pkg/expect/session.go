// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-sclogin.
//
// go-sclogin is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

// Package expect drives an interactive process attached to a pseudo-terminal
// and synchronizes with it through blocking pattern matches. Login prompts
// are asynchronous and their timing is host dependent (PAM module startup,
// smart card driver latency), so the only reliable way to script a login
// conversation is to block until an expected prompt appears or a deadline
// passes; fixed sleeps are flaky by construction.
package expect

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/creack/pty"
	"github.com/shirou/gopsutil/v3/process"
	"golang.org/x/sys/unix"
	"golang.org/x/time/rate"

	"github.com/jeremyhahn/go-sclogin/pkg/logging"
)

const (
	// DefaultTimeout bounds a single Expect call when no explicit timeout
	// is given.
	DefaultTimeout = 30 * time.Second

	// DefaultPollInterval bounds each terminal read so the expect loop can
	// observe context cancellation while blocked.
	DefaultPollInterval = 100 * time.Millisecond

	// DefaultSendInterval paces keystrokes so input never outruns PAM
	// prompt redraws.
	DefaultSendInterval = 50 * time.Millisecond

	// DefaultKillGrace is how long Close waits after SIGHUP before
	// escalating to SIGKILL.
	DefaultKillGrace = 2 * time.Second

	// pendingTailBytes is how much unconsumed output timeout and EOF
	// errors carry for diagnostics.
	pendingTailBytes = 256
)

// Options configures a spawned session. The zero value is usable; unset
// fields fall back to the package defaults.
type Options struct {
	// Timeout is the default deadline for Expect.
	Timeout time.Duration

	// PollInterval bounds individual terminal reads.
	PollInterval time.Duration

	// SendInterval is the minimum spacing between writes to the process.
	SendInterval time.Duration

	// Mirror receives a copy of all session I/O for post-hoc debugging.
	// Defaults to os.Stdout. The driver never reads it back.
	Mirror io.Writer

	// Logger receives driver diagnostics. Defaults to the package logger.
	Logger *logging.Logger

	// KillGrace is how long Close waits for the process to die after
	// SIGHUP before sending SIGKILL.
	KillGrace time.Duration
}

func (o *Options) normalized() *Options {
	out := Options{}
	if o != nil {
		out = *o
	}
	if out.Timeout <= 0 {
		out.Timeout = DefaultTimeout
	}
	if out.PollInterval <= 0 {
		out.PollInterval = DefaultPollInterval
	}
	if out.SendInterval <= 0 {
		out.SendInterval = DefaultSendInterval
	}
	if out.Mirror == nil {
		out.Mirror = os.Stdout
	}
	if out.Logger == nil {
		out.Logger = logging.DefaultLogger()
	}
	if out.KillGrace <= 0 {
		out.KillGrace = DefaultKillGrace
	}
	return &out
}

// Session is a live handle to a spawned interactive process. A Session is
// not safe for concurrent use; the harness runs strictly sequential steps
// and the internal mutex only guards against accidental overlap.
//
// A Session must be closed. Dropping the handle without Close leaks the
// PTY file descriptor and may leave the child process running.
type Session struct {
	mu         sync.Mutex
	term       terminal
	cmd        *exec.Cmd
	opts       *Options
	limiter    *rate.Limiter
	pending    bytes.Buffer
	transcript bytes.Buffer
	readBuf    []byte
	closed     bool

	waitOnce sync.Once
	waitDone chan struct{}
	waitErr  error
}

// Spawn starts name with the given arguments attached to a new
// pseudo-terminal, using default options. The child runs in its own session
// with the PTY as its controlling terminal, the same way agetty hands a
// terminal to login.
func Spawn(ctx context.Context, name string, arg ...string) (*Session, error) {
	return SpawnWithOptions(ctx, nil, name, arg...)
}

// SpawnWithOptions starts name with the given arguments attached to a new
// pseudo-terminal. It returns a SpawnError (matching ErrSpawn) if the
// process cannot be started.
func SpawnWithOptions(ctx context.Context, opts *Options, name string, arg ...string) (*Session, error) {
	o := opts.normalized()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cmd := exec.Command(name, arg...)
	// A dumb terminal keeps escape sequences out of the output stream so
	// literal prompt patterns match the bytes login actually writes.
	cmd.Env = append(os.Environ(), "TERM=dumb")

	f, err := pty.Start(cmd)
	if err != nil {
		return nil, &SpawnError{
			Command: strings.Join(append([]string{name}, arg...), " "),
			Err:     err,
		}
	}

	s := newSession(&ptyTerminal{f: f}, cmd, o)
	o.Logger.Debug("spawned interactive process",
		"command", name, "args", strings.Join(arg, " "), "pid", cmd.Process.Pid)
	return s, nil
}

func newSession(term terminal, cmd *exec.Cmd, o *Options) *Session {
	return &Session{
		term:     term,
		cmd:      cmd,
		opts:     o,
		limiter:  rate.NewLimiter(rate.Every(o.SendInterval), 1),
		readBuf:  make([]byte, 4096),
		waitDone: make(chan struct{}),
	}
}

// Expect blocks until p matches the unconsumed output of the session, using
// the session's default timeout. On success the stream is consumed through
// the end of the match.
func (s *Session) Expect(ctx context.Context, p Pattern) (*Match, error) {
	return s.ExpectWithTimeout(ctx, p, s.opts.Timeout)
}

// ExpectWithTimeout blocks until p matches the unconsumed output, the
// timeout elapses (ErrTimeout), the context is canceled, or the process
// closes its output before matching (ErrEOF). Already-buffered output gets
// a final match attempt before ErrEOF is returned.
func (s *Session) ExpectWithTimeout(ctx context.Context, p Pattern, timeout time.Duration) (*Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrClosed
	}

	start := time.Now()
	deadline := start.Add(timeout)

	for {
		if loc := p.Index(s.pending.Bytes()); loc != nil {
			before := string(s.pending.Next(loc[0]))
			text := string(s.pending.Next(loc[1] - loc[0]))
			s.opts.Logger.Debug("pattern matched",
				"pattern", p.String(), "waited", time.Since(start).String())
			return &Match{Text: text, Before: before}, nil
		}

		if err := ctx.Err(); err != nil {
			return nil, err
		}

		now := time.Now()
		if !now.Before(deadline) {
			return nil, &TimeoutError{
				Pattern: p.String(),
				Waited:  time.Since(start),
				Pending: tail(s.pending.Bytes()),
			}
		}

		next := now.Add(s.opts.PollInterval)
		if next.After(deadline) {
			next = deadline
		}
		_ = s.term.SetReadDeadline(next)

		n, err := s.term.Read(s.readBuf)
		if n > 0 {
			chunk := s.readBuf[:n]
			s.pending.Write(chunk)
			s.transcript.Write(chunk)
			_, _ = s.opts.Mirror.Write(chunk)
		}
		if err != nil {
			if os.IsTimeout(err) {
				continue
			}
			if isPTYEOF(err) {
				// One more pass over whatever was buffered before the
				// stream closed.
				if loc := p.Index(s.pending.Bytes()); loc != nil {
					continue
				}
				return nil, &EOFError{
					Pattern: p.String(),
					Pending: tail(s.pending.Bytes()),
				}
			}
			return nil, fmt.Errorf("expect: read: %w", err)
		}
	}
}

// SendLine writes text followed by a newline to the process input. The
// effect is observable only through subsequent Expect calls.
func (s *Session) SendLine(text string) error {
	return s.Send(text + "\n")
}

// Send writes text to the process input verbatim.
func (s *Session) Send(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	// Pace keystrokes; PAM conversation prompts are not instantaneous.
	_ = s.limiter.Wait(context.Background())

	if _, err := io.WriteString(s.term, text); err != nil {
		return fmt.Errorf("expect: send: %w", err)
	}
	s.transcript.WriteString(text)
	_, _ = io.WriteString(s.opts.Mirror, text)
	return nil
}

// Wait blocks until the process exits on its own, or the context is
// canceled. Scripted sessions without a real process return immediately.
func (s *Session) Wait(ctx context.Context) error {
	if s.cmd == nil {
		return nil
	}
	s.startWait()
	select {
	case <-s.waitDone:
		return s.waitErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Transcript returns everything read from and written to the session so
// far. It is the same byte stream the mirror sink received.
func (s *Session) Transcript() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transcript.String()
}

// Close terminates the session. If the process is still running it receives
// SIGHUP on its process group, then SIGKILL after a grace period, before
// the PTY is released. Close is idempotent.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if s.cmd != nil && s.cmd.Process != nil {
		s.startWait()
		select {
		case <-s.waitDone:
			// Already exited.
		default:
			pid := s.cmd.Process.Pid
			s.opts.Logger.Debug("terminating session process", "pid", pid)
			_ = unix.Kill(-pid, unix.SIGHUP)
			if !s.awaitExit(s.opts.KillGrace) {
				s.opts.Logger.Warn("process survived SIGHUP, sending SIGKILL", "pid", pid)
				_ = unix.Kill(-pid, unix.SIGKILL)
				s.awaitExit(s.opts.KillGrace)
			}
		}
	}

	return s.term.Close()
}

func (s *Session) startWait() {
	s.waitOnce.Do(func() {
		go func() {
			s.waitErr = s.cmd.Wait()
			close(s.waitDone)
		}()
	})
}

// awaitExit polls for process death until the grace period expires. The
// reaper goroutine is authoritative; gopsutil covers the window where the
// process is gone but not yet reaped.
func (s *Session) awaitExit(grace time.Duration) bool {
	deadline := time.Now().Add(grace)
	for {
		select {
		case <-s.waitDone:
			return true
		case <-time.After(20 * time.Millisecond):
		}
		if alive, err := process.PidExists(int32(s.cmd.Process.Pid)); err == nil && !alive {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
	}
}

// isPTYEOF reports whether err is how a Linux PTY master signals child
// exit: io.EOF, or EIO once the slave side has no more writers.
func isPTYEOF(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, unix.EIO)
}

func tail(b []byte) string {
	if len(b) > pendingTailBytes {
		b = b[len(b)-pendingTailBytes:]
	}
	return string(b)
}
