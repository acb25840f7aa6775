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

package scenario

import (
	"bytes"
	"context"
	"sync"
	"time"

	"github.com/jeremyhahn/go-sclogin/pkg/expect"
)

// ScriptedDriver is an in-memory Driver for hermetic tests. The whole
// expected conversation output is preloaded; Expect consumes it the same
// way the real driver consumes PTY output, and every send is recorded.
type ScriptedDriver struct {
	mu         sync.Mutex
	output     []byte
	sent       []string
	expectErrs map[string]error
	waitErr    error
	closed     bool
	transcript bytes.Buffer
}

// NewScriptedDriver creates a driver whose output stream is output.
func NewScriptedDriver(output string) *ScriptedDriver {
	d := &ScriptedDriver{
		output:     []byte(output),
		expectErrs: make(map[string]error),
	}
	d.transcript.WriteString(output)
	return d
}

// FailExpect makes Expect fail with err when called with a pattern whose
// String equals pattern.
func (d *ScriptedDriver) FailExpect(pattern string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.expectErrs[pattern] = err
}

// FailWait makes Wait return err.
func (d *ScriptedDriver) FailWait(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.waitErr = err
}

// Sent returns the lines sent so far, without terminators.
func (d *ScriptedDriver) Sent() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.sent))
	copy(out, d.sent)
	return out
}

// Closed reports whether Close was called.
func (d *ScriptedDriver) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// Expect matches p against the unconsumed scripted output.
func (d *ScriptedDriver) Expect(ctx context.Context, p expect.Pattern) (*expect.Match, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err, ok := d.expectErrs[p.String()]; ok {
		return nil, err
	}

	loc := p.Index(d.output)
	if loc == nil {
		return nil, &expect.TimeoutError{
			Pattern: p.String(),
			Waited:  time.Millisecond,
			Pending: string(d.output),
		}
	}
	m := &expect.Match{
		Before: string(d.output[:loc[0]]),
		Text:   string(d.output[loc[0]:loc[1]]),
	}
	d.output = d.output[loc[1]:]
	return m, nil
}

// SendLine records the sent line.
func (d *ScriptedDriver) SendLine(text string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return expect.ErrClosed
	}
	d.sent = append(d.sent, text)
	d.transcript.WriteString(text + "\n")
	return nil
}

// Wait returns the scripted wait result.
func (d *ScriptedDriver) Wait(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	return d.waitErr
}

// Transcript returns the scripted output plus everything sent.
func (d *ScriptedDriver) Transcript() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.transcript.String()
}

// Close marks the driver closed. It is idempotent.
func (d *ScriptedDriver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}
