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

package expect

import (
	"errors"
	"fmt"
	"time"
)

// Driver errors
var (
	// ErrSpawn indicates the external process could not be started.
	ErrSpawn = errors.New("expect: failed to spawn process")

	// ErrTimeout indicates the expected pattern did not appear in the output
	// stream before the deadline elapsed.
	ErrTimeout = errors.New("expect: timeout waiting for pattern")

	// ErrEOF indicates the process closed its output stream before the
	// expected pattern appeared.
	ErrEOF = errors.New("expect: process exited before pattern matched")

	// ErrClosed indicates an operation on a session that has been closed.
	ErrClosed = errors.New("expect: session closed")
)

// SpawnError carries the command that failed to start and the underlying
// cause (binary missing, permission denied). It matches ErrSpawn under
// errors.Is.
type SpawnError struct {
	// Command is the command line that failed to start.
	Command string

	// Err is the underlying error from the operating system.
	Err error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("expect: failed to spawn %q: %v", e.Command, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

// Is reports whether target is ErrSpawn.
func (e *SpawnError) Is(target error) bool { return target == ErrSpawn }

// TimeoutError carries diagnostic detail about an expect timeout: the
// pattern that never matched, how long the driver waited and the tail of
// the unconsumed output at the moment the deadline passed. It matches
// ErrTimeout under errors.Is.
type TimeoutError struct {
	// Pattern describes the pattern that did not match.
	Pattern string

	// Waited is how long the driver blocked before giving up.
	Waited time.Duration

	// Pending is the tail of the unconsumed output stream, for diagnostics.
	Pending string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("expect: timeout after %s waiting for %s (pending output tail: %q)",
		e.Waited.Round(time.Millisecond), e.Pattern, e.Pending)
}

// Is reports whether target is ErrTimeout.
func (e *TimeoutError) Is(target error) bool { return target == ErrTimeout }

// EOFError carries diagnostic detail about a premature process exit. It
// matches ErrEOF under errors.Is.
type EOFError struct {
	// Pattern describes the pattern that did not match before exit.
	Pattern string

	// Pending is the unconsumed output remaining at exit.
	Pending string
}

func (e *EOFError) Error() string {
	return fmt.Sprintf("expect: process exited before %s matched (pending output tail: %q)",
		e.Pattern, e.Pending)
}

// Is reports whether target is ErrEOF.
func (e *EOFError) Is(target error) bool { return target == ErrEOF }
