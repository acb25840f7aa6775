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
	"os"
	"time"
)

// terminal is the channel the driver reads process output from and writes
// input to. The production implementation is the master side of a
// pseudo-terminal; unit tests substitute a scripted in-memory terminal.
//
// SetReadDeadline bounds each Read so the expect loop can poll for context
// cancellation and timeouts without a dedicated reader goroutine.
type terminal interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Close() error
	SetReadDeadline(t time.Time) error
}

// ptyTerminal adapts the PTY master file. *os.File already satisfies the
// whole interface; the wrapper only exists to keep the session code off the
// concrete type.
type ptyTerminal struct {
	f *os.File
}

func (t *ptyTerminal) Read(p []byte) (int, error)        { return t.f.Read(p) }
func (t *ptyTerminal) Write(p []byte) (int, error)       { return t.f.Write(p) }
func (t *ptyTerminal) Close() error                      { return t.f.Close() }
func (t *ptyTerminal) SetReadDeadline(d time.Time) error { return t.f.SetReadDeadline(d) }
