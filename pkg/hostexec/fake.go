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

package hostexec

import (
	"context"
	"strings"
	"sync"
)

// FakeRunner records every invocation and answers from a scripted response
// table. It is shared by the unit tests of every package that consumes
// Runner.
type FakeRunner struct {
	mu sync.Mutex

	// Responses maps a command-line prefix to its scripted result. The
	// longest matching prefix wins. Commands with no entry succeed with
	// empty output.
	Responses map[string]FakeResponse

	// Calls is the ordered list of executed command lines.
	Calls []string
}

// FakeResponse is the scripted result for one command.
type FakeResponse struct {
	Output []byte
	Err    error
}

// NewFakeRunner creates an empty FakeRunner.
func NewFakeRunner() *FakeRunner {
	return &FakeRunner{Responses: make(map[string]FakeResponse)}
}

// Script registers a response for every command line beginning with prefix.
func (r *FakeRunner) Script(prefix string, output string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Responses[prefix] = FakeResponse{Output: []byte(output), Err: err}
}

// Run records the invocation and returns the scripted response.
func (r *FakeRunner) Run(ctx context.Context, name string, arg ...string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	line := strings.Join(append([]string{name}, arg...), " ")

	r.mu.Lock()
	defer r.mu.Unlock()
	r.Calls = append(r.Calls, line)

	best := ""
	for prefix := range r.Responses {
		if strings.HasPrefix(line, prefix) && len(prefix) > len(best) {
			best = prefix
		}
	}
	if best == "" {
		return nil, nil
	}
	resp := r.Responses[best]
	return resp.Output, resp.Err
}

// CallLines returns a copy of the recorded command lines.
func (r *FakeRunner) CallLines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.Calls))
	copy(out, r.Calls)
	return out
}

// Called reports whether any recorded command line begins with prefix.
func (r *FakeRunner) Called(prefix string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, line := range r.Calls {
		if strings.HasPrefix(line, prefix) {
			return true
		}
	}
	return false
}
