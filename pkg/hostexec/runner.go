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

// Package hostexec runs host administration commands (authselect,
// systemctl) on behalf of the harness.
package hostexec

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/jeremyhahn/go-sclogin/pkg/logging"
)

// Runner executes a host command and returns its combined output. The
// policy, card and precondition layers consume this interface; tests
// substitute a scripted implementation.
type Runner interface {
	Run(ctx context.Context, name string, arg ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct {
	logger *logging.Logger
}

// NewExecRunner creates a Runner backed by os/exec.
func NewExecRunner(logger *logging.Logger) *ExecRunner {
	if logger == nil {
		logger = logging.DefaultLogger()
	}
	return &ExecRunner{logger: logger}
}

// Run executes the command and returns its combined stdout and stderr.
// Failures include the command line and output for diagnostics.
func (r *ExecRunner) Run(ctx context.Context, name string, arg ...string) ([]byte, error) {
	start := time.Now()
	out, err := exec.CommandContext(ctx, name, arg...).CombinedOutput()
	r.logger.Debug("host command",
		"command", name,
		"args", strings.Join(arg, " "),
		"duration", time.Since(start).String(),
		"error", err != nil)
	if err != nil {
		return out, fmt.Errorf("hostexec: %s %s: %w (output: %s)",
			name, strings.Join(arg, " "), err, strings.TrimSpace(string(out)))
	}
	return out, nil
}
