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

// Package authselect selects the host authentication policy through
// authselect(8) and restores the prior profile when the scope ends. The
// policy is process-wide host configuration, so at most one selection may
// be active at a time.
package authselect

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/jeremyhahn/go-sclogin/pkg/hostexec"
	"github.com/jeremyhahn/go-sclogin/pkg/logging"
)

// Package errors
var (
	// ErrActive indicates a selection is already active on this host.
	ErrActive = errors.New("authselect: a policy selection is already active")

	// ErrRestored indicates Restore was already completed for a selection.
	ErrRestored = errors.New("authselect: selection already restored")
)

const profile = "sssd"

// Features selects the authselect profile features layered on top of the
// sssd profile. The zero value enables smart-card authentication without
// requiring it, the baseline every login scenario starts from.
type Features struct {
	// Required makes smart-card authentication mandatory
	// (with-smartcard-required): password fallback is disabled.
	Required bool

	// LockOnRemoval locks the session when the card is pulled
	// (with-smartcard-lock-on-removal).
	LockOnRemoval bool

	// MkHomedir creates home directories on first login (with-mkhomedir),
	// needed for identity-provider accounts that have never logged in.
	MkHomedir bool
}

func (f Features) args() []string {
	args := []string{profile, "with-smartcard"}
	if f.Required {
		args = append(args, "with-smartcard-required")
	}
	if f.LockOnRemoval {
		args = append(args, "with-smartcard-lock-on-removal")
	}
	if f.MkHomedir {
		args = append(args, "with-mkhomedir")
	}
	return args
}

// String renders the features as the authselect command arguments, for
// logs and reports.
func (f Features) String() string {
	return strings.Join(f.args()[1:], " ")
}

// Selection is an active policy selection holding the backup name needed
// to put the host back the way it was.
type Selection struct {
	backup   string
	features Features
	runner   hostexec.Runner
	logger   *logging.Logger

	mu       sync.Mutex
	restored bool
}

// Host-wide exclusivity guard. The authentication policy is shared state;
// a second selection before the first restores would clobber the backup
// chain.
var (
	activeMu sync.Mutex
	active   bool
)

// Select switches the host to the sssd profile with the given features,
// taking a named backup of the current configuration first. It fails with
// ErrActive if another selection has not been restored yet.
func Select(ctx context.Context, runner hostexec.Runner, features Features, logger *logging.Logger) (*Selection, error) {
	if logger == nil {
		logger = logging.DefaultLogger()
	}

	activeMu.Lock()
	if active {
		activeMu.Unlock()
		return nil, ErrActive
	}
	active = true
	activeMu.Unlock()

	backup := "sclogin-" + uuid.New().String()[:8]
	args := append(features.args(), "--backup="+backup, "--force")

	logger.Info("selecting authentication policy",
		"profile", profile, "features", features.String(), "backup", backup)

	if _, err := runner.Run(ctx, "authselect", append([]string{"select"}, args...)...); err != nil {
		activeMu.Lock()
		active = false
		activeMu.Unlock()
		return nil, fmt.Errorf("authselect: select failed: %w", err)
	}

	return &Selection{
		backup:   backup,
		features: features,
		runner:   runner,
		logger:   logger,
	}, nil
}

// Features returns the features this selection activated.
func (s *Selection) Features() Features { return s.features }

// Restore puts the host back to the configuration captured at Select time
// and releases the exclusivity guard. It is idempotent: the second and
// later calls are no-ops. Restore must run on every exit path, including
// scenario failure.
func (s *Selection) Restore(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.restored {
		return nil
	}
	s.restored = true

	defer func() {
		activeMu.Lock()
		active = false
		activeMu.Unlock()
	}()

	s.logger.Info("restoring authentication policy", "backup", s.backup)

	if _, err := s.runner.Run(ctx, "authselect", "backup-restore", s.backup); err != nil {
		return fmt.Errorf("authselect: backup-restore failed: %w", err)
	}

	// Backup cleanup is best effort; a stale backup directory does not
	// affect the restored configuration.
	if _, err := s.runner.Run(ctx, "authselect", "backup-remove", s.backup); err != nil {
		s.logger.Warn("failed to remove authselect backup", "backup", s.backup, "error", err.Error())
	}
	return nil
}

// Current returns the output of `authselect current`, for diagnostics and
// precondition checks.
func Current(ctx context.Context, runner hostexec.Runner) (string, error) {
	out, err := runner.Run(ctx, "authselect", "current")
	if err != nil {
		return "", fmt.Errorf("authselect: current failed: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}
