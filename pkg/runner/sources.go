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

package runner

import (
	"context"

	"github.com/jeremyhahn/go-sclogin/pkg/authselect"
	"github.com/jeremyhahn/go-sclogin/pkg/expect"
	"github.com/jeremyhahn/go-sclogin/pkg/hostexec"
	"github.com/jeremyhahn/go-sclogin/pkg/logging"
	"github.com/jeremyhahn/go-sclogin/pkg/scenario"
	"github.com/jeremyhahn/go-sclogin/pkg/user"
)

// SessionSource spawns a login session for a username. The production
// source runs the host's login command on a PTY; hermetic tests script
// whole conversations instead.
type SessionSource interface {
	Open(ctx context.Context, username string) (scenario.Driver, error)
}

// PTYSource spawns `login <username>` through the expect driver, the same
// way agetty starts a console login.
type PTYSource struct {
	// Opts configures the spawned sessions.
	Opts *expect.Options

	// LoginPath overrides the login binary, default "login".
	LoginPath string
}

// Open spawns the login process.
func (s *PTYSource) Open(ctx context.Context, username string) (scenario.Driver, error) {
	path := s.LoginPath
	if path == "" {
		path = "login"
	}
	return expect.SpawnWithOptions(ctx, s.Opts, path, username)
}

// CardInserter inserts a user's card and returns the scoped release.
type CardInserter interface {
	Insert(ctx context.Context, u *user.User) (func(context.Context) error, error)
}

// fixtureCards inserts the card carried by the fixture itself.
type fixtureCards struct{}

func (fixtureCards) Insert(ctx context.Context, u *user.User) (func(context.Context) error, error) {
	if u.Card == nil {
		return nil, &noCardError{fixture: u.Name}
	}
	return u.Card.Insert(ctx)
}

type noCardError struct {
	fixture string
}

func (e *noCardError) Error() string {
	return "runner: fixture " + e.fixture + " declares no card but the scenario requires one"
}

// AuthselectPolicy is the production PolicySelector backed by
// authselect(8).
type AuthselectPolicy struct {
	Runner hostexec.Runner
	Log    *logging.Logger
}

// Select switches the host policy and returns the scoped restore handle.
func (p *AuthselectPolicy) Select(ctx context.Context, features authselect.Features) (PolicyHandle, error) {
	return authselect.Select(ctx, p.Runner, features, p.Log)
}
