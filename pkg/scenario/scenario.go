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

// Package scenario models the login flows the harness can run. A scenario
// declares its host preconditions (policy features, card presence) and a
// flow function that drives the interactive conversation; the runner owns
// setup, teardown and parametrization around it.
package scenario

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/jeremyhahn/go-sclogin/pkg/authselect"
	"github.com/jeremyhahn/go-sclogin/pkg/expect"
	"github.com/jeremyhahn/go-sclogin/pkg/logging"
	"github.com/jeremyhahn/go-sclogin/pkg/user"
)

// State is a step in the shared scenario state machine. Every flow
// traverses the same shape; the optional states only occur for scenarios
// that use them.
type State string

// Scenario states, in traversal order.
const (
	StatePolicySet      State = "POLICY_SET"
	StateCardInserted   State = "CARD_INSERTED"
	StateProcessSpawned State = "PROCESS_SPAWNED"
	StatePromptMatched  State = "PROMPT_MATCHED"
	StateCredentialSent State = "CREDENTIAL_SENT"
	StateSuccessMatched State = "SUCCESS_MATCHED"
	StateExitSent       State = "EXIT_SENT"
	StateTornDown       State = "TORN_DOWN"
	StateFailed         State = "FAILED"
)

// Driver is the interactive session surface a flow talks to. The
// production implementation is *expect.Session; hermetic tests script one.
type Driver interface {
	Expect(ctx context.Context, p expect.Pattern) (*expect.Match, error)
	SendLine(text string) error
	Wait(ctx context.Context) error
	Transcript() string
	Close() error
}

// Flow drives one interactive login conversation. It runs with the policy
// already selected and the card (if any) already inserted; any returned
// error fails the run and still triggers full teardown.
type Flow func(ctx context.Context, t *T) error

// Scenario is a registered login flow with its host preconditions.
type Scenario struct {
	// Name identifies the scenario, e.g. "login/with-card".
	Name string

	// Desc is a one-line human description for listings.
	Desc string

	// Features is the authselect policy the scenario runs under.
	Features authselect.Features

	// WithCard indicates the user's card must be inserted before the flow
	// starts.
	WithCard bool

	// Flow is the interactive conversation.
	Flow Flow
}

// T is the per-run toolkit handed to a Flow.
type T struct {
	// User is the materialized fixture the scenario runs as.
	User *user.User

	// Log carries the run's scenario/fixture context.
	Log *logging.Logger

	login func(ctx context.Context) (Driver, error)
	mark  func(State)

	session Driver
}

// NewT assembles a flow toolkit. The runner is the only caller outside of
// tests.
func NewT(u *user.User, log *logging.Logger,
	login func(ctx context.Context) (Driver, error), mark func(State)) *T {

	if log == nil {
		log = logging.DefaultLogger()
	}
	return &T{User: u, Log: log, login: login, mark: mark}
}

// Login spawns the login process for the scenario's user and marks
// ProcessSpawned.
func (t *T) Login(ctx context.Context) (Driver, error) {
	d, err := t.login(ctx)
	if err != nil {
		return nil, err
	}
	t.session = d
	t.Mark(StateProcessSpawned)
	return d, nil
}

// Session returns the live session, nil before Login.
func (t *T) Session() Driver { return t.session }

// Mark records a state transition with the runner.
func (t *T) Mark(s State) {
	if t.mark != nil {
		t.mark(s)
	}
}

// Registry

var (
	registryMu sync.RWMutex
	registry   = make(map[string]*Scenario)
)

// Register adds a scenario to the registry. It panics on a duplicate name;
// registration happens from init functions where a duplicate is a
// programming error.
func Register(s *Scenario) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, dup := registry[s.Name]; dup {
		panic(fmt.Sprintf("scenario: duplicate registration of %q", s.Name))
	}
	registry[s.Name] = s
}

// Lookup returns the named scenario, or nil.
func Lookup(name string) *Scenario {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return registry[name]
}

// All returns every registered scenario sorted by name.
func All() []*Scenario {
	registryMu.RLock()
	defer registryMu.RUnlock()
	out := make([]*Scenario, 0, len(registry))
	for _, s := range registry {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
