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

package user

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jeremyhahn/go-sclogin/pkg/hostexec"
	"github.com/jeremyhahn/go-sclogin/pkg/ipa"
	"github.com/jeremyhahn/go-sclogin/pkg/logging"
	"github.com/jeremyhahn/go-sclogin/pkg/vcard"
)

// Factory materializes user fixtures. Each named fixture is built at most
// once per process (session scope) and shared across every scenario run
// parametrized with it.
type Factory struct {
	// Lookup optionally resolves the host account for a username, e.g.
	// with os/user. A nil Lookup skips resolution; identity-provider
	// accounts only resolve once sssd is configured, which is exactly
	// what some scenarios exist to exercise.
	Lookup func(username string) error

	// CardModule is the PKCS#11 module used to observe card presence.
	CardModule string

	// CardInsertWait bounds the token wait after a card service starts.
	CardInsertWait time.Duration

	runner  hostexec.Runner
	ipa     *ipa.Factory
	logger  *logging.Logger
	watcher vcard.TokenWatcher

	mu      sync.Mutex
	specs   map[string]Spec
	order   []string
	entries map[string]*entry
}

type entry struct {
	once sync.Once
	user *User
	err  error
}

// NewFactory creates a Factory over the declared specs. A nil watcher gets
// the real PKCS#11 poller when cards are built.
func NewFactory(specs []Spec, ipaFactory *ipa.Factory, runner hostexec.Runner,
	watcher vcard.TokenWatcher, logger *logging.Logger) *Factory {

	if logger == nil {
		logger = logging.DefaultLogger()
	}
	m := make(map[string]Spec, len(specs))
	order := make([]string, 0, len(specs))
	for _, s := range specs {
		if _, dup := m[s.Name]; !dup {
			order = append(order, s.Name)
		}
		m[s.Name] = s
	}
	return &Factory{
		runner:  runner,
		ipa:     ipaFactory,
		logger:  logger,
		watcher: watcher,
		specs:   m,
		order:   order,
		entries: make(map[string]*entry),
	}
}

// Names returns the declared fixture names in declaration order.
func (f *Factory) Names() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.order))
	copy(out, f.order)
	return out
}

// SortedNames returns the declared fixture names sorted lexically.
func (f *Factory) SortedNames() []string {
	names := f.Names()
	sort.Strings(names)
	return names
}

// Materialize returns the named user fixture, building it on first use.
// Every failure wraps ErrSetup. The result, success or failure, is cached
// for the process lifetime.
func (f *Factory) Materialize(ctx context.Context, name string) (*User, error) {
	f.mu.Lock()
	spec, ok := f.specs[name]
	if !ok {
		f.mu.Unlock()
		return nil, fmt.Errorf("%w: unknown fixture %q", ErrSetup, name)
	}
	e, ok := f.entries[name]
	if !ok {
		e = &entry{}
		f.entries[name] = e
	}
	f.mu.Unlock()

	e.once.Do(func() {
		e.user, e.err = f.build(ctx, spec)
		if e.err != nil {
			f.logger.Warn("fixture materialization failed",
				"fixture", name, "error", e.err.Error())
		} else {
			f.logger.Debug("fixture materialized", "fixture", name, "username", e.user.Username)
		}
	})
	return e.user, e.err
}

func (f *Factory) build(ctx context.Context, spec Spec) (*User, error) {
	if spec.Username == "" {
		return nil, fmt.Errorf("%w: fixture %q has no username", ErrSetup, spec.Name)
	}

	u := &User{
		Name:     spec.Name,
		Username: spec.Username,
		Password: spec.Password,
		PIN:      spec.PIN,
	}

	if spec.IPAServer != "" {
		if f.ipa == nil {
			return nil, fmt.Errorf("%w: fixture %q references IPA server %q but none are configured",
				ErrSetup, spec.Name, spec.IPAServer)
		}
		server, err := f.ipa.Materialize(ctx, spec.IPAServer)
		if err != nil {
			return nil, fmt.Errorf("%w: fixture %q: %v", ErrSetup, spec.Name, err)
		}
		u.IPA = server
	}

	if f.Lookup != nil {
		if err := f.Lookup(spec.Username); err != nil {
			return nil, fmt.Errorf("%w: fixture %q: resolving account %q: %v",
				ErrSetup, spec.Name, spec.Username, err)
		}
	}

	if spec.CardService != "" {
		u.Card = vcard.New(vcard.Config{
			Service:    spec.CardService,
			TokenLabel: spec.TokenLabel,
			Module:     f.CardModule,
			InsertWait: f.CardInsertWait,
		}, f.runner, f.watcher, f.logger)
	}

	return u, nil
}
