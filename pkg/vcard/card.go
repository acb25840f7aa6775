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

// Package vcard controls a virtual smart card exposed through a systemd
// service (virt_cacard or similar). Inserting starts the service and waits
// for the PKCS#11 token to surface; removing stops it. The card slot is an
// exclusive host resource, so card state is only toggled through scoped
// acquisition: Insert returns the release function that must run when the
// scope ends, whatever the scenario outcome.
package vcard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jeremyhahn/go-sclogin/pkg/hostexec"
	"github.com/jeremyhahn/go-sclogin/pkg/logging"
)

// Package errors
var (
	// ErrInserted indicates the card is already inserted.
	ErrInserted = errors.New("vcard: card already inserted")

	// ErrTokenNotFound indicates the PKCS#11 token did not surface after
	// the card service started.
	ErrTokenNotFound = errors.New("vcard: token did not appear")

	// ErrBadPIN indicates the token rejected the PIN.
	ErrBadPIN = errors.New("vcard: PIN verification failed")
)

// DefaultInsertWait bounds how long Insert waits for the token after the
// card service starts.
const DefaultInsertWait = 10 * time.Second

// Config describes a virtual card.
type Config struct {
	// Service is the systemd unit providing the card, e.g.
	// "virt_cacard.service".
	Service string

	// TokenLabel is the PKCS#11 token label to wait for after insert.
	TokenLabel string

	// Module is the PKCS#11 module path used to observe the token,
	// typically the p11-kit or opensc module.
	Module string

	// InsertWait bounds the token wait. Defaults to DefaultInsertWait.
	InsertWait time.Duration
}

// Card is a virtual smart card with explicit inserted/removed state.
type Card struct {
	cfg      Config
	runner   hostexec.Runner
	watcher  TokenWatcher
	verifier PINVerifier
	logger   *logging.Logger

	mu       sync.Mutex
	inserted bool
}

// New creates a Card. A nil watcher gets the PKCS#11 polling watcher for
// cfg.Module.
func New(cfg Config, runner hostexec.Runner, watcher TokenWatcher, logger *logging.Logger) *Card {
	if logger == nil {
		logger = logging.DefaultLogger()
	}
	if watcher == nil {
		watcher = NewPKCS11Watcher(cfg.Module, 0)
	}
	if cfg.InsertWait <= 0 {
		cfg.InsertWait = DefaultInsertWait
	}
	return &Card{
		cfg:      cfg,
		runner:   runner,
		watcher:  watcher,
		verifier: &Crypto11Verifier{Module: cfg.Module, TokenLabel: cfg.TokenLabel},
		logger:   logger,
	}
}

// SetVerifier overrides the PIN verifier. Tests script outcomes this way.
func (c *Card) SetVerifier(v PINVerifier) { c.verifier = v }

// VerifyPIN checks pin against the card's token. The card must be
// inserted first; the token is unreachable otherwise.
func (c *Card) VerifyPIN(ctx context.Context, pin string) error {
	if !c.Inserted() {
		return fmt.Errorf("vcard: verify PIN on %s: card not inserted", c.cfg.Service)
	}
	return c.verifier.VerifyPIN(ctx, pin)
}

// Inserted reports whether the card is currently inserted.
func (c *Card) Inserted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inserted
}

// Insert starts the card service and waits for the token to surface. It
// returns the release function that stops the service and marks the card
// removed; release is idempotent and must be called on every exit path.
// A second Insert without release fails with ErrInserted.
func (c *Card) Insert(ctx context.Context) (func(context.Context) error, error) {
	c.mu.Lock()
	if c.inserted {
		c.mu.Unlock()
		return nil, ErrInserted
	}
	c.inserted = true
	c.mu.Unlock()

	c.logger.Info("inserting card", "service", c.cfg.Service, "token", c.cfg.TokenLabel)

	if _, err := c.runner.Run(ctx, "systemctl", "start", c.cfg.Service); err != nil {
		c.markRemoved()
		return nil, fmt.Errorf("vcard: failed to start %s: %w", c.cfg.Service, err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, c.cfg.InsertWait)
	defer cancel()
	if err := c.watcher.WaitForToken(waitCtx, c.cfg.TokenLabel); err != nil {
		// The service is up but the token never surfaced; stop it again so
		// the host is not left half-inserted.
		if _, stopErr := c.runner.Run(ctx, "systemctl", "stop", c.cfg.Service); stopErr != nil {
			c.logger.Warn("failed to stop card service after token wait failure",
				"service", c.cfg.Service, "error", stopErr.Error())
		}
		c.markRemoved()
		return nil, fmt.Errorf("vcard: token %q: %w", c.cfg.TokenLabel, err)
	}

	var releaseOnce sync.Once
	release := func(ctx context.Context) error {
		var err error
		releaseOnce.Do(func() {
			c.logger.Info("removing card", "service", c.cfg.Service)
			if _, runErr := c.runner.Run(ctx, "systemctl", "stop", c.cfg.Service); runErr != nil {
				err = fmt.Errorf("vcard: failed to stop %s: %w", c.cfg.Service, runErr)
			}
			c.markRemoved()
		})
		return err
	}
	return release, nil
}

func (c *Card) markRemoved() {
	c.mu.Lock()
	c.inserted = false
	c.mu.Unlock()
}
