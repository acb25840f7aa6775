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

package vcard

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/miekg/pkcs11"
)

// TokenWatcher observes PKCS#11 token presence. The production watcher
// polls the PKCS#11 module; unit tests script presence directly.
type TokenWatcher interface {
	// WaitForToken blocks until a token with the given label is present
	// or the context ends.
	WaitForToken(ctx context.Context, label string) error
}

// PKCS11Watcher polls a PKCS#11 module for token presence. sssd picks the
// card up through the same module, so the token surfacing here is the
// signal that login prompts will see it too.
type PKCS11Watcher struct {
	module string
	poll   time.Duration
}

// NewPKCS11Watcher creates a watcher for the given module path. A zero
// poll interval defaults to 250ms.
func NewPKCS11Watcher(module string, poll time.Duration) *PKCS11Watcher {
	if poll <= 0 {
		poll = 250 * time.Millisecond
	}
	return &PKCS11Watcher{module: module, poll: poll}
}

// WaitForToken polls GetSlotList/GetTokenInfo until a token labelled label
// is present in a slot, or the context ends with ErrTokenNotFound.
func (w *PKCS11Watcher) WaitForToken(ctx context.Context, label string) error {
	p := pkcs11.New(w.module)
	if p == nil {
		return fmt.Errorf("vcard: failed to load PKCS#11 module: %s", w.module)
	}
	defer p.Destroy()

	if err := p.Initialize(); err != nil {
		if err != pkcs11.Error(pkcs11.CKR_CRYPTOKI_ALREADY_INITIALIZED) {
			return fmt.Errorf("vcard: failed to initialize PKCS#11: %w", err)
		}
	}
	defer func() { _ = p.Finalize() }()

	ticker := time.NewTicker(w.poll)
	defer ticker.Stop()

	for {
		if ok, err := tokenPresent(p, label); err == nil && ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", ErrTokenNotFound, ctx.Err())
		case <-ticker.C:
		}
	}
}

func tokenPresent(p *pkcs11.Ctx, label string) (bool, error) {
	slots, err := p.GetSlotList(true)
	if err != nil {
		return false, err
	}
	for _, slot := range slots {
		info, err := p.GetTokenInfo(slot)
		if err != nil {
			continue
		}
		if strings.TrimSpace(info.Label) == label {
			return true, nil
		}
	}
	return false, nil
}
