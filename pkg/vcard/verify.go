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

	"github.com/ThalesGroup/crypto11"
)

// PINVerifier checks a PIN against a token. The production implementation
// logs into the token through crypto11; tests script the outcome.
type PINVerifier interface {
	VerifyPIN(ctx context.Context, pin string) error
}

// Crypto11Verifier verifies a PIN by opening an authenticated PKCS#11
// context against the card's token. Used by precondition checks before a
// run feeds the PIN to a live login prompt.
type Crypto11Verifier struct {
	Module     string
	TokenLabel string
}

// VerifyPIN logs into the token with pin and immediately closes the
// context. A login failure maps to ErrBadPIN.
func (v *Crypto11Verifier) VerifyPIN(ctx context.Context, pin string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c11, err := crypto11.Configure(&crypto11.Config{
		Path:       v.Module,
		TokenLabel: v.TokenLabel,
		Pin:        pin,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadPIN, err)
	}
	return c11.Close()
}
