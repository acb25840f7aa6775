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

// Package user provides the user fixtures login scenarios run as. Fixtures
// are declared in configuration and materialized lazily, once per process,
// so every parametrized scenario run shares the same *User.
package user

import (
	"errors"

	"github.com/jeremyhahn/go-sclogin/pkg/ipa"
	"github.com/jeremyhahn/go-sclogin/pkg/vcard"
)

// ErrSetup marks fixture materialization failures. The runner classifies
// any error matching ErrSetup as a setup error, distinct from assertion
// failures: the scenario never reached the login step.
var ErrSetup = errors.New("user: fixture setup failed")

// Spec declares a user fixture.
type Spec struct {
	// Name is the fixture key scenarios are parametrized with.
	Name string

	// Username is the account name passed to login.
	Username string

	// Password is the account password, used by the password-fallback
	// scenario.
	Password string

	// PIN unlocks the user's smart card.
	PIN string

	// CardService is the systemd unit providing the user's virtual card;
	// empty for users without a card.
	CardService string

	// TokenLabel is the PKCS#11 token label of the user's card.
	TokenLabel string

	// IPAServer optionally names the identity-provider fixture this user
	// belongs to; empty for local accounts.
	IPAServer string
}

// User is a materialized fixture. It is immutable for the duration of a
// scenario; the runner is the only writer of the card's inserted state,
// through scoped acquisition.
type User struct {
	// Name is the fixture name.
	Name string

	// Username is the account name.
	Username string

	// Password is the account password.
	Password string

	// PIN is the smart card PIN.
	PIN string

	// Card is the user's virtual smart card, nil for card-less users.
	Card *vcard.Card

	// IPA is the linked identity-provider server, nil for local accounts.
	IPA *ipa.Server
}
