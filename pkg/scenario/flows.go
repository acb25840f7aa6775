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

package scenario

import (
	"context"
	"fmt"

	"github.com/jeremyhahn/go-sclogin/pkg/authselect"
	"github.com/jeremyhahn/go-sclogin/pkg/expect"
)

// The three console login flows. Each drives `login <username>` on a PTY
// the way a getty would and treats the username echoing back (the shell
// prompt) as the success marker.

func init() {
	Register(&Scenario{
		Name:     "login/with-card",
		Desc:     "smart card login with PIN, policy allows smart cards",
		Features: authselect.Features{},
		WithCard: true,
		Flow:     cardLoginFlow,
	})
	Register(&Scenario{
		Name:     "login/without-card",
		Desc:     "password fallback login with no card present",
		Features: authselect.Features{},
		WithCard: false,
		Flow:     passwordLoginFlow,
	})
	Register(&Scenario{
		Name:     "login/with-card-required",
		Desc:     "smart card login with PIN, policy requires smart cards",
		Features: authselect.Features{Required: true},
		WithCard: true,
		Flow:     cardLoginFlow,
	})
}

// cardLoginFlow authenticates with the card PIN. With a valid card
// inserted the conversation is identical whether or not the policy makes
// the card mandatory.
func cardLoginFlow(ctx context.Context, t *T) error {
	sess, err := t.Login(ctx)
	if err != nil {
		return err
	}

	if _, err := sess.Expect(ctx, expect.Literalf("PIN for %s:", t.User.Username)); err != nil {
		return err
	}
	t.Mark(StatePromptMatched)

	if err := sess.SendLine(t.User.PIN); err != nil {
		return err
	}
	t.Mark(StateCredentialSent)

	if err := expectSuccess(ctx, t, sess); err != nil {
		return err
	}

	if err := sess.SendLine("exit"); err != nil {
		return err
	}
	t.Mark(StateExitSent)

	return sess.Wait(ctx)
}

// passwordLoginFlow authenticates with the account password. No card is
// inserted, so PAM falls through to password authentication.
func passwordLoginFlow(ctx context.Context, t *T) error {
	sess, err := t.Login(ctx)
	if err != nil {
		return err
	}

	if _, err := sess.Expect(ctx, expect.Literal("Password:")); err != nil {
		return err
	}
	t.Mark(StatePromptMatched)

	if err := sess.SendLine(t.User.Password); err != nil {
		return err
	}
	t.Mark(StateCredentialSent)

	if err := expectSuccess(ctx, t, sess); err != nil {
		return err
	}

	if err := sess.SendLine("exit"); err != nil {
		return err
	}
	t.Mark(StateExitSent)

	return sess.Wait(ctx)
}

// expectSuccess waits for the username to echo back in the output, the
// shell prompt of the logged-in user.
func expectSuccess(ctx context.Context, t *T, sess Driver) error {
	if _, err := sess.Expect(ctx, expect.Literal(t.User.Username)); err != nil {
		return fmt.Errorf("login success marker: %w", err)
	}
	t.Mark(StateSuccessMatched)
	return nil
}
