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
	"errors"
	"reflect"
	"testing"

	"github.com/jeremyhahn/go-sclogin/pkg/expect"
	"github.com/jeremyhahn/go-sclogin/pkg/user"
)

func alice() *user.User {
	return &user.User{
		Name:     "local-user",
		Username: "alice",
		Password: "passwd-alice",
		PIN:      "123456",
	}
}

// runFlow drives a flow against a scripted session and returns the marked
// states in order.
func runFlow(t *testing.T, name string, driver Driver) ([]State, error) {
	t.Helper()

	s := Lookup(name)
	if s == nil {
		t.Fatalf("scenario %q not registered", name)
	}

	var states []State
	tk := NewT(alice(), nil,
		func(ctx context.Context) (Driver, error) { return driver, nil },
		func(st State) { states = append(states, st) })
	return states, s.Flow(context.Background(), tk)
}

func TestRegistry_AllThreeFlowsRegistered(t *testing.T) {
	want := []string{"login/with-card", "login/with-card-required", "login/without-card"}

	var got []string
	for _, s := range All() {
		got = append(got, s.Name)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("All = %v, want %v", got, want)
	}

	if !Lookup("login/with-card-required").Features.Required {
		t.Error("required-card scenario must select the required policy")
	}
	if Lookup("login/without-card").WithCard {
		t.Error("password scenario must not request a card")
	}
}

func TestCardLoginFlow_HappyPath(t *testing.T) {
	driver := NewScriptedDriver("PIN for alice:alice@host ~]$ ")

	_, err := runFlow(t, "login/with-card", driver)
	if err != nil {
		t.Fatalf("flow failed: %v", err)
	}

	if sent := driver.Sent(); !reflect.DeepEqual(sent, []string{"123456", "exit"}) {
		t.Errorf("sent = %v, want PIN then exit", sent)
	}
}

func TestCardLoginFlow_StateOrder(t *testing.T) {
	driver := NewScriptedDriver("PIN for alice:alice@host ~]$ ")

	states, err := runFlow(t, "login/with-card", driver)
	if err != nil {
		t.Fatalf("flow failed: %v", err)
	}

	want := []State{
		StateProcessSpawned,
		StatePromptMatched,
		StateCredentialSent,
		StateSuccessMatched,
		StateExitSent,
	}
	if !reflect.DeepEqual(states, want) {
		t.Errorf("states = %v, want %v", states, want)
	}
}

func TestPasswordLoginFlow_HappyPath(t *testing.T) {
	driver := NewScriptedDriver("Password:Last login: now\nalice@host ~]$ ")

	states, err := runFlow(t, "login/without-card", driver)
	if err != nil {
		t.Fatalf("flow failed: %v", err)
	}

	if sent := driver.Sent(); !reflect.DeepEqual(sent, []string{"passwd-alice", "exit"}) {
		t.Errorf("sent = %v, want password then exit", sent)
	}
	if states[len(states)-1] != StateExitSent {
		t.Errorf("final state = %v", states[len(states)-1])
	}
}

func TestRequiredCardFlow_IndistinguishableFromAllowed(t *testing.T) {
	// With a valid card present the required-policy conversation is the
	// same as the allowed-policy one.
	for _, name := range []string{"login/with-card", "login/with-card-required"} {
		driver := NewScriptedDriver("PIN for alice:alice@host ~]$ ")
		states, err := runFlow(t, name, driver)
		if err != nil {
			t.Fatalf("%s failed: %v", name, err)
		}
		if states[1] != StatePromptMatched || driver.Sent()[0] != "123456" {
			t.Errorf("%s diverged from the with-card conversation", name)
		}
	}
}

func TestCardLoginFlow_WrongPromptTimesOut(t *testing.T) {
	// Host produced a password prompt instead of a PIN prompt: the flow
	// must surface the timeout, not hang or misfeed the PIN.
	driver := NewScriptedDriver("Password:")

	states, err := runFlow(t, "login/with-card", driver)
	if !errors.Is(err, expect.ErrTimeout) {
		t.Fatalf("flow = %v, want ErrTimeout", err)
	}
	if len(driver.Sent()) != 0 {
		t.Errorf("nothing should be sent after a failed prompt match, sent %v", driver.Sent())
	}
	for _, st := range states {
		if st == StatePromptMatched {
			t.Error("PromptMatched must not be marked on a failed match")
		}
	}
}

func TestPasswordLoginFlow_RejectedCredential(t *testing.T) {
	driver := NewScriptedDriver("Password:")
	driver.FailExpect(`"alice"`, &expect.EOFError{Pattern: `"alice"`})

	_, err := runFlow(t, "login/without-card", driver)
	if !errors.Is(err, expect.ErrEOF) {
		t.Fatalf("flow = %v, want ErrEOF when login exits after rejection", err)
	}
}

func TestRegister_DuplicatePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("duplicate registration did not panic")
		}
	}()
	Register(&Scenario{Name: "login/with-card"})
}
