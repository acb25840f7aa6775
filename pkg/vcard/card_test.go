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
	"errors"
	"testing"
	"time"

	"github.com/jeremyhahn/go-sclogin/pkg/hostexec"
)

// fakeWatcher scripts token presence.
type fakeWatcher struct {
	err   error
	waits int
}

func (w *fakeWatcher) WaitForToken(ctx context.Context, label string) error {
	w.waits++
	return w.err
}

func testCard(watcher TokenWatcher) (*Card, *hostexec.FakeRunner) {
	runner := hostexec.NewFakeRunner()
	cfg := Config{
		Service:    "virt_cacard.service",
		TokenLabel: "virt_cacard",
		Module:     "/usr/lib64/pkcs11/libsofthsm2.so",
		InsertWait: 100 * time.Millisecond,
	}
	return New(cfg, runner, watcher, nil), runner
}

func TestInsert_StartsServiceAndWaitsForToken(t *testing.T) {
	watcher := &fakeWatcher{}
	card, runner := testCard(watcher)

	release, err := card.Insert(context.Background())
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if !card.Inserted() {
		t.Error("card should report inserted")
	}
	if !runner.Called("systemctl start virt_cacard.service") {
		t.Error("service was not started")
	}
	if watcher.waits != 1 {
		t.Errorf("token wait ran %d times, want 1", watcher.waits)
	}

	if err := release(context.Background()); err != nil {
		t.Fatalf("release failed: %v", err)
	}
	if card.Inserted() {
		t.Error("card should report removed after release")
	}
	if !runner.Called("systemctl stop virt_cacard.service") {
		t.Error("service was not stopped")
	}
}

func TestInsert_DoubleInsertFails(t *testing.T) {
	card, _ := testCard(&fakeWatcher{})

	release, err := card.Insert(context.Background())
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	defer release(context.Background())

	if _, err := card.Insert(context.Background()); !errors.Is(err, ErrInserted) {
		t.Errorf("second Insert = %v, want ErrInserted", err)
	}
}

func TestInsert_TokenWaitFailureStopsService(t *testing.T) {
	watcher := &fakeWatcher{err: ErrTokenNotFound}
	card, runner := testCard(watcher)

	if _, err := card.Insert(context.Background()); !errors.Is(err, ErrTokenNotFound) {
		t.Fatalf("Insert = %v, want ErrTokenNotFound", err)
	}
	if card.Inserted() {
		t.Error("failed insert must not leave the card marked inserted")
	}
	if !runner.Called("systemctl stop virt_cacard.service") {
		t.Error("service must be stopped when the token never surfaces")
	}
}

func TestInsert_ServiceStartFailure(t *testing.T) {
	watcher := &fakeWatcher{}
	card, runner := testCard(watcher)
	runner.Script("systemctl start", "", errors.New("unit not found"))

	if _, err := card.Insert(context.Background()); err == nil {
		t.Fatal("expected Insert to fail")
	}
	if card.Inserted() {
		t.Error("failed insert must not leave the card marked inserted")
	}
	if watcher.waits != 0 {
		t.Error("token wait must not run when the service failed to start")
	}
}

func TestRelease_Idempotent(t *testing.T) {
	card, runner := testCard(&fakeWatcher{})

	release, err := card.Insert(context.Background())
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	if err := release(context.Background()); err != nil {
		t.Fatalf("release failed: %v", err)
	}
	if err := release(context.Background()); err != nil {
		t.Fatalf("second release should be a no-op, got %v", err)
	}

	stops := 0
	for _, line := range runner.CallLines() {
		if line == "systemctl stop virt_cacard.service" {
			stops++
		}
	}
	if stops != 1 {
		t.Errorf("service stopped %d times, want 1", stops)
	}

	// The slot is free again.
	release2, err := card.Insert(context.Background())
	if err != nil {
		t.Fatalf("reinsert after release failed: %v", err)
	}
	release2(context.Background())
}

// fakeVerifier scripts PIN verification.
type fakeVerifier struct {
	err  error
	pins []string
}

func (v *fakeVerifier) VerifyPIN(ctx context.Context, pin string) error {
	v.pins = append(v.pins, pin)
	return v.err
}

func TestVerifyPIN_RequiresInsertedCard(t *testing.T) {
	card, _ := testCard(&fakeWatcher{})
	verifier := &fakeVerifier{}
	card.SetVerifier(verifier)

	if err := card.VerifyPIN(context.Background(), "123456"); err == nil {
		t.Fatal("VerifyPIN should fail on a removed card")
	}
	if len(verifier.pins) != 0 {
		t.Error("verifier must not run while the card is removed")
	}
}

func TestVerifyPIN(t *testing.T) {
	card, _ := testCard(&fakeWatcher{})
	verifier := &fakeVerifier{}
	card.SetVerifier(verifier)

	release, err := card.Insert(context.Background())
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	defer release(context.Background())

	if err := card.VerifyPIN(context.Background(), "123456"); err != nil {
		t.Fatalf("VerifyPIN failed: %v", err)
	}
	if len(verifier.pins) != 1 || verifier.pins[0] != "123456" {
		t.Errorf("verifier saw pins %q, want [123456]", verifier.pins)
	}

	verifier.err = ErrBadPIN
	if err := card.VerifyPIN(context.Background(), "000000"); !errors.Is(err, ErrBadPIN) {
		t.Errorf("VerifyPIN = %v, want ErrBadPIN", err)
	}
}
