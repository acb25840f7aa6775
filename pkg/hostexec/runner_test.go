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

package hostexec

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestExecRunner_Run(t *testing.T) {
	r := NewExecRunner(nil)

	out, err := r.Run(context.Background(), "echo", "hello")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if got := strings.TrimSpace(string(out)); got != "hello" {
		t.Errorf("output = %q, want %q", got, "hello")
	}
}

func TestExecRunner_MissingBinary(t *testing.T) {
	r := NewExecRunner(nil)

	_, err := r.Run(context.Background(), "sclogin-no-such-binary")
	if err == nil {
		t.Fatal("expected an error for a missing binary")
	}
	if !strings.Contains(err.Error(), "sclogin-no-such-binary") {
		t.Errorf("error should name the command: %v", err)
	}
}

func TestFakeRunner_LongestPrefixWins(t *testing.T) {
	r := NewFakeRunner()
	r.Script("systemctl", "generic", nil)
	r.Script("systemctl is-active sssd", "active", nil)

	out, err := r.Run(context.Background(), "systemctl", "is-active", "sssd")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if string(out) != "active" {
		t.Errorf("output = %q, want the most specific script", out)
	}
	if !r.Called("systemctl is-active") {
		t.Error("invocation was not recorded")
	}
}

func TestFakeRunner_ScriptedError(t *testing.T) {
	r := NewFakeRunner()
	scripted := errors.New("unit not found")
	r.Script("systemctl start", "", scripted)

	_, err := r.Run(context.Background(), "systemctl", "start", "virt_cacard.service")
	if !errors.Is(err, scripted) {
		t.Errorf("err = %v, want the scripted error", err)
	}
}
