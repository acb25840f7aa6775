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

package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/jeremyhahn/go-sclogin/pkg/hostcheck"
	"github.com/jeremyhahn/go-sclogin/pkg/report"
	"github.com/jeremyhahn/go-sclogin/pkg/scenario"
)

func sampleSummary() *report.Summary {
	return &report.Summary{
		Results: []*report.Result{
			{
				ID:       "11111111-1111-1111-1111-111111111111",
				Scenario: "login/with-card",
				Fixture:  "alice",
				Outcome:  report.OutcomePass,
				Duration: 1200 * time.Millisecond,
				Started:  time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
			},
			{
				ID:       "22222222-2222-2222-2222-222222222222",
				Scenario: "login/without-card",
				Fixture:  "alice",
				Outcome:  report.OutcomeFail,
				Class:    report.ClassTimeout,
				Error:    "timed out waiting for \"Password:\"",
				Duration: 10 * time.Second,
				Started:  time.Date(2025, 6, 1, 12, 0, 5, 0, time.UTC),
			},
		},
	}
}

func TestPrintSummaryText(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter("text", &buf)
	if err := p.PrintSummary(sampleSummary()); err != nil {
		t.Fatalf("PrintSummary: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "PASS  login/with-card / alice") {
		t.Errorf("missing pass line in output:\n%s", out)
	}
	if !strings.Contains(out, "FAIL  login/without-card / alice [timeout]") {
		t.Errorf("missing fail line in output:\n%s", out)
	}
	if !strings.Contains(out, "1 passed, 1 failed (2 total)") {
		t.Errorf("missing totals in output:\n%s", out)
	}
}

func TestPrintSummaryJSON(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter("json", &buf)
	if err := p.PrintSummary(sampleSummary()); err != nil {
		t.Fatalf("PrintSummary: %v", err)
	}

	var decoded struct {
		Results []struct {
			Scenario string `json:"scenario"`
			Outcome  string `json:"outcome"`
		} `json:"results"`
	}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, buf.String())
	}
	if len(decoded.Results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(decoded.Results))
	}
	if decoded.Results[0].Scenario != "login/with-card" {
		t.Errorf("unexpected first scenario %q", decoded.Results[0].Scenario)
	}
}

func TestPrintSummaryUnknownFormat(t *testing.T) {
	p := NewPrinter("yaml", &bytes.Buffer{})
	if err := p.PrintSummary(sampleSummary()); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestPrintScenarios(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter("text", &buf)
	err := p.PrintScenarios(scenario.All(), []string{"alice", "bob"})
	if err != nil {
		t.Fatalf("PrintScenarios: %v", err)
	}

	out := buf.String()
	for _, want := range []string{"login/with-card", "login/without-card",
		"login/with-card-required", "alice", "bob"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestPrintChecks(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter("text", &buf)
	err := p.PrintChecks([]hostcheck.CheckResult{
		{Name: "sssd.conf", Status: hostcheck.StatusOK},
		{Name: "ca-cert", Status: hostcheck.StatusFail, Message: "no such file"},
		{Name: "card-service", Status: hostcheck.StatusSkip, Message: "not configured"},
	})
	if err != nil {
		t.Fatalf("PrintChecks: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "OK") || !strings.Contains(out, "FAIL") {
		t.Errorf("statuses missing from output:\n%s", out)
	}
	if !strings.Contains(out, "no such file") {
		t.Errorf("failure message missing from output:\n%s", out)
	}
}

func TestPrintHistoryEmpty(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter("table", &buf)
	if err := p.PrintHistory(nil); err != nil {
		t.Fatalf("PrintHistory: %v", err)
	}
	if !strings.Contains(buf.String(), "No runs recorded") {
		t.Errorf("unexpected output:\n%s", buf.String())
	}
}
