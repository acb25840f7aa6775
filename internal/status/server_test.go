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

package status

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/jeremyhahn/go-sclogin/pkg/report"
)

func sampleSummary() *report.Summary {
	return &report.Summary{
		Started:  time.Now().UTC(),
		Finished: time.Now().UTC(),
		Results: []*report.Result{
			{
				ID:         "run-1",
				Scenario:   "login/with-card",
				Fixture:    "local-user",
				Outcome:    report.OutcomePass,
				Transcript: "PIN for alice:123456\nalice@host ~]$ ",
			},
			{
				ID:       "run-2",
				Scenario: "login/without-card",
				Fixture:  "local-user",
				Outcome:  report.OutcomeFail,
				Class:    report.ClassTimeout,
				Error:    "timeout waiting for prompt",
			},
		},
	}
}

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	s := New(":0", nil, nil)

	rec := get(t, s, "/healthz")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	s.SetSummary(sampleSummary())
	rec = get(t, s, "/healthz")

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("bad JSON: %v", err)
	}
	lastRun, ok := body["last_run"].(map[string]any)
	if !ok {
		t.Fatalf("no last_run in %v", body)
	}
	if lastRun["failed"].(float64) != 1 {
		t.Errorf("last_run = %v", lastRun)
	}
}

func TestResults(t *testing.T) {
	s := New(":0", nil, nil)

	if rec := get(t, s, "/api/v1/results"); rec.Code != http.StatusNotFound {
		t.Errorf("no runs yet: status = %d, want 404", rec.Code)
	}

	s.SetSummary(sampleSummary())
	rec := get(t, s, "/api/v1/results")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var sum report.Summary
	if err := json.Unmarshal(rec.Body.Bytes(), &sum); err != nil {
		t.Fatalf("bad JSON: %v", err)
	}
	if len(sum.Results) != 2 {
		t.Errorf("results = %d, want 2", len(sum.Results))
	}
}

func TestTranscript_FromLatestSummary(t *testing.T) {
	s := New(":0", nil, nil)
	s.SetSummary(sampleSummary())

	rec := get(t, s, "/api/v1/results/run-1/transcript")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Body.String() != "PIN for alice:123456\nalice@host ~]$ " {
		t.Errorf("transcript = %q", rec.Body.String())
	}
}

func TestTranscript_FromHistoryStore(t *testing.T) {
	store, err := report.Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer store.Close()

	if err := store.Save(&report.Result{
		ID:         "old-run",
		Scenario:   "login/with-card",
		Transcript: "archived transcript",
	}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	s := New(":0", store, nil)
	rec := get(t, s, "/api/v1/results/old-run/transcript")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Body.String() != "archived transcript" {
		t.Errorf("transcript = %q", rec.Body.String())
	}
}

func TestTranscript_NotFound(t *testing.T) {
	s := New(":0", nil, nil)
	if rec := get(t, s, "/api/v1/results/missing/transcript"); rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s := New(":0", nil, nil)
	if rec := get(t, s, "/metrics"); rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
}
