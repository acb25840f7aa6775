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

// Package status serves the optional harness status endpoint: liveness,
// Prometheus metrics, and the latest run results. CI hosts running sclogin
// on a schedule point their scrapers and dashboards here.
package status

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jeremyhahn/go-sclogin/pkg/logging"
	"github.com/jeremyhahn/go-sclogin/pkg/report"
)

// Server is the status HTTP server.
type Server struct {
	addr   string
	logger *logging.Logger
	store  *report.Store
	http   *http.Server

	mu     sync.RWMutex
	latest *report.Summary
}

// New creates a status server. store may be nil when history is disabled;
// transcript lookups then answer 404.
func New(addr string, store *report.Store, logger *logging.Logger) *Server {
	if logger == nil {
		logger = logging.DefaultLogger()
	}
	s := &Server{addr: addr, logger: logger, store: store}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", s.handleHealthz)
	r.Handle("/metrics", promhttp.Handler())
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/results", s.handleResults)
		r.Get("/results/{id}/transcript", s.handleTranscript)
	})

	s.http = &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler exposes the router, for tests.
func (s *Server) Handler() http.Handler { return s.http.Handler }

// SetSummary publishes the latest run summary.
func (s *Server) SetSummary(sum *report.Summary) {
	s.mu.Lock()
	s.latest = sum
	s.mu.Unlock()
}

// Start serves in a background goroutine until Shutdown.
func (s *Server) Start() {
	s.logger.Info("status endpoint listening", "addr", s.addr)
	go func() {
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Errorf("status endpoint failed: %v", err)
		}
	}()
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	latest := s.latest
	s.mu.RUnlock()

	body := map[string]any{"status": "ok"}
	if latest != nil {
		body["last_run"] = map[string]any{
			"finished": latest.Finished,
			"total":    len(latest.Results),
			"passed":   latest.Passed(),
			"failed":   latest.Failed(),
		}
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	latest := s.latest
	s.mu.RUnlock()

	if latest == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no runs yet"})
		return
	}
	writeJSON(w, http.StatusOK, latest)
}

func (s *Server) handleTranscript(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	// Prefer the in-memory summary; fall back to the history store so
	// transcripts survive across invocations.
	s.mu.RLock()
	latest := s.latest
	s.mu.RUnlock()
	if latest != nil {
		for _, res := range latest.Results {
			if res.ID == id {
				writeTranscript(w, res.Transcript)
				return
			}
		}
	}

	if s.store != nil {
		res, err := s.store.Get(id)
		if err == nil {
			writeTranscript(w, res.Transcript)
			return
		}
		if !errors.Is(err, report.ErrNotFound) {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"error": "run not found"})
}

func writeTranscript(w http.ResponseWriter, transcript string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(transcript))
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
