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

// Package metrics provides Prometheus instrumentation for scenario runs
// and expect waits. The optional status endpoint serves these on /metrics;
// long-running CI hosts scrape them to track login latency drift between
// policy or sssd updates.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// Namespace is the Prometheus namespace for all harness metrics.
	Namespace = "sclogin"

	// Label names
	LabelScenario = "scenario"
	LabelFixture  = "fixture"
	LabelOutcome  = "outcome"
	LabelClass    = "class"
)

var (
	// ScenarioRunsTotal counts finished runs by scenario, fixture and
	// outcome.
	ScenarioRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "scenario_runs_total",
			Help:      "Total number of scenario runs by scenario, fixture, and outcome",
		},
		[]string{LabelScenario, LabelFixture, LabelOutcome},
	)

	// ScenarioDuration tracks whole-run duration, teardown included.
	// Buckets cover PAM plus smart-card latencies seen on real hosts.
	ScenarioDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "scenario_duration_seconds",
			Help:      "Duration of scenario runs in seconds",
			Buckets:   []float64{.5, 1, 2.5, 5, 10, 20, 30, 60, 120},
		},
		[]string{LabelScenario},
	)

	// ExpectWaitSeconds tracks how long individual expect calls blocked.
	ExpectWaitSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "expect_wait_seconds",
			Help:      "Time spent blocked in expect calls",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{LabelScenario},
	)

	// ErrorsTotal counts failures by class (setup, timeout, eof,
	// assertion).
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "errors_total",
			Help:      "Total number of failed runs by failure class",
		},
		[]string{LabelClass},
	)
)

// RecordRun records a finished (scenario, fixture) run.
func RecordRun(scenario, fixture, outcome string, duration time.Duration) {
	ScenarioRunsTotal.WithLabelValues(scenario, fixture, outcome).Inc()
	ScenarioDuration.WithLabelValues(scenario).Observe(duration.Seconds())
}

// RecordError records a failed run's failure class.
func RecordError(class string) {
	ErrorsTotal.WithLabelValues(class).Inc()
}

// RecordExpectWait records the time one expect call spent blocked.
func RecordExpectWait(scenario string, waited time.Duration) {
	ExpectWaitSeconds.WithLabelValues(scenario).Observe(waited.Seconds())
}
