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

// Package report holds run results and the persistent run history used for
// post-hoc debugging of failed login scenarios.
package report

import "time"

// Outcome is the final verdict of one (scenario, fixture) run.
type Outcome string

// Outcomes
const (
	OutcomePass Outcome = "pass"
	OutcomeFail Outcome = "fail"
)

// Class categorizes a failure per the harness error taxonomy.
type Class string

// Failure classes
const (
	// ClassNone marks a passing run.
	ClassNone Class = ""

	// ClassSetup: fixture, policy or card preparation failed; the run
	// never reached the login step.
	ClassSetup Class = "setup"

	// ClassTimeout: an expected prompt did not appear in time. The usual
	// cause is a diverged login flow, e.g. rejected authentication.
	ClassTimeout Class = "timeout"

	// ClassEOF: the login process exited before the expected output, a
	// crash or immediate rejection.
	ClassEOF Class = "eof"

	// ClassAssertion: a pattern matched but a subsequent check failed.
	ClassAssertion Class = "assertion"
)

// Result is the record of one (scenario, fixture) run.
type Result struct {
	// ID uniquely identifies the run.
	ID string `json:"id" cbor:"1,keyasint"`

	// Scenario is the scenario name.
	Scenario string `json:"scenario" cbor:"2,keyasint"`

	// Fixture is the user fixture name.
	Fixture string `json:"fixture" cbor:"3,keyasint"`

	// Outcome is pass or fail.
	Outcome Outcome `json:"outcome" cbor:"4,keyasint"`

	// Class categorizes the failure; empty on pass.
	Class Class `json:"class,omitempty" cbor:"5,keyasint,omitempty"`

	// Error is the failure message; empty on pass.
	Error string `json:"error,omitempty" cbor:"6,keyasint,omitempty"`

	// States is the ordered state trace the run traversed.
	States []string `json:"states" cbor:"7,keyasint"`

	// Started is when the run began.
	Started time.Time `json:"started" cbor:"8,keyasint"`

	// Duration is how long the run took, teardown included.
	Duration time.Duration `json:"duration" cbor:"9,keyasint"`

	// Transcript is the mirrored session I/O, empty if no session was
	// spawned.
	Transcript string `json:"transcript,omitempty" cbor:"10,keyasint,omitempty"`
}

// Summary aggregates the results of one invocation.
type Summary struct {
	// Results holds one entry per (scenario, fixture) pair, in execution
	// order.
	Results []*Result `json:"results"`

	// Started and Finished bound the whole invocation.
	Started  time.Time `json:"started"`
	Finished time.Time `json:"finished"`
}

// Passed returns the number of passing runs.
func (s *Summary) Passed() int {
	n := 0
	for _, r := range s.Results {
		if r.Outcome == OutcomePass {
			n++
		}
	}
	return n
}

// Failed returns the number of failing runs.
func (s *Summary) Failed() int {
	return len(s.Results) - s.Passed()
}

// HasFailures reports whether any run failed. The CLI exit code is derived
// from it.
func (s *Summary) HasFailures() bool {
	return s.Failed() > 0
}
