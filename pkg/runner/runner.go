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

// Package runner executes registered scenarios against one host. Runs are
// strictly serialized: the authentication policy and the card slot are
// exclusive host-wide resources, and every run fully tears its state down
// before the next begins. All setup is acquired through scoped release
// functions deferred immediately, so no failure path can leak policy or
// card state into the following run.
package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jeremyhahn/go-sclogin/pkg/authselect"
	"github.com/jeremyhahn/go-sclogin/pkg/expect"
	"github.com/jeremyhahn/go-sclogin/pkg/logging"
	"github.com/jeremyhahn/go-sclogin/pkg/metrics"
	"github.com/jeremyhahn/go-sclogin/pkg/report"
	"github.com/jeremyhahn/go-sclogin/pkg/scenario"
	"github.com/jeremyhahn/go-sclogin/pkg/user"
)

// Runner executes scenarios, one (scenario, fixture) pair at a time.
type Runner struct {
	// Factory materializes user fixtures.
	Factory *user.Factory

	// Source spawns login sessions.
	Source SessionSource

	// Policy selects and restores the host authentication policy.
	Policy PolicySelector

	// Cards inserts user cards. Nil defaults to the fixture's own card.
	Cards CardInserter

	// Log is the harness logger.
	Log *logging.Logger

	// Store optionally persists every result to the run history.
	Store *report.Store

	// Scenarios to run. Nil means every registered scenario.
	Scenarios []*scenario.Scenario

	// Fixtures to parametrize with. Nil means every declared fixture.
	Fixtures []string
}

// Run executes every (scenario, fixture) pair in deterministic order and
// returns one result per pair. Failed runs are reported in the summary,
// not as the returned error; the error covers harness-level problems such
// as cancellation.
func (r *Runner) Run(ctx context.Context) (*report.Summary, error) {
	log := r.logger()

	scenarios := r.Scenarios
	if scenarios == nil {
		scenarios = scenario.All()
	}
	fixtures := r.Fixtures
	if fixtures == nil {
		fixtures = r.Factory.Names()
	}

	sum := &report.Summary{Started: time.Now().UTC()}
	for _, sc := range scenarios {
		for _, fixture := range fixtures {
			if err := ctx.Err(); err != nil {
				sum.Finished = time.Now().UTC()
				return sum, err
			}
			res := r.runOne(ctx, sc, fixture)
			sum.Results = append(sum.Results, res)
			if r.Store != nil {
				if err := r.Store.Save(res); err != nil {
					log.Warn("failed to persist run result", "run", res.ID, "error", err.Error())
				}
			}
		}
	}
	sum.Finished = time.Now().UTC()

	log.Info("run complete",
		"total", len(sum.Results), "passed", sum.Passed(), "failed", sum.Failed())
	return sum, nil
}

func (r *Runner) runOne(ctx context.Context, sc *scenario.Scenario, fixture string) *report.Result {
	start := time.Now()
	res := &report.Result{
		ID:       uuid.New().String(),
		Scenario: sc.Name,
		Fixture:  fixture,
		Started:  start.UTC(),
	}
	log := r.logger().With("scenario", sc.Name, "fixture", fixture, "run", res.ID)

	var trace []string
	mark := func(st scenario.State) { trace = append(trace, string(st)) }

	log.Info("running scenario")
	err := r.execute(ctx, sc, fixture, log, mark, res)

	// Teardown has completed by the time execute returns; a failed run
	// still reaches TORN_DOWN, after FAILED.
	if err != nil {
		mark(scenario.StateFailed)
	}
	mark(scenario.StateTornDown)

	res.States = trace
	res.Duration = time.Since(start)

	if err != nil {
		res.Outcome = report.OutcomeFail
		res.Class = Classify(err)
		res.Error = err.Error()
		log.Warn("scenario failed", "class", string(res.Class), "error", res.Error)
		metrics.RecordError(string(res.Class))
	} else {
		res.Outcome = report.OutcomePass
		log.Info("scenario passed", "duration", res.Duration.String())
	}
	metrics.RecordRun(sc.Name, fixture, string(res.Outcome), res.Duration)
	return res
}

// execute acquires preconditions, runs the flow and tears everything down
// through deferred releases. The named return lets teardown failures
// surface when the flow itself succeeded.
func (r *Runner) execute(ctx context.Context, sc *scenario.Scenario, fixture string,
	log *logging.Logger, mark func(scenario.State), res *report.Result) (err error) {

	u, uerr := r.Factory.Materialize(ctx, fixture)
	if uerr != nil {
		return uerr
	}

	sel, serr := r.Policy.Select(ctx, sc.Features)
	if serr != nil {
		return setupError(serr)
	}
	defer func() {
		if rerr := sel.Restore(ctx); rerr != nil {
			log.Errorf("policy restore failed: %v", rerr)
			if err == nil {
				err = setupError(rerr)
			}
		}
	}()
	mark(scenario.StatePolicySet)

	if sc.WithCard {
		release, cerr := r.cards().Insert(ctx, u)
		if cerr != nil {
			return setupError(cerr)
		}
		defer func() {
			if rerr := release(ctx); rerr != nil {
				log.Errorf("card removal failed: %v", rerr)
				if err == nil {
					err = setupError(rerr)
				}
			}
		}()
		mark(scenario.StateCardInserted)
	}

	var sess scenario.Driver
	tk := scenario.NewT(u, log, func(ctx context.Context) (scenario.Driver, error) {
		d, oerr := r.Source.Open(ctx, u.Username)
		if oerr != nil {
			return nil, oerr
		}
		sess = &instrumentedDriver{Driver: d, scenario: sc.Name}
		return sess, nil
	}, mark)

	defer func() {
		if sess == nil {
			return
		}
		res.Transcript = sess.Transcript()
		if cerr := sess.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("session close: %w", cerr)
		}
	}()

	return sc.Flow(ctx, tk)
}

func (r *Runner) logger() *logging.Logger {
	if r.Log != nil {
		return r.Log
	}
	return logging.DefaultLogger()
}

func (r *Runner) cards() CardInserter {
	if r.Cards != nil {
		return r.Cards
	}
	return fixtureCards{}
}

// Classify maps a run error to its failure class: setup failures (fixture,
// policy, card, spawn), expect timeouts, premature process exit, and
// everything else as an assertion failure.
func Classify(err error) report.Class {
	switch {
	case err == nil:
		return report.ClassNone
	case errors.Is(err, user.ErrSetup), errors.Is(err, expect.ErrSpawn):
		return report.ClassSetup
	case errors.Is(err, expect.ErrTimeout):
		return report.ClassTimeout
	case errors.Is(err, expect.ErrEOF):
		return report.ClassEOF
	default:
		return report.ClassAssertion
	}
}

func setupError(err error) error {
	if errors.Is(err, user.ErrSetup) {
		return err
	}
	return fmt.Errorf("%w: %v", user.ErrSetup, err)
}

// instrumentedDriver times expect waits for the metrics endpoint.
type instrumentedDriver struct {
	scenario.Driver
	scenario string
}

func (d *instrumentedDriver) Expect(ctx context.Context, p expect.Pattern) (*expect.Match, error) {
	start := time.Now()
	m, err := d.Driver.Expect(ctx, p)
	metrics.RecordExpectWait(d.scenario, time.Since(start))
	return m, err
}

// PolicySelector selects the host authentication policy for a run.
type PolicySelector interface {
	Select(ctx context.Context, features authselect.Features) (PolicyHandle, error)
}

// PolicyHandle restores the prior policy when the run's scope ends.
type PolicyHandle interface {
	Restore(ctx context.Context) error
}
