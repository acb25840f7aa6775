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
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jeremyhahn/go-sclogin/internal/config"
	"github.com/jeremyhahn/go-sclogin/internal/status"
	"github.com/jeremyhahn/go-sclogin/pkg/report"
	"github.com/jeremyhahn/go-sclogin/pkg/scenario"
)

var (
	flagRunScenarios  []string
	flagRunUsers      []string
	flagRunTimeout    time.Duration
	flagRunStatusAddr string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run login scenarios",
	Long: `Run executes every registered scenario once per configured user
fixture, serialized against this host. The exit code is non-zero when any
scenario fails.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireRoot(); err != nil {
			return err
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if flagRunTimeout > 0 {
			cfg.Driver.Timeout = config.Duration(flagRunTimeout)
		}
		if flagRunStatusAddr != "" {
			cfg.Status.Enabled = true
			cfg.Status.Addr = flagRunStatusAddr
		}

		log := newLogger(cfg)
		r := buildRunner(cfg, log)

		if len(flagRunScenarios) > 0 {
			for _, name := range flagRunScenarios {
				sc := scenario.Lookup(name)
				if sc == nil {
					return fmt.Errorf("unknown scenario %q", name)
				}
				r.Scenarios = append(r.Scenarios, sc)
			}
		}
		if len(flagRunUsers) > 0 {
			declared := make(map[string]bool)
			for _, name := range r.Factory.Names() {
				declared[name] = true
			}
			for _, name := range flagRunUsers {
				if !declared[name] {
					return fmt.Errorf("unknown user fixture %q", name)
				}
			}
			r.Fixtures = flagRunUsers
		}

		var store *report.Store
		if cfg.History.Enabled {
			store, err = report.Open(cfg.History.Path)
			if err != nil {
				return err
			}
			defer store.Close()
			r.Store = store
		}

		var statusServer *status.Server
		if cfg.Status.Enabled {
			statusServer = status.New(cfg.Status.Addr, store, log)
			statusServer.Start()
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = statusServer.Shutdown(ctx)
			}()
		}

		sum, err := r.Run(cmd.Context())
		if statusServer != nil && sum != nil {
			statusServer.SetSummary(sum)
		}
		if err != nil {
			return err
		}
		if perr := printer().PrintSummary(sum); perr != nil {
			return perr
		}
		if sum.HasFailures() {
			return fmt.Errorf("%d of %d scenario runs failed", sum.Failed(), len(sum.Results))
		}
		return nil
	},
}

func init() {
	runCmd.Flags().StringSliceVar(&flagRunScenarios, "scenario", nil,
		"scenario to run (repeatable, default all)")
	runCmd.Flags().StringSliceVar(&flagRunUsers, "user", nil,
		"user fixture to run against (repeatable, default all)")
	runCmd.Flags().DurationVar(&flagRunTimeout, "timeout", 0,
		"expect timeout override, e.g. 45s")
	runCmd.Flags().StringVar(&flagRunStatusAddr, "status-addr", "",
		"enable the status endpoint on this address for the run")
}
