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
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jeremyhahn/go-sclogin/pkg/report"
)

var (
	flagHistoryLimit    int
	flagHistoryScenario string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recorded scenario runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if !cfg.History.Enabled {
			return fmt.Errorf("run history is disabled in the configuration")
		}

		store, err := report.Open(cfg.History.Path)
		if err != nil {
			return fmt.Errorf("open run history: %w", err)
		}
		defer store.Close()

		results, err := store.List(flagHistoryScenario, flagHistoryLimit)
		if err != nil {
			return err
		}
		return printer().PrintHistory(results)
	},
}

func init() {
	historyCmd.Flags().IntVar(&flagHistoryLimit, "limit", 20,
		"Maximum number of runs to show")
	historyCmd.Flags().StringVar(&flagHistoryScenario, "scenario", "",
		"Only show runs of this scenario")
}
