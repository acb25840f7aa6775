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
	"github.com/spf13/cobra"

	"github.com/jeremyhahn/go-sclogin/pkg/scenario"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered scenarios and configured user fixtures",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		fixtures := make([]string, 0, len(cfg.Users))
		for _, u := range cfg.Users {
			fixtures = append(fixtures, u.Name)
		}
		return printer().PrintScenarios(scenario.All(), fixtures)
	},
}
