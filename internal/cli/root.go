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

// Package cli implements the sclogin command line interface.
package cli

import (
	"context"
	"os"

	"github.com/spf13/cobra"
)

// Global flags
var (
	flagConfigFile string
	flagOutput     string
	flagVerbose    bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "sclogin",
	Short: "sclogin - smart card console login test harness",
	Long: `sclogin automates integration testing of smart-card-based console
login on a Linux host. It drives the host's login command on a
pseudo-terminal the way agetty does, selects the authentication policy
through authselect, controls virtual smart card presence, and asserts
the expected interactive prompts and responses.

Scenarios:
  - login/with-card:          PIN login, policy allows smart cards
  - login/without-card:       password fallback, no card present
  - login/with-card-required: PIN login, policy requires smart cards`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// ExecuteContext runs the root command with the given context; command
// handlers observe cancellation through cmd.Context().
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfigFile, "config", "",
		"config file (default is "+defaultConfigNote+")")
	rootCmd.PersistentFlags().StringVarP(&flagOutput, "output", "o", "text",
		"output format (text, json)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false,
		"verbose output")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(versionCmd)
}

const defaultConfigNote = "/etc/sclogin/config.yaml, or $SCLOGIN_CONFIG"

// printer returns the Printer for the selected output format.
func printer() *Printer {
	return NewPrinter(flagOutput, os.Stdout)
}
