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

	"github.com/spf13/cobra"

	"github.com/jeremyhahn/go-sclogin/internal/config"
	"github.com/jeremyhahn/go-sclogin/pkg/hostcheck"
	"github.com/jeremyhahn/go-sclogin/pkg/hostexec"
	"github.com/jeremyhahn/go-sclogin/pkg/logging"
	"github.com/jeremyhahn/go-sclogin/pkg/user"
)

var flagCheckVerifyPIN bool

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify the host is ready to run smart-card login scenarios",
	Long: `Check inspects the host preconditions the scenarios depend on:
the sssd configuration, the sssd service state, the virtual card units,
the CA certificate, and the login binary. Without --verify-pin it does
not change any host state and may run unprivileged. With --verify-pin
each card-backed fixture's card is inserted, its PIN checked against the
token, and the card removed again; that path needs root.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		log := newLogger(cfg)

		// The first configured card-backed fixture determines which
		// virtual card unit to inspect.
		cardService := ""
		for _, u := range cfg.Users {
			if u.CardService != "" {
				cardService = u.CardService
				break
			}
		}

		checker := hostcheck.New(hostcheck.Config{
			SSSDConfPath: cfg.Host.SSSDConf,
			CACertPath:   cfg.Host.CACert,
			CardService:  cardService,
			LoginPath:    cfg.Driver.LoginPath,
		}, hostexec.NewExecRunner(log))

		results := checker.Run(cmd.Context())
		if flagCheckVerifyPIN {
			pinResults, err := verifyFixturePINs(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			results = append(results, pinResults...)
		}

		if err := printer().PrintChecks(results); err != nil {
			return err
		}
		if hostcheck.Failed(results) {
			return fmt.Errorf("host is not ready, one or more checks failed")
		}
		return nil
	},
}

// verifyFixturePINs inserts each card-backed fixture's card and checks its
// PIN against the token, releasing the card again before moving on.
func verifyFixturePINs(ctx context.Context, cfg *config.Config, log *logging.Logger) ([]hostcheck.CheckResult, error) {
	if err := requireRoot(); err != nil {
		return nil, err
	}

	factory := buildFactory(cfg, hostexec.NewExecRunner(log), log)
	var results []hostcheck.CheckResult
	for _, name := range factory.SortedNames() {
		u, err := factory.Materialize(ctx, name)
		if err != nil {
			results = append(results, hostcheck.CheckResult{
				Name:    "pin/" + name,
				Status:  hostcheck.StatusFail,
				Message: err.Error(),
			})
			continue
		}
		if u.Card == nil {
			results = append(results, hostcheck.CheckResult{
				Name:    "pin/" + name,
				Status:  hostcheck.StatusSkip,
				Message: "no card declared",
			})
			continue
		}
		results = append(results, verifyOnePIN(ctx, name, u))
	}
	return results, nil
}

func verifyOnePIN(ctx context.Context, name string, u *user.User) hostcheck.CheckResult {
	release, err := u.Card.Insert(ctx)
	if err != nil {
		return hostcheck.CheckResult{
			Name:    "pin/" + name,
			Status:  hostcheck.StatusFail,
			Message: err.Error(),
		}
	}
	defer func() { _ = release(ctx) }()

	if err := u.Card.VerifyPIN(ctx, u.PIN); err != nil {
		return hostcheck.CheckResult{
			Name:    "pin/" + name,
			Status:  hostcheck.StatusFail,
			Message: err.Error(),
		}
	}
	return hostcheck.CheckResult{Name: "pin/" + name, Status: hostcheck.StatusOK}
}

func init() {
	checkCmd.Flags().BoolVar(&flagCheckVerifyPIN, "verify-pin", false,
		"insert each fixture's card and verify its PIN against the token (requires root)")
}
