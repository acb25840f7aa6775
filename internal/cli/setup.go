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
	"io"
	"os"
	osuser "os/user"

	"github.com/jeremyhahn/go-sclogin/internal/config"
	"github.com/jeremyhahn/go-sclogin/pkg/expect"
	"github.com/jeremyhahn/go-sclogin/pkg/hostexec"
	"github.com/jeremyhahn/go-sclogin/pkg/ipa"
	"github.com/jeremyhahn/go-sclogin/pkg/logging"
	"github.com/jeremyhahn/go-sclogin/pkg/runner"
	"github.com/jeremyhahn/go-sclogin/pkg/user"
)

// loadConfig resolves the configuration: --config flag, then the
// SCLOGIN_CONFIG variable, then the default path if it exists, else the
// built-in defaults.
func loadConfig() (*config.Config, error) {
	path := flagConfigFile
	if path == "" {
		path = os.Getenv("SCLOGIN_CONFIG")
	}
	if path == "" {
		if _, err := os.Stat(config.DefaultPath); err == nil {
			path = config.DefaultPath
		}
	}
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

// newLogger builds the harness logger from the configuration and the
// --verbose flag.
func newLogger(cfg *config.Config) *logging.Logger {
	debug := flagVerbose || cfg.Logging.Level == "debug"
	return logging.NewLogger(debug)
}

// buildFactory wires the user and identity-provider fixture factories from
// configuration.
func buildFactory(cfg *config.Config, hostRunner hostexec.Runner, log *logging.Logger) *user.Factory {
	ipaSpecs := make([]ipa.Spec, 0, len(cfg.IPA))
	for _, s := range cfg.IPA {
		ipaSpecs = append(ipaSpecs, ipa.Spec{
			Name:     s.Name,
			Hostname: s.Hostname,
			Domain:   s.Domain,
			Realm:    s.Realm,
			CACert:   s.CACert,
		})
	}

	userSpecs := make([]user.Spec, 0, len(cfg.Users))
	for _, u := range cfg.Users {
		userSpecs = append(userSpecs, user.Spec{
			Name:        u.Name,
			Username:    u.Username,
			Password:    u.Password,
			PIN:         u.PIN,
			CardService: u.CardService,
			TokenLabel:  u.TokenLabel,
			IPAServer:   u.IPAServer,
		})
	}

	f := user.NewFactory(userSpecs, ipa.NewFactory(ipaSpecs), hostRunner, nil, log)
	f.CardModule = cfg.PKCS11.Module
	f.CardInsertWait = cfg.PKCS11.InsertWait.Std()
	f.Lookup = func(username string) error {
		_, err := osuser.Lookup(username)
		return err
	}
	return f
}

// buildRunner assembles the production runner: PTY-spawned login sessions,
// authselect-backed policy selection, and the fixtures' own cards.
func buildRunner(cfg *config.Config, log *logging.Logger) *runner.Runner {
	hostRunner := hostexec.NewExecRunner(log)

	var mirror io.Writer
	if !cfg.Driver.Mirror {
		mirror = io.Discard
	}

	return &runner.Runner{
		Factory: buildFactory(cfg, hostRunner, log),
		Source: &runner.PTYSource{
			LoginPath: cfg.Driver.LoginPath,
			Opts: &expect.Options{
				Timeout:      cfg.Driver.Timeout.Std(),
				PollInterval: cfg.Driver.PollInterval.Std(),
				SendInterval: cfg.Driver.SendInterval.Std(),
				Mirror:       mirror,
				Logger:       log,
			},
		},
		Policy: &runner.AuthselectPolicy{Runner: hostRunner, Log: log},
		Log:    log,
	}
}

// requireRoot fails early for commands that mutate host state; authselect
// and systemctl both need it and their error messages are less direct.
func requireRoot() error {
	if os.Geteuid() != 0 {
		return fmt.Errorf("this command changes host authentication state and must run as root")
	}
	return nil
}
