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

// Package config loads the harness configuration: YAML file, environment
// variable overrides, then validation.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is where the harness looks for its configuration when no
// --config flag or SCLOGIN_CONFIG variable is set.
const DefaultPath = "/etc/sclogin/config.yaml"

// Duration is a time.Duration that unmarshals from YAML strings like
// "30s" or "250ms".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the standard library representation.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the complete harness configuration.
type Config struct {
	Driver  DriverConfig  `yaml:"driver"`
	PKCS11  PKCS11Config  `yaml:"pkcs11"`
	Users   []UserConfig  `yaml:"users"`
	IPA     []IPAConfig   `yaml:"ipa_servers"`
	Host    HostConfig    `yaml:"host"`
	History HistoryConfig `yaml:"history"`
	Status  StatusConfig  `yaml:"status"`
	Logging LoggingConfig `yaml:"logging"`
}

// DriverConfig tunes the interactive session driver.
type DriverConfig struct {
	// Timeout is the default expect deadline.
	Timeout Duration `yaml:"timeout"`

	// PollInterval bounds individual terminal reads.
	PollInterval Duration `yaml:"poll_interval"`

	// SendInterval paces keystrokes.
	SendInterval Duration `yaml:"send_interval"`

	// Mirror controls whether session I/O is mirrored to stdout.
	Mirror bool `yaml:"mirror"`

	// LoginPath overrides the login binary.
	LoginPath string `yaml:"login_path"`
}

// PKCS11Config locates the module used to observe card presence.
type PKCS11Config struct {
	// Module is the PKCS#11 module path, e.g. the p11-kit proxy or
	// opensc module.
	Module string `yaml:"module"`

	// InsertWait bounds the token wait after a card service starts.
	InsertWait Duration `yaml:"insert_wait"`
}

// UserConfig declares a user fixture.
type UserConfig struct {
	Name        string `yaml:"name"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	PIN         string `yaml:"pin"`
	CardService string `yaml:"card_service"`
	TokenLabel  string `yaml:"token_label"`
	IPAServer   string `yaml:"ipa_server"`
}

// IPAConfig declares an identity-provider server fixture.
type IPAConfig struct {
	Name     string `yaml:"name"`
	Hostname string `yaml:"hostname"`
	Domain   string `yaml:"domain"`
	Realm    string `yaml:"realm"`
	CACert   string `yaml:"ca_cert"`
}

// HostConfig locates host artifacts for precondition checks.
type HostConfig struct {
	SSSDConf string `yaml:"sssd_conf"`
	CACert   string `yaml:"ca_cert"`
}

// HistoryConfig controls the persistent run history.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// StatusConfig controls the optional status HTTP endpoint.
type StatusConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the built-in configuration used when no file exists.
func Default() *Config {
	return &Config{
		Driver: DriverConfig{
			Timeout:      Duration(30 * time.Second),
			PollInterval: Duration(100 * time.Millisecond),
			SendInterval: Duration(50 * time.Millisecond),
			Mirror:       true,
		},
		PKCS11: PKCS11Config{
			Module:     "/usr/lib64/pkcs11/p11-kit-client.so",
			InsertWait: Duration(10 * time.Second),
		},
		Host: HostConfig{
			SSSDConf: "/etc/sssd/sssd.conf",
		},
		History: HistoryConfig{
			Path: "/var/lib/sclogin/history.db",
		},
		Status: StatusConfig{
			Addr: ":9178",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads configuration from a YAML file, applies environment variable
// overrides and validates the result. Unset fields keep their defaults.
func Load(path string) (*Config, error) {
	// #nosec G304 - Config file path is provided by admin/user
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// applyEnvOverrides applies SCLOGIN_* environment variable overrides.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SCLOGIN_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Driver.Timeout = Duration(d)
		}
	}
	if v := os.Getenv("SCLOGIN_PKCS11_MODULE"); v != "" {
		cfg.PKCS11.Module = v
	}
	if v := os.Getenv("SCLOGIN_HISTORY_PATH"); v != "" {
		cfg.History.Path = v
	}
	if v := os.Getenv("SCLOGIN_STATUS_ADDR"); v != "" {
		cfg.Status.Addr = v
		cfg.Status.Enabled = true
	}
	if v := os.Getenv("SCLOGIN_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("SCLOGIN_MIRROR"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Driver.Mirror = b
		}
	}
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if c.Driver.Timeout <= 0 {
		return fmt.Errorf("driver.timeout must be positive")
	}
	if c.Driver.PollInterval <= 0 {
		return fmt.Errorf("driver.poll_interval must be positive")
	}

	ipaNames := make(map[string]bool, len(c.IPA))
	for i, s := range c.IPA {
		if s.Name == "" {
			return fmt.Errorf("ipa_servers[%d]: name is required", i)
		}
		if s.Hostname == "" {
			return fmt.Errorf("ipa_servers[%d] (%s): hostname is required", i, s.Name)
		}
		if ipaNames[s.Name] {
			return fmt.Errorf("ipa_servers: duplicate name %q", s.Name)
		}
		ipaNames[s.Name] = true
	}

	userNames := make(map[string]bool, len(c.Users))
	for i, u := range c.Users {
		if u.Name == "" {
			return fmt.Errorf("users[%d]: name is required", i)
		}
		if u.Username == "" {
			return fmt.Errorf("users[%d] (%s): username is required", i, u.Name)
		}
		if userNames[u.Name] {
			return fmt.Errorf("users: duplicate name %q", u.Name)
		}
		userNames[u.Name] = true
		if u.CardService != "" && u.TokenLabel == "" {
			return fmt.Errorf("users[%d] (%s): token_label is required with card_service", i, u.Name)
		}
		if u.IPAServer != "" && !ipaNames[u.IPAServer] {
			return fmt.Errorf("users[%d] (%s): unknown ipa_server %q", i, u.Name, u.IPAServer)
		}
	}

	if c.History.Enabled && c.History.Path == "" {
		return fmt.Errorf("history.path is required when history is enabled")
	}
	if c.Status.Enabled && c.Status.Addr == "" {
		return fmt.Errorf("status.addr is required when the status endpoint is enabled")
	}

	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error")
	}
	return nil
}
