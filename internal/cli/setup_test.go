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
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	flagConfigFile = ""
	t.Setenv("SCLOGIN_CONFIG", "")

	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Driver.Timeout.Std() != 30*time.Second {
		t.Errorf("expected default timeout 30s, got %s", cfg.Driver.Timeout.Std())
	}
}

func TestLoadConfigFlag(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := []byte("driver:\n  timeout: 5s\nusers:\n  - name: alice\n    username: alice\n    password: secret\n")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}

	flagConfigFile = path
	defer func() { flagConfigFile = "" }()

	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Driver.Timeout.Std() != 5*time.Second {
		t.Errorf("expected timeout 5s, got %s", cfg.Driver.Timeout.Std())
	}
	if len(cfg.Users) != 1 || cfg.Users[0].Name != "alice" {
		t.Errorf("unexpected users: %+v", cfg.Users)
	}
}

func TestLoadConfigEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "env.yaml")
	data := []byte("driver:\n  poll_interval: 250ms\n")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}

	flagConfigFile = ""
	t.Setenv("SCLOGIN_CONFIG", path)

	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Driver.PollInterval.Std() != 250*time.Millisecond {
		t.Errorf("expected poll interval 250ms, got %s", cfg.Driver.PollInterval.Std())
	}
}

func TestBuildRunnerWiring(t *testing.T) {
	flagConfigFile = ""
	t.Setenv("SCLOGIN_CONFIG", "")

	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	r := buildRunner(cfg, newLogger(cfg))
	if r.Factory == nil || r.Source == nil || r.Policy == nil {
		t.Fatalf("runner not fully wired: %+v", r)
	}
}
