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

// Package hostcheck verifies the host collaborators the harness depends on
// are in place: sssd configured for certificate authentication, the card
// service installed, the CA certificate present, and a login binary on the
// PATH. The checks are strictly read-only; the harness never writes sssd
// or PAM configuration and never issues certificates.
package hostcheck

import (
	"context"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"gopkg.in/ini.v1"

	"github.com/jeremyhahn/go-sclogin/pkg/hostexec"
)

// Status is the outcome of a single check.
type Status string

// Check statuses
const (
	StatusOK   Status = "ok"
	StatusFail Status = "fail"
	StatusSkip Status = "skip"
)

// CheckResult is the outcome of one precondition check.
type CheckResult struct {
	// Name identifies the check.
	Name string `json:"name"`

	// Status is ok, fail, or skip.
	Status Status `json:"status"`

	// Message explains the status.
	Message string `json:"message,omitempty"`

	// Latency is how long the check took.
	Latency time.Duration `json:"latency"`
}

// Config locates the host artifacts to verify.
type Config struct {
	// SSSDConfPath is the sssd configuration file, normally
	// /etc/sssd/sssd.conf.
	SSSDConfPath string

	// CACertPath is the CA root certificate the card certificates chain
	// to.
	CACertPath string

	// CardService is the systemd unit providing the virtual card; empty
	// skips the unit check.
	CardService string

	// LoginPath is the login binary to resolve, default "login".
	LoginPath string
}

// Checker runs the precondition checks.
type Checker struct {
	cfg    Config
	runner hostexec.Runner
}

// New creates a Checker.
func New(cfg Config, runner hostexec.Runner) *Checker {
	if cfg.LoginPath == "" {
		cfg.LoginPath = "login"
	}
	return &Checker{cfg: cfg, runner: runner}
}

// Run executes every check and returns the results in a fixed order. A
// failing check does not stop the rest; the caller gets the full picture.
func (c *Checker) Run(ctx context.Context) []CheckResult {
	checks := []func(context.Context) CheckResult{
		c.checkSSSDConf,
		c.checkSSSDService,
		c.checkCardService,
		c.checkCACert,
		c.checkLoginBinary,
	}
	results := make([]CheckResult, 0, len(checks))
	for _, check := range checks {
		start := time.Now()
		r := check(ctx)
		r.Latency = time.Since(start)
		results = append(results, r)
	}
	return results
}

// Failed reports whether any result failed.
func Failed(results []CheckResult) bool {
	for _, r := range results {
		if r.Status == StatusFail {
			return true
		}
	}
	return false
}

// checkSSSDConf verifies sssd.conf enables the pam service and certificate
// authentication.
func (c *Checker) checkSSSDConf(ctx context.Context) CheckResult {
	name := "sssd.conf"
	if c.cfg.SSSDConfPath == "" {
		return CheckResult{Name: name, Status: StatusSkip, Message: "no sssd.conf path configured"}
	}

	f, err := ini.Load(c.cfg.SSSDConfPath)
	if err != nil {
		return CheckResult{Name: name, Status: StatusFail,
			Message: fmt.Sprintf("failed to load %s: %v", c.cfg.SSSDConfPath, err)}
	}

	services := f.Section("sssd").Key("services").String()
	if !containsField(services, "pam") {
		return CheckResult{Name: name, Status: StatusFail,
			Message: fmt.Sprintf("[sssd] services = %q does not include pam", services)}
	}

	certAuth := f.Section("pam").Key("pam_cert_auth").String()
	if !strings.EqualFold(certAuth, "true") {
		return CheckResult{Name: name, Status: StatusFail,
			Message: fmt.Sprintf("[pam] pam_cert_auth = %q, want True", certAuth)}
	}

	// A certmap rule maps card certificates to accounts; without one,
	// smart-card logins cannot resolve a user.
	hasCertmap := false
	for _, sec := range f.SectionStrings() {
		if strings.HasPrefix(sec, "certmap/") {
			hasCertmap = true
			break
		}
	}
	if !hasCertmap {
		return CheckResult{Name: name, Status: StatusFail, Message: "no [certmap/...] rule section found"}
	}

	return CheckResult{Name: name, Status: StatusOK,
		Message: "pam service enabled, pam_cert_auth = True, certmap rule present"}
}

func (c *Checker) checkSSSDService(ctx context.Context) CheckResult {
	name := "sssd.service"
	out, err := c.runner.Run(ctx, "systemctl", "is-active", "sssd")
	state := strings.TrimSpace(string(out))
	if err != nil || state != "active" {
		return CheckResult{Name: name, Status: StatusFail,
			Message: fmt.Sprintf("sssd is %q, want active", state)}
	}
	return CheckResult{Name: name, Status: StatusOK, Message: "active"}
}

func (c *Checker) checkCardService(ctx context.Context) CheckResult {
	name := "card service"
	if c.cfg.CardService == "" {
		return CheckResult{Name: name, Status: StatusSkip, Message: "no card service configured"}
	}
	if _, err := c.runner.Run(ctx, "systemctl", "cat", c.cfg.CardService); err != nil {
		return CheckResult{Name: name, Status: StatusFail,
			Message: fmt.Sprintf("unit %s not installed: %v", c.cfg.CardService, err)}
	}
	return CheckResult{Name: name, Status: StatusOK,
		Message: fmt.Sprintf("unit %s installed", c.cfg.CardService)}
}

func (c *Checker) checkCACert(ctx context.Context) CheckResult {
	name := "CA certificate"
	if c.cfg.CACertPath == "" {
		return CheckResult{Name: name, Status: StatusSkip, Message: "no CA certificate path configured"}
	}

	data, err := os.ReadFile(c.cfg.CACertPath)
	if err != nil {
		return CheckResult{Name: name, Status: StatusFail,
			Message: fmt.Sprintf("failed to read %s: %v", c.cfg.CACertPath, err)}
	}
	block, _ := pem.Decode(data)
	if block == nil {
		return CheckResult{Name: name, Status: StatusFail,
			Message: fmt.Sprintf("%s contains no PEM data", c.cfg.CACertPath)}
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return CheckResult{Name: name, Status: StatusFail,
			Message: fmt.Sprintf("failed to parse certificate: %v", err)}
	}
	return CheckResult{Name: name, Status: StatusOK,
		Message: fmt.Sprintf("subject %s", cert.Subject.String())}
}

func (c *Checker) checkLoginBinary(ctx context.Context) CheckResult {
	name := "login binary"
	path, err := exec.LookPath(c.cfg.LoginPath)
	if err != nil {
		return CheckResult{Name: name, Status: StatusFail,
			Message: fmt.Sprintf("%s not found on PATH", c.cfg.LoginPath)}
	}
	return CheckResult{Name: name, Status: StatusOK, Message: path}
}

func containsField(list, want string) bool {
	for _, f := range strings.Split(list, ",") {
		if strings.TrimSpace(f) == want {
			return true
		}
	}
	return false
}
