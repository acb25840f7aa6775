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

package hostcheck

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jeremyhahn/go-sclogin/pkg/hostexec"
)

const goodSSSDConf = `[sssd]
services = nss, pam
domains = shadowutils

[pam]
pam_cert_auth = True

[certmap/shadowutils/alice]
matchrule = <SUBJECT>.*CN=alice.*
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func writeCACert(t *testing.T) string {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "sclogin test CA"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		IsCA:                  true,
		BasicConstraintsValid: true,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("create certificate: %v", err)
	}
	pemData := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	return writeFile(t, "ca.pem", string(pemData))
}

func healthyRunner() *hostexec.FakeRunner {
	r := hostexec.NewFakeRunner()
	r.Script("systemctl is-active sssd", "active\n", nil)
	r.Script("systemctl cat virt_cacard.service", "[Unit]\nDescription=virtual CAC card\n", nil)
	return r
}

func resultFor(t *testing.T, results []CheckResult, name string) CheckResult {
	t.Helper()
	for _, r := range results {
		if r.Name == name {
			return r
		}
	}
	t.Fatalf("no result named %q in %v", name, results)
	return CheckResult{}
}

func TestRun_HealthyHost(t *testing.T) {
	c := New(Config{
		SSSDConfPath: writeFile(t, "sssd.conf", goodSSSDConf),
		CACertPath:   writeCACert(t),
		CardService:  "virt_cacard.service",
		LoginPath:    "sh",
	}, healthyRunner())

	results := c.Run(context.Background())
	if Failed(results) {
		for _, r := range results {
			if r.Status == StatusFail {
				t.Errorf("%s failed: %s", r.Name, r.Message)
			}
		}
	}
	if len(results) != 5 {
		t.Errorf("got %d results, want 5", len(results))
	}
}

func TestCheckSSSDConf_Failures(t *testing.T) {
	tests := []struct {
		name string
		conf string
	}{
		{"pam service missing", "[sssd]\nservices = nss\n\n[pam]\npam_cert_auth = True\n\n[certmap/shadowutils/alice]\nmatchrule = x\n"},
		{"cert auth off", "[sssd]\nservices = nss, pam\n\n[pam]\npam_cert_auth = False\n\n[certmap/shadowutils/alice]\nmatchrule = x\n"},
		{"no certmap rule", "[sssd]\nservices = nss, pam\n\n[pam]\npam_cert_auth = True\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(Config{SSSDConfPath: writeFile(t, "sssd.conf", tt.conf), LoginPath: "sh"}, healthyRunner())
			r := resultFor(t, c.Run(context.Background()), "sssd.conf")
			if r.Status != StatusFail {
				t.Errorf("status = %s, want fail (%s)", r.Status, r.Message)
			}
		})
	}
}

func TestCheckSSSDService_Inactive(t *testing.T) {
	runner := hostexec.NewFakeRunner()
	runner.Script("systemctl is-active sssd", "inactive\n", errors.New("exit status 3"))

	c := New(Config{LoginPath: "sh"}, runner)
	r := resultFor(t, c.Run(context.Background()), "sssd.service")
	if r.Status != StatusFail {
		t.Errorf("status = %s, want fail", r.Status)
	}
}

func TestCheckCardService_NotInstalled(t *testing.T) {
	runner := healthyRunner()
	runner.Script("systemctl cat", "", errors.New("no files found"))

	c := New(Config{CardService: "virt_cacard.service", LoginPath: "sh"}, runner)
	r := resultFor(t, c.Run(context.Background()), "card service")
	if r.Status != StatusFail {
		t.Errorf("status = %s, want fail", r.Status)
	}
}

func TestCheckCACert_BadPEM(t *testing.T) {
	c := New(Config{
		CACertPath: writeFile(t, "ca.pem", "not a certificate"),
		LoginPath:  "sh",
	}, healthyRunner())

	r := resultFor(t, c.Run(context.Background()), "CA certificate")
	if r.Status != StatusFail {
		t.Errorf("status = %s, want fail", r.Status)
	}
}

func TestCheckLoginBinary_Missing(t *testing.T) {
	c := New(Config{LoginPath: "sclogin-no-such-binary"}, healthyRunner())

	r := resultFor(t, c.Run(context.Background()), "login binary")
	if r.Status != StatusFail {
		t.Errorf("status = %s, want fail", r.Status)
	}
}

func TestSkippedChecks(t *testing.T) {
	c := New(Config{LoginPath: "sh"}, healthyRunner())

	results := c.Run(context.Background())
	for _, name := range []string{"sssd.conf", "card service", "CA certificate"} {
		if r := resultFor(t, results, name); r.Status != StatusSkip {
			t.Errorf("%s status = %s, want skip when unconfigured", name, r.Status)
		}
	}
}
