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

// Package ipa provides the identity-provider (FreeIPA) server fixture.
// The harness never administers the server; it only verifies the server is
// reachable before scenarios that authenticate provider-backed users run.
package ipa

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"sync"
	"time"
)

// ErrUnreachable indicates the identity-provider server failed its
// reachability probe. Every scenario depending on the fixture reports a
// setup error, not an assertion failure.
var ErrUnreachable = errors.New("ipa: server unreachable")

// DefaultProbeTimeout bounds the reachability probe.
const DefaultProbeTimeout = 10 * time.Second

// Spec declares an identity-provider server fixture.
type Spec struct {
	// Name is the fixture key referenced by user specs.
	Name string

	// Hostname is the server's fully qualified hostname.
	Hostname string

	// Domain is the IPA domain.
	Domain string

	// Realm is the Kerberos realm.
	Realm string

	// CACert is an optional path to the IPA CA certificate used to trust
	// the server UI endpoint during the probe.
	CACert string
}

// Server is a materialized identity-provider fixture.
type Server struct {
	Name     string
	Hostname string
	Domain   string
	Realm    string

	caCert string
}

// Probe verifies the server resolves in DNS and answers HTTPS on its web
// UI. Probe failures map to ErrUnreachable.
func (s *Server) Probe(ctx context.Context) error {
	probeCtx, cancel := context.WithTimeout(ctx, DefaultProbeTimeout)
	defer cancel()

	if _, err := net.DefaultResolver.LookupHost(probeCtx, s.Hostname); err != nil {
		return fmt.Errorf("%w: DNS lookup of %s: %v", ErrUnreachable, s.Hostname, err)
	}

	transport := &http.Transport{}
	if s.caCert != "" {
		pem, err := os.ReadFile(s.caCert)
		if err != nil {
			return fmt.Errorf("%w: reading CA certificate %s: %v", ErrUnreachable, s.caCert, err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return fmt.Errorf("%w: no certificates in %s", ErrUnreachable, s.caCert)
		}
		transport.TLSClientConfig = &tls.Config{RootCAs: pool}
	}
	client := &http.Client{Transport: transport}

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet,
		fmt.Sprintf("https://%s/ipa/ui/", s.Hostname), nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("%w: server UI returned %s", ErrUnreachable, resp.Status)
	}
	return nil
}

// Factory materializes identity-provider fixtures at most once per process
// and hands the same *Server to every scenario referencing the fixture.
type Factory struct {
	mu      sync.Mutex
	specs   map[string]Spec
	entries map[string]*entry
}

type entry struct {
	once   sync.Once
	server *Server
	err    error
}

// NewFactory creates a Factory over the declared specs.
func NewFactory(specs []Spec) *Factory {
	m := make(map[string]Spec, len(specs))
	for _, s := range specs {
		m[s.Name] = s
	}
	return &Factory{specs: m, entries: make(map[string]*entry)}
}

// Materialize returns the named server fixture, probing it on first use.
// The probe result is cached for the process lifetime: a dead server fails
// every dependent scenario the same way.
func (f *Factory) Materialize(ctx context.Context, name string) (*Server, error) {
	f.mu.Lock()
	spec, ok := f.specs[name]
	if !ok {
		f.mu.Unlock()
		return nil, fmt.Errorf("ipa: unknown server fixture %q", name)
	}
	e, ok := f.entries[name]
	if !ok {
		e = &entry{}
		f.entries[name] = e
	}
	f.mu.Unlock()

	e.once.Do(func() {
		server := &Server{
			Name:     spec.Name,
			Hostname: spec.Hostname,
			Domain:   spec.Domain,
			Realm:    spec.Realm,
			caCert:   spec.CACert,
		}
		if err := server.Probe(ctx); err != nil {
			e.err = err
			return
		}
		e.server = server
	})
	return e.server, e.err
}
