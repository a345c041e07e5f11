// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package client

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net/http"
	"os"

	"github.com/kadirpekel/parley/pkg/config"
)

// NewTransport builds an HTTP transport honoring cfg. It returns nil when
// cfg is unset so callers keep the default transport.
func NewTransport(cfg config.TLSConfig) (*http.Transport, error) {
	if !cfg.IsSet() {
		return nil, nil
	}

	tlsCfg := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: cfg.InsecureSkipVerify, //nolint:gosec // opt-in for local testing
	}

	if cfg.CACertificate != "" {
		pem, err := os.ReadFile(cfg.CACertificate)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA certificate: %w", err)
		}
		pool, err := x509.SystemCertPool()
		if err != nil || pool == nil {
			pool = x509.NewCertPool()
		}
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("no certificates found in %s", cfg.CACertificate)
		}
		tlsCfg.RootCAs = pool
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = tlsCfg
	return transport, nil
}

// NewHTTPClient builds the HTTP client used for card resolution and
// JSON-RPC calls. It sets no timeout: streaming calls last as long as their
// context. Throttled requests are retried per cfg.
func NewHTTPClient(cfg *config.ClientConfig) (*http.Client, error) {
	transport, err := NewTransport(cfg.TLS)
	if err != nil {
		return nil, err
	}
	var base http.RoundTripper = http.DefaultTransport
	if transport != nil {
		base = transport
	}

	maxRetries := config.DefaultMaxRetries
	if cfg.MaxRetries != nil {
		maxRetries = *cfg.MaxRetries
	}
	if maxRetries > 0 {
		base = NewRetryTransport(base, maxRetries, cfg.RetryBaseDelay)
	}
	return &http.Client{Transport: base}, nil
}
