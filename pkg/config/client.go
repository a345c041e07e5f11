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

package config

import (
	"fmt"
	"os"
	"time"
)

// DefaultClientURL is the agent the chat and ask commands talk to by default.
const DefaultClientURL = "http://localhost:8080"

// ClientConfig configures the conversation client commands.
type ClientConfig struct {
	// URL of the remote agent. Its card is fetched from the well-known path.
	URL string `yaml:"url,omitempty" json:"url,omitempty" jsonschema:"title=Agent URL,default=http://localhost:8080"`

	// Card is a local agent card file, used instead of URL when set.
	Card string `yaml:"card,omitempty" json:"card,omitempty" jsonschema:"title=Agent Card File"`

	// Timeout bounds card resolution.
	Timeout time.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty" jsonschema:"title=Timeout,default=30s"`

	// TLS configures the HTTP transport.
	TLS TLSConfig `yaml:"tls,omitempty" json:"tls,omitempty" jsonschema:"title=TLS"`

	// MaxRetries bounds retries of throttled or unavailable requests. Zero disables them.
	MaxRetries *int `yaml:"max_retries,omitempty" json:"max_retries,omitempty" jsonschema:"title=Max Retries,minimum=0,default=3"`

	// RetryBaseDelay is the first backoff when the server sends no Retry-After.
	RetryBaseDelay time.Duration `yaml:"retry_base_delay,omitempty" json:"retry_base_delay,omitempty" jsonschema:"title=Retry Base Delay,default=1s"`
}

// DefaultMaxRetries applies when max_retries is unset.
const DefaultMaxRetries = 3

// TLSConfig configures outbound TLS.
type TLSConfig struct {
	// InsecureSkipVerify disables certificate verification.
	InsecureSkipVerify bool `yaml:"insecure_skip_verify,omitempty" json:"insecure_skip_verify,omitempty" jsonschema:"title=Skip Verify"`

	// CACertificate is a PEM bundle added to the system roots.
	CACertificate string `yaml:"ca_certificate,omitempty" json:"ca_certificate,omitempty" jsonschema:"title=CA Certificate"`
}

// IsSet reports whether any TLS option deviates from the defaults.
func (c TLSConfig) IsSet() bool {
	return c.InsecureSkipVerify || c.CACertificate != ""
}

// SetDefaults applies defaults to ClientConfig.
func (c *ClientConfig) SetDefaults() {
	if c.URL == "" && c.Card == "" {
		c.URL = DefaultClientURL
	}
	if c.Timeout == 0 {
		c.Timeout = 30 * time.Second
	}
	if c.MaxRetries == nil {
		n := DefaultMaxRetries
		c.MaxRetries = &n
	}
	if c.RetryBaseDelay == 0 {
		c.RetryBaseDelay = time.Second
	}
}

// Validate checks ClientConfig.
func (c *ClientConfig) Validate() error {
	if c.Timeout < 0 {
		return fmt.Errorf("timeout: must be non-negative")
	}
	if c.MaxRetries != nil && *c.MaxRetries < 0 {
		return fmt.Errorf("max_retries: must be non-negative")
	}
	if c.RetryBaseDelay < 0 {
		return fmt.Errorf("retry_base_delay: must be non-negative")
	}
	if c.TLS.CACertificate != "" {
		if _, err := os.Stat(c.TLS.CACertificate); err != nil {
			return fmt.Errorf("tls.ca_certificate: %w", err)
		}
	}
	return nil
}

// Source returns the card location to resolve: the card file when set, otherwise the URL.
func (c *ClientConfig) Source() string {
	if c.Card != "" {
		return c.Card
	}
	return c.URL
}
