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
	"net"
	"strconv"
	"strings"
	"time"
)

// ServerConfig configures the A2A host.
type ServerConfig struct {
	// Host is the interface to bind.
	Host string `yaml:"host,omitempty" json:"host,omitempty" jsonschema:"title=Host,default=0.0.0.0"`

	// Port is the HTTP (JSON-RPC) port.
	Port int `yaml:"port,omitempty" json:"port,omitempty" jsonschema:"title=Port,minimum=1,maximum=65535,default=8080"`

	// GRPCPort enables the gRPC transport when non-zero.
	GRPCPort int `yaml:"grpc_port,omitempty" json:"grpc_port,omitempty" jsonschema:"title=gRPC Port,minimum=0,maximum=65535"`

	// PublicURL is advertised in the agent card. Derived from host and port when empty.
	PublicURL string `yaml:"public_url,omitempty" json:"public_url,omitempty" jsonschema:"title=Public URL"`

	// ReadTimeout bounds reading a request.
	ReadTimeout time.Duration `yaml:"read_timeout,omitempty" json:"read_timeout,omitempty" jsonschema:"title=Read Timeout,default=30s"`

	// WriteTimeout bounds writing a response. Zero leaves streaming responses unbounded.
	WriteTimeout time.Duration `yaml:"write_timeout,omitempty" json:"write_timeout,omitempty" jsonschema:"title=Write Timeout"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout,omitempty" json:"shutdown_timeout,omitempty" jsonschema:"title=Shutdown Timeout,default=5s"`

	// TrustProxyHeaders takes the client address from X-Forwarded-For or
	// X-Real-IP. Enable only behind a proxy that sets them.
	TrustProxyHeaders bool `yaml:"trust_proxy_headers,omitempty" json:"trust_proxy_headers,omitempty" jsonschema:"title=Trust Proxy Headers"`

	// CORS configures cross-origin access.
	CORS CORSConfig `yaml:"cors,omitempty" json:"cors,omitempty" jsonschema:"title=CORS"`

	// RateLimit throttles JSON-RPC requests per client.
	RateLimit RateLimitConfig `yaml:"rate_limit,omitempty" json:"rate_limit,omitempty" jsonschema:"title=Rate Limit"`
}

// CORSConfig configures cross-origin resource sharing.
type CORSConfig struct {
	// AllowedOrigins lists permitted origins. Empty or "*" allows any origin.
	AllowedOrigins []string `yaml:"allowed_origins,omitempty" json:"allowed_origins,omitempty" jsonschema:"title=Allowed Origins"`
}

// AllowsOrigin reports whether origin may access the server.
func (c *CORSConfig) AllowsOrigin(origin string) bool {
	if len(c.AllowedOrigins) == 0 {
		return true
	}
	for _, o := range c.AllowedOrigins {
		if o == "*" || strings.EqualFold(o, origin) {
			return true
		}
	}
	return false
}

// SetDefaults applies defaults to ServerConfig.
func (c *ServerConfig) SetDefaults() {
	if c.Host == "" {
		c.Host = "0.0.0.0"
	}
	if c.Port == 0 {
		c.Port = 8080
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 30 * time.Second
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 5 * time.Second
	}
	c.RateLimit.SetDefaults()
}

// Validate checks ServerConfig.
func (c *ServerConfig) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port: must be between 1 and 65535, got %d", c.Port)
	}
	if c.GRPCPort < 0 || c.GRPCPort > 65535 {
		return fmt.Errorf("grpc_port: must be between 0 and 65535, got %d", c.GRPCPort)
	}
	if c.GRPCPort != 0 && c.GRPCPort == c.Port {
		return fmt.Errorf("grpc_port: must differ from port %d", c.Port)
	}
	if c.PublicURL != "" && !strings.HasPrefix(c.PublicURL, "http://") && !strings.HasPrefix(c.PublicURL, "https://") {
		return fmt.Errorf("public_url: must be an http(s) URL, got %q", c.PublicURL)
	}
	if c.ReadTimeout < 0 || c.WriteTimeout < 0 || c.ShutdownTimeout < 0 {
		return fmt.Errorf("timeouts: must be non-negative")
	}
	if err := c.RateLimit.Validate(); err != nil {
		return fmt.Errorf("rate_limit.%w", err)
	}
	return nil
}

// Address returns the HTTP listen address.
func (c *ServerConfig) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// GRPCAddress returns the gRPC listen address, or "" when gRPC is disabled.
func (c *ServerConfig) GRPCAddress() string {
	if c.GRPCPort == 0 {
		return ""
	}
	return net.JoinHostPort(c.Host, strconv.Itoa(c.GRPCPort))
}

// URL returns the base URL advertised to clients.
func (c *ServerConfig) URL() string {
	if c.PublicURL != "" {
		return strings.TrimSuffix(c.PublicURL, "/")
	}
	host := c.Host
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return "http://" + net.JoinHostPort(host, strconv.Itoa(c.Port))
}

// RateLimitConfig configures per-client request throttling.
type RateLimitConfig struct {
	// Enabled turns on rate limiting.
	Enabled *bool `yaml:"enabled,omitempty" json:"enabled,omitempty" jsonschema:"title=Enabled,default=false"`

	// RequestsPerSecond is the sustained request rate per client.
	RequestsPerSecond float64 `yaml:"requests_per_second,omitempty" json:"requests_per_second,omitempty" jsonschema:"title=Requests Per Second,default=10"`

	// Burst is the number of requests allowed above the sustained rate.
	Burst int `yaml:"burst,omitempty" json:"burst,omitempty" jsonschema:"title=Burst,default=20"`

	// IdleTTL evicts limiters for clients that have been quiet this long.
	IdleTTL time.Duration `yaml:"idle_ttl,omitempty" json:"idle_ttl,omitempty" jsonschema:"title=Idle TTL,default=10m"`
}

// IsEnabled returns true if rate limiting is enabled.
func (c *RateLimitConfig) IsEnabled() bool {
	return c != nil && BoolValue(c.Enabled, false)
}

// SetDefaults applies defaults to RateLimitConfig.
func (c *RateLimitConfig) SetDefaults() {
	if c.Enabled == nil {
		c.Enabled = BoolPtr(false)
	}
	if c.RequestsPerSecond == 0 {
		c.RequestsPerSecond = 10
	}
	if c.Burst == 0 {
		c.Burst = 20
	}
	if c.IdleTTL == 0 {
		c.IdleTTL = 10 * time.Minute
	}
}

// Validate checks RateLimitConfig.
func (c *RateLimitConfig) Validate() error {
	if !c.IsEnabled() {
		return nil
	}
	if c.RequestsPerSecond <= 0 {
		return fmt.Errorf("requests_per_second: must be positive")
	}
	if c.Burst <= 0 {
		return fmt.Errorf("burst: must be positive")
	}
	return nil
}
