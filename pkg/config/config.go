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

// Package config defines the parley configuration model and its loaders.
//
// Every section follows the same lifecycle: decode, SetDefaults, Validate.
// Validation errors are prefixed with the section path so that a failure
// reads like "server.port: must be between 1 and 65535".
//
// Example:
//
//	version: "1"
//	server:
//	  port: 8080
//	agent:
//	  name: weather
//	  type: scripted
//	  artifact_name: weather_report
//	  scripted:
//	    rules: ./rules.yaml
//	tasks:
//	  backend: sql
//	  database:
//	    driver: sqlite
//	    database: ./parley.db
package config

import (
	"fmt"

	"github.com/kadirpekel/parley/pkg/observability"
)

// CurrentVersion is the config schema version written by `parley schema`.
const CurrentVersion = "1"

// Config is the root configuration.
type Config struct {
	// Version of the config schema.
	Version string `yaml:"version,omitempty" json:"version,omitempty" jsonschema:"title=Version,default=1"`

	// Server configures the A2A host.
	Server ServerConfig `yaml:"server,omitempty" json:"server,omitempty" jsonschema:"title=Server"`

	// Agent configures the hosted agent and its card.
	Agent AgentConfig `yaml:"agent,omitempty" json:"agent,omitempty" jsonschema:"title=Agent"`

	// Tasks configures task persistence.
	Tasks TasksConfig `yaml:"tasks,omitempty" json:"tasks,omitempty" jsonschema:"title=Tasks"`

	// Observability configures tracing and metrics.
	Observability observability.Config `yaml:"observability,omitempty" json:"observability,omitempty" jsonschema:"title=Observability"`

	// Client configures the chat and ask commands.
	Client ClientConfig `yaml:"client,omitempty" json:"client,omitempty" jsonschema:"title=Client"`

	// Logger configures logging.
	Logger LoggerConfig `yaml:"logger,omitempty" json:"logger,omitempty" jsonschema:"title=Logger"`
}

// SetDefaults applies defaults to every section.
func (c *Config) SetDefaults() {
	if c.Version == "" {
		c.Version = CurrentVersion
	}
	c.Server.SetDefaults()
	c.Agent.SetDefaults()
	c.Tasks.SetDefaults()
	c.Observability.SetDefaults()
	c.Client.SetDefaults()
	c.Logger.SetDefaults()

	if c.Observability.Tracing.ServiceVersion == "" {
		c.Observability.Tracing.ServiceVersion = c.Agent.Version
	}
}

// Validate checks every section.
func (c *Config) Validate() error {
	if c.Version != CurrentVersion {
		return fmt.Errorf("version: unsupported config version %q (supported: %s)", c.Version, CurrentVersion)
	}
	sections := []struct {
		name     string
		validate func() error
	}{
		{"server", c.Server.Validate},
		{"agent", c.Agent.Validate},
		{"tasks", c.Tasks.Validate},
		{"observability", c.Observability.Validate},
		{"client", c.Client.Validate},
		{"logger", c.Logger.Validate},
	}
	for _, s := range sections {
		if err := s.validate(); err != nil {
			return fmt.Errorf("%s.%w", s.name, err)
		}
	}
	return nil
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.SetDefaults()
	return cfg
}

// BoolPtr returns a pointer to b.
func BoolPtr(b bool) *bool {
	return &b
}

// BoolValue dereferences b, returning def when b is nil.
func BoolValue(b *bool, def bool) bool {
	if b == nil {
		return def
	}
	return *b
}
