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
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"github.com/kadirpekel/parley/pkg/config/provider"
)

// Config encodings understood by the loader.
const (
	FormatAuto = ""
	FormatYAML = "yaml"
	FormatJSON = "json"
	FormatTOML = "toml"
)

// FormatFromPath guesses the encoding from a file or key extension.
func FormatFromPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	case ".json":
		return FormatJSON
	case ".toml":
		return FormatTOML
	default:
		return FormatAuto
	}
}

// Loader loads and watches configuration from a Provider.
type Loader struct {
	provider provider.Provider
	format   string
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithFormat forces the encoding instead of sniffing YAML then JSON.
func WithFormat(format string) LoaderOption {
	return func(l *Loader) {
		l.format = format
	}
}

// NewLoader creates a Loader with the given provider.
func NewLoader(p provider.Provider, opts ...LoaderOption) *Loader {
	l := &Loader{
		provider: p,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load reads, parses, and processes the configuration.
func (l *Loader) Load(ctx context.Context) (*Config, error) {
	data, err := l.provider.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return Parse(data, l.format)
}

// Parse decodes raw config bytes, expands environment variables, applies
// defaults and validates.
func Parse(data []byte, format string) (*Config, error) {
	rawMap, err := parseBytes(data, format)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg := &Config{}
	if err := decodeConfig(expandEnvVars(rawMap), cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	cfg.SetDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Watch reloads the configuration whenever the provider signals a change and
// hands every valid result to onChange. Invalid reloads are logged and
// skipped so the running config stays in effect. Blocks until ctx is done.
func (l *Loader) Watch(ctx context.Context, onChange func(*Config)) error {
	changes, err := l.provider.Watch(ctx)
	if err != nil {
		return fmt.Errorf("failed to start watching: %w", err)
	}

	if changes == nil {
		slog.Info("Config watching not supported by provider", "type", l.provider.Type())
		<-ctx.Done()
		return ctx.Err()
	}

	slog.Info("Started watching for config changes", "type", l.provider.Type())

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-changes:
			if !ok {
				return ctx.Err()
			}

			cfg, err := l.Load(ctx)
			if err != nil {
				slog.Error("Failed to reload config", "error", err)
				continue
			}

			slog.Info("Configuration reloaded successfully")
			if onChange != nil {
				onChange(cfg)
			}
		}
	}
}

// Close releases resources held by the loader.
func (l *Loader) Close() error {
	return l.provider.Close()
}

// Provider returns the underlying provider.
func (l *Loader) Provider() provider.Provider {
	return l.provider
}

func parseBytes(data []byte, format string) (map[string]any, error) {
	result := map[string]any{}

	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &result); err != nil {
			return nil, fmt.Errorf("invalid YAML: %w", err)
		}
	case FormatJSON:
		if err := json.Unmarshal(data, &result); err != nil {
			return nil, fmt.Errorf("invalid JSON: %w", err)
		}
	case FormatTOML:
		if err := toml.Unmarshal(data, &result); err != nil {
			return nil, fmt.Errorf("invalid TOML: %w", err)
		}
	default:
		// YAML is a superset of JSON, so JSON only matters for its error message.
		if err := yaml.Unmarshal(data, &result); err != nil {
			if jerr := json.Unmarshal(data, &result); jerr != nil {
				return nil, fmt.Errorf("failed to parse as YAML or JSON: %w", err)
			}
		}
	}

	if result == nil {
		result = map[string]any{}
	}
	return result, nil
}

func decodeConfig(input map[string]any, output *Config) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           output,
		TagName:          "yaml",
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return fmt.Errorf("failed to create decoder: %w", err)
	}

	if err := decoder.Decode(input); err != nil {
		return fmt.Errorf("failed to decode: %w", err)
	}

	return nil
}

// LoadConfig creates a provider and loader and performs the first load.
// The format follows the path extension.
func LoadConfig(ctx context.Context, opts provider.Options) (*Config, *Loader, error) {
	p, err := provider.New(opts)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create provider: %w", err)
	}

	loader := NewLoader(p, WithFormat(FormatFromPath(opts.Path)))
	cfg, err := loader.Load(ctx)
	if err != nil {
		p.Close()
		return nil, nil, err
	}

	return cfg, loader, nil
}

// LoadConfigFile loads configuration from a local file.
func LoadConfigFile(ctx context.Context, path string) (*Config, *Loader, error) {
	return LoadConfig(ctx, provider.Options{
		Type: provider.TypeFile,
		Path: path,
	})
}
