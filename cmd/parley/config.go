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

package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kadirpekel/parley/pkg/config"
	"github.com/kadirpekel/parley/pkg/config/provider"
)

// loadConfig loads the configuration named by the global flags. Without
// --config every default applies and the returned loader is nil.
func loadConfig(ctx context.Context, cli *CLI) (*config.Config, *config.Loader, error) {
	if cli.Config == "" {
		slog.Debug("No config given, using defaults")
		return config.Default(), nil, nil
	}

	typ, err := provider.ParseType(cli.ConfigSource)
	if err != nil {
		return nil, nil, err
	}
	cfg, loader, err := config.LoadConfig(ctx, provider.Options{
		Type:      typ,
		Path:      cli.Config,
		Endpoints: cli.ConfigEndpoints,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	slog.Info("Loaded configuration", "source", typ, "path", cli.Config)
	return cfg, loader, nil
}
