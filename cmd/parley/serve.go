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
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"golang.org/x/sync/errgroup"

	"github.com/kadirpekel/parley/pkg/config"
	"github.com/kadirpekel/parley/pkg/observability"
	"github.com/kadirpekel/parley/pkg/server"
	"github.com/kadirpekel/parley/pkg/task"
)

// ServeCmd starts the A2A server.
type ServeCmd struct {
	Host  string `help:"Interface to bind (overrides config)."`
	Port  int    `help:"Port to listen on (overrides config)."`
	Watch bool   `help:"Watch the config source and reload the agent on change."`
}

func (c *ServeCmd) Run(cli *CLI) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, loader, err := loadConfig(ctx, cli)
	if err != nil {
		return err
	}
	if loader != nil {
		defer loader.Close()
	}
	c.override(cfg)

	cleanup, err := applyConfigLogger(cli, cfg)
	if err != nil {
		return err
	}
	if cleanup != nil {
		defer cleanup()
	}

	obs, err := observability.NewManager(ctx, cfg.Observability)
	if err != nil {
		return fmt.Errorf("failed to initialize observability: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := obs.Shutdown(shutdownCtx); err != nil {
			slog.Warn("Observability shutdown failed", "error", err)
		}
	}()

	agents := newAgentHost(ctx)
	defer agents.Close()
	a, err := agents.build(&cfg.Agent)
	if err != nil {
		return err
	}

	// Shared so that SQLite sees a single connection.
	dbPool := config.NewDBPool()
	defer dbPool.Close()

	taskStore, err := task.NewFromConfig(ctx, cfg, dbPool)
	if err != nil {
		return fmt.Errorf("failed to create task store: %w", err)
	}

	executor := server.NewExecutor(server.ExecutorConfig{
		Agent:               a,
		ArtifactName:        cfg.Agent.ArtifactName,
		ArtifactDescription: cfg.Agent.ArtifactDescription,
		Tracer:              obs.Tracer(),
		Metrics:             obs.Recorder(),
	})

	serverOpts := []server.HTTPServerOption{server.WithObservability(obs)}
	if taskStore != nil {
		serverOpts = append(serverOpts, server.WithTaskStore(taskStore))
		slog.Info("Task persistence enabled", "backend", cfg.Tasks.Backend, "driver", cfg.Tasks.Database.Driver)
	}
	srv := server.NewHTTPServer(cfg, executor, serverOpts...)

	printStartup(cfg, srv, obs)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Start(gctx)
	})

	if c.Watch && loader != nil {
		g.Go(func() error {
			err := loader.Watch(gctx, func(next *config.Config) {
				c.override(next)
				reloaded, err := agents.build(&next.Agent)
				if err != nil {
					slog.Error("Failed to rebuild agent, keeping the current one", "error", err)
					return
				}
				srv.UpdateAgent(next, reloaded)
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("Config watch stopped", "error", err)
			}
			return nil
		})
	}

	err = g.Wait()
	slog.Info("Shut down")
	return err
}

// override applies flags on top of cfg.
func (c *ServeCmd) override(cfg *config.Config) {
	if c.Host != "" {
		cfg.Server.Host = c.Host
	}
	if c.Port != 0 {
		cfg.Server.Port = c.Port
	}
}

func printStartup(cfg *config.Config, srv *server.HTTPServer, obs *observability.Manager) {
	green := color.New(color.FgGreen, color.Bold)
	out := os.Stdout

	fmt.Fprintln(out)
	green.Fprintf(out, "parley is serving %q\n", cfg.Agent.Name)
	fmt.Fprintf(out, "   JSON-RPC:    %s/\n", srv.URL())
	fmt.Fprintf(out, "   Agent Card:  %s/.well-known/agent-card.json\n", srv.URL())
	fmt.Fprintf(out, "   Health:      %s/health\n", srv.URL())
	if addr := srv.GRPCAddress(); addr != "" {
		fmt.Fprintf(out, "   gRPC:        %s\n", addr)
	}
	fmt.Fprintf(out, "   Agent:       %s\n", cfg.Agent.Type)

	if cfg.Tasks.Backend == config.TaskBackendSQL && cfg.Tasks.Database != nil {
		fmt.Fprintf(out, "   Tasks:       %s (%s)\n", cfg.Tasks.Database.Driver, cfg.Tasks.Database.Database)
	} else {
		fmt.Fprintf(out, "   Tasks:       in-memory (not persisted)\n")
	}

	if tracing := cfg.Observability.Tracing; tracing.Enabled {
		fmt.Fprintf(out, "   Tracing:     %s (%s)\n", tracing.Exporter, tracing.Endpoint)
	}
	if obs.MetricsEnabled() {
		fmt.Fprintf(out, "   Metrics:     %s%s\n", srv.URL(), obs.MetricsEndpoint())
	}
	fmt.Fprintln(out, "\nPress Ctrl+C to stop")
}
