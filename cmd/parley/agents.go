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
	"io"
	"log/slog"
	"sync"

	"github.com/kadirpekel/parley/pkg/agent"
	"github.com/kadirpekel/parley/pkg/agent/plugin"
	"github.com/kadirpekel/parley/pkg/agent/scripted"
	"github.com/kadirpekel/parley/pkg/config"
)

// agentHost owns the served agent: its plugin process and its rules watch.
// Building a new agent retires the previous one.
type agentHost struct {
	ctx context.Context

	mu        sync.Mutex
	closer    io.Closer
	stopWatch context.CancelFunc
}

func newAgentHost(ctx context.Context) *agentHost {
	return &agentHost{ctx: ctx}
}

// build creates the agent described by cfg and makes it current.
func (h *agentHost) build(cfg *config.AgentConfig) (agent.Agent, error) {
	a, closer, err := newAgent(h.ctx, cfg)
	if err != nil {
		return nil, err
	}

	stop := func() {}
	if sa, ok := a.(*scripted.Agent); ok && cfg.Scripted.Rules != "" {
		wctx, cancel := context.WithCancel(h.ctx)
		stop = cancel
		go func() {
			if err := sa.WatchRules(wctx, cfg.Scripted.Rules); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("Rules watch stopped", "path", cfg.Scripted.Rules, "error", err)
			}
		}()
	}

	h.mu.Lock()
	oldCloser, oldStop := h.closer, h.stopWatch
	h.closer, h.stopWatch = closer, stop
	h.mu.Unlock()

	retire(oldCloser, oldStop)
	return a, nil
}

// Close retires the current agent.
func (h *agentHost) Close() {
	h.mu.Lock()
	closer, stop := h.closer, h.stopWatch
	h.closer, h.stopWatch = nil, nil
	h.mu.Unlock()
	retire(closer, stop)
}

func retire(closer io.Closer, stop context.CancelFunc) {
	if stop != nil {
		stop()
	}
	if closer != nil {
		if err := closer.Close(); err != nil {
			slog.Warn("Failed to close agent", "error", err)
		}
	}
}

// newAgent builds the agent for cfg. The closer is non-nil for agents that
// hold a process.
func newAgent(ctx context.Context, cfg *config.AgentConfig) (agent.Agent, io.Closer, error) {
	switch cfg.Type {
	case config.AgentTypePlugin:
		p, err := plugin.Load(ctx, cfg.Plugin.Path, cfg.Plugin.Args...)
		if err != nil {
			return nil, nil, err
		}
		return p, p, nil
	case config.AgentTypeScripted, "":
		a, err := scripted.NewFromConfig(cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to build scripted agent: %w", err)
		}
		return a, nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown agent type %q", cfg.Type)
	}
}
