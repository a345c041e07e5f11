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

// Package plugin hosts agents in separate processes over hashicorp/go-plugin.
//
// The plugin binary calls Serve with its agent. The host calls Load and gets
// back an agent.Agent whose streams are pulled step by step over net/rpc.
package plugin

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"net/rpc"
	"os/exec"

	goplugin "github.com/hashicorp/go-plugin"

	"github.com/kadirpekel/parley/pkg/agent"
	"github.com/kadirpekel/parley/pkg/logger"
)

// PluginName is the key the agent is dispensed under.
const PluginName = "agent"

// Handshake must match between host and plugin.
var Handshake = goplugin.HandshakeConfig{
	ProtocolVersion:  1,
	MagicCookieKey:   "PARLEY_PLUGIN",
	MagicCookieValue: "parley_agent_v1",
}

// AgentPlugin implements goplugin.Plugin for agents.
type AgentPlugin struct {
	// Impl is set on the plugin side only.
	Impl agent.Agent
}

func (p *AgentPlugin) Server(*goplugin.MuxBroker) (interface{}, error) {
	return &RPCServer{Impl: p.Impl}, nil
}

func (*AgentPlugin) Client(_ *goplugin.MuxBroker, c *rpc.Client) (interface{}, error) {
	return &RPCClient{client: c}, nil
}

// Serve serves a as a plugin. It blocks until the host disconnects.
func Serve(a agent.Agent) {
	goplugin.Serve(&goplugin.ServeConfig{
		HandshakeConfig: Handshake,
		Plugins: map[string]goplugin.Plugin{
			PluginName: &AgentPlugin{Impl: a},
		},
		Logger: logger.HCLog("plugin", slog.Default()),
	})
}

// Agent is an agent running in a plugin process.
type Agent struct {
	client *goplugin.Client
	remote *RPCClient
	name   string
}

// Load launches the plugin at path and connects to its agent.
func Load(ctx context.Context, path string, args ...string) (*Agent, error) {
	client := goplugin.NewClient(&goplugin.ClientConfig{
		HandshakeConfig:  Handshake,
		Plugins:          map[string]goplugin.Plugin{PluginName: &AgentPlugin{}},
		Cmd:              exec.CommandContext(ctx, path, args...),
		Logger:           logger.HCLog("plugin", slog.Default()),
		AllowedProtocols: []goplugin.Protocol{goplugin.ProtocolNetRPC},
	})

	rpcClient, err := client.Client()
	if err != nil {
		client.Kill()
		return nil, fmt.Errorf("failed to start plugin %s: %w", path, err)
	}

	raw, err := rpcClient.Dispense(PluginName)
	if err != nil {
		client.Kill()
		return nil, fmt.Errorf("failed to dispense plugin: %w", err)
	}

	remote, ok := raw.(*RPCClient)
	if !ok {
		client.Kill()
		return nil, fmt.Errorf("plugin %s does not serve an agent", path)
	}

	a := &Agent{client: client, remote: remote, name: remote.Name()}
	slog.Info("Plugin agent loaded", "path", path, "agent", a.name)
	return a, nil
}

// Name implements agent.Agent.
func (a *Agent) Name() string {
	return a.name
}

// Stream implements agent.Agent.
func (a *Agent) Stream(ctx context.Context, req agent.Request) iter.Seq2[agent.Step, error] {
	return a.remote.Stream(ctx, req)
}

// Close kills the plugin process.
func (a *Agent) Close() error {
	a.client.Kill()
	return nil
}

var _ agent.Agent = (*Agent)(nil)
