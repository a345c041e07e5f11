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
	"github.com/kadirpekel/parley/pkg/agent/plugin"
	"github.com/kadirpekel/parley/pkg/agent/scripted"
	"github.com/kadirpekel/parley/pkg/config"
)

// PluginServeCmd serves the scripted agent over the plugin protocol. It is
// started by a host configured with agent.type: plugin, not by hand.
type PluginServeCmd struct {
	Name     string `help:"Agent name." default:"scripted"`
	Rules    string `help:"Rules file (defaults to the built-in rules)." type:"path"`
	Fallback string `help:"Question asked when no rule matches."`
}

func (c *PluginServeCmd) Run() error {
	cfg := config.AgentConfig{
		Name: c.Name,
		Type: config.AgentTypeScripted,
		Scripted: config.ScriptedConfig{
			Rules:    c.Rules,
			Fallback: c.Fallback,
		},
	}
	cfg.SetDefaults()

	a, err := scripted.NewFromConfig(&cfg)
	if err != nil {
		return err
	}
	plugin.Serve(a)
	return nil
}
