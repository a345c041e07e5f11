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

package server

import (
	"github.com/a2aproject/a2a-go/a2a"

	"github.com/kadirpekel/parley/pkg/config"
)

// BuildAgentCard creates the A2A agent card advertised for cfg.
func BuildAgentCard(cfg *config.Config) *a2a.AgentCard {
	agentCfg := &cfg.Agent

	skills := make([]a2a.AgentSkill, 0, len(agentCfg.Skills))
	for _, skill := range agentCfg.Skills {
		skills = append(skills, a2a.AgentSkill{
			ID:          skill.ID,
			Name:        skill.Name,
			Description: skill.Description,
			Tags:        skill.Tags,
			Examples:    skill.Examples,
		})
	}
	if len(skills) == 0 {
		skills = []a2a.AgentSkill{{
			ID:          agentCfg.Name,
			Name:        agentCfg.Name,
			Description: agentCfg.Description,
			Tags:        []string{"general"},
		}}
	}

	card := &a2a.AgentCard{
		Name:               agentCfg.Name,
		Description:        agentCfg.Description,
		URL:                cfg.Server.URL(),
		Version:            agentCfg.Version,
		ProtocolVersion:    "1.0",
		DefaultInputModes:  []string{"text/plain"},
		DefaultOutputModes: []string{"text/plain"},
		Skills:             skills,
		Capabilities: a2a.AgentCapabilities{
			Streaming: true,
		},
		PreferredTransport: a2a.TransportProtocolJSONRPC,
	}

	if grpcAddr := cfg.Server.GRPCAddress(); grpcAddr != "" {
		card.AdditionalInterfaces = []a2a.AgentInterface{
			{Transport: a2a.TransportProtocolJSONRPC, URL: card.URL},
			{Transport: a2a.TransportProtocolGRPC, URL: grpcAddr},
		}
	}

	if p := agentCfg.Provider; p != nil {
		card.Provider = &a2a.AgentProvider{Org: p.Organization, URL: p.URL}
	}

	return card
}
