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
	"regexp"
	"time"
)

// Agent types.
const (
	AgentTypeScripted = "scripted"
	AgentTypePlugin   = "plugin"
)

// Artifact defaults used when the agent section leaves them empty.
const (
	DefaultArtifactName        = "result"
	DefaultArtifactDescription = "Result of the requested task."
)

var agentNamePattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_-]*$`)

// AgentConfig configures the hosted agent and the card that advertises it.
type AgentConfig struct {
	// Name identifies the agent in its card and in telemetry.
	Name string `yaml:"name,omitempty" json:"name,omitempty" jsonschema:"title=Name,default=assistant"`

	// Description is shown in the agent card.
	Description string `yaml:"description,omitempty" json:"description,omitempty" jsonschema:"title=Description"`

	// Version is the agent version in the card.
	Version string `yaml:"version,omitempty" json:"version,omitempty" jsonschema:"title=Version,default=1.0.0"`

	// Type selects the implementation.
	Type string `yaml:"type,omitempty" json:"type,omitempty" jsonschema:"title=Type,enum=scripted,enum=plugin,default=scripted"`

	// ArtifactName names the artifact produced on completion.
	ArtifactName string `yaml:"artifact_name,omitempty" json:"artifact_name,omitempty" jsonschema:"title=Artifact Name,default=result"`

	// ArtifactDescription describes the artifact produced on completion.
	ArtifactDescription string `yaml:"artifact_description,omitempty" json:"artifact_description,omitempty" jsonschema:"title=Artifact Description"`

	// Skills are advertised in the agent card.
	Skills []SkillConfig `yaml:"skills,omitempty" json:"skills,omitempty" jsonschema:"title=Skills"`

	// Provider identifies the organization behind the agent.
	Provider *ProviderInfo `yaml:"provider,omitempty" json:"provider,omitempty" jsonschema:"title=Provider"`

	// Scripted configures the rule-driven agent.
	Scripted ScriptedConfig `yaml:"scripted,omitempty" json:"scripted,omitempty" jsonschema:"title=Scripted Agent"`

	// Plugin configures an out-of-process agent.
	Plugin PluginConfig `yaml:"plugin,omitempty" json:"plugin,omitempty" jsonschema:"title=Plugin Agent"`
}

// SkillConfig describes one advertised skill.
type SkillConfig struct {
	ID          string   `yaml:"id" json:"id" jsonschema:"title=ID"`
	Name        string   `yaml:"name,omitempty" json:"name,omitempty" jsonschema:"title=Name"`
	Description string   `yaml:"description,omitempty" json:"description,omitempty" jsonschema:"title=Description"`
	Tags        []string `yaml:"tags,omitempty" json:"tags,omitempty" jsonschema:"title=Tags"`
	Examples    []string `yaml:"examples,omitempty" json:"examples,omitempty" jsonschema:"title=Examples"`
}

// ProviderInfo identifies the agent provider.
type ProviderInfo struct {
	Organization string `yaml:"organization" json:"organization" jsonschema:"title=Organization"`
	URL          string `yaml:"url,omitempty" json:"url,omitempty" jsonschema:"title=URL"`
}

// ScriptedConfig configures the scripted agent.
type ScriptedConfig struct {
	// Rules is the path to the YAML rules file. Watched for changes when serving.
	Rules string `yaml:"rules,omitempty" json:"rules,omitempty" jsonschema:"title=Rules File"`

	// Fallback is asked when no rule matches. Overrides the rules file's fallback.
	Fallback string `yaml:"fallback,omitempty" json:"fallback,omitempty" jsonschema:"title=Fallback Question"`

	// ProgressDelay paces progress messages.
	ProgressDelay time.Duration `yaml:"progress_delay,omitempty" json:"progress_delay,omitempty" jsonschema:"title=Progress Delay"`

	// SlotTTL expires unanswered questions.
	SlotTTL time.Duration `yaml:"slot_ttl,omitempty" json:"slot_ttl,omitempty" jsonschema:"title=Slot TTL,default=10m"`
}

// PluginConfig configures a go-plugin agent.
type PluginConfig struct {
	// Path is the plugin executable.
	Path string `yaml:"path,omitempty" json:"path,omitempty" jsonschema:"title=Executable Path"`

	// Args are passed to the executable.
	Args []string `yaml:"args,omitempty" json:"args,omitempty" jsonschema:"title=Arguments"`
}

// SetDefaults applies defaults to AgentConfig.
func (c *AgentConfig) SetDefaults() {
	if c.Name == "" {
		c.Name = "assistant"
	}
	if c.Version == "" {
		c.Version = "1.0.0"
	}
	if c.Type == "" {
		c.Type = AgentTypeScripted
	}
	if c.ArtifactName == "" {
		c.ArtifactName = DefaultArtifactName
	}
	if c.ArtifactDescription == "" {
		c.ArtifactDescription = DefaultArtifactDescription
	}
	if c.Description == "" {
		c.Description = fmt.Sprintf("%s agent served over A2A", c.Name)
	}
	for i := range c.Skills {
		if c.Skills[i].Name == "" {
			c.Skills[i].Name = c.Skills[i].ID
		}
	}
	if c.Scripted.SlotTTL == 0 {
		c.Scripted.SlotTTL = 10 * time.Minute
	}
}

// Validate checks AgentConfig.
func (c *AgentConfig) Validate() error {
	if !agentNamePattern.MatchString(c.Name) {
		return fmt.Errorf("name: %q must start with a letter and contain only letters, digits, '-' or '_'", c.Name)
	}
	switch c.Type {
	case AgentTypeScripted:
		if c.Scripted.ProgressDelay < 0 {
			return fmt.Errorf("scripted.progress_delay: must be non-negative")
		}
		if c.Scripted.SlotTTL < 0 {
			return fmt.Errorf("scripted.slot_ttl: must be non-negative")
		}
	case AgentTypePlugin:
		if c.Plugin.Path == "" {
			return fmt.Errorf("plugin.path: required for plugin agents")
		}
	default:
		return fmt.Errorf("type: invalid agent type %q (valid: %s, %s)", c.Type, AgentTypeScripted, AgentTypePlugin)
	}
	seen := make(map[string]bool, len(c.Skills))
	for i, s := range c.Skills {
		if s.ID == "" {
			return fmt.Errorf("skills[%d].id: required", i)
		}
		if seen[s.ID] {
			return fmt.Errorf("skills[%d].id: duplicate skill %q", i, s.ID)
		}
		seen[s.ID] = true
	}
	if c.Provider != nil && c.Provider.Organization == "" {
		return fmt.Errorf("provider.organization: required when provider is set")
	}
	return nil
}
