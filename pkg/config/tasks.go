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

import "fmt"

// Task store backends.
const (
	TaskBackendMemory = "memory"
	TaskBackendSQL    = "sql"
)

// TasksConfig configures where tasks are persisted.
type TasksConfig struct {
	// Backend selects the store: "memory" (default) or "sql".
	Backend string `yaml:"backend,omitempty" json:"backend,omitempty" jsonschema:"title=Backend,enum=memory,enum=sql,default=memory"`

	// Database is required for the sql backend.
	Database *DatabaseConfig `yaml:"database,omitempty" json:"database,omitempty" jsonschema:"title=Database"`
}

// SetDefaults applies defaults to TasksConfig.
func (c *TasksConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = TaskBackendMemory
	}
	if c.Database != nil {
		c.Database.SetDefaults()
	}
}

// Validate checks TasksConfig.
func (c *TasksConfig) Validate() error {
	switch c.Backend {
	case TaskBackendMemory:
		return nil
	case TaskBackendSQL:
		if c.Database == nil {
			return fmt.Errorf("database: required for the sql backend")
		}
		if err := c.Database.Validate(); err != nil {
			return fmt.Errorf("database.%w", err)
		}
		return nil
	default:
		return fmt.Errorf("backend: invalid task backend %q (valid: %s, %s)", c.Backend, TaskBackendMemory, TaskBackendSQL)
	}
}
