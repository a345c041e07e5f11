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
	"encoding/json"
	"fmt"
	"os"

	"github.com/kadirpekel/parley/pkg/config"
)

// SchemaCmd prints the JSON Schema of the configuration to stdout.
type SchemaCmd struct {
	Compact bool `help:"Compact JSON output (no indentation)."`
}

func (c *SchemaCmd) Run() error {
	if c.Compact {
		if err := json.NewEncoder(os.Stdout).Encode(config.Schema()); err != nil {
			return fmt.Errorf("failed to encode schema: %w", err)
		}
		return nil
	}
	data, err := config.SchemaJSON()
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
