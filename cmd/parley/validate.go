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
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kadirpekel/parley/pkg/config"
)

// ValidateCmd validates a configuration file.
type ValidateCmd struct {
	Path        string `arg:"" name:"config" help:"Configuration file path." placeholder:"PATH" type:"path"`
	Format      string `short:"f" help:"Output format: compact, verbose, json." default:"compact" enum:"compact,verbose,json"`
	PrintConfig bool   `short:"p" name:"print-config" help:"Print the expanded configuration (with defaults applied and env vars resolved)."`
}

func (c *ValidateCmd) Run() error {
	// LoadConfigFile applies defaults and validates.
	cfg, loader, err := config.LoadConfigFile(context.Background(), c.Path)
	if err != nil {
		return printLoadError(c.Format, c.Path, err)
	}
	defer loader.Close()

	if c.PrintConfig {
		return printExpandedConfig(c.Format, c.Path, cfg)
	}
	printSuccess(c.Format, c.Path)
	return nil
}

// validationResult is the json output of the validate command.
type validationResult struct {
	Valid bool   `json:"valid"`
	File  string `json:"file"`
	Error string `json:"error,omitempty"`
}

func printLoadError(format, file string, err error) error {
	switch format {
	case "json":
		printJSON(validationResult{File: file, Error: err.Error()})
	case "verbose":
		fmt.Fprintf(os.Stderr, "Configuration Error\n")
		fmt.Fprintf(os.Stderr, "===================\n\n")
		fmt.Fprintf(os.Stderr, "File:    %s\n", file)
		fmt.Fprintf(os.Stderr, "Error:   %s\n", err)
	default:
		fmt.Fprintf(os.Stderr, "%s: %s\n", file, err)
	}
	return fmt.Errorf("config validation failed")
}

func printSuccess(format, file string) {
	switch format {
	case "json":
		printJSON(validationResult{Valid: true, File: file})
	case "verbose":
		fmt.Printf("Configuration Validation Successful\n")
		fmt.Printf("===================================\n\n")
		fmt.Printf("File:   %s\n", file)
		fmt.Printf("Status: OK\n")
	default:
		fmt.Printf("%s: valid\n", file)
	}
}

func printExpandedConfig(format, file string, cfg *config.Config) error {
	if format == "json" {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(cfg); err != nil {
			return fmt.Errorf("failed to encode config as JSON: %w", err)
		}
		return nil
	}

	fmt.Printf("# Expanded configuration from: %s\n\n", file)
	encoder := yaml.NewEncoder(os.Stdout)
	encoder.SetIndent(2)
	defer encoder.Close()
	if err := encoder.Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config as YAML: %w", err)
	}
	return nil
}

func printJSON(v any) {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding JSON: %v\n", err)
	}
}
