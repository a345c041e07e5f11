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

// Command parley hosts an A2A agent and talks to one.
//
// Usage:
//
//	parley serve --config parley.yaml
//	parley chat --url http://localhost:8080
//	parley ask "what's the weather in Paris?"
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/alecthomas/kong"

	"github.com/kadirpekel/parley"
	"github.com/kadirpekel/parley/pkg/config"
)

// CLI defines the command-line interface.
type CLI struct {
	Serve       ServeCmd       `cmd:"" help:"Start the A2A server."`
	Chat        ChatCmd        `cmd:"" help:"Interactive console for a remote agent."`
	Ask         AskCmd         `cmd:"" help:"Send one query and print the result."`
	Card        CardCmd        `cmd:"" help:"Show an agent card."`
	Tasks       TasksCmd       `cmd:"" help:"List persisted tasks of a conversation."`
	Validate    ValidateCmd    `cmd:"" help:"Validate configuration file."`
	Schema      SchemaCmd      `cmd:"" help:"Generate JSON Schema for the configuration."`
	PluginServe PluginServeCmd `cmd:"" name:"plugin-serve" help:"Serve the scripted agent as a plugin."`
	Version     VersionCmd     `cmd:"" help:"Show version information."`

	Config          string   `short:"c" help:"Path to config file, or key for remote sources."`
	ConfigSource    string   `name:"config-source" help:"Config source: file, consul, etcd, zookeeper." default:"file" enum:"file,consul,etcd,zookeeper"`
	ConfigEndpoints []string `name:"config-endpoints" help:"Endpoints of the remote config source." sep:","`
	LogLevel        string   `help:"Log level (debug, info, warn, error)."`
	LogFile         string   `help:"Log file path (empty = stderr)."`
	LogFormat       string   `help:"Log format (simple, text, json)."`
}

// VersionCmd shows version information.
type VersionCmd struct {
	JSON bool `help:"Print as JSON."`
}

func (c *VersionCmd) Run() error {
	info := parley.GetVersion()
	if c.JSON {
		return json.NewEncoder(os.Stdout).Encode(info)
	}
	fmt.Println(info)
	return nil
}

func main() {
	if err := config.LoadEnvFiles(); err != nil {
		fmt.Fprintln(os.Stderr, err)
	}

	cli := CLI{}
	ctx := kong.Parse(&cli,
		kong.Name("parley"),
		kong.Description("Host A2A agents and hold conversations with them"),
		kong.UsageOnError(),
	)

	cleanup, err := initLoggerFromCLI(cli.LogLevel, cli.LogFile, cli.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	if cleanup != nil {
		defer cleanup()
	}

	err = ctx.Run(&cli)
	ctx.FatalIfErrorf(err)
}
