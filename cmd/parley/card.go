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

	"github.com/kadirpekel/parley/pkg/client"
)

// CardCmd resolves and prints an agent card.
type CardCmd struct {
	Source   string `arg:"" optional:"" help:"Agent URL or card file. Defaults to the configured client source."`
	Insecure bool   `help:"Skip TLS certificate verification."`
}

func (c *CardCmd) Run(cli *CLI) error {
	ctx := context.Background()

	flags := RemoteFlags{URL: c.Source, Insecure: c.Insecure}
	cfg, err := flags.clientConfig(ctx, cli)
	if err != nil {
		return err
	}
	httpClient, err := client.NewHTTPClient(&cfg.Client)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.Client.Timeout)
	defer cancel()
	card, err := client.ResolveCard(ctx, cfg.Client.Source(), httpClient)
	if err != nil {
		return err
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(card); err != nil {
		return fmt.Errorf("failed to encode card: %w", err)
	}
	if client.SupportsStreaming(card) {
		fmt.Fprintln(os.Stderr, "Streaming: supported")
	} else {
		fmt.Fprintln(os.Stderr, "Streaming: not supported")
	}
	return nil
}
