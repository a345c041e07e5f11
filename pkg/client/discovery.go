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

package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/a2aproject/a2a-go/a2aclient"
	"github.com/a2aproject/a2a-go/a2aclient/agentcard"
	"github.com/a2aproject/a2a-go/a2asrv"
	"github.com/tailscale/hujson"
)

// ResolveCard loads an agent card. http(s) sources are fetched from the
// agent's well-known path; anything else is read as a local file, which may
// contain comments and trailing commas. A nil httpClient uses the default.
func ResolveCard(ctx context.Context, source string, httpClient *http.Client) (*a2a.AgentCard, error) {
	if source == "" {
		return nil, errors.New("agent card source is required")
	}

	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		base := strings.TrimSuffix(strings.TrimSuffix(source, "/"), a2asrv.WellKnownAgentCardPath)
		resolver := agentcard.DefaultResolver
		if httpClient != nil {
			resolver = &agentcard.Resolver{Client: httpClient}
		}
		card, err := resolver.Resolve(ctx, base)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch agent card from %s: %w", base, err)
		}
		return card, nil
	}

	data, err := os.ReadFile(source)
	if err != nil {
		return nil, fmt.Errorf("failed to read agent card from %q: %w", source, err)
	}
	return ParseCard(data)
}

// ParseCard decodes an agent card, accepting JSON with comments and
// trailing commas.
func ParseCard(data []byte) (*a2a.AgentCard, error) {
	std, err := hujson.Standardize(data)
	if err != nil {
		return nil, fmt.Errorf("invalid agent card: %w", err)
	}
	var card a2a.AgentCard
	if err := json.Unmarshal(std, &card); err != nil {
		return nil, fmt.Errorf("failed to unmarshal agent card: %w", err)
	}
	return &card, nil
}

// SupportsStreaming reports whether card advertises streaming.
func SupportsStreaming(card *a2a.AgentCard) bool {
	return card != nil && card.Capabilities.Streaming
}

// Dial creates a protocol client for card. A nil httpClient uses the
// a2aclient defaults.
func Dial(ctx context.Context, card *a2a.AgentCard, httpClient *http.Client) (*a2aclient.Client, error) {
	var opts []a2aclient.FactoryOption
	if httpClient != nil {
		opts = append(opts, a2aclient.WithJSONRPCTransport(httpClient))
	}
	client, err := a2aclient.NewFromCard(ctx, card, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create client for %s: %w", card.Name, err)
	}
	return client, nil
}
