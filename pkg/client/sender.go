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
	"fmt"
	"iter"

	"github.com/a2aproject/a2a-go/a2a"
)

// UnaryClient is the blocking half of a protocol client.
type UnaryClient interface {
	SendMessage(ctx context.Context, params *a2a.MessageSendParams) (a2a.SendMessageResult, error)
}

// StreamingClient can both stream and block.
type StreamingClient interface {
	Sender
	UnaryClient
}

// NewSender returns c itself when card advertises streaming. Otherwise each
// turn is a single blocking call whose result is replayed as one event.
func NewSender(c StreamingClient, card *a2a.AgentCard) Sender {
	if SupportsStreaming(card) {
		return c
	}
	return unarySender{client: c}
}

type unarySender struct {
	client UnaryClient
}

func (u unarySender) SendStreamingMessage(ctx context.Context, params *a2a.MessageSendParams) iter.Seq2[a2a.Event, error] {
	return func(yield func(a2a.Event, error) bool) {
		res, err := u.client.SendMessage(ctx, params)
		if err != nil {
			yield(nil, err)
			return
		}
		event, ok := res.(a2a.Event)
		if !ok {
			yield(nil, fmt.Errorf("unexpected send result %T", res))
			return
		}
		yield(event, nil)
	}
}
