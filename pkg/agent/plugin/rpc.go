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

package plugin

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"net/rpc"
	"sync"

	"github.com/google/uuid"

	"github.com/kadirpekel/parley/pkg/agent"
)

// StartArgs opens a stream on the plugin side.
type StartArgs struct {
	TaskID    string
	ContextID string
	Query     string
}

// NextReply carries one step, the end of the stream, or its error.
type NextReply struct {
	Kind string
	Text string
	Done bool
	Err  string
}

// RPCServer runs on the plugin side and drives the agent's streams.
type RPCServer struct {
	Impl agent.Agent

	mu      sync.Mutex
	streams map[string]*pulledStream
}

type pulledStream struct {
	mu     sync.Mutex
	next   func() (agent.Step, error, bool)
	stop   func()
	cancel context.CancelFunc
}

func (s *pulledStream) close() {
	s.cancel()
	s.mu.Lock()
	s.stop()
	s.mu.Unlock()
}

// Name returns the agent name.
func (s *RPCServer) Name(_ interface{}, resp *string) error {
	*resp = s.Impl.Name()
	return nil
}

// Start opens a stream and returns its id.
func (s *RPCServer) Start(args StartArgs, resp *string) error {
	ctx, cancel := context.WithCancel(context.Background())
	req := agent.Request{TaskID: args.TaskID, ContextID: args.ContextID, Query: args.Query}
	next, stop := iter.Pull2(s.Impl.Stream(ctx, req))

	id := uuid.NewString()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.streams == nil {
		s.streams = make(map[string]*pulledStream)
	}
	s.streams[id] = &pulledStream{next: next, stop: stop, cancel: cancel}
	*resp = id
	return nil
}

// Next pulls one step from a stream. The stream is released once it is
// done or fails.
func (s *RPCServer) Next(id string, resp *NextReply) error {
	st := s.lookup(id)
	if st == nil {
		return fmt.Errorf("unknown stream %s", id)
	}

	st.mu.Lock()
	step, err, ok := st.next()
	st.mu.Unlock()

	switch {
	case !ok:
		resp.Done = true
	case err != nil:
		resp.Err = err.Error()
	case step != nil:
		resp.Kind = string(step.Kind())
		resp.Text = step.Content()
	}
	if resp.Done || resp.Err != "" {
		s.release(id)
	}
	return nil
}

// Stop cancels a stream. Stopping an unknown stream is not an error.
func (s *RPCServer) Stop(id string, _ *struct{}) error {
	s.release(id)
	return nil
}

func (s *RPCServer) lookup(id string) *pulledStream {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streams[id]
}

func (s *RPCServer) release(id string) {
	s.mu.Lock()
	st := s.streams[id]
	delete(s.streams, id)
	s.mu.Unlock()
	if st != nil {
		st.close()
	}
}

// RPCClient is the host-side agent.Agent backed by a plugin.
type RPCClient struct {
	client *rpc.Client
}

// Name implements agent.Agent.
func (c *RPCClient) Name() string {
	var name string
	if err := c.client.Call("Plugin.Name", new(interface{}), &name); err != nil {
		return ""
	}
	return name
}

// Stream implements agent.Agent. Steps are fetched one call at a time.
func (c *RPCClient) Stream(ctx context.Context, req agent.Request) iter.Seq2[agent.Step, error] {
	return func(yield func(agent.Step, error) bool) {
		var id string
		args := StartArgs{TaskID: req.TaskID, ContextID: req.ContextID, Query: req.Query}
		if err := c.client.Call("Plugin.Start", args, &id); err != nil {
			yield(nil, fmt.Errorf("plugin start: %w", err))
			return
		}

		done := false
		defer func() {
			if !done {
				_ = c.client.Call("Plugin.Stop", id, new(struct{}))
			}
		}()

		for {
			var reply NextReply
			call := c.client.Go("Plugin.Next", id, &reply, make(chan *rpc.Call, 1))
			select {
			case <-ctx.Done():
				yield(nil, ctx.Err())
				return
			case <-call.Done:
			}
			if call.Error != nil {
				yield(nil, fmt.Errorf("plugin next: %w", call.Error))
				return
			}

			switch {
			case reply.Done:
				done = true
				return
			case reply.Err != "":
				done = true
				yield(nil, errors.New(reply.Err))
				return
			}

			step, err := decodeStep(reply)
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(step, nil) {
				return
			}
		}
	}
}

func decodeStep(r NextReply) (agent.Step, error) {
	switch agent.StepKind(r.Kind) {
	case agent.KindComplete:
		return agent.Complete{Text: r.Text}, nil
	case agent.KindInputRequired:
		return agent.InputRequired{Text: r.Text}, nil
	case agent.KindProgress:
		return agent.Progress{Text: r.Text}, nil
	case "":
		return nil, nil
	default:
		return nil, fmt.Errorf("plugin sent unknown step kind %q", r.Kind)
	}
}

var _ agent.Agent = (*RPCClient)(nil)
