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


// Package agent defines the response stream contract between a domain agent
// and the task executor.
//
// An agent answers one turn of a conversation by yielding Steps:
//   - Progress steps report intermediate status and keep the turn open
//   - InputRequired ends the turn with a question back to the user
//   - Complete ends the turn with the final result
//
// Streams are lazy. Consumers pull one step at a time and stop ranging at the
// first terminal step, so producers must not rely on being drained.
package agent

import (
	"context"
	"iter"
	"strings"

	"github.com/a2aproject/a2a-go/a2a"
)

// Step is one semantic response step. The concrete types are Complete,
// InputRequired and Progress; no other implementations exist.
type Step interface {
	// Content returns the human-readable payload of the step.
	Content() string

	// Kind returns a short label used in logs and metrics.
	Kind() StepKind

	isStep()
}

// StepKind labels a Step variant.
type StepKind string

const (
	KindComplete      StepKind = "complete"
	KindInputRequired StepKind = "input_required"
	KindProgress      StepKind = "progress"
)

// Complete carries the final result of a turn.
type Complete struct {
	Text string
}

// InputRequired asks the user for more information.
type InputRequired struct {
	Text string
}

// Progress reports intermediate status.
type Progress struct {
	Text string
}

func (s Complete) Content() string      { return s.Text }
func (s InputRequired) Content() string { return s.Text }
func (s Progress) Content() string      { return s.Text }

func (Complete) Kind() StepKind      { return KindComplete }
func (InputRequired) Kind() StepKind { return KindInputRequired }
func (Progress) Kind() StepKind      { return KindProgress }

func (Complete) isStep()      {}
func (InputRequired) isStep() {}
func (Progress) isStep()      {}

// TerminalStep reports whether s ends the turn.
func TerminalStep(s Step) bool {
	switch s.(type) {
	case Complete, InputRequired:
		return true
	default:
		return false
	}
}

// Request is what an agent sees for one turn.
type Request struct {
	// TaskID and ContextID identify the task and conversation this turn
	// belongs to. Agents may key per-conversation memory on ContextID.
	TaskID    string
	ContextID string

	// Query is the concatenated text of the user message.
	Query string

	// Message is the raw protocol message. May be nil for programmatic calls.
	Message *a2a.Message
}

// Agent produces the response stream for a turn.
type Agent interface {
	// Name returns the agent identifier.
	Name() string

	// Stream yields the steps answering req. A well-formed stream ends with
	// exactly one terminal step. Errors end the stream.
	Stream(ctx context.Context, req Request) iter.Seq2[Step, error]
}

// Func adapts a function to the Agent interface.
type Func struct {
	AgentName string
	Fn        func(ctx context.Context, req Request) iter.Seq2[Step, error]
}

func (f Func) Name() string { return f.AgentName }

func (f Func) Stream(ctx context.Context, req Request) iter.Seq2[Step, error] {
	return f.Fn(ctx, req)
}

// Steps returns a stream yielding the given steps in order.
func Steps(steps ...Step) iter.Seq2[Step, error] {
	return func(yield func(Step, error) bool) {
		for _, s := range steps {
			if !yield(s, nil) {
				return
			}
		}
	}
}

// Failed returns a stream that yields a single error.
func Failed(err error) iter.Seq2[Step, error] {
	return func(yield func(Step, error) bool) {
		yield(nil, err)
	}
}

// MessageText concatenates the text parts of msg.
func MessageText(msg *a2a.Message) string {
	if msg == nil {
		return ""
	}
	var parts []string
	for _, p := range msg.Parts {
		if tp, ok := p.(a2a.TextPart); ok && tp.Text != "" {
			parts = append(parts, tp.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// NewRequest builds a Request from a protocol message and the task identity
// assigned to it.
func NewRequest(taskID a2a.TaskID, contextID string, msg *a2a.Message) Request {
	return Request{
		TaskID:    string(taskID),
		ContextID: contextID,
		Query:     strings.TrimSpace(MessageText(msg)),
		Message:   msg,
	}
}

var (
	_ Agent = Func{}
	_ Step  = Complete{}
	_ Step  = InputRequired{}
	_ Step  = Progress{}
)
