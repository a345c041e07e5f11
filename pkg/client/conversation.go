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

// Package client drives multi-turn A2A conversations.
//
// A Conversation sends a message, consumes the task's event stream and,
// whenever the agent asks for input, prompts for a reply and sends it under
// the same task and context. The loop ends when the task completes.
package client

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"

	"github.com/a2aproject/a2a-go/a2a"

	"github.com/kadirpekel/parley/pkg/observability"
)

// Sender sends a message and streams back the resulting events.
// *a2aclient.Client satisfies it.
type Sender interface {
	SendStreamingMessage(ctx context.Context, params *a2a.MessageSendParams) iter.Seq2[a2a.Event, error]
}

// Prompter supplies the user's reply when the agent asks for input.
type Prompter interface {
	Prompt(ctx context.Context, question string) (string, error)
}

// PromptFunc adapts a function to Prompter.
type PromptFunc func(ctx context.Context, question string) (string, error)

func (f PromptFunc) Prompt(ctx context.Context, question string) (string, error) {
	return f(ctx, question)
}

// State is the conversation identity threaded through turns.
type State struct {
	TaskID    a2a.TaskID
	ContextID string
}

// IsZero reports whether no identity has been observed yet.
func (s State) IsZero() bool {
	return s.TaskID == "" && s.ContextID == ""
}

// Progress is a non-final status update.
type Progress struct {
	State a2a.TaskState
	Text  string
}

// Observer receives intermediate output of a conversation.
type Observer interface {
	OnProgress(Progress)
	OnEvent(a2a.Event)
}

// ObserverFuncs implements Observer with optional callbacks.
type ObserverFuncs struct {
	Progress func(Progress)
	Event    func(a2a.Event)
}

func (o ObserverFuncs) OnProgress(p Progress) {
	if o.Progress != nil {
		o.Progress(p)
	}
}

func (o ObserverFuncs) OnEvent(e a2a.Event) {
	if o.Event != nil {
		o.Event(e)
	}
}

// Result is a completed conversation.
type Result struct {
	// Text is the final answer.
	Text string

	// State identifies the conversation the answer belongs to.
	State State

	// Task is the final task snapshot. Nil when the agent replied with a
	// plain message.
	Task *a2a.Task

	// Turns counts the messages sent.
	Turns int
}

// Conversation tracks one conversation with a remote agent.
// It is not safe for concurrent use; turns are strictly sequential.
type Conversation struct {
	sender   Sender
	prompter Prompter
	observer Observer
	tracer   *observability.Tracer
	metrics  observability.Recorder

	state    State
	canceled bool
}

// Option configures a Conversation.
type Option func(*Conversation)

// WithObserver receives progress and raw events.
func WithObserver(o Observer) Option {
	return func(c *Conversation) {
		c.observer = o
	}
}

// WithState resumes an earlier conversation.
func WithState(s State) Option {
	return func(c *Conversation) {
		c.state = s
	}
}

// WithTracer traces each turn.
func WithTracer(t *observability.Tracer) Option {
	return func(c *Conversation) {
		c.tracer = t
	}
}

// WithMetrics records turn outcomes.
func WithMetrics(r observability.Recorder) Option {
	return func(c *Conversation) {
		if r != nil {
			c.metrics = r
		}
	}
}

// NewConversation creates a conversation that sends through sender and asks
// prompter for replies.
func NewConversation(sender Sender, prompter Prompter, opts ...Option) *Conversation {
	c := &Conversation{
		sender:   sender,
		prompter: prompter,
		observer: ObserverFuncs{},
		metrics:  observability.NoopRecorder{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the tracked conversation identity. After a completed
// conversation only the context ID is kept.
func (c *Conversation) State() State {
	return c.state
}

// Reset forgets the tracked identity; the next Converse starts a new conversation.
func (c *Conversation) Reset() {
	c.state = State{}
}

// DropTask forgets the tracked task and keeps the context, so the next
// Converse opens a new task in the same conversation.
func (c *Conversation) DropTask() {
	c.state.TaskID = ""
}

// Canceled reports whether the last Converse call stopped because its
// context was canceled.
func (c *Conversation) Canceled() bool {
	return c.canceled
}

// Converse sends text and keeps the conversation going until the task
// completes. Each time the agent asks for input the prompter's reply is sent
// as a new turn under the tracked task and context.
//
// Cancellation is not an error: Converse returns (nil, nil) and Canceled
// reports true.
func (c *Conversation) Converse(ctx context.Context, text string) (*Result, error) {
	c.canceled = false

	for turns := 1; ; turns++ {
		out, err := c.turn(ctx, text)
		if err != nil {
			if isCanceled(ctx, err) {
				c.canceled = true
				slog.Debug("Conversation canceled", "task_id", c.state.TaskID, "turns", turns)
				return nil, nil
			}
			var ferr *TaskFailedError
			if errors.As(err, &ferr) {
				// The task is terminal; keep only the context.
				c.DropTask()
			}
			return nil, err
		}

		if !out.needsInput {
			res := &Result{
				Text:  out.text,
				State: c.state,
				Task:  out.task,
				Turns: turns,
			}
			// A completed task cannot take more messages.
			c.DropTask()
			return res, nil
		}

		reply, err := c.prompter.Prompt(ctx, out.text)
		if err != nil {
			if isCanceled(ctx, err) {
				c.canceled = true
				return nil, nil
			}
			return nil, fmt.Errorf("failed to read reply: %w", err)
		}
		text = reply
	}
}

// turnOutcome is how a single turn ended: with the final answer, or with a
// question for the user.
type turnOutcome struct {
	text       string
	needsInput bool
	task       *a2a.Task
}

func (c *Conversation) turn(ctx context.Context, text string) (out turnOutcome, err error) {
	ctx, span := c.tracer.StartConversationTurn(ctx, string(c.state.TaskID), c.state.ContextID)
	outcome, events := observability.OutcomeError, 0
	defer func() {
		if err != nil {
			if isCanceled(ctx, err) {
				outcome = observability.OutcomeCanceled
			} else {
				c.tracer.RecordError(span, err)
			}
		}
		c.tracer.EndWithOutcome(span, outcome, events)
		c.metrics.RecordConversationTurn(outcome)
	}()

	msg := c.newMessage(text)
	slog.Debug("Sending message", "message_id", msg.ID, "task_id", msg.TaskID, "context_id", msg.ContextID)

	var snap Snapshot
	for event, serr := range c.sender.SendStreamingMessage(ctx, &a2a.MessageSendParams{Message: msg}) {
		if serr != nil {
			op := "stream"
			if events == 0 {
				op = "send"
			}
			return out, &TransportError{Op: op, Err: serr}
		}
		if event == nil {
			continue
		}
		events++
		c.track(event)
		c.observer.OnEvent(event)
		snap.Apply(event)

		// A plain message is a complete answer from an agent that works without tasks.
		if m, ok := event.(*a2a.Message); ok {
			outcome = observability.OutcomeCompleted
			return turnOutcome{text: partsText(m.Parts)}, nil
		}

		switch state := snap.State(); state {
		case a2a.TaskStateCompleted:
			outcome = observability.OutcomeCompleted
			return turnOutcome{text: snap.LastArtifactText(), task: snap.Task()}, nil

		case a2a.TaskStateInputRequired:
			outcome = observability.OutcomeInputRequired
			return turnOutcome{text: snap.StatusText(), needsInput: true, task: snap.Task()}, nil

		case a2a.TaskStateFailed, a2a.TaskStateCanceled, a2a.TaskStateRejected:
			return out, &TaskFailedError{TaskID: c.state.TaskID, State: state, Text: snap.StatusText()}

		case a2a.TaskStateSubmitted, a2a.TaskStateWorking:
			c.observer.OnProgress(Progress{State: state, Text: snap.StatusText()})
		}
	}

	if err := ctx.Err(); err != nil {
		return out, err
	}
	outcome = observability.OutcomeIncomplete
	return out, ErrIncompleteTurn
}

func (c *Conversation) newMessage(text string) *a2a.Message {
	msg := a2a.NewMessage(a2a.MessageRoleUser, a2a.TextPart{Text: text})
	msg.TaskID = c.state.TaskID
	msg.ContextID = c.state.ContextID
	return msg
}

// track records the latest non-empty task and context IDs carried by event.
func (c *Conversation) track(event a2a.Event) {
	var taskID a2a.TaskID
	var contextID string
	switch ev := event.(type) {
	case *a2a.Task:
		taskID, contextID = ev.ID, ev.ContextID
	case *a2a.TaskStatusUpdateEvent:
		taskID, contextID = ev.TaskID, ev.ContextID
	case *a2a.TaskArtifactUpdateEvent:
		taskID, contextID = ev.TaskID, ev.ContextID
	case *a2a.Message:
		taskID, contextID = ev.TaskID, ev.ContextID
	}
	if taskID != "" {
		c.state.TaskID = taskID
	}
	if contextID != "" {
		c.state.ContextID = contextID
	}
}

// Converse runs a single conversation starting from state. A zero state
// starts a new conversation.
func Converse(ctx context.Context, sender Sender, prompter Prompter, text string, state State) (*Result, error) {
	return NewConversation(sender, prompter, WithState(state)).Converse(ctx, text)
}
