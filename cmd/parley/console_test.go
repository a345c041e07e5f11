package main

import (
	"bytes"
	"context"
	"io"
	"iter"
	"strings"
	"testing"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// weatherSender asks for a city on the first turn of every task and
// answers on the second.
type weatherSender struct {
	sent   []*a2a.Message
	onSend func()
}

func (s *weatherSender) SendStreamingMessage(_ context.Context, params *a2a.MessageSendParams) iter.Seq2[a2a.Event, error] {
	msg := params.Message
	s.sent = append(s.sent, msg)
	if s.onSend != nil {
		s.onSend()
	}
	return func(yield func(a2a.Event, error) bool) {
		if msg.TaskID == "" {
			task := &a2a.Task{ID: "t-1", ContextID: "c-1", Status: a2a.TaskStatus{State: a2a.TaskStateSubmitted}}
			if !yield(task, nil) {
				return
			}
			yield(&a2a.TaskStatusUpdateEvent{
				TaskID: "t-1", ContextID: "c-1", Final: true,
				Status: a2a.TaskStatus{
					State:   a2a.TaskStateInputRequired,
					Message: a2a.NewMessage(a2a.MessageRoleAgent, a2a.TextPart{Text: "Which city?"}),
				},
			}, nil)
			return
		}
		city := msg.Parts[0].(a2a.TextPart).Text
		events := []a2a.Event{
			&a2a.TaskStatusUpdateEvent{
				TaskID: "t-1", ContextID: "c-1",
				Status: a2a.TaskStatus{
					State:   a2a.TaskStateWorking,
					Message: a2a.NewMessage(a2a.MessageRoleAgent, a2a.TextPart{Text: "Looking up " + city}),
				},
			},
			&a2a.TaskArtifactUpdateEvent{
				TaskID: "t-1", ContextID: "c-1", LastChunk: true,
				Artifact: &a2a.Artifact{ID: "a-1", Parts: []a2a.Part{a2a.TextPart{Text: "Sunny in " + city}}},
			},
			&a2a.TaskStatusUpdateEvent{
				TaskID: "t-1", ContextID: "c-1", Final: true,
				Status: a2a.TaskStatus{State: a2a.TaskStateCompleted},
			},
		}
		for _, e := range events {
			if !yield(e, nil) {
				return
			}
		}
	}
}

func runConsole(t *testing.T, input string, keepContext bool) (string, *weatherSender) {
	t.Helper()
	return runConsoleWith(t, &weatherSender{}, input, keepContext, func(ctx context.Context) (context.Context, context.CancelFunc) {
		return context.WithCancel(ctx)
	})
}

func runConsoleWith(t *testing.T, sender *weatherSender, input string, keepContext bool, turnContext func(context.Context) (context.Context, context.CancelFunc)) (string, *weatherSender) {
	t.Helper()
	color.NoColor = true

	sess := &session{card: &a2a.AgentCard{Name: "weather"}, sender: sender, destroy: func() {}}
	var out bytes.Buffer
	con := newConsole(strings.NewReader(input), &out)

	require.NoError(t, con.loop(context.Background(), sess, keepContext, turnContext))
	return out.String(), sender
}

func TestConsole_Conversation(t *testing.T) {
	out, sender := runConsole(t, "weather please\nOslo\nexit\n", false)

	assert.Contains(t, out, "Processing: weather please")
	assert.Contains(t, out, "Which city?")
	assert.Contains(t, out, "Your reply: ")
	assert.Contains(t, out, "Looking up Oslo")
	assert.Contains(t, out, "Sunny in Oslo")

	require.Len(t, sender.sent, 2)
	assert.Equal(t, a2a.TaskID("t-1"), sender.sent[1].TaskID)
}

func TestConsole_EmptyQuery(t *testing.T) {
	out, sender := runConsole(t, "\nquit\n", false)
	assert.Contains(t, out, "Please enter a query.")
	assert.Empty(t, sender.sent)
}

func TestConsole_ExitWords(t *testing.T) {
	for _, word := range []string{"exit", "quit", "q", "EXIT"} {
		t.Run(word, func(t *testing.T) {
			_, sender := runConsole(t, word+"\nweather\n", false)
			assert.Empty(t, sender.sent)
		})
	}
}

func TestConsole_EndOfInput(t *testing.T) {
	_, sender := runConsole(t, "", false)
	assert.Empty(t, sender.sent)
}

func TestConsole_NewConversationPerQuery(t *testing.T) {
	_, sender := runConsole(t, "weather\nOslo\nweather\nRome\n", false)
	require.Len(t, sender.sent, 4)
	assert.Empty(t, sender.sent[2].ContextID)
	assert.Empty(t, sender.sent[2].TaskID)
}

func TestConsole_KeepContext(t *testing.T) {
	_, sender := runConsole(t, "weather\nOslo\nweather\nRome\n", true)
	require.Len(t, sender.sent, 4)
	assert.Equal(t, "c-1", sender.sent[2].ContextID)
	assert.Empty(t, sender.sent[2].TaskID)
}

func TestConsole_InterruptedPromptDropsTask(t *testing.T) {
	var cancel context.CancelFunc
	sender := &weatherSender{}
	sender.onSend = func() {
		if len(sender.sent) == 1 {
			cancel()
		}
	}
	turnContext := func(ctx context.Context) (context.Context, context.CancelFunc) {
		ctx, cancel = context.WithCancel(ctx)
		return ctx, cancel
	}

	_, sender = runConsoleWith(t, sender, "weather\nweather\n", true, turnContext)

	require.Len(t, sender.sent, 2)
	assert.Empty(t, sender.sent[1].TaskID)
	assert.Equal(t, "c-1", sender.sent[1].ContextID)
}

func TestLineReader_Canceled(t *testing.T) {
	r, w := io.Pipe()
	defer w.Close()
	lr := newLineReader(r)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := lr.ReadLine(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
