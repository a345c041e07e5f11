package client

import (
	"context"
	"errors"
	"testing"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUnary struct {
	fakeSender
	results []a2a.SendMessageResult
	err     error
	calls   int
}

func (f *fakeUnary) SendMessage(_ context.Context, params *a2a.MessageSendParams) (a2a.SendMessageResult, error) {
	f.sent = append(f.sent, params.Message)
	if f.err != nil {
		return nil, f.err
	}
	res := f.results[f.calls]
	f.calls++
	return res, nil
}

func TestNewSender_Streaming(t *testing.T) {
	c := &fakeUnary{}
	card := &a2a.AgentCard{Capabilities: a2a.AgentCapabilities{Streaming: true}}
	assert.Same(t, c, NewSender(c, card))
}

func TestNewSender_UnaryFallback(t *testing.T) {
	asking := newTask("t-1", "c-1")
	asking.Status = a2a.TaskStatus{
		State:   a2a.TaskStateInputRequired,
		Message: a2a.NewMessage(a2a.MessageRoleAgent, a2a.TextPart{Text: "Which city?"}),
	}
	done := newTask("t-1", "c-1")
	done.Status = a2a.TaskStatus{State: a2a.TaskStateCompleted}
	done.Artifacts = []*a2a.Artifact{{ID: "a", Parts: []a2a.Part{a2a.TextPart{Text: "Sunny in Oslo"}}}}

	c := &fakeUnary{results: []a2a.SendMessageResult{asking, done}}
	sender := NewSender(c, &a2a.AgentCard{})
	prompter := &recordingPrompter{replies: []string{"Oslo"}}

	res, err := NewConversation(sender, prompter).Converse(context.Background(), "weather?")
	require.NoError(t, err)
	assert.Equal(t, "Sunny in Oslo", res.Text)
	assert.Equal(t, 2, res.Turns)
	assert.Equal(t, []string{"Which city?"}, prompter.questions)
	require.Len(t, c.sent, 2)
	assert.Equal(t, a2a.TaskID("t-1"), c.sent[1].TaskID)
}

func TestNewSender_UnaryError(t *testing.T) {
	c := &fakeUnary{err: errors.New("connection refused")}
	sender := NewSender(c, nil)

	_, err := NewConversation(sender, &recordingPrompter{}).Converse(context.Background(), "hi")
	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "send", te.Op)
}
