package server

import (
	"context"
	"errors"
	"iter"
	"testing"
	"time"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/a2aproject/a2a-go/a2asrv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/parley/pkg/agent"
	"github.com/kadirpekel/parley/pkg/observability"
)

type recordingWriter struct {
	events []a2a.Event
	failAt int // 1-based write index that fails; 0 never fails
}

func (w *recordingWriter) Write(_ context.Context, event a2a.Event) error {
	if w.failAt > 0 && len(w.events)+1 == w.failAt {
		return errors.New("queue closed")
	}
	w.events = append(w.events, event)
	return nil
}

type stepRecorder struct {
	observability.NoopRecorder
	executions []string
	steps      []string
}

func (r *stepRecorder) RecordExecution(_, outcome string, _ time.Duration) {
	r.executions = append(r.executions, outcome)
}

func (r *stepRecorder) RecordStep(_, kind string) {
	r.steps = append(r.steps, kind)
}

func scripted(steps ...agent.Step) agent.Agent {
	return agent.Func{
		AgentName: "weather",
		Fn: func(context.Context, agent.Request) iter.Seq2[agent.Step, error] {
			return agent.Steps(steps...)
		},
	}
}

func newRequestContext(text string) *a2asrv.RequestContext {
	return &a2asrv.RequestContext{
		Message:   a2a.NewMessage(a2a.MessageRoleUser, a2a.TextPart{Text: text}),
		TaskID:    a2a.TaskID("task-1"),
		ContextID: "ctx-1",
	}
}

func statusOf(t *testing.T, ev a2a.Event) *a2a.TaskStatusUpdateEvent {
	t.Helper()
	su, ok := ev.(*a2a.TaskStatusUpdateEvent)
	require.True(t, ok, "expected status update, got %T", ev)
	return su
}

func statusText(su *a2a.TaskStatusUpdateEvent) string {
	if su.Status.Message == nil {
		return ""
	}
	return agent.MessageText(su.Status.Message)
}

func TestExecutor_ProgressThenComplete(t *testing.T) {
	rec := &stepRecorder{}
	exec := NewExecutor(ExecutorConfig{
		Agent:               scripted(agent.Progress{Text: "Searching…"}, agent.Complete{Text: "72°F, sunny"}),
		ArtifactName:        "weather_report",
		ArtifactDescription: "Current weather information for the requested location.",
		Metrics:             rec,
	})
	w := &recordingWriter{}

	require.NoError(t, exec.execute(context.Background(), newRequestContext("weather in Paris"), w))
	require.Len(t, w.events, 4)

	task, ok := w.events[0].(*a2a.Task)
	require.True(t, ok, "first event must create the task")
	assert.Equal(t, a2a.TaskID("task-1"), task.ID)
	assert.Equal(t, "ctx-1", task.ContextID)
	assert.Equal(t, a2a.TaskStateSubmitted, task.Status.State)
	require.Len(t, task.History, 1)
	assert.Equal(t, "weather in Paris", agent.MessageText(task.History[0]))

	working := statusOf(t, w.events[1])
	assert.Equal(t, a2a.TaskStateWorking, working.Status.State)
	assert.False(t, working.Final)
	assert.Equal(t, "Searching…", statusText(working))
	assert.Equal(t, a2a.MessageRoleAgent, working.Status.Message.Role)

	art, ok := w.events[2].(*a2a.TaskArtifactUpdateEvent)
	require.True(t, ok, "expected artifact update, got %T", w.events[2])
	assert.False(t, art.Append)
	assert.True(t, art.LastChunk)
	assert.Equal(t, "weather_report", art.Artifact.Name)
	assert.Equal(t, "Current weather information for the requested location.", art.Artifact.Description)
	require.Len(t, art.Artifact.Parts, 1)
	assert.Equal(t, a2a.TextPart{Text: "72°F, sunny"}, art.Artifact.Parts[0])
	assert.Equal(t, a2a.TaskID("task-1"), art.TaskID)

	done := statusOf(t, w.events[3])
	assert.Equal(t, a2a.TaskStateCompleted, done.Status.State)
	assert.True(t, done.Final)

	assert.Equal(t, []string{observability.OutcomeCompleted}, rec.executions)
	assert.Equal(t, []string{"progress", "complete"}, rec.steps)
}

func TestExecutor_InputRequired(t *testing.T) {
	exec := NewExecutor(ExecutorConfig{Agent: scripted(agent.InputRequired{Text: "Which city?"})})
	w := &recordingWriter{}

	require.NoError(t, exec.execute(context.Background(), newRequestContext("weather"), w))
	require.Len(t, w.events, 2)

	su := statusOf(t, w.events[1])
	assert.Equal(t, a2a.TaskStateInputRequired, su.Status.State)
	assert.True(t, su.Final)
	assert.Equal(t, "Which city?", statusText(su))

	for _, ev := range w.events {
		_, isArtifact := ev.(*a2a.TaskArtifactUpdateEvent)
		assert.False(t, isArtifact, "input request must not produce artifacts")
	}
}

func TestExecutor_StopsAtFirstTerminalStep(t *testing.T) {
	tests := []struct {
		name    string
		steps   []agent.Step
		last    a2a.TaskState
		count   int
		working int
	}{
		{
			name:    "complete then more",
			steps:   []agent.Step{agent.Complete{Text: "a"}, agent.Progress{Text: "late"}, agent.Complete{Text: "b"}},
			last:    a2a.TaskStateCompleted,
			count:   3,
			working: 0,
		},
		{
			name:    "input then complete",
			steps:   []agent.Step{agent.InputRequired{Text: "q"}, agent.Complete{Text: "b"}},
			last:    a2a.TaskStateInputRequired,
			count:   2,
			working: 0,
		},
		{
			name:    "several progress steps",
			steps:   []agent.Step{agent.Progress{Text: "1"}, agent.Progress{Text: "2"}, agent.Progress{Text: "3"}, agent.Complete{Text: "done"}},
			last:    a2a.TaskStateCompleted,
			count:   6,
			working: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec := NewExecutor(ExecutorConfig{Agent: scripted(tt.steps...)})
			w := &recordingWriter{}

			require.NoError(t, exec.execute(context.Background(), newRequestContext("hi"), w))
			require.Len(t, w.events, tt.count)

			last := statusOf(t, w.events[len(w.events)-1])
			assert.Equal(t, tt.last, last.Status.State)
			assert.True(t, last.Final)

			working := 0
			for _, ev := range w.events[1 : len(w.events)-1] {
				if su, ok := ev.(*a2a.TaskStatusUpdateEvent); ok {
					assert.Equal(t, a2a.TaskStateWorking, su.Status.State)
					assert.False(t, su.Final)
					working++
				}
			}
			assert.Equal(t, tt.working, working)
		})
	}
}

func TestExecutor_EmptyStream(t *testing.T) {
	rec := &stepRecorder{}
	exec := NewExecutor(ExecutorConfig{Agent: scripted(), Metrics: rec})
	w := &recordingWriter{}

	err := exec.execute(context.Background(), newRequestContext("hello"), w)

	require.ErrorIs(t, err, ErrIncompleteStream)
	require.Len(t, w.events, 1)
	_, ok := w.events[0].(*a2a.Task)
	assert.True(t, ok)
	assert.Equal(t, []string{observability.OutcomeIncomplete}, rec.executions)
}

func TestExecutor_ProgressOnlyStream(t *testing.T) {
	exec := NewExecutor(ExecutorConfig{Agent: scripted(agent.Progress{Text: "thinking"})})
	w := &recordingWriter{}

	err := exec.execute(context.Background(), newRequestContext("hello"), w)

	require.ErrorIs(t, err, ErrIncompleteStream)
	require.Len(t, w.events, 2)
	assert.Equal(t, a2a.TaskStateWorking, statusOf(t, w.events[1]).Status.State)
}

func TestExecutor_ExistingTask(t *testing.T) {
	exec := NewExecutor(ExecutorConfig{Agent: scripted(agent.Complete{Text: "Sunny in Paris"})})
	reqCtx := newRequestContext("Paris")
	reqCtx.StoredTask = &a2a.Task{
		ID:        reqCtx.TaskID,
		ContextID: reqCtx.ContextID,
		Status:    a2a.TaskStatus{State: a2a.TaskStateInputRequired},
	}
	w := &recordingWriter{}

	require.NoError(t, exec.execute(context.Background(), reqCtx, w))
	require.Len(t, w.events, 2)

	_, ok := w.events[0].(*a2a.TaskArtifactUpdateEvent)
	assert.True(t, ok, "processing must start from the stream, got %T", w.events[0])
	assert.Equal(t, a2a.TaskStateCompleted, statusOf(t, w.events[1]).Status.State)
}

func TestExecutor_MissingMessage(t *testing.T) {
	called := false
	exec := NewExecutor(ExecutorConfig{Agent: agent.Func{
		AgentName: "spy",
		Fn: func(context.Context, agent.Request) iter.Seq2[agent.Step, error] {
			called = true
			return agent.Steps(agent.Complete{Text: "x"})
		},
	}})

	for _, reqCtx := range []*a2asrv.RequestContext{nil, {TaskID: "t", ContextID: "c"}} {
		w := &recordingWriter{}
		err := exec.execute(context.Background(), reqCtx, w)
		require.ErrorIs(t, err, ErrMissingMessage)
		assert.Empty(t, w.events)
	}
	assert.False(t, called)
}

func TestExecutor_StreamError(t *testing.T) {
	boom := errors.New("weather service down")
	exec := NewExecutor(ExecutorConfig{Agent: agent.Func{
		AgentName: "flaky",
		Fn: func(context.Context, agent.Request) iter.Seq2[agent.Step, error] {
			return func(yield func(agent.Step, error) bool) {
				if !yield(agent.Progress{Text: "calling service"}, nil) {
					return
				}
				yield(nil, boom)
			}
		},
	}})
	w := &recordingWriter{}

	err := exec.execute(context.Background(), newRequestContext("weather"), w)

	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "step 1")
	require.Len(t, w.events, 2)
	assert.Equal(t, a2a.TaskStateWorking, statusOf(t, w.events[1]).Status.State)
}

func TestExecutor_WriteFailure(t *testing.T) {
	tests := []struct {
		name   string
		failAt int
		steps  []agent.Step
	}{
		{"task creation", 1, []agent.Step{agent.Complete{Text: "x"}}},
		{"progress", 2, []agent.Step{agent.Progress{Text: "p"}, agent.Complete{Text: "x"}}},
		{"artifact", 2, []agent.Step{agent.Complete{Text: "x"}}},
		{"completion", 3, []agent.Step{agent.Complete{Text: "x"}}},
		{"input request", 2, []agent.Step{agent.InputRequired{Text: "q"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec := NewExecutor(ExecutorConfig{Agent: scripted(tt.steps...)})
			w := &recordingWriter{failAt: tt.failAt}

			err := exec.execute(context.Background(), newRequestContext("x"), w)

			require.Error(t, err)
			assert.Contains(t, err.Error(), "queue closed")
			assert.Len(t, w.events, tt.failAt-1)
		})
	}
}

func TestExecutor_PassesTaskIdentityToAgent(t *testing.T) {
	var got agent.Request
	exec := NewExecutor(ExecutorConfig{Agent: agent.Func{
		AgentName: "spy",
		Fn: func(_ context.Context, req agent.Request) iter.Seq2[agent.Step, error] {
			got = req
			return agent.Steps(agent.Complete{Text: "ok"})
		},
	}})

	require.NoError(t, exec.execute(context.Background(), newRequestContext("  Paris  "), &recordingWriter{}))
	assert.Equal(t, "task-1", got.TaskID)
	assert.Equal(t, "ctx-1", got.ContextID)
	assert.Equal(t, "Paris", got.Query)
	assert.NotNil(t, got.Message)
}

func TestExecutor_Defaults(t *testing.T) {
	exec := NewExecutor(ExecutorConfig{Agent: scripted(agent.Complete{Text: "x"})})
	w := &recordingWriter{}

	require.NoError(t, exec.execute(context.Background(), newRequestContext("x"), w))
	art := w.events[1].(*a2a.TaskArtifactUpdateEvent)
	assert.Equal(t, "result", art.Artifact.Name)
	assert.Equal(t, "Result of the requested task.", art.Artifact.Description)
}

func TestExecutor_SetAgent(t *testing.T) {
	exec := NewExecutor(ExecutorConfig{Agent: scripted(agent.Complete{Text: "old"})})
	exec.SetAgent(scripted(agent.Complete{Text: "new"}))

	w := &recordingWriter{}
	require.NoError(t, exec.execute(context.Background(), newRequestContext("x"), w))
	art := w.events[1].(*a2a.TaskArtifactUpdateEvent)
	assert.Equal(t, a2a.TextPart{Text: "new"}, art.Artifact.Parts[0])
}

func TestExecutor_Cancel(t *testing.T) {
	exec := NewExecutor(ExecutorConfig{Agent: scripted()})

	err := exec.Cancel(context.Background(), newRequestContext("x"), nil)

	require.ErrorIs(t, err, ErrUnsupportedOperation)
	assert.ErrorIs(t, err, a2a.ErrUnsupportedOperation)
}
