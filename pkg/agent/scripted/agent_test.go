package scripted

import (
	"context"
	"iter"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/parley/pkg/agent"
	"github.com/kadirpekel/parley/pkg/config"
)

func collect(t *testing.T, seq iter.Seq2[agent.Step, error]) ([]agent.Step, error) {
	t.Helper()
	var steps []agent.Step
	for s, err := range seq {
		if err != nil {
			return steps, err
		}
		steps = append(steps, s)
	}
	return steps, nil
}

func newDefaultAgent(t *testing.T, cfg config.ScriptedConfig) *Agent {
	t.Helper()
	rules, err := DefaultRules()
	require.NoError(t, err)
	a, err := New("weather", cfg, rules)
	require.NoError(t, err)
	return a
}

func ask(a *Agent, contextID, query string) iter.Seq2[agent.Step, error] {
	return a.Stream(context.Background(), agent.Request{TaskID: "t-1", ContextID: contextID, Query: query})
}

func TestAgent_CompletesWhenSlotInQuery(t *testing.T) {
	a := newDefaultAgent(t, config.ScriptedConfig{})

	steps, err := collect(t, ask(a, "c-1", "What's the weather in Paris?"))
	require.NoError(t, err)
	assert.Equal(t, []agent.Step{
		agent.Progress{Text: "Searching for current weather in Paris..."},
		agent.Progress{Text: "Processing weather data and formatting response..."},
		agent.Complete{Text: "Weather report for Paris: 21°C, partly cloudy, light breeze."},
	}, steps)
}

func TestAgent_AsksForMissingSlot(t *testing.T) {
	a := newDefaultAgent(t, config.ScriptedConfig{})

	steps, err := collect(t, ask(a, "c-1", "what's the weather?"))
	require.NoError(t, err)
	assert.Equal(t, []agent.Step{agent.InputRequired{Text: "Which city would you like the weather for?"}}, steps)

	steps, err = collect(t, ask(a, "c-1", "New York"))
	require.NoError(t, err)
	require.Len(t, steps, 3)
	assert.Equal(t, agent.Complete{Text: "Weather report for New York: 21°C, partly cloudy, light breeze."}, steps[2])

	// The question was consumed.
	steps, err = collect(t, ask(a, "c-1", "New York"))
	require.NoError(t, err)
	assert.Equal(t, []agent.Step{agent.InputRequired{Text: "I can answer weather questions. Which city are you interested in?"}}, steps)
}

func TestAgent_SlotsArePerContext(t *testing.T) {
	a := newDefaultAgent(t, config.ScriptedConfig{})

	_, err := collect(t, ask(a, "c-1", "weather please"))
	require.NoError(t, err)

	steps, err := collect(t, ask(a, "c-2", "Oslo"))
	require.NoError(t, err)
	assert.IsType(t, agent.InputRequired{}, steps[0])

	steps, err = collect(t, ask(a, "c-1", "Oslo"))
	require.NoError(t, err)
	assert.IsType(t, agent.Complete{}, steps[len(steps)-1])
}

func TestAgent_SlotExpires(t *testing.T) {
	a := newDefaultAgent(t, config.ScriptedConfig{SlotTTL: time.Minute})
	now := time.Unix(1000, 0)
	a.now = func() time.Time { return now }

	_, err := collect(t, ask(a, "c-1", "weather please"))
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	steps, err := collect(t, ask(a, "c-1", "Oslo"))
	require.NoError(t, err)
	assert.Equal(t, []agent.Step{agent.InputRequired{Text: "I can answer weather questions. Which city are you interested in?"}}, steps)
}

func TestAgent_Fallback(t *testing.T) {
	t.Run("rules fallback", func(t *testing.T) {
		a := newDefaultAgent(t, config.ScriptedConfig{})
		steps, err := collect(t, ask(a, "c-1", "tell me a joke"))
		require.NoError(t, err)
		assert.Equal(t, []agent.Step{agent.InputRequired{Text: "I can answer weather questions. Which city are you interested in?"}}, steps)
	})

	t.Run("configured fallback wins", func(t *testing.T) {
		a := newDefaultAgent(t, config.ScriptedConfig{Fallback: "Try asking about the weather."})
		steps, err := collect(t, ask(a, "c-1", "tell me a joke"))
		require.NoError(t, err)
		assert.Equal(t, []agent.Step{agent.InputRequired{Text: "Try asking about the weather."}}, steps)
	})

	t.Run("built-in fallback", func(t *testing.T) {
		a, err := New("empty", config.ScriptedConfig{}, &RuleSet{})
		require.NoError(t, err)
		steps, err := collect(t, ask(a, "c-1", "anything"))
		require.NoError(t, err)
		assert.Equal(t, []agent.Step{agent.InputRequired{Text: DefaultFallback}}, steps)
	})
}

func TestAgent_RuleWithoutSlot(t *testing.T) {
	a := newDefaultAgent(t, config.ScriptedConfig{})
	steps, err := collect(t, ask(a, "", "Hello there"))
	require.NoError(t, err)
	assert.Equal(t, []agent.Step{agent.Complete{Text: "Hello! Ask me about the weather anywhere in the world."}}, steps)
}

func TestAgent_ProgressDelayHonorsCancellation(t *testing.T) {
	a := newDefaultAgent(t, config.ScriptedConfig{ProgressDelay: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var steps []agent.Step
	var streamErr error
	for s, err := range a.Stream(ctx, agent.Request{ContextID: "c-1", Query: "weather in Rome"}) {
		if err != nil {
			streamErr = err
			break
		}
		steps = append(steps, s)
		cancel()
	}
	assert.Len(t, steps, 1)
	assert.ErrorIs(t, streamErr, context.Canceled)
}

func TestAgent_ConsumerStopsEarly(t *testing.T) {
	a := newDefaultAgent(t, config.ScriptedConfig{})
	count := 0
	for range ask(a, "c-1", "weather in Rome") {
		count++
		break
	}
	assert.Equal(t, 1, count)
}

func TestAgent_Templates(t *testing.T) {
	rules, err := ParseRules([]byte(`
rules:
  - name: echo
    keywords: [ECHO]
    reply: "you said {{.Query}}"
`))
	require.NoError(t, err)
	a, err := New("echo", config.ScriptedConfig{}, rules)
	require.NoError(t, err)

	steps, err := collect(t, ask(a, "c-1", "  echo this  "))
	require.NoError(t, err)
	assert.Equal(t, []agent.Step{agent.Complete{Text: "you said echo this"}}, steps)
}

func TestAgent_Reload(t *testing.T) {
	a := newDefaultAgent(t, config.ScriptedConfig{})
	assert.Error(t, a.Reload(nil))

	rules, err := ParseRules([]byte(`
rules:
  - name: ping
    keywords: [ping]
    reply: pong
`))
	require.NoError(t, err)
	require.NoError(t, a.Reload(rules))

	steps, err := collect(t, ask(a, "c-1", "ping"))
	require.NoError(t, err)
	assert.Equal(t, []agent.Step{agent.Complete{Text: "pong"}}, steps)
}

func TestAgent_WatchRules(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte("rules:\n  - name: ping\n    keywords: [ping]\n    reply: pong\n"), 0o644))

	a, err := NewFromConfig(&config.AgentConfig{Name: "ping", Scripted: config.ScriptedConfig{Rules: path}})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.WatchRules(ctx, path) }()

	reply := func() string {
		steps, err := collect(t, ask(a, "c-1", "ping"))
		if err != nil || len(steps) == 0 {
			return ""
		}
		return steps[len(steps)-1].Content()
	}
	require.Equal(t, "pong", reply())

	// Give the watcher time to start before writing.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("rules:\n  - name: ping\n    keywords: [ping]\n    reply: PONG\n"), 0o644))
	assert.Eventually(t, func() bool { return reply() == "PONG" }, 5*time.Second, 50*time.Millisecond)

	// An invalid file keeps the current rules.
	require.NoError(t, os.WriteFile(path, []byte("rules: [\n"), 0o644))
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, "PONG", reply())

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestNewFromConfig_DefaultRules(t *testing.T) {
	a, err := NewFromConfig(&config.AgentConfig{Name: "assistant"})
	require.NoError(t, err)
	assert.Equal(t, "assistant", a.Name())

	_, err = NewFromConfig(&config.AgentConfig{Scripted: config.ScriptedConfig{Rules: filepath.Join(t.TempDir(), "missing.yaml")}})
	assert.ErrorContains(t, err, "failed to read rules")
}

func TestParseRules_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"syntax", "rules: [", "failed to parse rules"},
		{"missing name", "rules:\n  - keywords: [a]\n    reply: b\n", "name is required"},
		{"duplicate", "rules:\n  - {name: a, keywords: [a], reply: b}\n  - {name: a, keywords: [a], reply: b}\n", "duplicate rule name"},
		{"no keywords", "rules:\n  - {name: a, reply: b}\n", "at least one keyword"},
		{"no reply", "rules:\n  - {name: a, keywords: [a]}\n", "reply is required"},
		{"bad template", "rules:\n  - {name: a, keywords: [a], reply: '{{.Query'}\n", `rule "a"`},
		{"slot without ask", "rules:\n  - {name: a, keywords: [a], reply: b, slot: {name: c}}\n", "slot.ask is required"},
		{"bad pattern", "rules:\n  - {name: a, keywords: [a], reply: b, slot: {name: c, ask: d, pattern: '('}}\n", "slot.pattern"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRules([]byte(tt.yaml))
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestSlot_Extract(t *testing.T) {
	rules, err := DefaultRules()
	require.NoError(t, err)
	slot := rules.rule("weather").Slot

	assert.Equal(t, "Paris", slot.extract("weather in Paris?"))
	assert.Equal(t, "São Paulo", slot.extract("forecast for São Paulo"))
	assert.Empty(t, slot.extract("what's the weather?"))
	assert.Empty(t, (&Slot{}).extract("anything"))
}
