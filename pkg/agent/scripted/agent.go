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

// Package scripted implements a rule-driven agent.
//
// Rules are matched by keyword. A rule may need a slot, such as a city,
// before it can reply; when the query does not carry it the agent asks for
// it and fills it from the next turn in the same context.
package scripted

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kadirpekel/parley/pkg/agent"
	"github.com/kadirpekel/parley/pkg/config"
	"github.com/kadirpekel/parley/pkg/config/provider"
)

// DefaultFallback is asked when no rule matches and no fallback is configured.
const DefaultFallback = "I can't help with that yet. Could you rephrase your request?"

// Agent is a rule-driven agent.Agent.
type Agent struct {
	name          string
	fallback      string
	progressDelay time.Duration
	slotTTL       time.Duration
	now           func() time.Time

	rules atomic.Pointer[RuleSet]

	mu      sync.Mutex
	pending map[string]pendingSlot
}

// pendingSlot is a question waiting for its answer in one context.
type pendingSlot struct {
	rule    string
	query   string
	expires time.Time
}

// New creates an agent answering from rules.
func New(name string, cfg config.ScriptedConfig, rules *RuleSet) (*Agent, error) {
	if rules == nil {
		return nil, errNilRules
	}
	if cfg.SlotTTL <= 0 {
		cfg.SlotTTL = 10 * time.Minute
	}
	a := &Agent{
		name:          name,
		fallback:      cfg.Fallback,
		progressDelay: cfg.ProgressDelay,
		slotTTL:       cfg.SlotTTL,
		now:           time.Now,
		pending:       make(map[string]pendingSlot),
	}
	a.rules.Store(rules)
	return a, nil
}

// NewFromConfig creates the agent described by cfg, loading its rules file
// or the built-in rules when none is set.
func NewFromConfig(cfg *config.AgentConfig) (*Agent, error) {
	var (
		rules *RuleSet
		err   error
	)
	if cfg.Scripted.Rules != "" {
		rules, err = LoadRules(cfg.Scripted.Rules)
	} else {
		rules, err = DefaultRules()
	}
	if err != nil {
		return nil, err
	}
	return New(cfg.Name, cfg.Scripted, rules)
}

// Name implements agent.Agent.
func (a *Agent) Name() string {
	return a.name
}

// Reload swaps the rules. Streams already running keep the old rules.
func (a *Agent) Reload(rules *RuleSet) error {
	if rules == nil {
		return errNilRules
	}
	a.rules.Store(rules)
	slog.Info("Scripted rules reloaded", "agent", a.name, "rules", len(rules.Rules))
	return nil
}

// WatchRules reloads the rules file whenever it changes, until ctx is done.
// Invalid files are logged and the current rules are kept.
func (a *Agent) WatchRules(ctx context.Context, path string) error {
	p, err := provider.NewFileProvider(path)
	if err != nil {
		return err
	}
	defer p.Close()

	changes, err := p.Watch(ctx)
	if err != nil {
		return fmt.Errorf("failed to watch rules: %w", err)
	}
	if changes == nil {
		<-ctx.Done()
		return ctx.Err()
	}
	slog.Debug("Watching scripted rules", "path", path)

	for range changes {
		data, err := p.Load(ctx)
		if err != nil {
			slog.Warn("Failed to read rules, keeping current rules", "path", path, "error", err)
			continue
		}
		rules, err := ParseRules(data)
		if err != nil {
			slog.Warn("Invalid rules, keeping current rules", "path", path, "error", err)
			continue
		}
		_ = a.Reload(rules)
	}
	return ctx.Err()
}

// Stream implements agent.Agent.
func (a *Agent) Stream(ctx context.Context, req agent.Request) iter.Seq2[agent.Step, error] {
	return func(yield func(agent.Step, error) bool) {
		rules := a.rules.Load()
		query := strings.TrimSpace(req.Query)

		if rule, data, ok := a.resume(rules, req.ContextID, query); ok {
			a.run(ctx, rule, data, yield)
			return
		}

		rule := rules.match(query)
		if rule == nil {
			yield(agent.InputRequired{Text: a.fallbackText(rules)}, nil)
			return
		}

		var slot string
		if rule.Slot != nil {
			slot = rule.Slot.extract(query)
			if slot == "" {
				a.remember(req.ContextID, rule.Name, query)
				yield(agent.InputRequired{Text: rule.Slot.Ask}, nil)
				return
			}
		}
		a.run(ctx, rule, templateData{Query: query, Slot: slot}, yield)
	}
}

func (a *Agent) run(ctx context.Context, rule *Rule, data templateData, yield func(agent.Step, error) bool) {
	for i, tmpl := range rule.progress {
		if i > 0 && !a.pause(ctx) {
			yield(nil, ctx.Err())
			return
		}
		text, err := render(tmpl, data)
		if err != nil {
			yield(nil, fmt.Errorf("rule %q: progress: %w", rule.Name, err))
			return
		}
		if !yield(agent.Progress{Text: text}, nil) {
			return
		}
	}
	if len(rule.progress) > 0 && !a.pause(ctx) {
		yield(nil, ctx.Err())
		return
	}

	reply, err := render(rule.reply, data)
	if err != nil {
		yield(nil, fmt.Errorf("rule %q: reply: %w", rule.Name, err))
		return
	}
	yield(agent.Complete{Text: reply}, nil)
}

// pause waits progressDelay. It reports false when ctx ends first.
func (a *Agent) pause(ctx context.Context) bool {
	if a.progressDelay <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(a.progressDelay)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func (a *Agent) fallbackText(rules *RuleSet) string {
	if a.fallback != "" {
		return a.fallback
	}
	if rules.Fallback != "" {
		return rules.Fallback
	}
	return DefaultFallback
}

func (a *Agent) remember(contextID, rule, query string) {
	if contextID == "" {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now()
	for id, p := range a.pending {
		if now.After(p.expires) {
			delete(a.pending, id)
		}
	}
	a.pending[contextID] = pendingSlot{rule: rule, query: query, expires: now.Add(a.slotTTL)}
}

// resume returns the rule waiting for a slot in contextID, with the slot
// filled from reply. The pending question is consumed either way.
func (a *Agent) resume(rules *RuleSet, contextID, reply string) (*Rule, templateData, bool) {
	if contextID == "" {
		return nil, templateData{}, false
	}
	a.mu.Lock()
	p, ok := a.pending[contextID]
	if ok {
		delete(a.pending, contextID)
	}
	a.mu.Unlock()

	if !ok || a.now().After(p.expires) || reply == "" {
		return nil, templateData{}, false
	}
	rule := rules.rule(p.rule)
	if rule == nil || rule.Slot == nil {
		return nil, templateData{}, false
	}
	slot := rule.Slot.extract(reply)
	if slot == "" {
		slot = reply
	}
	return rule, templateData{Query: p.query, Slot: slot}, true
}

var _ agent.Agent = (*Agent)(nil)
