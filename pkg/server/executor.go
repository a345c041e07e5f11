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

package server

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/a2aproject/a2a-go/a2asrv"
	"github.com/a2aproject/a2a-go/a2asrv/eventqueue"

	"github.com/kadirpekel/parley/pkg/agent"
	"github.com/kadirpekel/parley/pkg/config"
	"github.com/kadirpekel/parley/pkg/observability"
)

// ExecutorConfig configures an Executor.
type ExecutorConfig struct {
	// Agent answers each turn. Required.
	Agent agent.Agent

	// ArtifactName names the artifact carrying the final result.
	ArtifactName string

	// ArtifactDescription describes that artifact.
	ArtifactDescription string

	// Tracer is optional; nil disables tracing.
	Tracer *observability.Tracer

	// Metrics is optional; nil disables metrics.
	Metrics observability.Recorder
}

// Executor implements a2asrv.AgentExecutor on top of an agent.Agent.
type Executor struct {
	state   atomic.Pointer[executorState]
	tracer  *observability.Tracer
	metrics observability.Recorder
}

// executorState is swapped as a whole on reload.
type executorState struct {
	agent               agent.Agent
	artifactName        string
	artifactDescription string
}

// eventWriter is the part of eventqueue.Queue the executor uses.
type eventWriter interface {
	Write(ctx context.Context, event a2a.Event) error
}

// NewExecutor creates an Executor.
func NewExecutor(cfg ExecutorConfig) *Executor {
	if cfg.Metrics == nil {
		cfg.Metrics = observability.NoopRecorder{}
	}
	e := &Executor{
		tracer:  cfg.Tracer,
		metrics: cfg.Metrics,
	}
	e.Reconfigure(cfg.Agent, cfg.ArtifactName, cfg.ArtifactDescription)
	return e
}

// Agent returns the agent currently answering turns.
func (e *Executor) Agent() agent.Agent {
	return e.state.Load().agent
}

// SetAgent swaps the agent and keeps the artifact settings.
func (e *Executor) SetAgent(a agent.Agent) {
	cur := e.state.Load()
	e.Reconfigure(a, cur.artifactName, cur.artifactDescription)
}

// Reconfigure swaps the agent and artifact settings. Executions already
// running finish with the settings they started with.
func (e *Executor) Reconfigure(a agent.Agent, artifactName, artifactDescription string) {
	if artifactName == "" {
		artifactName = config.DefaultArtifactName
	}
	if artifactDescription == "" {
		artifactDescription = config.DefaultArtifactDescription
	}
	e.state.Store(&executorState{
		agent:               a,
		artifactName:        artifactName,
		artifactDescription: artifactDescription,
	})
}

// Execute implements a2asrv.AgentExecutor.
func (e *Executor) Execute(ctx context.Context, reqCtx *a2asrv.RequestContext, queue eventqueue.Queue) error {
	return e.execute(ctx, reqCtx, queue)
}

func (e *Executor) execute(ctx context.Context, reqCtx *a2asrv.RequestContext, w eventWriter) (err error) {
	if reqCtx == nil || reqCtx.Message == nil {
		return ErrMissingMessage
	}

	st := e.state.Load()
	ag := st.agent
	name := ag.Name()
	taskID := string(reqCtx.TaskID)
	log := slog.With("task_id", taskID, "context_id", reqCtx.ContextID, "agent", name)

	start := time.Now()
	ctx, span := e.tracer.StartTaskExecution(ctx, taskID, reqCtx.ContextID, name)
	outcome, steps := observability.OutcomeError, 0
	defer func() {
		if err != nil {
			e.tracer.RecordError(span, err)
		}
		e.tracer.EndWithOutcome(span, outcome, steps)
		e.metrics.RecordExecution(name, outcome, time.Since(start))
		log.Debug("Execution finished", "outcome", outcome, "steps", steps, "duration", time.Since(start))
	}()

	log.Debug("Execution started", "resumed", reqCtx.StoredTask != nil)

	if reqCtx.StoredTask == nil {
		if err := w.Write(ctx, newSubmittedTask(reqCtx)); err != nil {
			return fmt.Errorf("failed to write task: %w", err)
		}
	}

	req := agent.NewRequest(reqCtx.TaskID, reqCtx.ContextID, reqCtx.Message)
	for step, serr := range ag.Stream(ctx, req) {
		if serr != nil {
			if ctx.Err() != nil {
				outcome = observability.OutcomeCanceled
			}
			return fmt.Errorf("agent stream failed at step %d: %w", steps, serr)
		}
		if step == nil {
			continue
		}
		steps++
		e.metrics.RecordStep(name, string(step.Kind()))

		switch s := step.(type) {
		case agent.Progress:
			if err := w.Write(ctx, newStatus(reqCtx, a2a.TaskStateWorking, s.Text, false)); err != nil {
				return fmt.Errorf("failed to write progress: %w", err)
			}

		case agent.InputRequired:
			if err := w.Write(ctx, newStatus(reqCtx, a2a.TaskStateInputRequired, s.Text, true)); err != nil {
				return fmt.Errorf("failed to write input request: %w", err)
			}
			outcome = observability.OutcomeInputRequired
			return nil

		case agent.Complete:
			if err := w.Write(ctx, newResultArtifact(reqCtx, st.artifactName, st.artifactDescription, s.Text)); err != nil {
				return fmt.Errorf("failed to write artifact: %w", err)
			}
			if err := w.Write(ctx, newStatus(reqCtx, a2a.TaskStateCompleted, "", true)); err != nil {
				return fmt.Errorf("failed to write completion: %w", err)
			}
			outcome = observability.OutcomeCompleted
			return nil

		default:
			return fmt.Errorf("agent stream yielded unknown step %T at step %d", step, steps)
		}
	}

	outcome = observability.OutcomeIncomplete
	log.Warn("Agent stream ended without a terminal step", "steps", steps)
	return fmt.Errorf("task %s: %w", taskID, ErrIncompleteStream)
}

// Cancel implements a2asrv.AgentExecutor. Cancellation is not supported.
func (e *Executor) Cancel(ctx context.Context, reqCtx *a2asrv.RequestContext, _ eventqueue.Queue) error {
	_, span := e.tracer.Start(ctx, observability.SpanTaskCancel)
	defer span.End()
	if reqCtx != nil {
		slog.Debug("Cancel requested", "task_id", reqCtx.TaskID)
	}
	return ErrUnsupportedOperation
}

var _ a2asrv.AgentExecutor = (*Executor)(nil)
