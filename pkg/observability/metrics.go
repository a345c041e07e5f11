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


package observability

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Recorder receives the metrics emitted by the executor, the server host and
// the conversation client.
type Recorder interface {
	RecordExecution(agentName, outcome string, duration time.Duration)
	RecordStep(agentName, kind string)
	RecordHTTPRequest(method, route string, statusCode int, duration time.Duration)
	RecordConversationTurn(outcome string)
}

// NoopRecorder discards everything.
type NoopRecorder struct{}

func (NoopRecorder) RecordExecution(_, _ string, _ time.Duration)          {}
func (NoopRecorder) RecordStep(_, _ string)                                {}
func (NoopRecorder) RecordHTTPRequest(_, _ string, _ int, _ time.Duration) {}
func (NoopRecorder) RecordConversationTurn(_ string)                       {}

// Metrics records OpenTelemetry instruments exported through a dedicated
// Prometheus registry.
type Metrics struct {
	registry *promclient.Registry
	provider *sdkmetric.MeterProvider

	executions        metric.Int64Counter
	executionDuration metric.Float64Histogram
	steps             metric.Int64Counter
	httpRequests      metric.Int64Counter
	httpDuration      metric.Float64Histogram
	turns             metric.Int64Counter
}

// NewMetrics creates the metric instruments. Returns nil when metrics are
// disabled; callers should fall back to NoopRecorder.
func NewMetrics(cfg *MetricsConfig) (*Metrics, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, nil
	}
	cfg.SetDefaults()

	registry := promclient.NewRegistry()
	exporter, err := otelprom.New(otelprom.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	meter := provider.Meter(cfg.Namespace)
	name := func(s string) string { return cfg.Namespace + "_" + s }

	m := &Metrics{registry: registry, provider: provider}

	if m.executions, err = meter.Int64Counter(name("task_executions"),
		metric.WithDescription("Task executor invocations by outcome")); err != nil {
		return nil, fmt.Errorf("failed to create executions counter: %w", err)
	}
	if m.executionDuration, err = meter.Float64Histogram(name("task_execution_duration_seconds"),
		metric.WithDescription("Task executor invocation duration in seconds")); err != nil {
		return nil, fmt.Errorf("failed to create execution duration histogram: %w", err)
	}
	if m.steps, err = meter.Int64Counter(name("agent_steps"),
		metric.WithDescription("Agent response steps by kind")); err != nil {
		return nil, fmt.Errorf("failed to create steps counter: %w", err)
	}
	if m.httpRequests, err = meter.Int64Counter(name("http_requests"),
		metric.WithDescription("HTTP requests by route and status")); err != nil {
		return nil, fmt.Errorf("failed to create http requests counter: %w", err)
	}
	if m.httpDuration, err = meter.Float64Histogram(name("http_request_duration_seconds"),
		metric.WithDescription("HTTP request duration in seconds")); err != nil {
		return nil, fmt.Errorf("failed to create http duration histogram: %w", err)
	}
	if m.turns, err = meter.Int64Counter(name("conversation_turns"),
		metric.WithDescription("Client conversation turns by outcome")); err != nil {
		return nil, fmt.Errorf("failed to create turns counter: %w", err)
	}

	return m, nil
}

func (m *Metrics) RecordExecution(agentName, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("agent", agentName),
		attribute.String("outcome", outcome),
	)
	m.executions.Add(context.Background(), 1, attrs)
	m.executionDuration.Record(context.Background(), duration.Seconds(), attrs)
}

func (m *Metrics) RecordStep(agentName, kind string) {
	if m == nil {
		return
	}
	m.steps.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("agent", agentName),
		attribute.String("kind", kind),
	))
}

func (m *Metrics) RecordHTTPRequest(method, route string, statusCode int, duration time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("route", route),
		attribute.String("status", strconv.Itoa(statusCode)),
	)
	m.httpRequests.Add(context.Background(), 1, attrs)
	m.httpDuration.Record(context.Background(), duration.Seconds(), attrs)
}

func (m *Metrics) RecordConversationTurn(outcome string) {
	if m == nil {
		return
	}
	m.turns.Add(context.Background(), 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// Handler serves the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("metrics not enabled"))
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Shutdown stops the meter provider.
func (m *Metrics) Shutdown(ctx context.Context) error {
	if m == nil || m.provider == nil {
		return nil
	}
	return m.provider.Shutdown(ctx)
}

var (
	_ Recorder = (*Metrics)(nil)
	_ Recorder = NoopRecorder{}
)
