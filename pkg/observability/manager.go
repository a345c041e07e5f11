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
	"errors"
	"net/http"
)

// Manager owns the tracer and metrics lifecycle.
type Manager struct {
	cfg     Config
	tracer  *Tracer
	metrics *Metrics
}

// NewManager builds the tracer and metrics described by cfg.
func NewManager(ctx context.Context, cfg Config) (*Manager, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	tracer, err := NewTracer(ctx, &cfg.Tracing)
	if err != nil {
		return nil, err
	}

	metrics, err := NewMetrics(&cfg.Metrics)
	if err != nil {
		_ = tracer.Shutdown(ctx)
		return nil, err
	}

	return &Manager{cfg: cfg, tracer: tracer, metrics: metrics}, nil
}

// NoopManager returns a manager with tracing and metrics disabled.
func NoopManager() *Manager {
	return &Manager{}
}

// Tracer returns the tracer, nil when tracing is disabled.
func (m *Manager) Tracer() *Tracer {
	if m == nil {
		return nil
	}
	return m.tracer
}

// Recorder returns the metrics recorder, a NoopRecorder when disabled.
func (m *Manager) Recorder() Recorder {
	if m == nil || m.metrics == nil {
		return NoopRecorder{}
	}
	return m.metrics
}

// MetricsEnabled reports whether the metrics endpoint should be mounted.
func (m *Manager) MetricsEnabled() bool {
	return m != nil && m.metrics != nil
}

// MetricsEndpoint returns the configured metrics path.
func (m *Manager) MetricsEndpoint() string {
	if m == nil || m.cfg.Metrics.Endpoint == "" {
		return DefaultMetricsPath
	}
	return m.cfg.Metrics.Endpoint
}

// MetricsHandler serves the Prometheus exposition format.
func (m *Manager) MetricsHandler() http.Handler {
	if m == nil {
		return (*Metrics)(nil).Handler()
	}
	return m.metrics.Handler()
}

// Shutdown flushes and stops tracing and metrics.
func (m *Manager) Shutdown(ctx context.Context) error {
	if m == nil {
		return nil
	}
	return errors.Join(m.tracer.Shutdown(ctx), m.metrics.Shutdown(ctx))
}
