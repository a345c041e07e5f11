package observability

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

type recordedRequest struct {
	method string
	route  string
	status int
}

type fakeRecorder struct {
	NoopRecorder
	requests []recordedRequest
}

func (f *fakeRecorder) RecordHTTPRequest(method, route string, statusCode int, _ time.Duration) {
	f.requests = append(f.requests, recordedRequest{method, route, statusCode})
}

func TestConfigDefaults(t *testing.T) {
	var cfg Config
	cfg.SetDefaults()

	assert.Equal(t, "otlp", cfg.Tracing.Exporter)
	assert.Equal(t, DefaultOTLPEndpoint, cfg.Tracing.Endpoint)
	assert.Equal(t, DefaultSamplingRate, cfg.Tracing.SamplingRate)
	assert.True(t, cfg.Tracing.IsInsecure())
	assert.Equal(t, DefaultMetricsPath, cfg.Metrics.Endpoint)
	assert.Equal(t, DefaultNamespace, cfg.Metrics.Namespace)
	require.NoError(t, cfg.Validate())
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{
			name:    "bad exporter",
			cfg:     Config{Tracing: TracingConfig{Enabled: true, Exporter: "zipkin", Endpoint: "x", SamplingRate: 1}},
			wantErr: "invalid exporter",
		},
		{
			name:    "bad sampling rate",
			cfg:     Config{Tracing: TracingConfig{Enabled: true, Exporter: "stdout", SamplingRate: 2}},
			wantErr: "sampling_rate",
		},
		{
			name:    "relative metrics path",
			cfg:     Config{Metrics: MetricsConfig{Enabled: true, Endpoint: "metrics"}},
			wantErr: "absolute path",
		},
		{
			name: "disabled sections are not validated",
			cfg:  Config{Tracing: TracingConfig{Exporter: "zipkin"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNilTracerIsNoop(t *testing.T) {
	var tracer *Tracer

	ctx, span := tracer.StartTaskExecution(context.Background(), "t", "c", "a")
	require.NotNil(t, ctx)
	require.NotNil(t, span)
	tracer.RecordError(span, errors.New("ignored"))
	tracer.EndWithOutcome(span, OutcomeCompleted, 1)
	assert.NoError(t, tracer.Shutdown(context.Background()))
}

func TestNewTracer_Disabled(t *testing.T) {
	tracer, err := NewTracer(context.Background(), &TracingConfig{})
	require.NoError(t, err)
	assert.Nil(t, tracer)
}

func TestTracer_RecordsTaskSpan(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tracer, err := NewTracer(context.Background(),
		&TracingConfig{Enabled: true, Exporter: "stdout"},
		WithExporter(exporter), WithoutGlobal())
	require.NoError(t, err)

	_, span := tracer.StartTaskExecution(context.Background(), "task-1", "ctx-1", "weather")
	tracer.EndWithOutcome(span, OutcomeInputRequired, 2)
	require.NoError(t, tracer.ForceFlush(context.Background()))

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, SpanTaskExecute, spans[0].Name)

	attrs := map[string]string{}
	for _, kv := range spans[0].Attributes {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	assert.Equal(t, "task-1", attrs[AttrTaskID])
	assert.Equal(t, "ctx-1", attrs[AttrContextID])
	assert.Equal(t, OutcomeInputRequired, attrs[AttrOutcome])
	assert.Equal(t, "2", attrs[AttrStepCount])

	require.NoError(t, tracer.Shutdown(context.Background()))
}

func TestMetrics_ExposedThroughHandler(t *testing.T) {
	metrics, err := NewMetrics(&MetricsConfig{Enabled: true})
	require.NoError(t, err)
	require.NotNil(t, metrics)
	defer func() { _ = metrics.Shutdown(context.Background()) }()

	metrics.RecordExecution("weather", OutcomeCompleted, 20*time.Millisecond)
	metrics.RecordStep("weather", "progress")
	metrics.RecordConversationTurn(OutcomeCompleted)
	metrics.RecordHTTPRequest(http.MethodPost, "/", http.StatusOK, time.Millisecond)

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "parley_task_executions")
	assert.Contains(t, string(body), "parley_agent_steps")
	assert.Contains(t, string(body), "parley_conversation_turns")
	assert.Contains(t, string(body), "parley_http_requests")
}

func TestMetrics_DisabledReturnsNil(t *testing.T) {
	metrics, err := NewMetrics(&MetricsConfig{})
	require.NoError(t, err)
	assert.Nil(t, metrics)

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHTTPMiddleware_UsesRoutePattern(t *testing.T) {
	rec := &fakeRecorder{}

	r := chi.NewRouter()
	r.Use(HTTPMiddleware(nil, rec))
	r.Get("/items/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/items/42", nil))

	require.Equal(t, http.StatusAccepted, resp.Code)
	require.Len(t, rec.requests, 1)
	assert.Equal(t, recordedRequest{http.MethodGet, "/items/{id}", http.StatusAccepted}, rec.requests[0])
}

func TestResponseWriter_ForwardsFlush(t *testing.T) {
	rec := httptest.NewRecorder()
	w := &responseWriter{ResponseWriter: rec, statusCode: http.StatusOK}

	_, err := w.Write([]byte("data: x\n\n"))
	require.NoError(t, err)
	w.Flush()

	assert.True(t, rec.Flushed)
	assert.Equal(t, len("data: x\n\n"), w.bytesWritten)
}

func TestManager_Noop(t *testing.T) {
	m := NoopManager()
	assert.Nil(t, m.Tracer())
	assert.IsType(t, NoopRecorder{}, m.Recorder())
	assert.False(t, m.MetricsEnabled())
	assert.Equal(t, DefaultMetricsPath, m.MetricsEndpoint())
	assert.NoError(t, m.Shutdown(context.Background()))
}
