package server

import (
	"context"
	"encoding/json"
	"io"
	"iter"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/a2aproject/a2a-go/a2asrv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/parley/pkg/agent"
	"github.com/kadirpekel/parley/pkg/config"
	"github.com/kadirpekel/parley/pkg/observability"
)

func newTestServer(t *testing.T, mutate func(*config.Config), opts ...HTTPServerOption) (*HTTPServer, *config.Config) {
	t.Helper()
	cfg := config.Default()
	cfg.Agent.Name = "weather"
	cfg.Agent.Description = "Reports the weather"
	if mutate != nil {
		mutate(cfg)
	}
	exec := NewExecutor(ExecutorConfig{Agent: scripted(agent.Complete{Text: "sunny"})})
	return NewHTTPServer(cfg, exec, opts...), cfg
}

func fetchCard(t *testing.T, h http.Handler, path string) *a2a.AgentCard {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var card a2a.AgentCard
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &card))
	return &card
}

func TestHTTPServer_Health(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "weather", body["agent"])
}

func TestHTTPServer_AgentCard(t *testing.T) {
	srv, cfg := newTestServer(t, nil)

	for _, path := range []string{"/", a2asrv.WellKnownAgentCardPath} {
		t.Run(path, func(t *testing.T) {
			card := fetchCard(t, srv.Handler(), path)
			assert.Equal(t, "weather", card.Name)
			assert.Equal(t, "Reports the weather", card.Description)
			assert.Equal(t, cfg.Server.URL(), card.URL)
			assert.True(t, card.Capabilities.Streaming)
		})
	}
}

func TestHTTPServer_UpdateAgent(t *testing.T) {
	srv, cfg := newTestServer(t, nil)

	next := *cfg
	next.Agent.Name = "forecast"
	next.Agent.ArtifactName = "forecast_report"
	replacement := agent.Func{AgentName: "forecast", Fn: func(context.Context, agent.Request) iter.Seq2[agent.Step, error] {
		return agent.Steps(agent.Complete{Text: "rain"})
	}}
	srv.UpdateAgent(&next, replacement)

	card := fetchCard(t, srv.Handler(), a2asrv.WellKnownAgentCardPath)
	assert.Equal(t, "forecast", card.Name)
	assert.Equal(t, "forecast", srv.executor.Agent().Name())

	w := &recordingWriter{}
	require.NoError(t, srv.executor.execute(context.Background(), newRequestContext("tomorrow?"), w))
	art, ok := w.events[1].(*a2a.TaskArtifactUpdateEvent)
	require.True(t, ok)
	assert.Equal(t, "forecast_report", art.Artifact.Name)
}

func TestHTTPServer_CORS(t *testing.T) {
	t.Run("permissive by default", func(t *testing.T) {
		srv, _ := newTestServer(t, nil)

		req := httptest.NewRequest(http.MethodOptions, "/", nil)
		req.Header.Set("Origin", "https://app.example.com")
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "GET, POST, OPTIONS", rec.Header().Get("Access-Control-Allow-Methods"))
	})

	t.Run("restricted origins", func(t *testing.T) {
		srv, _ := newTestServer(t, func(c *config.Config) {
			c.Server.CORS.AllowedOrigins = []string{"https://app.example.com"}
		})

		allowed := httptest.NewRequest(http.MethodGet, "/health", nil)
		allowed.Header.Set("Origin", "https://APP.example.com")
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, allowed)
		assert.Equal(t, "https://APP.example.com", rec.Header().Get("Access-Control-Allow-Origin"))

		denied := httptest.NewRequest(http.MethodGet, "/health", nil)
		denied.Header.Set("Origin", "https://evil.example.com")
		rec = httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, denied)
		assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestHTTPServer_RateLimit(t *testing.T) {
	srv, _ := newTestServer(t, func(c *config.Config) {
		c.Server.RateLimit = config.RateLimitConfig{
			Enabled:           config.BoolPtr(true),
			RequestsPerSecond: 0.01,
			Burst:             1,
			IdleTTL:           time.Minute,
		}
	})

	post := func(remote string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{}`))
		req.Header.Set("Content-Type", "application/json")
		req.RemoteAddr = remote
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)
		return rec
	}

	assert.NotEqual(t, http.StatusTooManyRequests, post("10.0.0.1:1234").Code)

	limited := post("10.0.0.1:5678")
	assert.Equal(t, http.StatusTooManyRequests, limited.Code)
	assert.Equal(t, "101", limited.Header().Get("Retry-After"))

	assert.NotEqual(t, http.StatusTooManyRequests, post("10.0.0.2:1234").Code)

	// The agent card is not rate limited.
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHTTPServer_RateLimitProxyHeaders(t *testing.T) {
	limits := config.RateLimitConfig{
		Enabled:           config.BoolPtr(true),
		RequestsPerSecond: 0.01,
		Burst:             1,
		IdleTTL:           time.Minute,
	}
	post := func(h http.Handler, forwardedFor string) int {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{}`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Forwarded-For", forwardedFor)
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	t.Run("untrusted headers are ignored", func(t *testing.T) {
		srv, _ := newTestServer(t, func(c *config.Config) {
			c.Server.RateLimit = limits
		})
		h := srv.Handler()
		assert.NotEqual(t, http.StatusTooManyRequests, post(h, "203.0.113.1"))
		assert.Equal(t, http.StatusTooManyRequests, post(h, "203.0.113.2"))
	})

	t.Run("trusted headers identify the client", func(t *testing.T) {
		srv, _ := newTestServer(t, func(c *config.Config) {
			c.Server.RateLimit = limits
			c.Server.TrustProxyHeaders = true
		})
		h := srv.Handler()
		assert.NotEqual(t, http.StatusTooManyRequests, post(h, "203.0.113.1"))
		assert.NotEqual(t, http.StatusTooManyRequests, post(h, "203.0.113.2"))
		assert.Equal(t, http.StatusTooManyRequests, post(h, "203.0.113.1"))
	})
}

func TestHTTPServer_Metrics(t *testing.T) {
	obs, err := observability.NewManager(context.Background(), observability.Config{
		Metrics: observability.MetricsConfig{Enabled: true},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = obs.Shutdown(context.Background()) })

	srv, _ := newTestServer(t, nil, WithObservability(obs))

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "parley_http_requests")
}

func TestHTTPServer_NoMetricsRouteWhenDisabled(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHTTPServer_StartAndShutdown(t *testing.T) {
	srv, _ := newTestServer(t, func(c *config.Config) {
		c.Server.Host = "127.0.0.1"
		c.Server.Port = freePort(t)
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Start(ctx) }()

	url := "http://" + srv.Address() + "/health"
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}
