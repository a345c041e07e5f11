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
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/a2aproject/a2a-go/a2agrpc"
	"github.com/a2aproject/a2a-go/a2asrv"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/kadirpekel/parley/pkg/agent"
	"github.com/kadirpekel/parley/pkg/config"
	"github.com/kadirpekel/parley/pkg/observability"
)

// HTTPServer hosts one agent over A2A JSON-RPC and, optionally, gRPC.
type HTTPServer struct {
	cfg       *config.Config
	executor  *Executor
	taskStore a2asrv.TaskStore
	obs       *observability.Manager
	limiter   *clientLimiter

	requestHandler a2asrv.RequestHandler
	router         http.Handler

	mu          sync.RWMutex
	agentName   string
	cardHandler http.Handler

	server     *http.Server
	grpcServer *grpc.Server
}

// HTTPServerOption configures an HTTPServer.
type HTTPServerOption func(*HTTPServer)

// WithTaskStore sets the store tasks are persisted to. The a2a-go in-memory
// store is used when unset.
func WithTaskStore(store a2asrv.TaskStore) HTTPServerOption {
	return func(s *HTTPServer) {
		s.taskStore = store
	}
}

// WithObservability enables tracing and metrics.
func WithObservability(obs *observability.Manager) HTTPServerOption {
	return func(s *HTTPServer) {
		s.obs = obs
	}
}

// NewHTTPServer creates a server for cfg backed by executor.
func NewHTTPServer(cfg *config.Config, executor *Executor, opts ...HTTPServerOption) *HTTPServer {
	s := &HTTPServer{
		cfg:      cfg,
		executor: executor,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.obs == nil {
		s.obs = observability.NoopManager()
	}
	if cfg.Server.RateLimit.IsEnabled() {
		s.limiter = newClientLimiter(cfg.Server.RateLimit)
	}

	var handlerOpts []a2asrv.RequestHandlerOption
	if s.taskStore != nil {
		handlerOpts = append(handlerOpts, a2asrv.WithTaskStore(s.taskStore))
	}
	s.requestHandler = a2asrv.NewHandler(executor, handlerOpts...)

	s.setCard(cfg)
	s.router = s.setupRoutes()
	return s
}

func (s *HTTPServer) setCard(cfg *config.Config) {
	card := BuildAgentCard(cfg)
	s.mu.Lock()
	s.agentName = card.Name
	s.cardHandler = a2asrv.NewStaticAgentCardHandler(card)
	s.mu.Unlock()
}

func (s *HTTPServer) setupRoutes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	if s.cfg.Server.TrustProxyHeaders {
		r.Use(middleware.RealIP)
	}
	r.Use(observability.HTTPMiddleware(s.obs.Tracer(), s.obs.Recorder()))
	r.Use(loggingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(s.corsMiddleware)

	var rpc http.Handler = a2asrv.NewJSONRPCHandler(s.requestHandler)
	if s.limiter != nil {
		rpc = s.limiter.middleware(rpc)
	}
	r.Method(http.MethodPost, "/", rpc)

	r.Get("/", s.handleCard)
	r.Get(a2asrv.WellKnownAgentCardPath, s.handleCard)
	r.Get("/health", s.handleHealth)

	if s.obs.MetricsEnabled() {
		r.Method(http.MethodGet, s.obs.MetricsEndpoint(), s.obs.MetricsHandler())
	}
	return r
}

func (s *HTTPServer) handleCard(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	h := s.cardHandler
	s.mu.RUnlock()
	h.ServeHTTP(w, r)
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	name := s.agentName
	s.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{
		"status": "ok",
		"agent":  name,
	})
}

// corsMiddleware allows every origin unless server.cors.allowed_origins is set.
func (s *HTTPServer) corsMiddleware(next http.Handler) http.Handler {
	cors := s.cfg.Server.CORS
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		switch {
		case len(cors.AllowedOrigins) == 0:
			w.Header().Set("Access-Control-Allow-Origin", "*")
		case origin != "" && cors.AllowsOrigin(origin):
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Add("Vary", "Origin")
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		slog.Debug("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()),
			"duration", time.Since(start),
		)
	})
}

// Handler returns the routed HTTP handler.
func (s *HTTPServer) Handler() http.Handler {
	return s.router
}

// UpdateAgent applies a reloaded configuration and agent. In-flight
// executions finish with the agent they started with.
func (s *HTTPServer) UpdateAgent(cfg *config.Config, a agent.Agent) {
	s.executor.Reconfigure(a, cfg.Agent.ArtifactName, cfg.Agent.ArtifactDescription)
	s.setCard(cfg)
	slog.Info("Agent updated", "agent", a.Name())
}

// Start serves until ctx is done, then shuts down gracefully.
func (s *HTTPServer) Start(ctx context.Context) error {
	srvCfg := s.cfg.Server

	ln, err := net.Listen("tcp", srvCfg.Address())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", srvCfg.Address(), err)
	}
	s.server = &http.Server{
		Handler:      s.router,
		ReadTimeout:  srvCfg.ReadTimeout,
		WriteTimeout: srvCfg.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	var grpcLn net.Listener
	if addr := srvCfg.GRPCAddress(); addr != "" {
		grpcLn, err = net.Listen("tcp", addr)
		if err != nil {
			_ = ln.Close()
			return fmt.Errorf("failed to listen on %s: %w", addr, err)
		}
		s.grpcServer = grpc.NewServer()
		a2agrpc.NewHandler(s.requestHandler).RegisterWith(s.grpcServer)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("HTTP server starting", "address", ln.Addr().String(), "url", srvCfg.URL())
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	if s.grpcServer != nil {
		g.Go(func() error {
			slog.Info("gRPC server starting", "address", grpcLn.Addr().String())
			if err := s.grpcServer.Serve(grpcLn); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				return fmt.Errorf("grpc server: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		return s.Shutdown(context.Background())
	})

	return g.Wait()
}

// Shutdown stops the servers, waiting up to server.shutdown_timeout for
// in-flight requests.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, s.cfg.Server.ShutdownTimeout)
	defer cancel()

	var errs []error

	if s.server != nil {
		slog.Info("HTTP server shutting down")
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
	}

	if s.grpcServer != nil {
		slog.Info("gRPC server shutting down")
		stopped := make(chan struct{})
		go func() {
			s.grpcServer.GracefulStop()
			close(stopped)
		}()

		select {
		case <-stopped:
		case <-shutdownCtx.Done():
			slog.Warn("gRPC graceful stop timed out, forcing shutdown")
			s.grpcServer.Stop()
		}
	}

	return errors.Join(errs...)
}

// Address returns the HTTP listen address.
func (s *HTTPServer) Address() string {
	return s.cfg.Server.Address()
}

// GRPCAddress returns the gRPC listen address, or "" when gRPC is disabled.
func (s *HTTPServer) GRPCAddress() string {
	return s.cfg.Server.GRPCAddress()
}

// URL returns the public base URL.
func (s *HTTPServer) URL() string {
	return strings.TrimSuffix(s.cfg.Server.URL(), "/")
}
