// Package server exposes the research pipeline over HTTP: one long-lived
// SSE stream per research request, plus liveness and metrics endpoints.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"research-agent/internal/common/config"
	"research-agent/internal/common/logger"
	"research-agent/internal/ratelimit"
	"research-agent/internal/workflow"
)

type Server struct {
	httpServer   *http.Server
	orchestrator *workflow.Orchestrator
	limiter      ratelimit.Limiter
	heartbeat    time.Duration
	logger       logger.Logger
}

// New assembles the HTTP surface. limiter may be nil when rate limiting is
// disabled.
func New(cfg *config.Config, orch *workflow.Orchestrator, limiter ratelimit.Limiter, log logger.Logger) *Server {
	s := &Server{
		orchestrator: orch,
		limiter:      limiter,
		heartbeat:    config.Millis(cfg.Server.HeartbeatEvery, 15*time.Second),
		logger:       log.With(map[string]interface{}{"component": "http-server"}),
	}

	address := cfg.Server.Address
	if address == "" {
		address = ":8080"
	}
	s.httpServer = &http.Server{
		Addr:              address,
		Handler:           s.Routes(),
		ReadHeaderTimeout: config.Millis(cfg.Server.ReadTimeout, 10*time.Second),
	}
	return s
}

// Routes builds the handler tree. Exposed separately so tests can mount it
// on httptest servers.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/research", s.handleResearch)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())
	return mux
}

func (s *Server) Start() error {
	s.logger.Info("http server listening", map[string]interface{}{
		"address": s.httpServer.Addr,
	})
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}
