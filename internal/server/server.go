// Package server exposes fisher's HTTP surface: the hook endpoints, the
// health report and the prometheus metrics.
package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/piaoger/fisher/internal/config"
	"github.com/piaoger/fisher/internal/dispatch"
	"github.com/piaoger/fisher/internal/metrics"
	"github.com/piaoger/fisher/internal/scheduler"
)

// StatsSource reports scheduler counters for the health endpoint.
type StatsSource interface {
	Stats() scheduler.Stats
}

// Server is the HTTP front of fisher.
type Server struct {
	cfg        *config.Config
	dispatcher *dispatch.Dispatcher
	stats      StatsSource
	httpServer *http.Server
	mux        *http.ServeMux
}

// New creates the server and wires its routes.
func New(cfg *config.Config, dispatcher *dispatch.Dispatcher, stats StatsSource) *Server {
	s := &Server{
		cfg:        cfg,
		dispatcher: dispatcher,
		stats:      stats,
		mux:        http.NewServeMux(),
	}

	s.setupRoutes()

	handler := RecoveryMiddleware(LoggingMiddleware(s.mux))
	s.httpServer = &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return s
}

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.Handle("GET /metrics", metrics.Handler())
	s.mux.HandleFunc("GET /hook/{name...}", s.handleHook)
	s.mux.HandleFunc("POST /hook/{name...}", s.handleHook)
}

// Handler returns the root handler, middleware included. Used by tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start listens and serves until Shutdown is called.
func (s *Server) Start() error {
	log.Info().Str("addr", s.cfg.Server.Address()).Msg("Starting server")

	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops the HTTP server, letting in-flight requests finish.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Msg("Shutting down server")
	return s.httpServer.Shutdown(ctx)
}
