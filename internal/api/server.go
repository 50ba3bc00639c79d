// Copyright (c) 2026 ecgscan. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package api wires together the HTTP router, middleware chain, and all
domain handlers into a runnable [http.Server].

Architecture:

  - This package is the topmost Presentation layer boundary.
  - It acts as the central composition root for the HTTP transport framework (chi router).
  - Only this package and cmd/api are allowed to import net/http server primitives.
*/
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/taibuivan/ecgscan/internal/platform/config"
	"github.com/taibuivan/ecgscan/internal/platform/constants"
	"github.com/taibuivan/ecgscan/internal/platform/middleware"
	"github.com/taibuivan/ecgscan/internal/users/auth"
)

// # Server Definitions

// Server wraps the chi router and the [http.Server].
//
// It is constructed once by the serve command with all dependencies injected.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	log        *slog.Logger
}

// # Handler Registry

// Handlers groups all HTTP handler sets mounted by the server.
type Handlers struct {
	// Liveness is the /health handler. Always 200 while the process is alive.
	Liveness http.HandlerFunc

	// Readiness is the /ready handler. 200 when every dependency answers.
	Readiness http.HandlerFunc

	// Metrics exposes the Prometheus registry. Optional.
	Metrics http.Handler

	// Auth handles the identity, reset and admin routes.
	Auth *auth.Handler
}

// # Server Initialization

// NewServer constructs the chi router with the full middleware chain and
// registers all route groups.
//
// ctx bounds background work started by the middleware (rate limiter sweeps).
func NewServer(ctx context.Context, cfg *config.Config, log *slog.Logger, guard *middleware.Guard, h Handlers) *Server {
	r := newRouter(ctx, cfg, log, guard, h)

	return &Server{
		router: r,
		log:    log,
		httpServer: &http.Server{
			Addr:              ":" + cfg.ServerPort,
			Handler:           r,
			ReadTimeout:       constants.DefaultReadTimeout,
			WriteTimeout:      constants.DefaultWriteTimeout,
			IdleTimeout:       constants.DefaultIdleTimeout,
			ReadHeaderTimeout: constants.DefaultReadHeaderTimeout,
		},
	}
}

func newRouter(ctx context.Context, cfg *config.Config, log *slog.Logger, guard *middleware.Guard, h Handlers) *chi.Mux {
	r := chi.NewRouter()

	// # Middleware Chain
	// Global middleware applied in order of execution.
	r.Use(middleware.RequestID())
	r.Use(middleware.StructuredLogger(log))
	r.Use(chimw.Timeout(constants.GlobalRequestTimeout))
	r.Use(middleware.RateLimit(ctx, constants.DefaultRateLimitRPS, constants.DefaultRateLimitBurst))
	r.Use(middleware.PanicRecovery(log))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(corsPolicy(cfg)))
	r.Use(chimw.CleanPath)

	// # Infrastructure Endpoints
	// Unauthenticated probes for container orchestration.
	r.Get("/health", h.Liveness)
	r.Get("/ready", h.Readiness)
	if h.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.Metrics)
	}

	// # Application API
	r.Route("/api", func(api chi.Router) {
		api.Mount("/admin", h.Auth.AdminRoutes(guard))
		api.Mount("/", h.Auth.Routes(guard))
	})

	return r
}

// corsPolicy opens CORS to every origin in development when no explicit
// allow list is configured.
func corsPolicy(cfg *config.Config) middleware.CORSPolicy {
	return middleware.CORSPolicy{
		AllowAll: cfg.IsDevelopment() && len(cfg.AllowedOrigins) == 0,
		Origins:  cfg.AllowedOrigins,
	}
}

// # Server Lifecycle

// Handler exposes the fully wired router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe starts the HTTP server.
//
// It blocks until the server is closed or an error occurs.
func (s *Server) ListenAndServe() error {
	s.log.Info("server_starting", slog.String("addr", s.httpServer.Addr))
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server, waiting for in-flight requests.
func (s *Server) Shutdown(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}
