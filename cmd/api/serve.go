// Copyright (c) 2026 ecgscan. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/taibuivan/ecgscan/internal/api"
	"github.com/taibuivan/ecgscan/internal/notify"
	"github.com/taibuivan/ecgscan/internal/platform/config"
	"github.com/taibuivan/ecgscan/internal/platform/constants"
	"github.com/taibuivan/ecgscan/internal/platform/metrics"
	"github.com/taibuivan/ecgscan/internal/platform/middleware"
	"github.com/taibuivan/ecgscan/internal/platform/sec"
	"github.com/taibuivan/ecgscan/internal/users/auth"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		Long: `Start the HTTP API server.

Pending migrations are applied and an admin identity is bootstrapped from
ADMIN_EMAIL / ADMIN_PASSWORD when none exists.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context())
		},
	}
}

// serve runs the server until SIGINT/SIGTERM.
//
// # Startup Sequence
//
//  1. Load configuration and initialize the structured logger.
//  2. Connect the credential store and apply migrations (idempotent).
//  3. Connect Redis for attempt throttling (optional).
//  4. Connect the notification backend.
//  5. Wire the auth service, guard and handlers.
//  6. Bootstrap the admin identity.
//  7. Start the HTTP server with graceful shutdown.
func serve(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}

	// ── 1. Configuration ──────────────────────────────────────────────────
	cfg, log, err := bootstrap()
	if err != nil {
		return err
	}

	log.Info("service_initializing")

	// Bounded so misconfiguration is caught quickly rather than hanging.
	startupCtx, startupCancel := context.WithTimeout(parent, constants.StartupTimeout)
	defer startupCancel()

	// ── 2. Credential Store ───────────────────────────────────────────────
	store, err := openStores(startupCtx, cfg, log, true)
	if err != nil {
		return fail(log, err, "open credential store")
	}
	defer store.close()

	// ── 3. Redis ──────────────────────────────────────────────────────────
	limiter, cacheCheck, closeLimiter, err := openLimiter(startupCtx, cfg, log)
	if err != nil {
		return fail(log, err, "connect to redis")
	}
	defer closeLimiter()

	// ── 4. Notification Sink ──────────────────────────────────────────────
	notifier, closeNotifier, err := openNotifier(startupCtx, cfg, log)
	if err != nil {
		return fail(log, err, "connect notify backend")
	}
	defer closeNotifier()

	// ── 5. Domain Wiring ──────────────────────────────────────────────────
	tokens, err := sec.NewTokenService(cfg.JWTSecret, constants.AuthIssuer, cfg.TokenTTL)
	if err != nil {
		return fail(log, err, "initialize token service")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(registry)

	options := []auth.Option{auth.WithRecorder(collector)}
	if limiter != nil {
		options = append(options, auth.WithLimiter(limiter))
	}
	authService := newAuthService(cfg, store, tokens, notifier, options...)

	// ── 6. Admin Bootstrap ────────────────────────────────────────────────
	created, err := authService.EnsureAdmin(startupCtx, adminSeed(cfg, cfg.AdminEmail, cfg.AdminName))
	if err != nil {
		return fail(log, err, "bootstrap admin")
	}
	if created {
		log.Info("admin_bootstrapped")
	}

	// ── 7. HTTP Server ────────────────────────────────────────────────────
	liveness, readiness := api.NewHealthHandlers(api.HealthDependencies{
		Store: store.check,
		Cache: cacheCheck,
	}, log)

	runCtx, runCancel := context.WithCancel(parent)
	defer runCancel()

	guard := middleware.NewGuard(tokens, authService, collector, nil)
	server := api.NewServer(runCtx, cfg, log, guard, api.Handlers{
		Liveness:  liveness,
		Readiness: readiness,
		Metrics:   metrics.Handler(registry),
		Auth:      auth.NewHandler(authService),
	})

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(quit)

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Block until OS signal or server error.
	select {
	case sig := <-quit:
		log.Info("shutdown_signal_received", slog.String("signal", sig.String()))
	case err := <-serverErr:
		return fail(log, err, "listen")
	}

	log.Info("server_shutting_down", slog.Duration("timeout", constants.ShutdownTimeout))

	if err := server.Shutdown(constants.ShutdownTimeout); err != nil {
		log.Error("shutdown_failed", slog.Any("error", err))
		return err
	}

	log.Info("server_stopped")
	return nil
}

// newAuthService applies the configured reset policy on top of options.
func newAuthService(cfg *config.Config, store *stores, tokens auth.TokenProvider, notifier notify.Sink, options ...auth.Option) *auth.Service {
	options = append(options,
		auth.WithResetCodeTTL(cfg.ResetCodeTTL),
		auth.WithNameDisclosure(cfg.ResetDiscloseName),
	)
	return auth.NewService(store.users, store.resets, tokens, notifier, options...)
}

func adminSeed(cfg *config.Config, email, name string) auth.AdminSeed {
	return auth.AdminSeed{
		Email:    email,
		Password: cfg.AdminPassword,
		Name:     name,
	}
}
