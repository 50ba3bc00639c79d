// Copyright (c) 2026 ecgscan. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/taibuivan/ecgscan/internal/platform/constants"
	"github.com/taibuivan/ecgscan/internal/platform/respond"
)

// readinessTimeout bounds a single dependency check.
const readinessTimeout = 2 * time.Second

// Check pings one dependency.
type Check struct {
	Name  string
	Probe func(ctx context.Context) error
}

// HealthDependencies holds the injectable dependency checkers for the /ready endpoint.
type HealthDependencies struct {
	// Store pings the credential store (postgres or sqlite).
	Store *Check

	// Cache pings Redis. Nil when throttling is disabled.
	Cache *Check
}

type checkResult struct {
	Name  string `json:"name"`
	IsOK  bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

type healthHandler struct {
	dependencies HealthDependencies
	logger       *slog.Logger
}

// NewHealthHandlers creates the /health and /ready http.HandlerFuncs.
func NewHealthHandlers(deps HealthDependencies, logger *slog.Logger) (liveness, readiness http.HandlerFunc) {
	handler := &healthHandler{dependencies: deps, logger: logger}
	return handler.liveness, handler.readiness
}

// liveness handles GET /health (Liveness probe).
func (handler *healthHandler) liveness(writer http.ResponseWriter, request *http.Request) {
	respond.OK(writer, "Service is alive", map[string]string{
		constants.FieldStatus:  "ok",
		constants.FieldApp:     constants.AppName,
		constants.FieldVersion: constants.AppVersion,
	})
}

// readiness handles GET /ready (Readiness probe).
func (handler *healthHandler) readiness(writer http.ResponseWriter, request *http.Request) {
	results := make([]checkResult, 0, 2)
	isSystemReady := true

	for _, check := range []*Check{handler.dependencies.Store, handler.dependencies.Cache} {
		if check == nil {
			continue
		}

		result := handler.run(request.Context(), check)
		if !result.IsOK {
			isSystemReady = false
		}
		results = append(results, result)
	}

	payload := map[string]any{
		constants.FieldStatus: "ready",
		constants.FieldChecks: results,
	}

	if !isSystemReady {
		payload[constants.FieldStatus] = "degraded"
		respond.JSON(writer, http.StatusServiceUnavailable, respond.SuccessEnvelope{
			Success: false,
			Message: "Service is not ready",
			Data:    payload,
		})
		return
	}

	respond.OK(writer, "Service is ready", payload)
}

func (handler *healthHandler) run(ctx context.Context, check *Check) checkResult {
	ctx, cancel := context.WithTimeout(ctx, readinessTimeout)
	defer cancel()

	result := checkResult{Name: check.Name, IsOK: true}
	if err := check.Probe(ctx); err != nil {
		result.IsOK = false
		result.Error = err.Error()
		handler.logger.Error("readiness_check_failed", slog.String("dependency", check.Name), slog.Any("error", err))
	}
	return result
}
