package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// HealthHandler reports service liveness and dependency status.
type HealthHandler struct {
	Checks map[string]HealthChecker
	Logger zerolog.Logger

	ErrorHandler   *ErrorHandler
	ResponseHelper *ResponseHelper
}

// NewHealthHandler creates a new HealthHandler
func NewHealthHandler(checks map[string]HealthChecker, logger zerolog.Logger) *HealthHandler {
	return &HealthHandler{
		Checks:         checks,
		Logger:         logger,
		ErrorHandler:   NewErrorHandler(logger),
		ResponseHelper: NewResponseHelper(),
	}
}

// ServeHTTP handles GET /health. A failing dependency answers 503.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	results := make(map[string]string, len(h.Checks))
	status := http.StatusOK
	for name, check := range h.Checks {
		if err := check.Ping(ctx); err != nil {
			h.Logger.Warn().Err(err).Str("check", name).Msg("Health check failed")
			results[name] = "unavailable"
			status = http.StatusServiceUnavailable
			continue
		}
		results[name] = "ok"
	}

	h.ErrorHandler.SendJSONResponse(w, status, h.ResponseHelper.CreateHealthCheckData(results))
}

// HealthCheckFunc adapts a function to HealthChecker.
type HealthCheckFunc func(ctx context.Context) error

// Ping calls f.
func (f HealthCheckFunc) Ping(ctx context.Context) error { return f(ctx) }
