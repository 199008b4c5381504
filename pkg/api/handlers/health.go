package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/marmos91/dittovault/pkg/api/models"
)

// HealthChecker is implemented by the metadata and content stores.
type HealthChecker interface {
	Healthcheck(ctx context.Context) error
}

// HealthHandler handles health check endpoints
type HealthHandler struct {
	BaseHandler
	checks map[string]HealthChecker
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(checks map[string]HealthChecker) *HealthHandler {
	return &HealthHandler{checks: checks}
}

// HealthCheck handles GET /health. It answers 503 when any store fails its
// check.
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	resp := models.HealthResponse{Status: "ok", Checks: make(map[string]string, len(h.checks))}
	status := http.StatusOK
	for name, check := range h.checks {
		if err := check.Healthcheck(ctx); err != nil {
			resp.Checks[name] = err.Error()
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "ok"
	}

	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", RetryAfterSeconds)
	}
	h.sendSuccess(w, status, resp)
}
