package handler

import (
	"log/slog"
	"net/http"
	"time"
)

// HealthHandler serves the health-check endpoint with a snapshot of the
// engine: its operating mode and how many pools it is evaluating.
type HealthHandler struct {
	mode    string
	poolIDs func() []string
	logger  *slog.Logger
}

// NewHealthHandler creates a HealthHandler. poolIDs reports the currently
// registered pools; nil is treated as an empty engine.
func NewHealthHandler(mode string, poolIDs func() []string, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{mode: mode, poolIDs: poolIDs, logger: logger}
}

// HealthCheck reports liveness plus the engine mode and registered pool count.
// GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	pools := 0
	if h.poolIDs != nil {
		pools = len(h.poolIDs())
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"mode":      h.mode,
		"pools":     pools,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
