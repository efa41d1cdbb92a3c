package handler

import (
	"net/http"

	"github.com/edupulse/notify/internal/health"
)

// HealthHandler serves the pipeline health snapshot. The verdict is
// advisory; the endpoint itself always answers as long as the process and
// the counter store are up.
type HealthHandler struct {
	monitor *health.Monitor
}

func NewHealthHandler(monitor *health.Monitor) *HealthHandler {
	return &HealthHandler{monitor: monitor}
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	snap, err := h.monitor.Snapshot(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "health snapshot unavailable")
		return
	}

	status := http.StatusOK
	if !snap.Healthy {
		status = http.StatusServiceUnavailable
	}
	respondJSON(w, status, snap)
}
