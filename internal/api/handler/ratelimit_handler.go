package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/edupulse/notify/internal/ratelimit"
)

// RateLimitHandler exposes per-recipient window inspection and the
// administrative reset.
type RateLimitHandler struct {
	limiter *ratelimit.RecipientLimiter
	logger  *zap.Logger
}

func NewRateLimitHandler(limiter *ratelimit.RecipientLimiter, logger *zap.Logger) *RateLimitHandler {
	return &RateLimitHandler{limiter: limiter, logger: logger}
}

// Status handles GET /api/v1/rate-limits/{tenant}/{recipient}
func (h *RateLimitHandler) Status(w http.ResponseWriter, r *http.Request) {
	tenant := chi.URLParam(r, "tenant")
	recipient := chi.URLParam(r, "recipient")

	res, err := h.limiter.Status(r.Context(), tenant, recipient)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to read rate limit")
		return
	}
	respondJSON(w, http.StatusOK, res)
}

// Clear handles DELETE /api/v1/rate-limits/{tenant}/{recipient}
func (h *RateLimitHandler) Clear(w http.ResponseWriter, r *http.Request) {
	tenant := chi.URLParam(r, "tenant")
	recipient := chi.URLParam(r, "recipient")

	if err := h.limiter.Clear(r.Context(), tenant, recipient); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to clear rate limit")
		return
	}
	h.logger.Info("rate limit window cleared",
		zap.String("tenant_id", tenant),
		zap.String("recipient", recipient),
	)
	w.WriteHeader(http.StatusNoContent)
}
