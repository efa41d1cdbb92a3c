package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	apimw "github.com/edupulse/notify/internal/api/middleware"
	"github.com/edupulse/notify/internal/domain"
	"github.com/edupulse/notify/internal/reminder"
)

// ReminderHandler exposes the operational surface of the reminder engine:
// manual runs, ledger statistics, and the rate-limited immediate send.
type ReminderHandler struct {
	engine *reminder.Engine
	logger *zap.Logger
}

func NewReminderHandler(engine *reminder.Engine, logger *zap.Logger) *ReminderHandler {
	return &ReminderHandler{engine: engine, logger: logger}
}

// Run handles POST /api/v1/reminders/run
//
// Query parameters:
//
//	dry_run=true   select and count, write nothing
//	async=true     return 202 immediately and run in the background
func (h *ReminderHandler) Run(w http.ResponseWriter, r *http.Request) {
	dryRun := r.URL.Query().Get("dry_run") == "true"

	if r.URL.Query().Get("async") == "true" {
		correlationID := apimw.GetCorrelationID(r.Context())
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			defer cancel()
			if _, err := h.engine.Run(ctx, dryRun); err != nil {
				h.logger.Error("background reminder run failed",
					zap.String("correlation_id", correlationID),
					zap.Error(err),
				)
			}
		}()
		respondJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
		return
	}

	report, err := h.engine.Run(r.Context(), dryRun)
	if err != nil {
		h.logger.Error("reminder run failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "reminder run failed")
		return
	}
	respondJSON(w, http.StatusOK, report)
}

// Stats handles GET /api/v1/reminders/stats
//
// Defaults to the last 7 days when from/to are absent.
func (h *ReminderHandler) Stats(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	now := time.Now().UTC()
	from := now.AddDate(0, 0, -7)
	to := now

	if f := q.Get("from"); f != "" {
		t, err := time.Parse(time.RFC3339, f)
		if err != nil {
			respondError(w, http.StatusBadRequest, "from must be RFC3339")
			return
		}
		from = t
	}
	if s := q.Get("to"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			respondError(w, http.StatusBadRequest, "to must be RFC3339")
			return
		}
		to = t
	}

	var tenantID *string
	if t := q.Get("tenant_id"); t != "" {
		tenantID = &t
	}

	stats, err := h.engine.Stats(r.Context(), from, to, tenantID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load reminder stats")
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

// Send handles POST /api/v1/reminders/send — the manual immediate send,
// guarded by the per-recipient rate limiter.
func (h *ReminderHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateNotificationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	n, res, err := h.engine.SendImmediate(r.Context(), req)
	if err != nil {
		if res != nil && !res.Allowed {
			w.Header().Set("Retry-After", res.ResetIn.Round(time.Second).String())
		}
		mapError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]any{
		"notification": n,
		"rate_limit":   res,
	})
}
