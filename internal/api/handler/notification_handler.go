package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	apimw "github.com/edupulse/notify/internal/api/middleware"
	"github.com/edupulse/notify/internal/domain"
	"github.com/edupulse/notify/internal/queue"
	"github.com/edupulse/notify/internal/repository"
)

// NotificationHandler handles single-notification endpoints.
type NotificationHandler struct {
	repo   repository.NotificationRepository
	q      *queue.PriorityQueue
	logger *zap.Logger
}

func NewNotificationHandler(repo repository.NotificationRepository, q *queue.PriorityQueue, logger *zap.Logger) *NotificationHandler {
	return &NotificationHandler{repo: repo, q: q, logger: logger}
}

// Create handles POST /api/v1/notifications
//
// A notification with scheduled_at in the future is persisted as scheduled
// and left for the scheduler sweep; anything else is persisted pending and
// enqueued immediately.
func (h *NotificationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateNotificationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := req.Validate(); err != nil {
		h.logger.Warn("create notification rejected",
			zap.String("correlation_id", apimw.GetCorrelationID(r.Context())),
			zap.Error(err),
		)
		mapError(w, err)
		return
	}

	now := time.Now().UTC()
	n := &domain.Notification{
		ID:           uuid.New().String(),
		TenantID:     req.TenantID,
		Channel:      req.Channel,
		Recipient:    req.Recipient,
		Subject:      req.Subject,
		Body:         req.Body,
		MediaURLs:    req.MediaURLs,
		TemplateVars: req.TemplateVars,
		Priority:     req.Priority,
		Status:       domain.StatusPending,
		ScheduledAt:  req.ScheduledAt,
		MaxRetries:   domain.MaxRetries,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if req.ScheduledAt != nil && req.ScheduledAt.After(now) {
		n.Status = domain.StatusScheduled
	}

	if err := h.repo.Create(r.Context(), n); err != nil {
		h.logger.Error("create notification failed",
			zap.String("correlation_id", apimw.GetCorrelationID(r.Context())),
			zap.Error(err),
		)
		mapError(w, err)
		return
	}

	if n.Status == domain.StatusPending {
		if err := h.q.Enqueue(queue.Item{
			NotificationID: n.ID,
			Channel:        n.Channel,
			Priority:       n.Priority,
		}); err != nil {
			// Row stays pending in the DB; surface the backpressure to the
			// caller rather than pretending delivery is underway.
			mapError(w, err)
			return
		}
	}

	respondJSON(w, http.StatusCreated, n)
}

// GetByID handles GET /api/v1/notifications/{id}
func (h *NotificationHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	n, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, n)
}

// List handles GET /api/v1/notifications with filtering and pagination.
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := parseListFilter(r)
	notifications, total, err := h.repo.List(r.Context(), filter)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list notifications")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"data":  notifications,
		"total": total,
		"page":  filter.Page,
		"limit": filter.Limit,
	})
}

func parseListFilter(r *http.Request) domain.ListFilter {
	q := r.URL.Query()
	filter := domain.ListFilter{Page: 1, Limit: 20}

	if p, err := strconv.Atoi(q.Get("page")); err == nil && p > 0 {
		filter.Page = p
	}
	if l, err := strconv.Atoi(q.Get("limit")); err == nil && l > 0 && l <= 100 {
		filter.Limit = l
	}
	if t := q.Get("tenant_id"); t != "" {
		filter.TenantID = &t
	}
	if s := q.Get("status"); s != "" {
		st := domain.Status(s)
		filter.Status = &st
	}
	if ch := q.Get("channel"); ch != "" {
		c := domain.Channel(ch)
		filter.Channel = &c
	}
	if f := q.Get("from"); f != "" {
		if t, err := time.Parse(time.RFC3339, f); err == nil {
			filter.From = &t
		}
	}
	if to := q.Get("to"); to != "" {
		if t, err := time.Parse(time.RFC3339, to); err == nil {
			filter.To = &t
		}
	}
	return filter
}
