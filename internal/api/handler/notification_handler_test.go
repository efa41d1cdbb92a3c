package handler_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/edupulse/notify/internal/api/handler"
	"github.com/edupulse/notify/internal/domain"
	"github.com/edupulse/notify/internal/queue"
	"github.com/edupulse/notify/internal/repository"
)

func newNotificationHandler() (*handler.NotificationHandler, *repository.MockNotificationRepository, *queue.PriorityQueue) {
	repo := repository.NewMockNotificationRepository()
	q := queue.New()
	return handler.NewNotificationHandler(repo, q, zap.NewNop()), repo, q
}

func TestNotificationHandler_CreateEnqueuesImmediately(t *testing.T) {
	nh, repo, q := newNotificationHandler()

	body := `{"tenant_id":"tenant-1","channel":"whatsapp","recipient":"919876543210","body":"hello","priority":"high"}`
	rec := postJSON(nh.Create, body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}

	var n domain.Notification
	if err := json.Unmarshal(rec.Body.Bytes(), &n); err != nil {
		t.Fatal(err)
	}
	if n.ID == "" || n.Status != domain.StatusPending {
		t.Fatalf("unexpected response: %+v", n)
	}

	stored, err := repo.GetByID(context.Background(), n.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.MaxRetries != domain.MaxRetries {
		t.Fatalf("max_retries not defaulted, got %d", stored.MaxRetries)
	}

	high, _, _, _ := q.Depths()
	if high != 1 {
		t.Fatalf("high-priority item not enqueued, depth=%d", high)
	}
}

func TestNotificationHandler_CreateScheduledIsNotEnqueued(t *testing.T) {
	nh, repo, q := newNotificationHandler()

	at := time.Now().UTC().Add(time.Hour).Format(time.RFC3339)
	body := fmt.Sprintf(`{"tenant_id":"t","channel":"email","recipient":"parent@example.com","body":"pta meeting","scheduled_at":%q}`, at)
	rec := postJSON(nh.Create, body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}

	var n domain.Notification
	_ = json.Unmarshal(rec.Body.Bytes(), &n)
	if n.Status != domain.StatusScheduled {
		t.Fatalf("expected scheduled, got %s", n.Status)
	}
	if q.Size() != 0 {
		t.Fatal("scheduled notification must wait for the scheduler sweep")
	}

	stored, _ := repo.GetByID(context.Background(), n.ID)
	if stored.ScheduledAt == nil {
		t.Fatal("scheduled_at not persisted")
	}
}

func TestNotificationHandler_CreateValidation(t *testing.T) {
	nh, _, _ := newNotificationHandler()

	tests := []struct {
		name string
		body string
		want int
	}{
		{"malformed json", `{`, http.StatusBadRequest},
		{"missing tenant", `{"channel":"whatsapp","recipient":"919876543210","body":"x"}`, http.StatusUnprocessableEntity},
		{"bad channel", `{"tenant_id":"t","channel":"fax","recipient":"x","body":"x"}`, http.StatusUnprocessableEntity},
		{"bad email recipient", `{"tenant_id":"t","channel":"email","recipient":"nope","body":"x"}`, http.StatusUnprocessableEntity},
		{"empty body", `{"tenant_id":"t","channel":"whatsapp","recipient":"919876543210","body":""}`, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := postJSON(nh.Create, tt.body); rec.Code != tt.want {
				t.Fatalf("got %d, want %d: %s", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

func TestNotificationHandler_GetByID(t *testing.T) {
	nh, repo, _ := newNotificationHandler()
	_ = repo.Create(context.Background(), &domain.Notification{
		ID: "n1", TenantID: "t", Channel: domain.ChannelWhatsApp,
		Recipient: "919876543210", Body: "x", Status: domain.StatusSent,
	})

	r := chi.NewRouter()
	r.Get("/api/v1/notifications/{id}", nh.GetByID)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/notifications/n1", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/notifications/missing", nil)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown id, got %d", rec.Code)
	}
}

func TestNotificationHandler_ListFilters(t *testing.T) {
	nh, repo, _ := newNotificationHandler()
	ctx := context.Background()
	_ = repo.Create(ctx, &domain.Notification{ID: "a", TenantID: "t1", Channel: domain.ChannelWhatsApp, Status: domain.StatusSent})
	_ = repo.Create(ctx, &domain.Notification{ID: "b", TenantID: "t1", Channel: domain.ChannelEmail, Status: domain.StatusFailed})
	_ = repo.Create(ctx, &domain.Notification{ID: "c", TenantID: "t2", Channel: domain.ChannelWhatsApp, Status: domain.StatusSent})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/notifications?tenant_id=t1&status=sent", nil)
	rec := httptest.NewRecorder()
	nh.List(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}

	var resp struct {
		Data  []domain.Notification `json:"data"`
		Total int                   `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Total != 1 || len(resp.Data) != 1 || resp.Data[0].ID != "a" {
		t.Fatalf("unexpected list result: %+v", resp)
	}
}

func TestNotificationHandler_QueueFullSurfaced(t *testing.T) {
	nh, _, q := newNotificationHandler()

	// Saturate the high tier so the next create is rejected with 503.
	for i := 0; i < 1000; i++ {
		_ = q.Enqueue(queue.Item{NotificationID: "x", Channel: domain.ChannelWhatsApp, Priority: domain.PriorityHigh})
	}

	body := `{"tenant_id":"t","channel":"whatsapp","recipient":"919876543210","body":"hello","priority":"high"}`
	rec := postJSON(nh.Create, body)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 on full queue, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "queue") {
		t.Fatalf("error body should mention the queue: %s", rec.Body.String())
	}
}
