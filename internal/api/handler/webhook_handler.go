package handler

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/edupulse/notify/internal/cache"
	"github.com/edupulse/notify/internal/repository"
	"github.com/edupulse/notify/internal/worker"
)

// deliveryReceipt is the provider's outbound status callback payload.
type deliveryReceipt struct {
	ProviderMessageID string     `json:"provider_message_id"`
	Type              string     `json:"type"` // delivered | read | failed
	Error             string     `json:"error,omitempty"`
	Timestamp         *time.Time `json:"timestamp,omitempty"`
}

// inboundMessage is a message a recipient sent back on the channel.
type inboundMessage struct {
	TenantID string `json:"tenant_id"`
	From     string `json:"from"`
	Text     string `json:"text"`
}

// WebhookHandler ingests provider callbacks: delivery receipts that advance
// the notification status machine, and inbound keyword messages that manage
// opt-out flags.
type WebhookHandler struct {
	repo      repository.NotificationRepository
	optouts   cache.Store
	onReceipt func(receiptType string)
	logger    *zap.Logger
}

func NewWebhookHandler(repo repository.NotificationRepository, optouts cache.Store, onReceipt func(string), logger *zap.Logger) *WebhookHandler {
	if onReceipt == nil {
		onReceipt = func(string) {}
	}
	return &WebhookHandler{repo: repo, optouts: optouts, onReceipt: onReceipt, logger: logger}
}

// Receipt handles POST /api/v1/webhooks/receipts
//
// Receipts arrive out of order and duplicated; an update rejected by the
// status machine guard is acknowledged anyway so the provider stops
// retrying it.
func (h *WebhookHandler) Receipt(w http.ResponseWriter, r *http.Request) {
	var rc deliveryReceipt
	if err := json.NewDecoder(r.Body).Decode(&rc); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if rc.ProviderMessageID == "" {
		respondError(w, http.StatusBadRequest, "provider_message_id is required")
		return
	}

	n, err := h.repo.GetByProviderMessageID(r.Context(), rc.ProviderMessageID)
	if err != nil {
		// Unknown message IDs are expected when retention outlives the
		// provider's callback queue. Acknowledge and move on.
		h.logger.Debug("receipt for unknown message",
			zap.String("provider_message_id", rc.ProviderMessageID))
		respondJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	at := time.Now().UTC()
	if rc.Timestamp != nil {
		at = rc.Timestamp.UTC()
	}

	switch rc.Type {
	case "delivered":
		err = h.repo.MarkDelivered(r.Context(), n.ID, at)
	case "read":
		err = h.repo.MarkRead(r.Context(), n.ID)
	case "failed":
		msg := rc.Error
		if msg == "" {
			msg = "provider reported failure"
		}
		err = h.repo.MarkFailed(r.Context(), n.ID, msg, at)
	default:
		respondError(w, http.StatusBadRequest, "unknown receipt type")
		return
	}
	if err != nil {
		h.logger.Warn("receipt not applied",
			zap.String("notification_id", n.ID),
			zap.String("type", rc.Type),
			zap.Error(err),
		)
	}

	h.onReceipt(rc.Type)
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Inbound handles POST /api/v1/webhooks/inbound
//
// STOP and UNSUBSCRIBE flag the sender as opted out; every later dispatch to
// them fails permanently. HELP returns the supported keywords. Anything else
// is acknowledged and dropped.
func (h *WebhookHandler) Inbound(w http.ResponseWriter, r *http.Request) {
	var msg inboundMessage
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if msg.From == "" || msg.TenantID == "" {
		respondError(w, http.StatusBadRequest, "tenant_id and from are required")
		return
	}

	keyword := strings.ToUpper(strings.TrimSpace(msg.Text))
	switch keyword {
	case "STOP", "UNSUBSCRIBE":
		// Opt-out flags never expire on their own.
		if _, err := h.optouts.SetNX(r.Context(), worker.OptOutKey(msg.TenantID, msg.From), 0); err != nil {
			h.logger.Error("failed to record opt-out",
				zap.String("tenant_id", msg.TenantID), zap.Error(err))
			mapError(w, err)
			return
		}
		h.logger.Info("recipient opted out",
			zap.String("tenant_id", msg.TenantID),
			zap.String("recipient", msg.From),
		)
		respondJSON(w, http.StatusOK, map[string]string{
			"status": "opted_out",
			"reply":  "You have been unsubscribed. Reply HELP for assistance.",
		})
	case "HELP":
		respondJSON(w, http.StatusOK, map[string]string{
			"status": "ok",
			"reply":  "Supported keywords: STOP to unsubscribe, HELP for this message.",
		})
	default:
		respondJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
	}
}
