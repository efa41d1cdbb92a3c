package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/edupulse/notify/internal/domain"
)

// whatsAppRequest is the JSON body posted to the WhatsApp HTTP API.
// Media messages carry the body as the caption.
type whatsAppRequest struct {
	To       string `json:"to"`
	Type     string `json:"type"` // "text" or "media"
	Body     string `json:"body,omitempty"`
	MediaURL string `json:"media_url,omitempty"`
	Caption  string `json:"caption,omitempty"`
}

// whatsAppResponse maps the provider's accepted-response body.
type whatsAppResponse struct {
	MessageID string `json:"message_id"`
	Status    string `json:"status"`
}

// WhatsAppSender delivers notifications through an HTTP WhatsApp-style API.
// The base URL is injected from config so tests can point to a local mock.
type WhatsAppSender struct {
	baseURL     string
	token       string
	countryCode string
	httpClient  *http.Client
}

func NewWhatsAppSender(baseURL, token, countryCode string, timeout time.Duration) *WhatsAppSender {
	return &WhatsAppSender{
		baseURL:     baseURL,
		token:       token,
		countryCode: countryCode,
		httpClient:  &http.Client{Timeout: timeout},
	}
}

// Send posts one message. When the notification carries media references the
// first one becomes a media message with the body as caption; otherwise a
// plain text message goes out.
func (s *WhatsAppSender) Send(ctx context.Context, n *domain.Notification) (*SendResult, error) {
	to, err := NormalizePhone(n.Recipient, s.countryCode)
	if err != nil {
		return nil, err
	}

	reqBody := whatsAppRequest{To: to, Type: "text", Body: n.Body}
	if len(n.MediaURLs) > 0 {
		reqBody = whatsAppRequest{
			To:       to,
			Type:     "media",
			MediaURL: n.MediaURLs[0],
			Caption:  n.Body,
		}
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal whatsapp request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/messages", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create whatsapp request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.token)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send whatsapp request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return nil, fmt.Errorf("read whatsapp response: %w", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return nil, fmt.Errorf("unexpected whatsapp status %d: %s", resp.StatusCode, raw)
	}

	var waResp whatsAppResponse
	if err := json.Unmarshal(raw, &waResp); err != nil {
		return nil, fmt.Errorf("decode whatsapp response: %w", err)
	}
	if waResp.MessageID == "" {
		return nil, fmt.Errorf("whatsapp response missing message_id: %s", raw)
	}

	return &SendResult{MessageID: waResp.MessageID, RawResponse: string(raw)}, nil
}

// compile-time check that WhatsAppSender implements Sender
var _ Sender = (*WhatsAppSender)(nil)
