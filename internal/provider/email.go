package provider

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/smtp"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/edupulse/notify/internal/domain"
)

// SMTPConfig configures the email sender.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// EmailSender delivers notifications over SMTP. Media references are fetched
// and attached as MIME parts. SMTP has no provider-side message id, so one is
// synthesised for receipt correlation.
type EmailSender struct {
	addr       string
	from       string
	auth       smtp.Auth
	httpClient *http.Client
}

func NewEmailSender(cfg SMTPConfig, fetchTimeout time.Duration) (*EmailSender, error) {
	if cfg.Host == "" || cfg.Port == 0 {
		return nil, fmt.Errorf("smtp host and port are required")
	}
	if cfg.From == "" {
		return nil, fmt.Errorf("smtp from address is required")
	}

	var auth smtp.Auth
	if cfg.Username != "" && cfg.Password != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}

	return &EmailSender{
		addr:       fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		from:       cfg.From,
		auth:       auth,
		httpClient: &http.Client{Timeout: fetchTimeout},
	}, nil
}

func (s *EmailSender) Send(ctx context.Context, n *domain.Notification) (*SendResult, error) {
	if !strings.Contains(n.Recipient, "@") {
		return nil, fmt.Errorf("email %q: %w", n.Recipient, domain.ErrInvalidRecipient)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	subject := "Notification"
	if n.Subject != nil && *n.Subject != "" {
		subject = *n.Subject
	}

	msgID := uuid.New().String()
	raw, err := s.buildMessage(ctx, n, subject, msgID)
	if err != nil {
		return nil, err
	}

	if err := smtp.SendMail(s.addr, s.auth, s.from, []string{n.Recipient}, raw); err != nil {
		return nil, fmt.Errorf("smtp send: %w", err)
	}

	return &SendResult{MessageID: msgID, RawResponse: "smtp accepted"}, nil
}

func (s *EmailSender) buildMessage(ctx context.Context, n *domain.Notification, subject, msgID string) ([]byte, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "From: %s\r\n", s.from)
	fmt.Fprintf(&sb, "To: %s\r\n", n.Recipient)
	fmt.Fprintf(&sb, "Subject: %s\r\n", subject)
	fmt.Fprintf(&sb, "Message-ID: <%s@edupulse>\r\n", msgID)
	sb.WriteString("MIME-Version: 1.0\r\n")

	if len(n.MediaURLs) == 0 {
		sb.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
		sb.WriteString(n.Body)
		return []byte(sb.String()), nil
	}

	boundary := "edupulse-" + msgID[:8]
	fmt.Fprintf(&sb, "Content-Type: multipart/mixed; boundary=%s\r\n\r\n", boundary)

	fmt.Fprintf(&sb, "--%s\r\n", boundary)
	sb.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	sb.WriteString(n.Body)
	sb.WriteString("\r\n")

	for _, u := range n.MediaURLs {
		data, contentType, err := s.fetch(ctx, u)
		if err != nil {
			return nil, fmt.Errorf("fetch attachment %s: %w", u, err)
		}
		name := path.Base(u)
		fmt.Fprintf(&sb, "--%s\r\n", boundary)
		fmt.Fprintf(&sb, "Content-Type: %s\r\n", contentType)
		sb.WriteString("Content-Transfer-Encoding: base64\r\n")
		fmt.Fprintf(&sb, "Content-Disposition: attachment; filename=%q\r\n\r\n", name)
		sb.WriteString(base64.StdEncoding.EncodeToString(data))
		sb.WriteString("\r\n")
	}
	fmt.Fprintf(&sb, "--%s--", boundary)

	return []byte(sb.String()), nil
}

func (s *EmailSender) fetch(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	// 10 MB cap per attachment.
	data, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, "", err
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = mime.TypeByExtension(path.Ext(url))
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return data, contentType, nil
}

// compile-time check that EmailSender implements Sender
var _ Sender = (*EmailSender)(nil)
