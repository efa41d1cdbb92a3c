package domain_test

import (
	"errors"
	"testing"
	"time"

	"github.com/edupulse/notify/internal/domain"
)

func validRequest() domain.CreateNotificationRequest {
	return domain.CreateNotificationRequest{
		TenantID:  "tenant-1",
		Channel:   domain.ChannelWhatsApp,
		Recipient: "919876543210",
		Body:      "hello",
		Priority:  domain.PriorityNormal,
	}
}

func TestCreateNotificationRequest_Valid(t *testing.T) {
	req := validRequest()
	if err := req.Validate(); err != nil {
		t.Fatalf("expected valid request, got %v", err)
	}
}

func TestCreateNotificationRequest_DefaultsPriority(t *testing.T) {
	req := validRequest()
	req.Priority = ""
	if err := req.Validate(); err != nil {
		t.Fatal(err)
	}
	if req.Priority != domain.PriorityNormal {
		t.Fatalf("expected priority defaulted to normal, got %q", req.Priority)
	}
}

func TestCreateNotificationRequest_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*domain.CreateNotificationRequest)
		wantErr error
	}{
		{"missing tenant", func(r *domain.CreateNotificationRequest) { r.TenantID = "" }, domain.ErrInvalidTenant},
		{"bad channel", func(r *domain.CreateNotificationRequest) { r.Channel = "fax" }, domain.ErrInvalidChannel},
		{"bad priority", func(r *domain.CreateNotificationRequest) { r.Priority = "urgent" }, domain.ErrInvalidPriority},
		{"empty recipient", func(r *domain.CreateNotificationRequest) { r.Recipient = "" }, domain.ErrInvalidRecipient},
		{"email without at-sign", func(r *domain.CreateNotificationRequest) {
			r.Channel = domain.ChannelEmail
			r.Recipient = "not-an-address"
		}, domain.ErrInvalidRecipient},
		{"empty body", func(r *domain.CreateNotificationRequest) { r.Body = "" }, domain.ErrInvalidContent},
		{"oversized body", func(r *domain.CreateNotificationRequest) {
			b := make([]byte, 4097)
			for i := range b {
				b[i] = 'a'
			}
			r.Body = string(b)
		}, domain.ErrInvalidContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest()
			tt.mutate(&req)
			if err := req.Validate(); !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestStatus_Transitions(t *testing.T) {
	allowed := []struct{ from, to domain.Status }{
		{domain.StatusPending, domain.StatusSending},
		{domain.StatusScheduled, domain.StatusQueued},
		{domain.StatusQueued, domain.StatusSending},
		{domain.StatusSending, domain.StatusSent},
		{domain.StatusSending, domain.StatusFailed},
		{domain.StatusSent, domain.StatusDelivered},
		{domain.StatusDelivered, domain.StatusRead},
		{domain.StatusFailed, domain.StatusQueued},
		{domain.StatusFailed, domain.StatusSending},
	}
	for _, tr := range allowed {
		if !tr.from.CanTransitionTo(tr.to) {
			t.Errorf("expected %s -> %s to be allowed", tr.from, tr.to)
		}
	}

	forbidden := []struct{ from, to domain.Status }{
		{domain.StatusRead, domain.StatusSent},
		{domain.StatusSent, domain.StatusQueued},
		{domain.StatusDelivered, domain.StatusFailed},
		{domain.StatusScheduled, domain.StatusSent},
		{domain.StatusPending, domain.StatusDelivered},
	}
	for _, tr := range forbidden {
		if tr.from.CanTransitionTo(tr.to) {
			t.Errorf("expected %s -> %s to be rejected", tr.from, tr.to)
		}
	}
}

func TestScheduledAtIsOptional(t *testing.T) {
	req := validRequest()
	at := time.Now().Add(time.Hour)
	req.ScheduledAt = &at
	if err := req.Validate(); err != nil {
		t.Fatalf("scheduled request should validate: %v", err)
	}
}
