package domain

import (
	"strings"
	"time"
)

// Channel is the delivery channel for a notification.
type Channel string

const (
	ChannelWhatsApp Channel = "whatsapp"
	ChannelEmail    Channel = "email"
	ChannelSMS      Channel = "sms"
	ChannelPush     Channel = "push"
)

func (c Channel) IsValid() bool {
	switch c {
	case ChannelWhatsApp, ChannelEmail, ChannelSMS, ChannelPush:
		return true
	}
	return false
}

// Priority controls queue ordering. High is processed first.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityNormal Priority = "normal"
	PriorityLow    Priority = "low"
)

func (p Priority) IsValid() bool {
	switch p {
	case PriorityHigh, PriorityNormal, PriorityLow:
		return true
	}
	return false
}

// Status tracks the lifecycle of a notification.
//
// Valid paths:
//
//	pending/scheduled → queued → sending → sent → delivered → read
//	sending → failed → queued (scheduler retry) → … → failed (terminal)
type Status string

const (
	StatusPending   Status = "pending"
	StatusScheduled Status = "scheduled"
	StatusQueued    Status = "queued"
	StatusSending   Status = "sending"
	StatusSent      Status = "sent"
	StatusDelivered Status = "delivered"
	StatusRead      Status = "read"
	StatusFailed    Status = "failed"
)

// transitions encodes the legal edges of the status machine.
// Claiming for dispatch moves pending/queued/failed directly to sending,
// so those edges appear alongside the scheduler's queued transitions.
var transitions = map[Status][]Status{
	StatusPending:   {StatusQueued, StatusSending},
	StatusScheduled: {StatusQueued},
	StatusQueued:    {StatusSending},
	StatusSending:   {StatusSent, StatusFailed, StatusQueued},
	StatusSent:      {StatusDelivered, StatusRead, StatusFailed},
	StatusDelivered: {StatusRead},
	StatusRead:      {},
	StatusFailed:    {StatusQueued, StatusSending},
}

// CanTransitionTo reports whether moving from s to next is a legal edge.
func (s Status) CanTransitionTo(next Status) bool {
	for _, t := range transitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// MaxRetries is the scheduler-level retry ceiling. A notification whose
// retry_count has reached this value stays failed permanently.
const MaxRetries = 3

// Notification is one outbound message owned by the delivery pipeline.
type Notification struct {
	ID        string  `json:"id"`
	TenantID  string  `json:"tenant_id"`
	Channel   Channel `json:"channel"`
	Recipient string  `json:"recipient"`

	Subject      *string           `json:"subject,omitempty"`
	Body         string            `json:"body"`
	MediaURLs    []string          `json:"media_urls,omitempty"`
	TemplateVars map[string]string `json:"template_vars,omitempty"`

	Priority         Priority   `json:"priority"`
	Status           Status     `json:"status"`
	ScheduledAt      *time.Time `json:"scheduled_at,omitempty"`
	RetryCount       int        `json:"retry_count"`
	MaxRetries       int        `json:"max_retries"`
	NextRetryAt      *time.Time `json:"next_retry_at,omitempty"`
	SentAt           *time.Time `json:"sent_at,omitempty"`
	DeliveredAt      *time.Time `json:"delivered_at,omitempty"`
	FailedAt         *time.Time `json:"failed_at,omitempty"`
	ProviderMsgID    *string    `json:"provider_message_id,omitempty"`
	ProviderResponse *string    `json:"provider_response,omitempty"`
	LastError        *string    `json:"last_error,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreateNotificationRequest is the inbound payload for a single notification.
type CreateNotificationRequest struct {
	TenantID     string            `json:"tenant_id"`
	Channel      Channel           `json:"channel"`
	Recipient    string            `json:"recipient"`
	Subject      *string           `json:"subject,omitempty"`
	Body         string            `json:"body"`
	MediaURLs    []string          `json:"media_urls,omitempty"`
	TemplateVars map[string]string `json:"template_vars,omitempty"`
	Priority     Priority          `json:"priority"`
	ScheduledAt  *time.Time        `json:"scheduled_at,omitempty"`
}

func (r *CreateNotificationRequest) Validate() error {
	if r.TenantID == "" {
		return ErrInvalidTenant
	}
	if !r.Channel.IsValid() {
		return ErrInvalidChannel
	}
	if r.Priority == "" {
		r.Priority = PriorityNormal
	}
	if !r.Priority.IsValid() {
		return ErrInvalidPriority
	}
	if r.Recipient == "" {
		return ErrInvalidRecipient
	}
	if r.Channel == ChannelEmail && !strings.Contains(r.Recipient, "@") {
		return ErrInvalidRecipient
	}
	if r.Body == "" || len(r.Body) > 4096 {
		return ErrInvalidContent
	}
	return nil
}

// ListFilter holds query parameters for paginated notification listing.
type ListFilter struct {
	TenantID *string
	Status   *Status
	Channel  *Channel
	From     *time.Time
	To       *time.Time
	Page     int
	Limit    int
}
