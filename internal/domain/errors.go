package domain

import "errors"

// Sentinel errors used throughout the application.
// Handlers translate these to HTTP status codes via a single mapError function.
var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidTenant    = errors.New("tenant_id must not be empty")
	ErrInvalidChannel   = errors.New("invalid channel: must be whatsapp, email, sms, or push")
	ErrInvalidPriority  = errors.New("invalid priority: must be high, normal, or low")
	ErrInvalidRecipient = errors.New("recipient is missing or malformed for the channel")
	ErrInvalidContent   = errors.New("body must be between 1 and 4096 characters")
	ErrQueueFull        = errors.New("queue is at capacity, try again later")

	// ErrChannelNotImplemented is a terminal dispatch error: the channel
	// exists in the data model but has no sender. Never retried.
	ErrChannelNotImplemented = errors.New("channel not implemented")

	// ErrRecipientOptedOut is a terminal dispatch error raised when the
	// recipient has unsubscribed via an inbound command.
	ErrRecipientOptedOut = errors.New("recipient has opted out")

	// ErrRateLimited rejects a manual/immediate send once the recipient's
	// window ceiling is exceeded.
	ErrRateLimited = errors.New("rate limit exceeded for recipient")
)
