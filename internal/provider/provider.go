package provider

import (
	"context"
	"fmt"

	"github.com/edupulse/notify/internal/domain"
)

// SendResult is what a channel sender reports on success.
type SendResult struct {
	MessageID   string
	RawResponse string
}

// Sender abstracts delivery on one channel. Mocking this interface in tests
// gives full control over provider behaviour without real network calls.
type Sender interface {
	Send(ctx context.Context, n *domain.Notification) (*SendResult, error)
}

// Registry is the closed dispatch table mapping channel → sender. Channels
// without a real sender get an unsupported entry so dispatch always produces
// a typed terminal error rather than a nil-map panic or a generic failure.
type Registry struct {
	senders map[domain.Channel]Sender
}

func NewRegistry(whatsapp, email Sender) *Registry {
	return &Registry{
		senders: map[domain.Channel]Sender{
			domain.ChannelWhatsApp: whatsapp,
			domain.ChannelEmail:    email,
			domain.ChannelSMS:      unsupported{domain.ChannelSMS},
			domain.ChannelPush:     unsupported{domain.ChannelPush},
		},
	}
}

// For returns the sender for ch. Unknown channels fall through to the typed
// unsupported error as well.
func (r *Registry) For(ch domain.Channel) Sender {
	if s, ok := r.senders[ch]; ok {
		return s
	}
	return unsupported{ch}
}

// unsupported is the sender for channels the platform models but does not
// deliver. Its error wraps ErrChannelNotImplemented: a terminal failure the
// dispatcher must never retry.
type unsupported struct {
	ch domain.Channel
}

func (u unsupported) Send(context.Context, *domain.Notification) (*SendResult, error) {
	return nil, fmt.Errorf("%s: %w", u.ch, domain.ErrChannelNotImplemented)
}
