package ratelimit

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/edupulse/notify/internal/domain"
)

// ChannelLimiters holds one token bucket limiter per channel type, enforcing
// a steady-state outbound rate toward each provider. This is throughput
// shaping for the worker pool, separate from the per-recipient window above.
// Burst is set equal to the rate so no extra burst capacity is allowed
// beyond the configured per-second maximum.
type ChannelLimiters struct {
	limiters map[domain.Channel]*rate.Limiter
}

// NewChannelLimiters creates limiters with ratePerSec tokens per second per channel.
func NewChannelLimiters(ratePerSec int) *ChannelLimiters {
	r := rate.Limit(ratePerSec)
	burst := ratePerSec

	return &ChannelLimiters{
		limiters: map[domain.Channel]*rate.Limiter{
			domain.ChannelWhatsApp: rate.NewLimiter(r, burst),
			domain.ChannelEmail:    rate.NewLimiter(r, burst),
			domain.ChannelSMS:      rate.NewLimiter(r, burst),
			domain.ChannelPush:     rate.NewLimiter(r, burst),
		},
	}
}

// Wait blocks until the channel's limiter grants a token.
// Called by each worker immediately before sending to the provider.
// Returns a non-nil error only if ctx is cancelled while waiting.
func (cl *ChannelLimiters) Wait(ctx context.Context, ch domain.Channel) error {
	l, ok := cl.limiters[ch]
	if !ok {
		return nil
	}
	return l.Wait(ctx)
}
