package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/edupulse/notify/internal/cache"
)

// Result reports one rate-limit decision.
type Result struct {
	Allowed   bool          `json:"allowed"`
	Count     int64         `json:"count"`
	Remaining int64         `json:"remaining"`
	ResetIn   time.Duration `json:"reset_in"`
}

// RecipientLimiter counts send attempts per (recipient, tenant) within a
// fixed expiring window. It guards manual/immediate sends only; the
// background sweeps bypass it because their volume is already bounded by the
// scheduler batch limits.
type RecipientLimiter struct {
	store  cache.Store
	limit  int64
	window time.Duration
}

func NewRecipientLimiter(store cache.Store, limit int, window time.Duration) *RecipientLimiter {
	return &RecipientLimiter{store: store, limit: int64(limit), window: window}
}

func key(tenantID, recipient string) string {
	return fmt.Sprintf("ratelimit:%s:%s", tenantID, recipient)
}

// Allow counts this attempt and reports whether it is within the ceiling.
// The counter is incremented even for rejected attempts, matching the
// increment-on-attempt semantics of the window.
func (l *RecipientLimiter) Allow(ctx context.Context, tenantID, recipient string) (*Result, error) {
	k := key(tenantID, recipient)
	count, err := l.store.Incr(ctx, k, l.window)
	if err != nil {
		return nil, fmt.Errorf("rate limit incr: %w", err)
	}
	ttl, err := l.store.TTL(ctx, k)
	if err != nil {
		return nil, fmt.Errorf("rate limit ttl: %w", err)
	}

	remaining := l.limit - count
	if remaining < 0 {
		remaining = 0
	}
	return &Result{
		Allowed:   count <= l.limit,
		Count:     count,
		Remaining: remaining,
		ResetIn:   ttl,
	}, nil
}

// Status reads the current window without counting an attempt.
func (l *RecipientLimiter) Status(ctx context.Context, tenantID, recipient string) (*Result, error) {
	k := key(tenantID, recipient)
	count, err := l.store.Get(ctx, k)
	if err != nil {
		return nil, fmt.Errorf("rate limit get: %w", err)
	}
	ttl, err := l.store.TTL(ctx, k)
	if err != nil {
		return nil, fmt.Errorf("rate limit ttl: %w", err)
	}

	remaining := l.limit - count
	if remaining < 0 {
		remaining = 0
	}
	return &Result{
		Allowed:   count < l.limit,
		Count:     count,
		Remaining: remaining,
		ResetIn:   ttl,
	}, nil
}

// Clear is the administrative reset for one recipient's window.
func (l *RecipientLimiter) Clear(ctx context.Context, tenantID, recipient string) error {
	return l.store.Del(ctx, key(tenantID, recipient))
}
