package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/edupulse/notify/internal/cache"
	"github.com/edupulse/notify/internal/domain"
	"github.com/edupulse/notify/internal/health"
	"github.com/edupulse/notify/internal/provider"
	"github.com/edupulse/notify/internal/queue"
	"github.com/edupulse/notify/internal/ratelimit"
	"github.com/edupulse/notify/internal/repository"
	"github.com/edupulse/notify/internal/template"
)

// Worker is a single goroutine that continuously pulls items from the
// priority queue, claims the notification, renders its content, delivers via
// the matching channel sender, and applies the fast retry tier on transient
// failure.
type Worker struct {
	id       int
	q        *queue.PriorityQueue
	repo     repository.NotificationRepository
	registry *provider.Registry
	limiter  *ratelimit.ChannelLimiters
	monitor  *health.Monitor
	optouts  cache.Store

	// attemptBackoff drives the in-process retry tier: item attempt N that
	// fails transiently is re-enqueued after attemptBackoff[N]. Once the
	// tiers are exhausted the notification goes to failed and the
	// scheduler's slower backoff policy takes over.
	attemptBackoff  []time.Duration
	dispatchTimeout time.Duration

	logger *zap.Logger

	// Hooks for metrics — injected by the pool so the worker stays metrics-agnostic.
	onSent   func(channel domain.Channel, latency time.Duration)
	onFailed func(channel domain.Channel)
}

// Run blocks until ctx is cancelled, processing one queue item per iteration.
func (w *Worker) Run(ctx context.Context) {
	w.logger.Info("worker started", zap.Int("id", w.id))
	for {
		item, ok := w.q.Dequeue(ctx)
		if !ok {
			w.logger.Info("worker stopping", zap.Int("id", w.id))
			return
		}
		w.process(ctx, item)
	}
}

func (w *Worker) process(ctx context.Context, item queue.Item) {
	start := time.Now()
	log := w.logger.With(
		zap.String("notification_id", item.NotificationID),
		zap.String("channel", string(item.Channel)),
	)

	// Each dispatch gets a bounded execution window.
	ctx, cancel := context.WithTimeout(ctx, w.dispatchTimeout)
	defer cancel()

	if item.Cleanup {
		w.recoverStalled(ctx, item, log)
		return
	}

	n, err := w.repo.GetByID(ctx, item.NotificationID)
	if err != nil {
		log.Error("failed to fetch notification", zap.Error(err))
		return
	}

	// Compare-and-swap into sending. Losing the claim means another worker
	// (or a duplicate enqueue of the same item) already owns this row: no-op.
	claimed, err := w.repo.ClaimForSending(ctx, n.ID)
	if err != nil {
		log.Error("claim failed", zap.Error(err))
		return
	}
	if !claimed {
		log.Debug("notification not claimable, skipping", zap.String("status", string(n.Status)))
		return
	}

	// A failed lookup falls through to dispatch: opt-out is a courtesy flag,
	// not a guarantee worth dropping a claimed notification over.
	optedOut, err := w.isOptedOut(ctx, n)
	if err != nil {
		log.Warn("opt-out lookup failed", zap.Error(err))
	} else if optedOut {
		w.fail(ctx, n, fmt.Errorf("%s: %w", n.Recipient, domain.ErrRecipientOptedOut), true, log)
		return
	}

	// Block here until the per-channel rate limiter grants a token.
	if err := w.limiter.Wait(ctx, n.Channel); err != nil {
		// ctx cancelled or timed out while waiting — leave the row for the
		// stalled-sending sweep.
		return
	}

	rendered := renderCopy(n)
	resp, err := w.registry.For(n.Channel).Send(ctx, rendered)
	elapsed := time.Since(start)

	if err != nil {
		log.Warn("send failed",
			zap.Error(err),
			zap.Int("attempt", item.Attempt),
			zap.Int("retry_count", n.RetryCount),
		)
		w.handleFailure(ctx, n, item, err, log)
		return
	}

	now := time.Now().UTC()
	if err := w.repo.MarkSent(ctx, n.ID, resp.MessageID, resp.RawResponse, now); err != nil {
		log.Error("failed to mark as sent", zap.Error(err))
		return
	}
	if err := w.monitor.RecordSuccess(ctx); err != nil {
		log.Warn("health record failed", zap.Error(err))
	}

	w.onSent(n.Channel, elapsed)
	log.Info("notification sent",
		zap.String("provider_msg_id", resp.MessageID),
		zap.Duration("latency", elapsed),
	)
}

// handleFailure applies the two-tier retry split:
//   - terminal errors (unimplemented channel, malformed recipient, opt-out)
//     fail permanently, retry_count forced to the ceiling;
//   - transient errors consume the in-process tier first (re-enqueue with
//     backoff), then fall to failed where the scheduler's sweep owns them.
func (w *Worker) handleFailure(ctx context.Context, n *domain.Notification, item queue.Item, sendErr error, log *zap.Logger) {
	terminal := errors.Is(sendErr, domain.ErrChannelNotImplemented) ||
		errors.Is(sendErr, domain.ErrInvalidRecipient) ||
		errors.Is(sendErr, domain.ErrRecipientOptedOut)

	if terminal {
		w.fail(ctx, n, sendErr, true, log)
		return
	}

	if err := w.monitor.RecordFailure(ctx); err != nil {
		log.Warn("health record failed", zap.Error(err))
	}
	w.onFailed(n.Channel)

	if item.Attempt < len(w.attemptBackoff) {
		// Fast tier: back to queued so the delayed re-enqueue can claim it.
		if err := w.repo.UpdateStatus(ctx, n.ID, domain.StatusQueued); err != nil {
			log.Error("failed to requeue for fast retry", zap.Error(err))
			return
		}
		delay := w.attemptBackoff[item.Attempt]
		item.Attempt++
		w.q.EnqueueAfter(item, delay)
		log.Info("fast retry scheduled",
			zap.Int("attempt", item.Attempt),
			zap.Duration("delay", delay),
		)
		return
	}

	if err := w.repo.MarkFailed(ctx, n.ID, sendErr.Error(), time.Now().UTC()); err != nil {
		log.Error("failed to mark notification as failed", zap.Error(err))
	}
}

// fail records a failure; permanent failures are excluded from the
// scheduler's retry sweep.
func (w *Worker) fail(ctx context.Context, n *domain.Notification, sendErr error, permanent bool, log *zap.Logger) {
	now := time.Now().UTC()
	var err error
	if permanent {
		err = w.repo.MarkFailedPermanent(ctx, n.ID, sendErr.Error(), now)
	} else {
		err = w.repo.MarkFailed(ctx, n.ID, sendErr.Error(), now)
	}
	if err != nil {
		log.Error("failed to mark notification as failed", zap.Error(err))
	}
	if err := w.monitor.RecordFailure(ctx); err != nil {
		log.Warn("health record failed", zap.Error(err))
	}
	w.onFailed(n.Channel)
}

// recoverStalled handles a cleanup-tier item: a row stuck in sending after a
// crash, or stuck in queued with its queue item lost, is CAS-moved back to
// queued and redispatched. The CAS also refreshes updated_at, which takes the
// row out of the stalled-queued sweep's window.
func (w *Worker) recoverStalled(ctx context.Context, item queue.Item, log *zap.Logger) {
	ok, err := w.repo.RequeueStalled(ctx, item.NotificationID)
	if err != nil {
		log.Error("stalled recovery failed", zap.Error(err))
		return
	}
	if !ok {
		log.Debug("stalled notification moved on by itself")
		return
	}
	item.Cleanup = false
	item.Attempt = 0
	if err := w.q.Enqueue(item); err != nil {
		// Still queued in the DB; the stalled-queued sweep picks it up again
		// once it ages past the requeue cutoff.
		log.Warn("could not re-enqueue recovered notification", zap.Error(err))
	}
}

func (w *Worker) isOptedOut(ctx context.Context, n *domain.Notification) (bool, error) {
	if w.optouts == nil {
		return false, nil
	}
	return w.optouts.Exists(ctx, OptOutKey(n.TenantID, n.Recipient))
}

// OptOutKey is the cache key flagging an unsubscribed recipient. Written by
// the inbound webhook handler, read here before every dispatch.
func OptOutKey(tenantID, recipient string) string {
	return "optout:" + tenantID + ":" + recipient
}

// renderCopy returns a shallow copy with template variables substituted into
// body and subject, leaving the stored notification untouched.
func renderCopy(n *domain.Notification) *domain.Notification {
	rendered := *n
	rendered.Body = template.Render(n.Body, n.TemplateVars)
	if n.Subject != nil {
		s := template.Render(*n.Subject, n.TemplateVars)
		rendered.Subject = &s
	}
	return &rendered
}
