// Package scheduler owns the periodic sweeps that feed the dispatch queue:
// promoting due scheduled notifications, re-queueing exhausted failures on
// the slow backoff policy, recovering dispatches that stalled mid-flight,
// and re-enqueueing queued rows whose in-memory item was lost.
package scheduler

import (
	"context"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/edupulse/notify/internal/domain"
	"github.com/edupulse/notify/internal/queue"
	"github.com/edupulse/notify/internal/repository"
)

// Config bounds each tick. Batch limits keep tick latency predictable; the
// sweep timeout prevents a runaway tick from overlapping the next one.
type Config struct {
	Interval        time.Duration // tick period, default 60s
	SweepTimeout    time.Duration // per-tick bound, default 300s
	ScheduledBatch  int           // due-scheduled sweep limit, default 100
	RetryBatch      int           // retry sweep limit, default 50
	RetryDelay      time.Duration // enqueue delay for slow retries, default 1m
	BackoffBase     time.Duration // slow-retry backoff base, default 5m
	JitterMax       time.Duration // due-scheduled enqueue jitter ceiling, default 30s
	DispatchTimeout time.Duration // worker dispatch bound, used for the stalled-sending cutoff
	StalledBatch    int           // stalled sweep limit, default 50
	RequeueTimeout  time.Duration // stalled-queued cutoff, default 20m; must exceed the longest legitimate enqueue delay
}

// Scheduler runs the sweeps on a fixed tick. All side effects go through the
// notification repository; it never talks to a channel sender.
type Scheduler struct {
	repo   repository.NotificationRepository
	q      *queue.PriorityQueue
	cfg    Config
	logger *zap.Logger

	now func() time.Time
}

func New(repo repository.NotificationRepository, q *queue.PriorityQueue, cfg Config, logger *zap.Logger) *Scheduler {
	return &Scheduler{repo: repo, q: q, cfg: cfg, logger: logger, now: time.Now}
}

// Run ticks every interval until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	s.logger.Info("scheduler started", zap.Duration("interval", s.cfg.Interval))

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopping")
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick runs all sweeps once, each within the shared sweep timeout.
// Exposed for the "process now" operational endpoint and for tests.
func (s *Scheduler) Tick(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.SweepTimeout)
	defer cancel()

	s.sweepScheduled(ctx)
	s.sweepRetries(ctx)
	s.sweepStalled(ctx)
	s.sweepStalledQueued(ctx)
}

// sweepScheduled promotes due scheduled notifications to queued, oldest
// first. Each enqueue carries a small random jitter so a burst of
// notifications scheduled for the same minute does not hammer the provider
// at once. A failing item is logged and skipped, never aborting the sweep.
func (s *Scheduler) sweepScheduled(ctx context.Context) {
	now := s.now().UTC()
	due, err := s.repo.FindDueScheduled(ctx, now, s.cfg.ScheduledBatch)
	if err != nil {
		s.logger.Error("due-scheduled sweep error", zap.Error(err))
		return
	}

	enqueued := 0
	for _, n := range due {
		if err := s.repo.UpdateStatus(ctx, n.ID, domain.StatusQueued); err != nil {
			s.logger.Error("failed to queue scheduled notification",
				zap.String("id", n.ID), zap.Error(err))
			continue
		}
		s.logger.Info("scheduled notification due",
			zap.String("id", n.ID),
			zap.Time("scheduled_at", *n.ScheduledAt),
		)
		s.q.EnqueueAfter(queue.Item{
			NotificationID: n.ID,
			Channel:        n.Channel,
			Priority:       n.Priority,
		}, s.jitter())
		enqueued++
	}

	if enqueued > 0 {
		s.logger.Info("enqueued due scheduled notifications", zap.Int("count", enqueued))
	}
}

// sweepRetries applies the slow backoff policy to failed notifications with
// retries remaining: bump retry_count, stamp next_retry_at, move to queued,
// and enqueue after a short fixed delay.
func (s *Scheduler) sweepRetries(ctx context.Context) {
	now := s.now().UTC()
	due, err := s.repo.FindDueRetries(ctx, now, s.cfg.RetryBatch)
	if err != nil {
		s.logger.Error("retry sweep error", zap.Error(err))
		return
	}

	enqueued := 0
	for _, n := range due {
		retryCount := n.RetryCount + 1
		nextRetry := now.Add(s.BackoffFor(retryCount))

		if err := s.repo.ScheduleRetry(ctx, n.ID, retryCount, nextRetry); err != nil {
			s.logger.Error("failed to schedule retry",
				zap.String("id", n.ID), zap.Error(err))
			continue
		}
		s.q.EnqueueAfter(queue.Item{
			NotificationID: n.ID,
			Channel:        n.Channel,
			Priority:       n.Priority,
		}, s.cfg.RetryDelay)
		enqueued++
	}

	if enqueued > 0 {
		s.logger.Info("re-enqueued due retries", zap.Int("count", enqueued))
	}
}

// sweepStalled finds rows stuck in sending past twice the dispatch timeout
// (worker crashed or was killed mid-flight) and hands them to the cleanup
// tier for recovery.
func (s *Scheduler) sweepStalled(ctx context.Context) {
	cutoff := s.now().UTC().Add(-2 * s.cfg.DispatchTimeout)
	stalled, err := s.repo.FindStalledSending(ctx, cutoff, s.cfg.StalledBatch)
	if err != nil {
		s.logger.Error("stalled sweep error", zap.Error(err))
		return
	}

	for _, n := range stalled {
		if err := s.q.EnqueueCleanup(queue.Item{
			NotificationID: n.ID,
			Channel:        n.Channel,
			Priority:       n.Priority,
		}); err != nil {
			s.logger.Warn("could not enqueue stalled notification",
				zap.String("id", n.ID), zap.Error(err))
		}
	}

	if len(stalled) > 0 {
		s.logger.Warn("recovering stalled notifications", zap.Int("count", len(stalled)))
	}
}

// sweepStalledQueued finds rows stuck in queued with no live queue item. That
// happens when a restart wipes the in-memory tiers while delayed enqueue
// timers are pending, or when a full tier drops a delayed item. The cutoff
// must sit beyond the longest legitimate enqueue delay (fast-tier backoff plus
// jitter) or the sweep would double-enqueue items whose timer is still armed;
// the worker's claim CAS makes even that harmless, just wasteful.
func (s *Scheduler) sweepStalledQueued(ctx context.Context) {
	cutoff := s.now().UTC().Add(-s.cfg.RequeueTimeout)
	stranded, err := s.repo.FindStalledQueued(ctx, cutoff, s.cfg.StalledBatch)
	if err != nil {
		s.logger.Error("stalled-queued sweep error", zap.Error(err))
		return
	}

	for _, n := range stranded {
		if err := s.q.EnqueueCleanup(queue.Item{
			NotificationID: n.ID,
			Channel:        n.Channel,
			Priority:       n.Priority,
		}); err != nil {
			s.logger.Warn("could not enqueue stranded notification",
				zap.String("id", n.ID), zap.Error(err))
		}
	}

	if len(stranded) > 0 {
		s.logger.Warn("recovering stranded queued notifications", zap.Int("count", len(stranded)))
	}
}

// BackoffFor computes the slow-retry delay: base · 2^retryCount, i.e.
// 10/20/40 minutes for retries 1..3 with the default 5-minute base.
func (s *Scheduler) BackoffFor(retryCount int) time.Duration {
	return s.cfg.BackoffBase * (1 << retryCount)
}

// jitter returns a uniform delay in [1s, JitterMax].
func (s *Scheduler) jitter() time.Duration {
	max := int64(s.cfg.JitterMax)
	if max <= int64(time.Second) {
		return time.Second
	}
	return time.Second + time.Duration(rand.Int63n(max-int64(time.Second)+1))
}
