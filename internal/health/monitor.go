// Package health tracks rolling delivery failure metrics. The monitor is
// advisory: it never blocks dispatch, it only feeds the health endpoint and
// whatever alerting watches it.
package health

import (
	"context"
	"time"

	"github.com/edupulse/notify/internal/cache"
)

const (
	keyAttempts      = "health:attempts"
	keyFailures      = "health:failures"
	keyConsecutive   = "health:consecutive_failures"
	keyLastProcessed = "health:last_processed_at"
)

// Thresholds for the healthy verdict.
const (
	maxFailureRate         = 10.0 // percent, over the rolling window
	maxConsecutiveFailures = 5
)

// Snapshot is the health endpoint payload.
type Snapshot struct {
	Healthy             bool       `json:"healthy"`
	FailureRate         float64    `json:"failure_rate"`
	Attempts            int64      `json:"attempts"`
	Failures            int64      `json:"failures"`
	ConsecutiveFailures int64      `json:"consecutive_failures"`
	QueueSize           int        `json:"queue_size"`
	LastProcessedAt     *time.Time `json:"last_processed_at,omitempty"`
}

// Monitor keeps attempt/failure counters in the shared counter store so every
// instance of the service contributes to, and reads, the same rolling window.
type Monitor struct {
	store     cache.Store
	window    time.Duration
	queueSize func() int
}

// NewMonitor creates a Monitor. queueSize is a snapshot callback (typically
// PriorityQueue.Size); pass nil when no queue is attached.
func NewMonitor(store cache.Store, window time.Duration, queueSize func() int) *Monitor {
	if queueSize == nil {
		queueSize = func() int { return 0 }
	}
	return &Monitor{store: store, window: window, queueSize: queueSize}
}

// RecordSuccess counts an attempt and resets the consecutive-failure streak.
func (m *Monitor) RecordSuccess(ctx context.Context) error {
	if _, err := m.store.Incr(ctx, keyAttempts, m.window); err != nil {
		return err
	}
	if err := m.store.Set(ctx, keyConsecutive, 0, 0); err != nil {
		return err
	}
	return m.touch(ctx)
}

// RecordFailure counts an attempt, a failure, and extends the streak.
func (m *Monitor) RecordFailure(ctx context.Context) error {
	if _, err := m.store.Incr(ctx, keyAttempts, m.window); err != nil {
		return err
	}
	if _, err := m.store.Incr(ctx, keyFailures, m.window); err != nil {
		return err
	}
	if _, err := m.store.Incr(ctx, keyConsecutive, 0); err != nil {
		return err
	}
	return m.touch(ctx)
}

func (m *Monitor) touch(ctx context.Context) error {
	return m.store.Set(ctx, keyLastProcessed, time.Now().UTC().Unix(), 0)
}

// Snapshot reads the current counters and computes the verdict:
// healthy = failure_rate < 10% AND consecutive_failures < 5.
func (m *Monitor) Snapshot(ctx context.Context) (*Snapshot, error) {
	attempts, err := m.store.Get(ctx, keyAttempts)
	if err != nil {
		return nil, err
	}
	failures, err := m.store.Get(ctx, keyFailures)
	if err != nil {
		return nil, err
	}
	consecutive, err := m.store.Get(ctx, keyConsecutive)
	if err != nil {
		return nil, err
	}
	lastUnix, err := m.store.Get(ctx, keyLastProcessed)
	if err != nil {
		return nil, err
	}

	var rate float64
	if attempts > 0 {
		rate = float64(failures) / float64(attempts) * 100
	}

	s := &Snapshot{
		FailureRate:         rate,
		Attempts:            attempts,
		Failures:            failures,
		ConsecutiveFailures: consecutive,
		QueueSize:           m.queueSize(),
		Healthy:             rate < maxFailureRate && consecutive < maxConsecutiveFailures,
	}
	if lastUnix > 0 {
		t := time.Unix(lastUnix, 0).UTC()
		s.LastProcessedAt = &t
	}
	return s, nil
}
