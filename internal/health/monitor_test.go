package health_test

import (
	"context"
	"testing"
	"time"

	"github.com/edupulse/notify/internal/cache"
	"github.com/edupulse/notify/internal/health"
)

func TestMonitor_HealthyWhenIdle(t *testing.T) {
	m := health.NewMonitor(cache.NewMemory(), 5*time.Minute, nil)

	snap, err := m.Snapshot(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !snap.Healthy {
		t.Fatal("no traffic should report healthy")
	}
	if snap.LastProcessedAt != nil {
		t.Fatal("no traffic should have no last-processed timestamp")
	}
}

// TestMonitor_FailureRateThreshold exercises the 10% verdict boundary:
// 2 failures in 10 attempts is 20% and must flip healthy to false.
func TestMonitor_FailureRateThreshold(t *testing.T) {
	ctx := context.Background()
	m := health.NewMonitor(cache.NewMemory(), 5*time.Minute, nil)

	for i := 0; i < 8; i++ {
		if err := m.RecordSuccess(ctx); err != nil {
			t.Fatal(err)
		}
	}
	// Alternate failures with successes so the consecutive streak never
	// reaches its own threshold; only the rate should trip.
	_ = m.RecordFailure(ctx)
	_ = m.RecordSuccess(ctx)
	_ = m.RecordFailure(ctx)
	_ = m.RecordSuccess(ctx)

	snap, err := m.Snapshot(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if snap.Attempts != 12 || snap.Failures != 2 {
		t.Fatalf("unexpected counters: attempts=%d failures=%d", snap.Attempts, snap.Failures)
	}
	if snap.ConsecutiveFailures != 0 {
		t.Fatalf("streak should be reset, got %d", snap.ConsecutiveFailures)
	}
	if snap.Healthy {
		t.Fatalf("16%% failure rate should be unhealthy, rate=%.1f", snap.FailureRate)
	}
}

func TestMonitor_RateJustUnderThresholdIsHealthy(t *testing.T) {
	ctx := context.Background()
	m := health.NewMonitor(cache.NewMemory(), 5*time.Minute, nil)

	_ = m.RecordFailure(ctx)
	for i := 0; i < 19; i++ {
		_ = m.RecordSuccess(ctx)
	}

	snap, _ := m.Snapshot(ctx)
	if !snap.Healthy {
		t.Fatalf("5%% failure rate should be healthy, rate=%.1f", snap.FailureRate)
	}
}

func TestMonitor_ConsecutiveFailures(t *testing.T) {
	ctx := context.Background()
	mem := cache.NewMemory()
	m := health.NewMonitor(mem, 5*time.Minute, nil)

	// Pad with successes so the failure rate stays below 10% and only the
	// streak decides the verdict.
	for i := 0; i < 95; i++ {
		_ = m.RecordSuccess(ctx)
	}

	for i := 0; i < 4; i++ {
		_ = m.RecordFailure(ctx)
	}
	snap, _ := m.Snapshot(ctx)
	if !snap.Healthy {
		t.Fatalf("4 consecutive failures should still be healthy, rate=%.1f", snap.FailureRate)
	}

	_ = m.RecordFailure(ctx)
	snap, _ = m.Snapshot(ctx)
	if snap.ConsecutiveFailures != 5 {
		t.Fatalf("expected streak 5, got %d", snap.ConsecutiveFailures)
	}
	if snap.Healthy {
		t.Fatal("5 consecutive failures must be unhealthy")
	}

	// One success clears the streak and the verdict.
	_ = m.RecordSuccess(ctx)
	snap, _ = m.Snapshot(ctx)
	if snap.ConsecutiveFailures != 0 {
		t.Fatalf("streak should reset on success, got %d", snap.ConsecutiveFailures)
	}
	if !snap.Healthy {
		t.Fatal("verdict should recover after a success")
	}
}

func TestMonitor_WindowExpiryDropsCounters(t *testing.T) {
	ctx := context.Background()
	mem := cache.NewMemory()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	mem.Now = func() time.Time { return now }

	m := health.NewMonitor(mem, 5*time.Minute, nil)

	_ = m.RecordFailure(ctx)
	_ = m.RecordFailure(ctx)

	now = now.Add(6 * time.Minute)

	snap, err := m.Snapshot(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if snap.Attempts != 0 || snap.Failures != 0 {
		t.Fatalf("window counters should have expired: attempts=%d failures=%d", snap.Attempts, snap.Failures)
	}
}

func TestMonitor_QueueSizeCallback(t *testing.T) {
	m := health.NewMonitor(cache.NewMemory(), 5*time.Minute, func() int { return 42 })

	snap, _ := m.Snapshot(context.Background())
	if snap.QueueSize != 42 {
		t.Fatalf("expected queue size 42, got %d", snap.QueueSize)
	}
}
