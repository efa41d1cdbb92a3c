package queue_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/edupulse/notify/internal/domain"
	"github.com/edupulse/notify/internal/queue"
)

func item(id string, p domain.Priority) queue.Item {
	return queue.Item{NotificationID: id, Channel: domain.ChannelWhatsApp, Priority: p}
}

func TestPriorityQueue_BasicEnqueueDequeue(t *testing.T) {
	q := queue.New()
	ctx := context.Background()

	if err := q.Enqueue(item("1", domain.PriorityNormal)); err != nil {
		t.Fatal(err)
	}

	got, ok := q.Dequeue(ctx)
	if !ok {
		t.Fatal("expected item, got nothing")
	}
	if got.NotificationID != "1" {
		t.Fatalf("expected id=1, got %s", got.NotificationID)
	}
}

// TestPriorityQueue_HighBeforeNormal verifies that a high-priority item
// inserted after a normal-priority item is still served first.
func TestPriorityQueue_HighBeforeNormal(t *testing.T) {
	q := queue.New()
	ctx := context.Background()

	_ = q.Enqueue(item("normal", domain.PriorityNormal))
	_ = q.Enqueue(item("high", domain.PriorityHigh))

	first, _ := q.Dequeue(ctx)
	if first.NotificationID != "high" {
		t.Fatalf("expected high to be dequeued first, got %q", first.NotificationID)
	}
}

func TestPriorityQueue_UnknownPriority(t *testing.T) {
	q := queue.New()
	if err := q.Enqueue(item("x", "urgent")); err == nil {
		t.Fatal("expected error for unknown priority")
	}
}

// TestPriorityQueue_FullReturnsErrQueueFull verifies the non-blocking
// enqueue contract: a full tier rejects immediately.
func TestPriorityQueue_FullReturnsErrQueueFull(t *testing.T) {
	q := queue.New()

	for i := 0; i < 1000; i++ {
		if err := q.Enqueue(item("h", domain.PriorityHigh)); err != nil {
			t.Fatalf("enqueue %d failed early: %v", i, err)
		}
	}
	if err := q.Enqueue(item("overflow", domain.PriorityHigh)); !errors.Is(err, domain.ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
}

// TestPriorityQueue_ContextCancellation verifies Dequeue returns (_, false)
// when the context is cancelled while blocking.
func TestPriorityQueue_ContextCancellation(t *testing.T) {
	q := queue.New()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan bool, 1)
	go func() {
		_, ok := q.Dequeue(ctx)
		done <- ok
	}()

	cancel()

	select {
	case ok := <-done:
		if ok {
			t.Fatal("expected ok=false after cancellation")
		}
	case <-time.After(time.Second):
		t.Fatal("Dequeue did not return after cancellation")
	}
}

func TestPriorityQueue_CleanupTier(t *testing.T) {
	q := queue.New()
	ctx := context.Background()

	if err := q.EnqueueCleanup(item("stalled", domain.PriorityNormal)); err != nil {
		t.Fatal(err)
	}

	_, _, _, cleanup := q.Depths()
	if cleanup != 1 {
		t.Fatalf("expected cleanup depth 1, got %d", cleanup)
	}

	got, ok := q.Dequeue(ctx)
	if !ok {
		t.Fatal("expected cleanup item")
	}
	if !got.Cleanup {
		t.Fatal("expected Cleanup flag set on dequeued item")
	}
}

func TestPriorityQueue_EnqueueAfter(t *testing.T) {
	q := queue.New()

	q.EnqueueAfter(item("delayed", domain.PriorityNormal), 20*time.Millisecond)

	if q.Size() != 0 {
		t.Fatal("item should not be visible before the delay elapses")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	got, ok := q.Dequeue(ctx)
	if !ok {
		t.Fatal("expected delayed item to arrive")
	}
	if got.NotificationID != "delayed" {
		t.Fatalf("unexpected item %q", got.NotificationID)
	}
}

// TestPriorityQueue_EnqueueAfterFullTierReportsDrop verifies that a delayed
// item arriving at a full tier is not lost silently: the OnDrop hook fires
// with ErrQueueFull so the caller can log it.
func TestPriorityQueue_EnqueueAfterFullTierReportsDrop(t *testing.T) {
	q := queue.New()

	dropped := make(chan error, 1)
	q.OnDrop = func(_ queue.Item, err error) { dropped <- err }

	for i := 0; i < 1000; i++ {
		if err := q.Enqueue(item("filler", domain.PriorityHigh)); err != nil {
			t.Fatalf("enqueue %d failed early: %v", i, err)
		}
	}

	q.EnqueueAfter(item("late", domain.PriorityHigh), 5*time.Millisecond)

	select {
	case err := <-dropped:
		if !errors.Is(err, domain.ErrQueueFull) {
			t.Fatalf("expected ErrQueueFull, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("drop was not reported")
	}
}

func TestPriorityQueue_EnqueueAfterZeroDelayIsImmediate(t *testing.T) {
	q := queue.New()

	q.EnqueueAfter(item("now", domain.PriorityLow), 0)

	if q.Size() != 1 {
		t.Fatalf("expected immediate enqueue, size=%d", q.Size())
	}
}

func TestPriorityQueue_Size(t *testing.T) {
	q := queue.New()

	_ = q.Enqueue(item("a", domain.PriorityHigh))
	_ = q.Enqueue(item("b", domain.PriorityNormal))
	_ = q.Enqueue(item("c", domain.PriorityLow))
	_ = q.EnqueueCleanup(item("d", domain.PriorityNormal))

	if got := q.Size(); got != 4 {
		t.Fatalf("expected size 4, got %d", got)
	}
}
