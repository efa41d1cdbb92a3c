package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/edupulse/notify/internal/domain"
)

// PriorityQueue dispatches items to one of four buffered channels.
//
// Buffer sizes reflect expected traffic ratios:
//
//	High:    1 000  — must never accumulate; small buffer applies back-pressure quickly
//	Normal:  5 000  — bulk of traffic
//	Low:     2 000  — background / best-effort
//	Cleanup:   500  — stalled-dispatch recovery items from the scheduler
//
// Workers dequeue via the double-select pattern, which guarantees that
// high-priority items are always served before the other tiers, while
// still allowing fair competition among the rest when high is empty.
type PriorityQueue struct {
	high    chan Item
	normal  chan Item
	low     chan Item
	cleanup chan Item

	// OnDrop is called when a delayed enqueue loses its item (full tier or
	// unroutable priority). Set once before the queue is shared; nil means
	// the drop is silent until the stalled-queued sweep picks the row up.
	OnDrop func(item Item, err error)
}

func (q *PriorityQueue) dropped(item Item, err error) {
	if q.OnDrop != nil {
		q.OnDrop(item, err)
	}
}

func New() *PriorityQueue {
	return &PriorityQueue{
		high:    make(chan Item, 1000),
		normal:  make(chan Item, 5000),
		low:     make(chan Item, 2000),
		cleanup: make(chan Item, 500),
	}
}

// Enqueue places an item on the channel matching its priority.
// It is non-blocking: if the target channel is full, ErrQueueFull is returned
// immediately rather than blocking the caller.
func (q *PriorityQueue) Enqueue(item Item) error {
	ch, err := q.target(item)
	if err != nil {
		return err
	}
	select {
	case ch <- item:
		return nil
	default:
		return domain.ErrQueueFull
	}
}

// EnqueueAfter enqueues item once delay has elapsed. Used for the scheduler's
// thundering-herd jitter and the dispatcher's fast retry tier. The delayed
// enqueue is best-effort twice over: pending timers die with the process, and
// a full tier drops the item. Both leave the row in status=queued, which the
// scheduler's stalled-queued sweep re-enqueues through the cleanup tier; the
// OnDrop hook exists so the loss is at least visible when it happens.
func (q *PriorityQueue) EnqueueAfter(item Item, delay time.Duration) {
	if delay <= 0 {
		if err := q.Enqueue(item); err != nil {
			q.dropped(item, err)
		}
		return
	}
	time.AfterFunc(delay, func() {
		if err := q.Enqueue(item); err != nil {
			q.dropped(item, err)
		}
	})
}

// EnqueueCleanup places a stalled-recovery item on the cleanup tier.
func (q *PriorityQueue) EnqueueCleanup(item Item) error {
	item.Cleanup = true
	select {
	case q.cleanup <- item:
		return nil
	default:
		return domain.ErrQueueFull
	}
}

func (q *PriorityQueue) target(item Item) (chan Item, error) {
	if item.Cleanup {
		return q.cleanup, nil
	}
	switch item.Priority {
	case domain.PriorityHigh:
		return q.high, nil
	case domain.PriorityNormal:
		return q.normal, nil
	case domain.PriorityLow:
		return q.low, nil
	default:
		return nil, fmt.Errorf("unknown priority %q", item.Priority)
	}
}

// Dequeue blocks until an item is available or ctx is cancelled.
//
// Priority guarantee — the double-select pattern:
//  1. A non-blocking select checks the high channel first. If an item is
//     waiting there, it is returned immediately regardless of the other tiers.
//  2. Only when high is empty does the goroutine enter a fair blocking select
//     across all four channels plus the done signal. This prevents
//     high-priority starvation while still letting the worker sleep instead
//     of spinning.
//
// Returns (Item{}, false) when ctx is cancelled (graceful shutdown signal).
func (q *PriorityQueue) Dequeue(ctx context.Context) (Item, bool) {
	// Step 1: drain high before entering a fair wait.
	select {
	case item := <-q.high:
		return item, true
	default:
	}

	// Step 2: fair competition when high is empty.
	select {
	case item := <-q.high:
		return item, true
	case item := <-q.normal:
		return item, true
	case item := <-q.low:
		return item, true
	case item := <-q.cleanup:
		return item, true
	case <-ctx.Done():
		return Item{}, false
	}
}

// Depths returns the current number of items waiting in each tier.
// Used by the metrics handler for the queue-depth snapshot.
func (q *PriorityQueue) Depths() (high, normal, low, cleanup int) {
	return len(q.high), len(q.normal), len(q.low), len(q.cleanup)
}

// Size returns the total number of waiting items across all tiers.
func (q *PriorityQueue) Size() int {
	return len(q.high) + len(q.normal) + len(q.low) + len(q.cleanup)
}
