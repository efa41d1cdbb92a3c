package queue

import "github.com/edupulse/notify/internal/domain"

// Item is the minimal data placed on the queue.
// Workers fetch the full Notification from the DB using the ID,
// keeping the queue lightweight and the domain data authoritative.
type Item struct {
	NotificationID string
	Channel        domain.Channel
	Priority       domain.Priority

	// Attempt is the in-process delivery attempt number for this dispatch
	// cycle. It is incremented on the fast retry tier only; the scheduler's
	// slow retries always start a fresh cycle at 0.
	Attempt int

	// Cleanup marks a stalled-recovery item consumed from the cleanup tier.
	Cleanup bool
}
