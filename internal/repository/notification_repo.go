package repository

import (
	"context"
	"time"

	"github.com/edupulse/notify/internal/domain"
)

// NotificationRepository defines all persistence operations for notifications.
// The pgx implementation is in pg_notification_repo.go.
// Tests use a hand-written mock (mock_notification_repo.go).
type NotificationRepository interface {
	Create(ctx context.Context, n *domain.Notification) error
	GetByID(ctx context.Context, id string) (*domain.Notification, error)
	GetByProviderMessageID(ctx context.Context, providerMsgID string) (*domain.Notification, error)
	List(ctx context.Context, filter domain.ListFilter) ([]*domain.Notification, int, error)

	// ClaimForSending atomically moves a notification into status=sending,
	// succeeding only from pending, queued, or failed. Returns false when
	// another worker already claimed it — the duplicate-enqueue no-op.
	ClaimForSending(ctx context.Context, id string) (bool, error)

	MarkSent(ctx context.Context, id, providerMsgID, rawResponse string, sentAt time.Time) error
	MarkDelivered(ctx context.Context, id string, at time.Time) error
	MarkRead(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id, errMsg string, at time.Time) error

	// MarkFailedPermanent records a terminal failure: retry_count is forced
	// to max_retries so the scheduler's retry sweep never picks it up.
	MarkFailedPermanent(ctx context.Context, id, errMsg string, at time.Time) error

	// ScheduleRetry is the scheduler-tier transition failed → queued with an
	// incremented retry_count and a computed next_retry_at.
	ScheduleRetry(ctx context.Context, id string, retryCount int, nextRetry time.Time) error

	UpdateStatus(ctx context.Context, id string, status domain.Status) error

	FindDueScheduled(ctx context.Context, now time.Time, limit int) ([]*domain.Notification, error)
	FindDueRetries(ctx context.Context, now time.Time, limit int) ([]*domain.Notification, error)

	// FindStalledSending returns notifications stuck in status=sending since
	// before the cutoff (worker crashed mid-dispatch).
	FindStalledSending(ctx context.Context, cutoff time.Time, limit int) ([]*domain.Notification, error)

	// FindStalledQueued returns notifications stuck in status=queued since
	// before the cutoff. A queued row's in-memory item can be lost to a
	// process restart while a delayed enqueue timer is pending, or dropped
	// by a full tier; the row itself carries no signal of either.
	FindStalledQueued(ctx context.Context, cutoff time.Time, limit int) ([]*domain.Notification, error)

	// RequeueStalled moves a stuck sending or queued row back to queued,
	// returning false if the row moved on by itself in the meantime.
	RequeueStalled(ctx context.Context, id string) (bool, error)
}

// ReminderRepository owns the ProcessedReminder idempotency ledger.
type ReminderRepository interface {
	// InsertProcessed performs the insert-if-absent that carries the entire
	// de-duplication guarantee. Returns false (and no error) when a row for
	// the tuple already exists.
	InsertProcessed(ctx context.Context, pr *domain.ProcessedReminder) (bool, error)

	// ProcessedExists is the read-only probe used by dry runs.
	ProcessedExists(ctx context.Context, eventID, recipientID string, typ domain.ReminderType, minutesBefore int) (bool, error)

	// UpdateOutcome flips a ledger row's recorded outcome after the
	// notification create/enqueue step succeeded or failed.
	UpdateOutcome(ctx context.Context, id string, status domain.ReminderStatus, notificationID *string, errMsg *string) error

	Stats(ctx context.Context, from, to time.Time, tenantID *string) (*domain.ReminderStats, error)
}
