package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/edupulse/notify/internal/domain"
)

type pgReminderRepository struct {
	pool *pgxpool.Pool
}

// NewPgReminderRepository returns a ReminderRepository backed by PostgreSQL.
func NewPgReminderRepository(pool *pgxpool.Pool) ReminderRepository {
	return &pgReminderRepository{pool: pool}
}

// InsertProcessed relies on the unique index over
// (event_id, recipient_id, reminder_type, minutes_before): ON CONFLICT DO
// NOTHING makes this a true insert-if-absent, so two concurrent sweeps cannot
// both claim the same reminder occurrence. A check-then-insert would race.
func (r *pgReminderRepository) InsertProcessed(ctx context.Context, pr *domain.ProcessedReminder) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO processed_reminders
			(id, tenant_id, event_id, recipient_id, reminder_type,
			 minutes_before, status, scheduled_for, processed_at,
			 notification_id, error)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		ON CONFLICT (event_id, recipient_id, reminder_type, minutes_before) DO NOTHING`,
		pr.ID, pr.TenantID, pr.EventID, pr.RecipientID, pr.Type,
		pr.MinutesBefore, pr.Status, pr.ScheduledFor, pr.ProcessedAt,
		pr.NotificationID, pr.Error,
	)
	if err != nil {
		return false, fmt.Errorf("insert processed reminder: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *pgReminderRepository) ProcessedExists(ctx context.Context, eventID, recipientID string, typ domain.ReminderType, minutesBefore int) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM processed_reminders
			WHERE event_id = $1 AND recipient_id = $2
			  AND reminder_type = $3 AND minutes_before = $4
		)`, eventID, recipientID, typ, minutesBefore).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("processed reminder exists: %w", err)
	}
	return exists, nil
}

func (r *pgReminderRepository) UpdateOutcome(ctx context.Context, id string, status domain.ReminderStatus, notificationID *string, errMsg *string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE processed_reminders
		SET status = $1, notification_id = $2, error = $3, processed_at = NOW()
		WHERE id = $4`, status, notificationID, errMsg, id)
	return err
}

func (r *pgReminderRepository) Stats(ctx context.Context, from, to time.Time, tenantID *string) (*domain.ReminderStats, error) {
	query := `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE status = 'sent'),
		       COUNT(*) FILTER (WHERE status = 'failed'),
		       COUNT(*) FILTER (WHERE status = 'skipped')
		FROM processed_reminders
		WHERE processed_at >= $1 AND processed_at <= $2`
	args := []any{from, to}
	if tenantID != nil {
		query += " AND tenant_id = $3"
		args = append(args, *tenantID)
	}

	var s domain.ReminderStats
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&s.Total, &s.Sent, &s.Failed, &s.Skipped); err != nil {
		return nil, fmt.Errorf("reminder stats: %w", err)
	}
	return &s, nil
}
