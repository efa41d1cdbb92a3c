package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/edupulse/notify/internal/domain"
)

const notificationColumns = `id, tenant_id, channel, recipient, subject, body,
	media_urls, template_vars, priority, status, scheduled_at,
	retry_count, max_retries, next_retry_at, sent_at, delivered_at, failed_at,
	provider_msg_id, provider_response, last_error, created_at, updated_at`

type pgNotificationRepository struct {
	pool *pgxpool.Pool
}

// NewPgNotificationRepository returns a NotificationRepository backed by PostgreSQL.
func NewPgNotificationRepository(pool *pgxpool.Pool) NotificationRepository {
	return &pgNotificationRepository{pool: pool}
}

func (r *pgNotificationRepository) Create(ctx context.Context, n *domain.Notification) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO notifications
			(id, tenant_id, channel, recipient, subject, body, media_urls,
			 template_vars, priority, status, scheduled_at, retry_count,
			 max_retries, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
		n.ID, n.TenantID, n.Channel, n.Recipient, n.Subject, n.Body, n.MediaURLs,
		n.TemplateVars, n.Priority, n.Status, n.ScheduledAt, n.RetryCount,
		n.MaxRetries, n.CreatedAt, n.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

func (r *pgNotificationRepository) GetByID(ctx context.Context, id string) (*domain.Notification, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+notificationColumns+` FROM notifications WHERE id = $1`, id)

	n, err := scanNotification(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return n, err
}

func (r *pgNotificationRepository) GetByProviderMessageID(ctx context.Context, providerMsgID string) (*domain.Notification, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+notificationColumns+` FROM notifications WHERE provider_msg_id = $1`, providerMsgID)

	n, err := scanNotification(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return n, err
}

func (r *pgNotificationRepository) List(ctx context.Context, f domain.ListFilter) ([]*domain.Notification, int, error) {
	where, args := buildListWhere(f)
	offset := (f.Page - 1) * f.Limit

	// Count total matching rows for pagination metadata.
	var total int
	countQuery := "SELECT COUNT(*) FROM notifications" + where
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count notifications: %w", err)
	}

	// Append pagination args after the WHERE args.
	args = append(args, f.Limit, offset)
	limitPlaceholder := fmt.Sprintf("$%d", len(args)-1)
	offsetPlaceholder := fmt.Sprintf("$%d", len(args))

	query := fmt.Sprintf(`
		SELECT `+notificationColumns+`
		FROM notifications%s
		ORDER BY created_at DESC
		LIMIT %s OFFSET %s`, where, limitPlaceholder, offsetPlaceholder)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	notifications, err := scanNotifications(rows)
	if err != nil {
		return nil, 0, err
	}
	return notifications, total, nil
}

// ClaimForSending is the compare-and-swap guarding against two workers
// dispatching the same notification: only one UPDATE can win the row.
func (r *pgNotificationRepository) ClaimForSending(ctx context.Context, id string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE notifications
		SET status = 'sending', updated_at = NOW()
		WHERE id = $1 AND status IN ('pending','queued','failed')`, id)
	if err != nil {
		return false, fmt.Errorf("claim notification: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *pgNotificationRepository) MarkSent(ctx context.Context, id, providerMsgID, rawResponse string, sentAt time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE notifications
		SET status = 'sent', provider_msg_id = $1, provider_response = $2,
		    sent_at = $3, last_error = NULL, next_retry_at = NULL, updated_at = NOW()
		WHERE id = $4`, providerMsgID, rawResponse, sentAt, id)
	return err
}

func (r *pgNotificationRepository) MarkDelivered(ctx context.Context, id string, at time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE notifications
		SET status = 'delivered', delivered_at = $1, updated_at = NOW()
		WHERE id = $2 AND status = 'sent'`, at, id)
	return err
}

func (r *pgNotificationRepository) MarkRead(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE notifications
		SET status = 'read', updated_at = NOW()
		WHERE id = $1 AND status IN ('sent','delivered')`, id)
	return err
}

func (r *pgNotificationRepository) MarkFailed(ctx context.Context, id, errMsg string, at time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE notifications
		SET status = 'failed', last_error = $1, failed_at = $2, updated_at = NOW()
		WHERE id = $3`, errMsg, at, id)
	return err
}

func (r *pgNotificationRepository) MarkFailedPermanent(ctx context.Context, id, errMsg string, at time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE notifications
		SET status = 'failed', last_error = $1, failed_at = $2,
		    retry_count = max_retries, next_retry_at = NULL, updated_at = NOW()
		WHERE id = $3`, errMsg, at, id)
	return err
}

func (r *pgNotificationRepository) ScheduleRetry(ctx context.Context, id string, retryCount int, nextRetry time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE notifications
		SET status = 'queued', retry_count = $1, next_retry_at = $2, updated_at = NOW()
		WHERE id = $3 AND status = 'failed'`, retryCount, nextRetry, id)
	return err
}

func (r *pgNotificationRepository) UpdateStatus(ctx context.Context, id string, status domain.Status) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE notifications SET status = $1, updated_at = NOW() WHERE id = $2`, status, id)
	return err
}

func (r *pgNotificationRepository) FindDueScheduled(ctx context.Context, now time.Time, limit int) ([]*domain.Notification, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+notificationColumns+`
		FROM notifications
		WHERE status = 'scheduled' AND scheduled_at <= $1
		ORDER BY scheduled_at ASC
		LIMIT $2`, now, limit)
	if err != nil {
		return nil, fmt.Errorf("find due scheduled: %w", err)
	}
	defer rows.Close()
	return scanNotifications(rows)
}

func (r *pgNotificationRepository) FindDueRetries(ctx context.Context, now time.Time, limit int) ([]*domain.Notification, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+notificationColumns+`
		FROM notifications
		WHERE status = 'failed'
		  AND retry_count < max_retries
		  AND (next_retry_at IS NULL OR next_retry_at <= $1)
		ORDER BY failed_at ASC NULLS FIRST
		LIMIT $2`, now, limit)
	if err != nil {
		return nil, fmt.Errorf("find due retries: %w", err)
	}
	defer rows.Close()
	return scanNotifications(rows)
}

func (r *pgNotificationRepository) FindStalledSending(ctx context.Context, cutoff time.Time, limit int) ([]*domain.Notification, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+notificationColumns+`
		FROM notifications
		WHERE status = 'sending' AND updated_at < $1
		ORDER BY updated_at ASC
		LIMIT $2`, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("find stalled sending: %w", err)
	}
	defer rows.Close()
	return scanNotifications(rows)
}

func (r *pgNotificationRepository) FindStalledQueued(ctx context.Context, cutoff time.Time, limit int) ([]*domain.Notification, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+notificationColumns+`
		FROM notifications
		WHERE status = 'queued' AND updated_at < $1
		ORDER BY updated_at ASC
		LIMIT $2`, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("find stalled queued: %w", err)
	}
	defer rows.Close()
	return scanNotifications(rows)
}

// RequeueStalled touches updated_at even when the row is already queued, so
// a recovered row leaves the stalled-queued sweep's window.
func (r *pgNotificationRepository) RequeueStalled(ctx context.Context, id string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE notifications
		SET status = 'queued', updated_at = NOW()
		WHERE id = $1 AND status IN ('sending','queued')`, id)
	if err != nil {
		return false, fmt.Errorf("requeue stalled: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ---- helpers ----

// scanNotification reads a single notification row from any pgx row type.
func scanNotification(row pgx.Row) (*domain.Notification, error) {
	var n domain.Notification
	err := row.Scan(
		&n.ID, &n.TenantID, &n.Channel, &n.Recipient, &n.Subject, &n.Body,
		&n.MediaURLs, &n.TemplateVars, &n.Priority, &n.Status, &n.ScheduledAt,
		&n.RetryCount, &n.MaxRetries, &n.NextRetryAt, &n.SentAt, &n.DeliveredAt,
		&n.FailedAt, &n.ProviderMsgID, &n.ProviderResponse, &n.LastError,
		&n.CreatedAt, &n.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func scanNotifications(rows pgx.Rows) ([]*domain.Notification, error) {
	var result []*domain.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, n)
	}
	return result, rows.Err()
}

// buildListWhere builds a parameterised WHERE clause from a ListFilter.
func buildListWhere(f domain.ListFilter) (string, []any) {
	var conditions []string
	var args []any

	add := func(condition string, val any) {
		args = append(args, val)
		conditions = append(conditions, fmt.Sprintf(condition, len(args)))
	}

	if f.TenantID != nil {
		add("tenant_id = $%d", *f.TenantID)
	}
	if f.Status != nil {
		add("status = $%d", *f.Status)
	}
	if f.Channel != nil {
		add("channel = $%d", *f.Channel)
	}
	if f.From != nil {
		add("created_at >= $%d", *f.From)
	}
	if f.To != nil {
		add("created_at <= $%d", *f.To)
	}

	if len(conditions) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}
