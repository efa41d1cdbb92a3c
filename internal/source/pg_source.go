package source

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/edupulse/notify/internal/domain"
)

type pgSource struct {
	pool *pgxpool.Pool
}

// NewPgSource returns a Source reading the platform's calendar tables.
func NewPgSource(pool *pgxpool.Pool) Source {
	return &pgSource{pool: pool}
}

func (s *pgSource) DueEvents(ctx context.Context, now, until time.Time) ([]*domain.Event, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, tenant_id, title, COALESCE(location, ''), starts_at
		FROM calendar_events
		WHERE starts_at > $1 AND starts_at <= $2
		ORDER BY starts_at ASC`, now, until)
	if err != nil {
		return nil, fmt.Errorf("select due events: %w", err)
	}
	defer rows.Close()

	var events []*domain.Event
	for rows.Next() {
		var ev domain.Event
		if err := rows.Scan(&ev.ID, &ev.TenantID, &ev.Title, &ev.Location, &ev.StartsAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, &ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, ev := range events {
		if ev.Offsets, err = s.offsets(ctx, ev.ID); err != nil {
			return nil, err
		}
		if ev.Attendees, err = s.attendees(ctx, ev.ID); err != nil {
			return nil, err
		}
	}
	return events, nil
}

func (s *pgSource) offsets(ctx context.Context, eventID string) ([]domain.ReminderOffset, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT reminder_type, minutes_before, channel
		FROM event_reminder_offsets
		WHERE event_id = $1
		ORDER BY minutes_before DESC`, eventID)
	if err != nil {
		return nil, fmt.Errorf("select reminder offsets: %w", err)
	}
	defer rows.Close()

	var offsets []domain.ReminderOffset
	for rows.Next() {
		var o domain.ReminderOffset
		if err := rows.Scan(&o.Type, &o.MinutesBefore, &o.Channel); err != nil {
			return nil, fmt.Errorf("scan reminder offset: %w", err)
		}
		offsets = append(offsets, o)
	}
	return offsets, rows.Err()
}

func (s *pgSource) attendees(ctx context.Context, eventID string) ([]domain.Attendee, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT p.id, p.tenant_id, p.name, COALESCE(p.phone, ''), COALESCE(p.email, '')
		FROM event_attendees ea
		JOIN people p ON p.id = ea.person_id
		WHERE ea.event_id = $1`, eventID)
	if err != nil {
		return nil, fmt.Errorf("select attendees: %w", err)
	}
	defer rows.Close()

	var attendees []domain.Attendee
	for rows.Next() {
		var a domain.Attendee
		if err := rows.Scan(&a.ID, &a.TenantID, &a.Name, &a.Phone, &a.Email); err != nil {
			return nil, fmt.Errorf("scan attendee: %w", err)
		}
		attendees = append(attendees, a)
	}
	return attendees, rows.Err()
}

// UpcomingBirthdays matches on month-day so the birth year is ignored.
// The day list is built in Go because a window can straddle a year boundary,
// which is awkward to express against DATE_PART.
func (s *pgSource) UpcomingBirthdays(ctx context.Context, now time.Time, window time.Duration) ([]*domain.Birthday, error) {
	days := window / (24 * time.Hour)
	monthDays := make([]string, 0, days+1)
	for d := time.Duration(0); d <= days; d++ {
		monthDays = append(monthDays, now.Add(d*24*time.Hour).Format("01-02"))
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, tenant_id, name, COALESCE(phone, ''), COALESCE(email, ''), birth_date
		FROM people
		WHERE birth_date IS NOT NULL
		  AND to_char(birth_date, 'MM-DD') = ANY($1)`, monthDays)
	if err != nil {
		return nil, fmt.Errorf("select upcoming birthdays: %w", err)
	}
	defer rows.Close()

	var birthdays []*domain.Birthday
	for rows.Next() {
		var b domain.Birthday
		if err := rows.Scan(&b.PersonID, &b.TenantID, &b.Name, &b.Phone, &b.Email, &b.BirthDate); err != nil {
			return nil, fmt.Errorf("scan birthday: %w", err)
		}
		birthdays = append(birthdays, &b)
	}
	return birthdays, rows.Err()
}
