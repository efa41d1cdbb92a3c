// Package source supplies calendar-event and birthday data to the reminder
// engine. The rest of the school platform owns these tables; the pipeline
// only reads them through this narrow interface.
package source

import (
	"context"
	"time"

	"github.com/edupulse/notify/internal/domain"
)

// Source is the message-source collaborator consumed by the reminder engine.
type Source interface {
	// DueEvents returns events starting between now and until, with their
	// reminder offsets and attendees attached.
	DueEvents(ctx context.Context, now, until time.Time) ([]*domain.Event, error)

	// UpcomingBirthdays returns birthdays falling within the window starting
	// at now.
	UpcomingBirthdays(ctx context.Context, now time.Time, window time.Duration) ([]*domain.Birthday, error)
}
