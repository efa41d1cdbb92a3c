package domain

import "time"

// ReminderType distinguishes the reminder routines.
type ReminderType string

const (
	ReminderEvent    ReminderType = "event"
	ReminderBirthday ReminderType = "birthday"
)

// ReminderStatus is the recorded outcome on a ProcessedReminder row.
type ReminderStatus string

const (
	ReminderSent    ReminderStatus = "sent"
	ReminderFailed  ReminderStatus = "failed"
	ReminderSkipped ReminderStatus = "skipped"
)

// ReminderOffset is per-event reminder configuration. Read-only to the pipeline.
type ReminderOffset struct {
	Type          ReminderType `json:"reminder_type"`
	MinutesBefore int          `json:"minutes_before"`
	Channel       Channel      `json:"channel"`
}

// ProcessedReminder is the idempotency ledger entry for one reminder
// occurrence. The tuple (EventID, RecipientID, Type, MinutesBefore) is unique
// in storage; the conditional insert on that tuple is the sole
// de-duplication guarantee for reminder delivery.
type ProcessedReminder struct {
	ID             string         `json:"id"`
	TenantID       string         `json:"tenant_id"`
	EventID        string         `json:"event_id"`
	RecipientID    string         `json:"recipient_id"`
	Type           ReminderType   `json:"reminder_type"`
	MinutesBefore  int            `json:"minutes_before"`
	Status         ReminderStatus `json:"status"`
	ScheduledFor   time.Time      `json:"scheduled_for"`
	ProcessedAt    time.Time      `json:"processed_at"`
	NotificationID *string        `json:"notification_id,omitempty"`
	Error          *string        `json:"error,omitempty"`
}

// Event is the calendar read model supplied by the message source.
type Event struct {
	ID        string           `json:"id"`
	TenantID  string           `json:"tenant_id"`
	Title     string           `json:"title"`
	Location  string           `json:"location,omitempty"`
	StartsAt  time.Time        `json:"starts_at"`
	Offsets   []ReminderOffset `json:"offsets"`
	Attendees []Attendee       `json:"attendees"`
}

// Attendee is a reminder recipient attached to an event.
type Attendee struct {
	ID       string `json:"id"`
	TenantID string `json:"tenant_id"`
	Name     string `json:"name"`
	Phone    string `json:"phone,omitempty"`
	Email    string `json:"email,omitempty"`
}

// Birthday is one upcoming birthday from the message source.
type Birthday struct {
	PersonID  string    `json:"person_id"`
	TenantID  string    `json:"tenant_id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone,omitempty"`
	Email     string    `json:"email,omitempty"`
	BirthDate time.Time `json:"birth_date"`
}

// Contact returns the attendee's address for the given channel, or "" when
// the attendee has none.
func (a Attendee) Contact(ch Channel) string {
	switch ch {
	case ChannelWhatsApp, ChannelSMS:
		return a.Phone
	case ChannelEmail:
		return a.Email
	}
	return ""
}

// ReminderStats aggregates ledger outcomes over a date range.
type ReminderStats struct {
	Total   int `json:"total"`
	Sent    int `json:"sent"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}
