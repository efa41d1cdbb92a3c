// Package reminder turns calendar events and birthdays into notifications,
// exactly once per (event, recipient, type, offset) tuple. The ledger insert
// in the reminder repository is the only de-duplication gate; everything else
// here is selection and rendering.
package reminder

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/edupulse/notify/internal/domain"
	"github.com/edupulse/notify/internal/queue"
	"github.com/edupulse/notify/internal/ratelimit"
	"github.com/edupulse/notify/internal/repository"
	"github.com/edupulse/notify/internal/source"
)

const (
	eventTemplate    = "Hi {{name}}, reminder: {{title}} starts at {{starts_at}}{{location}}."
	birthdayTemplate = "Hi {{name}}, the school community wishes you a very happy birthday!"

	// Birthday greetings go out mid-morning UTC on the day itself.
	birthdayGreetingHour = 9
)

// Config tunes the selection windows.
type Config struct {
	// Horizon is how far ahead of its scheduled_for a reminder may be
	// processed. Kept a little above the scheduler interval so a reminder is
	// never missed between ticks.
	Horizon time.Duration

	// Lookahead bounds the event query; it must cover the largest configured
	// offset plus the horizon.
	Lookahead time.Duration

	// BirthdayWindow is the rolling window scanned for upcoming birthdays.
	BirthdayWindow time.Duration
}

// Report summarises one engine run.
type Report struct {
	DryRun    bool      `json:"dry_run"`
	Events    int       `json:"events_scanned"`
	Birthdays int       `json:"birthdays_scanned"`
	Created   int       `json:"created"`
	Duplicate int       `json:"duplicates_skipped"`
	NotDue    int       `json:"not_yet_due"`
	Skipped   int       `json:"skipped_no_contact"`
	Failed    int       `json:"failed"`
	RanAt     time.Time `json:"ran_at"`
}

// Hooks lets main attach metrics without the engine importing prometheus.
type Hooks struct {
	OnOutcome func(status domain.ReminderStatus)
}

// Engine drives both reminder routines and the manual operational sends.
type Engine struct {
	src     source.Source
	ledger  repository.ReminderRepository
	notes   repository.NotificationRepository
	q       *queue.PriorityQueue
	limiter *ratelimit.RecipientLimiter
	cfg     Config
	hooks   Hooks
	logger  *zap.Logger

	now func() time.Time
}

func NewEngine(
	src source.Source,
	ledger repository.ReminderRepository,
	notes repository.NotificationRepository,
	q *queue.PriorityQueue,
	limiter *ratelimit.RecipientLimiter,
	cfg Config,
	hooks Hooks,
	logger *zap.Logger,
) *Engine {
	if hooks.OnOutcome == nil {
		hooks.OnOutcome = func(domain.ReminderStatus) {}
	}
	return &Engine{
		src: src, ledger: ledger, notes: notes, q: q, limiter: limiter,
		cfg: cfg, hooks: hooks, logger: logger, now: time.Now,
	}
}

// Run executes the event and birthday routines once. With dryRun set the
// same selection logic runs but nothing is written or enqueued.
// Per-item failures are counted and logged, never aborting the run.
func (e *Engine) Run(ctx context.Context, dryRun bool) (*Report, error) {
	now := e.now().UTC()
	report := &Report{DryRun: dryRun, RanAt: now}

	events, err := e.src.DueEvents(ctx, now, now.Add(e.cfg.Lookahead))
	if err != nil {
		return nil, fmt.Errorf("load due events: %w", err)
	}
	report.Events = len(events)

	for _, ev := range events {
		e.processEvent(ctx, ev, now, dryRun, report)
	}

	birthdays, err := e.src.UpcomingBirthdays(ctx, now, e.cfg.BirthdayWindow)
	if err != nil {
		return nil, fmt.Errorf("load birthdays: %w", err)
	}
	report.Birthdays = len(birthdays)

	for _, b := range birthdays {
		e.processBirthday(ctx, b, now, dryRun, report)
	}

	e.logger.Info("reminder run complete",
		zap.Bool("dry_run", dryRun),
		zap.Int("events", report.Events),
		zap.Int("created", report.Created),
		zap.Int("duplicates", report.Duplicate),
		zap.Int("failed", report.Failed),
	)
	return report, nil
}

func (e *Engine) processEvent(ctx context.Context, ev *domain.Event, now time.Time, dryRun bool, report *Report) {
	for _, offset := range ev.Offsets {
		scheduledFor := ev.StartsAt.Add(-time.Duration(offset.MinutesBefore) * time.Minute)
		if scheduledFor.After(now.Add(e.cfg.Horizon)) {
			report.NotDue++
			continue
		}

		for _, att := range ev.Attendees {
			e.processOccurrence(ctx, ev, att, offset, scheduledFor, dryRun, report)
		}
	}
}

// processOccurrence handles one (event, attendee, offset) tuple. The ledger
// row is claimed before the notification is created so a concurrent run
// skips the tuple; if the create/enqueue step then fails, the row's outcome
// is flipped to failed rather than deleted.
func (e *Engine) processOccurrence(
	ctx context.Context,
	ev *domain.Event,
	att domain.Attendee,
	offset domain.ReminderOffset,
	scheduledFor time.Time,
	dryRun bool,
	report *Report,
) {
	if dryRun {
		exists, err := e.ledger.ProcessedExists(ctx, ev.ID, att.ID, offset.Type, offset.MinutesBefore)
		if err != nil {
			report.Failed++
			return
		}
		if exists {
			report.Duplicate++
		} else {
			report.Created++
		}
		return
	}

	pr := &domain.ProcessedReminder{
		ID:            uuid.New().String(),
		TenantID:      ev.TenantID,
		EventID:       ev.ID,
		RecipientID:   att.ID,
		Type:          offset.Type,
		MinutesBefore: offset.MinutesBefore,
		Status:        domain.ReminderSent,
		ScheduledFor:  scheduledFor,
		ProcessedAt:   e.now().UTC(),
	}

	inserted, err := e.ledger.InsertProcessed(ctx, pr)
	if err != nil {
		e.logger.Error("ledger insert failed",
			zap.String("event_id", ev.ID),
			zap.String("recipient_id", att.ID),
			zap.Error(err),
		)
		report.Failed++
		return
	}
	if !inserted {
		report.Duplicate++
		return
	}

	recipient := att.Contact(offset.Channel)
	if recipient == "" {
		e.recordOutcome(ctx, pr.ID, domain.ReminderSkipped, nil, strPtr("no contact for channel "+string(offset.Channel)))
		report.Skipped++
		return
	}

	n := e.buildEventNotification(ev, att, offset, recipient)
	if err := e.createAndEnqueue(ctx, n); err != nil {
		e.recordOutcome(ctx, pr.ID, domain.ReminderFailed, nil, strPtr(err.Error()))
		report.Failed++
		return
	}

	e.recordOutcome(ctx, pr.ID, domain.ReminderSent, &n.ID, nil)
	report.Created++
}

// processBirthday keys the ledger tuple to the concrete occurrence date, so a
// scan window straddling New Year claims the same tuple before and after the
// year rolls over. The greeting is scheduled for the birthday morning itself;
// scanning ahead of it must not send early.
func (e *Engine) processBirthday(ctx context.Context, b *domain.Birthday, now time.Time, dryRun bool, report *Report) {
	occurrence := nextBirthdayOccurrence(b.BirthDate, now)
	eventID := "birthday-" + occurrence.Format("2006-01-02")

	if dryRun {
		exists, err := e.ledger.ProcessedExists(ctx, eventID, b.PersonID, domain.ReminderBirthday, 0)
		if err != nil {
			report.Failed++
			return
		}
		if exists {
			report.Duplicate++
		} else {
			report.Created++
		}
		return
	}

	pr := &domain.ProcessedReminder{
		ID:            uuid.New().String(),
		TenantID:      b.TenantID,
		EventID:       eventID,
		RecipientID:   b.PersonID,
		Type:          domain.ReminderBirthday,
		MinutesBefore: 0,
		Status:        domain.ReminderSent,
		ScheduledFor:  occurrence,
		ProcessedAt:   e.now().UTC(),
	}

	inserted, err := e.ledger.InsertProcessed(ctx, pr)
	if err != nil {
		report.Failed++
		return
	}
	if !inserted {
		report.Duplicate++
		return
	}

	channel := domain.ChannelWhatsApp
	recipient := b.Phone
	if recipient == "" {
		channel = domain.ChannelEmail
		recipient = b.Email
	}
	if recipient == "" {
		e.recordOutcome(ctx, pr.ID, domain.ReminderSkipped, nil, strPtr("no contact on file"))
		report.Skipped++
		return
	}

	n := &domain.Notification{
		ID:        uuid.New().String(),
		TenantID:  b.TenantID,
		Channel:   channel,
		Recipient: recipient,
		Body:      birthdayTemplate,
		TemplateVars: map[string]string{
			"name": b.Name,
		},
		Priority:   domain.PriorityLow,
		Status:     domain.StatusPending,
		MaxRetries: domain.MaxRetries,
		CreatedAt:  e.now().UTC(),
		UpdatedAt:  e.now().UTC(),
	}
	if occurrence.After(now) {
		n.Status = domain.StatusScheduled
		n.ScheduledAt = &occurrence
	}

	if err := e.createAndEnqueue(ctx, n); err != nil {
		e.recordOutcome(ctx, pr.ID, domain.ReminderFailed, nil, strPtr(err.Error()))
		report.Failed++
		return
	}

	e.recordOutcome(ctx, pr.ID, domain.ReminderSent, &n.ID, nil)
	report.Created++
}

// SendImmediate is the manual operational send. It is the one path guarded
// by the per-recipient rate limiter; the background routines are bounded by
// the scheduler batch limits instead.
func (e *Engine) SendImmediate(ctx context.Context, req domain.CreateNotificationRequest) (*domain.Notification, *ratelimit.Result, error) {
	if err := req.Validate(); err != nil {
		return nil, nil, err
	}

	res, err := e.limiter.Allow(ctx, req.TenantID, req.Recipient)
	if err != nil {
		return nil, nil, fmt.Errorf("rate limit check: %w", err)
	}
	if !res.Allowed {
		return nil, res, domain.ErrRateLimited
	}

	now := e.now().UTC()
	n := &domain.Notification{
		ID:           uuid.New().String(),
		TenantID:     req.TenantID,
		Channel:      req.Channel,
		Recipient:    req.Recipient,
		Subject:      req.Subject,
		Body:         req.Body,
		MediaURLs:    req.MediaURLs,
		TemplateVars: req.TemplateVars,
		Priority:     domain.PriorityHigh,
		Status:       domain.StatusPending,
		MaxRetries:   domain.MaxRetries,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := e.createAndEnqueue(ctx, n); err != nil {
		return nil, res, err
	}
	return n, res, nil
}

// Stats proxies the ledger aggregate for the operational API.
func (e *Engine) Stats(ctx context.Context, from, to time.Time, tenantID *string) (*domain.ReminderStats, error) {
	return e.ledger.Stats(ctx, from, to, tenantID)
}

// ---- private helpers ----

func (e *Engine) buildEventNotification(ev *domain.Event, att domain.Attendee, offset domain.ReminderOffset, recipient string) *domain.Notification {
	location := ""
	if ev.Location != "" {
		location = " at " + ev.Location
	}
	now := e.now().UTC()
	subject := "Reminder: " + ev.Title

	return &domain.Notification{
		ID:        uuid.New().String(),
		TenantID:  ev.TenantID,
		Channel:   offset.Channel,
		Recipient: recipient,
		Subject:   &subject,
		Body:      eventTemplate,
		TemplateVars: map[string]string{
			"name":      att.Name,
			"title":     ev.Title,
			"starts_at": ev.StartsAt.Format("Mon, 2 Jan 2006 15:04"),
			"location":  location,
		},
		Priority:   domain.PriorityHigh,
		Status:     domain.StatusPending,
		MaxRetries: domain.MaxRetries,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func (e *Engine) createAndEnqueue(ctx context.Context, n *domain.Notification) error {
	if err := e.notes.Create(ctx, n); err != nil {
		return fmt.Errorf("persist notification: %w", err)
	}
	if n.Status == domain.StatusScheduled {
		// The due-scheduled sweep enqueues it when scheduled_at arrives.
		return nil
	}
	if err := e.q.Enqueue(queue.Item{
		NotificationID: n.ID,
		Channel:        n.Channel,
		Priority:       n.Priority,
	}); err != nil {
		// Row stays pending; it will not be re-found automatically, so the
		// caller records the failure on the ledger.
		return fmt.Errorf("enqueue notification: %w", err)
	}
	return nil
}

func (e *Engine) recordOutcome(ctx context.Context, ledgerID string, status domain.ReminderStatus, notificationID, errMsg *string) {
	if err := e.ledger.UpdateOutcome(ctx, ledgerID, status, notificationID, errMsg); err != nil {
		e.logger.Error("failed to record reminder outcome",
			zap.String("ledger_id", ledgerID), zap.Error(err))
	}
	e.hooks.OnOutcome(status)
}

// nextBirthdayOccurrence returns the greeting time for the upcoming birthday:
// birthdayGreetingHour UTC on this year's month/day occurrence, rolled into
// next year once the day has fully passed. A Feb 29 birth date normalises to
// Mar 1 in common years.
func nextBirthdayOccurrence(birthDate, now time.Time) time.Time {
	occ := time.Date(now.Year(), birthDate.Month(), birthDate.Day(),
		birthdayGreetingHour, 0, 0, 0, time.UTC)
	startOfToday := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if occ.Before(startOfToday) {
		occ = time.Date(now.Year()+1, birthDate.Month(), birthDate.Day(),
			birthdayGreetingHour, 0, 0, 0, time.UTC)
	}
	return occ
}

func strPtr(s string) *string { return &s }
