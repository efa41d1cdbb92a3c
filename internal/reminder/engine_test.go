package reminder_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/edupulse/notify/internal/cache"
	"github.com/edupulse/notify/internal/domain"
	"github.com/edupulse/notify/internal/queue"
	"github.com/edupulse/notify/internal/ratelimit"
	"github.com/edupulse/notify/internal/reminder"
	"github.com/edupulse/notify/internal/repository"
)

// stubSource serves canned events and birthdays.
type stubSource struct {
	events    []*domain.Event
	birthdays []*domain.Birthday
}

func (s *stubSource) DueEvents(_ context.Context, _, _ time.Time) ([]*domain.Event, error) {
	return s.events, nil
}

func (s *stubSource) UpcomingBirthdays(_ context.Context, _ time.Time, _ time.Duration) ([]*domain.Birthday, error) {
	return s.birthdays, nil
}

type fixture struct {
	src    *stubSource
	ledger *repository.MockReminderRepository
	notes  *repository.MockNotificationRepository
	q      *queue.PriorityQueue
	engine *reminder.Engine
}

func newFixture(limit int) *fixture {
	f := &fixture{
		src:    &stubSource{},
		ledger: repository.NewMockReminderRepository(),
		notes:  repository.NewMockNotificationRepository(),
		q:      queue.New(),
	}
	limiter := ratelimit.NewRecipientLimiter(cache.NewMemory(), limit, time.Hour)
	f.engine = reminder.NewEngine(f.src, f.ledger, f.notes, f.q, limiter, reminder.Config{
		Horizon:        5 * time.Minute,
		Lookahead:      48 * time.Hour,
		BirthdayWindow: 7 * 24 * time.Hour,
	}, reminder.Hooks{}, zap.NewNop())
	return f
}

func eventWithOffset(startsIn time.Duration, minutesBefore int, ch domain.Channel) *domain.Event {
	return &domain.Event{
		ID:       "evt-1",
		TenantID: "tenant-1",
		Title:    "Parent-Teacher Meeting",
		Location: "Room 12",
		StartsAt: time.Now().UTC().Add(startsIn),
		Offsets: []domain.ReminderOffset{
			{Type: domain.ReminderEvent, MinutesBefore: minutesBefore, Channel: ch},
		},
		Attendees: []domain.Attendee{
			{ID: "p-1", TenantID: "tenant-1", Name: "Priya", Phone: "919876543210", Email: "priya@example.com"},
		},
	}
}

func TestEngine_EventReminderCreatedExactlyOnce(t *testing.T) {
	f := newFixture(100)
	// Starts in 1h, reminded 60 minutes before: due right now.
	f.src.events = []*domain.Event{eventWithOffset(time.Hour, 60, domain.ChannelWhatsApp)}
	ctx := context.Background()

	report, err := f.engine.Run(ctx, false)
	if err != nil {
		t.Fatal(err)
	}
	if report.Created != 1 {
		t.Fatalf("expected 1 created, got %+v", report)
	}

	notes, total, _ := f.notes.List(ctx, domain.ListFilter{})
	if total != 1 {
		t.Fatalf("expected 1 notification, got %d", total)
	}
	n := notes[0]
	if n.Channel != domain.ChannelWhatsApp || n.Recipient != "919876543210" {
		t.Fatalf("unexpected notification: %+v", n)
	}
	if n.TemplateVars["title"] != "Parent-Teacher Meeting" {
		t.Fatalf("template vars not populated: %+v", n.TemplateVars)
	}
	if f.q.Size() != 1 {
		t.Fatalf("notification not enqueued, queue size %d", f.q.Size())
	}

	rows := f.ledger.All()
	if len(rows) != 1 || rows[0].Status != domain.ReminderSent {
		t.Fatalf("unexpected ledger state: %+v", rows)
	}
	if rows[0].NotificationID == nil || *rows[0].NotificationID != n.ID {
		t.Fatal("ledger row not linked to the notification")
	}

	// A second run over the same data must be a no-op.
	report, err = f.engine.Run(ctx, false)
	if err != nil {
		t.Fatal(err)
	}
	if report.Created != 0 || report.Duplicate != 1 {
		t.Fatalf("second run should only find the duplicate, got %+v", report)
	}
	if _, total, _ := f.notes.List(ctx, domain.ListFilter{}); total != 1 {
		t.Fatalf("duplicate run created a notification, total=%d", total)
	}
}

func TestEngine_ReminderNotYetDue(t *testing.T) {
	f := newFixture(100)
	// Starts in 2h, reminded 60 minutes before: due in 1h, outside the horizon.
	f.src.events = []*domain.Event{eventWithOffset(2*time.Hour, 60, domain.ChannelWhatsApp)}

	report, err := f.engine.Run(context.Background(), false)
	if err != nil {
		t.Fatal(err)
	}
	if report.NotDue != 1 || report.Created != 0 {
		t.Fatalf("expected the offset to be deferred, got %+v", report)
	}
	if len(f.ledger.All()) != 0 {
		t.Fatal("deferred reminder must not claim a ledger row")
	}
}

func TestEngine_SkipsAttendeeWithoutContact(t *testing.T) {
	f := newFixture(100)
	ev := eventWithOffset(time.Hour, 60, domain.ChannelEmail)
	ev.Attendees[0].Email = ""
	f.src.events = []*domain.Event{ev}

	report, err := f.engine.Run(context.Background(), false)
	if err != nil {
		t.Fatal(err)
	}
	if report.Skipped != 1 || report.Created != 0 {
		t.Fatalf("expected 1 skipped, got %+v", report)
	}

	rows := f.ledger.All()
	if len(rows) != 1 || rows[0].Status != domain.ReminderSkipped {
		t.Fatalf("skip must still be recorded on the ledger: %+v", rows)
	}
	if _, total, _ := f.notes.List(context.Background(), domain.ListFilter{}); total != 0 {
		t.Fatal("skipped reminder must not create a notification")
	}
}

func TestEngine_BirthdayPrefersWhatsApp(t *testing.T) {
	f := newFixture(100)
	today := time.Now().UTC()
	birthDate := time.Date(2014, today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
	f.src.birthdays = []*domain.Birthday{
		{PersonID: "p-1", TenantID: "tenant-1", Name: "Arun", Phone: "919812345678", Email: "arun@example.com", BirthDate: birthDate},
		{PersonID: "p-2", TenantID: "tenant-1", Name: "Meera", Email: "meera@example.com", BirthDate: birthDate},
	}
	ctx := context.Background()

	report, err := f.engine.Run(ctx, false)
	if err != nil {
		t.Fatal(err)
	}
	if report.Created != 2 {
		t.Fatalf("expected 2 created, got %+v", report)
	}

	notes, _, _ := f.notes.List(ctx, domain.ListFilter{})
	byRecipient := map[string]domain.Channel{}
	for _, n := range notes {
		byRecipient[n.Recipient] = n.Channel
	}
	if byRecipient["919812345678"] != domain.ChannelWhatsApp {
		t.Fatal("person with a phone should get a whatsapp greeting")
	}
	if byRecipient["meera@example.com"] != domain.ChannelEmail {
		t.Fatal("person without a phone should fall back to email")
	}

	// Same occurrence, same people: both are duplicates now.
	report, _ = f.engine.Run(ctx, false)
	if report.Duplicate != 2 || report.Created != 0 {
		t.Fatalf("expected duplicates on rerun, got %+v", report)
	}

	key := "birthday-" + today.Format("2006-01-02")
	exists, _ := f.ledger.ProcessedExists(ctx, key, "p-1", domain.ReminderBirthday, 0)
	if !exists {
		t.Fatal("birthday ledger tuple not recorded under the occurrence key")
	}
}

func TestEngine_DryRunWritesNothing(t *testing.T) {
	f := newFixture(100)
	f.src.events = []*domain.Event{eventWithOffset(time.Hour, 60, domain.ChannelWhatsApp)}
	ctx := context.Background()

	report, err := f.engine.Run(ctx, true)
	if err != nil {
		t.Fatal(err)
	}
	if !report.DryRun || report.Created != 1 {
		t.Fatalf("dry run should count would-be creations, got %+v", report)
	}
	if len(f.ledger.All()) != 0 || f.q.Size() != 0 {
		t.Fatal("dry run must not write or enqueue")
	}

	// After a real run, a dry run reports the duplicate instead.
	if _, err := f.engine.Run(ctx, false); err != nil {
		t.Fatal(err)
	}
	report, _ = f.engine.Run(ctx, true)
	if report.Duplicate != 1 || report.Created != 0 {
		t.Fatalf("dry run after real run should see the duplicate, got %+v", report)
	}
}

func TestEngine_LedgerInsertFailureCountsAsFailed(t *testing.T) {
	f := newFixture(100)
	f.src.events = []*domain.Event{eventWithOffset(time.Hour, 60, domain.ChannelWhatsApp)}
	f.ledger.InsertErr = errors.New("db down")

	report, err := f.engine.Run(context.Background(), false)
	if err != nil {
		t.Fatal(err)
	}
	if report.Failed != 1 || report.Created != 0 {
		t.Fatalf("expected the failure to be counted, got %+v", report)
	}
}

func TestEngine_SendImmediateRateLimited(t *testing.T) {
	f := newFixture(1)
	ctx := context.Background()

	req := domain.CreateNotificationRequest{
		TenantID:  "tenant-1",
		Channel:   domain.ChannelWhatsApp,
		Recipient: "919876543210",
		Body:      "urgent circular",
	}

	n, res, err := f.engine.SendImmediate(ctx, req)
	if err != nil {
		t.Fatal(err)
	}
	if n.Priority != domain.PriorityHigh {
		t.Fatalf("immediate sends go out high priority, got %s", n.Priority)
	}
	if !res.Allowed {
		t.Fatal("first send should be within the window")
	}
	if f.q.Size() != 1 {
		t.Fatal("immediate send not enqueued")
	}

	_, res, err = f.engine.SendImmediate(ctx, req)
	if !errors.Is(err, domain.ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if res == nil || res.Allowed {
		t.Fatal("rejected send must carry the window state")
	}

	// A different recipient is unaffected.
	req.Recipient = "919812345678"
	if _, _, err := f.engine.SendImmediate(ctx, req); err != nil {
		t.Fatal(err)
	}
}

func TestEngine_SendImmediateValidates(t *testing.T) {
	f := newFixture(10)

	_, _, err := f.engine.SendImmediate(context.Background(), domain.CreateNotificationRequest{
		TenantID: "tenant-1",
		Channel:  "fax",
	})
	if !errors.Is(err, domain.ErrInvalidChannel) {
		t.Fatalf("expected ErrInvalidChannel, got %v", err)
	}
}
