package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/edupulse/notify/internal/domain"
)

// MockReminderRepository is an in-memory ReminderRepository for tests.
// The tuple map mirrors the unique index that carries the idempotency
// guarantee in PostgreSQL.
type MockReminderRepository struct {
	mu      sync.Mutex
	byTuple map[string]*domain.ProcessedReminder
	byID    map[string]*domain.ProcessedReminder

	InsertErr error
}

func NewMockReminderRepository() *MockReminderRepository {
	return &MockReminderRepository{
		byTuple: make(map[string]*domain.ProcessedReminder),
		byID:    make(map[string]*domain.ProcessedReminder),
	}
}

func tupleKey(eventID, recipientID string, typ domain.ReminderType, minutesBefore int) string {
	return fmt.Sprintf("%s|%s|%s|%d", eventID, recipientID, typ, minutesBefore)
}

func (m *MockReminderRepository) InsertProcessed(_ context.Context, pr *domain.ProcessedReminder) (bool, error) {
	if m.InsertErr != nil {
		return false, m.InsertErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := tupleKey(pr.EventID, pr.RecipientID, pr.Type, pr.MinutesBefore)
	if _, exists := m.byTuple[key]; exists {
		return false, nil
	}
	clone := *pr
	m.byTuple[key] = &clone
	m.byID[pr.ID] = &clone
	return true, nil
}

func (m *MockReminderRepository) ProcessedExists(_ context.Context, eventID, recipientID string, typ domain.ReminderType, minutesBefore int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, exists := m.byTuple[tupleKey(eventID, recipientID, typ, minutesBefore)]
	return exists, nil
}

func (m *MockReminderRepository) UpdateOutcome(_ context.Context, id string, status domain.ReminderStatus, notificationID *string, errMsg *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if pr, ok := m.byID[id]; ok {
		pr.Status = status
		pr.NotificationID = notificationID
		pr.Error = errMsg
		pr.ProcessedAt = time.Now().UTC()
	}
	return nil
}

func (m *MockReminderRepository) Stats(_ context.Context, from, to time.Time, tenantID *string) (*domain.ReminderStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var s domain.ReminderStats
	for _, pr := range m.byID {
		if pr.ProcessedAt.Before(from) || pr.ProcessedAt.After(to) {
			continue
		}
		if tenantID != nil && pr.TenantID != *tenantID {
			continue
		}
		s.Total++
		switch pr.Status {
		case domain.ReminderSent:
			s.Sent++
		case domain.ReminderFailed:
			s.Failed++
		case domain.ReminderSkipped:
			s.Skipped++
		}
	}
	return &s, nil
}

// All returns every ledger row, for test assertions.
func (m *MockReminderRepository) All() []*domain.ProcessedReminder {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.ProcessedReminder, 0, len(m.byID))
	for _, pr := range m.byID {
		clone := *pr
		out = append(out, &clone)
	}
	return out
}
