package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/edupulse/notify/internal/domain"
)

// MockNotificationRepository is a hand-written, in-memory implementation of
// NotificationRepository used in unit tests. No mock-generation library needed.
type MockNotificationRepository struct {
	mu            sync.RWMutex
	notifications map[string]*domain.Notification

	// Optional error overrides — set in tests to simulate failure paths.
	CreateErr  error
	GetByIDErr error
	ClaimErr   error
}

func NewMockNotificationRepository() *MockNotificationRepository {
	return &MockNotificationRepository{
		notifications: make(map[string]*domain.Notification),
	}
}

func (m *MockNotificationRepository) Create(_ context.Context, n *domain.Notification) error {
	if m.CreateErr != nil {
		return m.CreateErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *n
	m.notifications[n.ID] = &clone
	return nil
}

func (m *MockNotificationRepository) GetByID(_ context.Context, id string) (*domain.Notification, error) {
	if m.GetByIDErr != nil {
		return nil, m.GetByIDErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	n, ok := m.notifications[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *n
	return &clone, nil
}

func (m *MockNotificationRepository) GetByProviderMessageID(_ context.Context, providerMsgID string) (*domain.Notification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, n := range m.notifications {
		if n.ProviderMsgID != nil && *n.ProviderMsgID == providerMsgID {
			clone := *n
			return &clone, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockNotificationRepository) List(_ context.Context, f domain.ListFilter) ([]*domain.Notification, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.Notification
	for _, n := range m.notifications {
		if f.Status != nil && n.Status != *f.Status {
			continue
		}
		if f.Channel != nil && n.Channel != *f.Channel {
			continue
		}
		if f.TenantID != nil && n.TenantID != *f.TenantID {
			continue
		}
		clone := *n
		result = append(result, &clone)
	}
	return result, len(result), nil
}

func (m *MockNotificationRepository) ClaimForSending(_ context.Context, id string) (bool, error) {
	if m.ClaimErr != nil {
		return false, m.ClaimErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.notifications[id]
	if !ok {
		return false, nil
	}
	switch n.Status {
	case domain.StatusPending, domain.StatusQueued, domain.StatusFailed:
		n.Status = domain.StatusSending
		n.UpdatedAt = time.Now().UTC()
		return true, nil
	}
	return false, nil
}

func (m *MockNotificationRepository) MarkSent(_ context.Context, id, providerMsgID, rawResponse string, sentAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n, ok := m.notifications[id]; ok {
		n.Status = domain.StatusSent
		n.ProviderMsgID = &providerMsgID
		n.ProviderResponse = &rawResponse
		n.SentAt = &sentAt
		n.LastError = nil
		n.NextRetryAt = nil
	}
	return nil
}

func (m *MockNotificationRepository) MarkDelivered(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n, ok := m.notifications[id]; ok && n.Status == domain.StatusSent {
		n.Status = domain.StatusDelivered
		n.DeliveredAt = &at
	}
	return nil
}

func (m *MockNotificationRepository) MarkRead(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n, ok := m.notifications[id]; ok {
		if n.Status == domain.StatusSent || n.Status == domain.StatusDelivered {
			n.Status = domain.StatusRead
		}
	}
	return nil
}

func (m *MockNotificationRepository) MarkFailed(_ context.Context, id, errMsg string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n, ok := m.notifications[id]; ok {
		n.Status = domain.StatusFailed
		n.LastError = &errMsg
		n.FailedAt = &at
	}
	return nil
}

func (m *MockNotificationRepository) MarkFailedPermanent(_ context.Context, id, errMsg string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n, ok := m.notifications[id]; ok {
		n.Status = domain.StatusFailed
		n.LastError = &errMsg
		n.FailedAt = &at
		n.RetryCount = n.MaxRetries
		n.NextRetryAt = nil
	}
	return nil
}

func (m *MockNotificationRepository) ScheduleRetry(_ context.Context, id string, retryCount int, nextRetry time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n, ok := m.notifications[id]; ok && n.Status == domain.StatusFailed {
		n.Status = domain.StatusQueued
		n.RetryCount = retryCount
		n.NextRetryAt = &nextRetry
		n.UpdatedAt = time.Now().UTC()
	}
	return nil
}

func (m *MockNotificationRepository) UpdateStatus(_ context.Context, id string, status domain.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n, ok := m.notifications[id]; ok {
		n.Status = status
		n.UpdatedAt = time.Now().UTC()
	}
	return nil
}

func (m *MockNotificationRepository) FindDueScheduled(_ context.Context, now time.Time, limit int) ([]*domain.Notification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var due []*domain.Notification
	for _, n := range m.notifications {
		if n.Status == domain.StatusScheduled && n.ScheduledAt != nil && !n.ScheduledAt.After(now) {
			clone := *n
			due = append(due, &clone)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		return due[i].ScheduledAt.Before(*due[j].ScheduledAt)
	})
	if len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (m *MockNotificationRepository) FindDueRetries(_ context.Context, now time.Time, limit int) ([]*domain.Notification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var due []*domain.Notification
	for _, n := range m.notifications {
		if n.Status != domain.StatusFailed || n.RetryCount >= n.MaxRetries {
			continue
		}
		if n.NextRetryAt != nil && n.NextRetryAt.After(now) {
			continue
		}
		clone := *n
		due = append(due, &clone)
	}
	sort.Slice(due, func(i, j int) bool {
		fi, fj := due[i].FailedAt, due[j].FailedAt
		if fi == nil {
			return true
		}
		if fj == nil {
			return false
		}
		return fi.Before(*fj)
	})
	if len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (m *MockNotificationRepository) FindStalledSending(_ context.Context, cutoff time.Time, limit int) ([]*domain.Notification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var stalled []*domain.Notification
	for _, n := range m.notifications {
		if n.Status == domain.StatusSending && n.UpdatedAt.Before(cutoff) {
			clone := *n
			stalled = append(stalled, &clone)
		}
	}
	if len(stalled) > limit {
		stalled = stalled[:limit]
	}
	return stalled, nil
}

func (m *MockNotificationRepository) FindStalledQueued(_ context.Context, cutoff time.Time, limit int) ([]*domain.Notification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var stalled []*domain.Notification
	for _, n := range m.notifications {
		if n.Status == domain.StatusQueued && n.UpdatedAt.Before(cutoff) {
			clone := *n
			stalled = append(stalled, &clone)
		}
	}
	if len(stalled) > limit {
		stalled = stalled[:limit]
	}
	return stalled, nil
}

func (m *MockNotificationRepository) RequeueStalled(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n, ok := m.notifications[id]; ok && (n.Status == domain.StatusSending || n.Status == domain.StatusQueued) {
		n.Status = domain.StatusQueued
		n.UpdatedAt = time.Now().UTC()
		return true, nil
	}
	return false, nil
}
