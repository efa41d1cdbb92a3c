package cache

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	value     int64
	expiresAt time.Time // zero = no expiry
}

// Memory is an in-process Store used in unit tests and single-node dev runs.
// Expiry is evaluated lazily on access.
type Memory struct {
	mu   sync.Mutex
	data map[string]*entry

	// Now is overridable in tests to step through expiry windows.
	Now func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		data: make(map[string]*entry),
		Now:  time.Now,
	}
}

func (m *Memory) live(key string) *entry {
	e, ok := m.data[key]
	if !ok {
		return nil
	}
	if !e.expiresAt.IsZero() && !m.Now().Before(e.expiresAt) {
		delete(m.data, key)
		return nil
	}
	return e
}

func (m *Memory) Incr(_ context.Context, key string, ttl time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.live(key)
	if e == nil {
		e = &entry{}
		if ttl > 0 {
			e.expiresAt = m.Now().Add(ttl)
		}
		m.data[key] = e
	}
	e.value++
	return e.value, nil
}

func (m *Memory) Get(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e := m.live(key); e != nil {
		return e.value, nil
	}
	return 0, nil
}

func (m *Memory) Set(_ context.Context, key string, value int64, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := &entry{value: value}
	if ttl > 0 {
		e.expiresAt = m.Now().Add(ttl)
	}
	m.data[key] = e
	return nil
}

func (m *Memory) TTL(_ context.Context, key string) (time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.live(key)
	if e == nil || e.expiresAt.IsZero() {
		return 0, nil
	}
	return e.expiresAt.Sub(m.Now()), nil
}

func (m *Memory) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func (m *Memory) SetNX(_ context.Context, key string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.live(key) != nil {
		return false, nil
	}
	e := &entry{value: 1}
	if ttl > 0 {
		e.expiresAt = m.Now().Add(ttl)
	}
	m.data[key] = e
	return true, nil
}

func (m *Memory) Exists(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.live(key) != nil, nil
}

// compile-time check that Memory implements Store
var _ Store = (*Memory)(nil)
