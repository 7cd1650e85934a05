package slotlock

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	holder    string
	expiresAt time.Time
}

// Memory is an in-process Locker. It only excludes callers that share the
// same instance, so it suits single-replica deployments and tests.
type Memory struct {
	mu    sync.Mutex
	locks map[string]memoryEntry
	now   func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		locks: make(map[string]memoryEntry),
		now:   time.Now,
	}
}

// WithClock swaps the time source. Intended for tests.
func (m *Memory) WithClock(now func() time.Time) *Memory {
	m.now = now
	return m
}

func (m *Memory) Acquire(_ context.Context, key, holder string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		return false, ErrInvalidTTL
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if entry, ok := m.locks[key]; ok && now.Before(entry.expiresAt) {
		return false, nil
	}

	m.locks[key] = memoryEntry{holder: holder, expiresAt: now.Add(ttl)}
	m.sweep(now)
	return true, nil
}

func (m *Memory) Release(_ context.Context, key, holder string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if entry, ok := m.locks[key]; ok && entry.holder == holder {
		delete(m.locks, key)
	}
	return nil
}

// sweep drops expired entries once the map grows, keeping memory bounded
// when holders crash without releasing.
func (m *Memory) sweep(now time.Time) {
	if len(m.locks) < 1024 {
		return
	}
	for k, entry := range m.locks {
		if !now.Before(entry.expiresAt) {
			delete(m.locks, k)
		}
	}
}
