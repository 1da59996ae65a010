package idem

import (
	"context"
	"sync"
	"time"
)

// Memory is an in-process Store for single-instance deployments and tests.
type Memory struct {
	mu      sync.Mutex
	records map[string]memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	rec     Record
	expires time.Time
}

var _ Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{records: make(map[string]memoryEntry), now: time.Now}
}

func (m *Memory) Get(_ context.Context, key string) (Record, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.live(key)
	return e.rec, ok, nil
}

func (m *Memory) Reserve(_ context.Context, key, fingerprint string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.live(key); ok {
		return ErrInFlight
	}
	m.records[key] = memoryEntry{
		rec:     Record{Pending: true, Fingerprint: fingerprint},
		expires: m.now().Add(ttl),
	}
	return nil
}

func (m *Memory) Complete(_ context.Context, key string, rec Record, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec.Pending = false
	m.records[key] = memoryEntry{rec: rec, expires: m.now().Add(ttl)}
	return nil
}

func (m *Memory) Release(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, key)
	return nil
}

// live returns the unexpired entry for key, evicting it when stale. Caller holds mu.
func (m *Memory) live(key string) (memoryEntry, bool) {
	e, ok := m.records[key]
	if !ok {
		return memoryEntry{}, false
	}
	if !m.now().Before(e.expires) {
		delete(m.records, key)
		return memoryEntry{}, false
	}
	return e, true
}
