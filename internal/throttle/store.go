package throttle

import (
	"context"
	"sync"
	"time"
)

// Store is a shared counter store. Increment must add one to key and return
// the new count in a single atomic step, starting the key's TTL on the first
// increment.
type Store interface {
	Increment(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

// MemoryStore is a process-local Store for tests and single-instance
// local development.
type MemoryStore struct {
	mu      sync.Mutex
	now     func() time.Time
	entries map[string]*memoryEntry
}

type memoryEntry struct {
	count     int64
	expiresAt time.Time
}

func NewMemoryStore(now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{now: now, entries: make(map[string]*memoryEntry)}
}

func (s *MemoryStore) Increment(_ context.Context, key string, ttl time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	e, ok := s.entries[key]
	if !ok || !e.expiresAt.After(now) {
		e = &memoryEntry{expiresAt: now.Add(ttl)}
		s.entries[key] = e
		s.evictExpired(now)
	}
	e.count++
	return e.count, nil
}

// evictExpired runs on key creation so the map stays bounded by live windows.
func (s *MemoryStore) evictExpired(now time.Time) {
	for k, e := range s.entries {
		if !e.expiresAt.After(now) {
			delete(s.entries, k)
		}
	}
}
