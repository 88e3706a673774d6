package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

type memoryEntry struct {
	value   []byte
	expires time.Time // zero means no expiry
}

// memoryStore is an in-process Store backed by a map. It is suitable for
// tests and single-process deployments; it does not survive a restart.
type memoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry

	hits   int64
	misses int64
}

// NewMemoryStore returns a process-local Store.
func NewMemoryStore() Store {
	return &memoryStore{entries: make(map[string]memoryEntry)}
}

func (s *memoryStore) GetByKey(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	entry, ok := s.entries[key]
	s.mu.RUnlock()

	if !ok || (!entry.expires.IsZero() && time.Now().After(entry.expires)) {
		atomic.AddInt64(&s.misses, 1)
		if ok {
			s.mu.Lock()
			delete(s.entries, key)
			s.mu.Unlock()
		}
		return nil, false, nil
	}
	atomic.AddInt64(&s.hits, 1)
	return entry.value, true, nil
}

func (s *memoryStore) Put(_ context.Context, key string, value []byte, ttl time.Duration) error {
	var expires time.Time
	if ttl > 0 {
		expires = time.Now().Add(ttl)
	}
	s.mu.Lock()
	s.entries[key] = memoryEntry{value: value, expires: expires}
	s.mu.Unlock()
	return nil
}

// Counters reports the running hit/miss tally for this store.
func (s *memoryStore) Counters() Counters {
	return Counters{
		Hits:   atomic.LoadInt64(&s.hits),
		Misses: atomic.LoadInt64(&s.misses),
	}
}
