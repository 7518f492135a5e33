package dedup

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Store is the key-existence capability the deduplicator depends on.
// Implementations are a shared networked store and an in-process fallback.
type Store interface {
	// Exists reports whether the key is present and unexpired.
	Exists(ctx context.Context, key string) (bool, error)
	// SetWithTTL records the key, expiring it after ttl.
	SetWithTTL(ctx context.Context, key string, ttl time.Duration) error
}

// sweepEvery bounds how much expired garbage accumulates between writes.
const sweepEvery = 256

// MemoryStore is an in-process Store with per-entry expiry. It sweeps
// expired entries opportunistically on write so growth stays bounded by
// the live working set rather than total history.
type MemoryStore struct {
	clock clockwork.Clock

	mu      sync.Mutex
	entries map[string]time.Time // key -> expiry
	writes  int
}

// NewMemoryStore creates an empty in-process store.
func NewMemoryStore(clock clockwork.Clock) *MemoryStore {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &MemoryStore{
		clock:   clock,
		entries: make(map[string]time.Time),
	}
}

func (s *MemoryStore) Exists(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	expiry, ok := s.entries[key]
	if !ok {
		return false, nil
	}
	if s.clock.Now().After(expiry) {
		delete(s.entries, key)
		return false, nil
	}
	return true, nil
}

func (s *MemoryStore) SetWithTTL(_ context.Context, key string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key] = s.clock.Now().Add(ttl)
	s.writes++
	if s.writes >= sweepEvery {
		s.writes = 0
		s.sweepLocked()
	}
	return nil
}

// Sweep removes all expired entries and returns how many were dropped.
func (s *MemoryStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sweepLocked()
}

// Len returns the number of stored entries, expired or not.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *MemoryStore) sweepLocked() int {
	now := s.clock.Now()
	dropped := 0
	for key, expiry := range s.entries {
		if now.After(expiry) {
			delete(s.entries, key)
			dropped++
		}
	}
	return dropped
}
