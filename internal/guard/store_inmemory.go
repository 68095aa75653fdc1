// Package guard provides an in-memory store implementation.
package guard

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// InMemoryStore implements KVStore in process memory with logical TTLs.
// Intended for tests and single-instance deployments; production uses
// the Redis store.
type InMemoryStore struct {
	mu      sync.Mutex
	now     func() time.Time
	entries map[string]memEntry
	healthy atomic.Bool
}

type memEntry struct {
	value     string
	expiresAt time.Time
}

var errStoreUnhealthy = errors.New("kv store unhealthy")

// NewInMemoryStore constructs an in-memory store.
func NewInMemoryStore(now func() time.Time) *InMemoryStore {
	if now == nil {
		now = time.Now
	}
	store := &InMemoryStore{
		now:     now,
		entries: make(map[string]memEntry),
	}
	store.healthy.Store(true)
	return store
}

// Healthy reports store health.
func (s *InMemoryStore) Healthy(ctx context.Context) bool {
	if s == nil {
		return false
	}
	return s.healthy.Load()
}

// SetHealthy updates the health flag. Unhealthy stores fail every
// operation, which exercises the evaluator's fail-open path in tests.
func (s *InMemoryStore) SetHealthy(v bool) {
	if s == nil {
		return
	}
	s.healthy.Store(v)
}

// Get returns the value for key, reporting absence for missing or
// expired entries.
func (s *InMemoryStore) Get(ctx context.Context, key string) (string, bool, error) {
	if !s.healthy.Load() {
		return "", false, errStoreUnhealthy
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[key]
	if !ok {
		return "", false, nil
	}
	if !entry.expiresAt.IsZero() && !s.now().Before(entry.expiresAt) {
		delete(s.entries, key)
		return "", false, nil
	}
	return entry.value, true, nil
}

// Put stores value under key with the given TTL.
func (s *InMemoryStore) Put(ctx context.Context, key string, value string, ttl time.Duration) error {
	if !s.healthy.Load() {
		return errStoreUnhealthy
	}
	if key == "" {
		return errors.New("key is required")
	}
	expiresAt := time.Time{}
	if ttl > 0 {
		expiresAt = s.now().Add(ttl)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = memEntry{value: value, expiresAt: expiresAt}
	return nil
}

// Delete removes key if present.
func (s *InMemoryStore) Delete(ctx context.Context, key string) error {
	if !s.healthy.Load() {
		return errStoreUnhealthy
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

// Len reports the number of live entries.
func (s *InMemoryStore) Len() int {
	if s == nil {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	count := 0
	for _, entry := range s.entries {
		if entry.expiresAt.IsZero() || now.Before(entry.expiresAt) {
			count++
		}
	}
	return count
}
