// internal/presence/memory.go
package presence

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps presence records in process memory. It mirrors the
// RedisStore semantics, including expiry, and is used by tests and for
// single-node development without a Redis instance.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]memoryEntry

	// Now is the clock used for expiry checks. Tests may replace it.
	Now func() time.Time
}

type memoryEntry struct {
	rec       Record
	expiresAt time.Time // zero = never expires
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]memoryEntry),
		Now:     time.Now,
	}
}

// getLive returns the live entry for identity, lazily evicting it if expired.
// Assumes the lock is held.
func (s *MemoryStore) getLive(identity string) (memoryEntry, bool) {
	e, ok := s.records[identity]
	if !ok {
		return memoryEntry{}, false
	}
	if !e.expiresAt.IsZero() && !s.Now().Before(e.expiresAt) {
		delete(s.records, identity)
		return memoryEntry{}, false
	}
	return e, true
}

func (s *MemoryStore) Upsert(_ context.Context, rec Record, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.LastActive.IsZero() {
		rec.LastActive = s.Now().UTC()
	}
	e := memoryEntry{rec: rec}
	if ttl != TTLNone {
		e.expiresAt = s.Now().Add(ttl)
	}
	s.records[rec.Identity] = e
	return nil
}

func (s *MemoryStore) Get(_ context.Context, identity string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.getLive(identity)
	if !ok {
		return nil, nil
	}
	rec := e.rec
	return &rec, nil
}

func (s *MemoryStore) SetTTL(_ context.Context, identity string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.getLive(identity)
	if !ok {
		return nil
	}
	if ttl == TTLNone {
		e.expiresAt = time.Time{}
	} else {
		e.expiresAt = s.Now().Add(ttl)
	}
	s.records[identity] = e
	return nil
}

func (s *MemoryStore) ListAll(_ context.Context) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var records []Record
	for identity := range s.records {
		if e, ok := s.getLive(identity); ok {
			records = append(records, e.rec)
		}
	}
	return records, nil
}

func (s *MemoryStore) Remove(_ context.Context, identity string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, identity)
	return nil
}
