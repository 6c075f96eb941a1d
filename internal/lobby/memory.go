// internal/lobby/memory.go
package lobby

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore keeps versioned lobbies in process memory behind a mutex. It
// implements the same conditional-update contract as RedisStore and backs
// the state-machine tests and single-node development.
type MemoryStore struct {
	mu      sync.Mutex
	lobbies map[uuid.UUID]*Lobby
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		lobbies: make(map[uuid.UUID]*Lobby),
	}
}

func (s *MemoryStore) Create(_ context.Context, l *Lobby) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l.Version = 0
	s.lobbies[l.ID] = l.Clone()
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id uuid.UUID) (*Lobby, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.lobbies[id]
	if !ok {
		return nil, ErrNotFound
	}
	return l.Clone(), nil
}

func (s *MemoryStore) List(_ context.Context, filter Status) ([]*Lobby, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var lobbies []*Lobby
	for _, l := range s.lobbies {
		if filter != "" && l.Status != filter {
			continue
		}
		lobbies = append(lobbies, l.Clone())
	}
	return lobbies, nil
}

func (s *MemoryStore) ConditionalUpdate(_ context.Context, id uuid.UUID, expectedVersion uint64, next *Lobby) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.lobbies[id]
	if !ok {
		return ErrNotFound
	}
	if cur.Version != expectedVersion {
		return ErrConflict
	}
	if next == nil {
		delete(s.lobbies, id)
		return nil
	}
	next.Version = expectedVersion + 1
	s.lobbies[id] = next.Clone()
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.lobbies, id)
	return nil
}
