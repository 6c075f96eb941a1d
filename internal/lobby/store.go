// internal/lobby/store.go
package lobby

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const (
	// RecordTTL is a long safety expiry so lobbies orphaned by a dead server
	// process are eventually reaped by the backend.
	RecordTTL = 3 * time.Hour

	// maxConflictRetries bounds retry-on-conflict for every mutating
	// operation. Past this the transient ErrConflict is surfaced.
	maxConflictRetries = 3
)

// Store is a keyed, versioned lobby registry. Capacity and duplicate-join
// checks must be atomic with the write, so every mutation goes through
// ConditionalUpdate; a plain read-then-write would let two simultaneous
// joins both pass the capacity check before either commits.
type Store interface {
	// Create persists a fresh lobby at version 0 with the safety TTL.
	Create(ctx context.Context, l *Lobby) error

	// Get returns the lobby or ErrNotFound.
	Get(ctx context.Context, id uuid.UUID) (*Lobby, error)

	// List returns all lobbies, optionally filtered by status ("" = no filter).
	List(ctx context.Context, filter Status) ([]*Lobby, error)

	// ConditionalUpdate writes next (with Version = expectedVersion+1) only if
	// the stored record is still at expectedVersion, else returns ErrConflict.
	// next == nil deletes the record under the same version condition.
	ConditionalUpdate(ctx context.Context, id uuid.UUID, expectedVersion uint64, next *Lobby) error

	// Delete removes the lobby unconditionally.
	Delete(ctx context.Context, id uuid.UUID) error
}
