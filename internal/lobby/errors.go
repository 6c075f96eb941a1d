// internal/lobby/errors.go
package lobby

import "errors"

// Domain precondition and concurrency failures. All are surfaced to the
// caller as typed errors; none of them crash the process.
var (
	// ErrNotFound means the lobby does not exist (or no longer exists).
	ErrNotFound = errors.New("lobby not found")

	// ErrConflict means a concurrent writer modified the lobby between the
	// read and the conditional write. Mutations retry on it with fresh data a
	// bounded number of times before surfacing it.
	ErrConflict = errors.New("lobby was modified concurrently")

	// ErrForbidden means a non-host attempted a host-only action.
	ErrForbidden = errors.New("only the host may perform this action")

	ErrFull          = errors.New("lobby is full")
	ErrNotJoinable   = errors.New("lobby is not open for joining")
	ErrAlreadyMember = errors.New("already in this lobby")
	ErrNotMember     = errors.New("not a member of this lobby")

	// ErrInvalidTransition covers lifecycle violations, e.g. starting a lobby
	// with fewer than two members.
	ErrInvalidTransition = errors.New("invalid lobby state transition")
)
