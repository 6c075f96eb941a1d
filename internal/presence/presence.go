// Package presence tracks which identities are currently reachable and at
// what network endpoint. Records are time-bounded claims: a short TTL is set
// at login, lifted entirely once a live session authenticates, and restored
// on disconnect so the reconnection grace window can run out. Expiry of a
// record is the authoritative "went offline" signal.
package presence

import (
	"context"
	"fmt"
	"time"
)

const (
	// LoginTTL is the provisional lifetime given to a record at register/login,
	// before a live session has authenticated.
	LoginTTL = 60 * time.Second

	// DisconnectTTL is the lifetime a record is demoted to when its session
	// drops. The disconnect grace sweep runs after this window is exhausted.
	DisconnectTTL = 60 * time.Second

	// TTLNone means the record never expires until the TTL is explicitly reset.
	TTLNone = time.Duration(0)
)

// Record states that an identity is reachable at ip:port with the given
// public key. PublicKey is the raw key material peers use to establish a
// secure direct link; the core never interprets it.
type Record struct {
	Identity   string    `json:"identity"`
	IP         string    `json:"ip"`
	Port       int       `json:"port"`
	PublicKey  []byte    `json:"public_key,omitempty"`
	LastActive time.Time `json:"last_active"`
}

// Endpoint returns the "ip:port" connection string, or "" if the record
// carries no usable endpoint.
func (r Record) Endpoint() string {
	if r.IP == "" || r.Port == 0 {
		return ""
	}
	return fmt.Sprintf("%s:%d", r.IP, r.Port)
}

// Store is a keyed, TTL-backed registry of reachable identities.
//
// Mutations do not broadcast the updated online count themselves; that is the
// caller's responsibility, so bulk operations don't produce redundant fanout.
type Store interface {
	// Upsert creates or overwrites the record and (re)sets its expiry.
	// ttl = TTLNone means the record never expires until reset.
	Upsert(ctx context.Context, rec Record, ttl time.Duration) error

	// Get returns the record for identity, or nil if absent.
	Get(ctx context.Context, identity string) (*Record, error)

	// SetTTL updates expiry without touching the payload. No-op if absent.
	SetTTL(ctx context.Context, identity string, ttl time.Duration) error

	// ListAll returns every live record. O(number of online identities).
	ListAll(ctx context.Context) ([]Record, error)

	// Remove deletes the record if present.
	Remove(ctx context.Context, identity string) error
}
