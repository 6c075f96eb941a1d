// Package lobby implements the matchmaking room registry and its lifecycle
// state machine: bounded-membership rooms whose members exchange connection
// material to establish direct peer links. All mutation goes through the
// versioned conditional-update primitive in Store, so concurrent writers
// against the same lobby cannot lose updates or overbook a room.
package lobby

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a lobby. Only idle lobbies accept joins.
type Status string

const (
	StatusIdle     Status = "idle"
	StatusStarting Status = "starting"
	StatusStarted  Status = "started"
	StatusFailed   Status = "failed"
)

// Valid reports whether s is a recognized lobby status.
func (s Status) Valid() bool {
	switch s {
	case StatusIdle, StatusStarting, StatusStarted, StatusFailed:
		return true
	}
	return false
}

// MemberStatus is a member's connection state within a starting lobby.
type MemberStatus string

const (
	MemberDisconnected MemberStatus = "disconnected"
	MemberConnecting   MemberStatus = "connecting"
	MemberConnected    MemberStatus = "connected"
	MemberFailed       MemberStatus = "failed"
)

// Valid reports whether m is a recognized member connection status.
func (m MemberStatus) Valid() bool {
	switch m {
	case MemberDisconnected, MemberConnecting, MemberConnected, MemberFailed:
		return true
	}
	return false
}

// Lobby is a bounded-membership coordination room. Members is ordered by
// join time; peers rely on that order to map list positions to roles, so it
// is part of the wire contract. Version increments on every committed write.
type Lobby struct {
	ID           uuid.UUID               `json:"id"`
	Name         string                  `json:"name"`
	HostID       string                  `json:"host"`
	Members      []string                `json:"members"`
	MemberStatus map[string]MemberStatus `json:"member_status"`
	MaxPlayers   int                     `json:"max_players"`
	Status       Status                  `json:"status"`
	CreatedAt    time.Time               `json:"created_at"`
	Version      uint64                  `json:"version"`
}

// New builds an idle lobby with the host as its only member.
func New(name, host string, maxPlayers int) *Lobby {
	return &Lobby{
		ID:           uuid.New(),
		Name:         name,
		HostID:       host,
		Members:      []string{host},
		MemberStatus: map[string]MemberStatus{host: MemberDisconnected},
		MaxPlayers:   maxPlayers,
		Status:       StatusIdle,
		CreatedAt:    time.Now().UTC(),
	}
}

// Clone returns a deep copy. Mutators operate on clones so a failed
// conditional write never leaves a half-mutated record visible.
func (l *Lobby) Clone() *Lobby {
	c := *l
	c.Members = append([]string(nil), l.Members...)
	c.MemberStatus = make(map[string]MemberStatus, len(l.MemberStatus))
	for id, st := range l.MemberStatus {
		c.MemberStatus[id] = st
	}
	return &c
}

func (l *Lobby) IsMember(identity string) bool {
	for _, m := range l.Members {
		if m == identity {
			return true
		}
	}
	return false
}

func (l *Lobby) IsHost(identity string) bool {
	return l.HostID == identity
}

func (l *Lobby) IsFull() bool {
	return len(l.Members) >= l.MaxPlayers
}

// AddMember appends identity in join order with a disconnected status.
// Callers perform the duplicate/capacity checks first.
func (l *Lobby) AddMember(identity string) {
	l.Members = append(l.Members, identity)
	l.MemberStatus[identity] = MemberDisconnected
}

// RemoveMember drops identity and its status entry, preserving member order.
// If the host leaves and members remain, the first remaining member becomes
// the new host.
func (l *Lobby) RemoveMember(identity string) {
	for i, m := range l.Members {
		if m == identity {
			l.Members = append(l.Members[:i], l.Members[i+1:]...)
			break
		}
	}
	delete(l.MemberStatus, identity)

	if l.HostID == identity && len(l.Members) > 0 {
		l.HostID = l.Members[0]
	}
}

// SetAllMemberStatus resets every member's connection status.
func (l *Lobby) SetAllMemberStatus(st MemberStatus) {
	for _, m := range l.Members {
		l.MemberStatus[m] = st
	}
}

// CountMemberStatus returns how many members currently report st.
func (l *Lobby) CountMemberStatus(st MemberStatus) int {
	n := 0
	for _, m := range l.Members {
		if l.MemberStatus[m] == st {
			n++
		}
	}
	return n
}

// Validate checks the structural invariants every stored lobby must satisfy.
func (l *Lobby) Validate() error {
	if l.ID == uuid.Nil {
		return fmt.Errorf("lobby has no id")
	}
	if !l.Status.Valid() {
		return fmt.Errorf("lobby %s has unrecognized status %q", l.ID, l.Status)
	}
	if l.MaxPlayers < 2 {
		return fmt.Errorf("lobby %s has max_players %d, need at least 2", l.ID, l.MaxPlayers)
	}
	if len(l.Members) == 0 {
		return fmt.Errorf("lobby %s has no members", l.ID)
	}
	if len(l.Members) > l.MaxPlayers {
		return fmt.Errorf("lobby %s has %d members over capacity %d", l.ID, len(l.Members), l.MaxPlayers)
	}
	if !l.IsMember(l.HostID) {
		return fmt.Errorf("lobby %s host %s is not a member", l.ID, l.HostID)
	}
	seen := make(map[string]bool, len(l.Members))
	for _, m := range l.Members {
		if seen[m] {
			return fmt.Errorf("lobby %s has duplicate member %s", l.ID, m)
		}
		seen[m] = true
		st, ok := l.MemberStatus[m]
		if !ok {
			return fmt.Errorf("lobby %s member %s has no status entry", l.ID, m)
		}
		if !st.Valid() {
			return fmt.Errorf("lobby %s member %s has unrecognized status %q", l.ID, m, st)
		}
	}
	if len(l.MemberStatus) != len(l.Members) {
		return fmt.Errorf("lobby %s has status entries for non-members", l.ID)
	}
	return nil
}

// Decode unmarshals and validates a stored lobby record. Records that fail
// validation are rejected outright rather than patched up silently.
func Decode(data []byte) (*Lobby, error) {
	var l Lobby
	if err := json.Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("failed to decode lobby record: %w", err)
	}
	if err := l.Validate(); err != nil {
		return nil, fmt.Errorf("corrupt lobby record: %w", err)
	}
	return &l, nil
}
