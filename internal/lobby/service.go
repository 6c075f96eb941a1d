// internal/lobby/service.go
package lobby

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/StefanGC1/PeerBridge/internal/events"
	"github.com/StefanGC1/PeerBridge/internal/presence"
	"github.com/StefanGC1/PeerBridge/internal/scheduler"
)

const (
	// StartTimeout is how long a starting lobby waits for connection reports
	// before reverting to idle.
	StartTimeout = 15 * time.Second

	// GraceTimeout is how long after a session drop we wait before sweeping
	// the identity out of its lobbies. One second longer than the presence
	// DisconnectTTL so the reconnection window is exhausted first.
	GraceTimeout = presence.DisconnectTTL + time.Second
)

// errNoChange aborts a mutation without writing or emitting anything. Used
// by the deferred re-checks when the state they were scheduled to fix has
// already moved on.
var errNoChange = errors.New("no change")

// SettingsUpdate is a partial lobby-settings change. Nil fields are left
// untouched.
type SettingsUpdate struct {
	Name       *string `json:"name"`
	MaxPlayers *int    `json:"max_players"`
	Status     *string `json:"status"`
}

// Service drives the lobby lifecycle state machine. All correctness comes
// from the store's conditional updates; the service holds no mutable lobby
// state of its own, so any number of handlers may call it concurrently.
type Service struct {
	store    Store
	presence presence.Store
	bus      events.Bus
	sched    *scheduler.Scheduler
	log      *logrus.Logger

	startTimeout time.Duration
	graceTimeout time.Duration
}

func NewService(store Store, ps presence.Store, bus events.Bus, sched *scheduler.Scheduler, logger *logrus.Logger) *Service {
	return &Service{
		store:        store,
		presence:     ps,
		bus:          bus,
		sched:        sched,
		log:          logger,
		startTimeout: StartTimeout,
		graceTimeout: GraceTimeout,
	}
}

// mutate runs fn against a fresh copy of the lobby and commits it with a
// conditional write, retrying with re-read data on version conflicts up to
// the retry bound. fn errors abort without writing.
func (s *Service) mutate(ctx context.Context, id uuid.UUID, fn func(l *Lobby) error) (*Lobby, error) {
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		cur, err := s.store.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		next := cur.Clone()
		if err := fn(next); err != nil {
			return nil, err
		}
		err = s.store.ConditionalUpdate(ctx, id, cur.Version, next)
		if errors.Is(err, ErrConflict) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return next, nil
	}
	return nil, ErrConflict
}

func (s *Service) publishLobby(event string, l *Lobby) {
	s.bus.Publish(events.LobbyTopic(l.ID.String()), event, l)
}

// Create persists a fresh idle lobby hosted by host.
func (s *Service) Create(ctx context.Context, name, host string, maxPlayers int) (*Lobby, error) {
	if name == "" {
		name = "Unnamed Lobby"
	}
	if maxPlayers < 2 {
		maxPlayers = 4
	}
	l := New(name, host, maxPlayers)
	if err := s.store.Create(ctx, l); err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{
		"lobby": l.ID,
		"host":  host,
	}).Info("lobby created")
	return l, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Lobby, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, filter Status) ([]*Lobby, error) {
	return s.store.List(ctx, filter)
}

// Resolve finds a lobby by id, falling back to a name match when the key is
// not a known id. Clients join by either.
func (s *Service) Resolve(ctx context.Context, key string) (*Lobby, error) {
	if id, err := uuid.Parse(key); err == nil {
		l, err := s.store.Get(ctx, id)
		if err == nil {
			return l, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}
	all, err := s.store.List(ctx, "")
	if err != nil {
		return nil, err
	}
	for _, l := range all {
		if l.Name == key {
			return l, nil
		}
	}
	return nil, ErrNotFound
}

// Join appends identity to the lobby identified by key (id or name).
// Capacity, joinability, and duplicate checks commit atomically with the
// membership write.
func (s *Service) Join(ctx context.Context, key, identity string) (*Lobby, error) {
	target, err := s.Resolve(ctx, key)
	if err != nil {
		return nil, err
	}
	updated, err := s.mutate(ctx, target.ID, func(l *Lobby) error {
		if l.IsFull() {
			return ErrFull
		}
		if l.Status != StatusIdle {
			return ErrNotJoinable
		}
		if l.IsMember(identity) {
			return ErrAlreadyMember
		}
		l.AddMember(identity)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publishLobby("lobby_updated", updated)
	return updated, nil
}

// Leave removes identity from the lobby. A departing host hands the room to
// the first remaining member; an emptied lobby is deleted, never persisted
// empty.
func (s *Service) Leave(ctx context.Context, id uuid.UUID, identity string) error {
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		cur, err := s.store.Get(ctx, id)
		if err != nil {
			return err
		}
		if !cur.IsMember(identity) {
			return ErrNotMember
		}

		next := cur.Clone()
		next.RemoveMember(identity)

		if len(next.Members) == 0 {
			err = s.store.ConditionalUpdate(ctx, id, cur.Version, nil)
			if errors.Is(err, ErrConflict) {
				continue
			}
			if err != nil {
				return err
			}
			s.bus.Publish(events.LobbyTopic(id.String()), "lobby_deleted",
				map[string]interface{}{"lobby_id": id.String()})
			s.log.WithField("lobby", id).Info("lobby emptied and deleted")
			return nil
		}

		err = s.store.ConditionalUpdate(ctx, id, cur.Version, next)
		if errors.Is(err, ErrConflict) {
			continue
		}
		if err != nil {
			return err
		}
		s.publishLobby("lobby_updated", next)
		return nil
	}
	return ErrConflict
}

// UpdateSettings applies a partial settings change. Host-only. Unrecognized
// status values and invalid capacities are ignored, not errors, so older
// clients sending partial updates keep working.
func (s *Service) UpdateSettings(ctx context.Context, id uuid.UUID, actor string, upd SettingsUpdate) (*Lobby, error) {
	updated, err := s.mutate(ctx, id, func(l *Lobby) error {
		if !l.IsHost(actor) {
			return ErrForbidden
		}
		if upd.Name != nil && *upd.Name != "" {
			l.Name = *upd.Name
		}
		if upd.MaxPlayers != nil && *upd.MaxPlayers >= 2 && *upd.MaxPlayers >= len(l.Members) {
			l.MaxPlayers = *upd.MaxPlayers
		}
		if upd.Status != nil && Status(*upd.Status).Valid() {
			l.Status = Status(*upd.Status)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publishLobby("lobby_updated", updated)
	return updated, nil
}

// Delete removes the lobby outright. Host-only.
func (s *Service) Delete(ctx context.Context, id uuid.UUID, actor string) error {
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		cur, err := s.store.Get(ctx, id)
		if err != nil {
			return err
		}
		if !cur.IsHost(actor) {
			return ErrForbidden
		}
		err = s.store.ConditionalUpdate(ctx, id, cur.Version, nil)
		if errors.Is(err, ErrConflict) {
			continue
		}
		if err != nil {
			return err
		}
		s.bus.Publish(events.LobbyTopic(id.String()), "lobby_deleted",
			map[string]interface{}{"lobby_id": id.String()})
		return nil
	}
	return ErrConflict
}

// Start moves an idle lobby to starting, marks every member connecting, and
// schedules the start-timeout re-check. Host-only; needs at least 2 members.
func (s *Service) Start(ctx context.Context, id uuid.UUID, actor string) (*Lobby, error) {
	updated, err := s.mutate(ctx, id, func(l *Lobby) error {
		if !l.IsHost(actor) {
			return ErrForbidden
		}
		if len(l.Members) < 2 {
			return ErrInvalidTransition
		}
		if l.Status != StatusIdle {
			return ErrInvalidTransition
		}
		l.Status = StatusStarting
		l.SetAllMemberStatus(MemberConnecting)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publishLobby("lobby_starting", updated)
	s.log.WithField("lobby", id).Info("lobby starting")

	s.sched.Schedule(s.startTimeout, "lobby-start-timeout", func(ctx context.Context) {
		s.checkStartTimeout(ctx, id)
	})
	return updated, nil
}

// checkStartTimeout is the deferred "nobody connected in time" path. It
// re-fetches the lobby and acts only if it is still starting: deleted,
// failed, or started lobbies were handled by whichever path fired first.
func (s *Service) checkStartTimeout(ctx context.Context, id uuid.UUID) {
	updated, err := s.mutate(ctx, id, func(l *Lobby) error {
		if l.Status != StatusStarting {
			return errNoChange
		}
		l.Status = StatusIdle
		l.SetAllMemberStatus(MemberDisconnected)
		return nil
	})
	if errors.Is(err, errNoChange) || errors.Is(err, ErrNotFound) {
		return
	}
	if err != nil {
		s.log.WithField("lobby", id).Warnf("start-timeout check failed: %v", err)
		return
	}
	s.publishLobby("lobby_stopping", updated)
	s.log.WithField("lobby", id).Warn("lobby stopped due to start timeout")
}

// Stop reverts the lobby to idle from any status. Host-only.
func (s *Service) Stop(ctx context.Context, id uuid.UUID, actor string) (*Lobby, error) {
	updated, err := s.mutate(ctx, id, func(l *Lobby) error {
		if !l.IsHost(actor) {
			return ErrForbidden
		}
		l.Status = StatusIdle
		l.SetAllMemberStatus(MemberDisconnected)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publishLobby("lobby_stopping", updated)
	return updated, nil
}

// ReportConnected records that identity established its peer links. Once two
// members of a starting lobby are connected the session is live and the
// lobby moves to started.
func (s *Service) ReportConnected(ctx context.Context, id uuid.UUID, identity string) (*Lobby, error) {
	updated, err := s.mutate(ctx, id, func(l *Lobby) error {
		if !l.IsMember(identity) {
			return ErrNotMember
		}
		l.MemberStatus[identity] = MemberConnected
		if l.Status == StatusStarting && l.CountMemberStatus(MemberConnected) >= 2 {
			l.Status = StatusStarted
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publishLobby("lobby_updated", updated)
	return updated, nil
}

// ReportFailed records that identity could not establish its peer links.
// When all but one member of a starting lobby have failed no session can
// form, so the lobby fails and member statuses reset. The terminal failure
// is emitted as lobby_stopping so clients can tell it apart from an
// incremental update.
func (s *Service) ReportFailed(ctx context.Context, id uuid.UUID, identity, reason string) (*Lobby, error) {
	var becameFailed bool
	updated, err := s.mutate(ctx, id, func(l *Lobby) error {
		becameFailed = false
		if !l.IsMember(identity) {
			return ErrNotMember
		}
		l.MemberStatus[identity] = MemberFailed
		if l.Status == StatusStarting && l.CountMemberStatus(MemberFailed) >= len(l.Members)-1 {
			l.Status = StatusFailed
			l.SetAllMemberStatus(MemberDisconnected)
			becameFailed = true
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"lobby":    id,
		"identity": identity,
		"reason":   reason,
	}).Warn("member reported connection failure")

	if becameFailed {
		s.publishLobby("lobby_stopping", updated)
	} else {
		s.publishLobby("lobby_updated", updated)
	}
	return updated, nil
}

// PeerInfo assembles the ordered peer list for requester. Membership is
// required; a requester missing from the member list after passing that
// check is a logic error surfaced via selfIndex == -1.
func (s *Service) PeerInfo(ctx context.Context, id uuid.UUID, requester string) ([]PeerInfo, int, error) {
	l, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, -1, err
	}
	if !l.IsMember(requester) {
		return nil, -1, ErrNotMember
	}

	records, err := s.presence.ListAll(ctx)
	if err != nil {
		return nil, -1, err
	}
	online := make(map[string]presence.Record, len(records))
	for _, rec := range records {
		online[rec.Identity] = rec
	}

	peers, selfIndex := AssemblePeers(l, online, requester)
	return peers, selfIndex, nil
}

// HandleDisconnect demotes the identity's presence to the disconnect TTL and
// schedules the grace-timeout sweep. Called when a live session drops.
func (s *Service) HandleDisconnect(ctx context.Context, identity string) {
	if err := s.presence.SetTTL(ctx, identity, presence.DisconnectTTL); err != nil {
		s.log.WithField("identity", identity).Warnf("failed to demote presence ttl: %v", err)
	}
	s.sched.Schedule(s.graceTimeout, "disconnect-grace", func(ctx context.Context) {
		s.sweepDeparted(ctx, identity)
	})
}

// sweepDeparted is the deferred disconnect check: if the identity has not
// reappeared after the grace window it is removed from every lobby it
// belongs to, and the global online count is re-broadcast.
func (s *Service) sweepDeparted(ctx context.Context, identity string) {
	rec, err := s.presence.Get(ctx, identity)
	if err != nil {
		s.log.WithField("identity", identity).Warnf("grace-timeout presence check failed: %v", err)
		return
	}
	if rec != nil {
		// Reconnected within the grace window.
		return
	}

	lobbies, err := s.store.List(ctx, "")
	if err != nil {
		s.log.WithField("identity", identity).Warnf("grace-timeout lobby sweep failed: %v", err)
		return
	}
	for _, l := range lobbies {
		if !l.IsMember(identity) {
			continue
		}
		err := s.Leave(ctx, l.ID, identity)
		if err != nil && !errors.Is(err, ErrNotMember) && !errors.Is(err, ErrNotFound) {
			s.log.WithFields(logrus.Fields{
				"lobby":    l.ID,
				"identity": identity,
			}).Warnf("failed to remove departed member: %v", err)
		}
	}
	s.log.WithField("identity", identity).Info("identity swept from lobbies after disconnect grace period")
	s.PublishOnlineCount(ctx)
}

// PublishOnlineCount broadcasts the current number of online identities to
// the global topic. Callers invoke it after presence mutations; the presence
// store itself stays passive.
func (s *Service) PublishOnlineCount(ctx context.Context) {
	records, err := s.presence.ListAll(ctx)
	if err != nil {
		s.log.Warnf("failed to list presence for online count: %v", err)
		return
	}
	s.bus.Publish(events.OnlineTopic, "online_count", map[string]interface{}{
		"count": len(records),
	})
}
