// internal/events/hub_test.go
package events

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func newTestHub() *Hub {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return NewHub(logger)
}

func drain(s *Session) []map[string]interface{} {
	var msgs []map[string]interface{}
	for {
		select {
		case m := <-s.OutChan:
			msgs = append(msgs, m)
		default:
			return msgs
		}
	}
}

func TestPublishReachesSubscribersOnly(t *testing.T) {
	h := newTestHub()

	sub := NewSession(func() {})
	other := NewSession(func() {})
	h.Register(sub)
	h.Register(other)
	h.Subscribe(sub, LobbyTopic("abc"))

	h.Publish(LobbyTopic("abc"), "lobby_updated", map[string]interface{}{"id": "abc"})

	msgs := drain(sub)
	require.Len(t, msgs, 1)
	require.Equal(t, "lobby_updated", msgs[0]["type"])
	require.Equal(t, map[string]interface{}{"id": "abc"}, msgs[0]["data"])

	require.Empty(t, drain(other))
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	h := newTestHub()

	s := NewSession(func() {})
	h.Subscribe(s, OnlineTopic)
	h.Unsubscribe(s, OnlineTopic)

	h.Publish(OnlineTopic, "online_count", map[string]interface{}{"count": 3})
	require.Empty(t, drain(s))
}

func TestUnregisterDropsAllTopics(t *testing.T) {
	h := newTestHub()

	s := NewSession(func() {})
	h.Subscribe(s, OnlineTopic)
	h.Subscribe(s, LobbyTopic("abc"))
	h.Subscribe(s, LobbyTopic("def"))

	h.Unregister(s)

	h.Publish(OnlineTopic, "online_count", nil)
	h.Publish(LobbyTopic("abc"), "lobby_updated", nil)
	h.Publish(LobbyTopic("def"), "lobby_deleted", nil)
	require.Empty(t, drain(s))
}

func TestPublishNeverBlocksOnFullSession(t *testing.T) {
	h := newTestHub()

	s := NewSession(func() {})
	h.Subscribe(s, OnlineTopic)

	// Overflow the session buffer; extra messages are dropped, not queued.
	for i := 0; i < cap(s.OutChan)+10; i++ {
		h.Publish(OnlineTopic, "online_count", map[string]interface{}{"count": i})
	}
	require.Len(t, drain(s), cap(s.OutChan))
}

func TestSessionAuthenticated(t *testing.T) {
	s := NewSession(func() {})
	require.False(t, s.Authenticated())
	s.Identity = "alice"
	require.True(t, s.Authenticated())
}
