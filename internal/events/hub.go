// internal/events/hub.go
package events

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// Hub is the in-process fanout over websocket sessions. It keeps the
// topic->sessions index plus the reverse index so a disconnecting session is
// removed from every topic in one call. Publish never blocks: sends go
// through Session.Write, which drops on a full channel.
type Hub struct {
	mu       sync.Mutex
	log      *logrus.Logger
	topics   map[string]map[*Session]struct{}
	sessions map[*Session]map[string]struct{}
}

func NewHub(logger *logrus.Logger) *Hub {
	return &Hub{
		log:      logger,
		topics:   make(map[string]map[*Session]struct{}),
		sessions: make(map[*Session]map[string]struct{}),
	}
}

// Register adds a session with no subscriptions yet.
func (h *Hub) Register(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.sessions[s]; !ok {
		h.sessions[s] = make(map[string]struct{})
	}
}

// Unregister removes the session from every topic and forgets it. The
// websocket handler owns closing the session's channel afterwards.
func (h *Hub) Unregister(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for topic := range h.sessions[s] {
		h.dropUnsafe(s, topic)
	}
	delete(h.sessions, s)
}

// Subscribe adds the session to a topic. Unknown sessions are registered
// implicitly.
func (h *Hub) Subscribe(s *Session, topic string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.sessions[s]; !ok {
		h.sessions[s] = make(map[string]struct{})
	}
	h.sessions[s][topic] = struct{}{}
	if _, ok := h.topics[topic]; !ok {
		h.topics[topic] = make(map[*Session]struct{})
	}
	h.topics[topic][s] = struct{}{}
}

// Unsubscribe removes the session from a topic.
func (h *Hub) Unsubscribe(s *Session, topic string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropUnsafe(s, topic)
	delete(h.sessions[s], topic)
}

// dropUnsafe removes s from the topic index. Assumes the lock is held.
func (h *Hub) dropUnsafe(s *Session, topic string) {
	if subs, ok := h.topics[topic]; ok {
		delete(subs, s)
		if len(subs) == 0 {
			delete(h.topics, topic)
		}
	}
}

// Publish implements Bus.
func (h *Hub) Publish(topic, event string, payload interface{}) {
	h.mu.Lock()
	targets := make([]*Session, 0, len(h.topics[topic]))
	for s := range h.topics[topic] {
		targets = append(targets, s)
	}
	h.mu.Unlock()

	if len(targets) == 0 {
		return
	}
	msg := map[string]interface{}{
		"type": event,
		"data": payload,
	}
	// Sends happen outside the lock; Write is non-blocking.
	for _, s := range targets {
		s.Write(msg)
	}
	h.log.WithFields(logrus.Fields{
		"topic":    topic,
		"event":    event,
		"sessions": len(targets),
	}).Debug("event fanout")
}
