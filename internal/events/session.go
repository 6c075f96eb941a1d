// internal/events/session.go
package events

import (
	"log"

	"github.com/google/uuid"
)

// Session is one live realtime connection's handle in the hub. Identity is
// empty until the client authenticates over the channel; the websocket
// handler owns the struct and is the only writer of its fields.
type Session struct {
	ID       uuid.UUID
	Identity string
	Cancel   func()
	OutChan  chan map[string]interface{}
}

func NewSession(cancel func()) *Session {
	return &Session{
		ID:      uuid.New(),
		Cancel:  cancel,
		OutChan: make(chan map[string]interface{}, 16),
	}
}

// Authenticated reports whether an identity has been bound to this session.
func (s *Session) Authenticated() bool {
	return s.Identity != ""
}

// Write pushes a message onto the session's OutChan non-blockingly. Logs if
// the channel is closed or full and the message is dropped.
func (s *Session) Write(msg map[string]interface{}) {
	select {
	case s.OutChan <- msg:
	default:
		msgType, _ := msg["type"].(string)
		log.Printf("Session %s: OutChan closed or full, dropped message type %q", s.ID, msgType)
	}
}

// WriteError is a convenience to send an error event to the session.
func (s *Session) WriteError(msg string) {
	s.Write(map[string]interface{}{
		"type":    "error",
		"message": msg,
	})
}
