// internal/handlers/ws.go
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/StefanGC1/PeerBridge/internal/auth"
	"github.com/StefanGC1/PeerBridge/internal/events"
	"github.com/StefanGC1/PeerBridge/internal/middleware"
	"github.com/StefanGC1/PeerBridge/internal/presence"
)

// Custom WebSocket close codes used by the events handler. These give
// clients more specific reasons for closure than the standard set.
const (
	BadSubprotocolError   = 3000 // Client connected with an unsupported subprotocol.
	InvalidAuthTokenError = 3001 // Provided auth token was invalid or expired.
)

// EventsWSHandler is the realtime channel. Clients connect, authenticate
// with their JWT, then subscribe to lobby rooms and receive pushed state
// changes. A dropped connection starts the departure grace period for the
// session's identity.
func (s *Server) EventsWSHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		remoteAddr := r.RemoteAddr

		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{"events"},
			OriginPatterns: []string{"*"}, // Adjust in production
		})
		if err != nil {
			s.Log.Warnf("websocket accept error: %v", err)
			return
		}
		defer c.Close(websocket.StatusInternalError, "handler finished")

		if c.Subprotocol() != "events" {
			c.Close(BadSubprotocolError, "client must speak the events subprotocol")
			return
		}

		middleware.LogWebSocketConnect(s.Log, remoteAddr, r.URL.Path)

		ctx, cancel := context.WithCancel(r.Context())
		sess := events.NewSession(cancel)
		s.Hub.Register(sess)

		go s.writePump(ctx, c, sess)

		// Blocks until the connection closes or errors.
		s.readPump(ctx, c, sess)

		// ---- Cleanup after readPump exits ----
		s.Hub.Unregister(sess)
		cancel()
		middleware.LogWebSocketDisconnect(s.Log, remoteAddr, r.URL.Path, nil)

		if sess.Authenticated() {
			// The request context is gone once the connection drops; give the
			// departure bookkeeping its own deadline.
			cleanupCtx, cleanupCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cleanupCancel()
			s.Lobbies.HandleDisconnect(cleanupCtx, sess.Identity)
		}
	}
}

// readPump handles incoming messages on the events websocket.
func (s *Server) readPump(ctx context.Context, c *websocket.Conn, sess *events.Session) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		typ, msg, err := c.Read(ctx)
		if err != nil {
			closeStatus := websocket.CloseStatus(err)
			if closeStatus == websocket.StatusNormalClosure || closeStatus == websocket.StatusGoingAway {
				s.Log.Infof("Events WS closed normally for session %s", sess.ID)
			} else if strings.Contains(err.Error(), "context canceled") {
				// Expected during shutdown; nothing to log.
			} else {
				s.Log.Warnf("Events WS read error for session %s: %v (CloseStatus: %d)", sess.ID, err, closeStatus)
			}
			return
		}

		if typ != websocket.MessageText {
			s.Log.Warnf("Events WS: non-text message type %d from session %s, ignoring", typ, sess.ID)
			continue
		}

		var packet map[string]interface{}
		if err := json.Unmarshal(msg, &packet); err != nil {
			s.Log.Warnf("Events WS: invalid json from session %s: %v", sess.ID, err)
			sess.WriteError("Invalid JSON format")
			continue
		}

		s.handleEventsMessage(ctx, packet, sess)
	}
}

// handleEventsMessage interprets the "type" field of a client packet.
func (s *Server) handleEventsMessage(ctx context.Context, packet map[string]interface{}, sess *events.Session) {
	action, _ := packet["type"].(string)

	if action == "authenticate" {
		s.handleAuthenticate(ctx, packet, sess)
		return
	}

	if !sess.Authenticated() {
		sess.WriteError("authenticate first")
		return
	}

	switch action {
	case "join_lobby_room":
		id, ok := packetLobbyID(packet)
		if !ok {
			sess.WriteError("Invalid lobby_id")
			return
		}
		s.Hub.Subscribe(sess, events.LobbyTopic(id.String()))
	case "leave_lobby_room":
		id, ok := packetLobbyID(packet)
		if !ok {
			sess.WriteError("Invalid lobby_id")
			return
		}
		s.Hub.Unsubscribe(sess, events.LobbyTopic(id.String()))
	case "get_lobby_data":
		id, ok := packetLobbyID(packet)
		if !ok {
			sess.WriteError("Invalid lobby_id")
			return
		}
		l, err := s.Lobbies.Get(ctx, id)
		if err != nil {
			sess.Write(map[string]interface{}{
				"type":     "lobby_error",
				"lobby_id": id.String(),
				"message":  "lobby not found",
			})
			return
		}
		sess.Write(map[string]interface{}{
			"type": "lobby_data",
			"data": l,
		})
	default:
		s.Log.Warnf("Events WS: unknown action %q from session %s", action, sess.ID)
		sess.WriteError("Unknown action type: " + action)
	}
}

// handleAuthenticate binds an identity to the session and promotes the
// caller's provisional presence record to an indefinite one.
func (s *Server) handleAuthenticate(ctx context.Context, packet map[string]interface{}, sess *events.Session) {
	token, _ := packet["token"].(string)
	if token == "" {
		sess.WriteError("Missing token")
		return
	}
	identity, err := auth.AuthenticateJWT(token)
	if err != nil {
		s.Log.Warnf("Events WS: authentication failed for session %s: %v", sess.ID, err)
		sess.WriteError("Authentication failed")
		return
	}

	sess.Identity = identity
	s.Hub.Subscribe(sess, events.OnlineTopic)

	if err := s.Presence.SetTTL(ctx, identity, presence.TTLNone); err != nil {
		// The record may have expired between login and the WS handshake;
		// the client stays authenticated but shows offline until re-login.
		s.Log.WithError(err).Warnf("failed to pin presence for %s", identity)
	}
	s.Lobbies.PublishOnlineCount(ctx)

	s.Log.WithFields(logrus.Fields{
		"session":  sess.ID,
		"identity": identity,
	}).Info("Events WS authenticated")

	sess.Write(map[string]interface{}{
		"type": "authenticated",
	})
}

func packetLobbyID(packet map[string]interface{}) (uuid.UUID, bool) {
	raw, _ := packet["lobby_id"].(string)
	id, err := uuid.Parse(raw)
	return id, err == nil
}

// writePump drains the session's outbound channel onto the wire and keeps
// the connection alive with periodic pings.
func (s *Server) writePump(ctx context.Context, c *websocket.Conn, sess *events.Session) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-sess.OutChan:
			if !ok {
				return
			}
			data, err := json.Marshal(msg)
			if err != nil {
				s.Log.Warnf("Events WS: failed to marshal outgoing msg for session %s: %v", sess.ID, err)
				continue
			}
			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err = c.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				s.Log.Warnf("Events WS: write failed for session %s: %v", sess.ID, err)
				return
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
			err := c.Ping(pingCtx)
			cancel()
			if err != nil {
				s.Log.Warnf("Events WS: ping failed for session %s, assuming disconnect: %v", sess.ID, err)
				return
			}
		}
	}
}
