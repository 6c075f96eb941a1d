// internal/handlers/server.go
package handlers

import (
	"github.com/sirupsen/logrus"

	"github.com/StefanGC1/PeerBridge/internal/events"
	"github.com/StefanGC1/PeerBridge/internal/lobby"
	"github.com/StefanGC1/PeerBridge/internal/presence"
)

// Server bundles the collaborators the HTTP and WebSocket handlers need.
type Server struct {
	Log      *logrus.Logger
	Presence presence.Store
	Lobbies  *lobby.Service
	Hub      *events.Hub
}

func NewServer(logger *logrus.Logger, ps presence.Store, ls *lobby.Service, hub *events.Hub) *Server {
	return &Server{
		Log:      logger,
		Presence: ps,
		Lobbies:  ls,
		Hub:      hub,
	}
}
