// internal/handlers/lobby.go
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/google/uuid"

	"github.com/StefanGC1/PeerBridge/internal/lobby"
)

// pathLobbyID parses the {id} segment of a lobby route.
func pathLobbyID(r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	return id, err == nil
}

type createLobbyRequest struct {
	Name       string `json:"name"`
	MaxPlayers int    `json:"max_players"`
}

// CreateLobbyHandler creates an idle lobby hosted by the acting identity.
func (s *Server) CreateLobbyHandler(w http.ResponseWriter, r *http.Request) {
	identity, err := requireIdentity(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	var req createLobbyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}

	l, err := s.Lobbies.Create(r.Context(), req.Name, identity, req.MaxPlayers)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, l)
}

// ListLobbiesHandler returns all lobbies, optionally filtered by ?status=.
func (s *Server) ListLobbiesHandler(w http.ResponseWriter, r *http.Request) {
	if _, err := requireIdentity(r); err != nil {
		writeDomainError(w, err)
		return
	}

	filter := lobby.Status(r.URL.Query().Get("status"))
	if filter != "" && !filter.Valid() {
		writeError(w, http.StatusBadRequest, "unrecognized status filter")
		return
	}

	lobbies, err := s.Lobbies.List(r.Context(), filter)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if lobbies == nil {
		lobbies = []*lobby.Lobby{}
	}
	writeJSON(w, http.StatusOK, lobbies)
}

// JoinLobbyHandler joins the acting identity into the lobby addressed by id
// or, as a fallback, by name.
func (s *Server) JoinLobbyHandler(w http.ResponseWriter, r *http.Request) {
	identity, err := requireIdentity(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	key := r.PathValue("id")
	l, err := s.Lobbies.Join(r.Context(), key, identity)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

// LeaveLobbyHandler removes the acting identity from the lobby.
func (s *Server) LeaveLobbyHandler(w http.ResponseWriter, r *http.Request) {
	identity, err := requireIdentity(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	id, ok := pathLobbyID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid lobby id")
		return
	}

	if err := s.Lobbies.Leave(r.Context(), id, identity); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "left the lobby"})
}

// UpdateLobbyHandler applies a partial settings update. Host-only.
func (s *Server) UpdateLobbyHandler(w http.ResponseWriter, r *http.Request) {
	identity, err := requireIdentity(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	id, ok := pathLobbyID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid lobby id")
		return
	}

	var upd lobby.SettingsUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}

	l, err := s.Lobbies.UpdateSettings(r.Context(), id, identity, upd)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

// DeleteLobbyHandler deletes the lobby outright. Host-only.
func (s *Server) DeleteLobbyHandler(w http.ResponseWriter, r *http.Request) {
	identity, err := requireIdentity(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	id, ok := pathLobbyID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid lobby id")
		return
	}

	if err := s.Lobbies.Delete(r.Context(), id, identity); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "lobby deleted"})
}

// StartLobbyHandler begins the peer-connection phase. Host-only.
func (s *Server) StartLobbyHandler(w http.ResponseWriter, r *http.Request) {
	identity, err := requireIdentity(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	id, ok := pathLobbyID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid lobby id")
		return
	}

	if _, err := s.Lobbies.Start(r.Context(), id, identity); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "starting lobby"})
}

// StopLobbyHandler reverts the lobby to idle. Host-only.
func (s *Server) StopLobbyHandler(w http.ResponseWriter, r *http.Request) {
	identity, err := requireIdentity(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	id, ok := pathLobbyID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid lobby id")
		return
	}

	if _, err := s.Lobbies.Stop(r.Context(), id, identity); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "stopping lobby"})
}

// ReportConnectedHandler records that the acting member established its
// peer links.
func (s *Server) ReportConnectedHandler(w http.ResponseWriter, r *http.Request) {
	identity, err := requireIdentity(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	id, ok := pathLobbyID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid lobby id")
		return
	}

	l, err := s.Lobbies.ReportConnected(r.Context(), id, identity)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

// ReportFailedHandler records that the acting member could not establish
// its peer links.
func (s *Server) ReportFailedHandler(w http.ResponseWriter, r *http.Request) {
	identity, err := requireIdentity(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	id, ok := pathLobbyID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid lobby id")
		return
	}

	var req struct {
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}

	l, err := s.Lobbies.ReportFailed(r.Context(), id, identity, req.Reason)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

// PeerInfoHandler returns the ordered peer list used to bootstrap the mesh.
func (s *Server) PeerInfoHandler(w http.ResponseWriter, r *http.Request) {
	identity, err := requireIdentity(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	id, ok := pathLobbyID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid lobby id")
		return
	}

	peers, selfIndex, err := s.Lobbies.PeerInfo(r.Context(), id, identity)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if selfIndex < 0 {
		// Membership was checked, so a missing self slot is a bug, not a
		// client error. Surface it loudly.
		s.Log.WithField("lobby", id).Errorf("requester %s missing from member list during peer assembly", identity)
		writeError(w, http.StatusInternalServerError, "requester not in member list")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"peers":      peers,
		"self_index": selfIndex,
	})
}
