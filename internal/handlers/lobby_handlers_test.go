// internal/handlers/lobby_handlers_test.go
package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/StefanGC1/PeerBridge/internal/auth"
	"github.com/StefanGC1/PeerBridge/internal/events"
	"github.com/StefanGC1/PeerBridge/internal/lobby"
	"github.com/StefanGC1/PeerBridge/internal/presence"
	"github.com/StefanGC1/PeerBridge/internal/scheduler"
)

// newTestServer wires the handlers against in-memory stores and returns the
// routed mux so path parameters resolve the same way they do in production.
func newTestServer(t *testing.T) (*Server, *http.ServeMux, *presence.MemoryStore) {
	t.Helper()
	auth.Init() // ephemeral keys, no DB needed

	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	hub := events.NewHub(logger)
	sched := scheduler.New(logger)
	t.Cleanup(sched.Shutdown)

	ps := presence.NewMemoryStore()
	svc := lobby.NewService(lobby.NewMemoryStore(), ps, hub, sched, logger)
	srv := NewServer(logger, ps, svc, hub)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /lobby/create", srv.CreateLobbyHandler)
	mux.HandleFunc("GET /lobby/list", srv.ListLobbiesHandler)
	mux.HandleFunc("POST /lobby/join/{id}", srv.JoinLobbyHandler)
	mux.HandleFunc("POST /lobby/leave/{id}", srv.LeaveLobbyHandler)
	mux.HandleFunc("PUT /lobby/update/{id}", srv.UpdateLobbyHandler)
	mux.HandleFunc("POST /lobby/delete/{id}", srv.DeleteLobbyHandler)
	mux.HandleFunc("POST /lobby/start/{id}", srv.StartLobbyHandler)
	mux.HandleFunc("POST /lobby/stop/{id}", srv.StopLobbyHandler)
	mux.HandleFunc("POST /lobby/report-connected/{id}", srv.ReportConnectedHandler)
	mux.HandleFunc("POST /lobby/report-failed/{id}", srv.ReportFailedHandler)
	mux.HandleFunc("GET /lobby/peer-info/{id}", srv.PeerInfoHandler)
	return srv, mux, ps
}

func doAs(t *testing.T, mux *http.ServeMux, identity, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	token, err := auth.CreateJWT(identity)
	if err != nil {
		t.Fatalf("failed to create jwt: %v", err)
	}
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	req.Header.Set("Cookie", "auth_token="+token)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func createLobbyAs(t *testing.T, mux *http.ServeMux, identity, body string) lobby.Lobby {
	t.Helper()
	w := doAs(t, mux, identity, "POST", "/lobby/create", body)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201 Created, got %d: %s", w.Code, w.Body.String())
	}
	var l lobby.Lobby
	if err := json.Unmarshal(w.Body.Bytes(), &l); err != nil {
		t.Fatalf("failed to decode lobby: %v", err)
	}
	return l
}

func TestLobbyCreateAndJoinFlow(t *testing.T) {
	_, mux, _ := newTestServer(t)

	l := createLobbyAs(t, mux, "alice", `{"name":"game night","max_players":3}`)
	if l.Name != "game night" || l.HostID != "alice" {
		t.Fatalf("unexpected lobby: %+v", l)
	}

	w := doAs(t, mux, "bob", "POST", "/lobby/join/"+l.ID.String(), "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d: %s", w.Code, w.Body.String())
	}
	var joined lobby.Lobby
	if err := json.Unmarshal(w.Body.Bytes(), &joined); err != nil {
		t.Fatalf("failed to decode lobby: %v", err)
	}
	if len(joined.Members) != 2 || joined.Members[1] != "bob" {
		t.Fatalf("bob not appended to members: %+v", joined.Members)
	}

	w = doAs(t, mux, "carol", "GET", "/lobby/list", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d: %s", w.Code, w.Body.String())
	}
	var lobbies []lobby.Lobby
	if err := json.Unmarshal(w.Body.Bytes(), &lobbies); err != nil {
		t.Fatalf("failed to decode list: %v", err)
	}
	if len(lobbies) != 1 {
		t.Fatalf("expected 1 lobby, got %d", len(lobbies))
	}
}

func TestLobbyJoinByName(t *testing.T) {
	_, mux, _ := newTestServer(t)

	createLobbyAs(t, mux, "alice", `{"name":"my-room"}`)

	w := doAs(t, mux, "bob", "POST", "/lobby/join/my-room", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 OK for name join, got %d: %s", w.Code, w.Body.String())
	}

	w = doAs(t, mux, "bob", "POST", "/lobby/join/no-such-room", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown key, got %d", w.Code)
	}
}

func TestLobbyEndpointsRequireAuth(t *testing.T) {
	_, mux, _ := newTestServer(t)

	req := httptest.NewRequest("POST", "/lobby/create", bytes.NewBufferString(`{}`))
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", w.Code)
	}

	req = httptest.NewRequest("GET", "/lobby/list", nil)
	req.Header.Set("Cookie", "auth_token=not-a-jwt")
	w = httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with garbage token, got %d", w.Code)
	}
}

func TestLobbyErrorMapping(t *testing.T) {
	_, mux, _ := newTestServer(t)

	l := createLobbyAs(t, mux, "alice", `{"max_players":2}`)

	if w := doAs(t, mux, "bob", "POST", "/lobby/join/"+l.ID.String(), ""); w.Code != http.StatusOK {
		t.Fatalf("join failed: %d", w.Code)
	}
	// Room is now full.
	if w := doAs(t, mux, "carol", "POST", "/lobby/join/"+l.ID.String(), ""); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for full lobby, got %d", w.Code)
	}
	// Non-host cannot start.
	if w := doAs(t, mux, "bob", "POST", "/lobby/start/"+l.ID.String(), ""); w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-host start, got %d", w.Code)
	}
	// Non-member cannot leave.
	if w := doAs(t, mux, "carol", "POST", "/lobby/leave/"+l.ID.String(), ""); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for non-member leave, got %d", w.Code)
	}
	// Malformed id segment.
	if w := doAs(t, mux, "alice", "POST", "/lobby/leave/not-a-uuid", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad id, got %d", w.Code)
	}
}

func TestLobbyStartStopRoundTrip(t *testing.T) {
	_, mux, _ := newTestServer(t)

	l := createLobbyAs(t, mux, "alice", `{}`)
	if w := doAs(t, mux, "bob", "POST", "/lobby/join/"+l.ID.String(), ""); w.Code != http.StatusOK {
		t.Fatalf("join failed: %d", w.Code)
	}

	if w := doAs(t, mux, "alice", "POST", "/lobby/start/"+l.ID.String(), ""); w.Code != http.StatusOK {
		t.Fatalf("start failed: %d, %s", w.Code, w.Body.String())
	}

	w := doAs(t, mux, "alice", "POST", "/lobby/report-connected/"+l.ID.String(), "")
	if w.Code != http.StatusOK {
		t.Fatalf("report-connected failed: %d", w.Code)
	}
	w = doAs(t, mux, "bob", "POST", "/lobby/report-connected/"+l.ID.String(), "")
	var started lobby.Lobby
	if err := json.Unmarshal(w.Body.Bytes(), &started); err != nil {
		t.Fatalf("failed to decode lobby: %v", err)
	}
	if started.Status != lobby.StatusStarted {
		t.Fatalf("expected started status, got %s", started.Status)
	}

	if w := doAs(t, mux, "alice", "POST", "/lobby/stop/"+l.ID.String(), ""); w.Code != http.StatusOK {
		t.Fatalf("stop failed: %d", w.Code)
	}
}

func TestLobbyReportFailed(t *testing.T) {
	_, mux, _ := newTestServer(t)

	l := createLobbyAs(t, mux, "alice", `{}`)
	if w := doAs(t, mux, "bob", "POST", "/lobby/join/"+l.ID.String(), ""); w.Code != http.StatusOK {
		t.Fatalf("join failed: %d", w.Code)
	}
	if w := doAs(t, mux, "alice", "POST", "/lobby/start/"+l.ID.String(), ""); w.Code != http.StatusOK {
		t.Fatalf("start failed: %d", w.Code)
	}

	w := doAs(t, mux, "bob", "POST", "/lobby/report-failed/"+l.ID.String(), `{"reason":"nat traversal failed"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("report-failed failed: %d, %s", w.Code, w.Body.String())
	}
	var failed lobby.Lobby
	if err := json.Unmarshal(w.Body.Bytes(), &failed); err != nil {
		t.Fatalf("failed to decode lobby: %v", err)
	}
	// In a two-member room one failure is terminal.
	if failed.Status != lobby.StatusFailed {
		t.Fatalf("expected failed status, got %s", failed.Status)
	}
}

func TestPeerInfoEndpoint(t *testing.T) {
	_, mux, ps := newTestServer(t)

	l := createLobbyAs(t, mux, "alice", `{}`)
	if w := doAs(t, mux, "bob", "POST", "/lobby/join/"+l.ID.String(), ""); w.Code != http.StatusOK {
		t.Fatalf("join failed: %d", w.Code)
	}
	if err := ps.Upsert(context.Background(), presence.Record{
		Identity: "bob", IP: "198.51.100.2", Port: 40002, PublicKey: []byte("bob-key"),
	}, presence.TTLNone); err != nil {
		t.Fatalf("presence upsert failed: %v", err)
	}

	w := doAs(t, mux, "alice", "GET", "/lobby/peer-info/"+l.ID.String(), "")
	if w.Code != http.StatusOK {
		t.Fatalf("peer-info failed: %d, %s", w.Code, w.Body.String())
	}
	var resp struct {
		Peers     []lobby.PeerInfo `json:"peers"`
		SelfIndex int              `json:"self_index"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode peer info: %v", err)
	}
	if resp.SelfIndex != 0 {
		t.Fatalf("expected self_index 0, got %d", resp.SelfIndex)
	}
	if len(resp.Peers) != 2 || resp.Peers[0].Endpoint != lobby.EndpointSelf {
		t.Fatalf("unexpected peers: %+v", resp.Peers)
	}
	if resp.Peers[1].Endpoint != "198.51.100.2:40002" {
		t.Fatalf("expected bob's endpoint, got %q", resp.Peers[1].Endpoint)
	}

	if w := doAs(t, mux, "mallory", "GET", "/lobby/peer-info/"+l.ID.String(), ""); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for non-member peer-info, got %d", w.Code)
	}
}

func TestLobbyUpdateAndDelete(t *testing.T) {
	_, mux, _ := newTestServer(t)

	l := createLobbyAs(t, mux, "alice", `{"name":"before"}`)

	w := doAs(t, mux, "alice", "PUT", "/lobby/update/"+l.ID.String(), `{"name":"after","max_players":6}`)
	if w.Code != http.StatusOK {
		t.Fatalf("update failed: %d, %s", w.Code, w.Body.String())
	}
	var updated lobby.Lobby
	if err := json.Unmarshal(w.Body.Bytes(), &updated); err != nil {
		t.Fatalf("failed to decode lobby: %v", err)
	}
	if updated.Name != "after" || updated.MaxPlayers != 6 {
		t.Fatalf("settings not applied: %+v", updated)
	}

	if w := doAs(t, mux, "bob", "POST", "/lobby/delete/"+l.ID.String(), ""); w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-host delete, got %d", w.Code)
	}
	if w := doAs(t, mux, "alice", "POST", "/lobby/delete/"+l.ID.String(), ""); w.Code != http.StatusOK {
		t.Fatalf("delete failed: %d", w.Code)
	}
	if w := doAs(t, mux, "alice", "GET", "/lobby/peer-info/"+l.ID.String(), ""); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", w.Code)
	}
}
