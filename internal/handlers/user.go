// internal/handlers/user.go
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/StefanGC1/PeerBridge/internal/auth"
	"github.com/StefanGC1/PeerBridge/internal/database"
	"github.com/StefanGC1/PeerBridge/internal/models"
	"github.com/StefanGC1/PeerBridge/internal/presence"
)

// credentialsRequest is the register/login payload. The endpoint fields are
// what the client discovered about its own reachable address (via STUN);
// they seed the provisional presence record.
type credentialsRequest struct {
	Username   string `json:"username"`
	Password   string `json:"password"`
	PublicIP   string `json:"public_ip"`
	PublicPort int    `json:"public_port"`
	PublicKey  []byte `json:"public_key"`
}

type authResponse struct {
	Message     string `json:"message"`
	AccessToken string `json:"access_token"`
	UserID      string `json:"user_id"`
	Username    string `json:"username"`
}

// seedPresence writes the provisional presence record for a fresh
// register/login. The record lives for LoginTTL unless a realtime session
// authenticates and promotes it.
func (s *Server) seedPresence(r *http.Request, identity string, req credentialsRequest) {
	rec := presence.Record{
		Identity:  identity,
		IP:        req.PublicIP,
		Port:      req.PublicPort,
		PublicKey: req.PublicKey,
	}
	if err := s.Presence.Upsert(r.Context(), rec, presence.LoginTTL); err != nil {
		s.Log.WithField("identity", identity).Warnf("failed to seed presence: %v", err)
		return
	}
	s.Lobbies.PublishOnlineCount(r.Context())
}

func setAuthCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     "auth_token",
		Value:    token,
		HttpOnly: true,
		Path:     "/",
		MaxAge:   auth.TOKEN_EXPIRE_TIME_SEC,
	})
}

// RegisterHandler creates an account, issues a JWT, and records provisional
// presence from the submitted endpoint info.
func (s *Server) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "username and password required")
		return
	}

	user := models.User{
		Username: req.Username,
		Password: req.Password,
	}
	if err := database.CreateUser(r.Context(), &user); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			writeError(w, http.StatusConflict, "username already taken")
			return
		}
		s.Log.Errorf("failed to create user: %v", err)
		writeError(w, http.StatusInternalServerError, "error creating user")
		return
	}

	token, err := auth.CreateJWT(user.ID.String())
	if err != nil {
		s.Log.Errorf("failed to create jwt: %v", err)
		writeError(w, http.StatusInternalServerError, "error creating token")
		return
	}

	s.seedPresence(r, user.ID.String(), req)
	setAuthCookie(w, token)
	writeJSON(w, http.StatusCreated, authResponse{
		Message:     "User " + user.ID.String() + " registered",
		AccessToken: token,
		UserID:      user.ID.String(),
		Username:    user.Username,
	})
}

// LoginHandler verifies credentials, issues a JWT, and refreshes provisional
// presence.
func (s *Server) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "username and password required")
		return
	}

	user, token, err := database.AuthenticateUser(r.Context(), req.Username, req.Password)
	if err != nil {
		s.Log.Infof("failed login for %q: %v", req.Username, err)
		writeError(w, http.StatusUnauthorized, "invalid username or password")
		return
	}

	s.seedPresence(r, user.ID.String(), req)
	setAuthCookie(w, token)
	writeJSON(w, http.StatusOK, authResponse{
		Message:     "User " + user.ID.String() + " logged in",
		AccessToken: token,
		UserID:      user.ID.String(),
		Username:    user.Username,
	})
}

// onlineUser is the wire shape of one presence record in /online responses.
type onlineUser struct {
	Identity   string    `json:"identity"`
	IP         string    `json:"ip"`
	Port       int       `json:"port"`
	LastActive time.Time `json:"last_active"`
}

// OnlineHandler lists every currently reachable identity.
func (s *Server) OnlineHandler(w http.ResponseWriter, r *http.Request) {
	identity, err := requireIdentity(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	records, err := s.Presence.ListAll(r.Context())
	if err != nil {
		s.Log.Errorf("failed to list presence: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	online := make(map[string]onlineUser, len(records))
	for _, rec := range records {
		online[rec.Identity] = onlineUser{
			Identity:   rec.Identity,
			IP:         rec.IP,
			Port:       rec.Port,
			LastActive: rec.LastActive,
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"you":    identity,
		"online": online,
	})
}

// SearchUsersHandler finds accounts by partial username, excluding the
// requester. Queries shorter than 3 characters are rejected.
func (s *Server) SearchUsersHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := requireUserID(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	query := r.URL.Query().Get("q")
	if len(query) < 3 {
		writeError(w, http.StatusBadRequest, "search query must be at least 3 characters")
		return
	}

	users, err := database.SearchUsers(r.Context(), query, userID, 25)
	if err != nil {
		s.Log.Errorf("user search failed: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"users": users})
}

// BatchUsersHandler resolves a batch of user IDs to usernames, used by
// clients to label lobby member lists.
func (s *Server) BatchUsersHandler(w http.ResponseWriter, r *http.Request) {
	if _, err := requireIdentity(r); err != nil {
		writeDomainError(w, err)
		return
	}

	var req struct {
		UserIDs []string `json:"user_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}

	ids := make([]uuid.UUID, 0, len(req.UserIDs))
	for _, raw := range req.UserIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}

	users := map[string]map[string]string{}
	if len(ids) > 0 {
		names, err := database.GetUsernames(r.Context(), ids)
		if err != nil {
			s.Log.Errorf("batch username lookup failed: %v", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		for id, name := range names {
			users[id.String()] = map[string]string{"username": name}
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"users": users})
}
