package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/StefanGC1/PeerBridge/internal/auth"
	"github.com/StefanGC1/PeerBridge/internal/lobby"
)

// ErrUnauthenticated means the request carries no verifiable identity.
var ErrUnauthenticated = errors.New("missing or invalid auth token")

// extractCookieToken extracts a named cookie value from the "Cookie" header,
// or returns empty if not found.
func extractCookieToken(cookieHeader, cookieName string) string {
	parts := strings.Split(cookieHeader, cookieName+"=")
	if len(parts) < 2 {
		return ""
	}
	token := parts[1]
	if idx := strings.Index(token, ";"); idx != -1 {
		token = token[:idx]
	}
	return token
}

// requestToken pulls the JWT from the auth_token cookie or, failing that,
// an Authorization: Bearer header (the desktop client sends the latter).
func requestToken(r *http.Request) string {
	if cookie := r.Header.Get("Cookie"); strings.Contains(cookie, "auth_token=") {
		return extractCookieToken(cookie, "auth_token")
	}
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return ""
}

// requireIdentity authenticates the request and returns the acting identity.
func requireIdentity(r *http.Request) (string, error) {
	token := requestToken(r)
	if token == "" {
		return "", ErrUnauthenticated
	}
	identity, err := auth.AuthenticateJWT(token)
	if err != nil {
		return "", ErrUnauthenticated
	}
	return identity, nil
}

// requireUserID is requireIdentity plus the uuid parse used by the account
// and friend endpoints, whose storage keys are uuids.
func requireUserID(r *http.Request) (uuid.UUID, error) {
	identity, err := requireIdentity(r)
	if err != nil {
		return uuid.Nil, err
	}
	id, err := uuid.Parse(identity)
	if err != nil {
		return uuid.Nil, ErrUnauthenticated
	}
	return id, nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeDomainError maps the lobby error taxonomy onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrUnauthenticated):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, lobby.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, lobby.ErrForbidden):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, lobby.ErrConflict):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, lobby.ErrFull),
		errors.Is(err, lobby.ErrNotJoinable),
		errors.Is(err, lobby.ErrAlreadyMember),
		errors.Is(err, lobby.ErrNotMember),
		errors.Is(err, lobby.ErrInvalidTransition):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
