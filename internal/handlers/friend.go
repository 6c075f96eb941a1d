// internal/handlers/friend.go
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/StefanGC1/PeerBridge/internal/database"
)

type friendRequest struct {
	FriendID string `json:"friend_id"`
}

func decodeFriendRequest(r *http.Request) (uuid.UUID, bool) {
	var req friendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(req.FriendID)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// AddFriendHandler sends a friend request (a 'pending' row) to another user.
func (s *Server) AddFriendHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := requireUserID(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	friendID, ok := decodeFriendRequest(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid friend_id")
		return
	}
	if userID == friendID {
		writeError(w, http.StatusBadRequest, "cannot add yourself as a friend")
		return
	}

	if err := database.InsertFriendRequest(r.Context(), userID, friendID); err != nil {
		s.Log.Errorf("failed to insert friend request: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to send friend request")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"message": "friend request sent"})
}

// AcceptFriendHandler accepts a pending request that friend_id sent to the
// acting user.
func (s *Server) AcceptFriendHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := requireUserID(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	friendID, ok := decodeFriendRequest(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid friend_id")
		return
	}

	if err := database.AcceptFriend(r.Context(), friendID, userID); err != nil {
		writeError(w, http.StatusBadRequest, "no pending friend request")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "friend request accepted"})
}

// friendEntry is one row of the friends list, augmented with live presence
// so clients can show who is reachable right now.
type friendEntry struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Status   string `json:"status"`
	Online   bool   `json:"online"`

	ConnectionInfo *struct {
		IP   string `json:"ip"`
		Port int    `json:"port"`
	} `json:"connection_info,omitempty"`
}

// ListFriendsHandler returns the acting user's friend relations with
// usernames and online status attached.
func (s *Server) ListFriendsHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := requireUserID(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	relations, err := database.ListFriends(r.Context(), userID)
	if err != nil {
		s.Log.Errorf("failed to list friends: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list friends")
		return
	}

	ids := make([]uuid.UUID, 0, len(relations))
	for _, rel := range relations {
		other := rel.User1ID
		if other == userID {
			other = rel.User2ID
		}
		ids = append(ids, other)
	}

	names := map[uuid.UUID]string{}
	if len(ids) > 0 {
		names, err = database.GetUsernames(r.Context(), ids)
		if err != nil {
			s.Log.Errorf("failed to resolve friend usernames: %v", err)
			writeError(w, http.StatusInternalServerError, "failed to list friends")
			return
		}
	}

	records, err := s.Presence.ListAll(r.Context())
	if err != nil {
		s.Log.Errorf("failed to list presence: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list friends")
		return
	}
	online := make(map[string]int, len(records))
	for i, rec := range records {
		online[rec.Identity] = i
	}

	friends := make([]friendEntry, 0, len(relations))
	for i, rel := range relations {
		other := ids[i]
		entry := friendEntry{
			UserID:   other.String(),
			Username: names[other],
			Status:   rel.Status,
		}
		if idx, ok := online[other.String()]; ok {
			entry.Online = true
			entry.ConnectionInfo = &struct {
				IP   string `json:"ip"`
				Port int    `json:"port"`
			}{IP: records[idx].IP, Port: records[idx].Port}
		}
		friends = append(friends, entry)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user_id": userID.String(),
		"friends": friends,
	})
}

// RemoveFriendHandler deletes the relation in either direction.
func (s *Server) RemoveFriendHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := requireUserID(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	friendID, ok := decodeFriendRequest(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid friend_id")
		return
	}

	if err := database.RemoveFriend(r.Context(), userID, friendID); err != nil {
		s.Log.Errorf("failed to remove friend: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to remove friend")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "friend removed"})
}
