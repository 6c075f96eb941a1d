// internal/lobby/lobby_test.go
package lobby

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewLobbyShape(t *testing.T) {
	l := New("room", "alice", 4)

	require.NoError(t, l.Validate())
	require.Equal(t, StatusIdle, l.Status)
	require.Equal(t, "alice", l.HostID)
	require.Equal(t, []string{"alice"}, l.Members)
	require.Equal(t, MemberDisconnected, l.MemberStatus["alice"])
}

func TestCloneIsDeep(t *testing.T) {
	l := New("room", "alice", 4)
	l.AddMember("bob")

	c := l.Clone()
	c.AddMember("carol")
	c.MemberStatus["bob"] = MemberConnected

	require.Len(t, l.Members, 2)
	require.Equal(t, MemberDisconnected, l.MemberStatus["bob"])
}

func TestRemoveMemberHostHandoff(t *testing.T) {
	l := New("room", "alice", 4)
	l.AddMember("bob")
	l.AddMember("carol")

	l.RemoveMember("alice")

	require.Equal(t, "bob", l.HostID, "first remaining member becomes host")
	require.Equal(t, []string{"bob", "carol"}, l.Members)
	require.NotContains(t, l.MemberStatus, "alice")
	require.NoError(t, l.Validate())
}

func TestRemoveMemberPreservesOrder(t *testing.T) {
	l := New("room", "alice", 4)
	l.AddMember("bob")
	l.AddMember("carol")
	l.AddMember("dave")

	l.RemoveMember("carol")

	require.Equal(t, []string{"alice", "bob", "dave"}, l.Members)
}

func TestValidateRejectsBrokenRecords(t *testing.T) {
	cases := []struct {
		name  string
		corrupt func(l *Lobby)
	}{
		{"bad status", func(l *Lobby) { l.Status = "warming-up" }},
		{"capacity below two", func(l *Lobby) { l.MaxPlayers = 1 }},
		{"no members", func(l *Lobby) { l.Members = nil }},
		{"over capacity", func(l *Lobby) {
			l.MaxPlayers = 2
			l.AddMember("bob")
			l.AddMember("carol")
		}},
		{"host not a member", func(l *Lobby) { l.HostID = "mallory" }},
		{"duplicate member", func(l *Lobby) { l.Members = append(l.Members, "alice") }},
		{"missing status entry", func(l *Lobby) { delete(l.MemberStatus, "alice") }},
		{"bad member status", func(l *Lobby) { l.MemberStatus["alice"] = "sleeping" }},
		{"orphan status entry", func(l *Lobby) { l.MemberStatus["ghost"] = MemberConnected }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			l := New("room", "alice", 4)
			tc.corrupt(l)
			require.Error(t, l.Validate())
		})
	}
}

func TestDecodeRejectsCorruptRecord(t *testing.T) {
	_, err := Decode([]byte(`{"id":`))
	require.Error(t, err)

	l := New("room", "alice", 4)
	l.Status = "warming-up"
	data, err := json.Marshal(l)
	require.NoError(t, err)

	_, err = Decode(data)
	require.Error(t, err)
}

func TestDecodeRoundTrip(t *testing.T) {
	l := New("room", "alice", 4)
	l.AddMember("bob")
	l.Version = 7

	data, err := json.Marshal(l)
	require.NoError(t, err)

	got, err := Decode(data)
	require.NoError(t, err)
	require.Equal(t, l.ID, got.ID)
	require.Equal(t, l.Members, got.Members)
	require.Equal(t, uint64(7), got.Version)
}
