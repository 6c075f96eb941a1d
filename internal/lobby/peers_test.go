// internal/lobby/peers_test.go
package lobby

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/StefanGC1/PeerBridge/internal/presence"
)

func TestAssemblePeersOrderAndSelf(t *testing.T) {
	l := New("room", "alice", 4)
	l.AddMember("bob")
	l.AddMember("carol")

	bobKey := []byte("bob-public-key")
	online := map[string]presence.Record{
		"alice": {Identity: "alice", IP: "198.51.100.1", Port: 40001},
		"bob":   {Identity: "bob", IP: "198.51.100.2", Port: 40002, PublicKey: bobKey},
	}

	peers, selfIndex := AssemblePeers(l, online, "alice")

	require.Len(t, peers, 3)
	require.Equal(t, 0, selfIndex)
	require.Equal(t, EndpointSelf, peers[0].Endpoint)
	require.Empty(t, peers[0].PublicKey, "self slot carries no key")

	require.Equal(t, "198.51.100.2:40002", peers[1].Endpoint)
	require.Equal(t, base64.StdEncoding.EncodeToString(bobKey), peers[1].PublicKey)

	// carol has no presence record
	require.Equal(t, EndpointUnavailable, peers[2].Endpoint)
	require.Empty(t, peers[2].PublicKey)
}

func TestAssemblePeersOfflineAndPartialRecords(t *testing.T) {
	l := New("room", "alice", 4)
	l.AddMember("bob")

	// A record with no usable endpoint renders as unavailable, same as absent.
	online := map[string]presence.Record{
		"bob": {Identity: "bob", PublicKey: []byte("key")},
	}

	peers, selfIndex := AssemblePeers(l, online, "alice")
	require.Equal(t, 0, selfIndex)
	require.Equal(t, EndpointUnavailable, peers[1].Endpoint)
}

func TestAssemblePeersRequesterNotMember(t *testing.T) {
	l := New("room", "alice", 4)

	peers, selfIndex := AssemblePeers(l, nil, "mallory")
	require.Equal(t, -1, selfIndex)
	require.Len(t, peers, 1)
}
