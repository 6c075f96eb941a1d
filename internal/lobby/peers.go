// internal/lobby/peers.go
package lobby

import (
	"encoding/base64"

	"github.com/StefanGC1/PeerBridge/internal/presence"
)

// Marker values carried in the endpoint slot instead of "ip:port". Clients
// key on these strings, so they are part of the wire contract.
const (
	EndpointSelf        = "self"
	EndpointUnavailable = "unavailable"
)

// PeerInfo is one entry of the ordered peer list a member fetches to
// bootstrap its direct connections. The JSON field names match what the
// desktop client's networking module expects.
type PeerInfo struct {
	Endpoint  string `json:"stun_info"`
	PublicKey string `json:"public_key"`
}

// AssemblePeers builds the peer list for requester from the lobby's member
// order and the given presence snapshot (identity -> record). Position i of
// the result corresponds to Members[i]; peers map positions to roles from
// that order, so it is preserved exactly.
//
// The requester's own slot is a self marker and its position is returned as
// selfIndex. Members with no live presence record, or whose record carries
// no usable endpoint, get an unavailable placeholder. selfIndex is -1 when
// the requester is not in Members at all; callers must surface that as a
// logic error rather than ignore it.
func AssemblePeers(l *Lobby, online map[string]presence.Record, requester string) (peers []PeerInfo, selfIndex int) {
	peers = make([]PeerInfo, 0, len(l.Members))
	selfIndex = -1

	for i, member := range l.Members {
		if member == requester {
			selfIndex = i
			peers = append(peers, PeerInfo{Endpoint: EndpointSelf})
			continue
		}
		rec, ok := online[member]
		if !ok || rec.Endpoint() == "" {
			peers = append(peers, PeerInfo{Endpoint: EndpointUnavailable})
			continue
		}
		peers = append(peers, PeerInfo{
			Endpoint:  rec.Endpoint(),
			PublicKey: base64.StdEncoding.EncodeToString(rec.PublicKey),
		})
	}
	return peers, selfIndex
}
