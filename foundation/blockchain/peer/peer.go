// Package peer maintains the peer related information such as the set
// of know peers and their status.
package peer

import (
	"slices"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
)

// Peer represents information about a Node in the network.
type Peer struct {
	Host string `json:"host"`
}

// New contructs a new info value.
func New(host string) Peer {
	return Peer{
		Host: host,
	}
}

// Match validates if the specified host matches this node.
func (p Peer) Match(host string) bool {
	return p.Host == host
}

// =============================================================================

// PeerStatus represents information about the status
// of any given peer.
type PeerStatus struct {
	Tip        string `json:"tip"`
	Height     uint64 `json:"height"`
	Mempool    int    `json:"mempool"`
	Connected  []Peer `json:"connected"`
	KnownPeers []Peer `json:"known_peers"`
}

// =============================================================================

// PeerSet represents the data representation to maintain a set of known peers.
type PeerSet struct {
	set mapset.Set[Peer]
}

// NewPeerSet constructs a new info set to manage node peer information.
func NewPeerSet() *PeerSet {
	return &PeerSet{
		set: mapset.NewSet[Peer](),
	}
}

// Add adds a new node to the set.
func (ps *PeerSet) Add(peer Peer) bool {
	return ps.set.Add(peer)
}

// Remove removes a node from the set.
func (ps *PeerSet) Remove(peer Peer) {
	ps.set.Remove(peer)
}

// Contains reports if the node is in the set.
func (ps *PeerSet) Contains(peer Peer) bool {
	return ps.set.Contains(peer)
}

// Copy returns a list of the known peers, excluding the specified host, sorted
// by host.
func (ps *PeerSet) Copy(host string) []Peer {
	var peers []Peer
	for _, peer := range ps.set.ToSlice() {
		if !peer.Match(host) {
			peers = append(peers, peer)
		}
	}

	slices.SortFunc(peers, func(a, b Peer) int {
		return strings.Compare(a.Host, b.Host)
	})

	return peers
}
