package state

import (
	"math/rand/v2"

	"github.com/ardanlabs/powchain/foundation/blockchain/message"
)

// PingPeers sends a ping with a random nonce to every connected peer. The
// pongs are reported through the event handler as they arrive.
func (s *State) PingPeers() (nonce uint32, sent int) {
	nonce = rand.Uint32()
	sent = s.network.Broadcast(message.Ping(nonce))

	s.evHandler("state: PingPeers: nonce[%d] peers[%d]", nonce, sent)

	return nonce, sent
}

// AnnounceChain sends the hashes of the longest chain to the peer so it can
// request whatever it is missing.
func (s *State) AnnounceChain(to Peer) {
	hashes := s.QueryLongestChain()
	to.Send(message.NewBlockHashes(hashes))
}
