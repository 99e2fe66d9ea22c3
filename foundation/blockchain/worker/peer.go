package worker

import (
	"context"
	"time"

	"github.com/ardanlabs/powchain/foundation/blockchain/peer"
)

// connectTimeout bounds how long dialing one peer can take.
const connectTimeout = 5 * time.Second

// peerOperations keeps a connection open to every known peer.
func (w *Worker) peerOperations() {
	w.evHandler("worker: peerOperations: G started")
	defer w.evHandler("worker: peerOperations: G completed")

	ticker := time.NewTicker(w.cfg.PeerInterval)
	defer ticker.Stop()

	w.runPeersOperation()

	for {
		select {
		case <-ticker.C:
			if !w.isShutdown() {
				w.runPeersOperation()
			}
		case <-w.shut:
			w.evHandler("worker: peerOperations: received shut signal")
			return
		}
	}
}

// runPeersOperation dials the known peers that are not connected. A newly
// connected peer is sent this node's longest chain so it can pull whatever it
// is missing.
func (w *Worker) runPeersOperation() {
	net := w.cfg.Network

	connected := make(map[peer.Peer]struct{})
	for _, p := range net.Connected() {
		connected[p] = struct{}{}
	}

	for _, known := range net.KnownPeers().Copy(net.Host()) {
		if _, exists := connected[known]; exists {
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
		p, err := net.Connect(ctx, known.Host)
		cancel()

		if err != nil {
			w.evHandler("worker: runPeersOperation: %s: ERROR: %s", known.Host, err)
			continue
		}

		w.evHandler("worker: runPeersOperation: %s: connected", known.Host)
		w.state.AnnounceChain(p)
	}
}
