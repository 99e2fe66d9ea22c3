package ledger

import (
	"slices"
	"time"

	"github.com/ardanlabs/powchain/foundation/blockchain/hash"
)

// Set of origins a block can have.
const (
	OriginReceived = "received"
	OriginMined    = "mined"
)

// Origin records how the node first learned about a block.
type Origin struct {
	Kind  string        `json:"kind"`
	Delay time.Duration `json:"delay"` // Time between the block being stamped and arriving.
}

// Mined constructs the origin of a block this node produced.
func Mined() Origin {
	return Origin{Kind: OriginMined}
}

// Received constructs the origin of a block that arrived from a peer.
func Received(delay time.Duration) Origin {
	return Origin{Kind: OriginReceived, Delay: delay}
}

// RecordOrigin saves the origin of the block the first time it is seen. It
// reports false when an origin was already recorded.
func (l *Ledger) RecordOrigin(blockHash hash.Digest, origin Origin) bool {
	if _, exists := l.origins[blockHash]; exists {
		return false
	}

	l.origins[blockHash] = origin
	return true
}

// Origin returns the recorded origin for the block.
func (l *Ledger) Origin(blockHash hash.Digest) (Origin, bool) {
	origin, exists := l.origins[blockHash]
	return origin, exists
}

// =============================================================================

// Stats represents a summary of the ledger's telemetry.
type Stats struct {
	Blocks       int     `json:"blocks"`
	Orphans      int     `json:"orphans"`
	Height       uint64  `json:"height"`
	LongestChain int     `json:"longest_chain"`
	AvgBlockSize float64 `json:"avg_block_size"`
	Mined        int     `json:"mined"`
	Received     int     `json:"received"`
	DelaysMS     []int64 `json:"delays_ms"`
	AvgDelayMS   float64 `json:"avg_delay_ms"`
	TipHash      string  `json:"tip"`
	GenesisHash  string  `json:"genesis"`
}

// Stats returns a summary of the ledger's telemetry.
func (l *Ledger) Stats() Stats {
	chain := l.AllBlocksInLongestChain()

	stats := Stats{
		Blocks:       len(l.blocks),
		Orphans:      l.OrphanCount(),
		Height:       l.heights[l.tip],
		LongestChain: len(chain),
		AvgBlockSize: float64(l.totalSize) / float64(len(l.blocks)),
		DelaysMS:     []int64{},
		TipHash:      l.tip.Hex(),
		GenesisHash:  l.GenesisHash().Hex(),
	}

	var totalDelay int64
	for _, origin := range l.origins {
		switch origin.Kind {
		case OriginMined:
			stats.Mined++

		case OriginReceived:
			stats.Received++
			ms := origin.Delay.Milliseconds()
			stats.DelaysMS = append(stats.DelaysMS, ms)
			totalDelay += ms
		}
	}

	slices.Sort(stats.DelaysMS)

	if stats.Received > 0 {
		stats.AvgDelayMS = float64(totalDelay) / float64(stats.Received)
	}

	return stats
}
