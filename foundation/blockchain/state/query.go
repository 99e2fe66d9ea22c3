package state

import (
	"cmp"
	"slices"

	"github.com/ardanlabs/powchain/foundation/blockchain/database"
	"github.com/ardanlabs/powchain/foundation/blockchain/hash"
	"github.com/ardanlabs/powchain/foundation/blockchain/ledger"
)

// Status represents a summary of the node's view of the chain.
type Status struct {
	Tip     hash.Digest `json:"tip"`
	Height  uint64      `json:"height"`
	Blocks  int         `json:"blocks"`
	Orphans int         `json:"orphans"`
	Mempool int         `json:"mempool"`
}

// UTXO is one entry of the unspent output state.
type UTXO struct {
	Input  database.TxInput  `json:"input"`
	Output database.TxOutput `json:"output"`
}

// ChainBlock is a block of the ledger with its position.
type ChainBlock struct {
	Hash   hash.Digest    `json:"hash"`
	Height uint64         `json:"height"`
	Block  database.Block `json:"block"`
}

// =============================================================================

// QueryStatus returns a summary of the node's view of the chain.
func (s *State) QueryStatus() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	tip := s.ledger.Tip()
	height, _ := s.ledger.Height(tip)

	return Status{
		Tip:     tip,
		Height:  height,
		Blocks:  s.ledger.BlockCount(),
		Orphans: s.ledger.OrphanCount(),
		Mempool: s.mempool.Count(),
	}
}

// QueryTip returns the hash of the last block of the longest chain.
func (s *State) QueryTip() hash.Digest {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.ledger.Tip()
}

// QueryLongestChain returns the hashes of the longest chain starting with
// genesis.
func (s *State) QueryLongestChain() []hash.Digest {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.ledger.AllBlocksInLongestChain()
}

// QueryBlock returns the block for the specified hash.
func (s *State) QueryBlock(blockHash hash.Digest) (ChainBlock, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	block, exists := s.ledger.GetBlock(blockHash)
	if !exists {
		return ChainBlock{}, false
	}

	height, _ := s.ledger.Height(blockHash)

	return ChainBlock{Hash: blockHash, Height: height, Block: block}, true
}

// QueryContainsBlock reports if the block is in the ledger.
func (s *State) QueryContainsBlock(blockHash hash.Digest) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.ledger.ContainsBlock(blockHash)
}

// QueryUTXOs returns the unspent outputs owned by the address as of the tip.
func (s *State) QueryUTXOs(addr database.Address) []UTXO {
	s.mu.Lock()
	defer s.mu.Unlock()

	tipState, _ := s.ledger.GetState(s.ledger.Tip())
	return sortUTXOs(tipState.Owned(addr))
}

// QueryBalance returns the total unspent value owned by the address as of
// the tip.
func (s *State) QueryBalance(addr database.Address) database.Amount {
	s.mu.Lock()
	defer s.mu.Unlock()

	tipState, _ := s.ledger.GetState(s.ledger.Tip())
	return tipState.Balance(addr)
}

// QueryMempool returns the transactions waiting to be mined, oldest first.
func (s *State) QueryMempool() []database.SignedTx {
	return s.mempool.Copy()
}

// QueryStats returns the ledger telemetry.
func (s *State) QueryStats() ledger.Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.ledger.Stats()
}

// =============================================================================

// sortUTXOs flattens the state into a list ordered by source transaction and
// output position.
func sortUTXOs(state database.State) []UTXO {
	utxos := make([]UTXO, 0, len(state))
	for in, out := range state {
		utxos = append(utxos, UTXO{Input: in, Output: out})
	}

	slices.SortFunc(utxos, func(a, b UTXO) int {
		if c := a.Input.SourceTx.Cmp(b.Input.SourceTx); c != 0 {
			return c
		}
		return cmp.Compare(a.Input.OutputIndex, b.Input.OutputIndex)
	})

	return utxos
}
