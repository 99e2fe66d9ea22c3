package state

import (
	"math/rand/v2"
	"time"

	"github.com/ardanlabs/powchain/foundation/blockchain/database"
	"github.com/ardanlabs/powchain/foundation/blockchain/hash"
	"github.com/ardanlabs/powchain/foundation/blockchain/ledger"
	"github.com/ardanlabs/powchain/foundation/blockchain/merkle"
	"github.com/ardanlabs/powchain/foundation/blockchain/message"
	mapset "github.com/deckarep/golang-set/v2"
)

// template is the candidate block the miner keeps solving. It's rebuilt when
// the tip moves. The state is the tip state with the candidate's transactions
// applied, used to check mempool transactions before they join the candidate.
// Transactions stay in the mempool while they sit in the template so their
// inputs remain claimed and peers can still fetch them by hash.
type template struct {
	block    database.Block
	state    database.State
	included mapset.Set[hash.Digest]
}

// MineAttempt makes one attempt at producing the next block on top of the
// current tip with a freshly chosen nonce. A solved block is inserted into the
// ledger and announced to every peer, the same way a block accepted from a
// peer is announced.
func (s *State) MineAttempt() (database.Block, bool) {
	s.mu.Lock()

	if err := s.prepareTemplate(); err != nil {
		s.mu.Unlock()
		s.evHandler("state: MineAttempt: ERROR: %s", err)
		return database.Block{}, false
	}

	block := s.template.block
	block.Header.Nonce = rand.Uint32()
	block.Header.TimeStamp = uint64(s.now().UnixMilli())

	if !block.SolvesPOW(s.ledger.Difficulty()) {
		s.mu.Unlock()
		return database.Block{}, false
	}

	blockHash := block.Hash()
	s.ledger.Insert(block)
	s.ledger.RecordOrigin(blockHash, ledger.Mined())
	s.removeMined(blockHash)
	s.template = nil
	s.mu.Unlock()

	s.evHandler("state: MineAttempt: MINING: SOLVED: blk[%s]: parent[%s]: trans[%d]", blockHash.Short(), block.Header.Parent.Short(), len(block.Trans))
	s.network.Broadcast(message.NewBlockHashes([]hash.Digest{blockHash}))

	return block, true
}

// prepareTemplate makes sure the template extends the current tip and tops it
// up with the oldest mempool transactions it doesn't hold yet. The caller must
// hold the ledger lock.
func (s *State) prepareTemplate() error {
	tip := s.ledger.Tip()

	if s.template == nil || s.template.block.Header.Parent != tip {
		s.releaseTemplate()

		coinbase, err := database.NewCoinbaseTx(tip, s.minerAddr, database.Amount(s.genesis.MiningReward)).Sign(s.minerKey)
		if err != nil {
			return err
		}

		tipState, _ := s.ledger.GetState(tip)
		state := tipState.Copy()
		state.Apply(coinbase.Raw)

		s.template = &template{
			block:    database.NewBlock(tip, s.ledger.Difficulty(), 0, []database.SignedTx{coinbase}),
			state:    state,
			included: mapset.NewThreadUnsafeSet[hash.Digest](),
		}
	}

	full := func() bool {
		return len(s.template.block.Trans)-1 >= int(s.genesis.TransPerBlock)
	}

	if full() {
		return nil
	}

	var added bool
	for _, tx := range s.mempool.Copy() {
		if full() {
			break
		}

		txHash := tx.Hash()
		if s.template.included.Contains(txHash) {
			continue
		}

		if err := s.template.state.ValidateTx(tx, s.verifier); err != nil {
			s.mempool.Delete(txHash)
			s.evHandler("state: MineAttempt: tx[%s]: dropped: %s", tx, err)
			continue
		}

		s.template.state.Apply(tx.Raw)
		s.template.block.Trans = append(s.template.block.Trans, tx)
		s.template.included.Add(txHash)
		added = true
	}

	if added {
		s.template.block.Header.MerkleRoot = merkle.Root(s.template.block.Trans)
	}

	return nil
}

// releaseTemplate abandons the template. Its transactions never left the
// mempool, so the next template picks them up again unless the new tip already
// spent them. The caller must hold the ledger lock.
func (s *State) releaseTemplate() {
	s.template = nil
}

// timeOf converts a block timestamp to a time.
func timeOf(ms uint64) time.Time {
	return time.UnixMilli(int64(ms))
}
