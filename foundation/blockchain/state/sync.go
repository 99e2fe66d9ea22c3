package state

import (
	"github.com/ardanlabs/powchain/foundation/blockchain/database"
	"github.com/ardanlabs/powchain/foundation/blockchain/hash"
	"github.com/ardanlabs/powchain/foundation/blockchain/ledger"
	"github.com/ardanlabs/powchain/foundation/blockchain/message"
	mapset "github.com/deckarep/golang-set/v2"
)

// HandleMessage processes one message received from a peer. The whole message
// is handled under a single acquisition of the ledger lock, so two messages
// never interleave partial updates. Messages that can't be decoded or carry
// invalid content are dropped.
func (s *State) HandleMessage(data []byte, from Peer) {
	msg, err := message.Decode(data)
	if err != nil {
		s.evHandler("state: HandleMessage: %s: WARNING: dropped: %s", from.Addr(), err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch msg.Kind {
	case message.KindPing:
		s.handlePing(msg, from)

	case message.KindPong:
		s.handlePong(msg, from)

	case message.KindNewBlockHashes:
		s.handleNewBlockHashes(msg, from)

	case message.KindGetBlocks:
		s.handleGetBlocks(msg, from)

	case message.KindBlocks:
		s.handleBlocks(msg, from)

	case message.KindNewTransactionHashes:
		s.handleNewTransactionHashes(msg, from)

	case message.KindGetTransactions:
		s.handleGetTransactions(msg, from)

	case message.KindTransactions:
		s.handleTransactions(msg, from)
	}
}

// =============================================================================

func (s *State) handlePing(msg message.Message, from Peer) {
	nonce, err := msg.Nonce()
	if err != nil {
		s.evHandler("state: ping: %s: WARNING: %s", from.Addr(), err)
		return
	}

	from.Send(message.Pong(nonce))
}

func (s *State) handlePong(msg message.Message, from Peer) {
	nonce, err := msg.Nonce()
	if err != nil {
		s.evHandler("state: pong: %s: WARNING: %s", from.Addr(), err)
		return
	}

	s.evHandler("state: pong: %s: nonce[%d]", from.Addr(), nonce)
}

func (s *State) handleNewBlockHashes(msg message.Message, from Peer) {
	hashes, err := msg.Hashes()
	if err != nil {
		s.evHandler("state: newBlockHashes: %s: WARNING: %s", from.Addr(), err)
		return
	}

	unknown := newHashList()
	for _, h := range hashes {
		if !s.ledger.ContainsBlock(h) {
			unknown.add(h)
		}
	}

	if unknown.empty() {
		return
	}

	s.evHandler("state: newBlockHashes: %s: requesting %d blocks", from.Addr(), len(unknown.list))
	from.Send(message.GetBlocks(unknown.list))
}

func (s *State) handleGetBlocks(msg message.Message, from Peer) {
	hashes, err := msg.Hashes()
	if err != nil {
		s.evHandler("state: getBlocks: %s: WARNING: %s", from.Addr(), err)
		return
	}

	var blocks []database.Block
	for _, h := range hashes {
		if block, exists := s.ledger.GetBlock(h); exists {
			blocks = append(blocks, block)
		}
	}

	if len(blocks) == 0 {
		return
	}

	from.Send(message.Blocks(blocks))
}

func (s *State) handleBlocks(msg message.Message, from Peer) {
	blocks, err := msg.Blocks()
	if err != nil {
		s.evHandler("state: blocks: %s: WARNING: %s", from.Addr(), err)
		return
	}

	missing := newHashList()
	var inserted []hash.Digest

	for _, block := range blocks {
		blockHash := block.Hash()

		delay := s.now().Sub(timeOf(block.Header.TimeStamp))
		if s.ledger.RecordOrigin(blockHash, ledger.Received(delay)) {
			s.evHandler("state: blocks: %s: blk[%s]: delay[%dms]", from.Addr(), blockHash.Short(), delay.Milliseconds())
		}

		if s.ledger.ContainsBlock(blockHash) {
			continue
		}

		if !s.ledger.PowValidityCheck(block) {
			s.evHandler("state: blocks: %s: blk[%s]: WARNING: dropped: proof of work is invalid", from.Addr(), blockHash.Short())
			continue
		}

		if err := block.ValidateMerkleRoot(); err != nil {
			s.evHandler("state: blocks: %s: blk[%s]: WARNING: dropped: %s", from.Addr(), blockHash.Short(), err)
			continue
		}

		if !s.ledger.ParentCheck(block) {
			s.ledger.AddToOrphanBuffer(block)
			missing.add(block.Header.Parent)
			continue
		}

		if err := s.ledger.ValidateContent(block); err != nil {
			s.evHandler("state: blocks: %s: blk[%s]: WARNING: dropped: %s", from.Addr(), blockHash.Short(), err)
			continue
		}

		if trans := spendingTrans(block); len(trans) > 0 {
			from.Send(message.Transactions(trans))
		}

		inserted = append(inserted, s.ledger.InsertRecursively(block)...)
	}

	for _, blockHash := range inserted {
		s.removeMined(blockHash)
	}

	if !missing.empty() {
		s.evHandler("state: blocks: %s: requesting %d missing parents", from.Addr(), len(missing.list))
		from.Send(message.GetBlocks(missing.list))
	}

	if len(inserted) > 0 {
		s.evHandler("state: blocks: %s: inserted %d blocks: tip[%s]", from.Addr(), len(inserted), s.ledger.Tip().Short())
		s.network.Broadcast(message.NewBlockHashes(inserted))
	}
}

func (s *State) handleNewTransactionHashes(msg message.Message, from Peer) {
	hashes, err := msg.Hashes()
	if err != nil {
		s.evHandler("state: newTransactionHashes: %s: WARNING: %s", from.Addr(), err)
		return
	}

	unknown := newHashList()
	for _, h := range hashes {
		if !s.mempool.Contains(h) {
			unknown.add(h)
		}
	}

	if unknown.empty() {
		return
	}

	from.Send(message.GetTransactions(unknown.list))
}

func (s *State) handleGetTransactions(msg message.Message, from Peer) {
	hashes, err := msg.Hashes()
	if err != nil {
		s.evHandler("state: getTransactions: %s: WARNING: %s", from.Addr(), err)
		return
	}

	var trans []database.SignedTx
	for _, h := range hashes {
		if tx, exists := s.mempool.Get(h); exists {
			trans = append(trans, tx)
		}
	}

	if len(trans) == 0 {
		return
	}

	from.Send(message.Transactions(trans))
}

func (s *State) handleTransactions(msg message.Message, from Peer) {
	trans, err := msg.Transactions()
	if err != nil {
		s.evHandler("state: transactions: %s: WARNING: %s", from.Addr(), err)
		return
	}

	var accepted []hash.Digest
	for _, tx := range trans {
		if err := s.admit(tx); err != nil {
			s.evHandler("state: transactions: %s: tx[%s]: dropped: %s", from.Addr(), tx, err)
			continue
		}
		accepted = append(accepted, tx.Hash())
	}

	if len(accepted) == 0 {
		return
	}

	s.network.Broadcast(message.NewTransactionHashes(accepted))
}

// =============================================================================

// removeMined takes the transactions of an inserted block out of the mempool,
// along with any pending transaction that claims an input the block spent.
func (s *State) removeMined(blockHash hash.Digest) {
	block, exists := s.ledger.GetBlock(blockHash)
	if !exists {
		return
	}

	for _, tx := range block.Trans {
		s.mempool.Delete(tx.Hash())

		for _, in := range tx.Raw.Inputs {
			if conflict, claimed := s.mempool.Spends(in); claimed {
				s.mempool.Delete(conflict)
			}
		}
	}
}

// spendingTrans returns the block's transactions without its coinbase.
func spendingTrans(block database.Block) []database.SignedTx {
	trans := make([]database.SignedTx, 0, len(block.Trans))
	for _, tx := range block.Trans {
		if tx.Raw.ClaimsCoinbase() {
			continue
		}
		trans = append(trans, tx)
	}

	return trans
}

// hashList keeps hashes in the order they were first added.
type hashList struct {
	seen mapset.Set[hash.Digest]
	list []hash.Digest
}

func newHashList() *hashList {
	return &hashList{seen: mapset.NewThreadUnsafeSet[hash.Digest]()}
}

func (hl *hashList) add(h hash.Digest) {
	if hl.seen.Add(h) {
		hl.list = append(hl.list, h)
	}
}

func (hl *hashList) empty() bool {
	return len(hl.list) == 0
}
