package state

import (
	"errors"
	"fmt"

	"github.com/ardanlabs/powchain/foundation/blockchain/database"
	"github.com/ardanlabs/powchain/foundation/blockchain/hash"
	"github.com/ardanlabs/powchain/foundation/blockchain/message"
)

// Set of error variables for transaction admission.
var (
	ErrKnownTx     = errors.New("transaction is already in the mempool")
	ErrCoinbaseTx  = errors.New("coinbase transactions are only accepted inside a block")
	ErrDoubleSpend = errors.New("input is claimed by another mempool transaction")
)

// SubmitTransaction accepts a transaction from a wallet for inclusion. The
// transaction is held to the same rules as one received from a peer and is
// announced to every peer once accepted.
func (s *State) SubmitTransaction(tx database.SignedTx) error {
	s.mu.Lock()
	err := s.admit(tx)
	s.mu.Unlock()

	if err != nil {
		return err
	}

	s.evHandler("state: SubmitTransaction: tx[%s]: accepted", tx)
	s.network.Broadcast(message.NewTransactionHashes([]hash.Digest{tx.Hash()}))

	return nil
}

// admit validates the transaction against the state of the current tip and
// adds it to the mempool. The caller must hold the ledger lock.
func (s *State) admit(tx database.SignedTx) error {
	if s.mempool.Contains(tx.Hash()) {
		return ErrKnownTx
	}

	if tx.Raw.ClaimsCoinbase() {
		return ErrCoinbaseTx
	}

	tipState, _ := s.ledger.GetState(s.ledger.Tip())
	if err := tipState.ValidateTx(tx, s.verifier); err != nil {
		return err
	}

	for _, in := range tx.Raw.Inputs {
		if claimer, claimed := s.mempool.Spends(in); claimed {
			return fmt.Errorf("%w: %s by tx[%s]", ErrDoubleSpend, in, claimer.Short())
		}
	}

	if !s.mempool.Insert(tx) {
		return ErrDoubleSpend
	}

	return nil
}
