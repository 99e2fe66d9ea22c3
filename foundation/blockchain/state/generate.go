package state

import (
	"errors"
	"math/rand/v2"

	"github.com/ardanlabs/powchain/foundation/blockchain/database"
	"github.com/ardanlabs/powchain/foundation/blockchain/hash"
	"github.com/ardanlabs/powchain/foundation/blockchain/message"
)

// ErrNoFunds is returned when the node owns no unspent output that is not
// already claimed by a mempool transaction.
var ErrNoFunds = errors.New("no spendable outputs")

// GenerateTransaction builds a transaction paying part of one of the node's
// unspent outputs to the recipient, with the rest going back to the node as
// change. The transaction is signed with the node's key, added to the mempool
// and announced to every peer.
func (s *State) GenerateTransaction(to database.Address) (database.SignedTx, error) {
	s.mu.Lock()

	tx, err := s.generate(to)
	if err != nil {
		s.mu.Unlock()
		return database.SignedTx{}, err
	}

	if err := s.admit(tx); err != nil {
		s.mu.Unlock()
		return database.SignedTx{}, err
	}

	s.mu.Unlock()

	s.evHandler("state: GenerateTransaction: tx[%s]: to[%s]", tx, to.Hex())
	s.network.Broadcast(message.NewTransactionHashes([]hash.Digest{tx.Hash()}))

	return tx, nil
}

// generate spends the first of the node's outputs no mempool transaction
// claims. The caller
// must hold the ledger lock.
func (s *State) generate(to database.Address) (database.SignedTx, error) {
	tipState, _ := s.ledger.GetState(s.ledger.Tip())

	for _, utxo := range sortUTXOs(tipState.Owned(s.minerAddr)) {
		if utxo.Output.Value == 0 {
			continue
		}

		if _, claimed := s.mempool.Spends(utxo.Input); claimed {
			continue
		}

		value := rand.N(utxo.Output.Value) + 1

		tx := database.Tx{
			Inputs:  []database.TxInput{utxo.Input},
			Outputs: []database.TxOutput{{Recipient: to, Value: value}},
		}

		if change := utxo.Output.Value - value; change > 0 {
			tx.Outputs = append(tx.Outputs, database.TxOutput{Recipient: s.minerAddr, Value: change})
		}

		return tx.Sign(s.minerKey)
	}

	return database.SignedTx{}, ErrNoFunds
}
