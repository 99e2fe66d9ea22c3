package database

import (
	"errors"
	"fmt"
	"math"

	"github.com/ardanlabs/powchain/foundation/blockchain/hash"
)

// Set of error variables for transaction validation.
var (
	ErrNoInputs       = errors.New("transaction has no inputs")
	ErrBadSignature   = errors.New("transaction signature is invalid")
	ErrMissingInput   = errors.New("transaction input is not unspent")
	ErrNotOwner       = errors.New("transaction signer does not own the input")
	ErrDuplicateInput = errors.New("transaction spends the same input twice")
	ErrOverspend      = errors.New("transaction outputs exceed its inputs")
	ErrOverflow       = errors.New("transaction amounts overflow")
	ErrCoinbase       = errors.New("coinbase transaction is invalid")
)

// =============================================================================

// State maps every unspent output to the input that would spend it.
//
// Every block keeps its own full copy of the state. A production system would
// share structure between a block and its parent (a persistent map or a set of
// copy-on-write deltas) instead of copying the whole set per block.
type State map[TxInput]TxOutput

// Copy returns a deep copy of the state.
func (s State) Copy() State {
	cpy := make(State, len(s))
	for in, out := range s {
		cpy[in] = out
	}
	return cpy
}

// Apply transitions the state by one transaction. Every input it consumes is
// removed and one entry is added per output keyed by the output's position and
// the hash of the raw transaction. Apply does not validate the transaction.
func (s State) Apply(tx Tx) {
	for _, in := range tx.Inputs {
		delete(s, in)
	}

	txHash := tx.Hash()
	for i, out := range tx.Outputs {
		s[TxInput{OutputIndex: uint32(i), SourceTx: txHash}] = out
	}
}

// ApplyAll applies the transactions in list order.
func (s State) ApplyAll(trans []SignedTx) {
	for _, tx := range trans {
		s.Apply(tx.Raw)
	}
}

// Owned returns the unspent outputs that belong to the address.
func (s State) Owned(addr Address) State {
	owned := make(State)
	for in, out := range s {
		if out.Recipient == addr {
			owned[in] = out
		}
	}
	return owned
}

// Balance returns the total value of the outputs that belong to the address.
func (s State) Balance(addr Address) Amount {
	var total Amount
	for _, out := range s {
		if out.Recipient == addr {
			total += out.Value
		}
	}
	return total
}

// ValidateTx checks the signed transaction can be applied to this state. The
// signature must verify, every input must be present and owned by the signer
// and the outputs can't spend more than the inputs provide.
func (s State) ValidateTx(tx SignedTx, v Verifier) error {
	if len(tx.Raw.Inputs) == 0 {
		return ErrNoInputs
	}

	if !tx.VerifySignature(v) {
		return ErrBadSignature
	}

	from, err := tx.From()
	if err != nil {
		return fmt.Errorf("%w: %s", ErrBadSignature, err)
	}

	var totalIn Amount
	seen := make(map[TxInput]struct{}, len(tx.Raw.Inputs))
	for _, in := range tx.Raw.Inputs {
		if _, exists := seen[in]; exists {
			return fmt.Errorf("%w: %s", ErrDuplicateInput, in)
		}
		seen[in] = struct{}{}

		out, exists := s[in]
		if !exists {
			return fmt.Errorf("%w: %s", ErrMissingInput, in)
		}

		if out.Recipient != from {
			return fmt.Errorf("%w: %s: owner %s, signer %s", ErrNotOwner, in, out.Recipient.Hex(), from.Hex())
		}

		if totalIn > math.MaxUint64-out.Value {
			return ErrOverflow
		}
		totalIn += out.Value
	}

	totalOut, err := tx.Raw.TotalOutput()
	if err != nil {
		return err
	}

	if totalOut > totalIn {
		return fmt.Errorf("%w: in %d, out %d", ErrOverspend, totalIn, totalOut)
	}

	return nil
}

// ValidateCoinbase checks the coinbase transaction of a block built on top of
// the specified parent.
func ValidateCoinbase(tx SignedTx, parent hash.Digest, reward Amount, v Verifier) error {
	if !tx.Raw.IsCoinbase(parent) {
		return fmt.Errorf("%w: input does not name the parent", ErrCoinbase)
	}

	if !tx.VerifySignature(v) {
		return ErrBadSignature
	}

	total, err := tx.Raw.TotalOutput()
	if err != nil {
		return err
	}

	if total > reward {
		return fmt.Errorf("%w: pays %d, reward %d", ErrCoinbase, total, reward)
	}

	return nil
}
