package database

import (
	"errors"
	"fmt"

	"github.com/ardanlabs/powchain/foundation/blockchain/genesis"
	"github.com/ardanlabs/powchain/foundation/blockchain/hash"
	"github.com/ardanlabs/powchain/foundation/blockchain/merkle"
	"github.com/ethereum/go-ethereum/rlp"
)

// ErrMerkleRoot is returned when a block's merkle root does not match the
// transactions it carries.
var ErrMerkleRoot = errors.New("merkle root does not match transactions")

// =============================================================================

// BlockHeader represents common information required for each block.
type BlockHeader struct {
	Parent     hash.Digest `json:"parent"`      // Bitcoin: Hash of the previous block in the chain.
	Nonce      uint32      `json:"nonce"`       // Bitcoin: Value identified to solve the hash solution.
	Difficulty hash.Digest `json:"difficulty"`  // Bitcoin: The hash of this header must be at or below this target.
	TimeStamp  uint64      `json:"timestamp"`   // Bitcoin: Time the block was mined in unix milliseconds.
	MerkleRoot hash.Digest `json:"merkle_root"` // Bitcoin: Represents the merkle tree root hash for the transactions in this block.
}

// Block represents a group of transactions batched together.
type Block struct {
	Header BlockHeader `json:"header"`
	Trans  []SignedTx  `json:"trans"`
}

// Genesis constructs the first block of the chain. It's deterministic, every
// node started with the same genesis parameters produces the same hash.
func Genesis(gen genesis.Genesis) Block {
	return Block{
		Header: BlockHeader{
			Difficulty: gen.Difficulty,
		},
	}
}

// NewBlock constructs a block on top of the specified parent. The nonce is left
// at zero for the miner to choose.
func NewBlock(parent hash.Digest, difficulty hash.Digest, timeStamp uint64, trans []SignedTx) Block {
	return Block{
		Header: BlockHeader{
			Parent:     parent,
			Difficulty: difficulty,
			TimeStamp:  timeStamp,
			MerkleRoot: merkle.Root(trans),
		},
		Trans: trans,
	}
}

// Hash returns the unique hash for the Block.
func (b Block) Hash() hash.Digest {

	// CORE NOTE: Hashing the block header and not the whole block so the blockchain
	// can be cryptographically checked by only needing block headers and not full
	// blocks with the transaction data.

	return hash.Of(b.Header)
}

// Size returns the length of the serialized block.
func (b Block) Size() int {
	data, err := rlp.EncodeToBytes(b)
	if err != nil {
		return 0
	}

	return len(data)
}

// SolvesPOW reports if the block hash is at or below the specified target.
func (b Block) SolvesPOW(target hash.Digest) bool {
	return b.Hash().Cmp(target) <= 0
}

// ValidateMerkleRoot checks the header commits to the transactions the block
// carries.
func (b Block) ValidateMerkleRoot() error {
	root := merkle.Root(b.Trans)
	if root != b.Header.MerkleRoot {
		return fmt.Errorf("%w: got %s, exp %s", ErrMerkleRoot, root.Short(), b.Header.MerkleRoot.Short())
	}

	return nil
}

// ValidateContent checks every transaction in the block against the state of
// the parent block. The transactions are applied in order to a copy of the
// state so a later transaction can spend an earlier one. Only the first
// transaction may be a coinbase. The resulting state is returned on success.
func ValidateContent(b Block, parentState State, reward Amount, v Verifier) (State, error) {
	if err := b.ValidateMerkleRoot(); err != nil {
		return nil, err
	}

	state := parentState.Copy()
	for i, tx := range b.Trans {
		if i == 0 && tx.Raw.IsCoinbase(b.Header.Parent) {
			if err := ValidateCoinbase(tx, b.Header.Parent, reward, v); err != nil {
				return nil, fmt.Errorf("tx[%d]: %w", i, err)
			}
			state.Apply(tx.Raw)
			continue
		}

		if tx.Raw.ClaimsCoinbase() {
			return nil, fmt.Errorf("tx[%d]: %w: not the first transaction", i, ErrCoinbase)
		}

		if err := state.ValidateTx(tx, v); err != nil {
			return nil, fmt.Errorf("tx[%d]: %w", i, err)
		}
		state.Apply(tx.Raw)
	}

	return state, nil
}
