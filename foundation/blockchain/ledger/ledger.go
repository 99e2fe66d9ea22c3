// Package ledger maintains every valid block the node has seen, the UTXO state
// each block produces and the tip of the longest chain.
package ledger

import (
	"fmt"

	"github.com/ardanlabs/powchain/foundation/blockchain/database"
	"github.com/ardanlabs/powchain/foundation/blockchain/genesis"
	"github.com/ardanlabs/powchain/foundation/blockchain/hash"
	mapset "github.com/deckarep/golang-set/v2"
)

// DefaultMaxOrphans is the number of blocks the orphan buffer holds unless
// configured otherwise.
const DefaultMaxOrphans = 1024

// EventHandler defines a function that is called when events occur in the
// processing of blocks.
type EventHandler func(v string, args ...any)

// Option configures optional behavior of the ledger.
type Option func(l *Ledger)

// WithVerifier sets the signature verifier used for content validation.
func WithVerifier(v database.Verifier) Option {
	return func(l *Ledger) {
		l.verifier = v
	}
}

// WithEvents sets the handler that receives ledger events.
func WithEvents(ev EventHandler) Option {
	return func(l *Ledger) {
		l.evHandler = ev
	}
}

// WithMaxOrphans bounds the number of blocks waiting on a missing parent.
func WithMaxOrphans(n int) Option {
	return func(l *Ledger) {
		l.maxOrphans = n
	}
}

// =============================================================================

// Ledger is the consensus engine. The ledger only grows: every block except
// genesis is inserted once, after its parent, and never removed.
//
// Ledger is not safe for concurrent use. Callers are expected to hold a lock
// around every call.
type Ledger struct {
	genesis   genesis.Genesis
	verifier  database.Verifier
	evHandler EventHandler

	blocks  map[hash.Digest]database.Block
	heights map[hash.Digest]uint64
	states  map[hash.Digest]database.State
	orphans map[hash.Digest][]database.Block
	origins map[hash.Digest]Origin

	orphanSet  mapset.Set[hash.Digest]
	maxOrphans int

	tip        hash.Digest
	difficulty hash.Digest
	totalSize  int
}

// New constructs a ledger containing only the genesis block.
func New(gen genesis.Genesis, opts ...Option) *Ledger {
	block := database.Genesis(gen)
	blockHash := block.Hash()

	l := Ledger{
		genesis:    gen,
		verifier:   database.DefaultVerifier,
		evHandler:  func(v string, args ...any) {},
		blocks:     map[hash.Digest]database.Block{blockHash: block},
		heights:    map[hash.Digest]uint64{blockHash: 0},
		states:     map[hash.Digest]database.State{blockHash: make(database.State)},
		orphans:    make(map[hash.Digest][]database.Block),
		origins:    make(map[hash.Digest]Origin),
		orphanSet:  mapset.NewThreadUnsafeSet[hash.Digest](),
		maxOrphans: DefaultMaxOrphans,
		tip:        blockHash,
		difficulty: block.Header.Difficulty,
		totalSize:  block.Size(),
	}

	for _, opt := range opts {
		opt(&l)
	}

	return &l
}

// Genesis returns the parameters the ledger was started with.
func (l *Ledger) Genesis() genesis.Genesis {
	return l.genesis
}

// GenesisHash returns the hash of the genesis block.
func (l *Ledger) GenesisHash() hash.Digest {
	return database.Genesis(l.genesis).Hash()
}

// Insert adds the block to the ledger. The parent must already be known,
// calling Insert without it is a programming error and panics. The state of
// the block is the state of the parent with the block's transactions applied
// in order. The tip only moves when the new block is strictly higher, so the
// first block seen at a height keeps the tip. Inserting a known block is a
// no-op.
func (l *Ledger) Insert(block database.Block) {
	blockHash := block.Hash()
	if _, exists := l.blocks[blockHash]; exists {
		return
	}

	parentHeight, exists := l.heights[block.Header.Parent]
	if !exists {
		panic(fmt.Sprintf("ledger: insert: blk[%s]: parent[%s] is unknown", blockHash.Short(), block.Header.Parent.Short()))
	}

	state := l.states[block.Header.Parent].Copy()
	state.ApplyAll(block.Trans)

	height := parentHeight + 1

	l.blocks[blockHash] = block
	l.heights[blockHash] = height
	l.states[blockHash] = state
	l.totalSize += block.Size()

	if height > l.heights[l.tip] {
		l.tip = blockHash
		l.evHandler("ledger: insert: blk[%s]: height[%d]: new tip", blockHash.Short(), height)
		return
	}

	l.evHandler("ledger: insert: blk[%s]: height[%d]: tip[%s] unchanged", blockHash.Short(), height, l.tip.Short())
}

// PowValidityCheck reports if the block's hash satisfies its difficulty and
// its difficulty is the difficulty of this ledger.
func (l *Ledger) PowValidityCheck(block database.Block) bool {
	if block.Header.Difficulty != l.difficulty {
		return false
	}

	return block.SolvesPOW(block.Header.Difficulty)
}

// ParentCheck reports if the block's parent is in the ledger.
func (l *Ledger) ParentCheck(block database.Block) bool {
	_, exists := l.blocks[block.Header.Parent]
	return exists
}

// ValidateContent checks the block's transactions against the state of its
// parent, which must be in the ledger.
func (l *Ledger) ValidateContent(block database.Block) error {
	parentState, exists := l.states[block.Header.Parent]
	if !exists {
		return fmt.Errorf("parent[%s] is unknown", block.Header.Parent.Short())
	}

	if _, err := database.ValidateContent(block, parentState, database.Amount(l.genesis.MiningReward), l.verifier); err != nil {
		return err
	}

	return nil
}

// =============================================================================

// Tip returns the hash of the last block of the longest chain.
func (l *Ledger) Tip() hash.Digest {
	return l.tip
}

// Difficulty returns the difficulty every block must carry.
func (l *Ledger) Difficulty() hash.Digest {
	return l.difficulty
}

// ContainsBlock reports if the block is in the ledger.
func (l *Ledger) ContainsBlock(blockHash hash.Digest) bool {
	_, exists := l.blocks[blockHash]
	return exists
}

// GetBlock returns the block for the specified hash.
func (l *Ledger) GetBlock(blockHash hash.Digest) (database.Block, bool) {
	block, exists := l.blocks[blockHash]
	return block, exists
}

// GetState returns the UTXO state produced by the specified block. The state
// is shared with the ledger and must not be modified, use Copy first.
func (l *Ledger) GetState(blockHash hash.Digest) (database.State, bool) {
	state, exists := l.states[blockHash]
	return state, exists
}

// Height returns the height of the specified block. Genesis is at zero.
func (l *Ledger) Height(blockHash hash.Digest) (uint64, bool) {
	height, exists := l.heights[blockHash]
	return height, exists
}

// BlockCount returns the number of blocks in the ledger, genesis included.
func (l *Ledger) BlockCount() int {
	return len(l.blocks)
}

// AllBlocksInLongestChain returns the hashes of the longest chain starting
// with genesis and ending with the tip.
func (l *Ledger) AllBlocksInLongestChain() []hash.Digest {
	chain := make([]hash.Digest, 0, l.heights[l.tip]+1)

	current := l.tip
	for {
		block, exists := l.blocks[current]
		if !exists {
			break
		}
		chain = append(chain, current)

		if l.heights[current] == 0 {
			break
		}
		current = block.Header.Parent
	}

	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}

	return chain
}
