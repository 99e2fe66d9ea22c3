// Package state is the core API for the blockchain and implements all the
// business rules and processing.
package state

import (
	"crypto/ecdsa"
	"errors"
	"sync"
	"time"

	"github.com/ardanlabs/powchain/foundation/blockchain/database"
	"github.com/ardanlabs/powchain/foundation/blockchain/genesis"
	"github.com/ardanlabs/powchain/foundation/blockchain/ledger"
	"github.com/ardanlabs/powchain/foundation/blockchain/mempool"
	"github.com/ardanlabs/powchain/foundation/blockchain/message"
	"github.com/ardanlabs/powchain/foundation/blockchain/signature"
)

// EventHandler defines a function that is called when events
// occur in the processing of blocks and transactions.
type EventHandler func(v string, args ...any)

// Peer represents the connection a message arrived on. Send must not block.
type Peer interface {
	Addr() string
	Send(msg message.Message) bool
}

// Network represents the behavior required to reach every connected peer.
// Broadcast must not block.
type Network interface {
	Broadcast(msg message.Message) int
}

// Worker interface represents the behavior required to be implemented by any
// package providing support for mining and transaction generation.
type Worker interface {
	Shutdown()
	SignalStartMining(lambda time.Duration)
	SignalPauseMining()
	SignalExitMining()
}

// =============================================================================

// Config represents the configuration required to start
// the blockchain node.
type Config struct {
	Genesis           genesis.Genesis
	MinerKey          *ecdsa.PrivateKey
	Network           Network
	VerifierCacheSize int
	EvHandler         EventHandler
}

// State manages the ledger and the mempool. Every operation that touches both
// takes the ledger lock first; the mempool carries its own lock and is always
// acquired second.
type State struct {
	mu        sync.Mutex
	ledger    *ledger.Ledger
	mempool   *mempool.Mempool
	template  *template
	network   Network
	verifier  database.Verifier
	minerKey  *ecdsa.PrivateKey
	minerAddr database.Address
	genesis   genesis.Genesis
	evHandler EventHandler
	now       func() time.Time

	Worker Worker
}

// New constructs a new blockchain for data management.
func New(cfg Config) (*State, error) {

	// Build a safe event handler function for use.
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	if cfg.MinerKey == nil {
		return nil, errors.New("miner key is required")
	}

	if cfg.VerifierCacheSize <= 0 {
		cfg.VerifierCacheSize = 4096
	}

	// Signatures are checked when a transaction is admitted and again when
	// it arrives inside a block, so results are cached.
	verifier, err := signature.NewVerifier(cfg.VerifierCacheSize)
	if err != nil {
		return nil, err
	}

	network := cfg.Network
	if network == nil {
		network = noNetwork{}
	}

	state := State{
		ledger:    ledger.New(cfg.Genesis, ledger.WithVerifier(verifier), ledger.WithEvents(ledger.EventHandler(ev))),
		mempool:   mempool.New(),
		network:   network,
		verifier:  verifier,
		minerKey:  cfg.MinerKey,
		minerAddr: signature.KeyAddress(cfg.MinerKey),
		genesis:   cfg.Genesis,
		evHandler: ev,
		now:       time.Now,
	}

	// The Worker is not set here. The call to worker.Run will assign itself
	// and start everything up and running for the node.

	return &state, nil
}

// Shutdown cleanly brings the node down.
func (s *State) Shutdown() error {
	if s.Worker != nil {
		s.Worker.Shutdown()
	}

	return nil
}

// Genesis returns the genesis parameters the node was started with.
func (s *State) Genesis() genesis.Genesis {
	return s.genesis
}

// MinerAddress returns the address mining rewards and change are paid to.
func (s *State) MinerAddress() database.Address {
	return s.minerAddr
}

// =============================================================================

type noNetwork struct{}

func (noNetwork) Broadcast(message.Message) int { return 0 }
