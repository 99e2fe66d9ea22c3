// Package worker implements the message workers, mining, transaction
// generation and peer updates for the blockchain.
package worker

import (
	"context"
	"sync"
	"time"

	"github.com/ardanlabs/powchain/foundation/blockchain/database"
	"github.com/ardanlabs/powchain/foundation/blockchain/p2p"
	"github.com/ardanlabs/powchain/foundation/blockchain/peer"
	"github.com/ardanlabs/powchain/foundation/blockchain/state"
)

// maxMiningSignals represents the max number of pending miner control signals.
// If the channel does become full, new signals are dropped.
const maxMiningSignals = 10

// Network represents the behavior the worker needs from the transport.
type Network interface {
	Host() string
	Connect(ctx context.Context, host string) (*p2p.Peer, error)
	KnownPeers() *peer.PeerSet
	Connected() []peer.Peer
}

// Config represents the configuration required to start the worker.
type Config struct {
	Workers          int
	Inbound          <-chan p2p.Envelope
	Network          Network
	PeerInterval     time.Duration
	GenerateInterval time.Duration
	Recipients       func() []database.Address
	EvHandler        state.EventHandler
}

// =============================================================================

// Worker manages the message processing, mining and transaction generation
// workflows for the blockchain.
type Worker struct {
	state     *state.State
	cfg       Config
	wg        sync.WaitGroup
	shut      chan struct{}
	once      sync.Once
	mining    chan signal
	evHandler state.EventHandler

	statsMu sync.Mutex
	stats   MiningStats
}

// Run creates a worker, registers the worker with the state package, and
// starts up all the background processes.
func Run(st *state.State, cfg Config) *Worker {
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}

	w := Worker{
		state:     st,
		cfg:       cfg,
		shut:      make(chan struct{}),
		mining:    make(chan signal, maxMiningSignals),
		evHandler: ev,
	}

	// Register this worker with the state package.
	st.Worker = &w

	// Load the set of operations we need to run.
	var operations []func()
	for i := 0; i < cfg.Workers; i++ {
		id := i
		operations = append(operations, func() { w.messageOperations(id) })
	}
	operations = append(operations, w.miningOperations)

	if cfg.GenerateInterval > 0 && cfg.Recipients != nil {
		operations = append(operations, w.generateOperations)
	}

	if cfg.Network != nil && cfg.PeerInterval > 0 {
		operations = append(operations, w.peerOperations)
	}

	// Set waitgroup to match the number of G's we need for the set
	// of operations we have.
	g := len(operations)
	w.wg.Add(g)

	// We don't want to return until we know all the G's are up and running.
	hasStarted := make(chan bool)

	// Start all the operational G's.
	for _, op := range operations {
		go func(op func()) {
			defer w.wg.Done()
			hasStarted <- true
			op()
		}(op)
	}

	// Wait for the G's to report they are running.
	for i := 0; i < g; i++ {
		<-hasStarted
	}

	return &w
}

// =============================================================================
// These methods implement the state.Worker interface.

// Shutdown terminates the goroutines performing work.
func (w *Worker) Shutdown() {
	w.once.Do(func() {
		w.evHandler("worker: shutdown: started")
		defer w.evHandler("worker: shutdown: completed")

		w.evHandler("worker: shutdown: terminate goroutines")
		close(w.shut)
		w.wg.Wait()
	})
}

// SignalStartMining starts or resumes mining with the specified pause between
// attempts. If the signal queue is full the signal is dropped.
func (w *Worker) SignalStartMining(lambda time.Duration) {
	w.signalMining(signal{kind: signalStart, lambda: lambda})
}

// SignalPauseMining pauses mining until the next start signal.
func (w *Worker) SignalPauseMining() {
	w.signalMining(signal{kind: signalPause})
}

// SignalExitMining stops the miner for good and logs the mining stats.
func (w *Worker) SignalExitMining() {
	w.signalMining(signal{kind: signalExit})
}

func (w *Worker) signalMining(sig signal) {
	select {
	case w.mining <- sig:
		w.evHandler("worker: signalMining: %s signaled", sig)
	default:
		w.evHandler("worker: signalMining: queue full, %s dropped", sig)
	}
}

// =============================================================================

// isShutdown is used to test if a shutdown has been signaled.
func (w *Worker) isShutdown() bool {
	select {
	case <-w.shut:
		return true
	default:
		return false
	}
}

// sleep waits for the duration or a shutdown. It reports false on shutdown.
func (w *Worker) sleep(d time.Duration) bool {
	if d <= 0 {
		return !w.isShutdown()
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return true
	case <-w.shut:
		return false
	}
}
