package worker

import (
	"fmt"
	"time"
)

// Set of miner control signals.
const (
	signalStart = iota
	signalPause
	signalExit
)

// signal controls the miner.
type signal struct {
	kind   int
	lambda time.Duration
}

// String implements the fmt.Stringer interface for logging.
func (s signal) String() string {
	switch s.kind {
	case signalStart:
		return fmt.Sprintf("start[%v]", s.lambda)
	case signalPause:
		return "pause"
	default:
		return "exit"
	}
}

// MiningStats represents what the miner has done since it first started.
type MiningStats struct {
	Started time.Time     `json:"started"`
	Mined   int           `json:"mined"`
	Elapsed time.Duration `json:"elapsed"`
	Rate    float64       `json:"rate"` // Blocks per second.
	Running bool          `json:"running"`
	Lambda  time.Duration `json:"lambda"`
}

// MiningStats returns what the miner has done since it first started.
func (w *Worker) MiningStats() MiningStats {
	w.statsMu.Lock()
	defer w.statsMu.Unlock()

	stats := w.stats
	if !stats.Started.IsZero() {
		stats.Elapsed = time.Since(stats.Started)
		if secs := stats.Elapsed.Seconds(); secs > 0 {
			stats.Rate = float64(stats.Mined) / secs
		}
	}

	return stats
}

// =============================================================================

// miningOperations handles mining. While paused the miner waits for a signal.
// While running it checks for a signal without waiting, sleeps for lambda and
// then makes one mining attempt.
func (w *Worker) miningOperations() {
	w.evHandler("worker: miningOperations: G started")
	defer w.evHandler("worker: miningOperations: G completed")

	var running bool
	var lambda time.Duration

	for {
		var sig signal
		var received bool

		if running {
			select {
			case sig = <-w.mining:
				received = true
			case <-w.shut:
				w.evHandler("worker: miningOperations: received shut signal")
				return
			default:
			}
		} else {
			select {
			case sig = <-w.mining:
				received = true
			case <-w.shut:
				w.evHandler("worker: miningOperations: received shut signal")
				return
			}
		}

		if received {
			switch sig.kind {
			case signalStart:
				w.evHandler("worker: miningOperations: MINING: started: lambda[%v]", sig.lambda)
				running, lambda = true, sig.lambda
				w.markRunning(true, lambda)

			case signalPause:
				w.evHandler("worker: miningOperations: MINING: paused")
				running = false
				w.markRunning(false, lambda)

			case signalExit:
				w.markRunning(false, lambda)
				w.logMiningStats()
				return
			}
		}

		if !running {
			continue
		}

		if !w.sleep(lambda) {
			w.evHandler("worker: miningOperations: received shut signal")
			return
		}

		w.runMiningOperation()
	}
}

// runMiningOperation makes one mining attempt.
func (w *Worker) runMiningOperation() {
	block, solved := w.state.MineAttempt()
	if !solved {
		return
	}

	w.statsMu.Lock()
	w.stats.Mined++
	w.statsMu.Unlock()

	w.evHandler("worker: runMiningOperation: MINING: mined blk[%s]: trans[%d]", block.Hash().Short(), len(block.Trans))
}

func (w *Worker) markRunning(running bool, lambda time.Duration) {
	w.statsMu.Lock()
	defer w.statsMu.Unlock()

	if running && w.stats.Started.IsZero() {
		w.stats.Started = time.Now()
	}
	w.stats.Running = running
	w.stats.Lambda = lambda
}

// logMiningStats reports what the miner and the ledger look like when the
// miner exits.
func (w *Worker) logMiningStats() {
	stats := w.MiningStats()
	if stats.Started.IsZero() {
		w.evHandler("worker: miningOperations: MINING: exit: miner never started")
		return
	}

	ledger := w.state.QueryStats()

	w.evHandler("worker: miningOperations: MINING: exit: mined %d blocks in %v, rate is %.4f blocks/second", stats.Mined, stats.Elapsed, stats.Rate)
	w.evHandler("worker: miningOperations: MINING: exit: ledger has %d blocks, longest chain has %d blocks", ledger.Blocks, ledger.LongestChain)
	w.evHandler("worker: miningOperations: MINING: exit: average block size is %.2f bytes", ledger.AvgBlockSize)
	w.evHandler("worker: miningOperations: MINING: exit: block delays in ms %v", ledger.DelaysMS)
}
