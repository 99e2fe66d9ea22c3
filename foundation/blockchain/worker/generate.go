package worker

import (
	"errors"
	"math/rand/v2"
	"time"

	"github.com/ardanlabs/powchain/foundation/blockchain/state"
)

// generateOperations periodically pays a random known address from the
// node's own unspent outputs, giving the network transactions to mine.
func (w *Worker) generateOperations() {
	w.evHandler("worker: generateOperations: G started")
	defer w.evHandler("worker: generateOperations: G completed")

	ticker := time.NewTicker(w.cfg.GenerateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if !w.isShutdown() {
				w.runGenerateOperation()
			}
		case <-w.shut:
			w.evHandler("worker: generateOperations: received shut signal")
			return
		}
	}
}

// runGenerateOperation generates one transaction.
func (w *Worker) runGenerateOperation() {
	recipients := w.cfg.Recipients()
	if len(recipients) == 0 {
		return
	}

	to := recipients[rand.IntN(len(recipients))]

	tx, err := w.state.GenerateTransaction(to)
	if err != nil {
		if errors.Is(err, state.ErrNoFunds) {
			return
		}
		w.evHandler("worker: runGenerateOperation: ERROR: %s", err)
		return
	}

	w.evHandler("worker: runGenerateOperation: tx[%s]: generated", tx)
}
