// Package mempool maintains the mempool for the blockchain.
package mempool

import (
	"sync"

	"github.com/ardanlabs/powchain/foundation/blockchain/database"
	"github.com/ardanlabs/powchain/foundation/blockchain/hash"
)

// Mempool represents a cache of transactions waiting to be mined, kept in the
// order they arrived. A second index tracks which unspent output each pooled
// transaction claims, so two pooled transactions never spend the same output.
//
// The mempool is always the innermost lock: it never calls out to other
// components while holding its own.
type Mempool struct {
	mu     sync.RWMutex
	pool   map[hash.Digest]database.SignedTx
	order  []hash.Digest
	spends map[database.TxInput]hash.Digest
}

// New constructs a new, empty mempool.
func New() *Mempool {
	return &Mempool{
		pool:   make(map[hash.Digest]database.SignedTx),
		spends: make(map[database.TxInput]hash.Digest),
	}
}

// Count returns the current number of transaction in the pool.
func (mp *Mempool) Count() int {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	return len(mp.pool)
}

// Insert adds a transaction to the back of the pool. It reports false when
// the transaction is already pooled or one of its inputs is claimed by another
// pooled transaction.
func (mp *Mempool) Insert(tx database.SignedTx) bool {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	txHash := tx.Hash()
	if _, exists := mp.pool[txHash]; exists {
		return false
	}

	for _, in := range tx.Raw.Inputs {
		if _, claimed := mp.spends[in]; claimed {
			return false
		}
	}

	mp.pool[txHash] = tx
	mp.order = append(mp.order, txHash)
	for _, in := range tx.Raw.Inputs {
		mp.spends[in] = txHash
	}

	return true
}

// Pop removes and returns the oldest transaction in the pool.
func (mp *Mempool) Pop() (database.SignedTx, bool) {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	if len(mp.order) == 0 {
		return database.SignedTx{}, false
	}

	txHash := mp.order[0]
	tx := mp.pool[txHash]
	mp.remove(txHash)

	return tx, true
}

// Get returns the transaction for the specified hash.
func (mp *Mempool) Get(txHash hash.Digest) (database.SignedTx, bool) {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	tx, exists := mp.pool[txHash]
	return tx, exists
}

// Contains reports if the transaction is in the pool.
func (mp *Mempool) Contains(txHash hash.Digest) bool {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	_, exists := mp.pool[txHash]
	return exists
}

// Spends returns the hash of the pooled transaction that claims the output.
func (mp *Mempool) Spends(in database.TxInput) (hash.Digest, bool) {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	txHash, claimed := mp.spends[in]
	return txHash, claimed
}

// Delete removes a transaction from the mempool. It reports false if the
// transaction was not pooled.
func (mp *Mempool) Delete(txHash hash.Digest) bool {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	if _, exists := mp.pool[txHash]; !exists {
		return false
	}

	mp.remove(txHash)
	return true
}

// Copy returns the pooled transactions from oldest to newest.
func (mp *Mempool) Copy() []database.SignedTx {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	trans := make([]database.SignedTx, 0, len(mp.order))
	for _, txHash := range mp.order {
		trans = append(trans, mp.pool[txHash])
	}

	return trans
}

// Truncate clears all the transactions from the pool.
func (mp *Mempool) Truncate() {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	mp.pool = make(map[hash.Digest]database.SignedTx)
	mp.order = nil
	mp.spends = make(map[database.TxInput]hash.Digest)
}

// =============================================================================

// remove drops the transaction from every index. The caller must hold the
// write lock and the transaction must be pooled.
func (mp *Mempool) remove(txHash hash.Digest) {
	tx := mp.pool[txHash]
	delete(mp.pool, txHash)

	for _, in := range tx.Raw.Inputs {
		if mp.spends[in] == txHash {
			delete(mp.spends, in)
		}
	}

	for i, h := range mp.order {
		if h == txHash {
			mp.order = append(mp.order[:i], mp.order[i+1:]...)
			break
		}
	}
}
