package ledger

import (
	"github.com/ardanlabs/powchain/foundation/blockchain/database"
	"github.com/ardanlabs/powchain/foundation/blockchain/hash"
)

// AddToOrphanBuffer holds a block whose parent is not yet in the ledger. The
// block is kept under the hash of the missing parent until that parent is
// inserted. Buffering the same block twice is a no-op. Once the buffer is full
// new orphans are dropped; a peer announcing them again gets them requested
// again.
func (l *Ledger) AddToOrphanBuffer(block database.Block) {
	parent := block.Header.Parent
	blockHash := block.Hash()

	if l.orphanSet.Contains(blockHash) {
		return
	}

	if l.orphanSet.Cardinality() >= l.maxOrphans {
		l.evHandler("ledger: orphan: blk[%s]: WARNING: dropped: buffer full at %d blocks", blockHash.Short(), l.maxOrphans)
		return
	}

	l.orphans[parent] = append(l.orphans[parent], block)
	l.orphanSet.Add(blockHash)
	l.evHandler("ledger: orphan: blk[%s]: waiting on parent[%s]", blockHash.Short(), parent.Short())
}

// OrphanCount returns the number of blocks waiting on a parent.
func (l *Ledger) OrphanCount() int {
	return l.orphanSet.Cardinality()
}

// IsOrphan reports if the block is waiting in the orphan buffer.
func (l *Ledger) IsOrphan(blockHash hash.Digest) bool {
	return l.orphanSet.Contains(blockHash)
}

// InsertRecursively inserts the block and then every buffered descendant it
// unlocks. Descendants are unlocked depth first: a child and all of its own
// descendants go in before the child's next sibling. The hashes of every
// inserted block are returned in insertion order. A known block inserts
// nothing.
//
// The block itself must have a known parent and is expected to be validated
// by the caller. Unlocked descendants were buffered without a parent state to
// check against, so their content is validated here. An invalid descendant is
// dropped along with everything buffered beneath it.
func (l *Ledger) InsertRecursively(block database.Block) []hash.Digest {
	blockHash := block.Hash()
	if l.ContainsBlock(blockHash) {
		return nil
	}

	l.Insert(block)
	inserted := []hash.Digest{blockHash}

	stack := l.unlock(blockHash, nil)
	for len(stack) > 0 {
		next := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		nextHash := next.Hash()
		if l.ContainsBlock(nextHash) {
			stack = l.unlock(nextHash, stack)
			continue
		}

		if err := l.ValidateContent(next); err != nil {
			l.evHandler("ledger: orphan: blk[%s]: WARNING: dropped: %s", nextHash.Short(), err)
			l.purge(nextHash)
			continue
		}

		l.Insert(next)
		inserted = append(inserted, nextHash)

		stack = l.unlock(nextHash, stack)
	}

	return inserted
}

// unlock removes the orphans waiting on the parent from the buffer and pushes
// them on the stack. They are pushed in reverse so the first one buffered is
// the first one popped.
func (l *Ledger) unlock(parent hash.Digest, stack []database.Block) []database.Block {
	children, exists := l.orphans[parent]
	if !exists {
		return stack
	}
	delete(l.orphans, parent)

	for i := len(children) - 1; i >= 0; i-- {
		l.orphanSet.Remove(children[i].Hash())
		stack = append(stack, children[i])
	}

	return stack
}

// purge drops every orphan that descends from the specified block.
func (l *Ledger) purge(blockHash hash.Digest) {
	stack := l.unlock(blockHash, nil)
	for len(stack) > 0 {
		next := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		nextHash := next.Hash()
		l.evHandler("ledger: orphan: blk[%s]: WARNING: dropped: ancestor is invalid", nextHash.Short())
		stack = l.unlock(nextHash, stack)
	}
}
