package ledger_test

import (
	"testing"
	"time"

	"github.com/ardanlabs/powchain/foundation/blockchain/database"
	"github.com/ardanlabs/powchain/foundation/blockchain/genesis"
	"github.com/ardanlabs/powchain/foundation/blockchain/hash"
	"github.com/ardanlabs/powchain/foundation/blockchain/ledger"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/go-cmp/cmp"
)

// Success and failure markers.
const (
	success = "✓"
	failed  = "✗"
)

// =============================================================================

func Test_InsertOne(t *testing.T) {
	t.Log("Given the need to insert a block on top of genesis.")
	{
		l := ledger.New(genesis.Default())
		gen := l.Tip()

		if h, _ := l.Height(gen); h != 0 {
			t.Fatalf("\t%s\tShould start with genesis at height 0: got %d", failed, h)
		}
		t.Logf("\t%s\tShould start with genesis at height 0.", success)

		b := newBlock(gen)
		l.Insert(b)

		if l.Tip() != b.Hash() {
			t.Fatalf("\t%s\tShould move the tip to the new block.", failed)
		}
		t.Logf("\t%s\tShould move the tip to the new block.", success)

		if h, _ := l.Height(b.Hash()); h != 1 {
			t.Fatalf("\t%s\tShould set the height to 1: got %d", failed, h)
		}
		t.Logf("\t%s\tShould set the height to 1.", success)
	}
}

func Test_InsertChain(t *testing.T) {
	t.Log("Given the need to insert a chain of blocks.")
	{
		l := ledger.New(genesis.Default())

		b := newBlock(l.Tip())
		l.Insert(b)

		for i := 0; i < 50; i++ {
			b = newBlock(b.Hash())
			l.Insert(b)

			if l.Tip() != b.Hash() {
				t.Fatalf("\t%s\tShould move the tip on every insert: block %d", failed, i)
			}
		}
		t.Logf("\t%s\tShould move the tip on every insert.", success)

		if h, _ := l.Height(l.Tip()); h != 51 {
			t.Fatalf("\t%s\tShould be at height 51: got %d", failed, h)
		}
		t.Logf("\t%s\tShould be at height 51.", success)
	}
}

func Test_ForkAndBack(t *testing.T) {
	t.Log("Given the need to follow the longest chain across forks.")
	{
		l := ledger.New(genesis.Default())

		step := func(b database.Block, exp database.Block, name string) {
			l.Insert(b)
			if l.Tip() != exp.Hash() {
				t.Fatalf("\t%s\tShould have tip %s after inserting %s: got %s", failed, exp.Hash().Short(), name, l.Tip().Short())
			}
			t.Logf("\t%s\tShould have the expected tip after inserting %s.", success, name)
		}

		b1 := newBlock(l.Tip())
		step(b1, b1, "b1")

		b2 := newBlock(b1.Hash())
		step(b2, b2, "b2")

		b3 := newBlock(b2.Hash())
		step(b3, b3, "b3")

		fork1 := newBlock(b2.Hash())
		step(fork1, b3, "fork1")

		fork2 := newBlock(fork1.Hash())
		step(fork2, fork2, "fork2")

		b4 := newBlock(b3.Hash())
		step(b4, fork2, "b4")

		b5 := newBlock(b4.Hash())
		step(b5, b5, "b5")

		chain := l.AllBlocksInLongestChain()
		exp := []hash.Digest{l.GenesisHash(), b1.Hash(), b2.Hash(), b3.Hash(), b4.Hash(), b5.Hash()}
		if diff := cmp.Diff(exp, chain); diff != "" {
			t.Fatalf("\t%s\tShould list the longest chain from genesis to tip, diff:\n%s", failed, diff)
		}
		t.Logf("\t%s\tShould list the longest chain from genesis to tip.", success)
	}
}

func Test_Idempotent(t *testing.T) {
	t.Log("Given the need to insert the same block more than once.")
	{
		l := ledger.New(genesis.Default())

		b1 := newBlock(l.Tip())
		l.Insert(b1)
		b2 := newBlock(b1.Hash())
		l.Insert(b2)

		tip := l.Tip()
		count := l.BlockCount()

		l.Insert(b1)
		l.Insert(b2)
		inserted := l.InsertRecursively(b2)

		if l.Tip() != tip || l.BlockCount() != count {
			t.Fatalf("\t%s\tShould not change the ledger: tip %s/%s count %d/%d", failed, l.Tip().Short(), tip.Short(), l.BlockCount(), count)
		}
		t.Logf("\t%s\tShould not change the ledger.", success)

		if len(inserted) != 0 {
			t.Fatalf("\t%s\tShould insert nothing recursively: got %d", failed, len(inserted))
		}
		t.Logf("\t%s\tShould insert nothing recursively.", success)
	}
}

func Test_TieBreak(t *testing.T) {
	t.Log("Given the need to choose between two chains of equal height.")
	{
		l1 := ledger.New(genesis.Default())
		l2 := ledger.New(genesis.Default())

		a := newBlock(l1.Tip())
		b := newBlock(l1.Tip())

		l1.Insert(a)
		l1.Insert(b)

		l2.Insert(b)
		l2.Insert(a)

		if l1.Tip() != a.Hash() {
			t.Fatalf("\t%s\tShould keep the first block seen when a arrives first.", failed)
		}
		t.Logf("\t%s\tShould keep the first block seen when a arrives first.", success)

		if l2.Tip() != b.Hash() {
			t.Fatalf("\t%s\tShould keep the first block seen when b arrives first.", failed)
		}
		t.Logf("\t%s\tShould keep the first block seen when b arrives first.", success)

		ext := newBlock(b.Hash())
		l1.Insert(ext)

		if l1.Tip() != ext.Hash() {
			t.Fatalf("\t%s\tShould switch once the other chain is strictly longer.", failed)
		}
		t.Logf("\t%s\tShould switch once the other chain is strictly longer.", success)
	}
}

func Test_Orphans(t *testing.T) {
	t.Log("Given the need to insert blocks that arrive before their parents.")
	{
		l := ledger.New(genesis.Default())

		a := newBlock(l.Tip())
		b := newBlock(a.Hash())
		c := newBlock(b.Hash())

		for _, blk := range []database.Block{c, b} {
			if l.ParentCheck(blk) {
				t.Fatalf("\t%s\tShould not know the parent of %s.", failed, blk.Hash().Short())
			}
			l.AddToOrphanBuffer(blk)
		}
		l.AddToOrphanBuffer(c)
		t.Logf("\t%s\tShould buffer c and b as orphans.", success)

		if l.OrphanCount() != 2 {
			t.Fatalf("\t%s\tShould hold two orphans: got %d", failed, l.OrphanCount())
		}
		t.Logf("\t%s\tShould hold two orphans.", success)

		inserted := l.InsertRecursively(a)

		exp := []hash.Digest{a.Hash(), b.Hash(), c.Hash()}
		if diff := cmp.Diff(exp, inserted); diff != "" {
			t.Fatalf("\t%s\tShould insert a, b and c in order, diff:\n%s", failed, diff)
		}
		t.Logf("\t%s\tShould insert a, b and c in order.", success)

		if l.Tip() != c.Hash() {
			t.Fatalf("\t%s\tShould have c as the tip.", failed)
		}
		if h, _ := l.Height(c.Hash()); h != 3 {
			t.Fatalf("\t%s\tShould have c at height 3: got %d", failed, h)
		}
		t.Logf("\t%s\tShould have c as the tip at height 3.", success)

		if l.OrphanCount() != 0 {
			t.Fatalf("\t%s\tShould empty the orphan buffer: got %d", failed, l.OrphanCount())
		}
		t.Logf("\t%s\tShould empty the orphan buffer.", success)
	}
}

func Test_OrphansDepthFirst(t *testing.T) {
	t.Log("Given the need to unlock a tree of orphans.")
	{
		l := ledger.New(genesis.Default())

		a := newBlock(l.Tip())
		b1 := newBlock(a.Hash())
		b2 := newBlock(a.Hash())
		c1 := newBlock(b1.Hash())

		l.AddToOrphanBuffer(c1)
		l.AddToOrphanBuffer(b1)
		l.AddToOrphanBuffer(b2)

		inserted := l.InsertRecursively(a)

		exp := []hash.Digest{a.Hash(), b1.Hash(), c1.Hash(), b2.Hash()}
		if diff := cmp.Diff(exp, inserted); diff != "" {
			t.Fatalf("\t%s\tShould insert a child's descendants before its sibling, diff:\n%s", failed, diff)
		}
		t.Logf("\t%s\tShould insert a child's descendants before its sibling.", success)

		if l.Tip() != c1.Hash() {
			t.Fatalf("\t%s\tShould have c1 as the tip.", failed)
		}
		t.Logf("\t%s\tShould have c1 as the tip.", success)
	}
}

func Test_OrphanLimit(t *testing.T) {
	t.Log("Given the need to bound the orphan buffer.")
	{
		l := ledger.New(genesis.Default(), ledger.WithMaxOrphans(2))

		a := newBlock(hash.Of("missing-a"))
		b := newBlock(hash.Of("missing-b"))
		c := newBlock(hash.Of("missing-c"))

		for _, blk := range []database.Block{a, b, a, c} {
			l.AddToOrphanBuffer(blk)
		}

		if l.OrphanCount() != 2 {
			t.Fatalf("\t%s\tShould stop buffering at the limit: got %d", failed, l.OrphanCount())
		}
		t.Logf("\t%s\tShould stop buffering at the limit.", success)

		if !l.IsOrphan(a.Hash()) || !l.IsOrphan(b.Hash()) {
			t.Fatalf("\t%s\tShould keep the orphans buffered first.", failed)
		}
		t.Logf("\t%s\tShould keep the orphans buffered first.", success)

		if l.IsOrphan(c.Hash()) {
			t.Fatalf("\t%s\tShould drop an orphan once the buffer is full.", failed)
		}
		t.Logf("\t%s\tShould drop an orphan once the buffer is full.", success)
	}
}

func Test_InvalidOrphan(t *testing.T) {
	t.Log("Given the need to drop an orphan with invalid content.")
	{
		l := ledger.New(genesis.Default())

		pk, err := crypto.GenerateKey()
		if err != nil {
			t.Fatalf("\t%s\tShould be able to generate a key: %s", failed, err)
		}

		a := newBlock(l.Tip())

		bad, err := database.Tx{
			Inputs:  []database.TxInput{{OutputIndex: 0, SourceTx: hash.Of("nothing")}},
			Outputs: []database.TxOutput{{Recipient: crypto.PubkeyToAddress(pk.PublicKey), Value: 1}},
		}.Sign(pk)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to sign a transaction: %s", failed, err)
		}

		b := database.NewBlock(a.Hash(), l.Difficulty(), 1, []database.SignedTx{bad})
		c := newBlock(b.Hash())

		l.AddToOrphanBuffer(c)
		l.AddToOrphanBuffer(b)

		inserted := l.InsertRecursively(a)

		if diff := cmp.Diff([]hash.Digest{a.Hash()}, inserted); diff != "" {
			t.Fatalf("\t%s\tShould only insert a, diff:\n%s", failed, diff)
		}
		t.Logf("\t%s\tShould only insert a.", success)

		if l.ContainsBlock(b.Hash()) || l.ContainsBlock(c.Hash()) {
			t.Fatalf("\t%s\tShould not insert the invalid orphan or its child.", failed)
		}
		t.Logf("\t%s\tShould not insert the invalid orphan or its child.", success)

		if l.OrphanCount() != 0 {
			t.Fatalf("\t%s\tShould drop both from the buffer: got %d", failed, l.OrphanCount())
		}
		t.Logf("\t%s\tShould drop both from the buffer.", success)
	}
}

func Test_PowValidityCheck(t *testing.T) {
	t.Log("Given the need to gate blocks on proof of work.")
	{
		l := ledger.New(genesis.Default())

		solved, unsolved := mine(t, l.Tip(), l.Difficulty())

		if !l.PowValidityCheck(solved) {
			t.Fatalf("\t%s\tShould accept a solved block.", failed)
		}
		t.Logf("\t%s\tShould accept a solved block.", success)

		if l.PowValidityCheck(unsolved) {
			t.Fatalf("\t%s\tShould reject a block above the target.", failed)
		}
		t.Logf("\t%s\tShould reject a block above the target.", success)

		var easy hash.Digest
		for i := range easy {
			easy[i] = 0xff
		}
		cheat := unsolved
		cheat.Header.Difficulty = easy

		if l.PowValidityCheck(cheat) {
			t.Fatalf("\t%s\tShould reject a block claiming a different difficulty.", failed)
		}
		t.Logf("\t%s\tShould reject a block claiming a different difficulty.", success)
	}
}

func Test_Telemetry(t *testing.T) {
	t.Log("Given the need to record where blocks came from.")
	{
		l := ledger.New(genesis.Default())

		a := newBlock(l.Tip())
		b := newBlock(a.Hash())
		l.Insert(a)
		l.Insert(b)

		if !l.RecordOrigin(a.Hash(), ledger.Mined()) {
			t.Fatalf("\t%s\tShould record the first origin.", failed)
		}
		if l.RecordOrigin(a.Hash(), ledger.Received(time.Second)) {
			t.Fatalf("\t%s\tShould not record a second origin.", failed)
		}
		l.RecordOrigin(b.Hash(), ledger.Received(250*time.Millisecond))
		t.Logf("\t%s\tShould only record the first origin of a block.", success)

		if o, _ := l.Origin(a.Hash()); o.Kind != ledger.OriginMined {
			t.Fatalf("\t%s\tShould keep the first origin: got %s", failed, o.Kind)
		}
		t.Logf("\t%s\tShould keep the first origin.", success)

		stats := l.Stats()
		exp := ledger.Stats{Mined: 1, Received: 1, DelaysMS: []int64{250}, AvgDelayMS: 250, Blocks: 3, Height: 2, LongestChain: 3}
		got := ledger.Stats{Mined: stats.Mined, Received: stats.Received, DelaysMS: stats.DelaysMS, AvgDelayMS: stats.AvgDelayMS, Blocks: stats.Blocks, Height: stats.Height, LongestChain: stats.LongestChain}
		if diff := cmp.Diff(exp, got); diff != "" {
			t.Fatalf("\t%s\tShould summarize the telemetry, diff:\n%s", failed, diff)
		}
		t.Logf("\t%s\tShould summarize the telemetry.", success)

		if stats.AvgBlockSize <= 0 {
			t.Fatalf("\t%s\tShould report an average block size.", failed)
		}
		t.Logf("\t%s\tShould report an average block size.", success)
	}
}

// =============================================================================

var nonce uint32

// newBlock constructs a distinct empty block on top of the parent. The ledger
// does not check proof of work on insert.
func newBlock(parent hash.Digest) database.Block {
	nonce++

	b := database.NewBlock(parent, genesis.DefaultDifficulty(), uint64(nonce), nil)
	b.Header.Nonce = nonce

	return b
}

// mine returns one block that solves the target and one that doesn't.
func mine(t *testing.T, parent hash.Digest, target hash.Digest) (database.Block, database.Block) {
	var solved, unsolved database.Block
	var haveSolved, haveUnsolved bool

	b := database.NewBlock(parent, target, uint64(time.Now().UnixMilli()), nil)
	for n := uint32(0); n < 1_000_000 && !(haveSolved && haveUnsolved); n++ {
		b.Header.Nonce = n
		switch {
		case b.SolvesPOW(target) && !haveSolved:
			solved, haveSolved = b, true
		case !b.SolvesPOW(target) && !haveUnsolved:
			unsolved, haveUnsolved = b, true
		}
	}

	if !haveSolved || !haveUnsolved {
		t.Fatalf("\t%s\tShould be able to mine the test blocks.", failed)
	}

	return solved, unsolved
}
