package merkle_test

import (
	"crypto/sha256"
	"testing"

	"github.com/ardanlabs/powchain/foundation/blockchain/hash"
	"github.com/ardanlabs/powchain/foundation/blockchain/merkle"
)

// Data is a simple value that can be placed in the tree.
type Data struct {
	x string
}

// Hash implements the merkle Hashable interface.
func (d Data) Hash() hash.Digest {
	return sha256.Sum256([]byte(d.x))
}

// Equals implements the merkle Hashable interface.
func (d Data) Equals(other Data) bool {
	return d.x == other.x
}

func pair(l, r hash.Digest) hash.Digest {
	return sha256.Sum256(append(l[:], r[:]...))
}

// =============================================================================

func Test_MerkleRoot(t *testing.T) {
	a, b, c := Data{"a"}, Data{"b"}, Data{"c"}

	type table struct {
		name string
		data []Data
		exp  hash.Digest
	}

	tt := []table{
		{name: "empty", data: nil, exp: hash.Zero},
		{name: "one", data: []Data{a}, exp: pair(a.Hash(), a.Hash())},
		{name: "two", data: []Data{a, b}, exp: pair(a.Hash(), b.Hash())},
		{name: "three", data: []Data{a, b, c}, exp: pair(pair(a.Hash(), b.Hash()), pair(c.Hash(), c.Hash()))},
	}

	for _, tst := range tt {
		f := func(t *testing.T) {
			tree := merkle.NewTree(tst.data)

			if tree.MerkleRoot != tst.exp {
				t.Logf("got: %s", tree.MerkleRoot)
				t.Logf("exp: %s", tst.exp)
				t.Fatalf("Should get back the right merkle root.")
			}

			if got := len(tree.Values()); got != len(tst.data) {
				t.Logf("got: %d", got)
				t.Logf("exp: %d", len(tst.data))
				t.Fatalf("Should get back the original values.")
			}

			if err := tree.Verify(); err != nil {
				t.Fatalf("Should be able to verify the tree: %s", err)
			}
		}

		t.Run(tst.name, f)
	}
}

func Test_VerifyDetectsTamper(t *testing.T) {
	tree := merkle.NewTree([]Data{{"a"}, {"b"}, {"c"}, {"d"}})

	tree.Leafs[2].Value = Data{"x"}
	if err := tree.Verify(); err == nil {
		t.Fatalf("Should detect a tampered leaf.")
	}
}

func Test_Proof(t *testing.T) {
	data := []Data{{"a"}, {"b"}, {"c"}, {"d"}, {"e"}}
	tree := merkle.NewTree(data)

	for _, d := range data {
		proof, order, err := tree.Proof(d)
		if err != nil {
			t.Fatalf("Should be able to produce a proof for %q: %s", d.x, err)
		}

		if !merkle.VerifyProof(tree.MerkleRoot, d.Hash(), proof, order) {
			t.Fatalf("Should be able to verify the proof for %q.", d.x)
		}
	}

	if _, _, err := tree.Proof(Data{"z"}); err == nil {
		t.Fatalf("Should not be able to produce a proof for missing data.")
	}

	proof, order, _ := tree.Proof(Data{"a"})
	if merkle.VerifyProof(tree.MerkleRoot, Data{"z"}.Hash(), proof, order) {
		t.Fatalf("Should not verify a proof for the wrong leaf.")
	}
}
