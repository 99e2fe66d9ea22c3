// Package merkle provides an implementation of a merkle tree used to
// fingerprint the transactions of a block.
package merkle

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"strings"

	"github.com/ardanlabs/powchain/foundation/blockchain/hash"
)

// Hashable represents the behavior concrete data must exhibit to be used in
// the merkle tree.
type Hashable[T any] interface {
	Hash() hash.Digest
	Equals(other T) bool
}

// =============================================================================

// Tree represents a merkle tree that uses data of some type T that exhibits the
// behavior defined by the Hashable constraint. A tree with no values has no
// nodes and a zero merkle root.
type Tree[T Hashable[T]] struct {
	Root       *Node[T]
	Leafs      []*Node[T]
	MerkleRoot hash.Digest
}

// NewTree constructs a new merkle tree that uses data of some type T that
// exhibits the behavior defined by the Hashable interface.
func NewTree[T Hashable[T]](values []T) *Tree[T] {
	var t Tree[T]
	t.Generate(values)

	return &t
}

// Root is a convenience function that returns the merkle root for the
// specified values without keeping the tree.
func Root[T Hashable[T]](values []T) hash.Digest {
	return NewTree(values).MerkleRoot
}

// Generate constructs the leafs and nodes of the tree from the specified
// data. If the tree has been generated previously, the tree is re-generated
// from scratch.
func (t *Tree[T]) Generate(values []T) {
	t.Root = nil
	t.Leafs = nil
	t.MerkleRoot = hash.Zero

	if len(values) == 0 {
		return
	}

	leafs := make([]*Node[T], 0, len(values)+1)
	for _, value := range values {
		leafs = append(leafs, &Node[T]{
			Hash:  value.Hash(),
			Value: value,
			leaf:  true,
		})
	}

	// An odd level duplicates its last leaf so every parent has two children.
	if len(leafs)%2 == 1 {
		last := leafs[len(leafs)-1]
		leafs = append(leafs, &Node[T]{
			Hash:  last.Hash,
			Value: last.Value,
			leaf:  true,
			dup:   true,
		})
	}

	t.Leafs = leafs
	t.Root = buildIntermediate(leafs)
	t.MerkleRoot = t.Root.Hash
}

// Values returns the values stored in the tree without the duplicated leaf.
func (t *Tree[T]) Values() []T {
	values := make([]T, 0, len(t.Leafs))
	for _, node := range t.Leafs {
		if node.dup {
			continue
		}
		values = append(values, node.Value)
	}

	return values
}

// Proof returns the set of hashes and the order of concatenating those
// hashes for proving a value is in the tree. An order of 0 means the proof
// hash is concatenated first, 1 means it's concatenated second.
func (t *Tree[T]) Proof(data T) ([]hash.Digest, []int64, error) {
	for _, node := range t.Leafs {
		if !node.Value.Equals(data) {
			continue
		}

		var proof []hash.Digest
		var order []int64
		for parent := node.Parent; parent != nil; parent = parent.Parent {
			if parent.Left == node {
				proof = append(proof, parent.Right.Hash)
				order = append(order, 1)
			} else {
				proof = append(proof, parent.Left.Hash)
				order = append(order, 0)
			}
			node = parent
		}

		return proof, order, nil
	}

	return nil, nil, errors.New("unable to find data in tree")
}

// Verify recalculates the hashes at each level of the tree and checks the
// result matches the stored merkle root.
func (t *Tree[T]) Verify() error {
	if t.Root == nil {
		if !t.MerkleRoot.IsZero() {
			return errors.New("empty tree with non zero root")
		}
		return nil
	}

	if t.Root.verify() != t.MerkleRoot {
		return errors.New("root hash invalid")
	}

	return nil
}

// String returns a string representation of the tree. Only leaf nodes are
// included in the output.
func (t *Tree[T]) String() string {
	var b strings.Builder
	for _, l := range t.Leafs {
		b.WriteString(l.String())
		b.WriteString("\n")
	}

	return b.String()
}

// VerifyProof checks the proof produced by Tree.Proof for a leaf hash against
// a merkle root.
func VerifyProof(root hash.Digest, leaf hash.Digest, proof []hash.Digest, order []int64) bool {
	if len(proof) != len(order) {
		return false
	}

	h := leaf
	for i, p := range proof {
		switch order[i] {
		case 0:
			h = combine(p, h)
		default:
			h = combine(h, p)
		}
	}

	return h == root
}

// =============================================================================

// Node represents a node, root, or leaf in the tree. It stores pointers to its
// immediate relationships, a hash, the data if it is a leaf, and other metadata.
type Node[T Hashable[T]] struct {
	Parent *Node[T]
	Left   *Node[T]
	Right  *Node[T]
	Hash   hash.Digest
	Value  T
	leaf   bool
	dup    bool
}

// verify walks down the tree until hitting a leaf, calculating the hash at
// each level and returning the resulting hash of the node.
func (n *Node[T]) verify() hash.Digest {
	if n.leaf {
		return n.Value.Hash()
	}

	return combine(n.Left.verify(), n.Right.verify())
}

// String returns a string representation of the node.
func (n *Node[T]) String() string {
	return fmt.Sprintf("%t %t %s %v", n.leaf, n.dup, n.Hash.Short(), n.Value)
}

// =============================================================================

// buildIntermediate constructs the intermediate and root levels of the tree
// for a given list of nodes and returns the root node.
func buildIntermediate[T Hashable[T]](nl []*Node[T]) *Node[T] {
	if len(nl) == 1 {
		return nl[0]
	}

	nodes := make([]*Node[T], 0, (len(nl)+1)/2)
	for i := 0; i < len(nl); i += 2 {
		left, right := nl[i], nl[i]
		if i+1 < len(nl) {
			right = nl[i+1]
		}

		n := Node[T]{
			Left:  left,
			Right: right,
			Hash:  combine(left.Hash, right.Hash),
		}

		nodes = append(nodes, &n)
		left.Parent = &n
		right.Parent = &n
	}

	return buildIntermediate(nodes)
}

// combine hashes the concatenation of two digests.
func combine(left, right hash.Digest) hash.Digest {
	var buf [2 * hash.Length]byte
	copy(buf[:hash.Length], left[:])
	copy(buf[hash.Length:], right[:])

	return sha256.Sum256(buf[:])
}
