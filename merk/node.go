package merk

import (
	"github.com/grovedb/grove/hashutil"
	"github.com/grovedb/grove/types"
)

// Node is a single Merk tree node (spec.md §3.1): a key/value pair plus the
// three-level hash chain and the two child links. Value holds the
// bincode-encoded grove element (see package element); Merk itself is
// agnostic to element semantics beyond the Feature classification needed to
// pick the right node-hash formula.
type Node struct {
	Key   []byte
	Value []byte

	ValueHash types.Hash
	KVHash    types.Hash
	Hash      types.Hash

	Feature Feature

	Left  *Link
	Right *Link

	// OldValue is the node's previous Value, retained only until the next
	// rehash, for the batch engine's replacement-cost-delta accounting
	// (costs.ReplacementDelta, spec.md §4.1).
	OldValue []byte

	// KnownStorageCost is a caller-maintained running total of bytes this
	// node has cost to persist; Merk never interprets it, only carries it.
	KnownStorageCost uint64
}

// NewNode constructs a fresh leaf node (no children) with value and
// valueHash already computed by the caller — see element.ValueHash, which
// needs context (a child subtree's root, or a dereferenced reference
// target) that this package does not have.
func NewNode(key, value []byte, valueHash types.Hash, feature Feature) *Node {
	n := &Node{Key: key, Value: value, ValueHash: valueHash, Feature: feature}
	n.Rehash()
	return n
}

// SetValue updates n's payload in place and rehashes it. The caller is
// responsible for having recomputed valueHash appropriately for the new
// value (see NewNode's doc comment).
func (n *Node) SetValue(value []byte, valueHash types.Hash, feature Feature) {
	n.OldValue = n.Value
	n.Value = value
	n.ValueHash = valueHash
	n.Feature = feature
	n.Rehash()
}

func (n *Node) leftHash() types.Hash {
	if n.Left == nil {
		return types.ZeroHash
	}
	return n.Left.Hash
}

func (n *Node) rightHash() types.Hash {
	if n.Right == nil {
		return types.ZeroHash
	}
	return n.Right.Hash
}

func (n *Node) leftHeight() int16 {
	if n.Left == nil {
		return 0
	}
	return n.Left.Height
}

func (n *Node) rightHeight() int16 {
	if n.Right == nil {
		return 0
	}
	return n.Right.Height
}

// Rehash recomputes kv_hash and node_hash from the current ValueHash and
// child link hashes (spec.md §3.1, §4.3.5). It does not touch child
// states; callers transitioning a Modified link to Uncommitted must do so
// themselves once this returns.
func (n *Node) Rehash() {
	n.KVHash = hashutil.KVHash(n.Key, n.ValueHash)
	if n.Feature.BindCount {
		n.Hash = hashutil.NodeHashWithCount(n.KVHash, n.leftHash(), n.rightHash(), n.Feature.Count)
	} else {
		n.Hash = hashutil.NodeHash(n.KVHash, n.leftHash(), n.rightHash())
	}
}

// Height is n's own AVL height (1 + the taller child's height).
func (n *Node) Height() int16 {
	lh, rh := n.leftHeight(), n.rightHeight()
	if lh > rh {
		return lh + 1
	}
	return rh + 1
}

// BalanceFactor is height(right) - height(left) (spec.md §3.1's AVL
// invariant: must be in {-1, 0, +1} after every mutation).
func (n *Node) BalanceFactor() int {
	return int(n.rightHeight()) - int(n.leftHeight())
}

// child returns the link on the given side.
func (n *Node) child(side Side) *Link {
	if side == Left {
		return n.Left
	}
	return n.Right
}

// setChild sets the link on the given side.
func (n *Node) setChild(side Side, l *Link) {
	if side == Left {
		n.Left = l
	} else {
		n.Right = l
	}
}
