package merk

import (
	"bytes"
	"sort"

	"github.com/grovedb/grove/types"
)

// OpKind selects one of the batch item shapes of spec.md §4.3.4.
type OpKind uint8

const (
	// OpPut inserts or overwrites Key with Value.
	OpPut OpKind = iota
	// OpReplace overwrites an existing Key with Value; semantically
	// identical to OpPut at the Merk layer (the distinction — that the
	// key must already exist — is enforced by the batch engine's
	// validation pass, not here).
	OpReplace
	// OpPatch applies a caller-precomputed delta to an existing value.
	// Merk treats it exactly like OpReplace: the caller has already
	// produced the full resulting Value bytes off-tree; only the batch
	// engine's cost accounting distinguishes a patch from a full
	// replacement (spec.md §4.1's replacement-delta buckets operate on
	// old/new byte lengths regardless of how the new value was derived).
	OpPatch
	// OpDelete removes Key.
	OpDelete
	// OpDeleteLayered removes Key and signals the grove layer (not Merk)
	// to also clear the corresponding child subtree's keyspace, for
	// Tree-family elements (spec.md §4.4.2).
	OpDeleteLayered
)

// Op is one item of a batch, already sorted by Key before it reaches this
// package (spec.md §4.3.4's "Input: a batch sorted by key").
type Op struct {
	Key       []byte
	Value     []byte
	ValueHash types.Hash
	Feature   Feature
	Kind      OpKind
}

func searchOps(ops []Op, key []byte) (idx int, found bool) {
	idx = sort.Search(len(ops), func(i int) bool {
		return bytes.Compare(ops[i].Key, key) >= 0
	})
	found = idx < len(ops) && bytes.Equal(ops[idx].Key, key)
	return
}

// ApplySorted applies ops (already sorted by key) to the tree rooted at
// root, returning the new root. A nil root triggers the build-from-scratch
// strategy; a non-nil root merges ops into the existing tree (spec.md
// §4.3.4).
func ApplySorted(root *Walker, ops []Op, fetch Fetch) (*Walker, error) {
	newRoot, err := applyRecursive(root, ops, fetch)
	if err != nil {
		return nil, err
	}
	if newRoot != nil {
		FinalizeHashes(newRoot.node)
	}
	return newRoot, nil
}

func applyRecursive(w *Walker, ops []Op, fetch Fetch) (*Walker, error) {
	if len(ops) == 0 {
		return w, nil
	}
	if w == nil || w.node == nil {
		return buildFromScratch(ops, fetch)
	}
	return applyToExisting(w, ops, fetch)
}

// buildFromScratch implements the median-split strategy: pick the middle
// op as this subtree's root, recurse on both halves. Every op here is
// assumed to be a write (Put/Replace/Patch) — deletes against an empty
// tree are no-ops, since the batch engine's validation pass is expected to
// have already rejected a delete of a genuinely-absent key before Merk
// ever sees it.
func buildFromScratch(ops []Op, fetch Fetch) (*Walker, error) {
	writes := ops[:0:0]
	for _, op := range ops {
		if op.Kind != OpDelete && op.Kind != OpDeleteLayered {
			writes = append(writes, op)
		}
	}
	if len(writes) == 0 {
		return nil, nil
	}

	mid := len(writes) / 2
	rootOp := writes[mid]
	root := NewWalker(NewNode(rootOp.Key, rootOp.Value, rootOp.ValueHash, rootOp.Feature), fetch)

	left, err := buildFromScratch(writes[:mid], fetch)
	if err != nil {
		return nil, err
	}
	right, err := buildFromScratch(writes[mid+1:], fetch)
	if err != nil {
		return nil, err
	}
	root.Attach(Left, left)
	root.Attach(Right, right)
	FinalizeHashes(root.node)
	return root, nil
}

// applyToExisting binary-searches w's key in ops, recurses into both
// children with the ops on either side, then applies whatever op (if any)
// targets w's own key, rebalancing afterward (spec.md §4.3.4's
// apply_sorted).
func applyToExisting(w *Walker, ops []Op, fetch Fetch) (*Walker, error) {
	idx, found := searchOps(ops, w.node.Key)

	var leftOps, rightOps []Op
	var rootOp *Op
	if found {
		leftOps = ops[:idx]
		rightOps = ops[idx+1:]
		rootOp = &ops[idx]
	} else {
		leftOps = ops[:idx]
		rightOps = ops[idx:]
	}

	if err := w.Walk(Left, func(c *Walker) (*Walker, error) { return applyRecursive(c, leftOps, fetch) }); err != nil {
		return nil, err
	}
	if err := w.Walk(Right, func(c *Walker) (*Walker, error) { return applyRecursive(c, rightOps, fetch) }); err != nil {
		return nil, err
	}

	if rootOp == nil {
		return MaybeBalance(w)
	}

	switch rootOp.Kind {
	case OpDelete, OpDeleteLayered:
		return deleteSelf(w)
	default:
		w.node.SetValue(rootOp.Value, rootOp.ValueHash, rootOp.Feature)
		return MaybeBalance(w)
	}
}

// deleteSelf removes w's own node, reattaching its children. A node with
// zero or one child is replaced by that child directly; a node with two
// children is replaced by the edge node (rightmost of the taller left
// subtree, or leftmost of the taller right subtree) promoted into its
// place, which minimizes the rebalancing the promotion itself triggers
// (spec.md §4.3.4).
func deleteSelf(w *Walker) (*Walker, error) {
	left, err := w.Detach(Left)
	if err != nil {
		return nil, err
	}
	right, err := w.Detach(Right)
	if err != nil {
		return nil, err
	}

	switch {
	case left == nil && right == nil:
		return nil, nil
	case left == nil:
		return right, nil
	case right == nil:
		return left, nil
	}

	if left.node.Height() >= right.node.Height() {
		edge, remainder, err := extractEdge(left, Right)
		if err != nil {
			return nil, err
		}
		edge.Attach(Left, remainder)
		edge.Attach(Right, right)
		return MaybeBalance(edge)
	}

	edge, remainder, err := extractEdge(right, Left)
	if err != nil {
		return nil, err
	}
	edge.Attach(Right, remainder)
	edge.Attach(Left, left)
	return MaybeBalance(edge)
}

// extractEdge descends w along side until it finds the node with no child
// on that side — the edge node — isolates it, and returns it along with
// the remainder subtree that should take its former place (the rest of w,
// rebalanced).
func extractEdge(w *Walker, side Side) (edge *Walker, remainder *Walker, err error) {
	next, err := w.Detach(side)
	if err != nil {
		return nil, nil, err
	}
	if next == nil {
		opp, err := w.Detach(side.Opposite())
		if err != nil {
			return nil, nil, err
		}
		return w, opp, nil
	}

	innerEdge, innerRemainder, err := extractEdge(next, side)
	if err != nil {
		return nil, nil, err
	}
	w.Attach(side, innerRemainder)
	balanced, err := MaybeBalance(w)
	if err != nil {
		return nil, nil, err
	}
	return innerEdge, balanced, nil
}
