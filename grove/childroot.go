package grove

import (
	"github.com/grovedb/grove/element"
	"github.com/grovedb/grove/internal/grovedberr"
	"github.com/grovedb/grove/merk"
	"github.com/grovedb/grove/nonmerk/bulkappend"
	"github.com/grovedb/grove/nonmerk/commitment"
	"github.com/grovedb/grove/nonmerk/dense"
	"github.com/grovedb/grove/nonmerk/mmr"
	"github.com/grovedb/grove/path"
	"github.com/grovedb/grove/types"
)

// childRoot opens the subtree e occupies at childPath and returns its
// current root hash (a Merk's node_hash) or type-specific root (a non-Merk
// structure's own state root) — the two are interchangeable from the
// parent's point of view, since both feed into the identical
// CombinedValueHashForSubtree formula (spec.md §3.6: "the non-Merk root
// hash propagates through the Merk hierarchy as a hash change" exactly
// like an ordinary Tree-family child).
func childRoot(w rw, childPath path.Path, e element.Element) (types.Hash, error) {
	ctx := contextFor(w, childPath)
	switch e.Kind {
	case element.KindTree, element.KindSumTree, element.KindBigSumTree,
		element.KindCountTree, element.KindCountSumTree,
		element.KindProvableCountTree, element.KindProvableCountSumTree:
		m, err := merk.Open(ctx)
		if err != nil {
			return types.Hash{}, err
		}
		return m.RootHash(), nil

	case element.KindMmrTree:
		return mmr.Open(ctx, e.MmrLeafCount).Root()

	case element.KindBulkAppendTree:
		return bulkappend.Open(ctx, e.TotalCount, e.ChunkPower, e.BufferCount, e.MmrLeafCount).StateRoot()

	case element.KindCommitmentTree:
		t, err := commitment.Open(ctx, nil, e.TotalCount, e.ChunkPower, e.BufferCount, e.MmrLeafCount)
		if err != nil {
			return types.Hash{}, err
		}
		return t.StateRoot()

	case element.KindDenseFixedTree:
		return dense.Open(ctx, e.Height, e.DenseCount).Root()

	default:
		return types.Hash{}, grovedberr.New(grovedberr.KindTypeMismatch, "grove.childRoot", nil)
	}
}
