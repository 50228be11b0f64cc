package commitment

import (
	"github.com/grovedb/grove/hashutil"
	"github.com/grovedb/grove/nonmerk/bulkappend"
	"github.com/grovedb/grove/types"
)

// Proof is the commitment tree's V1 envelope (spec.md §4.6.4): either the
// frontier root alone (sufficient for an anchor-only query, where the
// caller's ZK circuit verifies the leaf's authentication path off-chain),
// or a full payload-retrieval proof over the underlying BulkAppendTree.
type Proof struct {
	FrontierRoot types.Hash
	Range        *bulkappend.RangeProof
}

// ProveAnchor returns the frontier-root-only proof variant.
func (t *Tree) ProveAnchor() Proof {
	return Proof{FrontierRoot: t.frontier.Root()}
}

// ProveRange returns the full payload-retrieval proof variant, covering
// every sealed chunk in [firstChunk, lastChunk] plus the live buffer.
func (t *Tree) ProveRange(firstChunk, lastChunk uint64) (Proof, error) {
	rp, err := t.payloads.ProveRange(firstChunk, lastChunk)
	if err != nil {
		return Proof{}, err
	}
	return Proof{FrontierRoot: t.frontier.Root(), Range: &rp}, nil
}

// VerifyAnchor checks a frontier-root-only proof against the combined
// state root by recomputing Blake3("ct_state" ‖ frontier_root ‖
// bulk_state_root) with the independently-supplied bulk state root (the
// caller is not proving payload contents in this variant, so it must
// already know or separately verify bulkStateRoot).
func VerifyAnchor(p Proof, bulkStateRoot, expectedStateRoot types.Hash) bool {
	return hashutil.Sum([]byte("ct_state"), p.FrontierRoot.Bytes(), bulkStateRoot.Bytes()) == expectedStateRoot
}

// VerifyRange checks a full payload-retrieval proof's chunk-MMR component
// against the expected chunk-MMR size and root; the caller independently
// combines the result with FrontierRoot via the tree's state-root formula
// to check against an anchor, exactly as VerifyAnchor does.
func VerifyRange(p Proof, chunkPower uint8, mmrSize uint64, mmrRoot types.Hash) bool {
	if p.Range == nil {
		return false
	}
	return bulkappend.VerifyRange(*p.Range, chunkPower, mmrSize, mmrRoot)
}
