package costs

import "math/bits"

// EstimateParams are the structural parameters used to synthesize an
// OperationCost without touching storage (spec.md §4.1, pre-flight fee
// calculation). MaxKeyLen/MaxValueLen bound a single KV pair; TreeDepth is
// the estimated depth of the Merk the operation touches.
type EstimateParams struct {
	MaxKeyLen   int
	MaxValueLen int
	TreeDepth   int
}

// rotationAllowance is the number of extra node rewrites an insert may
// trigger via AVL rebalancing, per spec.md §4.1.
const rotationAllowance = 2

// WorstCaseInsertCost synthesizes the cost of inserting one new KV pair
// into a Merk of the given estimated depth: one seek and one hash call per
// level walked, plus headroom for up to rotationAllowance rotations, each
// of which rehashes a constant number of nodes.
func WorstCaseInsertCost(p EstimateParams) OperationCost {
	preimage := p.MaxKeyLen + p.MaxValueLen + 3*32 // kv_hash + two child hashes, rounded up
	perLevelHashes := HashCalls(preimage)
	levels := uint64(p.TreeDepth + rotationAllowance)

	return OperationCost{
		Seeks:         levels,
		AddedBytes:    uint64(p.MaxKeyLen + p.MaxValueLen),
		HashCalls:     levels * perLevelHashes,
		LoadedBytes:   uint64(p.TreeDepth * (p.MaxKeyLen + p.MaxValueLen)),
	}
}

// WorstCaseGetCost synthesizes the cost of a single-key lookup: one seek
// and one load per level, no hashing (reads do not recompute hashes).
func WorstCaseGetCost(p EstimateParams) OperationCost {
	return OperationCost{
		Seeks:       uint64(p.TreeDepth),
		LoadedBytes: uint64(p.TreeDepth * (p.MaxKeyLen + p.MaxValueLen)),
	}
}

// AverageCaseDepth estimates the depth of a balanced Merk holding n
// entries: ceil(log2(n+1)), matching the median-split build-from-scratch
// construction in spec.md §4.3.4.
func AverageCaseDepth(n uint64) int {
	if n == 0 {
		return 0
	}
	return bits.Len64(n)
}

// AverageCaseInsertCost is WorstCaseInsertCost evaluated at the balanced
// depth for a tree of the given size, used for fee estimation when the
// caller does not know the exact tree shape.
func AverageCaseInsertCost(keyLen, valueLen int, treeSize uint64) OperationCost {
	return WorstCaseInsertCost(EstimateParams{
		MaxKeyLen:   keyLen,
		MaxValueLen: valueLen,
		TreeDepth:   AverageCaseDepth(treeSize),
	})
}
