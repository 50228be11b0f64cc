package grove

import (
	"github.com/grovedb/grove/element"
	"github.com/grovedb/grove/merk"
)

// recomputeSum folds m's direct entries into a sum, per the aggregation
// rule: SumItem/ItemWithSumItem contribute their own Sum; a nested
// SumTree/CountSumTree/ProvableCountSumTree contributes its own
// already-aggregated Sum (multi-level aggregation is therefore implicit
// through nesting, not a deep recursive walk); everything else — Item,
// Reference, plain Tree, BigSumTree, the non-Merk kinds — contributes
// nothing (spec.md §3.3's aggregation semantics, resolved per DESIGN.md).
func recomputeSum(m *merk.Merk) (int64, error) {
	var sum int64
	var iterErr error
	err := m.Iterate(func(key, value []byte) bool {
		e, decErr := element.Decode(value)
		if decErr != nil {
			iterErr = decErr
			return false
		}
		switch e.Kind {
		case element.KindSumItem, element.KindItemWithSumItem,
			element.KindSumTree, element.KindCountSumTree, element.KindProvableCountSumTree:
			sum += e.Sum
		}
		return true
	})
	if err != nil {
		return 0, err
	}
	return sum, iterErr
}

// recomputeBigSum is recomputeSum's Int128 analogue for BigSumTree, adding
// a nested BigSumTree's own BigSum directly (rather than narrowing it
// through int64) and widening every other sum-contributing kind's int64
// Sum via AddInt64.
func recomputeBigSum(m *merk.Merk) (element.Int128, error) {
	var total element.Int128
	var iterErr error
	err := m.Iterate(func(key, value []byte) bool {
		e, decErr := element.Decode(value)
		if decErr != nil {
			iterErr = decErr
			return false
		}
		switch e.Kind {
		case element.KindBigSumTree:
			total = total.Add(e.BigSum)
		case element.KindSumItem, element.KindItemWithSumItem,
			element.KindSumTree, element.KindCountSumTree, element.KindProvableCountSumTree:
			total = total.AddInt64(e.Sum)
		}
		return true
	})
	if err != nil {
		return element.Int128{}, err
	}
	return total, iterErr
}

// recomputeCount folds m's direct entries into a count, per the
// aggregation rule: a nested CountTree/CountSumTree/ProvableCountTree/
// ProvableCountSumTree contributes its own already-aggregated Count
// (implicit multi-level aggregation through nesting); every other direct
// entry — a plain Item, Reference, SumItem, unaggregated Tree, or non-Merk
// leaf — counts as exactly one entry toward its parent's count.
func recomputeCount(m *merk.Merk) (uint64, error) {
	var count uint64
	var iterErr error
	err := m.Iterate(func(key, value []byte) bool {
		e, decErr := element.Decode(value)
		if decErr != nil {
			iterErr = decErr
			return false
		}
		switch e.Kind {
		case element.KindCountTree, element.KindCountSumTree,
			element.KindProvableCountTree, element.KindProvableCountSumTree:
			count += e.Count
		default:
			count++
		}
		return true
	})
	if err != nil {
		return 0, err
	}
	return count, iterErr
}

// refreshAggregate recomputes e's Sum/BigSum/Count fields (if e is one of
// the aggregating Tree-family kinds) from the direct entries of the Merk
// at subtreeCtx, returning the (possibly unchanged) element to re-encode.
// Non-aggregating kinds (plain Tree, the non-Merk kinds) pass through
// untouched.
func refreshAggregate(m *merk.Merk, e element.Element) (element.Element, error) {
	switch e.Kind {
	case element.KindSumTree:
		sum, err := recomputeSum(m)
		if err != nil {
			return e, err
		}
		e.Sum = sum
	case element.KindBigSumTree:
		big, err := recomputeBigSum(m)
		if err != nil {
			return e, err
		}
		e.BigSum = big
	case element.KindCountTree, element.KindProvableCountTree:
		count, err := recomputeCount(m)
		if err != nil {
			return e, err
		}
		e.Count = count
	case element.KindCountSumTree, element.KindProvableCountSumTree:
		sum, err := recomputeSum(m)
		if err != nil {
			return e, err
		}
		count, err := recomputeCount(m)
		if err != nil {
			return e, err
		}
		e.Sum, e.Count = sum, count
	}
	return e, nil
}
