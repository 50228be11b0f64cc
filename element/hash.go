package element

import (
	"github.com/grovedb/grove/hashutil"
	"github.com/grovedb/grove/types"
)

// ValueHash computes the value_hash that goes into a Merk node's kv_hash
// for e (spec.md §3.1, §4.3.5):
//
//   - Tree-family and non-Merk subtree elements: the combined hash binding
//     elementBytes to childOrTypeSpecificRoot (the child Merk's root hash,
//     or a non-Merk structure's type-specific root — spec.md §3.6 treats
//     both uniformly from the parent's point of view).
//   - Reference elements: the combined hash binding elementBytes to the
//     dereferenced target's own value (spec.md §9, open question 3).
//   - Everything else (Item, SumItem, ItemWithSumItem): a plain value hash
//     over the serialized element bytes.
//
// childOrTargetValue is ignored for plain (non-subtree, non-reference)
// elements.
func ValueHash(e Element, childOrTargetValue []byte) types.Hash {
	elementBytes := Encode(e)
	switch {
	case e.IsSubtreeFamily():
		var childRoot types.Hash
		childRoot.SetBytes(childOrTargetValue)
		return hashutil.CombinedValueHashForSubtree(elementBytes, childRoot)
	case e.IsReference():
		return hashutil.CombinedValueHashForReference(elementBytes, childOrTargetValue)
	default:
		return hashutil.ValueHash(elementBytes)
	}
}
