// Package merk implements the single-subtree authenticated AVL tree
// (spec.md §3.1-§3.2, §4.3): nodes, the four-state child link, the
// Walker/Fetch capability pair driving all mutation, AVL rebalancing, and
// batch application (build-from-scratch and merge-into-existing). Grounded
// on the teacher's trie package (_teacher/trie/node.go's dirty-flag/cached
// -hash node shape) generalized from a 16-ary Merkle-Patricia branch node to
// a binary AVL node, since the hashing and lazy-materialization concerns
// are the same in spirit even though the underlying tree shape differs.
package merk

import "github.com/grovedb/grove/element"

// Feature records, for a single Merk node, whether its aggregate count must
// be folded into node_hash_with_count (spec.md §3.1) rather than left as
// plain metadata — true only for nodes holding a ProvableCountTree or
// ProvableCountSumTree element (spec.md §3.3). The count value itself
// always lives inside the node's serialized element bytes; Feature.Count
// duplicates it here purely so the node record can be rehashed without
// decoding the full element.
type Feature struct {
	BindCount bool
	Count     uint64
}

// FeatureFromElement derives the node-level Feature for e.
func FeatureFromElement(e element.Element) Feature {
	if !e.CountBoundIntoHash() {
		return Feature{}
	}
	return Feature{BindCount: true, Count: e.Count}
}
