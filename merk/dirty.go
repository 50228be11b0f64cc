package merk

import "github.com/bits-and-blooms/bitset"

// dirtyPathsWidth bounds the bitmap to a fixed size regardless of batch
// size; collisions only ever cause an extra (harmless) cache-miss re-open
// by the batch engine, never a missed propagation, since DirtyPaths is
// consulted as a fast-path skip, not as the sole source of truth for which
// paths changed (spec.md §4.7 phase 2's TreeCache optimization).
const dirtyPathsWidth = 4096

// DirtyPaths is a fixed-width bitset keyed by a cheap hash of each
// subtree's path key, tracking which subtrees a batch apply touched so the
// batch engine can skip reopening and rehashing everything else (spec.md
// §4.7 phase 2, "mark the parent subtree dirty").
type DirtyPaths struct {
	bits *bitset.BitSet
}

// NewDirtyPaths returns an empty tracker.
func NewDirtyPaths() *DirtyPaths {
	return &DirtyPaths{bits: bitset.New(dirtyPathsWidth)}
}

func dirtyIndex(pathKey string) uint {
	var h uint32 = 2166136261 // FNV-1a offset basis
	for i := 0; i < len(pathKey); i++ {
		h ^= uint32(pathKey[i])
		h *= 16777619
	}
	return uint(h % dirtyPathsWidth)
}

// Mark records pathKey (typically path.Path.Key()) as touched.
func (d *DirtyPaths) Mark(pathKey string) {
	d.bits.Set(dirtyIndex(pathKey))
}

// MaybeDirty reports whether pathKey may have been marked; false is a
// reliable "definitely clean" answer, true may be a hash collision.
func (d *DirtyPaths) MaybeDirty(pathKey string) bool {
	return d.bits.Test(dirtyIndex(pathKey))
}

// Count returns the number of set bits, an upper bound on distinct marked
// paths (a cheap health-check metric for the batch engine to log).
func (d *DirtyPaths) Count() uint {
	return d.bits.Count()
}
