// Package path implements subtree addressing (spec.md §3.4): the
// iterative Blake3 derivation of a 32-byte subtree prefix from a path,
// and the seven reference path expression variants of spec.md §3.5 along
// with their resolution to an absolute path.
package path

import (
	"bytes"

	"github.com/grovedb/grove/hashutil"
	"github.com/grovedb/grove/types"
)

// Path is an ordered sequence of byte-string segments addressing a
// subtree from the grove root.
type Path [][]byte

// Clone returns a deep copy of p.
func (p Path) Clone() Path {
	out := make(Path, len(p))
	for i, seg := range p {
		out[i] = append([]byte(nil), seg...)
	}
	return out
}

// Append returns a new Path with segs appended; p itself is not mutated.
func (p Path) Append(segs ...[]byte) Path {
	out := make(Path, 0, len(p)+len(segs))
	out = append(out, p...)
	out = append(out, segs...)
	return out
}

// Equal reports whether p and o address the same subtree.
func (p Path) Equal(o Path) bool {
	if len(p) != len(o) {
		return false
	}
	for i := range p {
		if !bytes.Equal(p[i], o[i]) {
			return false
		}
	}
	return true
}

// Key returns a canonical string key for p, suitable for use as a map key
// (e.g. the batch engine's per-subtree grouping and the visited-path set
// used for reference cycle detection).
func (p Path) Key() string {
	var b bytes.Buffer
	for _, seg := range p {
		var lenPrefix [4]byte
		n := len(seg)
		lenPrefix[0] = byte(n >> 24)
		lenPrefix[1] = byte(n >> 16)
		lenPrefix[2] = byte(n >> 8)
		lenPrefix[3] = byte(n)
		b.Write(lenPrefix[:])
		b.Write(seg)
	}
	return b.String()
}

// rootPrefix is the subtree prefix of the empty path (the grove root),
// fixed rather than all-zero so that the root subtree is distinguishable
// from "prefix derivation produced all zeros by coincidence".
var rootPrefix = hashutil.Sum([]byte("grovedb/root"))

// SubtreePrefix derives the 32-byte keyspace prefix for p by iteratively
// hashing each segment into the parent's prefix with Blake3 (spec.md
// §3.4). Two distinct paths can only produce the same prefix via a
// 256-bit hash collision.
func SubtreePrefix(p Path) types.Hash {
	prefix := rootPrefix
	for _, seg := range p {
		prefix = hashutil.Sum(prefix.Bytes(), seg)
	}
	return prefix
}

// Parent returns p with its last segment removed, and that last segment.
// Parent of an empty path panics — callers must check len(p) > 0 first.
func (p Path) Parent() (parent Path, last []byte) {
	if len(p) == 0 {
		panic("path: Parent called on the root path")
	}
	return p[:len(p)-1], p[len(p)-1]
}
