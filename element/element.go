// Package element implements the grove's tagged element variant (spec.md
// §3.3): the fifteen discriminated payload kinds that can occupy a key in a
// Merk tree, from plain Item bytes through the aggregating Tree families to
// the four non-Merk append structures. Grounded on the teacher's RLP-tagged
// transaction envelope (_teacher/core/types, _teacher/rlp), generalized from
// "one tag byte selects one of a handful of transaction shapes" to "one tag
// byte selects one of fifteen element shapes", and on path.Reference's
// Kind-plus-optional-fields layout for the nested reference expression.
package element

import (
	"github.com/holiman/uint256"

	"github.com/grovedb/grove/path"
)

// Kind is the element's discriminant, serialized as the first byte
// (spec.md §3.3).
type Kind uint8

const (
	KindItem Kind = iota
	KindReference
	KindTree
	KindSumItem
	KindSumTree
	KindBigSumTree
	KindCountTree
	KindCountSumTree
	KindItemWithSumItem
	KindProvableCountTree
	KindProvableCountSumTree
	KindCommitmentTree
	KindMmrTree
	KindBulkAppendTree
	KindDenseFixedTree
)

func (k Kind) String() string {
	switch k {
	case KindItem:
		return "Item"
	case KindReference:
		return "Reference"
	case KindTree:
		return "Tree"
	case KindSumItem:
		return "SumItem"
	case KindSumTree:
		return "SumTree"
	case KindBigSumTree:
		return "BigSumTree"
	case KindCountTree:
		return "CountTree"
	case KindCountSumTree:
		return "CountSumTree"
	case KindItemWithSumItem:
		return "ItemWithSumItem"
	case KindProvableCountTree:
		return "ProvableCountTree"
	case KindProvableCountSumTree:
		return "ProvableCountSumTree"
	case KindCommitmentTree:
		return "CommitmentTree"
	case KindMmrTree:
		return "MmrTree"
	case KindBulkAppendTree:
		return "BulkAppendTree"
	case KindDenseFixedTree:
		return "DenseFixedTree"
	default:
		return "Unknown"
	}
}

// Flags is a small bitmask reserved for element-level metadata (spec.md
// §3.3's "flags" field on every variant); the grove core does not interpret
// any bit today, but serialization reserves the slot so callers can carry
// application-defined markers through proofs and propagation untouched.
type Flags uint32

// Int128 is a two's-complement signed 128-bit integer, used only by
// BigSumTree's wide sum (spec.md §3.3). Hi holds the signed high word so
// the usual two's-complement arithmetic identities apply across the pair;
// this is the wire representation. Arithmetic is performed by embedding
// the sign-extended 128-bit value into a github.com/holiman/uint256.Int
// (the pack's fixed-width integer type, otherwise used for EVM words) and
// truncating the result back to 128 bits, which is sound because addition
// modulo 2^256 agrees with addition modulo 2^128 on the low 128 bits
// regardless of what carries into the unused upper half.
type Int128 struct {
	Hi int64
	Lo uint64
}

// toWide sign-extends x into a 256-bit word.
func (x Int128) toWide() *uint256.Int {
	var buf [32]byte
	if x.Hi < 0 {
		for i := range buf[:16] {
			buf[i] = 0xff
		}
	}
	putUint64BE(buf[8:16], uint64(x.Hi))
	putUint64BE(buf[24:32], x.Lo)
	z := new(uint256.Int)
	z.SetBytes(buf[:])
	return z
}

// fromWide truncates a 256-bit word back to the low 128 bits.
func fromWide(z *uint256.Int) Int128 {
	buf := z.Bytes32()
	return Int128{
		Hi: int64(uint64BE(buf[8:16])),
		Lo: uint64BE(buf[24:32]),
	}
}

func putUint64BE(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[7-i] = byte(v)
		v >>= 8
	}
}

func uint64BE(b []byte) uint64 {
	var v uint64
	for i := 0; i < 8; i++ {
		v = v<<8 | uint64(b[i])
	}
	return v
}

// Add returns x+y, the carry (if any) propagating into Hi exactly as
// ordinary 128-bit two's-complement addition would.
func (x Int128) Add(y Int128) Int128 {
	return fromWide(new(uint256.Int).Add(x.toWide(), y.toWide()))
}

// AddInt64 returns x+y, carrying into Hi on low-word overflow.
func (x Int128) AddInt64(y int64) Int128 {
	yHi := int64(0)
	if y < 0 {
		yHi = -1
	}
	return x.Add(Int128{Hi: yHi, Lo: uint64(y)})
}

// IsZero reports whether x is exactly zero.
func (x Int128) IsZero() bool { return x.Hi == 0 && x.Lo == 0 }

// Element is every grove payload shape in one flat struct, selected by
// Kind; fields irrelevant to the current Kind are left at their zero value.
// This mirrors path.Reference's Kind-plus-fields layout rather than an
// interface-per-variant hierarchy, since every variant shares the same
// serialization and hashing entry points and Go's lack of sum types makes a
// flat tagged struct the more direct fit (spec.md §9 calls this pattern out
// explicitly for the Merk link states; the same reasoning applies here).
type Element struct {
	Kind Kind

	// Item, ItemWithSumItem.
	Value []byte

	// Reference.
	Ref    path.Reference
	HopCap int // 0 means "use the configured default"

	// Tree-family child link: Tree, SumTree, BigSumTree, CountTree,
	// CountSumTree, ProvableCountTree, ProvableCountSumTree. nil means the
	// child subtree is currently empty (spec.md §4.4.2).
	ChildRootKey []byte

	// SumItem, SumTree, CountSumTree, ItemWithSumItem, ProvableCountSumTree.
	Sum int64

	// BigSumTree.
	BigSum Int128

	// CountTree, CountSumTree, ProvableCountTree, ProvableCountSumTree.
	Count uint64

	// CommitmentTree, BulkAppendTree: lifetime entry count and the
	// per-chunk power-of-two buffer capacity. BufferCount and MmrLeafCount
	// carry the live buffer fill level and the chunk-level MMR's leaf
	// count, both needed to resume the structure on the next Open (a
	// CommitmentTree's own frontier position is TotalCount, since every
	// Append advances both the frontier and the payload BulkAppendTree in
	// lockstep).
	TotalCount  uint64
	ChunkPower  uint8
	BufferCount uint16

	// MmrTree: leaf count alone determines mmr_size, since every append
	// grows the tree by a fixed, leaf-count-determined amount (spec.md
	// §4.6.1); also reused as BulkAppendTree/CommitmentTree's chunk-level
	// MMR leaf count.
	MmrLeafCount uint64

	// DenseFixedTree.
	DenseCount uint16
	Height     uint8

	Flags Flags
}

// NewItem constructs a plain-bytes leaf.
func NewItem(value []byte, flags Flags) Element {
	return Element{Kind: KindItem, Value: value, Flags: flags}
}

// NewReference constructs a reference element. hopCap of 0 defers to the
// grove's configured default (spec.md §3.5).
func NewReference(ref path.Reference, hopCap int, flags Flags) Element {
	return Element{Kind: KindReference, Ref: ref, HopCap: hopCap, Flags: flags}
}

// NewTree constructs a plain (non-aggregating) subtree element.
func NewTree(childRootKey []byte, flags Flags) Element {
	return Element{Kind: KindTree, ChildRootKey: childRootKey, Flags: flags}
}

// NewSumItem constructs a leaf that contributes sum to its parent SumTree.
func NewSumItem(sum int64, flags Flags) Element {
	return Element{Kind: KindSumItem, Sum: sum, Flags: flags}
}

// NewSumTree constructs a subtree that aggregates descendant SumItem and
// ItemWithSumItem values.
func NewSumTree(childRootKey []byte, sum int64, flags Flags) Element {
	return Element{Kind: KindSumTree, ChildRootKey: childRootKey, Sum: sum, Flags: flags}
}

// NewBigSumTree constructs a SumTree variant whose aggregate is wide enough
// to avoid int64 overflow across very large subtrees.
func NewBigSumTree(childRootKey []byte, sum Int128, flags Flags) Element {
	return Element{Kind: KindBigSumTree, ChildRootKey: childRootKey, BigSum: sum, Flags: flags}
}

// NewCountTree constructs a subtree that aggregates a descendant count.
func NewCountTree(childRootKey []byte, count uint64, flags Flags) Element {
	return Element{Kind: KindCountTree, ChildRootKey: childRootKey, Count: count, Flags: flags}
}

// NewCountSumTree constructs a subtree that aggregates both a count and a
// sum.
func NewCountSumTree(childRootKey []byte, count uint64, sum int64, flags Flags) Element {
	return Element{Kind: KindCountSumTree, ChildRootKey: childRootKey, Count: count, Sum: sum, Flags: flags}
}

// NewItemWithSumItem constructs a leaf carrying both opaque bytes and a sum
// contribution.
func NewItemWithSumItem(value []byte, sum int64, flags Flags) Element {
	return Element{Kind: KindItemWithSumItem, Value: value, Sum: sum, Flags: flags}
}

// NewProvableCountTree constructs a CountTree variant whose count is bound
// into the node hash (spec.md §3.1's node_hash_with_count), not merely
// carried as plain metadata.
func NewProvableCountTree(childRootKey []byte, count uint64, flags Flags) Element {
	return Element{Kind: KindProvableCountTree, ChildRootKey: childRootKey, Count: count, Flags: flags}
}

// NewProvableCountSumTree constructs a CountSumTree variant whose count and
// sum are both bound into the node hash.
func NewProvableCountSumTree(childRootKey []byte, count uint64, sum int64, flags Flags) Element {
	return Element{Kind: KindProvableCountSumTree, ChildRootKey: childRootKey, Count: count, Sum: sum, Flags: flags}
}

// NewCommitmentTree constructs a non-Merk commitment accumulator element
// (spec.md §4.6.4).
func NewCommitmentTree(totalCount uint64, chunkPower uint8, bufferCount uint16, mmrLeafCount uint64, flags Flags) Element {
	return Element{Kind: KindCommitmentTree, TotalCount: totalCount, ChunkPower: chunkPower, BufferCount: bufferCount, MmrLeafCount: mmrLeafCount, Flags: flags}
}

// NewMmrTree constructs a non-Merk Merkle Mountain Range element (spec.md
// §4.6.1).
func NewMmrTree(leafCount uint64, flags Flags) Element {
	return Element{Kind: KindMmrTree, MmrLeafCount: leafCount, Flags: flags}
}

// NewBulkAppendTree constructs a non-Merk bulk-append element (spec.md
// §4.6.2).
func NewBulkAppendTree(totalCount uint64, chunkPower uint8, bufferCount uint16, mmrLeafCount uint64, flags Flags) Element {
	return Element{Kind: KindBulkAppendTree, TotalCount: totalCount, ChunkPower: chunkPower, BufferCount: bufferCount, MmrLeafCount: mmrLeafCount, Flags: flags}
}

// NewDenseFixedTree constructs a non-Merk complete-binary-tree element
// (spec.md §4.6.3). height must be in [1,16].
func NewDenseFixedTree(count uint16, height uint8, flags Flags) Element {
	return Element{Kind: KindDenseFixedTree, DenseCount: count, Height: height, Flags: flags}
}

// IsSubtreeFamily reports whether e occupies its own child keyspace prefix
// (spec.md §3.4) rather than being a plain leaf value.
func (e Element) IsSubtreeFamily() bool {
	switch e.Kind {
	case KindTree, KindSumTree, KindBigSumTree, KindCountTree, KindCountSumTree,
		KindProvableCountTree, KindProvableCountSumTree,
		KindCommitmentTree, KindMmrTree, KindBulkAppendTree, KindDenseFixedTree:
		return true
	default:
		return false
	}
}

// IsNonMerk reports whether e is one of the four append structures that
// store their bulk data outside the Merk node format (spec.md §3.6).
func (e Element) IsNonMerk() bool {
	switch e.Kind {
	case KindCommitmentTree, KindMmrTree, KindBulkAppendTree, KindDenseFixedTree:
		return true
	default:
		return false
	}
}

// IsReference reports whether e is a reference element.
func (e Element) IsReference() bool { return e.Kind == KindReference }

// CountBoundIntoHash reports whether e's aggregate count must be folded
// into node_hash_with_count rather than left as plain sibling metadata
// (spec.md §3.1, the "Provable" CountTree variants).
func (e Element) CountBoundIntoHash() bool {
	return e.Kind == KindProvableCountTree || e.Kind == KindProvableCountSumTree
}
