// Package mmr implements the Merkle Mountain Range non-Merk append
// structure (spec.md §4.6.1): a forest of perfect binary peaks, one per set
// bit in the leaf count, appended to in O(1) amortized Blake3 calls.
//
// Grounded on the teacher's trie node-cache pattern
// (_teacher/trie/database.go) for the write-through cache idea — reads must
// observe writes made earlier in the same operation even before the
// underlying transaction commits, exactly like the trie's dirty-node cache
// sitting in front of the disk-backed node reader.
package mmr

import (
	"encoding/binary"
	"math/bits"

	"github.com/bits-and-blooms/bitset"

	"github.com/grovedb/grove/hashutil"
	"github.com/grovedb/grove/internal/grovedberr"
	"github.com/grovedb/grove/keyspace"
	"github.com/grovedb/grove/types"
)

// Cache wraps a subtree-prefixed keyspace.Context with an in-memory
// overlay consulted before the underlying store on every read, so that a
// single append's merge cascade can read back nodes it just wrote within
// the same call even when the context is backed by a keyspace.
// BatchAccumulator (which buffers writes with no read-back of its own —
// see keyspace.BatchAccumulator) rather than a live transaction (spec.md
// §4.6.1's "write-through cache" requirement).
type Cache struct {
	ctx     *keyspace.Context
	pending map[string][]byte
}

// NewCache wraps ctx.
func NewCache(ctx *keyspace.Context) *Cache {
	return &Cache{ctx: ctx, pending: make(map[string][]byte)}
}

func (c *Cache) get(key []byte) ([]byte, bool, error) {
	if v, ok := c.pending[string(key)]; ok {
		return v, true, nil
	}
	has, err := c.ctx.Has(keyspace.ColumnData, key)
	if err != nil {
		return nil, false, err
	}
	if !has {
		return nil, false, nil
	}
	v, err := c.ctx.Get(keyspace.ColumnData, key)
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

func (c *Cache) put(key, value []byte) error {
	c.pending[string(key)] = value
	return c.ctx.Put(keyspace.ColumnData, key, value)
}

func positionKey(pos uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], pos)
	return b[:]
}

// node tags (spec.md §4.6.1's node encoding).
const (
	tagInternal = 0x00
	tagLeaf     = 0x01
)

func encodeInternal(h types.Hash) []byte {
	b := make([]byte, 0, 1+types.HashLength)
	b = append(b, tagInternal)
	b = append(b, h.Bytes()...)
	return b
}

func encodeLeaf(h types.Hash, value []byte) []byte {
	b := make([]byte, 0, 1+types.HashLength+4+len(value))
	b = append(b, tagLeaf)
	b = append(b, h.Bytes()...)
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(value)))
	b = append(b, lenBuf[:]...)
	b = append(b, value...)
	return b
}

// decodeNode parses a node record, rejecting trailing bytes (spec.md
// §4.6.1).
func decodeNode(raw []byte) (isLeaf bool, h types.Hash, value []byte, err error) {
	if len(raw) < 1+types.HashLength {
		return false, types.Hash{}, nil, grovedberr.New(grovedberr.KindStorage, "mmr.decodeNode", errShortRecord)
	}
	tag := raw[0]
	h.SetBytes(raw[1 : 1+types.HashLength])
	rest := raw[1+types.HashLength:]
	switch tag {
	case tagInternal:
		if len(rest) != 0 {
			return false, types.Hash{}, nil, grovedberr.New(grovedberr.KindStorage, "mmr.decodeNode", errTrailingBytes)
		}
		return false, h, nil, nil
	case tagLeaf:
		if len(rest) < 4 {
			return false, types.Hash{}, nil, grovedberr.New(grovedberr.KindStorage, "mmr.decodeNode", errShortRecord)
		}
		vlen := binary.BigEndian.Uint32(rest[:4])
		body := rest[4:]
		if uint32(len(body)) != vlen {
			return false, types.Hash{}, nil, grovedberr.New(grovedberr.KindStorage, "mmr.decodeNode", errTrailingBytes)
		}
		return true, h, append([]byte(nil), body...), nil
	default:
		return false, types.Hash{}, nil, grovedberr.New(grovedberr.KindStorage, "mmr.decodeNode", errUnknownTag)
	}
}

var (
	errShortRecord   = simpleErr("mmr: node record too short")
	errTrailingBytes = simpleErr("mmr: node record has wrong length")
	errUnknownTag    = simpleErr("mmr: unknown node tag")
)

type simpleErr string

func (e simpleErr) Error() string { return string(e) }

// Tree is an MMR bound to a subtree's data keyspace.
type Tree struct {
	cache     *Cache
	leafCount uint64
	size      uint64
}

// Open wraps an existing MMR whose persisted element carries leafCount
// (spec.md's MmrTree element field); mmr_size is recomputed from leafCount
// since every append grows the tree by a fixed, leaf-count-determined
// amount, so persisting both would be redundant.
func Open(ctx *keyspace.Context, leafCount uint64) *Tree {
	return &Tree{cache: NewCache(ctx), leafCount: leafCount, size: leafToPos(leafCount)}
}

// Size returns the current mmr_size (total node count, leaves+internal).
func (t *Tree) Size() uint64 { return t.size }

// LeafCount returns the number of leaves appended so far.
func (t *Tree) LeafCount() uint64 { return t.leafCount }

// peakBitmap returns the bitset over n's binary representation: bit i set
// means the forest with leaf count n currently has a peak of height i
// (spec.md §4.6.1 — a mountain range has exactly one peak per set bit of
// the leaf count). This is the bitmap the merge cascade depth and peak
// count are both read off of.
func peakBitmap(n uint64) *bitset.BitSet {
	bs := bitset.New(64)
	for i := uint(0); i < 64; i++ {
		if n&(uint64(1)<<i) != 0 {
			bs.Set(i)
		}
	}
	return bs
}

// trailingOnes counts the number of trailing 1 bits in n's binary
// representation (spec.md §4.6.1's merge cascade depth): the number of
// contiguous low-height peaks the next append will merge into one.
func trailingOnes(n uint64) int {
	bs := peakBitmap(n)
	count := 0
	for bs.Test(uint(count)) {
		count++
	}
	return count
}

// PeakCount returns the number of live peaks in the forest — the
// population count of the leaf count's bitmap — which every append
// maintains as an invariant against the positions returned by getPeaks.
func (t *Tree) PeakCount() uint64 {
	return peakBitmap(t.leafCount).Count()
}

type peak struct {
	pos  uint64
	hash types.Hash
}

func (t *Tree) readHash(pos uint64) (types.Hash, error) {
	raw, ok, err := t.cache.get(positionKey(pos))
	if err != nil {
		return types.Hash{}, err
	}
	if !ok {
		return types.Hash{}, grovedberr.New(grovedberr.KindStorage, "mmr.readHash", errShortRecord)
	}
	_, h, _, err := decodeNode(raw)
	return h, err
}

func (t *Tree) currentPeaks() ([]peak, error) {
	positions := getPeaks(t.size)
	peaks := make([]peak, len(positions))
	for i, pos := range positions {
		h, err := t.readHash(pos)
		if err != nil {
			return nil, err
		}
		peaks[i] = peak{pos: pos, hash: h}
	}
	return peaks, nil
}

// bagPeaks right-to-left per spec.md §4.6.1: root = fold(peaks, (acc,p) →
// Blake3(p ‖ acc)), starting from the rightmost peak.
func bagPeaks(peaks []peak) types.Hash {
	if len(peaks) == 0 {
		return types.ZeroHash
	}
	acc := peaks[len(peaks)-1].hash
	for i := len(peaks) - 2; i >= 0; i-- {
		acc = hashutil.Sum(peaks[i].hash.Bytes(), acc.Bytes())
	}
	return acc
}

// Root recomputes the current root by bagging the live peaks.
func (t *Tree) Root() (types.Hash, error) {
	if t.size == 0 {
		return types.ZeroHash, nil
	}
	peaks, err := t.currentPeaks()
	if err != nil {
		return types.Hash{}, err
	}
	return bagPeaks(peaks), nil
}

// Append writes value as the next leaf, performing the merge cascade, and
// returns the new root plus the tree's updated size (spec.md §4.6.1).
func (t *Tree) Append(value []byte) (types.Hash, error) {
	var existingPeaks []peak
	var err error
	if t.size > 0 {
		existingPeaks, err = t.currentPeaks()
		if err != nil {
			return types.Hash{}, err
		}
	}

	leafPos := t.size
	leafHash := hashutil.ValueHash(value)
	if err := t.cache.put(positionKey(leafPos), encodeLeaf(leafHash, value)); err != nil {
		return types.Hash{}, err
	}
	t.size++

	mergeCount := trailingOnes(t.leafCount)
	curHash := leafHash
	curPos := leafPos
	for i := 0; i < mergeCount; i++ {
		sibling := existingPeaks[len(existingPeaks)-1-i]
		parentHash := hashutil.Sum(sibling.hash.Bytes(), curHash.Bytes())
		parentPos := t.size
		if err := t.cache.put(positionKey(parentPos), encodeInternal(parentHash)); err != nil {
			return types.Hash{}, err
		}
		t.size++
		curHash = parentHash
		curPos = parentPos
	}
	_ = curPos
	t.leafCount++

	finalPeaks := append(append([]peak(nil), existingPeaks[:len(existingPeaks)-mergeCount]...), peak{pos: curPos, hash: curHash})
	return bagPeaks(finalPeaks), nil
}

// leafToPos computes the array position of the n-th (0-indexed) leaf by
// replaying the size growth of every append before it (spec.md §4.6.1).
func leafToPos(n uint64) uint64 {
	var size uint64
	for k := uint64(0); k < n; k++ {
		size += 1 + uint64(trailingOnes(k))
	}
	return size
}

// posHeightInTree returns the height (0 = leaf) of the node at 0-indexed
// position pos within the MMR's flat array addressing scheme.
func posHeightInTree(pos uint64) uint64 {
	p := pos + 1
	for !allOnes(p) {
		p = jumpLeft(p)
	}
	return bitLength(p) - 1
}

func allOnes(n uint64) bool {
	if n == 0 {
		return false
	}
	bl := bitLength(n)
	return n == (uint64(1)<<bl)-1
}

func bitLength(n uint64) uint64 { return uint64(bits.Len64(n)) }

func jumpLeft(pos uint64) uint64 {
	bl := bitLength(pos)
	msb := uint64(1) << (bl - 1)
	return pos - (msb - 1)
}

func parentOffset(height uint64) uint64  { return 2 << height }
func siblingOffset(height uint64) uint64 { return (2 << height) - 1 }

// getPeakPosByHeight returns the position a peak of the given height would
// occupy if it were the very first (leftmost) structure in the MMR.
func getPeakPosByHeight(height uint64) uint64 { return (uint64(1) << (height + 1)) - 2 }

// getPeaks returns the positions of every current peak, ordered left to
// right (ascending position, descending height).
func getPeaks(mmrSize uint64) []uint64 {
	if mmrSize == 0 {
		return nil
	}
	height, pos := leftPeakHeightPos(mmrSize)
	out := []uint64{pos}
	for height > 0 {
		nh, np, ok := getRightPeak(height, pos, mmrSize)
		if !ok {
			break
		}
		height, pos = nh, np
		out = append(out, pos)
	}
	return out
}

func leftPeakHeightPos(mmrSize uint64) (height, pos uint64) {
	height = 1
	var prevPos uint64
	p := getPeakPosByHeight(height)
	for p < mmrSize {
		height++
		prevPos = p
		p = getPeakPosByHeight(height)
	}
	return height - 1, prevPos
}

func getRightPeak(height, pos, mmrSize uint64) (newHeight, newPos uint64, ok bool) {
	candidate := pos + siblingOffset(height)
	for candidate > mmrSize-1 {
		if height == 0 {
			return 0, 0, false
		}
		height--
		candidate -= parentOffset(height)
	}
	return height, candidate, true
}

// isRightChild reports whether pos (at the given height) is the right
// child of its parent: true iff the node immediately after it sits one
// height higher (its parent), per this addressing scheme's structure.
func isRightChild(pos, height uint64) bool {
	return posHeightInTree(pos+1) > height
}

func parentOf(pos, height uint64) uint64 {
	if isRightChild(pos, height) {
		return pos + 1
	}
	return pos + parentOffset(height)
}

func siblingOf(pos, height uint64) uint64 {
	if isRightChild(pos, height) {
		return pos - siblingOffset(height)
	}
	return pos + siblingOffset(height)
}
