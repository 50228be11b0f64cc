// Package dense implements the non-Merk complete binary tree of spec.md
// §4.6.3: every position, internal or leaf, holds a value; positions fill
// in level order; the root is recomputed recursively from position 0 on
// every insertion. Grounded on the teacher's trie hasher
// (_teacher/trie/hasher.go)'s recursive bottom-up hash recomputation,
// simplified from a sparse radix structure down to a flat complete binary
// array since dense trees here are bounded (height ≤ 16, capacity ≤
// 65 535).
package dense

import (
	"encoding/binary"

	"github.com/grovedb/grove/hashutil"
	"github.com/grovedb/grove/internal/grovedberr"
	"github.com/grovedb/grove/keyspace"
	"github.com/grovedb/grove/types"
)

// MaxHeight is the largest supported tree height (spec.md §4.6.3).
const MaxHeight = 16

// Tree is a dense fixed-size complete binary tree bound to a subtree's
// data keyspace.
type Tree struct {
	ctx    *keyspace.Context
	height uint8
	count  uint16
}

// Open wraps an existing dense tree whose persisted element carries height
// and count.
func Open(ctx *keyspace.Context, height uint8, count uint16) *Tree {
	return &Tree{ctx: ctx, height: height, count: count}
}

// Capacity is 2^height - 1.
func (t *Tree) Capacity() uint32 { return (uint32(1) << t.height) - 1 }

// Count returns the number of filled positions.
func (t *Tree) Count() uint16 { return t.count }

func positionKey(pos uint32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], pos)
	return b[:]
}

// Insert appends value at the next free position (level order) and returns
// the tree's new root. Returns a CapacityExceeded error if the tree is
// already full (spec.md §4.8).
func (t *Tree) Insert(value []byte) (types.Hash, error) {
	if uint32(t.count) >= t.Capacity() {
		return types.Hash{}, grovedberr.New(grovedberr.KindCapacityExceeded, "dense.Insert", errFull)
	}
	pos := uint32(t.count)
	if err := t.ctx.Put(keyspace.ColumnData, positionKey(pos), value); err != nil {
		return types.Hash{}, err
	}
	t.count++
	return t.Root()
}

var errFull = simpleErr("dense: tree is at capacity")

type simpleErr string

func (e simpleErr) Error() string { return string(e) }

func left(pos uint32) uint32  { return 2*pos + 1 }
func right(pos uint32) uint32 { return 2*pos + 2 }

// Root recomputes the root hash from position 0 (spec.md §4.6.3): an
// unfilled position is the zero sentinel; otherwise
// Blake3(Blake3(value) ‖ H(left) ‖ H(right)). An entirely empty tree is
// the zero sentinel.
func (t *Tree) Root() (types.Hash, error) {
	if t.count == 0 {
		return types.ZeroHash, nil
	}
	return t.hashAt(0)
}

func (t *Tree) hashAt(pos uint32) (types.Hash, error) {
	if pos >= uint32(t.count) {
		return types.ZeroHash, nil
	}
	value, err := t.ctx.Get(keyspace.ColumnData, positionKey(pos))
	if err != nil {
		return types.Hash{}, err
	}
	lh, err := t.hashAt(left(pos))
	if err != nil {
		return types.Hash{}, err
	}
	rh, err := t.hashAt(right(pos))
	if err != nil {
		return types.Hash{}, err
	}
	valueHash := hashutil.Sum(value)
	return hashutil.Sum(valueHash.Bytes(), lh.Bytes(), rh.Bytes()), nil
}

// Get reads the value at pos, or (nil,false) if pos is beyond count.
func (t *Tree) Get(pos uint32) ([]byte, bool, error) {
	if pos >= uint32(t.count) {
		return nil, false, nil
	}
	v, err := t.ctx.Get(keyspace.ColumnData, positionKey(pos))
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}
