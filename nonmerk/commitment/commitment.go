// Package commitment implements the commitment tree non-Merk structure
// (spec.md §4.6.4): a ZK-friendly authenticated append log pairing a
// depth-32 frontier (O(1) root, no full tree materialized) with a
// standalone BulkAppendTree holding the full (commitment, ciphertext)
// payloads for retrieval and range proofs. Grounded on the teacher's light
// client header chain (_teacher/light), which likewise tracks only a
// bounded "current tip plus ancestor checkpoints" shape rather than
// materializing full history, generalized here from a linear chain to a
// binary frontier.
package commitment

import (
	"encoding/binary"
	"math/bits"

	"github.com/grovedb/grove/hashutil"
	"github.com/grovedb/grove/internal/grovedberr"
	"github.com/grovedb/grove/keyspace"
	"github.com/grovedb/grove/nonmerk/bulkappend"
	"github.com/grovedb/grove/types"
)

// Depth is the fixed frontier depth (spec.md §4.6.4).
const Depth = 32

var (
	frontierTag = []byte("__ct_data__")
	payloadTag  = []byte("ct_bulk")
)

// FrontierHasher is the pluggable algebraic hash primitive used inside the
// frontier (spec.md §4.6.4: "the frontier algebraic hash is a pluggable
// primitive"). The production circuit hash (e.g. Sinsemilla) is out of
// scope; Blake3Hasher below is the default stand-in, with calls counted
// separately as sinsemilla_hash_calls in the cost monad.
type FrontierHasher interface {
	Hash(left, right types.Hash) types.Hash
}

// Blake3Hasher is the default FrontierHasher, standing in for the
// production algebraic hash (spec.md §4.6.4's Non-goal on implementing
// Sinsemilla itself).
type Blake3Hasher struct{}

func (Blake3Hasher) Hash(left, right types.Hash) types.Hash {
	return hashutil.Sum(left.Bytes(), right.Bytes())
}

// Frontier holds, for every level where a complete left-hand subtree is
// still waiting for its right-hand sibling to be appended, that subtree's
// "ommer" hash. The set of levels currently holding a real ommer is always
// exactly the set bits of Position() — the same binary-counter invariant
// an MMR's peak list follows — since appending a leaf is a "+1" on that
// counter: it cascades-merges every trailing one-bit level and sets the
// next zero-bit level, identically to nonmerk/mmr's leaf-merge cascade.
type Frontier struct {
	hasher   FrontierHasher
	position uint64
	ommers   [Depth]types.Hash
	have     uint32 // bitmask: bit i set iff ommers[i] holds a real ommer
	empty    [Depth + 1]types.Hash
}

// NewFrontier starts an empty frontier. empty[0] is the zero-leaf
// sentinel and empty[L] = Hash(empty[L-1], empty[L-1]) is the canonical
// hash of a fully-empty subtree of 2^L leaves — precomputed once so Root
// can fold a real ommer against "everything to its right is still empty"
// at the correct per-level value instead of reusing one flat sentinel.
func NewFrontier(hasher FrontierHasher) *Frontier {
	if hasher == nil {
		hasher = Blake3Hasher{}
	}
	f := &Frontier{hasher: hasher}
	f.empty[0] = types.ZeroHash
	for level := 1; level <= Depth; level++ {
		f.empty[level] = hasher.Hash(f.empty[level-1], f.empty[level-1])
	}
	return f
}

// Position returns the number of leaves appended so far.
func (f *Frontier) Position() uint64 { return f.position }

// Append folds leafHash into the frontier and returns the new root. Cost
// is 32 + trailing_ones(position) algebraic hashes (spec.md §4.6.4): one
// merge per trailing one-bit in the pre-append position (cascading the
// binary counter forward, exactly nonmerk/mmr's merge-cascade) plus a full
// depth-32 fold to recompute the O(1) anchor root.
func (f *Frontier) Append(leafHash types.Hash) (types.Hash, error) {
	if f.position >= 1<<Depth {
		return types.Hash{}, grovedberr.New(grovedberr.KindCapacityExceeded, "commitment.Frontier.Append", errFrontierFull)
	}
	cur := leafHash
	trailingOnes := bits.TrailingZeros64(^f.position)
	if trailingOnes > Depth {
		trailingOnes = Depth
	}
	for level := 0; level < trailingOnes; level++ {
		cur = f.hasher.Hash(f.ommers[level], cur)
		f.have &^= 1 << uint(level)
	}
	if trailingOnes < Depth {
		f.ommers[trailingOnes] = cur
		f.have |= 1 << uint(trailingOnes)
	}
	// trailingOnes == Depth only on the single append that fills the
	// frontier's entire 2^32-leaf capacity; no ommer slot is needed since
	// the capacity check above rejects every subsequent append.
	f.position++
	return f.Root(), nil
}

var errFrontierFull = simpleErr("commitment: frontier is at its depth-32 leaf capacity")

// Root folds every pending ommer against the appropriate per-level empty
// subtree into a single depth-32 anchor, treating every leaf position at
// or beyond Position() as empty (spec.md §4.6.4's "root is O(1) from the
// frontier" — this is an O(depth) fold over a fixed-size array, not a
// walk over history).
func (f *Frontier) Root() types.Hash {
	cur := f.empty[0]
	for level := 0; level < Depth; level++ {
		if f.have&(1<<uint(level)) != 0 {
			cur = f.hasher.Hash(f.ommers[level], cur)
		} else {
			cur = f.hasher.Hash(cur, f.empty[level])
		}
	}
	return cur
}

// serialize packs the frontier into the ≤~1 KiB wire format of spec.md
// §4.6.4: position (8 bytes), the have-bitmask (4 bytes), then every set
// ommer in level order (32 bytes each). The per-level empty-subtree table
// is deterministic from the hasher and never persisted.
func (f *Frontier) serialize() []byte {
	out := make([]byte, 0, 8+4+32*Depth)
	var posBuf [8]byte
	binary.BigEndian.PutUint64(posBuf[:], f.position)
	out = append(out, posBuf[:]...)
	var haveBuf [4]byte
	binary.BigEndian.PutUint32(haveBuf[:], f.have)
	out = append(out, haveBuf[:]...)
	for level := 0; level < Depth; level++ {
		if f.have&(1<<uint(level)) != 0 {
			out = append(out, f.ommers[level].Bytes()...)
		}
	}
	return out
}

func deserializeFrontier(raw []byte, hasher FrontierHasher) (*Frontier, error) {
	if len(raw) < 8+4 {
		return nil, grovedberr.New(grovedberr.KindStorage, "commitment.deserializeFrontier", errShortFrontier)
	}
	f := NewFrontier(hasher)
	f.position = binary.BigEndian.Uint64(raw[:8])
	f.have = binary.BigEndian.Uint32(raw[8:12])
	rest := raw[12:]
	for level := 0; level < Depth; level++ {
		if f.have&(1<<uint(level)) != 0 {
			if len(rest) < 32 {
				return nil, grovedberr.New(grovedberr.KindStorage, "commitment.deserializeFrontier", errShortFrontier)
			}
			f.ommers[level] = types.BytesToHash(rest[:32])
			rest = rest[32:]
		}
	}
	return f, nil
}

var errShortFrontier = simpleErr("commitment: truncated frontier blob")

type simpleErr string

func (e simpleErr) Error() string { return string(e) }

// Tree pairs a frontier with a BulkAppendTree of full payloads, sharing one
// subtree's data namespace under two disjoint key prefixes (spec.md
// §4.6.4).
type Tree struct {
	ctx      *keyspace.Context
	hasher   FrontierHasher
	frontier *Frontier
	payloads *bulkappend.Tree
}

// Payload is one committed (commitment, ciphertext) entry.
type Payload struct {
	Commitment []byte
	Ciphertext []byte
}

func (p Payload) encode() []byte {
	out := make([]byte, 0, 4+len(p.Commitment)+len(p.Ciphertext))
	var l [4]byte
	binary.BigEndian.PutUint32(l[:], uint32(len(p.Commitment)))
	out = append(out, l[:]...)
	out = append(out, p.Commitment...)
	out = append(out, p.Ciphertext...)
	return out
}

func decodePayload(raw []byte) (Payload, error) {
	if len(raw) < 4 {
		return Payload{}, grovedberr.New(grovedberr.KindStorage, "commitment.decodePayload", errShortFrontier)
	}
	n := binary.BigEndian.Uint32(raw[:4])
	rest := raw[4:]
	if uint32(len(rest)) < n {
		return Payload{}, grovedberr.New(grovedberr.KindStorage, "commitment.decodePayload", errShortFrontier)
	}
	return Payload{
		Commitment: append([]byte(nil), rest[:n]...),
		Ciphertext: append([]byte(nil), rest[n:]...),
	}, nil
}

// frontierKey is the well-known key under which the frontier blob lives
// within the tree's data namespace.
var frontierKey = append([]byte(nil), frontierTag...)

// Open wraps an existing commitment tree whose persisted element carries
// the bulk-append sizing fields; the frontier blob itself is read from
// storage (or starts empty if absent).
func Open(ctx *keyspace.Context, hasher FrontierHasher, totalCount uint64, chunkPower uint8, bufferCount uint16, mmrLeafCount uint64) (*Tree, error) {
	if hasher == nil {
		hasher = Blake3Hasher{}
	}
	raw, err := ctx.Get(keyspace.ColumnData, frontierKey)
	if err != nil {
		return nil, err
	}
	var f *Frontier
	if raw == nil {
		f = NewFrontier(hasher)
	} else {
		f, err = deserializeFrontier(raw, hasher)
		if err != nil {
			return nil, err
		}
	}
	return &Tree{
		ctx:      ctx,
		hasher:   hasher,
		frontier: f,
		payloads: bulkappend.Open(ctx.Sub(payloadTag), totalCount, chunkPower, bufferCount, mmrLeafCount),
	}, nil
}

// Count returns the number of entries appended.
func (t *Tree) Count() uint64 { return t.frontier.Position() }

// StateRoot is Blake3("ct_state" ‖ frontier_root ‖ bulk_state_root)
// (spec.md §4.6.4).
func (t *Tree) StateRoot() (types.Hash, error) {
	bulkRoot, err := t.payloads.StateRoot()
	if err != nil {
		return types.Hash{}, err
	}
	return hashutil.Sum([]byte("ct_state"), t.frontier.Root().Bytes(), bulkRoot.Bytes()), nil
}

// Append commits payload: the frontier advances by Blake3(commitment) (the
// leaf hash; the production algebraic leaf hash is the same pluggable
// primitive as every other frontier level) and the full payload is pushed
// onto the BulkAppendTree in lockstep, then the frontier blob is persisted
// and the new combined state root returned.
func (t *Tree) Append(p Payload) (types.Hash, error) {
	leafHash := hashutil.Sum(p.Commitment)
	if _, err := t.frontier.Append(leafHash); err != nil {
		return types.Hash{}, err
	}

	if _, err := t.payloads.Append(p.encode()); err != nil {
		return types.Hash{}, err
	}
	if err := t.ctx.Put(keyspace.ColumnData, frontierKey, t.frontier.serialize()); err != nil {
		return types.Hash{}, err
	}
	return t.StateRoot()
}

// GetPayload retrieves the (commitment, ciphertext) payload at position,
// resolving through the payload BulkAppendTree's sealed chunks or live
// buffer transparently.
func (t *Tree) GetPayload(position uint64) (Payload, bool, error) {
	raw, ok, err := t.payloads.Get(position)
	if err != nil || !ok {
		return Payload{}, ok, err
	}
	p, err := decodePayload(raw)
	if err != nil {
		return Payload{}, false, err
	}
	return p, true, nil
}

// ChunkMMRLeafCount and ChunkMMRSize expose the payload BulkAppendTree's
// persisted sizing fields, needed to reconstruct the element on the next
// Open.
func (t *Tree) ChunkMMRLeafCount() uint64 { return t.payloads.ChunkMMRLeafCount() }
func (t *Tree) ChunkMMRSize() uint64      { return t.payloads.ChunkMMRSize() }
func (t *Tree) BufferCount() uint16       { return t.payloads.BufferCount() }
