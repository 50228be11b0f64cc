// Package bulkappend implements the BulkAppendTree non-Merk structure
// (spec.md §4.6.2): a fixed-capacity dense Merkle buffer that, each time it
// fills, is sealed into a chunk blob whose root becomes one leaf of a
// chunk-level MMR. Grounded on the teacher's chain freezer
// (_teacher/core/rawdb/freezer.go)'s two-level "hot buffer, cold
// append-only segment" layout, generalized from byte-range segments to
// Merkle-committed chunks.
package bulkappend

import (
	"encoding/binary"

	"github.com/grovedb/grove/hashutil"
	"github.com/grovedb/grove/keyspace"
	"github.com/grovedb/grove/nonmerk/dense"
	"github.com/grovedb/grove/nonmerk/mmr"
	"github.com/grovedb/grove/types"
)

var (
	bufferTag = []byte("buf")
	chunkTag  = []byte("chk")
)

// Tree is a BulkAppendTree bound to a subtree's data keyspace.
type Tree struct {
	ctx        *keyspace.Context
	chunkPower uint8
	totalCount uint64

	buffer *dense.Tree
	chunks *mmr.Tree
}

// Open wraps an existing BulkAppendTree whose persisted element carries
// totalCount and chunkPower, plus the live buffer fill level and chunk-MMR
// leaf count needed to resume both substructures.
func Open(ctx *keyspace.Context, totalCount uint64, chunkPower uint8, bufferCount uint16, mmrLeafCount uint64) *Tree {
	return &Tree{
		ctx:        ctx,
		chunkPower: chunkPower,
		totalCount: totalCount,
		buffer:     dense.Open(ctx.Sub(append(append([]byte(nil), bufferTag...), bufferEpoch(totalCount, chunkPower)...)), chunkPower, bufferCount),
		chunks:     mmr.Open(ctx.Sub(chunkTag), mmrLeafCount),
	}
}

// bufferEpoch derives a distinct buffer sub-namespace per chunk generation,
// so a sealed buffer's old positions never collide with the next
// generation's fresh buffer sharing position 0 (spec.md §4.6.2: the buffer
// resets after every seal).
func bufferEpoch(totalCount uint64, chunkPower uint8) []byte {
	chunkSize := uint64(1)<<chunkPower - 1
	if chunkSize == 0 {
		chunkSize = 1
	}
	epoch := totalCount / chunkSize
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], epoch)
	return b[:]
}

// TotalCount returns the number of entries appended across the tree's
// whole lifetime.
func (t *Tree) TotalCount() uint64 { return t.totalCount }

// ChunkMMRLeafCount and ChunkMMRSize expose the chunk MMR's persisted
// sizing fields, needed by the caller to reconstruct the element on the
// next Open.
func (t *Tree) ChunkMMRLeafCount() uint64 { return t.chunks.LeafCount() }
func (t *Tree) ChunkMMRSize() uint64      { return t.chunks.Size() }

// BufferCount exposes the live buffer's fill level.
func (t *Tree) BufferCount() uint16 { return t.buffer.Count() }

// chunkSize is the number of entries a sealed chunk holds, derived from
// chunkPower the same way Append's seal trigger is.
func (t *Tree) chunkSize() uint64 {
	size := uint64(1)<<t.chunkPower - 1
	if size == 0 {
		return 1
	}
	return size
}

// Get retrieves the entry at globalPosition (0-indexed across the tree's
// whole lifetime), transparently resolving whether it lives in a sealed
// chunk blob or the live buffer.
func (t *Tree) Get(globalPosition uint64) ([]byte, bool, error) {
	if globalPosition >= t.totalCount {
		return nil, false, nil
	}
	size := t.chunkSize()
	sealedCount := t.chunks.LeafCount() * size
	if globalPosition < sealedCount {
		chunkIdx := globalPosition / size
		offset := globalPosition % size
		entries, err := t.ChunkBlob(chunkIdx)
		if err != nil {
			return nil, false, err
		}
		if offset >= uint64(len(entries)) {
			return nil, false, nil
		}
		return entries[offset], true, nil
	}
	return t.buffer.Get(uint32(globalPosition - sealedCount))
}

// StateRoot computes Blake3("bulk_state" ‖ chunk_mmr_root ‖ dense_tree_root)
// (spec.md §4.6.2).
func (t *Tree) StateRoot() (types.Hash, error) {
	chunkRoot, err := t.chunks.Root()
	if err != nil {
		return types.Hash{}, err
	}
	bufferRoot, err := t.buffer.Root()
	if err != nil {
		return types.Hash{}, err
	}
	return hashutil.Sum([]byte("bulk_state"), chunkRoot.Bytes(), bufferRoot.Bytes()), nil
}

// Append writes value into the live buffer, sealing the buffer into a new
// chunk-MMR leaf whenever it fills, and returns the tree's new state root
// (spec.md §4.6.2).
func (t *Tree) Append(value []byte) (types.Hash, error) {
	bufferRoot, err := t.buffer.Insert(value)
	if err != nil {
		return types.Hash{}, err
	}
	t.totalCount++

	if uint32(t.buffer.Count()) == t.buffer.Capacity() {
		blob, err := t.sealChunkBlob()
		if err != nil {
			return types.Hash{}, err
		}
		_ = blob // persisted by sealChunkBlob itself
		if _, err := t.chunks.Append(bufferRoot.Bytes()); err != nil {
			return types.Hash{}, err
		}
		t.buffer = dense.Open(t.ctx.Sub(append(append([]byte(nil), bufferTag...), bufferEpoch(t.totalCount, t.chunkPower)...)), t.chunkPower, 0)
	}

	return t.StateRoot()
}

// sealChunkBlob serializes the full buffer into the chunk blob format of
// spec.md §4.6.2: a 1-byte flag (0x01 fixed-size, 0x00 variable-size)
// followed by either `count_u32 ‖ size_u32 ‖ entries` or a sequence of
// `len_u32 ‖ entry`, selected automatically by whether every entry in the
// buffer has the same length. The blob is written to the chunk keyspace
// under the chunk's leaf index so it can be retrieved by position later.
func (t *Tree) sealChunkBlob() ([]byte, error) {
	count := t.buffer.Count()
	entries := make([][]byte, 0, count)
	uniform := true
	var size uint32
	for i := uint32(0); i < uint32(count); i++ {
		v, ok, err := t.buffer.Get(i)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		entries = append(entries, v)
		if i == 0 {
			size = uint32(len(v))
		} else if uint32(len(v)) != size {
			uniform = false
		}
	}

	var blob []byte
	if uniform {
		blob = append(blob, 0x01)
		blob = appendU32(blob, uint32(len(entries)))
		blob = appendU32(blob, size)
		for _, e := range entries {
			blob = append(blob, e...)
		}
	} else {
		blob = append(blob, 0x00)
		for _, e := range entries {
			blob = appendU32(blob, uint32(len(e)))
			blob = append(blob, e...)
		}
	}

	key := chunkBlobKey(t.chunks.LeafCount())
	if err := t.ctx.Put(keyspace.ColumnData, key, blob); err != nil {
		return nil, err
	}
	return blob, nil
}

func chunkBlobKey(chunkIndex uint64) []byte {
	b := make([]byte, 1+8)
	b[0] = 'b'
	binary.BigEndian.PutUint64(b[1:], chunkIndex)
	return b
}

func appendU32(b []byte, v uint32) []byte {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	return append(b, tmp[:]...)
}

// decodeChunkBlob parses the format written by sealChunkBlob.
func decodeChunkBlob(blob []byte) ([][]byte, error) {
	if len(blob) == 0 {
		return nil, errEmptyBlob
	}
	flag := blob[0]
	rest := blob[1:]
	var out [][]byte
	if flag == 0x01 {
		if len(rest) < 8 {
			return nil, errShortBlob
		}
		n := binary.BigEndian.Uint32(rest[:4])
		size := binary.BigEndian.Uint32(rest[4:8])
		body := rest[8:]
		for i := uint32(0); i < n; i++ {
			if uint32(len(body)) < size {
				return nil, errShortBlob
			}
			out = append(out, append([]byte(nil), body[:size]...))
			body = body[size:]
		}
	} else {
		body := rest
		for len(body) > 0 {
			if len(body) < 4 {
				return nil, errShortBlob
			}
			l := binary.BigEndian.Uint32(body[:4])
			body = body[4:]
			if uint32(len(body)) < l {
				return nil, errShortBlob
			}
			out = append(out, append([]byte(nil), body[:l]...))
			body = body[l:]
		}
	}
	return out, nil
}

var (
	errEmptyBlob = simpleErr("bulkappend: empty chunk blob")
	errShortBlob = simpleErr("bulkappend: truncated chunk blob")
)

type simpleErr string

func (e simpleErr) Error() string { return string(e) }

// ChunkBlob retrieves and decodes the sealed chunk at chunkIndex.
func (t *Tree) ChunkBlob(chunkIndex uint64) ([][]byte, error) {
	raw, err := t.ctx.Get(keyspace.ColumnData, chunkBlobKey(chunkIndex))
	if err != nil {
		return nil, err
	}
	return decodeChunkBlob(raw)
}
