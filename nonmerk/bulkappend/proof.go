package bulkappend

import (
	"bytes"

	"github.com/grovedb/grove/keyspace"
	"github.com/grovedb/grove/nonmerk/dense"
	"github.com/grovedb/grove/nonmerk/mmr"
	"github.com/grovedb/grove/path"
	"github.com/grovedb/grove/types"
)

// RangeProof is a BulkAppendTree range proof (spec.md §4.6.2): the full
// serialized blob of every completed chunk overlapping the requested range,
// an MMR inclusion proof per referenced chunk position, and every entry
// currently sitting in the live buffer (the buffer has no authenticated
// sub-proof of its own — the caller re-derives its root from the supplied
// entries and compares against the state root's buffer-root component).
type RangeProof struct {
	ChunkBlobs  [][]byte
	ChunkProofs []mmr.Proof
	BufferEntries [][]byte
}

// ProveRange builds a RangeProof covering every completed chunk in
// [firstChunk, lastChunk] plus the live buffer's current contents.
func (t *Tree) ProveRange(firstChunk, lastChunk uint64) (RangeProof, error) {
	var rp RangeProof
	for idx := firstChunk; idx <= lastChunk && idx < t.chunks.LeafCount(); idx++ {
		blob, err := t.ctx.Get(keyspace.ColumnData, chunkBlobKey(idx))
		if err != nil {
			return RangeProof{}, err
		}
		rp.ChunkBlobs = append(rp.ChunkBlobs, blob)

		proof, err := t.chunks.Prove(idx)
		if err != nil {
			return RangeProof{}, err
		}
		rp.ChunkProofs = append(rp.ChunkProofs, proof)
	}

	for i := uint32(0); i < uint32(t.buffer.Count()); i++ {
		v, ok, err := t.buffer.Get(i)
		if err != nil {
			return RangeProof{}, err
		}
		if ok {
			rp.BufferEntries = append(rp.BufferEntries, v)
		}
	}
	return rp, nil
}

// VerifyRange checks a RangeProof against the chunk-MMR size/root: each
// supplied chunk blob is decoded and re-hashed through a scratch dense tree
// exactly as it was originally sealed (spec.md §4.6.2: the chunk's dense
// root is what becomes the chunk-MMR leaf value), and the resulting root
// must match the value the accompanying MMR inclusion proof actually
// proves — not merely decode cleanly — before the MMR proof itself is
// checked against mmrRoot.
func VerifyRange(rp RangeProof, chunkPower uint8, mmrSize uint64, mmrRoot types.Hash) bool {
	if len(rp.ChunkBlobs) != len(rp.ChunkProofs) {
		return false
	}
	for i, blob := range rp.ChunkBlobs {
		entries, err := decodeChunkBlob(blob)
		if err != nil || entries == nil {
			return false
		}

		scratch := dense.Open(scratchContext(), chunkPower, 0)
		var chunkRoot types.Hash
		for _, e := range entries {
			chunkRoot, err = scratch.Insert(e)
			if err != nil {
				return false
			}
		}
		if !bytes.Equal(chunkRoot.Bytes(), rp.ChunkProofs[i].LeafValue) {
			return false
		}

		if !mmr.Verify(rp.ChunkProofs[i], mmrSize, mmrRoot) {
			return false
		}
	}
	return true
}

func scratchContext() *keyspace.Context {
	store := keyspace.NewMemoryStore()
	prefix := path.SubtreePrefix(path.Path{[]byte("bulkappend-verify-scratch")})
	return keyspace.NewContext(store, prefix.Bytes())
}
