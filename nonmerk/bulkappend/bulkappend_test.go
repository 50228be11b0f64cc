package bulkappend

import (
	"testing"

	"github.com/grovedb/grove/keyspace"
	"github.com/grovedb/grove/path"
	"github.com/grovedb/grove/types"
)

func newCtx() *keyspace.Context {
	store := keyspace.NewMemoryStore()
	prefix := path.SubtreePrefix(path.Path{[]byte("bulkappend-subtree")})
	return keyspace.NewContext(store, prefix.Bytes())
}

func TestAppendBelowChunkSizeKeepsChunkMMREmpty(t *testing.T) {
	tree := Open(newCtx(), 0, 2, 0, 0) // chunkPower 2: capacity 3
	for i := 0; i < 2; i++ {
		if _, err := tree.Append([]byte{byte(i)}); err != nil {
			t.Fatalf("Append %d: %v", i, err)
		}
	}
	if tree.ChunkMMRLeafCount() != 0 {
		t.Fatalf("expected no sealed chunks yet, got %d", tree.ChunkMMRLeafCount())
	}
	if tree.BufferCount() != 2 {
		t.Fatalf("expected buffer count 2, got %d", tree.BufferCount())
	}
}

func TestAppendFillingBufferSealsOneChunk(t *testing.T) {
	tree := Open(newCtx(), 0, 2, 0, 0) // capacity 3
	for i := 0; i < 3; i++ {
		if _, err := tree.Append([]byte{byte(i)}); err != nil {
			t.Fatalf("Append %d: %v", i, err)
		}
	}
	if tree.ChunkMMRLeafCount() != 1 {
		t.Fatalf("expected exactly one sealed chunk, got %d", tree.ChunkMMRLeafCount())
	}
	if tree.BufferCount() != 0 {
		t.Fatalf("expected fresh empty buffer after seal, got count %d", tree.BufferCount())
	}
}

func TestAppendAcrossMultipleChunksSealsEachInTurn(t *testing.T) {
	tree := Open(newCtx(), 0, 2, 0, 0) // capacity 3 per chunk
	for i := 0; i < 7; i++ {              // two full chunks (6) + one partial
		if _, err := tree.Append([]byte{byte(i)}); err != nil {
			t.Fatalf("Append %d: %v", i, err)
		}
	}
	if tree.ChunkMMRLeafCount() != 2 {
		t.Fatalf("expected two sealed chunks, got %d", tree.ChunkMMRLeafCount())
	}
	if tree.BufferCount() != 1 {
		t.Fatalf("expected 1 entry in the live buffer, got %d", tree.BufferCount())
	}
	if tree.TotalCount() != 7 {
		t.Fatalf("expected total count 7, got %d", tree.TotalCount())
	}
}

func TestStateRootChangesOnEveryAppend(t *testing.T) {
	tree := Open(newCtx(), 0, 2, 0, 0)
	seen := map[types.Hash]bool{}
	for i := 0; i < 10; i++ {
		root, err := tree.Append([]byte{byte(i)})
		if err != nil {
			t.Fatalf("Append %d: %v", i, err)
		}
		if seen[root] {
			t.Fatalf("state root repeated at append %d", i)
		}
		seen[root] = true
	}
}

func TestSealedChunkBlobRoundTrips(t *testing.T) {
	tree := Open(newCtx(), 0, 2, 0, 0) // capacity 3
	values := [][]byte{[]byte("aa"), []byte("bb"), []byte("cc")}
	for _, v := range values {
		if _, err := tree.Append(v); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	blob, err := tree.ChunkBlob(0)
	if err != nil {
		t.Fatalf("ChunkBlob: %v", err)
	}
	if len(blob) != len(values) {
		t.Fatalf("decoded %d entries, want %d", len(blob), len(values))
	}
	for i, v := range values {
		if string(blob[i]) != string(v) {
			t.Fatalf("entry %d = %q, want %q", i, blob[i], v)
		}
	}
}

func TestSealedChunkBlobVariableSizeRoundTrips(t *testing.T) {
	tree := Open(newCtx(), 0, 2, 0, 0) // capacity 3
	values := [][]byte{[]byte("a"), []byte("longer-value"), []byte("mid")}
	for _, v := range values {
		if _, err := tree.Append(v); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	blob, err := tree.ChunkBlob(0)
	if err != nil {
		t.Fatalf("ChunkBlob: %v", err)
	}
	if len(blob) != len(values) {
		t.Fatalf("decoded %d entries, want %d", len(blob), len(values))
	}
	for i, v := range values {
		if string(blob[i]) != string(v) {
			t.Fatalf("entry %d = %q, want %q", i, blob[i], v)
		}
	}
}

func TestProveRangeAndVerify(t *testing.T) {
	tree := Open(newCtx(), 0, 2, 0, 0) // capacity 3 per chunk
	for i := 0; i < 6; i++ {              // exactly two full chunks, empty buffer
		if _, err := tree.Append([]byte{byte(i)}); err != nil {
			t.Fatalf("Append %d: %v", i, err)
		}
	}

	rp, err := tree.ProveRange(0, 1)
	if err != nil {
		t.Fatalf("ProveRange: %v", err)
	}
	if len(rp.ChunkBlobs) != 2 {
		t.Fatalf("expected 2 chunk blobs, got %d", len(rp.ChunkBlobs))
	}

	root, err := tree.chunks.Root()
	if err != nil {
		t.Fatalf("Root: %v", err)
	}
	if !VerifyRange(rp, 2, tree.ChunkMMRSize(), root) {
		t.Fatalf("VerifyRange failed for a valid proof")
	}
}

func TestProveRangeRejectsTamperedBlob(t *testing.T) {
	tree := Open(newCtx(), 0, 2, 0, 0)
	for i := 0; i < 3; i++ {
		if _, err := tree.Append([]byte{byte(i)}); err != nil {
			t.Fatalf("Append %d: %v", i, err)
		}
	}
	rp, err := tree.ProveRange(0, 0)
	if err != nil {
		t.Fatalf("ProveRange: %v", err)
	}
	rp.ChunkBlobs[0] = append([]byte(nil), rp.ChunkBlobs[0]...)
	rp.ChunkBlobs[0][len(rp.ChunkBlobs[0])-1] ^= 0xFF

	root, err := tree.chunks.Root()
	if err != nil {
		t.Fatalf("Root: %v", err)
	}
	if VerifyRange(rp, 2, tree.ChunkMMRSize(), root) {
		t.Fatalf("VerifyRange should reject a proof whose chunk blob does not match its MMR leaf")
	}
}
