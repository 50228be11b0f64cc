package mmr

import (
	"testing"

	"github.com/grovedb/grove/keyspace"
	"github.com/grovedb/grove/path"
	"github.com/grovedb/grove/types"
)

func newCtx() *keyspace.Context {
	store := keyspace.NewMemoryStore()
	prefix := path.SubtreePrefix(path.Path{[]byte("mmr-subtree")})
	return keyspace.NewContext(store, prefix.Bytes())
}

func TestAppendSingleLeafRootIsLeafHash(t *testing.T) {
	tree := Open(newCtx(), 0)
	root, err := tree.Append([]byte("a"))
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if root.IsZero() {
		t.Fatalf("expected non-zero root")
	}
	if tree.Size() != 1 {
		t.Fatalf("size = %d, want 1", tree.Size())
	}
	if tree.LeafCount() != 1 {
		t.Fatalf("leafCount = %d, want 1", tree.LeafCount())
	}
}

func TestAppendSizeMatchesFormula(t *testing.T) {
	tree := Open(newCtx(), 0)
	leaves := []string{"a", "b", "c", "d", "e", "f", "g", "h", "i"}
	for _, v := range leaves {
		if _, err := tree.Append([]byte(v)); err != nil {
			t.Fatalf("Append(%q): %v", v, err)
		}
	}
	// mmr_size = 2*leaves - popcount(leaves); popcount(9) = 2
	want := uint64(2*9 - 2)
	if tree.Size() != want {
		t.Fatalf("size = %d, want %d", tree.Size(), want)
	}
}

func TestAppendRootChangesEveryTime(t *testing.T) {
	tree := Open(newCtx(), 0)
	seen := map[string]bool{}
	for _, v := range []string{"a", "b", "c", "d", "e"} {
		root, err := tree.Append([]byte(v))
		if err != nil {
			t.Fatalf("Append: %v", err)
		}
		key := root.Hex()
		if seen[key] {
			t.Fatalf("root repeated after appending %q", v)
		}
		seen[key] = true
	}
}

func TestRootMatchesAppendReturnValue(t *testing.T) {
	tree := Open(newCtx(), 0)
	var last types.Hash
	for _, v := range []string{"a", "b", "c", "d"} {
		r, err := tree.Append([]byte(v))
		if err != nil {
			t.Fatalf("Append: %v", err)
		}
		last = r
	}
	recomputed, err := tree.Root()
	if err != nil {
		t.Fatalf("Root: %v", err)
	}
	if recomputed != last {
		t.Fatalf("Root() = %x, want %x", recomputed, last)
	}
}

func TestProveAndVerifyEachLeaf(t *testing.T) {
	tree := Open(newCtx(), 0)
	leaves := []string{"a", "b", "c", "d", "e", "f", "g"}
	var root types.Hash
	for _, v := range leaves {
		r, err := tree.Append([]byte(v))
		if err != nil {
			t.Fatalf("Append: %v", err)
		}
		root = r
	}

	for i := range leaves {
		proof, err := tree.Prove(uint64(i))
		if err != nil {
			t.Fatalf("Prove(%d): %v", i, err)
		}
		if !Verify(proof, tree.Size(), root) {
			t.Fatalf("Verify failed for leaf %d (%q)", i, leaves[i])
		}
	}
}

func TestVerifyRejectsWrongRoot(t *testing.T) {
	tree := Open(newCtx(), 0)
	for _, v := range []string{"a", "b", "c"} {
		if _, err := tree.Append([]byte(v)); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	proof, err := tree.Prove(0)
	if err != nil {
		t.Fatalf("Prove: %v", err)
	}
	var wrongRoot types.Hash
	wrongRoot[0] = 0xFF
	if Verify(proof, tree.Size(), wrongRoot) {
		t.Fatalf("Verify should reject a wrong root")
	}
}

func TestVerifyRejectsMismatchedMmrSize(t *testing.T) {
	tree := Open(newCtx(), 0)
	var root types.Hash
	for _, v := range []string{"a", "b", "c"} {
		r, err := tree.Append([]byte(v))
		if err != nil {
			t.Fatalf("Append: %v", err)
		}
		root = r
	}
	proof, err := tree.Prove(0)
	if err != nil {
		t.Fatalf("Prove: %v", err)
	}
	if Verify(proof, tree.Size()+2, root) {
		t.Fatalf("Verify should reject a mismatched mmr_size")
	}
}
