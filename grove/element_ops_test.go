package grove

import (
	"bytes"
	"testing"

	"github.com/grovedb/grove/config"
	"github.com/grovedb/grove/element"
	"github.com/grovedb/grove/path"
	"github.com/grovedb/grove/types"
)

func openTestDb(t *testing.T) *GroveDb {
	t.Helper()
	db, err := OpenMemory(config.Options{})
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	return db
}

func TestInsertGetRoundTrip(t *testing.T) {
	db := openTestDb(t)

	if err := db.Insert(nil, []byte("k1"), element.NewItem([]byte("v1"), 0), nil); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	got, err := db.Get(nil, []byte("k1"), false, nil)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Kind != element.KindItem || !bytes.Equal(got.Value, []byte("v1")) {
		t.Fatalf("unexpected element: %+v", got)
	}
}

func TestInsertIfNotExistsRejectsDuplicate(t *testing.T) {
	db := openTestDb(t)

	if err := db.InsertIfNotExists(nil, []byte("k1"), element.NewItem([]byte("v1"), 0), nil); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if err := db.InsertIfNotExists(nil, []byte("k1"), element.NewItem([]byte("v2"), 0), nil); err == nil {
		t.Fatal("expected AlreadyExists error on duplicate insert")
	}
}

func TestReplaceRequiresExisting(t *testing.T) {
	db := openTestDb(t)

	if err := db.Replace(nil, []byte("k1"), element.NewItem([]byte("v1"), 0), nil); err == nil {
		t.Fatal("expected NotFound error replacing absent key")
	}
	if err := db.Insert(nil, []byte("k1"), element.NewItem([]byte("v1"), 0), nil); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := db.Replace(nil, []byte("k1"), element.NewItem([]byte("v2"), 0), nil); err != nil {
		t.Fatalf("Replace: %v", err)
	}
	got, err := db.Get(nil, []byte("k1"), false, nil)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !bytes.Equal(got.Value, []byte("v2")) {
		t.Fatalf("Replace did not take effect: %+v", got)
	}
}

func TestDeleteLeavesChildSubtreeButRemovesPointer(t *testing.T) {
	db := openTestDb(t)

	if err := db.Insert(nil, []byte("sub"), element.NewTree(nil, 0), nil); err != nil {
		t.Fatalf("Insert tree: %v", err)
	}
	subPath := path.Path{[]byte("sub")}
	if err := db.Insert(subPath, []byte("leaf"), element.NewItem([]byte("x"), 0), nil); err != nil {
		t.Fatalf("Insert leaf: %v", err)
	}

	if err := db.Delete(nil, []byte("sub")); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := db.Get(nil, []byte("sub"), false, nil); err == nil {
		t.Fatal("expected NotFound after Delete")
	}

	// The child subtree's own data is untouched by Delete.
	leaf, err := db.Get(subPath, []byte("leaf"), false, nil)
	if err != nil {
		t.Fatalf("leaf should still exist: %v", err)
	}
	if !bytes.Equal(leaf.Value, []byte("x")) {
		t.Fatalf("unexpected leaf: %+v", leaf)
	}
}

func TestClearSubtreeWipesChildEntries(t *testing.T) {
	db := openTestDb(t)

	if err := db.Insert(nil, []byte("sub"), element.NewTree(nil, 0), nil); err != nil {
		t.Fatalf("Insert tree: %v", err)
	}
	subPath := path.Path{[]byte("sub")}
	if err := db.Insert(subPath, []byte("leaf"), element.NewItem([]byte("x"), 0), nil); err != nil {
		t.Fatalf("Insert leaf: %v", err)
	}
	if err := db.ClearSubtree(subPath, nil); err != nil {
		t.Fatalf("ClearSubtree: %v", err)
	}
	if _, err := db.Get(subPath, []byte("leaf"), false, nil); err == nil {
		t.Fatal("expected leaf to be gone after ClearSubtree")
	}
	// The parent's pointer to "sub" is untouched.
	if _, err := db.Get(nil, []byte("sub"), false, nil); err != nil {
		t.Fatalf("parent pointer should survive ClearSubtree: %v", err)
	}
}

func TestRootHashChangesOnMutationAndIsStable(t *testing.T) {
	db := openTestDb(t)

	before, err := db.RootHash(nil)
	if err != nil {
		t.Fatalf("RootHash: %v", err)
	}
	if before != types.ZeroHash {
		t.Fatalf("expected zero root hash on empty grove, got %x", before)
	}

	if err := db.Insert(nil, []byte("k1"), element.NewItem([]byte("v1"), 0), nil); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	after, err := db.RootHash(nil)
	if err != nil {
		t.Fatalf("RootHash: %v", err)
	}
	if after == before {
		t.Fatal("root hash did not change after insert")
	}

	again, err := db.RootHash(nil)
	if err != nil {
		t.Fatalf("RootHash: %v", err)
	}
	if again != after {
		t.Fatal("root hash changed without a mutation")
	}
}

func TestNestedSubtreePropagatesToRoot(t *testing.T) {
	db := openTestDb(t)

	if err := db.Insert(nil, []byte("sub"), element.NewTree(nil, 0), nil); err != nil {
		t.Fatalf("Insert tree: %v", err)
	}
	rootAfterTree, err := db.RootHash(nil)
	if err != nil {
		t.Fatalf("RootHash: %v", err)
	}

	subPath := path.Path{[]byte("sub")}
	if err := db.Insert(subPath, []byte("leaf"), element.NewItem([]byte("x"), 0), nil); err != nil {
		t.Fatalf("Insert leaf: %v", err)
	}
	rootAfterLeaf, err := db.RootHash(nil)
	if err != nil {
		t.Fatalf("RootHash: %v", err)
	}
	if rootAfterLeaf == rootAfterTree {
		t.Fatal("grove root did not change after a deeply nested mutation")
	}
}

func TestSumTreeAggregatesDirectSumItems(t *testing.T) {
	db := openTestDb(t)

	if err := db.Insert(nil, []byte("totals"), element.NewSumTree(nil, 0, 0), nil); err != nil {
		t.Fatalf("Insert sum tree: %v", err)
	}
	totalsPath := path.Path{[]byte("totals")}
	if err := db.Insert(totalsPath, []byte("a"), element.NewSumItem(5, 0), nil); err != nil {
		t.Fatalf("Insert sum item a: %v", err)
	}
	if err := db.Insert(totalsPath, []byte("b"), element.NewSumItem(7, 0), nil); err != nil {
		t.Fatalf("Insert sum item b: %v", err)
	}

	got, err := db.Get(nil, []byte("totals"), false, nil)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Sum != 12 {
		t.Fatalf("expected aggregated sum 12, got %d", got.Sum)
	}
}

func TestGetFollowsReference(t *testing.T) {
	db := openTestDb(t)

	if err := db.Insert(nil, []byte("target"), element.NewItem([]byte("real"), 0), nil); err != nil {
		t.Fatalf("Insert target: %v", err)
	}
	ref := path.Reference{Kind: path.RefAbsolute, AbsolutePath: path.Path{[]byte("target")}}
	refElem := element.NewReference(ref, 0, 0)
	if err := db.Insert(nil, []byte("alias"), refElem, nil); err != nil {
		t.Fatalf("Insert reference: %v", err)
	}

	got, err := db.Get(nil, []byte("alias"), true, nil)
	if err != nil {
		t.Fatalf("Get with follow: %v", err)
	}
	if got.Kind != element.KindItem || !bytes.Equal(got.Value, []byte("real")) {
		t.Fatalf("expected to resolve to target item, got %+v", got)
	}
}
