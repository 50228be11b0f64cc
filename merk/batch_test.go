package merk

import (
	"bytes"
	"sort"
	"testing"

	"github.com/grovedb/grove/hashutil"
)

func putOp(key, value string) Op {
	return Op{
		Key:       []byte(key),
		Value:     []byte(value),
		ValueHash: hashutil.ValueHash([]byte(value)),
		Kind:      OpPut,
	}
}

func sortOps(ops []Op) []Op {
	sort.Slice(ops, func(i, j int) bool { return bytes.Compare(ops[i].Key, ops[j].Key) < 0 })
	return ops
}

func collectInOrder(t *testing.T, w *Walker, fetch Fetch) []string {
	t.Helper()
	if w == nil || w.node == nil {
		return nil
	}
	var out []string
	var walk func(n *Node)
	walk = func(n *Node) {
		if n.Left != nil {
			left, err := fetch.Fetch(n.Left)
			if err != nil {
				t.Fatalf("fetch left: %v", err)
			}
			walk(left)
		}
		out = append(out, string(n.Key))
		if n.Right != nil {
			right, err := fetch.Fetch(n.Right)
			if err != nil {
				t.Fatalf("fetch right: %v", err)
			}
			walk(right)
		}
	}
	walk(w.node)
	return out
}

// identityFetch treats every link as already holding a resident Node,
// suitable for trees built entirely in-memory by this package's own batch
// application (no Reference-state links ever appear).
type identityFetch struct{}

func (identityFetch) Fetch(link *Link) (*Node, error) {
	return link.Node, nil
}

func checkAVLInvariant(t *testing.T, n *Node) {
	t.Helper()
	if n == nil {
		return
	}
	bf := n.BalanceFactor()
	if bf < -1 || bf > 1 {
		t.Fatalf("AVL invariant violated at key %q: balance factor %d", n.Key, bf)
	}
	if n.Left != nil {
		checkAVLInvariant(t, n.Left.Node)
	}
	if n.Right != nil {
		checkAVLInvariant(t, n.Right.Node)
	}
}

func checkBSTInvariant(t *testing.T, keys []string) {
	t.Helper()
	for i := 1; i < len(keys); i++ {
		if keys[i-1] >= keys[i] {
			t.Fatalf("BST invariant violated: %q >= %q at position %d", keys[i-1], keys[i], i)
		}
	}
}

func TestBuildFromScratchBalancedAndSorted(t *testing.T) {
	var ops []Op
	for _, k := range []string{"a", "b", "c", "d", "e", "f", "g"} {
		ops = append(ops, putOp(k, "v-"+k))
	}
	ops = sortOps(ops)

	root, err := ApplySorted(nil, ops, identityFetch{})
	if err != nil {
		t.Fatalf("ApplySorted: %v", err)
	}
	keys := collectInOrder(t, root, identityFetch{})
	checkBSTInvariant(t, keys)
	checkAVLInvariant(t, root.node)
	if len(keys) != 7 {
		t.Fatalf("got %d keys, want 7", len(keys))
	}
}

func TestApplySortedInsertIntoExisting(t *testing.T) {
	initial := sortOps([]Op{putOp("b", "1"), putOp("d", "2"), putOp("f", "3")})
	root, err := ApplySorted(nil, initial, identityFetch{})
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	more := sortOps([]Op{putOp("a", "x"), putOp("c", "y"), putOp("e", "z"), putOp("g", "w")})
	root, err = ApplySorted(root, more, identityFetch{})
	if err != nil {
		t.Fatalf("merge: %v", err)
	}

	keys := collectInOrder(t, root, identityFetch{})
	checkBSTInvariant(t, keys)
	checkAVLInvariant(t, root.node)
	if len(keys) != 7 {
		t.Fatalf("got %d keys, want 7: %v", len(keys), keys)
	}
}

func TestApplySortedReplaceExistingValue(t *testing.T) {
	initial := sortOps([]Op{putOp("a", "1"), putOp("b", "2")})
	root, err := ApplySorted(nil, initial, identityFetch{})
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	replace := []Op{{Key: []byte("a"), Value: []byte("new"), ValueHash: hashutil.ValueHash([]byte("new")), Kind: OpReplace}}
	root, err = ApplySorted(root, replace, identityFetch{})
	if err != nil {
		t.Fatalf("replace: %v", err)
	}

	v, found, err := lookup(root, identityFetch{}, "a")
	if err != nil || !found {
		t.Fatalf("lookup a: found=%v err=%v", found, err)
	}
	if string(v) != "new" {
		t.Fatalf("value = %q, want %q", v, "new")
	}
}

func TestApplySortedDeleteLeaf(t *testing.T) {
	initial := sortOps([]Op{putOp("a", "1"), putOp("b", "2"), putOp("c", "3")})
	root, err := ApplySorted(nil, initial, identityFetch{})
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	del := []Op{{Key: []byte("b"), Kind: OpDelete}}
	root, err = ApplySorted(root, del, identityFetch{})
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	keys := collectInOrder(t, root, identityFetch{})
	checkBSTInvariant(t, keys)
	checkAVLInvariant(t, root.node)
	for _, k := range keys {
		if k == "b" {
			t.Fatalf("deleted key still present: %v", keys)
		}
	}
	if len(keys) != 2 {
		t.Fatalf("got %d keys, want 2: %v", len(keys), keys)
	}
}

func TestApplySortedDeleteNodeWithTwoChildren(t *testing.T) {
	var ops []Op
	for _, k := range []string{"a", "b", "c", "d", "e"} {
		ops = append(ops, putOp(k, "v"))
	}
	root, err := ApplySorted(nil, sortOps(ops), identityFetch{})
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	del := []Op{{Key: []byte("c"), Kind: OpDelete}}
	root, err = ApplySorted(root, del, identityFetch{})
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	keys := collectInOrder(t, root, identityFetch{})
	checkBSTInvariant(t, keys)
	checkAVLInvariant(t, root.node)
	if len(keys) != 4 {
		t.Fatalf("got %d keys, want 4: %v", len(keys), keys)
	}
	for _, k := range keys {
		if k == "c" {
			t.Fatalf("deleted key still present: %v", keys)
		}
	}
}

func TestApplySortedDeleteAllEmptiesTree(t *testing.T) {
	ops := sortOps([]Op{putOp("a", "1"), putOp("b", "2")})
	root, err := ApplySorted(nil, ops, identityFetch{})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	dels := []Op{{Key: []byte("a"), Kind: OpDelete}, {Key: []byte("b"), Kind: OpDelete}}
	root, err = ApplySorted(root, dels, identityFetch{})
	if err != nil {
		t.Fatalf("delete all: %v", err)
	}
	if root != nil {
		t.Fatalf("expected nil root after deleting every key, got %v", root.node)
	}
}

func TestApplySortedRootHashChangesOnInsert(t *testing.T) {
	ops1 := sortOps([]Op{putOp("a", "1")})
	root1, err := ApplySorted(nil, ops1, identityFetch{})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	h1 := root1.node.Hash

	ops2 := sortOps([]Op{putOp("b", "2")})
	root2, err := ApplySorted(root1, ops2, identityFetch{})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if root2.node.Hash == h1 {
		t.Fatalf("root hash did not change after inserting a new key")
	}
}

func lookup(w *Walker, fetch Fetch, key string) ([]byte, bool, error) {
	n := w.node
	for n != nil {
		switch {
		case string(n.Key) == key:
			return n.Value, true, nil
		case key < string(n.Key):
			if n.Left == nil {
				return nil, false, nil
			}
			child, err := fetch.Fetch(n.Left)
			if err != nil {
				return nil, false, err
			}
			n = child
		default:
			if n.Right == nil {
				return nil, false, nil
			}
			child, err := fetch.Fetch(n.Right)
			if err != nil {
				return nil, false, err
			}
			n = child
		}
	}
	return nil, false, nil
}
