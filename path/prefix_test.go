package path

import (
	"bytes"
	"testing"
)

func TestSubtreePrefixDeterministic(t *testing.T) {
	p := Path{[]byte("a"), []byte("b")}
	h1 := SubtreePrefix(p)
	h2 := SubtreePrefix(p.Clone())
	if h1 != h2 {
		t.Fatalf("SubtreePrefix not deterministic: %x != %x", h1, h2)
	}
}

func TestSubtreePrefixRootIsNotZero(t *testing.T) {
	root := SubtreePrefix(Path{})
	if root.IsZero() {
		t.Fatalf("root subtree prefix must not be the zero hash")
	}
}

func TestSubtreePrefixOrderSensitive(t *testing.T) {
	a := SubtreePrefix(Path{[]byte("a"), []byte("b")})
	b := SubtreePrefix(Path{[]byte("b"), []byte("a")})
	if a == b {
		t.Fatalf("SubtreePrefix must be sensitive to segment order")
	}
}

func TestSubtreePrefixDistinguishesSplit(t *testing.T) {
	// {"ab","c"} and {"a","bc"} must not collide despite concatenating to
	// the same bytes, since each segment is hashed as its own preimage
	// block (delegated to hashutil.Sum's varint-length-prefixed scheme).
	a := SubtreePrefix(Path{[]byte("ab"), []byte("c")})
	b := SubtreePrefix(Path{[]byte("a"), []byte("bc")})
	if a == b {
		t.Fatalf("SubtreePrefix collided across a segment-boundary split")
	}
}

func TestPathAppendDoesNotMutateReceiver(t *testing.T) {
	base := Path{[]byte("x")}
	extended := base.Append([]byte("y"))
	if len(base) != 1 {
		t.Fatalf("Append mutated the receiver: %v", base)
	}
	if !extended.Equal(Path{[]byte("x"), []byte("y")}) {
		t.Fatalf("Append produced unexpected path: %v", extended)
	}
}

func TestPathEqual(t *testing.T) {
	a := Path{[]byte("x"), []byte("y")}
	b := Path{[]byte("x"), []byte("y")}
	c := Path{[]byte("x"), []byte("z")}
	if !a.Equal(b) {
		t.Fatalf("expected equal paths to compare equal")
	}
	if a.Equal(c) {
		t.Fatalf("expected differing paths to compare unequal")
	}
}

func TestPathKeyDistinguishesSplit(t *testing.T) {
	a := Path{[]byte("ab"), []byte("c")}.Key()
	b := Path{[]byte("a"), []byte("bc")}.Key()
	if a == b {
		t.Fatalf("Path.Key collided across a segment-boundary split")
	}
}

func TestPathParent(t *testing.T) {
	p := Path{[]byte("a"), []byte("b"), []byte("c")}
	parent, last := p.Parent()
	if !parent.Equal(Path{[]byte("a"), []byte("b")}) {
		t.Fatalf("unexpected parent: %v", parent)
	}
	if !bytes.Equal(last, []byte("c")) {
		t.Fatalf("unexpected last segment: %q", last)
	}
}

func TestPathParentPanicsOnRoot(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected Parent on the root path to panic")
		}
	}()
	Path{}.Parent()
}
