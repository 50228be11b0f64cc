package merk

import (
	"github.com/grovedb/grove/internal/grovedberr"
	"github.com/grovedb/grove/keyspace"
	"github.com/grovedb/grove/types"
)

// Merk is the single-subtree authenticated AVL tree: the public contract
// of spec.md §4.3.1, backed by a subtree-prefixed keyspace.Context.
type Merk struct {
	ctx  *keyspace.Context
	root *Node
}

// Open loads the root node key from the roots column and, if present,
// fetches only the root node itself — never the full tree (spec.md
// §4.3.1).
func Open(ctx *keyspace.Context) (*Merk, error) {
	rootKey, err := LoadRootKey(ctx)
	if err != nil {
		return nil, err
	}
	m := &Merk{ctx: ctx}
	if rootKey == nil {
		return m, nil
	}
	raw, err := ctx.Get(keyspace.ColumnData, rootKey)
	if err != nil {
		return nil, grovedberr.New(grovedberr.KindStorage, "merk.Open", err).WithKey(rootKey)
	}
	root, err := DecodeNode(rootKey, raw)
	if err != nil {
		return nil, err
	}
	m.root = root
	return m, nil
}

// IsEmpty reports whether the subtree currently has no root.
func (m *Merk) IsEmpty() bool { return m.root == nil }

// RootHash returns the current root's node_hash, or the zero hash for an
// empty subtree.
func (m *Merk) RootHash() types.Hash {
	if m.root == nil {
		return types.ZeroHash
	}
	return m.root.Hash
}

// RootKey returns the current root's keyspace key, or nil if empty.
func (m *Merk) RootKey() []byte {
	if m.root == nil {
		return nil
	}
	return m.root.Key
}

// fetch returns this Merk's Fetch, backed by its keyspace.Context.
func (m *Merk) fetch() Fetch { return StorageFetch{Ctx: m.ctx} }

// Get walks from the root to key, lazily fetching Reference links as
// needed, returning (nil, false, nil) if key is absent (spec.md §4.3.1).
// It never follows grove-level Reference *elements* — that resolution
// (spec.md §3.5) happens above this package, in the grove layer, which is
// the only layer that can cross subtree boundaries.
func (m *Merk) Get(key []byte) ([]byte, bool, error) {
	n := m.root
	f := m.fetch()
	for n != nil {
		switch {
		case bytesEqual(key, n.Key):
			return n.Value, true, nil
		case bytesLess(key, n.Key):
			if n.Left == nil {
				return nil, false, nil
			}
			child, err := fetchLink(f, n.Left)
			if err != nil {
				return nil, false, err
			}
			n = child
		default:
			if n.Right == nil {
				return nil, false, nil
			}
			child, err := fetchLink(f, n.Right)
			if err != nil {
				return nil, false, err
			}
			n = child
		}
	}
	return nil, false, nil
}

func fetchLink(f Fetch, l *Link) (*Node, error) {
	if l.Node != nil {
		return l.Node, nil
	}
	return f.Fetch(l)
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func bytesLess(a, b []byte) bool {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return len(a) < len(b)
}

// ApplyBatch applies ops (already sorted by key) atomically, persists the
// resulting dirty nodes, updates the root pointer, and returns the new
// root hash (spec.md §4.3.1, §4.3.4).
func (m *Merk) ApplyBatch(ops []Op) (types.Hash, error) {
	var rootWalker *Walker
	if m.root != nil {
		rootWalker = NewWalker(m.root, m.fetch())
	}
	newRoot, err := ApplySorted(rootWalker, ops, m.fetch())
	if err != nil {
		return types.ZeroHash, err
	}
	if newRoot == nil {
		m.root = nil
		if err := Persist(m.ctx, nil); err != nil {
			return types.ZeroHash, err
		}
		return types.ZeroHash, nil
	}
	m.root = newRoot.node
	if err := Persist(m.ctx, m.root); err != nil {
		return types.ZeroHash, err
	}
	return m.root.Hash, nil
}

// Prune converts every Loaded link reachable from the root back to
// Reference state, discarding node bodies but retaining hashes, to bound
// memory for large subtrees (spec.md §4.3.1, §3.2).
func (m *Merk) Prune() {
	if m.root != nil {
		pruneNode(m.root)
	}
}

func pruneNode(n *Node) {
	if n.Left != nil {
		if n.Left.State == LinkLoaded && n.Left.Node != nil {
			pruneNode(n.Left.Node)
			n.Left = n.Left.refOnly()
		} else if n.Left.Node != nil {
			pruneNode(n.Left.Node)
		}
	}
	if n.Right != nil {
		if n.Right.State == LinkLoaded && n.Right.Node != nil {
			pruneNode(n.Right.Node)
			n.Right = n.Right.refOnly()
		} else if n.Right.Node != nil {
			pruneNode(n.Right.Node)
		}
	}
}
