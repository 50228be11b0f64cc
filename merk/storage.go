package merk

import (
	"github.com/grovedb/grove/internal/grovedberr"
	"github.com/grovedb/grove/keyspace"
)

// StorageFetch materializes Reference-state links by reading the node
// blob from a subtree-prefixed keyspace.Context's data column (spec.md
// §4.3.2, §6.2).
type StorageFetch struct {
	Ctx *keyspace.Context
}

func (s StorageFetch) Fetch(link *Link) (*Node, error) {
	raw, err := s.Ctx.Get(keyspace.ColumnData, link.Key)
	if err != nil {
		return nil, grovedberr.New(grovedberr.KindStorage, "merk.StorageFetch.Fetch", err).WithKey(link.Key)
	}
	return DecodeNode(link.Key, raw)
}

// rootsKey is the fixed key under which a subtree's current root node key
// is stored in the roots column (spec.md §6.2: "roots (prefixed per
// subtree): per-subtree root-key pointer").
var rootsKey = []byte("root")

// LoadRootKey reads the current root node key for the subtree addressed
// by ctx, returning (nil, nil) if the subtree is empty.
func LoadRootKey(ctx *keyspace.Context) ([]byte, error) {
	has, err := ctx.Has(keyspace.ColumnRoots, rootsKey)
	if err != nil {
		return nil, err
	}
	if !has {
		return nil, nil
	}
	return ctx.Get(keyspace.ColumnRoots, rootsKey)
}

// StoreRootKey records key as the subtree's current root node key, or
// clears the pointer entirely if key is nil (the subtree became empty,
// spec.md §4.4.2).
func StoreRootKey(ctx *keyspace.Context, key []byte) error {
	if key == nil {
		return ctx.Delete(keyspace.ColumnRoots, rootsKey)
	}
	return ctx.Put(keyspace.ColumnRoots, rootsKey, key)
}

// Persist writes every Uncommitted node reachable from root to ctx's data
// column and updates the root pointer, transitioning each written link to
// Loaded (spec.md §3.2: "Uncommitted→Loaded on persist"). Nodes already in
// Loaded or Reference state are skipped — they are unchanged since the
// last persist.
func Persist(ctx *keyspace.Context, root *Node) error {
	if root == nil {
		return StoreRootKey(ctx, nil)
	}
	if err := persistNode(ctx, root); err != nil {
		return err
	}
	return StoreRootKey(ctx, root.Key)
}

func persistNode(ctx *keyspace.Context, n *Node) error {
	if n.Left != nil && n.Left.State == LinkUncommitted {
		if err := persistNode(ctx, n.Left.Node); err != nil {
			return err
		}
		n.Left.State = LinkLoaded
	}
	if n.Right != nil && n.Right.State == LinkUncommitted {
		if err := persistNode(ctx, n.Right.Node); err != nil {
			return err
		}
		n.Right.State = LinkLoaded
	}
	return ctx.Put(keyspace.ColumnData, n.Key, EncodeNode(n))
}
