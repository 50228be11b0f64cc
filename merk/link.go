package merk

import "github.com/grovedb/grove/types"

// LinkState is one of the four states a child link can be in (spec.md
// §3.2).
type LinkState uint8

const (
	// LinkReference: hash known, body not in memory; source of truth is
	// the keyspace.
	LinkReference LinkState = iota
	// LinkLoaded: hash known, body fully materialized from the keyspace.
	LinkLoaded
	// LinkModified: body dirty, hash invalid; must be recomputed before
	// the link can be trusted or persisted.
	LinkModified
	// LinkUncommitted: body clean, hash freshly recomputed, not yet
	// written back to the keyspace.
	LinkUncommitted
)

func (s LinkState) String() string {
	switch s {
	case LinkReference:
		return "Reference"
	case LinkLoaded:
		return "Loaded"
	case LinkModified:
		return "Modified"
	case LinkUncommitted:
		return "Uncommitted"
	default:
		return "Unknown"
	}
}

// Link is a Merk node's pointer to one of its two children (spec.md §3.2).
// A nil *Link means "no child on this side".
type Link struct {
	State LinkState

	// Hash is the child's node_hash. Valid in every state except
	// LinkModified, where it must be treated as stale until a rehash pass
	// recomputes it and transitions the link to LinkUncommitted.
	Hash types.Hash

	// Key is the child node's keyspace key, always known even when the
	// body has not been fetched.
	Key []byte

	// Height is the child subtree's AVL height (1 + max of its own
	// children's heights), used for balance-factor computation without
	// fetching the child's body.
	Height int16

	// Feature carries the child node's aggregate-count classification,
	// retained even in LinkReference state per spec.md §3.2's "aggregate
	// data" column so a parent rehash never needs to fetch an unchanged
	// child merely to learn whether it binds a count into its hash.
	Feature Feature

	// Node is the materialized child, present in every state except
	// LinkReference.
	Node *Node
}

// IsDirty reports whether l's hash must be recomputed before use.
func (l *Link) IsDirty() bool { return l != nil && l.State == LinkModified }

// refOnly returns a Reference-state copy of l, discarding the in-memory
// Node body while retaining everything needed to address and rebalance
// around the child without fetching it (spec.md's prune() operation,
// §4.3.1: "converts all Loaded links back to Reference, retaining
// hashes").
func (l *Link) refOnly() *Link {
	if l == nil {
		return nil
	}
	return &Link{
		State:   LinkReference,
		Hash:    l.Hash,
		Key:     l.Key,
		Height:  l.Height,
		Feature: l.Feature,
	}
}
