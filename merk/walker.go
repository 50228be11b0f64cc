package merk

// Walker owns a single materialized Node paired with a Fetch source, and is
// the sole mechanism through which tree mutation happens (spec.md §4.3.2).
// Expressing every rotation and batch-merge step through detach/walk/attach
// keeps the algorithms ignorant of whether a child is already resident or
// must be pulled from storage first.
type Walker struct {
	node  *Node
	fetch Fetch
}

// NewWalker wraps an already-materialized node.
func NewWalker(node *Node, fetch Fetch) *Walker {
	return &Walker{node: node, fetch: fetch}
}

// Node returns the node this Walker currently owns.
func (w *Walker) Node() *Node { return w.node }

// Detach returns the child on side as its own Walker, fetching it from
// storage first if the link is still in Reference state, and clears the
// link on w's node (the caller is expected to Attach a (possibly new)
// child back via the same side before w is considered complete).
func (w *Walker) Detach(side Side) (*Walker, error) {
	link := w.node.child(side)
	if link == nil {
		return nil, nil
	}
	child := link.Node
	if link.State == LinkReference {
		fetched, err := w.fetch.Fetch(link)
		if err != nil {
			return nil, err
		}
		child = fetched
	}
	w.node.setChild(side, nil)
	return &Walker{node: child, fetch: w.fetch}, nil
}

// Attach installs child (which may be nil, to remove the side entirely) as
// w's child on side. The resulting link always transitions to Modified:
// its hash is stale until a later rehash pass (FinalizeHashes) recomputes
// it bottom-up and promotes it to Uncommitted (spec.md §3.2).
func (w *Walker) Attach(side Side, child *Walker) {
	if child == nil || child.node == nil {
		w.node.setChild(side, nil)
		return
	}
	w.node.setChild(side, &Link{
		State:   LinkModified,
		Key:     child.node.Key,
		Height:  child.node.Height(),
		Feature: child.node.Feature,
		Node:    child.node,
	})
}

// Walk detaches the child on side, applies transform to it (which may
// return a different Walker entirely, or nil to delete the subtree), and
// attaches the result back.
func (w *Walker) Walk(side Side, transform func(*Walker) (*Walker, error)) error {
	child, err := w.Detach(side)
	if err != nil {
		return err
	}
	newChild, err := transform(child)
	if err != nil {
		return err
	}
	w.Attach(side, newChild)
	return nil
}

// FinalizeHashes performs the bottom-up rehash pass that transitions every
// Modified link reachable from w into Uncommitted (spec.md §3.2, §4.3.4:
// "hash recomputation is bottom-up; it runs once per touched subtree after
// all operations are applied"). It is idempotent: nodes with no Modified
// descendants are left untouched.
func FinalizeHashes(n *Node) {
	if n == nil {
		return
	}
	dirty := false
	if n.Left != nil && n.Left.State == LinkModified {
		FinalizeHashes(n.Left.Node)
		n.Left.Hash = n.Left.Node.Hash
		n.Left.Height = n.Left.Node.Height()
		n.Left.Feature = n.Left.Node.Feature
		n.Left.State = LinkUncommitted
		dirty = true
	}
	if n.Right != nil && n.Right.State == LinkModified {
		FinalizeHashes(n.Right.Node)
		n.Right.Hash = n.Right.Node.Hash
		n.Right.Height = n.Right.Node.Height()
		n.Right.Feature = n.Right.Node.Feature
		n.Right.State = LinkUncommitted
		dirty = true
	}
	if dirty {
		n.Rehash()
	}
}
