package merk

import "bytes"

// Iterate performs a lazy in-order traversal of the whole tree, invoking fn
// for every key/value pair in ascending key order, fetching Reference links
// from storage only as the traversal reaches them. fn returning false stops
// the traversal early. Used by the grove layer's aggregate recomputation and
// query execution (spec.md §4.4.4), neither of which Merk itself knows
// about.
func (m *Merk) Iterate(fn func(key, value []byte) bool) error {
	_, err := iterateNode(m.root, m.fetch(), nil, nil, false, fn)
	return err
}

// Bound is one side of a key range; a nil Bound means unbounded on that
// side.
type Bound struct {
	Key       []byte
	Inclusive bool
}

// IterateRange traverses only the keys within [low, high] (bounds applied
// per their own Inclusive flag), in ascending order unless reverse is true,
// in which case it visits descending and fn sees high-to-low order.
func (m *Merk) IterateRange(low, high *Bound, reverse bool, fn func(key, value []byte) bool) error {
	_, err := iterateNode(m.root, m.fetch(), low, high, reverse, fn)
	return err
}

func withinLow(key []byte, low *Bound) bool {
	if low == nil {
		return true
	}
	c := bytes.Compare(key, low.Key)
	if low.Inclusive {
		return c >= 0
	}
	return c > 0
}

func withinHigh(key []byte, high *Bound) bool {
	if high == nil {
		return true
	}
	c := bytes.Compare(key, high.Key)
	if high.Inclusive {
		return c <= 0
	}
	return c < 0
}

// iterateNode visits n's subtree in (reverse ? descending : ascending) key
// order, pruning entire child subtrees that the BST invariant guarantees
// fall outside [low, high].
func iterateNode(n *Node, f Fetch, low, high *Bound, reverse bool, fn func(key, value []byte) bool) (bool, error) {
	if n == nil {
		return true, nil
	}

	nearSide, farSide := Left, Right
	if reverse {
		nearSide, farSide = Right, Left
	}

	if mayContain(n, nearSide, low, high) {
		child, err := fetchChild(f, n, nearSide)
		if err != nil {
			return false, err
		}
		cont, err := iterateNode(child, f, low, high, reverse, fn)
		if err != nil || !cont {
			return cont, err
		}
	}

	if withinLow(n.Key, low) && withinHigh(n.Key, high) {
		if !fn(n.Key, n.Value) {
			return false, nil
		}
	}

	if mayContain(n, farSide, low, high) {
		child, err := fetchChild(f, n, farSide)
		if err != nil {
			return false, err
		}
		cont, err := iterateNode(child, f, low, high, reverse, fn)
		if err != nil || !cont {
			return cont, err
		}
	}

	return true, nil
}

// mayContain reports whether descending into n's child on side could yield
// any key within [low, high], using the BST invariant (everything on the
// left is < n.Key, everything on the right is > n.Key) to prune subtrees
// entirely outside the range without visiting them.
func mayContain(n *Node, side Side, low, high *Bound) bool {
	if n.child(side) == nil {
		return false
	}
	if side == Left {
		return low == nil || bytes.Compare(n.Key, low.Key) > 0 || (low.Inclusive && bytes.Compare(n.Key, low.Key) >= 0)
	}
	return high == nil || bytes.Compare(n.Key, high.Key) < 0 || (high.Inclusive && bytes.Compare(n.Key, high.Key) <= 0)
}

func fetchChild(f Fetch, n *Node, side Side) (*Node, error) {
	link := n.child(side)
	if link == nil {
		return nil, nil
	}
	return fetchLink(f, link)
}
