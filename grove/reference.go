package grove

import (
	"github.com/grovedb/grove/element"
	"github.com/grovedb/grove/merk"
	"github.com/grovedb/grove/path"
)

// lookupFor builds the path.TargetLookup closure path.Resolve needs to walk
// a multi-hop reference chain: given a location, it reports whether the
// element stored there is itself a reference, without requiring the caller
// to re-derive a subtree.Context for every hop.
func lookupFor(w rw) path.TargetLookup {
	return func(p path.Path, key []byte) (*path.Reference, bool, error) {
		ctx := contextFor(w, p)
		m, err := merk.Open(ctx)
		if err != nil {
			return nil, false, err
		}
		raw, found, err := m.Get(key)
		if err != nil {
			return nil, false, err
		}
		if !found {
			return nil, false, nil
		}
		e, err := element.Decode(raw)
		if err != nil {
			return nil, false, err
		}
		if !e.IsReference() {
			return nil, true, nil
		}
		return &e.Ref, true, nil
	}
}

// resolveReference follows ref (the reference stored at ownPath/ownKey) to
// its final non-reference location, subject to hopCap (spec.md §3.5's
// multi-hop chasing with cycle detection and a hop cap).
func resolveReference(w rw, ref path.Reference, ownPath path.Path, ownKey []byte, hopCap int) (path.Resolved, error) {
	return path.Resolve(ref, ownPath, ownKey, hopCap, lookupFor(w))
}
