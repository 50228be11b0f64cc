package grove

import (
	"github.com/grovedb/grove/element"
	"github.com/grovedb/grove/internal/grovedberr"
	"github.com/grovedb/grove/keyspace"
	"github.com/grovedb/grove/merk"
	"github.com/grovedb/grove/path"
	"github.com/grovedb/grove/types"
)

// childOrTargetFor computes the second argument to element.ValueHash for
// e, stored (or about to be stored) at (at, key): the child subtree's
// current root hash for a subtree-family element, the dereferenced
// target's encoded bytes for a Reference, or nil for a plain leaf (spec.md
// §3.1, §3.6, §9 open question 3).
func (db *GroveDb) childOrTargetFor(w rw, at path.Path, key []byte, e element.Element) ([]byte, error) {
	switch {
	case e.IsSubtreeFamily():
		childPath := at.Append(key)
		h, err := childRoot(w, childPath, e)
		if err != nil {
			return nil, err
		}
		return h.Bytes(), nil
	case e.IsReference():
		resolved, err := resolveReference(w, e.Ref, at, key, db.opts.HopCap())
		if err != nil {
			return nil, err
		}
		target, _, err := db.getRaw(w, resolved.TargetPath, resolved.TargetKey)
		if err != nil {
			return nil, err
		}
		return element.Encode(target), nil
	default:
		return nil, nil
	}
}

// getRaw fetches the element stored at (at, key) without following
// references, returning (zero, false, nil) if absent.
func (db *GroveDb) getRaw(w rw, at path.Path, key []byte) (element.Element, bool, error) {
	ctx := contextFor(w, at)
	m, err := merk.Open(ctx)
	if err != nil {
		return element.Element{}, false, err
	}
	raw, found, err := m.Get(key)
	if err != nil || !found {
		return element.Element{}, found, err
	}
	e, err := element.Decode(raw)
	if err != nil {
		return element.Element{}, false, err
	}
	return e, true, nil
}

// Get retrieves the element at (at, key), following a Reference chain to
// its final non-reference target when followRefs is true (spec.md §4.4.1,
// §4.4.5).
func (db *GroveDb) Get(at path.Path, key []byte, followRefs bool, tx *Tx) (element.Element, error) {
	w := db.rwOf(tx)
	e, found, err := db.getRaw(w, at, key)
	if err != nil {
		return element.Element{}, grovedberr.New(grovedberr.KindInternal, "grove.Get", err).WithPath(at).WithKey(key)
	}
	if !found {
		return element.Element{}, grovedberr.New(grovedberr.KindNotFound, "grove.Get", nil).WithPath(at).WithKey(key)
	}
	if !followRefs || !e.IsReference() {
		return e, nil
	}
	resolved, err := resolveReference(w, e.Ref, at, key, db.opts.HopCap())
	if err != nil {
		return element.Element{}, err
	}
	target, found, err := db.getRaw(w, resolved.TargetPath, resolved.TargetKey)
	if err != nil {
		return element.Element{}, grovedberr.New(grovedberr.KindInternal, "grove.Get", err)
	}
	if !found {
		return element.Element{}, grovedberr.New(grovedberr.KindDanglingReference, "grove.Get", nil).
			WithPath(resolved.TargetPath).WithKey(resolved.TargetKey)
	}
	return target, nil
}

// insert is the shared implementation behind Insert/InsertIfNotExists/
// Replace, differing only in the existence check performed first.
func (db *GroveDb) insert(at path.Path, key []byte, e element.Element, tx *Tx, op string, requireAbsent, requirePresent bool) error {
	w := db.rwOf(tx)
	ctx := contextFor(w, at)
	m, err := merk.Open(ctx)
	if err != nil {
		return grovedberr.New(grovedberr.KindInternal, op, err).WithPath(at).WithKey(key)
	}

	_, found, err := m.Get(key)
	if err != nil {
		return grovedberr.New(grovedberr.KindInternal, op, err).WithPath(at).WithKey(key)
	}
	if requireAbsent && found {
		return grovedberr.New(grovedberr.KindAlreadyExists, op, nil).WithPath(at).WithKey(key)
	}
	if requirePresent && !found {
		return grovedberr.New(grovedberr.KindNotFound, op, nil).WithPath(at).WithKey(key)
	}

	childOrTarget, err := db.childOrTargetFor(w, at, key, e)
	if err != nil {
		return grovedberr.New(grovedberr.KindInternal, op, err).WithPath(at).WithKey(key)
	}

	kind := merk.OpPut
	if found {
		kind = merk.OpReplace
	}
	batchOp := merk.Op{
		Key:       key,
		Value:     element.Encode(e),
		ValueHash: element.ValueHash(e, childOrTarget),
		Feature:   merk.FeatureFromElement(e),
		Kind:      kind,
	}
	newHash, err := m.ApplyBatch([]merk.Op{batchOp})
	if err != nil {
		return grovedberr.New(grovedberr.KindInternal, op, err).WithPath(at).WithKey(key)
	}
	if err := propagate(w, at, newHash); err != nil {
		return grovedberr.New(grovedberr.KindInternal, op, err).WithPath(at).WithKey(key)
	}
	return nil
}

// Insert writes element at (at, key), creating or overwriting it (spec.md
// §6.1's insert).
func (db *GroveDb) Insert(at path.Path, key []byte, e element.Element, tx *Tx) error {
	return db.insert(at, key, e, tx, "grove.Insert", false, false)
}

// InsertIfNotExists writes element only if key is currently absent at at.
func (db *GroveDb) InsertIfNotExists(at path.Path, key []byte, e element.Element, tx *Tx) error {
	return db.insert(at, key, e, tx, "grove.InsertIfNotExists", true, false)
}

// Replace overwrites an existing element at (at, key), failing if it is
// currently absent.
func (db *GroveDb) Replace(at path.Path, key []byte, e element.Element, tx *Tx) error {
	return db.insert(at, key, e, tx, "grove.Replace", false, true)
}

// Delete removes the element at (at, key). If it was a Tree-family
// element, its child subtree's own keyspace is left untouched — use
// ClearSubtree to also wipe that (spec.md §4.4.1).
func (db *GroveDb) Delete(at path.Path, key []byte) error {
	return db.delete(at, key, nil)
}

// DeleteTx is Delete scoped to an explicit transaction.
func (db *GroveDb) DeleteTx(at path.Path, key []byte, tx *Tx) error {
	return db.delete(at, key, tx)
}

func (db *GroveDb) delete(at path.Path, key []byte, tx *Tx) error {
	w := db.rwOf(tx)
	ctx := contextFor(w, at)
	m, err := merk.Open(ctx)
	if err != nil {
		return grovedberr.New(grovedberr.KindInternal, "grove.Delete", err).WithPath(at).WithKey(key)
	}
	_, found, err := m.Get(key)
	if err != nil {
		return grovedberr.New(grovedberr.KindInternal, "grove.Delete", err).WithPath(at).WithKey(key)
	}
	if !found {
		return grovedberr.New(grovedberr.KindNotFound, "grove.Delete", nil).WithPath(at).WithKey(key)
	}
	newHash, err := m.ApplyBatch([]merk.Op{{Key: key, Kind: merk.OpDelete}})
	if err != nil {
		return grovedberr.New(grovedberr.KindInternal, "grove.Delete", err).WithPath(at).WithKey(key)
	}
	return propagate(w, at, newHash)
}

// ClearSubtree removes every entry from the subtree at at, across its
// data, aux, and roots columns, leaving the parent's Tree-family element
// (if any) pointing at a now-empty child (spec.md §4.4.2).
func (db *GroveDb) ClearSubtree(at path.Path, tx *Tx) error {
	w := db.rwOf(tx)
	ctx := contextFor(w, at)

	for _, col := range []keyspace.Column{keyspace.ColumnData, keyspace.ColumnAux, keyspace.ColumnRoots} {
		var keys [][]byte
		if err := ctx.Iterate(col, nil, nil, func(k, v []byte) bool {
			keys = append(keys, append([]byte(nil), k...))
			return true
		}); err != nil {
			return grovedberr.New(grovedberr.KindInternal, "grove.ClearSubtree", err).WithPath(at)
		}
		for _, k := range keys {
			if err := ctx.Delete(col, k); err != nil {
				return grovedberr.New(grovedberr.KindInternal, "grove.ClearSubtree", err).WithPath(at)
			}
		}
	}

	return propagate(w, at, types.ZeroHash)
}
