package grove

import (
	"github.com/grovedb/grove/element"
	"github.com/grovedb/grove/internal/grovedberr"
	"github.com/grovedb/grove/keyspace"
	"github.com/grovedb/grove/merk"
	"github.com/grovedb/grove/path"
	"github.com/grovedb/grove/types"
)

// propagate walks from the just-mutated subtree at mutatedPath up to the
// grove root, refreshing every ancestor Tree-family element's aggregate
// fields (if any) and combined value hash, and finally writes the new
// grove root to the meta column (spec.md §4.4.3). newHash is mutatedPath's
// own Merk's freshly computed root hash.
func propagate(w rw, mutatedPath path.Path, newHash types.Hash) error {
	cur := newHash
	p := mutatedPath

	for len(p) > 0 {
		parentPath, key := p.Parent()
		parentCtx := contextFor(w, parentPath)
		parentMerk, err := merk.Open(parentCtx)
		if err != nil {
			return err
		}
		raw, found, err := parentMerk.Get(key)
		if err != nil {
			return err
		}
		if !found {
			return grovedberr.New(grovedberr.KindInternal, "grove.propagate", nil).WithPath(parentPath).WithKey(key)
		}
		e, err := element.Decode(raw)
		if err != nil {
			return err
		}
		if !e.IsSubtreeFamily() {
			return grovedberr.New(grovedberr.KindTypeMismatch, "grove.propagate", nil).WithPath(parentPath).WithKey(key)
		}

		if e.Kind != element.KindTree && !e.IsNonMerk() {
			childCtx := contextFor(w, p)
			childMerk, err := merk.Open(childCtx)
			if err != nil {
				return err
			}
			e, err = refreshAggregate(childMerk, e)
			if err != nil {
				return err
			}
		}

		newElemBytes := element.Encode(e)
		valueHash := element.ValueHash(e, cur.Bytes())
		op := merk.Op{
			Key:       key,
			Value:     newElemBytes,
			ValueHash: valueHash,
			Feature:   merk.FeatureFromElement(e),
			Kind:      merk.OpReplace,
		}
		newParentHash, err := parentMerk.ApplyBatch([]merk.Op{op})
		if err != nil {
			return err
		}

		cur = newParentHash
		p = parentPath
	}

	return w.Put(keyspace.ColumnMeta, metaGroveRootKey, append([]byte(nil), cur.Bytes()...))
}
