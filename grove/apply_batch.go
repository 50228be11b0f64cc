package grove

import (
	"bytes"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/grovedb/grove/batch"
	"github.com/grovedb/grove/element"
	"github.com/grovedb/grove/internal/grovedberr"
	"github.com/grovedb/grove/keyspace"
	"github.com/grovedb/grove/merk"
	"github.com/grovedb/grove/metrics"
	"github.com/grovedb/grove/path"
	"github.com/grovedb/grove/types"
)

// ApplyBatch validates, preprocesses, and atomically applies ops against
// db (spec.md §4.7's three-phase batch engine, §6.1's apply_batch(db, ops,
// opts?, tx?)). If tx is nil, ApplyBatch opens its own transaction and
// commits it on success or rolls it back on any failure; a caller-supplied
// tx is left for the caller to commit or roll back.
func (db *GroveDb) ApplyBatch(ops []batch.QualifiedOp, opts batch.Options, tx *Tx) error {
	owned := tx == nil
	if owned {
		tx = db.StartTransaction()
	}
	if err := db.applyBatch(ops, opts, tx); err != nil {
		if owned {
			_ = tx.Rollback()
		}
		return err
	}
	if owned {
		return tx.Commit()
	}
	return nil
}

func (db *GroveDb) applyBatch(ops []batch.QualifiedOp, opts batch.Options, tx *Tx) error {
	w := db.rwOf(tx)

	if err := batch.Validate(ops); err != nil {
		return err
	}
	sorted := append([]batch.QualifiedOp(nil), ops...)
	batch.SortStable(sorted)

	if err := db.validateBatchPhase1(w, sorted, opts); err != nil {
		return err
	}

	lookup := func(p path.Path, key []byte) (element.Element, bool, error) {
		return db.getRaw(w, p, key)
	}
	preprocessed, err := batch.PreprocessNonMerk(w, sorted, lookup)
	if err != nil {
		return err
	}

	return db.applyBatchPhase2(w, preprocessed)
}

// validateBatchPhase1 covers the parts of spec.md §4.7 phase 1 that need a
// live read: element-type compatibility against whatever is currently
// stored (step 3) and, for an Insert* op writing a Reference, confirming
// the target exists unless the caller (or the grove's own
// AllowUntrustedReferenceInsert feature flag) has opted to trust it (step
// 4). Structural rules needing no storage access (sort order, internal-only
// op rejection, duplicate-key rules) are batch.Validate's job, already run
// by the caller.
func (db *GroveDb) validateBatchPhase1(w rw, ops []batch.QualifiedOp, opts batch.Options) error {
	trustAll := opts.TrustAllReferences || db.opts.FeatureFlagsOrDefault().AllowUntrustedReferenceInsert

	for _, op := range ops {
		if op.Op.Kind.IsNonMerkAppend() {
			continue // validated against the live non-Merk structure during PreprocessNonMerk
		}

		existing, found, err := db.getRaw(w, op.Path, op.Key)
		if err != nil {
			return grovedberr.New(grovedberr.KindInternal, "grove.ApplyBatch", err).WithPath(op.Path).WithKey(op.Key)
		}
		if err := batch.ValidateElementCompatibility(op.Op, existing, found); err != nil {
			if gerr, ok := err.(*grovedberr.Error); ok {
				return gerr.WithPath(op.Path).WithKey(op.Key)
			}
			return err
		}

		if !isUntrustedReferenceInsert(op.Op) {
			continue
		}
		if trustAll || op.Op.TrustRefresh {
			continue
		}
		if err := db.validateReferenceTarget(w, op); err != nil {
			return err
		}
	}
	return nil
}

func isUntrustedReferenceInsert(op batch.GroveOp) bool {
	switch op.Kind {
	case batch.OpInsertOnly, batch.OpInsertOrReplace, batch.OpReplace:
		return op.Element.IsReference()
	default:
		return false
	}
}

func (db *GroveDb) validateReferenceTarget(w rw, op batch.QualifiedOp) error {
	resolved, err := resolveReference(w, op.Op.Element.Ref, op.Path, op.Key, db.opts.HopCap())
	if err != nil {
		return grovedberr.New(grovedberr.KindDanglingReference, "grove.ApplyBatch", err).WithPath(op.Path).WithKey(op.Key)
	}
	_, found, err := db.getRaw(w, resolved.TargetPath, resolved.TargetKey)
	if err != nil {
		return grovedberr.New(grovedberr.KindInternal, "grove.ApplyBatch", err).WithPath(op.Path).WithKey(op.Key)
	}
	if !found {
		return grovedberr.New(grovedberr.KindDanglingReference, "grove.ApplyBatch", nil).WithPath(resolved.TargetPath).WithKey(resolved.TargetKey)
	}
	return nil
}

// serializedRW guards every storage call behind a mutex so the phase 2
// per-subtree Merk rebuilds below can run concurrently (each touches a
// disjoint keyspace prefix, so the hashing work itself parallelizes
// cleanly) while the underlying transaction only ever sees one call at a
// time — keyspace.MemoryStore is internally mutex-protected, but a
// keyspace.Transaction's thread-safety under concurrent goroutines is not
// guaranteed, so this wrapper is the conservative default for both.
type serializedRW struct {
	mu sync.Mutex
	rw
}

func (s *serializedRW) Get(col keyspace.Column, key []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rw.Get(col, key)
}

func (s *serializedRW) Has(col keyspace.Column, key []byte) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rw.Has(col, key)
}

func (s *serializedRW) Iterate(col keyspace.Column, prefix, start []byte, fn func(key, value []byte) bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rw.Iterate(col, prefix, start, fn)
}

func (s *serializedRW) Put(col keyspace.Column, key, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rw.Put(col, key, value)
}

func (s *serializedRW) Delete(col keyspace.Column, key []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rw.Delete(col, key)
}

// applyBatchPhase2 implements spec.md §4.7 phase 2: bucket preprocessed
// ops per subtree path, apply each bucket as a single Merk batch (the
// TreeCache optimization — one ApplyBatch call per touched subtree rather
// than one per op), then hand the resulting per-path hashes to
// propagateBatch, which walks every touched subtree leaves-first back to
// the grove root. The per-subtree ApplyBatch calls below run concurrently
// across sibling subtrees via errgroup, since each touches a disjoint
// keyspace prefix.
func (db *GroveDb) applyBatchPhase2(w rw, ops []batch.QualifiedOp) error {
	groups, paths := batch.GroupByPath(ops)
	if len(groups) == 0 {
		return nil
	}

	sw := &serializedRW{rw: w}

	leaves := make(map[string]touchedNode, len(groups))
	var leavesMu sync.Mutex
	var g errgroup.Group
	for k, subOps := range groups {
		k, subOps := k, subOps
		p := paths[k]
		g.Go(func() error {
			newHash, err := db.applyOneSubtree(sw, p, subOps)
			if err != nil {
				return err
			}
			leavesMu.Lock()
			leaves[k] = touchedNode{path: p, hash: newHash}
			leavesMu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	return propagateBatch(sw, leaves)
}

// touchedNode is a subtree whose own root hash has just changed and which
// therefore still needs its parent's pointer to it refreshed.
type touchedNode struct {
	path path.Path
	hash types.Hash
}

// propagateBatch walks every entry of leaves up to the grove root one
// depth at a time (spec.md §4.7 phase 2, "leaves-first order"), grouping
// siblings that share a parent so that parent is opened and batched
// exactly once per level no matter how many of its children changed —
// the payoff of phase 1.5/2's path-grouping that a naive per-leaf
// one-at-a-time walk (repeatedly calling propagate, which reopens and
// rewrites the same shared ancestor once per sibling) would not get.
// merk.DirtyPaths records every path touched at any depth purely as an
// operational metric (exposed via the metrics package below); the
// sibling-grouping above is what actually avoids the redundant work.
func propagateBatch(w rw, leaves map[string]touchedNode) error {
	dirty := merk.NewDirtyPaths()
	current := leaves
	for k := range current {
		dirty.Mark(k)
	}

	for {
		byParent := make(map[string][]touchedNode)
		parentPaths := make(map[string]path.Path)
		var rootEntry *touchedNode

		for k := range current {
			t := current[k]
			if len(t.path) == 0 {
				// A direct op at the grove root is already fully persisted
				// (ApplyBatch persists as it goes); if nothing else in this
				// round still needs to bubble up into the root Merk, this is
				// the final answer. If something else does (handled below),
				// that bubble-up will reopen the same already-persisted
				// root Merk and layer its own update on top, so it is safe
				// to simply defer to the next round rather than merge here.
				rootEntry = &t
				continue
			}
			parentPath, _ := t.path.Parent()
			pk := parentPath.Key()
			byParent[pk] = append(byParent[pk], t)
			parentPaths[pk] = parentPath
		}

		if len(byParent) == 0 {
			if rootEntry != nil {
				if err := w.Put(keyspace.ColumnMeta, metaGroveRootKey, append([]byte(nil), rootEntry.hash.Bytes()...)); err != nil {
					return grovedberr.New(grovedberr.KindInternal, "grove.ApplyBatch", err)
				}
			}
			metrics.DefaultRegistry.Gauge("batch_dirty_subtrees", "subtrees touched by the most recent ApplyBatch call").Set(float64(dirty.Count()))
			return nil
		}

		next := make(map[string]touchedNode, len(byParent))
		var nextMu sync.Mutex
		var g errgroup.Group
		for pk, children := range byParent {
			pk, children := pk, children
			parentPath := parentPaths[pk]
			g.Go(func() error {
				newHash, err := applyParentUpdates(w, parentPath, children)
				if err != nil {
					return err
				}
				nextMu.Lock()
				next[pk] = touchedNode{path: parentPath, hash: newHash}
				nextMu.Unlock()
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
		for k := range next {
			dirty.Mark(k)
		}
		current = next
	}
}

// applyParentUpdates refreshes parentPath's Merk entry for every child in
// children in one batch: re-encoding each child's Tree-family element with
// its freshly computed value hash (and, for an aggregate-bearing element,
// its refreshed aggregate fields), exactly as propagate does for a single
// mutation, generalized to many siblings at once.
func applyParentUpdates(w rw, parentPath path.Path, children []touchedNode) (types.Hash, error) {
	ctx := contextFor(w, parentPath)
	m, err := merk.Open(ctx)
	if err != nil {
		return types.Hash{}, grovedberr.New(grovedberr.KindStorage, "grove.ApplyBatch", err).WithPath(parentPath)
	}

	ops := make([]merk.Op, 0, len(children))
	for _, c := range children {
		_, key := c.path.Parent()

		raw, found, err := m.Get(key)
		if err != nil {
			return types.Hash{}, grovedberr.New(grovedberr.KindInternal, "grove.ApplyBatch", err).WithPath(parentPath).WithKey(key)
		}
		if !found {
			return types.Hash{}, grovedberr.New(grovedberr.KindInternal, "grove.ApplyBatch", nil).WithPath(parentPath).WithKey(key)
		}
		e, err := element.Decode(raw)
		if err != nil {
			return types.Hash{}, grovedberr.New(grovedberr.KindInternal, "grove.ApplyBatch", err).WithPath(parentPath).WithKey(key)
		}
		if !e.IsSubtreeFamily() {
			return types.Hash{}, grovedberr.New(grovedberr.KindTypeMismatch, "grove.ApplyBatch", nil).WithPath(parentPath).WithKey(key)
		}

		if e.Kind != element.KindTree && !e.IsNonMerk() {
			childCtx := contextFor(w, c.path)
			childMerk, err := merk.Open(childCtx)
			if err != nil {
				return types.Hash{}, grovedberr.New(grovedberr.KindStorage, "grove.ApplyBatch", err).WithPath(c.path)
			}
			e, err = refreshAggregate(childMerk, e)
			if err != nil {
				return types.Hash{}, grovedberr.New(grovedberr.KindInternal, "grove.ApplyBatch", err).WithPath(c.path)
			}
		}

		ops = append(ops, merk.Op{
			Key:       key,
			Value:     element.Encode(e),
			ValueHash: element.ValueHash(e, c.hash.Bytes()),
			Feature:   merk.FeatureFromElement(e),
			Kind:      merk.OpReplace,
		})
	}
	sort.Slice(ops, func(i, j int) bool { return bytes.Compare(ops[i].Key, ops[j].Key) < 0 })

	newHash, err := m.ApplyBatch(ops)
	if err != nil {
		return types.Hash{}, grovedberr.New(grovedberr.KindInternal, "grove.ApplyBatch", err).WithPath(parentPath)
	}
	return newHash, nil
}

// applyOneSubtree converts ops (all addressed at p) into a single Merk
// batch, applies it, and — for any OpDeleteTree that asked to also wipe
// its child's keyspace — clears that child subtree's own data/aux/roots
// columns once the parent's batch has committed the key's removal.
func (db *GroveDb) applyOneSubtree(w rw, p path.Path, ops []batch.QualifiedOp) (types.Hash, error) {
	ctx := contextFor(w, p)
	m, err := merk.Open(ctx)
	if err != nil {
		return types.Hash{}, grovedberr.New(grovedberr.KindStorage, "grove.ApplyBatch", err).WithPath(p)
	}

	merkOps := make([]merk.Op, 0, len(ops))
	var clearChildren []path.Path

	for _, op := range ops {
		mo, clearChild, err := db.toMerkOp(w, p, op)
		if err != nil {
			return types.Hash{}, err
		}
		merkOps = append(merkOps, mo)
		if clearChild {
			clearChildren = append(clearChildren, p.Append(op.Key))
		}
	}

	// ops arriving here are ordered by original submission order within
	// this path's group, not by key: PreprocessNonMerk appends its merged
	// replacement ops after every untouched op regardless of where their
	// key would otherwise sort. ApplyBatch requires key order.
	sort.Slice(merkOps, func(i, j int) bool { return bytes.Compare(merkOps[i].Key, merkOps[j].Key) < 0 })

	newHash, err := m.ApplyBatch(merkOps)
	if err != nil {
		return types.Hash{}, grovedberr.New(grovedberr.KindInternal, "grove.ApplyBatch", err).WithPath(p)
	}

	for _, childPath := range clearChildren {
		if err := clearChildKeyspace(w, childPath); err != nil {
			return types.Hash{}, err
		}
	}

	return newHash, nil
}

// toMerkOp builds the single merk.Op op contributes to its subtree's
// batch, resolving whatever child root, target hash, or reference
// refresh its GroveOpKind requires first.
func (db *GroveDb) toMerkOp(w rw, at path.Path, op batch.QualifiedOp) (mo merk.Op, clearChild bool, err error) {
	key := op.Key

	switch op.Op.Kind {
	case batch.OpInsertOnly, batch.OpInsertOrReplace, batch.OpReplace, batch.OpPatch:
		e := op.Op.Element
		childOrTarget, err := db.childOrTargetFor(w, at, key, e)
		if err != nil {
			return merk.Op{}, false, grovedberr.New(grovedberr.KindInternal, "grove.ApplyBatch", err).WithPath(at).WithKey(key)
		}
		kind := merk.OpPut
		if op.Op.Kind == batch.OpReplace || op.Op.Kind == batch.OpPatch {
			kind = merk.OpReplace
		}
		return merk.Op{
			Key:       key,
			Value:     element.Encode(e),
			ValueHash: element.ValueHash(e, childOrTarget),
			Feature:   merk.FeatureFromElement(e),
			Kind:      kind,
		}, false, nil

	case batch.OpDelete:
		return merk.Op{Key: key, Kind: merk.OpDelete}, false, nil

	case batch.OpDeleteTree:
		if op.Op.ClearChildKeyspace {
			return merk.Op{Key: key, Kind: merk.OpDeleteLayered}, true, nil
		}
		return merk.Op{Key: key, Kind: merk.OpDelete}, false, nil

	case batch.OpRefreshReference:
		existing, found, err := db.getRaw(w, at, key)
		if err != nil {
			return merk.Op{}, false, grovedberr.New(grovedberr.KindInternal, "grove.ApplyBatch", err).WithPath(at).WithKey(key)
		}
		if !found || !existing.IsReference() {
			return merk.Op{}, false, grovedberr.New(grovedberr.KindTypeMismatch, "grove.ApplyBatch", nil).WithPath(at).WithKey(key)
		}
		childOrTarget, err := db.childOrTargetFor(w, at, key, existing)
		if err != nil {
			return merk.Op{}, false, grovedberr.New(grovedberr.KindDanglingReference, "grove.ApplyBatch", err).WithPath(at).WithKey(key)
		}
		return merk.Op{
			Key:       key,
			Value:     element.Encode(existing),
			ValueHash: element.ValueHash(existing, childOrTarget),
			Feature:   merk.FeatureFromElement(existing),
			Kind:      merk.OpReplace,
		}, false, nil

	case batch.OpReplaceNonMerkTreeRoot, batch.OpInsertNonMerkTree:
		e := op.Op.Element
		childPath := at.Append(key)
		h, err := childRoot(w, childPath, e)
		if err != nil {
			return merk.Op{}, false, grovedberr.New(grovedberr.KindInternal, "grove.ApplyBatch", err).WithPath(at).WithKey(key)
		}
		kind := merk.OpReplace
		if op.Op.Kind == batch.OpInsertNonMerkTree {
			kind = merk.OpPut
		}
		return merk.Op{
			Key:       key,
			Value:     element.Encode(e),
			ValueHash: element.ValueHash(e, h.Bytes()),
			Feature:   merk.FeatureFromElement(e),
			Kind:      kind,
		}, false, nil

	case batch.OpReplaceTreeRootKey, batch.OpInsertTreeWithRootHash:
		e := op.Op.Element
		kind := merk.OpReplace
		if op.Op.Kind == batch.OpInsertTreeWithRootHash {
			kind = merk.OpPut
		}
		return merk.Op{
			Key:       key,
			Value:     element.Encode(e),
			ValueHash: element.ValueHash(e, op.Op.RootHash),
			Feature:   merk.FeatureFromElement(e),
			Kind:      kind,
		}, false, nil

	default:
		return merk.Op{}, false, grovedberr.New(grovedberr.KindInternal, "grove.ApplyBatch", nil).WithPath(at).WithKey(key)
	}
}

// clearChildKeyspace wipes childPath's own data/aux/roots columns, the
// same column-iteration ClearSubtree performs, without the separate
// propagate call ClearSubtree makes — the caller (applyOneSubtree) has
// already removed childPath's entry from its parent's Merk as part of the
// same batch, so propagateBatch's own walk of the parent path covers
// everything this deletion needs to surface upward.
func clearChildKeyspace(w rw, childPath path.Path) error {
	ctx := contextFor(w, childPath)
	for _, col := range []keyspace.Column{keyspace.ColumnData, keyspace.ColumnAux, keyspace.ColumnRoots} {
		var keys [][]byte
		if err := ctx.Iterate(col, nil, nil, func(k, v []byte) bool {
			keys = append(keys, append([]byte(nil), k...))
			return true
		}); err != nil {
			return grovedberr.New(grovedberr.KindInternal, "grove.ApplyBatch", err).WithPath(childPath)
		}
		for _, k := range keys {
			if err := ctx.Delete(col, k); err != nil {
				return grovedberr.New(grovedberr.KindInternal, "grove.ApplyBatch", err).WithPath(childPath)
			}
		}
	}
	return nil
}
