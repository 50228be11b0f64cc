package batch

import (
	"bytes"
	"sort"

	"github.com/grovedb/grove/element"
	"github.com/grovedb/grove/internal/grovedberr"
	"github.com/grovedb/grove/path"
)

type simpleBatchErr string

func (e simpleBatchErr) Error() string { return string(e) }

const (
	errInternalOnlyOpOnInput simpleBatchErr = "batch: internal-only op variant supplied directly by caller"
	errEmptyKey              simpleBatchErr = "batch: op missing a key"
	errDuplicateKey          simpleBatchErr = "batch: duplicate (path,key) for an op variant that does not allow accumulation"
	errAppendToMissing       simpleBatchErr = "batch: append op targets a (path,key) with no existing non-Merk element"
	errAppendKindMismatch    simpleBatchErr = "batch: append op kind does not match the existing element's kind"
)

// SortStable stable-sorts ops by (path, key) (spec.md §4.7 phase 1, step
// 1). Ops sharing a (path,key) retain their relative input order, which
// matters for duplicate-key accumulation (non-Merk appends must apply in
// the order the caller submitted them).
func SortStable(ops []QualifiedOp) {
	sort.SliceStable(ops, func(i, j int) bool {
		pi, pj := ops[i].Path.Key(), ops[j].Path.Key()
		if pi != pj {
			return pi < pj
		}
		return bytes.Compare(ops[i].Key, ops[j].Key) < 0
	})
}

// GroupByPath groups a (stably sorted) batch's ops by subtree path,
// preserving each group's relative order (spec.md §4.7 phase 1, step 2).
// The returned paths map lets a caller recover path.Path from the string
// key GroupByPath and Path.Key both use.
func GroupByPath(ops []QualifiedOp) (groups map[string][]QualifiedOp, paths map[string]path.Path) {
	groups = make(map[string][]QualifiedOp)
	paths = make(map[string]path.Path)
	for _, op := range ops {
		k := op.Path.Key()
		groups[k] = append(groups[k], op)
		if _, ok := paths[k]; !ok {
			paths[k] = op.Path
		}
	}
	return groups, paths
}

// Validate checks phase 1's structural rules that need no storage access:
// no internal-only op variant on input, every op carries a key, and
// duplicate (path,key) pairs only where the op variants involved allow
// accumulation (spec.md §4.7 phase 1, steps 1-3). Reference target
// resolution (step 4) and element-type compatibility against what is
// currently stored (the rest of step 3) both need a live read and are the
// caller's job — see ValidateElementCompatibility, called per (path,key)
// once the caller has looked up what (if anything) is there.
func Validate(ops []QualifiedOp) error {
	seen := make(map[string]GroveOpKind)
	for _, op := range ops {
		if op.Op.Kind.internalOnly() {
			return grovedberr.New(grovedberr.KindInternal, "batch.Validate", errInternalOnlyOpOnInput).WithPath(op.Path).WithKey(op.Key)
		}
		if len(op.Key) == 0 {
			return grovedberr.New(grovedberr.KindPathKey, "batch.Validate", errEmptyKey).WithPath(op.Path)
		}
		k := op.Path.Key() + "\x00" + string(op.Key)
		if prior, ok := seen[k]; ok {
			if !op.Op.Kind.AllowsDuplicateKey() || !prior.AllowsDuplicateKey() {
				return grovedberr.New(grovedberr.KindAlreadyExists, "batch.Validate", errDuplicateKey).WithPath(op.Path).WithKey(op.Key)
			}
		}
		seen[k] = op.Op.Kind
	}
	return nil
}

// ValidateElementCompatibility checks op against what is currently stored
// at the (path,key) it targets (spec.md §4.7 phase 1, step 3: "cannot
// replace a Tree with an Item"). existingFound is false when the key is
// currently absent.
func ValidateElementCompatibility(op GroveOp, existing element.Element, existingFound bool) error {
	switch op.Kind {
	case OpInsertOnly:
		if existingFound {
			return grovedberr.New(grovedberr.KindAlreadyExists, "batch.ValidateElementCompatibility", nil)
		}
	case OpReplace, OpPatch:
		if !existingFound {
			return grovedberr.New(grovedberr.KindNotFound, "batch.ValidateElementCompatibility", nil)
		}
	case OpDelete:
		if !existingFound {
			return grovedberr.New(grovedberr.KindNotFound, "batch.ValidateElementCompatibility", nil)
		}
	case OpDeleteTree:
		if !existingFound {
			return grovedberr.New(grovedberr.KindNotFound, "batch.ValidateElementCompatibility", nil)
		}
		if !existing.IsSubtreeFamily() {
			return grovedberr.New(grovedberr.KindTypeMismatch, "batch.ValidateElementCompatibility", nil)
		}
	case OpRefreshReference:
		if !existingFound || !existing.IsReference() {
			return grovedberr.New(grovedberr.KindTypeMismatch, "batch.ValidateElementCompatibility", nil)
		}
	case OpInsertOrReplace:
		if existingFound && existing.IsSubtreeFamily() && !op.Element.IsSubtreeFamily() {
			return grovedberr.New(grovedberr.KindTypeMismatch, "batch.ValidateElementCompatibility", nil)
		}
	case OpMmrAppend, OpBulkAppend, OpDenseInsert, OpCommitmentAppend:
		if !existingFound {
			return grovedberr.New(grovedberr.KindNotFound, "batch.ValidateElementCompatibility", nil)
		}
		if !nonMerkKindMatches(op.Kind, existing.Kind) {
			return grovedberr.New(grovedberr.KindTypeMismatch, "batch.ValidateElementCompatibility", errAppendKindMismatch)
		}
	}
	return nil
}

func nonMerkKindMatches(opKind GroveOpKind, existing element.Kind) bool {
	switch opKind {
	case OpMmrAppend:
		return existing == element.KindMmrTree
	case OpBulkAppend:
		return existing == element.KindBulkAppendTree
	case OpDenseInsert:
		return existing == element.KindDenseFixedTree
	case OpCommitmentAppend:
		return existing == element.KindCommitmentTree
	default:
		return false
	}
}
