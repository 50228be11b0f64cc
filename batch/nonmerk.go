package batch

import (
	"github.com/grovedb/grove/element"
	"github.com/grovedb/grove/internal/grovedberr"
	"github.com/grovedb/grove/keyspace"
	"github.com/grovedb/grove/nonmerk/bulkappend"
	"github.com/grovedb/grove/nonmerk/commitment"
	"github.com/grovedb/grove/nonmerk/dense"
	"github.com/grovedb/grove/nonmerk/mmr"
	"github.com/grovedb/grove/path"
)

// RW is the minimal read/write surface this package's storage-touching
// helpers need; keyspace.Store and keyspace.Transaction both satisfy it.
type RW interface {
	keyspace.Reader
	keyspace.Writer
}

// Lookup resolves the element currently stored at (p,key), reporting
// false if absent — the same shape grove's own internal getRaw has, kept
// as a caller-supplied function so this package never needs to know how
// the grove layer resolves references or opens a Merk.
type Lookup func(p path.Path, key []byte) (e element.Element, found bool, err error)

// PreprocessNonMerk implements spec.md §4.7 phase 1.5: it groups ops by
// (path,key), leaves every non-append op untouched, and for each group of
// append ops applies them in order against the live non-Merk structure
// (opened directly via keyspace.NewContext + path.SubtreePrefix, exactly
// as grove.childRoot does), replacing the whole group with one
// OpReplaceNonMerkTreeRoot op carrying the resulting element (updated
// sizing fields, same Flags). The returned batch is consumable by the
// standard per-subtree Merk executor exactly like any other element
// write, closing the loop back into phase 2.
func PreprocessNonMerk(w RW, ops []QualifiedOp, lookup Lookup) ([]QualifiedOp, error) {
	out := make([]QualifiedOp, 0, len(ops))

	type group struct {
		path path.Path
		key  []byte
		ops  []QualifiedOp
	}
	groups := make(map[string]*group)
	var order []string

	for _, op := range ops {
		if !op.Op.Kind.IsNonMerkAppend() {
			out = append(out, op)
			continue
		}
		k := op.Path.Key() + "\x00" + string(op.Key)
		g, ok := groups[k]
		if !ok {
			g = &group{path: op.Path, key: op.Key}
			groups[k] = g
			order = append(order, k)
		}
		g.ops = append(g.ops, op)
	}

	for _, k := range order {
		g := groups[k]
		existing, found, err := lookup(g.path, g.key)
		if err != nil {
			return nil, grovedberr.New(grovedberr.KindInternal, "batch.PreprocessNonMerk", err).WithPath(g.path).WithKey(g.key)
		}
		if !found {
			return nil, grovedberr.New(grovedberr.KindNotFound, "batch.PreprocessNonMerk", errAppendToMissing).WithPath(g.path).WithKey(g.key)
		}
		for _, op := range g.ops {
			if !nonMerkKindMatches(op.Op.Kind, existing.Kind) {
				return nil, grovedberr.New(grovedberr.KindTypeMismatch, "batch.PreprocessNonMerk", errAppendKindMismatch).WithPath(g.path).WithKey(g.key)
			}
		}

		childPath := g.path.Append(g.key)
		ctx := keyspace.NewContext(w, path.SubtreePrefix(childPath).Bytes())
		newElem, err := applyAppendGroup(ctx, existing, g.ops)
		if err != nil {
			return nil, grovedberr.New(grovedberr.KindInternal, "batch.PreprocessNonMerk", err).WithPath(g.path).WithKey(g.key)
		}

		out = append(out, QualifiedOp{
			Path: g.path,
			Key:  g.key,
			Op:   GroveOp{Kind: OpReplaceNonMerkTreeRoot, Element: newElem},
		})
	}

	return out, nil
}

func applyAppendGroup(ctx *keyspace.Context, e element.Element, ops []QualifiedOp) (element.Element, error) {
	switch e.Kind {
	case element.KindMmrTree:
		t := mmr.Open(ctx, e.MmrLeafCount)
		for _, op := range ops {
			if _, err := t.Append(op.Op.AppendValue); err != nil {
				return element.Element{}, err
			}
		}
		return element.NewMmrTree(t.LeafCount(), e.Flags), nil

	case element.KindBulkAppendTree:
		t := bulkappend.Open(ctx, e.TotalCount, e.ChunkPower, e.BufferCount, e.MmrLeafCount)
		for _, op := range ops {
			if _, err := t.Append(op.Op.AppendValue); err != nil {
				return element.Element{}, err
			}
		}
		return element.NewBulkAppendTree(t.TotalCount(), e.ChunkPower, t.BufferCount(), t.ChunkMMRLeafCount(), e.Flags), nil

	case element.KindDenseFixedTree:
		t := dense.Open(ctx, e.Height, e.DenseCount)
		for _, op := range ops {
			if _, err := t.Insert(op.Op.AppendValue); err != nil {
				return element.Element{}, err
			}
		}
		return element.NewDenseFixedTree(t.Count(), e.Height, e.Flags), nil

	case element.KindCommitmentTree:
		t, err := commitment.Open(ctx, nil, e.TotalCount, e.ChunkPower, e.BufferCount, e.MmrLeafCount)
		if err != nil {
			return element.Element{}, err
		}
		for _, op := range ops {
			p := op.Op.CommitmentPayload
			if p == nil {
				return element.Element{}, errMissingCommitmentPayload
			}
			if _, err := t.Append(commitment.Payload{Commitment: p.Commitment, Ciphertext: p.Ciphertext}); err != nil {
				return element.Element{}, err
			}
		}
		return element.NewCommitmentTree(t.Count(), e.ChunkPower, t.BufferCount(), t.ChunkMMRLeafCount(), e.Flags), nil

	default:
		return element.Element{}, errNotNonMerkElement
	}
}

const (
	errNotNonMerkElement        simpleBatchErr = "batch: existing element at an append op's target is not one of the four non-Merk kinds"
	errMissingCommitmentPayload simpleBatchErr = "batch: OpCommitmentAppend op missing its CommitmentPayload"
)
