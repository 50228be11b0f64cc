// Package proof implements GroveDB's multi-layer authenticated-query proof
// format (spec.md §4.5): a V0 proof chains one merk.ProofOp stack-machine
// layer per path segment plus a final layer executing the query itself,
// each layer's reconstructed root checked against the child root the
// previous layer's matched element embeds; a V1 proof replaces the
// innermost layer with a tagged envelope over whichever non-Merk append
// structure (spec.md §4.6) actually backs that subtree.
package proof

import (
	"bytes"

	"github.com/grovedb/grove/hashutil"
	"github.com/grovedb/grove/internal/grovedberr"
	"github.com/grovedb/grove/merk"
	"github.com/grovedb/grove/nonmerk/bulkappend"
	"github.com/grovedb/grove/nonmerk/commitment"
	"github.com/grovedb/grove/nonmerk/dense"
	"github.com/grovedb/grove/nonmerk/mmr"
	"github.com/grovedb/grove/types"
)

// Layer is one level of a multi-layer proof: the op sequence a single
// merk.Merk produced, either proving one path segment resolves to a
// subtree element or executing the terminal query (spec.md §4.5.4).
type Layer struct {
	Ops []merk.ProofOp
}

// RangeItem is one bound pair a query layer proves, carrying enough to
// call merk.Merk.ProveRange directly — the grove-level Query/QueryItem
// types live above this package (they know about subqueries and
// element decoding this package does not need), so callers translate
// their own query items into RangeItems before calling GenerateQueryLayer.
type RangeItem struct {
	Low, High *merk.Bound
	Reverse   bool
}

// EnvelopeKind tags which non-Merk structure a V1 Envelope proves against.
type EnvelopeKind uint8

const (
	EnvelopeMMR EnvelopeKind = iota + 1
	EnvelopeDense
	EnvelopeBulkAppend
	EnvelopeCommitment
)

// Envelope is a V1 proof for a non-Merk lower layer (spec.md §4.5.5,
// §4.6): ClaimedRoot is the non-Merk structure's root the prover asserts,
// which must both satisfy the structure's own Verify function and embed
// correctly into the enclosing Merk layer's combined value_hash for the
// path segment that names this subtree.
type Envelope struct {
	Kind        EnvelopeKind
	ClaimedRoot types.Hash
	SizeOrCount uint64 // mmr_size (MMR), buffer+chunk mmr_size (BulkAppend/Commitment), or count (Dense)
	ChunkPower  uint8  // BulkAppend, Commitment

	MMR        *mmr.Proof
	Dense      *dense.Proof
	BulkAppend *bulkappend.RangeProof
	Commitment *commitment.Proof
}

func (e *Envelope) verify() bool {
	switch e.Kind {
	case EnvelopeMMR:
		return e.MMR != nil && mmr.Verify(*e.MMR, e.SizeOrCount, e.ClaimedRoot)
	case EnvelopeDense:
		return e.Dense != nil && dense.Verify(*e.Dense, uint16(e.SizeOrCount), e.ClaimedRoot)
	case EnvelopeBulkAppend:
		return e.BulkAppend != nil && bulkappend.VerifyRange(*e.BulkAppend, e.ChunkPower, e.SizeOrCount, e.ClaimedRoot)
	case EnvelopeCommitment:
		return e.Commitment != nil && commitment.VerifyRange(*e.Commitment, e.ChunkPower, e.SizeOrCount, e.ClaimedRoot)
	default:
		return false
	}
}

func (e *Envelope) verifyAgainstValueHash(elementBytes []byte, valueHash types.Hash) bool {
	if hashutil.CombinedValueHashForSubtree(elementBytes, e.ClaimedRoot) != valueHash {
		return false
	}
	return e.verify()
}

// Proof is a full multi-layer proof for one PathQuery (spec.md §4.5.4).
// Layers[0..len(path)-1] each prove one path segment resolves to the next
// subtree; the remaining layer (or Envelope, for a V1 proof) proves the
// terminal query's result.
type Proof struct {
	Layers   []Layer
	Envelope *Envelope
}

// GeneratePathLayer proves that key resolves to a subtree-family element
// within m — one upper layer of a multi-layer proof (spec.md §4.5.4).
func GeneratePathLayer(m *merk.Merk, key []byte) (Layer, error) {
	b := &merk.Bound{Key: key, Inclusive: true}
	ops, err := m.ProveRange(b, b, false)
	if err != nil {
		return Layer{}, err
	}
	return Layer{Ops: ops}, nil
}

// GenerateQueryLayer proves the result of executing items against m — the
// terminal layer of a V0 multi-layer proof.
func GenerateQueryLayer(m *merk.Merk, items []RangeItem) (Layer, error) {
	var ops []merk.ProofOp
	for _, it := range items {
		o, err := m.ProveRange(it.Low, it.High, it.Reverse)
		if err != nil {
			return Layer{}, err
		}
		ops = append(ops, o...)
	}
	return Layer{Ops: ops}, nil
}

// GenerateAbsenceLayer proves that key is absent from m — an alternate
// terminal layer for an exact-key query with no match (spec.md §4.5.3).
func GenerateAbsenceLayer(m *merk.Merk, key []byte) (Layer, error) {
	ops, err := m.ProveAbsence(key)
	if err != nil {
		return Layer{}, err
	}
	return Layer{Ops: ops}, nil
}

// VerifyChain verifies p against expectedRoot (the grove's root hash) and
// path (the key resolved at each upper layer), returning the revealed KV
// pairs of the terminal Merk layer. For a V1 proof (p.Envelope != nil) the
// terminal layer is the envelope rather than a Merk layer, and the
// returned slice is always empty — callers read the envelope's own
// revealed entries (mmr.Proof.LeafValue, dense.Proof.Entries, etc.)
// directly (spec.md §4.5.4-§4.5.5's top-down verification).
func VerifyChain(p Proof, path [][]byte, expectedRoot types.Hash) ([]merk.ProvenKV, error) {
	wantLayers := len(path) + 1
	if p.Envelope != nil {
		wantLayers = len(path)
	}
	if len(p.Layers) != wantLayers {
		return nil, grovedberr.New(grovedberr.KindInvalidProof, "proof.VerifyChain", errLayerCountMismatch)
	}

	roots := make([]types.Hash, len(p.Layers))
	revealed := make([][]merk.ProvenKV, len(p.Layers))
	for i, layer := range p.Layers {
		root, kvs, err := merk.ExecuteProof(layer.Ops)
		if err != nil {
			return nil, err
		}
		roots[i] = root
		revealed[i] = kvs
	}

	if p.Envelope != nil {
		last := len(path) - 1
		eb, vh, ok := findKV(revealed[last], path[last])
		if !ok {
			return nil, grovedberr.New(grovedberr.KindInvalidProof, "proof.VerifyChain", errPathSegmentNotProven)
		}
		if !p.Envelope.verifyAgainstValueHash(eb, vh) {
			return nil, grovedberr.New(grovedberr.KindInvalidProof, "proof.VerifyChain", errChildRootMismatch)
		}
		for i := last - 1; i >= 0; i-- {
			eb, vh, ok := findKV(revealed[i], path[i])
			if !ok {
				return nil, grovedberr.New(grovedberr.KindInvalidProof, "proof.VerifyChain", errPathSegmentNotProven)
			}
			if hashutil.CombinedValueHashForSubtree(eb, roots[i+1]) != vh {
				return nil, grovedberr.New(grovedberr.KindInvalidProof, "proof.VerifyChain", errChildRootMismatch)
			}
		}
		if roots[0] != expectedRoot {
			return nil, grovedberr.New(grovedberr.KindInvalidProof, "proof.VerifyChain", errRootMismatch)
		}
		return nil, nil
	}

	for i := len(path) - 1; i >= 0; i-- {
		eb, vh, ok := findKV(revealed[i], path[i])
		if !ok {
			return nil, grovedberr.New(grovedberr.KindInvalidProof, "proof.VerifyChain", errPathSegmentNotProven)
		}
		if hashutil.CombinedValueHashForSubtree(eb, roots[i+1]) != vh {
			return nil, grovedberr.New(grovedberr.KindInvalidProof, "proof.VerifyChain", errChildRootMismatch)
		}
	}
	if roots[0] != expectedRoot {
		return nil, grovedberr.New(grovedberr.KindInvalidProof, "proof.VerifyChain", errRootMismatch)
	}
	return revealed[len(revealed)-1], nil
}

func findKV(kvs []merk.ProvenKV, key []byte) (value []byte, valueHash types.Hash, ok bool) {
	for _, kv := range kvs {
		if kv.HasValue && bytes.Equal(kv.Key, key) {
			return kv.Value, kv.ValueHash, true
		}
	}
	return nil, types.Hash{}, false
}

type simpleProofErr string

func (e simpleProofErr) Error() string { return string(e) }

const (
	errLayerCountMismatch   simpleProofErr = "proof layer count does not match the queried path"
	errPathSegmentNotProven simpleProofErr = "proof does not reveal the element at a required path segment"
	errChildRootMismatch    simpleProofErr = "a layer's child root does not match the next layer's reconstructed root"
	errRootMismatch         simpleProofErr = "the outermost layer's reconstructed root does not match the expected root"
)
