package grove

import (
	"github.com/grovedb/grove/element"
	"github.com/grovedb/grove/internal/grovedberr"
	"github.com/grovedb/grove/merk"
	"github.com/grovedb/grove/path"
	"github.com/grovedb/grove/proof"
	"github.com/grovedb/grove/types"
)

// Prove builds a multi-layer authenticated proof for pq (spec.md §4.5.4,
// §6.1's prove(db, path_query, tx?)): one layer per segment of pq.Path
// proving it resolves to the next subtree, followed by a layer executing
// pq.Query against the subtree pq.Path addresses. V1 lower layers (a
// non-Merk structure backing the innermost subtree) are not generated
// here; ProveEnvelope builds those separately once the caller knows which
// subtree is non-Merk-backed.
func (db *GroveDb) Prove(pq PathQuery, tx *Tx) (proof.Proof, error) {
	w := db.rwOf(tx)

	layers := make([]proof.Layer, 0, len(pq.Path)+1)
	at := path.Path(nil)
	for _, seg := range pq.Path {
		m, err := merk.Open(contextFor(w, at))
		if err != nil {
			return proof.Proof{}, grovedberr.New(grovedberr.KindStorage, "grove.Prove", err).WithPath(at)
		}
		layer, err := proof.GeneratePathLayer(m, seg)
		if err != nil {
			return proof.Proof{}, grovedberr.New(grovedberr.KindInvalidProof, "grove.Prove", err).WithPath(at).WithKey(seg)
		}
		layers = append(layers, layer)
		at = at.Append(seg)
	}

	m, err := merk.Open(contextFor(w, at))
	if err != nil {
		return proof.Proof{}, grovedberr.New(grovedberr.KindStorage, "grove.Prove", err).WithPath(at)
	}

	items := make([]proof.RangeItem, len(pq.Query.Query.Items))
	reverse := pq.Query.Query.Direction == DirectionReverse
	for i, it := range pq.Query.Query.Items {
		low, high := it.bounds()
		items[i] = proof.RangeItem{Low: low, High: high, Reverse: reverse}
	}
	final, err := proof.GenerateQueryLayer(m, items)
	if err != nil {
		return proof.Proof{}, grovedberr.New(grovedberr.KindInvalidProof, "grove.Prove", err).WithPath(at)
	}
	layers = append(layers, final)

	return proof.Proof{Layers: layers}, nil
}

// ProveAbsence builds a proof that key is not present in the subtree pq
// addresses, in place of the terminal query layer Prove would generate
// (spec.md §4.5.3). Callers use this for a single-key lookup that found no
// match and need to prove that negative result.
func (db *GroveDb) ProveAbsence(pq PathQuery, key []byte, tx *Tx) (proof.Proof, error) {
	w := db.rwOf(tx)

	layers := make([]proof.Layer, 0, len(pq.Path)+1)
	at := path.Path(nil)
	for _, seg := range pq.Path {
		m, err := merk.Open(contextFor(w, at))
		if err != nil {
			return proof.Proof{}, grovedberr.New(grovedberr.KindStorage, "grove.ProveAbsence", err).WithPath(at)
		}
		layer, err := proof.GeneratePathLayer(m, seg)
		if err != nil {
			return proof.Proof{}, grovedberr.New(grovedberr.KindInvalidProof, "grove.ProveAbsence", err).WithPath(at).WithKey(seg)
		}
		layers = append(layers, layer)
		at = at.Append(seg)
	}

	m, err := merk.Open(contextFor(w, at))
	if err != nil {
		return proof.Proof{}, grovedberr.New(grovedberr.KindStorage, "grove.ProveAbsence", err).WithPath(at)
	}
	final, err := proof.GenerateAbsenceLayer(m, key)
	if err != nil {
		return proof.Proof{}, grovedberr.New(grovedberr.KindInvalidProof, "grove.ProveAbsence", err).WithPath(at).WithKey(key)
	}
	layers = append(layers, final)

	return proof.Proof{Layers: layers}, nil
}

// VerifyProof checks p against pq's path and expectedRoot (the grove's
// root hash a caller has out-of-band trust in, e.g. from RootHash or a
// block header), returning the elements the terminal layer revealed
// (spec.md §6.1's verify(proof, expected_root)). A proof rejected by
// proof.VerifyChain yields a KindInvalidProof error.
func (db *GroveDb) VerifyProof(p proof.Proof, pq PathQuery, expectedRoot types.Hash) ([]Result, error) {
	revealed, err := proof.VerifyChain(p, pq.Path, expectedRoot)
	if err != nil {
		return nil, grovedberr.New(grovedberr.KindInvalidProof, "grove.VerifyProof", err).WithPath(pq.Path)
	}
	results := make([]Result, 0, len(revealed))
	for _, kv := range revealed {
		if !kv.HasValue {
			continue
		}
		e, err := element.Decode(kv.Value)
		if err != nil {
			return nil, grovedberr.New(grovedberr.KindInvalidProof, "grove.VerifyProof", err).WithPath(pq.Path).WithKey(kv.Key)
		}
		results = append(results, Result{Path: pq.Path, Key: append([]byte(nil), kv.Key...), Element: e})
	}
	return results, nil
}
