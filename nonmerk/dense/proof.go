package dense

import (
	"github.com/grovedb/grove/hashutil"
	"github.com/grovedb/grove/internal/grovedberr"
	"github.com/grovedb/grove/types"
)

// maxProofEntries bounds every proof field (spec.md §4.6.3's "any field
// larger than 100 000 entries" rejection).
const maxProofEntries = 100_000

// Entry is one proved (position, value) pair.
type Entry struct {
	Position uint32
	Value    []byte
}

// Proof is a dense-tree inclusion proof for one or more positions (spec.md
// §4.6.3): the proved entries themselves, the value_hash of every other
// ancestor on an auth path, and the full subtree hash of every sibling off
// an auth path.
type Proof struct {
	Entries             []Entry
	AncestorValueHashes map[uint32]types.Hash
	SiblingHashes       map[uint32]types.Hash
}

func parentOf(pos uint32) uint32 {
	return (pos - 1) / 2
}

func siblingOf(pos uint32) uint32 {
	if pos%2 == 1 {
		return pos + 1
	}
	return pos - 1
}

// Prove builds an inclusion proof for the given positions.
func (t *Tree) Prove(positions []uint32) (Proof, error) {
	onPath := make(map[uint32]bool)
	proved := make(map[uint32]bool)
	for _, p := range positions {
		proved[p] = true
		cur := p
		onPath[cur] = true
		for cur != 0 {
			cur = parentOf(cur)
			onPath[cur] = true
		}
	}

	proof := Proof{
		AncestorValueHashes: make(map[uint32]types.Hash),
		SiblingHashes:       make(map[uint32]types.Hash),
	}
	for _, p := range positions {
		v, ok, err := t.Get(p)
		if err != nil {
			return Proof{}, err
		}
		if !ok {
			return Proof{}, grovedberr.New(grovedberr.KindNotFound, "dense.Prove", errPositionAbsent)
		}
		proof.Entries = append(proof.Entries, Entry{Position: p, Value: v})
	}

	for _, p := range positions {
		cur := p
		for cur != 0 {
			cur = parentOf(cur)
			if !proved[cur] {
				if _, already := proof.AncestorValueHashes[cur]; !already {
					v, ok, err := t.Get(cur)
					if err != nil {
						return Proof{}, err
					}
					if ok {
						proof.AncestorValueHashes[cur] = hashutil.Sum(v)
					}
				}
			}
		}
	}

	for _, p := range positions {
		cur := p
		for {
			sib := siblingOf(cur)
			if !onPath[sib] {
				if _, already := proof.SiblingHashes[sib]; !already {
					h, err := t.hashAt(sib)
					if err != nil {
						return Proof{}, err
					}
					proof.SiblingHashes[sib] = h
				}
			}
			if cur == 0 {
				break
			}
			cur = parentOf(cur)
		}
	}

	return proof, nil
}

var errPositionAbsent = simpleErr("dense: proved position is beyond count")

// Verify checks proof against count (the tree's filled-position count, the
// implicit capacity boundary for the zero sentinel) and the expected root.
// Pre-checks reject duplicate/overlapping positions across the three
// fields, a sibling hash supplied for any ancestor of a proved entry (which
// would let the prover forge that entry's value), and oversized fields
// (spec.md §4.6.3).
func Verify(proof Proof, count uint16, root types.Hash) bool {
	if len(proof.Entries) > maxProofEntries || len(proof.AncestorValueHashes) > maxProofEntries || len(proof.SiblingHashes) > maxProofEntries {
		return false
	}

	seen := make(map[uint32]string)
	for _, e := range proof.Entries {
		if _, dup := seen[e.Position]; dup {
			return false
		}
		seen[e.Position] = "entry"
	}
	for pos := range proof.AncestorValueHashes {
		if _, dup := seen[pos]; dup {
			return false
		}
		seen[pos] = "ancestor"
	}
	for pos := range proof.SiblingHashes {
		if _, dup := seen[pos]; dup {
			return false
		}
		seen[pos] = "sibling"
	}

	onPath := make(map[uint32]bool)
	for _, e := range proof.Entries {
		cur := e.Position
		onPath[cur] = true
		for cur != 0 {
			cur = parentOf(cur)
			onPath[cur] = true
		}
	}
	for pos := range proof.SiblingHashes {
		if onPath[pos] {
			// A sibling hash supplied for a position that is itself on a
			// proved auth path would let the verifier accept a forged
			// value at that position (spec.md §4.6.3's explicit reject).
			return false
		}
	}

	values := make(map[uint32][]byte, len(proof.Entries))
	for _, e := range proof.Entries {
		values[e.Position] = e.Value
	}

	var nodeHash func(pos uint32) (types.Hash, bool)
	nodeHash = func(pos uint32) (types.Hash, bool) {
		if pos >= uint32(count) {
			return types.ZeroHash, true
		}
		if h, ok := proof.SiblingHashes[pos]; ok {
			return h, true
		}
		var vh types.Hash
		if v, ok := values[pos]; ok {
			vh = hashutil.Sum(v)
		} else if h, ok := proof.AncestorValueHashes[pos]; ok {
			vh = h
		} else {
			return types.Hash{}, false
		}
		lh, ok1 := nodeHash(left(pos))
		rh, ok2 := nodeHash(right(pos))
		if !ok1 || !ok2 {
			return types.Hash{}, false
		}
		return hashutil.Sum(vh.Bytes(), lh.Bytes(), rh.Bytes()), true
	}

	computed, ok := nodeHash(0)
	return ok && computed == root
}
