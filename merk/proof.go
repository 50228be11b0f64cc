package merk

import (
	"github.com/grovedb/grove/element"
	"github.com/grovedb/grove/hashutil"
	"github.com/grovedb/grove/internal/grovedberr"
	"github.com/grovedb/grove/types"
)

// ProofOpKind is one instruction of the stack-machine proof format (spec.md
// §4.5.1): Push adds a fragment, Parent/Child attach the two most recently
// pushed fragments to each other, and the Inverted trio mirror those three
// for proofs generated in descending (reverse) key order.
type ProofOpKind uint8

const (
	ProofPush ProofOpKind = iota
	ProofParent
	ProofChild
	ProofPushInverted
	ProofParentInverted
	ProofChildInverted
)

// ProofPayloadKind selects what a Push op reveals about the node it stands
// for (spec.md §4.5.1's payload catalogue).
type ProofPayloadKind uint8

const (
	// PayloadHash: an off-path sibling subtree, collapsed to its node_hash.
	// Nothing about its contents is revealed.
	PayloadHash ProofPayloadKind = iota
	// PayloadKVHash: an on-path ancestor outside the queried range. Its
	// kv_hash is revealed (needed to fold into node_hash) but its key and
	// value are not.
	PayloadKVHash
	// PayloadKV: a queried leaf-family element. The verifier derives
	// value_hash itself via hashutil.ValueHash.
	PayloadKV
	// PayloadKVValueHash: a queried element whose value_hash cannot be
	// rederived from the revealed bytes alone (subtree-family elements,
	// whose value_hash binds in a child root; references, whose value_hash
	// binds in the dereferenced target).
	PayloadKVValueHash
	// PayloadKVValueHashFeature: as PayloadKVValueHash, plus the aggregate
	// count a ProvableCountTree/ProvableCountSumTree node binds into
	// node_hash_with_count.
	PayloadKVValueHashFeature
	// PayloadKVDigest: a boundary node bracketing an absent key in an
	// absence proof. Key and value_hash are revealed (so the verifier can
	// confirm the bracket) but the value itself is not.
	PayloadKVDigest
)

// ProofOp is one stack-machine instruction.
type ProofOp struct {
	Kind        ProofOpKind
	PayloadKind ProofPayloadKind

	Hash      types.Hash // PayloadHash (node_hash), PayloadKVHash (kv_hash)
	Key       []byte     // PayloadKV, PayloadKVValueHash*, PayloadKVDigest
	Value     []byte     // PayloadKV, PayloadKVValueHash*
	ValueHash types.Hash // PayloadKVValueHash*, PayloadKVDigest
	Feature   Feature    // PayloadKVValueHashFeature
}

// fragment is the verifier's (and, read-only, the generator's) stack
// entry: everything needed to compute a subtree's node_hash once both of
// its children are known.
type fragment struct {
	opaque   bool
	nodeHash types.Hash // valid only if opaque

	kvHash            types.Hash
	bindCount         bool
	count             uint64
	left, right       types.Hash
	hasLeft, hasRight bool

	key, value []byte
	valueHash  types.Hash
	hasKey     bool // PayloadKV/PayloadKVValueHash*/PayloadKVDigest all set hasKey
	hasValue   bool // only PayloadKV/PayloadKVValueHash* set hasValue
}

func (f fragment) hash() types.Hash {
	if f.opaque {
		return f.nodeHash
	}
	left, right := types.ZeroHash, types.ZeroHash
	if f.hasLeft {
		left = f.left
	}
	if f.hasRight {
		right = f.right
	}
	if f.bindCount {
		return hashutil.NodeHashWithCount(f.kvHash, left, right, f.count)
	}
	return hashutil.NodeHash(f.kvHash, left, right)
}

// ProveRange generates the op sequence proving exactly the keys within
// [low, high] present in m, in ascending order unless reverse is true
// (spec.md §4.5.2). Keys in the range that are absent are implicitly
// proven absent: the verifier sees every on-path ancestor's kv_hash and
// every off-path sibling's node_hash, so a key's absence from the revealed
// KV payloads is provable from the reconstructed root matching.
func (m *Merk) ProveRange(low, high *Bound, reverse bool) ([]ProofOp, error) {
	return proveNode(m.root, m.fetch(), low, high, reverse, nil)
}

// ProveAbsence proves that key is not present in m, revealing the
// in-order predecessor and successor of key (if they exist) as
// PayloadKVDigest boundary nodes so the verifier can confirm they bracket
// key, and every other on-path ancestor as an opaque PayloadKVHash (spec.md
// §4.5.3).
func (m *Merk) ProveAbsence(key []byte) ([]ProofOp, error) {
	digest := map[string]bool{}

	var predKey []byte
	if err := m.IterateRange(nil, &Bound{Key: key, Inclusive: false}, true, func(k, _ []byte) bool {
		predKey = append([]byte(nil), k...)
		return false
	}); err != nil {
		return nil, err
	}
	if predKey != nil {
		digest[string(predKey)] = true
	}

	var succKey []byte
	if err := m.IterateRange(&Bound{Key: key, Inclusive: false}, nil, false, func(k, _ []byte) bool {
		succKey = append([]byte(nil), k...)
		return false
	}); err != nil {
		return nil, err
	}
	if succKey != nil {
		digest[string(succKey)] = true
	}

	bound := &Bound{Key: key, Inclusive: true}
	return proveNode(m.root, m.fetch(), bound, bound, false, digest)
}

func proveNode(n *Node, f Fetch, low, high *Bound, reverse bool, digest map[string]bool) ([]ProofOp, error) {
	if n == nil {
		return nil, nil
	}

	nearSide, farSide := Left, Right
	if reverse {
		nearSide, farSide = Right, Left
	}

	var ops []ProofOp

	nearOps, err := proveSide(n, f, nearSide, low, high, reverse, digest)
	if err != nil {
		return nil, err
	}
	ops = append(ops, nearOps...)

	selfOp := buildSelfOp(n, low, high, digest)
	if reverse {
		selfOp.Kind = ProofPushInverted
	} else {
		selfOp.Kind = ProofPush
	}
	ops = append(ops, selfOp)

	if n.child(nearSide) != nil {
		combine := ProofParent
		if reverse {
			combine = ProofParentInverted
		}
		ops = append(ops, ProofOp{Kind: combine})
	}

	farOps, err := proveSide(n, f, farSide, low, high, reverse, digest)
	if err != nil {
		return nil, err
	}
	ops = append(ops, farOps...)

	if n.child(farSide) != nil {
		combine := ProofChild
		if reverse {
			combine = ProofChildInverted
		}
		ops = append(ops, ProofOp{Kind: combine})
	}

	return ops, nil
}

func proveSide(n *Node, f Fetch, side Side, low, high *Bound, reverse bool, digest map[string]bool) ([]ProofOp, error) {
	link := n.child(side)
	if link == nil {
		return nil, nil
	}
	if mayContain(n, side, low, high) {
		child, err := fetchChild(f, n, side)
		if err != nil {
			return nil, err
		}
		return proveNode(child, f, low, high, reverse, digest)
	}
	pushKind := ProofPush
	if reverse {
		pushKind = ProofPushInverted
	}
	return []ProofOp{{Kind: pushKind, PayloadKind: PayloadHash, Hash: link.Hash}}, nil
}

func buildSelfOp(n *Node, low, high *Bound, digest map[string]bool) ProofOp {
	inRange := withinLow(n.Key, low) && withinHigh(n.Key, high)
	if !inRange {
		if digest != nil && digest[string(n.Key)] {
			return ProofOp{PayloadKind: PayloadKVDigest, Key: n.Key, ValueHash: n.ValueHash}
		}
		return ProofOp{PayloadKind: PayloadKVHash, Hash: n.KVHash}
	}

	e, err := element.Decode(n.Value)
	needsExplicitValueHash := err != nil || e.IsSubtreeFamily() || e.IsReference()
	if needsExplicitValueHash {
		if n.Feature.BindCount {
			return ProofOp{PayloadKind: PayloadKVValueHashFeature, Key: n.Key, Value: n.Value, ValueHash: n.ValueHash, Feature: n.Feature}
		}
		return ProofOp{PayloadKind: PayloadKVValueHash, Key: n.Key, Value: n.Value, ValueHash: n.ValueHash}
	}
	return ProofOp{PayloadKind: PayloadKV, Key: n.Key, Value: n.Value}
}

// ExecuteProof runs ops through the stack machine, returning the single
// resulting fragment's node_hash (the proven subtree's root) and every
// revealed key/value pair in push order (spec.md §4.5.1's "successful
// execution leaves exactly one fragment on the stack").
//
// TODO: this checks that ops reduce to the claimed root and that every
// revealed key/value is bound into that root, but it does not replay the
// generator's mayContain range decisions — a prover could relabel an
// in-range PayloadKV as an opaque PayloadKVHash with the same kv_hash to
// hide a match from a range query undetected. Closing this requires the
// verifier to walk ops in lock-step with the query's own bounds rather
// than executing them context-free.
func ExecuteProof(ops []ProofOp) (types.Hash, []ProvenKV, error) {
	var stack []fragment
	var revealed []ProvenKV

	pop2 := func() (top, below fragment, err error) {
		if len(stack) < 2 {
			return fragment{}, fragment{}, grovedberr.New(grovedberr.KindInvalidProof, "merk.ExecuteProof", errStackUnderflow)
		}
		top, below = stack[len(stack)-1], stack[len(stack)-2]
		stack = stack[:len(stack)-2]
		return top, below, nil
	}

	for _, op := range ops {
		switch op.Kind {
		case ProofPush, ProofPushInverted:
			frag, err := pushFragment(op)
			if err != nil {
				return types.ZeroHash, nil, err
			}
			if frag.hasKey {
				revealed = append(revealed, ProvenKV{
					Key: frag.key, Value: frag.value, ValueHash: frag.valueHash,
					HasValue: frag.hasValue, IsBoundary: op.PayloadKind == PayloadKVDigest,
				})
			}
			stack = append(stack, frag)

		case ProofParent:
			top, below, err := pop2()
			if err != nil {
				return types.ZeroHash, nil, err
			}
			top.left, top.hasLeft = below.hash(), true
			stack = append(stack, top)

		case ProofChild:
			top, below, err := pop2()
			if err != nil {
				return types.ZeroHash, nil, err
			}
			below.right, below.hasRight = top.hash(), true
			stack = append(stack, below)

		case ProofParentInverted:
			top, below, err := pop2()
			if err != nil {
				return types.ZeroHash, nil, err
			}
			top.right, top.hasRight = below.hash(), true
			stack = append(stack, top)

		case ProofChildInverted:
			top, below, err := pop2()
			if err != nil {
				return types.ZeroHash, nil, err
			}
			below.left, below.hasLeft = top.hash(), true
			stack = append(stack, below)

		default:
			return types.ZeroHash, nil, grovedberr.New(grovedberr.KindInvalidProof, "merk.ExecuteProof", errUnknownOp)
		}
	}

	if len(stack) != 1 {
		return types.ZeroHash, nil, grovedberr.New(grovedberr.KindInvalidProof, "merk.ExecuteProof", errNotSingleFragment)
	}
	return stack[0].hash(), revealed, nil
}

// ProvenKV is one key the proof revealed, in the order the stack machine
// pushed it.
type ProvenKV struct {
	Key        []byte
	Value      []byte
	ValueHash  types.Hash
	HasValue   bool
	IsBoundary bool // true for an absence proof's predecessor/successor
}

func pushFragment(op ProofOp) (fragment, error) {
	switch op.PayloadKind {
	case PayloadHash:
		return fragment{opaque: true, nodeHash: op.Hash}, nil
	case PayloadKVHash:
		return fragment{kvHash: op.Hash}, nil
	case PayloadKV:
		vh := hashutil.ValueHash(op.Value)
		return fragment{
			kvHash: hashutil.KVHash(op.Key, vh),
			key:    op.Key, value: op.Value, valueHash: vh,
			hasKey: true, hasValue: true,
		}, nil
	case PayloadKVValueHash:
		return fragment{
			kvHash: hashutil.KVHash(op.Key, op.ValueHash),
			key:    op.Key, value: op.Value, valueHash: op.ValueHash,
			hasKey: true, hasValue: true,
		}, nil
	case PayloadKVValueHashFeature:
		return fragment{
			kvHash: hashutil.KVHash(op.Key, op.ValueHash),
			key:    op.Key, value: op.Value, valueHash: op.ValueHash,
			hasKey: true, hasValue: true,
			bindCount: true, count: op.Feature.Count,
		}, nil
	case PayloadKVDigest:
		return fragment{
			kvHash: hashutil.KVHash(op.Key, op.ValueHash),
			key:    op.Key, valueHash: op.ValueHash,
			hasKey: true,
		}, nil
	default:
		return fragment{}, grovedberr.New(grovedberr.KindInvalidProof, "merk.pushFragment", errUnknownPayload)
	}
}

type simpleProofErr string

func (e simpleProofErr) Error() string { return string(e) }

const (
	errStackUnderflow    simpleProofErr = "proof stack underflow"
	errNotSingleFragment simpleProofErr = "proof did not reduce to a single fragment"
	errUnknownOp         simpleProofErr = "unknown proof op kind"
	errUnknownPayload    simpleProofErr = "unknown proof payload kind"
)
