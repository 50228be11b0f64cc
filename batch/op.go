// Package batch implements GroveDB's multi-op batch engine (spec.md
// §4.7): the `GroveOp`/`QualifiedOp` vocabulary a caller submits,
// storage-agnostic phase 1 validation (stable sort, path grouping,
// element-type compatibility, duplicate-key rules), and phase 1.5's
// non-Merk append preprocessing, which converts a run of append ops
// against one (path,key) into a single replacement op the generic
// per-subtree Merk executor (grove's own phase 2) can apply like any
// other element write. Grounded on the teacher's transaction pool batch
// validation (_teacher/core/txpool: stable-sort by nonce, validate each
// before admission, reject anything the pool's own internal bookkeeping
// produces) generalized from one flat list to a path-partitioned one.
package batch

import (
	"github.com/grovedb/grove/element"
	"github.com/grovedb/grove/path"
)

// GroveOpKind is the discriminant of one GroveOp (spec.md §4.7).
type GroveOpKind uint8

const (
	// OpInsertOnly fails if (path,key) is already occupied.
	OpInsertOnly GroveOpKind = iota
	// OpInsertOrReplace writes unconditionally.
	OpInsertOrReplace
	// OpReplace fails if (path,key) is currently absent.
	OpReplace
	// OpPatch applies Patch's precomputed delta bytes to an existing
	// value; Merk treats it identically to OpReplace (spec.md §4.3.4).
	OpPatch
	// OpDelete removes (path,key), leaving a Tree-family child's own
	// keyspace untouched.
	OpDelete
	// OpDeleteTree removes (path,key) and requires it be a Tree-family
	// element; whether to also wipe the child keyspace is the caller's
	// choice, signaled separately (spec.md §4.4.1/§4.4.2's distinction).
	OpDeleteTree
	// OpRefreshReference re-resolves and rehashes a Reference element
	// already stored at (path,key) without changing its target
	// expression, for the "pending" references AllowUntrustedReferenceInsert
	// admitted earlier.
	OpRefreshReference
	// OpMmrAppend appends AppendValue to the MmrTree at (path,key).
	OpMmrAppend
	// OpBulkAppend appends AppendValue to the BulkAppendTree at (path,key).
	OpBulkAppend
	// OpDenseInsert appends AppendValue to the DenseFixedTree at (path,key).
	OpDenseInsert
	// OpCommitmentAppend appends CommitmentPayload to the CommitmentTree
	// at (path,key).
	OpCommitmentAppend

	// OpReplaceTreeRootKey, OpInsertTreeWithRootHash, OpReplaceNonMerkTreeRoot
	// and OpInsertNonMerkTree are produced only by phase 1.5 preprocessing
	// and phase 2 propagation; Validate rejects them if a caller supplies
	// one directly (spec.md §4.7: "Internal variants... rejected if
	// present on input").
	OpReplaceTreeRootKey
	OpInsertTreeWithRootHash
	OpReplaceNonMerkTreeRoot
	OpInsertNonMerkTree
)

func (k GroveOpKind) String() string {
	switch k {
	case OpInsertOnly:
		return "InsertOnly"
	case OpInsertOrReplace:
		return "InsertOrReplace"
	case OpReplace:
		return "Replace"
	case OpPatch:
		return "Patch"
	case OpDelete:
		return "Delete"
	case OpDeleteTree:
		return "DeleteTree"
	case OpRefreshReference:
		return "RefreshReference"
	case OpMmrAppend:
		return "MmrAppend"
	case OpBulkAppend:
		return "BulkAppend"
	case OpDenseInsert:
		return "DenseInsert"
	case OpCommitmentAppend:
		return "CommitmentAppend"
	case OpReplaceTreeRootKey:
		return "ReplaceTreeRootKey"
	case OpInsertTreeWithRootHash:
		return "InsertTreeWithRootHash"
	case OpReplaceNonMerkTreeRoot:
		return "ReplaceNonMerkTreeRoot"
	case OpInsertNonMerkTree:
		return "InsertNonMerkTree"
	default:
		return "Unknown"
	}
}

// internalOnly reports whether k may only be produced by this package's
// own preprocessing or by the grove layer's phase 2 propagation, never
// supplied directly by a caller.
func (k GroveOpKind) internalOnly() bool {
	switch k {
	case OpReplaceTreeRootKey, OpInsertTreeWithRootHash, OpReplaceNonMerkTreeRoot, OpInsertNonMerkTree:
		return true
	default:
		return false
	}
}

// IsNonMerkAppend reports whether k is one of the four append variants
// phase 1.5 preprocesses.
func (k GroveOpKind) IsNonMerkAppend() bool {
	switch k {
	case OpMmrAppend, OpBulkAppend, OpDenseInsert, OpCommitmentAppend:
		return true
	default:
		return false
	}
}

// AllowsDuplicateKey reports whether two ops may legally share the same
// (path,key) within one batch — only the non-Merk append variants
// accumulate rather than overwrite each other (spec.md §4.7 phase 1, step
// 3: "non-Merk append variants explicitly allow duplicates").
func (k GroveOpKind) AllowsDuplicateKey() bool {
	return k.IsNonMerkAppend()
}

// CommitmentPayload is OpCommitmentAppend's operand (spec.md §4.6.4).
type CommitmentPayload struct {
	Commitment []byte
	Ciphertext []byte
}

// GroveOp is one mutation a QualifiedOp applies (spec.md §4.7).
type GroveOp struct {
	Kind GroveOpKind

	// Element is the new element for InsertOnly/InsertOrReplace/Replace/
	// InsertTreeWithRootHash/ReplaceNonMerkTreeRoot/InsertNonMerkTree.
	Element element.Element
	// Patch is OpPatch's precomputed delta bytes.
	Patch []byte
	// TrustRefresh, on an Insert* op whose Element is a Reference, skips
	// the target-existence check phase 1 step 4 would otherwise perform
	// (spec.md §4.7 phase 1, step 4; gated by
	// config.FeatureFlags.AllowUntrustedReferenceInsert at the grove
	// layer).
	TrustRefresh bool

	// ClearChildKeyspace, on OpDeleteTree, also wipes the child subtree's
	// own data/aux/roots columns (merk.OpDeleteLayered) instead of merely
	// detaching it from its parent (spec.md §4.4.1 vs §4.4.2).
	ClearChildKeyspace bool

	// AppendValue is OpMmrAppend/OpBulkAppend/OpDenseInsert's operand.
	AppendValue []byte
	// CommitmentPayload is OpCommitmentAppend's operand.
	CommitmentPayload *CommitmentPayload

	// RootHash is OpReplaceTreeRootKey's new child root (an internal
	// variant produced by phase 2 propagation; see grove/propagate.go).
	RootHash []byte
}

// QualifiedOp addresses a GroveOp at a specific subtree path and key
// (spec.md §4.7).
type QualifiedOp struct {
	Path path.Path
	Key  []byte
	Op   GroveOp
}

// Options configures ApplyBatch (spec.md §6.1's apply_batch opts).
type Options struct {
	// TrustAllReferences skips phase 1 step 4's target-existence check
	// for every Reference-valued Insert* op in the batch, equivalent to
	// setting TrustRefresh on each individually.
	TrustAllReferences bool
}
