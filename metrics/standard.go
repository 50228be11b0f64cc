package metrics

// Pre-defined metrics for the grove. All metrics live in DefaultRegistry
// so they are globally accessible without passing a registry around,
// mirroring the teacher's own standard.go
// (_teacher/metrics/standard.go), with the Ethereum-chain/txpool/p2p
// metric families replaced by grove-domain ones: Merk tree shape, batch
// engine throughput, proof generation, and non-Merk append structures.

var (
	// ---- Merk tree metrics ----

	// MerkRotations counts AVL rotations performed across all subtrees.
	MerkRotations = DefaultRegistry.Counter("merk.rotations", "AVL rotations performed")
	// MerkHeight tracks the height of the most recently touched Merk.
	MerkHeight = DefaultRegistry.Gauge("merk.height", "height of the most recently touched Merk tree")
	// MerkApplyLatency records apply_batch duration in milliseconds.
	MerkApplyLatency = DefaultRegistry.Histogram("merk.apply_ms", "Merk batch apply latency in milliseconds", nil)
	// MerkFetches counts Reference->Loaded link fetches from the keyspace.
	MerkFetches = DefaultRegistry.Counter("merk.fetches", "lazy child fetches from the keyspace")

	// ---- Grove hierarchy metrics ----

	// SubtreesOpen tracks the number of subtree Merks currently resident.
	SubtreesOpen = DefaultRegistry.Gauge("grove.subtrees_open", "resident Merk instances")
	// PropagationDepth records how many levels a root-hash propagation walked.
	PropagationDepth = DefaultRegistry.Histogram("grove.propagation_depth", "levels walked during root-hash propagation", nil)
	// ReferencesResolved counts successful reference dereferences.
	ReferencesResolved = DefaultRegistry.Counter("grove.references_resolved", "reference chains successfully resolved")
	// ReferenceLimitHits counts references that exhausted the hop cap.
	ReferenceLimitHits = DefaultRegistry.Counter("grove.reference_limit_hits", "references that exhausted the hop cap")

	// ---- Batch engine metrics ----

	// BatchOpsApplied counts individual GroveOps applied across all batches.
	BatchOpsApplied = DefaultRegistry.Counter("batch.ops_applied", "GroveOps applied")
	// BatchAborted counts batches that failed validation before any write.
	BatchAborted = DefaultRegistry.Counter("batch.aborted", "batches aborted during validation")
	// BatchRolledBack counts batches whose transaction was rolled back.
	BatchRolledBack = DefaultRegistry.Counter("batch.rolled_back", "batches rolled back after a phase-2 failure")

	// ---- Proof metrics ----

	// ProofsGenerated counts prove() calls.
	ProofsGenerated = DefaultRegistry.Counter("proof.generated", "proofs generated")
	// ProofBytesEmitted records proof size in bytes.
	ProofBytesEmitted = DefaultRegistry.Histogram("proof.bytes", "generated proof size in bytes", nil)
	// ProofVerificationFailures counts verify() calls that returned InvalidProof.
	ProofVerificationFailures = DefaultRegistry.Counter("proof.verification_failures", "proof verifications that failed")

	// ---- Non-Merk append structure metrics ----

	// MMRAppends counts MMR leaf appends.
	MMRAppends = DefaultRegistry.Counter("nonmerk.mmr_appends", "MMR leaf appends")
	// BulkAppendChunksSealed counts BulkAppendTree chunks sealed into the chunk MMR.
	BulkAppendChunksSealed = DefaultRegistry.Counter("nonmerk.bulk_chunks_sealed", "bulk-append chunks sealed")
	// DenseTreeInserts counts dense fixed-tree inserts.
	DenseTreeInserts = DefaultRegistry.Counter("nonmerk.dense_inserts", "dense fixed-tree inserts")
	// CommitmentTreeAppends counts commitment-tree appends.
	CommitmentTreeAppends = DefaultRegistry.Counter("nonmerk.commitment_appends", "commitment-tree appends")

	// ---- Keyspace metrics ----

	// TransactionsCommitted counts committed keyspace transactions.
	TransactionsCommitted = DefaultRegistry.Counter("keyspace.transactions_committed", "committed transactions")
	// TransactionConflicts counts optimistic commit conflicts (spec.md §5.2).
	TransactionConflicts = DefaultRegistry.Counter("keyspace.transaction_conflicts", "optimistic transaction conflicts")
)
