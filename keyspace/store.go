// Package keyspace implements the abstract transactional key-value store
// of spec.md §4.2: four named columns (data, aux, roots, meta), subtree
// contexts that add a 32-byte path-derived prefix to every key, optimistic
// transactions, and a batch accumulator that coalesces per-key writes into
// one native batch at commit.
//
// The storage engine is github.com/dgraph-io/badger/v3: badger's
// transaction model is Serializable Snapshot Isolation with explicit
// conflict detection on Commit, which is exactly the "optimistic
// transaction" semantics spec.md §4.2/§5.2 describe (as opposed to e.g.
// cockroachdb/pebble's batches, which carry no such conflict check — see
// DESIGN.md). Badger has no native column families, so columns are
// implemented as a single-byte tag prefixed onto every key, the same
// "code prefix" convention used by the teacher's storage/badger layer
// (Tobenna-KA-flow-go/storage/badger/operation/receipts.go's makePrefix).
package keyspace

import "errors"

// Column identifies one of the grove's four named keyspace columns
// (spec.md §4.2, §6.2).
type Column byte

const (
	// ColumnData holds Merk node blobs and non-Merk raw data, prefixed
	// per subtree.
	ColumnData Column = iota
	// ColumnAux holds application-defined side data, prefixed per subtree.
	ColumnAux
	// ColumnRoots holds the per-subtree root-key pointer, prefixed per
	// subtree.
	ColumnRoots
	// ColumnMeta holds grove-wide state (version, feature flags, the
	// grove-root key) and is NEVER prefixed, even within a subtree
	// context (spec.md §4.2).
	ColumnMeta
)

func (c Column) String() string {
	switch c {
	case ColumnData:
		return "data"
	case ColumnAux:
		return "aux"
	case ColumnRoots:
		return "roots"
	case ColumnMeta:
		return "meta"
	default:
		return "unknown"
	}
}

// ErrKeyNotFound is returned by Get when the key is absent from the
// requested column.
var ErrKeyNotFound = errors.New("keyspace: key not found")

// ErrConflict is returned by Transaction.Commit when another transaction
// committed a conflicting write first (spec.md §5.2).
var ErrConflict = errors.New("keyspace: transaction conflict")

// Reader is the read-only half of Store and Transaction.
type Reader interface {
	Get(col Column, key []byte) ([]byte, error)
	Has(col Column, key []byte) (bool, error)
	// Iterate calls fn for every key in col with the given prefix, in
	// ascending lexicographic order, starting at or after start. Iteration
	// stops early if fn returns false.
	Iterate(col Column, prefix, start []byte, fn func(key, value []byte) bool) error
}

// Writer is the write half of Store and Transaction.
type Writer interface {
	Put(col Column, key, value []byte) error
	Delete(col Column, key []byte) error
}

// Store is the top-level keyspace handle: it owns the physical engine and
// can start transactions. Single-shot convenience methods (Get/Put/Delete)
// are also provided for callers who don't need an explicit transaction.
type Store interface {
	Reader
	Writer

	// StartTransaction begins a new optimistic transaction. Writes made
	// through it are visible to reads through the same Transaction, but
	// not to other transactions or to the Store's own convenience methods
	// until Commit succeeds (spec.md §5.2).
	StartTransaction() Transaction

	// Checkpoint copies the entire keyspace to directoryPath as of the
	// current committed state.
	Checkpoint(directoryPath string) error

	// Flush forces any buffered writes to durable storage.
	Flush() error

	// Close releases the underlying engine.
	Close() error
}

// Transaction is an in-flight optimistic transaction (spec.md §5.2). A
// caller holding a borrow on a Transaction through a SubtreeContext MUST
// release that borrow before calling Commit or Rollback — writes made
// through a still-borrowed context are lost on drop without commit, by
// design (spec.md §4.2, "critical pattern").
type Transaction interface {
	Reader
	Writer

	// Commit atomically applies every buffered write across all columns.
	// Returns ErrConflict if a concurrent transaction committed a
	// conflicting write first; the caller is responsible for retrying.
	Commit() error

	// Rollback discards every buffered write. Always safe to call,
	// including after Commit has already succeeded (a no-op in that case).
	Rollback() error
}
