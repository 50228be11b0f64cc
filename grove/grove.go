// Package grove implements the top-level GroveDb API of spec.md §4.4 and
// §6.1: a hierarchy of Merk subtrees (and, at the leaves of the Tree-family
// chain, non-Merk append structures) bound together by root-hash
// propagation up to a single well-known grove root. Grounded on the
// teacher's top-level node/blockchain object
// (_teacher/core (blockchain construction) and the light client's
// header-chain wrapper in _teacher/light) for the "owns the store, exposes
// a small set of top-level lifecycle and mutation methods" shape, adapted
// from a single linear chain to a tree of subtrees.
package grove

import (
	"github.com/grovedb/grove/config"
	"github.com/grovedb/grove/internal/grovedberr"
	"github.com/grovedb/grove/keyspace"
	"github.com/grovedb/grove/log"
	"github.com/grovedb/grove/path"
	"github.com/grovedb/grove/types"
)

var logger = log.Default().Module("grove")

// rw is the minimal read/write surface a GroveDb operation needs; both
// keyspace.Store (no open transaction) and keyspace.Transaction (inside a
// Tx) satisfy it structurally.
type rw interface {
	keyspace.Reader
	keyspace.Writer
}

// well-known meta-column keys (spec.md §6.2). Unprefixed, since the meta
// column is never subtree-scoped.
var (
	metaVersionKey   = []byte("version")
	metaFlagsKey     = []byte("flags")
	metaGroveRootKey = []byte("grove_root")
)

// GroveDb is the top-level handle onto a grove: one keyspace.Store plus the
// configuration it was opened with.
type GroveDb struct {
	store keyspace.Store
	opts  config.Options
}

// Open opens (creating if necessary) a badger-backed grove rooted at
// directoryPath (spec.md §6.1's open(directory_path)).
func Open(directoryPath string, opts config.Options) (*GroveDb, error) {
	store, err := keyspace.OpenBadgerStore(directoryPath)
	if err != nil {
		return nil, grovedberr.New(grovedberr.KindStorage, "grove.Open", err)
	}
	return openWith(store, opts)
}

// OpenMemory opens an in-memory grove, for tests and ephemeral use.
func OpenMemory(opts config.Options) (*GroveDb, error) {
	return openWith(keyspace.NewMemoryStore(), opts)
}

func openWith(store keyspace.Store, opts config.Options) (*GroveDb, error) {
	db := &GroveDb{store: store, opts: opts}
	if err := db.ensureMeta(); err != nil {
		return nil, err
	}
	return db, nil
}

// ensureMeta writes the default Meta record on a freshly created store, or
// validates the existing one's protocol version against what this build
// understands (spec.md §4.8, Version error).
func (db *GroveDb) ensureMeta() error {
	has, err := db.store.Has(keyspace.ColumnMeta, metaVersionKey)
	if err != nil {
		return grovedberr.New(grovedberr.KindStorage, "grove.ensureMeta", err)
	}
	if !has {
		meta := config.DefaultMeta()
		if db.opts.Flags != nil {
			meta.Flags = *db.opts.Flags
		}
		return db.writeMeta(db.store, meta)
	}
	meta, err := db.readMeta(db.store)
	if err != nil {
		return err
	}
	if meta.Version > config.CurrentVersion {
		return grovedberr.New(grovedberr.KindVersion, "grove.ensureMeta", nil)
	}
	return nil
}

func (db *GroveDb) readMeta(r keyspace.Reader) (config.Meta, error) {
	raw, err := r.Get(keyspace.ColumnMeta, metaVersionKey)
	if err != nil {
		return config.Meta{}, grovedberr.New(grovedberr.KindStorage, "grove.readMeta", err)
	}
	meta := decodeMeta(raw)
	flagsRaw, err := r.Get(keyspace.ColumnMeta, metaFlagsKey)
	if err == nil {
		meta.Flags = decodeFlags(flagsRaw)
	}
	rootRaw, err := r.Get(keyspace.ColumnMeta, metaGroveRootKey)
	if err == nil {
		meta.GroveRootKey = append([]byte(nil), rootRaw...)
	}
	return meta, nil
}

func (db *GroveDb) writeMeta(w rw, meta config.Meta) error {
	if err := w.Put(keyspace.ColumnMeta, metaVersionKey, encodeVersion(meta.Version)); err != nil {
		return grovedberr.New(grovedberr.KindStorage, "grove.writeMeta", err)
	}
	if err := w.Put(keyspace.ColumnMeta, metaFlagsKey, encodeFlags(meta.Flags)); err != nil {
		return grovedberr.New(grovedberr.KindStorage, "grove.writeMeta", err)
	}
	return nil
}

// Close releases the underlying store.
func (db *GroveDb) Close() error { return db.store.Close() }

// Checkpoint copies the entire keyspace to directoryPath as of the current
// committed state.
func (db *GroveDb) Checkpoint(directoryPath string) error {
	return db.store.Checkpoint(directoryPath)
}

// Tx wraps an in-flight optimistic transaction (spec.md §5.2). A caller
// MUST NOT keep using a Tx-derived *keyspace.Context after calling Commit
// or Rollback on it — see keyspace.Transaction's own doc comment on this
// critical pattern.
type Tx struct {
	db  *GroveDb
	txn keyspace.Transaction
}

// StartTransaction begins a new optimistic transaction over db.
func (db *GroveDb) StartTransaction() *Tx {
	return &Tx{db: db, txn: db.store.StartTransaction()}
}

// Commit atomically applies every write made through tx.
func (tx *Tx) Commit() error {
	if err := tx.txn.Commit(); err != nil {
		if err == keyspace.ErrConflict {
			return grovedberr.New(grovedberr.KindStorage, "grove.Tx.Commit", err)
		}
		return grovedberr.New(grovedberr.KindStorage, "grove.Tx.Commit", err)
	}
	return nil
}

// Rollback discards every write made through tx.
func (tx *Tx) Rollback() error { return tx.txn.Rollback() }

// rwOf returns the rw a top-level GroveDb operation should use: the
// transaction's if tx is non-nil, otherwise the store itself directly
// (spec.md §6.1's `tx?` parameter on every mutating call).
func (db *GroveDb) rwOf(tx *Tx) rw {
	if tx != nil {
		return tx.txn
	}
	return db.store
}

// RootHash returns the grove's current well-known root hash (spec.md
// §6.1's root_hash(db, tx?)), the zero hash if the grove is entirely empty.
func (db *GroveDb) RootHash(tx *Tx) (types.Hash, error) {
	r, ok := db.rwOf(tx).(keyspace.Reader)
	if !ok {
		return types.Hash{}, grovedberr.New(grovedberr.KindInternal, "grove.RootHash", nil)
	}
	raw, err := r.Get(keyspace.ColumnMeta, metaGroveRootKey)
	if err == keyspace.ErrKeyNotFound {
		return types.Hash{}, nil
	}
	if err != nil {
		return types.Hash{}, grovedberr.New(grovedberr.KindStorage, "grove.RootHash", err)
	}
	return types.BytesToHash(raw), nil
}

func (db *GroveDb) writeGroveRoot(w rw, h types.Hash) error {
	return w.Put(keyspace.ColumnMeta, metaGroveRootKey, append([]byte(nil), h.Bytes()...))
}

// contextFor builds the subtree.Context addressing p, bound to w.
func contextFor(w rw, p path.Path) *keyspace.Context {
	return keyspace.NewContext(w, path.SubtreePrefix(p).Bytes())
}

func encodeVersion(v config.ProtocolVersion) []byte {
	var b [4]byte
	b[0] = byte(v >> 24)
	b[1] = byte(v >> 16)
	b[2] = byte(v >> 8)
	b[3] = byte(v)
	return b[:]
}

func decodeVersionBytes(b []byte) config.ProtocolVersion {
	if len(b) < 4 {
		return config.CurrentVersion
	}
	return config.ProtocolVersion(uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3]))
}

func decodeMeta(raw []byte) config.Meta {
	return config.Meta{Version: decodeVersionBytes(raw)}
}

func encodeFlags(f config.FeatureFlags) []byte {
	var b byte
	if f.AllowUntrustedReferenceInsert {
		b |= 1
	}
	if f.EnableV1Proofs {
		b |= 2
	}
	return []byte{b}
}

func decodeFlags(raw []byte) config.FeatureFlags {
	if len(raw) == 0 {
		return config.DefaultFeatureFlags()
	}
	b := raw[0]
	return config.FeatureFlags{
		AllowUntrustedReferenceInsert: b&1 != 0,
		EnableV1Proofs:                b&2 != 0,
	}
}
