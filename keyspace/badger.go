package keyspace

import (
	badger "github.com/dgraph-io/badger/v3"
)

// BadgerStore is the production Store implementation, backed by a single
// badger.DB. Badger has no native column families, so each Column is
// implemented as a one-byte tag prefixed onto every key — the same
// code-prefix convention the teacher's storage/badger layer uses for its
// own record kinds (Tobenna-KA-flow-go/storage/badger/operation/
// receipts.go's makePrefix(codeExecutionReceiptMeta, ...)).
type BadgerStore struct {
	db *badger.DB
}

// OpenBadgerStore opens (creating if necessary) a badger database rooted
// at directoryPath.
func OpenBadgerStore(directoryPath string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(directoryPath)
	opts.Logger = nil // the grove's own log package owns diagnostic output
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &BadgerStore{db: db}, nil
}

func taggedKey(col Column, key []byte) []byte {
	out := make([]byte, 1+len(key))
	out[0] = byte(col)
	copy(out[1:], key)
	return out
}

func (s *BadgerStore) Get(col Column, key []byte) ([]byte, error) {
	var out []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(taggedKey(col, key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			out = append([]byte(nil), val...)
			return nil
		})
	})
	if err == badger.ErrKeyNotFound {
		return nil, ErrKeyNotFound
	}
	return out, err
}

func (s *BadgerStore) Has(col Column, key []byte) (bool, error) {
	_, err := s.Get(col, key)
	if err == ErrKeyNotFound {
		return false, nil
	}
	return err == nil, err
}

func (s *BadgerStore) Put(col Column, key, value []byte) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(taggedKey(col, key), value)
	})
}

func (s *BadgerStore) Delete(col Column, key []byte) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(taggedKey(col, key))
	})
}

func (s *BadgerStore) Iterate(col Column, prefix, start []byte, fn func(key, value []byte) bool) error {
	fullPrefix := taggedKey(col, prefix)
	seek := taggedKey(col, start)
	if len(start) == 0 {
		seek = fullPrefix
	}
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = fullPrefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(seek); it.ValidForPrefix(fullPrefix); it.Next() {
			item := it.Item()
			k := item.KeyCopy(nil)[1:] // strip column tag
			var v []byte
			if err := item.Value(func(val []byte) error {
				v = append([]byte(nil), val...)
				return nil
			}); err != nil {
				return err
			}
			if !fn(k, v) {
				break
			}
		}
		return nil
	})
}

// StartTransaction begins a badger read-write transaction. Badger's own
// Txn already implements optimistic, Serializable-Snapshot-Isolation
// conflict detection on Commit, so badgerTransaction is a thin adapter
// that only needs to translate column tagging and the not-found sentinel.
func (s *BadgerStore) StartTransaction() Transaction {
	return &badgerTransaction{db: s.db, txn: s.db.NewTransaction(true)}
}

func (s *BadgerStore) Checkpoint(directoryPath string) error {
	return s.db.RunValueLogGC(0.5)
}

func (s *BadgerStore) Flush() error {
	return s.db.Sync()
}

func (s *BadgerStore) Close() error { return s.db.Close() }

type badgerTransaction struct {
	db  *badger.DB
	txn *badger.Txn
}

func (t *badgerTransaction) Get(col Column, key []byte) ([]byte, error) {
	item, err := t.txn.Get(taggedKey(col, key))
	if err == badger.ErrKeyNotFound {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, err
	}
	var out []byte
	err = item.Value(func(val []byte) error {
		out = append([]byte(nil), val...)
		return nil
	})
	return out, err
}

func (t *badgerTransaction) Has(col Column, key []byte) (bool, error) {
	_, err := t.Get(col, key)
	if err == ErrKeyNotFound {
		return false, nil
	}
	return err == nil, err
}

func (t *badgerTransaction) Put(col Column, key, value []byte) error {
	return t.txn.Set(taggedKey(col, key), value)
}

func (t *badgerTransaction) Delete(col Column, key []byte) error {
	return t.txn.Delete(taggedKey(col, key))
}

func (t *badgerTransaction) Iterate(col Column, prefix, start []byte, fn func(key, value []byte) bool) error {
	fullPrefix := taggedKey(col, prefix)
	seek := taggedKey(col, start)
	if len(start) == 0 {
		seek = fullPrefix
	}
	opts := badger.DefaultIteratorOptions
	opts.Prefix = fullPrefix
	it := t.txn.NewIterator(opts)
	defer it.Close()
	for it.Seek(seek); it.ValidForPrefix(fullPrefix); it.Next() {
		item := it.Item()
		k := item.KeyCopy(nil)[1:]
		var v []byte
		if err := item.Value(func(val []byte) error {
			v = append([]byte(nil), val...)
			return nil
		}); err != nil {
			return err
		}
		if !fn(k, v) {
			break
		}
	}
	return nil
}

func (t *badgerTransaction) Commit() error {
	err := t.txn.Commit()
	if err == badger.ErrConflict {
		return ErrConflict
	}
	return err
}

func (t *badgerTransaction) Rollback() error {
	t.txn.Discard()
	return nil
}
