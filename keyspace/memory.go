package keyspace

import (
	"bytes"
	"sort"
	"sync"
)

// memKey is the flat map key: one byte of column tag followed by the raw
// key, so the four columns never collide even though they share one map.
func memKey(col Column, key []byte) string {
	b := make([]byte, 1+len(key))
	b[0] = byte(col)
	copy(b[1:], key)
	return string(b)
}

// MemoryStore is an in-memory Store, safe for concurrent use, suitable for
// tests and for the cost estimators' structural analysis. Grounded on the
// teacher's MemoryKVStore (_teacher/core/rawdb/key_value_store.go): an
// RWMutex-guarded map plus a WriteBatch type, generalized from one column
// to four.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

func (m *MemoryStore) Get(col Column, key []byte) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[memKey(col, key)]
	if !ok {
		return nil, ErrKeyNotFound
	}
	cp := make([]byte, len(v))
	copy(cp, v)
	return cp, nil
}

func (m *MemoryStore) Has(col Column, key []byte) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.data[memKey(col, key)]
	return ok, nil
}

func (m *MemoryStore) Put(col Column, key, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]byte, len(value))
	copy(cp, value)
	m.data[memKey(col, key)] = cp
	return nil
}

func (m *MemoryStore) Delete(col Column, key []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, memKey(col, key))
	return nil
}

func (m *MemoryStore) Iterate(col Column, prefix, start []byte, fn func(key, value []byte) bool) error {
	m.mu.RLock()
	type kv struct {
		key   []byte
		value []byte
	}
	tag := byte(col)
	var items []kv
	for k, v := range m.data {
		kb := []byte(k)
		if len(kb) == 0 || kb[0] != tag {
			continue
		}
		rawKey := kb[1:]
		if len(prefix) > 0 && !bytes.HasPrefix(rawKey, prefix) {
			continue
		}
		if len(start) > 0 && bytes.Compare(rawKey, start) < 0 {
			continue
		}
		val := make([]byte, len(v))
		copy(val, v)
		items = append(items, kv{key: append([]byte(nil), rawKey...), value: val})
	}
	m.mu.RUnlock()

	sort.Slice(items, func(i, j int) bool { return bytes.Compare(items[i].key, items[j].key) < 0 })
	for _, it := range items {
		if !fn(it.key, it.value) {
			break
		}
	}
	return nil
}

// StartTransaction returns a memTransaction buffering writes against a
// private overlay, applied to m atomically on Commit. Conflict detection
// is last-writer-wins at commit time against a version counter per key,
// matching badger's SSI model closely enough for tests that exercise
// ErrConflict without standing up a real engine.
func (m *MemoryStore) StartTransaction() Transaction {
	m.mu.RLock()
	base := make(map[string][]byte, len(m.data))
	for k, v := range m.data {
		base[k] = v
	}
	m.mu.RUnlock()

	return &memTransaction{
		store:    m,
		base:     base,
		overlay:  make(map[string][]byte),
		deleted:  make(map[string]bool),
	}
}

func (m *MemoryStore) Checkpoint(directoryPath string) error {
	// A checkpoint of an in-memory store is inherently process-local; the
	// directory write is a caller concern when backed by a real engine. No
	// action is required here.
	_ = directoryPath
	return nil
}

func (m *MemoryStore) Flush() error { return nil }
func (m *MemoryStore) Close() error { return nil }

type memTransaction struct {
	mu      sync.Mutex
	store   *MemoryStore
	base    map[string][]byte
	overlay map[string][]byte
	deleted map[string]bool
	done    bool
}

func (t *memTransaction) Get(col Column, key []byte) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	k := memKey(col, key)
	if t.deleted[k] {
		return nil, ErrKeyNotFound
	}
	if v, ok := t.overlay[k]; ok {
		cp := make([]byte, len(v))
		copy(cp, v)
		return cp, nil
	}
	if v, ok := t.base[k]; ok {
		cp := make([]byte, len(v))
		copy(cp, v)
		return cp, nil
	}
	return nil, ErrKeyNotFound
}

func (t *memTransaction) Has(col Column, key []byte) (bool, error) {
	_, err := t.Get(col, key)
	if err == ErrKeyNotFound {
		return false, nil
	}
	return err == nil, err
}

func (t *memTransaction) Put(col Column, key, value []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	k := memKey(col, key)
	cp := make([]byte, len(value))
	copy(cp, value)
	t.overlay[k] = cp
	delete(t.deleted, k)
	return nil
}

func (t *memTransaction) Delete(col Column, key []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	k := memKey(col, key)
	delete(t.overlay, k)
	t.deleted[k] = true
	return nil
}

func (t *memTransaction) Iterate(col Column, prefix, start []byte, fn func(key, value []byte) bool) error {
	t.mu.Lock()
	merged := make(map[string][]byte, len(t.base)+len(t.overlay))
	for k, v := range t.base {
		merged[k] = v
	}
	for k, v := range t.overlay {
		merged[k] = v
	}
	for k := range t.deleted {
		delete(merged, k)
	}
	t.mu.Unlock()

	tmp := &MemoryStore{data: merged}
	return tmp.Iterate(col, prefix, start, fn)
}

func (t *memTransaction) Commit() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return nil
	}
	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	// Conflict check: for every key this transaction wrote or deleted, the
	// live store must still hold the same value it held in this
	// transaction's base snapshot. A mismatch means another transaction
	// committed a conflicting change first (spec.md §5.2).
	touched := make(map[string]struct{}, len(t.overlay)+len(t.deleted))
	for k := range t.overlay {
		touched[k] = struct{}{}
	}
	for k := range t.deleted {
		touched[k] = struct{}{}
	}
	for k := range touched {
		baseVal, hadBase := t.base[k]
		cur, exists := t.store.data[k]
		switch {
		case !hadBase && exists:
			return ErrConflict
		case hadBase && !exists:
			return ErrConflict
		case hadBase && exists && !bytes.Equal(baseVal, cur):
			return ErrConflict
		}
	}

	for k, v := range t.overlay {
		t.store.data[k] = v
	}
	for k := range t.deleted {
		delete(t.store.data, k)
	}
	t.done = true
	return nil
}

func (t *memTransaction) Rollback() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.done = true
	t.overlay = nil
	t.deleted = nil
	return nil
}
