package keyspace

// Context pairs a keyspace handle (Store or Transaction) with a 32-byte
// subtree prefix; every Data/Aux/Roots operation silently prepends the
// prefix to the key before delegating. The Meta column is never prefixed
// — it holds grove-wide state (spec.md §4.2).
//
// Critical pattern (spec.md §4.2): a caller holding a Context bound to a
// Transaction MUST release it (let it go out of scope) before calling
// Commit/Rollback on the underlying Transaction. Writes made through a
// still-borrowed Context are lost if the transaction is dropped without
// commit — rollback, by design.
type Context struct {
	rw     readWriter
	prefix []byte
}

// readWriter is the minimal surface Context needs; both Store and
// Transaction satisfy it.
type readWriter interface {
	Reader
	Writer
}

// NewContext binds rw to prefix. prefix is typically produced by
// path.SubtreePrefix (see package path); it is opaque here.
func NewContext(rw readWriter, prefix []byte) *Context {
	return &Context{rw: rw, prefix: prefix}
}

// Prefix returns the 32-byte subtree prefix this context was created with.
func (c *Context) Prefix() []byte { return c.prefix }

// Sub returns a new Context over the same underlying store/transaction,
// with tag appended to this context's prefix. Non-Merk structures that
// need more than one independent keyspace namespace within a single
// subtree (e.g. BulkAppendTree's dense buffer and chunk MMR, spec.md
// §4.6.2) use this to avoid key collisions without opening a second
// physical store.
func (c *Context) Sub(tag []byte) *Context {
	sub := make([]byte, len(c.prefix)+len(tag))
	copy(sub, c.prefix)
	copy(sub[len(c.prefix):], tag)
	return &Context{rw: c.rw, prefix: sub}
}

func (c *Context) prefixed(key []byte) []byte {
	out := make([]byte, len(c.prefix)+len(key))
	copy(out, c.prefix)
	copy(out[len(c.prefix):], key)
	return out
}

// Get reads key from col, prefixing it unless col is ColumnMeta.
func (c *Context) Get(col Column, key []byte) ([]byte, error) {
	if col == ColumnMeta {
		return c.rw.Get(col, key)
	}
	return c.rw.Get(col, c.prefixed(key))
}

// Has reports whether key exists in col.
func (c *Context) Has(col Column, key []byte) (bool, error) {
	if col == ColumnMeta {
		return c.rw.Has(col, key)
	}
	return c.rw.Has(col, c.prefixed(key))
}

// Put writes key/value into col.
func (c *Context) Put(col Column, key, value []byte) error {
	if col == ColumnMeta {
		return c.rw.Put(col, key, value)
	}
	return c.rw.Put(col, c.prefixed(key), value)
}

// Delete removes key from col.
func (c *Context) Delete(col Column, key []byte) error {
	if col == ColumnMeta {
		return c.rw.Delete(col, key)
	}
	return c.rw.Delete(col, c.prefixed(key))
}

// Iterate walks every key in col under this context's prefix (further
// restricted by an optional sub-prefix and start key), with the subtree
// prefix stripped from the keys delivered to fn.
func (c *Context) Iterate(col Column, subPrefix, start []byte, fn func(key, value []byte) bool) error {
	reader, ok := c.rw.(Reader)
	if !ok {
		return nil
	}
	fullPrefix := c.prefixed(subPrefix)
	var fullStart []byte
	if len(start) > 0 {
		fullStart = c.prefixed(start)
	}
	return reader.Iterate(col, fullPrefix, fullStart, func(key, value []byte) bool {
		return fn(key[len(c.prefix):], value)
	})
}
