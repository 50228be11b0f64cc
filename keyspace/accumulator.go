package keyspace

// accumulatorOp is one coalesced write.
type accumulatorOp struct {
	col    Column
	key    []byte
	value  []byte
	delete bool
}

// BatchAccumulator is an interior-mutable, insertion-ordered map keyed by
// (column, full prefixed key) that coalesces repeated writes to the same
// key into the last-write-wins value, then applies the result as a single
// pass over the underlying Writer at Commit. This is the write-buffering
// half of the batch engine's TreeCache optimization (spec.md §4.7): every
// subtree's worth of Merk node writes accumulates here before touching the
// transaction. Grounded on the teacher's WriteBatch
// (_teacher/core/rawdb/key_value_store.go), generalized from one column to
// four and from "ops slice replayed in order" to "coalesced by key" since
// Merk batch application frequently overwrites the same node several times
// during rebalancing before it settles.
type BatchAccumulator struct {
	order []string
	ops   map[string]accumulatorOp
}

// NewBatchAccumulator creates an empty accumulator.
func NewBatchAccumulator() *BatchAccumulator {
	return &BatchAccumulator{ops: make(map[string]accumulatorOp)}
}

func accKey(col Column, key []byte) string {
	b := make([]byte, 1+len(key))
	b[0] = byte(col)
	copy(b[1:], key)
	return string(b)
}

// Put records a write, replacing any prior buffered write to the same key.
func (a *BatchAccumulator) Put(col Column, key, value []byte) {
	k := accKey(col, key)
	if _, exists := a.ops[k]; !exists {
		a.order = append(a.order, k)
	}
	cp := make([]byte, len(value))
	copy(cp, value)
	a.ops[k] = accumulatorOp{col: col, key: append([]byte(nil), key...), value: cp}
}

// Delete records a deletion, replacing any prior buffered write to the
// same key.
func (a *BatchAccumulator) Delete(col Column, key []byte) {
	k := accKey(col, key)
	if _, exists := a.ops[k]; !exists {
		a.order = append(a.order, k)
	}
	a.ops[k] = accumulatorOp{col: col, key: append([]byte(nil), key...), delete: true}
}

// Len returns the number of distinct keys buffered.
func (a *BatchAccumulator) Len() int { return len(a.order) }

// Flush applies every buffered operation to w, in the order each key was
// first touched, then clears the accumulator so it can be reused.
func (a *BatchAccumulator) Flush(w Writer) error {
	for _, k := range a.order {
		op := a.ops[k]
		var err error
		if op.delete {
			err = w.Delete(op.col, op.key)
		} else {
			err = w.Put(op.col, op.key, op.value)
		}
		if err != nil {
			return err
		}
	}
	a.order = nil
	a.ops = make(map[string]accumulatorOp)
	return nil
}
