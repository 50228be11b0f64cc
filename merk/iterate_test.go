package merk

import (
	"testing"
)

func buildTestTree(t *testing.T, keys []string) *Merk {
	t.Helper()
	ctx := newTestContext()
	m, err := Open(ctx)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	ops := make([]Op, 0, len(keys))
	for _, k := range keys {
		ops = append(ops, putOp(k, k+"-value"))
	}
	if _, err := m.ApplyBatch(sortOps(ops)); err != nil {
		t.Fatalf("ApplyBatch: %v", err)
	}
	return m
}

func TestIterateAscending(t *testing.T) {
	m := buildTestTree(t, []string{"delta", "alpha", "charlie", "bravo", "echo"})

	var got []string
	if err := m.Iterate(func(key, value []byte) bool {
		got = append(got, string(key))
		return true
	}); err != nil {
		t.Fatalf("Iterate: %v", err)
	}

	want := []string{"alpha", "bravo", "charlie", "delta", "echo"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestIterateStopsEarly(t *testing.T) {
	m := buildTestTree(t, []string{"a", "b", "c", "d"})

	var visited int
	if err := m.Iterate(func(key, value []byte) bool {
		visited++
		return visited < 2
	}); err != nil {
		t.Fatalf("Iterate: %v", err)
	}
	if visited != 2 {
		t.Fatalf("visited = %d, want 2", visited)
	}
}

func TestIterateRangeInclusiveBounds(t *testing.T) {
	m := buildTestTree(t, []string{"a", "b", "c", "d", "e"})

	var got []string
	low := &Bound{Key: []byte("b"), Inclusive: true}
	high := &Bound{Key: []byte("d"), Inclusive: true}
	if err := m.IterateRange(low, high, false, func(key, value []byte) bool {
		got = append(got, string(key))
		return true
	}); err != nil {
		t.Fatalf("IterateRange: %v", err)
	}
	want := []string{"b", "c", "d"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestIterateRangeExclusiveBounds(t *testing.T) {
	m := buildTestTree(t, []string{"a", "b", "c", "d", "e"})

	var got []string
	low := &Bound{Key: []byte("b"), Inclusive: false}
	high := &Bound{Key: []byte("d"), Inclusive: false}
	if err := m.IterateRange(low, high, false, func(key, value []byte) bool {
		got = append(got, string(key))
		return true
	}); err != nil {
		t.Fatalf("IterateRange: %v", err)
	}
	if len(got) != 1 || got[0] != "c" {
		t.Fatalf("got %v, want [c]", got)
	}
}

func TestIterateRangeReverse(t *testing.T) {
	m := buildTestTree(t, []string{"a", "b", "c", "d", "e"})

	var got []string
	if err := m.IterateRange(nil, nil, true, func(key, value []byte) bool {
		got = append(got, string(key))
		return true
	}); err != nil {
		t.Fatalf("IterateRange: %v", err)
	}
	want := []string{"e", "d", "c", "b", "a"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestIterateEmptyTree(t *testing.T) {
	ctx := newTestContext()
	m, err := Open(ctx)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	var visited int
	if err := m.Iterate(func(key, value []byte) bool {
		visited++
		return true
	}); err != nil {
		t.Fatalf("Iterate: %v", err)
	}
	if visited != 0 {
		t.Fatalf("visited = %d, want 0", visited)
	}
}
