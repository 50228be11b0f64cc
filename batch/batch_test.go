package batch

import (
	"testing"

	"github.com/grovedb/grove/element"
	"github.com/grovedb/grove/keyspace"
	"github.com/grovedb/grove/path"
)

func opAt(p path.Path, key string, kind GroveOpKind) QualifiedOp {
	return QualifiedOp{Path: p, Key: []byte(key), Op: GroveOp{Kind: kind}}
}

func TestSortStableOrdersByPathThenKey(t *testing.T) {
	ops := []QualifiedOp{
		opAt(path.Path{[]byte("b")}, "z", OpInsertOrReplace),
		opAt(path.Path{[]byte("a")}, "y", OpInsertOrReplace),
		opAt(path.Path{[]byte("a")}, "x", OpInsertOrReplace),
	}
	SortStable(ops)
	if string(ops[0].Key) != "x" || string(ops[1].Key) != "y" || string(ops[2].Key) != "z" {
		t.Fatalf("unexpected order: %v %v %v", string(ops[0].Key), string(ops[1].Key), string(ops[2].Key))
	}
}

func TestGroupByPathPreservesRelativeOrder(t *testing.T) {
	ops := []QualifiedOp{
		opAt(path.Path{[]byte("a")}, "1", OpInsertOrReplace),
		opAt(path.Path{[]byte("b")}, "1", OpInsertOrReplace),
		opAt(path.Path{[]byte("a")}, "2", OpInsertOrReplace),
	}
	groups, paths := GroupByPath(ops)
	aKey := path.Path{[]byte("a")}.Key()
	if len(groups[aKey]) != 2 || string(groups[aKey][0].Key) != "1" || string(groups[aKey][1].Key) != "2" {
		t.Fatalf("group %q not in input order: %+v", aKey, groups[aKey])
	}
	if !paths[aKey].Equal(path.Path{[]byte("a")}) {
		t.Fatalf("paths map did not recover path.Path for %q", aKey)
	}
}

func TestValidateRejectsInternalOnlyOp(t *testing.T) {
	ops := []QualifiedOp{opAt(nil, "k", OpReplaceNonMerkTreeRoot)}
	if err := Validate(ops); err == nil {
		t.Fatal("expected Validate to reject an internal-only op kind")
	}
}

func TestValidateRejectsEmptyKey(t *testing.T) {
	ops := []QualifiedOp{{Path: nil, Key: nil, Op: GroveOp{Kind: OpInsertOrReplace}}}
	if err := Validate(ops); err == nil {
		t.Fatal("expected Validate to reject a missing key")
	}
}

func TestValidateRejectsDuplicateNonAccumulatingKey(t *testing.T) {
	ops := []QualifiedOp{
		opAt(nil, "k", OpInsertOrReplace),
		opAt(nil, "k", OpInsertOrReplace),
	}
	if err := Validate(ops); err == nil {
		t.Fatal("expected Validate to reject a duplicate (path,key) for a non-accumulating op")
	}
}

func TestValidateAllowsDuplicateAppends(t *testing.T) {
	ops := []QualifiedOp{
		opAt(nil, "k", OpMmrAppend),
		opAt(nil, "k", OpMmrAppend),
	}
	if err := Validate(ops); err != nil {
		t.Fatalf("Validate rejected accumulating append ops: %v", err)
	}
}

func TestValidateElementCompatibilityRejectsReplaceOfMissingKey(t *testing.T) {
	err := ValidateElementCompatibility(GroveOp{Kind: OpReplace}, element.Element{}, false)
	if err == nil {
		t.Fatal("expected Replace on an absent key to fail")
	}
}

func TestValidateElementCompatibilityRejectsDeleteTreeOnItem(t *testing.T) {
	err := ValidateElementCompatibility(GroveOp{Kind: OpDeleteTree}, element.NewItem([]byte("v"), 0), true)
	if err == nil {
		t.Fatal("expected DeleteTree on a plain Item to fail")
	}
}

func TestValidateElementCompatibilityAcceptsDeleteTreeOnTree(t *testing.T) {
	err := ValidateElementCompatibility(GroveOp{Kind: OpDeleteTree}, element.NewTree(nil, 0), true)
	if err != nil {
		t.Fatalf("DeleteTree on a Tree element should succeed: %v", err)
	}
}

func TestValidateElementCompatibilityRejectsAppendKindMismatch(t *testing.T) {
	err := ValidateElementCompatibility(GroveOp{Kind: OpMmrAppend}, element.NewDenseFixedTree(0, 4, 0), true)
	if err == nil {
		t.Fatal("expected MmrAppend against a DenseFixedTree element to fail")
	}
}

func TestPreprocessNonMerkConvertsAppendsToSingleReplaceOp(t *testing.T) {
	store := keyspace.NewMemoryStore()
	at := path.Path{}
	key := []byte("log")
	existing := element.NewMmrTree(0, 0)

	lookup := func(p path.Path, k []byte) (element.Element, bool, error) {
		if p.Equal(at) && string(k) == string(key) {
			return existing, true, nil
		}
		return element.Element{}, false, nil
	}

	ops := []QualifiedOp{
		{Path: at, Key: key, Op: GroveOp{Kind: OpMmrAppend, AppendValue: []byte("one")}},
		{Path: at, Key: key, Op: GroveOp{Kind: OpMmrAppend, AppendValue: []byte("two")}},
		{Path: at, Key: []byte("other"), Op: GroveOp{Kind: OpInsertOrReplace, Element: element.NewItem([]byte("v"), 0)}},
	}

	out, err := PreprocessNonMerk(store, ops, lookup)
	if err != nil {
		t.Fatalf("PreprocessNonMerk: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("got %d ops, want 2 (one merged append, one untouched)", len(out))
	}

	var replaced *QualifiedOp
	for i := range out {
		if out[i].Op.Kind == OpReplaceNonMerkTreeRoot {
			replaced = &out[i]
		}
	}
	if replaced == nil {
		t.Fatal("expected a OpReplaceNonMerkTreeRoot op in the output")
	}
	if replaced.Op.Element.MmrLeafCount != 2 {
		t.Fatalf("leaf count = %d, want 2", replaced.Op.Element.MmrLeafCount)
	}
}

func TestPreprocessNonMerkRejectsAppendToMissingElement(t *testing.T) {
	store := keyspace.NewMemoryStore()
	lookup := func(p path.Path, k []byte) (element.Element, bool, error) {
		return element.Element{}, false, nil
	}
	ops := []QualifiedOp{{Path: nil, Key: []byte("k"), Op: GroveOp{Kind: OpMmrAppend, AppendValue: []byte("x")}}}
	if _, err := PreprocessNonMerk(store, ops, lookup); err == nil {
		t.Fatal("expected PreprocessNonMerk to reject an append against a missing element")
	}
}
