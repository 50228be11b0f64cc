package grove

import (
	"github.com/grovedb/grove/element"
	"github.com/grovedb/grove/internal/grovedberr"
	"github.com/grovedb/grove/merk"
	"github.com/grovedb/grove/path"
)

// Direction selects which way a Query walks each of its QueryItems'
// matching keys (spec.md §4.4.4).
type Direction uint8

const (
	DirectionForward Direction = iota
	DirectionReverse
)

// QueryItemKind selects the shape of one QueryItem's key bound (spec.md
// §4.4.4: "exact key; exclusive range; inclusive range; full range;
// from/to half-open; range-after variants").
type QueryItemKind uint8

const (
	// QueryItemKey matches exactly Key.
	QueryItemKey QueryItemKind = iota
	// QueryItemRange matches [Low, High).
	QueryItemRange
	// QueryItemRangeInclusive matches [Low, High].
	QueryItemRangeInclusive
	// QueryItemRangeFull matches every key.
	QueryItemRangeFull
	// QueryItemRangeFrom matches [Low, +inf).
	QueryItemRangeFrom
	// QueryItemRangeTo matches (-inf, High).
	QueryItemRangeTo
	// QueryItemRangeAfter matches (Low, +inf).
	QueryItemRangeAfter
	// QueryItemRangeAfterTo matches (Low, High).
	QueryItemRangeAfterTo
	// QueryItemRangeAfterToInclusive matches (Low, High]. Paired with
	// QueryItemRangeAfter as the "range-after variants" whose boundary
	// key, per the absence-proof Open Question decision (see DESIGN.md),
	// is always included in the proof skeleton even though it is excluded
	// from the matched key set itself.
	QueryItemRangeAfterToInclusive
)

// QueryItem is one key or key-range clause of a Query (spec.md §4.4.4).
// Only the fields relevant to Kind are read.
type QueryItem struct {
	Kind QueryItemKind
	Key  []byte // QueryItemKey
	Low  []byte // range kinds; nil means unbounded where Kind allows it
	High []byte
}

func (qi QueryItem) bounds() (*merk.Bound, *merk.Bound) {
	switch qi.Kind {
	case QueryItemKey:
		return &merk.Bound{Key: qi.Key, Inclusive: true}, &merk.Bound{Key: qi.Key, Inclusive: true}
	case QueryItemRange:
		return &merk.Bound{Key: qi.Low, Inclusive: true}, &merk.Bound{Key: qi.High, Inclusive: false}
	case QueryItemRangeInclusive:
		return &merk.Bound{Key: qi.Low, Inclusive: true}, &merk.Bound{Key: qi.High, Inclusive: true}
	case QueryItemRangeFull:
		return nil, nil
	case QueryItemRangeFrom:
		return &merk.Bound{Key: qi.Low, Inclusive: true}, nil
	case QueryItemRangeTo:
		return nil, &merk.Bound{Key: qi.High, Inclusive: false}
	case QueryItemRangeAfter:
		return &merk.Bound{Key: qi.Low, Inclusive: false}, nil
	case QueryItemRangeAfterTo:
		return &merk.Bound{Key: qi.Low, Inclusive: false}, &merk.Bound{Key: qi.High, Inclusive: false}
	case QueryItemRangeAfterToInclusive:
		return &merk.Bound{Key: qi.Low, Inclusive: false}, &merk.Bound{Key: qi.High, Inclusive: true}
	default:
		return nil, nil
	}
}

// SubqueryContinuation describes how a Query continues past a matched
// subtree-valued element: descend Path (if any) beyond the matched key,
// then execute Query there (spec.md §4.4.4: "push the matched path onto
// the traversal stack with the resolved subquery and recurse"). A nil
// Query means the match is itself the result and traversal does not
// descend into it.
type SubqueryContinuation struct {
	Path  path.Path
	Query *Query
}

// Query is an ordered set of QueryItems, a traversal direction, a default
// subquery applied to every subtree-valued match, and optional per-key
// subqueries overriding the default (spec.md §4.4.4).
type Query struct {
	Items                 []QueryItem
	Direction             Direction
	DefaultSubquery       *SubqueryContinuation
	ConditionalSubqueries map[string]*SubqueryContinuation // keyed by the exact matched key
}

func (q *Query) subqueryFor(key []byte) *SubqueryContinuation {
	if q.ConditionalSubqueries != nil {
		if sub, ok := q.ConditionalSubqueries[string(key)]; ok {
			return sub
		}
	}
	return q.DefaultSubquery
}

// SizedQuery pairs a Query with an optional result offset and limit
// (spec.md §4.4.4). Nil Offset/Limit mean no skip / unbounded.
type SizedQuery struct {
	Query  Query
	Limit  *uint64
	Offset *uint64
}

// PathQuery addresses a SizedQuery at a starting subtree (spec.md §4.4.4,
// §6.1's query(db, path_query)).
type PathQuery struct {
	Path  path.Path
	Query SizedQuery
}

// Result is one element a query matched, together with the path it was
// found at — which may be deeper than PathQuery.Path once a subquery has
// descended into a nested subtree.
type Result struct {
	Path    path.Path
	Key     []byte
	Element element.Element
}

// Query executes pq against db and returns the matched elements in
// traversal order, honoring SizedQuery's offset and limit by collecting
// every match first and slicing afterward (spec.md §6.1's query(db,
// path_query, tx?)).
func (db *GroveDb) Query(pq PathQuery, tx *Tx) ([]Result, error) {
	w := db.rwOf(tx)
	var out []Result
	if err := executeQuery(w, pq.Path, &pq.Query.Query, &out); err != nil {
		return nil, grovedberr.New(grovedberr.KindInternal, "grove.Query", err).WithPath(pq.Path)
	}
	return sliceResults(out, pq.Query.Offset, pq.Query.Limit), nil
}

func sliceResults(all []Result, offset, limit *uint64) []Result {
	start := uint64(0)
	if offset != nil {
		start = *offset
	}
	total := uint64(len(all))
	if start >= total {
		return nil
	}
	end := total
	if limit != nil && start+*limit < end {
		end = start + *limit
	}
	return all[start:end]
}

// executeQuery iterates q's items in order against the Merk at at,
// recursing into any subtree-valued match that resolves a subquery
// (spec.md §4.4.4's execution algorithm).
func executeQuery(w rw, at path.Path, q *Query, out *[]Result) error {
	ctx := contextFor(w, at)
	m, err := merk.Open(ctx)
	if err != nil {
		return err
	}

	reverse := q.Direction == DirectionReverse
	for _, item := range q.Items {
		low, high := item.bounds()
		var callbackErr error
		err := m.IterateRange(low, high, reverse, func(key, value []byte) bool {
			e, decErr := element.Decode(value)
			if decErr != nil {
				callbackErr = decErr
				return false
			}
			keyCopy := append([]byte(nil), key...)
			*out = append(*out, Result{Path: at, Key: keyCopy, Element: e})

			if e.IsSubtreeFamily() {
				if sub := q.subqueryFor(keyCopy); sub != nil && sub.Query != nil {
					childPath := at.Append(keyCopy)
					if len(sub.Path) > 0 {
						childPath = childPath.Append(sub.Path...)
					}
					if err := executeQuery(w, childPath, sub.Query, out); err != nil {
						callbackErr = err
						return false
					}
				}
			}
			return true
		})
		if err != nil {
			return err
		}
		if callbackErr != nil {
			return callbackErr
		}
	}
	return nil
}
