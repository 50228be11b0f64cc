package path

import (
	"github.com/grovedb/grove/internal/grovedberr"
)

// ReferenceKind identifies one of the seven semantic reference path
// expression variants of spec.md §3.5. Each reduces to an absolute path
// at resolution time, relative to the reference element's own location
// (ownPath, ownKey).
type ReferenceKind uint8

const (
	// RefAbsolute carries a fully-specified target path and key; no
	// relation to the reference's own location.
	RefAbsolute ReferenceKind = iota
	// RefUpstreamRootHeight keeps the first N segments of ownPath (N =
	// KeepSegments) and appends AppendSegments.
	RefUpstreamRootHeight
	// RefUpstreamRootHeightWithReappend is RefUpstreamRootHeight but also
	// re-appends ownPath's original last segment after AppendSegments.
	RefUpstreamRootHeightWithReappend
	// RefUpstreamFromElementHeight drops the last N segments of ownPath (N
	// = DropSegments) and appends AppendSegments.
	RefUpstreamFromElementHeight
	// RefCousin replaces the last segment of ownPath's parent with
	// ReplaceSegment, keeping ownKey as the final segment (a "cousin" in
	// the sibling subtree one level up).
	RefCousin
	// RefRemovedCousin drops ownPath's last segment (the parent), appends
	// AppendSegments, then pushes PushKey as the new final segment.
	RefRemovedCousin
	// RefSibling replaces ownKey (the last segment, within the same
	// parent subtree) with ReplaceSegment.
	RefSibling
)

// Reference is a path expression describing how to derive an absolute
// target path from the reference element's own location.
type Reference struct {
	Kind ReferenceKind

	AbsolutePath Path // RefAbsolute

	KeepSegments   int    // RefUpstreamRootHeight(WithReappend)
	AppendSegments Path   // RefUpstreamRootHeight(WithReappend), RefUpstreamFromElementHeight, RefRemovedCousin
	DropSegments   int    // RefUpstreamFromElementHeight
	ReplaceSegment []byte // RefCousin, RefSibling
	PushKey        []byte // RefRemovedCousin

	// MaxHops overrides config.DefaultReferenceHopCap for this reference
	// when non-zero (spec.md §3.3, "optional hop cap").
	MaxHops int
}

// resolveOne reduces a single Reference to an absolute path, given the
// location (ownPath, ownKey) of the reference element itself.
func resolveOne(ref Reference, ownPath Path, ownKey []byte) (Path, error) {
	switch ref.Kind {
	case RefAbsolute:
		return ref.AbsolutePath.Clone(), nil

	case RefUpstreamRootHeight:
		if ref.KeepSegments < 0 || ref.KeepSegments > len(ownPath) {
			return nil, grovedberr.New(grovedberr.KindPathKey, "path.Resolve", nil)
		}
		return ownPath[:ref.KeepSegments].Append(ref.AppendSegments...), nil

	case RefUpstreamRootHeightWithReappend:
		if ref.KeepSegments < 0 || ref.KeepSegments > len(ownPath) || len(ownPath) == 0 {
			return nil, grovedberr.New(grovedberr.KindPathKey, "path.Resolve", nil)
		}
		lastSeg := ownPath[len(ownPath)-1]
		return ownPath[:ref.KeepSegments].Append(ref.AppendSegments...).Append(lastSeg), nil

	case RefUpstreamFromElementHeight:
		if ref.DropSegments < 0 || ref.DropSegments > len(ownPath) {
			return nil, grovedberr.New(grovedberr.KindPathKey, "path.Resolve", nil)
		}
		kept := ownPath[:len(ownPath)-ref.DropSegments]
		return kept.Append(ref.AppendSegments...), nil

	case RefCousin:
		if len(ownPath) == 0 {
			return nil, grovedberr.New(grovedberr.KindPathKey, "path.Resolve", nil)
		}
		grandparent, _ := ownPath.Parent()
		if len(grandparent) == 0 {
			return nil, grovedberr.New(grovedberr.KindPathKey, "path.Resolve", nil)
		}
		ggparent, _ := grandparent.Parent()
		return ggparent.Append(ref.ReplaceSegment, ownKey), nil

	case RefRemovedCousin:
		if len(ownPath) == 0 {
			return nil, grovedberr.New(grovedberr.KindPathKey, "path.Resolve", nil)
		}
		withoutParent, _ := ownPath.Parent()
		return withoutParent.Append(ref.AppendSegments...).Append(ref.PushKey), nil

	case RefSibling:
		return ownPath.Clone().Append(ref.ReplaceSegment), nil

	default:
		return nil, grovedberr.New(grovedberr.KindPathKey, "path.Resolve", nil)
	}
}

// Resolved is the result of following a (possibly multi-hop) reference
// chain to its final absolute target.
type Resolved struct {
	TargetPath Path
	TargetKey  []byte
	Hops       int
}

// TargetLookup fetches whatever is stored at (path, key): either a
// non-reference payload (ok=true, isRef=false) or another Reference
// (ok=true, isRef=true, ref set), or ok=false if nothing is stored there.
// The grove package supplies the concrete implementation backed by Merk
// lookups; this package stays storage-agnostic (spec.md §9, "Lazy graph
// over storage" — the same discipline applied to reference resolution).
type TargetLookup func(p Path, key []byte) (ref *Reference, ok bool, err error)

// Resolve follows a chain of references starting at (path, key) — which
// must itself already be known to be a Reference — until it reaches a
// non-reference element, honoring maxHops and detecting cycles via the
// set of already-visited absolute (path,key) pairs (spec.md §3.5, §8
// properties 9–10).
func Resolve(start Reference, ownPath Path, ownKey []byte, maxHops int, lookup TargetLookup) (Resolved, error) {
	if maxHops <= 0 {
		maxHops = 10
	}
	visited := map[string]struct{}{}
	visited[ownPath.Append(ownKey).Key()] = struct{}{}

	curRef := start
	curPath, curKey := ownPath, ownKey
	hops := 0

	for {
		target, err := resolveOne(curRef, curPath, curKey)
		if err != nil {
			return Resolved{}, err
		}
		if len(target) == 0 {
			return Resolved{}, grovedberr.New(grovedberr.KindPathKey, "path.Resolve", nil)
		}
		targetParent, targetKey := target.Parent()

		hops++
		if hops > maxHops {
			return Resolved{}, grovedberr.New(grovedberr.KindReferenceLimit, "path.Resolve", nil).
				WithPath(target)
		}

		visitKey := targetParent.Append(targetKey).Key()
		if _, seen := visited[visitKey]; seen {
			return Resolved{}, grovedberr.New(grovedberr.KindCyclicReference, "path.Resolve", nil).
				WithPath(target)
		}
		visited[visitKey] = struct{}{}

		ref, ok, err := lookup(targetParent, targetKey)
		if err != nil {
			return Resolved{}, err
		}
		if !ok {
			return Resolved{}, grovedberr.New(grovedberr.KindDanglingReference, "path.Resolve", nil).
				WithPath(target).WithKey(targetKey)
		}
		if ref == nil {
			return Resolved{TargetPath: targetParent, TargetKey: targetKey, Hops: hops}, nil
		}
		curRef, curPath, curKey = *ref, targetParent, targetKey
	}
}
