package merk

// MaybeBalance checks w's balance factor and, if it exceeds the AVL
// tolerance, rotates w back into balance, returning the new subtree root
// (spec.md §4.3.3). If w is already balanced, w itself is returned
// unchanged.
func MaybeBalance(w *Walker) (*Walker, error) {
	bf := w.node.BalanceFactor()
	if bf >= -1 && bf <= 1 {
		return w, nil
	}

	leftHeavy := bf < -1
	heavySide := Right
	if leftHeavy {
		heavySide = Left
	}

	child, err := w.Detach(heavySide)
	if err != nil {
		return nil, err
	}
	childBF := child.node.BalanceFactor()

	// Double-rotation case: the heavy child itself leans toward the
	// opposite side, so rotate it the other way first (spec.md §4.3.3).
	needsDoubleRotation := (heavySide == Left && childBF > 0) || (heavySide == Right && childBF < 0)
	if needsDoubleRotation {
		child, err = rotateOnce(child, heavySide.Opposite())
		if err != nil {
			return nil, err
		}
	}

	w.Attach(heavySide, child)
	return rotateOnce(w, heavySide)
}

// rotateOnce performs a single AVL rotation of w around its child on
// heavySide: detach that child B, detach B's grandchild X on the side
// opposite heavySide, attach X to w in B's old place, then make w the
// opposite-side child of B. Both w and B are rebalanced recursively, since
// the rotation can leave either newly imbalanced (spec.md §4.3.3).
func rotateOnce(w *Walker, heavySide Side) (*Walker, error) {
	b, err := w.Detach(heavySide)
	if err != nil {
		return nil, err
	}
	opp := heavySide.Opposite()

	x, err := b.Detach(opp)
	if err != nil {
		return nil, err
	}

	w.Attach(heavySide, x)
	rebalancedW, err := MaybeBalance(w)
	if err != nil {
		return nil, err
	}

	b.Attach(opp, rebalancedW)
	return MaybeBalance(b)
}
