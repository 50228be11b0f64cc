package mmr

import (
	"github.com/grovedb/grove/hashutil"
	"github.com/grovedb/grove/internal/grovedberr"
	"github.com/grovedb/grove/types"
)

// Proof is a ckb-style MMR inclusion proof (spec.md §4.6.1): the sibling
// hash at every step from the proved leaf up to its containing peak, plus
// the hashes of every other current peak (needed to re-bag the root).
type Proof struct {
	MmrSize     uint64
	LeafPos     uint64
	LeafValue   []byte
	PathHashes  []types.Hash // siblings from the leaf up to (excluding) its peak
	OtherPeaks  []types.Hash // every peak other than the one containing LeafPos, left to right
	PeakIndex   int          // position of the proved leaf's peak within the full ordered peak list
}

// Prove builds an inclusion proof for the leaf at 0-indexed leafIndex.
func (t *Tree) Prove(leafIndex uint64) (Proof, error) {
	leafPos := leafToPos(leafIndex)
	leafRaw, ok, err := t.cache.get(positionKey(leafPos))
	if err != nil {
		return Proof{}, err
	}
	if !ok {
		return Proof{}, grovedberr.New(grovedberr.KindNotFound, "mmr.Prove", errShortRecord)
	}
	isLeaf, _, value, err := decodeNode(leafRaw)
	if err != nil {
		return Proof{}, err
	}
	if !isLeaf {
		return Proof{}, grovedberr.New(grovedberr.KindInternal, "mmr.Prove", errUnknownTag)
	}

	peakPositions := getPeaks(t.size)
	var path []types.Hash
	pos := leafPos
	height := uint64(0)
	peakIdx := -1
	for {
		isPeak := false
		for i, p := range peakPositions {
			if p == pos {
				isPeak = true
				peakIdx = i
				break
			}
		}
		if isPeak {
			break
		}
		sibPos := siblingOf(pos, height)
		sibHash, err := t.readHash(sibPos)
		if err != nil {
			return Proof{}, err
		}
		path = append(path, sibHash)
		pos = parentOf(pos, height)
		height++
	}

	var otherPeaks []types.Hash
	for i, p := range peakPositions {
		if i == peakIdx {
			continue
		}
		h, err := t.readHash(p)
		if err != nil {
			return Proof{}, err
		}
		otherPeaks = append(otherPeaks, h)
	}

	return Proof{
		MmrSize:    t.size,
		LeafPos:    leafPos,
		LeafValue:  value,
		PathHashes: path,
		OtherPeaks: otherPeaks,
		PeakIndex:  peakIdx,
	}, nil
}

// Verify reconstructs the leaf's containing peak from p's sibling path,
// re-bags it against OtherPeaks, and checks the result against root
// (spec.md §4.6.1's "mmr_size cross-check between proof and element
// required").
func Verify(p Proof, mmrSize uint64, root types.Hash) bool {
	if p.MmrSize != mmrSize {
		return false
	}
	peakPositions := getPeaks(mmrSize)
	if p.PeakIndex < 0 || p.PeakIndex >= len(peakPositions) {
		return false
	}

	cur := hashutil.ValueHash(p.LeafValue)
	pos := p.LeafPos
	height := uint64(0)
	for _, sib := range p.PathHashes {
		if isRightChild(pos, height) {
			cur = hashutil.Sum(sib.Bytes(), cur.Bytes())
		} else {
			cur = hashutil.Sum(cur.Bytes(), sib.Bytes())
		}
		pos = parentOf(pos, height)
		height++
	}
	if pos != peakPositions[p.PeakIndex] {
		return false
	}

	peaks := make([]peak, len(peakPositions))
	otherIdx := 0
	for i := range peakPositions {
		if i == p.PeakIndex {
			peaks[i] = peak{pos: peakPositions[i], hash: cur}
			continue
		}
		if otherIdx >= len(p.OtherPeaks) {
			return false
		}
		peaks[i] = peak{pos: peakPositions[i], hash: p.OtherPeaks[otherIdx]}
		otherIdx++
	}

	return bagPeaks(peaks) == root
}
