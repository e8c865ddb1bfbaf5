// Package basisindex implements the basis-hash change-detection index: a
// forward map basis_hash -> {FrameID} and a reverse map FrameID ->
// basis_hash, kept consistent on every mutation.
package basisindex

import (
	"sync"

	"github.com/RoaringBitmap/roaring"
	"github.com/framegraph/framegraph/internal/ids"
)

// Index is the in-memory basis index, guarded by its own reader/writer
// lock. Forward membership is stored in a roaring bitmap per basis hash,
// with each FrameID mapped to a dense internal uint32 ID (frameToID /
// idToFrame), so removal from a large frame set stays O(1) amortized
// instead of O(n).
type Index struct {
	mu sync.RWMutex

	forward   map[ids.Hash]*roaring.Bitmap // basis_hash -> bitmap of internal frame IDs
	reverse   map[ids.FrameID]ids.Hash     // FrameID -> basis_hash
	frameToID map[ids.FrameID]uint32
	idToFrame []ids.FrameID
	nextID    uint32
}

// New returns an empty Index.
func New() *Index {
	return &Index{
		forward:   make(map[ids.Hash]*roaring.Bitmap),
		reverse:   make(map[ids.FrameID]ids.Hash),
		frameToID: make(map[ids.FrameID]uint32),
	}
}

// internalID returns frameID's bitmap-internal ID, assigning a fresh one if
// this frame has never been indexed. Must be called with mu held.
func (idx *Index) internalID(frameID ids.FrameID) uint32 {
	if id, ok := idx.frameToID[frameID]; ok {
		return id
	}
	id := idx.nextID
	idx.nextID++
	idx.frameToID[frameID] = id
	for uint32(len(idx.idToFrame)) <= id {
		idx.idToFrame = append(idx.idToFrame, ids.FrameID{})
	}
	idx.idToFrame[id] = frameID
	return id
}

// AddFrame records that frameID was derived from basisHash.
func (idx *Index) AddFrame(basisHash ids.Hash, frameID ids.FrameID) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if old, ok := idx.reverse[frameID]; ok && old != basisHash {
		idx.removeFromForward(old, frameID)
	}

	bm, ok := idx.forward[basisHash]
	if !ok {
		bm = roaring.New()
		idx.forward[basisHash] = bm
	}
	bm.Add(idx.internalID(frameID))
	idx.reverse[frameID] = basisHash
}

// removeFromForward clears frameID's bit in basisHash's bitmap, pruning the
// bitmap entirely once empty. Must be called with mu held.
func (idx *Index) removeFromForward(basisHash ids.Hash, frameID ids.FrameID) {
	bm, ok := idx.forward[basisHash]
	if !ok {
		return
	}
	if intID, ok := idx.frameToID[frameID]; ok {
		bm.Remove(intID)
	}
	if bm.IsEmpty() {
		delete(idx.forward, basisHash)
	}
}

// RemoveFrame deletes frameID from both maps, used by compaction.
func (idx *Index) RemoveFrame(frameID ids.FrameID) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	basisHash, ok := idx.reverse[frameID]
	if !ok {
		return
	}
	idx.removeFromForward(basisHash, frameID)
	delete(idx.reverse, frameID)
}

// GetFramesByBasis returns every FrameID currently recorded under basisHash.
func (idx *Index) GetFramesByBasis(basisHash ids.Hash) []ids.FrameID {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	bm, ok := idx.forward[basisHash]
	if !ok {
		return nil
	}
	out := make([]ids.FrameID, 0, bm.GetCardinality())
	it := bm.Iterator()
	for it.HasNext() {
		intID := it.Next()
		if int(intID) < len(idx.idToFrame) {
			out = append(out, idx.idToFrame[intID])
		}
	}
	return out
}

// GetBasisForFrame returns the basis_hash frameID was last indexed under.
func (idx *Index) GetBasisForFrame(frameID ids.FrameID) (ids.Hash, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	h, ok := idx.reverse[frameID]
	return h, ok
}

// Len returns the number of distinct basis hashes with at least one frame,
// used for consistency checks in tests.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.forward)
}

// ForwardFrameCount returns how many frames the forward bitmaps hold, for
// the consistency invariant that every forward entry has a matching
// reverse entry and vice versa.
func (idx *Index) ForwardFrameCount() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	total := 0
	for _, bm := range idx.forward {
		total += int(bm.GetCardinality())
	}
	return total
}

// ReverseFrameCount returns the number of entries in the reverse map.
func (idx *Index) ReverseFrameCount() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.reverse)
}
