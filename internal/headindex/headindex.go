// Package headindex implements the in-process (NodeID, frame_type) -> FrameID
// mapping: the "latest" frame of each kind per node.
package headindex

import (
	"sort"
	"sync"

	"github.com/framegraph/framegraph/internal/ids"
)

// Key identifies one head slot.
type Key struct {
	NodeID    ids.NodeID
	FrameType string
}

// Index is the in-memory head map, guarded by a single reader/writer lock.
type Index struct {
	mu    sync.RWMutex
	heads map[Key]ids.FrameID
}

// New returns an empty Index.
func New() *Index {
	return &Index{heads: make(map[Key]ids.FrameID)}
}

// GetHead returns the head FrameID for (nodeID, frameType), or ok=false if
// no head has been set.
func (idx *Index) GetHead(nodeID ids.NodeID, frameType string) (ids.FrameID, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	id, ok := idx.heads[Key{NodeID: nodeID, FrameType: frameType}]
	return id, ok
}

// UpdateHead sets the head FrameID for (nodeID, frameType).
func (idx *Index) UpdateHead(nodeID ids.NodeID, frameType string, frameID ids.FrameID) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.heads[Key{NodeID: nodeID, FrameType: frameType}] = frameID
}

// RemoveHead deletes the head entry for (nodeID, frameType), used by
// tombstone compaction.
func (idx *Index) RemoveHead(nodeID ids.NodeID, frameType string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	delete(idx.heads, Key{NodeID: nodeID, FrameType: frameType})
}

// GetAllHeadsForNode returns every head FrameID recorded for nodeID, across
// all frame_types, in a stable (frame_type-sorted) order.
func (idx *Index) GetAllHeadsForNode(nodeID ids.NodeID) []ids.FrameID {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	type entry struct {
		frameType string
		frameID   ids.FrameID
	}
	var entries []entry
	for k, v := range idx.heads {
		if k.NodeID == nodeID {
			entries = append(entries, entry{k.FrameType, v})
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].frameType < entries[j].frameType })

	out := make([]ids.FrameID, len(entries))
	for i, e := range entries {
		out[i] = e.frameID
	}
	return out
}

// FrameTypesForNode returns the distinct frame_types with a head on nodeID,
// sorted ascending (used by the regenerator).
func (idx *Index) FrameTypesForNode(nodeID ids.NodeID) []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	var types []string
	for k := range idx.heads {
		if k.NodeID == nodeID {
			types = append(types, k.FrameType)
		}
	}
	sort.Strings(types)
	return types
}

// GetAllNodeIDs returns the distinct NodeIDs that have at least one head.
func (idx *Index) GetAllNodeIDs() []ids.NodeID {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	seen := make(map[ids.NodeID]struct{})
	for k := range idx.heads {
		seen[k.NodeID] = struct{}{}
	}
	out := make([]ids.NodeID, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Hex() < out[j].Hex() })
	return out
}

// CountNodesForFrameType returns how many distinct nodes have a head of the
// given frame_type.
func (idx *Index) CountNodesForFrameType(frameType string) int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	count := 0
	for k := range idx.heads {
		if k.FrameType == frameType {
			count++
		}
	}
	return count
}

// Snapshot returns a copy of every entry, for persistence.
func (idx *Index) Snapshot() []Entry {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	out := make([]Entry, 0, len(idx.heads))
	for k, v := range idx.heads {
		out = append(out, Entry{NodeID: k.NodeID, FrameType: k.FrameType, FrameID: v})
	}
	return out
}

// Entry is one persisted (NodeID, frame_type, FrameID) triple; order is
// not significant.
type Entry struct {
	NodeID    ids.NodeID
	FrameType string
	FrameID   ids.FrameID
}

// LoadSnapshot replaces the index contents with entries, used when
// restoring a persisted head index on start.
func (idx *Index) LoadSnapshot(entries []Entry) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.heads = make(map[Key]ids.FrameID, len(entries))
	for _, e := range entries {
		idx.heads[Key{NodeID: e.NodeID, FrameType: e.FrameType}] = e.FrameID
	}
}
