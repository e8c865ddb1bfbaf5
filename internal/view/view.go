// Package view implements the bounded, policy-driven read API over a
// node's frames. It is read-only: selection never mutates heads, the
// basis index, or frame storage.
package view

import (
	"sort"

	"github.com/framegraph/framegraph/internal/apperr"
	"github.com/framegraph/framegraph/internal/framestore"
	"github.com/framegraph/framegraph/internal/headindex"
	"github.com/framegraph/framegraph/internal/ids"
	"github.com/framegraph/framegraph/internal/nodestore"
)

// Ordering selects how filtered frames are sorted before truncation.
type Ordering int

const (
	// Recency sorts by descending CreatedAt.
	Recency Ordering = iota
	// Type sorts ascending by (frame_type, FrameID).
	Type
	// Agent sorts ascending by (agent_id, CreatedAt descending).
	Agent
)

// Filter narrows the candidate frame set before ordering. Exactly one of
// its fields is meaningful per Filter value; construct via the ByType,
// ByAgent, or ExcludeDeleted helpers below.
type Filter struct {
	kind      filterKind
	frameType string
	agentID   string
}

type filterKind int

const (
	filterByType filterKind = iota
	filterByAgent
	filterExcludeDeleted
)

func ByType(frameType string) Filter { return Filter{kind: filterByType, frameType: frameType} }
func ByAgent(agentID string) Filter  { return Filter{kind: filterByAgent, agentID: agentID} }
func ExcludeDeleted() Filter         { return Filter{kind: filterExcludeDeleted} }

// View bounds and shapes a frame selection.
type View struct {
	MaxFrames int
	Ordering  Ordering
	Filters   []Filter
}

// NodeContext is the result of resolving a View against one node.
type NodeContext struct {
	NodeID     ids.NodeID
	NodeRecord *nodestore.NodeRecord
	Frames     []*framestore.Frame
	FrameCount int // total candidates available before truncation
}

// Reader resolves NodeContexts against the node store, frame store, and
// head index.
type Reader struct {
	nodes  nodestore.Store
	frames framestore.Store
	heads  *headindex.Index
}

// New builds a Reader over the given collaborators.
func New(nodes nodestore.Store, frames framestore.Store, heads *headindex.Index) *Reader {
	return &Reader{nodes: nodes, frames: frames, heads: heads}
}

// GetNode resolves nodeID's NodeRecord and the bounded frame selection v
// describes: read all heads, resolve each, apply filters in declaration
// order, sort by the ordering predicate, truncate to MaxFrames.
func (r *Reader) GetNode(nodeID ids.NodeID, v View) (*NodeContext, error) {
	record, err := r.nodes.Get(nodeID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, apperr.NodeNotFound(nodeID.Hex())
	}

	headIDs := r.heads.GetAllHeadsForNode(nodeID)
	frames := make([]*framestore.Frame, 0, len(headIDs))
	for _, id := range headIDs {
		f, err := r.frames.Get(id)
		if err != nil {
			return nil, err
		}
		if f == nil {
			continue
		}
		frames = append(frames, f)
	}

	for _, filt := range v.Filters {
		frames = applyFilter(frames, filt, record)
	}

	sortFrames(frames, v.Ordering)

	count := len(frames)
	if v.MaxFrames > 0 && len(frames) > v.MaxFrames {
		frames = frames[:v.MaxFrames]
	}

	return &NodeContext{
		NodeID:     nodeID,
		NodeRecord: record,
		Frames:     frames,
		FrameCount: count,
	}, nil
}

func applyFilter(frames []*framestore.Frame, f Filter, record *nodestore.NodeRecord) []*framestore.Frame {
	out := frames[:0:0]
	for _, frame := range frames {
		switch f.kind {
		case filterByType:
			if frame.FrameType == f.frameType {
				out = append(out, frame)
			}
		case filterByAgent:
			if frame.AgentID() == f.agentID {
				out = append(out, frame)
			}
		case filterExcludeDeleted:
			if record.Active() {
				out = append(out, frame)
			}
		}
	}
	return out
}

func sortFrames(frames []*framestore.Frame, ordering Ordering) {
	switch ordering {
	case Recency:
		sort.SliceStable(frames, func(i, j int) bool {
			return frames[i].CreatedAt.After(frames[j].CreatedAt)
		})
	case Type:
		sort.SliceStable(frames, func(i, j int) bool {
			if frames[i].FrameType != frames[j].FrameType {
				return frames[i].FrameType < frames[j].FrameType
			}
			return frames[i].ID.Hex() < frames[j].ID.Hex()
		})
	case Agent:
		sort.SliceStable(frames, func(i, j int) bool {
			ai, aj := frames[i].AgentID(), frames[j].AgentID()
			if ai != aj {
				return ai < aj
			}
			return frames[i].CreatedAt.After(frames[j].CreatedAt)
		})
	}
}
