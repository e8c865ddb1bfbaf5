// Package regen implements incremental, basis-driven regeneration of
// derived frames. Regeneration never deletes: stale frames are
// simply superseded by a fresh write and a head update, preserving full
// history.
package regen

import (
	"time"

	"github.com/framegraph/framegraph/internal/apperr"
	"github.com/framegraph/framegraph/internal/basisindex"
	"github.com/framegraph/framegraph/internal/framestore"
	"github.com/framegraph/framegraph/internal/headindex"
	"github.com/framegraph/framegraph/internal/ids"
	"github.com/framegraph/framegraph/internal/nodestore"
	"github.com/framegraph/framegraph/internal/synth"
	"github.com/rs/zerolog/log"
)

// Report summarizes one regeneration run.
type Report struct {
	NodeID           ids.NodeID
	RegeneratedCount int
	FrameIDs         []ids.FrameID
	DurationMs       int64
	Stale            []StaleAuthoredFrame
}

// StaleAuthoredFrame flags an authored (non-synthesized) frame whose basis
// has moved on. Authored content can only be recreated by the agent that
// wrote it, so the regenerator reports it rather than regenerating it.
type StaleAuthoredFrame struct {
	FrameType string
	HeadID    ids.FrameID
}

// Regenerator recomputes frames whose basis is stale.
type Regenerator struct {
	nodes       nodestore.Store
	frames      framestore.Store
	heads       *headindex.Index
	basis       *basisindex.Index
	synthesizer *synth.Synthesizer
}

// New builds a Regenerator over the given collaborators.
func New(nodes nodestore.Store, frames framestore.Store, heads *headindex.Index, basis *basisindex.Index, synthesizer *synth.Synthesizer) *Regenerator {
	return &Regenerator{nodes: nodes, frames: frames, heads: heads, basis: basis, synthesizer: synthesizer}
}

// Regenerate recomputes frames for nodeID whose basis has changed, and
// recurses into children first (post-order) when recursive is set, so a
// parent's synthesis observes already-updated child heads.
func (r *Regenerator) Regenerate(nodeID ids.NodeID, recursive bool, agentID string, now time.Time) (*Report, error) {
	start := time.Now()

	var childFrameIDs []ids.FrameID
	var staleFromChildren []StaleAuthoredFrame

	if recursive {
		node, err := r.nodes.Get(nodeID)
		if err != nil {
			return nil, err
		}
		if node == nil {
			return nil, apperr.NodeNotFound(nodeID.Hex())
		}
		for _, child := range node.Children {
			childReport, err := r.Regenerate(child, true, agentID, now)
			if err != nil {
				return nil, err
			}
			childFrameIDs = append(childFrameIDs, childReport.FrameIDs...)
			staleFromChildren = append(staleFromChildren, childReport.Stale...)
		}
	}

	frameTypes := r.heads.FrameTypesForNode(nodeID)

	var regenerated []ids.FrameID
	var stale []StaleAuthoredFrame

	for _, frameType := range frameTypes {
		headID, ok := r.heads.GetHead(nodeID, frameType)
		if !ok {
			continue
		}
		headFrame, err := r.frames.Get(headID)
		if err != nil {
			return nil, err
		}
		if headFrame == nil {
			continue
		}

		if headFrame.IsSynthesized() {
			frameID, changed, err := r.regenerateSynthesized(nodeID, frameType, headFrame, agentID, now)
			if err != nil {
				return nil, err
			}
			if changed {
				regenerated = append(regenerated, frameID)
			}
			continue
		}

		storedHash, ok := r.basis.GetBasisForFrame(headID)
		if !ok {
			continue
		}
		currentHash := ids.ComputeBasisHash(headFrame.Basis)
		if storedHash != currentHash {
			stale = append(stale, StaleAuthoredFrame{FrameType: frameType, HeadID: headID})
			log.Warn().
				Str("node_id", nodeID.Hex()).
				Str("frame_type", frameType).
				Str("head_frame_id", headID.Hex()).
				Msg("authored frame basis is stale; cannot auto-regenerate, agent must re-author")
		}
	}

	regenerated = append(regenerated, childFrameIDs...)
	stale = append(stale, staleFromChildren...)

	return &Report{
		NodeID:           nodeID,
		RegeneratedCount: len(regenerated),
		FrameIDs:         regenerated,
		DurationMs:       time.Since(start).Milliseconds(),
		Stale:            stale,
	}, nil
}

// regenerateSynthesized checks a synthesized frame's current basis hash
// against its stored metadata and, if stale, re-synthesizes, stores,
// updates the head, and indexes the new frame's basis.
func (r *Regenerator) regenerateSynthesized(nodeID ids.NodeID, frameType string, headFrame *framestore.Frame, agentID string, now time.Time) (ids.FrameID, bool, error) {
	storedHex, ok := headFrame.BasisHash()
	if !ok {
		return ids.FrameID{}, false, nil
	}
	storedHash, err := ids.ParseHex(storedHex)
	if err != nil {
		log.Warn().Str("node_id", nodeID.Hex()).Str("frame_type", frameType).Msg("invalid stored basis_hash metadata; skipping")
		return ids.FrameID{}, false, nil
	}

	children, err := r.synthesizer.CollectChildFrames(nodeID, frameType)
	if err != nil {
		return ids.FrameID{}, false, err
	}
	childFrameIDs := make([]ids.FrameID, len(children))
	for i, c := range children {
		childFrameIDs[i] = c.Frame.ID
	}

	policy := synth.Policy(headFrame.Metadata["synthesis_policy"])
	if policy == "" {
		policy = synth.PolicyConcatenation
	}

	currentHash := ids.ComputeSynthesisBasisHash(nodeID, childFrameIDs, frameType, string(policy))
	if storedHash == currentHash {
		return ids.FrameID{}, false, nil
	}

	newFrame, err := r.synthesizer.Synthesize(nodeID, frameType, policy, agentID, now)
	if err != nil {
		return ids.FrameID{}, false, err
	}
	if err := r.frames.Store(newFrame); err != nil {
		return ids.FrameID{}, false, err
	}
	r.basis.AddFrame(ids.ComputeBasisHash(newFrame.Basis), newFrame.ID)
	r.heads.UpdateHead(nodeID, frameType, newFrame.ID)

	return newFrame.ID, true, nil
}
