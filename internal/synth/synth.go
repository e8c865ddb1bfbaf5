// Package synth implements the deterministic folding of child frames into a
// parent frame under a synthesis policy.
package synth

import (
	"sort"
	"strconv"
	"time"

	"github.com/framegraph/framegraph/internal/apperr"
	"github.com/framegraph/framegraph/internal/framestore"
	"github.com/framegraph/framegraph/internal/headindex"
	"github.com/framegraph/framegraph/internal/ids"
	"github.com/framegraph/framegraph/internal/nodestore"
)

// Policy is the closed set of synthesis strategies. Summarization is
// reserved for a future extension that routes through the generation queue.
type Policy string

const (
	PolicyConcatenation Policy = "concatenation"
	PolicySummarization Policy = "summarization"
)

// concatSeparator joins child frame contents under PolicyConcatenation. It
// is part of the synthesis determinism contract: changing it changes every
// FrameID downstream, so it is fixed, not configurable.
const concatSeparator = "\n"

// emptyDirectorySentinel is the fixed content synthesized for a directory
// with no children.
const emptyDirectorySentinel = "Empty directory"

// ChildFrame pairs a child NodeID with its current head frame of the
// frame_type being synthesized.
type ChildFrame struct {
	ChildNodeID ids.NodeID
	Frame       *framestore.Frame
}

// Synthesizer folds ordered child frames into a new parent Frame.
type Synthesizer struct {
	nodes  nodestore.Store
	frames framestore.Store
	heads  *headindex.Index
}

// New builds a Synthesizer over the given store collaborators.
func New(nodes nodestore.Store, frames framestore.Store, heads *headindex.Index) *Synthesizer {
	return &Synthesizer{nodes: nodes, frames: frames, heads: heads}
}

// CollectChildFrames resolves the current head frame of frameType for every
// child of parentID, in canonical order: ascending by (child_node_id,
// child_frame_id). A child with no head of this frame_type is silently
// skipped.
func (s *Synthesizer) CollectChildFrames(parentID ids.NodeID, frameType string) ([]ChildFrame, error) {
	parent, err := s.nodes.Get(parentID)
	if err != nil {
		return nil, err
	}
	if parent == nil {
		return nil, apperr.NodeNotFound(parentID.Hex())
	}

	var out []ChildFrame
	for _, childID := range parent.Children {
		headID, ok := s.heads.GetHead(childID, frameType)
		if !ok {
			continue
		}
		frame, err := s.frames.Get(headID)
		if err != nil {
			return nil, err
		}
		if frame == nil {
			continue
		}
		out = append(out, ChildFrame{ChildNodeID: childID, Frame: frame})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].ChildNodeID != out[j].ChildNodeID {
			return out[i].ChildNodeID.Hex() < out[j].ChildNodeID.Hex()
		}
		return out[i].Frame.ID.Hex() < out[j].Frame.ID.Hex()
	})
	return out, nil
}

// synthesizeContent folds children's content bytes under policy.
// Concatenation is the only implemented policy; Summarization is reserved
// and currently falls back to Concatenation, matching the original
// implementation's default-on-unknown-policy behavior.
func synthesizeContent(children []ChildFrame, policy Policy) []byte {
	parts := make([]string, len(children))
	for i, c := range children {
		parts[i] = string(c.Frame.Content)
	}
	var out []byte
	for i, p := range parts {
		if i > 0 {
			out = append(out, concatSeparator...)
		}
		out = append(out, p...)
	}
	_ = policy // reserved for future policy branches
	return out
}

// Synthesize produces the synthesized Frame for parentID/frameType given
// its current children, and returns it without storing it — callers (the
// regenerator, the engine) decide when to persist and index it.
func (s *Synthesizer) Synthesize(parentID ids.NodeID, frameType string, policy Policy, agentID string, now time.Time) (*framestore.Frame, error) {
	children, err := s.CollectChildFrames(parentID, frameType)
	if err != nil {
		return nil, err
	}

	if len(children) == 0 {
		basis := ids.NodeBasis(parentID)
		// The synthesis basis hash over zero children is still computed via
		// ComputeSynthesisBasisHash (not ComputeBasisHash) so the
		// regenerator's drift check — which always recomputes this way —
		// treats a stable empty directory as unchanged.
		basisHash := ids.ComputeSynthesisBasisHash(parentID, nil, frameType, string(policy))
		metadata := map[string]string{
			"synthesis_policy":  string(policy),
			"basis_hash":        basisHash.Hex(),
			"child_frame_count": "0",
		}
		return framestore.New(basis, []byte(emptyDirectorySentinel), frameType, agentID, metadata, now), nil
	}

	childFrameIDs := make([]ids.FrameID, len(children))
	for i, c := range children {
		childFrameIDs[i] = c.Frame.ID
	}
	basisHash := ids.ComputeSynthesisBasisHash(parentID, childFrameIDs, frameType, string(policy))

	var basis ids.Basis
	if len(children) == 1 {
		basis = ids.FrameBasis(children[0].Frame.ID)
	} else {
		basis = ids.NodeBasis(parentID)
	}

	metadata := map[string]string{
		"synthesis_policy":  string(policy),
		"basis_hash":        basisHash.Hex(),
		"child_frame_count": strconv.Itoa(len(children)),
	}
	content := synthesizeContent(children, policy)
	return framestore.New(basis, content, frameType, agentID, metadata, now), nil
}
