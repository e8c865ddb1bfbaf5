// Package framestore implements the content-addressed Frame blob store:
// FrameID -> immutable Frame, keyed by content hash.
package framestore

import (
	"sort"
	"time"

	"github.com/framegraph/framegraph/internal/ids"
)

// Frame is an immutable, content-addressed unit of context attached to a
// node. FrameID is always the output of ids.ComputeFrameID over Basis,
// Content, FrameType, and the agent_id carried in Metadata.
type Frame struct {
	ID        ids.FrameID
	Basis     ids.Basis
	Content   []byte
	FrameType string
	Metadata  map[string]string
	CreatedAt time.Time
}

// AgentID returns the metadata["agent_id"] value every frame must carry.
func (f *Frame) AgentID() string {
	return f.Metadata["agent_id"]
}

// BasisHash returns the hex metadata["basis_hash"] recorded on synthesized
// frames, and ok=false on authored frames: a frame is synthesized iff
// this key is present.
func (f *Frame) BasisHash() (string, bool) {
	h, ok := f.Metadata["basis_hash"]
	return h, ok
}

// IsSynthesized reports whether the frame was produced by the synthesizer
// rather than authored by an agent.
func (f *Frame) IsSynthesized() bool {
	_, ok := f.BasisHash()
	return ok
}

// New builds a Frame, computing its FrameID from the given fields. agentID
// is written into metadata under "agent_id" as the derivation contract
// requires.
func New(basis ids.Basis, content []byte, frameType, agentID string, metadata map[string]string, createdAt time.Time) *Frame {
	meta := make(map[string]string, len(metadata)+1)
	for k, v := range metadata {
		meta[k] = v
	}
	meta["agent_id"] = agentID

	id := ids.ComputeFrameID(basis, content, frameType, agentID)
	return &Frame{
		ID:        id,
		Basis:     basis,
		Content:   content,
		FrameType: frameType,
		Metadata:  meta,
		CreatedAt: createdAt,
	}
}

// sortedMetadataKeys returns the metadata keys in ascending order, for the
// sorted-key encoding the on-disk format requires.
func (f *Frame) sortedMetadataKeys() []string {
	keys := make([]string, 0, len(f.Metadata))
	for k := range f.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
