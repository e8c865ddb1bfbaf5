// Package nodestore implements the durable NodeID -> NodeRecord mapping.
// Records are upserted wholesale by a scan and read by every other
// component that needs to resolve a node's path, kind, or children.
package nodestore

import (
	"time"

	"github.com/framegraph/framegraph/internal/ids"
)

// FileInfo holds the attributes unique to a File node.
type FileInfo struct {
	Size        int64
	ContentHash ids.Hash
}

// NodeRecord is the durable representation of one node in the Merkle tree.
type NodeRecord struct {
	ID   ids.NodeID
	Path string
	Kind ids.NodeKind
	File FileInfo // meaningful only when Kind == ids.KindFile

	// Children holds child NodeIDs sorted by name for directories, and is
	// always empty for files (data-model invariant).
	Children []ids.NodeID

	Parent       *ids.NodeID
	FrameSetRoot *ids.Hash
	Metadata     map[string]string

	// Tombstone is set when the node has been logically deleted. A nil
	// Tombstone means the record is active.
	Tombstone *time.Time
}

// Active reports whether the record has not been tombstoned.
func (r *NodeRecord) Active() bool {
	return r.Tombstone == nil
}

// IsDirectory reports whether this record is a Directory node.
func (r *NodeRecord) IsDirectory() bool {
	return r.Kind == ids.KindDirectory
}
