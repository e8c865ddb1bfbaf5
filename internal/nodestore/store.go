package nodestore

import (
	"time"

	"github.com/framegraph/framegraph/internal/ids"
)

// Store is the durable NodeID -> NodeRecord mapping. Writes are atomic
// per key; readers may observe any committed snapshot.
type Store interface {
	// Get returns the record for id, or (nil, nil) if no such record exists.
	Get(id ids.NodeID) (*NodeRecord, error)
	// Put upserts a record by ID.
	Put(record *NodeRecord) error
	// ListActive returns every record whose Tombstone is unset.
	ListActive() ([]*NodeRecord, error)
	// Flush persists any buffered writes.
	Flush() error
	// Tombstone marks a record logically deleted at ts.
	Tombstone(id ids.NodeID, ts time.Time) error
	// Restore clears a record's tombstone.
	Restore(id ids.NodeID) error
	// Purge permanently removes a record (used by compaction).
	Purge(id ids.NodeID) error
	// Close releases underlying resources.
	Close() error
}
