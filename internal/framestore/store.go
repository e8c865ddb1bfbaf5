package framestore

import (
	"github.com/framegraph/framegraph/internal/ids"
)

// Store is the content-addressed Frame blob store.
type Store interface {
	// Store persists f. Re-storing the same FrameID is a no-op.
	Store(f *Frame) error
	// Get returns the frame for id, or (nil, nil) if it is not present.
	Get(id ids.FrameID) (*Frame, error)
	// Exists reports whether id has been stored.
	Exists(id ids.FrameID) (bool, error)
	// Close releases underlying resources.
	Close() error
}
