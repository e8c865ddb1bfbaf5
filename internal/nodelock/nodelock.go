// Package nodelock implements the per-NodeID multi-reader/single-writer
// lock manager. Locks are materialized lazily on first request
// and never destroyed while a handle to them is held; any two callers
// requesting the same NodeID observe the same underlying lock.
package nodelock

import (
	"sync"

	"github.com/framegraph/framegraph/internal/ids"
)

// Manager hands out *sync.RWMutex handles keyed by NodeID, materializing
// each one lazily through sync.Map.LoadOrStore.
type Manager struct {
	locks sync.Map // ids.NodeID -> *sync.RWMutex
}

// New returns an empty Manager.
func New() *Manager {
	return &Manager{}
}

// lockFor returns the RWMutex for nodeID, creating it on first access. Two
// concurrent callers racing to create the same entry both see the same
// *sync.RWMutex, because LoadOrStore is atomic: the loser's freshly
// allocated mutex is discarded in favor of whichever was stored first.
func (m *Manager) lockFor(nodeID ids.NodeID) *sync.RWMutex {
	if v, ok := m.locks.Load(nodeID); ok {
		return v.(*sync.RWMutex)
	}
	actual, _ := m.locks.LoadOrStore(nodeID, &sync.RWMutex{})
	return actual.(*sync.RWMutex)
}

// Lock acquires the writer lock for nodeID, excluding all readers and
// writers of that same NodeID. Different NodeIDs never block each other.
func (m *Manager) Lock(nodeID ids.NodeID) {
	m.lockFor(nodeID).Lock()
}

// Unlock releases the writer lock for nodeID.
func (m *Manager) Unlock(nodeID ids.NodeID) {
	m.lockFor(nodeID).Unlock()
}

// RLock acquires the reader lock for nodeID. Readers do not block readers.
func (m *Manager) RLock(nodeID ids.NodeID) {
	m.lockFor(nodeID).RLock()
}

// RUnlock releases the reader lock for nodeID.
func (m *Manager) RUnlock(nodeID ids.NodeID) {
	m.lockFor(nodeID).RUnlock()
}

// WithWriteLock runs fn while holding nodeID's writer lock, always
// releasing on return including on panic.
func (m *Manager) WithWriteLock(nodeID ids.NodeID, fn func() error) error {
	m.Lock(nodeID)
	defer m.Unlock(nodeID)
	return fn()
}

// WithReadLock runs fn while holding nodeID's reader lock, always
// releasing on return including on panic.
func (m *Manager) WithReadLock(nodeID ids.NodeID, fn func() error) error {
	m.RLock(nodeID)
	defer m.RUnlock(nodeID)
	return fn()
}
