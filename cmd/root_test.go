package cmd

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/framegraph/framegraph/internal/engine"
	"github.com/framegraph/framegraph/internal/framestore"
	"github.com/framegraph/framegraph/internal/ids"
	"github.com/framegraph/framegraph/internal/nodestore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mustStoreFrame writes a minimal node-basis frame directly to e's frame
// store, bypassing the queue, so tests can seed state without a provider.
func mustStoreFrame(t *testing.T, e *engine.Engine, nodeID ids.NodeID) *framestore.Frame {
	t.Helper()
	frame := framestore.New(ids.NodeBasis(nodeID), []byte("content"), "review", "reviewer-1", nil, time.Now())
	require.NoError(t, e.Frames.Store(frame))
	return frame
}

// withWorkspace points dataDir/configDir at fresh temp directories for the
// duration of a test and restores the previous values afterward, since
// openEngine reads those package-level flag variables directly.
func withWorkspace(t *testing.T) {
	t.Helper()
	origData, origConfig := dataDir, configDir
	dataDir = filepath.Join(t.TempDir(), "data")
	configDir = filepath.Join(t.TempDir(), "config")
	t.Cleanup(func() {
		dataDir, configDir = origData, origConfig
	})
}

func TestOpenEngineBootstrapsEmptyWorkspace(t *testing.T) {
	withWorkspace(t)

	e, closeFn, err := openEngine()
	require.NoError(t, err)
	defer closeFn()

	assert.Empty(t, e.Agents.ListAll())
	assert.Empty(t, e.Providers)
}

func TestOpenEngineRestoresPersistedHeadsAndBasisIndex(t *testing.T) {
	withWorkspace(t)

	e1, close1, err := openEngine()
	require.NoError(t, err)

	nodeID := ids.ComputeNodeID(ids.KindFile, []byte("hello"), nil)
	require.NoError(t, e1.Nodes.Put(&nodestore.NodeRecord{
		ID:       nodeID,
		Path:     "/repo/hello.txt",
		Kind:     ids.KindFile,
		Metadata: map[string]string{},
	}))

	frame := mustStoreFrame(t, e1, nodeID)
	e1.Heads.UpdateHead(nodeID, "review", frame.ID)
	close1()

	e2, close2, err := openEngine()
	require.NoError(t, err)
	defer close2()

	headID, ok := e2.Heads.GetHead(nodeID, "review")
	require.True(t, ok)
	assert.Equal(t, frame.ID, headID)

	basisHash, ok := e2.Basis.GetBasisForFrame(frame.ID)
	require.True(t, ok)
	assert.Equal(t, ids.ComputeBasisHash(ids.NodeBasis(nodeID)), basisHash)
}

func TestResolvePathFindsRegisteredNode(t *testing.T) {
	withWorkspace(t)

	e, closeFn, err := openEngine()
	require.NoError(t, err)
	defer closeFn()

	nodeID := ids.ComputeNodeID(ids.KindFile, []byte("x"), nil)
	require.NoError(t, e.Nodes.Put(&nodestore.NodeRecord{
		ID:       nodeID,
		Path:     "/repo/x.txt",
		Kind:     ids.KindFile,
		Metadata: map[string]string{},
	}))

	found, err := resolvePath(e, "/repo/x.txt")
	require.NoError(t, err)
	assert.Equal(t, nodeID, found)

	_, err = resolvePath(e, "/repo/missing.txt")
	assert.Error(t, err)
}
