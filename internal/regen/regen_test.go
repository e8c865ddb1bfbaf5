package regen

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/framegraph/framegraph/internal/basisindex"
	"github.com/framegraph/framegraph/internal/framestore"
	"github.com/framegraph/framegraph/internal/headindex"
	"github.com/framegraph/framegraph/internal/ids"
	"github.com/framegraph/framegraph/internal/nodestore"
	"github.com/framegraph/framegraph/internal/synth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	nodes  nodestore.Store
	frames framestore.Store
	heads  *headindex.Index
	basis  *basisindex.Index
	synth  *synth.Synthesizer
	regen  *Regenerator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	nodes, err := nodestore.Open(filepath.Join(dir, "nodes.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = nodes.Close() })

	frames, err := framestore.Open(filepath.Join(dir, "frames.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = frames.Close() })

	heads := headindex.New()
	basis := basisindex.New()
	synthesizer := synth.New(nodes, frames, heads)

	return &fixture{
		nodes:  nodes,
		frames: frames,
		heads:  heads,
		basis:  basis,
		synth:  synthesizer,
		regen:  New(nodes, frames, heads, basis, synthesizer),
	}
}

func (f *fixture) putChild(t *testing.T, content byte, frameType string) ids.NodeID {
	t.Helper()
	nodeID := ids.ComputeNodeID(ids.KindFile, []byte{content}, nil)
	require.NoError(t, f.nodes.Put(&nodestore.NodeRecord{ID: nodeID, Path: "/c", Kind: ids.KindFile}))
	frame := framestore.New(ids.NodeBasis(nodeID), []byte{content}, frameType, "writer", nil, time.Now())
	require.NoError(t, f.frames.Store(frame))
	f.heads.UpdateHead(nodeID, frameType, frame.ID)
	f.basis.AddFrame(ids.ComputeBasisHash(frame.Basis), frame.ID)
	return nodeID
}

func (f *fixture) synthesizeAndStore(t *testing.T, dirID ids.NodeID, frameType string) *framestore.Frame {
	t.Helper()
	frame, err := f.synth.Synthesize(dirID, frameType, synth.PolicyConcatenation, "system", time.Now())
	require.NoError(t, err)
	require.NoError(t, f.frames.Store(frame))
	f.heads.UpdateHead(dirID, frameType, frame.ID)
	f.basis.AddFrame(ids.ComputeBasisHash(frame.Basis), frame.ID)
	return frame
}

func TestRegenerateNoChangeYieldsZero(t *testing.T) {
	f := newFixture(t)
	a := f.putChild(t, 0x61, "note")
	dirID := ids.ComputeNodeID(ids.KindDirectory, []byte("/d"), []ids.NodeID{a})
	require.NoError(t, f.nodes.Put(&nodestore.NodeRecord{ID: dirID, Path: "/d", Kind: ids.KindDirectory, Children: []ids.NodeID{a}}))
	f.synthesizeAndStore(t, dirID, "note")

	report, err := f.regen.Regenerate(dirID, false, "system", time.Now())
	require.NoError(t, err)
	assert.Equal(t, 0, report.RegeneratedCount)
	assert.Empty(t, report.Stale)
}

func TestRegenerateDetectsChildEditAndResynthesizes(t *testing.T) {
	f := newFixture(t)
	a := f.putChild(t, 0x61, "note")
	dirID := ids.ComputeNodeID(ids.KindDirectory, []byte("/d"), []ids.NodeID{a})
	require.NoError(t, f.nodes.Put(&nodestore.NodeRecord{ID: dirID, Path: "/d", Kind: ids.KindDirectory, Children: []ids.NodeID{a}}))
	oldFrame := f.synthesizeAndStore(t, dirID, "note")

	// Child is edited: a new head frame for the same child NodeID.
	newChildFrame := framestore.New(ids.NodeBasis(a), []byte("edited"), "note", "writer", nil, time.Now())
	require.NoError(t, f.frames.Store(newChildFrame))
	f.heads.UpdateHead(a, "note", newChildFrame.ID)
	f.basis.AddFrame(ids.ComputeBasisHash(newChildFrame.Basis), newChildFrame.ID)

	report, err := f.regen.Regenerate(dirID, false, "system", time.Now())
	require.NoError(t, err)
	require.Equal(t, 1, report.RegeneratedCount)

	newHead, ok := f.heads.GetHead(dirID, "note")
	require.True(t, ok)
	assert.NotEqual(t, oldFrame.ID, newHead)
	assert.Equal(t, report.FrameIDs[0], newHead)
}

func TestRegenerateIsIdempotent(t *testing.T) {
	f := newFixture(t)
	a := f.putChild(t, 0x61, "note")
	dirID := ids.ComputeNodeID(ids.KindDirectory, []byte("/d"), []ids.NodeID{a})
	require.NoError(t, f.nodes.Put(&nodestore.NodeRecord{ID: dirID, Path: "/d", Kind: ids.KindDirectory, Children: []ids.NodeID{a}}))
	f.synthesizeAndStore(t, dirID, "note")

	newChildFrame := framestore.New(ids.NodeBasis(a), []byte("edited"), "note", "writer", nil, time.Now())
	require.NoError(t, f.frames.Store(newChildFrame))
	f.heads.UpdateHead(a, "note", newChildFrame.ID)
	f.basis.AddFrame(ids.ComputeBasisHash(newChildFrame.Basis), newChildFrame.ID)

	first, err := f.regen.Regenerate(dirID, false, "system", time.Now())
	require.NoError(t, err)
	require.Equal(t, 1, first.RegeneratedCount)

	second, err := f.regen.Regenerate(dirID, false, "system", time.Now())
	require.NoError(t, err)
	assert.Equal(t, 0, second.RegeneratedCount)
}

func TestRegenerateReportsStaleAuthoredFrameWithoutRegenerating(t *testing.T) {
	f := newFixture(t)
	nodeID := ids.ComputeNodeID(ids.KindFile, []byte{0x42}, nil)
	require.NoError(t, f.nodes.Put(&nodestore.NodeRecord{ID: nodeID, Path: "/x", Kind: ids.KindFile}))

	frame := framestore.New(ids.NodeBasis(nodeID), []byte("authored"), "summary", "writer", nil, time.Now())
	require.NoError(t, f.frames.Store(frame))
	f.heads.UpdateHead(nodeID, "summary", frame.ID)
	// Index under a different basis hash than the frame actually has, to
	// simulate drift: the node's content changed after this frame was
	// authored but the frame was never updated.
	f.basis.AddFrame(ids.ComputeBasisHash(ids.NodeBasis(ids.ComputeNodeID(ids.KindFile, []byte{0x99}, nil))), frame.ID)

	report, err := f.regen.Regenerate(nodeID, false, "system", time.Now())
	require.NoError(t, err)
	assert.Equal(t, 0, report.RegeneratedCount)
	require.Len(t, report.Stale, 1)
	assert.Equal(t, "summary", report.Stale[0].FrameType)
	assert.Equal(t, frame.ID, report.Stale[0].HeadID)
}

func TestRegenerateRecursivePostOrder(t *testing.T) {
	f := newFixture(t)
	a := f.putChild(t, 0x61, "note")
	subDir := ids.ComputeNodeID(ids.KindDirectory, []byte("/d/sub"), []ids.NodeID{a})
	require.NoError(t, f.nodes.Put(&nodestore.NodeRecord{ID: subDir, Path: "/d/sub", Kind: ids.KindDirectory, Children: []ids.NodeID{a}}))
	f.synthesizeAndStore(t, subDir, "note")

	rootDir := ids.ComputeNodeID(ids.KindDirectory, []byte("/d"), []ids.NodeID{subDir})
	require.NoError(t, f.nodes.Put(&nodestore.NodeRecord{ID: rootDir, Path: "/d", Kind: ids.KindDirectory, Children: []ids.NodeID{subDir}}))
	f.synthesizeAndStore(t, rootDir, "note")

	// Edit leaf a.
	newChildFrame := framestore.New(ids.NodeBasis(a), []byte("edited"), "note", "writer", nil, time.Now())
	require.NoError(t, f.frames.Store(newChildFrame))
	f.heads.UpdateHead(a, "note", newChildFrame.ID)
	f.basis.AddFrame(ids.ComputeBasisHash(newChildFrame.Basis), newChildFrame.ID)

	report, err := f.regen.Regenerate(rootDir, true, "system", time.Now())
	require.NoError(t, err)
	// subDir resynthesizes (1) then rootDir resynthesizes against subDir's
	// new head (1): post-order means both detect drift in the same pass.
	assert.Equal(t, 2, report.RegeneratedCount)
}
