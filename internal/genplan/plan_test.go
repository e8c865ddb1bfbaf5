package genplan

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/framegraph/framegraph/internal/apperr"
	"github.com/framegraph/framegraph/internal/genqueue"
	"github.com/framegraph/framegraph/internal/headindex"
	"github.com/framegraph/framegraph/internal/ids"
	"github.com/framegraph/framegraph/internal/nodestore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestNodes(t *testing.T) nodestore.Store {
	t.Helper()
	dir := t.TempDir()
	s, err := nodestore.Open(filepath.Join(dir, "nodes.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// buildTree creates: root (dir) -> {a (file), sub (dir) -> {b (file)}}.
func buildTree(t *testing.T, nodes nodestore.Store) (root, a, sub, b ids.NodeID) {
	t.Helper()
	a = ids.ComputeNodeID(ids.KindFile, []byte{0x61}, nil)
	require.NoError(t, nodes.Put(&nodestore.NodeRecord{ID: a, Path: "/root/a", Kind: ids.KindFile}))

	b = ids.ComputeNodeID(ids.KindFile, []byte{0x62}, nil)
	require.NoError(t, nodes.Put(&nodestore.NodeRecord{ID: b, Path: "/root/sub/b", Kind: ids.KindFile}))

	sub = ids.ComputeNodeID(ids.KindDirectory, []byte("/root/sub"), []ids.NodeID{b})
	require.NoError(t, nodes.Put(&nodestore.NodeRecord{ID: sub, Path: "/root/sub", Kind: ids.KindDirectory, Children: []ids.NodeID{b}}))

	root = ids.ComputeNodeID(ids.KindDirectory, []byte("/root"), []ids.NodeID{a, sub})
	require.NoError(t, nodes.Put(&nodestore.NodeRecord{ID: root, Path: "/root", Kind: ids.KindDirectory, Children: []ids.NodeID{a, sub}}))
	return
}

func TestBuildRecursivePlanIsDeepestFirst(t *testing.T) {
	nodes := openTestNodes(t)
	root, a, sub, b := buildTree(t, nodes)
	heads := headindex.New()

	plan, err := Build(nodes, heads, Params{Target: root, AgentID: "writer", FrameType: "note", Recursive: true})
	require.NoError(t, err)

	require.Len(t, plan.Levels, 3)
	// Deepest level first: depth 2 = {b}, depth 1 = {a, sub}, depth 0 = {root}.
	assertLevelContains(t, plan.Levels[0], b)
	assertLevelContains(t, plan.Levels[1], a, sub)
	assertLevelContains(t, plan.Levels[2], root)
	assert.Equal(t, 4, plan.TotalNodes)
}

func TestBuildRecursiveSkipsNodesWithExistingHead(t *testing.T) {
	nodes := openTestNodes(t)
	root, a, sub, b := buildTree(t, nodes)
	heads := headindex.New()
	heads.UpdateHead(b, "note", ids.ComputeFrameID(ids.NodeBasis(b), []byte("x"), "note", "writer"))

	plan, err := Build(nodes, heads, Params{Target: root, AgentID: "writer", FrameType: "note", Recursive: true})
	require.NoError(t, err)

	require.Len(t, plan.Levels, 2)
	assertLevelContains(t, plan.Levels[0], a, sub)
	assertLevelContains(t, plan.Levels[1], root)
	assert.Equal(t, 3, plan.TotalNodes)
}

func TestBuildNonRecursiveFailsWhenDescendantsMissing(t *testing.T) {
	nodes := openTestNodes(t)
	root, _, _, _ := buildTree(t, nodes)
	heads := headindex.New()

	_, err := Build(nodes, heads, Params{Target: root, AgentID: "writer", FrameType: "note", Recursive: false})
	require.Error(t, err)
	code, ok := apperr.CodeOf(err)
	require.True(t, ok)
	assert.Equal(t, apperr.CodeGenerationFailed, code)
}

func TestBuildNonRecursiveForceSucceedsDespiteMissingDescendants(t *testing.T) {
	nodes := openTestNodes(t)
	root, _, _, _ := buildTree(t, nodes)
	heads := headindex.New()

	plan, err := Build(nodes, heads, Params{Target: root, AgentID: "writer", FrameType: "note", Recursive: false, Force: true})
	require.NoError(t, err)
	require.Len(t, plan.Levels, 1)
	assertLevelContains(t, plan.Levels[0], root)
}

func TestBuildNonRecursiveSkipsWhenHeadExists(t *testing.T) {
	nodes := openTestNodes(t)
	a := ids.ComputeNodeID(ids.KindFile, []byte{0x61}, nil)
	require.NoError(t, nodes.Put(&nodestore.NodeRecord{ID: a, Path: "/root/a", Kind: ids.KindFile}))
	heads := headindex.New()
	heads.UpdateHead(a, "note", ids.ComputeFrameID(ids.NodeBasis(a), []byte("x"), "note", "writer"))

	plan, err := Build(nodes, heads, Params{Target: a, AgentID: "writer", FrameType: "note", Recursive: false})
	require.NoError(t, err)
	assert.Empty(t, plan.Levels)
}

func TestExecuteHaltsOnLevelFailure(t *testing.T) {
	nodes := openTestNodes(t)
	root, a, sub, b := buildTree(t, nodes)
	heads := headindex.New()
	plan, err := Build(nodes, heads, Params{Target: root, AgentID: "writer", FrameType: "note", Recursive: true})
	require.NoError(t, err)

	q := genqueue.New(genqueue.DefaultConfig(), genqueue.ProcessorFunc(func(_ context.Context, req *genqueue.Request) (ids.FrameID, error) {
		if req.NodeID == b {
			return ids.FrameID{}, apperr.New(apperr.CodeConfigError, "bad config")
		}
		return ids.ComputeFrameID(ids.NodeBasis(req.NodeID), []byte("ok"), req.FrameType, req.AgentID), nil
	}))
	q.Start()
	defer q.Stop()

	res, err := Execute(context.Background(), q, plan, 2*time.Second)
	require.NoError(t, err)
	assert.True(t, res.Halted)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 0, res.Completed)
	_ = a
	_ = sub
}

func TestExecuteCompletesAllLevels(t *testing.T) {
	nodes := openTestNodes(t)
	root, _, _, _ := buildTree(t, nodes)
	heads := headindex.New()
	plan, err := Build(nodes, heads, Params{Target: root, AgentID: "writer", FrameType: "note", Recursive: true})
	require.NoError(t, err)

	q := genqueue.New(genqueue.DefaultConfig(), genqueue.ProcessorFunc(func(_ context.Context, req *genqueue.Request) (ids.FrameID, error) {
		return ids.ComputeFrameID(ids.NodeBasis(req.NodeID), []byte("ok"), req.FrameType, req.AgentID), nil
	}))
	q.Start()
	defer q.Stop()

	res, err := Execute(context.Background(), q, plan, 2*time.Second)
	require.NoError(t, err)
	assert.False(t, res.Halted)
	assert.Equal(t, 4, res.Completed)
	assert.Equal(t, 0, res.Failed)
}

func assertLevelContains(t *testing.T, level []Item, want ...ids.NodeID) {
	t.Helper()
	var got []ids.NodeID
	for _, it := range level {
		got = append(got, it.NodeID)
	}
	assert.ElementsMatch(t, want, got)
}
