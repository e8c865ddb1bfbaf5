// Package genplan builds and executes level-ordered generation plans over
// a node subtree. It groups a target's descendants by depth,
// deepest first, and drives the generation queue one level at a time so a
// parent is never synthesized before its children have heads.
package genplan

import (
	"context"
	"sort"
	"time"

	"github.com/framegraph/framegraph/internal/apperr"
	"github.com/framegraph/framegraph/internal/genqueue"
	"github.com/framegraph/framegraph/internal/headindex"
	"github.com/framegraph/framegraph/internal/ids"
	"github.com/framegraph/framegraph/internal/nodestore"
	"golang.org/x/sync/errgroup"
)

// FailurePolicy governs how the executor reacts to a permanent item
// failure within a level. StopOnLevelFailure is the only policy currently
// defined.
type FailurePolicy string

const StopOnLevelFailure FailurePolicy = "stop_on_level_failure"

// Item is one unit of planned generation work, destined for the queue.
type Item struct {
	NodeID       ids.NodeID
	AgentID      string
	ProviderName string
	FrameType    string
}

// Plan is a sequence of levels (deepest descendant first) to execute in
// order; every item is submitted to the queue at Urgent priority.
type Plan struct {
	Levels        [][]Item
	FailurePolicy FailurePolicy
	TotalNodes    int
	TotalLevels   int
}

// Params describes the inputs to Build: target_node, agent, provider,
// frame_type, force, recursive.
type Params struct {
	Target       ids.NodeID
	AgentID      string
	ProviderName string
	FrameType    string
	Force        bool
	Recursive    bool
}

// Build constructs a Plan for params. Non-recursive requests against a
// Directory fail with CodeGenerationFailed (tagged DescendantsMissing in
// the message) unless every descendant already has a head for
// frame_type, or force is set.
func Build(nodes nodestore.Store, heads *headindex.Index, params Params) (*Plan, error) {
	target, err := nodes.Get(params.Target)
	if err != nil {
		return nil, err
	}
	if target == nil {
		return nil, apperr.NodeNotFound(params.Target.Hex())
	}

	if !params.Recursive {
		if target.IsDirectory() {
			if !params.Force {
				missing, err := anyDescendantMissingHead(nodes, heads, target, params.FrameType)
				if err != nil {
					return nil, err
				}
				if missing {
					return nil, apperr.New(apperr.CodeGenerationFailed, "DescendantsMissing: one or more descendants lack a head for this frame_type")
				}
			}
		}
		skip := !params.Force && hasHead(heads, params.Target, params.FrameType)
		if skip {
			return &Plan{FailurePolicy: StopOnLevelFailure}, nil
		}
		item := Item{NodeID: params.Target, AgentID: params.AgentID, ProviderName: params.ProviderName, FrameType: params.FrameType}
		return &Plan{
			Levels:        [][]Item{{item}},
			FailurePolicy: StopOnLevelFailure,
			TotalNodes:    1,
			TotalLevels:   1,
		}, nil
	}

	depths, err := collectSubtreeLevels(nodes, params.Target)
	if err != nil {
		return nil, err
	}

	var levels [][]Item
	total := 0
	for depth := len(depths) - 1; depth >= 0; depth-- {
		var level []Item
		for _, nodeID := range depths[depth] {
			if !params.Force && hasHead(heads, nodeID, params.FrameType) {
				continue
			}
			level = append(level, Item{
				NodeID:       nodeID,
				AgentID:      params.AgentID,
				ProviderName: params.ProviderName,
				FrameType:    params.FrameType,
			})
		}
		if len(level) > 0 {
			levels = append(levels, level)
			total += len(level)
		}
	}

	return &Plan{
		Levels:        levels,
		FailurePolicy: StopOnLevelFailure,
		TotalNodes:    total,
		TotalLevels:   len(levels),
	}, nil
}

func hasHead(heads *headindex.Index, nodeID ids.NodeID, frameType string) bool {
	_, ok := heads.GetHead(nodeID, frameType)
	return ok
}

// collectSubtreeLevels returns, indexed by depth from target (0 = target
// itself), the NodeIDs found via BFS. Order within a depth is stable
// across runs of the same tree: ascending by hex NodeID.
func collectSubtreeLevels(nodes nodestore.Store, target ids.NodeID) ([][]ids.NodeID, error) {
	byDepth := map[int][]ids.NodeID{}
	type queued struct {
		id    ids.NodeID
		depth int
	}
	queue := []queued{{id: target, depth: 0}}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		rec, err := nodes.Get(cur.id)
		if err != nil {
			return nil, err
		}
		if rec == nil {
			continue
		}
		byDepth[cur.depth] = append(byDepth[cur.depth], cur.id)
		for _, child := range rec.Children {
			queue = append(queue, queued{id: child, depth: cur.depth + 1})
		}
	}

	maxDepth := -1
	for d := range byDepth {
		if d > maxDepth {
			maxDepth = d
		}
	}
	out := make([][]ids.NodeID, maxDepth+1)
	for d, ns := range byDepth {
		sort.Slice(ns, func(i, j int) bool { return ns[i].Hex() < ns[j].Hex() })
		out[d] = ns
	}
	return out, nil
}

func anyDescendantMissingHead(nodes nodestore.Store, heads *headindex.Index, target *nodestore.NodeRecord, frameType string) (bool, error) {
	for _, child := range target.Children {
		if !hasHead(heads, child, frameType) {
			return true, nil
		}
		childRec, err := nodes.Get(child)
		if err != nil {
			return false, err
		}
		if childRec == nil {
			continue
		}
		if childRec.IsDirectory() {
			missing, err := anyDescendantMissingHead(nodes, heads, childRec, frameType)
			if err != nil {
				return false, err
			}
			if missing {
				return true, nil
			}
		}
	}
	return false, nil
}

// Result reports one plan execution's outcome.
type Result struct {
	Completed int
	Failed    int
	Halted    bool
}

// Execute runs the plan's levels against q one at a time. Each item of a
// level is enqueued on its own at Urgent priority and the items are awaited
// concurrently; a level is not admitted to the queue as one all-or-nothing
// batch, so a full queue can reject some of its items while others run.
// Every item in a level resolves before the next level starts. A permanent
// failure in a level halts the plan under StopOnLevelFailure.
func Execute(ctx context.Context, q *genqueue.Queue, plan *Plan, perItemTimeout time.Duration) (*Result, error) {
	res := &Result{}
	for _, level := range plan.Levels {
		outcomes := make([]error, len(level))

		// A plain (non-WithContext) errgroup waits for every item without
		// cancelling siblings on the first failure: the level still runs
		// to completion, and StopOnLevelFailure is applied afterward.
		var g errgroup.Group
		for i, item := range level {
			i, item := i, item
			g.Go(func() error {
				reqCtx := ctx
				if perItemTimeout > 0 {
					var cancel context.CancelFunc
					reqCtx, cancel = context.WithTimeout(ctx, perItemTimeout)
					defer cancel()
				}
				_, err := q.EnqueueAndWait(reqCtx, &genqueue.Request{
					NodeID:       item.NodeID,
					AgentID:      item.AgentID,
					ProviderName: item.ProviderName,
					FrameType:    item.FrameType,
					Priority:     genqueue.PriorityUrgent,
				})
				outcomes[i] = err
				return nil
			})
		}
		_ = g.Wait()

		levelFailed := false
		for _, err := range outcomes {
			if err != nil {
				res.Failed++
				levelFailed = true
			} else {
				res.Completed++
			}
		}

		if levelFailed && plan.FailurePolicy == StopOnLevelFailure {
			res.Halted = true
			return res, nil
		}
	}
	return res, nil
}
