package genqueue

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/framegraph/framegraph/internal/apperr"
	"github.com/framegraph/framegraph/internal/ids"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.RetryDelay = time.Millisecond
	cfg.RateLimitMinDelay = 0
	cfg.MaxQueueSize = 5
	cfg.WorkersPerAgent = 1
	cfg.MaxConcurrentPerAgent = 1
	return cfg
}

func testNodeID(b byte) ids.NodeID {
	return ids.ComputeNodeID(ids.KindFile, []byte{b}, nil)
}

// TestPriorityOrderingPopSequence checks that pops come out in "higher
// priority first; within equal priority, earlier created_at first" order.
func TestPriorityOrderingPopSequence(t *testing.T) {
	q := New(testConfig(), ProcessorFunc(func(context.Context, *Request) (ids.FrameID, error) {
		return ids.FrameID{}, nil
	}))

	base := time.Unix(1000, 0)
	r1 := &Request{NodeID: testNodeID(1), AgentID: "a", Priority: PriorityNormal, CreatedAt: base}
	r2 := &Request{NodeID: testNodeID(2), AgentID: "a", Priority: PriorityUrgent, CreatedAt: base.Add(time.Second)}
	r3 := &Request{NodeID: testNodeID(3), AgentID: "a", Priority: PriorityNormal, CreatedAt: base.Add(-time.Second)}
	r4 := &Request{NodeID: testNodeID(4), AgentID: "a", Priority: PriorityHigh, CreatedAt: base}

	for _, r := range []*Request{r1, r2, r3, r4} {
		require.NoError(t, q.Enqueue(r))
	}

	var order []ids.NodeID
	for {
		req := q.popHighestPriority()
		if req == nil {
			break
		}
		order = append(order, req.NodeID)
	}

	assert.Equal(t, []ids.NodeID{r2.NodeID, r4.NodeID, r3.NodeID, r1.NodeID}, order)
}

// TestRetryExhaustion checks that a request whose provider call always
// fails retryably with max_retry_attempts=2 yields exactly 3 provider
// calls, one terminal failure, and stats.Failed==1.
func TestRetryExhaustion(t *testing.T) {
	var calls atomic.Int64
	cfg := testConfig()
	cfg.MaxRetryAttempts = 2

	q := New(cfg, ProcessorFunc(func(context.Context, *Request) (ids.FrameID, error) {
		calls.Add(1)
		return ids.FrameID{}, apperr.New(apperr.CodeProviderRequestFailed, "boom")
	}))
	q.Start()
	defer q.Stop()

	require.NoError(t, q.Enqueue(&Request{NodeID: testNodeID(9), AgentID: "a", Priority: PriorityNormal}))

	ok := q.WaitForCompletion(2 * time.Second)
	require.True(t, ok, "queue did not drain in time")

	assert.EqualValues(t, 3, calls.Load())
	stats := q.Stats()
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 0, stats.Completed)
}

// TestRetryableSucceedsAfterOneRetry confirms a transient failure followed
// by success counts as completed, not failed.
func TestRetryableSucceedsAfterOneRetry(t *testing.T) {
	var calls atomic.Int64
	wantFrame := ids.ComputeFrameID(ids.NodeBasis(testNodeID(1)), []byte("x"), "note", "writer-1")

	q := New(testConfig(), ProcessorFunc(func(context.Context, *Request) (ids.FrameID, error) {
		if calls.Add(1) == 1 {
			return ids.FrameID{}, apperr.New(apperr.CodeProviderRateLimit, "slow down")
		}
		return wantFrame, nil
	}))
	q.Start()
	defer q.Stop()

	require.NoError(t, q.Enqueue(&Request{NodeID: testNodeID(1), AgentID: "a", Priority: PriorityNormal}))
	require.True(t, q.WaitForCompletion(2*time.Second))

	assert.EqualValues(t, 2, calls.Load())
	stats := q.Stats()
	assert.Equal(t, 1, stats.Completed)
	assert.Equal(t, 0, stats.Failed)
}

// TestTerminalErrorIsNotRetried confirms a ProviderNotConfigured error
// fails on the first call without retry.
func TestTerminalErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int64
	q := New(testConfig(), ProcessorFunc(func(context.Context, *Request) (ids.FrameID, error) {
		calls.Add(1)
		return ids.FrameID{}, apperr.New(apperr.CodeProviderNotConfigured, "no provider")
	}))
	q.Start()
	defer q.Stop()

	require.NoError(t, q.Enqueue(&Request{NodeID: testNodeID(1), AgentID: "a", Priority: PriorityNormal}))
	require.True(t, q.WaitForCompletion(2*time.Second))

	assert.EqualValues(t, 1, calls.Load())
	assert.Equal(t, 1, q.Stats().Failed)
}

func TestEnqueueRejectsWhenQueueFull(t *testing.T) {
	cfg := testConfig()
	cfg.MaxQueueSize = 2
	q := New(cfg, ProcessorFunc(func(context.Context, *Request) (ids.FrameID, error) {
		return ids.FrameID{}, nil
	}))

	require.NoError(t, q.Enqueue(&Request{NodeID: testNodeID(1), AgentID: "a"}))
	require.NoError(t, q.Enqueue(&Request{NodeID: testNodeID(2), AgentID: "a"}))

	err := q.Enqueue(&Request{NodeID: testNodeID(3), AgentID: "a"})
	require.Error(t, err)
	code, ok := apperr.CodeOf(err)
	require.True(t, ok)
	assert.Equal(t, apperr.CodeQueueFull, code)
}

func TestEnqueueBatchIsAllOrNothing(t *testing.T) {
	cfg := testConfig()
	cfg.MaxQueueSize = 3
	q := New(cfg, ProcessorFunc(func(context.Context, *Request) (ids.FrameID, error) {
		return ids.FrameID{}, nil
	}))

	require.NoError(t, q.Enqueue(&Request{NodeID: testNodeID(1), AgentID: "a"}))

	batch := []*Request{
		{NodeID: testNodeID(2), AgentID: "a"},
		{NodeID: testNodeID(3), AgentID: "a"},
		{NodeID: testNodeID(4), AgentID: "a"},
	}
	err := q.EnqueueBatch(batch)
	require.Error(t, err)

	assert.Equal(t, 1, q.Stats().Pending, "batch rejection must not partially enqueue")
}

func TestEnqueueAndWaitReturnsFrameID(t *testing.T) {
	want := ids.ComputeFrameID(ids.NodeBasis(testNodeID(1)), []byte("hi"), "note", "writer-1")
	q := New(testConfig(), ProcessorFunc(func(context.Context, *Request) (ids.FrameID, error) {
		return want, nil
	}))
	q.Start()
	defer q.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	got, err := q.EnqueueAndWait(ctx, &Request{NodeID: testNodeID(1), AgentID: "a", Priority: PriorityHigh})
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestEnqueueDefaultsFrameType(t *testing.T) {
	q := New(testConfig(), ProcessorFunc(func(context.Context, *Request) (ids.FrameID, error) {
		return ids.FrameID{}, nil
	}))
	req := &Request{NodeID: testNodeID(1), AgentID: "writer-7"}
	require.NoError(t, q.Enqueue(req))
	assert.Equal(t, "context-writer-7", req.FrameType)
}

func TestStartStopIdempotent(t *testing.T) {
	q := New(testConfig(), ProcessorFunc(func(context.Context, *Request) (ids.FrameID, error) {
		return ids.FrameID{}, nil
	}))
	q.Start()
	q.Start()
	q.Stop()
	q.Stop()
}
