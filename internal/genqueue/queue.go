package genqueue

import (
	"container/heap"
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/framegraph/framegraph/internal/apperr"
	"github.com/framegraph/framegraph/internal/ids"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Queue is the bounded, priority-ordered generation queue. It owns
// scheduling, per-agent rate limiting, and bounded retry; a Processor
// performs the actual provider call and storage update.
type Queue struct {
	cfg       Config
	processor Processor
	limiters  *limiterRegistry

	mu   sync.Mutex
	heap requestHeap

	notify chan struct{}

	running   atomic.Bool
	stopCh    chan struct{}
	workersWG sync.WaitGroup

	processing atomic.Int64
	completed  atomic.Int64
	failed     atomic.Int64
}

// New builds a Queue with cfg and the given Processor. The queue is
// created idle; call Start to begin running workers.
func New(cfg Config, processor Processor) *Queue {
	return &Queue{
		cfg:       cfg,
		processor: processor,
		limiters:  newLimiterRegistry(cfg.MaxConcurrentPerAgent, cfg.RateLimitMinDelay),
		notify:    make(chan struct{}, 1),
	}
}

func (q *Queue) wake() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// sizeLocked returns the current pending count; caller must hold q.mu.
func (q *Queue) sizeLocked() int { return len(q.heap) }

// Enqueue admits req, defaulting FrameType to "context-{agent_id}" when
// unset. Returns a CodeQueueFull error if admitting it would exceed
// MaxQueueSize.
func (q *Queue) Enqueue(req *Request) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.enqueueLocked(req)
}

func (q *Queue) enqueueLocked(req *Request) error {
	if q.sizeLocked() >= q.cfg.MaxQueueSize {
		return apperr.New(apperr.CodeQueueFull, "generation queue is full")
	}
	if req.FrameType == "" {
		req.FrameType = "context-" + req.AgentID
	}
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now()
	}
	if req.RequestID == uuid.Nil {
		req.RequestID = uuid.New()
	}
	heap.Push(&q.heap, req)
	return nil
}

// EnqueueBatch admits all of reqs or none: if the batch would exceed
// MaxQueueSize, no request in it is admitted.
func (q *Queue) EnqueueBatch(reqs []*Request) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.sizeLocked()+len(reqs) > q.cfg.MaxQueueSize {
		return apperr.New(apperr.CodeQueueFull, "generation queue batch would exceed max size")
	}
	for _, r := range reqs {
		if err := q.enqueueLocked(r); err != nil {
			return err
		}
	}
	notifications := len(reqs)
	if notifications > q.cfg.WorkersPerAgent {
		notifications = q.cfg.WorkersPerAgent
	}
	for i := 0; i < notifications; i++ {
		q.wake()
	}
	return nil
}

// EnqueueAndWait enqueues req and blocks until it completes, fails
// terminally, or ctx is done; in the last case it returns a CodeTimeout
// error wrapping ctx.Err().
func (q *Queue) EnqueueAndWait(ctx context.Context, req *Request) (ids.FrameID, error) {
	req.result = make(chan requestResult, 1)
	if err := q.Enqueue(req); err != nil {
		return ids.FrameID{}, err
	}
	q.wake()
	select {
	case res := <-req.result:
		return res.frameID, res.err
	case <-ctx.Done():
		return ids.FrameID{}, apperr.Wrap(apperr.CodeTimeout, "generation request did not complete before its deadline", ctx.Err())
	}
}

// Stats reports current occupancy and cumulative outcome counters.
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	pending := q.sizeLocked()
	q.mu.Unlock()
	return Stats{
		Pending:    pending,
		Processing: int(q.processing.Load()),
		Completed:  int(q.completed.Load()),
		Failed:     int(q.failed.Load()),
	}
}

// Start launches WorkersPerAgent workers. Start is idempotent: calling it
// while already running is a no-op.
func (q *Queue) Start() {
	if !q.running.CompareAndSwap(false, true) {
		return
	}
	q.stopCh = make(chan struct{})
	for i := 0; i < q.cfg.WorkersPerAgent; i++ {
		q.workersWG.Add(1)
		go q.workerLoop()
	}
}

// Stop signals all workers to exit and waits for them to drain. Stop is
// idempotent.
func (q *Queue) Stop() {
	if !q.running.CompareAndSwap(true, false) {
		return
	}
	close(q.stopCh)
	q.workersWG.Wait()
}

// WaitForCompletion polls until the queue is empty and nothing is
// processing, or timeout elapses. Returns true if it drained in time.
func (q *Queue) WaitForCompletion(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		s := q.Stats()
		if s.Pending == 0 && s.Processing == 0 {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(100 * time.Millisecond)
	}
}

func (q *Queue) popHighestPriority() *Request {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.heap) == 0 {
		return nil
	}
	return heap.Pop(&q.heap).(*Request)
}

func (q *Queue) workerLoop() {
	defer q.workersWG.Done()
	for {
		select {
		case <-q.stopCh:
			return
		default:
		}

		req := q.popHighestPriority()
		if req == nil {
			select {
			case <-q.notify:
			case <-time.After(100 * time.Millisecond):
			case <-q.stopCh:
				return
			}
			continue
		}

		q.processOne(req)
	}
}

func (q *Queue) processOne(req *Request) {
	// processing stays raised from before the limiter wait until the
	// request's outcome is counted or its retry is back in the heap.
	q.processing.Add(1)
	limiter := q.limiters.forAgent(req.AgentID)
	release, err := limiter.acquire(context.Background())
	if err != nil {
		q.processing.Add(-1)
		q.finish(req, ids.FrameID{}, err)
		return
	}

	frameID, procErr := q.processor.Process(context.Background(), req)
	release()

	if procErr == nil {
		q.completed.Add(1)
		q.processing.Add(-1)
		q.finish(req, frameID, nil)
		return
	}

	if !apperr.IsRetryable(procErr) || req.RetryCount >= q.cfg.MaxRetryAttempts {
		q.failed.Add(1)
		q.processing.Add(-1)
		q.finish(req, ids.FrameID{}, procErr)
		return
	}

	log.Warn().
		Str("request_id", req.RequestID.String()).
		Str("node_id", req.NodeID.Hex()).
		Str("agent_id", req.AgentID).
		Int("retry_count", req.RetryCount).
		Err(procErr).
		Msg("generation request failed, scheduling retry")

	retry := req.clone()
	retry.RetryCount++
	time.Sleep(q.cfg.RetryDelay)

	q.mu.Lock()
	if err := q.enqueueLocked(retry); err != nil {
		q.failed.Add(1)
		q.processing.Add(-1)
		q.mu.Unlock()
		q.finish(req, ids.FrameID{}, procErr)
		return
	}
	q.processing.Add(-1)
	q.mu.Unlock()
	q.wake()
}

func (q *Queue) finish(req *Request, frameID ids.FrameID, err error) {
	if req.result != nil {
		req.result <- requestResult{frameID: frameID, err: err}
	}
}
