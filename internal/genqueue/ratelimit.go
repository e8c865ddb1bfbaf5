package genqueue

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// agentLimiter bounds both the number of concurrent in-flight requests for
// one agent and the minimum spacing between request starts, mirroring the
// reference AgentRateLimiter (tokio Semaphore + last-request-instant map).
// golang.org/x/sync is already part of the dependency stack the pack uses
// for exactly this kind of concurrency primitive.
type agentLimiter struct {
	sem      *semaphore.Weighted
	minDelay time.Duration

	mu   sync.Mutex
	last time.Time
	has  bool
}

func newAgentLimiter(maxConcurrent int, minDelay time.Duration) *agentLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &agentLimiter{
		sem:      semaphore.NewWeighted(int64(maxConcurrent)),
		minDelay: minDelay,
	}
}

// acquire blocks until a concurrency slot is free, then sleeps off any
// remaining minimum-delay window since this agent's last acquired start. It
// returns a release func that must be called exactly once.
func (l *agentLimiter) acquire(ctx context.Context) (func(), error) {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}

	if l.minDelay > 0 {
		l.mu.Lock()
		if l.has {
			elapsed := time.Since(l.last)
			if wait := l.minDelay - elapsed; wait > 0 {
				l.mu.Unlock()
				timer := time.NewTimer(wait)
				select {
				case <-timer.C:
				case <-ctx.Done():
					timer.Stop()
					l.sem.Release(1)
					return nil, ctx.Err()
				}
				l.mu.Lock()
			}
		}
		l.last = time.Now()
		l.has = true
		l.mu.Unlock()
	}

	return func() { l.sem.Release(1) }, nil
}

// limiterRegistry lazily creates one agentLimiter per agent_id.
type limiterRegistry struct {
	mu             sync.Mutex
	limiters       map[string]*agentLimiter
	maxConcurrent  int
	rateLimitDelay time.Duration
}

func newLimiterRegistry(maxConcurrent int, rateLimitDelay time.Duration) *limiterRegistry {
	return &limiterRegistry{
		limiters:       make(map[string]*agentLimiter),
		maxConcurrent:  maxConcurrent,
		rateLimitDelay: rateLimitDelay,
	}
}

func (r *limiterRegistry) forAgent(agentID string) *agentLimiter {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.limiters[agentID]
	if !ok {
		l = newAgentLimiter(r.maxConcurrent, r.rateLimitDelay)
		r.limiters[agentID] = l
	}
	return l
}
