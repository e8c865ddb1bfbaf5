// Package genqueue implements the bounded, priority-aware generation queue
// that drives provider calls. It owns per-agent rate limiting, bounded
// retry, and worker lifecycle; it delegates the actual provider
// invocation and storage updates to a Processor so the queue itself stays
// testable with fakes.
package genqueue

import (
	"time"

	"github.com/framegraph/framegraph/internal/ids"
	"github.com/google/uuid"
)

// Priority is a closed ordering: Urgent > High > Normal > Low.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
	PriorityUrgent
)

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	case PriorityUrgent:
		return "urgent"
	default:
		return "unknown"
	}
}

// Request is one unit of generation work.
type Request struct {
	NodeID       ids.NodeID
	AgentID      string
	ProviderName string
	FrameType    string
	Priority     Priority
	RetryCount   int
	CreatedAt    time.Time

	// RequestID correlates a request's log lines across retries; it is not
	// part of the FrameID derivation, which is pure-hash. Assigned on first
	// admission and preserved across retry re-enqueues.
	RequestID uuid.UUID

	// result receives exactly one value from the worker when this specific
	// request reaches a terminal outcome, letting EnqueueAndWait block on
	// exactly this one.
	result chan requestResult
}

type requestResult struct {
	frameID ids.FrameID
	err     error
}

// clone returns an unchanged copy of r for re-enqueuing on retry; the
// caller increments the copy's RetryCount. created_at is preserved across
// retries so FIFO-within-priority uses the original arrival time. Priority
// and created_at both carry over; only retry_count advances.
func (r *Request) clone() *Request {
	cp := *r
	return &cp
}
