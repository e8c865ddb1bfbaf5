package genqueue

import (
	"context"

	"github.com/framegraph/framegraph/internal/ids"
)

// Processor performs the actual work behind a Request: resolving the
// agent and provider, validating prompts, invoking the provider, and
// storing the resulting frame plus updating the head and basis indexes.
// The queue itself only schedules, rate-limits, and retries; it knows
// nothing about agents or providers. Production wiring supplies exactly
// one implementation (internal/engine); tests supply fakes to keep the
// scheduler testable in isolation.
type Processor interface {
	Process(ctx context.Context, req *Request) (ids.FrameID, error)
}

// ProcessorFunc adapts a plain function to Processor.
type ProcessorFunc func(ctx context.Context, req *Request) (ids.FrameID, error)

func (f ProcessorFunc) Process(ctx context.Context, req *Request) (ids.FrameID, error) {
	return f(ctx, req)
}
