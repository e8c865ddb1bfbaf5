package provider

import (
	"context"

	"github.com/framegraph/framegraph/internal/apperr"
)

// GenerateRequest carries the resolved prompt material a Client turns into
// frame content. system_prompt and user_prompt are already substituted
// (see internal/engine's prompt resolution) by the time they reach here.
type GenerateRequest struct {
	SystemPrompt string
	UserPrompt   string
}

// Client produces frame content from a resolved provider and a prompt.
// This package ships no network-backed implementation: StubResolver's
// client and test fakes are the only ones, matching the decoupling already
// established for genqueue.Processor.
type Client interface {
	GenerateFrame(ctx context.Context, req GenerateRequest) ([]byte, error)
}

// ClientFunc adapts a plain function to Client.
type ClientFunc func(ctx context.Context, req GenerateRequest) ([]byte, error)

func (f ClientFunc) GenerateFrame(ctx context.Context, req GenerateRequest) ([]byte, error) {
	return f(ctx, req)
}

// Resolver builds a Client for a ResolvedProvider. Real network clients
// per Type are left to the caller; StubResolver below is the only
// implementation this package ships.
type Resolver interface {
	Resolve(p ResolvedProvider) (Client, error)
}

// StubResolver returns a Client that always reports CodeProviderNotConfigured,
// standing in for the real per-Type HTTP clients a production deployment
// would register. It exists so internal/engine has something concrete to
// wire without reaching out over the network.
type StubResolver struct{}

func (StubResolver) Resolve(p ResolvedProvider) (Client, error) {
	return ClientFunc(func(context.Context, GenerateRequest) ([]byte, error) {
		return nil, apperr.New(apperr.CodeProviderNotConfigured, "no client registered for provider type "+string(p.ProviderType))
	}), nil
}
