// Package engine wires the content store, generation queue, planner,
// regenerator, and read API into a single handle: Planner -> Queue ->
// Provider client -> Frame storage -> Head index -> Basis index. It also
// supplies the queue's concrete Processor implementation, the only
// production implementation of that interface.
package engine

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/framegraph/framegraph/internal/agent"
	"github.com/framegraph/framegraph/internal/apperr"
	"github.com/framegraph/framegraph/internal/basisindex"
	"github.com/framegraph/framegraph/internal/framestore"
	"github.com/framegraph/framegraph/internal/genplan"
	"github.com/framegraph/framegraph/internal/genqueue"
	"github.com/framegraph/framegraph/internal/headindex"
	"github.com/framegraph/framegraph/internal/ids"
	"github.com/framegraph/framegraph/internal/nodelock"
	"github.com/framegraph/framegraph/internal/nodestore"
	"github.com/framegraph/framegraph/internal/provider"
	"github.com/framegraph/framegraph/internal/regen"
	"github.com/framegraph/framegraph/internal/synth"
	"github.com/framegraph/framegraph/internal/view"
	"github.com/rs/zerolog/log"
)

// Engine is the facade over every collaborator in the content-addressed
// context store. Construct one per workspace.
type Engine struct {
	Nodes  nodestore.Store
	Frames framestore.Store
	Heads  *headindex.Index
	Basis  *basisindex.Index
	Locks  *nodelock.Manager

	Agents    *agent.Registry
	Providers map[string]*provider.Config
	Resolver  provider.Resolver

	Synthesizer *synth.Synthesizer
	Regenerator *regen.Regenerator
	View        *view.Reader
	Queue       *genqueue.Queue
}

// New wires every collaborator together, including a Queue configured with
// this Engine as its Processor. heads may be a freshly loaded index (see
// headindex.Load) so a caller can restore persisted state before any
// component captures a reference to it; pass nil to start empty.
func New(nodes nodestore.Store, frames framestore.Store, queueCfg genqueue.Config, resolver provider.Resolver, heads *headindex.Index) *Engine {
	if heads == nil {
		heads = headindex.New()
	}
	basis := basisindex.New()
	locks := nodelock.New()
	agents := agent.NewRegistry()
	providers := make(map[string]*provider.Config)
	synthesizer := synth.New(nodes, frames, heads)

	e := &Engine{
		Nodes:       nodes,
		Frames:      frames,
		Heads:       heads,
		Basis:       basis,
		Locks:       locks,
		Agents:      agents,
		Providers:   providers,
		Resolver:    resolver,
		Synthesizer: synthesizer,
		Regenerator: regen.New(nodes, frames, heads, basis, synthesizer),
		View:        view.New(nodes, frames, heads),
	}
	e.Queue = genqueue.New(queueCfg, e)
	return e
}

// RegisterProvider adds or replaces a provider configuration by name.
func (e *Engine) RegisterProvider(cfg *provider.Config) {
	e.Providers[cfg.ProviderName] = cfg
}

// Start begins the generation queue's worker pool.
func (e *Engine) Start() { e.Queue.Start() }

// Stop drains and halts the generation queue's worker pool.
func (e *Engine) Stop() { e.Queue.Stop() }

// Generate plans and executes generation for a target subtree, per spec
// §4.I. A non-recursive request against a Directory whose descendants lack
// a head for frame_type fails with CodeGenerationFailed unless force.
func (e *Engine) Generate(ctx context.Context, params genplan.Params, perItemTimeout time.Duration) (*genplan.Result, error) {
	plan, err := genplan.Build(e.Nodes, e.Heads, params)
	if err != nil {
		return nil, err
	}
	return genplan.Execute(ctx, e.Queue, plan, perItemTimeout)
}

// GenerateOne is the synchronous façade for a single (node, agent,
// provider, frame_type) request.
func (e *Engine) GenerateOne(ctx context.Context, req *genqueue.Request) (ids.FrameID, error) {
	return e.Queue.EnqueueAndWait(ctx, req)
}

// Regenerate recomputes stale frames under nodeID.
func (e *Engine) Regenerate(nodeID ids.NodeID, recursive bool, agentID string, now time.Time) (*regen.Report, error) {
	return e.Regenerator.Regenerate(nodeID, recursive, agentID, now)
}

// GetNode resolves a bounded, policy-ordered frame view for nodeID (spec
// §4.K).
func (e *Engine) GetNode(nodeID ids.NodeID, v view.View) (*view.NodeContext, error) {
	return e.View.GetNode(nodeID, v)
}

// Process implements genqueue.Processor: the queue's single production
// code path from a GenerationRequest to a stored, indexed Frame (spec
// §4.H "Processing").
func (e *Engine) Process(ctx context.Context, req *genqueue.Request) (ids.FrameID, error) {
	identity, err := e.Agents.GetOrError(req.AgentID)
	if err != nil {
		return ids.FrameID{}, err
	}
	if err := identity.VerifyWrite(); err != nil {
		return ids.FrameID{}, err
	}

	providerCfg, ok := e.Providers[req.ProviderName]
	if !ok {
		return ids.FrameID{}, apperr.New(apperr.CodeProviderNotConfigured, "no provider registered: "+req.ProviderName)
	}
	resolved, err := providerCfg.Resolve()
	if err != nil {
		return ids.FrameID{}, err
	}
	client, err := e.Resolver.Resolve(resolved)
	if err != nil {
		return ids.FrameID{}, err
	}

	record, err := e.Nodes.Get(req.NodeID)
	if err != nil {
		return ids.FrameID{}, err
	}
	if record == nil {
		return ids.FrameID{}, apperr.NodeNotFound(req.NodeID.Hex())
	}

	systemPrompt, userPrompt, err := renderPrompts(identity, record)
	if err != nil {
		return ids.FrameID{}, err
	}

	content, err := client.GenerateFrame(ctx, provider.GenerateRequest{
		SystemPrompt: systemPrompt,
		UserPrompt:   userPrompt,
	})
	if err != nil {
		return ids.FrameID{}, err
	}

	var frameID ids.FrameID
	lockErr := e.Locks.WithWriteLock(req.NodeID, func() error {
		frame := framestore.New(ids.NodeBasis(req.NodeID), content, req.FrameType, req.AgentID, nil, time.Now())
		if err := e.Frames.Store(frame); err != nil {
			return err
		}
		e.Heads.UpdateHead(req.NodeID, req.FrameType, frame.ID)
		e.Basis.AddFrame(ids.ComputeBasisHash(frame.Basis), frame.ID)
		frameID = frame.ID
		return nil
	})
	if lockErr != nil {
		return ids.FrameID{}, lockErr
	}

	log.Info().
		Str("request_id", req.RequestID.String()).
		Str("node_id", req.NodeID.Hex()).
		Str("agent_id", req.AgentID).
		Str("frame_id", frameID.Hex()).
		Msg("frame generation completed")

	return frameID, nil
}

// renderPrompts validates that identity carries a system_prompt and the
// node-kind-appropriate user-prompt template, then substitutes {path},
// {node_type}, and (for files) {file_size} into the template. Grounded on
// queue.rs's validate_agent_prompts/generate_prompts.
func renderPrompts(identity *agent.Identity, record *nodestore.NodeRecord) (systemPrompt, userPrompt string, err error) {
	systemPrompt, ok := identity.Metadata["system_prompt"]
	if !ok {
		return "", "", apperr.New(apperr.CodeConfigError, fmt.Sprintf("agent %q missing system_prompt", identity.AgentID))
	}

	var templateKey, nodeTypeLabel string
	if record.IsDirectory() {
		templateKey, nodeTypeLabel = "user_prompt_directory", "Directory"
	} else {
		templateKey, nodeTypeLabel = "user_prompt_file", "File"
	}

	template, ok := identity.Metadata[templateKey]
	if !ok {
		return "", "", apperr.New(apperr.CodeConfigError, fmt.Sprintf("agent %q missing %s", identity.AgentID, templateKey))
	}

	rendered := strings.ReplaceAll(template, "{path}", record.Path)
	rendered = strings.ReplaceAll(rendered, "{node_type}", nodeTypeLabel)
	if !record.IsDirectory() {
		rendered = strings.ReplaceAll(rendered, "{file_size}", strconv.FormatInt(record.File.Size, 10))
	}

	return systemPrompt, rendered, nil
}
