// Package agent implements agent identity, role, and capability derivation.
package agent

import (
	"fmt"

	"github.com/framegraph/framegraph/internal/apperr"
)

// Role is the closed set of agent roles. A Reader may only call the read
// API; a Writer may also create frames.
type Role string

const (
	RoleReader Role = "reader"
	RoleWriter Role = "writer"
)

// Capability is a single permission an AgentIdentity carries.
type Capability string

const (
	CapabilityRead  Capability = "read"
	CapabilityWrite Capability = "write"
)

// Identity describes one agent: its role, derived capabilities, and
// free-form metadata (system prompts, prompt template paths).
type Identity struct {
	AgentID      string
	Role         Role
	Capabilities []Capability
	Metadata     map[string]string
}

// New builds an Identity with capabilities derived from role: Reader gets
// {Read}; Writer gets {Read, Write}.
func New(agentID string, role Role) *Identity {
	caps := []Capability{CapabilityRead}
	if role == RoleWriter {
		caps = append(caps, CapabilityWrite)
	}
	return &Identity{
		AgentID:      agentID,
		Role:         role,
		Capabilities: caps,
		Metadata:     map[string]string{},
	}
}

func (id *Identity) hasCapability(c Capability) bool {
	for _, have := range id.Capabilities {
		if have == c {
			return true
		}
	}
	return false
}

// CanRead reports whether this identity carries read capability.
func (id *Identity) CanRead() bool { return id.hasCapability(CapabilityRead) }

// CanWrite reports whether this identity carries write capability.
func (id *Identity) CanWrite() bool { return id.hasCapability(CapabilityWrite) }

// VerifyRead returns CodeUnauthorized if this identity cannot read.
func (id *Identity) VerifyRead() error {
	if !id.CanRead() {
		return apperr.New(apperr.CodeUnauthorized, fmt.Sprintf("agent %s (role: %s) cannot read", id.AgentID, id.Role))
	}
	return nil
}

// VerifyWrite returns CodeUnauthorized if this identity cannot write.
func (id *Identity) VerifyWrite() error {
	if !id.CanWrite() {
		return apperr.New(apperr.CodeUnauthorized, fmt.Sprintf("agent %s (role: %s) cannot write", id.AgentID, id.Role))
	}
	return nil
}

// Registry holds the in-memory set of known agent identities. Persistence
// (loading from YAML) is the concern of internal/cfgfile, which calls
// Register for each identity it resolves.
type Registry struct {
	agents map[string]*Identity
}

// NewRegistry builds an empty Registry.
func NewRegistry() *Registry {
	return &Registry{agents: make(map[string]*Identity)}
}

// Register adds or replaces identity by its AgentID.
func (r *Registry) Register(identity *Identity) {
	r.agents[identity.AgentID] = identity
}

// Get returns the identity for agentID, or nil if unknown.
func (r *Registry) Get(agentID string) *Identity {
	return r.agents[agentID]
}

// GetOrError returns the identity for agentID, or CodeUnauthorized if unknown.
func (r *Registry) GetOrError(agentID string) (*Identity, error) {
	id, ok := r.agents[agentID]
	if !ok {
		return nil, apperr.New(apperr.CodeUnauthorized, fmt.Sprintf("agent not found: %s", agentID))
	}
	return id, nil
}

// Remove deletes agentID from the registry.
func (r *Registry) Remove(agentID string) {
	delete(r.agents, agentID)
}

// ListAll returns every registered identity, in no particular order.
func (r *Registry) ListAll() []*Identity {
	out := make([]*Identity, 0, len(r.agents))
	for _, id := range r.agents {
		out = append(out, id)
	}
	return out
}

// ListByRole returns every registered identity with the given role.
func (r *Registry) ListByRole(role Role) []*Identity {
	var out []*Identity
	for _, id := range r.agents {
		if id.Role == role {
			out = append(out, id)
		}
	}
	return out
}
