// Package agents implements the Agent Registry (spec §4.5): the callable
// set of built-in specialists plus tenant-defined custom agents, and the
// bounded invocation wrapper shared by both.
package agents

import (
	"context"
	"fmt"

	"github.com/omnichat/relay/pkg/domain"
	"github.com/omnichat/relay/pkg/store"
)

// Registry enumerates built-in agents (compiled in) and resolves custom
// ones from the store at call time, per the REDESIGN note in spec §9: an
// agent is a value of domain.AgentDefinition's sum type, not a duck-typed
// interface implementation.
type Registry struct {
	builtIn map[string]domain.AgentDefinition
	custom  *store.AgentRepo
}

// NewRegistry builds a Registry backed by custom for tenant-defined agents.
func NewRegistry(custom *store.AgentRepo) *Registry {
	return &Registry{builtIn: builtinAgents(), custom: custom}
}

// Get resolves an agent by key: built-ins are checked first (cheap, no
// store round-trip), then custom agents.
func (r *Registry) Get(ctx context.Context, key string) (domain.AgentDefinition, error) {
	if a, ok := r.builtIn[key]; ok {
		return a, nil
	}
	return r.custom.ByKey(ctx, key)
}

// List returns every built-in agent plus every custom agent for tenantID,
// the catalog surfaced to an operator choosing which agent to address.
func (r *Registry) List(ctx context.Context, tenantID string) ([]domain.AgentDefinition, error) {
	out := make([]domain.AgentDefinition, 0, len(r.builtIn))
	for _, a := range r.builtIn {
		out = append(out, a)
	}
	custom, err := r.custom.ForTenant(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list custom agents: %w", err)
	}
	return append(out, custom...), nil
}

// builtinAgents is the hard-coded catalog (spec §3: "at least a
// scheduling/sales agent (SDR) ... legal/medical/psychological/commercial
// specialists and a concierge default").
func builtinAgents() map[string]domain.AgentDefinition {
	agents := []domain.AgentDefinition{
		{
			Key: "concierge", DisplayName: "Concierge", Emoji: "🛎️",
			Category:     domain.CategoryBuiltIn,
			SystemPrompt: "You are a friendly front-desk concierge. Greet the customer, understand what they need, and route them to the right specialist or answer simple questions directly.",
		},
		{
			Key: "sdr", DisplayName: "Sales", Emoji: "💼",
			Category:     domain.CategoryBuiltIn,
			SystemPrompt: "You are a sales development representative. Qualify the customer's interest, answer pricing and product questions, and offer to schedule a meeting when appropriate.",
			AllowedTools: []domain.Tool{domain.ToolScheduleMeeting, domain.ToolFetchAvailability},
		},
		{
			Key: "legal", DisplayName: "Legal", Emoji: "⚖️",
			Category:     domain.CategoryBuiltIn,
			SystemPrompt: "You answer general legal and contract questions about our product and terms of service. You never give binding legal advice and you say so when a question goes beyond that.",
		},
		{
			Key: "medical", DisplayName: "Medical", Emoji: "🩺",
			Category:     domain.CategoryBuiltIn,
			SystemPrompt: "You answer general medical and wellness questions related to our product. You never diagnose and you always recommend professional care for anything serious.",
		},
		{
			Key: "psychological", DisplayName: "Wellbeing", Emoji: "🧠",
			Category:     domain.CategoryBuiltIn,
			SystemPrompt: "You offer supportive, non-clinical wellbeing conversation related to our product's use. You are not a therapist and you say so, directing to crisis resources when warranted.",
		},
		{
			Key: "commercial", DisplayName: "Commercial", Emoji: "📈",
			Category:     domain.CategoryBuiltIn,
			SystemPrompt: "You handle billing, invoicing, and account-commercial questions.",
		},
	}

	out := make(map[string]domain.AgentDefinition, len(agents))
	for _, a := range agents {
		out[a.Key] = a
	}
	return out
}
