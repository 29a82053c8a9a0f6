package agents

import (
	"context"
	"log/slog"
	"time"

	"github.com/omnichat/relay/pkg/domain"
	"github.com/omnichat/relay/pkg/llmadapter"
	"github.com/omnichat/relay/pkg/nlu"
)

// fallbackApology is returned verbatim whenever an agent call fails or
// exceeds its deadline, so the core never leaks a provider error to the
// customer (spec §4.5).
const fallbackApology = "I'm sorry, I'm having trouble responding right now. A team member will follow up shortly."

// Budget bounds one agent invocation.
type Budget struct {
	MaxOutputTokens int
	Deadline        time.Duration
}

// Invoker calls an agent's underlying model. Built-in and custom agents
// share this one call path; only the system prompt, credential, and
// toolbelt differ per agent.
type Invoker struct {
	llm   *llmadapter.Client
	model string
}

// NewInvoker builds an Invoker that uses model for every completion, for
// every agent; an agent's definition does not select a different model.
func NewInvoker(llm *llmadapter.Client, model string) *Invoker {
	return &Invoker{llm: llm, model: model}
}

// Respond drives one bounded call per spec §4.5: conversationHistory,
// userMessage, extractedEntities, and the agent's toolbelt in, an
// AgentReply out. Respond never returns an error to its caller — any
// failure degrades to a fallback apology so the router always has
// something to relay.
func (inv *Invoker) Respond(ctx context.Context, agent domain.AgentDefinition, history []domain.Message, userMessage string, entities nlu.Entities, budget Budget) domain.AgentReply {
	callCtx, cancel := context.WithTimeout(ctx, budget.Deadline)
	defer cancel()

	turns := make([]llmadapter.Turn, 0, len(history)+1)
	for _, m := range history {
		turns = append(turns, llmadapter.Turn{FromAssistant: m.AgentKey != "", Text: m.Text})
	}
	turns = append(turns, llmadapter.Turn{Text: userMessage})

	tools := toolSpecs(agent)

	result, err := inv.llm.Complete(callCtx, agent.CredentialID, llmadapter.CompletionRequest{
		Model:        inv.model,
		SystemPrompt: agent.SystemPrompt,
		History:      turns,
		Tools:        tools,
		MaxTokens:    budget.MaxOutputTokens,
	})
	if err != nil {
		slog.Warn("agent call failed, degrading to fallback apology", "agent", agent.Key, "error", err)
		return domain.AgentReply{Text: fallbackApology, Degraded: true}
	}

	reply := domain.AgentReply{Text: result.Text}
	if result.ToolCall != nil {
		reply.ToolCall = &domain.ToolCall{Tool: domain.Tool(result.ToolCall.Name), Arguments: result.ToolCall.Arguments}
	}
	return reply
}

func toolSpecs(agent domain.AgentDefinition) []llmadapter.ToolSpec {
	var specs []llmadapter.ToolSpec
	if agent.HasTool(domain.ToolScheduleMeeting) {
		specs = append(specs, llmadapter.ToolSpec{
			Name:        string(domain.ToolScheduleMeeting),
			Description: "Propose or confirm a meeting slot with the customer.",
			InputSchema: map[string]any{
				"start": map[string]any{"type": "string", "description": "RFC3339 start time"},
				"email": map[string]any{"type": "string", "description": "customer email"},
			},
		})
	}
	if agent.HasTool(domain.ToolFetchAvailability) {
		specs = append(specs, llmadapter.ToolSpec{
			Name:        string(domain.ToolFetchAvailability),
			Description: "Fetch open meeting slots for a given date.",
			InputSchema: map[string]any{
				"date": map[string]any{"type": "string", "description": "ISO date, e.g. 2026-08-03"},
			},
		})
	}
	return specs
}
