// Package llmadapter wraps anthropic-sdk-go behind the narrow interface the
// NLU Classifier and Agent Registry actually need: one deadline-bounded,
// tool-aware completion call. Grounded on the beeper-ai-bridge example
// repo's pkg/connector/provider_anthropic.go — the teacher (tarsy) calls an
// LLM through a generated gRPC client whose .proto source never made it
// into the retrieved pack, so this replaces that transport with a real
// example-repo dependency instead of hand-authoring unreproducible
// generated code (see DESIGN.md).
package llmadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// ToolSpec describes one tool the model may call.
type ToolSpec struct {
	Name        string
	Description string
	InputSchema map[string]any
}

// ToolCall is a model-issued invocation of one of the offered tools.
type ToolCall struct {
	Name      string
	Arguments map[string]any
}

// CompletionRequest is the input to Complete.
type CompletionRequest struct {
	Model        string
	SystemPrompt string
	History      []Turn
	Tools        []ToolSpec
	MaxTokens    int
}

// Turn is one message in the conversation fed to the model, either side.
type Turn struct {
	FromAssistant bool
	Text          string
}

// CompletionResult is the model's reply.
type CompletionResult struct {
	Text     string
	ToolCall *ToolCall
}

// Client wraps an Anthropic API client with the credential resolution this
// deployment needs: each agent's CredentialID selects a stored API key
// rather than one process-wide key, so the client is constructed fresh per
// call using the resolved key (mirrors the teacher's per-session LLM
// client construction in pkg/llm rather than a single global client).
type Client struct {
	apiKeyFor func(credentialID string) (string, error)
}

// NewClient builds a Client that resolves API keys via apiKeyFor.
func NewClient(apiKeyFor func(credentialID string) (string, error)) *Client {
	return &Client{apiKeyFor: apiKeyFor}
}

// Complete issues one bounded completion request against Anthropic's
// Messages API. The caller is responsible for attaching a deadline to ctx;
// this adapter does not impose its own.
func (c *Client) Complete(ctx context.Context, credentialID string, req CompletionRequest) (CompletionResult, error) {
	apiKey, err := c.apiKeyFor(credentialID)
	if err != nil {
		return CompletionResult{}, fmt.Errorf("resolve credential %q: %w", credentialID, err)
	}

	client := anthropic.NewClient(option.WithAPIKey(apiKey))

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		Messages:  toAnthropicMessages(req.History),
		MaxTokens: int64(req.MaxTokens),
	}
	if req.SystemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.SystemPrompt}}
	}
	if len(req.Tools) > 0 {
		params.Tools = toAnthropicTools(req.Tools)
	}

	resp, err := client.Messages.New(ctx, params)
	if err != nil {
		return CompletionResult{}, fmt.Errorf("anthropic completion: %w", err)
	}

	var text strings.Builder
	var toolCall *ToolCall
	for _, block := range resp.Content {
		switch b := block.AsAny().(type) {
		case anthropic.TextBlock:
			text.WriteString(b.Text)
		case anthropic.ToolUseBlock:
			args := map[string]any{}
			if b.Input != nil {
				raw, _ := json.Marshal(b.Input)
				_ = json.Unmarshal(raw, &args)
			}
			toolCall = &ToolCall{Name: b.Name, Arguments: args}
		}
	}

	return CompletionResult{Text: text.String(), ToolCall: toolCall}, nil
}

func toAnthropicMessages(history []Turn) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(history))
	for _, t := range history {
		block := anthropic.NewTextBlock(t.Text)
		if t.FromAssistant {
			out = append(out, anthropic.NewAssistantMessage(block))
		} else {
			out = append(out, anthropic.NewUserMessage(block))
		}
	}
	return out
}

func toAnthropicTools(specs []ToolSpec) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, 0, len(specs))
	for _, s := range specs {
		out = append(out, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        s.Name,
				Description: anthropic.String(s.Description),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: s.InputSchema,
				},
			},
		})
	}
	return out
}
