package nlu

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/omnichat/relay/pkg/llmadapter"
)

// taxonomyPrompt lists the closed intent set inline, so a swap of the
// underlying model never silently invents an intent outside the taxonomy.
const taxonomyPrompt = `You are an intent classifier. Given a customer message, respond with a single JSON object and nothing else:
{"intent": "<one of: greeting, purchase, scheduling, legal, technical_support, complaint, cancellation, request_human>", "confidence": <float 0 to 1>}
Pick the closest matching intent even if imperfect. Do not include any text outside the JSON object.`

// ModelClassifier asks a chat-completion-style model for a strict JSON
// classification (spec §4.4). Entity extraction is NOT delegated to the
// model — it stays rule-based per spec, even when this strategy is active.
type ModelClassifier struct {
	llm          *llmadapter.Client
	credentialID string
	model        string
}

// NewModelClassifier builds a ModelClassifier that authenticates with
// credentialID and targets model.
func NewModelClassifier(llm *llmadapter.Client, credentialID, model string) *ModelClassifier {
	return &ModelClassifier{llm: llm, credentialID: credentialID, model: model}
}

type modelResponse struct {
	Intent     string  `json:"intent"`
	Confidence float64 `json:"confidence"`
}

// Classify calls the model once and parses its strict-JSON reply. Callers
// must attach a deadline to ctx; on any failure (timeout, transport error,
// malformed JSON) Classify returns an error so FallbackClassifier can
// demote to the rule-based strategy (spec §4.4 selection policy).
func (c *ModelClassifier) Classify(ctx context.Context, text string) (Classification, error) {
	result, err := c.llm.Complete(ctx, c.credentialID, llmadapter.CompletionRequest{
		Model:        c.model,
		SystemPrompt: taxonomyPrompt,
		History:      []llmadapter.Turn{{Text: text}},
		MaxTokens:    200,
	})
	if err != nil {
		return Classification{}, fmt.Errorf("model classification call: %w", err)
	}

	var parsed modelResponse
	if err := json.Unmarshal([]byte(extractJSONObject(result.Text)), &parsed); err != nil {
		return Classification{}, fmt.Errorf("parse model classification JSON: %w", err)
	}

	intent := Intent(parsed.Intent)
	if !isKnownIntent(intent) {
		return Classification{}, fmt.Errorf("model returned intent %q outside taxonomy", parsed.Intent)
	}

	return Classification{
		Intent:     intent,
		Confidence: clamp01(parsed.Confidence),
		Entities:   ExtractEntities(text),
		Method:     MethodModel,
	}, nil
}

func isKnownIntent(i Intent) bool {
	switch i {
	case IntentGreeting, IntentPurchase, IntentScheduling, IntentLegal,
		IntentTechnicalSupport, IntentComplaint, IntentCancellation, IntentRequestHuman:
		return true
	default:
		return false
	}
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

// extractJSONObject trims leading/trailing prose a model sometimes adds
// despite instructions, isolating the outermost {...} span.
func extractJSONObject(s string) string {
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start == -1 || end == -1 || end < start {
		return s
	}
	return s[start : end+1]
}
