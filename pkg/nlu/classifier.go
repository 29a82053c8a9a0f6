package nlu

import (
	"context"
	"log/slog"
)

// Strategy is anything that can classify a text window into a Classification.
type Strategy interface {
	Classify(ctx context.Context, text string) (Classification, error)
}

// FallbackClassifier prefers a model-backed strategy when one is
// configured and reachable, and demotes to rule-based on any failure —
// timeout, transport error, malformed JSON, or an unreachable model — per
// spec §4.4's selection policy. When no model strategy is configured it
// behaves exactly like the rule-based strategy alone.
type FallbackClassifier struct {
	preferred Strategy // may be nil
	fallback Strategy
}

// NewFallbackClassifier builds a classifier preferring preferred (pass nil
// to always use rule-based) and falling back to fallback.
func NewFallbackClassifier(preferred Strategy, fallback Strategy) *FallbackClassifier {
	return &FallbackClassifier{preferred: preferred, fallback: fallback}
}

// Classify tries the preferred strategy first, demoting to fallback on any
// error. The returned Classification's Method field records which strategy
// actually produced the result.
func (c *FallbackClassifier) Classify(ctx context.Context, text string) (Classification, error) {
	if c.preferred != nil {
		result, err := c.preferred.Classify(ctx, text)
		if err == nil {
			return result, nil
		}
		slog.Warn("preferred nlu strategy failed, falling back to rule-based", "error", err)
	}
	return c.fallback.Classify(ctx, text)
}
