package nlu

import (
	"context"
	"strings"
)

// keywordSet maps an intent to the keywords/phrases whose presence counts
// as a hit for that intent, per spec §4.4's "keyword/regex patterns".
var keywordSet = map[Intent][]string{
	IntentGreeting:         {"hello", "hi there", "good morning", "good afternoon", "hey"},
	IntentPurchase:         {"buy", "purchase", "order", "price", "how much", "checkout"},
	IntentScheduling:       {"schedule", "book a", "appointment", "meeting", "available", "calendar"},
	IntentLegal:            {"contract", "lawsuit", "legal", "terms of service", "liability"},
	IntentTechnicalSupport: {"error", "bug", "not working", "crash", "broken", "help with"},
	IntentComplaint:        {"complain", "terrible", "awful", "worst", "unacceptable", "angry"},
	IntentCancellation:     {"cancel", "refund", "unsubscribe", "stop my"},
	IntentRequestHuman:     {"talk to a human", "speak to someone", "real person", "human agent"},
}

// RuleClassifier scores each intent by keyword hit count, the always-
// available fallback strategy (spec §4.4).
type RuleClassifier struct{}

// NewRuleClassifier builds a RuleClassifier. Stateless; kept as a type for
// symmetry with ModelClassifier and so both satisfy the same Strategy
// interface.
func NewRuleClassifier() *RuleClassifier { return &RuleClassifier{} }

// Classify scores text against every intent's keyword set and returns the
// best match. Confidence is bounded: hits / (hits + 2), so a single hit
// never reports full confidence and repeated hits approach but never reach 1.
func (c *RuleClassifier) Classify(_ context.Context, text string) (Classification, error) {
	lower := strings.ToLower(text)

	bestIntent := IntentUnknown
	bestHits := 0
	for intent, keywords := range keywordSet {
		hits := 0
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				hits++
			}
		}
		if hits > bestHits {
			bestHits = hits
			bestIntent = intent
		}
	}

	confidence := 0.0
	if bestHits > 0 {
		confidence = float64(bestHits) / float64(bestHits+2)
	}

	return Classification{
		Intent:     bestIntent,
		Confidence: confidence,
		Entities:   ExtractEntities(text),
		Method:     MethodRule,
	}, nil
}
