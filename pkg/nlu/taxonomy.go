// Package nlu classifies an inbound text window into one intent with a
// confidence score and extracts structured entities (spec §4.4).
package nlu

// Intent is a closed-set label. Extend only by adding a constant here — the
// taxonomy must never grow dynamically per spec §4.4.
type Intent string

const (
	IntentGreeting         Intent = "greeting"
	IntentPurchase         Intent = "purchase"
	IntentScheduling       Intent = "scheduling"
	IntentLegal            Intent = "legal"
	IntentTechnicalSupport Intent = "technical_support"
	IntentComplaint        Intent = "complaint"
	IntentCancellation     Intent = "cancellation"
	IntentRequestHuman     Intent = "request_human"
	IntentUnknown          Intent = "unknown"
)

// Method records which strategy produced a Classification, so downstream
// policy (e.g. handover-on-low-confidence) can weight model vs. rule
// results differently if it ever needs to.
type Method string

const (
	MethodRule  Method = "rule"
	MethodModel Method = "model"
)

// Entities is the structured extraction result, always rule-based
// regardless of which strategy classified the intent (spec §4.4).
type Entities struct {
	Emails       []string
	Phones       []string
	NationalIDs  []string
	PostalCodes  []string
	Dates        []string
	Times        []string
	MonetaryAmts []string
	URLs         []string
}

// Classification is the Classifier's output.
type Classification struct {
	Intent     Intent
	Confidence float64
	Entities   Entities
	Method     Method
}
