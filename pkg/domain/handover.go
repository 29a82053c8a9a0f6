package domain

import "time"

// HandoverReason is why a conversation left bot control (spec §4.6).
type HandoverReason string

const (
	ReasonExplicitRequest  HandoverReason = "explicit_request"
	ReasonLowConfidence    HandoverReason = "low_confidence"
	ReasonComplaint        HandoverReason = "complaint"
	ReasonComplexQuery     HandoverReason = "complex_query"
	ReasonEscalation       HandoverReason = "escalation"
	ReasonTechnicalProblem HandoverReason = "technical_problem"
	ReasonOutOfHours       HandoverReason = "out_of_hours"
)

// PriorityFor implements the spec's resolved Open Question: priority is the
// max over per-reason priorities (complaint/escalation/urgent → 4,
// explicit_request → 3, low_confidence → 2, else 1).
func PriorityFor(reasons ...HandoverReason) int {
	best := 1
	for _, r := range reasons {
		if p := priorityOf(r); p > best {
			best = p
		}
	}
	return best
}

func priorityOf(r HandoverReason) int {
	switch r {
	case ReasonComplaint, ReasonEscalation:
		return 4
	case ReasonExplicitRequest:
		return 3
	case ReasonLowConfidence:
		return 2
	default:
		return 1
	}
}

// HandoverStatus is the ticket lifecycle (spec §3).
type HandoverStatus string

const (
	HandoverPending    HandoverStatus = "pending"
	HandoverAccepted   HandoverStatus = "accepted"
	HandoverInProgress HandoverStatus = "in_progress"
	HandoverResolved   HandoverStatus = "resolved"
	HandoverCancelled  HandoverStatus = "cancelled"
)

// Open reports whether a ticket in this status keeps a conversation out of
// bot control: pending, accepted or in_progress.
func (s HandoverStatus) Open() bool {
	return s == HandoverPending || s == HandoverAccepted || s == HandoverInProgress
}

// ContextSnapshot is the conversation state captured at ticket-creation time.
type ContextSnapshot struct {
	LastMessages   []Message
	Entities       map[string]string
	LastIntent     string
	CustomerName   string
	CustomerEmail  string
	CustomerPhone  string
}

// HandoverTicket is the escalation record described in spec §3.
type HandoverTicket struct {
	ID             string
	ConversationID string
	Reason         HandoverReason
	Priority       int
	Status         HandoverStatus
	CreatedAt      time.Time
	AcceptedAt     *time.Time
	ResolvedAt     *time.Time
	AssignedAgent  string // human user id
	Context        ContextSnapshot
	ResolutionNote string
	Tags           []string
}
