package domain

import "time"

// SchedulingState is the per-conversation scheduling state machine (spec §4.7).
type SchedulingState string

const (
	SchedulingIdle           SchedulingState = "idle"
	SchedulingAwaitingIdent  SchedulingState = "awaiting_identity"
	SchedulingAwaitingSlot   SchedulingState = "awaiting_slot"
	SchedulingConfirming     SchedulingState = "confirming"
	SchedulingCommitting     SchedulingState = "committing"
	SchedulingFailed         SchedulingState = "failed"
	SchedulingCancelled      SchedulingState = "cancelled"
)

// CommitmentStatus mirrors spec §3's CalendarCommitment.status.
type CommitmentStatus string

const (
	CommitmentProposed  CommitmentStatus = "proposed"
	CommitmentConfirmed CommitmentStatus = "confirmed"
	CommitmentCancelled CommitmentStatus = "cancelled"
)

// CalendarCommitment is the external side effect produced by a successful
// scheduling attempt (spec §3).
type CalendarCommitment struct {
	ID              string
	ProviderEventID string
	ConversationID  string
	AgentKey        string
	CustomerEmail   string
	Start           time.Time
	End             time.Time
	MeetingURL      string
	CalendarURL     string
	Status          CommitmentStatus
	Attendees       []string
	Notes           string
	DedupKey        string
}

// DedupKey derives the idempotency token for a Committing attempt (spec §4.7):
// conversation id, proposed start, and customer email. Passed through to the
// external provider when it supports an idempotency key; otherwise used by
// the core's own crash-recovery lookup.
func DedupKey(conversationID string, start time.Time, customerEmail string) string {
	return conversationID + "|" + start.UTC().Format(time.RFC3339) + "|" + customerEmail
}

// Slot is one bookable window returned by an availability query.
type Slot struct {
	Start time.Time
	End   time.Time
}
