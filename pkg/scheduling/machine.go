package scheduling

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/omnichat/relay/pkg/apperrors"
	"github.com/omnichat/relay/pkg/config"
	"github.com/omnichat/relay/pkg/domain"
	"github.com/omnichat/relay/pkg/store"
)

// attempt is the in-memory state of one conversation's scheduling attempt.
// The state machine itself is ephemeral (spec §4.7: "a new scheduling
// intent starts a fresh state machine") — only the committed outcome, a
// CalendarCommitment, is durable. What IS durable and survives a process
// restart mid-commit is the dedup key lookup in Commit, below.
type attempt struct {
	state         domain.SchedulingState
	agentKey      string
	tenantID      string
	customerEmail string
	candidate     *domain.Slot
}

// SlotPicker is the signal emitted to the customer's UI on entering
// AwaitingSlot: the working days it may choose from, the working-hours
// window, and the default slot duration (spec §4.7).
type SlotPicker struct {
	WorkingDays []time.Time
	StartHour   int
	EndHour     int
	Duration    time.Duration
}

// Machine drives the per-conversation scheduling state machine.
type Machine struct {
	mu       sync.Mutex
	attempts map[string]*attempt

	provider CalendarProvider
	calendar *store.CalendarRepo
	wh       config.WorkingHours
	policy   *config.SchedulingPolicy
	duration time.Duration
}

// NewMachine builds a Machine. wh and duration come from config.Defaults;
// policy resolves auto_commit vs require_operator_ok per (tenant, agent).
func NewMachine(provider CalendarProvider, calendar *store.CalendarRepo, wh config.WorkingHours, duration time.Duration, policy *config.SchedulingPolicy) *Machine {
	return &Machine{attempts: map[string]*attempt{}, provider: provider, calendar: calendar, wh: wh, duration: duration, policy: policy}
}

// Start begins a fresh attempt for conversationID, entering AwaitingIdentity
// if customerEmail is still unknown or AwaitingSlot if it is already known
// (spec §4.7).
func (m *Machine) Start(conversationID, tenantID, agentKey, customerEmail string) domain.SchedulingState {
	m.mu.Lock()
	defer m.mu.Unlock()

	a := &attempt{agentKey: agentKey, tenantID: tenantID, customerEmail: customerEmail}
	if customerEmail == "" {
		a.state = domain.SchedulingAwaitingIdent
	} else {
		a.state = domain.SchedulingAwaitingSlot
	}
	m.attempts[conversationID] = a
	return a.state
}

// SetIdentity supplies the missing customer email, transitioning
// AwaitingIdentity -> AwaitingSlot. Returns apperrors.Invalid if the
// conversation has no attempt in AwaitingIdentity.
func (m *Machine) SetIdentity(conversationID, customerEmail string) (domain.SchedulingState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.attempts[conversationID]
	if !ok || a.state != domain.SchedulingAwaitingIdent {
		return "", fmt.Errorf("%w: no scheduling attempt awaiting identity for this conversation", apperrors.Invalid)
	}
	a.customerEmail = customerEmail
	a.state = domain.SchedulingAwaitingSlot
	return a.state, nil
}

// SlotPicker builds the picker signal for a conversation currently
// AwaitingSlot: the next lookaheadDays working days within wh.
func (m *Machine) SlotPicker(wh config.WorkingHours, lookaheadDays int, now time.Time) (SlotPicker, error) {
	days, err := NextWorkingDays(wh, now, lookaheadDays)
	if err != nil {
		return SlotPicker{}, err
	}
	return SlotPicker{WorkingDays: days, StartHour: wh.StartHour, EndHour: wh.EndHour, Duration: m.duration}, nil
}

// ProviderConnected reports whether any CalendarProvider is wired in (any
// non-nil provider, InMemoryProvider included), backing
// GET /calendar/auth-status.
func (m *Machine) ProviderConnected() bool { return m.provider != nil }

// AvailabilityWithDuration answers an availability query for one working
// day using an explicit slot duration, overriding the Machine's configured
// default — used by GET /calendar/available-slots?duration_minutes=.
func (m *Machine) AvailabilityWithDuration(ctx context.Context, now, date time.Time, duration time.Duration) ([]domain.Slot, error) {
	return FreeSlots(ctx, m.provider, m.wh, duration, now, date)
}

// Availability answers an availability query for one working day (spec
// §4.7), consulting the external provider for busy intervals.
func (m *Machine) Availability(ctx context.Context, now, date time.Time) ([]domain.Slot, error) {
	return FreeSlots(ctx, m.provider, m.wh, m.duration, now, date)
}

// ProposeSlot records the customer's chosen candidate, entering Confirming
// (spec §4.7: "the agent optionally asks for operator confirmation").
func (m *Machine) ProposeSlot(conversationID string, slot domain.Slot) (domain.SchedulingState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.attempts[conversationID]
	if !ok || a.state != domain.SchedulingAwaitingSlot {
		return "", fmt.Errorf("%w: no scheduling attempt awaiting a slot for this conversation", apperrors.Invalid)
	}
	a.candidate = &slot
	a.state = domain.SchedulingConfirming
	return a.state, nil
}

// RequiresOperatorOK reports whether conversationID's attempt is gated on
// an operator confirming before Commit may proceed (config.ModeRequireOperator).
func (m *Machine) RequiresOperatorOK(conversationID string) bool {
	m.mu.Lock()
	a, ok := m.attempts[conversationID]
	m.mu.Unlock()
	if !ok {
		return true
	}
	return m.policy.ModeFor(a.tenantID, a.agentKey) == config.ModeRequireOperator
}

// Cancel abandons the attempt (customer left, operator declined, ...).
func (m *Machine) Cancel(conversationID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.attempts[conversationID]; ok {
		a.state = domain.SchedulingCancelled
		delete(m.attempts, conversationID)
	}
}

// CommitResult is what Commit returns on success.
type CommitResult struct {
	Commitment domain.CalendarCommitment
}

// Commit performs the Committing step: exactly one attempt at the external
// provider, with crash-recovery via the dedup key (spec §4.7). On provider
// failure it discards the conversation's attempt and returns the error
// without ever recording a commitment as confirmed.
func (m *Machine) Commit(ctx context.Context, conversationID string) (CommitResult, error) {
	m.mu.Lock()
	a, ok := m.attempts[conversationID]
	if ok {
		a.state = domain.SchedulingCommitting
	}
	m.mu.Unlock()

	if !ok || a.candidate == nil {
		return CommitResult{}, fmt.Errorf("%w: no scheduling attempt ready to commit for this conversation", apperrors.Invalid)
	}

	dedupKey := domain.DedupKey(conversationID, a.candidate.Start, a.customerEmail)

	if existing, err := m.calendar.ByDedupKey(ctx, dedupKey); err == nil {
		m.finish(conversationID)
		return CommitResult{Commitment: existing}, nil
	} else if !apperrors.Is(err, apperrors.NotFound) {
		return CommitResult{}, fmt.Errorf("check dedup key before commit: %w", err)
	}

	event, err := m.provider.CreateEvent(ctx, dedupKey, a.candidate.Start, a.candidate.End, []string{a.customerEmail})
	if err != nil {
		m.finish(conversationID)
		return CommitResult{}, fmt.Errorf("external calendar provider: %w", err)
	}

	commitment := domain.CalendarCommitment{
		ID:              uuid.New().String(),
		ProviderEventID: event.EventID,
		ConversationID:  conversationID,
		AgentKey:        a.agentKey,
		CustomerEmail:   a.customerEmail,
		Start:           a.candidate.Start,
		End:             a.candidate.End,
		MeetingURL:      event.MeetingURL,
		CalendarURL:     event.CalendarURL,
		Status:          domain.CommitmentConfirmed,
		Attendees:       []string{a.customerEmail},
		DedupKey:        dedupKey,
	}

	if err := m.calendar.Create(ctx, commitment); err != nil {
		if apperrors.Is(err, apperrors.Conflict) {
			// Another goroutine (or a retried request) committed the same
			// dedup key first; the provider event still exists, so surface
			// the winner's row rather than orphaning event.EventID.
			existing, lookupErr := m.calendar.ByDedupKey(ctx, dedupKey)
			if lookupErr == nil {
				m.finish(conversationID)
				return CommitResult{Commitment: existing}, nil
			}
		}
		slog.Warn("provider event created but commitment persist failed", "conversation_id", conversationID, "provider_event_id", event.EventID, "error", err)
		m.finish(conversationID)
		return CommitResult{}, fmt.Errorf("persist commitment: %w", err)
	}

	m.finish(conversationID)
	return CommitResult{Commitment: commitment}, nil
}

// finish clears the in-memory attempt once its outcome is durable (or it
// has failed terminally); a fresh scheduling intent always starts clean.
func (m *Machine) finish(conversationID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.attempts, conversationID)
}
