// Package handover implements the Handover Queue (spec §4.6): escalating a
// conversation out of bot control, the operator-facing priority queue, and
// compare-and-swap acceptance.
package handover

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/omnichat/relay/pkg/apperrors"
	"github.com/omnichat/relay/pkg/domain"
	"github.com/omnichat/relay/pkg/masking"
	"github.com/omnichat/relay/pkg/nlu"
	"github.com/omnichat/relay/pkg/presence"
	"github.com/omnichat/relay/pkg/store"
)

// urgentPriority is the priority assigned to complaint/escalation reasons
// (domain.PriorityFor) — urgent enough to page an operator over Slack
// rather than wait for the queue to be polled.
const urgentPriority = 4

// Service implements the escalation lifecycle over store.HandoverRepo.
type Service struct {
	repo     *store.HandoverRepo
	masker   *masking.Service
	pub      *presence.Publisher
	notifier *SlackNotifier // nil disables Slack alerts
}

// NewService builds a Service. notifier may be nil if no Slack bot token is
// configured for this deployment — urgent tickets still queue normally,
// they just aren't paged.
func NewService(repo *store.HandoverRepo, masker *masking.Service, pub *presence.Publisher, notifier *SlackNotifier) *Service {
	return &Service{repo: repo, masker: masker, pub: pub, notifier: notifier}
}

// Create opens a new ticket for conversationID, unless one is already open
// (spec §4.6 invariant: at most one open ticket per conversation — the
// caller that detected a second trigger reason should instead escalate the
// existing ticket's priority, which this method does not do itself).
func (s *Service) Create(ctx context.Context, conversationID string, reasons []domain.HandoverReason, history []domain.Message, entities nlu.Entities, lastIntent string, customerEmail, customerPhone, customerName string) (domain.HandoverTicket, error) {
	if existing, err := s.repo.OpenForConversation(ctx, conversationID); err == nil {
		return existing, nil
	}

	primary := domain.HandoverReason("")
	if len(reasons) > 0 {
		primary = reasons[0]
	}

	snapshot := domain.ContextSnapshot{
		LastMessages:  history,
		Entities:      entitiesAsMap(entities),
		LastIntent:    lastIntent,
		CustomerName:  customerName,
		CustomerEmail: s.masker.Mask(customerEmail),
		CustomerPhone: s.masker.Mask(customerPhone),
	}

	ticket := domain.HandoverTicket{
		ID:             uuid.New().String(),
		ConversationID: conversationID,
		Reason:         primary,
		Priority:       domain.PriorityFor(reasons...),
		Status:         domain.HandoverPending,
		CreatedAt:      time.Now(),
		Context:        snapshot,
		Tags:           reasonTags(reasons),
	}

	if err := s.repo.Create(ctx, ticket); err != nil {
		return domain.HandoverTicket{}, fmt.Errorf("create handover ticket: %w", err)
	}

	if err := s.pub.PublishHandoverCreated(ctx, presence.HandoverCreatedPayload{
		Type: "handover.created", TicketID: ticket.ID, ConversationID: conversationID,
		Reason: string(ticket.Reason), Priority: ticket.Priority, Timestamp: ticket.CreatedAt.Format(time.RFC3339),
	}); err != nil {
		slog.Warn("failed to publish handover.created", "ticket_id", ticket.ID, "error", err)
	}

	if ticket.Priority >= urgentPriority && s.notifier != nil {
		if err := s.notifier.NotifyUrgent(ctx, ticket); err != nil {
			slog.Warn("failed to post urgent handover slack alert", "ticket_id", ticket.ID, "error", err)
		}
	}

	return ticket, nil
}

// Accept is the compare-and-swap claim: the first operator to call this for
// a given ticket wins; later callers get apperrors.Conflict.
func (s *Service) Accept(ctx context.Context, ticketID, agentUserID string) (domain.HandoverTicket, error) {
	ticket, err := s.repo.Accept(ctx, ticketID, agentUserID, time.Now())
	if err != nil {
		return domain.HandoverTicket{}, err
	}

	if err := s.pub.PublishHandoverAccepted(ctx, presence.HandoverAcceptedPayload{
		Type: "handover.accepted", TicketID: ticket.ID, AssignedAgent: agentUserID, Timestamp: time.Now().Format(time.RFC3339),
	}); err != nil {
		slog.Warn("failed to publish handover.accepted", "ticket_id", ticket.ID, "error", err)
	}

	return ticket, nil
}

// MarkInProgress transitions an accepted ticket to in_progress.
func (s *Service) MarkInProgress(ctx context.Context, ticketID string) (domain.HandoverTicket, error) {
	return s.repo.MarkInProgress(ctx, ticketID)
}

// List is the filtered operator queue view backing GET /handovers/.
func (s *Service) List(ctx context.Context, status domain.HandoverStatus, priority, limit int) ([]domain.HandoverTicket, error) {
	return s.repo.List(ctx, status, priority, limit)
}

// Stats backs GET /handovers/stats/summary.
func (s *Service) Stats(ctx context.Context) (store.Stats, error) {
	return s.repo.Stats(ctx)
}

// ByID fetches a single ticket for handler-level presentation.
func (s *Service) ByID(ctx context.Context, ticketID string) (domain.HandoverTicket, error) {
	return s.repo.ByID(ctx, ticketID)
}

// Resolve closes an open ticket with a resolution note.
func (s *Service) Resolve(ctx context.Context, ticketID, note string) error {
	return s.repo.Resolve(ctx, ticketID, note, time.Now())
}

// Cancel closes an open ticket without an operator resolution (e.g. the
// customer disconnected before an operator picked it up).
func (s *Service) Cancel(ctx context.Context, ticketID string) error {
	return s.repo.Cancel(ctx, ticketID, time.Now())
}

// Queue returns up to limit pending tickets, highest priority first.
func (s *Service) Queue(ctx context.Context, limit int) ([]domain.HandoverTicket, error) {
	return s.repo.Queue(ctx, limit)
}

// HasOpenTicket reports whether conversationID currently has a pending,
// accepted, or in-progress ticket — the Router consults this before every
// dispatch decision (spec §4.8 step 3).
func (s *Service) HasOpenTicket(ctx context.Context, conversationID string) (bool, error) {
	_, err := s.repo.OpenForConversation(ctx, conversationID)
	if err == nil {
		return true, nil
	}
	if isNotFound(err) {
		return false, nil
	}
	return false, err
}

func entitiesAsMap(e nlu.Entities) map[string]string {
	m := map[string]string{}
	putJoined(m, "emails", e.Emails)
	putJoined(m, "phones", e.Phones)
	putJoined(m, "national_ids", e.NationalIDs)
	putJoined(m, "postal_codes", e.PostalCodes)
	putJoined(m, "dates", e.Dates)
	putJoined(m, "times", e.Times)
	putJoined(m, "monetary_amounts", e.MonetaryAmts)
	putJoined(m, "urls", e.URLs)
	return m
}

func putJoined(m map[string]string, key string, values []string) {
	if len(values) == 0 {
		return
	}
	joined := values[0]
	for _, v := range values[1:] {
		joined += ", " + v
	}
	m[key] = joined
}

func isNotFound(err error) bool { return apperrors.Is(err, apperrors.NotFound) }

func reasonTags(reasons []domain.HandoverReason) []string {
	tags := make([]string, 0, len(reasons))
	for _, r := range reasons {
		tags = append(tags, string(r))
	}
	return tags
}
