package router

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/omnichat/relay/pkg/agents"
	"github.com/omnichat/relay/pkg/config"
	"github.com/omnichat/relay/pkg/domain"
	"github.com/omnichat/relay/pkg/handover"
	"github.com/omnichat/relay/pkg/nlu"
	"github.com/omnichat/relay/pkg/presence"
	"github.com/omnichat/relay/pkg/scheduling"
	"github.com/omnichat/relay/pkg/store"
)

// agentUserPrefix marks the synthetic author id of an agent-originated
// message, so callers can tell "author is an agent" from "author is a
// human" without a second lookup (spec §9: Message.AgentKey carries the
// same information for display; this id is what goes in the author column).
const agentUserPrefix = "agent:"

// ChannelSender dispatches an agent reply to the external channel a
// conversation originated from (spec §4.8 step 8). nil for web-only
// conversations.
type ChannelSender interface {
	Send(ctx context.Context, channel, recipient, text string) (providerMessageID string, err error)
}

// Inbound is one customer-authored message arriving at the Router.
type Inbound struct {
	Author           string
	ConversationID   string
	TenantID         string
	Text             string
	ClientTempID     string
	Kind             domain.MessageKind
	Attachment       *domain.Attachment
	Channel          string
	ChannelRecipient string
	OpenAgentKey     string // set when the client emitted this from within an open agent panel
	CustomerEmail    string
	CustomerPhone    string
	CustomerName     string
}

// lowConfidenceTracker counts consecutive low-confidence classifications
// per conversation so the Router opens exactly one ticket for two in a row
// (spec §8 boundary behavior), not one per message after the second.
type lowConfidenceTracker struct {
	mu     sync.Mutex
	counts map[string]int
}

func newLowConfidenceTracker() *lowConfidenceTracker {
	return &lowConfidenceTracker{counts: map[string]int{}}
}

// Hit records a low-confidence classification and reports whether this is
// the moment the streak first reaches two (the trigger instant).
func (t *lowConfidenceTracker) Hit(conversationID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.counts[conversationID]++
	return t.counts[conversationID] == 2
}

// Reset clears the streak, called whenever a classification is NOT low
// confidence or a ticket has already been opened for this streak.
func (t *lowConfidenceTracker) Reset(conversationID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.counts, conversationID)
}

// Router is the central decision function (spec §4.8).
type Router struct {
	messages   *store.MessageRepo
	publisher  *presence.Publisher
	classifier nlu.Strategy
	registry   *agents.Registry
	invoker    *agents.Invoker
	handovers  *handover.Service
	scheduler  *scheduling.Machine
	defaults   config.Defaults
	sender     ChannelSender // nil if no external channels are configured

	lowConfidence *lowConfidenceTracker
}

// NewRouter wires every collaborator the decision function needs.
func NewRouter(
	messages *store.MessageRepo,
	publisher *presence.Publisher,
	classifier nlu.Strategy,
	registry *agents.Registry,
	invoker *agents.Invoker,
	handovers *handover.Service,
	scheduler *scheduling.Machine,
	defaults config.Defaults,
	sender ChannelSender,
) *Router {
	return &Router{
		messages: messages, publisher: publisher, classifier: classifier, registry: registry,
		invoker: invoker, handovers: handovers, scheduler: scheduler, defaults: defaults, sender: sender,
		lowConfidence: newLowConfidenceTracker(),
	}
}

// intentToAgent maps a classified intent to its built-in specialist (spec
// §4.8 step 4). Intents with no specialist mapping fall through to concierge.
var intentToAgent = map[nlu.Intent]string{
	nlu.IntentScheduling:       "sdr",
	nlu.IntentPurchase:         "sdr",
	nlu.IntentLegal:            "legal",
	nlu.IntentTechnicalSupport: "concierge",
	nlu.IntentGreeting:         "concierge",
}

// Route implements spec §4.8's numbered steps for one inbound message.
// Callers are expected to invoke Route via WorkerPool.Dispatch so that
// per-conversation ordering (step-by-step within a conversation) holds.
func (r *Router) Route(ctx context.Context, in Inbound) error {
	now := time.Now()

	msg := domain.Message{
		ID: uuid.New().String(), Author: in.Author, ConversationID: in.ConversationID,
		Timestamp: now, Kind: in.Kind, Text: in.Text, Attachment: in.Attachment,
		Status: domain.StatusPending, ClientTempID: in.ClientTempID, Channel: in.Channel,
	}
	if msg.Kind == "" {
		msg.Kind = domain.KindText
	}

	stored, err := r.messages.Append(ctx, msg)
	if err != nil {
		return fmt.Errorf("persist inbound message: %w", err)
	}

	if err := r.messages.UpdateStatus(ctx, stored.ID, domain.StatusSent); err != nil {
		slog.Warn("failed to advance inbound message to sent", "message_id", stored.ID, "error", err)
	}

	if err := r.publisher.PublishMessageCreated(ctx, in.ConversationID, presence.MessageCreatedPayload{
		Type: "message.created", MessageID: stored.ID, ConversationID: in.ConversationID,
		Author: stored.Author, Kind: string(stored.Kind), Text: stored.Text, Timestamp: now.Format(time.RFC3339Nano),
	}); err != nil {
		slog.Warn("failed to publish inbound message", "message_id", stored.ID, "error", err)
	}

	open, err := r.handovers.HasOpenTicket(ctx, in.ConversationID)
	if err != nil {
		return fmt.Errorf("check open handover ticket: %w", err)
	}
	if open {
		return nil // spec §4.8 step 3: no bot dispatch, no scheduling, while a ticket is open
	}

	agent, classification, err := r.resolveAddressee(ctx, in, stored)
	if err != nil {
		return fmt.Errorf("resolve addressee: %w", err)
	}

	if triggered, reason := r.evaluateTriggers(in, classification); triggered {
		if _, err := r.handovers.Create(ctx, in.ConversationID, []domain.HandoverReason{reason},
			[]domain.Message{stored}, classification.Entities, string(classification.Intent),
			in.CustomerEmail, in.CustomerPhone, in.CustomerName); err != nil {
			return fmt.Errorf("create handover ticket: %w", err)
		}
		return nil
	}

	history, err := r.messages.History(ctx, in.ConversationID, r.defaults.ContextWindowSize)
	if err != nil {
		return fmt.Errorf("load conversation history: %w", err)
	}

	reply := r.invoker.Respond(ctx, agent, history, in.Text, classification.Entities, agents.Budget{
		MaxOutputTokens: r.defaults.AgentMaxOutputTokens, Deadline: r.defaults.AgentDeadline,
	})

	replyMsg, err := r.appendAgentReply(ctx, in.ConversationID, agent, reply)
	if err != nil {
		return fmt.Errorf("persist agent reply: %w", err)
	}

	if reply.ToolCall != nil {
		r.handleToolCall(ctx, in, agent, *reply.ToolCall)
	}

	if in.Channel != "" && r.sender != nil {
		if _, err := r.sender.Send(ctx, in.Channel, in.ChannelRecipient, reply.Text); err != nil {
			slog.Warn("channel send failed, delivery stalls at sent", "conversation_id", in.ConversationID, "channel", in.Channel, "error", err)
			return nil
		}
		if err := r.messages.UpdateStatus(ctx, replyMsg.ID, domain.StatusDelivered); err != nil {
			slog.Warn("failed to advance agent reply to delivered", "message_id", replyMsg.ID, "error", err)
		}
	}

	return nil
}

// resolveAddressee implements spec §4.8 step 4's precedence: explicit
// mention, then open agent panel, then NLU classification, then concierge.
func (r *Router) resolveAddressee(ctx context.Context, in Inbound, stored domain.Message) (domain.AgentDefinition, nlu.Classification, error) {
	if key, ok := parseMention(in.Text, r.defaults.CommandPrefix); ok {
		if agent, err := r.registry.Get(ctx, key); err == nil {
			return agent, nlu.Classification{Intent: nlu.IntentUnknown, Method: nlu.MethodRule}, nil
		}
		// Unregistered key: spec §8 boundary behavior — treat as plain text.
	}

	if in.OpenAgentKey != "" {
		if agent, err := r.registry.Get(ctx, in.OpenAgentKey); err == nil {
			return agent, nlu.Classification{Intent: nlu.IntentUnknown, Method: nlu.MethodRule}, nil
		}
	}

	classification, err := r.classifier.Classify(ctx, in.Text)
	if err != nil {
		return domain.AgentDefinition{}, nlu.Classification{}, fmt.Errorf("classify message: %w", err)
	}

	key := "concierge"
	if mapped, ok := intentToAgent[classification.Intent]; ok {
		key = mapped
	}
	agent, err := r.registry.Get(ctx, key)
	if err != nil {
		return domain.AgentDefinition{}, classification, fmt.Errorf("resolve agent %q: %w", key, err)
	}
	return agent, classification, nil
}

// parseMention recognizes a leading "@key" token (spec §4.8 step 4, §8:
// "an agent mention with no registered key is treated as plain text").
func parseMention(text, prefix string) (string, bool) {
	if prefix == "" {
		prefix = "@"
	}
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, prefix) {
		return "", false
	}
	rest := strings.TrimPrefix(trimmed, prefix)
	end := strings.IndexAny(rest, " \t\n")
	if end == -1 {
		end = len(rest)
	}
	if end == 0 {
		return "", false
	}
	return rest[:end], true
}

// evaluateTriggers implements spec §4.6's entry triggers the Router itself
// observes: explicit request / complaint intents, and the two-consecutive
// low-confidence rule. Out-of-hours is not evaluated: the Router never
// raises domain.ReasonOutOfHours.
func (r *Router) evaluateTriggers(in Inbound, c nlu.Classification) (bool, domain.HandoverReason) {
	switch c.Intent {
	case nlu.IntentRequestHuman:
		r.lowConfidence.Reset(in.ConversationID)
		return true, domain.ReasonExplicitRequest
	case nlu.IntentComplaint:
		r.lowConfidence.Reset(in.ConversationID)
		return true, domain.ReasonComplaint
	}

	if c.Confidence < r.defaults.LowConfidenceCutoff && c.Intent != nlu.IntentUnknown {
		if r.lowConfidence.Hit(in.ConversationID) {
			r.lowConfidence.Reset(in.ConversationID)
			return true, domain.ReasonLowConfidence
		}
		return false, ""
	}

	r.lowConfidence.Reset(in.ConversationID)
	return false, ""
}

func (r *Router) appendAgentReply(ctx context.Context, conversationID string, agent domain.AgentDefinition, reply domain.AgentReply) (domain.Message, error) {
	now := time.Now()
	msg := domain.Message{
		ID: uuid.New().String(), Author: agentUserPrefix + agent.Key, ConversationID: conversationID,
		Timestamp: now, Kind: domain.KindText, Text: reply.Text, Status: domain.StatusSent, AgentKey: agent.Key,
	}
	stored, err := r.messages.Append(ctx, msg)
	if err != nil {
		return domain.Message{}, err
	}
	if err := r.publisher.PublishMessageCreated(ctx, conversationID, presence.MessageCreatedPayload{
		Type: "message.created", MessageID: stored.ID, ConversationID: conversationID,
		Author: stored.Author, Kind: string(stored.Kind), Text: stored.Text, AgentKey: agent.Key,
		Timestamp: now.Format(time.RFC3339Nano),
	}); err != nil {
		slog.Warn("failed to publish agent reply", "message_id", stored.ID, "error", err)
	}

	// Also fan out into that agent's own panel room (spec §6 agent:message),
	// a separate subscriber set from the main conversation channel above.
	// The panel channel is keyed by conversation and agent, so its
	// subscribers see this agent's replies in this conversation only.
	if err := r.publisher.PublishAgentMessage(ctx, conversationID, agent.Key, presence.AgentMessagePayload{
		Type: "agent.message", AgentKey: agent.Key, ConversationID: conversationID,
		MessageID: stored.ID, Author: stored.Author, Text: stored.Text,
		Timestamp: now.Format(time.RFC3339Nano),
	}); err != nil {
		slog.Warn("failed to publish agent panel message", "message_id", stored.ID, "agent_key", agent.Key, "error", err)
	}
	return stored, nil
}

// handleToolCall feeds an agent's tool call into the scheduling state
// machine (spec §4.8 step 7). Failures are logged, never surfaced to the
// customer — the agent's text reply has already been sent.
func (r *Router) handleToolCall(ctx context.Context, in Inbound, agent domain.AgentDefinition, call domain.ToolCall) {
	switch call.Tool {
	case domain.ToolFetchAvailability:
		r.handleFetchAvailability(ctx, in, agent)
	case domain.ToolScheduleMeeting:
		r.handleScheduleMeeting(ctx, in, agent, call)
	default:
		slog.Warn("agent returned unknown tool call", "tool", call.Tool, "conversation_id", in.ConversationID)
	}
}

// handleFetchAvailability starts (or restarts) the attempt and, once the
// customer's identity is known, emits the agent:show-slot-picker signal so
// the agent panel can collect a slot choice (spec §6).
func (r *Router) handleFetchAvailability(ctx context.Context, in Inbound, agent domain.AgentDefinition) {
	state := r.scheduler.Start(in.ConversationID, in.TenantID, agent.Key, in.CustomerEmail)
	if state != domain.SchedulingAwaitingSlot {
		return // identity still missing; the agent's own text reply already asked for it
	}

	picker, err := r.scheduler.SlotPicker(r.defaults.WorkingHours, r.defaults.SlotLookaheadDays, time.Now())
	if err != nil {
		slog.Warn("failed to build slot picker", "conversation_id", in.ConversationID, "error", err)
		return
	}

	days := make([]string, len(picker.WorkingDays))
	for i, d := range picker.WorkingDays {
		days[i] = d.Format("2006-01-02")
	}

	if err := r.publisher.PublishSlotPicker(ctx, in.ConversationID, agent.Key, presence.SlotPickerPayload{
		Type: "agent.show_slot_picker", AgentKey: agent.Key,
		CustomerEmail: in.CustomerEmail, CustomerPhone: in.CustomerPhone,
		WorkingDays: days, WorkingHoursStart: picker.StartHour, WorkingHoursEnd: picker.EndHour,
		DefaultDurationMinutes: int(picker.Duration / time.Minute),
	}); err != nil {
		slog.Warn("failed to publish slot picker", "conversation_id", in.ConversationID, "error", err)
	}
}

// handleScheduleMeeting proposes the slot the agent extracted (directly from
// the customer's message, or from a prior agent:show-slot-picker round
// trip) and, unless the tenant/agent pair requires operator confirmation
// (config.ModeRequireOperator), commits it immediately and relays the
// meeting/calendar URLs back as an agent message (spec §4.7, mandatory
// scenario: auto_commit → availability → commit → both URLs, exactly once).
func (r *Router) handleScheduleMeeting(ctx context.Context, in Inbound, agent domain.AgentDefinition, call domain.ToolCall) {
	startStr, _ := call.Arguments["start"].(string)
	start, err := time.Parse(time.RFC3339, startStr)
	if err != nil {
		slog.Warn("schedule_meeting tool call carried no parseable start time", "conversation_id", in.ConversationID, "raw_start", startStr, "error", err)
		return
	}

	email := in.CustomerEmail
	if e, ok := call.Arguments["email"].(string); ok && e != "" {
		email = e
	}

	state := r.scheduler.Start(in.ConversationID, in.TenantID, agent.Key, email)
	if state != domain.SchedulingAwaitingSlot {
		return // identity still missing; the agent's own text reply already asked for it
	}

	slot := domain.Slot{Start: start, End: start.Add(r.defaults.SlotDuration)}
	if _, err := r.scheduler.ProposeSlot(in.ConversationID, slot); err != nil {
		slog.Warn("failed to propose slot", "conversation_id", in.ConversationID, "error", err)
		return
	}

	if r.scheduler.RequiresOperatorOK(in.ConversationID) {
		return // the attempt sits in Confirming until an operator commits it
	}

	result, err := r.scheduler.Commit(ctx, in.ConversationID)
	if err != nil {
		slog.Warn("calendar commit failed", "conversation_id", in.ConversationID, "error", err)
		if _, appendErr := r.appendAgentReply(ctx, in.ConversationID, agent, domain.AgentReply{
			Text: "I couldn't confirm that time just now — mind trying again in a moment?", Degraded: true,
		}); appendErr != nil {
			slog.Warn("failed to persist scheduling failure apology", "conversation_id", in.ConversationID, "error", appendErr)
		}
		return
	}

	confirmation := fmt.Sprintf("You're booked for %s. Meeting link: %s\nCalendar event: %s",
		result.Commitment.Start.Format("Mon Jan 2 15:04 MST"), result.Commitment.MeetingURL, result.Commitment.CalendarURL)
	if _, err := r.appendAgentReply(ctx, in.ConversationID, agent, domain.AgentReply{Text: confirmation}); err != nil {
		slog.Warn("failed to persist scheduling confirmation", "conversation_id", in.ConversationID, "error", err)
	}
}
