package presence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"
)

// Publisher publishes events for WebSocket delivery. Message-bearing events
// are persisted as delivery_events (so a reconnecting client can catch up
// via ConnectionManager.handleCatchup) and broadcast via pg_notify in the
// same transaction, since pg_notify is held until COMMIT; transient events
// (typing) are notify-only.
type Publisher struct {
	db *sql.DB
}

// NewPublisher builds a Publisher over the shared pool.
func NewPublisher(db *sql.DB) *Publisher { return &Publisher{db: db} }

// PublishMessageCreated persists a delivery_events row recording the new
// message and notifies the conversation channel.
func (p *Publisher) PublishMessageCreated(ctx context.Context, conversationID string, payload MessageCreatedPayload) error {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal message.created: %w", err)
	}
	return p.persistAndNotify(ctx, payload.MessageID, domainStatusPending, ConversationChannel(conversationID), payloadJSON)
}

// PublishDeliveryStatus notifies a delivery status transition (I3). The
// status row itself is written by the message store; this only fans out
// the notification, so it is notify-only from the publisher's perspective
// (the store.MessageRepo.UpdateStatus call already wrote the outbox row).
func (p *Publisher) PublishDeliveryStatus(ctx context.Context, conversationID string, payload DeliveryStatusPayload) error {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal delivery.status: %w", err)
	}
	return p.notifyOnly(ctx, ConversationChannel(conversationID), payloadJSON)
}

// PublishTyping broadcasts a transient typing indicator — never persisted.
func (p *Publisher) PublishTyping(ctx context.Context, conversationID string, payload TypingPayload) error {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal typing: %w", err)
	}
	return p.notifyOnly(ctx, ConversationChannel(conversationID), payloadJSON)
}

// PublishHandoverCreated notifies every operator watching the shared queue.
func (p *Publisher) PublishHandoverCreated(ctx context.Context, payload HandoverCreatedPayload) error {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal handover.created: %w", err)
	}
	return p.notifyOnly(ctx, HandoverQueueChannel, payloadJSON)
}

// PublishHandoverAccepted notifies the queue that a ticket was claimed.
func (p *Publisher) PublishHandoverAccepted(ctx context.Context, payload HandoverAcceptedPayload) error {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal handover.accepted: %w", err)
	}
	return p.notifyOnly(ctx, HandoverQueueChannel, payloadJSON)
}

// PublishAgentMessage notifies only the subscribers of one agent panel —
// never the main conversation channel, per spec §6's "delivered only into
// the matching agent-panel subscribers."
func (p *Publisher) PublishAgentMessage(ctx context.Context, conversationID, agentKey string, payload AgentMessagePayload) error {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal agent.message: %w", err)
	}
	return p.notifyOnly(ctx, AgentPanelChannel(conversationID, agentKey), payloadJSON)
}

// PublishSlotPicker notifies an agent panel to collect a slot choice from
// the customer.
func (p *Publisher) PublishSlotPicker(ctx context.Context, conversationID, agentKey string, payload SlotPickerPayload) error {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal agent.show_slot_picker: %w", err)
	}
	return p.notifyOnly(ctx, AgentPanelChannel(conversationID, agentKey), payloadJSON)
}

const domainStatusPending = 0

// persistAndNotify records a delivery_events row for messageID then
// pg_notifies channel with db_event_id injected, atomically.
func (p *Publisher) persistAndNotify(ctx context.Context, messageID string, status int, channel string, payloadJSON []byte) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var eventID int64
	err = tx.QueryRowContext(ctx,
		`INSERT INTO delivery_events (message_id, status, created_at) VALUES ($1, $2, $3) RETURNING id`,
		messageID, status, time.Now()).Scan(&eventID)
	if err != nil {
		return fmt.Errorf("persist delivery event: %w", err)
	}

	notifyPayload, err := injectEventID(payloadJSON, eventID)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, "SELECT pg_notify($1, $2)", channel, notifyPayload); err != nil {
		return fmt.Errorf("pg_notify: %w", err)
	}

	return tx.Commit()
}

func (p *Publisher) notifyOnly(ctx context.Context, channel string, payloadJSON []byte) error {
	if _, err := p.db.ExecContext(ctx, "SELECT pg_notify($1, $2)", channel, truncateIfNeeded(string(payloadJSON))); err != nil {
		return fmt.Errorf("pg_notify: %w", err)
	}
	return nil
}

func injectEventID(payloadJSON []byte, eventID int64) (string, error) {
	var m map[string]any
	if err := json.Unmarshal(payloadJSON, &m); err != nil {
		return "", fmt.Errorf("unmarshal payload for db_event_id injection: %w", err)
	}
	m["db_event_id"] = eventID

	enriched, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("marshal enriched NOTIFY payload: %w", err)
	}
	return truncateIfNeeded(string(enriched)), nil
}

// truncateIfNeeded keeps the NOTIFY payload under Postgres's 8000-byte
// limit; a client that receives a truncated envelope is expected to refetch
// the full record over REST using the ids it still carries.
func truncateIfNeeded(payload string) string {
	if len(payload) <= 7900 {
		return payload
	}
	slog.Warn("truncating oversized NOTIFY payload", "bytes", len(payload))
	envelope := map[string]any{"type": "payload.truncated", "truncated": true}
	var full map[string]any
	if err := json.Unmarshal([]byte(payload), &full); err == nil {
		for _, k := range []string{"message_id", "conversation_id", "ticket_id", "db_event_id", "agent_key"} {
			if v, ok := full[k]; ok {
				envelope[k] = v
			}
		}
	}
	out, _ := json.Marshal(envelope)
	return string(out)
}
