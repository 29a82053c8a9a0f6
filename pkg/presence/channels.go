// Package presence implements the Presence & Subscription Registry (spec
// §4.3): WebSocket fan-out to connected clients, backed by Postgres
// LISTEN/NOTIFY so any process in the fleet can broadcast to any connection,
// adapted from the teacher's pkg/events.
package presence

// ConversationChannel is the NOTIFY channel carrying every event for one
// conversation: new messages, delivery status transitions, typing.
func ConversationChannel(conversationID string) string {
	return "conversation:" + conversationID
}

// UserChannel carries events addressed to one authenticated user directly
// (e.g. a new handover ticket assigned to them).
func UserChannel(userID string) string {
	return "user:" + userID
}

// AgentPanelChannel carries operator-facing events scoped to one agent's
// panel within one conversation (built-in or custom agent alike).
func AgentPanelChannel(conversationID, agentKey string) string {
	return "agent-panel:" + conversationID + ":" + agentKey
}

// HandoverQueueChannel carries queue-wide events (new ticket, ticket
// accepted) to every operator watching the handover queue (spec §4.6).
const HandoverQueueChannel = "handover-queue"
