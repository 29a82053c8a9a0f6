package presence

// MessageCreatedPayload announces a new message on a conversation channel.
type MessageCreatedPayload struct {
	Type             string `json:"type"` // "message.created"
	MessageID        string `json:"message_id"`
	ConversationID   string `json:"conversation_id"`
	Author           string `json:"author"`
	Kind             string `json:"kind"`
	Text             string `json:"text,omitempty"`
	AttachmentURL    string `json:"attachment_url,omitempty"`
	AgentKey         string `json:"agent_key,omitempty"`
	Timestamp        string `json:"timestamp"`
}

// DeliveryStatusPayload announces a delivery status transition (I3).
type DeliveryStatusPayload struct {
	Type      string `json:"type"` // "delivery.status"
	MessageID string `json:"message_id"`
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// TypingPayload announces a transient typing indicator; never persisted.
type TypingPayload struct {
	Type           string `json:"type"` // "typing"
	ConversationID string `json:"conversation_id"`
	Author         string `json:"author"`
}

// HandoverCreatedPayload announces a new ticket on the shared queue channel.
type HandoverCreatedPayload struct {
	Type           string `json:"type"` // "handover.created"
	TicketID       string `json:"ticket_id"`
	ConversationID string `json:"conversation_id"`
	Reason         string `json:"reason"`
	Priority       int    `json:"priority"`
	Timestamp      string `json:"timestamp"`
}

// HandoverAcceptedPayload announces a ticket was claimed, so other operators'
// queue views remove it immediately.
type HandoverAcceptedPayload struct {
	Type          string `json:"type"` // "handover.accepted"
	TicketID      string `json:"ticket_id"`
	AssignedAgent string `json:"assigned_agent"`
	Timestamp     string `json:"timestamp"`
}

// AgentMessagePayload carries an agent's reply into the matching agent-panel
// subscribers only (spec §6 agent:message), distinct from the main
// conversation timeline's message.created.
type AgentMessagePayload struct {
	Type           string `json:"type"` // "agent.message"
	AgentKey       string `json:"agent_key"`
	ConversationID string `json:"conversation_id,omitempty"`
	MessageID      string `json:"message_id"`
	Author         string `json:"author"`
	Text           string `json:"text"`
	Timestamp      string `json:"timestamp"`
}

// SlotPickerPayload asks the agent panel to collect a meeting slot from the
// customer (spec §6 agent:show-slot-picker), emitted when a scheduling tool
// call has no slot to propose yet.
type SlotPickerPayload struct {
	Type                   string   `json:"type"` // "agent.show_slot_picker"
	AgentKey               string   `json:"agent_key"`
	CustomerEmail          string   `json:"customer_email,omitempty"`
	CustomerPhone          string   `json:"customer_phone,omitempty"`
	WorkingDays            []string `json:"working_days"`
	WorkingHoursStart      int      `json:"working_hours_start"`
	WorkingHoursEnd        int      `json:"working_hours_end"`
	DefaultDurationMinutes int      `json:"default_duration_minutes"`
}
