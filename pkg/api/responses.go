package api

import "time"

// CredentialResponse is returned by both register and login.
type CredentialResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	User      UserResponse `json:"user"`
}

// UserResponse is the wire shape of a domain.User.
type UserResponse struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Email       string `json:"email"`
}

// MessageResponse is the wire shape of a domain.Message.
type MessageResponse struct {
	ID               string              `json:"id"`
	Author           string              `json:"author"`
	ConversationID   string              `json:"conversationId"`
	Timestamp        time.Time           `json:"timestamp"`
	Kind             string              `json:"kind"`
	Text             string              `json:"text,omitempty"`
	Attachment       *AttachmentResponse `json:"attachment,omitempty"`
	Status           string              `json:"status"`
	AgentKey         string              `json:"agentKey,omitempty"`
	ContactID        string              `json:"contactId,omitempty"`
	Channel          string              `json:"channel,omitempty"`
	ChannelMessageID string              `json:"channelMessageId,omitempty"`
}

// AttachmentResponse is the wire shape of a domain.Attachment.
type AttachmentResponse struct {
	Bucket           string `json:"bucket"`
	ObjectKey        string `json:"objectKey"`
	OriginalFilename string `json:"originalFilename"`
	MimeType         string `json:"mimeType"`
	SizeBytes        int64  `json:"sizeBytes"`
}

// ContactSummaryResponse is one row of the contact list.
type ContactSummaryResponse struct {
	PeerID      string          `json:"peerId"`
	DisplayName string          `json:"displayName"`
	LastMessage MessageResponse `json:"lastMessage"`
	UnreadCount int             `json:"unreadCount"`
}

// UploadGrantResponse is returned by POST /uploads/grant.
type UploadGrantResponse struct {
	Key       string    `json:"key"`
	PutURL    string    `json:"putUrl"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// UploadConfirmResponse is returned by POST /uploads/confirm.
type UploadConfirmResponse struct {
	Message MessageResponse `json:"message"`
	ReadURL string          `json:"readUrl"`
}

// AgentResponse is the wire shape of a domain.AgentDefinition.
type AgentResponse struct {
	Key           string   `json:"key"`
	DisplayName   string   `json:"displayName"`
	Emoji         string   `json:"emoji"`
	Category      string   `json:"category"`
	SystemPrompt  string   `json:"systemPrompt,omitempty"`
	AllowedTools  []string `json:"allowedTools,omitempty"`
	ProviderLabel string   `json:"providerLabel,omitempty"`
}

// NLUAnalyzeResponse is returned by POST /nlu/analyze.
type NLUAnalyzeResponse struct {
	Intent     string              `json:"intent"`
	Confidence float64             `json:"confidence"`
	Method     string              `json:"method"`
	Entities   map[string][]string `json:"entities"`
}

// HandoverResponse is the wire shape of a domain.HandoverTicket.
type HandoverResponse struct {
	ID             string     `json:"id"`
	ConversationID string     `json:"conversationId"`
	Reason         string     `json:"reason"`
	Priority       int        `json:"priority"`
	Status         string     `json:"status"`
	CreatedAt      time.Time  `json:"createdAt"`
	AcceptedAt     *time.Time `json:"acceptedAt,omitempty"`
	ResolvedAt     *time.Time `json:"resolvedAt,omitempty"`
	AssignedAgent  string     `json:"assignedAgent,omitempty"`
	ResolutionNote string     `json:"resolutionNote,omitempty"`
	Tags           []string   `json:"tags,omitempty"`
}

// HandoverStatsResponse is returned by GET /handovers/stats/summary.
type HandoverStatsResponse struct {
	Pending    int `json:"pending"`
	Accepted   int `json:"accepted"`
	InProgress int `json:"inProgress"`
	UrgentOpen int `json:"urgentOpen"`
}

// CalendarAuthStatusResponse is returned by GET /calendar/auth-status.
type CalendarAuthStatusResponse struct {
	Connected bool `json:"connected"`
}

// CalendarEventResponse is the wire shape of a domain.CalendarCommitment.
type CalendarEventResponse struct {
	ID              string    `json:"id"`
	ProviderEventID string    `json:"providerEventId"`
	ConversationID  string    `json:"conversationId"`
	AgentKey        string    `json:"agentKey"`
	CustomerEmail   string    `json:"customerEmail"`
	Start           time.Time `json:"start"`
	End             time.Time `json:"end"`
	MeetingURL      string    `json:"meetingUrl,omitempty"`
	CalendarURL     string    `json:"calendarUrl,omitempty"`
	Status          string    `json:"status"`
	Attendees       []string  `json:"attendees,omitempty"`
	Notes           string    `json:"notes,omitempty"`
}

// SlotResponse is one bookable window.
type SlotResponse struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// OmniSendResponse is returned by POST /omni/send.
type OmniSendResponse struct {
	ProviderMessageID string          `json:"providerMessageId"`
	Message           MessageResponse `json:"message"`
}

// DeviceSessionResponse is returned by the WhatsApp device-session endpoints.
type DeviceSessionResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	QRCode string `json:"qrCode,omitempty"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status          string `json:"status"`
	ResponseTimeMs  int64  `json:"responseTimeMs"`
	OpenConnections int    `json:"openConnections"`
	InUse           int    `json:"inUse"`
	Idle            int    `json:"idle"`
	WaitCount       int64  `json:"waitCount"`
	MaxOpenConns    int    `json:"maxOpenConns"`
}
