package api

// RegisterRequest is the body of POST /auth/register.
type RegisterRequest struct {
	DisplayName string `json:"displayName"`
	Email       string `json:"email"`
	Password    string `json:"password"`
}

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UploadGrantRequest is the body of POST /uploads/grant.
type UploadGrantRequest struct {
	Filename string `json:"filename"`
	MimeType string `json:"mimetype"`
	Size     int64  `json:"size"`
}

// UploadConfirmRequest is the body of POST /uploads/confirm.
type UploadConfirmRequest struct {
	Key                 string `json:"key"`
	Filename            string `json:"filename"`
	MimeType            string `json:"mimetype"`
	Author              string `json:"author"`
	ConversationContext string `json:"conversationContext"`
	AgentKey            string `json:"agentKey"`
	SizeBytes           int64  `json:"sizeBytes"`
}

// CustomBotRequest is the body of POST /custom-bots.
type CustomBotRequest struct {
	Key           string   `json:"key"`
	DisplayName   string   `json:"displayName"`
	Emoji         string   `json:"emoji"`
	SystemPrompt  string   `json:"systemPrompt"`
	AllowedTools  []string `json:"allowedTools"`
	CredentialID  string   `json:"credentialId"`
	ProviderLabel string   `json:"providerLabel"`
}

// NLUAnalyzeRequest is the body of POST /nlu/analyze.
type NLUAnalyzeRequest struct {
	Text    string `json:"text"`
	Speaker string `json:"speaker"`
}

// CreateHandoverRequest is the body of POST /handovers/.
type CreateHandoverRequest struct {
	ConversationID string   `json:"conversationId"`
	Reasons        []string `json:"reasons"`
	LastIntent     string   `json:"lastIntent"`
	CustomerEmail  string   `json:"customerEmail"`
	CustomerPhone  string   `json:"customerPhone"`
	CustomerName   string   `json:"customerName"`
}

// ResolveHandoverRequest is the body of PUT /handovers/{id}/resolve.
type ResolveHandoverRequest struct {
	Note string `json:"note"`
}

// CreateCalendarEventRequest is the body of POST /calendar/events.
type CreateCalendarEventRequest struct {
	ConversationID string   `json:"conversationId"`
	AgentKey       string   `json:"agentKey"`
	CustomerEmail  string   `json:"customerEmail"`
	Start          string   `json:"start"` // RFC3339
	End            string   `json:"end"`   // RFC3339
	MeetingURL     string   `json:"meetingUrl"`
	CalendarURL    string   `json:"calendarUrl"`
	Attendees      []string `json:"attendees"`
	Notes          string   `json:"notes"`
}

// RescheduleCalendarEventRequest is the body of PUT /calendar/events/{id}.
type RescheduleCalendarEventRequest struct {
	Start string `json:"start"` // RFC3339
	End   string `json:"end"`   // RFC3339
}

// OmniSendRequest is the body of POST /omni/send.
type OmniSendRequest struct {
	Channel   string `json:"channel"`
	Recipient string `json:"recipient"`
	Text      string `json:"text"`
	Session   string `json:"session"`
}

// MarkReadRequest is the body of PUT /contacts/{id}/read.
type MarkReadRequest struct {
	AsOf string `json:"asOf"` // RFC3339, optional — defaults to now
}

// SendMessageRequest is the body of POST /contacts/{id}/messages — the
// first-party (web client) equivalent of the `chat:send` WebSocket event.
type SendMessageRequest struct {
	Text         string              `json:"text"`
	Kind         string              `json:"kind"` // text, image, audio, file; defaults to text
	ClientTempID string              `json:"tempId"`
	OpenAgentKey string              `json:"openAgentKey"` // set when sent from within an open agent panel
	Attachment   *AttachmentResponse `json:"attachment"`
}
