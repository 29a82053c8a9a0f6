package api

import (
	echo "github.com/labstack/echo/v5"

	"github.com/omnichat/relay/pkg/auth"
	"github.com/omnichat/relay/pkg/domain"
)

// requestUserID returns the authenticated user id attached by auth.RequireAuth.
func requestUserID(c *echo.Context) string {
	return auth.UserIDFromContext(c.Request().Context())
}

// conversationIDFor mirrors domain.ConversationID for the two-party
// conversations addressed by the contacts endpoints.
func conversationIDFor(userID, peerID string) string {
	return domain.ConversationID(userID, peerID)
}

func messageToResponse(m domain.Message) MessageResponse {
	resp := MessageResponse{
		ID:               m.ID,
		Author:           m.Author,
		ConversationID:   m.ConversationID,
		Timestamp:        m.Timestamp,
		Kind:             string(m.Kind),
		Text:             m.Text,
		Status:           deliveryStatusName(m.Status),
		AgentKey:         m.AgentKey,
		ContactID:        m.ContactID,
		Channel:          m.Channel,
		ChannelMessageID: m.ChannelMessageID,
	}
	if m.Attachment != nil {
		resp.Attachment = &AttachmentResponse{
			Bucket:           m.Attachment.Bucket,
			ObjectKey:        m.Attachment.ObjectKey,
			OriginalFilename: m.Attachment.OriginalFilename,
			MimeType:         m.Attachment.MimeType,
			SizeBytes:        m.Attachment.SizeBytes,
		}
	}
	return resp
}

func messagesToResponses(msgs []domain.Message) []MessageResponse {
	out := make([]MessageResponse, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, messageToResponse(m))
	}
	return out
}

func deliveryStatusName(s domain.DeliveryStatus) string {
	switch s {
	case domain.StatusPending:
		return "pending"
	case domain.StatusSent:
		return "sent"
	case domain.StatusDelivered:
		return "delivered"
	case domain.StatusRead:
		return "read"
	default:
		return "pending"
	}
}

func agentToResponse(a domain.AgentDefinition) AgentResponse {
	tools := make([]string, 0, len(a.AllowedTools))
	for _, t := range a.AllowedTools {
		tools = append(tools, string(t))
	}
	category := "built_in"
	if a.Category == domain.CategoryCustom {
		category = "custom"
	}
	return AgentResponse{
		Key:           a.Key,
		DisplayName:   a.DisplayName,
		Emoji:         a.Emoji,
		Category:      category,
		SystemPrompt:  a.SystemPrompt,
		AllowedTools:  tools,
		ProviderLabel: a.ProviderLabel,
	}
}

func handoverToResponse(h domain.HandoverTicket) HandoverResponse {
	return HandoverResponse{
		ID:             h.ID,
		ConversationID: h.ConversationID,
		Reason:         string(h.Reason),
		Priority:       h.Priority,
		Status:         string(h.Status),
		CreatedAt:      h.CreatedAt,
		AcceptedAt:     h.AcceptedAt,
		ResolvedAt:     h.ResolvedAt,
		AssignedAgent:  h.AssignedAgent,
		ResolutionNote: h.ResolutionNote,
		Tags:           h.Tags,
	}
}

func commitmentToResponse(cm domain.CalendarCommitment) CalendarEventResponse {
	return CalendarEventResponse{
		ID:              cm.ID,
		ProviderEventID: cm.ProviderEventID,
		ConversationID:  cm.ConversationID,
		AgentKey:        cm.AgentKey,
		CustomerEmail:   cm.CustomerEmail,
		Start:           cm.Start,
		End:             cm.End,
		MeetingURL:      cm.MeetingURL,
		CalendarURL:     cm.CalendarURL,
		Status:          string(cm.Status),
		Attendees:       cm.Attendees,
		Notes:           cm.Notes,
	}
}
