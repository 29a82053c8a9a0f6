package api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	echo "github.com/labstack/echo/v5"

	"github.com/omnichat/relay/pkg/auth"
	"github.com/omnichat/relay/pkg/domain"
	"github.com/omnichat/relay/pkg/router"
)

const defaultHistoryLimit = 50

func (s *Server) globalFeedHandler(c *echo.Context) error {
	limit := parseLimit(c, defaultHistoryLimit)
	msgs, err := s.messages.Recent(c.Request().Context(), limit)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, messagesToResponses(msgs))
}

func (s *Server) listContactsHandler(c *echo.Context) error {
	ctx := c.Request().Context()
	userID := auth.UserIDFromContext(ctx)

	peers, err := s.messages.RecentPerPeer(ctx, userID)
	if err != nil {
		return mapServiceError(err)
	}

	out := make([]ContactSummaryResponse, 0, len(peers))
	for _, p := range peers {
		displayName := p.PeerID
		if u, err := s.users.ByID(ctx, p.PeerID); err == nil {
			displayName = u.DisplayName
		} else if contact, err := s.contacts.ByID(ctx, p.PeerID); err == nil {
			displayName = contact.DisplayName
		}
		out = append(out, ContactSummaryResponse{
			PeerID:      p.PeerID,
			DisplayName: displayName,
			LastMessage: messageToResponse(p.LastMessage),
			UnreadCount: p.UnreadCount,
		})
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) contactHistoryHandler(c *echo.Context) error {
	ctx := c.Request().Context()
	userID := auth.UserIDFromContext(ctx)
	peerID := c.Param("id")
	conversationID := conversationIDFor(userID, peerID)
	limit := parseLimit(c, defaultHistoryLimit)

	if before := c.QueryParam("before"); before != "" {
		cursor, err := time.Parse(time.RFC3339, before)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "before must be an RFC3339 timestamp")
		}
		msgs, err := s.messages.HistoryBefore(ctx, conversationID, cursor, limit)
		if err != nil {
			return mapServiceError(err)
		}
		return c.JSON(http.StatusOK, messagesToResponses(msgs))
	}

	msgs, err := s.messages.History(ctx, conversationID, limit)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, messagesToResponses(msgs))
}

// sendContactMessageHandler backs POST /contacts/{id}/messages: the
// first-party web-client equivalent of the `chat:send` WebSocket event
// (spec §6). It persists and routes the message the same way an inbound
// channel webhook does, via the shared per-conversation worker pool, so a
// browser client has an ingress into the Router without bypassing it the
// way /omni/send does for outbound-only vendor sends.
func (s *Server) sendContactMessageHandler(c *echo.Context) error {
	ctx := c.Request().Context()
	userID := auth.UserIDFromContext(ctx)
	peerID := c.Param("id")

	var req SendMessageRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}

	kind := domain.KindText
	if req.Kind != "" {
		kind = domain.MessageKind(req.Kind)
	}

	var attachment *domain.Attachment
	if req.Attachment != nil {
		attachment = &domain.Attachment{
			Bucket: req.Attachment.Bucket, ObjectKey: req.Attachment.ObjectKey,
			OriginalFilename: req.Attachment.OriginalFilename, MimeType: req.Attachment.MimeType,
			SizeBytes: req.Attachment.SizeBytes,
		}
	}

	msg := domain.Message{
		Kind: kind, Text: req.Text, Attachment: attachment,
	}
	if !msg.Valid() {
		return echo.NewHTTPError(http.StatusBadRequest, "message violates I4: non-text messages require an attachment, text messages require non-empty text")
	}

	conversationID := conversationIDFor(userID, peerID)
	in := router.Inbound{
		Author: userID, ConversationID: conversationID, TenantID: defaultTenant,
		Text: req.Text, ClientTempID: req.ClientTempID, Kind: kind, Attachment: attachment,
		OpenAgentKey: req.OpenAgentKey,
	}

	s.workerPool.Dispatch(conversationID, func(ctx context.Context) {
		if err := s.routerInst.Route(ctx, in); err != nil {
			slog.Error("route first-party message failed", "conversation_id", conversationID, "error", err)
		}
	})
	return c.NoContent(http.StatusAccepted)
}

func (s *Server) markContactReadHandler(c *echo.Context) error {
	ctx := c.Request().Context()
	userID := auth.UserIDFromContext(ctx)
	peerID := c.Param("id")
	conversationID := conversationIDFor(userID, peerID)

	var req MarkReadRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}
	asOf := time.Now()
	if req.AsOf != "" {
		parsed, err := time.Parse(time.RFC3339, req.AsOf)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "asOf must be an RFC3339 timestamp")
		}
		asOf = parsed
	}

	if err := s.messages.MarkConversationRead(ctx, conversationID, peerID, asOf); err != nil {
		return mapServiceError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func parseLimit(c *echo.Context, fallback int) int {
	raw := c.QueryParam("limit")
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
