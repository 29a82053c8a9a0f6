package api

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	echo "github.com/labstack/echo/v5"

	"github.com/omnichat/relay/pkg/channels"
	"github.com/omnichat/relay/pkg/domain"
	"github.com/omnichat/relay/pkg/router"
)

// omniSendHandler backs POST /omni/send: an operator-initiated outbound
// message to a channel contact, bypassing the Router since this is a manual
// send rather than a reply to an inbound customer message.
func (s *Server) omniSendHandler(c *echo.Context) error {
	var req OmniSendRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}
	if req.Channel == "" || req.Recipient == "" || req.Text == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "channel, recipient, and text are required")
	}

	ctx := c.Request().Context()
	providerMessageID, err := s.dispatcher.Send(ctx, req.Channel, req.Recipient, req.Text)
	if err != nil {
		return mapServiceError(err)
	}

	operatorID := requestUserID(c)
	msg := domain.Message{
		ID:               uuid.New().String(),
		Author:           operatorID,
		ConversationID:   domain.ConversationID(operatorID, req.Recipient),
		Timestamp:        time.Now(),
		Kind:             domain.KindText,
		Text:             req.Text,
		Status:           domain.StatusSent,
		Channel:          req.Channel,
		ChannelMessageID: providerMessageID,
	}
	stored, err := s.messages.Append(ctx, msg)
	if err != nil {
		return mapServiceError(err)
	}

	return c.JSON(http.StatusOK, &OmniSendResponse{ProviderMessageID: providerMessageID, Message: messageToResponse(stored)})
}

func (s *Server) whatsappDeviceStartSessionHandler(c *echo.Context) error {
	device := s.waDevice
	if device == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "whatsapp device-session variant is not configured")
	}
	session, err := device.StartSession(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return c.JSON(http.StatusCreated, &DeviceSessionResponse{ID: session.ID, Status: string(session.Status), QRCode: session.QRCode})
}

func (s *Server) whatsappDeviceSessionStatusHandler(c *echo.Context) error {
	device := s.waDevice
	if device == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "whatsapp device-session variant is not configured")
	}
	session, ok := device.Session(c.Param("id"))
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "no such whatsapp device session")
	}
	return c.JSON(http.StatusOK, &DeviceSessionResponse{ID: session.ID, Status: string(session.Status), QRCode: session.QRCode})
}

func (s *Server) whatsappCloudWebhookVerifyHandler(c *echo.Context) error {
	challenge := c.QueryParam("hub.challenge")
	return c.String(http.StatusOK, challenge)
}

func (s *Server) whatsappCloudWebhookHandler(c *echo.Context) error {
	return s.handleWebhook(c, "whatsapp", channels.ParseWhatsAppCloudWebhook)
}

func (s *Server) instagramWebhookHandler(c *echo.Context) error {
	return s.handleWebhook(c, "instagram", channels.ParseInstagramWebhook)
}

func (s *Server) messengerWebhookHandler(c *echo.Context) error {
	return s.handleWebhook(c, "messenger", channels.ParseMessengerWebhook)
}

// handleWebhook reads the raw body, hands it to a vendor-specific parser,
// and fans the resulting Inbound records out to the per-conversation
// worker pool so the Router processes each in arrival order.
func (s *Server) handleWebhook(c *echo.Context, channel string, parse func([]byte) ([]channels.Inbound, error)) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "unable to read webhook body")
	}

	inbounds, err := parse(body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed webhook payload")
	}

	for _, in := range inbounds {
		if err := s.dispatchInbound(channel, in); err != nil {
			return mapServiceError(err)
		}
	}
	return c.NoContent(http.StatusOK)
}

// dispatchInbound materializes the external contact synchronously (so the
// caller can surface a failure immediately), then hands the actual routing
// decision to the worker pool, preserving per-conversation ordering the way
// a live WebSocket message does.
func (s *Server) dispatchInbound(channel string, in channels.Inbound) error {
	contact, err := s.contacts.EnsureContact(context.Background(), domain.ExternalContact{
		ID:               uuid.New().String(),
		Channel:          channel,
		ChannelContactID: in.ChannelContactID,
		DisplayName:      in.DisplayName,
		Phone:            in.Phone,
		CreatedAt:        time.Now(),
	})
	if err != nil {
		return err
	}

	routed := router.Inbound{
		Author:           contact.ID,
		ConversationID:   domain.ConversationID(contact.ID, "concierge"),
		TenantID:         defaultTenant,
		Text:             in.Text,
		ClientTempID:     in.ChannelMessageID,
		Kind:             domain.KindText,
		Channel:          channel,
		ChannelRecipient: in.ChannelContactID,
		CustomerPhone:    in.Phone,
		CustomerName:     in.DisplayName,
	}

	s.workerPool.Dispatch(routed.ConversationID, func(ctx context.Context) {
		if err := s.routerInst.Route(ctx, routed); err != nil {
			slog.Error("route inbound channel message failed", "conversation_id", routed.ConversationID, "channel", channel, "error", err)
		}
	})
	return nil
}
