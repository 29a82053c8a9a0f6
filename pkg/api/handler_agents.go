package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/omnichat/relay/pkg/domain"
)

// agentPanelMessagesHandler backs GET /agents/{key}/messages?contactId=&limit=:
// the history of one agent's conversation with one contact, the view an
// operator's agent panel renders.
func (s *Server) agentPanelMessagesHandler(c *echo.Context) error {
	agentKey := c.Param("key")
	contactID := c.QueryParam("contactId")
	if contactID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "contactId is required")
	}
	limit := parseLimit(c, defaultHistoryLimit)

	ctx := c.Request().Context()
	if _, err := s.registry.Get(ctx, agentKey); err != nil {
		return mapServiceError(err)
	}

	conversationID := conversationIDFor(agentUserID(agentKey), contactID)
	msgs, err := s.messages.History(ctx, conversationID, limit)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, messagesToResponses(msgs))
}

// agentUserID mirrors the router's "agent:<key>" author convention so an
// agent panel's conversation id lines up with the one the router wrote to.
func agentUserID(agentKey string) string { return "agent:" + agentKey }

func (s *Server) createCustomBotHandler(c *echo.Context) error {
	var req CustomBotRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}
	if req.Key == "" || req.DisplayName == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "key and displayName are required")
	}

	tools := make([]domain.Tool, 0, len(req.AllowedTools))
	for _, t := range req.AllowedTools {
		tools = append(tools, domain.Tool(t))
	}

	def := domain.AgentDefinition{
		Key: req.Key, DisplayName: req.DisplayName, Emoji: req.Emoji,
		Category: domain.CategoryCustom, SystemPrompt: req.SystemPrompt,
		AllowedTools: tools, CredentialID: req.CredentialID, ProviderLabel: req.ProviderLabel,
	}

	if err := s.agentDefs.Upsert(c.Request().Context(), defaultTenant, def); err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusCreated, agentToResponse(def))
}

func (s *Server) listCustomBotsHandler(c *echo.Context) error {
	defs, err := s.registry.List(c.Request().Context(), defaultTenant)
	if err != nil {
		return mapServiceError(err)
	}
	out := make([]AgentResponse, 0, len(defs))
	for _, d := range defs {
		out = append(out, agentToResponse(d))
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) deleteCustomBotHandler(c *echo.Context) error {
	key := c.Param("key")
	if err := s.agentDefs.Delete(c.Request().Context(), key); err != nil {
		return mapServiceError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
