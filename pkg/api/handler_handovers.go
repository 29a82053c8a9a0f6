package api

import (
	"net/http"
	"strconv"

	echo "github.com/labstack/echo/v5"

	"github.com/omnichat/relay/pkg/domain"
	"github.com/omnichat/relay/pkg/nlu"
)

func (s *Server) createHandoverHandler(c *echo.Context) error {
	var req CreateHandoverRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}
	if req.ConversationID == "" || len(req.Reasons) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "conversationId and at least one reason are required")
	}

	reasons := make([]domain.HandoverReason, 0, len(req.Reasons))
	for _, r := range req.Reasons {
		reasons = append(reasons, domain.HandoverReason(r))
	}

	ctx := c.Request().Context()
	history, err := s.messages.History(ctx, req.ConversationID, s.cfg.Defaults.ContextWindowSize)
	if err != nil {
		return mapServiceError(err)
	}

	ticket, err := s.handovers.Create(ctx, req.ConversationID, reasons, history, nlu.Entities{}, req.LastIntent, req.CustomerEmail, req.CustomerPhone, req.CustomerName)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusCreated, handoverToResponse(ticket))
}

func (s *Server) listHandoversHandler(c *echo.Context) error {
	status := domain.HandoverStatus(c.QueryParam("status"))
	priority := 0
	if raw := c.QueryParam("priority"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			priority = n
		}
	}
	limit := parseLimit(c, defaultHistoryLimit)

	tickets, err := s.handovers.List(c.Request().Context(), status, priority, limit)
	if err != nil {
		return mapServiceError(err)
	}
	out := make([]HandoverResponse, 0, len(tickets))
	for _, t := range tickets {
		out = append(out, handoverToResponse(t))
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) acceptHandoverHandler(c *echo.Context) error {
	ticket, err := s.handovers.Accept(c.Request().Context(), c.Param("id"), requestUserID(c))
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, handoverToResponse(ticket))
}

func (s *Server) inProgressHandoverHandler(c *echo.Context) error {
	ticket, err := s.handovers.MarkInProgress(c.Request().Context(), c.Param("id"))
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, handoverToResponse(ticket))
}

func (s *Server) resolveHandoverHandler(c *echo.Context) error {
	var req ResolveHandoverRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}
	if err := s.handovers.Resolve(c.Request().Context(), c.Param("id"), req.Note); err != nil {
		return mapServiceError(err)
	}
	ticket, err := s.handovers.ByID(c.Request().Context(), c.Param("id"))
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, handoverToResponse(ticket))
}

func (s *Server) cancelHandoverHandler(c *echo.Context) error {
	if err := s.handovers.Cancel(c.Request().Context(), c.Param("id")); err != nil {
		return mapServiceError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handoverStatsHandler(c *echo.Context) error {
	stats, err := s.handovers.Stats(c.Request().Context())
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, &HandoverStatsResponse{
		Pending: stats.PendingCount, Accepted: stats.AcceptedCount,
		InProgress: stats.InProgressCount, UrgentOpen: stats.UrgentOpenCount,
	})
}
