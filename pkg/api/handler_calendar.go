package api

import (
	"net/http"
	"strconv"
	"time"

	echo "github.com/labstack/echo/v5"

	"github.com/google/uuid"

	"github.com/omnichat/relay/pkg/domain"
)

func (s *Server) calendarAuthStatusHandler(c *echo.Context) error {
	return c.JSON(http.StatusOK, &CalendarAuthStatusResponse{Connected: s.scheduler.ProviderConnected()})
}

// createCalendarEventHandler backs POST /calendar/events: a direct,
// operator-authored commitment, distinct from the bot-driven exactly-once
// Commit step the scheduling state machine performs on a tool call.
func (s *Server) createCalendarEventHandler(c *echo.Context) error {
	var req CreateCalendarEventRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}
	if req.ConversationID == "" || req.Start == "" || req.End == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "conversationId, start, and end are required")
	}
	start, err := time.Parse(time.RFC3339, req.Start)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "start must be an RFC3339 timestamp")
	}
	end, err := time.Parse(time.RFC3339, req.End)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "end must be an RFC3339 timestamp")
	}

	commitment := domain.CalendarCommitment{
		ID:             uuid.New().String(),
		ConversationID: req.ConversationID,
		AgentKey:       req.AgentKey,
		CustomerEmail:  req.CustomerEmail,
		Start:          start,
		End:            end,
		MeetingURL:     req.MeetingURL,
		CalendarURL:    req.CalendarURL,
		Status:         domain.CommitmentConfirmed,
		Attendees:      req.Attendees,
		Notes:          req.Notes,
		DedupKey:       domain.DedupKey(req.ConversationID, start, req.CustomerEmail),
	}

	if err := s.calendar.Create(c.Request().Context(), commitment); err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusCreated, commitmentToResponse(commitment))
}

func (s *Server) listCalendarEventsHandler(c *echo.Context) error {
	conversationID := c.QueryParam("conversationId")
	if conversationID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "conversationId is required")
	}
	commitments, err := s.calendar.ForConversation(c.Request().Context(), conversationID)
	if err != nil {
		return mapServiceError(err)
	}
	out := make([]CalendarEventResponse, 0, len(commitments))
	for _, cm := range commitments {
		out = append(out, commitmentToResponse(cm))
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) rescheduleCalendarEventHandler(c *echo.Context) error {
	var req RescheduleCalendarEventRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}
	start, err := time.Parse(time.RFC3339, req.Start)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "start must be an RFC3339 timestamp")
	}
	end, err := time.Parse(time.RFC3339, req.End)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "end must be an RFC3339 timestamp")
	}

	commitment, err := s.calendar.Reschedule(c.Request().Context(), c.Param("id"), start, end)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, commitmentToResponse(commitment))
}

func (s *Server) cancelCalendarEventHandler(c *echo.Context) error {
	if err := s.calendar.Cancel(c.Request().Context(), c.Param("id")); err != nil {
		return mapServiceError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) calendarAvailabilityHandler(c *echo.Context) error {
	date, err := parseDateParam(c)
	if err != nil {
		return err
	}
	slots, svcErr := s.scheduler.Availability(c.Request().Context(), time.Now(), date)
	if svcErr != nil {
		return mapServiceError(svcErr)
	}
	return c.JSON(http.StatusOK, slotsToResponses(slots))
}

func (s *Server) calendarAvailableSlotsHandler(c *echo.Context) error {
	date, err := parseDateParam(c)
	if err != nil {
		return err
	}

	duration := s.cfg.Defaults.SlotDuration
	if raw := c.QueryParam("duration_minutes"); raw != "" {
		minutes, parseErr := strconv.Atoi(raw)
		if parseErr != nil || minutes <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "duration_minutes must be a positive integer")
		}
		duration = time.Duration(minutes) * time.Minute
	}

	slots, svcErr := s.scheduler.AvailabilityWithDuration(c.Request().Context(), time.Now(), date, duration)
	if svcErr != nil {
		return mapServiceError(svcErr)
	}
	return c.JSON(http.StatusOK, slotsToResponses(slots))
}

func parseDateParam(c *echo.Context) (time.Time, error) {
	raw := c.QueryParam("date")
	if raw == "" {
		return time.Now(), nil
	}
	date, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, echo.NewHTTPError(http.StatusBadRequest, "date must be formatted YYYY-MM-DD")
	}
	return date, nil
}

func slotsToResponses(slots []domain.Slot) []SlotResponse {
	out := make([]SlotResponse, 0, len(slots))
	for _, sl := range slots {
		out = append(out, SlotResponse{Start: sl.Start, End: sl.End})
	}
	return out
}
