package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/omnichat/relay/pkg/nlu"
)

func (s *Server) nluAnalyzeHandler(c *echo.Context) error {
	var req NLUAnalyzeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}
	if req.Text == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "text is required")
	}

	result, err := s.classifier.Classify(c.Request().Context(), req.Text)
	if err != nil {
		return mapServiceError(err)
	}

	return c.JSON(http.StatusOK, &NLUAnalyzeResponse{
		Intent:     string(result.Intent),
		Confidence: result.Confidence,
		Method:     string(result.Method),
		Entities:   entitiesToMap(result.Entities),
	})
}

func entitiesToMap(e nlu.Entities) map[string][]string {
	return map[string][]string{
		"emails":           e.Emails,
		"phones":           e.Phones,
		"national_ids":     e.NationalIDs,
		"postal_codes":     e.PostalCodes,
		"dates":            e.Dates,
		"times":            e.Times,
		"monetary_amounts": e.MonetaryAmts,
		"urls":             e.URLs,
	}
}
