package api

import (
	"log/slog"
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/omnichat/relay/pkg/apperrors"
)

// mapServiceError maps the apperrors taxonomy to HTTP status codes. Every
// handler routes its collaborator errors through here instead of picking a
// status code itself, so the mapping lives in exactly one place.
func mapServiceError(err error) *echo.HTTPError {
	switch {
	case apperrors.Is(err, apperrors.AuthRequired), apperrors.Is(err, apperrors.AuthInvalid):
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	case apperrors.Is(err, apperrors.Forbidden):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case apperrors.Is(err, apperrors.NotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case apperrors.Is(err, apperrors.Invalid):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case apperrors.Is(err, apperrors.Conflict):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case apperrors.Is(err, apperrors.RateLimited):
		return echo.NewHTTPError(http.StatusTooManyRequests, err.Error())
	case apperrors.Is(err, apperrors.Unavailable):
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	default:
		slog.Error("unexpected service error", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}
}
