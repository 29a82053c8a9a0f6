package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"
)

func (s *Server) uploadGrantHandler(c *echo.Context) error {
	var req UploadGrantRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}

	ctx := c.Request().Context()
	grant, err := s.uploadsBroker.Grant(ctx, requestUserID(c), req.Filename, req.MimeType, req.Size)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, &UploadGrantResponse{
		Key: grant.ObjectKey, PutURL: grant.WriteURL, ExpiresAt: grant.ExpiresAt,
	})
}

func (s *Server) uploadConfirmHandler(c *echo.Context) error {
	var req UploadConfirmRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}
	if req.Key == "" || req.Author == "" || req.ConversationContext == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "key, author, and conversationContext are required")
	}

	confirmation, err := s.uploadsBroker.Confirm(c.Request().Context(), req.Key, req.Author, req.ConversationContext, req.AgentKey, req.Filename, req.SizeBytes)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, &UploadConfirmResponse{
		Message: messageToResponse(confirmation.Message), ReadURL: confirmation.ReadURL,
	})
}
