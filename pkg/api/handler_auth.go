package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/omnichat/relay/pkg/auth"
)

func credentialResponse(c auth.Credential) *CredentialResponse {
	return &CredentialResponse{
		Token:     c.Token,
		ExpiresAt: c.ExpiresAt,
		User: UserResponse{
			ID:          c.User.ID,
			DisplayName: c.User.DisplayName,
			Email:       c.User.Email,
		},
	}
}

func (s *Server) registerHandler(c *echo.Context) error {
	var req RegisterRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}
	if req.Email == "" || req.Password == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "email and password are required")
	}

	cred, err := s.authSvc.Register(c.Request().Context(), req.DisplayName, req.Email, req.Password)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusCreated, credentialResponse(cred))
}

func (s *Server) loginHandler(c *echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}

	cred, err := s.authSvc.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, credentialResponse(cred))
}
