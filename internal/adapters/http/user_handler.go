package http

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/taskflow/core/internal/infrastructure/logger"
	"github.com/taskflow/core/internal/ports"
)

// UserHandler serves the caller's own account.
type UserHandler struct {
	identity ports.IdentityService
	logger   *logger.Logger
}

func NewUserHandler(identity ports.IdentityService, logger *logger.Logger) *UserHandler {
	return &UserHandler{
		identity: identity,
		logger:   logger,
	}
}

// GetCurrentUser godoc
// @Summary Get the authenticated user
// @Tags users
// @Produce json
// @Success 200 {object} entities.User
// @Failure 401 {object} ErrorResponse
// @Security BearerAuth
// @Router /users/me [get]
func (h *UserHandler) GetCurrentUser(c echo.Context) error {
	user := currentUser(c)
	if user == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "Authentication required")
	}

	me, err := h.identity.CurrentUser(c.Request().Context(), user.ID)
	if err != nil {
		return toHTTPError(err)
	}

	return c.JSON(http.StatusOK, me)
}

// UpdateCurrentUser godoc
// @Summary Update name or avatar of the authenticated user
// @Tags users
// @Accept json
// @Produce json
// @Param request body ports.UpdateProfileRequest true "Profile fields"
// @Success 200 {object} entities.User
// @Failure 400 {object} ErrorResponse
// @Security BearerAuth
// @Router /users/me [put]
func (h *UserHandler) UpdateCurrentUser(c echo.Context) error {
	user := currentUser(c)
	if user == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "Authentication required")
	}

	var req ports.UpdateProfileRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	updated, err := h.identity.UpdateProfile(c.Request().Context(), user.ID, req)
	if err != nil {
		h.logger.Errorw("Update profile failed", "error", err, "user_id", user.ID)
		return toHTTPError(err)
	}

	return c.JSON(http.StatusOK, updated)
}

// ChangePassword godoc
// @Summary Change the password of a local account
// @Tags users
// @Accept json
// @Produce json
// @Param request body ports.ChangePasswordRequest true "Current and new password"
// @Success 200 {object} MessageResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Security BearerAuth
// @Router /users/me/password [put]
func (h *UserHandler) ChangePassword(c echo.Context) error {
	user := currentUser(c)
	if user == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "Authentication required")
	}

	var req ports.ChangePasswordRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if err := h.identity.ChangePassword(c.Request().Context(), user.ID, req); err != nil {
		h.logger.LogSecurityEvent("password_change_failed", user.ID.String(), c.RealIP(), map[string]interface{}{"error": err.Error()})
		return toHTTPError(err)
	}

	h.logger.LogUserAction(user.ID.String(), "password_changed", nil)
	return c.JSON(http.StatusOK, MessageResponse{Message: "Password updated"})
}
