package http

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/taskflow/core/internal/infrastructure/logger"
	"github.com/taskflow/core/internal/ports"
)

// InvitationHandler serves the invitation links sent by email. Responses use
// the {success, data, error} envelope.
type InvitationHandler struct {
	members ports.MemberService
	logger  *logger.Logger
}

func NewInvitationHandler(members ports.MemberService, logger *logger.Logger) *InvitationHandler {
	return &InvitationHandler{
		members: members,
		logger:  logger,
	}
}

func fail(c echo.Context, status int, msg string) error {
	return c.JSON(status, Envelope{Success: false, Error: msg})
}

func (h *InvitationHandler) failWith(c echo.Context, err error) error {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Errorw("Invitation request failed", "error", err, "path", c.Path())
		return fail(c, status, "Internal server error")
	}
	return fail(c, status, err.Error())
}

// invitationRef reads the boardId and memberId query parameters.
func invitationRef(c echo.Context) (uuid.UUID, uuid.UUID, bool) {
	boardID, err := uuid.Parse(c.QueryParam("boardId"))
	if err != nil {
		return uuid.Nil, uuid.Nil, false
	}
	memberID, err := uuid.Parse(c.QueryParam("memberId"))
	if err != nil {
		return uuid.Nil, uuid.Nil, false
	}
	return boardID, memberID, true
}

// GetInvitation godoc
// @Summary Get an invitation
// @Tags invitations
// @Produce json
// @Param boardId query string true "Board ID"
// @Param memberId query string true "Member ID"
// @Success 200 {object} Envelope{data=ports.InvitationDetail}
// @Failure 403 {object} Envelope
// @Failure 404 {object} Envelope
// @Security BearerAuth
// @Router /invitations [get]
func (h *InvitationHandler) GetInvitation(c echo.Context) error {
	user := currentUser(c)
	if user == nil {
		return fail(c, http.StatusUnauthorized, "Authentication required")
	}

	boardID, memberID, ok := invitationRef(c)
	if !ok {
		return fail(c, http.StatusBadRequest, "boardId and memberId are required")
	}

	detail, err := h.members.GetInvitation(c.Request().Context(), user, boardID, memberID)
	if err != nil {
		return h.failWith(c, err)
	}

	return c.JSON(http.StatusOK, Envelope{Success: true, Data: detail})
}

// AcceptInvitation godoc
// @Summary Accept an invitation addressed to the caller
// @Tags invitations
// @Produce json
// @Param boardId query string true "Board ID"
// @Param memberId query string true "Member ID"
// @Success 200 {object} Envelope{data=ports.InvitationDetail}
// @Failure 400 {object} Envelope
// @Failure 403 {object} Envelope
// @Security BearerAuth
// @Router /invitations/accept [post]
func (h *InvitationHandler) AcceptInvitation(c echo.Context) error {
	user := currentUser(c)
	if user == nil {
		return fail(c, http.StatusUnauthorized, "Authentication required")
	}

	boardID, memberID, ok := invitationRef(c)
	if !ok {
		return fail(c, http.StatusBadRequest, "boardId and memberId are required")
	}

	detail, err := h.members.AcceptInvitation(c.Request().Context(), user, boardID, memberID)
	if err != nil {
		return h.failWith(c, err)
	}

	h.logger.LogUserAction(user.ID.String(), "invitation_accepted", map[string]interface{}{"board_id": boardID})
	return c.JSON(http.StatusOK, Envelope{Success: true, Data: detail})
}

// UpdateInvitation godoc
// @Summary Accept, reject or change the role of an invitation
// @Tags invitations
// @Accept json
// @Produce json
// @Param boardId query string true "Board ID"
// @Param memberId query string true "Member ID"
// @Param request body ports.UpdateInvitationRequest true "New status or role"
// @Success 200 {object} Envelope{data=ports.InvitationDetail}
// @Failure 400 {object} Envelope
// @Failure 403 {object} Envelope
// @Security BearerAuth
// @Router /invitations [put]
func (h *InvitationHandler) UpdateInvitation(c echo.Context) error {
	user := currentUser(c)
	if user == nil {
		return fail(c, http.StatusUnauthorized, "Authentication required")
	}

	boardID, memberID, ok := invitationRef(c)
	if !ok {
		return fail(c, http.StatusBadRequest, "boardId and memberId are required")
	}

	var req ports.UpdateInvitationRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "Invalid request format")
	}
	if err := c.Validate(&req); err != nil {
		return fail(c, http.StatusBadRequest, err.Error())
	}
	if req.Status == nil && req.Role == nil {
		return fail(c, http.StatusBadRequest, "status or role is required")
	}

	detail, err := h.members.UpdateInvitation(c.Request().Context(), user, boardID, memberID, req)
	if err != nil {
		return h.failWith(c, err)
	}

	return c.JSON(http.StatusOK, Envelope{Success: true, Data: detail})
}
