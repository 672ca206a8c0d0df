package http

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/taskflow/core/internal/domain/entities"
)

// StatusFor maps a service error onto an HTTP status code.
func StatusFor(err error) int {
	var verrs validator.ValidationErrors

	switch {
	case errors.Is(err, entities.ErrAuthenticationRequired),
		errors.Is(err, entities.ErrInvalidCredentials),
		errors.Is(err, entities.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, entities.ErrForbidden), errors.Is(err, entities.ErrAccountInactive):
		return http.StatusForbidden
	case errors.Is(err, entities.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, entities.ErrVersionConflict),
		errors.Is(err, entities.ErrAlreadyMember),
		errors.Is(err, entities.ErrEmailTaken):
		return http.StatusConflict
	case errors.Is(err, entities.ErrInvitationNotPending),
		errors.Is(err, entities.ErrLastAdmin),
		errors.Is(err, entities.ErrAssigneeNotMember),
		errors.Is(err, entities.ErrInvalidRole),
		errors.Is(err, entities.ErrInvalidStatus),
		errors.Is(err, entities.ErrPasswordNotApplicable),
		errors.Is(err, entities.ErrBlankTitle),
		errors.As(err, &verrs):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// toHTTPError converts known service errors to echo errors. Unknown errors are
// passed through so the error handler logs them and answers with a generic 500.
func toHTTPError(err error) error {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		return err
	}
	return echo.NewHTTPError(status, err.Error())
}
