package graphql

import (
	"errors"

	"github.com/go-playground/validator/v10"

	"github.com/taskflow/core/internal/domain/entities"
)

// Error codes reported in extensions.code.
const (
	CodeUnauthenticated = "UNAUTHENTICATED"
	CodeForbidden       = "FORBIDDEN"
	CodeNotFound        = "NOT_FOUND"
	CodeBadUserInput    = "BAD_USER_INPUT"
	CodeConflict        = "CONFLICT"
	CodeInternal        = "INTERNAL"
)

// Error is a resolver error that carries its code to the client.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Extensions is picked up by graphql-go when formatting the response.
func (e *Error) Extensions() map[string]interface{} {
	return map[string]interface{}{"code": e.Code}
}

func badInput(msg string) *Error {
	return &Error{Code: CodeBadUserInput, Message: msg}
}

// classify maps a service error onto a client-facing error. The second result
// is false when the error is unexpected and its detail must stay in the logs.
func classify(err error) (*Error, bool) {
	var gqlErr *Error
	if errors.As(err, &gqlErr) {
		return gqlErr, true
	}

	var verrs validator.ValidationErrors
	switch {
	case errors.Is(err, entities.ErrAuthenticationRequired):
		return &Error{Code: CodeUnauthenticated, Message: err.Error()}, true
	case errors.Is(err, entities.ErrForbidden), errors.Is(err, entities.ErrAccountInactive):
		return &Error{Code: CodeForbidden, Message: err.Error()}, true
	case errors.Is(err, entities.ErrNotFound):
		return &Error{Code: CodeNotFound, Message: err.Error()}, true
	case errors.Is(err, entities.ErrVersionConflict), errors.Is(err, entities.ErrAlreadyMember):
		return &Error{Code: CodeConflict, Message: err.Error()}, true
	case errors.Is(err, entities.ErrInvitationNotPending),
		errors.Is(err, entities.ErrLastAdmin),
		errors.Is(err, entities.ErrAssigneeNotMember),
		errors.Is(err, entities.ErrInvalidRole),
		errors.Is(err, entities.ErrInvalidStatus),
		errors.Is(err, entities.ErrInvalidCredentials),
		errors.Is(err, entities.ErrPasswordNotApplicable),
		errors.Is(err, entities.ErrBlankTitle):
		return &Error{Code: CodeBadUserInput, Message: err.Error()}, true
	case errors.As(err, &verrs):
		return &Error{Code: CodeBadUserInput, Message: "validation failed: " + verrs.Error()}, true
	}

	return &Error{Code: CodeInternal, Message: "internal server error"}, false
}
