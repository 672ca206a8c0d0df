package entities

import (
	"errors"
	"fmt"
)

// ErrNotFound is wrapped by every "x not found" error so callers can classify them with errors.Is.
var ErrNotFound = errors.New("not found")

// Common errors
var (
	ErrAuthenticationRequired = errors.New("authentication required")
	ErrForbidden              = errors.New("not authorized to access this board")

	ErrBoardNotFound        = fmt.Errorf("board %w", ErrNotFound)
	ErrColumnNotFound       = fmt.Errorf("column %w", ErrNotFound)
	ErrCardNotFound         = fmt.Errorf("card %w", ErrNotFound)
	ErrMemberNotFound       = fmt.Errorf("member %w", ErrNotFound)
	ErrNotificationNotFound = fmt.Errorf("notification %w", ErrNotFound)
	ErrUserNotFound         = fmt.Errorf("user %w", ErrNotFound)

	ErrAlreadyMember         = errors.New("email is already a member of this board")
	ErrInvitationNotPending  = errors.New("invitation is no longer pending")
	ErrLastAdmin             = errors.New("board must keep at least one admin")
	ErrAssigneeNotMember     = errors.New("assignee is not a member of this board")
	ErrVersionConflict       = errors.New("board was modified concurrently")
	ErrInvalidCredentials    = errors.New("invalid credentials")
	ErrEmailTaken            = errors.New("email is already registered")
	ErrInvalidToken          = errors.New("invalid token")
	ErrAccountInactive       = errors.New("account is inactive")
	ErrInvalidRole           = errors.New("invalid member role")
	ErrInvalidStatus         = errors.New("invalid invitation status")
	ErrPasswordNotApplicable = errors.New("account is managed by an external identity provider")
	ErrBlankTitle            = errors.New("title must not be blank")
)

type MemberRole string

const (
	MemberRoleAdmin  MemberRole = "admin"
	MemberRoleMember MemberRole = "member"
)

type MemberStatus string

const (
	MemberStatusPending  MemberStatus = "pending"
	MemberStatusAccepted MemberStatus = "accepted"
	MemberStatusRejected MemberStatus = "rejected"
)

type AuthProvider string

const (
	AuthProviderLocal AuthProvider = "local"
	AuthProviderOIDC  AuthProvider = "oidc"
)

func (r MemberRole) IsValid() bool {
	switch r {
	case MemberRoleAdmin, MemberRoleMember:
		return true
	}
	return false
}

func (s MemberStatus) IsValid() bool {
	switch s {
	case MemberStatusPending, MemberStatusAccepted, MemberStatusRejected:
		return true
	}
	return false
}
