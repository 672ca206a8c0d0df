package ports

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/taskflow/core/internal/domain/entities"
)

// IdentityService covers accounts, sessions and the current user's profile.
type IdentityService interface {
	Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error)
	Login(ctx context.Context, req LoginRequest) (*AuthResponse, error)
	RefreshToken(ctx context.Context, refreshToken string) (*AuthResponse, error)
	Logout(ctx context.Context, userID uuid.UUID) error
	Authenticate(ctx context.Context, token string) (*entities.User, error)
	RequestPasswordReset(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, req ResetPasswordRequest) error
	CurrentUser(ctx context.Context, userID uuid.UUID) (*entities.User, error)
	UpdateProfile(ctx context.Context, userID uuid.UUID, req UpdateProfileRequest) (*entities.User, error)
	ChangePassword(ctx context.Context, userID uuid.UUID, req ChangePasswordRequest) error
}

// BoardService covers boards, columns and cards. Every call is made on behalf of actor.
type BoardService interface {
	ListBoards(ctx context.Context, actor *entities.User) ([]*entities.Board, error)
	GetBoard(ctx context.Context, actor *entities.User, id uuid.UUID) (*entities.Board, error)
	CreateBoard(ctx context.Context, actor *entities.User, req CreateBoardRequest) (*entities.Board, error)
	UpdateBoard(ctx context.Context, actor *entities.User, id uuid.UUID, req UpdateBoardRequest) (*entities.Board, error)
	DeleteBoard(ctx context.Context, actor *entities.User, id uuid.UUID) error

	AddColumn(ctx context.Context, actor *entities.User, boardID uuid.UUID, req AddColumnRequest) (*entities.Board, error)
	UpdateColumn(ctx context.Context, actor *entities.User, boardID, columnID uuid.UUID, req UpdateColumnRequest) (*entities.Board, error)
	DeleteColumn(ctx context.Context, actor *entities.User, boardID, columnID uuid.UUID) (*entities.Board, error)
	MoveColumn(ctx context.Context, actor *entities.User, boardID, columnID uuid.UUID, toIndex int) (*entities.Board, error)

	AddCard(ctx context.Context, actor *entities.User, boardID uuid.UUID, req AddCardRequest) (*entities.Board, error)
	UpdateCard(ctx context.Context, actor *entities.User, boardID, cardID uuid.UUID, req UpdateCardRequest) (*entities.Board, error)
	DeleteCard(ctx context.Context, actor *entities.User, boardID, cardID uuid.UUID) (*entities.Board, error)
	MoveCard(ctx context.Context, actor *entities.User, boardID uuid.UUID, req MoveCardRequest) (*entities.Board, error)
}

// MemberService covers invitations and membership.
type MemberService interface {
	InviteMember(ctx context.Context, actor *entities.User, boardID uuid.UUID, req InviteMemberRequest) (*entities.Board, error)
	RemoveMember(ctx context.Context, actor *entities.User, boardID, memberID uuid.UUID) (*entities.Board, error)
	GetInvitation(ctx context.Context, actor *entities.User, boardID, memberID uuid.UUID) (*InvitationDetail, error)
	AcceptInvitation(ctx context.Context, actor *entities.User, boardID, memberID uuid.UUID) (*InvitationDetail, error)
	UpdateInvitation(ctx context.Context, actor *entities.User, boardID, memberID uuid.UUID, req UpdateInvitationRequest) (*InvitationDetail, error)
	PendingInvitations(ctx context.Context, actor *entities.User) ([]InvitationDetail, error)
}

// NotificationService covers the per-user inbox.
type NotificationService interface {
	Notify(ctx context.Context, actorID uuid.UUID, recipients []uuid.UUID, tmpl NotificationTemplate)
	List(ctx context.Context, userID uuid.UUID, filter NotificationFilter) ([]*entities.Notification, error)
	UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error)
	MarkRead(ctx context.Context, userID, id uuid.UUID) (*entities.Notification, error)
	MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error)
}

// ActivityService records and reads the audit feed.
type ActivityService interface {
	Record(ctx context.Context, actor *entities.User, board *entities.Board, typ entities.ActivityType, description string)
	Feed(ctx context.Context, actor *entities.User, boardID *uuid.UUID, limit int) ([]*entities.Activity, error)
}

// DashboardService aggregates per-user statistics.
type DashboardService interface {
	Stats(ctx context.Context, actor *entities.User) (*DashboardStats, error)
}

// Mailer delivers transactional email.
type Mailer interface {
	Send(ctx context.Context, msg MailMessage) error
}

// NotificationPublisher pushes stored notifications to live subscribers.
type NotificationPublisher interface {
	Publish(ctx context.Context, n *entities.Notification) error
}

// NotificationSubscriber streams notifications for one user until ctx is done.
type NotificationSubscriber interface {
	Subscribe(ctx context.Context, userID uuid.UUID) (<-chan *entities.Notification, error)
}

// IdentityVerifier validates tokens issued by an external identity provider.
type IdentityVerifier interface {
	Verify(token string) (*ExternalIdentity, error)
}

// ExternalIdentity is what the identity provider asserts about a caller.
type ExternalIdentity struct {
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
	Picture       string
}

// Request/Response DTOs
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Name     string `json:"name" validate:"required,min=1,max=100"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type ResetPasswordRequest struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required,min=8"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=8"`
}

type UpdateProfileRequest struct {
	Name      *string `json:"name,omitempty" validate:"omitempty,min=1,max=100"`
	AvatarURL *string `json:"avatarUrl,omitempty" validate:"omitempty,max=500"`
}

type AuthResponse struct {
	AccessToken  string         `json:"accessToken"`
	RefreshToken string         `json:"refreshToken"`
	TokenType    string         `json:"tokenType"`
	ExpiresIn    int64          `json:"expiresIn"`
	User         *entities.User `json:"user"`
}

// Claims are the fields carried by locally issued access tokens.
type Claims struct {
	UserID string
	Email  string
}

type CreateBoardRequest struct {
	Title       string `json:"title" validate:"required,min=1,max=200"`
	Description string `json:"description" validate:"max=2000"`
	Background  string `json:"background" validate:"max=200"`
}

type UpdateBoardRequest struct {
	Title       *string `json:"title,omitempty" validate:"omitempty,min=1,max=200"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=2000"`
	Background  *string `json:"background,omitempty" validate:"omitempty,max=200"`
	Starred     *bool   `json:"starred,omitempty"`
}

type AddColumnRequest struct {
	Title string `json:"title" validate:"required,min=1,max=100"`
}

type UpdateColumnRequest struct {
	Title string `json:"title" validate:"required,min=1,max=100"`
}

type AddCardRequest struct {
	ColumnID    uuid.UUID  `json:"columnId" validate:"required"`
	Title       string     `json:"title" validate:"required,min=1,max=200"`
	Description string     `json:"description" validate:"max=5000"`
	AssigneeID  *uuid.UUID `json:"assigneeId,omitempty"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
	Labels      []string   `json:"labels,omitempty" validate:"max=20,dive,min=1,max=50"`
}

// UpdateCardRequest is a partial update. ClearAssignee and ClearDueDate unset the fields.
type UpdateCardRequest struct {
	Title         *string    `json:"title,omitempty" validate:"omitempty,min=1,max=200"`
	Description   *string    `json:"description,omitempty" validate:"omitempty,max=5000"`
	AssigneeID    *uuid.UUID `json:"assigneeId,omitempty"`
	ClearAssignee bool       `json:"clearAssignee,omitempty"`
	DueDate       *time.Time `json:"dueDate,omitempty"`
	ClearDueDate  bool       `json:"clearDueDate,omitempty"`
	Labels        []string   `json:"labels,omitempty" validate:"omitempty,max=20,dive,min=1,max=50"`
}

type MoveCardRequest struct {
	CardID     uuid.UUID `json:"cardId" validate:"required"`
	ToColumnID uuid.UUID `json:"toColumnId" validate:"required"`
	ToIndex    int       `json:"toIndex" validate:"min=0"`
}

type InviteMemberRequest struct {
	Email string              `json:"email" validate:"required,email"`
	Name  string              `json:"name" validate:"max=100"`
	Role  entities.MemberRole `json:"role" validate:"omitempty,oneof=admin member"`
}

type UpdateInvitationRequest struct {
	Status *entities.MemberStatus `json:"status,omitempty" validate:"omitempty,oneof=accepted rejected"`
	Role   *entities.MemberRole   `json:"role,omitempty" validate:"omitempty,oneof=admin member"`
}

// InvitationDetail is a member record together with the board it belongs to.
type InvitationDetail struct {
	BoardID    uuid.UUID       `json:"boardId"`
	BoardTitle string          `json:"boardTitle"`
	Member     entities.Member `json:"member"`
}

// NotificationTemplate is fanned out into one notification per recipient.
type NotificationTemplate struct {
	Title       string
	Description string
	Type        entities.NotificationType
	TargetID    string
}

type MailMessage struct {
	To      string
	Subject string
	Body    string
}

type DashboardStats struct {
	TotalBoards         int   `json:"totalBoards"`
	StarredBoards       int   `json:"starredBoards"`
	TotalColumns        int   `json:"totalColumns"`
	TotalCards          int   `json:"totalCards"`
	AssignedToMe        int   `json:"assignedToMe"`
	OverdueCards        int   `json:"overdueCards"`
	DueSoonCards        int   `json:"dueSoonCards"`
	UnreadNotifications int64 `json:"unreadNotifications"`
	PendingInvitations  int   `json:"pendingInvitations"`
}
