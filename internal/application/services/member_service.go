package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/taskflow/core/internal/domain/entities"
	"github.com/taskflow/core/internal/infrastructure/logger"
	"github.com/taskflow/core/internal/ports"
)

// MemberService handles invitations and board membership
type MemberService struct {
	mutator   boardMutator
	boards    ports.BoardRepository
	users     ports.UserRepository
	notifier  ports.NotificationService
	activity  ports.ActivityService
	mailer    ports.Mailer
	publicURL string
	logger    *logger.Logger
}

var _ ports.MemberService = (*MemberService)(nil)

// NewMemberService creates a new member service
func NewMemberService(
	boards ports.BoardRepository,
	users ports.UserRepository,
	notifier ports.NotificationService,
	activity ports.ActivityService,
	mailer ports.Mailer,
	publicURL string,
	logger *logger.Logger,
) *MemberService {
	log := logger.WithComponent("members")
	return &MemberService{
		mutator:   boardMutator{boards: boards, logger: log},
		boards:    boards,
		users:     users,
		notifier:  notifier,
		activity:  activity,
		mailer:    mailer,
		publicURL: strings.TrimRight(publicURL, "/"),
		logger:    log,
	}
}

// InviteMember adds a pending member to the board. Only admins may invite.
func (s *MemberService) InviteMember(ctx context.Context, actor *entities.User, boardID uuid.UUID, req ports.InviteMemberRequest) (*entities.Board, error) {
	if actor == nil {
		return nil, entities.ErrAuthenticationRequired
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	name := strings.TrimSpace(req.Name)

	var inviteeID *uuid.UUID
	invitee, err := s.users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		id := invitee.ID
		inviteeID = &id
		if name == "" {
			name = invitee.DisplayName()
		}
	case !errors.Is(err, entities.ErrUserNotFound):
		return nil, fmt.Errorf("failed to look up invitee: %w", err)
	}

	var invited entities.Member
	board, err := s.mutator.mutate(ctx, boardID, func(b *entities.Board) error {
		if err := authorizeAdmin(b, actor); err != nil {
			return err
		}
		m, err := b.Invite(email, name, req.Role, inviteeID)
		if err != nil {
			return err
		}
		invited = *m
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Infow("Member invited", "board_id", board.ID, "member_id", invited.ID, "email", invited.Email, "role", invited.Role)
	s.activity.Record(ctx, actor, board, entities.ActivityMemberInvited,
		fmt.Sprintf("invited %s as %s", invited.Email, invited.Role))

	if inviteeID != nil {
		s.notifier.Notify(ctx, actor.ID, []uuid.UUID{*inviteeID}, ports.NotificationTemplate{
			Title:       "Board invitation",
			Description: fmt.Sprintf("%s invited you to join %q", actor.DisplayName(), board.Title),
			Type:        entities.NotificationInvitation,
			TargetID:    invited.ID.String(),
		})
	}
	s.mailInvitation(ctx, actor, board, invited)

	return board, nil
}

func (s *MemberService) mailInvitation(ctx context.Context, actor *entities.User, board *entities.Board, m entities.Member) {
	link := fmt.Sprintf("%s/invitations?boardId=%s&memberId=%s",
		s.publicURL, url.QueryEscape(board.ID.String()), url.QueryEscape(m.ID.String()))

	msg := ports.MailMessage{
		To:      m.Email,
		Subject: fmt.Sprintf("You're invited to %s on TaskFlow", board.Title),
		Body: fmt.Sprintf("%s invited you to collaborate on %q as %s.\n\nOpen the invitation: %s\n",
			actor.DisplayName(), board.Title, m.Role, link),
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		s.logger.Warnw("Failed to send invitation mail", "error", err, "board_id", board.ID, "member_id", m.ID)
	}
}

// RemoveMember drops a member. Admins may remove anyone; members may remove themselves.
func (s *MemberService) RemoveMember(ctx context.Context, actor *entities.User, boardID, memberID uuid.UUID) (*entities.Board, error) {
	var removed entities.Member
	board, err := s.mutator.mutate(ctx, boardID, func(b *entities.Board) error {
		if err := authorizeMember(b, actor); err != nil {
			return err
		}
		m, err := b.Member(memberID)
		if err != nil {
			return err
		}
		self := m.UserID != nil && *m.UserID == actor.ID
		if !self && !b.IsAdmin(actor.ID) {
			return entities.ErrForbidden
		}
		removed, err = b.RemoveMember(memberID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Infow("Member removed", "board_id", board.ID, "member_id", removed.ID, "by", actor.ID)
	s.activity.Record(ctx, actor, board, entities.ActivityMemberRemoved, fmt.Sprintf("removed %s", removed.Email))

	if removed.UserID != nil {
		s.notifier.Notify(ctx, actor.ID, []uuid.UUID{*removed.UserID}, ports.NotificationTemplate{
			Title:       "Removed from board",
			Description: fmt.Sprintf("%s removed you from %q", actor.DisplayName(), board.Title),
			Type:        entities.NotificationMemberRemoved,
			TargetID:    board.ID.String(),
		})
	}

	return board, nil
}

// GetInvitation returns a member record to its invitee or to any board member.
func (s *MemberService) GetInvitation(ctx context.Context, actor *entities.User, boardID, memberID uuid.UUID) (*ports.InvitationDetail, error) {
	if actor == nil {
		return nil, entities.ErrAuthenticationRequired
	}

	board, err := s.boards.GetByID(ctx, boardID)
	if err != nil {
		return nil, err
	}
	m, err := board.Member(memberID)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(m.Email, actor.Email) && !board.IsMember(actor.ID) {
		return nil, entities.ErrForbidden
	}

	return invitationDetail(board, *m), nil
}

// AcceptInvitation binds a pending invitation to the actor.
func (s *MemberService) AcceptInvitation(ctx context.Context, actor *entities.User, boardID, memberID uuid.UUID) (*ports.InvitationDetail, error) {
	if actor == nil {
		return nil, entities.ErrAuthenticationRequired
	}

	var accepted entities.Member
	board, err := s.mutator.mutate(ctx, boardID, func(b *entities.Board) error {
		m, err := b.AcceptInvitation(memberID, actor)
		if err != nil {
			return err
		}
		accepted = *m
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Infow("Invitation accepted", "board_id", board.ID, "member_id", accepted.ID, "user_id", actor.ID)
	s.activity.Record(ctx, actor, board, entities.ActivityMemberJoined, fmt.Sprintf("%s joined the board", actor.DisplayName()))
	s.notifier.Notify(ctx, actor.ID, board.AdminIDs(), ports.NotificationTemplate{
		Title:       "Invitation accepted",
		Description: fmt.Sprintf("%s joined %q", actor.DisplayName(), board.Title),
		Type:        entities.NotificationInvitationAccepted,
		TargetID:    board.ID.String(),
	})

	return invitationDetail(board, accepted), nil
}

// UpdateInvitation accepts or rejects an invitation on behalf of the invitee,
// or changes the member's role on behalf of an admin.
func (s *MemberService) UpdateInvitation(ctx context.Context, actor *entities.User, boardID, memberID uuid.UUID, req ports.UpdateInvitationRequest) (*ports.InvitationDetail, error) {
	if actor == nil {
		return nil, entities.ErrAuthenticationRequired
	}

	// A combined update must not commit the status change and then fail on the role.
	if req.Status != nil && req.Role != nil {
		board, err := s.boards.GetByID(ctx, boardID)
		if err != nil {
			return nil, err
		}
		if err := authorizeAdmin(board, actor); err != nil {
			return nil, err
		}
	}

	if req.Status != nil {
		switch *req.Status {
		case entities.MemberStatusAccepted:
			detail, err := s.AcceptInvitation(ctx, actor, boardID, memberID)
			if err != nil || req.Role == nil {
				return detail, err
			}
		case entities.MemberStatusRejected:
			if err := s.rejectInvitation(ctx, actor, boardID, memberID); err != nil {
				return nil, err
			}
			if req.Role == nil {
				return s.GetInvitation(ctx, actor, boardID, memberID)
			}
		default:
			return nil, entities.ErrInvalidStatus
		}
	}

	if req.Role != nil {
		return s.setRole(ctx, actor, boardID, memberID, *req.Role)
	}

	return s.GetInvitation(ctx, actor, boardID, memberID)
}

func (s *MemberService) rejectInvitation(ctx context.Context, actor *entities.User, boardID, memberID uuid.UUID) error {
	board, err := s.mutator.mutate(ctx, boardID, func(b *entities.Board) error {
		_, err := b.RejectInvitation(memberID, actor)
		return err
	})
	if err != nil {
		return err
	}

	s.logger.Infow("Invitation rejected", "board_id", board.ID, "member_id", memberID, "user_id", actor.ID)
	s.activity.Record(ctx, actor, board, entities.ActivityInvitationRejected, fmt.Sprintf("%s declined the invitation", actor.Email))
	return nil
}

func (s *MemberService) setRole(ctx context.Context, actor *entities.User, boardID, memberID uuid.UUID, role entities.MemberRole) (*ports.InvitationDetail, error) {
	var updated entities.Member
	board, err := s.mutator.mutate(ctx, boardID, func(b *entities.Board) error {
		if err := authorizeAdmin(b, actor); err != nil {
			return err
		}
		m, err := b.SetMemberRole(memberID, role)
		if err != nil {
			return err
		}
		updated = *m
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.activity.Record(ctx, actor, board, entities.ActivityMemberRoleChanged,
		fmt.Sprintf("changed %s to %s", updated.Email, updated.Role))
	return invitationDetail(board, updated), nil
}

// PendingInvitations lists invitations addressed to the actor's email.
func (s *MemberService) PendingInvitations(ctx context.Context, actor *entities.User) ([]ports.InvitationDetail, error) {
	if actor == nil {
		return nil, entities.ErrAuthenticationRequired
	}

	boards, err := s.boards.ListWithPendingInvite(ctx, actor.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to list invitations: %w", err)
	}

	out := []ports.InvitationDetail{}
	for _, b := range boards {
		for _, m := range b.PendingInvitationsFor(actor.Email) {
			out = append(out, *invitationDetail(b, m))
		}
	}
	return out, nil
}

func invitationDetail(board *entities.Board, m entities.Member) *ports.InvitationDetail {
	return &ports.InvitationDetail{
		BoardID:    board.ID,
		BoardTitle: board.Title,
		Member:     m,
	}
}
