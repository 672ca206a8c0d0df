package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskflow/core/internal/domain/entities"
	"github.com/taskflow/core/internal/ports"
)

func memberByEmail(t *testing.T, b *entities.Board, email string) entities.Member {
	t.Helper()
	for _, m := range b.Members {
		if m.Email == email {
			return m
		}
	}
	t.Fatalf("no member %s on board", email)
	return entities.Member{}
}

func TestInviteMemberCreatesPendingInvitation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.user(t, "owner@example.com")
	guest := f.user(t, "guest@example.com")
	board := f.board(t, owner)

	board, err := f.members.InviteMember(ctx, owner, board.ID, ports.InviteMemberRequest{Email: " Guest@Example.com "})
	require.NoError(t, err)

	m := memberByEmail(t, board, "guest@example.com")
	assert.Equal(t, entities.MemberRoleMember, m.Role)
	assert.Equal(t, entities.MemberStatusPending, m.Status)
	assert.Equal(t, guest.ID, *m.UserID)
	assert.NotContains(t, board.MemberIDs, guest.ID)

	_, err = f.members.InviteMember(ctx, owner, board.ID, ports.InviteMemberRequest{Email: "guest@example.com"})
	assert.ErrorIs(t, err, entities.ErrAlreadyMember)

	inbox := f.inbox(t, guest.ID)
	require.Len(t, inbox, 1)
	assert.Equal(t, entities.NotificationInvitation, inbox[0].Type)
	assert.Equal(t, m.ID.String(), inbox[0].TargetID)

	msg, ok := f.mailer.last()
	require.True(t, ok)
	assert.Equal(t, "guest@example.com", msg.To)
	assert.Contains(t, msg.Body, testPublicURL+"/invitations?boardId="+board.ID.String()+"&memberId="+m.ID.String())
}

func TestInviteUnknownEmailStillMails(t *testing.T) {
	f := newFixture(t)
	owner := f.user(t, "owner@example.com")
	board := f.board(t, owner)

	board, err := f.members.InviteMember(context.Background(), owner, board.ID, ports.InviteMemberRequest{
		Email: "new@example.com", Role: entities.MemberRoleAdmin,
	})
	require.NoError(t, err)

	m := memberByEmail(t, board, "new@example.com")
	assert.Nil(t, m.UserID)
	assert.Equal(t, entities.MemberRoleAdmin, m.Role)
	_, ok := f.mailer.last()
	assert.True(t, ok)
}

func TestInviteSurvivesMailFailure(t *testing.T) {
	f := newFixture(t)
	owner := f.user(t, "owner@example.com")
	board := f.board(t, owner)
	f.mailer.err = errMailDown

	_, err := f.members.InviteMember(context.Background(), owner, board.ID, ports.InviteMemberRequest{Email: "new@example.com"})
	assert.NoError(t, err)
}

func TestInviteRequiresAdmin(t *testing.T) {
	f := newFixture(t)
	owner := f.user(t, "owner@example.com")
	member := f.user(t, "member@example.com")
	board := f.board(t, owner)
	f.join(t, owner, member, board.ID)

	_, err := f.members.InviteMember(context.Background(), member, board.ID, ports.InviteMemberRequest{Email: "x@example.com"})
	assert.ErrorIs(t, err, entities.ErrForbidden)
}

func TestAcceptInvitation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.user(t, "owner@example.com")
	guest := f.user(t, "guest@example.com")
	other := f.user(t, "other@example.com")
	board := f.board(t, owner)

	board, err := f.members.InviteMember(ctx, owner, board.ID, ports.InviteMemberRequest{Email: guest.Email})
	require.NoError(t, err)
	m := memberByEmail(t, board, guest.Email)

	_, err = f.members.AcceptInvitation(ctx, other, board.ID, m.ID)
	assert.ErrorIs(t, err, entities.ErrForbidden)

	detail, err := f.members.AcceptInvitation(ctx, guest, board.ID, m.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.MemberStatusAccepted, detail.Member.Status)
	assert.NotNil(t, detail.Member.JoinedAt)
	assert.Equal(t, "Test Board", detail.BoardTitle)

	_, err = f.members.AcceptInvitation(ctx, guest, board.ID, m.ID)
	assert.ErrorIs(t, err, entities.ErrInvitationNotPending)

	stored, err := f.boards.GetBoard(ctx, guest, board.ID)
	require.NoError(t, err)
	assert.Contains(t, stored.MemberIDs, guest.ID)

	inbox := f.inbox(t, owner.ID)
	require.Len(t, inbox, 1)
	assert.Equal(t, entities.NotificationInvitationAccepted, inbox[0].Type)
	assert.Equal(t, board.ID.String(), inbox[0].TargetID)
}

func TestRejectAndReinvite(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.user(t, "owner@example.com")
	guest := f.user(t, "guest@example.com")
	board := f.board(t, owner)

	board, err := f.members.InviteMember(ctx, owner, board.ID, ports.InviteMemberRequest{Email: guest.Email})
	require.NoError(t, err)
	m := memberByEmail(t, board, guest.Email)

	rejected := entities.MemberStatusRejected
	detail, err := f.members.UpdateInvitation(ctx, guest, board.ID, m.ID, ports.UpdateInvitationRequest{Status: &rejected})
	require.NoError(t, err)
	assert.Equal(t, entities.MemberStatusRejected, detail.Member.Status)

	board, err = f.members.InviteMember(ctx, owner, board.ID, ports.InviteMemberRequest{Email: guest.Email})
	require.NoError(t, err)
	reopened := memberByEmail(t, board, guest.Email)
	assert.Equal(t, m.ID, reopened.ID)
	assert.Equal(t, entities.MemberStatusPending, reopened.Status)
	assert.Len(t, board.Members, 2)
}

func TestUpdateInvitation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.user(t, "owner@example.com")
	guest := f.user(t, "guest@example.com")
	board := f.board(t, owner)

	board, err := f.members.InviteMember(ctx, owner, board.ID, ports.InviteMemberRequest{Email: guest.Email})
	require.NoError(t, err)
	m := memberByEmail(t, board, guest.Email)

	pending := entities.MemberStatusPending
	_, err = f.members.UpdateInvitation(ctx, guest, board.ID, m.ID, ports.UpdateInvitationRequest{Status: &pending})
	assert.ErrorIs(t, err, entities.ErrInvalidStatus)

	admin := entities.MemberRoleAdmin
	_, err = f.members.UpdateInvitation(ctx, guest, board.ID, m.ID, ports.UpdateInvitationRequest{Role: &admin})
	assert.ErrorIs(t, err, entities.ErrForbidden)

	accepted := entities.MemberStatusAccepted
	detail, err := f.members.UpdateInvitation(ctx, guest, board.ID, m.ID, ports.UpdateInvitationRequest{Status: &accepted})
	require.NoError(t, err)
	assert.Equal(t, entities.MemberStatusAccepted, detail.Member.Status)

	detail, err = f.members.UpdateInvitation(ctx, owner, board.ID, m.ID, ports.UpdateInvitationRequest{Role: &admin})
	require.NoError(t, err)
	assert.Equal(t, entities.MemberRoleAdmin, detail.Member.Role)
}

func TestUpdateInvitationWithRoleIsAllOrNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.user(t, "owner@example.com")
	guest := f.user(t, "guest@example.com")
	board := f.board(t, owner)

	board, err := f.members.InviteMember(ctx, owner, board.ID, ports.InviteMemberRequest{Email: guest.Email})
	require.NoError(t, err)
	m := memberByEmail(t, board, guest.Email)

	accepted := entities.MemberStatusAccepted
	admin := entities.MemberRoleAdmin
	_, err = f.members.UpdateInvitation(ctx, guest, board.ID, m.ID, ports.UpdateInvitationRequest{Status: &accepted, Role: &admin})
	assert.ErrorIs(t, err, entities.ErrForbidden)

	stored, err := f.store.Boards().GetByID(ctx, board.ID)
	require.NoError(t, err)
	after := memberByEmail(t, stored, guest.Email)
	assert.Equal(t, entities.MemberStatusPending, after.Status)
	assert.Equal(t, entities.MemberRoleMember, after.Role)
	assert.Equal(t, board.Version, stored.Version)
}

func TestLastAdminCannotBeDemoted(t *testing.T) {
	f := newFixture(t)
	owner := f.user(t, "owner@example.com")
	board := f.board(t, owner)

	member := entities.MemberRoleMember
	_, err := f.members.UpdateInvitation(context.Background(), owner, board.ID, board.Members[0].ID,
		ports.UpdateInvitationRequest{Role: &member})
	assert.ErrorIs(t, err, entities.ErrLastAdmin)
}

func TestRemoveMember(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.user(t, "owner@example.com")
	alice := f.user(t, "alice@example.com")
	bob := f.user(t, "bob@example.com")
	board := f.board(t, owner, "Todo")
	f.join(t, owner, alice, board.ID)
	board = f.join(t, owner, bob, board.ID)

	board, err := f.boards.AddCard(ctx, owner, board.ID, ports.AddCardRequest{
		ColumnID: board.Columns[0].ID, Title: "x", AssigneeID: &alice.ID,
	})
	require.NoError(t, err)

	aliceMember := memberByEmail(t, board, alice.Email)
	bobMember := memberByEmail(t, board, bob.Email)

	_, err = f.members.RemoveMember(ctx, bob, board.ID, aliceMember.ID)
	assert.ErrorIs(t, err, entities.ErrForbidden)

	board, err = f.members.RemoveMember(ctx, bob, board.ID, bobMember.ID)
	require.NoError(t, err)
	assert.NotContains(t, board.MemberIDs, bob.ID)

	board, err = f.members.RemoveMember(ctx, owner, board.ID, aliceMember.ID)
	require.NoError(t, err)
	assert.Nil(t, board.Columns[0].Cards[0].AssigneeID)

	var removed bool
	for _, n := range f.inbox(t, alice.ID) {
		removed = removed || n.Type == entities.NotificationMemberRemoved
	}
	assert.True(t, removed)

	_, err = f.members.RemoveMember(ctx, owner, board.ID, board.Members[0].ID)
	assert.ErrorIs(t, err, entities.ErrLastAdmin)

	_, err = f.members.RemoveMember(ctx, owner, board.ID, uuid.New())
	assert.ErrorIs(t, err, entities.ErrMemberNotFound)
}

func TestInvitationVisibility(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.user(t, "owner@example.com")
	guest := f.user(t, "guest@example.com")
	stranger := f.user(t, "stranger@example.com")
	board := f.board(t, owner)

	board, err := f.members.InviteMember(ctx, owner, board.ID, ports.InviteMemberRequest{Email: guest.Email})
	require.NoError(t, err)
	m := memberByEmail(t, board, guest.Email)

	_, err = f.members.GetInvitation(ctx, guest, board.ID, m.ID)
	assert.NoError(t, err)
	_, err = f.members.GetInvitation(ctx, owner, board.ID, m.ID)
	assert.NoError(t, err)
	_, err = f.members.GetInvitation(ctx, stranger, board.ID, m.ID)
	assert.ErrorIs(t, err, entities.ErrForbidden)
	_, err = f.members.GetInvitation(ctx, nil, board.ID, m.ID)
	assert.ErrorIs(t, err, entities.ErrAuthenticationRequired)

	pending, err := f.members.PendingInvitations(ctx, guest)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, board.ID, pending[0].BoardID)

	pending, err = f.members.PendingInvitations(ctx, stranger)
	require.NoError(t, err)
	assert.Empty(t, pending)
}
