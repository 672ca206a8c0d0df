package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskflow/core/internal/domain/entities"
	"github.com/taskflow/core/internal/ports"
)

func TestDashboardStats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.user(t, "owner@example.com")
	other := f.user(t, "other@example.com")

	board := f.board(t, owner, "Todo", "Done")
	starred := true
	_, err := f.boards.UpdateBoard(ctx, owner, board.ID, ports.UpdateBoardRequest{Starred: &starred})
	require.NoError(t, err)

	now := time.Now()
	overdue, soon, later := now.Add(-time.Hour), now.Add(48*time.Hour), now.Add(30*24*time.Hour)
	for _, req := range []ports.AddCardRequest{
		{ColumnID: board.Columns[0].ID, Title: "late", DueDate: &overdue, AssigneeID: &owner.ID},
		{ColumnID: board.Columns[0].ID, Title: "soon", DueDate: &soon},
		{ColumnID: board.Columns[1].ID, Title: "later", DueDate: &later},
	} {
		_, err := f.boards.AddCard(ctx, owner, board.ID, req)
		require.NoError(t, err)
	}

	otherBoard := f.board(t, other)
	_, err = f.members.InviteMember(ctx, other, otherBoard.ID, ports.InviteMemberRequest{Email: owner.Email})
	require.NoError(t, err)

	stats, err := f.dashboard.Stats(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, ports.DashboardStats{
		TotalBoards:         1,
		StarredBoards:       1,
		TotalColumns:        2,
		TotalCards:          3,
		AssignedToMe:        1,
		OverdueCards:        1,
		DueSoonCards:        1,
		UnreadNotifications: 1,
		PendingInvitations:  1,
	}, *stats)

	_, err = f.dashboard.Stats(ctx, nil)
	assert.ErrorIs(t, err, entities.ErrAuthenticationRequired)
}
