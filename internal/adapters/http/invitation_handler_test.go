package http

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskflow/core/internal/adapters/repository/memory"
	"github.com/taskflow/core/internal/application/services"
	"github.com/taskflow/core/internal/domain/entities"
	"github.com/taskflow/core/internal/infrastructure/logger"
	"github.com/taskflow/core/internal/infrastructure/mailer"
	"github.com/taskflow/core/internal/ports"
)

type invitationSetup struct {
	store   *memory.Store
	members *services.MemberService
	handler *InvitationHandler
	board   *entities.Board
	owner   *entities.User
}

func newInvitationSetup(t *testing.T) *invitationSetup {
	t.Helper()
	ctx := context.Background()
	log := logger.NewNop()
	store := memory.NewStore()

	notifications := services.NewNotificationService(store.Notifications(), nil, log)
	activity := services.NewActivityService(store.Activities(), store.Boards(), log)
	boards := services.NewBoardService(store.Boards(), notifications, activity, log)
	members := services.NewMemberService(store.Boards(), store.Users(), notifications, activity, mailer.NewLogMailer(log), "https://taskflow.test", log)

	s := &invitationSetup{store: store, members: members, handler: NewInvitationHandler(members, log)}
	s.owner = s.user(t, "owner@example.com")

	board, err := boards.CreateBoard(ctx, s.owner, ports.CreateBoardRequest{Title: "Shared"})
	require.NoError(t, err)
	s.board = board
	return s
}

func (s *invitationSetup) user(t *testing.T, email string) *entities.User {
	t.Helper()
	u := &entities.User{ID: uuid.New(), Email: email, Name: email, IsActive: true, Provider: entities.AuthProviderLocal}
	require.NoError(t, s.store.Users().Create(context.Background(), u))
	return u
}

func (s *invitationSetup) invite(t *testing.T, email string) uuid.UUID {
	t.Helper()
	board, err := s.members.InviteMember(context.Background(), s.owner, s.board.ID, ports.InviteMemberRequest{Email: email})
	require.NoError(t, err)
	for _, m := range board.Members {
		if m.Email == email {
			return m.ID
		}
	}
	t.Fatalf("no member record for %s", email)
	return uuid.Nil
}

func (s *invitationSetup) router(actor *entities.User) *echo.Echo {
	e := newEcho()
	g := e.Group("/api/v1/invitations", as(actor))
	g.GET("", s.handler.GetInvitation)
	g.POST("/accept", s.handler.AcceptInvitation)
	g.PUT("", s.handler.UpdateInvitation)
	return e
}

func decodeEnvelope(t *testing.T, body []byte) (Envelope, map[string]interface{}) {
	t.Helper()
	var env struct {
		Envelope
		Data map[string]interface{} `json:"data"`
	}
	require.NoError(t, sonic.Unmarshal(body, &env))
	return env.Envelope, env.Data
}

func TestInvitationVisibility(t *testing.T) {
	s := newInvitationSetup(t)
	guest := s.user(t, "guest@example.com")
	stranger := s.user(t, "stranger@example.com")
	memberID := s.invite(t, guest.Email)
	target := fmt.Sprintf("/api/v1/invitations?boardId=%s&memberId=%s", s.board.ID, memberID)

	rec := do(s.router(guest), http.MethodGet, target, "")
	require.Equal(t, http.StatusOK, rec.Code)
	env, data := decodeEnvelope(t, rec.Body.Bytes())
	assert.True(t, env.Success)
	assert.Equal(t, "Shared", data["boardTitle"])

	rec = do(s.router(s.owner), http.MethodGet, target, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(s.router(stranger), http.MethodGet, target, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	env, _ = decodeEnvelope(t, rec.Body.Bytes())
	assert.False(t, env.Success)
	assert.NotEmpty(t, env.Error)

	rec = do(s.router(nil), http.MethodGet, target, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(s.router(guest), http.MethodGet, "/api/v1/invitations?boardId=nope", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAcceptInvitation(t *testing.T) {
	s := newInvitationSetup(t)
	guest := s.user(t, "guest@example.com")
	memberID := s.invite(t, guest.Email)
	target := fmt.Sprintf("/api/v1/invitations/accept?boardId=%s&memberId=%s", s.board.ID, memberID)

	rec := do(s.router(s.owner), http.MethodPost, target, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(s.router(guest), http.MethodPost, target, "")
	require.Equal(t, http.StatusOK, rec.Code)
	_, data := decodeEnvelope(t, rec.Body.Bytes())
	member := data["member"].(map[string]interface{})
	assert.Equal(t, string(entities.MemberStatusAccepted), member["status"])
	assert.Equal(t, guest.ID.String(), member["userId"])

	board, err := s.store.Boards().GetByID(context.Background(), s.board.ID)
	require.NoError(t, err)
	assert.Contains(t, board.MemberIDs, guest.ID)

	rec = do(s.router(guest), http.MethodPost, target, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateInvitation(t *testing.T) {
	s := newInvitationSetup(t)
	guest := s.user(t, "guest@example.com")
	memberID := s.invite(t, guest.Email)
	target := fmt.Sprintf("/api/v1/invitations?boardId=%s&memberId=%s", s.board.ID, memberID)

	rec := do(s.router(guest), http.MethodPut, target, `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(s.router(guest), http.MethodPut, target, `{"status":"pending"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(s.router(s.owner), http.MethodPut, target, `{"role":"admin"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(s.router(guest), http.MethodPut, target, `{"status":"rejected"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	_, data := decodeEnvelope(t, rec.Body.Bytes())
	member := data["member"].(map[string]interface{})
	assert.Equal(t, string(entities.MemberStatusRejected), member["status"])
	assert.Equal(t, string(entities.MemberRoleAdmin), member["role"])
}
