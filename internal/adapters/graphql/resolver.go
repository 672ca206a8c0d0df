package graphql

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/graphql-go/graphql"

	"github.com/taskflow/core/internal/domain/entities"
	"github.com/taskflow/core/internal/infrastructure/logger"
	"github.com/taskflow/core/internal/ports"
)

// Services are the application services the schema resolves against.
type Services struct {
	Identity      ports.IdentityService
	Boards        ports.BoardService
	Members       ports.MemberService
	Notifications ports.NotificationService
	Activity      ports.ActivityService
	Dashboard     ports.DashboardService
}

// Resolver holds the field resolvers of the schema.
type Resolver struct {
	svc      Services
	validate *validator.Validate
	logger   *logger.Logger
}

type resolveFunc func(p graphql.ResolveParams, actor *entities.User) (interface{}, error)

// wrap injects the authenticated user and turns service errors into coded errors.
func (r *Resolver) wrap(fn resolveFunc) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (interface{}, error) {
		actor := ports.UserFromContext(p.Context)

		out, err := fn(p, actor)
		if err != nil {
			gqlErr, known := classify(err)
			if !known {
				r.logger.Errorw("GraphQL resolver failed", "error", err, "field", p.Info.FieldName, "path", p.Info.Path.AsArray())
			}
			return nil, gqlErr
		}
		return emptyIfNil(out), nil
	}
}

// authenticated rejects anonymous callers before fn runs.
func (r *Resolver) authenticated(fn resolveFunc) graphql.FieldResolveFn {
	return r.wrap(func(p graphql.ResolveParams, actor *entities.User) (interface{}, error) {
		if actor == nil {
			return nil, entities.ErrAuthenticationRequired
		}
		return fn(p, actor)
	})
}

func (r *Resolver) check(req interface{}) error {
	return r.validate.Struct(req)
}

// Argument helpers

func argID(args map[string]interface{}, name string) (uuid.UUID, error) {
	s, _ := args[name].(string)
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, badInput(fmt.Sprintf("%s must be a valid id", name))
	}
	return id, nil
}

func optID(args map[string]interface{}, name string) (*uuid.UUID, error) {
	if _, ok := args[name]; !ok || args[name] == nil {
		return nil, nil
	}
	id, err := argID(args, name)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func argString(args map[string]interface{}, name string) string {
	s, _ := args[name].(string)
	return s
}

func optString(args map[string]interface{}, name string) *string {
	s, ok := args[name].(string)
	if !ok {
		return nil
	}
	return &s
}

func optBool(args map[string]interface{}, name string) *bool {
	b, ok := args[name].(bool)
	if !ok {
		return nil
	}
	return &b
}

func argInt(args map[string]interface{}, name string) int {
	n, _ := args[name].(int)
	return n
}

func optTime(args map[string]interface{}, name string) *time.Time {
	switch t := args[name].(type) {
	case time.Time:
		return &t
	case *time.Time:
		return t
	}
	return nil
}

func stringList(args map[string]interface{}, name string) []string {
	raw, ok := args[name].([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// Queries

func (r *Resolver) boards(p graphql.ResolveParams, actor *entities.User) (interface{}, error) {
	return r.svc.Boards.ListBoards(p.Context, actor)
}

func (r *Resolver) board(p graphql.ResolveParams, actor *entities.User) (interface{}, error) {
	id, err := argID(p.Args, "id")
	if err != nil {
		return nil, err
	}
	return r.svc.Boards.GetBoard(p.Context, actor, id)
}

func (r *Resolver) me(p graphql.ResolveParams, actor *entities.User) (interface{}, error) {
	return r.svc.Identity.CurrentUser(p.Context, actor.ID)
}

func (r *Resolver) notifications(p graphql.ResolveParams, actor *entities.User) (interface{}, error) {
	filter := ports.NotificationFilter{Limit: argInt(p.Args, "limit")}
	if unread := optBool(p.Args, "unreadOnly"); unread != nil {
		filter.UnreadOnly = *unread
	}
	return r.svc.Notifications.List(p.Context, actor.ID, filter)
}

func (r *Resolver) unreadNotificationCount(p graphql.ResolveParams, actor *entities.User) (interface{}, error) {
	return r.svc.Notifications.UnreadCount(p.Context, actor.ID)
}

func (r *Resolver) activities(p graphql.ResolveParams, actor *entities.User) (interface{}, error) {
	boardID, err := optID(p.Args, "boardId")
	if err != nil {
		return nil, err
	}
	return r.svc.Activity.Feed(p.Context, actor, boardID, argInt(p.Args, "limit"))
}

func (r *Resolver) dashboardStats(p graphql.ResolveParams, actor *entities.User) (interface{}, error) {
	return r.svc.Dashboard.Stats(p.Context, actor)
}

func (r *Resolver) pendingInvitations(p graphql.ResolveParams, actor *entities.User) (interface{}, error) {
	return r.svc.Members.PendingInvitations(p.Context, actor)
}

// Board mutations

func (r *Resolver) createBoard(p graphql.ResolveParams, actor *entities.User) (interface{}, error) {
	req := ports.CreateBoardRequest{
		Title:       argString(p.Args, "title"),
		Description: argString(p.Args, "description"),
		Background:  argString(p.Args, "background"),
	}
	if err := r.check(req); err != nil {
		return nil, err
	}
	return r.svc.Boards.CreateBoard(p.Context, actor, req)
}

func (r *Resolver) updateBoard(p graphql.ResolveParams, actor *entities.User) (interface{}, error) {
	id, err := argID(p.Args, "id")
	if err != nil {
		return nil, err
	}
	req := ports.UpdateBoardRequest{
		Title:       optString(p.Args, "title"),
		Description: optString(p.Args, "description"),
		Background:  optString(p.Args, "background"),
		Starred:     optBool(p.Args, "starred"),
	}
	if err := r.check(req); err != nil {
		return nil, err
	}
	return r.svc.Boards.UpdateBoard(p.Context, actor, id, req)
}

func (r *Resolver) deleteBoard(p graphql.ResolveParams, actor *entities.User) (interface{}, error) {
	id, err := argID(p.Args, "id")
	if err != nil {
		return nil, err
	}
	if err := r.svc.Boards.DeleteBoard(p.Context, actor, id); err != nil {
		return nil, err
	}
	return true, nil
}

func (r *Resolver) inviteMember(p graphql.ResolveParams, actor *entities.User) (interface{}, error) {
	boardID, err := argID(p.Args, "boardId")
	if err != nil {
		return nil, err
	}
	req := ports.InviteMemberRequest{
		Email: argString(p.Args, "email"),
		Name:  argString(p.Args, "name"),
	}
	if role, ok := p.Args["role"].(entities.MemberRole); ok {
		req.Role = role
	}
	if err := r.check(req); err != nil {
		return nil, err
	}
	return r.svc.Members.InviteMember(p.Context, actor, boardID, req)
}

func (r *Resolver) removeMember(p graphql.ResolveParams, actor *entities.User) (interface{}, error) {
	boardID, err := argID(p.Args, "boardId")
	if err != nil {
		return nil, err
	}
	memberID, err := argID(p.Args, "memberId")
	if err != nil {
		return nil, err
	}
	return r.svc.Members.RemoveMember(p.Context, actor, boardID, memberID)
}

// Column mutations

func (r *Resolver) addColumn(p graphql.ResolveParams, actor *entities.User) (interface{}, error) {
	boardID, err := argID(p.Args, "boardId")
	if err != nil {
		return nil, err
	}
	req := ports.AddColumnRequest{Title: argString(p.Args, "title")}
	if err := r.check(req); err != nil {
		return nil, err
	}
	return r.svc.Boards.AddColumn(p.Context, actor, boardID, req)
}

func (r *Resolver) updateColumn(p graphql.ResolveParams, actor *entities.User) (interface{}, error) {
	boardID, err := argID(p.Args, "boardId")
	if err != nil {
		return nil, err
	}
	columnID, err := argID(p.Args, "columnId")
	if err != nil {
		return nil, err
	}
	req := ports.UpdateColumnRequest{Title: argString(p.Args, "title")}
	if err := r.check(req); err != nil {
		return nil, err
	}
	return r.svc.Boards.UpdateColumn(p.Context, actor, boardID, columnID, req)
}

func (r *Resolver) deleteColumn(p graphql.ResolveParams, actor *entities.User) (interface{}, error) {
	boardID, err := argID(p.Args, "boardId")
	if err != nil {
		return nil, err
	}
	columnID, err := argID(p.Args, "columnId")
	if err != nil {
		return nil, err
	}
	return r.svc.Boards.DeleteColumn(p.Context, actor, boardID, columnID)
}

func (r *Resolver) moveColumn(p graphql.ResolveParams, actor *entities.User) (interface{}, error) {
	boardID, err := argID(p.Args, "boardId")
	if err != nil {
		return nil, err
	}
	columnID, err := argID(p.Args, "columnId")
	if err != nil {
		return nil, err
	}
	toIndex := argInt(p.Args, "toIndex")
	if toIndex < 0 {
		return nil, badInput("toIndex must not be negative")
	}
	return r.svc.Boards.MoveColumn(p.Context, actor, boardID, columnID, toIndex)
}

// Card mutations

func (r *Resolver) addCard(p graphql.ResolveParams, actor *entities.User) (interface{}, error) {
	boardID, err := argID(p.Args, "boardId")
	if err != nil {
		return nil, err
	}
	columnID, err := argID(p.Args, "columnId")
	if err != nil {
		return nil, err
	}
	assigneeID, err := optID(p.Args, "assigneeId")
	if err != nil {
		return nil, err
	}
	req := ports.AddCardRequest{
		ColumnID:    columnID,
		Title:       argString(p.Args, "title"),
		Description: argString(p.Args, "description"),
		AssigneeID:  assigneeID,
		DueDate:     optTime(p.Args, "dueDate"),
		Labels:      stringList(p.Args, "labels"),
	}
	if err := r.check(req); err != nil {
		return nil, err
	}
	return r.svc.Boards.AddCard(p.Context, actor, boardID, req)
}

func (r *Resolver) updateCard(p graphql.ResolveParams, actor *entities.User) (interface{}, error) {
	boardID, err := argID(p.Args, "boardId")
	if err != nil {
		return nil, err
	}
	cardID, err := argID(p.Args, "cardId")
	if err != nil {
		return nil, err
	}
	assigneeID, err := optID(p.Args, "assigneeId")
	if err != nil {
		return nil, err
	}
	req := ports.UpdateCardRequest{
		Title:       optString(p.Args, "title"),
		Description: optString(p.Args, "description"),
		AssigneeID:  assigneeID,
		DueDate:     optTime(p.Args, "dueDate"),
		Labels:      stringList(p.Args, "labels"),
	}
	if clear := optBool(p.Args, "clearAssignee"); clear != nil {
		req.ClearAssignee = *clear
	}
	if clear := optBool(p.Args, "clearDueDate"); clear != nil {
		req.ClearDueDate = *clear
	}
	if err := r.check(req); err != nil {
		return nil, err
	}
	return r.svc.Boards.UpdateCard(p.Context, actor, boardID, cardID, req)
}

func (r *Resolver) deleteCard(p graphql.ResolveParams, actor *entities.User) (interface{}, error) {
	boardID, err := argID(p.Args, "boardId")
	if err != nil {
		return nil, err
	}
	cardID, err := argID(p.Args, "cardId")
	if err != nil {
		return nil, err
	}
	return r.svc.Boards.DeleteCard(p.Context, actor, boardID, cardID)
}

func (r *Resolver) moveCard(p graphql.ResolveParams, actor *entities.User) (interface{}, error) {
	boardID, err := argID(p.Args, "boardId")
	if err != nil {
		return nil, err
	}
	cardID, err := argID(p.Args, "cardId")
	if err != nil {
		return nil, err
	}
	toColumnID, err := argID(p.Args, "toColumnId")
	if err != nil {
		return nil, err
	}
	req := ports.MoveCardRequest{CardID: cardID, ToColumnID: toColumnID, ToIndex: argInt(p.Args, "toIndex")}
	if err := r.check(req); err != nil {
		return nil, err
	}
	return r.svc.Boards.MoveCard(p.Context, actor, boardID, req)
}

// Inbox and profile mutations

func (r *Resolver) markNotificationRead(p graphql.ResolveParams, actor *entities.User) (interface{}, error) {
	id, err := argID(p.Args, "id")
	if err != nil {
		return nil, err
	}
	return r.svc.Notifications.MarkRead(p.Context, actor.ID, id)
}

func (r *Resolver) markAllNotificationsRead(p graphql.ResolveParams, actor *entities.User) (interface{}, error) {
	return r.svc.Notifications.MarkAllRead(p.Context, actor.ID)
}

func (r *Resolver) updateProfile(p graphql.ResolveParams, actor *entities.User) (interface{}, error) {
	req := ports.UpdateProfileRequest{
		Name:      optString(p.Args, "name"),
		AvatarURL: optString(p.Args, "avatarUrl"),
	}
	if err := r.check(req); err != nil {
		return nil, err
	}
	return r.svc.Identity.UpdateProfile(p.Context, actor.ID, req)
}
