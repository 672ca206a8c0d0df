package graphql

import (
	"github.com/go-playground/validator/v10"
	"github.com/graphql-go/graphql"

	"github.com/taskflow/core/internal/infrastructure/logger"
)

func idArg(description string) *graphql.ArgumentConfig {
	return &graphql.ArgumentConfig{Type: nonNull(graphql.ID), Description: description}
}

func stringArg(required bool) *graphql.ArgumentConfig {
	if required {
		return &graphql.ArgumentConfig{Type: nonNull(graphql.String)}
	}
	return &graphql.ArgumentConfig{Type: graphql.String}
}

// NewSchema builds the TaskFlow schema on top of the given services.
func NewSchema(svc Services, validate *validator.Validate, log *logger.Logger) (graphql.Schema, error) {
	r := &Resolver{svc: svc, validate: validate, logger: log.WithComponent("graphql")}

	query := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"boards": &graphql.Field{
				Type:        listOf(boardType),
				Description: "Boards the caller is an accepted member of, most recently updated first.",
				Resolve:     r.authenticated(r.boards),
			},
			"board": &graphql.Field{
				Type:    boardType,
				Args:    graphql.FieldConfigArgument{"id": idArg("")},
				Resolve: r.authenticated(r.board),
			},
			"me": &graphql.Field{
				Type:    nonNull(userType),
				Resolve: r.authenticated(r.me),
			},
			"notifications": &graphql.Field{
				Type: listOf(notificationType),
				Args: graphql.FieldConfigArgument{
					"unreadOnly": &graphql.ArgumentConfig{Type: graphql.Boolean, DefaultValue: false},
					"limit":      &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 50},
				},
				Resolve: r.authenticated(r.notifications),
			},
			"unreadNotificationCount": &graphql.Field{
				Type:    nonNull(graphql.Int),
				Resolve: r.authenticated(r.unreadNotificationCount),
			},
			"activities": &graphql.Field{
				Type: listOf(activityType),
				Args: graphql.FieldConfigArgument{
					"boardId": &graphql.ArgumentConfig{Type: graphql.ID},
					"limit":   &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 20},
				},
				Resolve: r.authenticated(r.activities),
			},
			"dashboardStats": &graphql.Field{
				Type:    nonNull(dashboardStatsType),
				Resolve: r.authenticated(r.dashboardStats),
			},
			"pendingInvitations": &graphql.Field{
				Type:        listOf(invitationType),
				Description: "Pending invitations addressed to the caller's email.",
				Resolve:     r.authenticated(r.pendingInvitations),
			},
		},
	})

	mutation := graphql.NewObject(graphql.ObjectConfig{
		Name: "Mutation",
		Fields: graphql.Fields{
			"createBoard": &graphql.Field{
				Type: nonNull(boardType),
				Args: graphql.FieldConfigArgument{
					"title":       stringArg(true),
					"description": stringArg(false),
					"background":  stringArg(false),
				},
				Resolve: r.authenticated(r.createBoard),
			},
			"updateBoard": &graphql.Field{
				Type: nonNull(boardType),
				Args: graphql.FieldConfigArgument{
					"id":          idArg(""),
					"title":       stringArg(false),
					"description": stringArg(false),
					"background":  stringArg(false),
					"starred":     &graphql.ArgumentConfig{Type: graphql.Boolean},
				},
				Resolve: r.authenticated(r.updateBoard),
			},
			"deleteBoard": &graphql.Field{
				Type:    nonNull(graphql.Boolean),
				Args:    graphql.FieldConfigArgument{"id": idArg("")},
				Resolve: r.authenticated(r.deleteBoard),
			},
			"inviteMember": &graphql.Field{
				Type: nonNull(boardType),
				Args: graphql.FieldConfigArgument{
					"boardId": idArg(""),
					"email":   stringArg(true),
					"name":    stringArg(false),
					"role":    &graphql.ArgumentConfig{Type: memberRoleEnum},
				},
				Resolve: r.authenticated(r.inviteMember),
			},
			"removeMember": &graphql.Field{
				Type: nonNull(boardType),
				Args: graphql.FieldConfigArgument{
					"boardId":  idArg(""),
					"memberId": idArg("Member record id, not the user id."),
				},
				Resolve: r.authenticated(r.removeMember),
			},
			"addColumn": &graphql.Field{
				Type: nonNull(boardType),
				Args: graphql.FieldConfigArgument{
					"boardId": idArg(""),
					"title":   stringArg(true),
				},
				Resolve: r.authenticated(r.addColumn),
			},
			"updateColumn": &graphql.Field{
				Type: nonNull(boardType),
				Args: graphql.FieldConfigArgument{
					"boardId":  idArg(""),
					"columnId": idArg(""),
					"title":    stringArg(true),
				},
				Resolve: r.authenticated(r.updateColumn),
			},
			"deleteColumn": &graphql.Field{
				Type:        nonNull(boardType),
				Description: "Deletes the column together with its cards.",
				Args: graphql.FieldConfigArgument{
					"boardId":  idArg(""),
					"columnId": idArg(""),
				},
				Resolve: r.authenticated(r.deleteColumn),
			},
			"moveColumn": &graphql.Field{
				Type: nonNull(boardType),
				Args: graphql.FieldConfigArgument{
					"boardId":  idArg(""),
					"columnId": idArg(""),
					"toIndex":  &graphql.ArgumentConfig{Type: nonNull(graphql.Int)},
				},
				Resolve: r.authenticated(r.moveColumn),
			},
			"addCard": &graphql.Field{
				Type: nonNull(boardType),
				Args: graphql.FieldConfigArgument{
					"boardId":     idArg(""),
					"columnId":    idArg(""),
					"title":       stringArg(true),
					"description": stringArg(false),
					"assigneeId":  &graphql.ArgumentConfig{Type: graphql.ID},
					"dueDate":     &graphql.ArgumentConfig{Type: graphql.DateTime},
					"labels":      &graphql.ArgumentConfig{Type: graphql.NewList(nonNull(graphql.String))},
				},
				Resolve: r.authenticated(r.addCard),
			},
			"updateCard": &graphql.Field{
				Type: nonNull(boardType),
				Args: graphql.FieldConfigArgument{
					"boardId":       idArg(""),
					"cardId":        idArg(""),
					"title":         stringArg(false),
					"description":   stringArg(false),
					"assigneeId":    &graphql.ArgumentConfig{Type: graphql.ID},
					"clearAssignee": &graphql.ArgumentConfig{Type: graphql.Boolean},
					"dueDate":       &graphql.ArgumentConfig{Type: graphql.DateTime},
					"clearDueDate":  &graphql.ArgumentConfig{Type: graphql.Boolean},
					"labels":        &graphql.ArgumentConfig{Type: graphql.NewList(nonNull(graphql.String))},
				},
				Resolve: r.authenticated(r.updateCard),
			},
			"deleteCard": &graphql.Field{
				Type: nonNull(boardType),
				Args: graphql.FieldConfigArgument{
					"boardId": idArg(""),
					"cardId":  idArg(""),
				},
				Resolve: r.authenticated(r.deleteCard),
			},
			"moveCard": &graphql.Field{
				Type:        nonNull(boardType),
				Description: "Moves a card to position toIndex of toColumnId. Out of range indexes are clamped.",
				Args: graphql.FieldConfigArgument{
					"boardId":    idArg(""),
					"cardId":     idArg(""),
					"toColumnId": idArg(""),
					"toIndex":    &graphql.ArgumentConfig{Type: nonNull(graphql.Int)},
				},
				Resolve: r.authenticated(r.moveCard),
			},
			"markNotificationRead": &graphql.Field{
				Type:    nonNull(notificationType),
				Args:    graphql.FieldConfigArgument{"id": idArg("")},
				Resolve: r.authenticated(r.markNotificationRead),
			},
			"markAllNotificationsRead": &graphql.Field{
				Type:        nonNull(graphql.Int),
				Description: "Returns the number of notifications that changed.",
				Resolve:     r.authenticated(r.markAllNotificationsRead),
			},
			"updateProfile": &graphql.Field{
				Type: nonNull(userType),
				Args: graphql.FieldConfigArgument{
					"name":      stringArg(false),
					"avatarUrl": stringArg(false),
				},
				Resolve: r.authenticated(r.updateProfile),
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query:    query,
		Mutation: mutation,
	})
}
