package graphql

import (
	"reflect"
	"time"

	"github.com/google/uuid"
	"github.com/graphql-go/graphql"

	"github.com/taskflow/core/internal/domain/entities"
)

// resolveValue reads the json-tagged struct field and renders ids as strings.
func resolveValue(p graphql.ResolveParams) (interface{}, error) {
	v, err := graphql.DefaultResolveFn(p)
	if err != nil {
		return nil, err
	}

	switch x := v.(type) {
	case uuid.UUID:
		return x.String(), nil
	case *uuid.UUID:
		if x == nil {
			return nil, nil
		}
		return x.String(), nil
	case []uuid.UUID:
		ids := make([]string, len(x))
		for i, id := range x {
			ids[i] = id.String()
		}
		return ids, nil
	case *time.Time:
		if x == nil {
			return nil, nil
		}
		return *x, nil
	}
	return emptyIfNil(v), nil
}

// emptyIfNil renders nil slices as empty lists.
func emptyIfNil(v interface{}) interface{} {
	if rv := reflect.ValueOf(v); rv.Kind() == reflect.Slice && rv.IsNil() {
		return reflect.MakeSlice(rv.Type(), 0, 0).Interface()
	}
	return v
}

func field(t graphql.Output, description ...string) *graphql.Field {
	f := &graphql.Field{Type: t, Resolve: resolveValue}
	if len(description) > 0 {
		f.Description = description[0]
	}
	return f
}

func nonNull(t graphql.Type) *graphql.NonNull {
	return graphql.NewNonNull(t)
}

func listOf(t graphql.Type) *graphql.NonNull {
	return graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(t)))
}

var memberRoleEnum = graphql.NewEnum(graphql.EnumConfig{
	Name: "MemberRole",
	Values: graphql.EnumValueConfigMap{
		"ADMIN":  &graphql.EnumValueConfig{Value: entities.MemberRoleAdmin},
		"MEMBER": &graphql.EnumValueConfig{Value: entities.MemberRoleMember},
	},
})

var memberStatusEnum = graphql.NewEnum(graphql.EnumConfig{
	Name: "MemberStatus",
	Values: graphql.EnumValueConfigMap{
		"PENDING":  &graphql.EnumValueConfig{Value: entities.MemberStatusPending},
		"ACCEPTED": &graphql.EnumValueConfig{Value: entities.MemberStatusAccepted},
		"REJECTED": &graphql.EnumValueConfig{Value: entities.MemberStatusRejected},
	},
})

var userType = graphql.NewObject(graphql.ObjectConfig{
	Name: "User",
	Fields: graphql.Fields{
		"id":          field(nonNull(graphql.ID)),
		"email":       field(nonNull(graphql.String)),
		"name":        field(nonNull(graphql.String)),
		"avatarUrl":   field(nonNull(graphql.String)),
		"provider":    field(nonNull(graphql.String)),
		"lastLoginAt": field(graphql.DateTime),
		"createdAt":   field(nonNull(graphql.DateTime)),
		"updatedAt":   field(nonNull(graphql.DateTime)),
	},
})

var memberType = graphql.NewObject(graphql.ObjectConfig{
	Name:        "Member",
	Description: "A user's access record on a board. A pending member is an invitation.",
	Fields: graphql.Fields{
		"id":        field(nonNull(graphql.ID)),
		"userId":    field(graphql.ID),
		"email":     field(nonNull(graphql.String)),
		"name":      field(nonNull(graphql.String)),
		"avatar":    field(nonNull(graphql.String)),
		"role":      field(nonNull(memberRoleEnum)),
		"status":    field(nonNull(memberStatusEnum)),
		"joinedAt":  field(graphql.DateTime),
		"createdAt": field(nonNull(graphql.DateTime)),
		"updatedAt": field(nonNull(graphql.DateTime)),
	},
})

var cardType = graphql.NewObject(graphql.ObjectConfig{
	Name: "Card",
	Fields: graphql.Fields{
		"id":          field(nonNull(graphql.ID)),
		"columnId":    field(nonNull(graphql.ID)),
		"title":       field(nonNull(graphql.String)),
		"description": field(nonNull(graphql.String)),
		"order":       field(nonNull(graphql.Int)),
		"assigneeId":  field(graphql.ID),
		"dueDate":     field(graphql.DateTime),
		"labels":      field(listOf(graphql.String)),
		"createdAt":   field(nonNull(graphql.DateTime)),
		"updatedAt":   field(nonNull(graphql.DateTime)),
	},
})

var columnType = graphql.NewObject(graphql.ObjectConfig{
	Name: "Column",
	Fields: graphql.Fields{
		"id":      field(nonNull(graphql.ID)),
		"boardId": field(nonNull(graphql.ID)),
		"title":   field(nonNull(graphql.String)),
		"order":   field(nonNull(graphql.Int)),
		"cards":   field(listOf(cardType)),
	},
})

var boardType = graphql.NewObject(graphql.ObjectConfig{
	Name: "Board",
	Fields: graphql.Fields{
		"id":          field(nonNull(graphql.ID)),
		"title":       field(nonNull(graphql.String)),
		"description": field(nonNull(graphql.String)),
		"background":  field(nonNull(graphql.String)),
		"starred":     field(nonNull(graphql.Boolean)),
		"members":     field(listOf(memberType)),
		"memberIds":   field(listOf(graphql.ID), "User ids of accepted members."),
		"columns":     field(listOf(columnType)),
		"createdBy":   field(nonNull(graphql.ID)),
		"version":     field(nonNull(graphql.Int)),
		"createdAt":   field(nonNull(graphql.DateTime)),
		"updatedAt":   field(nonNull(graphql.DateTime)),
	},
})

var invitationType = graphql.NewObject(graphql.ObjectConfig{
	Name: "Invitation",
	Fields: graphql.Fields{
		"boardId":    field(nonNull(graphql.ID)),
		"boardTitle": field(nonNull(graphql.String)),
		"member":     field(nonNull(memberType)),
	},
})

var notificationType = graphql.NewObject(graphql.ObjectConfig{
	Name: "Notification",
	Fields: graphql.Fields{
		"id":          field(nonNull(graphql.ID)),
		"userId":      field(nonNull(graphql.ID)),
		"title":       field(nonNull(graphql.String)),
		"description": field(nonNull(graphql.String)),
		"type":        field(nonNull(graphql.String)),
		"targetId":    field(nonNull(graphql.String)),
		"read":        field(nonNull(graphql.Boolean)),
		"createdAt":   field(nonNull(graphql.DateTime)),
		"updatedAt":   field(nonNull(graphql.DateTime)),
	},
})

var activityType = graphql.NewObject(graphql.ObjectConfig{
	Name: "Activity",
	Fields: graphql.Fields{
		"id":          field(nonNull(graphql.ID)),
		"userId":      field(nonNull(graphql.ID)),
		"userName":    field(nonNull(graphql.String)),
		"type":        field(nonNull(graphql.String)),
		"boardId":     field(nonNull(graphql.ID)),
		"boardTitle":  field(nonNull(graphql.String)),
		"description": field(nonNull(graphql.String)),
		"createdAt":   field(nonNull(graphql.DateTime)),
	},
})

var dashboardStatsType = graphql.NewObject(graphql.ObjectConfig{
	Name: "DashboardStats",
	Fields: graphql.Fields{
		"totalBoards":         field(nonNull(graphql.Int)),
		"starredBoards":       field(nonNull(graphql.Int)),
		"totalColumns":        field(nonNull(graphql.Int)),
		"totalCards":          field(nonNull(graphql.Int)),
		"assignedToMe":        field(nonNull(graphql.Int)),
		"overdueCards":        field(nonNull(graphql.Int)),
		"dueSoonCards":        field(nonNull(graphql.Int), "Cards due within the next 7 days."),
		"unreadNotifications": field(nonNull(graphql.Int)),
		"pendingInvitations":  field(nonNull(graphql.Int)),
	},
})
