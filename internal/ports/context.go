package ports

import (
	"context"

	"github.com/taskflow/core/internal/domain/entities"
)

type userKey struct{}

// ContextWithUser attaches the authenticated user to ctx.
func ContextWithUser(ctx context.Context, user *entities.User) context.Context {
	return context.WithValue(ctx, userKey{}, user)
}

// UserFromContext returns the authenticated user, or nil for anonymous requests.
func UserFromContext(ctx context.Context) *entities.User {
	user, _ := ctx.Value(userKey{}).(*entities.User)
	return user
}
