package auth

import (
	"context"
	"errors"

	usermodel "github.com/hwpark/chatbot/backend/internal/model/user"
)

// ErrForbidden is returned when the current user may not touch a resource.
var ErrForbidden = errors.New("auth: forbidden")

// CheckOwnerOrAdmin allows access when the current user owns the resource
// or holds the admin role.
func CheckOwnerOrAdmin(current *usermodel.User, resourceOwnerID string) error {
	if current.IsAdmin() || current.ID == resourceOwnerID {
		return nil
	}
	return ErrForbidden
}

type userContextKey struct{}

// WithUser attaches the resolved user to the request context.
func WithUser(ctx context.Context, usr *usermodel.User) context.Context {
	return context.WithValue(ctx, userContextKey{}, usr)
}

// CurrentUser returns the user attached by the auth middleware.
func CurrentUser(ctx context.Context) (*usermodel.User, bool) {
	usr, ok := ctx.Value(userContextKey{}).(*usermodel.User)
	return usr, ok
}
