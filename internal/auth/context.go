package auth

import (
	"context"

	"github.com/bulkmat/order-api/internal/domain"
	"github.com/bulkmat/order-api/internal/fulfillment"
)

// UserContext holds authenticated user information
type UserContext struct {
	UserID      uint
	DisplayName string
	Email       string
	Role        domain.Role
	// SupplierID is set for supplier users and scopes them to their order items
	SupplierID *uint
	// System marks API key callers
	System bool
}

type contextKey string

const userContextKey contextKey = "userContext"

// WithUserContext adds user context to the context
func WithUserContext(ctx context.Context, user *UserContext) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// FromContext extracts user context from the context
func FromContext(ctx context.Context) (*UserContext, bool) {
	user, ok := ctx.Value(userContextKey).(*UserContext)
	return user, ok
}

// MustFromContext extracts user context or panics
func MustFromContext(ctx context.Context) *UserContext {
	user, ok := FromContext(ctx)
	if !ok {
		panic("user context not found in context")
	}
	return user
}

// HasRole checks if user has one of the given roles
func (u *UserContext) HasRole(roles ...domain.Role) bool {
	for _, r := range roles {
		if u.Role == r {
			return true
		}
	}
	return false
}

// IsAdmin reports whether the user is platform staff
func (u *UserContext) IsAdmin() bool {
	return u.Role == domain.RoleAdmin
}

// Actor returns the caller as seen by the workflow and editing rules
func (u *UserContext) Actor() fulfillment.Actor {
	return fulfillment.Actor{Role: u.Role, UserID: u.UserID}
}
