package models

import (
	"context"

	"github.com/gridcab/dispatch/internal/domain/types"
)

// Identity is the authenticated caller extracted from the JWT.
type Identity struct {
	UserID int64
	Role   types.UserRole
}

func (i Identity) IsDriver() bool {
	return i.Role == types.DriverRole
}

func (i Identity) IsPassenger() bool {
	return i.Role == types.PassengerRole
}

// Context key for the authenticated identity (unexported to avoid collisions)
type identityKeyType struct{}

var identityKey = &identityKeyType{}

// WithIdentity stores the identity in the context.
func WithIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

// IdentityFromContext extracts the identity set by the auth middleware.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	identity, ok := ctx.Value(identityKey).(Identity)
	return identity, ok
}
