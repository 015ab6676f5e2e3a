// Package access derives the caller identity handed over by the transport
// and gates admin-only operations on it. The identity is trusted as given;
// no token or signature is checked here.
package access

import (
	"context"
	"errors"
	"strings"
)

const RoleAdmin = "admin"

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("access denied")
)

type Identity struct {
	UserID string
	Role   string
}

// Authenticate builds an Identity from the raw user id and role values.
// Both are required. The role is kept verbatim for the literal admin check.
func Authenticate(userID, role string) (Identity, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" || strings.TrimSpace(role) == "" {
		return Identity{}, ErrUnauthorized
	}
	return Identity{UserID: userID, Role: role}, nil
}

func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}

func (i Identity) RequireAdmin() error {
	if !i.IsAdmin() {
		return ErrForbidden
	}
	return nil
}

type identityKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// FromContext returns the identity stored by WithIdentity.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}
