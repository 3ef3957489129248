package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
)

type Role string

const (
	RoleDonor Role = "donor"
	RoleAgent Role = "agent"
	RoleAdmin Role = "admin"
)

// ErrNoRole means the user exists in the identity provider but has no role row.
var ErrNoRole = errors.New("user has no role")

func ParseRole(raw string) (Role, bool) {
	switch r := Role(strings.ToLower(strings.TrimSpace(raw))); r {
	case RoleDonor, RoleAgent, RoleAdmin:
		return r, true
	}
	return "", false
}

// Identity is the authenticated caller, resolved once per request.
type Identity struct {
	UserID uuid.UUID
	Role   Role
}

type identityKey struct{}
type hospitalKey struct{}

func ContextWithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok && id.UserID != uuid.Nil
}

// ContextWithHospital stores the hospital an agent acts for.
func ContextWithHospital(ctx context.Context, hospitalID uuid.UUID) context.Context {
	return context.WithValue(ctx, hospitalKey{}, hospitalID)
}

func HospitalFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(hospitalKey{}).(uuid.UUID)
	return id, ok && id != uuid.Nil
}
