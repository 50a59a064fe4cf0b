// Package auth resolves the caller's identity and enforces role checks on the
// HTTP API. Identities come from HS256 or JWKS-verified bearer tokens, or from
// plain headers in development.
package auth

import "context"

// Roles recognised by the API.
const (
	RoleAdmin        = "admin"
	RoleDoctor       = "doctor"
	RolePharmacist   = "pharmacist"
	RoleReceptionist = "receptionist"
	RolePatient      = "patient"
)

type identityKey struct{}

type identity struct {
	userID string
	roles  []string
}

// WithUser returns a copy of ctx carrying the caller's identity.
func WithUser(ctx context.Context, userID string, roles ...string) context.Context {
	return context.WithValue(ctx, identityKey{}, identity{userID: userID, roles: roles})
}

func identityFrom(ctx context.Context) identity {
	id, _ := ctx.Value(identityKey{}).(identity)
	return id
}

// UserIDFromContext returns the caller's user id, or "" when anonymous.
func UserIDFromContext(ctx context.Context) string {
	return identityFrom(ctx).userID
}

func RolesFromContext(ctx context.Context) []string {
	return identityFrom(ctx).roles
}

// HasRole reports whether the caller carries role.
func HasRole(ctx context.Context, role string) bool {
	for _, r := range identityFrom(ctx).roles {
		if r == role {
			return true
		}
	}
	return false
}
