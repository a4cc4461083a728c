// ABOUTME: Authenticated principal and its propagation through request context
// ABOUTME: Provides WithPrincipal/FromContext for downstream authorization checks

package auth

import (
	"context"
	"slices"

	"github.com/2389/fold-auth/internal/store"
)

// Principal is the authenticated identity attached to a request. It is an
// immutable snapshot built from the user store at authentication time; it is
// never shared across requests.
type Principal struct {
	Subject     string // the user's email
	FirstName   string
	LastName    string
	Role        store.Role
	Authorities []string
}

// NewPrincipal builds a principal from a stored user.
func NewPrincipal(u *store.User) *Principal {
	return &Principal{
		Subject:     u.Email,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		Role:        u.Role,
		Authorities: u.Role.Authorities(),
	}
}

// HasRole reports whether the principal holds the given role.
func (p *Principal) HasRole(role store.Role) bool {
	return p.Role == role
}

// HasAuthority reports whether the principal holds the given fine-grained
// permission.
func (p *Principal) HasAuthority(authority string) bool {
	return slices.Contains(p.Authorities, authority)
}

// principalKey is the key type for storing a Principal in context.Context.
type principalKey struct{}

// WithPrincipal returns a new context with the principal attached.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// FromContext retrieves the principal from the context, returning nil if the
// request was not authenticated.
func FromContext(ctx context.Context) *Principal {
	val := ctx.Value(principalKey{})
	if val == nil {
		return nil
	}
	p, ok := val.(*Principal)
	if !ok {
		return nil
	}
	return p
}

// MustFromContext retrieves the principal from the context, panicking if not
// present. Use only behind RequireAuth.
func MustFromContext(ctx context.Context) *Principal {
	p := FromContext(ctx)
	if p == nil {
		panic("auth: Principal not found in context")
	}
	return p
}
