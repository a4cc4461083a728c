// ABOUTME: Tests for principal context propagation
// ABOUTME: Covers WithPrincipal/FromContext round-trips and role/authority checks

package auth

import (
	"context"
	"testing"

	"github.com/2389/fold-auth/internal/store"
)

func TestPrincipalContextRoundTrip(t *testing.T) {
	p := NewPrincipal(&store.User{
		Email:     "a@x.com",
		FirstName: "Ada",
		LastName:  "Lovelace",
		Role:      store.RoleAdmin,
	})

	ctx := WithPrincipal(context.Background(), p)
	got := FromContext(ctx)
	if got == nil {
		t.Fatal("FromContext() = nil, want principal")
	}
	if got.Subject != "a@x.com" {
		t.Errorf("Subject = %q, want %q", got.Subject, "a@x.com")
	}
	if got != p {
		t.Error("expected the same principal value")
	}
}

func TestFromContext_Empty(t *testing.T) {
	if got := FromContext(context.Background()); got != nil {
		t.Errorf("FromContext() = %v, want nil", got)
	}
}

func TestMustFromContext_Panics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("MustFromContext() should panic without a principal")
		}
	}()
	MustFromContext(context.Background())
}

func TestPrincipalAuthorities(t *testing.T) {
	admin := NewPrincipal(&store.User{Email: "adm@x.com", Role: store.RoleAdmin})
	manager := NewPrincipal(&store.User{Email: "m@x.com", Role: store.RoleManager})
	user := NewPrincipal(&store.User{Email: "u@x.com", Role: store.RoleUser})

	if !admin.HasAuthority("admin:delete") {
		t.Error("admin should hold admin:delete")
	}
	if !admin.HasAuthority("management:read") {
		t.Error("admin should hold management:read")
	}
	if manager.HasAuthority("admin:read") {
		t.Error("manager should not hold admin:read")
	}
	if !manager.HasAuthority("management:update") {
		t.Error("manager should hold management:update")
	}
	if len(user.Authorities) != 0 {
		t.Errorf("plain user authorities = %v, want none", user.Authorities)
	}

	if !admin.HasRole(store.RoleAdmin) || admin.HasRole(store.RoleUser) {
		t.Error("HasRole should match exactly")
	}
}
