package auth

import (
	"context"
	"testing"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()

	if _, ok := PrincipalFromContext(ctx); ok {
		t.Fatal("empty context must not carry a principal")
	}
	if _, ok := TokenFromContext(ctx); ok {
		t.Fatal("empty context must not carry a token")
	}

	principal := NewPrincipal(&User{Email: "kifu@club.org", Role: RoleManager})
	ctx = ContextWithPrincipal(ctx, principal)
	ctx = ContextWithToken(ctx, "signed-token")

	got, ok := PrincipalFromContext(ctx)
	if !ok || got.User.Email != "kifu@club.org" {
		t.Fatalf("principal round trip failed: ok=%v got=%+v", ok, got)
	}
	if !got.HasRole(RoleManager) {
		t.Fatal("authorities lost on context round trip")
	}

	token, ok := TokenFromContext(ctx)
	if !ok || token != "signed-token" {
		t.Fatalf("token round trip failed: ok=%v token=%q", ok, token)
	}

	// Empty tokens are not attached.
	if _, ok := TokenFromContext(ContextWithToken(context.Background(), "")); ok {
		t.Fatal("empty token must not be attached")
	}
}
