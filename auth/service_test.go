package auth

import (
	"context"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/viant/mcp-protocol/authorization"
)

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func TestNamespaceDefaultsWithoutToken(t *testing.T) {
	svc := New()
	ns, err := svc.Namespace(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ns != "default" {
		t.Fatalf("expected default namespace, got %q", ns)
	}
}

func TestNamespaceFromEmailClaim(t *testing.T) {
	svc := New()
	tok := signedToken(t, jwt.MapClaims{"email": "alice@example.com", "sub": "u-1"})
	ctx := context.WithValue(context.Background(), authorization.TokenKey, tok)
	ns, err := svc.Namespace(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ns != "alice@example.com" {
		t.Fatalf("expected email claim, got %q", ns)
	}
}

func TestNamespaceFallsBackToSub(t *testing.T) {
	svc := New()
	tok := signedToken(t, jwt.MapClaims{"sub": "u-42"})
	ctx := context.WithValue(context.Background(), authorization.TokenKey, tok)
	ns, _ := svc.Namespace(ctx)
	if ns != "u-42" {
		t.Fatalf("expected sub claim, got %q", ns)
	}
}
