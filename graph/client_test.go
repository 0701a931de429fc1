package graph

import (
	"context"
	"testing"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/golang-jwt/jwt/v5"
	msgraphsdk "github.com/microsoftgraph/msgraph-sdk-go"
	"github.com/rs/zerolog"
	"github.com/viant/mcp-protocol/authorization"
)

func TestClientCacheKeyNormalization(t *testing.T) {
	m := NewManager("", "", zerolog.Nop())
	k1 := m.clientKey("ns", "aliasA", "tenantX", []string{"Scope2", "scope1"})
	k2 := m.clientKey("ns", "aliasA", "tenantX", []string{"scope1", "scope2"})
	if k1 != k2 {
		t.Fatalf("expected normalized keys to be equal, got %q vs %q", k1, k2)
	}
	if k3 := m.clientKey("other", "aliasA", "tenantX", []string{"scope1"}); k3 == k1 {
		t.Fatalf("expected namespace to partition keys")
	}
}

func TestClientReturnsCachedInstance(t *testing.T) {
	m := NewManager("", "", zerolog.Nop())
	alias, tenant := "acc", "ten"
	scopes := []string{"s1", "s2"}
	key := m.clientKey("default", alias, tenant, scopes)
	want := &msgraphsdk.GraphServiceClient{}
	m.mu.Lock()
	m.clients[key] = want
	m.mu.Unlock()

	got, err := m.Client(context.Background(), alias, tenant, []string{"s2", "s1"}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != want {
		t.Fatalf("expected cached client to be returned")
	}
}

func namespacedContext(t *testing.T, email string) context.Context {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"email": email}).SignedString([]byte("test-key"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return context.WithValue(context.Background(), authorization.TokenKey, tok)
}

func TestCredentialResolvedPerNamespace(t *testing.T) {
	m := NewManager("client", "", zerolog.Nop())
	want := &azidentity.DeviceCodeCredential{}
	m.mu.Lock()
	m.creds["alice@x.com|work"] = want
	m.mu.Unlock()

	got, err := m.Credential(namespacedContext(t, "alice@x.com"), "work", "ten", nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != want {
		t.Fatalf("expected the namespace-scoped credential to be returned")
	}

	// An unauthenticated caller resolves the default namespace and must not
	// see alice's credential; with no storageDir acquisition fails instead.
	if _, err := m.Credential(context.Background(), "work", "ten", nil, nil); err == nil {
		t.Fatalf("expected a cache miss outside the owning namespace")
	}
}

func TestDeviceLoginStoresCredentialUnderCallerNamespace(t *testing.T) {
	m := NewManager("client", "", zerolog.Nop())
	m.mu.Lock()
	m.creds["alice@x.com|work"] = &azidentity.DeviceCodeCredential{}
	m.mu.Unlock()

	done := make(chan struct{})
	m.StartDeviceLogin(context.Background(), "alice@x.com", "work", "ten", nil, func() { close(done) })

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("device login did not resolve the credential under the caller namespace")
	}
}

func TestLogoutDropsCachesAndRecord(t *testing.T) {
	dir := t.TempDir()
	m := NewManager("client", dir, zerolog.Nop())
	ctx := context.Background()

	m.saveAuthRecord("default", "work", azidentity.AuthenticationRecord{})
	if !m.HasAuthRecord(ctx, "work") {
		t.Fatalf("expected auth record to exist")
	}
	key := m.clientKey("default", "work", "ten", nil)
	m.mu.Lock()
	m.clients[key] = &msgraphsdk.GraphServiceClient{}
	m.mu.Unlock()

	if !m.Logout(ctx, "work") {
		t.Fatalf("expected logout to remove the record")
	}
	if m.HasAuthRecord(ctx, "work") {
		t.Fatalf("auth record should be gone")
	}
	m.mu.RLock()
	_, stillCached := m.clients[key]
	m.mu.RUnlock()
	if stillCached {
		t.Fatalf("client cache should be dropped on logout")
	}
	if m.Logout(ctx, "work") {
		t.Fatalf("second logout should report nothing removed")
	}
}
