package graph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity/cache"
	msgraphsdk "github.com/microsoftgraph/msgraph-sdk-go"
	"github.com/rs/zerolog"

	"github.com/mailops/outlook-mcp/auth"
)

// silentPreflight bounds the non-interactive token probe before falling back
// to the device-code flow.
const silentPreflight = 500 * time.Millisecond

// Manager owns Microsoft Graph credentials per caller namespace and account
// alias. Device-code credentials are cached in memory until process restart;
// authentication records are persisted under storageDir so subsequent runs
// can log in silently.
type Manager struct {
	clientID   string
	storageDir string
	auth       *auth.Service
	log        zerolog.Logger

	mu sync.RWMutex
	// pending holds device-code prompt messages keyed by account alias while
	// an interactive login is in flight.
	pending map[string]string
	// clients caches GraphServiceClient instances per namespace+alias+tenant+scopes.
	clients map[string]*msgraphsdk.GraphServiceClient
	// creds caches device-code credentials per namespace+alias.
	creds map[string]*azidentity.DeviceCodeCredential
}

func NewManager(clientID, storageDir string, log zerolog.Logger) *Manager {
	return &Manager{
		clientID:   clientID,
		storageDir: storageDir,
		auth:       auth.New(),
		log:        log,
		pending:    map[string]string{},
		clients:    map[string]*msgraphsdk.GraphServiceClient{},
		creds:      map[string]*azidentity.DeviceCodeCredential{},
	}
}

// DefaultScopes covers the mailbox operations this server exposes.
func DefaultScopes() []string {
	return []string{"https://graph.microsoft.com/.default"}
}

func (m *Manager) namespace(ctx context.Context) string {
	ns, _ := m.auth.Namespace(ctx)
	if ns == "" {
		ns = "default"
	}
	return ns
}

func (m *Manager) authRecordPath(ns, alias string) string {
	return filepath.Join(m.storageDir, fmt.Sprintf("%s_%s_auth_record.json", safePart(ns), safePart(alias)))
}

func safePart(s string) string {
	s = strings.TrimSpace(os.ExpandEnv(s))
	repl := strings.NewReplacer("/", "_", "\\", "_", ":", "_", "|", "_", " ", "_", "@", "_")
	return repl.Replace(s)
}

func (m *Manager) ensureDirs() error {
	m.storageDir = expandPath(m.storageDir)
	if m.storageDir == "" {
		return errors.New("storageDir is required")
	}
	return os.MkdirAll(m.storageDir, 0o700)
}

func expandPath(p string) string {
	if p == "" {
		return p
	}
	p = os.ExpandEnv(p)
	if strings.HasPrefix(p, "~") {
		if home, err := os.UserHomeDir(); err == nil {
			if p == "~" {
				p = home
			} else if strings.HasPrefix(p, "~/") {
				p = filepath.Join(home, p[2:])
			}
		}
	}
	return p
}

// NeedsInteractive checks quickly, without prompting, whether a device-code
// flow would be required for alias.
func (m *Manager) NeedsInteractive(ctx context.Context, alias, tenantID string, scopes []string) bool {
	if err := m.ensureDirs(); err != nil {
		return true
	}
	ns := m.namespace(ctx)
	rec, haveRec := m.loadAuthRecord(ns, alias)
	aCache, err := cache.New(&cache.Options{Name: cacheName(ns, alias)})
	if err != nil {
		return true
	}
	opts := &azidentity.DeviceCodeCredentialOptions{
		TenantID:   tenantID,
		ClientID:   m.clientID,
		Cache:      aCache,
		UserPrompt: func(context.Context, azidentity.DeviceCodeMessage) error { return nil },
	}
	if haveRec {
		opts.AuthenticationRecord = rec
	}
	cred, err := azidentity.NewDeviceCodeCredential(opts)
	if err != nil {
		return true
	}
	ctx2, cancel := context.WithTimeout(ctx, silentPreflight)
	defer cancel()
	_, err = cred.GetToken(ctx2, policy.TokenRequestOptions{Scopes: scopes})
	return err != nil
}

func cacheName(ns, alias string) string {
	return "outlook-mcp-" + safePart(ns) + "-" + safePart(alias)
}

func (m *Manager) loadAuthRecord(ns, alias string) (azidentity.AuthenticationRecord, bool) {
	var rec azidentity.AuthenticationRecord
	b, err := os.ReadFile(m.authRecordPath(ns, alias))
	if err != nil {
		return rec, false
	}
	_ = json.Unmarshal(b, &rec)
	return rec, true
}

func (m *Manager) saveAuthRecord(ns, alias string, rec azidentity.AuthenticationRecord) {
	b, err := json.Marshal(rec)
	if err != nil {
		return
	}
	path := m.authRecordPath(ns, alias)
	if err := os.WriteFile(path, b, 0o600); err == nil {
		m.log.Debug().Str("namespace", ns).Str("alias", alias).Str("path", path).Msg("saved auth record")
	}
}

// Client returns a ready GraphServiceClient for alias, creating and caching
// it on first use.
func (m *Manager) Client(ctx context.Context, alias, tenantID string, scopes []string, prompt func(string)) (*msgraphsdk.GraphServiceClient, error) {
	ns := m.namespace(ctx)
	key := m.clientKey(ns, alias, tenantID, scopes)
	m.mu.RLock()
	if cli, ok := m.clients[key]; ok {
		m.mu.RUnlock()
		return cli, nil
	}
	m.mu.RUnlock()

	cred, err := m.Credential(ctx, alias, tenantID, scopes, prompt)
	if err != nil {
		return nil, err
	}
	client, err := msgraphsdk.NewGraphServiceClientWithCredentials(cred, scopes)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.clients[key]; ok {
		return existing, nil
	}
	m.clients[key] = client
	return client, nil
}

// Credential returns a cached DeviceCodeCredential for alias, acquiring one
// when absent.
func (m *Manager) Credential(ctx context.Context, alias, tenantID string, scopes []string, prompt func(string)) (*azidentity.DeviceCodeCredential, error) {
	return m.credentialFor(ctx, m.namespace(ctx), alias, tenantID, scopes, prompt)
}

// credentialFor is Credential with the namespace resolved by the caller. The
// background device flow passes the namespace of the request that started it,
// so the acquired credential and persisted record land where that caller's
// subsequent requests will look.
func (m *Manager) credentialFor(ctx context.Context, ns, alias, tenantID string, scopes []string, prompt func(string)) (*azidentity.DeviceCodeCredential, error) {
	key := ns + "|" + alias
	m.mu.RLock()
	if c := m.creds[key]; c != nil {
		m.mu.RUnlock()
		return c, nil
	}
	m.mu.RUnlock()
	cred, err := m.acquireCredential(ctx, ns, alias, tenantID, scopes, prompt)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing := m.creds[key]; existing != nil {
		return existing, nil
	}
	m.creds[key] = cred
	return cred, nil
}

// BearerToken resolves a valid access token for alias. Failures here are
// fatal for a whole request: no partial batch is attempted without a token.
func (m *Manager) BearerToken(ctx context.Context, alias, tenantID string, scopes []string, prompt func(string)) (string, error) {
	cred, err := m.Credential(ctx, alias, tenantID, scopes, prompt)
	if err != nil {
		return "", &Error{Kind: KindUnauthorized, Detail: err.Error()}
	}
	tok, err := cred.GetToken(ctx, policy.TokenRequestOptions{Scopes: scopes})
	if err != nil {
		return "", &Error{Kind: KindUnauthorized, Detail: err.Error()}
	}
	return tok.Token, nil
}

// StartDeviceLogin launches device-code authentication in the background and
// records the prompt message so DevicePrompt can surface it to the login
// page. ns is the namespace of the caller that initiated the login: the flow
// outlives its request context, so the namespace cannot be re-derived later.
func (m *Manager) StartDeviceLogin(ctx context.Context, ns, alias, tenantID string, scopes []string, onComplete func()) {
	if ns == "" {
		ns = "default"
	}
	m.mu.Lock()
	if _, ok := m.pending[alias]; ok {
		m.mu.Unlock()
		return
	}
	m.pending[alias] = ""
	m.mu.Unlock()
	go func() {
		prompt := func(msg string) {
			m.mu.Lock()
			m.pending[alias] = msg
			m.mu.Unlock()
		}
		if _, err := m.credentialFor(ctx, ns, alias, tenantID, scopes, prompt); err == nil {
			if onComplete != nil {
				onComplete()
			}
		} else {
			m.log.Warn().Str("namespace", ns).Str("alias", alias).Err(err).Msg("device login failed")
		}
		m.mu.Lock()
		delete(m.pending, alias)
		m.mu.Unlock()
	}()
}

// DevicePrompt returns the current device-code prompt message for alias, or
// empty when no login is pending.
func (m *Manager) DevicePrompt(alias string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pending[alias]
}

// HasAuthRecord reports whether a persisted auth record exists for alias.
func (m *Manager) HasAuthRecord(ctx context.Context, alias string) bool {
	_, err := os.Stat(m.authRecordPath(m.namespace(ctx), alias))
	return err == nil
}

// Logout drops cached credentials and clients for alias and removes its
// persisted auth record. It reports whether a record was actually removed.
func (m *Manager) Logout(ctx context.Context, alias string) bool {
	ns := m.namespace(ctx)
	m.mu.Lock()
	delete(m.creds, ns+"|"+alias)
	prefix := ns + "|" + alias + "|"
	for key := range m.clients {
		if strings.HasPrefix(key, prefix) {
			delete(m.clients, key)
		}
	}
	m.mu.Unlock()
	path := m.authRecordPath(ns, alias)
	if err := os.Remove(path); err != nil {
		return false
	}
	m.log.Info().Str("namespace", ns).Str("alias", alias).Msg("logged out")
	return true
}

// acquireCredential performs the device-code flow. With a persisted record it
// first tries a short silent preflight and only prompts when that fails.
func (m *Manager) acquireCredential(ctx context.Context, ns, alias, tenantID string, scopes []string, prompt func(string)) (*azidentity.DeviceCodeCredential, error) {
	if err := m.ensureDirs(); err != nil {
		return nil, err
	}
	rec, haveRec := m.loadAuthRecord(ns, alias)

	aCache, err := cache.New(&cache.Options{Name: cacheName(ns, alias)})
	if err != nil {
		return nil, err
	}
	// Always supply a prompt callback so the SDK never prints to stdout.
	userPrompt := func(_ context.Context, msg azidentity.DeviceCodeMessage) error {
		if prompt != nil {
			prompt(msg.Message)
		}
		return nil
	}
	opts := &azidentity.DeviceCodeCredentialOptions{
		TenantID:   tenantID,
		ClientID:   m.clientID,
		Cache:      aCache,
		UserPrompt: userPrompt,
	}
	if haveRec {
		opts.AuthenticationRecord = rec
	}
	cred, err := azidentity.NewDeviceCodeCredential(opts)
	if err != nil {
		return nil, err
	}

	if haveRec {
		tctx, cancel := context.WithTimeout(ctx, silentPreflight)
		_, preErr := cred.GetToken(tctx, policy.TokenRequestOptions{Scopes: scopes})
		cancel()
		if preErr == nil {
			return cred, nil
		}
	}
	rec, err = cred.Authenticate(ctx, &policy.TokenRequestOptions{Scopes: scopes})
	if err != nil {
		return nil, err
	}
	m.saveAuthRecord(ns, alias, rec)
	return cred, nil
}

// clientKey builds a stable cache key from namespace, alias, tenant, and
// normalized scopes.
func (m *Manager) clientKey(ns, alias, tenantID string, scopes []string) string {
	if len(scopes) > 0 {
		norm := make([]string, 0, len(scopes))
		for _, s := range scopes {
			if s == "" {
				continue
			}
			norm = append(norm, strings.ToLower(s))
		}
		sort.Strings(norm)
		scopes = norm
	}
	if ns == "" {
		ns = "default"
	}
	return ns + "|" + alias + "|" + tenantID + "|" + strings.Join(scopes, ",")
}
