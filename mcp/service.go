package mcp

import (
	"context"
	"fmt"
	"html"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/viant/scy"
	"github.com/viant/scy/cred"

	oa "github.com/mailops/outlook-mcp/auth"
	"github.com/mailops/outlook-mcp/graph"
	"github.com/mailops/outlook-mcp/mail"
)

// DefaultAlias is the account used when a caller does not name one.
const DefaultAlias = "default"

// promptWait bounds how long the login tool waits for the device-code
// message to materialize before telling the caller to open the login page.
const promptWait = 8 * time.Second

// Service wires the Graph credential manager, the delivery pipeline, and the
// pending device logins behind both the MCP tools and the REST API.
type Service struct {
	graphMgr *graph.Manager
	pending  *PendingAuths
	auth     *oa.Service
	cfg      *Config
	log      zerolog.Logger
	useText  bool
}

func NewService(cfg *Config, log zerolog.Logger) *Service {
	if cfg == nil {
		cfg = &Config{}
	}
	// Optionally resolve the Azure OAuth2 client from a scy EncodedResource.
	if cfg.AzureRef != "" {
		res := cfg.AzureRef.Decode(context.Background(), cred.Azure{})
		if sec, err := scy.New().Load(context.Background(), res); err == nil {
			if az, ok := sec.Target.(*cred.Azure); ok {
				if cfg.ClientID == "" && az.ClientID != "" {
					cfg.ClientID = az.ClientID
				}
				if cfg.TenantID == "" && az.TenantID != "" {
					cfg.TenantID = az.TenantID
				}
			}
		} else {
			log.Warn().Err(err).Msg("failed to load azureRef secret")
		}
	}
	if cfg.TenantID == "" {
		cfg.TenantID = "organizations"
	}
	return &Service{
		graphMgr: graph.NewManager(cfg.ClientID, cfg.StorageDir, log),
		pending:  NewPendingAuths(),
		auth:     oa.New(),
		cfg:      cfg,
		log:      log,
		useText:  !cfg.UseData,
	}
}

func (s *Service) GraphManager() *graph.Manager { return s.graphMgr }
func (s *Service) UseTextField() bool           { return s.useText }
func (s *Service) BaseURL() string              { return s.cfg.CallbackBaseURL }
func (s *Service) Pending() *PendingAuths       { return s.pending }

func (s *Service) mailService(alias string) *graph.MailService {
	if alias == "" {
		alias = DefaultAlias
	}
	return s.graphMgr.Mail(alias, s.cfg.TenantID, graph.DefaultScopes(), nil)
}

// Run executes the composition/delivery pipeline for one request against the
// named account. Structural and auth problems fail the whole request before
// any payload is sent; a token expiring mid-batch surfaces as ordinary
// per-payload failures instead.
func (s *Service) Run(ctx context.Context, alias string, r *mail.Request) (mail.DeliverySummary, error) {
	svc := s.mailService(alias)
	if err := r.Validate(); err != nil {
		return mail.DeliverySummary{Status: mail.StatusError}, err
	}
	if err := svc.Preflight(ctx); err != nil {
		return mail.DeliverySummary{Status: mail.StatusError}, err
	}
	return mail.Run(ctx, svc, r, s.cfg.ccPolicy(), &s.log)
}

// Fetch lists messages or fetches one by id.
func (s *Service) Fetch(ctx context.Context, alias string, in *graph.FetchInput) (*graph.FetchOutput, error) {
	return s.mailService(alias).Fetch(ctx, in)
}

// Delete removes a message by id.
func (s *Service) Delete(ctx context.Context, alias, messageID string) error {
	return s.mailService(alias).Delete(ctx, messageID)
}

// LoginResult is what the login tool returns to the assistant.
type LoginResult struct {
	Status string `json:"status"`
	// Message is the provider's device-code instruction when sign-in is
	// required.
	Message string `json:"message,omitempty"`
	// URL points at this server's device login page for the pending auth.
	URL string `json:"url,omitempty"`
}

// Login checks whether the account already has a usable credential; when it
// does not, it kicks off a background device-code flow and returns the
// device prompt plus the login page URL.
func (s *Service) Login(ctx context.Context, alias string) (*LoginResult, error) {
	if alias == "" {
		alias = DefaultAlias
	}
	if !s.graphMgr.NeedsInteractive(ctx, alias, s.cfg.TenantID, graph.DefaultScopes()) {
		return &LoginResult{Status: mail.StatusOK, Message: "Already signed in."}, nil
	}
	ns, _ := s.auth.Namespace(ctx)
	id := uuid.New().String()
	s.pending.Put(&PendingAuth{UUID: id, Alias: alias, TenantID: s.cfg.TenantID, Namespace: ns})
	// Detach from the tool call's cancellation: the device flow outlives it.
	// The caller's namespace travels explicitly so the credential is stored
	// where that caller's later requests resolve it.
	s.graphMgr.StartDeviceLogin(context.WithoutCancel(ctx), ns, alias, s.cfg.TenantID, graph.DefaultScopes(), func() {
		s.pending.Complete(id)
	})

	msg := s.waitForPrompt(ctx, alias, promptWait)
	out := &LoginResult{Status: mail.StatusOK, Message: msg}
	if base := strings.TrimRight(s.cfg.CallbackBaseURL, "/"); base != "" {
		out.URL = fmt.Sprintf("%s/outlook/auth/device/%s", base, id)
	}
	if msg == "" && out.URL == "" {
		return nil, fmt.Errorf("device login did not produce a prompt for %q", alias)
	}
	return out, nil
}

func (s *Service) waitForPrompt(ctx context.Context, alias string, wait time.Duration) string {
	deadline := time.Now().Add(wait)
	for {
		if msg := s.graphMgr.DevicePrompt(alias); msg != "" {
			return msg
		}
		if time.Now().After(deadline) || ctx.Err() != nil {
			return ""
		}
		time.Sleep(200 * time.Millisecond)
	}
}

// Logout drops the account's credentials and persisted auth record.
func (s *Service) Logout(ctx context.Context, alias string) bool {
	if alias == "" {
		alias = DefaultAlias
	}
	return s.graphMgr.Logout(ctx, alias)
}

// DeviceHandler serves the device login page for a pending auth UUID:
// /outlook/auth/device/{uuid}
func (s *Service) DeviceHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
		if len(parts) != 4 {
			http.Error(w, "invalid path", http.StatusBadRequest)
			return
		}
		pend, ok := s.pending.Get(parts[3])
		if !ok {
			http.Error(w, "no pending auth", http.StatusNotFound)
			return
		}
		msg := s.waitForPrompt(r.Context(), pend.Alias, promptWait)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if msg == "" {
			_, _ = fmt.Fprint(w, buildWaitingForDeviceHTML())
			return
		}
		_, _ = fmt.Fprint(w, buildDeviceLoginHTML(msg))
	}
}

// PendingListHandler returns the caller namespace's pending device logins.
func (s *Service) PendingListHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ns, _ := s.auth.Namespace(r.Context())
		writeJSON(w, http.StatusOK, map[string]any{"pending": s.pending.ListNamespace(ns)})
	}
}

// PendingClearHandler drops the caller namespace's pending device logins.
func (s *Service) PendingClearHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ns, _ := s.auth.Namespace(r.Context())
		cleared := s.pending.ClearNamespace(ns)
		writeJSON(w, http.StatusOK, map[string]any{"cleared": cleared})
	}
}

var (
	deviceURLPattern  = regexp.MustCompile(`https?://[^\s]+`)
	deviceCodePattern = regexp.MustCompile(`(?i)code\s+([A-Z0-9-]+)`)
)

// buildDeviceLoginHTML renders the Azure device prompt as a clickable link
// with a copyable code.
func buildDeviceLoginHTML(msg string) string {
	url := "https://microsoft.com/devicelogin"
	if m := deviceURLPattern.FindString(msg); m != "" {
		url = m
	}
	code := ""
	if m := deviceCodePattern.FindStringSubmatch(msg); len(m) == 2 {
		code = m[1]
	}
	escURL := html.EscapeString(url)
	escCode := html.EscapeString(code)
	if escCode == "" {
		return fmt.Sprintf(`<html><body>
<h3>Sign in to Outlook</h3>
<p>Open <a href="%[1]s" target="_blank" rel="noopener noreferrer">%[1]s</a> and follow the instructions.</p>
<pre>%[2]s</pre>
<p>Keep this tab open; return to your assistant after completing sign-in.</p>
</body></html>`, escURL, html.EscapeString(msg))
	}
	return fmt.Sprintf(`<html><body style="font-family: -apple-system, Segoe UI, Roboto, sans-serif;">
<h3>Sign in to Outlook</h3>
<p>Click to open: <a href="%[1]s" target="_blank" rel="noopener noreferrer">%[1]s</a></p>
<p>Then enter this code:</p>
<p style="font-size: 1.4em; font-weight: 600;"><code>%[2]s</code> <button onclick="navigator.clipboard.writeText('%[2]s')">Copy</button></p>
<p>Keep this tab open; return to your assistant after completing sign-in.</p>
</body></html>`, escURL, escCode)
}

func buildWaitingForDeviceHTML() string {
	url := html.EscapeString("https://microsoft.com/devicelogin")
	return fmt.Sprintf(`<!doctype html>
<html><head>
<meta http-equiv="refresh" content="2">
<meta charset="utf-8">
<title>Sign in to Outlook</title>
<style>body{font-family:-apple-system,Segoe UI,Roboto,sans-serif;margin:24px}</style>
</head><body>
<h3>Sign in to Outlook</h3>
<p>Preparing device login… this page refreshes automatically.</p>
<p>If it takes too long, open <a href="%[1]s" target="_blank" rel="noopener noreferrer">%[1]s</a> and follow the instructions.</p>
</body></html>`, url)
}
