package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	neturl "net/url"
	"strings"
	"time"

	"github.com/microsoftgraph/msgraph-sdk-go/models"
	"github.com/microsoftgraph/msgraph-sdk-go/models/odataerrors"
	"github.com/rs/zerolog"

	"github.com/mailops/outlook-mcp/mail"
)

const defaultGraphURL = "https://graph.microsoft.com/v1.0"

// subjectSearchPage is how many messages we over-fetch when filtering by
// subject: Graph's contains() is literal and case-sensitive, so matching
// happens client-side over a larger page.
const subjectSearchPage = 50

// MailService executes mailbox operations for one account. It implements
// mail.Sender for the delivery pipeline and exposes fetch/delete
// passthroughs. Query-style calls go through REST to keep exact control of
// payloads; id-addressed calls use the Graph SDK client.
type MailService struct {
	m        *Manager
	alias    string
	tenantID string
	scopes   []string
	prompt   func(string)
	log      zerolog.Logger

	baseURL    string
	httpClient *http.Client
	// token resolves a bearer token; overridable in tests.
	token func(ctx context.Context) (string, error)
}

// Mail returns a MailService bound to the given account alias.
func (m *Manager) Mail(alias, tenantID string, scopes []string, prompt func(string)) *MailService {
	s := &MailService{
		m:          m,
		alias:      alias,
		tenantID:   tenantID,
		scopes:     scopes,
		prompt:     prompt,
		log:        m.log,
		baseURL:    defaultGraphURL,
		httpClient: http.DefaultClient,
	}
	s.token = func(ctx context.Context) (string, error) {
		return m.BearerToken(ctx, alias, tenantID, scopes, prompt)
	}
	return s
}

// Preflight resolves a token before a batch starts, so a missing or expired
// credential fails the whole request up front instead of producing one
// identical failure per payload.
func (s *MailService) Preflight(ctx context.Context) error {
	_, err := s.token(ctx)
	return err
}

// Deliver issues the provider call for one pipeline payload.
func (s *MailService) Deliver(ctx context.Context, p *mail.Payload) (string, error) {
	var path string
	switch p.Op {
	case mail.OpReply:
		path = "/me/messages/" + neturl.PathEscape(p.SourceID) + "/reply"
	case mail.OpForward:
		path = "/me/messages/" + neturl.PathEscape(p.SourceID) + "/forward"
	default:
		path = "/me/sendMail"
	}
	return "", s.post(ctx, path, p.Body)
}

func (s *MailService) post(ctx context.Context, path string, body any) error {
	tok, err := s.token(ctx)
	if err != nil {
		return err
	}
	b, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+tok)
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return transportError(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return statusError(resp.StatusCode, string(raw))
	}
	return nil
}

// Fetch lists messages per the filter criteria, or fetches one message by id.
func (s *MailService) Fetch(ctx context.Context, in *FetchInput) (*FetchOutput, error) {
	if in.MessageID != "" {
		detail, err := s.Get(ctx, in.MessageID)
		if err != nil {
			return nil, err
		}
		return &FetchOutput{Message: detail}, nil
	}

	folder := in.Folder
	if folder == "" {
		folder = "inbox"
	}
	top := in.Top
	if top <= 0 {
		top = 10
	}
	fetchTop := top
	if in.Subject != "" && fetchTop < subjectSearchPage {
		fetchTop = subjectSearchPage
	}

	q := neturl.Values{}
	q.Set("$top", fmt.Sprintf("%d", fetchTop))
	q.Set("$orderby", "receivedDateTime DESC")
	var filters []string
	if in.IsRead != nil {
		filters = append(filters, fmt.Sprintf("isRead eq %t", *in.IsRead))
	}
	if in.Sender != "" {
		filters = append(filters, fmt.Sprintf("from/emailAddress/address eq '%s'", in.Sender))
	}
	if len(filters) > 0 {
		q.Set("$filter", strings.Join(filters, " and "))
	}

	tok, err := s.token(ctx)
	if err != nil {
		return nil, err
	}
	url := s.baseURL + "/me/mailFolders/" + neturl.PathEscape(folder) + "/messages?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+tok)
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, transportError(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, statusError(resp.StatusCode, string(raw))
	}
	var payload struct {
		Value []struct {
			ID      string `json:"id"`
			Subject string `json:"subject"`
			From    struct {
				EmailAddress struct {
					Address string `json:"address"`
				} `json:"emailAddress"`
			} `json:"from"`
			ReceivedDateTime string `json:"receivedDateTime"`
			IsRead           bool   `json:"isRead"`
			BodyPreview      string `json:"bodyPreview"`
		} `json:"value"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode messages: %w", err)
	}
	out := &FetchOutput{}
	for _, msg := range payload.Value {
		if in.Subject != "" && !subjectMatches(msg.Subject, in.Subject) {
			continue
		}
		out.Messages = append(out.Messages, MessageSummary{
			ID:       msg.ID,
			Subject:  msg.Subject,
			From:     msg.From.EmailAddress.Address,
			Received: msg.ReceivedDateTime,
			IsRead:   msg.IsRead,
			Preview:  msg.BodyPreview,
		})
		if len(out.Messages) >= top {
			break
		}
	}
	return out, nil
}

// subjectMatches reports whether every whitespace-separated term of query
// appears in subject, case-insensitively.
func subjectMatches(subject, query string) bool {
	lower := strings.ToLower(subject)
	for _, term := range strings.Fields(strings.ToLower(query)) {
		if !strings.Contains(lower, term) {
			return false
		}
	}
	return true
}

// Get fetches a single message by id via the SDK client.
func (s *MailService) Get(ctx context.Context, messageID string) (*MessageDetail, error) {
	client, err := s.m.Client(ctx, s.alias, s.tenantID, s.scopes, s.prompt)
	if err != nil {
		return nil, &Error{Kind: KindUnauthorized, Detail: err.Error()}
	}
	msg, err := client.Me().Messages().ByMessageId(messageID).Get(ctx, nil)
	if err != nil {
		return nil, sdkError(err)
	}
	detail := &MessageDetail{
		MessageSummary: MessageSummary{
			ID:      deref(msg.GetId()),
			Subject: deref(msg.GetSubject()),
			From:    senderAddress(msg.GetFrom()),
			IsRead:  msg.GetIsRead() != nil && *msg.GetIsRead(),
			Preview: deref(msg.GetBodyPreview()),
		},
	}
	if ts := msg.GetReceivedDateTime(); ts != nil {
		detail.Received = ts.Format(time.RFC3339)
	}
	if body := msg.GetBody(); body != nil {
		detail.Body = deref(body.GetContent())
		if ct := body.GetContentType(); ct != nil {
			detail.BodyType = ct.String()
		}
	}
	return detail, nil
}

// Delete removes a message by id via the SDK client.
func (s *MailService) Delete(ctx context.Context, messageID string) error {
	client, err := s.m.Client(ctx, s.alias, s.tenantID, s.scopes, s.prompt)
	if err != nil {
		return &Error{Kind: KindUnauthorized, Detail: err.Error()}
	}
	if err := client.Me().Messages().ByMessageId(messageID).Delete(ctx, nil); err != nil {
		return sdkError(err)
	}
	return nil
}

// sdkError converts an SDK failure into the typed taxonomy.
func sdkError(err error) error {
	var od *odataerrors.ODataError
	if errors.As(err, &od) {
		detail := od.Error()
		if main := od.GetErrorEscaped(); main != nil && main.GetMessage() != nil {
			detail = *main.GetMessage()
		}
		return statusError(od.ResponseStatusCode, detail)
	}
	return transportError(err)
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func senderAddress(r models.Recipientable) string {
	if r == nil || r.GetEmailAddress() == nil || r.GetEmailAddress().GetAddress() == nil {
		return ""
	}
	return *r.GetEmailAddress().GetAddress()
}
