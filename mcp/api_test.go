package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mailops/outlook-mcp/graph"
	"github.com/mailops/outlook-mcp/mail"
)

type fakeOps struct {
	lastAlias   string
	lastRequest *mail.Request
	lastFetch   *graph.FetchInput
	deletedID   string

	runSummary mail.DeliverySummary
	runErr     error
	fetchOut   *graph.FetchOutput
	fetchErr   error
	deleteErr  error
}

func (f *fakeOps) Run(_ context.Context, alias string, r *mail.Request) (mail.DeliverySummary, error) {
	f.lastAlias = alias
	f.lastRequest = r
	return f.runSummary, f.runErr
}

func (f *fakeOps) Fetch(_ context.Context, alias string, in *graph.FetchInput) (*graph.FetchOutput, error) {
	f.lastAlias = alias
	f.lastFetch = in
	return f.fetchOut, f.fetchErr
}

func (f *fakeOps) Delete(_ context.Context, alias, messageID string) error {
	f.lastAlias = alias
	f.deletedID = messageID
	return f.deleteErr
}

func testAPI(ops mailOps) *API {
	return &API{ops: ops, log: zerolog.Nop()}
}

func doJSON(t *testing.T, handler http.HandlerFunc, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func TestSendHandler(t *testing.T) {
	ops := &fakeOps{runSummary: mail.Summarize([]mail.Outcome{
		{Recipient: "group", Success: true, MessageID: "m1"},
	})}
	api := testAPI(ops)

	body := `{"recipient":"a@x.com; b@x.com","subject":"Hello","body":"Hi","cc":["c@x.com","d@x.com"],"send_individual":true,"account":"work"}`
	rec := doJSON(t, api.SendHandler(), http.MethodPost, "/api/send-email", body)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, ops.lastRequest)
	assert.Equal(t, "work", ops.lastAlias)
	assert.Equal(t, mail.OpNew, ops.lastRequest.Op)
	assert.Equal(t, []string{"a@x.com", "b@x.com"}, ops.lastRequest.To)
	assert.Equal(t, []string{"c@x.com", "d@x.com"}, ops.lastRequest.Cc)
	assert.Equal(t, mail.Individual, ops.lastRequest.Mode)

	var summary mail.DeliverySummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Equal(t, mail.StatusOK, summary.Status)
	assert.Len(t, summary.Sent, 1)
}

func TestSendHandlerDefaultsEmptyBody(t *testing.T) {
	ops := &fakeOps{runSummary: mail.Summarize([]mail.Outcome{{Recipient: "group", Success: true}})}
	api := testAPI(ops)
	rec := doJSON(t, api.SendHandler(), http.MethodPost, "/api/send-email",
		`{"recipient":"a@x.com","subject":"Subject"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, ops.lastRequest)
	assert.Equal(t, "No content provided.", ops.lastRequest.Body)
}

func TestSendHandlerMissingFields(t *testing.T) {
	api := testAPI(&fakeOps{})
	rec := doJSON(t, api.SendHandler(), http.MethodPost, "/api/send-email", `{"subject":"x"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSendHandlerInputError(t *testing.T) {
	ops := &fakeOps{runErr: &mail.InputError{Field: "recipient", Reason: "invalid address", Addresses: []string{"bogus"}}}
	api := testAPI(ops)
	rec := doJSON(t, api.SendHandler(), http.MethodPost, "/api/send-email",
		`{"recipient":"bogus","subject":"x","body":"y"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, "error", out["status"])
	assert.Contains(t, out["message"], "invalid email address")
}

func TestSendHandlerUnauthorized(t *testing.T) {
	ops := &fakeOps{runErr: &graph.Error{Kind: graph.KindUnauthorized, Status: 401, Detail: "token expired"}}
	api := testAPI(ops)
	rec := doJSON(t, api.SendHandler(), http.MethodPost, "/api/send-email",
		`{"recipient":"a@x.com","subject":"x","body":"y"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSendHandlerProviderErrorKeeps200(t *testing.T) {
	ops := &fakeOps{runErr: &graph.Error{Kind: graph.KindServer, Status: 503, Detail: "down"}}
	api := testAPI(ops)
	rec := doJSON(t, api.SendHandler(), http.MethodPost, "/api/send-email",
		`{"recipient":"a@x.com","subject":"x","body":"y"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, "error", out["status"])
}

func TestSendHandlerMethodNotAllowed(t *testing.T) {
	api := testAPI(&fakeOps{})
	rec := doJSON(t, api.SendHandler(), http.MethodGet, "/api/send-email", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestFetchHandler(t *testing.T) {
	ops := &fakeOps{fetchOut: &graph.FetchOutput{
		Messages: []graph.MessageSummary{{ID: "m1", Subject: "report"}},
	}}
	api := testAPI(ops)
	rec := doJSON(t, api.FetchHandler(), http.MethodGet,
		"/api/fetch-emails?folder=archive&is_read=false&sender=alice@x.com&subject=report&top=5&account=work", "")

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, ops.lastFetch)
	assert.Equal(t, "work", ops.lastAlias)
	assert.Equal(t, "archive", ops.lastFetch.Folder)
	assert.Equal(t, "alice@x.com", ops.lastFetch.Sender)
	assert.Equal(t, "report", ops.lastFetch.Subject)
	assert.Equal(t, 5, ops.lastFetch.Top)
	require.NotNil(t, ops.lastFetch.IsRead)
	assert.False(t, *ops.lastFetch.IsRead)

	var out FetchResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, mail.StatusOK, out.Status)
	assert.Len(t, out.Messages, 1)
}

func TestReplyHandler(t *testing.T) {
	ops := &fakeOps{runSummary: mail.Summarize([]mail.Outcome{{Recipient: "group", Success: true}})}
	api := testAPI(ops)
	rec := doJSON(t, api.ReplyHandler(), http.MethodPost, "/api/reply-email",
		`{"email_id":"m1","reply_message":"thanks","to":"bob@x.com"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, ops.lastRequest)
	assert.Equal(t, mail.OpReply, ops.lastRequest.Op)
	assert.Equal(t, "m1", ops.lastRequest.SourceID)
	assert.Equal(t, "thanks", ops.lastRequest.Body)
	assert.Equal(t, []string{"bob@x.com"}, ops.lastRequest.To)
}

func TestReplyHandlerMissingFields(t *testing.T) {
	api := testAPI(&fakeOps{})
	rec := doJSON(t, api.ReplyHandler(), http.MethodPost, "/api/reply-email", `{"email_id":"m1"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestForwardHandler(t *testing.T) {
	ops := &fakeOps{runSummary: mail.Summarize([]mail.Outcome{{Recipient: "group", Success: true}})}
	api := testAPI(ops)
	rec := doJSON(t, api.ForwardHandler(), http.MethodPost, "/api/forward-email",
		`{"email_id":"m1","recipient":"a@x.com,b@x.com","additional_message":"FYI","content_type":"html"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, ops.lastRequest)
	assert.Equal(t, mail.OpForward, ops.lastRequest.Op)
	assert.Equal(t, "m1", ops.lastRequest.SourceID)
	assert.Equal(t, []string{"a@x.com", "b@x.com"}, ops.lastRequest.To)
	assert.Equal(t, mail.HTMLContent, ops.lastRequest.ContentType)
}

func TestDeleteHandler(t *testing.T) {
	ops := &fakeOps{}
	api := testAPI(ops)
	rec := doJSON(t, api.DeleteHandler(), http.MethodDelete, "/api/delete-email", `{"email_id":"m9"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "m9", ops.deletedID)
	var out StatusResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, mail.StatusOK, out.Status)
}

func TestDeleteHandlerNotFoundKeeps200(t *testing.T) {
	ops := &fakeOps{deleteErr: &graph.Error{Kind: graph.KindNotFound, Status: 404, Detail: "gone"}}
	api := testAPI(ops)
	rec := doJSON(t, api.DeleteHandler(), http.MethodDelete, "/api/delete-email", `{"email_id":"m9"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, "error", out["status"])
	assert.Equal(t, string(graph.KindNotFound), out["kind"])
}

func TestRoutesCoverEveryEndpoint(t *testing.T) {
	routes := testAPI(&fakeOps{}).Routes()
	for _, pattern := range []string{
		"/api/send-email",
		"/api/fetch-emails",
		"/api/reply-email",
		"/api/forward-email",
		"/api/delete-email",
		"/health",
	} {
		assert.Contains(t, routes, pattern)
	}
	assert.Len(t, routes, 6)
}

func TestHealthHandler(t *testing.T) {
	rec := doJSON(t, HealthHandler(), http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var out map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, "ok", out["status"])
}

func TestAddressListAcceptsStringOrArray(t *testing.T) {
	var fromString AddressList
	require.NoError(t, json.Unmarshal([]byte(`"a@x.com; b@x.com"`), &fromString))
	assert.Equal(t, []string{"a@x.com", "b@x.com"}, mail.SplitAddressList(string(fromString)))

	var fromArray AddressList
	require.NoError(t, json.Unmarshal([]byte(`["a@x.com","b@x.com"]`), &fromArray))
	assert.Equal(t, []string{"a@x.com", "b@x.com"}, mail.SplitAddressList(string(fromArray)))

	var bad AddressList
	assert.Error(t, json.Unmarshal([]byte(`42`), &bad))
}
