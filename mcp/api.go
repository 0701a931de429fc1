package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/mailops/outlook-mcp/graph"
	"github.com/mailops/outlook-mcp/mail"
)

// mailOps is the narrow surface the REST handlers need; tests substitute a
// fake so no Graph credential is required.
type mailOps interface {
	Run(ctx context.Context, alias string, r *mail.Request) (mail.DeliverySummary, error)
	Fetch(ctx context.Context, alias string, in *graph.FetchInput) (*graph.FetchOutput, error)
	Delete(ctx context.Context, alias, messageID string) error
}

// API serves the REST mirror of the mail tools.
type API struct {
	ops mailOps
	log zerolog.Logger
}

func NewAPI(svc *Service) *API {
	return &API{ops: svc, log: svc.log}
}

// Routes maps every REST pattern to its handler. The server mounts them as
// custom HTTP handlers next to the MCP endpoint.
func (a *API) Routes() map[string]http.HandlerFunc {
	return map[string]http.HandlerFunc{
		"/api/send-email":    a.SendHandler(),
		"/api/fetch-emails":  a.FetchHandler(),
		"/api/reply-email":   a.ReplyHandler(),
		"/api/forward-email": a.ForwardHandler(),
		"/api/delete-email":  a.DeleteHandler(),
		"/health":            HealthHandler(),
	}
}

// AddressList accepts either a delimited string or a JSON array of
// addresses, mirroring the flexible input the tool interface takes.
type AddressList string

func (l *AddressList) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*l = AddressList(s)
		return nil
	}
	var items []string
	if err := json.Unmarshal(data, &items); err != nil {
		return err
	}
	*l = AddressList(strings.Join(items, ","))
	return nil
}

type sendEmailBody struct {
	Account        string      `json:"account,omitempty"`
	Recipient      AddressList `json:"recipient"`
	Subject        string      `json:"subject"`
	Body           string      `json:"body,omitempty"`
	Message        string      `json:"message,omitempty"`
	ContentType    string      `json:"content_type,omitempty"`
	Cc             AddressList `json:"cc,omitempty"`
	Bcc            AddressList `json:"bcc,omitempty"`
	SendIndividual bool        `json:"send_individual,omitempty"`
}

func (a *API) SendHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		var in sendEmailBody
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid JSON body"})
			return
		}
		if in.Recipient == "" || in.Subject == "" {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "missing required fields: 'recipient' and 'subject'"})
			return
		}
		body := in.Body
		if body == "" {
			body = in.Message
		}
		if body == "" {
			body = "No content provided."
		}
		req := mail.NewRequest(mail.OpNew, "", in.Subject, body, mail.ParseContentType(in.ContentType),
			string(in.Recipient), string(in.Cc), string(in.Bcc), in.SendIndividual)
		a.runAndRespond(w, r, in.Account, req)
	}
}

func (a *API) FetchHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		q := r.URL.Query()
		in := &graph.FetchInput{
			Folder:    q.Get("folder"),
			Sender:    q.Get("sender"),
			MessageID: q.Get("email_id"),
			Subject:   q.Get("subject"),
		}
		if v := q.Get("is_read"); v != "" {
			isRead := v == "true"
			in.IsRead = &isRead
		}
		if v := q.Get("top"); v != "" {
			if top, err := strconv.Atoi(v); err == nil {
				in.Top = top
			}
		}
		out, err := a.ops.Fetch(r.Context(), q.Get("account"), in)
		if err != nil {
			a.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, &FetchResult{Status: mail.StatusOK, FetchOutput: *out})
	}
}

type replyEmailBody struct {
	Account      string      `json:"account,omitempty"`
	MessageID    string      `json:"email_id"`
	ReplyMessage string      `json:"reply_message"`
	ContentType  string      `json:"content_type,omitempty"`
	To           AddressList `json:"to,omitempty"`
}

func (a *API) ReplyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		var in replyEmailBody
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid JSON body"})
			return
		}
		if in.MessageID == "" || in.ReplyMessage == "" {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "missing required fields: email_id and reply_message"})
			return
		}
		req := mail.NewRequest(mail.OpReply, in.MessageID, "", in.ReplyMessage, mail.ParseContentType(in.ContentType),
			string(in.To), "", "", false)
		a.runAndRespond(w, r, in.Account, req)
	}
}

type forwardEmailBody struct {
	Account           string      `json:"account,omitempty"`
	MessageID         string      `json:"email_id"`
	Recipient         AddressList `json:"recipient"`
	Cc                AddressList `json:"cc,omitempty"`
	Bcc               AddressList `json:"bcc,omitempty"`
	AdditionalMessage string      `json:"additional_message,omitempty"`
	ContentType       string      `json:"content_type,omitempty"`
	SendIndividual    bool        `json:"send_individual,omitempty"`
}

func (a *API) ForwardHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		var in forwardEmailBody
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid JSON body"})
			return
		}
		if in.MessageID == "" || in.Recipient == "" {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "missing required fields: email_id and recipient"})
			return
		}
		req := mail.NewRequest(mail.OpForward, in.MessageID, "", in.AdditionalMessage, mail.ParseContentType(in.ContentType),
			string(in.Recipient), string(in.Cc), string(in.Bcc), in.SendIndividual)
		a.runAndRespond(w, r, in.Account, req)
	}
}

type deleteEmailBody struct {
	Account   string `json:"account,omitempty"`
	MessageID string `json:"email_id"`
}

func (a *API) DeleteHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		var in deleteEmailBody
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid JSON body"})
			return
		}
		if in.MessageID == "" {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "missing required field: email_id"})
			return
		}
		if err := a.ops.Delete(r.Context(), in.Account, in.MessageID); err != nil {
			a.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, &StatusResult{Status: mail.StatusOK, Message: "Message deleted."})
	}
}

// HealthHandler answers liveness probes.
func HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "outlook-mail-mcp"})
	}
}

func (a *API) runAndRespond(w http.ResponseWriter, r *http.Request, alias string, req *mail.Request) {
	summary, err := a.ops.Run(r.Context(), alias, req)
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.log.Debug().Str("op", string(req.Op)).Str("status", summary.Status).
		Int("sent", len(summary.Sent)).Int("failed", len(summary.Failed)).Msg("delivery finished")
	writeJSON(w, http.StatusOK, &summary)
}

// writeError maps failure types onto HTTP statuses: structural input
// problems are 400, missing credentials 401; provider passthrough failures
// keep a 200 envelope with status "error" so callers get the same shape the
// tools produce.
func (a *API) writeError(w http.ResponseWriter, err error) {
	var inputErr *mail.InputError
	if errors.As(err, &inputErr) {
		writeJSON(w, http.StatusBadRequest, errorEnvelope(err))
		return
	}
	if graph.IsKind(err, graph.KindUnauthorized) {
		writeJSON(w, http.StatusUnauthorized, errorEnvelope(err))
		return
	}
	writeJSON(w, http.StatusOK, errorEnvelope(err))
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
