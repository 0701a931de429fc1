package mcp

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"

	"github.com/viant/jsonrpc"
	"github.com/viant/mcp-protocol/schema"
	protoserver "github.com/viant/mcp-protocol/server"

	"github.com/mailops/outlook-mcp/graph"
	"github.com/mailops/outlook-mcp/mail"
)

//go:embed tools/login.md
var loginDesc string

//go:embed tools/logout.md
var logoutDesc string

//go:embed tools/send_email.md
var sendEmailDesc string

//go:embed tools/fetch_email.md
var fetchEmailDesc string

//go:embed tools/reply_email.md
var replyEmailDesc string

//go:embed tools/forward_email.md
var forwardEmailDesc string

//go:embed tools/delete_email.md
var deleteEmailDesc string

// Tool argument shapes. Every recipient field accepts comma or semicolon
// separated addresses.

type AccountInput struct {
	Account string `json:"account,omitempty" description:"account alias, defaults to 'default'"`
}

type SendEmailInput struct {
	AccountInput
	Recipient      string `json:"recipient" description:"primary recipients, comma or semicolon separated"`
	Subject        string `json:"subject"`
	Body           string `json:"body"`
	ContentType    string `json:"content_type,omitempty" description:"Text or HTML (default Text)"`
	Cc             string `json:"cc,omitempty"`
	Bcc            string `json:"bcc,omitempty"`
	SendIndividual bool   `json:"send_individual,omitempty" description:"send a separate message per recipient"`
}

type FetchEmailInput struct {
	AccountInput
	Folder    string `json:"folder,omitempty" description:"mail folder, default inbox"`
	IsRead    *bool  `json:"is_read,omitempty"`
	Sender    string `json:"sender,omitempty"`
	MessageID string `json:"email_id,omitempty" description:"fetch a single message by id"`
	Subject   string `json:"subject,omitempty" description:"subject contains every given term"`
	Top       int    `json:"top,omitempty"`
}

type ReplyEmailInput struct {
	AccountInput
	MessageID    string `json:"email_id"`
	ReplyMessage string `json:"reply_message"`
	ContentType  string `json:"content_type,omitempty"`
	To           string `json:"to,omitempty" description:"reply to these addresses instead of the original sender"`
}

type ForwardEmailInput struct {
	AccountInput
	MessageID         string `json:"email_id"`
	Recipient         string `json:"recipient" description:"forward recipients, comma or semicolon separated"`
	Cc                string `json:"cc,omitempty"`
	Bcc               string `json:"bcc,omitempty"`
	AdditionalMessage string `json:"additional_message,omitempty" description:"inserted ahead of the forwarded content"`
	ContentType       string `json:"content_type,omitempty"`
	SendIndividual    bool   `json:"send_individual,omitempty"`
}

type DeleteEmailInput struct {
	AccountInput
	MessageID string `json:"email_id"`
}

// StatusResult is the minimal envelope for operations without a summary.
type StatusResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// FetchResult wraps fetch output with the common status field.
type FetchResult struct {
	Status string `json:"status"`
	graph.FetchOutput
}

func registerTools(base *protoserver.DefaultHandler, h *Handler) error {
	svc := h.service

	if err := protoserver.RegisterTool[*AccountInput, *LoginResult](base.Registry, "login", loginDesc, func(ctx context.Context, in *AccountInput) (*schema.CallToolResult, *jsonrpc.Error) {
		out, err := svc.Login(ctx, in.Account)
		if err != nil {
			return buildResult(svc, errorEnvelope(err))
		}
		return buildResult(svc, out)
	}); err != nil {
		return err
	}

	if err := protoserver.RegisterTool[*AccountInput, *StatusResult](base.Registry, "logout", logoutDesc, func(ctx context.Context, in *AccountInput) (*schema.CallToolResult, *jsonrpc.Error) {
		if svc.Logout(ctx, in.Account) {
			return buildResult(svc, &StatusResult{Status: mail.StatusOK, Message: "Logout successful, access credentials removed."})
		}
		return buildResult(svc, &StatusResult{Status: mail.StatusOK, Message: "No stored credentials were found."})
	}); err != nil {
		return err
	}

	if err := protoserver.RegisterTool[*SendEmailInput, *mail.DeliverySummary](base.Registry, "send_email", sendEmailDesc, func(ctx context.Context, in *SendEmailInput) (*schema.CallToolResult, *jsonrpc.Error) {
		r := mail.NewRequest(mail.OpNew, "", in.Subject, in.Body, mail.ParseContentType(in.ContentType), in.Recipient, in.Cc, in.Bcc, in.SendIndividual)
		summary, err := svc.Run(ctx, in.Account, r)
		if err != nil {
			return buildResult(svc, errorEnvelope(err))
		}
		return buildResult(svc, &summary)
	}); err != nil {
		return err
	}

	if err := protoserver.RegisterTool[*FetchEmailInput, *FetchResult](base.Registry, "fetch_email", fetchEmailDesc, func(ctx context.Context, in *FetchEmailInput) (*schema.CallToolResult, *jsonrpc.Error) {
		out, err := svc.Fetch(ctx, in.Account, &graph.FetchInput{
			Folder:    in.Folder,
			IsRead:    in.IsRead,
			Sender:    in.Sender,
			MessageID: in.MessageID,
			Subject:   in.Subject,
			Top:       in.Top,
		})
		if err != nil {
			return buildResult(svc, errorEnvelope(err))
		}
		return buildResult(svc, &FetchResult{Status: mail.StatusOK, FetchOutput: *out})
	}); err != nil {
		return err
	}

	if err := protoserver.RegisterTool[*ReplyEmailInput, *mail.DeliverySummary](base.Registry, "reply_email", replyEmailDesc, func(ctx context.Context, in *ReplyEmailInput) (*schema.CallToolResult, *jsonrpc.Error) {
		r := mail.NewRequest(mail.OpReply, in.MessageID, "", in.ReplyMessage, mail.ParseContentType(in.ContentType), in.To, "", "", false)
		summary, err := svc.Run(ctx, in.Account, r)
		if err != nil {
			return buildResult(svc, errorEnvelope(err))
		}
		return buildResult(svc, &summary)
	}); err != nil {
		return err
	}

	if err := protoserver.RegisterTool[*ForwardEmailInput, *mail.DeliverySummary](base.Registry, "forward_email", forwardEmailDesc, func(ctx context.Context, in *ForwardEmailInput) (*schema.CallToolResult, *jsonrpc.Error) {
		r := mail.NewRequest(mail.OpForward, in.MessageID, "", in.AdditionalMessage, mail.ParseContentType(in.ContentType), in.Recipient, in.Cc, in.Bcc, in.SendIndividual)
		summary, err := svc.Run(ctx, in.Account, r)
		if err != nil {
			return buildResult(svc, errorEnvelope(err))
		}
		return buildResult(svc, &summary)
	}); err != nil {
		return err
	}

	if err := protoserver.RegisterTool[*DeleteEmailInput, *StatusResult](base.Registry, "delete_email", deleteEmailDesc, func(ctx context.Context, in *DeleteEmailInput) (*schema.CallToolResult, *jsonrpc.Error) {
		if in.MessageID == "" {
			return buildResult(svc, errorEnvelope(&mail.InputError{Field: "email_id", Reason: "required"}))
		}
		if err := svc.Delete(ctx, in.Account, in.MessageID); err != nil {
			return buildResult(svc, errorEnvelope(err))
		}
		return buildResult(svc, &StatusResult{Status: mail.StatusOK, Message: "Message deleted."})
	}); err != nil {
		return err
	}

	return nil
}

// errorEnvelope converts pipeline and provider failures into the structured
// result every caller receives; tool calls never surface partial failures as
// protocol errors.
func errorEnvelope(err error) map[string]any {
	out := map[string]any{"status": mail.StatusError, "message": err.Error()}
	var inputErr *mail.InputError
	if errors.As(err, &inputErr) {
		out["field"] = inputErr.Field
		if len(inputErr.Addresses) > 0 {
			out["invalid_addresses"] = inputErr.Addresses
		}
		return out
	}
	var graphErr *graph.Error
	if errors.As(err, &graphErr) {
		out["kind"] = string(graphErr.Kind)
	}
	return out
}

func buildResult(service *Service, payload any) (*schema.CallToolResult, *jsonrpc.Error) {
	if service.UseTextField() {
		b, _ := json.Marshal(payload)
		return &schema.CallToolResult{Content: []schema.CallToolResultContentElem{{Type: "text", Text: string(b)}}}, nil
	}
	return &schema.CallToolResult{StructuredContent: map[string]any{"result": payload}}, nil
}
