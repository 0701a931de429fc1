package mail

import (
	"fmt"
	"strings"
)

// DeliveryMode selects between one combined message and one message per
// recipient.
type DeliveryMode string

const (
	// Group sends a single message addressed to every recipient together.
	Group DeliveryMode = "group"
	// Individual sends an independent message per primary recipient.
	Individual DeliveryMode = "individual"
)

// OpKind discriminates the operation a Request performs.
type OpKind string

const (
	OpNew     OpKind = "new"
	OpReply   OpKind = "reply"
	OpForward OpKind = "forward"
)

// ContentType is the Graph body content type.
type ContentType string

const (
	TextContent ContentType = "Text"
	HTMLContent ContentType = "HTML"
)

// ParseContentType maps a caller-supplied content type onto the provider's
// casing, defaulting to Text.
func ParseContentType(s string) ContentType {
	if strings.EqualFold(strings.TrimSpace(s), "html") {
		return HTMLContent
	}
	return TextContent
}

// CcPolicy controls how cc/bcc lists are attached in individual mode.
type CcPolicy string

const (
	// ReplicateCc attaches the full cc/bcc lists to every individual payload.
	ReplicateCc CcPolicy = "replicate"
	// PrimaryOnlyCc attaches cc/bcc to none of the individual payloads.
	PrimaryOnlyCc CcPolicy = "primary-only"
)

// Request is one validated composition request. It is built once per
// incoming tool or API call and not mutated afterwards.
type Request struct {
	Op       OpKind
	SourceID string // message id being replied to or forwarded, empty for OpNew

	Subject     string
	Body        string
	ContentType ContentType

	To  []string
	Cc  []string
	Bcc []string

	Mode DeliveryMode
}

// InputError reports a structural problem with a request: a malformed
// recipient list, invalid addresses, or a missing required field. It is
// always detected before any outbound call.
type InputError struct {
	Field     string
	Reason    string
	Addresses []string // offending addresses, when the problem is validation
}

func (e *InputError) Error() string {
	if len(e.Addresses) > 0 {
		return fmt.Sprintf("invalid email address(es): %s", strings.Join(e.Addresses, ", "))
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// NewRequest normalizes the raw recipient strings and assembles a Request.
// ContentType defaults to Text and Mode to Group when unset.
func NewRequest(op OpKind, sourceID, subject, body string, contentType ContentType, to, cc, bcc string, individual bool) *Request {
	if contentType == "" {
		contentType = TextContent
	}
	mode := Group
	if individual {
		mode = Individual
	}
	return &Request{
		Op:          op,
		SourceID:    sourceID,
		Subject:     subject,
		Body:        body,
		ContentType: contentType,
		To:          SplitAddressList(to),
		Cc:          SplitAddressList(cc),
		Bcc:         SplitAddressList(bcc),
		Mode:        mode,
	}
}

// Validate checks structural requirements and address syntax across all
// recipient fields. On failure it returns an *InputError; the request must
// not proceed to delivery, not even for its valid subset.
func (r *Request) Validate() error {
	switch r.Op {
	case OpNew:
		if strings.TrimSpace(r.Subject) == "" {
			return &InputError{Field: "subject", Reason: "required for new mail"}
		}
	case OpReply, OpForward:
		if strings.TrimSpace(r.SourceID) == "" {
			return &InputError{Field: "email_id", Reason: "required"}
		}
	default:
		return &InputError{Field: "operation", Reason: fmt.Sprintf("unknown kind %q", r.Op)}
	}
	// Replies may omit recipients: Graph then targets the original sender.
	// An empty body is allowed on every operation.
	if len(r.To) == 0 && r.Op != OpReply {
		return &InputError{Field: "recipient", Reason: "at least one recipient is required"}
	}
	all := make([]string, 0, len(r.To)+len(r.Cc)+len(r.Bcc))
	all = append(all, r.To...)
	all = append(all, r.Cc...)
	all = append(all, r.Bcc...)
	if invalid := InvalidAddresses(all); len(invalid) > 0 {
		return &InputError{Field: "recipient", Reason: "invalid address", Addresses: invalid}
	}
	return nil
}
