package mail

import "strings"

// Graph wire shapes, matching the JSON the provider expects.
type graphAddress struct {
	Address string `json:"address"`
}

type graphRecipient struct {
	EmailAddress graphAddress `json:"emailAddress"`
}

type graphBody struct {
	ContentType string `json:"contentType"`
	Content     string `json:"content"`
}

type graphMessage struct {
	Subject       string           `json:"subject,omitempty"`
	Body          *graphBody       `json:"body,omitempty"`
	ToRecipients  []graphRecipient `json:"toRecipients,omitempty"`
	CcRecipients  []graphRecipient `json:"ccRecipients,omitempty"`
	BccRecipients []graphRecipient `json:"bccRecipients,omitempty"`
}

type sendMailBody struct {
	Message         graphMessage `json:"message"`
	SaveToSentItems bool         `json:"saveToSentItems"`
}

type replyBody struct {
	Message graphMessage `json:"message"`
}

// forwardBody follows the provider convention for the forward action: the
// optional comment is inserted ahead of the preserved original content, and
// cc/bcc keys are omitted entirely when empty.
type forwardBody struct {
	Comment       string           `json:"comment"`
	ToRecipients  []graphRecipient `json:"toRecipients"`
	CcRecipients  []graphRecipient `json:"ccRecipients,omitempty"`
	BccRecipients []graphRecipient `json:"bccRecipients,omitempty"`
}

// Payload is one outbound provider call derived from a Request. Group mode
// yields exactly one payload; individual mode yields one per primary
// recipient.
type Payload struct {
	Op       OpKind
	SourceID string
	// Recipient is the single targeted address in individual mode, empty in
	// group mode.
	Recipient string
	// Recipients are all primary addresses this payload is addressed to.
	Recipients []string
	// Body is the JSON-marshalable request body for the provider call.
	Body any
}

func recipients(addrs []string) []graphRecipient {
	if len(addrs) == 0 {
		return nil
	}
	out := make([]graphRecipient, len(addrs))
	for i, a := range addrs {
		out[i] = graphRecipient{EmailAddress: graphAddress{Address: a}}
	}
	return out
}

// ForwardSubject prefixes subject with "Fw: " unless it already carries a
// forward marker. It never double-prefixes.
func ForwardSubject(subject string) string {
	lower := strings.ToLower(strings.TrimSpace(subject))
	if strings.HasPrefix(lower, "fw:") || strings.HasPrefix(lower, "fwd:") {
		return subject
	}
	return "Fw: " + subject
}

// BuildPayloads validates r and derives its provider payloads. The builder
// is pure: no I/O, and identical inputs produce identical payloads. The
// policy controls whether individual-mode payloads replicate the request's
// cc/bcc lists or carry only the primary recipient.
func BuildPayloads(r *Request, policy CcPolicy) ([]*Payload, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	if policy == "" {
		policy = ReplicateCc
	}
	if r.Mode == Individual && len(r.To) > 0 {
		out := make([]*Payload, 0, len(r.To))
		for _, rcpt := range r.To {
			cc, bcc := r.Cc, r.Bcc
			if policy == PrimaryOnlyCc {
				cc, bcc = nil, nil
			}
			out = append(out, buildOne(r, []string{rcpt}, cc, bcc, rcpt))
		}
		return out, nil
	}
	return []*Payload{buildOne(r, r.To, r.Cc, r.Bcc, "")}, nil
}

func buildOne(r *Request, to, cc, bcc []string, recipient string) *Payload {
	p := &Payload{Op: r.Op, SourceID: r.SourceID, Recipient: recipient, Recipients: to}
	switch r.Op {
	case OpReply:
		msg := graphMessage{Body: &graphBody{ContentType: string(r.ContentType), Content: r.Body}}
		// An explicit recipient list narrows the reply; otherwise the
		// provider targets the original sender.
		msg.ToRecipients = recipients(to)
		p.Body = replyBody{Message: msg}
	case OpForward:
		p.Body = forwardBody{
			Comment:       r.Body,
			ToRecipients:  recipients(to),
			CcRecipients:  recipients(cc),
			BccRecipients: recipients(bcc),
		}
	default:
		p.Body = sendMailBody{
			Message: graphMessage{
				Subject:       r.Subject,
				Body:          &graphBody{ContentType: string(r.ContentType), Content: r.Body},
				ToRecipients:  recipients(to),
				CcRecipients:  recipients(cc),
				BccRecipients: recipients(bcc),
			},
			SaveToSentItems: true,
		}
	}
	return p
}
