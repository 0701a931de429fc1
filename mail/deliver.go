package mail

import (
	"context"

	"github.com/rs/zerolog"
)

// Sender issues a single provider call for one payload. It returns the
// provider message id when the provider supplies one (send-style actions on
// Graph return 202 with no body, so the id is frequently empty).
type Sender interface {
	Deliver(ctx context.Context, p *Payload) (messageID string, err error)
}

// Execute runs every payload through sender sequentially and records one
// Outcome per payload. A failed call never aborts its siblings; once ctx is
// cancelled the remaining payloads are reported as failed with the context
// error instead of being attempted or retried.
func Execute(ctx context.Context, sender Sender, payloads []*Payload, log *zerolog.Logger) []Outcome {
	outcomes := make([]Outcome, 0, len(payloads))
	for _, p := range payloads {
		o := Outcome{Recipient: p.Recipient, Recipients: p.Recipients}
		if o.Recipient == "" {
			o.Recipient = "group"
		}
		if err := ctx.Err(); err != nil {
			o.Error = err.Error()
			outcomes = append(outcomes, o)
			continue
		}
		id, err := sender.Deliver(ctx, p)
		if err != nil {
			o.Error = err.Error()
			if log != nil {
				log.Warn().Str("op", string(p.Op)).Str("recipient", o.Recipient).Err(err).Msg("delivery failed")
			}
		} else {
			o.Success = true
			o.MessageID = id
			if log != nil {
				log.Debug().Str("op", string(p.Op)).Str("recipient", o.Recipient).Msg("delivered")
			}
		}
		outcomes = append(outcomes, o)
	}
	return outcomes
}

// Run is the full pipeline for a validated request: build payloads, execute
// them, aggregate. Structural problems surface as an *InputError before any
// outbound call.
func Run(ctx context.Context, sender Sender, r *Request, policy CcPolicy, log *zerolog.Logger) (DeliverySummary, error) {
	payloads, err := BuildPayloads(r, policy)
	if err != nil {
		return DeliverySummary{Status: StatusError}, err
	}
	return Summarize(Execute(ctx, sender, payloads, log)), nil
}
