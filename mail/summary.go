package mail

// Status values surfaced to both the tool-call and REST interfaces.
const (
	StatusOK      = "ok"
	StatusPartial = "partial"
	StatusError   = "error"
)

// Outcome is the result of one provider call. Recipient is the targeted
// address in individual mode or "group" for a combined send.
type Outcome struct {
	Recipient  string   `json:"recipient"`
	Recipients []string `json:"recipients,omitempty"`
	Success    bool     `json:"success"`
	MessageID  string   `json:"messageId,omitempty"`
	Error      string   `json:"error,omitempty"`
}

// DeliverySummary aggregates all outcomes of one request. It is the terminal
// return value of the pipeline: partial failure is data, not an error.
type DeliverySummary struct {
	Status string    `json:"status"`
	Sent   []Outcome `json:"sent,omitempty"`
	Failed []Outcome `json:"failed,omitempty"`
}

// Summarize merges outcomes into a DeliverySummary. Status is ok only when
// every outcome succeeded, error when every outcome failed, partial
// otherwise. An empty outcome list summarizes as ok.
func Summarize(outcomes []Outcome) DeliverySummary {
	s := DeliverySummary{Status: StatusOK}
	for _, o := range outcomes {
		if o.Success {
			s.Sent = append(s.Sent, o)
		} else {
			s.Failed = append(s.Failed, o)
		}
	}
	if len(s.Failed) > 0 {
		s.Status = StatusPartial
		if len(s.Sent) == 0 {
			s.Status = StatusError
		}
	}
	return s
}
