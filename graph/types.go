package graph

// FetchInput selects messages to fetch. When MessageID is set a single
// message is returned and the remaining filters are ignored.
type FetchInput struct {
	Folder    string `json:"folder,omitempty"`
	MessageID string `json:"email_id,omitempty"`
	// IsRead filters by read status when non-nil.
	IsRead *bool  `json:"is_read,omitempty"`
	Sender string `json:"sender,omitempty"`
	// Subject filters messages whose subject contains every whitespace
	// separated term, case-insensitively.
	Subject string `json:"subject,omitempty"`
	Top     int    `json:"top,omitempty"`
}

// MessageSummary is the compact per-message shape returned by fetch.
type MessageSummary struct {
	ID       string `json:"id"`
	Subject  string `json:"subject"`
	From     string `json:"from,omitempty"`
	Received string `json:"received,omitempty"`
	IsRead   bool   `json:"is_read"`
	Preview  string `json:"preview,omitempty"`
}

// FetchOutput carries either a page of summaries or, for a fetch by id, a
// single message with its body.
type FetchOutput struct {
	Messages []MessageSummary `json:"messages,omitempty"`
	Message  *MessageDetail   `json:"message,omitempty"`
}

// MessageDetail is a single fetched message including its body.
type MessageDetail struct {
	MessageSummary
	BodyType string `json:"body_type,omitempty"`
	Body     string `json:"body,omitempty"`
}
