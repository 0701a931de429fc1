package graph

import (
	"errors"
	"fmt"
	"net/http"
	"unicode/utf8"
)

// Kind classifies a provider failure so callers can react without parsing
// message text.
type Kind string

const (
	KindUnauthorized Kind = "unauthorized"
	KindNotFound     Kind = "not-found"
	KindRateLimited  Kind = "rate-limited"
	KindValidation   Kind = "validation"
	KindServer       Kind = "server"
	KindTransport    Kind = "transport"
)

// rawBodyLimit caps how much of a provider response body is retained in an
// Error detail.
const rawBodyLimit = 1024

// Error is a typed Microsoft Graph failure for a single call.
type Error struct {
	Kind   Kind
	Status int
	Detail string
}

func (e *Error) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("graph %s (HTTP %d): %s", e.Kind, e.Status, e.Detail)
	}
	return fmt.Sprintf("graph %s: %s", e.Kind, e.Detail)
}

// IsKind reports whether err is a graph Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var ge *Error
	return errors.As(err, &ge) && ge.Kind == kind
}

// classifyStatus maps an HTTP status to an error kind.
func classifyStatus(status int) Kind {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return KindUnauthorized
	case status == http.StatusNotFound:
		return KindNotFound
	case status == http.StatusTooManyRequests:
		return KindRateLimited
	case status >= 400 && status < 500:
		return KindValidation
	default:
		return KindServer
	}
}

// statusError builds a typed Error from a non-2xx provider response,
// truncating the body to keep log lines bounded.
func statusError(status int, body string) *Error {
	return &Error{Kind: classifyStatus(status), Status: status, Detail: truncate(body, rawBodyLimit)}
}

// transportError wraps a network-level failure (DNS, dial, timeout).
func transportError(err error) *Error {
	return &Error{Kind: KindTransport, Detail: err.Error()}
}

func truncate(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit])
}
