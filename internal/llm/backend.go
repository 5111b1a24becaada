// Package llm wraps language-generation providers behind one Backend
// interface and adds uniform retry and fallback handling.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Backend generates a reply for an assembled prompt.
type Backend interface {
	// Name identifies the backend in logs and metrics.
	Name() string
	// SupportsMedia reports whether Generate accepts Request.Media.
	SupportsMedia() bool
	Generate(ctx context.Context, req Request) (string, error)
}

// Request is a backend-agnostic generation request.
type Request struct {
	System string
	User   string
	Media  *Media
}

// Media is a binary attachment such as a voice note.
type Media struct {
	Data     []byte
	MimeType string
}

// FailureKind classifies why generation did not produce a usable reply.
type FailureKind string

const (
	KindNone        FailureKind = ""
	KindRateLimited FailureKind = "rate_limited"
	KindBadRequest  FailureKind = "bad_request"
	KindTransient   FailureKind = "transient"
	KindUnsupported FailureKind = "unsupported"
	// KindEmptyReply marks a successful call that returned only whitespace.
	KindEmptyReply FailureKind = "empty_reply"
	// KindMediaUnavailable marks a voice note whose bytes could not be fetched.
	KindMediaUnavailable FailureKind = "media_unavailable"
	// KindSenderThrottled marks a message from an address over its rate.
	KindSenderThrottled FailureKind = "sender_throttled"
)

// Error is a classified backend failure.
type Error struct {
	Kind       FailureKind
	Backend    string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("llm: %s %s (status %d): %v", e.Backend, e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("llm: %s %s: %v", e.Backend, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// ErrMediaUnsupported is wrapped by text-only backends asked to process media.
var ErrMediaUnsupported = errors.New("llm: backend does not accept media")

// KindOf classifies err. Unclassified errors, including timeouts, are transient.
func KindOf(err error) FailureKind {
	if err == nil {
		return KindNone
	}
	var classified *Error
	if errors.As(err, &classified) && classified.Kind != KindNone {
		return classified.Kind
	}
	if errors.Is(err, ErrMediaUnsupported) {
		return KindUnsupported
	}
	return KindTransient
}

// classifyStatus maps an HTTP status from a provider to a failure kind.
func classifyStatus(code int) FailureKind {
	switch {
	case code == http.StatusTooManyRequests:
		return KindRateLimited
	case code == http.StatusRequestTimeout:
		return KindTransient
	case code >= 400 && code < 500:
		return KindBadRequest
	default:
		return KindTransient
	}
}

func unsupportedMedia(backend string) error {
	return &Error{Kind: KindUnsupported, Backend: backend, Err: ErrMediaUnsupported}
}
