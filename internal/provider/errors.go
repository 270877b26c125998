package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Kind is the closed set of provider failure classes. Every kind triggers
// fallback to another provider; none is surfaced to feed clients directly.
type Kind int

const (
	KindUpstream     Kind = iota // 5xx or any other unexpected failure
	KindRateLimited              // 429 or local quota exhausted
	KindUnauthorized             // 401/403
	KindTimeout                  // deadline exceeded or network timeout
	KindMalformed                // payload could not be decoded
)

func (k Kind) String() string {
	switch k {
	case KindRateLimited:
		return "rate_limited"
	case KindUnauthorized:
		return "unauthorized"
	case KindTimeout:
		return "timeout"
	case KindMalformed:
		return "malformed"
	default:
		return "upstream"
	}
}

// Error is the failure type adapters return.
type Error struct {
	Provider string
	Kind     Kind
	Status   int // HTTP status when one was received, else 0
	Err      error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("provider %s: %s (HTTP %d): %v", e.Provider, e.Kind, e.Status, e.Err)
	}
	return fmt.Sprintf("provider %s: %s: %v", e.Provider, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError builds a classified provider error.
func NewError(provider string, kind Kind, status int, err error) *Error {
	return &Error{Provider: provider, Kind: kind, Status: status, Err: err}
}

// KindForStatus maps a non-2xx HTTP status to a failure kind.
func KindForStatus(status int) Kind {
	switch {
	case status == http.StatusTooManyRequests:
		return KindRateLimited
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return KindUnauthorized
	case status == http.StatusRequestTimeout, status == http.StatusGatewayTimeout:
		return KindTimeout
	default:
		return KindUpstream
	}
}

// Classify converts any error into a *Error. Errors that are already
// classified pass through unchanged.
func Classify(provider string, err error) *Error {
	if err == nil {
		return nil
	}
	var pe *Error
	if errors.As(err, &pe) {
		return pe
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return NewError(provider, KindTimeout, 0, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return NewError(provider, KindTimeout, 0, err)
	}
	return NewError(provider, KindUpstream, 0, err)
}

// KindOf returns the kind of a classified error, or KindUpstream.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindUpstream
}
