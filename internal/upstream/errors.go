// Package upstream normalizes failures of the external services this process
// depends on (treaty registry, reverse geocoder).
package upstream

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Category classifies an upstream failure independently of the service that
// produced it.
type Category string

const (
	Timeout     Category = "timeout"
	BadData     Category = "bad_data"
	Outage      Category = "outage"
	NotFound    Category = "not_found"
	RateLimited Category = "rate_limited"
	// Internal covers local failures (request construction, cancellation)
	// and errors that never went through this package.
	Internal Category = "internal"
)

// Retryable reports whether a later attempt may succeed.
func (c Category) Retryable() bool {
	switch c {
	case Timeout, Outage, RateLimited:
		return true
	default:
		return false
	}
}

// Error is a categorized failure of one call to an upstream.
type Error struct {
	Upstream string
	Category Category
	Op       string
	Err      error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("upstream %s [%s]: %s", e.Upstream, e.Category, e.Op)
	}
	return fmt.Sprintf("upstream %s [%s]: %s: %v", e.Upstream, e.Category, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func New(category Category, upstreamName, op string, err error) *Error {
	return &Error{Upstream: upstreamName, Category: category, Op: op, Err: err}
}

// FromTransport categorizes an error returned by http.Client.Do.
func FromTransport(upstreamName string, err error) *Error {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded),
		errors.As(err, &netErr) && netErr.Timeout():
		return New(Timeout, upstreamName, "request timed out", err)
	case errors.Is(err, context.Canceled):
		return New(Internal, upstreamName, "request canceled", err)
	}
	return New(Outage, upstreamName, "request failed", err)
}

// FromStatus categorizes a non-2xx HTTP status.
func FromStatus(upstreamName string, status int) *Error {
	op := fmt.Sprintf("unexpected status %d", status)
	switch {
	case status == http.StatusTooManyRequests:
		return New(RateLimited, upstreamName, op, nil)
	case status == http.StatusNotFound:
		return New(NotFound, upstreamName, op, nil)
	case status >= http.StatusInternalServerError:
		return New(Outage, upstreamName, op, nil)
	}
	return New(BadData, upstreamName, op, nil)
}

// CategoryOf returns the category of the first *Error in err's chain, or
// Internal when there is none.
func CategoryOf(err error) Category {
	var ue *Error
	if errors.As(err, &ue) {
		return ue.Category
	}
	return Internal
}

func IsRetryable(err error) bool {
	return CategoryOf(err).Retryable()
}
