// Package llm talks to the natural-language inference endpoint used by every
// investigation stage.
package llm

import (
	"context"
	"errors"
	"net/http"
)

// ErrThrottled marks an inference failure caused by rate limiting or overload.
var ErrThrottled = errors.New("inference endpoint throttled")

// Request is one inference call.
type Request struct {
	// Stage names the caller for logs and metrics.
	Stage       string
	System      string
	User        string
	MaxTokens   int
	Temperature float64
}

// Client completes a request into free text.
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// CompleteFunc adapts a function to Client.
type CompleteFunc func(ctx context.Context, req Request) (string, error)

// Complete implements Client.
func (f CompleteFunc) Complete(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// StatusError carries the HTTP status of a failed inference call.
type StatusError struct {
	StatusCode int
	Err        error
}

func (e *StatusError) Error() string {
	if e.Err == nil {
		return http.StatusText(e.StatusCode)
	}
	return e.Err.Error()
}

func (e *StatusError) Unwrap() error { return e.Err }

// IsThrottled reports whether err is a throttling-class failure: ErrThrottled,
// or an HTTP 429 or 529 response.
func IsThrottled(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrThrottled) {
		return true
	}
	var se *StatusError
	if errors.As(err, &se) {
		return throttledStatus(se.StatusCode)
	}
	return false
}

func throttledStatus(code int) bool {
	return code == http.StatusTooManyRequests || code == 529
}
