package model

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// ErrTimeout indicates a model call exceeded its deadline. The call is
// cancelled via context; it is never left running in the background.
var ErrTimeout = errors.New("model call timed out")

// RateLimitError indicates the provider rejected the call due to throttling.
type RateLimitError struct {
	Provider string
	Err      error
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("provider %s rate limited: %v", e.Provider, e.Err)
}

// Unwrap exposes the provider error.
func (e *RateLimitError) Unwrap() error { return e.Err }

// MalformedResponseError indicates the provider returned a response the
// adapter could not use (empty choices, missing content, undecodable body).
type MalformedResponseError struct {
	Provider string
	Reason   string
	Err      error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("provider %s returned malformed response: %s", e.Provider, e.Reason)
}

// Unwrap exposes the underlying error, if any.
func (e *MalformedResponseError) Unwrap() error { return e.Err }

// ProviderError carries a non-2xx provider status that is neither a rate
// limit nor a malformed body.
type ProviderError struct {
	Provider   string
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s returned status %d: %v", e.Provider, e.StatusCode, e.Err)
}

// Unwrap exposes the provider error.
func (e *ProviderError) Unwrap() error { return e.Err }

// IsTransient reports whether an invocation failure is worth retrying on the
// same or the next fallback entry: timeouts, rate limits, malformed
// responses and 5xx-class provider failures. Client-side errors such as
// invalid credentials are not transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var rateLimited *RateLimitError
	if errors.As(err, &rateLimited) {
		return true
	}
	var malformed *MalformedResponseError
	if errors.As(err, &malformed) {
		return true
	}
	var provider *ProviderError
	if errors.As(err, &provider) {
		return provider.StatusCode == http.StatusRequestTimeout || provider.StatusCode >= http.StatusInternalServerError
	}
	return false
}
