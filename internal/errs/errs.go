// Package errs defines the closed error taxonomy used across the router.
// Every router-facing phase returns one of these kinds so callers can decide
// whether a retry, a fallback, or a terminal failure is appropriate.
package errs

import (
	"errors"
	"fmt"
)

// Kind identifies one of the closed set of router error kinds.
type Kind string

const (
	ClassificationFailed Kind = "classification_failed"
	RoutingFailed        Kind = "routing_failed"
	ModelUnavailable     Kind = "model_unavailable"
	Timeout              Kind = "timeout"
	ValidationFailed     Kind = "validation_failed"
	ProviderError        Kind = "provider_error"
	InvalidRequest       Kind = "invalid_request"
)

// retryable holds the default retryability for each kind. ProviderError's
// retryability is decided per-instance (network/5xx/rate-limit vs 4xx), so it
// is not listed here; RouterError.Retryable carries the actual decision.
var retryable = map[Kind]bool{
	ClassificationFailed: true,
	RoutingFailed:        false,
	ModelUnavailable:     true,
	Timeout:              true,
	ValidationFailed:     false,
	InvalidRequest:       false,
}

// RouterError is the error type returned by every router phase.
type RouterError struct {
	Kind      Kind
	Message   string
	Retryable bool
	Partial   any // optional partial *mrp.MRP snapshot for diagnosis; typed any to avoid an import cycle
	Cause     error
}

func (e *RouterError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *RouterError) Unwrap() error {
	return e.Cause
}

// New constructs a RouterError with the kind's default retryability.
func New(kind Kind, message string) *RouterError {
	return &RouterError{Kind: kind, Message: message, Retryable: retryable[kind]}
}

// Wrap constructs a RouterError around a cause, with the kind's default
// retryability.
func Wrap(kind Kind, message string, cause error) *RouterError {
	return &RouterError{Kind: kind, Message: message, Retryable: retryable[kind], Cause: cause}
}

// WithPartial attaches a partial MRP snapshot for diagnosis and returns the
// same error (for fluent chaining at the call site).
func (e *RouterError) WithPartial(partial any) *RouterError {
	e.Partial = partial
	return e
}

// Provider constructs a ProviderError with explicit retryability, since
// providers may return either a transient (network/5xx/rate-limit) or a
// permanent (4xx) failure.
func Provider(message string, retryableErr bool, cause error) *RouterError {
	return &RouterError{Kind: ProviderError, Message: message, Retryable: retryableErr, Cause: cause}
}

// KindOf extracts the Kind from err if it is (or wraps) a *RouterError.
func KindOf(err error) (Kind, bool) {
	var re *RouterError
	if errors.As(err, &re) {
		return re.Kind, true
	}
	return "", false
}

// IsRetryable reports whether err is a *RouterError marked retryable.
func IsRetryable(err error) bool {
	var re *RouterError
	if errors.As(err, &re) {
		return re.Retryable
	}
	return false
}
