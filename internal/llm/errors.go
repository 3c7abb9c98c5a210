package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an assistant failure.
type Kind string

const (
	KindRateLimited Kind = "rate_limited"
	KindAuthFailed  Kind = "auth_failed"
	KindOverloaded  Kind = "overloaded"
	KindGeneric     Kind = "generic"
)

// statusOverloaded is the non-standard status the upstream model service
// uses when it is over capacity.
const statusOverloaded = 529

// AssistantError is a classified assistant failure. Err keeps the internal
// detail for logs; UserMessage is what callers show.
type AssistantError struct {
	Kind   Kind
	Status int
	Err    error
}

func (e *AssistantError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("assistant %s (status %d): %v", e.Kind, e.Status, e.Err)
	}
	return fmt.Sprintf("assistant %s: %v", e.Kind, e.Err)
}

func (e *AssistantError) Unwrap() error { return e.Err }

// UserMessage returns a short plain-language message for the failure class.
// It never includes internal error text.
func (e *AssistantError) UserMessage() string {
	return UserMessage(e.Kind)
}

// UserMessage maps a failure kind to its user-facing message.
func UserMessage(k Kind) string {
	switch k {
	case KindRateLimited:
		return "Too many requests. Please wait a moment and try again."
	case KindAuthFailed:
		return "API authentication failed. Please contact the site administrator."
	case KindOverloaded:
		return "The AI service is currently experiencing high demand. Please wait a moment and try again."
	default:
		return "The assistant could not answer right now. Please try again or contact support if the issue persists."
	}
}

// KindForStatus classifies an HTTP status from the assistant service.
func KindForStatus(status int) Kind {
	switch status {
	case http.StatusTooManyRequests:
		return KindRateLimited
	case http.StatusUnauthorized, http.StatusForbidden:
		return KindAuthFailed
	case statusOverloaded, http.StatusServiceUnavailable:
		return KindOverloaded
	default:
		return KindGeneric
	}
}

func statusError(provider string, status int, body []byte) *AssistantError {
	return &AssistantError{
		Kind:   KindForStatus(status),
		Status: status,
		Err:    fmt.Errorf("%s returned status %d: %s", provider, status, truncate(string(body), 512)),
	}
}

// classify converts any client error into an *AssistantError.
func classify(err error) *AssistantError {
	if err == nil {
		return nil
	}
	var ae *AssistantError
	if errors.As(err, &ae) {
		return ae
	}
	if errors.Is(err, ErrCircuitOpen) {
		return &AssistantError{Kind: KindOverloaded, Err: err}
	}
	return &AssistantError{Kind: KindGeneric, Err: err}
}

// KindOf returns the failure kind of err, or KindGeneric when err is not an
// *AssistantError.
func KindOf(err error) Kind {
	var ae *AssistantError
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindGeneric
}

// callerFault reports failures that say nothing about the service's health
// and must not trip the circuit breaker.
func callerFault(err error) bool {
	if errors.Is(err, context.Canceled) {
		return true
	}
	var ae *AssistantError
	if errors.As(err, &ae) {
		return ae.Kind == KindRateLimited || ae.Kind == KindAuthFailed
	}
	return false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
