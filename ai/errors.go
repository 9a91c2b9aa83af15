package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrCircuitOpen is returned when the circuit breaker refuses a call.
	ErrCircuitOpen = errors.New("circuit breaker is open")

	// ErrNoProvider is returned by Select when no backend is configured.
	ErrNoProvider = errors.New("no completion provider configured")
)

// TransportError reports that a completion call could not be completed:
// network failure, timeout, non-success status or an open breaker.
type TransportError struct {
	Provider string
	Attempts int
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s completion failed after %d attempt(s): %v", e.Provider, e.Attempts, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// StatusError is a non-success HTTP response from a completion API.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("API error (status %d): %s", e.StatusCode, e.Body)
}

// GuardrailError reports a task rejected before any completion call.
type GuardrailError struct {
	Reasons []string
}

func (e *GuardrailError) Error() string {
	return "input rejected by guardrails: " + strings.Join(e.Reasons, "; ")
}

// Retryable reports whether a failed call may succeed when repeated.
// Cancellation, an open breaker and client errors other than 408/429 are final.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, ErrCircuitOpen) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		switch {
		case se.StatusCode == http.StatusRequestTimeout, se.StatusCode == http.StatusTooManyRequests:
			return true
		case se.StatusCode >= 400 && se.StatusCode < 500:
			return false
		}
	}
	return true
}
