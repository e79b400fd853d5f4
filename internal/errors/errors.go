// Package errors provides structured error types for an autodev session.
package errors

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors for common failure modes.
var (
	ErrNoRepoPath   = errors.New("repository path is not set")
	ErrNoResponse   = errors.New("oracle returned no content")
	ErrExtraction   = errors.New("no structured output in response")
	ErrVCS          = errors.New("version control operation failed")
	ErrTimeout      = errors.New("operation timed out")
	ErrAuthFailure  = errors.New("authentication failed")
	ErrRateLimit    = errors.New("rate limit exceeded")
	ErrUnavailable  = errors.New("service unavailable")
	ErrInvalidInput = errors.New("invalid input")
)

// APIError represents an error from an oracle provider's HTTP API.
type APIError struct {
	Service    string
	StatusCode int
	Message    string
	Err        error
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s API error (status %d): %s: %v", e.Service, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("%s API error (status %d): %s", e.Service, e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error { return e.Err }

// NewAPIError creates a new API error.
func NewAPIError(service string, statusCode int, message string) *APIError {
	return &APIError{Service: service, StatusCode: statusCode, Message: message}
}

// ExtractionError carries the diagnostic of a failed structured-output extraction.
type ExtractionError struct {
	Reason string
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("%v: %s", ErrExtraction, e.Reason)
}

func (e *ExtractionError) Unwrap() error { return ErrExtraction }

// IsRetryable returns true if the error is likely transient and worth retrying.
func IsRetryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case 429, 500, 502, 503, 504, 529:
			return true
		}
	}
	return errors.Is(err, ErrTimeout) || errors.Is(err, ErrRateLimit) || errors.Is(err, ErrUnavailable)
}

// IsFatal reports whether err ends a session. Extraction failures are per-round
// and never fatal on their own.
func IsFatal(err error) bool {
	if err == nil || errors.Is(err, ErrExtraction) {
		return false
	}
	return errors.Is(err, ErrNoRepoPath) ||
		errors.Is(err, ErrNoResponse) ||
		errors.Is(err, ErrVCS) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrAuthFailure) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}
