// Package common provides shared utilities and types used across the application.
package common

import (
	"context"
	"errors"
	"fmt"
)

// Common application errors.
var (
	// Database errors.
	ErrNotFound       = errors.New("not found")
	ErrDuplicateEntry = errors.New("duplicate entry")

	// Collector errors.
	ErrUnauthorized    = errors.New("unauthorized")
	ErrTransport       = errors.New("transport failure")
	ErrRefreshFailed   = errors.New("credential refresh failed")
	ErrNotConfigured   = errors.New("companion is not connected to a server")
	ErrServerRejected  = errors.New("server rejected request")
	ErrMalformedReply  = errors.New("malformed server response")

	// Configuration errors.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// UserError represents an error that should be shown to the user.
type UserError struct {
	Err         error
	UserMessage string
}

func (e *UserError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.UserMessage, e.Err)
	}
	return e.UserMessage
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// NewUserError creates a new user-friendly error.
func NewUserError(userMessage string, err error) error {
	return &UserError{
		UserMessage: userMessage,
		Err:         err,
	}
}

// IsRetryable determines if an error should trigger a retry. Authorization
// failures are not retryable here; they go through the refresh exchange
// instead.
func IsRetryable(err error) bool {
	if errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrRefreshFailed) {
		return false
	}

	if errors.Is(err, ErrTransport) ||
		errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var retryableErr *RetryableError
	if errors.As(err, &retryableErr) {
		return retryableErr.Retryable
	}

	return false
}
