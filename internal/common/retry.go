package common

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/opensheets/companion/internal/service"
)

// ErrMaxRetries indicates that all retry attempts have been exhausted.
var ErrMaxRetries = errors.New("max retries exceeded")

// RetryableError wraps an error with retry-specific metadata.
type RetryableError struct {
	Err       error
	Retryable bool
}

func (e *RetryableError) Error() string {
	return e.Err.Error()
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// WithRetry executes an operation with configurable retry behavior.
func WithRetry(ctx context.Context, operation func() error, opts service.RetryOptions) error {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.InitialDelay <= 0 {
		opts.InitialDelay = 100 * time.Millisecond
	}
	if opts.MaxDelay <= 0 {
		opts.MaxDelay = 30 * time.Second
	}
	if opts.Multiplier <= 0 {
		opts.Multiplier = 2.0
	}

	delay := opts.InitialDelay

	for attempt := 1; attempt <= opts.MaxAttempts; attempt++ {
		err := operation()
		if err == nil {
			return nil
		}

		if !IsRetryable(err) {
			return err
		}

		if attempt == opts.MaxAttempts {
			return fmt.Errorf("%w after %d attempts: %v", ErrMaxRetries, opts.MaxAttempts, err)
		}

		slog.Warn("Operation failed, retrying",
			"attempt", attempt,
			"max_attempts", opts.MaxAttempts,
			"delay", delay,
			"error", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
			delay = time.Duration(float64(delay) * opts.Multiplier)
			if delay > opts.MaxDelay {
				delay = opts.MaxDelay
			}
		}
	}

	return ErrMaxRetries
}

// Backoff tracks a bounded exponential delay between catch-up sweeps.
// Failure grows the delay, success resets it to the minimum interval.
type Backoff struct {
	current time.Duration
	Min     time.Duration
	Max     time.Duration
	Factor  float64
}

// NewBackoff creates a Backoff starting at min.
func NewBackoff(min, max time.Duration, factor float64) *Backoff {
	if factor <= 1 {
		factor = 2.0
	}
	return &Backoff{Min: min, Max: max, Factor: factor, current: min}
}

// Next returns the current delay and grows it for the following call.
func (b *Backoff) Next() time.Duration {
	d := b.current
	grown := time.Duration(float64(b.current) * b.Factor)
	if grown > b.Max {
		grown = b.Max
	}
	b.current = grown
	return d
}

// Reset returns the delay to the minimum interval.
func (b *Backoff) Reset() {
	b.current = b.Min
}

// Current reports the delay the next Next call will return.
func (b *Backoff) Current() time.Duration {
	return b.current
}
