package utils

import (
	"context"
	"errors"
	"time"
)

// RetryableError wraps a transient failure. RetryAfter carries a
// server-provided wait (for example from a Retry-After header); zero means
// the caller's backoff applies.
type RetryableError struct {
	Err        error
	RetryAfter time.Duration
}

func (e *RetryableError) Error() string { return e.Err.Error() }

func (e *RetryableError) Unwrap() error { return e.Err }

// Retry calls fn up to maxAttempts times with exponential backoff starting at
// baseDelay. Only errors wrapped in RetryableError are retried; any other
// error returns immediately. A RetryAfter longer than the current backoff
// wins. The function respects context cancellation between retries.
func Retry(ctx context.Context, maxAttempts int, baseDelay time.Duration, fn func(ctx context.Context) error) error {
	var err error
	delay := baseDelay

	for attempt := 0; attempt < maxAttempts; attempt++ {
		err = fn(ctx)
		if err == nil {
			return nil
		}

		var retryable *RetryableError
		if !errors.As(err, &retryable) {
			return err
		}

		// Don't sleep after the last failed attempt.
		if attempt < maxAttempts-1 {
			wait := delay
			if retryable.RetryAfter > wait {
				wait = retryable.RetryAfter
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
			delay *= 2
		}
	}

	return err
}
