package providers

import (
	"context"
	"errors"
	"fmt"
	"time"
)

type rateLimitError struct{}

func (e *rateLimitError) Error() string { return "rate limited" }

type authError struct {
	message string
}

func (e *authError) Error() string {
	return "authentication error: " + e.message
}

// IsAuthError checks if an error is an authentication error.
func IsAuthError(err error) bool {
	var ae *authError
	return errors.As(err, &ae)
}

type serverError struct {
	statusCode int
}

func (e *serverError) Error() string {
	return fmt.Sprintf("server error (status %d)", e.statusCode)
}

// transientError wraps network-level failures that are worth another
// attempt.
type transientError struct {
	err error
}

func (e *transientError) Error() string { return "transient error: " + e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

// retryable reports whether an error class is worth another attempt. Auth
// errors and malformed requests are not; rate limits, 5xx, and network
// failures are.
func retryable(err error) bool {
	var rl *rateLimitError
	var se *serverError
	var te *transientError
	return errors.As(err, &rl) || errors.As(err, &se) || errors.As(err, &te)
}

func retryWithBackoff(ctx context.Context, maxRetries int, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		if !retryable(lastErr) {
			return lastErr
		}

		if attempt < maxRetries {
			backoff := time.Duration(1<<uint(attempt)) * time.Second
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}
	}
	return lastErr
}
