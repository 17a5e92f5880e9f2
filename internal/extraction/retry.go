package extraction

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// retryableError wraps an error to indicate it can be retried.
type retryableError struct {
	err error
}

func (e *retryableError) Error() string {
	return e.err.Error()
}

func (e *retryableError) Unwrap() error {
	return e.err
}

// isRetryableError reports whether err or anything it wraps is retryable.
func isRetryableError(err error) bool {
	var re *retryableError
	return errors.As(err, &re)
}

// withRetry runs fn up to maxRetries+1 times with exponential backoff.
// Non-retryable errors return immediately.
func withRetry(ctx context.Context, maxRetries int, base time.Duration, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			backoff := base * time.Duration(1<<(attempt-1))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if !isRetryableError(err) {
			return fmt.Errorf("%w: %w", ErrExtractionFailed, err)
		}
	}
	return fmt.Errorf("%w: max retries exceeded: %w", ErrExtractionFailed, lastErr)
}
