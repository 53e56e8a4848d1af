package storage

import (
	"context"
	"errors"
	"time"
)

const (
	defaultRetries   = 3
	defaultRetryBase = 100 * time.Millisecond
)

// withRetry runs op up to retries+1 times, doubling the wait after each failure.
// ErrObjectNotFound is returned immediately.
func withRetry(ctx context.Context, retries int, base time.Duration, op func() error) error {
	var lastErr error
	wait := base
	for attempt := 0; attempt <= retries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		if lastErr = op(); lastErr == nil {
			return nil
		}
		if errors.Is(lastErr, ErrObjectNotFound) {
			return lastErr
		}

		if attempt < retries {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
			wait *= 2
		}
	}
	return lastErr
}
