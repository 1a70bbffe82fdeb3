package resilience

import (
	"context"
	"fmt"
	"time"
)

// Retry executes fn up to attempts times with a fixed delay between
// attempts. It is applied only to operations explicitly wrapped by the
// caller; the pipeline itself is never retried transparently.
func Retry(ctx context.Context, attempts int, delay time.Duration, fn func() error) error {
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if attempt == attempts {
			break
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("retry aborted after %d attempts: %w", attempt, ctx.Err())
		case <-time.After(delay):
		}
	}

	return fmt.Errorf("all %d attempts failed: %w", attempts, lastErr)
}
