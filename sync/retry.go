package sync

import (
	"context"
	"log"
	"time"
)

// withRetry calls fn until it succeeds, fails with a permanent error, or has been
// retried settings.Attempts times. The wait doubles after each transient failure.
func withRetry(ctx context.Context, settings RetrySettings, what string, fn func() error) error {
	backoff := settings.Backoff
	for attempt := 1; ; attempt++ {
		err := fn()
		if err == nil || !IsTransient(err) || attempt > settings.Attempts {
			return err
		}
		log.Printf("Warning: %s failed (attempt %d of %d), retrying in %s: %v", what, attempt, settings.Attempts+1, backoff, err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
}
