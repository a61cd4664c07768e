package ingest

import (
	"context"
	"time"
)

// withRetry runs fn until it succeeds, the attempts are exhausted, or the
// context is cancelled. The wait between attempts starts at baseDelay and
// doubles after every failure.
func withRetry(ctx context.Context, maxRetries int, baseDelay time.Duration, fn func(context.Context) error) error {
	if baseDelay <= 0 {
		baseDelay = 100 * time.Millisecond
	}

	var err error
	for attempt, wait := 0, baseDelay; ; attempt, wait = attempt+1, wait*2 {
		if err = fn(ctx); err == nil {
			return nil
		}
		if attempt >= maxRetries {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}
