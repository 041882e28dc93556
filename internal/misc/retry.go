package misc

import (
	"context"
	"time"
)

// DefaultBackoff is the wait schedule between attempts; its length bounds the retries.
var DefaultBackoff = []time.Duration{
	1 * time.Second,
	3 * time.Second,
	5 * time.Second,
}

// Retry runs op until it succeeds, fails permanently, the delays run out, or ctx ends.
func Retry(ctx context.Context, delays []time.Duration, isRetryable func(error) bool, op func() error) error {
	return RetryNotify(ctx, delays, isRetryable, op, nil)
}

// RetryNotify is Retry with a callback invoked before every wait.
func RetryNotify(ctx context.Context, delays []time.Duration, isRetryable func(error) bool, op func() error, notify func(err error, attempt int, wait time.Duration)) error {
	var err error
	for i := 0; ; i++ {
		if err = op(); err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if i >= len(delays) || !isRetryable(err) {
			return err
		}
		if notify != nil {
			notify(err, i+1, delays[i])
		}
		t := time.NewTimer(delays[i])
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}
