package retry

import (
	"context"
	"time"
)

// Bounded runs op up to attempts times with a fixed delay between
// tries. op returns done=true to stop early; the last error is
// returned when all attempts are spent. The wait is cancellable only
// through ctx.
func Bounded(
	ctx context.Context,
	attempts int,
	delay time.Duration,
	op func(ctx context.Context) (done bool, err error),
) error {
	var lastErr error

	for i := 0; i < attempts; i++ {
		if i > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		done, err := op(ctx)
		if done {
			return err
		}
		lastErr = err
	}

	return lastErr
}
