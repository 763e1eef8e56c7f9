package retry

import (
	"context"
	"errors"
	"time"
)

// ErrRetry tells Blocking to call the function again.
var ErrRetry = errors.New("retry")

// Backoff is a (blocking) function returns when to retry.
//
// If context is canceled, Backoff should return ctx.Err().
// Otherwise it returns nil after waiting.
type Backoff func(context.Context) error

// StaticBackoff waits for a fixed interval on each call.
func StaticBackoff(interval time.Duration) Backoff {
	return ExponentialBackoff(interval, 1, 0)
}

// ExponentialBackoff waits `initial * r^N` on N-th call.
//
// When max is positive, the interval does not exceed max.
func ExponentialBackoff(initial time.Duration, r float64, max time.Duration) Backoff {
	interval := initial
	return func(ctx context.Context) error {
		timer := time.NewTimer(interval)
		defer timer.Stop()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}

		interval = time.Duration(float64(interval) * r)
		if 0 < max && max < interval {
			interval = max
		}
		return nil
	}
}

// Blocking calls f until it returns nil or an error which is not ErrRetry.
//
// f is called once immediately. Each retry waits with b.
//
// # Returns
//
// - T: last return value of f
//
// - error: error returned by f, or the one from b when ctx is done.
func Blocking[T any](ctx context.Context, b Backoff, f func() (T, error)) (T, error) {
	for {
		last, err := f()
		if err == nil {
			return last, nil
		}
		if !errors.Is(err, ErrRetry) {
			return last, err
		}
		if berr := b(ctx); berr != nil {
			return last, errors.Join(berr, err)
		}
	}
}
