package loop

import (
	"context"
	"fmt"
	"time"
)

// Next tells Start what to do after a task returns.
type Next struct {
	// if not nil, breaks with error
	err error

	// if quit == true and err == nil, breaks without error
	quit bool

	// otherwise, continue loop with interval.
	interval time.Duration
}

func (n Next) String() string {
	if n.err != nil {
		return fmt.Sprintf("[break] with error: %v", n.err)
	}
	if n.quit {
		return "[break] without error"
	}
	return fmt.Sprintf("[continue] interval: %s", n.interval)
}

// Interval returns how long the loop sleeps before the next call.
//
// It is meaningless when the Next breaks the loop.
func (n Next) Interval() time.Duration {
	return n.interval
}

// IsBreak reports whether the loop stops after this Next.
func (n Next) IsBreak() bool {
	return n.quit || n.err != nil
}

// continue loop after sleeping interval.
func Continue(interval time.Duration) Next {
	return Next{interval: interval}
}

// break loop. Pass non-nil err to break with error.
func Break(err error) Next {
	return Next{quit: true, err: err}
}

// Task is a body of loop.
//
// It receives a (sub-)context and the value returned last time,
// and returns a new value and what to do next.
//
// Zero value of Next equals Continue(0).
type Task[T any] func(context.Context, T) (T, Next)

// Start calls task repeatedly until it breaks or ctx is done.
//
// A poller which sleeps 10 seconds between polls looks like:
//
//	Start(ctx, 0, func(ctx context.Context, polled int) (int, Next) {
//		if err := poll(ctx); err != nil {
//			return polled, Break(err)
//		}
//		return polled + 1, Continue(10 * time.Second)
//	})
//
// ctx is checked before the first call and while sleeping between calls,
// so cancelling it never interrupts a task from outside the task itself.
// Whether the task honours ctx is up to the task.
//
// # Returns
//
// - T: the value task returned last. It is returned even with non-nil error.
//
// - error: error passed to Break, or ctx.Err() when ctx is done.
func Start[T any](ctx context.Context, init T, task Task[T], options ...Option) (T, error) {
	select {
	case <-ctx.Done():
		return init, ctx.Err()
	default:
	}

	value := init
	for {
		lc := &config{ctx: ctx}
		for _, opt := range options {
			lc = opt(lc)
		}

		v, n := func() (T, Next) {
			if lc.deferred != nil {
				defer lc.deferred()
			}
			return task(lc.ctx, value)
		}()

		if n.err != nil {
			return v, n.err
		}
		if n.quit {
			return v, nil
		}
		value = v

		timer := time.NewTimer(n.interval)
		select {
		case <-ctx.Done():
			// shutting down comes first.
			if !timer.Stop() {
				<-timer.C
			}
			return value, ctx.Err()
		case <-timer.C:
		}
	}
}

type config struct {
	ctx      context.Context
	deferred func()
}

type Option func(*config) *config

// WithTimeout bounds each call of the task.
//
// The timeout is set on the context passed to the task.
func WithTimeout(d time.Duration) Option {
	return func(lc *config) *config {
		ctx, cancel := context.WithTimeout(lc.ctx, d)
		return &config{
			ctx: ctx,
			deferred: func() {
				if lc.deferred != nil {
					defer lc.deferred()
				}
				cancel()
			},
		}
	}
}
