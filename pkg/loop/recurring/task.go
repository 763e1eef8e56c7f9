package recurring

import (
	"context"

	"github.com/pharmbio/pipeline-monitor/pkg/loop"
)

// Task is a cycle of a recurring loop.
//
// Return:
//
// - T : same as return value T of loop.Task[T]
//
// - bool : true when this task did something in this cycle, and more backlog can be.
// otherwise false.
//
// - error : error of this cycle. Whether it stops the loop is up to Policy.
type Task[T any] func(context.Context, T) (T, bool, error)

// Applied makes rt a loop.Task which decides next with p.
func (rt Task[T]) Applied(p Policy) loop.Task[T] {
	return func(ctx context.Context, t T) (T, loop.Next) {
		value, updated, err := rt(ctx, t)
		return value, p.Next(updated, err)
	}
}
