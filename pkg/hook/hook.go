// Hooks called around a submission.
//
// A Before hook can stop the submission by returning an error.
// An After hook is told about the result, but can not undo it.
package hook

import (
	"context"
	"errors"
)

// Hook is an interface for before/after hooks.
type Hook[T any, R any] interface {
	// Before is called before the value T is processed.
	Before(context.Context, T) (R, error)

	// After is called after the value T is processed successfully.
	After(context.Context, T) error
}

var ErrHookFailed = errors.New("hook failed")
