package errors

import (
	"errors"
	"fmt"
)

var (
	// requested entity (pipeline, acquisition, ...) does not exist.
	ErrNotFound = errors.New("not found")

	// input or stored metadata is malformed.
	ErrInvalid = errors.New("invalid")

	// the store is temporarily unavailable. Retrying later may succeed.
	ErrTransient = errors.New("transient store error")
)

// Invalid creates an error wrapping ErrInvalid.
func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

type transient struct {
	cause error
}

func (t transient) Error() string {
	return fmt.Sprintf("%s: %s", ErrTransient, t.cause)
}

func (t transient) Unwrap() []error {
	return []error{ErrTransient, t.cause}
}

// Transient marks err as retryable.
//
// Transient(nil) is nil. Marking twice is harmless.
func Transient(err error) error {
	if err == nil || IsTransient(err) {
		return err
	}
	return transient{cause: err}
}

// IsTransient reports whether err is marked by Transient.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}
