package mocks

// CallLog records arguments passed to a mocked method, in order of calls.
type CallLog[T any] []T

func (l CallLog[T]) Times() uint {
	return uint(len(l))
}

// Last returns the argument of the latest call.
//
// It panics when there are no calls.
func (l CallLog[T]) Last() T {
	return l[len(l)-1]
}
