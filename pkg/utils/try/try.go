package try

// something have method `Fatal`, like *testing.T or *log.Logger.
type Fataler interface {
	Fatal(...any)
}

// Either is a result of a (T, error) returning function.
type Either[T any] struct {
	value T
	err   error
}

// To wraps the result of a (T, error) returning function.
//
//	conf := try.To(monitor.LoadConfig(path)).OrFatal(logger)
func To[T any](value T, err error) Either[T] {
	return Either[T]{value: value, err: err}
}

// Get returns the pair as is.
func (e Either[T]) Get() (T, error) {
	return e.value, e.err
}

// OrFatal returns the value when there are no errors.
//
// Otherwise, it calls ftl.Fatal(err) (after ftl.Helper(), if ftl has it)
// and returns zero value for the case Fatal returns.
func (e Either[T]) OrFatal(ftl Fataler) T {
	if e.err == nil {
		return e.value
	}
	if hlp, ok := ftl.(interface{ Helper() }); ok {
		hlp.Helper()
	}
	ftl.Fatal(e.err)
	return *new(T)
}
