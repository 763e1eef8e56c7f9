package pointer

// Ref returns a pointer to a copy of t.
//
// Useful for optional fields taking literals, like `Priority: pointer.Ref(5)`.
func Ref[T any](t T) *T {
	return &t
}
