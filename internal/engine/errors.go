package engine

// notBuiltError signals that the binary was compiled without the native
// llama backend (missing 'llama' build tag).
type notBuiltError struct{ msg string }

func (e notBuiltError) Error() string { return e.msg }

// ErrNotBuilt constructs a notBuiltError.
func ErrNotBuilt(msg string) error { return notBuiltError{msg: msg} }

// IsNotBuilt reports whether err indicates a missing native backend.
func IsNotBuilt(err error) bool {
	_, ok := err.(notBuiltError)
	return ok
}
