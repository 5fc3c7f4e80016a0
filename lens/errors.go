package lens

import "fmt"

// InternalError reports a broken contract between a pass and the lens
// chain, such as a context-sensitive lookup made without a context. It is
// raised with panic and is only recovered at the pass boundary, where it
// fails the compilation.
type InternalError struct {
	Op  string
	Msg string
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("lens: internal error in %s: %s", e.Op, e.Msg)
}

// Failf panics with an *InternalError.
func Failf(op, format string, args ...any) {
	panic(&InternalError{Op: op, Msg: fmt.Sprintf(format, args...)})
}

// Assert panics with an *InternalError when cond is false.
func Assert(cond bool, op, format string, args ...any) {
	if !cond {
		Failf(op, format, args...)
	}
}
