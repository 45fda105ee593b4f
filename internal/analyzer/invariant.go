package analyzer

import (
	"errors"
	"fmt"
)

// InvariantError reports an internal consistency violation detected while
// structuring a function. Structuring is a pure function of its input, so
// the failure always reproduces.
type InvariantError struct {
	Function string
	Message  string
}

func (e *InvariantError) Error() string {
	if e.Function == "" {
		return "invariant violated: " + e.Message
	}
	return fmt.Sprintf("invariant violated in %q: %s", e.Function, e.Message)
}

// IsInvariantError reports whether err wraps an InvariantError
func IsInvariantError(err error) bool {
	var ie *InvariantError
	return errors.As(err, &ie)
}

// invariant panics with an InvariantError when cond is false. The panic is
// recovered at the Restructurer boundary.
func invariant(cond bool, format string, args ...interface{}) {
	if !cond {
		panic(&InvariantError{Message: fmt.Sprintf(format, args...)})
	}
}

// recoverInvariant turns an InvariantError panic into *err. Other panics are
// propagated unchanged.
func recoverInvariant(function string, err *error) {
	r := recover()
	if r == nil {
		return
	}
	ie, ok := r.(*InvariantError)
	if !ok {
		panic(r)
	}
	ie.Function = function
	*err = ie
}
