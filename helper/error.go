package helper

import (
	"fmt"
	"strings"
)

// Error wraps an original error with the trace of operations it passed through.
type Error struct {
	Original error
	Trace    []string
}

// Error renders the trace outermost first followed by the original error.
func (e Error) Error() string {
	trace := make([]string, len(e.Trace))
	for i, t := range e.Trace {
		trace[len(e.Trace)-1-i] = t
	}
	if e.Original == nil {
		return strings.Join(trace, ": ")
	}
	return fmt.Sprintf("%s: %v", strings.Join(trace, ": "), e.Original)
}

// Unwrap returns the original error so errors.Is and errors.As keep working.
func (e Error) Unwrap() error {
	return e.Original
}

// NewError wraps err with the given operation.
// If err already is an Error the operation is appended to its trace.
func NewError(trace string, original error) error {
	if existing, ok := original.(Error); ok {
		existing.Trace = append(append([]string{}, existing.Trace...), trace)
		return existing
	}

	return Error{
		Original: original,
		Trace:    []string{trace},
	}
}
