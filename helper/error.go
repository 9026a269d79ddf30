package helper

import "fmt"

// Error wraps an underlying error with a short trace describing the failed step.
type Error struct {
	Trace string
	Err   error
}

// NewError creates a new traced error. The original error stays reachable
// through errors.Is and errors.As.
func NewError(trace string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{
		Trace: trace,
		Err:   err,
	}
}

// Error returns the error message in the format "trace: cause".
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Trace, e.Err)
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	return e.Err
}
