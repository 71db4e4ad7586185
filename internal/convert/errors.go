package convert

import "errors"

// busyError signals that another operation is already in flight; a single
// conversion or provisioning runs at a time.
type busyError struct{ op string }

func (e busyError) Error() string { return "operation already in progress: " + e.op }

// ErrBusy constructs a busyError for the named active operation.
func ErrBusy(op string) error { return busyError{op: op} }

// IsBusy reports whether err indicates a rejected concurrent request.
func IsBusy(err error) bool {
	var e busyError
	return errors.As(err, &e)
}

// preconditionError signals a local validation failure; rejected before any
// process is spawned.
type preconditionError struct{ msg string }

func (e preconditionError) Error() string { return e.msg }

// ErrPrecondition constructs a preconditionError.
func ErrPrecondition(msg string) error { return preconditionError{msg: msg} }

// IsPrecondition reports whether err indicates a local validation failure.
func IsPrecondition(err error) bool {
	var e preconditionError
	return errors.As(err, &e)
}
