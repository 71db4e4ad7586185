package runner

import "errors"

// executableNotFoundError signals that the configured interpreter path does
// not reference an existing file; raised before any spawn attempt.
type executableNotFoundError struct{ path string }

func (e executableNotFoundError) Error() string { return "executable not found: " + e.path }

// ErrExecutableNotFound constructs an executableNotFoundError.
func ErrExecutableNotFound(path string) error { return executableNotFoundError{path: path} }

// IsExecutableNotFound reports whether err indicates a missing executable.
func IsExecutableNotFound(err error) bool {
	var e executableNotFoundError
	return errors.As(err, &e)
}

// executionFailedError signals an OS-level spawn failure (permissions,
// missing loader, ...). Distinct from a process that ran and exited non-zero.
type executionFailedError struct{ cause error }

func (e executionFailedError) Error() string { return "failed to start process: " + e.cause.Error() }
func (e executionFailedError) Unwrap() error { return e.cause }

// ErrExecutionFailed wraps an underlying spawn error.
func ErrExecutionFailed(cause error) error { return executionFailedError{cause: cause} }

// IsExecutionFailed reports whether err indicates a spawn-level failure.
func IsExecutionFailed(err error) bool {
	var e executionFailedError
	return errors.As(err, &e)
}
