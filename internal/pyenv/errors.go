package pyenv

import "errors"

// venvCreationError signals that `python -m venv` failed; provisioning halts
// before the install step.
type venvCreationError struct {
	output string
	cause  error
}

func (e venvCreationError) Error() string {
	return "venv creation failed: " + e.cause.Error()
}
func (e venvCreationError) Unwrap() error { return e.cause }

// Output returns the captured process output, if any.
func (e venvCreationError) Output() string { return e.output }

// ErrVenvCreation constructs a venvCreationError.
func ErrVenvCreation(output string, cause error) error {
	return venvCreationError{output: output, cause: cause}
}

// IsVenvCreation reports whether err indicates a failed venv creation.
func IsVenvCreation(err error) bool {
	var e venvCreationError
	return errors.As(err, &e)
}

// pipInstallError signals that the pip install step inside the venv failed.
type pipInstallError struct {
	output string
	cause  error
}

func (e pipInstallError) Error() string {
	return "package installation failed: " + e.cause.Error()
}
func (e pipInstallError) Unwrap() error { return e.cause }

// Output returns the captured process output, if any.
func (e pipInstallError) Output() string { return e.output }

// ErrPackageInstall constructs a pipInstallError.
func ErrPackageInstall(output string, cause error) error {
	return pipInstallError{output: output, cause: cause}
}

// IsPackageInstall reports whether err indicates a failed package install.
func IsPackageInstall(err error) bool {
	var e pipInstallError
	return errors.As(err, &e)
}
