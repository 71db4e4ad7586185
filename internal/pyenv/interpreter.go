package pyenv

import (
	"os"

	"convd/internal/runner"
)

const (
	// envLookupBin resolves the interpreter through the OS search path.
	envLookupBin   = "/usr/bin/env"
	defaultCommand = "python3"
)

// Interpreter selects which Python executable to invoke: an explicit path,
// or the system default resolved through the OS search path. The zero value
// is the system default.
type Interpreter struct {
	path string
}

// SystemDefault returns the interpreter resolved via environment lookup.
func SystemDefault() Interpreter { return Interpreter{} }

// Explicit returns an interpreter pinned to path.
func Explicit(path string) Interpreter { return Interpreter{path: path} }

// FromConfig maps a user-supplied setting to an Interpreter. Empty and
// "auto" mean the system default.
func FromConfig(s string) Interpreter {
	if s == "" || s == "auto" {
		return SystemDefault()
	}
	return Explicit(s)
}

// IsSystemDefault reports whether the interpreter is resolved via lookup.
func (i Interpreter) IsSystemDefault() bool { return i.path == "" }

func (i Interpreter) String() string {
	if i.IsSystemDefault() {
		return "system " + defaultCommand
	}
	return i.path
}

// Resolve returns the executable and final argument list for baseArgs.
// System default runs through env so the OS search path picks the binary;
// an explicit path is used verbatim, with a stray leading interpreter token
// stripped so arguments are never double-prefixed. Pure and idempotent.
func (i Interpreter) Resolve(baseArgs []string) (string, []string) {
	if i.IsSystemDefault() {
		args := make([]string, 0, len(baseArgs)+1)
		args = append(args, defaultCommand)
		args = append(args, baseArgs...)
		return envLookupBin, args
	}
	args := append([]string(nil), baseArgs...)
	if len(args) > 0 && args[0] == defaultCommand {
		args = args[1:]
	}
	return i.path, args
}

// Validate checks that an explicit interpreter path exists on disk and is a
// regular file. The system default is always considered resolvable here;
// lookup failures surface at spawn time.
func (i Interpreter) Validate() error {
	if i.IsSystemDefault() {
		return nil
	}
	fi, err := os.Stat(i.path)
	if err != nil || fi.IsDir() {
		return runner.ErrExecutableNotFound(i.path)
	}
	return nil
}
