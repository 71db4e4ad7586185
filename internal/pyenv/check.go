package pyenv

import (
	"context"
	"strings"
	"sync"

	"convd/internal/runner"
)

// Status is the tri-state outcome of an environment check.
type Status string

const (
	StatusUnchecked Status = "unchecked"
	StatusValid     Status = "valid"
	StatusInvalid   Status = "invalid"
)

// RequiredPackages are the pip package names the conversion tool needs.
var RequiredPackages = []string{"mlx-lm", "huggingface_hub"}

// InstallCommand is the fixed remediation string surfaced to the user and
// offered for copying by the front-end.
const InstallCommand = "pip install mlx-lm huggingface_hub"

// successSentinel is printed by the diagnostic script only when both
// required packages import cleanly. Checked in addition to the exit code so
// an interpreter that exits zero without running the imports still fails.
const successSentinel = "CONVD_ENV_OK"

// diagnosticScript is passed inline via `python -c`. It prints the
// interpreter version, attempts the imports, and prints the sentinel on
// success or the import error before exiting non-zero.
const diagnosticScript = `import sys
print("Python " + sys.version.split()[0])
try:
    import mlx_lm
    import huggingface_hub
except Exception as e:
    print("import error: %s" % e)
    sys.exit(1)
print("` + successSentinel + `")
`

// ProcessRunner is the buffered execution surface the checker and the
// provisioner need from internal/runner.
type ProcessRunner interface {
	Run(ctx context.Context, spec runner.Spec) (runner.Result, error)
}

// Checker owns the environment status. Callers read snapshots; only Check
// mutates.
type Checker struct {
	run ProcessRunner

	mu     sync.Mutex
	status Status
	detail string
}

func NewChecker(run ProcessRunner) *Checker {
	return &Checker{run: run, status: StatusUnchecked}
}

// Snapshot returns the current status and diagnostic message.
func (c *Checker) Snapshot() (Status, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status, c.detail
}

// Valid reports whether the last check passed.
func (c *Checker) Valid() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status == StatusValid
}

// Reset returns the status to unchecked, e.g. after the active interpreter
// changed and the previous verdict no longer applies.
func (c *Checker) Reset() { c.set(StatusUnchecked, "") }

func (c *Checker) set(s Status, detail string) {
	c.mu.Lock()
	c.status = s
	c.detail = detail
	c.mu.Unlock()
}

// Check runs the diagnostic script through interp and updates the owned
// status. Valid requires exit 0 AND the success sentinel in the output; any
// other outcome, launch failures included, is invalid with remediation text.
func (c *Checker) Check(ctx context.Context, interp Interpreter) (Status, string) {
	c.set(StatusUnchecked, "checking environment...")

	if err := interp.Validate(); err != nil {
		return c.fail(err.Error())
	}
	exe, args := interp.Resolve([]string{"-c", diagnosticScript})
	res, err := c.run.Run(ctx, runner.Spec{Path: exe, Args: args})
	if err != nil {
		return c.fail(err.Error())
	}
	if !res.OK || !strings.Contains(res.Output, successSentinel) {
		return c.fail(strings.TrimSpace(res.Output))
	}

	detail := "environment OK"
	if line, _, ok := strings.Cut(res.Output, "\n"); ok && strings.TrimSpace(line) != "" {
		detail = "environment OK (" + strings.TrimSpace(line) + ")"
	}
	c.set(StatusValid, detail)
	return StatusValid, detail
}

// fail records an invalid status with a uniform message format regardless of
// which output streams were empty.
func (c *Checker) fail(captured string) (Status, string) {
	detail := "environment check failed"
	if captured != "" {
		detail += ":\n" + captured
	}
	detail += "\ninstall the required packages with: " + InstallCommand
	c.set(StatusInvalid, detail)
	return StatusInvalid, detail
}
