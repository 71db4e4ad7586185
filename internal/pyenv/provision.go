package pyenv

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"convd/internal/common/fsutil"
	"convd/internal/runner"
)

// Provisioner creates an isolated venv and installs the required packages
// into it. Both steps log their command line and captured output through the
// supplied sink so a mid-sequence failure leaves a readable trail.
type Provisioner struct {
	run ProcessRunner
}

func NewProvisioner(run ProcessRunner) *Provisioner { return &Provisioner{run: run} }

// VenvPython returns the interpreter path inside a venv rooted at dir/.venv.
func VenvPython(dir string) string {
	return filepath.Join(dir, ".venv", "bin", "python")
}

// Provision creates dir/.venv with base and pip-installs the required
// packages. Strictly sequential: the install step never runs when venv
// creation fails. Returns the interpreter path inside the new venv.
func (p *Provisioner) Provision(ctx context.Context, base Interpreter, dir string, logf func(string)) (string, error) {
	if logf == nil {
		logf = func(string) {}
	}
	if err := fsutil.EnsureDir(dir); err != nil {
		logf(err.Error())
		return "", ErrVenvCreation("", err)
	}
	venvDir := filepath.Join(dir, ".venv")

	out, err := p.step(ctx, base, []string{"-m", "venv", venvDir}, logf)
	if err != nil {
		return "", ErrVenvCreation(out, err)
	}

	venvPython := VenvPython(dir)
	installArgs := append([]string{"-m", "pip", "install"}, RequiredPackages...)
	out, err = p.step(ctx, Explicit(venvPython), installArgs, logf)
	if err != nil {
		return "", ErrPackageInstall(out, err)
	}
	return venvPython, nil
}

// step resolves and runs one command, logging the invocation and its output.
// A non-zero exit is reported as an error carrying the captured output.
func (p *Provisioner) step(ctx context.Context, interp Interpreter, args []string, logf func(string)) (string, error) {
	if err := interp.Validate(); err != nil {
		logf(err.Error())
		return "", err
	}
	exe, final := interp.Resolve(args)
	logf(fmt.Sprintf("$ %s %s", exe, strings.Join(final, " ")))
	res, err := p.run.Run(ctx, runner.Spec{Path: exe, Args: final})
	if err != nil {
		logf(err.Error())
		return "", err
	}
	logf(res.Output)
	if !res.OK {
		return res.Output, fmt.Errorf("exit status %d", res.ExitCode)
	}
	return res.Output, nil
}
