package pyenv

import (
	"context"
	"errors"
	"strings"
	"testing"

	"convd/internal/runner"
)

// scriptedRunner returns canned results per call and records specs.
type scriptedRunner struct {
	results []runner.Result
	errs    []error
	specs   []runner.Spec
}

func (s *scriptedRunner) Run(ctx context.Context, spec runner.Spec) (runner.Result, error) {
	i := len(s.specs)
	s.specs = append(s.specs, spec)
	var res runner.Result
	if i < len(s.results) {
		res = s.results[i]
	}
	var err error
	if i < len(s.errs) {
		err = s.errs[i]
	}
	return res, err
}

func TestCheckValid(t *testing.T) {
	fake := &scriptedRunner{results: []runner.Result{{
		OK:     true,
		Output: "Python 3.12.3\nCONVD_ENV_OK\nexit status 0\n",
	}}}
	c := NewChecker(fake)
	st, detail := c.Check(context.Background(), SystemDefault())
	if st != StatusValid {
		t.Fatalf("expected valid, got %s (%s)", st, detail)
	}
	if !strings.Contains(detail, "Python 3.12.3") {
		t.Fatalf("expected version in detail, got %q", detail)
	}
	if got, _ := c.Snapshot(); got != StatusValid {
		t.Fatalf("snapshot mismatch: %s", got)
	}
}

func TestCheckZeroExitWithoutSentinelIsInvalid(t *testing.T) {
	fake := &scriptedRunner{results: []runner.Result{{
		OK:     true,
		Output: "Python 3.12.3\nexit status 0\n",
	}}}
	c := NewChecker(fake)
	st, detail := c.Check(context.Background(), SystemDefault())
	if st != StatusInvalid {
		t.Fatalf("expected invalid when sentinel missing, got %s", st)
	}
	if !strings.Contains(detail, InstallCommand) {
		t.Fatalf("expected remediation text in %q", detail)
	}
}

func TestCheckNonZeroExitIsInvalid(t *testing.T) {
	fake := &scriptedRunner{results: []runner.Result{{
		OK:       false,
		Output:   "import error: No module named 'mlx_lm'\nexit status 1\n",
		ExitCode: 1,
	}}}
	c := NewChecker(fake)
	st, detail := c.Check(context.Background(), SystemDefault())
	if st != StatusInvalid {
		t.Fatalf("expected invalid, got %s", st)
	}
	if !strings.Contains(detail, "No module named 'mlx_lm'") {
		t.Fatalf("expected captured output echoed in %q", detail)
	}
}

func TestCheckLaunchFailureIsInvalid(t *testing.T) {
	fake := &scriptedRunner{errs: []error{runner.ErrExecutionFailed(errors.New("boom"))}}
	c := NewChecker(fake)
	st, _ := c.Check(context.Background(), SystemDefault())
	if st != StatusInvalid {
		t.Fatalf("expected invalid on launch failure, got %s", st)
	}
}

func TestCheckMissingExplicitInterpreterSkipsSpawn(t *testing.T) {
	fake := &scriptedRunner{}
	c := NewChecker(fake)
	st, detail := c.Check(context.Background(), Explicit("/definitely/not/here/python"))
	if st != StatusInvalid {
		t.Fatalf("expected invalid, got %s", st)
	}
	if len(fake.specs) != 0 {
		t.Fatalf("expected no spawn, got %d", len(fake.specs))
	}
	if !strings.Contains(detail, "executable not found") {
		t.Fatalf("unexpected detail %q", detail)
	}
}

func TestCheckPassesInlineScript(t *testing.T) {
	fake := &scriptedRunner{results: []runner.Result{{OK: true, Output: successSentinel + "\n"}}}
	c := NewChecker(fake)
	_, _ = c.Check(context.Background(), SystemDefault())
	if len(fake.specs) != 1 {
		t.Fatalf("expected one spawn, got %d", len(fake.specs))
	}
	spec := fake.specs[0]
	if spec.Path != "/usr/bin/env" || len(spec.Args) < 3 || spec.Args[0] != "python3" || spec.Args[1] != "-c" {
		t.Fatalf("unexpected invocation: %q %v", spec.Path, spec.Args)
	}
	if !strings.Contains(spec.Args[2], "import mlx_lm") || !strings.Contains(spec.Args[2], "import huggingface_hub") {
		t.Fatalf("diagnostic script missing imports: %q", spec.Args[2])
	}
}
