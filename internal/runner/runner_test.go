package runner

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// helper: create a dummy executable file so the pre-spawn stat passes
func fakeBinary(t *testing.T) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "python3")
	if err := os.WriteFile(p, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatalf("write file: %v", err)
	}
	return p
}

type fakeCommandRunner struct {
	stdout   []byte
	stderr   []byte
	exitCode int
	startErr error

	calls int
	specs []Spec
}

func (f *fakeCommandRunner) Run(ctx context.Context, spec Spec) ([]byte, []byte, int, error) {
	f.calls++
	f.specs = append(f.specs, spec)
	if f.startErr != nil {
		return nil, nil, -1, f.startErr
	}
	return f.stdout, f.stderr, f.exitCode, nil
}

func (f *fakeCommandRunner) Start(ctx context.Context, spec Spec) (io.ReadCloser, io.ReadCloser, func() (int, error), error) {
	f.calls++
	f.specs = append(f.specs, spec)
	if f.startErr != nil {
		return nil, nil, nil, f.startErr
	}
	out := io.NopCloser(strings.NewReader(string(f.stdout)))
	errp := io.NopCloser(strings.NewReader(string(f.stderr)))
	wait := func() (int, error) { return f.exitCode, nil }
	return out, errp, wait, nil
}

func TestRunCombinesStdoutThenStderr(t *testing.T) {
	bin := fakeBinary(t)
	fake := &fakeCommandRunner{stdout: []byte("hello\n"), stderr: []byte("oops\n"), exitCode: 2}
	r := NewWithCommandRunner(fake)
	res, err := r.Run(context.Background(), Spec{Path: bin})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	want := "hello\n--- stderr ---\noops\nexit status 2\n"
	if res.Output != want {
		t.Fatalf("output mismatch:\n got %q\nwant %q", res.Output, want)
	}
	if res.OK {
		t.Fatalf("expected OK=false for exit 2")
	}
	if res.ExitCode != 2 {
		t.Fatalf("expected exit code 2, got %d", res.ExitCode)
	}
}

func TestRunOmitsStderrBlockWhenEmpty(t *testing.T) {
	bin := fakeBinary(t)
	fake := &fakeCommandRunner{stdout: []byte("fine\n"), exitCode: 0}
	r := NewWithCommandRunner(fake)
	res, err := r.Run(context.Background(), Spec{Path: bin})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if strings.Contains(res.Output, "--- stderr ---") {
		t.Fatalf("unexpected stderr block in %q", res.Output)
	}
	if !strings.HasSuffix(res.Output, "exit status 0\n") {
		t.Fatalf("missing trailing status line in %q", res.Output)
	}
	if !res.OK {
		t.Fatalf("expected OK=true")
	}
}

func TestRunMissingExecutable(t *testing.T) {
	fake := &fakeCommandRunner{}
	r := NewWithCommandRunner(fake)
	_, err := r.Run(context.Background(), Spec{Path: filepath.Join(t.TempDir(), "nope")})
	if err == nil || !IsExecutableNotFound(err) {
		t.Fatalf("expected executable-not-found, got %v", err)
	}
	if fake.calls != 0 {
		t.Fatalf("expected no spawn attempt, got %d calls", fake.calls)
	}
}

func TestRunSpawnFailure(t *testing.T) {
	bin := fakeBinary(t)
	fake := &fakeCommandRunner{startErr: errors.New("permission denied")}
	r := NewWithCommandRunner(fake)
	_, err := r.Run(context.Background(), Spec{Path: bin})
	if err == nil || !IsExecutionFailed(err) {
		t.Fatalf("expected execution-failed, got %v", err)
	}
	if !strings.Contains(err.Error(), "permission denied") {
		t.Fatalf("expected underlying reason in %q", err.Error())
	}
}

func TestStreamDeliversTaggedChunks(t *testing.T) {
	bin := fakeBinary(t)
	fake := &fakeCommandRunner{stdout: []byte("a\nb\n"), stderr: []byte("warn\n"), exitCode: 0}
	r := NewWithCommandRunner(fake)
	var got []Chunk
	res, err := r.Stream(context.Background(), Spec{Path: bin}, func(c Chunk) { got = append(got, c) })
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	if !res.OK {
		t.Fatalf("expected OK=true")
	}
	var out, errs int
	for _, c := range got {
		if c.Stderr {
			errs++
		} else {
			out++
		}
	}
	if out != 2 || errs != 1 {
		t.Fatalf("expected 2 stdout + 1 stderr chunks, got %d/%d", out, errs)
	}
	if !strings.HasSuffix(res.Output, "exit status 0\n") {
		t.Fatalf("missing status line in %q", res.Output)
	}
}

func TestExecCommandRunnerRealProcess(t *testing.T) {
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("no /bin/sh")
	}
	r := New()
	res, err := r.Run(context.Background(), Spec{
		Path: "/bin/sh",
		Args: []string{"-c", "echo out; echo err 1>&2; exit 3"},
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.OK || res.ExitCode != 3 {
		t.Fatalf("expected exit 3, got %+v", res)
	}
	if !strings.Contains(res.Output, "out\n") || !strings.Contains(res.Output, "err\n") {
		t.Fatalf("missing captured output: %q", res.Output)
	}
	if !strings.HasSuffix(res.Output, "exit status 3\n") {
		t.Fatalf("missing status line: %q", res.Output)
	}
}

func TestStreamRealProcessOrder(t *testing.T) {
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("no /bin/sh")
	}
	r := New()
	var lines []string
	res, err := r.Stream(context.Background(), Spec{
		Path: "/bin/sh",
		Args: []string{"-c", "echo one; echo two"},
	}, func(c Chunk) { lines = append(lines, c.Text) })
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	if !res.OK {
		t.Fatalf("expected success: %+v", res)
	}
	if len(lines) != 2 || lines[0] != "one\n" || lines[1] != "two\n" {
		t.Fatalf("unexpected chunk order: %q", lines)
	}
}
