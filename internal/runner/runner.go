package runner

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
)

// Spec describes a single external command invocation.
type Spec struct {
	Path string
	Args []string
	Dir  string            // working directory, empty inherits
	Env  map[string]string // additional env vars
}

// Result is the outcome of a process that ran to completion. A non-zero
// exit is still a Result; only launch problems surface as errors.
type Result struct {
	OK       bool
	Output   string
	ExitCode int
}

// Chunk is one piece of process output delivered in streaming mode.
type Chunk struct {
	Text   string
	Stderr bool
}

// CommandRunner abstracts process execution so tests can inject fakes.
// Run blocks until exit and returns captured streams plus the exit code;
// Start hands back live pipes and a wait func. Both return a non-nil error
// only when the process could not be started.
type CommandRunner interface {
	Run(ctx context.Context, spec Spec) (stdout, stderr []byte, exitCode int, err error)
	Start(ctx context.Context, spec Spec) (stdout, stderr io.ReadCloser, wait func() (int, error), err error)
}

// ExecCommandRunner runs commands via os/exec.
type ExecCommandRunner struct{}

func (ExecCommandRunner) command(ctx context.Context, spec Spec) *exec.Cmd {
	cmd := exec.CommandContext(ctx, spec.Path, spec.Args...)
	if spec.Dir != "" {
		cmd.Dir = spec.Dir
	}
	cmd.Env = os.Environ()
	for k, v := range spec.Env {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, v))
	}
	return cmd
}

func (r ExecCommandRunner) Run(ctx context.Context, spec Spec) ([]byte, []byte, int, error) {
	cmd := r.command(ctx, spec)
	var outBuf, errBuf bytes.Buffer
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf
	err := cmd.Run()
	code, err := exitCodeOf(err)
	return outBuf.Bytes(), errBuf.Bytes(), code, err
}

func (r ExecCommandRunner) Start(ctx context.Context, spec Spec) (io.ReadCloser, io.ReadCloser, func() (int, error), error) {
	cmd := r.command(ctx, spec)
	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return nil, nil, nil, err
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return nil, nil, nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, nil, nil, err
	}
	wait := func() (int, error) {
		return exitCodeOf(cmd.Wait())
	}
	return stdoutPipe, stderrPipe, wait, nil
}

// exitCodeOf maps a Run/Wait error: a process that ran and exited non-zero
// yields its code with a nil error, anything else is a launch-level failure.
func exitCodeOf(err error) (int, error) {
	if err == nil {
		return 0, nil
	}
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		return ee.ExitCode(), nil
	}
	return -1, err
}

// Runner executes external commands on behalf of the validator, the
// provisioner and the conversion manager. It is stateless and reentrant;
// serialization of operations happens above it.
type Runner struct {
	cr CommandRunner
}

func New() *Runner { return &Runner{cr: ExecCommandRunner{}} }

// NewWithCommandRunner constructs a Runner with a custom CommandRunner.
func NewWithCommandRunner(cr CommandRunner) *Runner { return &Runner{cr: cr} }

// checkPath rejects a missing or directory executable before any spawn.
func checkPath(path string) error {
	fi, err := os.Stat(path)
	if err != nil || fi.IsDir() {
		return ErrExecutableNotFound(path)
	}
	return nil
}

// Run executes spec and buffers all output until exit. The combined text is
// stdout first, then a labeled stderr block if any, then the exit status.
func (r *Runner) Run(ctx context.Context, spec Spec) (Result, error) {
	if err := checkPath(spec.Path); err != nil {
		return Result{}, err
	}
	stdout, stderr, code, err := r.cr.Run(ctx, spec)
	if err != nil {
		return Result{}, ErrExecutionFailed(err)
	}
	var b strings.Builder
	b.Write(stdout)
	if len(stderr) > 0 {
		if b.Len() > 0 && !strings.HasSuffix(b.String(), "\n") {
			b.WriteByte('\n')
		}
		b.WriteString("--- stderr ---\n")
		b.Write(stderr)
	}
	if b.Len() > 0 && !strings.HasSuffix(b.String(), "\n") {
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, "exit status %d\n", code)
	return Result{OK: code == 0, Output: b.String(), ExitCode: code}, nil
}

// Stream executes spec and delivers output to onChunk as it arrives, at line
// granularity, stdout and stderr interleaved in arrival order. onChunk is
// called from a single goroutine. The returned Result carries the full
// transcript including the trailing exit status line.
func (r *Runner) Stream(ctx context.Context, spec Spec, onChunk func(Chunk)) (Result, error) {
	if err := checkPath(spec.Path); err != nil {
		return Result{}, err
	}
	stdout, stderr, wait, err := r.cr.Start(ctx, spec)
	if err != nil {
		return Result{}, ErrExecutionFailed(err)
	}

	chunks := make(chan Chunk, 32)
	var wg sync.WaitGroup
	wg.Add(2)
	go scanInto(stdout, false, chunks, &wg)
	go scanInto(stderr, true, chunks, &wg)
	go func() {
		wg.Wait()
		close(chunks)
	}()

	var b strings.Builder
	for c := range chunks {
		b.WriteString(c.Text)
		if onChunk != nil {
			onChunk(c)
		}
	}

	code, werr := wait()
	if werr != nil {
		return Result{}, ErrExecutionFailed(werr)
	}
	if b.Len() > 0 && !strings.HasSuffix(b.String(), "\n") {
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, "exit status %d\n", code)
	return Result{OK: code == 0, Output: b.String(), ExitCode: code}, nil
}

func scanInto(r io.Reader, isStderr bool, ch chan<- Chunk, wg *sync.WaitGroup) {
	defer wg.Done()
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for s.Scan() {
		ch <- Chunk{Text: s.Text() + "\n", Stderr: isStderr}
	}
}
