package convert

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"convd/internal/pyenv"
	"convd/internal/runner"
)

const sentinelOutput = "Python 3.12.3\nCONVD_ENV_OK\nexit status 0\n"

// fakeProc scripts buffered results per call and replays chunks for streams.
type fakeProc struct {
	runResults []runner.Result
	runErrs    []error
	runSpecs   []runner.Spec

	streamChunks []runner.Chunk
	streamResult runner.Result
	streamErr    error
	streamSpecs  []runner.Spec
	streamGate   chan struct{} // when set, Stream blocks until closed
}

func (f *fakeProc) Run(ctx context.Context, spec runner.Spec) (runner.Result, error) {
	i := len(f.runSpecs)
	f.runSpecs = append(f.runSpecs, spec)
	var res runner.Result
	if i < len(f.runResults) {
		res = f.runResults[i]
	}
	var err error
	if i < len(f.runErrs) {
		err = f.runErrs[i]
	}
	return res, err
}

func (f *fakeProc) Stream(ctx context.Context, spec runner.Spec, onChunk func(runner.Chunk)) (runner.Result, error) {
	f.streamSpecs = append(f.streamSpecs, spec)
	if f.streamGate != nil {
		<-f.streamGate
	}
	if f.streamErr != nil {
		return runner.Result{}, f.streamErr
	}
	for _, c := range f.streamChunks {
		onChunk(c)
	}
	return f.streamResult, nil
}

// helper: bring a manager to a valid environment via a scripted check
func validManager(t *testing.T, fake *fakeProc) *Manager {
	t.Helper()
	fake.runResults = append(fake.runResults, runner.Result{OK: true, Output: sentinelOutput})
	m := New(Config{}, fake)
	if st, detail := m.CheckEnvironment(context.Background(), ""); st != pyenv.StatusValid {
		t.Fatalf("check: %s (%s)", st, detail)
	}
	return m
}

func TestConvertRejectsUploadWithoutDest(t *testing.T) {
	fake := &fakeProc{}
	m := validManager(t, fake)
	_, err := m.Convert(context.Background(), Request{SourceRepo: "org/m", Upload: true})
	if err == nil || !IsPrecondition(err) {
		t.Fatalf("expected precondition, got %v", err)
	}
	if len(fake.streamSpecs) != 0 {
		t.Fatalf("expected no spawn, got %d", len(fake.streamSpecs))
	}
	if m.Status().Running {
		t.Fatalf("running flag stuck after rejection")
	}
	if !strings.Contains(m.Transcript().String(), "upload repo is empty") {
		t.Fatalf("expected rejection message in transcript:\n%s", m.Transcript().String())
	}
}

func TestConvertRejectsInvalidEnvironment(t *testing.T) {
	fake := &fakeProc{}
	m := New(Config{}, fake)
	_, err := m.Convert(context.Background(), Request{SourceRepo: "org/m"})
	if err == nil || !IsPrecondition(err) {
		t.Fatalf("expected precondition, got %v", err)
	}
	if len(fake.streamSpecs) != 0 {
		t.Fatalf("expected no spawn, got %d", len(fake.streamSpecs))
	}
}

func TestConvertStreamsIntoTranscript(t *testing.T) {
	fake := &fakeProc{
		streamChunks: []runner.Chunk{
			{Text: "Fetching 5 files\n"},
			{Text: "warning: slow disk\n", Stderr: true},
			{Text: "Converting\n"},
		},
		streamResult: runner.Result{OK: true, Output: "..."},
	}
	m := validManager(t, fake)
	out, err := m.Convert(context.Background(), Request{SourceRepo: "org/model-a", Quantization: Quant8Bit})
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if !out.OK {
		t.Fatalf("expected success outcome, got %+v", out)
	}
	txt := m.Transcript().String()
	for _, want := range []string{
		"$ /usr/bin/env python3 -m mlx_lm convert --hf-path org/model-a -q --q-bits 8",
		"Fetching 5 files",
		"[stderr] warning: slow disk",
		"conversion completed successfully",
	} {
		if !strings.Contains(txt, want) {
			t.Fatalf("missing %q in transcript:\n%s", want, txt)
		}
	}
	if m.Status().Running {
		t.Fatalf("running flag stuck after success")
	}
}

func TestConvertFailureAppendsExitCode(t *testing.T) {
	fake := &fakeProc{streamResult: runner.Result{OK: false, ExitCode: 7}}
	m := validManager(t, fake)
	out, err := m.Convert(context.Background(), Request{SourceRepo: "org/m"})
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if out.OK || out.ExitCode != 7 {
		t.Fatalf("unexpected outcome %+v", out)
	}
	if !strings.Contains(m.Transcript().String(), "conversion failed (exit status 7)") {
		t.Fatalf("missing failure line:\n%s", m.Transcript().String())
	}
	if m.Status().Running {
		t.Fatalf("running flag stuck after failure")
	}
}

func TestConvertClearsFlagOnLaunchFailure(t *testing.T) {
	fake := &fakeProc{streamErr: runner.ErrExecutionFailed(errors.New("no loader"))}
	m := validManager(t, fake)
	_, err := m.Convert(context.Background(), Request{SourceRepo: "org/m"})
	if err == nil || !runner.IsExecutionFailed(err) {
		t.Fatalf("expected execution-failed, got %v", err)
	}
	if m.Status().Running {
		t.Fatalf("running flag stuck after launch failure")
	}
	if !strings.Contains(m.Transcript().String(), "conversion could not start") {
		t.Fatalf("missing launch failure message:\n%s", m.Transcript().String())
	}
}

func TestConvertRejectsConcurrentOperation(t *testing.T) {
	gate := make(chan struct{})
	fake := &fakeProc{streamGate: gate, streamResult: runner.Result{OK: true}}
	m := validManager(t, fake)

	done := make(chan error, 1)
	go func() {
		_, err := m.Convert(context.Background(), Request{SourceRepo: "org/m"})
		done <- err
	}()

	// wait for the first conversion to claim the slot
	deadline := time.After(2 * time.Second)
	for !m.Status().Running {
		select {
		case <-deadline:
			t.Fatalf("first conversion never started")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	_, err := m.Convert(context.Background(), Request{SourceRepo: "org/other"})
	if err == nil || !IsBusy(err) {
		t.Fatalf("expected busy, got %v", err)
	}

	close(gate)
	if err := <-done; err != nil {
		t.Fatalf("first conversion: %v", err)
	}
	if m.Status().Running {
		t.Fatalf("running flag stuck after completion")
	}
}

func TestProvisionAdoptsVenvAndRevalidates(t *testing.T) {
	dir := t.TempDir()
	venvPython := pyenv.VenvPython(dir)
	if err := os.MkdirAll(filepath.Dir(venvPython), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(venvPython, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatalf("write: %v", err)
	}
	// scripted: venv create, pip install, then the revalidation pass
	fake := &fakeProc{runResults: []runner.Result{
		{OK: true, Output: "exit status 0\n"},
		{OK: true, Output: "Successfully installed mlx-lm\nexit status 0\n"},
		{OK: true, Output: sentinelOutput},
	}}
	m := New(Config{}, fake)
	got, err := m.Provision(context.Background(), pyenv.SystemDefault(), dir)
	if err != nil {
		t.Fatalf("provision: %v", err)
	}
	if got != venvPython {
		t.Fatalf("expected %q, got %q", venvPython, got)
	}
	st := m.Status()
	if st.SettingUp {
		t.Fatalf("setting-up flag stuck")
	}
	if st.Python != venvPython {
		t.Fatalf("interpreter not adopted: %q", st.Python)
	}
	if st.Env != pyenv.StatusValid {
		t.Fatalf("expected revalidation to run, env=%s", st.Env)
	}
	if len(fake.runSpecs) != 3 {
		t.Fatalf("expected venv+pip+check runs, got %d", len(fake.runSpecs))
	}
}

func TestProvisionFailureKeepsInterpreter(t *testing.T) {
	fake := &fakeProc{runResults: []runner.Result{
		{OK: false, Output: "disk full\nexit status 1\n", ExitCode: 1},
	}}
	m := New(Config{}, fake)
	_, err := m.Provision(context.Background(), pyenv.SystemDefault(), t.TempDir())
	if err == nil || !pyenv.IsVenvCreation(err) {
		t.Fatalf("expected venv creation error, got %v", err)
	}
	st := m.Status()
	if st.SettingUp {
		t.Fatalf("setting-up flag stuck")
	}
	if st.Python != pyenv.SystemDefault().String() {
		t.Fatalf("interpreter changed on failure: %q", st.Python)
	}
	if !strings.Contains(m.Transcript().String(), "disk full") {
		t.Fatalf("expected captured output in transcript:\n%s", m.Transcript().String())
	}
	if len(fake.runSpecs) != 1 {
		t.Fatalf("install step ran after venv failure: %d calls", len(fake.runSpecs))
	}
}

func TestTranscriptResetBetweenOperations(t *testing.T) {
	fake := &fakeProc{streamChunks: []runner.Chunk{{Text: "first run\n"}}, streamResult: runner.Result{OK: true}}
	m := validManager(t, fake)
	if _, err := m.Convert(context.Background(), Request{SourceRepo: "org/a"}); err != nil {
		t.Fatalf("convert: %v", err)
	}
	fake.streamChunks = []runner.Chunk{{Text: "second run\n"}}
	if _, err := m.Convert(context.Background(), Request{SourceRepo: "org/b"}); err != nil {
		t.Fatalf("convert: %v", err)
	}
	txt := m.Transcript().String()
	if strings.Contains(txt, "first run") {
		t.Fatalf("old transcript leaked into new operation:\n%s", txt)
	}
	if !strings.Contains(txt, "second run") {
		t.Fatalf("missing new output:\n%s", txt)
	}
}

func TestEventsPublished(t *testing.T) {
	fake := &fakeProc{streamResult: runner.Result{OK: true}}
	m := validManager(t, fake)
	pub := NewMemoryPublisher()
	m.SetPublisher(pub)
	if _, err := m.Convert(context.Background(), Request{SourceRepo: "org/m"}); err != nil {
		t.Fatalf("convert: %v", err)
	}
	var names []string
	for _, e := range pub.Events() {
		names = append(names, e.Name)
	}
	joined := strings.Join(names, ",")
	if !strings.Contains(joined, "convert_start") || !strings.Contains(joined, "convert_done") {
		t.Fatalf("missing lifecycle events: %v", names)
	}
}
