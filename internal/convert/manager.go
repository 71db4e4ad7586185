package convert

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"convd/internal/pyenv"
	"convd/internal/runner"
)

// ProcessRunner is the execution surface the manager needs. Streaming is
// used for conversions so the transcript is live; everything else buffers.
type ProcessRunner interface {
	Run(ctx context.Context, spec runner.Spec) (runner.Result, error)
	Stream(ctx context.Context, spec runner.Spec, onChunk func(runner.Chunk)) (runner.Result, error)
}

// Config carries the manager's tunables.
type Config struct {
	// Python is the interpreter setting: "auto"/empty for the system
	// default, or an explicit path.
	Python string
	// WorkDir is the working directory for conversion runs. Empty inherits.
	WorkDir string
	// ExtraConvertArgs are appended verbatim to every conversion invocation.
	ExtraConvertArgs []string
}

// Snapshot is a read-only projection of the manager state.
type Snapshot struct {
	Running   bool
	SettingUp bool
	Env       pyenv.Status
	EnvDetail string
	Python    string
}

// Outcome reports how a conversion run ended. A process that ran and failed
// is still an Outcome; launch problems surface as errors.
type Outcome struct {
	OK       bool
	ExitCode int
}

// Manager owns the operation state the front-end reads: the running and
// setting-up flags, the environment status and the transcript. A single
// operation is in flight at a time; every exit path clears its flag.
type Manager struct {
	run        ProcessRunner
	checker    *pyenv.Checker
	prov       *pyenv.Provisioner
	transcript *Transcript
	publisher  EventPublisher

	mu        sync.Mutex
	interp    pyenv.Interpreter
	workDir   string
	extraArgs []string
	running   bool
	settingUp bool
}

func New(cfg Config, run ProcessRunner) *Manager {
	return &Manager{
		run:        run,
		checker:    pyenv.NewChecker(run),
		prov:       pyenv.NewProvisioner(run),
		transcript: NewTranscript(),
		publisher:  noopPublisher{},
		interp:     pyenv.FromConfig(cfg.Python),
		workDir:    cfg.WorkDir,
		extraArgs:  append([]string(nil), cfg.ExtraConvertArgs...),
	}
}

// SetPublisher installs an EventPublisher for lifecycle events.
func (m *Manager) SetPublisher(p EventPublisher) {
	if p == nil {
		p = noopPublisher{}
	}
	m.mu.Lock()
	m.publisher = p
	m.mu.Unlock()
}

// SetInterpreter switches the active interpreter, e.g. after provisioning
// or a config reload. Environment status resets to unchecked.
func (m *Manager) SetInterpreter(i pyenv.Interpreter) {
	m.mu.Lock()
	changed := m.interp != i
	m.interp = i
	m.mu.Unlock()
	if changed {
		m.checker.Reset()
	}
}

// Interpreter returns the active interpreter.
func (m *Manager) Interpreter() pyenv.Interpreter {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.interp
}

// Transcript exposes the operation log for readers and subscribers.
func (m *Manager) Transcript() *Transcript { return m.transcript }

// Status returns a point-in-time snapshot.
func (m *Manager) Status() Snapshot {
	st, detail := m.checker.Snapshot()
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{
		Running:   m.running,
		SettingUp: m.settingUp,
		Env:       st,
		EnvDetail: detail,
		Python:    m.interp.String(),
	}
}

// begin claims the single active-operation slot and resets the transcript.
func (m *Manager) begin(setup bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return ErrBusy("convert")
	}
	if m.settingUp {
		return ErrBusy("setup")
	}
	if setup {
		m.settingUp = true
	} else {
		m.running = true
	}
	m.transcript.Reset()
	return nil
}

func (m *Manager) end(setup bool) {
	m.mu.Lock()
	if setup {
		m.settingUp = false
	} else {
		m.running = false
	}
	m.mu.Unlock()
}

func (m *Manager) publish(e Event) {
	m.mu.Lock()
	p := m.publisher
	m.mu.Unlock()
	p.Publish(e)
}

// CheckEnvironment runs the diagnostic script against an interpreter.
// Empty python keeps the active interpreter; otherwise the override becomes
// the active one first. Invalid is a status, never an error.
func (m *Manager) CheckEnvironment(ctx context.Context, python string) (pyenv.Status, string) {
	start := time.Now()
	if python != "" {
		m.SetInterpreter(pyenv.FromConfig(python))
	}
	st, detail := m.checker.Check(ctx, m.Interpreter())
	observeOp("check", string(st), start)
	m.publish(Event{Name: "env_check", Op: "check", Fields: map[string]any{"status": string(st)}})
	return st, detail
}

// Provision creates dir/.venv with base and installs the required packages,
// then adopts the venv interpreter and re-validates it. Sequential with
// partial-failure reporting through the transcript.
func (m *Manager) Provision(ctx context.Context, base pyenv.Interpreter, dir string) (string, error) {
	if err := m.begin(true); err != nil {
		return "", err
	}
	start := time.Now()
	venvPython := ""
	err := func() error {
		defer m.end(true)
		if strings.TrimSpace(dir) == "" {
			err := ErrPrecondition("target directory is required")
			m.transcript.Append("error: " + err.Error())
			return err
		}
		m.transcript.Append("provisioning environment in " + dir)
		m.publish(Event{Name: "setup_start", Op: "setup", Fields: map[string]any{"dir": dir}})

		p, perr := m.prov.Provision(ctx, base, dir, m.transcript.Append)
		if perr != nil {
			m.transcript.Append("setup failed: " + perr.Error())
			return perr
		}
		venvPython = p
		m.transcript.Append("environment ready: " + venvPython)
		return nil
	}()
	if err != nil {
		observeOp("setup", "error", start)
		m.publish(Event{Name: "setup_error", Op: "setup", Fields: map[string]any{"error": err.Error()}})
		return "", err
	}
	observeOp("setup", "ok", start)
	m.publish(Event{Name: "setup_done", Op: "setup", Fields: map[string]any{"python": venvPython}})

	m.SetInterpreter(pyenv.Explicit(venvPython))
	m.checker.Check(ctx, m.Interpreter())
	return venvPython, nil
}

// Convert builds the tool invocation for req and streams its output into
// the transcript. Preconditions (valid environment, upload target present)
// are enforced before any spawn; the running flag clears on every path.
func (m *Manager) Convert(ctx context.Context, req Request) (Outcome, error) {
	if err := m.begin(false); err != nil {
		return Outcome{}, err
	}
	defer m.end(false)
	start := time.Now()

	if err := req.Validate(); err != nil {
		m.transcript.Append("error: " + err.Error())
		observeOp("convert", "rejected", start)
		return Outcome{}, err
	}
	if !m.checker.Valid() {
		err := ErrPrecondition("environment is not valid; run a check first")
		m.transcript.Append("error: " + err.Error())
		observeOp("convert", "rejected", start)
		return Outcome{}, err
	}

	interp := m.Interpreter()
	if err := interp.Validate(); err != nil {
		m.transcript.Append(err.Error())
		observeOp("convert", "launch_error", start)
		return Outcome{}, err
	}

	m.mu.Lock()
	extra := m.extraArgs
	workDir := m.workDir
	m.mu.Unlock()

	exe, args := interp.Resolve(BuildConvertArgs(req, extra))
	m.transcript.Append(fmt.Sprintf("$ %s %s", exe, strings.Join(args, " ")))
	m.publish(Event{Name: "convert_start", Op: "convert", Fields: map[string]any{
		"hf_path": req.SourceRepo, "quantization": string(req.Quantization), "upload": req.Upload,
	}})

	res, err := m.run.Stream(ctx, runner.Spec{Path: exe, Args: args, Dir: workDir}, func(c runner.Chunk) {
		if c.Stderr {
			m.transcript.Append("[stderr] " + c.Text)
			return
		}
		m.transcript.Append(c.Text)
	})
	if err != nil {
		m.transcript.Append("conversion could not start: " + err.Error())
		observeOp("convert", "launch_error", start)
		m.publish(Event{Name: "convert_error", Op: "convert", Fields: map[string]any{"error": err.Error()}})
		return Outcome{}, err
	}

	if res.OK {
		m.transcript.Append("conversion completed successfully")
	} else {
		m.transcript.Append(fmt.Sprintf("conversion failed (exit status %d)", res.ExitCode))
	}
	observeOp("convert", resultLabel(res.OK), start)
	m.publish(Event{Name: "convert_done", Op: "convert", Fields: map[string]any{
		"ok": res.OK, "exit_code": res.ExitCode,
	}})
	return Outcome{OK: res.OK, ExitCode: res.ExitCode}, nil
}

func resultLabel(ok bool) string {
	if ok {
		return "ok"
	}
	return "failed"
}
