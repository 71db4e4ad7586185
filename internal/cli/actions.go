package cli

import (
	"context"
	"fmt"

	"convd/internal/common/fsutil"
	"convd/internal/convert"
	"convd/internal/pyenv"
	"convd/internal/runner"
)

func newManager(cfg *Config) *convert.Manager {
	return convert.New(convert.Config{Python: cfg.Python}, runner.New())
}

// echoTranscript prints transcript appends to stdout until the returned
// stop func is called.
func echoTranscript(m *convert.Manager) func() {
	ch, cancel := m.Transcript().Subscribe()
	done := make(chan struct{})
	go func() {
		for line := range ch {
			fmt.Println(line)
		}
		close(done)
	}()
	return func() {
		cancel()
		<-done
	}
}

func fnCheck(ctx context.Context, cfg *Config) error {
	m := newManager(cfg)
	info("Checking environment for %s...", m.Interpreter())
	st, detail := m.CheckEnvironment(ctx, "")
	if st != pyenv.StatusValid {
		return fmt.Errorf("environment invalid:\n%s", detail)
	}
	info("%s", detail)
	return nil
}

func fnSetup(ctx context.Context, cfg *Config, dir string) error {
	target, err := fsutil.ExpandHome(dir)
	if err != nil {
		return err
	}
	m := newManager(cfg)
	stop := echoTranscript(m)
	defer stop()

	info("Provisioning %s/.venv ...", target)
	python, err := m.Provision(ctx, pyenv.FromConfig(cfg.Python), target)
	if err != nil {
		return err
	}
	info("Environment ready. Use --python %s for future runs.", python)
	return nil
}

func fnConvert(ctx context.Context, cfg *Config, hfPath, uploadRepo, quant string, upload bool) error {
	q, err := convert.ParseQuantization(quant)
	if err != nil {
		return err
	}
	m := newManager(cfg)

	debug("Validating environment before conversion")
	if st, detail := m.CheckEnvironment(ctx, ""); st != pyenv.StatusValid {
		return fmt.Errorf("environment invalid:\n%s", detail)
	}

	stop := echoTranscript(m)
	defer stop()

	out, err := m.Convert(ctx, convert.Request{
		SourceRepo:   hfPath,
		DestRepo:     uploadRepo,
		Quantization: q,
		Upload:       upload,
	})
	if err != nil {
		return err
	}
	if !out.OK {
		return fmt.Errorf("conversion failed with exit status %d", out.ExitCode)
	}
	info("Conversion completed successfully.")
	return nil
}
