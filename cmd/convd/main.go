package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"convd/internal/common/fsutil"
	"convd/internal/config"
	"convd/internal/convert"
	"convd/internal/httpapi"
	"convd/internal/pyenv"
	"convd/internal/runner"
)

func main() {
	// Flags with environment variable defaults
	defaultAddr := "127.0.0.1:8090"
	if v := os.Getenv("CONVD_ADDR"); v != "" {
		defaultAddr = v
	}
	addr := flag.String("addr", defaultAddr, "HTTP listen address, e.g. 127.0.0.1:8090")
	configPath := flag.String("config", os.Getenv("CONVD_CONFIG"), "Optional config file (yaml/json/toml)")
	python := flag.String("python", os.Getenv("CONVD_PYTHON"), "Interpreter path; empty or 'auto' uses the system python3")
	workDir := flag.String("work-dir", "", "Working directory for conversion runs")
	extraArgs := flag.String("extra-convert-args", "", "Extra args appended to every conversion, shell-style")
	corsEnabled := flag.Bool("cors-enabled", false, "Enable CORS for the front-end origin")
	corsOrigins := flag.String("cors-origins", "", "Comma-separated allowed CORS origins")
	logLevel := flag.String("log-level", "info", "Log level: debug|info|warn|error")
	flag.Parse()

	cfg := config.Config{
		Addr:             *addr,
		Python:           *python,
		WorkDir:          *workDir,
		ExtraConvertArgs: *extraArgs,
		CORSEnabled:      *corsEnabled,
		LogLevel:         *logLevel,
	}
	if *corsOrigins != "" {
		cfg.CORSOrigins = strings.Split(*corsOrigins, ",")
	}

	logger := newLogger(cfg.LogLevel)

	// A config file supplies values for flags the user did not set
	// explicitly on the command line.
	if *configPath != "" {
		fileCfg, err := config.Load(*configPath)
		if err != nil {
			logger.Fatal().Err(err).Str("path", *configPath).Msg("failed to load config")
		}
		set := map[string]bool{}
		flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
		cfg = mergeConfig(fileCfg, cfg, set)
		logger = newLogger(cfg.LogLevel)
	}

	extra, err := cfg.SplitExtraArgs()
	if err != nil {
		logger.Fatal().Err(err).Msg("bad extra_convert_args")
	}
	workdir, err := fsutil.ExpandHome(cfg.WorkDir)
	if err != nil {
		logger.Fatal().Err(err).Msg("bad work_dir")
	}

	mgr := convert.New(convert.Config{
		Python:           cfg.Python,
		WorkDir:          workdir,
		ExtraConvertArgs: extra,
	}, runner.New())
	mgr.SetPublisher(zerologPublisher{log: logger})

	// Hot-reload: pick up interpreter changes without a restart.
	if *configPath != "" {
		_, err := config.NewWatcher(*configPath, logger, func(newCfg config.Config, err error) {
			if err != nil {
				return
			}
			mgr.SetInterpreter(pyenv.FromConfig(newCfg.Python))
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to start config watcher")
		}
	}

	httpapi.SetLogger(logger)
	httpapi.SetCORSOptions(cfg.CORSEnabled, cfg.CORSOrigins,
		[]string{http.MethodGet, http.MethodPost, http.MethodOptions},
		[]string{"Content-Type"})

	baseCtx, baseCancel := context.WithCancel(context.Background())
	defer baseCancel()
	httpapi.SetBaseContext(baseCtx)

	srv := &http.Server{Addr: cfg.Addr, Handler: httpapi.NewMux(mgr)}

	go func() {
		logger.Info().Str("addr", cfg.Addr).Str("python", mgr.Interpreter().String()).Msg("convd listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	// Graceful shutdown (Ctrl+C / SIGTERM)
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	baseCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown error")
	}
}

// mergeConfig overlays command-line values on the file config; only flags
// the user actually passed take precedence.
func mergeConfig(file, flags config.Config, set map[string]bool) config.Config {
	out := file
	if set["addr"] {
		out.Addr = flags.Addr
	}
	if out.Addr == "" {
		out.Addr = flags.Addr
	}
	if set["python"] {
		out.Python = flags.Python
	}
	if set["work-dir"] {
		out.WorkDir = flags.WorkDir
	}
	if set["extra-convert-args"] {
		out.ExtraConvertArgs = flags.ExtraConvertArgs
	}
	if set["cors-enabled"] {
		out.CORSEnabled = flags.CORSEnabled
	}
	if set["cors-origins"] {
		out.CORSOrigins = flags.CORSOrigins
	}
	if set["log-level"] {
		out.LogLevel = flags.LogLevel
	}
	if out.LogLevel == "" {
		out.LogLevel = flags.LogLevel
	}
	return out
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	var out = zerolog.New(os.Stderr)
	if os.Getenv("CONVD_LOG_PRETTY") == "1" {
		out = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	return out.Level(lvl).With().Timestamp().Logger()
}

// zerologPublisher forwards manager events to the structured log.
type zerologPublisher struct {
	log zerolog.Logger
}

func (p zerologPublisher) Publish(e convert.Event) {
	ev := p.log.Info().Str("op", e.Op)
	for k, v := range e.Fields {
		ev = ev.Interface(k, v)
	}
	ev.Msg(e.Name)
}
