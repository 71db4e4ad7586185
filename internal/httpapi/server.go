package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"convd/internal/convert"
	"convd/internal/pyenv"
	"convd/pkg/types"
)

// Service defines the methods required by the HTTP API layer.
type Service interface {
	Status() convert.Snapshot
	Transcript() *convert.Transcript
	CheckEnvironment(ctx context.Context, python string) (pyenv.Status, string)
	Provision(ctx context.Context, base pyenv.Interpreter, dir string) (string, error)
	Convert(ctx context.Context, req convert.Request) (convert.Outcome, error)
}

// serverBaseCtx is a process-level context that can be canceled on shutdown.
// Defaults to Background if not set.
var serverBaseCtx = context.Background()

// SetBaseContext sets the process-level base context used by handlers.
func SetBaseContext(ctx context.Context) {
	if ctx == nil {
		serverBaseCtx = context.Background()
		return
	}
	serverBaseCtx = ctx
}

// joinContexts returns a context that is canceled when either a or b is done.
// The returned cancel func must be called to release the goroutine.
func joinContexts(a, b context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		select {
		case <-a.Done():
			cancel()
		case <-b.Done():
			cancel()
		}
	}()
	return ctx, cancel
}

func NewMux(svc Service) http.Handler {
	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: corsAllowedMethods,
			AllowedHeaders: corsAllowedHeaders,
		}))
	}
	r.Use(MetricsMiddleware)
	r.Use(RequestLogger)

	// GetStatus godoc
	// @Summary Daemon status
	// @Produce json
	// @Success 200 {object} types.StatusResponse
	// @Router /status [get]
	r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, statusResponse(svc.Status()))
	})

	// GetLog godoc
	// @Summary Transcript of the current or last operation
	// @Produce json
	// @Success 200 {object} types.LogResponse
	// @Router /log [get]
	r.Get("/log", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, types.LogResponse{Lines: svc.Transcript().Lines()})
	})

	r.Get("/events", func(w http.ResponseWriter, r *http.Request) {
		serveEvents(w, r, svc)
	})

	// Check godoc
	// @Summary Validate the interpreter environment
	// @Accept json
	// @Produce json
	// @Param request body types.CheckRequest true "check options"
	// @Success 200 {object} types.StatusResponse
	// @Router /check [post]
	r.Post("/check", func(w http.ResponseWriter, r *http.Request) {
		var req types.CheckRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		joined, cancel := joinContexts(serverBaseCtx, r.Context())
		defer cancel()
		svc.CheckEnvironment(joined, req.Python)
		writeJSON(w, http.StatusOK, statusResponse(svc.Status()))
	})

	// Setup godoc
	// @Summary Provision a venv with the required packages
	// @Accept json
	// @Produce json
	// @Param request body types.SetupRequest true "setup options"
	// @Success 200 {object} types.SetupResponse
	// @Failure 400 {object} types.ErrorResponse
	// @Failure 409 {object} types.ErrorResponse
	// @Router /setup [post]
	r.Post("/setup", func(w http.ResponseWriter, r *http.Request) {
		var req types.SetupRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		joined, cancel := joinContexts(serverBaseCtx, r.Context())
		defer cancel()
		python, err := svc.Provision(joined, pyenv.FromConfig(req.Python), req.Dir)
		if err != nil {
			writeJSONError(w, statusForError(err), err.Error())
			return
		}
		writeJSON(w, http.StatusOK, types.SetupResponse{Python: python})
	})

	// Convert godoc
	// @Summary Run a conversion
	// @Accept json
	// @Produce json
	// @Param request body types.ConvertRequest true "conversion request"
	// @Success 200 {object} types.ConvertResponse
	// @Failure 400 {object} types.ErrorResponse
	// @Failure 409 {object} types.ErrorResponse
	// @Router /convert [post]
	r.Post("/convert", func(w http.ResponseWriter, r *http.Request) {
		handleConvert(w, r, svc)
	})

	// GetInstallCommand godoc
	// @Summary Copyable install command for the required packages
	// @Produce json
	// @Success 200 {object} types.InstallCommandResponse
	// @Router /install-command [get]
	r.Get("/install-command", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, types.InstallCommandResponse{Command: pyenv.InstallCommand})
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	MountMetrics(r)
	MountSwagger(r)
	return r
}

func handleConvert(w http.ResponseWriter, r *http.Request, svc Service) {
	var req types.ConvertRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	quant, err := convert.ParseQuantization(req.Quantization)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	creq := convert.Request{
		SourceRepo:   strings.TrimSpace(req.HFPath),
		DestRepo:     strings.TrimSpace(req.UploadRepo),
		Quantization: quant,
		Upload:       req.Upload,
	}

	stream := r.URL.Query().Get("stream") == "true"
	joined, cancel := joinContexts(serverBaseCtx, r.Context())
	defer cancel()

	if !stream {
		out, err := svc.Convert(joined, creq)
		if err != nil {
			writeJSONError(w, statusForError(err), err.Error())
			return
		}
		writeJSON(w, http.StatusOK, types.ConvertResponse{OK: out.OK, ExitCode: out.ExitCode})
		return
	}

	// Streaming mode: subscribe to the transcript before starting so no
	// chunk is missed, relay lines as NDJSON while the conversion runs.
	ch, unsubscribe := svc.Transcript().Subscribe()
	defer unsubscribe()

	type result struct {
		out convert.Outcome
		err error
	}
	done := make(chan result, 1)
	go func() {
		out, err := svc.Convert(joined, creq)
		done <- result{out: out, err: err}
	}()

	w.Header().Set("Content-Type", "application/x-ndjson")
	flush := func() {}
	if f, ok := w.(http.Flusher); ok {
		flush = f.Flush
	}
	enc := json.NewEncoder(w)
	for {
		select {
		case line := <-ch:
			_ = enc.Encode(map[string]string{"line": line})
			flush()
		case res := <-done:
			// drain whatever arrived before completion
			for {
				select {
				case line := <-ch:
					_ = enc.Encode(map[string]string{"line": line})
				default:
					if res.err != nil {
						_ = enc.Encode(map[string]string{"error": res.err.Error()})
					} else {
						_ = enc.Encode(map[string]any{"done": true, "ok": res.out.OK, "exit_code": res.out.ExitCode})
					}
					flush()
					return
				}
			}
		case <-joined.Done():
			return
		}
	}
}

// serveEvents streams transcript appends as server-sent events.
func serveEvents(w http.ResponseWriter, r *http.Request, svc Service) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSONError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	ch, unsubscribe := svc.Transcript().Subscribe()
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	flusher.Flush()

	joined, cancel := joinContexts(serverBaseCtx, r.Context())
	defer cancel()
	for {
		select {
		case line := <-ch:
			for _, l := range strings.Split(line, "\n") {
				_, _ = w.Write([]byte("data: " + l + "\n"))
			}
			_, _ = w.Write([]byte("\n"))
			flusher.Flush()
		case <-joined.Done():
			return
		}
	}
}

func statusResponse(s convert.Snapshot) types.StatusResponse {
	return types.StatusResponse{
		Running:           s.Running,
		SettingUp:         s.SettingUp,
		Environment:       string(s.Env),
		EnvironmentDetail: s.EnvDetail,
		Python:            s.Python,
	}
}

// decodeJSON enforces content type and body limits; writes the error itself.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
