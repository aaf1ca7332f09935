package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/JakeFAU/cornell-notes/internal/asset"
	"github.com/JakeFAU/cornell-notes/internal/config"
	"github.com/JakeFAU/cornell-notes/internal/jobs"
	"github.com/JakeFAU/cornell-notes/internal/metrics"
	"github.com/JakeFAU/cornell-notes/internal/note"
	"github.com/JakeFAU/cornell-notes/internal/policy/ratelimit"
	"github.com/JakeFAU/cornell-notes/internal/render"
)

const maxBodyBytes = 1 << 20

// Notes is the note service the handlers drive.
type Notes interface {
	Ready(ctx context.Context) error
	Capture(ctx context.Context, rawURL string, viewport note.Viewport) (note.Note, error)
	List(ctx context.Context, opts note.ListOptions) ([]note.Note, error)
	Get(ctx context.Context, uid string) (note.Note, error)
	Tags(ctx context.Context) ([]string, error)
	Update(ctx context.Context, n note.Note) (note.Note, error)
	Delete(ctx context.Context, uid string) error
	RemoveTag(ctx context.Context, notes []note.Note, tag string) ([]note.Note, error)
}

// Captures accepts asynchronous capture jobs.
type Captures interface {
	Submit(ctx context.Context, rawURL string, viewport note.Viewport) (jobs.Job, error)
	Job(ctx context.Context, id string) (jobs.Job, error)
}

// Deps are the collaborators the server routes to.
type Deps struct {
	Notes      Notes
	Captures   Captures
	Renditions note.Transformer
	Renderer   *render.Renderer
	// Assets, when set, serves stored screenshots below the CDN upload path.
	Assets http.Handler
}

// Server wires HTTP handlers to the notes service and capture dispatcher.
type Server struct {
	router  chi.Router
	deps    Deps
	limiter *ratelimit.Limiter
	cfg     config.Config
	logger  *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(deps Deps, cfg config.Config, logger *zap.Logger) (*Server, error) {
	if deps.Notes == nil {
		return nil, errors.New("notes service is required")
	}
	if deps.Renditions == nil {
		return nil, errors.New("rendition transformer is required")
	}
	if deps.Renderer == nil {
		deps.Renderer = render.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		deps: deps,
		limiter: ratelimit.New(ratelimit.Config{
			RPS:   cfg.Server.CaptureRatePerSecond,
			Burst: cfg.Server.CaptureBurst,
		}),
		cfg:    cfg,
		logger: logger,
	}

	timeout := cfg.Server.RequestTimeout()
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(metrics.Middleware)
	r.Use(corsHandler(cfg.Server.AllowedOrigins).Handler)
	r.Use(timeoutMiddleware(timeout))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	if deps.Assets != nil && cfg.Storage.CDNNamespace != "" {
		prefix := asset.UploadPath(cfg.Storage.CDNNamespace)
		r.Handle(prefix+"/*", http.StripPrefix(prefix, deps.Assets))
	}

	r.Route("/v1", func(r chi.Router) {
		if cfg.Auth.Enabled {
			r.Use(apiKeyMiddleware(cfg.Auth.APIKey))
		}
		r.Route("/notes", func(r chi.Router) {
			r.Get("/", s.listNotes)
			r.With(s.rateLimitMiddleware("notes.capture")).Post("/", s.captureNote)
			r.Route("/{uid}", func(r chi.Router) {
				r.Get("/", s.getNote)
				r.Put("/", s.updateNote)
				r.Delete("/", s.deleteNote)
				r.Get("/rendition", s.rendition)
				r.Get("/preview", s.preview)
			})
		})
		r.Route("/tags", func(r chi.Router) {
			r.Get("/", s.listTags)
			r.Delete("/{tag}", s.removeTag)
		})
		r.Route("/captures", func(r chi.Router) {
			r.With(s.rateLimitMiddleware("captures.submit")).Post("/", s.submitCapture)
			r.Get("/{job_id}", s.getCapture)
		})
	})

	s.router = r
	return s, nil
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.deps.Notes.Ready(ctx); err != nil {
		s.logger.Warn("readiness check failed", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "not ready")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func corsHandler(origins []string) *cors.Cors {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowedHeaders: []string{"Content-Type", "X-API-Key", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         86400,
	})
}
