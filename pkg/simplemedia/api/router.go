package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/tendant/simple-media/pkg/simplemedia"
	"github.com/tendant/simple-media/pkg/simplemedia/pathresolver"
)

// RouterConfig wires the HTTP surface
type RouterConfig struct {
	Service        simplemedia.Service
	Resolver       *pathresolver.Resolver
	APIKey         string
	MaxUploadBytes int64
	MaxBatchFiles  int
	Logger         *slog.Logger
	RequestLogger  Middleware   // optional, e.g. httplog.RequestLogger
	Metrics        http.Handler // optional, served at /metrics
	CORSOrigins    []string     // defaults to "*"
}

// NewRouter builds the complete router: public health, metrics and static
// routes, and the authenticated media routes.
func NewRouter(cfg RouterConfig) (http.Handler, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	auth, err := APIKeyMiddleware(cfg.APIKey, logger)
	if err != nil {
		return nil, err
	}
	media := NewMediaHandler(cfg.Service, logger)

	r := chi.NewRouter()
	r.Use(RequestIDMiddleware)
	r.Use(middleware.RealIP)
	if cfg.RequestLogger != nil {
		r.Use(cfg.RequestLogger)
	}
	r.Use(RecoveryMiddleware(logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "HEAD", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", APIKeyHeader, middleware.RequestIDHeader},
		ExposedHeaders: []string{middleware.RequestIDHeader},
		MaxAge:         300,
	}))

	r.Get("/health", media.Health)
	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics)
	}
	if cfg.Resolver != nil && cfg.Resolver.Mount() != "" {
		r.Mount(cfg.Resolver.Mount(), NewStaticHandler(cfg.Resolver).Routes())
	}

	r.Group(func(r chi.Router) {
		r.Use(SecurityHeadersMiddleware)
		r.Use(auth)
		media.Register(r, Limits{MaxUploadBytes: cfg.MaxUploadBytes, MaxBatchFiles: cfg.MaxBatchFiles})
	})

	return r, nil
}
