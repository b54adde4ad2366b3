package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/tanyalayanan/ragcore/config"
	"github.com/tanyalayanan/ragcore/corpus"
	"github.com/tanyalayanan/ragcore/generation"
	"github.com/tanyalayanan/ragcore/pipeline"
)

// Server exposes the serving core over the HTTP JSON boundary consumed by
// the presentation layer.
type Server struct {
	pipe       *pipeline.Pipeline
	store      *corpus.Store
	orch       *generation.Orchestrator
	cfg        config.ServerConfig
	corpusPath string
	validate   *validator.Validate
	logger     *zap.Logger
}

// New wires the server around the pipeline and its collaborators.
func New(pipe *pipeline.Pipeline, store *corpus.Store, orch *generation.Orchestrator, cfg config.ServerConfig, corpusPath string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		pipe:       pipe,
		store:      store,
		orch:       orch,
		cfg:        cfg,
		corpusPath: corpusPath,
		validate:   validator.New(),
		logger:     logger,
	}
}

// Router builds the chi router with middleware and all routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	if len(s.cfg.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.cfg.AllowedOrigins,
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			MaxAge:         300,
		}))
	}
	timeout := time.Duration(s.cfg.RequestTimeoutMs) * time.Millisecond
	if timeout > 0 {
		r.Use(middleware.Timeout(timeout))
	}

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Route("/v1", func(r chi.Router) {
		r.Post("/query", s.handleQuery)
		r.Get("/usage", s.handleUsage)
		r.Post("/admin/reload", s.handleReload)
	})
	return r
}

// ListenAndServe runs the server on the configured address.
func (s *Server) ListenAndServe() error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("listening", zap.String("addr", s.cfg.Addr))
	return srv.ListenAndServe()
}
