// Package api serves the most recently published index over HTTP: the
// sidebar, per-document navigation entries and the build history.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	lru "github.com/hashicorp/golang-lru/v2"

	"git.home.luguber.info/inful/navindex/internal/build"
	"git.home.luguber.info/inful/navindex/internal/config"
	ferrors "git.home.luguber.info/inful/navindex/internal/foundation/errors"
	"git.home.luguber.info/inful/navindex/internal/index"
	"git.home.luguber.info/inful/navindex/internal/logfields"
	"git.home.luguber.info/inful/navindex/internal/metrics"
	"git.home.luguber.info/inful/navindex/internal/store"
)

// Rebuilder runs a build on demand.
type Rebuilder interface {
	Run(ctx context.Context, trigger build.Trigger) (*build.Result, error)
}

// Server represents the API server.
type Server struct {
	cfg        config.ServerConfig
	router     *chi.Mux
	routerOnce sync.Once
	server     *http.Server

	current   atomic.Pointer[index.Index]
	cache     *lru.Cache[string, []byte] // encoded responses keyed by build id and resource
	history   store.Store
	rebuilder Rebuilder
	promHTTP  http.Handler

	errors   *ferrors.HTTPErrorAdapter
	recorder metrics.Recorder
	logger   *slog.Logger
}

// NewServer creates a server for cfg. Routes are mounted on first use of
// Handler or Start so optional collaborators can be attached first.
func NewServer(cfg config.ServerConfig, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	size := cfg.CacheSize
	if size <= 0 {
		size = config.DefaultCacheSize
	}
	cache, err := lru.New[string, []byte](size)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "create response cache").
			WithContext("cache_size", size).
			Build()
	}
	s := &Server{
		cfg:      cfg,
		cache:    cache,
		errors:   ferrors.NewHTTPErrorAdapter(logger),
		recorder: metrics.NoopRecorder{},
		logger:   logger.With(slog.String("component", "api")),
	}
	s.server = &http.Server{
		Addr:              cfg.Addr,
		Handler:           http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { s.Handler().ServeHTTP(w, r) }),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s, nil
}

// WithStore enables the build history endpoints.
func (s *Server) WithStore(st store.Store) *Server { s.history = st; return s }

// WithRebuilder enables POST /api/builds.
func (s *Server) WithRebuilder(r Rebuilder) *Server { s.rebuilder = r; return s }

// WithMetricsHandler serves h on the configured metrics path.
func (s *Server) WithMetricsHandler(h http.Handler) *Server { s.promHTTP = h; return s }

func (s *Server) WithRecorder(r metrics.Recorder) *Server {
	if r != nil {
		s.recorder = r
	}
	return s
}

// SetIndex swaps the served index. Cached responses of the previous index are dropped.
func (s *Server) SetIndex(idx *index.Index) {
	if idx == nil {
		return
	}
	prev := s.current.Swap(idx)
	if prev == nil || prev.BuildID() != idx.BuildID() {
		s.cache.Purge()
	}
	s.logger.Debug("Serving index", logfields.BuildID(idx.BuildID()), logfields.Count(idx.Len()))
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	s.routerOnce.Do(func() {
		s.router = chi.NewRouter()
		s.setupRoutes()
	})
	return s.router
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger(s.logger))
	s.router.Use(recoverer(s.logger, s.errors))
	if d := s.cfg.TimeoutDuration(); d > 0 {
		s.router.Use(middleware.Timeout(d))
	}

	s.router.Get("/health", s.handleHealth)
	s.router.Get("/ready", s.handleReady)
	if s.promHTTP != nil {
		s.router.Method(http.MethodGet, s.cfg.MetricsPath, s.promHTTP)
	}

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/sidebar", s.handleSidebar)
		r.Get("/categories", s.handleCategories)
		r.Get("/docs", s.handleIndex)
		r.Get("/docs/*", s.handleDoc)
		r.Get("/builds", s.handleListBuilds)
		r.Get("/builds/{id}", s.handleGetBuild)
		r.Post("/builds", s.handleCreateBuild)
	})
}

// Start listens on the configured address until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("API server listening", slog.String("addr", s.cfg.Addr))
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return ferrors.WrapError(err, ferrors.CategoryRuntime, "api server failed").
			WithContext("addr", s.cfg.Addr).
			Build()
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
