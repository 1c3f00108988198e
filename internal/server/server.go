// Package server provides the HTTP API for the playground.
package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hyperjump/playground/internal/collection"
	"github.com/hyperjump/playground/internal/config"
	"github.com/hyperjump/playground/internal/download"
	"github.com/hyperjump/playground/internal/indexer"
	"github.com/hyperjump/playground/internal/metrics"
	"github.com/hyperjump/playground/internal/provider"
	"github.com/hyperjump/playground/internal/rag"
	"github.com/hyperjump/playground/internal/storage"
	"github.com/hyperjump/playground/internal/watcher"
	"go.uber.org/zap"
)

// ServiceName is reported by the health endpoint.
const ServiceName = "playground"

// InboxService is the subset of the inbox watcher exposed over HTTP.
type InboxService interface {
	Directories() []string
	AddDirectory(path string, syncExisting bool) error
	RemoveDirectory(path string) error
	Stats() watcher.Stats
}

// Dependencies are the components the handlers call into. Inbox may be nil.
type Dependencies struct {
	Collections *collection.Manager
	Indexer     *indexer.Indexer
	RAG         *rag.Orchestrator
	Generation  *provider.Service
	Downloads   *download.Tracker
	Metrics     *metrics.Recorder
	Configs     storage.ConfigRepository
	Inbox       InboxService
}

// Server is the HTTP server for the playground API.
type Server struct {
	deps       Dependencies
	config     *config.Config
	configPath string
	configMu   sync.Mutex
	version    string
	logger     *zap.Logger
	server     *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithVersion sets the version reported by /health.
func WithVersion(v string) Option {
	return func(s *Server) { s.version = v }
}

// WithConfigPath makes inbox directory changes persist to the config file.
func WithConfigPath(path string) Option {
	return func(s *Server) { s.configPath = path }
}

// NewServer creates a server with the given dependencies.
func NewServer(deps Dependencies, cfg *config.Config, logger *zap.Logger, opts ...Option) *Server {
	s := &Server{
		deps:    deps,
		config:  cfg,
		version: "dev",
		logger:  logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// Handler returns the API router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	if s.config != nil && s.config.Server.RequestTimeout > 0 {
		r.Use(middleware.Timeout(s.config.Server.RequestTimeout))
	}
	r.Use(middleware.Compress(5))

	r.Get("/health", s.handleHealth)
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Route("/models", func(r chi.Router) {
			r.Post("/generate", s.handleGenerate)
			r.Post("/compare", s.handleCompare)
			r.Post("/download", s.handleDownload)
			r.Get("/download-status/*", s.handleDownloadStatus)
			r.Delete("/download/*", s.handleDownloadDelete)
			r.Get("/downloaded", s.handleDownloaded)
			r.Get("/available", s.handleAvailable)
			r.Get("/info", s.handleModelInfo)
		})

		r.Route("/rag", func(r chi.Router) {
			r.Post("/upload", s.handleUpload)
			r.Post("/query", s.handleQuery)
			r.Get("/collections", s.handleCollectionsList)
			r.Get("/collections/search", s.handleCollectionsSearch)
			r.Post("/collections/merge", s.handleCollectionsMerge)
			r.Post("/collections/bulk-delete", s.handleCollectionsBulkDelete)
			r.Get("/collections/{name}", s.handleCollectionGet)
			r.Put("/collections/{name}", s.handleCollectionUpdate)
			r.Delete("/collections/{name}", s.handleCollectionDelete)
			r.Get("/collections/{name}/stats", s.handleCollectionStats)
			r.Get("/collections/{name}/export", s.handleCollectionExport)
		})

		r.Route("/configs", func(r chi.Router) {
			r.Post("/save", s.handleConfigSave)
			r.Get("/list", s.handleConfigList)
			r.Get("/search/{tag}", s.handleConfigSearch)
			r.Get("/{id}", s.handleConfigGet)
			r.Put("/{id}", s.handleConfigUpdate)
			r.Delete("/{id}", s.handleConfigDelete)
		})

		r.Route("/dashboard", func(r chi.Router) {
			r.Get("/metrics", s.handleDashboardMetrics)
			r.Get("/models", s.handleDashboardModels)
			r.Get("/analytics", s.handleDashboardAnalytics)
			r.Get("/system", s.handleDashboardSystem)
		})

		r.Route("/watch", func(r chi.Router) {
			r.Get("/", s.handleWatchStatus)
			r.Get("/directories", s.handleWatchDirectoriesList)
			r.Post("/directories", s.handleWatchDirectoriesAdd)
			r.Delete("/directories", s.handleWatchDirectoriesRemove)
		})
	})
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := s.config.Server.Address()
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			s.logger.Debug("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())))
		}()
		next.ServeHTTP(ww, r)
	})
}
