package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/mentingo/mentingo-slide-service/internal/domain/entity"
	"github.com/mentingo/mentingo-slide-service/internal/domain/port"
	"go.uber.org/zap"
)

// Server exposes the extraction API: starting runs, polling and cancelling
// them, and downloading the encoded slide artifacts.
type Server struct {
	repo     port.RunRepository
	tracker  port.TaskTracker
	jobs     port.JobPublisher
	storage  port.MediaStorage
	cache    port.ArtifactCache
	logger   *zap.Logger
	defaults entity.ExtractionSettings
	maxRetry int
}

type ServerConfig struct {
	Defaults   entity.ExtractionSettings
	MaxRetries int
}

func NewServer(
	repo port.RunRepository,
	tracker port.TaskTracker,
	jobs port.JobPublisher,
	storage port.MediaStorage,
	cache port.ArtifactCache,
	logger *zap.Logger,
	cfg ServerConfig,
) *Server {
	return &Server{
		repo:     repo,
		tracker:  tracker,
		jobs:     jobs,
		storage:  storage,
		cache:    cache,
		logger:   logger,
		defaults: cfg.Defaults,
		maxRetry: cfg.MaxRetries,
	}
}

func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.logRequests)

	v1 := r.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/extractions", s.handleStartExtraction).Methods(http.MethodPost)
	v1.HandleFunc("/extractions/{id}", s.handleGetExtraction).Methods(http.MethodGet)
	v1.HandleFunc("/extractions/{id}", s.handleCancelExtraction).Methods(http.MethodDelete)
	v1.HandleFunc("/extractions/{id}/download", s.handleDownloadArtifact).Methods(http.MethodGet)
	v1.HandleFunc("/slides/download", s.handleDownloadSlides).Methods(http.MethodPost)

	return r
}

// Start runs the API server until the context is cancelled.
func (s *Server) Start(ctx context.Context, port int) *http.Server {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      s.Router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute,
	}

	go func() {
		s.logger.Info("api server starting", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("api server error", zap.Error(err))
		}
	}()

	return srv
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("elapsed", time.Since(start)),
		)
	})
}
