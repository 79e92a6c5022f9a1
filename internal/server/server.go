// Package server exposes one index over HTTP.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hyperjump/semantica/internal/config"
	"github.com/hyperjump/semantica/internal/index"
	"github.com/hyperjump/semantica/internal/repository"
)

// Server serves lookups and mutations for the index held by a repository.
// Every mutation is written back before the response is sent.
type Server[V any] struct {
	repo   *repository.Repository[V]
	config *config.ServerConfig
	logger *zap.Logger
	server *http.Server

	// mu guards idx. Mutations hold it for the whole modify-and-save, but
	// labels are embedded before it is taken.
	mu  sync.RWMutex
	idx *index.Index[V]
}

// NewServer creates a server around an already loaded index.
func NewServer[V any](repo *repository.Repository[V], idx *index.Index[V], cfg *config.ServerConfig, logger *zap.Logger) *Server[V] {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server[V]{repo: repo, idx: idx, config: cfg, logger: logger}
}

// Handler returns the routed HTTP handler.
func (s *Server[V]) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(s.requestID)
	r.Use(s.accessLog)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))

	r.Get("/health", s.handleHealth)
	r.Get("/api/v1/status", s.handleStatus)
	r.Post("/api/v1/search", s.handleSearch)
	r.Post("/api/v1/entries", s.handleAddEntry)
	r.Get("/api/v1/entries/{id}", s.handleGetEntry)
	r.Delete("/api/v1/entries/{id}", s.handleRemoveEntry)
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server[V]) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr), zap.String("index", s.repo.Name()))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server[V]) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// Reload replaces the served index with the stored one. It is called when
// another process rewrites the index.
func (s *Server[V]) Reload(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reloadLocked(ctx)
}

func (s *Server[V]) reloadLocked(ctx context.Context) error {
	x, err := s.repo.Load(ctx)
	if err != nil {
		return err
	}
	s.idx = x
	s.logger.Info("index reloaded", zap.Int("entries", x.Len()))
	return nil
}

func (s *Server[V]) current() *index.Index[V] {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.idx
}
