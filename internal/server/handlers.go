package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/semantica/internal/index"
	"github.com/hyperjump/semantica/pkg/utils"
)

// RequestIDHeader carries the request ID in both directions.
const RequestIDHeader = "X-Request-ID"

type ctxKey struct{}

type searchRequest struct {
	Query string `json:"query"`
}

type searchResponse[V any] struct {
	Query      string  `json:"query"`
	Found      bool    `json:"found"`
	Value      *V      `json:"value"`
	Position   int     `json:"position"`
	Similarity float32 `json:"similarity"`
}

type entryRequest[V any] struct {
	Label string `json:"label"`
	Value *V     `json:"value"`
}

type entryResponse[V any] struct {
	Position int `json:"position"`
	Value    V   `json:"value"`
}

func (s *Server[V]) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, id)))
	})
}

func (s *Server[V]) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			zap.String("request_id", requestIDFrom(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

func (s *Server[V]) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server[V]) handleStatus(w http.ResponseWriter, r *http.Request) {
	x := s.current()
	stored, err := s.repo.StoredSize(r.Context())
	if err != nil {
		s.logger.Error("status: stored size failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"index":        s.repo.Name(),
		"entries":      x.Len(),
		"dimensions":   x.Dimension(),
		"stored_bytes": stored,
	})
}

func (s *Server[V]) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("search request",
		zap.String("request_id", requestIDFrom(r.Context())),
		zap.String("query", utils.Truncate(req.Query, 80)),
	)
	m, ok, err := s.current().Search(r.Context(), req.Query)
	if err != nil {
		s.logger.Error("search failed", zap.Error(err))
		s.respondError(w, statusFor(err), err.Error())
		return
	}
	resp := searchResponse[V]{Query: req.Query, Found: ok, Position: -1, Similarity: m.Similarity}
	if ok {
		resp.Value = &m.Value
		resp.Position = m.Position
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server[V]) handleAddEntry(w http.ResponseWriter, r *http.Request) {
	var req entryRequest[V]
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Label == "" || req.Value == nil {
		s.respondError(w, http.StatusBadRequest, "label and value are required")
		return
	}

	// Embedding can be slow; searches must not wait on it.
	vec, err := s.current().Embed(r.Context(), req.Label)
	if err != nil {
		s.logger.Error("add failed", zap.Error(err))
		s.respondError(w, statusFor(err), err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	pos, err := s.idx.AddEmbedding(vec, *req.Value)
	if err != nil {
		s.logger.Error("add failed", zap.Error(err))
		s.respondError(w, statusFor(err), err.Error())
		return
	}
	if err := s.persistLocked(r.Context()); err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.logger.Debug("entry added",
		zap.String("request_id", requestIDFrom(r.Context())),
		zap.String("label", utils.Truncate(req.Label, 80)),
		zap.Int("position", pos),
	)
	s.respondJSON(w, http.StatusCreated, map[string]int{"position": pos})
}

func (s *Server[V]) handleGetEntry(w http.ResponseWriter, r *http.Request) {
	pos, ok := s.position(w, r)
	if !ok {
		return
	}
	v, err := s.current().Value(pos)
	if err != nil {
		s.respondError(w, statusFor(err), err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, entryResponse[V]{Position: pos, Value: v})
}

func (s *Server[V]) handleRemoveEntry(w http.ResponseWriter, r *http.Request) {
	pos, ok := s.position(w, r)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.idx.Remove(pos); err != nil {
		s.respondError(w, statusFor(err), err.Error())
		return
	}
	if err := s.persistLocked(r.Context()); err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"status": "removed", "remaining": s.idx.Len()})
}

// persistLocked saves the index. If saving fails the stored copy is
// reloaded so memory does not run ahead of storage.
func (s *Server[V]) persistLocked(ctx context.Context) error {
	err := s.repo.Save(ctx, s.idx)
	if err == nil {
		return nil
	}
	s.logger.Error("save failed", zap.Error(err))
	if rerr := s.reloadLocked(ctx); rerr != nil {
		s.logger.Error("reload after failed save", zap.Error(rerr))
	}
	return err
}

func (s *Server[V]) position(w http.ResponseWriter, r *http.Request) (int, bool) {
	pos, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "id must be an integer position")
		return 0, false
	}
	return pos, true
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, index.ErrIndexOutOfRange):
		return http.StatusNotFound
	case errors.Is(err, index.ErrEncode):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func (s *Server[V]) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server[V]) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
