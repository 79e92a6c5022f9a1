// Package repository loads an index from a blob store, lets callers modify
// it and writes it back whole.
package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/semantica/internal/codec"
	"github.com/hyperjump/semantica/internal/embedding"
	"github.com/hyperjump/semantica/internal/index"
	"github.com/hyperjump/semantica/internal/storage"
)

// ErrEmbedderMismatch is matched by errors returned when a stored index was
// built by a different embedder than the one the repository holds.
var ErrEmbedderMismatch = errors.New("embedder mismatch")

// EmbedderMismatchError reports the fingerprint recorded next to a blob and
// the fingerprint of the embedder that tried to load it.
type EmbedderMismatchError struct {
	Name    string
	Stored  string
	Current string
}

func (e *EmbedderMismatchError) Error() string {
	return fmt.Sprintf("index %q was built with embedder %q, current embedder is %q", e.Name, e.Stored, e.Current)
}

func (e *EmbedderMismatchError) Is(target error) bool {
	return target == ErrEmbedderMismatch
}

// Repository binds one named blob to the codec, embedder and options needed
// to turn it into an index. The embedder fingerprint is kept in a sidecar
// blob called name + ".embedder".
type Repository[V any] struct {
	store       storage.Store
	name        string
	codec       codec.Codec[V]
	embedder    embedding.Embedder
	fingerprint string
	opts        []index.Option
	logger      *zap.Logger
}

// Option configures a Repository.
type Option func(*settings)

type settings struct {
	indexOpts []index.Option
	logger    *zap.Logger
}

// WithIndexOptions passes options to every index the repository creates.
func WithIndexOptions(opts ...index.Option) Option {
	return func(s *settings) { s.indexOpts = append(s.indexOpts, opts...) }
}

// WithLogger sets the logger for the repository and its indexes.
func WithLogger(logger *zap.Logger) Option {
	return func(s *settings) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates a repository for the blob called name in store.
func New[V any](store storage.Store, name string, c codec.Codec[V], emb embedding.Embedder, opts ...Option) *Repository[V] {
	s := settings{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&s)
	}
	indexOpts := append([]index.Option{index.WithLogger(s.logger)}, s.indexOpts...)
	return &Repository[V]{
		store:       store,
		name:        name,
		codec:       c,
		embedder:    emb,
		fingerprint: embedding.Fingerprint(emb),
		opts:        indexOpts,
		logger:      s.logger,
	}
}

func (r *Repository[V]) metaName() string {
	return r.name + ".embedder"
}

// checkEmbedder compares the stored fingerprint with the current one. Blobs
// written before fingerprints were recorded have no sidecar and pass.
func (r *Repository[V]) checkEmbedder(ctx context.Context) error {
	if r.fingerprint == "" {
		return nil
	}
	data, err := r.store.Get(ctx, r.metaName())
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load index %q: %w", r.name, err)
	}
	if stored := strings.TrimSpace(string(data)); stored != r.fingerprint {
		return &EmbedderMismatchError{Name: r.name, Stored: stored, Current: r.fingerprint}
	}
	return nil
}

// Name returns the blob name.
func (r *Repository[V]) Name() string {
	return r.name
}

// Load reads the blob and decodes it. A missing blob yields an empty index.
// A blob recorded under another embedder fingerprint is refused with an
// error matching ErrEmbedderMismatch.
func (r *Repository[V]) Load(ctx context.Context) (*index.Index[V], error) {
	data, err := r.store.Get(ctx, r.name)
	if errors.Is(err, storage.ErrNotFound) {
		r.logger.Debug("no stored index, starting empty", zap.String("name", r.name))
		return index.New[V](r.embedder, r.opts...)
	}
	if err != nil {
		return nil, fmt.Errorf("load index %q: %w", r.name, err)
	}
	if err := r.checkEmbedder(ctx); err != nil {
		return nil, err
	}
	x, err := index.Decode[V](data, r.codec, r.embedder, r.opts...)
	if err != nil {
		return nil, fmt.Errorf("load index %q: %w", r.name, err)
	}
	r.logger.Debug("index loaded", zap.String("name", r.name), zap.Int("entries", x.Len()), zap.Int("bytes", len(data)))
	return x, nil
}

// Save encodes the index and replaces the stored blob.
func (r *Repository[V]) Save(ctx context.Context, x *index.Index[V]) error {
	data, err := x.Encode(r.codec)
	if err != nil {
		return fmt.Errorf("save index %q: %w", r.name, err)
	}
	if err := r.store.Put(ctx, r.name, data); err != nil {
		return fmt.Errorf("save index %q: %w", r.name, err)
	}
	if r.fingerprint != "" {
		if err := r.store.Put(ctx, r.metaName(), []byte(r.fingerprint+"\n")); err != nil {
			return fmt.Errorf("save index %q: %w", r.name, err)
		}
	}
	r.logger.Debug("index saved", zap.String("name", r.name), zap.Int("entries", x.Len()), zap.Int("bytes", len(data)))
	return nil
}

// Update loads the index, applies fn and saves the result. Nothing is
// written when fn fails.
func (r *Repository[V]) Update(ctx context.Context, fn func(*index.Index[V]) error) (*index.Index[V], error) {
	x, err := r.Load(ctx)
	if err != nil {
		return nil, err
	}
	if err := fn(x); err != nil {
		return nil, err
	}
	if err := r.Save(ctx, x); err != nil {
		return nil, err
	}
	return x, nil
}

// StoredSize returns the size of the stored blob, 0 when there is none.
func (r *Repository[V]) StoredSize(ctx context.Context) (int64, error) {
	n, err := r.store.Size(ctx, r.name)
	if errors.Is(err, storage.ErrNotFound) {
		return 0, nil
	}
	return n, err
}
