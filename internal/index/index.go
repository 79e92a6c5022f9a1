// Package index implements a projection-sorted similarity index: entries are
// ordered by the dot product of their embedding with a fixed basis vector,
// and lookups binary-search that order for a seed position before scanning
// outward with the true similarity.
package index

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/hyperjump/semantica/internal/embedding"
	"github.com/hyperjump/semantica/internal/vector"
)

// Projection is one record of the projection order.
type Projection struct {
	Entry int     // position in the entry store
	Value float32 // dot product of the entry's embedding with the basis
}

type entry[V any] struct {
	embedding []float32
	value     V
}

// Index maps label embeddings to values of type V. Readers may run in
// parallel; mutations are exclusive.
type Index[V any] struct {
	embedder embedding.Embedder
	opts     options
	logger   *zap.Logger

	mu      sync.RWMutex
	entries []entry[V]
	order   []Projection
}

// New creates an empty index. The dimension comes from the embedder unless
// WithDimension is given; emb may be nil for indexes that only take raw
// embeddings.
func New[V any](emb embedding.Embedder, opts ...Option) (*Index[V], error) {
	embedderDim := 0
	if emb != nil {
		embedderDim = emb.Dimensions()
	}
	o, err := buildOptions(embedderDim, opts)
	if err != nil {
		return nil, err
	}
	return &Index[V]{embedder: emb, opts: o, logger: o.logger}, nil
}

// Dimension returns D.
func (x *Index[V]) Dimension() int {
	return x.opts.dimension
}

// Len returns the number of entries.
func (x *Index[V]) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.entries)
}

// Value returns the value stored at position i.
func (x *Index[V]) Value(i int) (V, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	if i < 0 || i >= len(x.entries) {
		var zero V
		return zero, outOfRange(i, len(x.entries))
	}
	return x.entries[i].value, nil
}

// Embedding returns a copy of the embedding stored at position i.
func (x *Index[V]) Embedding(i int) ([]float32, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	if i < 0 || i >= len(x.entries) {
		return nil, outOfRange(i, len(x.entries))
	}
	return append([]float32(nil), x.entries[i].embedding...), nil
}

// Order returns a copy of the projection order.
func (x *Index[V]) Order() []Projection {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return append([]Projection(nil), x.order...)
}

// Add embeds label and stores value under the result. It returns the new
// entry's position.
func (x *Index[V]) Add(ctx context.Context, label string, value V) (int, error) {
	vec, err := x.embed(ctx, label)
	if err != nil {
		return 0, err
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	pos := x.insert(vec, value)
	x.logger.Debug("entry added", zap.String("label", label), zap.Int("position", pos))
	return pos, nil
}

// AddBatch embeds every label before inserting anything, so either all
// pairs are added or none are. It returns the new positions.
func (x *Index[V]) AddBatch(ctx context.Context, labels []string, values []V) ([]int, error) {
	if len(labels) != len(values) {
		return nil, fmt.Errorf("labels and values length mismatch: %d != %d", len(labels), len(values))
	}
	if len(labels) == 0 {
		return nil, nil
	}
	if x.embedder == nil {
		return nil, &EncodeError{Text: labels[0], Err: errNoEmbedder}
	}
	vecs, err := x.embedder.EmbedBatch(ctx, labels)
	if err != nil {
		return nil, &EncodeError{Text: labels[0], Err: err}
	}
	if len(vecs) != len(labels) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d labels", len(vecs), len(labels))
	}
	for _, vec := range vecs {
		if err := x.checkDimension(vec); err != nil {
			return nil, err
		}
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	positions := make([]int, len(vecs))
	for i, vec := range vecs {
		positions[i] = x.insert(vec, values[i])
	}
	x.logger.Debug("entries added", zap.Int("count", len(positions)))
	return positions, nil
}

// AddEmbedding stores value under a precomputed embedding.
func (x *Index[V]) AddEmbedding(vec []float32, value V) (int, error) {
	if err := x.checkDimension(vec); err != nil {
		return 0, err
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.insert(vec, value), nil
}

// Remove deletes the entry at position i. Entries after i shift down by one.
func (x *Index[V]) Remove(i int) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if i < 0 || i >= len(x.entries) {
		return outOfRange(i, len(x.entries))
	}

	x.entries = slices.Delete(x.entries, i, i+1)
	kept := x.order[:0]
	for _, p := range x.order {
		switch {
		case p.Entry == i:
			continue
		case p.Entry > i:
			p.Entry--
		}
		kept = append(kept, p)
	}
	x.order = kept
	x.logger.Debug("entry removed", zap.Int("position", i), zap.Int("remaining", len(x.entries)))
	return nil
}

// insert appends the entry and places its projection after every record
// with an equal or smaller value. Callers hold the write lock and have
// checked the dimension.
func (x *Index[V]) insert(vec []float32, value V) int {
	p, _ := vector.Dot(vec, x.opts.basis)
	pos := sort.Search(len(x.order), func(k int) bool { return x.order[k].Value > p })

	n := len(x.entries)
	x.entries = append(x.entries, entry[V]{embedding: append([]float32(nil), vec...), value: value})
	x.order = append(x.order, Projection{})
	copy(x.order[pos+1:], x.order[pos:])
	x.order[pos] = Projection{Entry: n, Value: p}
	return n
}

// quickSearch returns the first position in the projection order whose
// value is >= target, or len(order) when there is none. Orders with fewer
// than two records always yield 0.
func (x *Index[V]) quickSearch(target float32) int {
	if len(x.order) <= 1 {
		return 0
	}
	return sort.Search(len(x.order), func(k int) bool { return x.order[k].Value >= target })
}

// Embed encodes text with the index's embedder and checks its dimension. It
// takes no lock, so callers can embed first and add with AddEmbedding later.
func (x *Index[V]) Embed(ctx context.Context, text string) ([]float32, error) {
	return x.embed(ctx, text)
}

func (x *Index[V]) embed(ctx context.Context, text string) ([]float32, error) {
	if x.embedder == nil {
		return nil, &EncodeError{Text: text, Err: errNoEmbedder}
	}
	vec, err := x.embedder.Embed(ctx, text)
	if err != nil {
		return nil, &EncodeError{Text: text, Err: err}
	}
	if err := x.checkDimension(vec); err != nil {
		return nil, err
	}
	return vec, nil
}

func (x *Index[V]) checkDimension(vec []float32) error {
	if len(vec) != x.opts.dimension {
		return fmt.Errorf("embedding dimension: %w", &vector.SizeMismatchError{Left: len(vec), Right: x.opts.dimension})
	}
	return nil
}
