// Package embedding turns label text into fixed-length vectors for the
// similarity index.
package embedding

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Embedder produces vector embeddings for text. Every vector returned by one
// Embedder has exactly Dimensions() components.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}

// EmbedFunc embeds a single text.
type EmbedFunc func(ctx context.Context, text string) ([]float32, error)

// EmbedConcurrently calls embed for every text with at most limit calls in
// flight (unbounded when limit <= 0). Results keep the order of texts; the
// first failure cancels the rest.
func EmbedConcurrently(ctx context.Context, texts []string, limit int, embed EmbedFunc) ([][]float32, error) {
	out := make([][]float32, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, text := range texts {
		i, text := i, text
		g.Go(func() error {
			vec, err := embed(gctx, text)
			if err != nil {
				return fmt.Errorf("embed %q: %w", text, err)
			}
			out[i] = vec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
