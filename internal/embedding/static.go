package embedding

import (
	"context"
	"errors"
	"fmt"

	"github.com/hyperjump/semantica/pkg/utils"
)

// ErrUnknownText is returned by StaticEmbedder for text outside its table
// when no fallback vector is set.
var ErrUnknownText = errors.New("text not in vocabulary")

// StaticEmbedder looks texts up in a fixed table. Vectors are normalized on
// construction.
type StaticEmbedder struct {
	dimensions int
	table      map[string][]float32
	fallback   []float32
}

// NewStaticEmbedder validates that every vector (and the optional fallback)
// has the given dimensions.
func NewStaticEmbedder(dimensions int, table map[string][]float32, fallback []float32) (*StaticEmbedder, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	e := &StaticEmbedder{dimensions: dimensions, table: make(map[string][]float32, len(table))}
	for text, vec := range table {
		if len(vec) != dimensions {
			return nil, fmt.Errorf("vector for %q has %d dimensions, expected %d", text, len(vec), dimensions)
		}
		e.table[text] = normalizedCopy(vec)
	}
	if fallback != nil {
		if len(fallback) != dimensions {
			return nil, fmt.Errorf("fallback vector has %d dimensions, expected %d", len(fallback), dimensions)
		}
		e.fallback = normalizedCopy(fallback)
	}
	return e, nil
}

func normalizedCopy(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	utils.NormalizeL2(out)
	return out
}

// Embed returns a copy of the table vector for text.
func (e *StaticEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, ok := e.table[text]
	if !ok {
		if e.fallback == nil {
			return nil, fmt.Errorf("%w: %q", ErrUnknownText, text)
		}
		vec = e.fallback
	}
	return append([]float32(nil), vec...), nil
}

// EmbedBatch calls Embed for each text.
func (e *StaticEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

// Dimensions returns the embedding dimension.
func (e *StaticEmbedder) Dimensions() int {
	return e.dimensions
}

// Fingerprint identifies a static table by dimension only.
func (e *StaticEmbedder) Fingerprint() string {
	return fmt.Sprintf("static/%d", e.dimensions)
}

// Close is a no-op.
func (e *StaticEmbedder) Close() error {
	return nil
}
