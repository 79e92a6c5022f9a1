package embedding

import (
	"context"
	"fmt"
	"math"
	"runtime"

	"github.com/hyperjump/semantica/pkg/utils"
)

// DefaultDimensions matches the all-MiniLM-L6-v2 sentence model.
const DefaultDimensions = 384

// HashEmbedder derives deterministic vectors from word hashes. Texts sharing
// words get similar vectors; it knows nothing about meaning. Used when no
// ONNX model is available.
type HashEmbedder struct {
	dimensions int
	tokenizer  *SimpleTokenizer
}

// NewHashEmbedder returns a hash embedder of the given dimensions (384 when <= 0).
func NewHashEmbedder(dimensions int) *HashEmbedder {
	if dimensions <= 0 {
		dimensions = DefaultDimensions
	}
	return &HashEmbedder{dimensions: dimensions, tokenizer: &SimpleTokenizer{}}
}

// Embed sums one sine wave per word and normalizes the result.
func (e *HashEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	emb := make([]float32, e.dimensions)
	words := e.tokenizer.Words(text)
	if len(words) == 0 {
		words = []string{text}
	}
	for _, w := range words {
		h := float64(HashString(w) % 100003)
		for i := range emb {
			emb[i] += float32(math.Sin(h*float64(i+1))*0.1 + 0.01)
		}
	}
	utils.NormalizeL2(emb)
	return emb, nil
}

// EmbedBatch embeds texts in parallel.
func (e *HashEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return EmbedConcurrently(ctx, texts, runtime.GOMAXPROCS(0), e.Embed)
}

// Dimensions returns the embedding dimension.
func (e *HashEmbedder) Dimensions() int {
	return e.dimensions
}

// Fingerprint identifies the hashing scheme and dimension.
func (e *HashEmbedder) Fingerprint() string {
	return fmt.Sprintf("hash/v1/%d", e.dimensions)
}

// Close is a no-op.
func (e *HashEmbedder) Close() error {
	return nil
}
