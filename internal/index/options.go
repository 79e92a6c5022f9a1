package index

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/semantica/internal/vector"
)

const (
	// DefaultTolerance ends the ring scan once the latest ring trails the
	// best similarity by at least this much.
	DefaultTolerance float32 = 0.1
	// DefaultMinSimilarity is the lowest similarity reported as a match.
	DefaultMinSimilarity float32 = 0.5
)

type options struct {
	dimension     int
	basis         []float32
	tolerance     float32
	minSimilarity float32
	logger        *zap.Logger
}

// Option configures an Index.
type Option func(*options)

// WithDimension fixes the embedding dimension. It is required when no
// embedder is given and must agree with the embedder otherwise.
func WithDimension(d int) Option {
	return func(o *options) { o.dimension = d }
}

// WithBasis replaces the default projection vector [0, 1, ..., D-1].
func WithBasis(basis []float32) Option {
	return func(o *options) { o.basis = append([]float32(nil), basis...) }
}

// WithTolerance sets the early-exit tolerance of the ring scan.
func WithTolerance(t float32) Option {
	return func(o *options) { o.tolerance = t }
}

// WithMinSimilarity sets the match threshold.
func WithMinSimilarity(s float32) Option {
	return func(o *options) { o.minSimilarity = s }
}

// WithLogger sets the logger for the index.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func buildOptions(embedderDim int, opts []Option) (options, error) {
	o := options{
		tolerance:     DefaultTolerance,
		minSimilarity: DefaultMinSimilarity,
		logger:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	switch {
	case o.dimension == 0:
		o.dimension = embedderDim
	case embedderDim != 0 && o.dimension != embedderDim:
		return o, fmt.Errorf("dimension %d does not match embedder dimension %d", o.dimension, embedderDim)
	}
	if o.dimension <= 0 {
		return o, fmt.Errorf("dimensions must be positive")
	}
	if o.basis == nil {
		o.basis = vector.LinearBasis(o.dimension)
	} else if len(o.basis) != o.dimension {
		return o, fmt.Errorf("basis has %d components, expected %d", len(o.basis), o.dimension)
	}
	if o.tolerance < 0 {
		return o, fmt.Errorf("tolerance must not be negative")
	}
	return o, nil
}
