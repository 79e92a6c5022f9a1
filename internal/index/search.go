package index

import (
	"context"
	"math"

	"go.uber.org/zap"

	"github.com/hyperjump/semantica/internal/vector"
)

// Match is the result of a successful search.
type Match[V any] struct {
	Position   int // entry position, usable with Remove and Value
	Value      V
	Similarity float32
}

// Search embeds query and returns the most similar entry found by the ring
// scan. ok is false when the index is empty or the best similarity is below
// the match threshold.
func (x *Index[V]) Search(ctx context.Context, query string) (m Match[V], ok bool, err error) {
	vec, err := x.embed(ctx, query)
	if err != nil {
		return m, false, err
	}
	x.mu.RLock()
	defer x.mu.RUnlock()
	m, ok = x.search(vec)
	x.logger.Debug("search",
		zap.String("query", query),
		zap.Bool("matched", ok),
		zap.Float32("similarity", m.Similarity),
	)
	return m, ok, nil
}

// SearchEmbedding is Search for a precomputed query vector.
func (x *Index[V]) SearchEmbedding(vec []float32) (Match[V], bool, error) {
	if err := x.checkDimension(vec); err != nil {
		return Match[V]{}, false, err
	}
	x.mu.RLock()
	defer x.mu.RUnlock()
	m, ok := x.search(vec)
	return m, ok, nil
}

// search seeds at the lower bound of the query's projection and widens a
// ring around it one position per round. The scan stops when the ring falls
// off both ends or when the ring's best similarity trails the overall best
// by at least the tolerance.
func (x *Index[V]) search(q []float32) (Match[V], bool) {
	n := len(x.order)
	if n == 0 {
		return Match[V]{Position: -1}, false
	}
	p, _ := vector.Dot(q, x.opts.basis)
	seed := min(x.quickSearch(p), n-1)

	best := x.similarity(q, seed)
	bestPos := seed
	for r := 0; ; r++ {
		roundBest := float32(math.Inf(-1))
		roundPos := -1
		for _, k := range [2]int{seed - r, seed + r} {
			if k < 0 || k >= n {
				continue
			}
			if s := x.similarity(q, k); s > roundBest {
				roundBest, roundPos = s, k
			}
		}
		if roundPos < 0 {
			break
		}
		if roundBest > best {
			best, bestPos = roundBest, roundPos
		}
		if roundBest+x.opts.tolerance <= best {
			break
		}
	}

	if best < x.opts.minSimilarity {
		return Match[V]{Similarity: best, Position: -1}, false
	}
	e := x.order[bestPos].Entry
	return Match[V]{Position: e, Value: x.entries[e].value, Similarity: best}, true
}

// similarity scores the entry at position k of the projection order.
func (x *Index[V]) similarity(q []float32, k int) float32 {
	s, _ := vector.Dot(q, x.entries[x.order[k].Entry].embedding)
	return s
}

// SearchExact scores every entry and returns the true best match under the
// same threshold as Search. It is linear in the number of entries and is
// meant for measuring how often the ring scan misses.
func (x *Index[V]) SearchExact(vec []float32) (Match[V], bool, error) {
	if err := x.checkDimension(vec); err != nil {
		return Match[V]{}, false, err
	}
	x.mu.RLock()
	defer x.mu.RUnlock()
	if len(x.entries) == 0 {
		return Match[V]{Position: -1}, false, nil
	}
	best, bestEntry := float32(math.Inf(-1)), -1
	for i, e := range x.entries {
		s, _ := vector.Dot(vec, e.embedding)
		if s > best {
			best, bestEntry = s, i
		}
	}
	if best < x.opts.minSimilarity {
		return Match[V]{Similarity: best, Position: -1}, false, nil
	}
	return Match[V]{Position: bestEntry, Value: x.entries[bestEntry].value, Similarity: best}, true, nil
}
