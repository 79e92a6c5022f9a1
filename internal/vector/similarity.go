// Package vector provides the numeric helpers behind the similarity index:
// a generic dot product, the projection basis and float32 block encoding.
package vector

import (
	"errors"
	"fmt"
	"math"
)

// ErrSizeMismatch is matched by errors returned when two vectors that must
// share a length do not.
var ErrSizeMismatch = errors.New("vector size mismatch")

// SizeMismatchError reports the two lengths involved in a failed operation.
type SizeMismatchError struct {
	Left  int
	Right int
}

func (e *SizeMismatchError) Error() string {
	return fmt.Sprintf("vector size mismatch: %d != %d", e.Left, e.Right)
}

// Unwrap lets errors.Is match ErrSizeMismatch.
func (e *SizeMismatchError) Unwrap() error { return ErrSizeMismatch }

// Number is the set of element types Dot accepts.
type Number interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~float32 | ~float64
}

// Dot returns the sum of pairwise products of a and b.
func Dot[T Number](a, b []T) (T, error) {
	var sum T
	if len(a) != len(b) {
		return sum, &SizeMismatchError{Left: len(a), Right: len(b)}
	}
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum, nil
}

// LinearBasis returns the projection vector [0, 1, ..., d-1].
func LinearBasis(d int) []float32 {
	if d <= 0 {
		return nil
	}
	basis := make([]float32, d)
	for i := range basis {
		basis[i] = float32(i)
	}
	return basis
}

// L2Norm returns the L2 norm of a vector.
func L2Norm(x []float32) float64 {
	var sum float64
	for _, v := range x {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum)
}
