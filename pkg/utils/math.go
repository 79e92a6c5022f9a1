package utils

import "math"

// NormalizeL2 scales x in place to unit length and returns the length it had
// before scaling. Sums are taken in float64. A zero or non-finite length
// leaves x untouched.
func NormalizeL2(x []float32) float32 {
	var sum float64
	for _, v := range x {
		sum += float64(v) * float64(v)
	}
	norm := math.Sqrt(sum)
	if norm == 0 || math.IsInf(norm, 0) || math.IsNaN(norm) {
		return float32(norm)
	}
	inv := 1 / norm
	for i, v := range x {
		x[i] = float32(float64(v) * inv)
	}
	return float32(norm)
}
