package vector

import (
	"errors"
	"fmt"
	"math"
)

// ErrDimensionMismatch is returned when two vectors of different length are combined.
var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// Norm returns the Euclidean norm of v.
func Norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// Normalize returns v scaled to unit length.
// A zero vector is returned unchanged.
func Normalize(v []float32) []float32 {
	norm := Norm(v)
	if norm == 0 {
		return v
	}
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

// Blend moves current toward incoming by weight:
// result[i] = current[i]*(1-weight) + incoming[i]*weight.
// Weights outside [0, 1] extrapolate.
func Blend(current, incoming []float32, weight float32) ([]float32, error) {
	if len(current) != len(incoming) {
		return nil, fmt.Errorf("%w: %d != %d", ErrDimensionMismatch, len(current), len(incoming))
	}
	w := float64(weight)
	out := make([]float32, len(current))
	for i := range current {
		out[i] = float32(float64(current[i])*(1-w) + float64(incoming[i])*w)
	}
	return out, nil
}

// CosineSimilarity calculates cosine similarity between two vectors.
// Returns 0 for mismatched lengths or zero vectors.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}
