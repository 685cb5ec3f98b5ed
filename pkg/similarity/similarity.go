package similarity

import (
	"context"
	"errors"
	"math"
)

// ErrUnavailable is returned when the scoring backend cannot be initialised.
var ErrUnavailable = errors.New("similarity backend unavailable")

// Scorer compares one image with one text string in a shared embedding space.
type Scorer interface {
	Similarity(ctx context.Context, image []byte, text string) (float64, error)
}

// Cosine returns the cosine similarity of two vectors, or 0 when either is
// zero-length, mismatched or all zeros.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// Clamp01 clamps v into [0, 1]. NaN maps to 0.
func Clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

// normalizeVector scales vec to unit length so dot products are cosines.
func normalizeVector(vec []float32) []float32 {
	var magnitude float64
	for _, v := range vec {
		magnitude += float64(v) * float64(v)
	}
	magnitude = math.Sqrt(magnitude)
	if magnitude == 0 {
		return vec
	}

	normalized := make([]float32, len(vec))
	for i, v := range vec {
		normalized[i] = float32(float64(v) / magnitude)
	}
	return normalized
}
