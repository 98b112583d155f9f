package catalog

import "math"

// cosineSnap absorbs the float error between sqrt(na)*sqrt(nb) and the exact
// norm product, so an entry compared against its own vector scores 1.0 and
// survives a threshold of exactly 1.0.
const cosineSnap = 1e-12

// Cosine returns the cosine similarity of two vectors in [-1, 1].
// Mismatched lengths and zero vectors score 0.
func Cosine(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	c := dot / (math.Sqrt(na) * math.Sqrt(nb))
	if c >= 1-cosineSnap {
		return 1
	}
	if c <= -1+cosineSnap {
		return -1
	}
	return c
}
