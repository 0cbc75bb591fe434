package reembed

import "math"

// NormalizeVector scales a chunk vector to unit length so cosine similarity
// against it reduces to a dot product. The input is not modified. A zero
// vector has no direction and comes back as a fresh zero vector.
func NormalizeVector(v []float32) []float32 {
	if len(v) == 0 {
		return v
	}

	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	magnitude := float32(math.Sqrt(sumSquares))

	result := make([]float32, len(v))
	if magnitude == 0 {
		return result
	}
	for i, val := range v {
		result[i] = val / magnitude
	}
	return result
}
