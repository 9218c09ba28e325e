package model

// ZeroVector returns the all-zero vector used for empty or failed embeddings.
func ZeroVector(dimension int) []float32 {
	return make([]float32, dimension)
}

// IsZeroVector reports whether every component of v is zero.
func IsZeroVector(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}
