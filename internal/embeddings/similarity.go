// ABOUTME: Cosine similarity between embedding vectors.
// ABOUTME: Accumulates in float64 so float32 vectors score stably.
package embeddings

import "math"

// CosineSimilarity computes the cosine similarity between two vectors.
// Mismatched lengths, empty vectors, and zero vectors score 0.
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

	score := dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
	// rounding can push identical vectors a hair past the unit interval
	if score > 1 {
		return 1
	}
	if score < -1 {
		return -1
	}
	return score
}
