// ABOUTME: Offline feature-hashing embedder that needs no model files or server.
// ABOUTME: Hashes words and character trigrams into a signed, L2-normalized vector.
package embeddings

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

const (
	wordWeight    = 1.0
	trigramWeight = 0.5
)

// HashingEmbedder is a deterministic bag-of-features embedder. It captures
// lexical overlap only, which is enough for demos and tests without a model.
type HashingEmbedder struct {
	model string
	dim   int
}

// NewHashingEmbedder creates a hashing embedder producing dim-sized vectors.
func NewHashingEmbedder(model string, dim int) *HashingEmbedder {
	if dim <= 0 {
		dim = 256
	}
	return &HashingEmbedder{model: model, dim: dim}
}

// ModelID returns the configured model name.
func (h *HashingEmbedder) ModelID() string { return h.model }

// Dimension returns the vector size.
func (h *HashingEmbedder) Dimension() int { return h.dim }

// Embed returns the hashed feature vector for text. Text without any letters
// or digits maps to the zero vector.
func (h *HashingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	acc := make([]float64, h.dim)
	for _, word := range tokenize(text) {
		h.add(acc, "w:"+word, wordWeight)
		padded := "#" + word + "#"
		runes := []rune(padded)
		for i := 0; i+3 <= len(runes); i++ {
			h.add(acc, "t:"+string(runes[i:i+3]), trigramWeight)
		}
	}

	var norm float64
	for _, v := range acc {
		norm += v * v
	}
	norm = math.Sqrt(norm)

	vec := make([]float32, h.dim)
	if norm == 0 {
		return vec, nil
	}
	for i, v := range acc {
		vec[i] = float32(v / norm)
	}
	return vec, nil
}

// EmbedBatch embeds each text in order.
func (h *HashingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := h.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		vectors[i] = vec
	}
	return vectors, nil
}

func (h *HashingEmbedder) add(acc []float64, feature string, weight float64) {
	hasher := fnv.New64a()
	_, _ = hasher.Write([]byte(feature))
	sum := hasher.Sum64()
	idx := int(sum % uint64(h.dim))
	if sum&(1<<63) != 0 {
		weight = -weight
	}
	acc[idx] += weight
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
