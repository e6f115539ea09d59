package memory

import (
	"crypto/sha256"
	"math"
)

// Embedder maps text to a fixed-dimension vector. Implementations are
// pluggable; production deployments wire in a real embedding model.
type Embedder interface {
	Embed(text string) ([]float32, error)
}

// HashEmbedder is a deterministic, dependency-free stand-in embedder:
// it spreads a SHA-256 digest of the text across EmbeddingDim buckets.
// It produces no semantic structure — it exists so the rest of the
// system (packing, cosine search, dimension checks) has something
// concrete to exercise without requiring a real model at startup.
type HashEmbedder struct{}

func NewHashEmbedder() *HashEmbedder { return &HashEmbedder{} }

func (HashEmbedder) Embed(text string) ([]float32, error) {
	sum := sha256.Sum256([]byte(text))
	out := make([]float32, EmbeddingDim)
	for i := range out {
		b := sum[i%len(sum)]
		// Fold the byte into a small signed float so vectors of
		// different text produce different directions, not just
		// different magnitudes.
		out[i] = float32(int(b)-128) / 128.0
	}
	normalize(out)
	return out, nil
}

func normalize(v []float32) {
	var sumSq float64
	for _, f := range v {
		sumSq += float64(f) * float64(f)
	}
	if sumSq == 0 {
		return
	}
	norm := math.Sqrt(sumSq)
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
}
