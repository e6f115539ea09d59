package memory

import (
	"encoding/binary"
	"fmt"
	"math"
)

// packEmbedding serializes a float32 vector as little-endian bytes, the
// on-disk format mandated for every embedding column.
func packEmbedding(v []float32) []byte {
	if len(v) == 0 {
		return nil
	}
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// unpackEmbedding deserializes little-endian packed float32 bytes. A
// byte length not divisible by 4, or one that doesn't match
// EmbeddingDim once unpacked, is a fatal load error.
func unpackEmbedding(b []byte) ([]float32, error) {
	if len(b) == 0 {
		return nil, nil
	}
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("memory: embedding byte length %d not a multiple of 4", len(b))
	}
	n := len(b) / 4
	if n != EmbeddingDim {
		return nil, fmt.Errorf("memory: embedding dimension mismatch: got %d, want %d", n, EmbeddingDim)
	}
	out := make([]float32, n)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return out, nil
}

// CosineSimilarity computes cosine similarity between two vectors of
// equal length. Zero-length or zero-magnitude vectors return 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, magA, magB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}
