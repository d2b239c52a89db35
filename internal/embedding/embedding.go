// Package embedding maps cleaned market text to fixed-dimension unit vectors
// comparable by cosine similarity. The default provider is a deterministic
// hashed-feature encoder: no model weights, no network, stable across runs.
// Any provider whose vectors are pairwise cosine-comparable can substitute,
// as long as a single deployment uses one provider throughout.
package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
)

// Dim is the vector dimension used by the hashed encoder.
const Dim = 256

// Provider encodes text into unit-length dense vectors.
type Provider interface {
	// Encode returns the embedding for one text.
	Encode(ctx context.Context, text string) ([]float32, error)

	// EncodeBatch returns embeddings for several texts in input order.
	EncodeBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the fixed vector dimension.
	Dimension() int
}

// HashedEncoder hashes word tokens and character trigrams into a fixed
// number of buckets with signed counts, then L2-normalizes. Texts sharing
// vocabulary and spelling land near each other under cosine similarity.
type HashedEncoder struct {
	dim int
}

var _ Provider = (*HashedEncoder)(nil)

// NewHashedEncoder returns an encoder with the default dimension.
func NewHashedEncoder() *HashedEncoder {
	return &HashedEncoder{dim: Dim}
}

func (e *HashedEncoder) Dimension() int { return e.dim }

func (e *HashedEncoder) Encode(_ context.Context, text string) ([]float32, error) {
	vec := make([]float64, e.dim)

	for _, token := range strings.Fields(strings.ToLower(text)) {
		// Word features weigh double: shared vocabulary matters more
		// than shared spelling fragments.
		e.accumulate(vec, "w:"+token, 2.0)

		runes := []rune(" " + token + " ")
		for i := 0; i+3 <= len(runes); i++ {
			e.accumulate(vec, "t:"+string(runes[i:i+3]), 1.0)
		}
	}

	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	out := make([]float32, e.dim)
	if norm == 0 {
		return out, nil
	}
	norm = math.Sqrt(norm)
	for i, v := range vec {
		out[i] = float32(v / norm)
	}
	return out, nil
}

func (e *HashedEncoder) EncodeBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		vec, err := e.Encode(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

// accumulate adds a signed contribution for one feature. The bucket comes
// from the low bits of the hash, the sign from a high bit, which keeps the
// expected dot product of unrelated texts near zero.
func (e *HashedEncoder) accumulate(vec []float64, feature string, weight float64) {
	h := fnv.New64a()
	h.Write([]byte(feature))
	sum := h.Sum64()

	bucket := int(sum % uint64(e.dim))
	if sum&(1<<63) != 0 {
		weight = -weight
	}
	vec[bucket] += weight
}

// Cosine returns the cosine similarity of two vectors, or 0 when either is
// empty or zero. Unit-length inputs make this a plain dot product, but the
// norms are computed anyway so the helper is safe for arbitrary vectors.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
