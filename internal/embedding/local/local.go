// Package local provides a deterministic offline embedder. It hashes token
// n-grams into a fixed number of buckets, so related texts land near each
// other while the whole thing stays dependency- and network-free. Useful
// for tests and for running the demo without an API key.
package local

import (
	"context"
	"hash/fnv"
	"math"
	"regexp"
	"strings"
)

var tokenRe = regexp.MustCompile(`\p{L}+`)

// Embedder produces unit-length hashed bag-of-words vectors.
type Embedder struct {
	dimension int
}

// NewEmbedder creates a local embedder with the given dimension.
func NewEmbedder(dimension int) *Embedder {
	if dimension <= 0 {
		dimension = 128
	}
	return &Embedder{dimension: dimension}
}

// EmbedTexts embeds every text, in order. It never fails.
func (e *Embedder) EmbedTexts(_ context.Context, texts []string) ([][]float64, error) {
	vectors := make([][]float64, len(texts))
	for i, t := range texts {
		vectors[i] = e.embed(t)
	}
	return vectors, nil
}

func (e *Embedder) embed(text string) []float64 {
	vec := make([]float64, e.dimension)
	tokens := tokenRe.FindAllString(strings.ToLower(text), -1)
	for _, tok := range tokens {
		h := fnv.New32a()
		h.Write([]byte(tok))
		vec[int(h.Sum32()%uint32(e.dimension))]++
	}
	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	if norm > 0 {
		norm = math.Sqrt(norm)
		for i := range vec {
			vec[i] /= norm
		}
	}
	return vec
}
