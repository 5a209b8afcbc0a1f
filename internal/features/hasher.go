// Package features turns token sequences into fixed-dimension sparse count
// vectors using the hashing trick.
package features

import (
	"fmt"
	"hash/fnv"

	"github.com/abelbrown/moodcheck/internal/model"
)

// DefaultDimension is the number of addressable slots when none is configured.
const DefaultDimension = 1 << 20

// HashFunc maps a token to an unsigned hash. It must be deterministic.
type HashFunc func(token string) uint64

// FNV64a hashes a token with 64-bit FNV-1a.
func FNV64a(token string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(token))
	return h.Sum64()
}

// Hasher is immutable after construction and safe for concurrent use.
type Hasher struct {
	dim  int
	hash HashFunc
}

// NewHasher creates a Hasher with dim slots. A nil hash uses FNV64a.
func NewHasher(dim int, hash HashFunc) (*Hasher, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("features: dimension must be positive, got %d", dim)
	}
	if hash == nil {
		hash = FNV64a
	}
	return &Hasher{dim: dim, hash: hash}, nil
}

// Dimension returns the number of addressable slots.
func (h *Hasher) Dimension() int {
	return h.dim
}

// Index returns the slot a token maps to, in [0, Dimension()).
func (h *Hasher) Index(token string) int {
	return int(h.hash(token) % uint64(h.dim))
}

// Transform counts tokens per slot. Distinct tokens that collide share a
// slot and their counts add up.
func (h *Hasher) Transform(tokens []string) model.FeatureVector {
	counts := make(map[int]float64, len(tokens))
	for _, tok := range tokens {
		counts[h.Index(tok)]++
	}
	return model.FeatureVector{Dimension: h.dim, Counts: counts}
}
