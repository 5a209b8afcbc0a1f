// Package split partitions collections into disjoint buckets by independent
// weighted sampling of each element.
package split

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"math"
	"math/rand/v2"
	"strconv"
)

// DefaultRatios is the training/validation split.
var DefaultRatios = []float64{0.85, 0.15}

// ratioTolerance absorbs float rounding when checking that ratios sum to 1.
const ratioTolerance = 1e-9

// Splitter assigns elements to buckets. It holds no per-element state, so
// Assign may be called from any number of goroutines.
type Splitter struct {
	cumulative []float64
	seed       uint64
	seeded     bool
}

// Option configures a Splitter.
type Option func(*Splitter)

// WithSeed makes assignment a pure function of (seed, element key).
func WithSeed(seed uint64) Option {
	return func(s *Splitter) {
		s.seed = seed
		s.seeded = true
	}
}

// New validates ratios (each positive, summing to 1) and builds a Splitter.
func New(ratios []float64, opts ...Option) (*Splitter, error) {
	if len(ratios) == 0 {
		return nil, fmt.Errorf("split: no ratios given")
	}
	cum := make([]float64, len(ratios))
	sum := 0.0
	for i, r := range ratios {
		if !(r > 0) || math.IsInf(r, 0) {
			return nil, fmt.Errorf("split: ratio %d must be positive, got %v", i, r)
		}
		sum += r
		cum[i] = sum
	}
	if math.Abs(sum-1) > ratioTolerance {
		return nil, fmt.Errorf("split: ratios must sum to 1, got %v", sum)
	}
	// Pin the last boundary so every draw in [0,1) lands in a bucket.
	cum[len(cum)-1] = 1

	s := &Splitter{cumulative: cum}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Buckets returns the number of output partitions.
func (s *Splitter) Buckets() int {
	return len(s.cumulative)
}

// Seeded reports whether assignment is reproducible.
func (s *Splitter) Seeded() bool {
	return s.seeded
}

// Assign picks a bucket for one element. key is only consulted when the
// splitter is seeded.
func (s *Splitter) Assign(key string) int {
	return s.bucket(s.draw(key))
}

func (s *Splitter) draw(key string) float64 {
	if !s.seeded {
		return rand.Float64()
	}
	h := fnv.New64a()
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], s.seed)
	h.Write(buf[:])
	h.Write([]byte(key))
	// Mix the hash through PCG so nearby keys spread over [0,1).
	return rand.New(rand.NewPCG(s.seed, h.Sum64())).Float64()
}

func (s *Splitter) bucket(u float64) int {
	for i, bound := range s.cumulative {
		if u < bound {
			return i
		}
	}
	return len(s.cumulative) - 1
}

// Split partitions items into Buckets() disjoint slices. Input order is
// preserved within each bucket. key supplies the stable per-element
// identifier used by seeded splitters; when nil, the element's position is
// used instead.
func Split[T any](s *Splitter, items []T, key func(T) string) [][]T {
	out := make([][]T, s.Buckets())
	for i, item := range items {
		var k string
		if key != nil {
			k = key(item)
		} else if s.seeded {
			k = strconv.Itoa(i)
		}
		b := s.Assign(k)
		out[b] = append(out[b], item)
	}
	return out
}
