package model

import "sort"

// FeatureVector is a sparse vector with a fixed number of addressable
// slots. Only non-zero counts are stored.
type FeatureVector struct {
	Dimension int
	Counts    map[int]float64
}

// Get returns the count at index i (zero when unset).
func (v FeatureVector) Get(i int) float64 {
	return v.Counts[i]
}

// NonZero returns the number of stored entries.
func (v FeatureVector) NonZero() int {
	return len(v.Counts)
}

// Indices returns the stored indices in ascending order.
func (v FeatureVector) Indices() []int {
	idx := make([]int, 0, len(v.Counts))
	for i := range v.Counts {
		idx = append(idx, i)
	}
	sort.Ints(idx)
	return idx
}

// Dense expands the vector to a slice of length Dimension.
func (v FeatureVector) Dense() []float64 {
	out := make([]float64, v.Dimension)
	for i, c := range v.Counts {
		out[i] = c
	}
	return out
}

// LabeledExample is the unit handed to a learner: numeric label plus features.
type LabeledExample struct {
	Label    float64
	Features FeatureVector
}
