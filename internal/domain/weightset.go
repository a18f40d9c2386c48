package domain

import "fmt"

const (
	// BasisPointsBase is the denominator for blend weights: 10,000 bips = 100%.
	BasisPointsBase uint64 = 10_000

	// PipsBase is the volatility and fee unit base: hundredths of a bip,
	// 1,000,000 = 100%. Oracle values in any other unit are converted at the
	// oracle boundary, never inside the aggregator or selector.
	PipsBase uint64 = 1_000_000
)

// WindowWeight pairs a time horizon label with its blend weight in bips.
// Index 0 is the shortest window by convention.
type WindowWeight struct {
	Window string
	Weight uint64
}

// WeightSet is an ordered set of window weights summing to exactly
// BasisPointsBase. It is immutable after construction; accessors return
// copies.
type WeightSet struct {
	entries []WindowWeight
}

// NewWeightSet validates and constructs a WeightSet. It returns
// ErrInvalidWeightSet when the set is empty or the weights do not sum to
// BasisPointsBase.
func NewWeightSet(entries []WindowWeight) (WeightSet, error) {
	if len(entries) == 0 {
		return WeightSet{}, fmt.Errorf("%w: no entries", ErrInvalidWeightSet)
	}
	var sum uint64
	for _, e := range entries {
		next := sum + e.Weight
		if next < sum {
			return WeightSet{}, fmt.Errorf("%w: weight sum overflow", ErrInvalidWeightSet)
		}
		sum = next
	}
	if sum != BasisPointsBase {
		return WeightSet{}, fmt.Errorf("%w: sum %d, want %d", ErrInvalidWeightSet, sum, BasisPointsBase)
	}
	cp := make([]WindowWeight, len(entries))
	copy(cp, entries)
	return WeightSet{entries: cp}, nil
}

// Len returns the number of windows.
func (ws WeightSet) Len() int {
	return len(ws.entries)
}

// Entries returns a copy of the window/weight pairs.
func (ws WeightSet) Entries() []WindowWeight {
	cp := make([]WindowWeight, len(ws.entries))
	copy(cp, ws.entries)
	return cp
}

// Weight returns the weight at position i.
func (ws WeightSet) Weight(i int) uint64 {
	return ws.entries[i].Weight
}

// Sum re-checks the weight total. The WeightSet is immutable by contract,
// but the aggregator re-validates defensively before arithmetic.
func (ws WeightSet) Sum() uint64 {
	var sum uint64
	for _, e := range ws.entries {
		sum += e.Weight
	}
	return sum
}
