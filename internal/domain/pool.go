package domain

import "time"

// Pool is the fixed per-pool configuration: the weight blend across
// volatility windows and the tier triggers/fees. Set once at initialization
// and never mutated afterwards.
type Pool struct {
	ID      string
	Address string // hex contract address of the pool on the host chain
	Windows []string
	Weights []uint64
	Tiers   TierConfig

	CreatedAt time.Time
	UpdatedAt time.Time
}

// WeightSet builds the validated WeightSet from the pool's stored windows and
// weights.
func (p Pool) WeightSet() (WeightSet, error) {
	entries := make([]WindowWeight, 0, len(p.Weights))
	for i, w := range p.Weights {
		window := ""
		if i < len(p.Windows) {
			window = p.Windows[i]
		}
		entries = append(entries, WindowWeight{Window: window, Weight: w})
	}
	return NewWeightSet(entries)
}
