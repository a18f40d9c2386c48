package fees

import (
	"errors"
	"math"
	"testing"

	"github.com/apexpool/feetier/internal/domain"
)

func mustWeights(t *testing.T, weights ...uint64) domain.WeightSet {
	t.Helper()
	entries := make([]domain.WindowWeight, len(weights))
	for i, w := range weights {
		entries[i] = domain.WindowWeight{Weight: w}
	}
	ws, err := domain.NewWeightSet(entries)
	if err != nil {
		t.Fatalf("new weight set: %v", err)
	}
	return ws
}

func TestWeightedVolatility(t *testing.T) {
	tests := []struct {
		name     string
		readings []int64
		weights  []uint64
		want     uint64
	}{
		{"three windows", []int64{100, 200, 300}, []uint64{5000, 3000, 2000}, 170},
		{"single window full weight", []int64{160000}, []uint64{10000}, 160000},
		{"all equal readings", []int64{42, 42, 42}, []uint64{4000, 4000, 2000}, 42},
		{"zero readings", []int64{0, 0}, []uint64{5000, 5000}, 0},
		{"rounds down per term", []int64{1, 1}, []uint64{5000, 5000}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := WeightedVolatility(tt.readings, mustWeights(t, tt.weights...))
			if err != nil {
				t.Fatalf("WeightedVolatility: %v", err)
			}
			if got != tt.want {
				t.Errorf("WeightedVolatility=%d want %d", got, tt.want)
			}
		})
	}
}

func TestWeightedVolatilityLengthMismatch(t *testing.T) {
	ws := mustWeights(t, 5000, 5000)
	if _, err := WeightedVolatility([]int64{100}, ws); !errors.Is(err, domain.ErrLengthMismatch) {
		t.Fatalf("err=%v want ErrLengthMismatch", err)
	}
}

func TestWeightedVolatilityNegativeReading(t *testing.T) {
	ws := mustWeights(t, 10000)
	if _, err := WeightedVolatility([]int64{-50}, ws); !errors.Is(err, domain.ErrNegativeReading) {
		t.Fatalf("err=%v want ErrNegativeReading", err)
	}
}

func TestWeightedVolatilityLargeReadingsNoTruncation(t *testing.T) {
	// reading*weight exceeds 64 bits before the divide; the 256-bit mulDiv
	// must keep full precision.
	ws := mustWeights(t, 5000, 5000)
	r := int64(math.MaxInt64)
	got, err := WeightedVolatility([]int64{r, r}, ws)
	if err != nil {
		t.Fatalf("WeightedVolatility: %v", err)
	}
	// Each term floors independently: twice floor(r*5000/10000) = r-1 for odd r.
	want := uint64(r) - 1
	if got != want {
		t.Errorf("WeightedVolatility=%d want %d", got, want)
	}
}

func TestWeightSetConstruction(t *testing.T) {
	tests := []struct {
		name    string
		weights []uint64
		wantErr bool
	}{
		{"sums to base", []uint64{5000, 3000, 2000}, false},
		{"single full weight", []uint64{10000}, false},
		{"under base", []uint64{5000, 4000}, true},
		{"over base", []uint64{9000, 2000}, true},
		{"empty", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries := make([]domain.WindowWeight, len(tt.weights))
			for i, w := range tt.weights {
				entries[i] = domain.WindowWeight{Weight: w}
			}
			_, err := domain.NewWeightSet(entries)
			if tt.wantErr && !errors.Is(err, domain.ErrInvalidWeightSet) {
				t.Fatalf("err=%v want ErrInvalidWeightSet", err)
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}
