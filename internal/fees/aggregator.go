// Package fees implements the volatility-adaptive fee core: weighted
// volatility aggregation, tier selection, and the per-pool session state
// machine. All arithmetic is integer-only so identical inputs produce
// bit-identical results everywhere.
package fees

import (
	"fmt"

	"github.com/holiman/uint256"

	"github.com/apexpool/feetier/internal/domain"
)

// WeightedVolatility blends one reading per window into a single scalar:
// sum(reading_i * weight_i / BasisPointsBase). Each term is computed as a
// full-precision 256-bit multiply before the divide, so intermediate products
// never truncate.
//
// Readings arrive signed because percent-change oracles emit negative values;
// a negative reading is rejected outright rather than reinterpreted as a
// large unsigned magnitude.
func WeightedVolatility(readings []int64, ws domain.WeightSet) (uint64, error) {
	if len(readings) != ws.Len() {
		return 0, fmt.Errorf("%w: %d readings, %d weights",
			domain.ErrLengthMismatch, len(readings), ws.Len())
	}
	// WeightSet is immutable by contract; re-check anyway so a corrupted set
	// can never skew the blend.
	if ws.Sum() != domain.BasisPointsBase {
		return 0, fmt.Errorf("%w: sum %d", domain.ErrInvalidWeightSet, ws.Sum())
	}

	base := uint256.NewInt(domain.BasisPointsBase)
	sum := new(uint256.Int)
	for i, r := range readings {
		if r < 0 {
			return 0, fmt.Errorf("%w: reading %d at index %d",
				domain.ErrNegativeReading, r, i)
		}
		term, overflow := new(uint256.Int).MulDivOverflow(
			uint256.NewInt(uint64(r)),
			uint256.NewInt(ws.Weight(i)),
			base,
		)
		if overflow {
			return 0, fmt.Errorf("%w: term at index %d", domain.ErrOverflow, i)
		}
		if _, carry := sum.AddOverflow(sum, term); carry {
			return 0, fmt.Errorf("%w: weighted sum", domain.ErrOverflow)
		}
	}

	if !sum.IsUint64() {
		return 0, fmt.Errorf("%w: result exceeds 64 bits", domain.ErrOverflow)
	}
	return sum.Uint64(), nil
}
