package domain

import "fmt"

// Tier is one of the three discrete fee levels a pool can charge.
type Tier uint8

const (
	TierLow Tier = iota
	TierRegular
	TierHigh
)

// String returns the canonical tier name.
func (t Tier) String() string {
	switch t {
	case TierLow:
		return "LOW"
	case TierRegular:
		return "REGULAR"
	case TierHigh:
		return "HIGH"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", uint8(t))
	}
}

// ParseTier converts a canonical tier name back to its Tier value.
func ParseTier(s string) (Tier, error) {
	switch s {
	case "LOW":
		return TierLow, nil
	case "REGULAR":
		return TierRegular, nil
	case "HIGH":
		return TierHigh, nil
	default:
		return 0, fmt.Errorf("unknown tier %q", s)
	}
}

// TierConfig binds the volatility triggers to the fee charged at each tier.
// Triggers and fees are both in pips. Volatility at or above HighTrigger
// selects High; at or below LowTrigger selects Low; Regular covers the open
// interval between them.
type TierConfig struct {
	LowTrigger  uint64
	HighTrigger uint64

	LowFee     uint64
	RegularFee uint64
	HighFee    uint64
}

// Validate checks the config invariants: the triggers must leave a non-empty
// Regular band and the fees must rise with the tier.
func (c TierConfig) Validate() error {
	if c.LowTrigger >= c.HighTrigger {
		return fmt.Errorf("%w: low trigger %d must be below high trigger %d",
			ErrInvalidTierConfig, c.LowTrigger, c.HighTrigger)
	}
	if c.LowFee > c.RegularFee || c.RegularFee > c.HighFee {
		return fmt.Errorf("%w: fees must be monotone non-decreasing across tiers (%d, %d, %d)",
			ErrInvalidTierConfig, c.LowFee, c.RegularFee, c.HighFee)
	}
	return nil
}

// Fee returns the fee bound to the given tier.
func (c TierConfig) Fee(t Tier) uint64 {
	switch t {
	case TierLow:
		return c.LowFee
	case TierHigh:
		return c.HighFee
	default:
		return c.RegularFee
	}
}
