package fees

import "github.com/apexpool/feetier/internal/domain"

// TierFor maps a weighted volatility to a tier. Both boundaries are
// inclusive toward the extreme tier: exactly HighTrigger resolves High,
// exactly LowTrigger resolves Low, and Regular covers the open interval in
// between. The config is validated once at setup, never here.
func TierFor(volatility uint64, cfg domain.TierConfig) domain.Tier {
	switch {
	case volatility >= cfg.HighTrigger:
		return domain.TierHigh
	case volatility <= cfg.LowTrigger:
		return domain.TierLow
	default:
		return domain.TierRegular
	}
}

// FeeFor returns the fee bound to the tier selected for the given volatility.
func FeeFor(volatility uint64, cfg domain.TierConfig) uint64 {
	return cfg.Fee(TierFor(volatility, cfg))
}
