package domain

import "time"

// FeeDecision records one successful fee evaluation for a pool. Seq increases
// by one per decision within a session; Bootstrap marks the forced-regular
// first decision.
type FeeDecision struct {
	ID          string
	PoolID      string
	Seq         uint64
	Volatility  uint64
	Tier        Tier
	Fee         uint64
	Bootstrap   bool
	Persistent  bool
	EvaluatedAt time.Time
}
