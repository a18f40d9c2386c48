package domain

import "context"

// FeeConsumer receives the selected fee once per pricing event.
//
// ApplyOnce overrides the fee for a single pricing event only; ApplyPersistent
// updates the pool's standing fee until the next update. The two are distinct
// operations on purpose: an override is cheap, a persistent update is not.
type FeeConsumer interface {
	ApplyOnce(ctx context.Context, poolID string, fee uint64) error
	ApplyPersistent(ctx context.Context, poolID string, fee uint64) error
}
