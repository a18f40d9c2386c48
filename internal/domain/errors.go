package domain

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrLengthMismatch    = errors.New("readings and weights length mismatch")
	ErrNegativeReading   = errors.New("negative volatility reading")
	ErrInvalidWeightSet  = errors.New("weights must sum to the basis point base")
	ErrInvalidTierConfig = errors.New("invalid fee tier configuration")
	ErrOverflow          = errors.New("arithmetic overflow")
	ErrNotInitialized    = errors.New("session not initialized")
	ErrLockHeld          = errors.New("lock already held")
	ErrContextDone       = errors.New("context cancelled")
)
