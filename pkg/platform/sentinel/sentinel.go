package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores return these (optionally
// wrapped) so services can translate them into domain errors.
//
//   - ErrNotFound: entity does not exist in store
//   - ErrInvalidState: entity exists but is in the wrong status for the lookup
//   - ErrConflict: entity with the same key already stored
//   - ErrEmpty: queue has nothing claimable
//   - ErrUnavailable: backing service temporarily unavailable
//
// For validation errors use pkg/domain-errors directly.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state")
	ErrEmpty        = errors.New("empty")
	ErrUnavailable  = errors.New("unavailable")
)
