package domain

import "errors"

// Every ledger operation either fully commits or reports one of these and
// commits nothing. All are recoverable from the caller's point of view;
// persistence failures outside this set are wrapped and surfaced as-is.
var (
	ErrNotFound              = errors.New("not found")
	ErrPermissionDenied      = errors.New("permission denied")
	ErrInvalidState          = errors.New("operation not permitted in current state")
	ErrInsufficientFunds     = errors.New("insufficient wallet balance")
	ErrInsufficientInventory = errors.New("insufficient tokens available")
	ErrValidation            = errors.New("invalid input")
	ErrConflict              = errors.New("concurrent modification detected")
	ErrLockHeld              = errors.New("lock already held")
)
