package service

import "errors"

// Validation failures are detected before any mutation is staged and are
// returned without retry. ErrConflict surfaces only after the internal
// retry budget for concurrency conflicts is exhausted. Anything else coming
// out of the store is a storage failure: the unit of work has been rolled
// back and the error is fatal to the caller.
var (
	ErrOrderNotFound  = errors.New("order not found")
	ErrUserNotFound   = errors.New("user not found")
	ErrRewardNotFound = errors.New("reward not found")

	// ErrInvalidTransition is returned when an order is asked to leave a
	// terminal state. This guard is what prevents double-awarding points.
	ErrInvalidTransition = errors.New("invalid order status transition")

	// ErrMissingUser flags a data-integrity violation: an order whose
	// submitting user cannot be resolved.
	ErrMissingUser = errors.New("order has no associated user")

	ErrRewardUnavailable      = errors.New("reward is not available")
	ErrOutOfStock             = errors.New("reward is out of stock")
	ErrInsufficientPoints     = errors.New("insufficient points")
	ErrInvalidStockAdjustment = errors.New("stock adjustment would make stock negative")

	ErrConflict = errors.New("concurrent update conflict, retries exhausted")
)
