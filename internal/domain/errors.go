package domain

import "errors"

// Sentinel errors for the settlement engine and its surrounding services.
// Handlers map these to HTTP status codes; every failure is synchronous and
// leaves shared state untouched.
var (
	ErrNotFound = errors.New("not found")

	// Construction validation.
	ErrInvalidNumOutcomes    = errors.New("outcome count must be between 2 and 5")
	ErrInvalidInitialFunding = errors.New("initial funding must equal b0 * ln(outcome count)")

	// Request validation.
	ErrInvalidOutcome      = errors.New("invalid outcome index")
	ErrInvalidDelta        = errors.New("invalid trade delta")
	ErrInsufficientShares  = errors.New("insufficient shares")
	ErrInsufficientPayment = errors.New("insufficient payment")

	// Authorization.
	ErrOnlyOwner    = errors.New("caller is not the market owner")
	ErrUnauthorized = errors.New("unauthorized")

	// Lifecycle.
	ErrMarketResolved = errors.New("market already resolved")
	ErrNotResolved    = errors.New("market not resolved")

	// Infrastructure.
	ErrRateLimited = errors.New("rate limited")
	ErrLockHeld    = errors.New("lock already held")
)
