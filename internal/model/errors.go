package model

import "github.com/rotisserie/eris"

// Sentinel errors shared across stores, services, and the HTTP layer.
// Callers classify with errors.Is; wrapping sites add context with eris.Wrap.
var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = eris.New("not found")

	// ErrForbidden is returned when an entity exists but is owned by
	// someone other than the caller.
	ErrForbidden = eris.New("forbidden")

	// ErrInsufficientCredits is returned when a billable operation's cost
	// exceeds the caller's remaining balance.
	ErrInsufficientCredits = eris.New("insufficient credits")

	// ErrLimitReached is returned when a create would exceed a tier quota.
	ErrLimitReached = eris.New("plan limit reached")

	// ErrProviderFailure is returned when an upstream SERP provider call
	// fails after exhausting its options.
	ErrProviderFailure = eris.New("provider failure")

	// ErrValidation is returned for malformed caller input.
	ErrValidation = eris.New("invalid input")
)
