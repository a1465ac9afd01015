package types

import "errors"

var (
	// Input and state errors surfaced to HTTP callers.
	ErrInvalidCoordinate = errors.New("coordinate outside grid bounds")
	ErrRideNotFound      = errors.New("ride not found")
	ErrDriverNotFound    = errors.New("driver not found")
	ErrNoActiveRide      = errors.New("no active ride")
	ErrActiveRideExists  = errors.New("an active ride already exists")
	ErrRideStateConflict = errors.New("ride state conflict")
	ErrProposalNotHeld   = errors.New("no open proposal for this driver and ride")
	ErrNotFound          = errors.New("requested item not found")
	ErrUnauthorized      = errors.New("missing or invalid token")
	ErrForbidden         = errors.New("not enough permissions")

	// Matching-internal errors, never surfaced directly.
	ErrNoDriverFound = errors.New("no driver found within search radius")
	ErrPoisonEvent   = errors.New("event is missing required fields")

	// Returned by the worker read loop after backoff is exhausted. The
	// task exits so the orchestrator restarts it.
	ErrSubstrateFatal = errors.New("substrate unavailable after retries")
)
