package pairing

import "errors"

// Sentinel errors for pairing operations.
var (
	// ErrMalformedRecord indicates a registration document that could not
	// be decoded.
	ErrMalformedRecord = errors.New("malformed screen record")

	// ErrCodeCollision indicates no collision-free pairing code could be
	// found within the retry budget.
	ErrCodeCollision = errors.New("pairing code collision limit reached")

	// ErrRegistrationFailed indicates the registration record could not be
	// written within the attempt budget.
	ErrRegistrationFailed = errors.New("device registration failed")

	// ErrNotStarted indicates Stop was called on a machine that never
	// started.
	ErrNotStarted = errors.New("pairing machine not started")
)
