package playlist

import "errors"

// Sentinel errors for playlist operations.
var (
	// ErrMalformedPlaylist indicates a playlist document that could not be
	// decoded in any accepted shape.
	ErrMalformedPlaylist = errors.New("malformed playlist document")

	// ErrNotStarted indicates Stop was called on a sync client that never
	// started.
	ErrNotStarted = errors.New("sync client not started")
)
