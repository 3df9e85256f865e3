package remote

import "errors"

// Sentinel errors for remote store operations.
// Wrap with fmt.Errorf("%w: ...") for context; check with errors.Is().
var (
	// ErrConnectionFailed indicates the initial broker connection failed.
	ErrConnectionFailed = errors.New("remote connection failed")

	// ErrNotConnected indicates an operation was attempted while offline.
	ErrNotConnected = errors.New("not connected to remote")

	// ErrNotFound indicates no document exists at the requested path.
	ErrNotFound = errors.New("document not found")

	// ErrInvalidPath indicates an empty or malformed document path.
	ErrInvalidPath = errors.New("invalid document path")

	// ErrEncodeFailed indicates a document could not be marshalled.
	ErrEncodeFailed = errors.New("document encode failed")

	// ErrPublishFailed indicates the broker rejected or timed out a write.
	ErrPublishFailed = errors.New("publish failed")

	// ErrSubscribeFailed indicates a subscription could not be established.
	ErrSubscribeFailed = errors.New("subscribe failed")

	// ErrUnsubscribeFailed indicates a subscription could not be removed.
	ErrUnsubscribeFailed = errors.New("unsubscribe failed")
)
