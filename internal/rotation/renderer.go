package rotation

import (
	"context"

	"github.com/linkitmedia/signage-core/internal/playlist"
)

// EventKind classifies renderer events.
type EventKind int

const (
	// EventCompleted means the current item finished on its own
	// (video reached its end).
	EventCompleted EventKind = iota

	// EventFailed means the current item stopped with an error
	// (decode failure, unreachable asset).
	EventFailed
)

// Event is emitted by the renderer while an item is displayed.
type Event struct {
	Kind EventKind
	Err  error
}

// Renderer is the display surface the engine drives.
//
// Implementations wrap whatever actually draws pixels (a media player
// process, a browser shell, a framebuffer writer). The engine guarantees
// Load/Play/Stop are called from a single goroutine; Events must deliver on
// an unbuffered or small-buffered channel owned by the renderer.
type Renderer interface {
	// Load prepares an item for display. A returned error marks the item
	// unplayable; the engine skips it after its display duration.
	Load(ctx context.Context, item playlist.Item) error

	// Play displays a previously loaded item.
	Play(item playlist.Item)

	// Stop halts the current item, if any. The renderer must not emit
	// events for an item after Stop returns.
	Stop()

	// Events delivers completion and failure notifications for the
	// currently playing item.
	Events() <-chan Event

	// ShowPlaceholder displays a full-screen message (pairing code,
	// empty-playlist text) instead of media.
	ShowPlaceholder(text string)
}
