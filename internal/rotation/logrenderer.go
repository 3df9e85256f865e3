package rotation

import (
	"context"

	"github.com/linkitmedia/signage-core/internal/playlist"
)

// LogRenderer is a headless Renderer that logs display actions instead of
// drawing. It is the default surface for deployments where an external
// process (kiosk shell, media player) consumes the log stream, and it keeps
// the daemon runnable on hardware with no display attached.
//
// It never emits completion events, so videos advance on their duration
// bound like images.
type LogRenderer struct {
	logger Logger
	events chan Event
}

// NewLogRenderer creates a LogRenderer writing to the given logger.
func NewLogRenderer(logger Logger) *LogRenderer {
	if logger == nil {
		logger = noopLogger{}
	}
	return &LogRenderer{
		logger: logger,
		events: make(chan Event),
	}
}

// Load never fails; there is nothing to prepare.
func (r *LogRenderer) Load(_ context.Context, item playlist.Item) error {
	r.logger.Debug("loading item", "url", item.URL, "type", item.Type)
	return nil
}

// Play logs the item that would be displayed.
func (r *LogRenderer) Play(item playlist.Item) {
	r.logger.Info("displaying item",
		"url", item.URL,
		"type", item.Type,
		"duration_ms", item.Duration,
	)
}

// Stop logs the end of the current item.
func (r *LogRenderer) Stop() {
	r.logger.Debug("display stopped")
}

// Events returns a channel that never delivers.
func (r *LogRenderer) Events() <-chan Event {
	return r.events
}

// ShowPlaceholder logs the placeholder message.
func (r *LogRenderer) ShowPlaceholder(text string) {
	r.logger.Info("displaying placeholder", "text", text)
}
