package rotation

import (
	"context"
	"sync"
	"time"

	"github.com/linkitmedia/signage-core/internal/playlist"
)

// loadTimeout bounds how long the engine waits for the renderer to prepare
// an item before treating it as failed.
const loadTimeout = 10 * time.Second

// Logger interface for optional logging support.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}

// Engine rotates through the active playlist on a single event loop.
//
// The loop owns all rotation state (active playlist, staged replacement,
// current index); other goroutines only hand it work through Stage. That
// single ownership is what enforces the rotation invariants:
//
//   - Exactly one advance per displayed item, even when a video completion
//     races the duration timer.
//   - A staged playlist never interrupts the item on screen; it is applied
//     when the rotation wraps to the start of the cycle. When nothing is
//     playing it applies immediately.
//   - An empty playlist shows the placeholder and keeps the loop alive, so
//     a later assignment starts playback without a restart.
type Engine struct {
	renderer        Renderer
	clock           Clock
	placeholderText string
	logger          Logger

	// staged carries playlists into the loop; latest wins.
	staged chan []playlist.Item

	// placeholders carries placeholder text updates into the loop.
	placeholders chan string

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	started bool
}

// NewEngine creates an engine driving the given renderer.
//
// Parameters:
//   - renderer: Display surface
//   - placeholderText: Message shown when no playlist is available
func NewEngine(renderer Renderer, placeholderText string) *Engine {
	return &Engine{
		renderer:        renderer,
		clock:           SystemClock(),
		placeholderText: placeholderText,
		logger:          noopLogger{},
		staged:          make(chan []playlist.Item, 1),
		placeholders:    make(chan string, 1),
	}
}

// SetLogger sets a logger for rotation logging.
func (e *Engine) SetLogger(logger Logger) {
	if logger != nil {
		e.logger = logger
	}
}

// SetClock replaces the engine's clock. Must be called before Start.
func (e *Engine) SetClock(clock Clock) {
	e.clock = clock
}

// Stage hands a playlist to the rotation loop.
//
// If an item is on screen, the playlist is held until the rotation wraps to
// the start of its cycle; staging again before then replaces the held
// playlist (latest wins). When the engine is idle the playlist applies
// immediately. Safe to call from any goroutine, before or after Start.
func (e *Engine) Stage(items []playlist.Item) {
	// Coalesce: drop any previously staged playlist. The retry loop keeps
	// this non-blocking under concurrent staging.
	for {
		select {
		case e.staged <- items:
			return
		default:
			select {
			case <-e.staged:
			default:
			}
		}
	}
}

// SetPlaceholder replaces the placeholder text. If the placeholder is on
// screen it is redrawn with the new text. Used to show the pairing code
// while unpaired. Safe to call from any goroutine.
func (e *Engine) SetPlaceholder(text string) {
	for {
		select {
		case e.placeholders <- text:
			return
		default:
			select {
			case <-e.placeholders:
			default:
			}
		}
	}
}

// Start launches the rotation loop. The loop shows the placeholder until a
// playlist is staged.
func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.started {
		return
	}
	e.started = true

	ctx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.done = make(chan struct{})

	go e.run(ctx)
}

// Stop halts the rotation loop and the current item.
func (e *Engine) Stop() {
	e.mu.Lock()
	cancel := e.cancel
	done := e.done
	e.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// loopState is the rotation state owned exclusively by the run goroutine.
type loopState struct {
	active  []playlist.Item
	pending []playlist.Item
	// hasPending distinguishes "nothing staged" from a staged empty
	// playlist, which must still be applied.
	hasPending bool
	index      int
	// playing marks an item on screen (successfully loaded or not; a
	// failed item occupies its slot for its duration).
	playing bool
	timer   Timer
	timerC  <-chan time.Time
}

// run is the rotation loop.
func (e *Engine) run(ctx context.Context) {
	defer close(e.done)

	state := &loopState{}
	e.renderer.ShowPlaceholder(e.placeholderText)

	for {
		select {
		case <-ctx.Done():
			e.stopTimer(state)
			e.renderer.Stop()
			return

		case items := <-e.staged:
			e.handleStage(ctx, state, items)

		case text := <-e.placeholders:
			e.placeholderText = text
			if !state.playing && len(state.active) == 0 {
				e.renderer.ShowPlaceholder(text)
			}

		case event := <-e.renderer.Events():
			if !state.playing {
				// Stale event from an item already stopped.
				continue
			}
			if event.Kind == EventFailed {
				// A failed item holds its slot until the duration timer,
				// same as a load failure, so a playlist of broken items
				// cannot spin the loop.
				e.logger.Warn("item playback failed, skipping after duration",
					"url", e.currentURL(state),
					"error", event.Err,
				)
				e.renderer.ShowPlaceholder(e.placeholderText)
				continue
			}
			e.advance(ctx, state)

		case <-state.timerC:
			e.advance(ctx, state)
		}
	}
}

// handleStage applies or defers a newly staged playlist.
func (e *Engine) handleStage(ctx context.Context, state *loopState, items []playlist.Item) {
	if state.playing {
		state.pending = items
		state.hasPending = true
		e.logger.Debug("playlist staged for next cycle", "items", len(items))
		return
	}
	e.apply(ctx, state, items)
}

// apply replaces the active playlist and starts it from the beginning.
func (e *Engine) apply(ctx context.Context, state *loopState, items []playlist.Item) {
	e.stopCurrent(state)

	state.active = items
	state.pending = nil
	state.hasPending = false
	state.index = 0

	e.logger.Info("playlist applied", "items", len(items))
	e.show(ctx, state)
}

// advance moves to the next item, applying a staged playlist at the wrap.
func (e *Engine) advance(ctx context.Context, state *loopState) {
	e.stopCurrent(state)

	state.index++
	if state.index >= len(state.active) {
		state.index = 0
		if state.hasPending {
			e.apply(ctx, state, state.pending)
			return
		}
	}
	e.show(ctx, state)
}

// show displays the item at the current index, or the placeholder when the
// active playlist is empty.
func (e *Engine) show(ctx context.Context, state *loopState) {
	if len(state.active) == 0 {
		state.playing = false
		e.renderer.ShowPlaceholder(e.placeholderText)
		return
	}

	item := state.active[state.index]
	duration := time.Duration(item.Duration) * time.Millisecond

	loadCtx, cancel := context.WithTimeout(ctx, loadTimeout)
	err := e.renderer.Load(loadCtx, item)
	cancel()

	if err != nil {
		// Unplayable item: hold the placeholder for its slot so a bad
		// asset cannot spin the loop.
		e.logger.Warn("item load failed, skipping after duration",
			"url", item.URL,
			"error", err,
		)
		e.renderer.ShowPlaceholder(e.placeholderText)
	} else {
		e.renderer.Play(item)
	}

	// The duration timer always runs: for images it is the display time,
	// for videos an upper bound in case completion never arrives.
	state.playing = true
	state.timer = e.clock.NewTimer(duration)
	state.timerC = state.timer.C()
}

// stopCurrent halts the displayed item and discards its stale signals.
func (e *Engine) stopCurrent(state *loopState) {
	e.stopTimer(state)

	if !state.playing {
		return
	}
	state.playing = false
	e.renderer.Stop()

	// Drain any event emitted before Stop took effect so it cannot trigger
	// a second advance for the same item.
	select {
	case <-e.renderer.Events():
	default:
	}
}

// stopTimer clears the duration timer.
func (e *Engine) stopTimer(state *loopState) {
	if state.timer != nil {
		state.timer.Stop()
		state.timer = nil
		state.timerC = nil
	}
}

// currentURL returns the displayed item's URL for logging.
func (e *Engine) currentURL(state *loopState) string {
	if state.index < len(state.active) {
		return state.active[state.index].URL
	}
	return ""
}
