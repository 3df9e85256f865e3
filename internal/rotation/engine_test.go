package rotation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/linkitmedia/signage-core/internal/playlist"
)

const testPlaceholder = "No playlist assigned or available."

// fakeClock hands out manually fired timers.
type fakeClock struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

func (c *fakeClock) Now() time.Time { return time.Now() }

func (c *fakeClock) NewTimer(d time.Duration) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{d: d, ch: make(chan time.Time, 1)}
	c.timers = append(c.timers, t)
	return t
}

func (c *fakeClock) timerCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}

// fireLatest fires the most recently created timer if still armed.
func (c *fakeClock) fireLatest() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.timers) == 0 {
		return
	}
	c.timers[len(c.timers)-1].fire()
}

type fakeTimer struct {
	mu      sync.Mutex
	d       time.Duration
	ch      chan time.Time
	stopped bool
}

func (t *fakeTimer) C() <-chan time.Time { return t.ch }

func (t *fakeTimer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	was := !t.stopped
	t.stopped = true
	return was
}

func (t *fakeTimer) fire() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}
	select {
	case t.ch <- time.Now():
	default:
	}
}

// fakeRenderer records engine calls and lets tests inject events. Like a
// real renderer it only emits events for the item currently on screen.
type fakeRenderer struct {
	mu       sync.Mutex
	log      []string
	current  string
	lastText string
	loadErrs map[string]error
	events   chan Event
}

func newFakeRenderer() *fakeRenderer {
	return &fakeRenderer{
		loadErrs: make(map[string]error),
		events:   make(chan Event, 1),
	}
}

func (r *fakeRenderer) Load(_ context.Context, item playlist.Item) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.log = append(r.log, "load:"+item.URL)
	return r.loadErrs[item.URL]
}

func (r *fakeRenderer) Play(item playlist.Item) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.current = item.URL
	r.log = append(r.log, "play:"+item.URL)
}

func (r *fakeRenderer) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.current = ""
	r.log = append(r.log, "stop")
}

func (r *fakeRenderer) Events() <-chan Event { return r.events }

func (r *fakeRenderer) ShowPlaceholder(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastText = text
	r.log = append(r.log, "placeholder")
}

func (r *fakeRenderer) lastPlaceholder() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastText
}

// emit delivers an event for url, dropped if the item is no longer current.
func (r *fakeRenderer) emit(url string, event Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current != url {
		return
	}
	select {
	case r.events <- event:
	default:
	}
}

func (r *fakeRenderer) count(entry string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, l := range r.log {
		if l == entry {
			n++
		}
	}
	return n
}

func (r *fakeRenderer) lastPlay() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.log) - 1; i >= 0; i-- {
		if len(r.log[i]) > 5 && r.log[i][:5] == "play:" {
			return r.log[i][5:]
		}
	}
	return ""
}

func waitFor(t *testing.T, condition func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not met within deadline")
}

func testEngine(t *testing.T) (*Engine, *fakeRenderer, *fakeClock) {
	t.Helper()
	renderer := newFakeRenderer()
	clock := &fakeClock{}
	engine := NewEngine(renderer, testPlaceholder)
	engine.SetClock(clock)
	engine.Start(context.Background())
	t.Cleanup(engine.Stop)
	return engine, renderer, clock
}

func imageItems(urls ...string) []playlist.Item {
	items := make([]playlist.Item, len(urls))
	for i, url := range urls {
		items[i] = playlist.Item{URL: url, Type: playlist.TypeImage, Duration: 3000}
	}
	return items
}

func TestStartsWithPlaceholder(t *testing.T) {
	_, renderer, _ := testEngine(t)

	waitFor(t, func() bool { return renderer.count("placeholder") >= 1 })
}

func TestStageWhenIdleAppliesImmediately(t *testing.T) {
	engine, renderer, _ := testEngine(t)

	engine.Stage(imageItems("a.jpg", "b.jpg"))

	waitFor(t, func() bool { return renderer.count("play:a.jpg") == 1 })
}

func TestTimerAdvancesAndWraps(t *testing.T) {
	engine, renderer, clock := testEngine(t)

	engine.Stage(imageItems("a.jpg", "b.jpg", "c.jpg"))
	waitFor(t, func() bool { return renderer.count("play:a.jpg") == 1 })

	clock.fireLatest()
	waitFor(t, func() bool { return renderer.count("play:b.jpg") == 1 })

	clock.fireLatest()
	waitFor(t, func() bool { return renderer.count("play:c.jpg") == 1 })

	// Wrap back to the first item.
	clock.fireLatest()
	waitFor(t, func() bool { return renderer.count("play:a.jpg") == 2 })
}

func TestStagedPlaylistDeferredUntilWrap(t *testing.T) {
	engine, renderer, clock := testEngine(t)

	engine.Stage(imageItems("a.jpg", "b.jpg"))
	waitFor(t, func() bool { return renderer.count("play:a.jpg") == 1 })

	// Staging mid-cycle must not interrupt the current item or cycle.
	engine.Stage(imageItems("new.jpg"))
	time.Sleep(10 * time.Millisecond)
	if got := renderer.count("play:new.jpg"); got != 0 {
		t.Fatalf("staged playlist played %d times before wrap", got)
	}

	// The rest of the old cycle still plays.
	clock.fireLatest()
	waitFor(t, func() bool { return renderer.count("play:b.jpg") == 1 })

	// At the wrap the staged playlist takes over.
	clock.fireLatest()
	waitFor(t, func() bool { return renderer.count("play:new.jpg") == 1 })

	if got := renderer.count("play:a.jpg"); got != 1 {
		t.Errorf("old playlist restarted after wrap: a.jpg played %d times", got)
	}
}

func TestLatestStagedPlaylistWins(t *testing.T) {
	engine, renderer, clock := testEngine(t)

	engine.Stage(imageItems("a.jpg"))
	waitFor(t, func() bool { return renderer.count("play:a.jpg") == 1 })

	engine.Stage(imageItems("stale.jpg"))
	engine.Stage(imageItems("fresh.jpg"))

	clock.fireLatest()
	waitFor(t, func() bool { return renderer.count("play:fresh.jpg") == 1 })

	if got := renderer.count("play:stale.jpg"); got != 0 {
		t.Errorf("superseded playlist played %d times", got)
	}
}

func TestVideoCompletionAdvances(t *testing.T) {
	engine, renderer, _ := testEngine(t)

	engine.Stage([]playlist.Item{
		{URL: "clip.mp4", Type: playlist.TypeVideo, Duration: 30000},
		{URL: "next.jpg", Type: playlist.TypeImage, Duration: 3000},
	})
	waitFor(t, func() bool { return renderer.count("play:clip.mp4") == 1 })

	renderer.emit("clip.mp4", Event{Kind: EventCompleted})
	waitFor(t, func() bool { return renderer.count("play:next.jpg") == 1 })
}

func TestCompletionAndTimeoutAdvanceOnce(t *testing.T) {
	engine, renderer, clock := testEngine(t)

	engine.Stage([]playlist.Item{
		{URL: "clip.mp4", Type: playlist.TypeVideo, Duration: 1000},
		{URL: "next.jpg", Type: playlist.TypeImage, Duration: 3000},
	})
	waitFor(t, func() bool { return renderer.count("play:clip.mp4") == 1 })

	// Deliver both advance signals for the same item.
	clock.fireLatest()
	renderer.emit("clip.mp4", Event{Kind: EventCompleted})

	waitFor(t, func() bool { return renderer.count("play:next.jpg") == 1 })
	time.Sleep(10 * time.Millisecond)

	// Exactly one advance: the image after the video is still on screen.
	if got := renderer.count("play:next.jpg"); got != 1 {
		t.Errorf("next item played %d times, want 1", got)
	}
	if got := renderer.count("play:clip.mp4"); got != 1 {
		t.Errorf("video replayed after double signal: %d plays", got)
	}
}

func TestFailedItemHoldsSlotUntilDuration(t *testing.T) {
	engine, renderer, clock := testEngine(t)

	engine.Stage([]playlist.Item{
		{URL: "broken.mp4", Type: playlist.TypeVideo, Duration: 30000},
		{URL: "next.jpg", Type: playlist.TypeImage, Duration: 3000},
	})
	waitFor(t, func() bool { return renderer.count("play:broken.mp4") == 1 })

	// A playback failure shows the placeholder but does not advance; the
	// item's duration timer still owns the slot.
	renderer.emit("broken.mp4", Event{Kind: EventFailed, Err: errors.New("decode error")})
	waitFor(t, func() bool { return renderer.count("placeholder") >= 2 })
	if got := renderer.count("play:next.jpg"); got != 0 {
		t.Fatalf("advanced immediately on failure: next item played %d times", got)
	}

	clock.fireLatest()
	waitFor(t, func() bool { return renderer.count("play:next.jpg") == 1 })
}

func TestLoadErrorSkipsAfterDuration(t *testing.T) {
	engine, renderer, clock := testEngine(t)
	renderer.loadErrs["missing.jpg"] = errors.New("asset unreachable")

	engine.Stage(imageItems("missing.jpg", "ok.jpg"))

	// The broken item holds a placeholder for its slot instead of playing.
	waitFor(t, func() bool { return renderer.count("load:missing.jpg") == 1 })
	if got := renderer.count("play:missing.jpg"); got != 0 {
		t.Fatalf("unplayable item played %d times", got)
	}

	clock.fireLatest()
	waitFor(t, func() bool { return renderer.count("play:ok.jpg") == 1 })
}

func TestEmptyStagedPlaylistShowsPlaceholder(t *testing.T) {
	engine, renderer, clock := testEngine(t)

	engine.Stage(imageItems("a.jpg"))
	waitFor(t, func() bool { return renderer.count("play:a.jpg") == 1 })

	// An explicit unassignment takes effect at the wrap.
	engine.Stage(nil)
	clock.fireLatest()

	waitFor(t, func() bool { return renderer.count("placeholder") >= 2 })
	if got := renderer.lastPlay(); got != "a.jpg" {
		t.Errorf("unexpected play after unassignment: %q", got)
	}
}

func TestSetPlaceholderRedraws(t *testing.T) {
	engine, renderer, _ := testEngine(t)
	waitFor(t, func() bool { return renderer.count("placeholder") >= 1 })

	engine.SetPlaceholder("Pairing code: AAAA1111")
	waitFor(t, func() bool { return renderer.lastPlaceholder() == "Pairing code: AAAA1111" })
}

func TestSingleItemPlaylistReplays(t *testing.T) {
	engine, renderer, clock := testEngine(t)

	engine.Stage(imageItems("only.jpg"))
	waitFor(t, func() bool { return renderer.count("play:only.jpg") == 1 })

	clock.fireLatest()
	waitFor(t, func() bool { return renderer.count("play:only.jpg") == 2 })
}

func TestStopHaltsRenderer(t *testing.T) {
	renderer := newFakeRenderer()
	clock := &fakeClock{}
	engine := NewEngine(renderer, testPlaceholder)
	engine.SetClock(clock)
	engine.Start(context.Background())

	engine.Stage(imageItems("a.jpg"))
	waitFor(t, func() bool { return renderer.count("play:a.jpg") == 1 })

	engine.Stop()
	if got := renderer.count("stop"); got == 0 {
		t.Error("renderer not stopped on engine Stop")
	}
}
