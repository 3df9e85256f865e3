package playlist

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/linkitmedia/signage-core/internal/cache"
	"github.com/linkitmedia/signage-core/internal/infrastructure/remote"
)

// fakeStore is an in-memory document store with manual change delivery.
type fakeStore struct {
	mu        sync.Mutex
	docs      map[string][]byte
	handlers  map[string]func(data []byte, err error)
	cancelled []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		docs:     make(map[string][]byte),
		handlers: make(map[string]func(data []byte, err error)),
	}
}

func (f *fakeStore) Read(_ context.Context, path string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.docs[path]
	if !ok {
		return nil, fmt.Errorf("read %s: %w", path, remote.ErrNotFound)
	}
	return data, nil
}

func (f *fakeStore) Subscribe(path string, handler func(data []byte, err error)) (func() error, error) {
	f.mu.Lock()
	f.handlers[path] = handler
	f.mu.Unlock()
	return func() error {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.handlers, path)
		f.cancelled = append(f.cancelled, path)
		return nil
	}, nil
}

// push delivers a document change to the registered listener.
func (f *fakeStore) push(t *testing.T, path string, data []byte) {
	t.Helper()
	f.mu.Lock()
	handler := f.handlers[path]
	f.mu.Unlock()
	if handler == nil {
		t.Fatalf("no listener on %s", path)
	}
	handler(data, nil)
}

func (f *fakeStore) cancelledPaths() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.cancelled...)
}

// fakeCache records every ReplaceAll call.
type fakeCache struct {
	mu       sync.Mutex
	replaced [][]cache.Item
}

func (f *fakeCache) ReplaceAll(_ context.Context, items []cache.Item) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replaced = append(f.replaced, items)
	return nil
}

func (f *fakeCache) calls() [][]cache.Item {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.replaced
}

// fakeStager records every staged playlist.
type fakeStager struct {
	mu     sync.Mutex
	staged [][]Item
}

func (f *fakeStager) Stage(items []Item) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.staged = append(f.staged, items)
}

func (f *fakeStager) calls() [][]Item {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.staged
}

func playlistPath(playlistID string) string {
	return remote.Paths{}.Playlist(playlistID)
}

func TestWatchAppliesExistingDocument(t *testing.T) {
	store := newFakeStore()
	store.docs[playlistPath("lobby-loop")] = []byte(`[{"url": "https://x/a.jpg", "type": "image", "duration": 2000}]`)
	stager := &fakeStager{}
	cached := &fakeCache{}

	client := NewSyncClient(store, cached, stager, testDefaultDuration)
	if err := client.Watch(context.Background(), "lobby-loop"); err != nil {
		t.Fatalf("Watch() error = %v", err)
	}
	defer client.Stop()

	staged := stager.calls()
	if len(staged) != 1 || len(staged[0]) != 1 {
		t.Fatalf("staged calls = %+v, want one call with one item", staged)
	}
	writes := cached.calls()
	if len(writes) != 1 || len(writes[0]) != 1 {
		t.Fatalf("cache writes = %+v, want one write with one item", writes)
	}
	if writes[0][0].Position != 0 {
		t.Errorf("cached position = %d, want 0", writes[0][0].Position)
	}
}

func TestWatchMissingPlaylistStagesEmpty(t *testing.T) {
	store := newFakeStore()
	stager := &fakeStager{}
	cached := &fakeCache{}

	client := NewSyncClient(store, cached, stager, testDefaultDuration)
	if err := client.Watch(context.Background(), "ghost"); err != nil {
		t.Fatalf("Watch() error = %v", err)
	}
	defer client.Stop()

	staged := stager.calls()
	if len(staged) != 1 || len(staged[0]) != 0 {
		t.Fatalf("staged calls = %+v, want one empty staging", staged)
	}
	writes := cached.calls()
	if len(writes) != 1 || len(writes[0]) != 0 {
		t.Fatalf("cache writes = %+v, want one empty write", writes)
	}
}

func TestUpdateStagedAndWrittenThrough(t *testing.T) {
	store := newFakeStore()
	stager := &fakeStager{}
	cached := &fakeCache{}

	client := NewSyncClient(store, cached, stager, testDefaultDuration)
	if err := client.Watch(context.Background(), "lobby-loop"); err != nil {
		t.Fatalf("Watch() error = %v", err)
	}
	defer client.Stop()

	store.push(t, playlistPath("lobby-loop"), []byte(`[
		{"url": "https://x/a.jpg", "type": "image", "duration": 2000},
		{"url": "https://x/b.mp4", "type": "video", "duration": 9000}
	]`))

	staged := stager.calls()
	if len(staged) != 2 {
		t.Fatalf("staged %d times, want 2 (initial empty + update)", len(staged))
	}
	if len(staged[1]) != 2 {
		t.Errorf("update staged %d items, want 2", len(staged[1]))
	}
	writes := cached.calls()
	if len(writes) != 2 || len(writes[1]) != 2 {
		t.Fatalf("cache writes = %d, want write-through of the update", len(writes))
	}
}

func TestMalformedUpdateNeverClobbers(t *testing.T) {
	store := newFakeStore()
	store.docs[playlistPath("lobby-loop")] = []byte(`[{"url": "https://x/a.jpg"}]`)
	stager := &fakeStager{}
	cached := &fakeCache{}

	client := NewSyncClient(store, cached, stager, testDefaultDuration)
	if err := client.Watch(context.Background(), "lobby-loop"); err != nil {
		t.Fatalf("Watch() error = %v", err)
	}
	defer client.Stop()

	store.push(t, playlistPath("lobby-loop"), []byte(`garbage`))

	if got := len(stager.calls()); got != 1 {
		t.Errorf("staged %d times, want 1 (malformed update dropped)", got)
	}
	if got := len(cached.calls()); got != 1 {
		t.Errorf("cache written %d times, want 1 (malformed update dropped)", got)
	}
}

func TestDeletionStagesEmpty(t *testing.T) {
	store := newFakeStore()
	store.docs[playlistPath("lobby-loop")] = []byte(`[{"url": "https://x/a.jpg"}]`)
	stager := &fakeStager{}
	cached := &fakeCache{}

	client := NewSyncClient(store, cached, stager, testDefaultDuration)
	if err := client.Watch(context.Background(), "lobby-loop"); err != nil {
		t.Fatalf("Watch() error = %v", err)
	}
	defer client.Stop()

	store.push(t, playlistPath("lobby-loop"), nil)

	staged := stager.calls()
	if len(staged) != 2 || len(staged[1]) != 0 {
		t.Fatalf("staged calls = %+v, want empty staging after deletion", staged)
	}
}

func TestReassignmentSwitchesWatch(t *testing.T) {
	store := newFakeStore()
	store.docs[playlistPath("lobby-loop")] = []byte(`[{"url": "https://x/lobby.jpg"}]`)
	store.docs[playlistPath("cafe-loop")] = []byte(`[{"url": "https://x/cafe.jpg"}]`)
	stager := &fakeStager{}
	cached := &fakeCache{}

	client := NewSyncClient(store, cached, stager, testDefaultDuration)
	ctx := context.Background()
	if err := client.Watch(ctx, "lobby-loop"); err != nil {
		t.Fatalf("first Watch() error = %v", err)
	}
	if err := client.Watch(ctx, "cafe-loop"); err != nil {
		t.Fatalf("second Watch() error = %v", err)
	}
	defer client.Stop()

	cancelled := store.cancelledPaths()
	if len(cancelled) != 1 || cancelled[0] != playlistPath("lobby-loop") {
		t.Errorf("cancelled watches = %v, want the first playlist only", cancelled)
	}

	staged := stager.calls()
	if len(staged) != 2 {
		t.Fatalf("staged %d times, want 2", len(staged))
	}
	if staged[1][0].URL != "https://x/cafe.jpg" {
		t.Errorf("second staging = %+v, want the new playlist", staged[1])
	}
}

func TestWatchSamePlaylistIsNoOp(t *testing.T) {
	store := newFakeStore()
	store.docs[playlistPath("lobby-loop")] = []byte(`[{"url": "https://x/a.jpg"}]`)
	stager := &fakeStager{}

	client := NewSyncClient(store, &fakeCache{}, stager, testDefaultDuration)
	ctx := context.Background()
	if err := client.Watch(ctx, "lobby-loop"); err != nil {
		t.Fatalf("first Watch() error = %v", err)
	}
	if err := client.Watch(ctx, "lobby-loop"); err != nil {
		t.Fatalf("repeat Watch() error = %v", err)
	}
	defer client.Stop()

	if got := len(stager.calls()); got != 1 {
		t.Errorf("staged %d times, want 1 (repeat watch is a no-op)", got)
	}
	if got := len(store.cancelledPaths()); got != 0 {
		t.Errorf("repeat watch cancelled %d subscriptions", got)
	}
}

func TestUnassignStagesEmptyAndDetaches(t *testing.T) {
	store := newFakeStore()
	store.docs[playlistPath("lobby-loop")] = []byte(`[{"url": "https://x/a.jpg"}]`)
	stager := &fakeStager{}
	cached := &fakeCache{}

	client := NewSyncClient(store, cached, stager, testDefaultDuration)
	if err := client.Watch(context.Background(), "lobby-loop"); err != nil {
		t.Fatalf("Watch() error = %v", err)
	}

	client.Unassign(context.Background())

	staged := stager.calls()
	if len(staged) != 2 || len(staged[1]) != 0 {
		t.Fatalf("staged calls = %+v, want empty staging after unassign", staged)
	}
	if got := len(store.cancelledPaths()); got != 1 {
		t.Errorf("unassign cancelled %d watches, want 1", got)
	}
}

func TestStopCancelsSubscription(t *testing.T) {
	store := newFakeStore()
	client := NewSyncClient(store, &fakeCache{}, &fakeStager{}, testDefaultDuration)

	if err := client.Watch(context.Background(), "lobby-loop"); err != nil {
		t.Fatalf("Watch() error = %v", err)
	}
	if err := client.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if got := len(store.cancelledPaths()); got != 1 {
		t.Errorf("cancelled %d subscriptions, want 1", got)
	}
	if err := client.Stop(); err != ErrNotStarted {
		t.Errorf("second Stop() error = %v, want ErrNotStarted", err)
	}
}
