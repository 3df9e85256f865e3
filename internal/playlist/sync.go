package playlist

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/linkitmedia/signage-core/internal/cache"
	"github.com/linkitmedia/signage-core/internal/infrastructure/remote"
)

// cacheWriteTimeout bounds write-through cache updates triggered from
// subscription callbacks, which carry no caller context.
const cacheWriteTimeout = 5 * time.Second

// Store is the document-store surface the sync client needs.
// Satisfied by *remote.Store.
type Store interface {
	Read(ctx context.Context, path string) ([]byte, error)
	Subscribe(path string, handler func(data []byte, err error)) (func() error, error)
}

// Cache is the offline mirror surface the sync client needs.
// Satisfied by *cache.Repository.
type Cache interface {
	ReplaceAll(ctx context.Context, items []cache.Item) error
}

// Stager receives reconciled playlists. Satisfied by *rotation.Engine, which
// decides whether to apply immediately or defer to the next cycle boundary.
type Stager interface {
	Stage(items []Item)
}

// Logger interface for optional logging support.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// SyncClient reconciles the device's assigned playlist from the control
// plane into the rotation engine and the offline cache.
//
// The pairing layer tells the client which playlist ID to watch; Watch
// performs an initial read for a fast first paint and then follows every
// edit to the document. Reassignment switches the watch; the rotation
// engine's wrap rule keeps either change from interrupting a mid-item
// display.
//
// Reconciliation rules:
//   - Every decodable document is staged with the engine and written through
//     to the cache, empty playlists included (an explicit unassignment is
//     truth and must survive a restart).
//   - A document that fails to decode is dropped with a warning; it never
//     reaches the engine and never clobbers the cache.
//   - A missing document reads as an empty playlist.
type SyncClient struct {
	store           Store
	cache           Cache
	stager          Stager
	defaultDuration int
	logger          Logger

	mu       sync.Mutex
	cancel   func() error
	current  string
	watching bool
}

// NewSyncClient creates a sync client.
//
// Parameters:
//   - store: Control-plane document store
//   - cache: Offline playlist mirror
//   - stager: Rotation engine (or anything accepting staged playlists)
//   - defaultDuration: Fallback item display time in milliseconds
func NewSyncClient(store Store, cache Cache, stager Stager, defaultDuration int) *SyncClient {
	return &SyncClient{
		store:           store,
		cache:           cache,
		stager:          stager,
		defaultDuration: defaultDuration,
		logger:          noopLogger{},
	}
}

// SetLogger sets a logger for reconciliation logging.
func (c *SyncClient) SetLogger(logger Logger) {
	if logger != nil {
		c.logger = logger
	}
}

// Watch reconciles and follows a playlist document. Any previous watch is
// torn down first; watching the already-watched ID is a no-op.
//
// The transport redelivers the current document after every reconnect, so an
// edit made while the device was offline arrives without an explicit
// re-read.
//
// Parameters:
//   - ctx: Context for the initial read
//   - playlistID: Assignment from the device's registration record
//
// Returns:
//   - error: If the change listener cannot be attached
func (c *SyncClient) Watch(ctx context.Context, playlistID string) error {
	c.mu.Lock()
	if c.watching && c.current == playlistID {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	c.detach()

	path := remote.Paths{}.Playlist(playlistID)

	data, err := c.store.Read(ctx, path)
	switch {
	case err == nil:
		c.applyDocument(ctx, data)
	case errors.Is(err, remote.ErrNotFound):
		// Assignment points at a playlist that does not exist yet.
		c.applyItems(ctx, nil)
	default:
		// Transient read failure: keep whatever is currently playing.
		c.logger.Warn("initial playlist read failed", "playlist", playlistID, "error", err)
	}

	cancel, err := c.store.Subscribe(path, c.handleUpdate)
	if err != nil {
		return fmt.Errorf("watching playlist %s: %w", playlistID, err)
	}

	c.mu.Lock()
	c.cancel = cancel
	c.current = playlistID
	c.watching = true
	c.mu.Unlock()
	return nil
}

// Unassign tears down the current watch and applies an empty playlist.
// Called when the device is paired with no playlist, or unpaired.
func (c *SyncClient) Unassign(ctx context.Context) {
	c.detach()
	c.applyItems(ctx, nil)
}

// Stop detaches the change listener without touching playback state.
func (c *SyncClient) Stop() error {
	c.mu.Lock()
	watching := c.watching
	c.mu.Unlock()
	if !watching {
		return ErrNotStarted
	}
	c.detach()
	return nil
}

// detach cancels the active watch, if any.
func (c *SyncClient) detach() {
	c.mu.Lock()
	cancel := c.cancel
	c.cancel = nil
	c.current = ""
	c.watching = false
	c.mu.Unlock()

	if cancel == nil {
		return
	}
	if err := cancel(); err != nil {
		c.logger.Warn("cancelling playlist watch", "error", err)
	}
}

// handleUpdate processes one document change from the listener.
func (c *SyncClient) handleUpdate(data []byte, err error) {
	ctx, cancel := context.WithTimeout(context.Background(), cacheWriteTimeout)
	defer cancel()

	if err != nil {
		c.logger.Warn("playlist listener error", "error", err)
		return
	}
	if data == nil {
		// Assignment removed.
		c.applyItems(ctx, nil)
		return
	}
	c.applyDocument(ctx, data)
}

// applyDocument decodes and applies a playlist document.
func (c *SyncClient) applyDocument(ctx context.Context, data []byte) {
	items, err := Parse(data, c.defaultDuration)
	if err != nil {
		c.logger.Warn("dropping undecodable playlist document", "error", err)
		return
	}
	c.applyItems(ctx, items)
}

// applyItems stages a reconciled playlist and writes it through to the cache.
func (c *SyncClient) applyItems(ctx context.Context, items []Item) {
	c.stager.Stage(items)

	if err := c.cache.ReplaceAll(ctx, toCacheItems(items)); err != nil {
		c.logger.Error("playlist cache write failed", "error", err, "items", len(items))
		return
	}
	c.logger.Info("playlist reconciled", "items", len(items))
}

// toCacheItems converts playlist items to their cached representation.
func toCacheItems(items []Item) []cache.Item {
	cached := make([]cache.Item, len(items))
	for i, item := range items {
		cached[i] = cache.Item{
			URL:      item.URL,
			Position: i,
			Type:     item.Type,
			Duration: item.Duration,
		}
	}
	return cached
}

// FromCacheItems converts cached items back to playlist items, used for the
// offline cold start before any remote document arrives.
func FromCacheItems(cached []cache.Item) []Item {
	items := make([]Item, len(cached))
	for i, c := range cached {
		items[i] = Item{
			URL:      c.URL,
			Type:     c.Type,
			Duration: c.Duration,
		}
	}
	return items
}
