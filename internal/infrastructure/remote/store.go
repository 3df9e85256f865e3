package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/linkitmedia/signage-core/internal/infrastructure/config"
)

// Store exposes the broker as a small document store keyed by path.
//
// Every document is a retained message: writing publishes a retained payload,
// deleting publishes an empty retained payload, and reading subscribes to the
// path and waits for the retained copy. A path with no retained payload (or
// an empty one) does not exist.
//
// Subscribe registers a long-lived listener that receives the current
// document immediately (if one exists) and every subsequent write, which is
// what the pairing and playlist layers build their reconciliation on.
//
// Concurrent Read and Subscribe on the same path are not supported: the
// client tracks one handler per topic, so a Read would displace a live
// listener. Callers read first, then attach their listener.
type Store struct {
	client      *Client
	root        string
	readTimeout time.Duration
}

// NewStore wraps a connected client in the document-store API.
func NewStore(client *Client, cfg config.RemoteConfig) *Store {
	return &Store{
		client:      client,
		root:        cfg.Root,
		readTimeout: cfg.GetReadTimeout(),
	}
}

// Read fetches the current document at a path.
//
// It subscribes, waits up to the configured read timeout for the retained
// payload, then unsubscribes. The timeout doubles as the not-found signal:
// brokers deliver retained messages immediately on subscribe, so silence
// means no document.
//
// Parameters:
//   - ctx: Context for cancellation (bounded by the read timeout regardless)
//   - path: Logical document path (see Paths)
//
// Returns:
//   - []byte: Raw document payload
//   - error: ErrNotFound if no document exists at the path
func (s *Store) Read(ctx context.Context, path string) ([]byte, error) {
	if path == "" {
		return nil, ErrInvalidPath
	}

	topic := joinTopic(s.root, path)
	received := make(chan []byte, 1)

	err := s.client.subscribe(topic, func(_ string, payload []byte) {
		select {
		case received <- payload:
		default:
		}
	})
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	defer s.client.unsubscribe(topic)

	timer := time.NewTimer(s.readTimeout)
	defer timer.Stop()

	select {
	case payload := <-received:
		if len(payload) == 0 {
			// Empty retained payload is a tombstone left by Delete.
			return nil, fmt.Errorf("read %s: %w", path, ErrNotFound)
		}
		return payload, nil
	case <-timer.C:
		return nil, fmt.Errorf("read %s: %w", path, ErrNotFound)
	case <-ctx.Done():
		return nil, fmt.Errorf("read %s: %w", path, ctx.Err())
	}
}

// Write stores a document at a path, replacing any existing one.
//
// The document is marshalled to JSON unless it is already a []byte or
// json.RawMessage, in which case it is published as-is.
//
// Parameters:
//   - ctx: Context for cancellation (checked before publishing)
//   - path: Logical document path
//   - doc: Document value; must marshal to JSON
//
// Returns:
//   - error: ErrNotConnected when offline, ErrPublishFailed on broker errors
func (s *Store) Write(ctx context.Context, path string, doc any) error {
	if path == "" {
		return ErrInvalidPath
	}
	select {
	case <-ctx.Done():
		return fmt.Errorf("write %s: %w", path, ctx.Err())
	default:
	}

	var payload []byte
	switch v := doc.(type) {
	case []byte:
		payload = v
	case json.RawMessage:
		payload = v
	default:
		var err error
		payload, err = json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("write %s: %w: %w", path, ErrEncodeFailed, err)
		}
	}

	if err := s.client.publish(joinTopic(s.root, path), payload, true); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// Delete removes the document at a path by publishing an empty retained
// payload, which clears the broker's retained copy and notifies listeners.
func (s *Store) Delete(ctx context.Context, path string) error {
	if path == "" {
		return ErrInvalidPath
	}
	select {
	case <-ctx.Done():
		return fmt.Errorf("delete %s: %w", path, ctx.Err())
	default:
	}

	if err := s.client.publish(joinTopic(s.root, path), nil, true); err != nil {
		return fmt.Errorf("delete %s: %w", path, err)
	}
	return nil
}

// Subscribe attaches a long-lived listener to a path.
//
// The handler receives the retained document immediately if one exists, then
// every subsequent write. A deletion is delivered as (nil, nil).
//
// Each subscription delivers on its own goroutine, decoupled from the
// transport's message router: handlers may block and may call back into the
// store (Read, Write). If the handler falls behind, intermediate revisions
// are coalesced and only the latest document is delivered — correct for a
// document store, where the newest revision supersedes the rest.
//
// Parameters:
//   - path: Logical document path
//   - handler: Called with the document payload, or nil data on deletion
//
// Returns:
//   - func() error: Cancel function detaching the listener
//   - error: ErrNotConnected when offline, ErrSubscribeFailed on broker errors
func (s *Store) Subscribe(path string, handler func(data []byte, err error)) (func() error, error) {
	if path == "" {
		return nil, ErrInvalidPath
	}
	if handler == nil {
		return nil, fmt.Errorf("subscribe %s: %w: handler cannot be nil", path, ErrSubscribeFailed)
	}

	topic := joinTopic(s.root, path)
	pump := newDocPump(handler)
	err := s.client.subscribe(topic, func(_ string, payload []byte) {
		pump.push(payload)
	})
	if err != nil {
		pump.stop()
		return nil, fmt.Errorf("subscribe %s: %w", path, err)
	}

	return func() error {
		err := s.client.unsubscribe(topic)
		pump.stop()
		return err
	}, nil
}

// docPump hands documents from the transport's router goroutine to a
// subscription handler on a dedicated goroutine.
//
// The router dispatches every message handler synchronously in arrival
// order, so a handler that blocks — or performs a Read, which needs the
// router free to deliver the retained payload — would stall all delivery.
// Pushes never block the router: if the handler is still busy, the queued
// document is replaced by the newer one (latest wins).
type docPump struct {
	updates  chan []byte
	quit     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func newDocPump(handler func(data []byte, err error)) *docPump {
	p := &docPump{
		updates: make(chan []byte, 1),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}

	go func() {
		defer close(p.done)
		for {
			select {
			case <-p.quit:
				return
			case payload := <-p.updates:
				if len(payload) == 0 {
					// Empty retained payload is a deletion tombstone.
					handler(nil, nil)
					continue
				}
				handler(payload, nil)
			}
		}
	}()
	return p
}

// push queues a document without blocking; an undelivered older document is
// dropped in favour of the new one.
func (p *docPump) push(payload []byte) {
	for {
		select {
		case p.updates <- payload:
			return
		case <-p.quit:
			return
		default:
			select {
			case <-p.updates:
			default:
			}
		}
	}
}

// stop ends delivery and waits for an in-flight handler call to return.
func (p *docPump) stop() {
	p.stopOnce.Do(func() { close(p.quit) })
	<-p.done
}
