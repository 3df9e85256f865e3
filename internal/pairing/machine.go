package pairing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/linkitmedia/signage-core/internal/infrastructure/remote"
)

// Pref key for the persisted pairing code.
const codePrefKey = "pairing_code"

// maxCodeRegens bounds collision-driven code regeneration.
const maxCodeRegens = 5

// writeTimeout bounds remote writes triggered from callbacks and the
// heartbeat loop, which carry no caller context.
const writeTimeout = 5 * time.Second

// registrationBackoff is the initial delay between registration attempts;
// it doubles per attempt.
const registrationBackoff = time.Second

// Store is the document-store surface the machine needs.
// Satisfied by *remote.Store.
type Store interface {
	Read(ctx context.Context, path string) ([]byte, error)
	Write(ctx context.Context, path string, doc any) error
	Subscribe(path string, handler func(data []byte, err error)) (func() error, error)
}

// Prefs persists the pairing code locally. Satisfied by *cache.Repository.
type Prefs interface {
	GetPref(ctx context.Context, key string) (string, error)
	SetPref(ctx context.Context, key, value string) error
}

// Cache is the playlist mirror surface the machine needs for revocation.
// Satisfied by *cache.Repository.
type Cache interface {
	Clear(ctx context.Context) error
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

// Config holds the machine's operational parameters.
type Config struct {
	// HeartbeatInterval between liveness writes while paired.
	HeartbeatInterval time.Duration

	// RegistrationAttempts bounds registration write retries.
	RegistrationAttempts int

	// DeviceName is the optional human-readable label written into the
	// registration record for operator consoles.
	DeviceName string
}

// Machine drives the device through the pairing lifecycle.
//
// The machine owns the pairing code (resolved idempotently so a code
// survives restarts), the registration record, and the transitions between
// unpaired and paired driven by control-plane writes. While paired it
// heartbeats the registration record so operators can see device liveness.
//
// Transitions are delivered through callbacks registered before Start. The
// callbacks run on the record subscription's delivery goroutine and may use
// the store themselves; a slow callback delays later record updates rather
// than blocking the transport.
type Machine struct {
	store    Store
	prefs    Prefs
	cache    Cache
	deviceID string
	cfg      Config
	logger   Logger

	// now is overridable in tests.
	now func() time.Time

	mu        sync.Mutex
	state     State
	code      string
	record    ScreenRecord
	hasRecord bool

	onPaired     func(record ScreenRecord)
	onAssignment func(playlistID string)
	onRevoked    func()

	cancelRecord func() error
	cancelLegacy func() error

	heartbeatCancel context.CancelFunc
	heartbeatDone   chan struct{}
}

// NewMachine creates a pairing machine for a device.
func NewMachine(store Store, prefs Prefs, cache Cache, deviceID string, cfg Config) *Machine {
	return &Machine{
		store:    store,
		prefs:    prefs,
		cache:    cache,
		deviceID: deviceID,
		cfg:      cfg,
		logger:   noopLogger{},
		now:      time.Now,
		state:    StateInitializing,
	}
}

// SetLogger sets a logger for lifecycle logging.
func (m *Machine) SetLogger(logger Logger) {
	if logger != nil {
		m.logger = logger
	}
}

// SetOnPaired sets the callback fired when an operator claims the device.
// Must be called before Start.
func (m *Machine) SetOnPaired(callback func(record ScreenRecord)) {
	m.onPaired = callback
}

// SetOnAssignment sets the callback fired with the assigned playlist ID
// whenever the device becomes paired or the assignment changes while
// paired. An empty ID means paired with no playlist.
// Must be called before Start.
func (m *Machine) SetOnAssignment(callback func(playlistID string)) {
	m.onAssignment = callback
}

// SetOnRevoked sets the callback fired when the control plane revokes the
// pairing. The local playlist cache is cleared before the callback runs.
// Must be called before Start.
func (m *Machine) SetOnRevoked(callback func()) {
	m.onRevoked = callback
}

// Start resolves the pairing code, ensures the device is registered, and
// begins watching for pairing transitions.
//
// Steps:
//  1. Resolve the pairing code (local pref, existing record, or generated)
//  2. Register the device if no record exists on the control plane
//  3. Watch the registration record and the legacy code-keyed path
//  4. Begin heartbeating while paired
//
// If the record already shows the device as paired (for example after a
// restart), the paired callback fires before Start returns.
//
// Returns:
//   - error: If the code cannot be resolved, registration exhausts its
//     attempts, or the watches cannot be attached
func (m *Machine) Start(ctx context.Context) error {
	code, err := m.FetchOrGenerateCode(ctx)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.code = code
	m.mu.Unlock()

	record, err := m.fetchRecord(ctx)
	switch {
	case err == nil:
		m.mu.Lock()
		m.record = record
		m.hasRecord = true
		m.mu.Unlock()
	case errors.Is(err, remote.ErrNotFound), errors.Is(err, ErrMalformedRecord):
		// No usable record: register fresh (a corrupt record is rewritten).
		if err := m.register(ctx, code); err != nil {
			return err
		}
	default:
		return fmt.Errorf("reading registration record: %w", err)
	}

	if err := m.watch(code); err != nil {
		return err
	}

	m.startHeartbeat()

	// Resolve the initial state now that watches are attached.
	m.mu.Lock()
	record = m.record
	paired := m.hasRecord && m.record.Paired
	m.mu.Unlock()

	if paired {
		m.transitionPaired(record)
	} else {
		m.mu.Lock()
		m.state = StateUnpaired
		m.mu.Unlock()
		m.logger.Info("awaiting pairing", "code", code)
	}
	return nil
}

// AssignedPlaylist returns the currently assigned playlist ID, or "".
func (m *Machine) AssignedPlaylist() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.hasRecord {
		return ""
	}
	return m.record.CurrentPlaylistAssigned
}

// Stop halts the heartbeat loop and detaches the watches.
func (m *Machine) Stop() error {
	if m.heartbeatCancel == nil {
		return ErrNotStarted
	}

	m.heartbeatCancel()
	<-m.heartbeatDone

	var errs []error
	if m.cancelRecord != nil {
		if err := m.cancelRecord(); err != nil {
			errs = append(errs, err)
		}
	}
	if m.cancelLegacy != nil {
		if err := m.cancelLegacy(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Code returns the resolved pairing code, or "" before Start.
func (m *Machine) Code() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.code
}

// CurrentState returns the machine's lifecycle state.
func (m *Machine) CurrentState() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// FetchOrGenerateCode resolves the device's pairing code idempotently.
//
// Resolution order:
//  1. Locally persisted code (survives restarts)
//  2. Code already present in the device's registration record
//  3. A freshly generated code, checked for collisions against the legacy
//     code-keyed path and regenerated up to maxCodeRegens times
//
// The resolved code is persisted locally before it is returned, so every
// later call yields the same code.
func (m *Machine) FetchOrGenerateCode(ctx context.Context) (string, error) {
	stored, err := m.prefs.GetPref(ctx, codePrefKey)
	if err != nil {
		return "", fmt.Errorf("reading stored pairing code: %w", err)
	}
	if ValidCode(stored) {
		return stored, nil
	}

	if record, err := m.fetchRecord(ctx); err == nil && ValidCode(record.PairingCode) {
		if err := m.prefs.SetPref(ctx, codePrefKey, record.PairingCode); err != nil {
			return "", fmt.Errorf("persisting pairing code: %w", err)
		}
		return record.PairingCode, nil
	}

	for attempt := 0; attempt <= maxCodeRegens; attempt++ {
		code, err := GenerateCode()
		if err != nil {
			return "", err
		}

		if m.codeTaken(ctx, code) {
			m.logger.Warn("pairing code collision, regenerating", "attempt", attempt+1)
			continue
		}

		if err := m.prefs.SetPref(ctx, codePrefKey, code); err != nil {
			return "", fmt.Errorf("persisting pairing code: %w", err)
		}
		return code, nil
	}
	return "", ErrCodeCollision
}

// codeTaken reports whether another device already holds a pairing code.
// An unreadable path (offline, transient failure) is treated as free: the
// collision space is large and blocking pairing on a probe would hurt more.
func (m *Machine) codeTaken(ctx context.Context, code string) bool {
	data, err := m.store.Read(ctx, remote.Paths{}.Pairing(code))
	if err != nil {
		return false
	}

	record, err := decodeScreenRecord(data)
	if err != nil {
		return false
	}
	return record.UUID != "" && record.UUID != m.deviceID
}

// fetchRecord reads and decodes the device's registration record.
func (m *Machine) fetchRecord(ctx context.Context) (ScreenRecord, error) {
	data, err := m.store.Read(ctx, remote.Paths{}.Screen(m.deviceID))
	if err != nil {
		return ScreenRecord{}, err
	}
	return decodeScreenRecord(data)
}

// register writes the initial registration record, retrying with doubling
// backoff up to the configured attempt budget.
//
// The record is written to both the device-keyed path and the legacy
// code-keyed path so older operator consoles can still look devices up by
// code.
func (m *Machine) register(ctx context.Context, code string) error {
	record := newScreenRecord(m.deviceID, code, m.cfg.DeviceName, m.now())

	var lastErr error
	backoff := registrationBackoff
	for attempt := 1; attempt <= m.cfg.RegistrationAttempts; attempt++ {
		if err := m.writeRecord(ctx, record); err != nil {
			lastErr = err
			m.logger.Warn("registration attempt failed",
				"attempt", attempt,
				"error", err,
			)
			select {
			case <-ctx.Done():
				return fmt.Errorf("%w: %w", ErrRegistrationFailed, ctx.Err())
			case <-time.After(backoff):
			}
			backoff *= 2
			continue
		}

		m.mu.Lock()
		m.record = record
		m.hasRecord = true
		m.mu.Unlock()

		m.logger.Info("device registered", "code", code)
		return nil
	}
	return fmt.Errorf("%w: %w", ErrRegistrationFailed, lastErr)
}

// writeRecord writes a registration record to both control-plane paths.
func (m *Machine) writeRecord(ctx context.Context, record ScreenRecord) error {
	paths := remote.Paths{}
	if err := m.store.Write(ctx, paths.Screen(m.deviceID), record); err != nil {
		return err
	}
	return m.store.Write(ctx, paths.Pairing(record.PairingCode), record)
}

// watch attaches listeners to the registration record and the legacy
// code-keyed path.
func (m *Machine) watch(code string) error {
	paths := remote.Paths{}

	cancelRecord, err := m.store.Subscribe(paths.Screen(m.deviceID), m.handleRecordUpdate)
	if err != nil {
		return fmt.Errorf("watching registration record: %w", err)
	}
	m.cancelRecord = cancelRecord

	cancelLegacy, err := m.store.Subscribe(paths.Pairing(code), m.handleRecordUpdate)
	if err != nil {
		cancelRecord() //nolint:errcheck // Best effort cleanup on error path
		return fmt.Errorf("watching legacy pairing path: %w", err)
	}
	m.cancelLegacy = cancelLegacy
	return nil
}

// handleRecordUpdate processes a change to either watched path.
func (m *Machine) handleRecordUpdate(data []byte, err error) {
	if err != nil {
		m.logger.Warn("pairing listener error", "error", err)
		return
	}
	if data == nil {
		m.handleRecordDeleted()
		return
	}

	record, err := decodeScreenRecord(data)
	if err != nil {
		m.logger.Warn("dropping undecodable screen record", "error", err)
		return
	}
	// The legacy path can briefly hold another device's record after a
	// collision; only records for this device drive transitions.
	if record.UUID != "" && record.UUID != m.deviceID {
		return
	}

	m.applyRecord(record)
}

// applyRecord updates stored state and fires transition callbacks.
func (m *Machine) applyRecord(record ScreenRecord) {
	m.mu.Lock()
	oldState := m.state
	oldAssignment := m.record.CurrentPlaylistAssigned
	m.record = record
	m.hasRecord = true
	m.mu.Unlock()

	newState := stateFor(record)
	switch {
	case newState.Paired() && !oldState.Paired():
		m.transitionPaired(record)
	case !newState.Paired() && oldState.Paired():
		m.transitionRevoked()
	case newState.Paired() && record.CurrentPlaylistAssigned != oldAssignment:
		// Reassignment while paired.
		m.mu.Lock()
		m.state = newState
		m.mu.Unlock()
		m.logger.Info("playlist assignment changed",
			"playlist", record.CurrentPlaylistAssigned,
		)
		if m.onAssignment != nil {
			m.onAssignment(record.CurrentPlaylistAssigned)
		}
	}
}

// handleRecordDeleted re-registers after the control plane removes the
// record outright, treating deletion while paired as revocation.
func (m *Machine) handleRecordDeleted() {
	m.mu.Lock()
	wasPaired := m.state.Paired()
	code := m.code
	m.hasRecord = false
	m.mu.Unlock()

	if wasPaired {
		m.transitionRevoked()
	}

	m.logger.Warn("registration record deleted, re-registering")
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := m.register(ctx, code); err != nil {
		m.logger.Error("re-registration failed", "error", err)
	}
}

// transitionPaired moves the machine to the appropriate paired state.
func (m *Machine) transitionPaired(record ScreenRecord) {
	m.mu.Lock()
	m.state = stateFor(record)
	m.mu.Unlock()

	m.logger.Info("device paired", "playlist", record.CurrentPlaylistAssigned)
	if m.onPaired != nil {
		m.onPaired(record)
	}
	if m.onAssignment != nil {
		m.onAssignment(record.CurrentPlaylistAssigned)
	}
}

// transitionRevoked moves the machine back to unpaired and clears the
// local playlist mirror so revoked devices stop playing stale content.
func (m *Machine) transitionRevoked() {
	m.mu.Lock()
	m.state = StateUnpaired
	code := m.code
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := m.cache.Clear(ctx); err != nil {
		m.logger.Error("clearing cache after revocation failed", "error", err)
	}

	m.logger.Info("pairing revoked, awaiting pairing", "code", code)
	if m.onRevoked != nil {
		m.onRevoked()
	}
}

// startHeartbeat launches the liveness loop.
func (m *Machine) startHeartbeat() {
	ctx, cancel := context.WithCancel(context.Background())
	m.heartbeatCancel = cancel
	m.heartbeatDone = make(chan struct{})

	go func() {
		defer close(m.heartbeatDone)

		ticker := time.NewTicker(m.cfg.HeartbeatInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.heartbeat(ctx)
			}
		}
	}()
}

// heartbeat writes a liveness update while paired. Failures are logged and
// dropped; the next tick tries again.
func (m *Machine) heartbeat(ctx context.Context) {
	m.mu.Lock()
	if !m.state.Paired() || !m.hasRecord {
		m.mu.Unlock()
		return
	}
	record := m.record
	m.mu.Unlock()

	record.LastHeartbeat = m.now().UnixMilli()
	record.Status = "online"

	writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	if err := m.store.Write(writeCtx, remote.Paths{}.Screen(m.deviceID), record); err != nil {
		m.logger.Warn("heartbeat write failed", "error", err)
		return
	}

	m.mu.Lock()
	m.record = record
	m.mu.Unlock()
}
