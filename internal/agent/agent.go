package agent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/linkitmedia/signage-core/internal/cache"
	"github.com/linkitmedia/signage-core/internal/identity"
	"github.com/linkitmedia/signage-core/internal/infrastructure/config"
	"github.com/linkitmedia/signage-core/internal/infrastructure/database"
	"github.com/linkitmedia/signage-core/internal/infrastructure/logging"
	"github.com/linkitmedia/signage-core/internal/infrastructure/remote"
	"github.com/linkitmedia/signage-core/internal/netmon"
	"github.com/linkitmedia/signage-core/internal/pairing"
	"github.com/linkitmedia/signage-core/internal/playlist"
	"github.com/linkitmedia/signage-core/internal/rotation"
)

// Agent wires the device's subsystems together and owns their lifecycles.
//
// Startup is offline-first: the rotation engine begins playing the cached
// playlist (if any) before any network work happens. The control-plane
// connection is established lazily on the first online transition, and every
// remote subsystem tolerates losing it again.
type Agent struct {
	cfg      *config.Config
	logger   *logging.Logger
	db       *database.DB
	renderer rotation.Renderer

	repo     *cache.Repository
	engine   *rotation.Engine
	monitor  *netmon.Monitor
	deviceID string

	mu       sync.Mutex
	client   *remote.Client
	store    *remote.Store
	machine  *pairing.Machine
	syncer   *playlist.SyncClient
	remoteUp bool

	// runCtx lives for the whole agent run; remote subsystems started
	// from callbacks inherit it.
	runCtx    context.Context
	runCancel context.CancelFunc

	// connect and retryBase are overridable in tests.
	connect   func() error
	retryBase time.Duration
}

// Control-plane connect retry bounds. The transport reconnects on its own
// once established; these cover the initial connection never succeeding.
const (
	connectRetryInitial = 5 * time.Second
	connectRetryMax     = 2 * time.Minute
)

// New creates an agent from its infrastructure dependencies.
func New(cfg *config.Config, logger *logging.Logger, db *database.DB, renderer rotation.Renderer) *Agent {
	return &Agent{
		cfg:      cfg,
		logger:   logger,
		db:       db,
		renderer: renderer,
	}
}

// Start brings the agent up.
//
// Order matters: local subsystems first so the screen is never blank waiting
// for the network.
//
//  1. Resolve the device identity
//  2. Start the rotation engine and stage the cached playlist
//  3. Start the network monitor; its first online transition triggers the
//     control-plane connection
//
// Returns:
//   - error: If identity cannot be resolved (the only hard requirement)
func (a *Agent) Start(ctx context.Context) error {
	a.runCtx, a.runCancel = context.WithCancel(context.Background())
	if a.connect == nil {
		a.connect = a.connectRemote
	}
	if a.retryBase == 0 {
		a.retryBase = connectRetryInitial
	}

	a.repo = cache.NewRepository(a.db)

	deviceID, err := identity.New(a.cfg.Device.Serial, a.repo).DeviceID(ctx)
	if err != nil {
		return fmt.Errorf("resolving device identity: %w", err)
	}
	a.deviceID = deviceID
	a.logger.Info("device identity resolved", "device_id", deviceID)

	a.engine = rotation.NewEngine(a.renderer, a.cfg.Playback.PlaceholderText)
	a.engine.SetLogger(a.logger.With("component", "rotation"))
	a.engine.Start(a.runCtx)

	a.stageCachedPlaylist(ctx)

	a.monitor = netmon.New(netmon.Config{
		Interval:     a.cfg.GetCheckInterval(),
		ProbeAddress: a.cfg.Network.ProbeAddress,
		ProbeTimeout: a.cfg.GetProbeTimeout(),
	})
	a.monitor.SetLogger(a.logger.With("component", "netmon"))
	a.monitor.SetOnChange(a.handleConnectivityChange)
	a.monitor.Start(a.runCtx)

	return nil
}

// Stop tears the agent down in reverse dependency order.
func (a *Agent) Stop() {
	a.monitor.Stop()

	a.mu.Lock()
	machine := a.machine
	syncer := a.syncer
	client := a.client
	a.mu.Unlock()

	if syncer != nil {
		if err := syncer.Stop(); err != nil && err != playlist.ErrNotStarted {
			a.logger.Warn("stopping playlist sync", "error", err)
		}
	}
	if machine != nil {
		if err := machine.Stop(); err != nil {
			a.logger.Warn("stopping pairing machine", "error", err)
		}
	}
	if client != nil {
		if err := client.Close(a.deviceID); err != nil {
			a.logger.Warn("closing remote connection", "error", err)
		}
	}

	a.engine.Stop()
	a.runCancel()
}

// stageCachedPlaylist resumes playback from the offline mirror.
func (a *Agent) stageCachedPlaylist(ctx context.Context) {
	cached, err := a.repo.ReadAll(ctx)
	if err != nil {
		a.logger.Error("reading cached playlist", "error", err)
		return
	}
	if len(cached) == 0 {
		a.logger.Info("no cached playlist, showing placeholder")
		return
	}

	a.engine.Stage(playlist.FromCacheItems(cached))
	a.logger.Info("resumed cached playlist", "items", len(cached))
}

// handleConnectivityChange reacts to network transitions. The first online
// transition starts the control-plane connect loop; later transitions are
// handled by the transport's own reconnect logic.
func (a *Agent) handleConnectivityChange(online bool) {
	if !online {
		return
	}

	a.mu.Lock()
	starting := !a.remoteUp
	a.remoteUp = true
	a.mu.Unlock()

	if !starting {
		return
	}

	// Connecting can take seconds; keep the monitor's goroutine free.
	go a.connectLoop()
}

// connectLoop retries the control-plane connection with doubling backoff
// until it succeeds or the agent stops. A reachable network with an
// unreachable broker must not strand the device on cached content forever.
func (a *Agent) connectLoop() {
	backoff := a.retryBase
	for {
		err := a.connect()
		if err == nil {
			return
		}
		a.logger.Error("control-plane connection failed",
			"error", err,
			"retry_in", backoff,
		)

		select {
		case <-a.runCtx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > connectRetryMax {
			backoff = connectRetryMax
		}
	}
}

// connectRemote brings up the control-plane connection, the pairing machine,
// and (via the paired callback) the playlist sync client.
func (a *Agent) connectRemote() error {
	client, err := remote.Connect(a.cfg.Remote, a.deviceID)
	if err != nil {
		return err
	}
	client.SetLogger(a.logger.With("component", "remote"))
	client.SetOnDisconnect(func(err error) {
		a.logger.Warn("control-plane connection lost", "error", err)
	})
	client.SetOnConnect(func() {
		a.logger.Info("control-plane connection established")
	})

	store := remote.NewStore(client, a.cfg.Remote)

	machine := pairing.NewMachine(store, a.repo, a.repo, a.deviceID, pairing.Config{
		HeartbeatInterval:    a.cfg.GetHeartbeatInterval(),
		RegistrationAttempts: a.cfg.Pairing.RegistrationAttempts,
		DeviceName:           a.cfg.Device.Name,
	})
	machine.SetLogger(a.logger.With("component", "pairing"))
	machine.SetOnPaired(a.handlePaired)
	machine.SetOnAssignment(a.handleAssignment)
	machine.SetOnRevoked(a.handleRevoked)

	syncer := playlist.NewSyncClient(store, a.repo, a.engine, a.cfg.Playback.DefaultDurationMS)
	syncer.SetLogger(a.logger.With("component", "sync"))

	a.mu.Lock()
	a.client = client
	a.store = store
	a.machine = machine
	a.syncer = syncer
	a.mu.Unlock()

	if err := machine.Start(a.runCtx); err != nil {
		return fmt.Errorf("starting pairing: %w", err)
	}

	if !machine.CurrentState().Paired() {
		a.engine.SetPlaceholder(pairingPlaceholder(machine.Code()))
	}
	return nil
}

// handlePaired resets the placeholder once an operator claims the device.
// The assignment callback that follows drives the playlist sync.
func (a *Agent) handlePaired(record pairing.ScreenRecord) {
	a.engine.SetPlaceholder(a.cfg.Playback.PlaceholderText)
	a.logger.Info("device paired", "playlist", record.CurrentPlaylistAssigned)
}

// handleAssignment follows the playlist assignment on the device record.
// An empty ID means paired with nothing to play.
func (a *Agent) handleAssignment(playlistID string) {
	a.mu.Lock()
	syncer := a.syncer
	a.mu.Unlock()

	if playlistID == "" {
		a.logger.Info("no playlist assigned")
		syncer.Unassign(a.runCtx)
		return
	}

	a.logger.Info("playlist assigned", "playlist", playlistID)
	if err := syncer.Watch(a.runCtx, playlistID); err != nil {
		a.logger.Error("watching assigned playlist", "error", err, "playlist", playlistID)
	}
}

// handleRevoked stops sync and returns the screen to the pairing code. The
// pairing machine has already cleared the cache.
func (a *Agent) handleRevoked() {
	a.mu.Lock()
	syncer := a.syncer
	machine := a.machine
	a.mu.Unlock()

	if err := syncer.Stop(); err != nil && err != playlist.ErrNotStarted {
		a.logger.Warn("stopping playlist sync after revocation", "error", err)
	}

	a.engine.Stage(nil)
	a.engine.SetPlaceholder(pairingPlaceholder(machine.Code()))
}

// pairingPlaceholder renders the claim prompt shown while unpaired.
func pairingPlaceholder(code string) string {
	return "Pairing code: " + code
}
