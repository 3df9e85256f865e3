package netmon

import (
	"context"
	"net"
	"sync"
	"time"
)

// Logger interface for optional logging support.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
}

// noopLogger is used when no logger is configured.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}

// Config holds the monitor's probe parameters.
type Config struct {
	// Interval between connectivity probes.
	Interval time.Duration

	// ProbeAddress is the host:port dialed to test reachability.
	ProbeAddress string

	// ProbeTimeout bounds each dial attempt.
	ProbeTimeout time.Duration
}

// Monitor polls for network reachability and reports transitions.
//
// Reachability is tested by dialing a well-known address; a successful TCP
// connect means online. The monitor fires the change callback only on
// transitions, including the first probe after Start (unknown -> known).
type Monitor struct {
	cfg   Config
	probe func(ctx context.Context) bool

	mu       sync.RWMutex
	online   bool
	known    bool
	onChange func(online bool)

	cancel context.CancelFunc
	done   chan struct{}

	logger Logger
}

// New creates a Monitor with the given probe parameters.
func New(cfg Config) *Monitor {
	m := &Monitor{
		cfg:    cfg,
		logger: noopLogger{},
	}
	m.probe = m.dialProbe
	return m
}

// SetLogger sets a logger for state transition logging.
func (m *Monitor) SetLogger(logger Logger) {
	if logger != nil {
		m.logger = logger
	}
}

// SetOnChange sets the callback fired on connectivity transitions.
// Must be called before Start. The callback runs on the monitor's
// goroutine and must not block.
func (m *Monitor) SetOnChange(callback func(online bool)) {
	m.mu.Lock()
	m.onChange = callback
	m.mu.Unlock()
}

// Start begins the probe loop. The first probe runs immediately so callers
// learn the initial state without waiting a full interval.
func (m *Monitor) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})

	go m.run(ctx)
}

// Stop halts the probe loop and waits for it to exit.
func (m *Monitor) Stop() {
	if m.cancel == nil {
		return
	}
	m.cancel()
	<-m.done
}

// Online returns the most recent probe result.
// Returns false until the first probe completes.
func (m *Monitor) Online() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.online
}

// run is the probe loop.
func (m *Monitor) run(ctx context.Context) {
	defer close(m.done)

	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	m.check(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.check(ctx)
		}
	}
}

// check runs one probe and fires the callback on a transition.
func (m *Monitor) check(ctx context.Context) {
	online := m.probe(ctx)

	m.mu.Lock()
	changed := !m.known || online != m.online
	m.known = true
	m.online = online
	callback := m.onChange
	m.mu.Unlock()

	if !changed {
		return
	}

	if online {
		m.logger.Info("network reachable", "probe", m.cfg.ProbeAddress)
	} else {
		m.logger.Info("network unreachable", "probe", m.cfg.ProbeAddress)
	}
	if callback != nil {
		callback(online)
	}
}

// dialProbe tests reachability with a bounded TCP dial.
func (m *Monitor) dialProbe(ctx context.Context) bool {
	dialer := net.Dialer{Timeout: m.cfg.ProbeTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", m.cfg.ProbeAddress)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}
