package config

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// loadError wraps every loader failure logged by a Manager (spec §7's
// ConfigLoad category).
type loadError struct {
	err error
}

func (e *loadError) Error() string { return fmt.Sprintf("config: load failed: %v", e.err) }
func (e *loadError) Unwrap() error { return e.err }

// Manager is the ConfigLoader component (spec §4.4): it produces
// Config snapshots, optionally on a fixed reload interval, publishing
// each one with an atomic whole-object swap so readers never need a
// lock and never see a half-written snapshot (spec §5, §9).
type Manager struct {
	loader         Loader
	logger         zerolog.Logger
	reloadInterval time.Duration

	current  atomic.Pointer[Snapshot]
	disposed atomic.Bool

	stop   chan struct{}
	wg     sync.WaitGroup
	stopOnce sync.Once
}

// NewManager builds a Manager. reloadInterval <= 0 means static mode:
// loader is called exactly once, in Start, and never again.
func NewManager(loader Loader, reloadInterval time.Duration, logger zerolog.Logger) *Manager {
	return &Manager{
		loader:         loader,
		logger:         logger,
		reloadInterval: reloadInterval,
		stop:           make(chan struct{}),
	}
}

// Start performs the initial load and, in dynamic mode, schedules
// periodic reloads. The initial load's error is returned to the
// caller; a failed initial load still leaves the Manager usable
// (Current returns nil, and callers — namely the engine — treat that
// as an empty rule set per spec §7).
func (m *Manager) Start(ctx context.Context) error {
	if err := m.reload(ctx); err != nil {
		if m.reloadInterval > 0 {
			m.wg.Add(1)
			go m.reloadLoop()
		}
		return err
	}

	if m.reloadInterval > 0 {
		m.wg.Add(1)
		go m.reloadLoop()
	}
	return nil
}

func (m *Manager) reloadLoop() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.reloadInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			// Reload failures are logged and swallowed (spec §4.4):
			// the last good snapshot stays current.
			_ = m.reload(context.Background())
		}
	}
}

func (m *Manager) reload(ctx context.Context) error {
	snap, err := m.loader.Load(ctx)
	if err != nil {
		wrapped := &loadError{err: err}
		m.logger.Error().Err(wrapped).Msg("config reload failed, keeping last good snapshot")
		return wrapped
	}

	// An in-flight load that completes after Dispose must be
	// discarded (spec §4.4's cancellation clause) rather than
	// resurrecting a snapshot after the owning engine is gone.
	if m.disposed.Load() {
		return nil
	}

	m.current.Store(snap)
	return nil
}

// Current returns the current Snapshot without locking, or nil if no
// load has ever succeeded.
func (m *Manager) Current() *Snapshot {
	return m.current.Load()
}

// Dispose stops scheduling further reloads. It does not cancel a
// reload already in flight; reload() itself discards that result.
func (m *Manager) Dispose() {
	m.disposed.Store(true)
	m.stopOnce.Do(func() { close(m.stop) })
	m.wg.Wait()
}
