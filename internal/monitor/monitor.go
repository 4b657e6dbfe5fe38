// Package monitor watches the launcher and game processes and drives the
// display switch: the enabled resolution is applied while the game runs
// and the default restored when it exits.
package monitor

import (
	"context"
	"time"

	"modeswitch/internal/config"
	"modeswitch/internal/logging"
)

// State is the monitor's position in the launch cycle.
type State int

const (
	// StateIdle: neither process is running.
	StateIdle State = iota

	// StateLaunched: the launcher is up, the game is not yet.
	StateLaunched

	// StateInGame: the game process is running.
	StateInGame
)

func (s State) String() string {
	switch s {
	case StateLaunched:
		return "launched"
	case StateInGame:
		return "in-game"
	default:
		return "idle"
	}
}

// Switcher applies a display resolution.
type Switcher interface {
	Apply(res config.Resolution) error
}

// ProcessChecker reports whether a named process is currently running.
type ProcessChecker interface {
	Running(name string) (bool, error)
}

// Monitor runs the poll loop.
type Monitor struct {
	store    *config.Store
	switcher Switcher
	procs    ProcessChecker
	log      *logging.Logger

	// OnEnable fires after the enabled resolution is applied, OnRestore
	// after the default is restored. Either may be nil.
	OnEnable  func()
	OnRestore func()

	state State
}

// New creates a monitor over the given collaborators.
func New(store *config.Store, switcher Switcher, procs ProcessChecker, log *logging.Logger) *Monitor {
	if log == nil {
		log = logging.NullLogger
	}
	return &Monitor{
		store:    store,
		switcher: switcher,
		procs:    procs,
		log:      log.WithComponent("monitor"),
	}
}

// State returns the current cycle state.
func (m *Monitor) State() State { return m.state }

// Run polls until ctx is canceled. If the loop stops while the game is
// still running, the default resolution is restored on the way out.
func (m *Monitor) Run(ctx context.Context) error {
	interval := time.Duration(m.store.Get().PollIntervalMS) * time.Millisecond
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	m.log.Info("watching launcher=%q game=%q every %s",
		m.store.Get().LauncherProcess, m.store.Get().GameProcess, interval)

	for {
		select {
		case <-ctx.Done():
			if m.state == StateInGame {
				m.restore()
			}
			return ctx.Err()
		case <-ticker.C:
			m.Tick()
		}
	}
}

// Tick runs one observation and transition. Exposed so the loop body is
// testable without timing.
func (m *Monitor) Tick() {
	cfg := m.store.Get()

	gameUp, err := m.procs.Running(cfg.GameProcess)
	if err != nil {
		m.log.Warn("process check failed for %q: %v", cfg.GameProcess, err)
		return
	}

	var launcherUp bool
	if !gameUp {
		launcherUp, err = m.procs.Running(cfg.LauncherProcess)
		if err != nil {
			m.log.Warn("process check failed for %q: %v", cfg.LauncherProcess, err)
			return
		}
	}

	next := StateIdle
	switch {
	case gameUp:
		next = StateInGame
	case launcherUp:
		next = StateLaunched
	}

	if next == m.state {
		return
	}

	m.log.Info("state %s -> %s", m.state, next)

	entered := m.state != StateInGame && next == StateInGame
	left := m.state == StateInGame && next != StateInGame
	m.state = next

	if entered {
		m.enable()
	}
	if left {
		m.restore()
	}
}

func (m *Monitor) enable() {
	res, ok := m.store.EnabledResolution()
	if !ok {
		m.log.Warn("no enabled resolution configured, not switching")
	} else if err := m.switcher.Apply(res); err != nil {
		m.log.Error("applying %s failed: %v", res, err)
	} else {
		m.log.Info("applied %s", res)
	}

	if m.OnEnable != nil {
		m.OnEnable()
	}
}

func (m *Monitor) restore() {
	res := m.store.Get().Default
	if res.IsZero() {
		m.log.Warn("no default resolution configured, not restoring")
	} else if err := m.switcher.Apply(res); err != nil {
		m.log.Error("restoring %s failed: %v", res, err)
	} else {
		m.log.Info("restored %s", res)
	}

	if m.OnRestore != nil {
		m.OnRestore()
	}
}
