package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Mschirtzinger/pushy/internal/events"
)

// DefaultDelay is the default pause between scan cycles.
const DefaultDelay = time.Second

// Config holds configuration for the monitor.
type Config struct {
	// Delay is the pause between scan cycles. Must be positive.
	Delay time.Duration

	// MaxHot bounds the number of hot files.
	MaxHot int

	// Hotness is how many hot-only cycles run between full scans.
	Hotness int

	// Rules are the directory and file ignore patterns.
	Rules Rules

	// IgnoreFile names a gitignore-style pattern file read from each tracked
	// root. Empty disables it.
	IgnoreFile string

	// Logger for monitor activity.
	Logger zerolog.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Delay:      DefaultDelay,
		MaxHot:     DefaultMaxHot,
		Hotness:    DefaultHotness,
		Rules:      DefaultRules(),
		IgnoreFile: DefaultIgnoreFile,
		Logger:     zerolog.Nop(),
	}
}

// ScanKind tells which pass a cycle ran.
type ScanKind int

const (
	// FullScan checked every tracked directory and file.
	FullScan ScanKind = iota
	// HotScan checked only the hot set.
	HotScan
)

// String returns a human-readable representation of the scan kind.
func (k ScanKind) String() string {
	switch k {
	case FullScan:
		return "full"
	case HotScan:
		return "hot"
	default:
		return "unknown"
	}
}

// Stats is a point-in-time summary of the monitor, safe to read from any
// goroutine.
type Stats struct {
	Dirs      int    `json:"dirs"`
	Files     int    `json:"files"`
	Hot       int    `json:"hot"`
	Cycles    uint64 `json:"cycles"`
	FullScans uint64 `json:"full_scans"`
	HotScans  uint64 `json:"hot_scans"`
	Events    uint64 `json:"events"`
}

// Settings carries values that may change while the monitor runs. Nil or
// zero fields are left unchanged.
type Settings struct {
	Rules *Rules
	Delay time.Duration
}

// Monitor polls a directory tree and fires change events on a bus.
//
// The registry and hot set are only touched by the goroutine that calls
// Track, Cycle and Run. Stats and Reload may be called from anywhere.
type Monitor struct {
	cfg      Config
	bus      *events.Bus
	logger   zerolog.Logger
	registry *Registry
	filter   *Filter
	hot      *HotSet
	count    int
	events   uint64

	statsMu sync.Mutex
	stats   Stats

	pending chan Settings
}

// New creates a monitor that publishes on bus and subscribes its own hot-set
// bookkeeping to it.
func New(bus *events.Bus, cfg Config) (*Monitor, error) {
	if bus == nil {
		return nil, fmt.Errorf("bus cannot be nil")
	}
	if cfg.Delay <= 0 {
		return nil, fmt.Errorf("delay must be positive, got %s", cfg.Delay)
	}
	if cfg.MaxHot < 1 {
		return nil, fmt.Errorf("max hot must be at least 1, got %d", cfg.MaxHot)
	}
	if cfg.Hotness < 0 {
		return nil, fmt.Errorf("hotness cannot be negative, got %d", cfg.Hotness)
	}
	if cfg.Rules.Dirs == nil || cfg.Rules.Files == nil {
		cfg.Rules = DefaultRules()
	}

	m := &Monitor{
		cfg:      cfg,
		bus:      bus,
		logger:   cfg.Logger,
		registry: NewRegistry(),
		filter:   NewFilter(cfg.Rules, cfg.Logger),
		hot:      NewHotSet(),
		pending:  make(chan Settings, 1),
	}
	bus.Subscribe("hotset", m.observe)
	return m, nil
}

// Registry exposes the snapshot for inspection. It must only be used from
// the polling goroutine.
func (m *Monitor) Registry() *Registry {
	return m.registry
}

// HotSet exposes the hot set for inspection. It must only be used from the
// polling goroutine.
func (m *Monitor) HotSet() *HotSet {
	return m.hot
}

// LoadIgnoreFile reads the configured pattern file from root.
func (m *Monitor) LoadIgnoreFile(root string) error {
	return m.filter.LoadPatternFile(root, m.cfg.IgnoreFile)
}

// Cycle runs one scan cycle and reports which pass it ran.
//
// A full scan runs when the hot set is empty or more than Hotness hot-only
// cycles have passed since the last one; otherwise only hot files are checked.
func (m *Monitor) Cycle(ctx context.Context) ScanKind {
	m.count++
	kind := HotScan
	if m.count > m.cfg.Hotness || m.hot.Len() == 0 {
		kind = FullScan
		m.count = 0
		m.fullScan(ctx)
	} else {
		m.hotScan(ctx)
	}

	m.statsMu.Lock()
	m.stats.Cycles++
	if kind == FullScan {
		m.stats.FullScans++
	} else {
		m.stats.HotScans++
	}
	m.statsMu.Unlock()
	m.publishStats()

	m.logger.Trace().Stringer("scan", kind).Int("hot", m.hot.Len()).Msg("cycle complete")
	return kind
}

// Run cycles until ctx is cancelled, sleeping Delay between cycles. A cycle
// always runs to completion before cancellation is observed.
func (m *Monitor) Run(ctx context.Context) error {
	m.logger.Info().Dur("delay", m.cfg.Delay).Msg("monitor started")

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info().Msg("monitor stopped")
			return nil
		case <-timer.C:
		}

		m.applyPending()
		m.Cycle(ctx)
		timer.Reset(m.cfg.Delay)
	}
}

// Reload queues new settings. They are applied by the polling goroutine
// before its next cycle; a newer call replaces one not yet applied.
func (m *Monitor) Reload(s Settings) {
	for {
		select {
		case m.pending <- s:
			return
		default:
		}
		select {
		case <-m.pending:
		default:
		}
	}
}

func (m *Monitor) applyPending() {
	select {
	case s := <-m.pending:
		if s.Rules != nil && s.Rules.Dirs != nil && s.Rules.Files != nil {
			m.cfg.Rules = *s.Rules
			m.filter.SetRules(*s.Rules)
			m.logger.Info().
				Str("ignored_dirs", s.Rules.Dirs.String()).
				Str("ignored_files", s.Rules.Files.String()).
				Msg("ignore rules reloaded")
		}
		if s.Delay > 0 && s.Delay != m.cfg.Delay {
			m.cfg.Delay = s.Delay
			m.logger.Info().Dur("delay", s.Delay).Msg("delay reloaded")
		}
	default:
	}
}

// Stats returns the latest published summary.
func (m *Monitor) Stats() Stats {
	m.statsMu.Lock()
	defer m.statsMu.Unlock()
	return m.stats
}

func (m *Monitor) publishStats() {
	dirs, files := m.registry.Len()
	m.statsMu.Lock()
	m.stats.Dirs = dirs
	m.stats.Files = files
	m.stats.Hot = m.hot.Len()
	m.stats.Events = m.events
	m.statsMu.Unlock()
}

func (m *Monitor) fire(ctx context.Context, ev events.Event) {
	m.events++
	m.logger.Debug().Stringer("action", ev.Action).Stringer("kind", ev.Kind).Str("path", ev.Path).Msg("change detected")
	// Handler failures are logged by the bus and never stop the cycle.
	_ = m.bus.Fire(ctx, ev)
}

// observe keeps the hot set in step with file events.
//
// On overflow the registry-wide oldest file is evicted, which is not
// necessarily the oldest hot file. If that file is not hot, the hot set's
// own oldest entry goes instead so the capacity bound always holds.
func (m *Monitor) observe(_ context.Context, ev events.Event) error {
	if ev.Kind != events.File {
		return nil
	}
	if ev.Action == events.Deleted {
		m.hot.Remove(ev.Path)
		return nil
	}

	mtime, ok := m.registry.File(ev.Path)
	if !ok {
		return nil
	}
	m.hot.Put(ev.Path, mtime)
	m.logger.Debug().Str("path", ev.Path).Msg("adding hot file")

	for m.hot.Len() > m.cfg.MaxHot {
		victim := ""
		if oldest, ok := m.registry.OldestFile(); ok && m.hot.Contains(oldest.Path) {
			victim = oldest.Path
		} else if p, ok := m.hot.Oldest(); ok {
			victim = p
		}
		if victim == "" || !m.hot.Remove(victim) {
			break
		}
		m.logger.Debug().Str("path", victim).Msg("removing hot file")
	}
	return nil
}
