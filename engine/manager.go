// Package engine owns the strategy lifecycle: validation at start, one
// scheduler goroutine per running strategy, the state machine, and the
// structured events the reporting layer subscribes to.
package engine

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/rustyeddy/autotrader/indicators"
	"github.com/rustyeddy/autotrader/journal"
	"github.com/rustyeddy/autotrader/market"
	"github.com/rustyeddy/autotrader/metrics"
	"github.com/rustyeddy/autotrader/portfolio"
	"github.com/rustyeddy/autotrader/risk"
	"github.com/rustyeddy/autotrader/rules"
	"github.com/rustyeddy/autotrader/sim"
)

// Options configures a Manager. Provider is required; everything else has a
// working default.
type Options struct {
	Provider market.Provider
	Journal  journal.Journal
	Clock    Clock
	Logger   *zap.Logger

	// GlobalLimits caps every strategy's risk profile. Zero fields are
	// unenforced.
	GlobalLimits risk.Limits

	// RiskFreeRate is the per-period risk-free rate used by ratio metrics.
	RiskFreeRate float64

	// EventBuffer sizes each subscriber's event channel.
	EventBuffer int
}

// Manager owns every strategy handle. There is no ambient registry: anything
// that wants to control or inspect strategies holds a *Manager.
type Manager struct {
	mu         sync.RWMutex
	strategies map[string]*strategy

	provider market.Provider
	journal  journal.Journal
	clock    Clock
	logger   *zap.Logger
	bus      *Bus
	global   risk.Limits
	riskFree float64
}

// strategy is one runtime handle: immutable config plus the mutable status
// fields guarded by mu. The evaluator, simulator, volatility trackers, trade
// ledger, and prev-price map are touched only by the runner goroutine.
type strategy struct {
	cfg  StrategyConfig
	pf   *portfolio.Portfolio
	eval *rules.Evaluator
	exec *sim.Simulator

	vols   map[string]*indicators.Volatility
	prev   map[string]float64
	trades []metrics.ClosedTrade

	mu        sync.Mutex
	state     State
	lastTick  time.Time
	lastErr   error
	risk      metrics.RiskSnapshot
	consecErr int

	ticks    atomic.Uint64
	dropped  atomic.Uint64
	stopCh   chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// Status is the externally visible condition of one strategy. It reflects
// the latest committed tick; reading it never waits on a tick in flight.
type Status struct {
	ID        string
	Name      string
	State     State
	LastTick  time.Time
	Ticks     uint64
	// DroppedTicks counts ticks skipped because the previous one was still
	// in flight when they fired.
	DroppedTicks uint64
	LastError    string
	Risk         metrics.RiskSnapshot
}

func NewManager(opts Options) (*Manager, error) {
	if opts.Provider == nil {
		return nil, fmt.Errorf("engine: nil market data provider")
	}
	if opts.Journal == nil {
		opts.Journal = journal.Nop{}
	}
	if opts.Clock == nil {
		opts.Clock = RealClock()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Manager{
		strategies: make(map[string]*strategy),
		provider:   opts.Provider,
		journal:    opts.Journal,
		clock:      opts.Clock,
		logger:     opts.Logger,
		bus:        NewBus(opts.EventBuffer),
		global:     opts.GlobalLimits,
		riskFree:   opts.RiskFreeRate,
	}, nil
}

// Bus exposes the event stream for subscribers.
func (m *Manager) Bus() *Bus { return m.bus }

// Start validates cfg, registers the strategy against pf, and launches its
// scheduler goroutine. Strategies may share a portfolio; their fills are
// serialized on its lock.
func (m *Manager) Start(cfg StrategyConfig, pf *portfolio.Portfolio) error {
	if err := cfg.Validate(m.global); err != nil {
		return err
	}
	if pf == nil {
		return fmt.Errorf("%w: strategy %s has no portfolio", ErrValidation, cfg.ID)
	}
	cfg = cfg.withDefaults()

	s := &strategy{
		cfg:    cfg,
		pf:     pf,
		eval:   rules.NewEvaluator(cfg.Rules, cfg.Quantity),
		exec:   sim.New(cfg.SlippageBps),
		vols:   make(map[string]*indicators.Volatility, len(cfg.Symbols)),
		prev:   make(map[string]float64, len(cfg.Symbols)),
		state:  StateCreated,
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}
	for _, sym := range cfg.Symbols {
		s.vols[sym] = indicators.NewVolatility(cfg.VolWindow)
	}

	m.mu.Lock()
	if _, exists := m.strategies[cfg.ID]; exists {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrAlreadyRunning, cfg.ID)
	}
	m.strategies[cfg.ID] = s
	m.mu.Unlock()

	if err := m.transition(s, evStart, ""); err != nil {
		// Unreachable from CREATED, but keep the registry consistent.
		m.mu.Lock()
		delete(m.strategies, cfg.ID)
		m.mu.Unlock()
		return err
	}

	// The ticker is created here, not in the goroutine, so that a caller
	// advancing a virtual clock right after Start cannot miss the first tick.
	go m.run(s, m.clock.NewTicker(cfg.Interval))
	return nil
}

// Stop signals the strategy to stop before its next tick. A tick already in
// flight completes first. Stopping an already-terminal strategy is a no-op.
func (m *Manager) Stop(id string) error {
	s, err := m.get(id)
	if err != nil {
		return err
	}

	s.mu.Lock()
	terminal := Terminal(s.state)
	s.mu.Unlock()
	if terminal {
		return nil
	}

	s.stopOnce.Do(func() { close(s.stopCh) })
	return nil
}

// Pause suspends ticking without releasing the strategy's resources.
// Pausing an already-paused or terminal strategy is a no-op.
func (m *Manager) Pause(id string) error {
	s, err := m.get(id)
	if err != nil {
		return err
	}

	s.mu.Lock()
	st := s.state
	s.mu.Unlock()
	if st == StatePaused || Terminal(st) {
		return nil
	}
	return m.transition(s, evPause, "")
}

// Resume restarts ticking for a paused strategy. Resuming a running strategy
// is a no-op; resuming a terminal strategy fails.
func (m *Manager) Resume(id string) error {
	s, err := m.get(id)
	if err != nil {
		return err
	}

	s.mu.Lock()
	st := s.state
	s.mu.Unlock()
	switch {
	case st == StateRunning:
		return nil
	case Terminal(st):
		return fmt.Errorf("%w: resume from %s", ErrInvalidTransition, st)
	}
	return m.transition(s, evResume, "")
}

// Status reports the latest committed state for id.
func (m *Manager) Status(id string) (Status, error) {
	s, err := m.get(id)
	if err != nil {
		return Status{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{
		ID:           s.cfg.ID,
		Name:         s.cfg.Name,
		State:        s.state,
		LastTick:     s.lastTick,
		Ticks:        s.ticks.Load(),
		DroppedTicks: s.dropped.Load(),
		Risk:         s.risk,
	}
	if s.lastErr != nil {
		st.LastError = s.lastErr.Error()
	}
	return st, nil
}

// StopAll signals every strategy to stop and waits up to the longest tick
// interval for their goroutines to finish. A tick in flight is allowed to
// complete, so the grace period is inherently bounded by one tick interval.
// It returns the ids that failed to stop in time.
func (m *Manager) StopAll() []string {
	m.mu.RLock()
	handles := make([]*strategy, 0, len(m.strategies))
	for _, s := range m.strategies {
		handles = append(handles, s)
	}
	m.mu.RUnlock()

	var grace time.Duration
	for _, s := range handles {
		s.stopOnce.Do(func() { close(s.stopCh) })
		if s.cfg.Interval > grace {
			grace = s.cfg.Interval
		}
	}

	deadline := time.After(grace)
	var failed []string
	for _, s := range handles {
		select {
		case <-s.done:
		case <-deadline:
			s.mu.Lock()
			if !Terminal(s.state) {
				failed = append(failed, s.cfg.ID)
			}
			s.mu.Unlock()
		}
	}
	return failed
}

// Remove deletes a terminal strategy's handle so its id can be configured
// and started again.
func (m *Manager) Remove(id string) error {
	s, err := m.get(id)
	if err != nil {
		return err
	}

	s.mu.Lock()
	terminal := Terminal(s.state)
	s.mu.Unlock()
	if !terminal {
		return fmt.Errorf("%w: remove requires a stopped or errored strategy", ErrInvalidTransition)
	}

	m.mu.Lock()
	delete(m.strategies, id)
	m.mu.Unlock()
	return nil
}

func (m *Manager) get(id string) (*strategy, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.strategies[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownStrategy, id)
	}
	return s, nil
}

// transition applies one lifecycle event under the strategy's lock and
// publishes the state change.
func (m *Manager) transition(s *strategy, ev lifecycleEvent, reason string) error {
	s.mu.Lock()
	from := s.state
	to, ok := next(from, ev)
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s on %s", ErrInvalidTransition, ev, from)
	}
	s.state = to
	s.mu.Unlock()

	m.logger.Info("strategy state changed",
		zap.String("strategy", s.cfg.ID),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
		zap.String("reason", reason))

	m.bus.Publish(Event{
		Type:       EventStateChanged,
		StrategyID: s.cfg.ID,
		Time:       m.clock.Now(),
		From:       from,
		To:         to,
		Reason:     reason,
	})
	return nil
}
