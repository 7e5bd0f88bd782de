package engine

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/rustyeddy/autotrader/metrics"
)

// EventType discriminates engine events.
type EventType string

const (
	EventStateChanged  EventType = "StrategyStateChanged"
	EventRiskBreach    EventType = "RiskBreach"
	EventTickCompleted EventType = "TickCompleted"
)

// Event is one structured notification for the reporting/notification layer.
// The engine never blocks on delivery.
type Event struct {
	Type       EventType
	StrategyID string
	Time       time.Time

	// StrategyStateChanged
	From State
	To   State

	// RiskBreach and error-driven state changes
	Reason string

	// TickCompleted
	Tick        uint64
	Risk        *metrics.RiskSnapshot
	Unpersisted bool
}

// Bus fans events out to subscribers over buffered channels. A subscriber
// that falls behind loses events rather than stalling the tick path; the
// drop count is observable.
type Bus struct {
	mu      sync.RWMutex
	subs    []chan Event
	buffer  int
	dropped atomic.Uint64
	closed  bool
}

func NewBus(buffer int) *Bus {
	if buffer <= 0 {
		buffer = 64
	}
	return &Bus{buffer: buffer}
}

// Subscribe registers a new subscriber channel.
func (b *Bus) Subscribe() <-chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, b.buffer)
	if b.closed {
		close(ch)
		return ch
	}
	b.subs = append(b.subs, ch)
	return ch
}

// Publish delivers the event to every subscriber without blocking.
func (b *Bus) Publish(ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			b.dropped.Add(1)
		}
	}
}

// Dropped returns how many events were lost to slow subscribers.
func (b *Bus) Dropped() uint64 {
	return b.dropped.Load()
}

// Close closes all subscriber channels. Publish becomes a no-op.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for _, ch := range b.subs {
		close(ch)
	}
	b.subs = nil
}
