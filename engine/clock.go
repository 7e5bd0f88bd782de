package engine

import (
	"sync"
	"sync/atomic"
	"time"
)

// Clock abstracts wall time so schedulers can run against a virtual clock in
// tests instead of sleeping.
type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) Ticker
}

// Ticker is the minimal surface of time.Ticker the scheduler needs.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type realClock struct{}

// RealClock returns the wall-clock implementation.
func RealClock() Clock { return realClock{} }

func (realClock) Now() time.Time { return time.Now() }

func (realClock) NewTicker(d time.Duration) Ticker {
	return &realTicker{t: time.NewTicker(d)}
}

type realTicker struct{ t *time.Ticker }

func (rt *realTicker) C() <-chan time.Time { return rt.t.C }
func (rt *realTicker) Stop()               { rt.t.Stop() }

// VirtualClock is a manually advanced clock. Advance moves time forward and
// fires any tickers whose intervals elapsed; like time.Ticker, a ticker that
// was not drained holds at most one pending tick.
type VirtualClock struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*virtualTicker
}

func NewVirtualClock(start time.Time) *VirtualClock {
	return &VirtualClock{now: start}
}

func (vc *VirtualClock) Now() time.Time {
	vc.mu.Lock()
	defer vc.mu.Unlock()
	return vc.now
}

func (vc *VirtualClock) NewTicker(d time.Duration) Ticker {
	vc.mu.Lock()
	defer vc.mu.Unlock()

	vt := &virtualTicker{
		ch:       make(chan time.Time, 1),
		interval: d,
		next:     vc.now.Add(d),
	}
	vc.tickers = append(vc.tickers, vt)
	return vt
}

// Advance moves the clock forward by d, delivering due ticks along the way.
func (vc *VirtualClock) Advance(d time.Duration) {
	vc.mu.Lock()
	defer vc.mu.Unlock()

	target := vc.now.Add(d)
	for _, vt := range vc.tickers {
		if vt.stopped.Load() {
			continue
		}
		for !vt.next.After(target) {
			select {
			case vt.ch <- vt.next:
			default:
				// Undrained ticker: drop, same as time.Ticker.
			}
			vt.next = vt.next.Add(vt.interval)
		}
	}
	vc.now = target
}

type virtualTicker struct {
	ch       chan time.Time
	interval time.Duration
	next     time.Time
	stopped  atomic.Bool
}

func (vt *virtualTicker) C() <-chan time.Time { return vt.ch }
func (vt *virtualTicker) Stop()               { vt.stopped.Store(true) }
