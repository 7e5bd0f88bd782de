package market

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Provider serves point-in-time snapshots for a symbol universe.
//
// maxAge is the staleness window: a quote older than maxAge relative to asOf
// is included in the snapshot but flagged stale. Missing symbols are omitted
// entirely. Neither condition is an error.
type Provider interface {
	GetSnapshot(ctx context.Context, symbols []string, asOf time.Time, maxAge time.Duration) (Snapshot, error)
}

var ErrNoQuote = errors.New("market: no quote for symbol")

// QuoteStore is a concurrency-safe last-quote cache keyed by symbol.
type QuoteStore struct {
	mu     sync.RWMutex
	quotes map[string]Quote
}

func NewQuoteStore() *QuoteStore {
	return &QuoteStore{quotes: make(map[string]Quote)}
}

func (qs *QuoteStore) Set(q Quote) {
	qs.mu.Lock()
	defer qs.mu.Unlock()
	qs.quotes[q.Symbol] = q
}

func (qs *QuoteStore) Get(symbol string) (Quote, error) {
	qs.mu.RLock()
	defer qs.mu.RUnlock()
	q, ok := qs.quotes[symbol]
	if !ok {
		return Quote{}, ErrNoQuote
	}
	return q, nil
}

// Snapshot assembles a snapshot from the cache, marking quotes older than
// maxAge as stale. A maxAge of zero disables staleness marking.
func (qs *QuoteStore) Snapshot(symbols []string, asOf time.Time, maxAge time.Duration) Snapshot {
	qs.mu.RLock()
	defer qs.mu.RUnlock()

	snap := Snapshot{
		AsOf:   asOf,
		Quotes: make(map[string]Quote, len(symbols)),
		Stale:  make(map[string]bool),
	}
	for _, sym := range symbols {
		q, ok := qs.quotes[sym]
		if !ok {
			continue
		}
		snap.Quotes[sym] = q
		if maxAge > 0 && asOf.Sub(q.Time) > maxAge {
			snap.Stale[sym] = true
		}
	}
	return snap
}
