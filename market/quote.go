// Package market defines market-data types and the provider interface the
// engine consumes. Providers never fabricate prices: a quote that is older
// than the caller's staleness window is returned flagged stale, and a symbol
// with no quote at all is simply absent from the snapshot.
package market

import "time"

// Quote is the last observed trade/price for one symbol.
type Quote struct {
	Symbol string
	Price  float64
	Volume float64
	Time   time.Time
}

// Snapshot is market data for a set of symbols as of one instant.
type Snapshot struct {
	AsOf   time.Time
	Quotes map[string]Quote
	Stale  map[string]bool
}

// Quote returns the quote for symbol and whether one exists.
func (s Snapshot) Quote(symbol string) (Quote, bool) {
	q, ok := s.Quotes[symbol]
	return q, ok
}

// IsStale reports whether the symbol's quote is present but too old to trade on.
func (s Snapshot) IsStale(symbol string) bool {
	return s.Stale[symbol]
}

// Fresh reports whether the symbol has a usable (present and not stale) quote.
func (s Snapshot) Fresh(symbol string) bool {
	_, ok := s.Quotes[symbol]
	return ok && !s.Stale[symbol]
}
