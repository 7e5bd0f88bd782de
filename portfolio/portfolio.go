// Package portfolio holds the shared account state strategies trade against:
// cash, one position per symbol, and the append-only equity curve.
//
// The portfolio is single-writer, multi-reader. All mutation happens inside
// Commit, which serializes writers on a per-portfolio lock and applies the
// whole transaction or none of it. Readers take Snapshot copies and never
// hold the lock while working.
package portfolio

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// Position is the net holding for one symbol. Quantity is signed; a position
// at zero quantity is removed.
type Position struct {
	Symbol        string
	Quantity      float64
	AvgEntryPrice float64
}

// EquityPoint is one point of the append-only equity curve. The curve is
// never reordered or rewritten; a correction is appended as a later point.
type EquityPoint struct {
	Time  time.Time
	Value float64
}

// View is an immutable copy of portfolio state taken under the lock.
type View struct {
	Cash          float64
	Positions     map[string]Position
	Curve         []EquityPoint
	DayOpenEquity float64
}

// Equity returns the most recent equity-curve value.
func (v View) Equity() float64 {
	if len(v.Curve) == 0 {
		return v.Cash
	}
	return v.Curve[len(v.Curve)-1].Value
}

// DailyPnLPct is today's P&L relative to start-of-day equity.
func (v View) DailyPnLPct() float64 {
	if v.DayOpenEquity == 0 {
		return 0
	}
	return (v.Equity() - v.DayOpenEquity) / v.DayOpenEquity
}

// Exposure returns the absolute market value held in symbol at the given price.
func (v View) Exposure(symbol string, price float64) float64 {
	pos, ok := v.Positions[symbol]
	if !ok {
		return 0
	}
	value := pos.Quantity * price
	if value < 0 {
		return -value
	}
	return value
}

// Portfolio is the live account state.
type Portfolio struct {
	mu        sync.RWMutex
	cash      float64
	positions map[string]Position
	curve     []EquityPoint
	dayOpen   float64
	dayDate   time.Time
}

// New creates a portfolio with starting cash and seeds the equity curve.
func New(cash float64, now time.Time) *Portfolio {
	return &Portfolio{
		cash:      cash,
		positions: make(map[string]Position),
		curve:     []EquityPoint{{Time: now, Value: cash}},
		dayOpen:   cash,
		dayDate:   now.Truncate(24 * time.Hour),
	}
}

// Snapshot returns a copy of the current state. The curve shares its backing
// array with the live curve, which is safe because committed points are never
// rewritten.
func (p *Portfolio) Snapshot() View {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.viewLocked()
}

func (p *Portfolio) viewLocked() View {
	positions := make(map[string]Position, len(p.positions))
	for sym, pos := range p.positions {
		positions[sym] = pos
	}
	return View{
		Cash:          p.cash,
		Positions:     positions,
		Curve:         p.curve[:len(p.curve):len(p.curve)],
		DayOpenEquity: p.dayOpen,
	}
}

// ErrInsufficientCash rejects a buy whose cost exceeds available cash.
var ErrInsufficientCash = errors.New("portfolio: insufficient cash")

// Txn stages mutations against a copy of the portfolio. Nothing touches the
// live state until the Commit closure returns nil.
type Txn struct {
	cash      float64
	positions map[string]Position
	appends   []EquityPoint
	dayOpen   float64
	base      []EquityPoint
}

// Commit runs fn with exclusive ownership of the portfolio. If fn returns an
// error every staged change is discarded; otherwise all of them apply at
// once. The returned View reflects the committed state.
func (p *Portfolio) Commit(fn func(*Txn) error) (View, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	tx := &Txn{
		cash:      p.cash,
		positions: make(map[string]Position, len(p.positions)),
		dayOpen:   p.dayOpen,
		base:      p.curve[:len(p.curve):len(p.curve)],
	}
	for sym, pos := range p.positions {
		tx.positions[sym] = pos
	}

	if err := fn(tx); err != nil {
		return p.viewLocked(), err
	}

	p.cash = tx.cash
	p.positions = tx.positions
	p.curve = append(p.curve, tx.appends...)
	return p.viewLocked(), nil
}

// RollDay resets the start-of-day equity anchor when the calendar day has
// changed. Returns true if a new day began.
func (p *Portfolio) RollDay(now time.Time) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	day := now.Truncate(24 * time.Hour)
	if !day.After(p.dayDate) {
		return false
	}
	p.dayDate = day
	if n := len(p.curve); n > 0 {
		p.dayOpen = p.curve[n-1].Value
	}
	return true
}

// View returns the staged state as seen inside the transaction.
func (t *Txn) View() View {
	positions := make(map[string]Position, len(t.positions))
	for sym, pos := range t.positions {
		positions[sym] = pos
	}
	curve := t.base
	if len(t.appends) > 0 {
		curve = make([]EquityPoint, 0, len(t.base)+len(t.appends))
		curve = append(curve, t.base...)
		curve = append(curve, t.appends...)
	}
	return View{
		Cash:          t.cash,
		Positions:     positions,
		Curve:         curve,
		DayOpenEquity: t.dayOpen,
	}
}

// Cash returns staged cash.
func (t *Txn) Cash() float64 { return t.cash }

// Position returns the staged position for symbol.
func (t *Txn) Position(symbol string) (Position, bool) {
	pos, ok := t.positions[symbol]
	return pos, ok
}

// ApplyFill stages a signed-quantity fill at price and returns the realized
// P&L of any closed quantity. Adds extend the position at weighted-average
// cost; reductions realize P&L against the average; crossing through zero
// opens the remainder at the fill price.
func (t *Txn) ApplyFill(symbol string, quantity, price float64) (float64, error) {
	if quantity == 0 {
		return 0, fmt.Errorf("portfolio: zero-quantity fill for %s", symbol)
	}
	if price <= 0 {
		return 0, fmt.Errorf("portfolio: non-positive fill price %.4f for %s", price, symbol)
	}

	cost := quantity * price
	if cost > 0 && cost > t.cash {
		return 0, fmt.Errorf("%w: need %.2f, have %.2f", ErrInsufficientCash, cost, t.cash)
	}

	pos := t.positions[symbol]
	realized := 0.0

	switch {
	case pos.Quantity == 0 || sameSign(pos.Quantity, quantity):
		total := pos.Quantity + quantity
		pos.AvgEntryPrice = (pos.Quantity*pos.AvgEntryPrice + quantity*price) / total
		pos.Quantity = total
	default:
		closed := quantity
		if abs(quantity) > abs(pos.Quantity) {
			closed = -pos.Quantity
		}
		// Realized P&L on the closed quantity, signed by position direction.
		realized = -closed * (price - pos.AvgEntryPrice)
		remainder := pos.Quantity + quantity
		if remainder == 0 {
			pos.Quantity = 0
		} else if sameSign(remainder, pos.Quantity) {
			pos.Quantity = remainder
		} else {
			// Flipped through zero: remainder is a fresh position at price.
			pos.Quantity = remainder
			pos.AvgEntryPrice = price
		}
	}

	t.cash -= cost

	if pos.Quantity == 0 {
		delete(t.positions, symbol)
	} else {
		pos.Symbol = symbol
		t.positions[symbol] = pos
	}
	return realized, nil
}

// MarkToMarket values every staged position at the given prices, appends the
// resulting equity point, and returns the equity. Symbols without a price
// fall back to their average entry price rather than being dropped.
func (t *Txn) MarkToMarket(prices map[string]float64, now time.Time) float64 {
	equity := t.cash
	for sym, pos := range t.positions {
		price, ok := prices[sym]
		if !ok || price <= 0 {
			price = pos.AvgEntryPrice
		}
		equity += pos.Quantity * price
	}
	t.appends = append(t.appends, EquityPoint{Time: now, Value: equity})
	return equity
}

func sameSign(a, b float64) bool {
	return (a > 0 && b > 0) || (a < 0 && b < 0)
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
