// Package journal persists the engine's append-only outputs: the trade
// ledger and the equity curve. The engine never reads these back during a
// run and never rolls back a fill because a write failed; a failed write is
// surfaced to the caller so the surrounding service can retry or alert.
package journal

import "time"

// FillRecord is one executed (simulated) fill.
type FillRecord struct {
	FillID     string
	StrategyID string
	Symbol     string
	Quantity   float64
	Price      float64
	RealizedPL float64
	Time       time.Time
	Reason     string
}

// EquityRecord is one equity-curve point.
type EquityRecord struct {
	Time   time.Time
	Cash   float64
	Equity float64
}

// Journal is the narrow persistence interface the engine writes through.
type Journal interface {
	RecordFill(FillRecord) error
	RecordEquity(EquityRecord) error
	Close() error
}

// Nop discards everything. Used by tests and dry runs.
type Nop struct{}

func (Nop) RecordFill(FillRecord) error     { return nil }
func (Nop) RecordEquity(EquityRecord) error { return nil }
func (Nop) Close() error                    { return nil }
