// Package indicators provides streaming technical indicators over price
// samples. All indicators are deterministic, allocation-light, and safe to
// drive from live ticks, replays, or tests.
package indicators

// Indicator computes a single streaming value from a price series.
type Indicator interface {
	// Name returns a stable identifier like "EMA(20)" or "RSI(14)".
	Name() string

	// Warmup returns how many updates are needed before Ready() can be true.
	Warmup() int

	// Reset clears all internal state.
	Reset()

	// Update consumes the next price sample.
	Update(price float64)

	// Ready reports whether Value() is meaningful (warmup completed).
	Ready() bool

	// Value returns the current indicator value. If !Ready() it returns 0;
	// callers should always check Ready() first.
	Value() float64
}
