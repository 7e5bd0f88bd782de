package engine

import (
	"fmt"
	"time"

	"github.com/rustyeddy/autotrader/risk"
	"github.com/rustyeddy/autotrader/rules"
	"github.com/rustyeddy/autotrader/sim"
)

// StrategyConfig is everything the manager needs to run one strategy. The
// config is validated at Start and treated as immutable for the whole run;
// changing anything means stop, reconfigure, start.
type StrategyConfig struct {
	ID      string
	Name    string
	Symbols []string

	// Interval is the tick cadence. A tick that overruns the interval causes
	// the overlapping ticks to be dropped, never queued.
	Interval time.Duration

	// Rules is the versioned rule snapshot evaluated every tick.
	Rules rules.Set

	// Limits is the strategy's risk profile, checked against the manager's
	// global maxima at Start.
	Limits risk.Limits

	// Quantity is the suggested order size attached to signals before the
	// risk gate has its say.
	Quantity float64

	// FillModel and its parameters for the order simulator.
	FillModel   sim.FillModel
	SlippageBps float64
	// LimitOffsetBps places limit orders this many basis points inside the
	// last price (buys below, sells above). Only used with the limit model.
	LimitOffsetBps float64

	// VolWindow is the trailing window, in ticks, for the realized
	// volatility fed to the risk gate. Defaults to 20.
	VolWindow int
}

// Validate rejects malformed configs against the engine's global limits.
func (c StrategyConfig) Validate(global risk.Limits) error {
	if c.ID == "" {
		return fmt.Errorf("%w: empty strategy id", ErrValidation)
	}
	if len(c.Symbols) == 0 {
		return fmt.Errorf("%w: strategy %s has no symbols", ErrValidation, c.ID)
	}
	if c.Interval <= 0 {
		return fmt.Errorf("%w: strategy %s tick interval must be positive, got %s", ErrValidation, c.ID, c.Interval)
	}
	if c.Quantity <= 0 {
		return fmt.Errorf("%w: strategy %s quantity must be positive, got %.4f", ErrValidation, c.ID, c.Quantity)
	}
	if err := c.Rules.Validate(); err != nil {
		return fmt.Errorf("%w: strategy %s: %v", ErrValidation, c.ID, err)
	}
	if err := c.Limits.Validate(global); err != nil {
		return fmt.Errorf("%w: strategy %s: %v", ErrValidation, c.ID, err)
	}
	switch c.FillModel {
	case sim.Market, sim.Limit:
	case "":
		// Defaulted to market by the manager.
	default:
		return fmt.Errorf("%w: strategy %s: unknown fill model %q", ErrValidation, c.ID, c.FillModel)
	}
	return nil
}

func (c StrategyConfig) withDefaults() StrategyConfig {
	if c.FillModel == "" {
		c.FillModel = sim.Market
	}
	if c.VolWindow <= 0 {
		c.VolWindow = 20
	}
	return c
}
