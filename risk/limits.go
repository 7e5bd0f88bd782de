// Package risk is the pre-trade gate between signals and fills. The gate is
// a pure function of its inputs, which keeps every decision reproducible and
// independently testable.
package risk

import "fmt"

// Limits is a strategy's risk-limit profile. All percentages are fractions
// (0.10 = 10%). The profile is supplied at start time and immutable for the
// life of a run; changing limits means stop, reconfigure, start.
type Limits struct {
	// MaxPositionPct caps a single proposed position's value as a share of
	// portfolio equity.
	MaxPositionPct float64 `yaml:"max_position_pct" json:"max_position_pct"`

	// MaxDailyLossPct is the hard daily circuit breaker. Crossing it stops
	// the strategy outright.
	MaxDailyLossPct float64 `yaml:"max_daily_loss_pct" json:"max_daily_loss_pct"`

	// MaxConcentrationPct caps total resulting exposure to one symbol as a
	// share of portfolio equity.
	MaxConcentrationPct float64 `yaml:"max_concentration_pct" json:"max_concentration_pct"`

	// MaxVolatility is the ceiling on a symbol's trailing realized
	// volatility. Above it, order quantity is shrunk proportionally rather
	// than rejected.
	MaxVolatility float64 `yaml:"max_volatility" json:"max_volatility"`
}

// Validate checks the profile for internal sanity and against the global
// maxima the operator configured for the whole engine.
func (l Limits) Validate(global Limits) error {
	if l.MaxPositionPct <= 0 || l.MaxPositionPct > 1 {
		return fmt.Errorf("max_position_pct must be in (0,1], got %.4f", l.MaxPositionPct)
	}
	if l.MaxDailyLossPct <= 0 || l.MaxDailyLossPct > 1 {
		return fmt.Errorf("max_daily_loss_pct must be in (0,1], got %.4f", l.MaxDailyLossPct)
	}
	if l.MaxConcentrationPct <= 0 || l.MaxConcentrationPct > 1 {
		return fmt.Errorf("max_concentration_pct must be in (0,1], got %.4f", l.MaxConcentrationPct)
	}
	if l.MaxVolatility <= 0 {
		return fmt.Errorf("max_volatility must be positive, got %.4f", l.MaxVolatility)
	}

	if global.MaxPositionPct > 0 && l.MaxPositionPct > global.MaxPositionPct {
		return fmt.Errorf("max_position_pct %.4f exceeds global maximum %.4f", l.MaxPositionPct, global.MaxPositionPct)
	}
	if global.MaxDailyLossPct > 0 && l.MaxDailyLossPct > global.MaxDailyLossPct {
		return fmt.Errorf("max_daily_loss_pct %.4f exceeds global maximum %.4f", l.MaxDailyLossPct, global.MaxDailyLossPct)
	}
	if global.MaxConcentrationPct > 0 && l.MaxConcentrationPct > global.MaxConcentrationPct {
		return fmt.Errorf("max_concentration_pct %.4f exceeds global maximum %.4f", l.MaxConcentrationPct, global.MaxConcentrationPct)
	}
	if global.MaxVolatility > 0 && l.MaxVolatility > global.MaxVolatility {
		return fmt.Errorf("max_volatility %.4f exceeds global maximum %.4f", l.MaxVolatility, global.MaxVolatility)
	}
	return nil
}
