package risk

import (
	"fmt"

	"github.com/rustyeddy/autotrader/portfolio"
	"github.com/rustyeddy/autotrader/rules"
)

// Verdict is the gate's decision kind.
type Verdict int

const (
	// Allow passes the signal's quantity through unchanged.
	Allow Verdict = iota
	// Resize passes the signal at a reduced quantity.
	Resize
	// Reject drops the signal; the strategy keeps running.
	Reject
	// ForceStop drops the signal and demands the strategy be stopped.
	ForceStop
)

func (v Verdict) String() string {
	switch v {
	case Allow:
		return "ALLOW"
	case Resize:
		return "RESIZE"
	case Reject:
		return "REJECT"
	case ForceStop:
		return "FORCE_STOP"
	}
	return "UNKNOWN"
}

// Outcome is the gate's full decision. Quantity is meaningful for Allow and
// Resize; Reason is always set for Reject and ForceStop.
type Outcome struct {
	Verdict  Verdict
	Quantity float64
	Reason   string
}

// Check gates a candidate signal against the portfolio view and limit
// profile. Checks run in a fixed order and the first failure wins, so every
// decision is deterministic and explainable:
//
//  1. position-size limit
//  2. daily loss circuit breaker (BUYs under breach force-stop the strategy)
//  3. concentration limit on resulting symbol exposure
//  4. volatility ceiling (shrinks quantity instead of rejecting)
//
// vol is the symbol's trailing realized volatility. The function reads only
// its arguments and is safe to call concurrently.
func Check(sig rules.Signal, view portfolio.View, limits Limits, price, vol float64) Outcome {
	if sig.Action == rules.Hold || sig.Quantity == 0 {
		return Outcome{Verdict: Reject, Reason: "no actionable signal"}
	}
	if price <= 0 {
		return Outcome{Verdict: Reject, Reason: "no valid price"}
	}

	equity := view.Equity()
	if equity <= 0 {
		return Outcome{Verdict: Reject, Reason: "portfolio equity is not positive"}
	}

	qty := sig.Quantity

	// 1. Position-size limit on the proposed order value.
	if frac := qty * price / equity; frac > limits.MaxPositionPct {
		return Outcome{
			Verdict: Reject,
			Reason: fmt.Sprintf("position size %.2f%% of equity exceeds limit %.2f%%",
				frac*100, limits.MaxPositionPct*100),
		}
	}

	// 2. Daily loss circuit breaker. Capital preservation overrides trading:
	// a BUY under breach stops the strategy; SELLs may still reduce risk.
	if dayPnL := view.DailyPnLPct(); dayPnL < -limits.MaxDailyLossPct {
		if sig.Action == rules.Buy {
			return Outcome{
				Verdict: ForceStop,
				Reason: fmt.Sprintf("daily loss %.2f%% breaches limit %.2f%%",
					dayPnL*100, limits.MaxDailyLossPct*100),
			}
		}
	}

	// 3. Concentration limit on the resulting exposure to this symbol.
	resulting := view.Exposure(sig.Symbol, price)
	if sig.Action == rules.Buy {
		resulting += qty * price
	} else {
		resulting -= qty * price
		if resulting < 0 {
			resulting = -resulting
		}
	}
	if frac := resulting / equity; frac > limits.MaxConcentrationPct {
		return Outcome{
			Verdict: Reject,
			Reason: fmt.Sprintf("resulting %s exposure %.2f%% exceeds concentration limit %.2f%%",
				sig.Symbol, frac*100, limits.MaxConcentrationPct*100),
		}
	}

	// 4. Volatility ceiling: degrade gracefully by shrinking the order in
	// proportion to how far realized volatility overshoots the limit.
	if vol > limits.MaxVolatility {
		return Outcome{
			Verdict:  Resize,
			Quantity: qty * limits.MaxVolatility / vol,
			Reason: fmt.Sprintf("volatility %.4f above ceiling %.4f, quantity reduced",
				vol, limits.MaxVolatility),
		}
	}

	return Outcome{Verdict: Allow, Quantity: qty}
}

// CheckBreach inspects post-trade state for hard breaches that must stop the
// strategy even on ticks with no actionable signal. It returns the breach
// reason when the daily loss limit has been crossed.
func CheckBreach(view portfolio.View, limits Limits) (string, bool) {
	if dayPnL := view.DailyPnLPct(); dayPnL < -limits.MaxDailyLossPct {
		return fmt.Sprintf("daily loss %.2f%% breaches limit %.2f%%",
			dayPnL*100, limits.MaxDailyLossPct*100), true
	}
	return "", false
}
