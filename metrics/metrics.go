// Package metrics computes performance and risk statistics over an equity
// curve and a trade ledger. Every function is pure, deterministic, and total:
// degenerate inputs (flat curves, empty ledgers, zero variance) produce a
// defined fallback value, never NaN, Inf, or a panic, so the risk gate's
// numeric comparisons always hold.
package metrics

import (
	"math"
	"sort"

	"github.com/rustyeddy/autotrader/portfolio"
)

// TradingDaysPerYear is the annualization base for ratio metrics.
const TradingDaysPerYear = 252

// MinVaRObservations is the smallest return sample VaR/CVaR will estimate
// from; below it the estimate is reported as insufficient data.
const MinVaRObservations = 20

// SortinoCeiling caps the Sortino ratio when there are no negative excess
// returns, where the true value would be unbounded.
const SortinoCeiling = 100.0

// ClosedTrade is one ledger entry with realized P&L.
type ClosedTrade struct {
	Symbol     string
	Quantity   float64
	RealizedPL float64
}

// RiskSnapshot is the derived, read-only risk state recomputed every tick.
type RiskSnapshot struct {
	VaR95            float64
	CVaR95           float64
	VaRInsufficient  bool
	Sharpe           float64
	Sortino          float64
	Calmar           float64
	MaxDrawdown      float64
	WinRate          float64
	DailyPnLPct      float64
	Concentration    map[string]float64
}

// Returns derives period-over-period fractional returns from an equity curve.
// Points at or below zero equity contribute no return.
func Returns(curve []portfolio.EquityPoint) []float64 {
	if len(curve) < 2 {
		return nil
	}
	out := make([]float64, 0, len(curve)-1)
	for i := 1; i < len(curve); i++ {
		prev := curve[i-1].Value
		if prev <= 0 {
			continue
		}
		out = append(out, curve[i].Value/prev-1)
	}
	return out
}

// Sharpe is mean excess return over its standard deviation, annualized by
// √252. Zero-variance or empty series report 0.
func Sharpe(returns []float64, riskFree float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	excess := make([]float64, len(returns))
	for i, r := range returns {
		excess[i] = r - riskFree
	}
	m := mean(excess)
	sd := stdev(excess, m)
	if sd == 0 {
		return 0
	}
	return m / sd * math.Sqrt(TradingDaysPerYear)
}

// Sortino is mean excess return over downside deviation. With no negative
// excess returns the ratio is capped at SortinoCeiling instead of diverging;
// an empty series reports 0.
func Sortino(returns []float64, riskFree float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	excess := make([]float64, len(returns))
	for i, r := range returns {
		excess[i] = r - riskFree
	}
	m := mean(excess)

	sumSq, n := 0.0, 0
	for _, e := range excess {
		if e < 0 {
			sumSq += e * e
			n++
		}
	}
	if n == 0 {
		if m <= 0 {
			return 0
		}
		return SortinoCeiling
	}
	dd := math.Sqrt(sumSq / float64(n))
	if dd == 0 {
		return 0
	}
	s := m / dd * math.Sqrt(TradingDaysPerYear)
	if s > SortinoCeiling {
		return SortinoCeiling
	}
	return s
}

// Calmar is annualized return over absolute max drawdown; 0 when the curve
// never draws down or is too short to annualize.
func Calmar(curve []portfolio.EquityPoint) float64 {
	dd := MaxDrawdown(curve)
	if dd == 0 || len(curve) < 2 {
		return 0
	}
	first, last := curve[0].Value, curve[len(curve)-1].Value
	if first <= 0 {
		return 0
	}
	periods := float64(len(curve) - 1)
	total := last/first - 1
	annualized := math.Pow(1+total, TradingDaysPerYear/periods) - 1
	if math.IsNaN(annualized) || math.IsInf(annualized, 0) {
		return 0
	}
	return annualized / dd
}

// MaxDrawdown is the largest peak-to-trough fractional decline, computed in
// one forward pass over a running peak.
func MaxDrawdown(curve []portfolio.EquityPoint) float64 {
	if len(curve) < 2 {
		return 0
	}
	peak := curve[0].Value
	maxDD := 0.0
	for _, pt := range curve[1:] {
		if pt.Value > peak {
			peak = pt.Value
			continue
		}
		if peak > 0 {
			if dd := (peak - pt.Value) / peak; dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD
}

// VaR95 is the 5th-percentile loss of the trailing return sample, by
// historical simulation, reported as a positive fraction. ok is false when
// the sample is below MinVaRObservations.
func VaR95(returns []float64) (float64, bool) {
	if len(returns) < MinVaRObservations {
		return 0, false
	}
	sorted := append([]float64(nil), returns...)
	sort.Float64s(sorted)
	idx := int(math.Floor(0.05 * float64(len(sorted))))
	loss := -sorted[idx]
	if loss < 0 {
		loss = 0
	}
	return loss, true
}

// CVaR95 is the mean loss at or beyond the VaR95 percentile, reported as a
// positive fraction. ok is false when the sample is below MinVaRObservations.
func CVaR95(returns []float64) (float64, bool) {
	if len(returns) < MinVaRObservations {
		return 0, false
	}
	sorted := append([]float64(nil), returns...)
	sort.Float64s(sorted)
	idx := int(math.Floor(0.05 * float64(len(sorted))))
	sum := 0.0
	for _, r := range sorted[:idx+1] {
		sum += r
	}
	loss := -sum / float64(idx+1)
	if loss < 0 {
		loss = 0
	}
	return loss, true
}

// WinRate is the share of closed trades with positive realized P&L; 0 with
// no closed trades.
func WinRate(trades []ClosedTrade) float64 {
	if len(trades) == 0 {
		return 0
	}
	wins := 0
	for _, tr := range trades {
		if tr.RealizedPL > 0 {
			wins++
		}
	}
	return float64(wins) / float64(len(trades))
}

// Concentration maps each symbol to its share of equity at the given prices.
// Symbols without a price are valued at average entry.
func Concentration(view portfolio.View, prices map[string]float64) map[string]float64 {
	equity := view.Equity()
	out := make(map[string]float64, len(view.Positions))
	if equity <= 0 {
		return out
	}
	for sym, pos := range view.Positions {
		price, ok := prices[sym]
		if !ok || price <= 0 {
			price = pos.AvgEntryPrice
		}
		out[sym] = math.Abs(pos.Quantity*price) / equity
	}
	return out
}

// Compute assembles the full risk snapshot for a portfolio view.
func Compute(view portfolio.View, trades []ClosedTrade, prices map[string]float64, riskFree float64) RiskSnapshot {
	returns := Returns(view.Curve)
	vaR, okV := VaR95(returns)
	cvaR, _ := CVaR95(returns)

	return RiskSnapshot{
		VaR95:           vaR,
		CVaR95:          cvaR,
		VaRInsufficient: !okV,
		Sharpe:          Sharpe(returns, riskFree),
		Sortino:         Sortino(returns, riskFree),
		Calmar:          Calmar(view.Curve),
		MaxDrawdown:     MaxDrawdown(view.Curve),
		WinRate:         WinRate(trades),
		DailyPnLPct:     view.DailyPnLPct(),
		Concentration:   Concentration(view, prices),
	}
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func stdev(xs []float64, m float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	sumSq := 0.0
	for _, x := range xs {
		d := x - m
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(xs)-1))
}
