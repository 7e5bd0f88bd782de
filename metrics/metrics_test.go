package metrics

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/autotrader/portfolio"
)

func curveOf(values ...float64) []portfolio.EquityPoint {
	t0 := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	pts := make([]portfolio.EquityPoint, len(values))
	for i, v := range values {
		pts[i] = portfolio.EquityPoint{Time: t0.Add(time.Duration(i) * 24 * time.Hour), Value: v}
	}
	return pts
}

func TestReturns(t *testing.T) {
	t.Parallel()

	r := Returns(curveOf(100, 110, 99))
	require.Len(t, r, 2)
	assert.InDelta(t, 0.10, r[0], 1e-9)
	assert.InDelta(t, -0.10, r[1], 1e-9)

	assert.Nil(t, Returns(nil))
	assert.Nil(t, Returns(curveOf(100)))
}

func TestSharpe_ZeroVarianceIsZero(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0.0, Sharpe([]float64{0.01, 0.01, 0.01}, 0))
	assert.Equal(t, 0.0, Sharpe(nil, 0))
	assert.Equal(t, 0.0, Sharpe([]float64{0.01}, 0))
}

func TestSharpe_PositiveDrift(t *testing.T) {
	t.Parallel()

	s := Sharpe([]float64{0.01, 0.02, 0.005, 0.015}, 0)
	assert.Greater(t, s, 0.0)
	assert.False(t, math.IsNaN(s))
	assert.False(t, math.IsInf(s, 0))
}

func TestSortino(t *testing.T) {
	t.Parallel()

	// No negative returns with positive drift hits the ceiling, not +Inf.
	assert.Equal(t, SortinoCeiling, Sortino([]float64{0.01, 0.02, 0.01}, 0))

	// No negative returns and no drift reports 0.
	assert.Equal(t, 0.0, Sortino([]float64{0, 0, 0}, 0))

	s := Sortino([]float64{0.02, -0.01, 0.015, -0.005}, 0)
	assert.Greater(t, s, 0.0)
	assert.LessOrEqual(t, s, SortinoCeiling)
}

func TestCalmar(t *testing.T) {
	t.Parallel()

	// Monotonic growth has no drawdown: 0, not Inf.
	assert.Equal(t, 0.0, Calmar(curveOf(100, 105, 110)))

	c := Calmar(curveOf(100, 120, 90, 110))
	assert.False(t, math.IsNaN(c))
	assert.False(t, math.IsInf(c, 0))
}

func TestTotalityOnDegenerateCurves(t *testing.T) {
	t.Parallel()

	curves := map[string][]portfolio.EquityPoint{
		"empty":        nil,
		"single point": curveOf(100),
		"flat":         curveOf(100, 100, 100, 100),
		"all falling":  curveOf(100, 90, 80, 70, 60),
		"zero value":   curveOf(100, 0, 50),
	}
	for name, curve := range curves {
		name, curve := name, curve
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			r := Returns(curve)
			for _, v := range []float64{Sharpe(r, 0), Sortino(r, 0), Calmar(curve), MaxDrawdown(curve)} {
				assert.False(t, math.IsNaN(v), name)
				assert.False(t, math.IsInf(v, 0), name)
			}
		})
	}
}

// bruteForceDrawdown is the O(n²) reference: max over all peak/trough pairs.
func bruteForceDrawdown(curve []portfolio.EquityPoint) float64 {
	maxDD := 0.0
	for i := 0; i < len(curve); i++ {
		for j := i + 1; j < len(curve); j++ {
			if curve[i].Value <= 0 {
				continue
			}
			dd := (curve[i].Value - curve[j].Value) / curve[i].Value
			if dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD
}

func TestMaxDrawdown_MatchesBruteForce(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(42))
	for trial := 0; trial < 50; trial++ {
		n := 2 + rng.Intn(200)
		values := make([]float64, n)
		v := 100.0
		for i := range values {
			v *= 1 + (rng.Float64()-0.5)*0.1
			values[i] = v
		}
		curve := curveOf(values...)
		assert.InDelta(t, bruteForceDrawdown(curve), MaxDrawdown(curve), 1e-12, "trial %d", trial)
	}
}

func TestMaxDrawdown_Known(t *testing.T) {
	t.Parallel()

	// Peak 120, trough 84: (120-84)/120 = 0.30.
	assert.InDelta(t, 0.30, MaxDrawdown(curveOf(100, 120, 96, 84, 110)), 1e-9)
}

func TestVaRCVaR_InsufficientData(t *testing.T) {
	t.Parallel()

	short := make([]float64, MinVaRObservations-1)
	_, ok := VaR95(short)
	assert.False(t, ok)
	_, ok = CVaR95(short)
	assert.False(t, ok)
}

func TestVaRCVaR_HistoricalSimulation(t *testing.T) {
	t.Parallel()

	// 100 returns: -0.10, -0.09, ..., then small positives.
	returns := make([]float64, 100)
	for i := range returns {
		returns[i] = 0.001
	}
	returns[0], returns[1], returns[2], returns[3], returns[4] = -0.10, -0.08, -0.06, -0.04, -0.02
	returns[5] = -0.01

	v, ok := VaR95(returns)
	require.True(t, ok)
	// 5th percentile of 100 obs is index 5 of the sorted sample: -0.01.
	assert.InDelta(t, 0.01, v, 1e-9)

	cv, ok := CVaR95(returns)
	require.True(t, ok)
	// Mean of the 6 worst: (0.10+0.08+0.06+0.04+0.02+0.01)/6.
	assert.InDelta(t, 0.31/6, cv, 1e-9)
	assert.GreaterOrEqual(t, cv, v, "CVaR dominates VaR")
}

func TestWinRate(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0.0, WinRate(nil))

	trades := []ClosedTrade{
		{Symbol: "AAPL", RealizedPL: 120},
		{Symbol: "AAPL", RealizedPL: -40},
		{Symbol: "MSFT", RealizedPL: 15},
		{Symbol: "MSFT", RealizedPL: 0},
	}
	assert.InDelta(t, 0.5, WinRate(trades), 1e-9)
}

func TestConcentration(t *testing.T) {
	t.Parallel()

	now := time.Now()
	p := portfolio.New(100000, now)
	view, err := p.Commit(func(tx *portfolio.Txn) error {
		if _, err := tx.ApplyFill("AAPL", 200, 50); err != nil {
			return err
		}
		tx.MarkToMarket(map[string]float64{"AAPL": 50}, now)
		return nil
	})
	require.NoError(t, err)

	conc := Concentration(view, map[string]float64{"AAPL": 50})
	assert.InDelta(t, 0.10, conc["AAPL"], 1e-9)
}

func TestCompute_FillsEveryField(t *testing.T) {
	t.Parallel()

	now := time.Now()
	p := portfolio.New(100000, now)
	view := p.Snapshot()

	snap := Compute(view, nil, nil, 0)
	assert.True(t, snap.VaRInsufficient)
	assert.Equal(t, 0.0, snap.Sharpe)
	assert.Equal(t, 0.0, snap.WinRate)
	assert.NotNil(t, snap.Concentration)
}
