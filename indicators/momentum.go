package indicators

import (
	"fmt"
	"math"
)

// Momentum reports the fractional price change over a trailing window:
// (last - first) / first.
type Momentum struct {
	period int
	prices []float64
}

func NewMomentum(period int) *Momentum {
	return &Momentum{
		period: period,
		prices: make([]float64, 0, period+1),
	}
}

func (m *Momentum) Name() string {
	return fmt.Sprintf("MOM(%d)", m.period)
}

func (m *Momentum) Warmup() int { return m.period + 1 }

func (m *Momentum) Reset() { m.prices = m.prices[:0] }

func (m *Momentum) Update(price float64) {
	m.prices = append(m.prices, price)
	if len(m.prices) > m.period+1 {
		m.prices = m.prices[1:]
	}
}

func (m *Momentum) Ready() bool { return len(m.prices) >= m.period+1 }

func (m *Momentum) Value() float64 {
	if !m.Ready() {
		return 0
	}
	first := m.prices[0]
	if first == 0 {
		return 0
	}
	return (m.prices[len(m.prices)-1] - first) / first
}

// Volatility is the sample standard deviation of simple returns over a
// trailing window. A flat window reports 0.
type Volatility struct {
	period int
	prices []float64
}

func NewVolatility(period int) *Volatility {
	return &Volatility{
		period: period,
		prices: make([]float64, 0, period+1),
	}
}

func (v *Volatility) Name() string {
	return fmt.Sprintf("VOL(%d)", v.period)
}

func (v *Volatility) Warmup() int { return v.period + 1 }

func (v *Volatility) Reset() { v.prices = v.prices[:0] }

func (v *Volatility) Update(price float64) {
	v.prices = append(v.prices, price)
	if len(v.prices) > v.period+1 {
		v.prices = v.prices[1:]
	}
}

func (v *Volatility) Ready() bool { return len(v.prices) >= v.period+1 }

func (v *Volatility) Value() float64 {
	if !v.Ready() {
		return 0
	}

	returns := make([]float64, 0, len(v.prices)-1)
	for i := 1; i < len(v.prices); i++ {
		if v.prices[i-1] == 0 {
			continue
		}
		returns = append(returns, v.prices[i]/v.prices[i-1]-1)
	}
	if len(returns) < 2 {
		return 0
	}

	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	variance := 0.0
	for _, r := range returns {
		d := r - mean
		variance += d * d
	}
	variance /= float64(len(returns) - 1)

	return math.Sqrt(variance)
}
