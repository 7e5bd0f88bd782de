package indicators

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func feed(ind Indicator, prices ...float64) {
	for _, p := range prices {
		ind.Update(p)
	}
}

func TestSMA(t *testing.T) {
	t.Parallel()

	sma := NewSMA(3)
	assert.False(t, sma.Ready())
	assert.Equal(t, 0.0, sma.Value())

	feed(sma, 1, 2, 3)
	require.True(t, sma.Ready())
	assert.InDelta(t, 2.0, sma.Value(), 1e-9)

	// Window slides.
	sma.Update(7)
	assert.InDelta(t, 4.0, sma.Value(), 1e-9)

	sma.Reset()
	assert.False(t, sma.Ready())
}

func TestEMA_SeedsWithSMA(t *testing.T) {
	t.Parallel()

	ema := NewEMA(3)
	feed(ema, 2, 4, 6)
	require.True(t, ema.Ready())
	assert.InDelta(t, 4.0, ema.Value(), 1e-9)

	// multiplier = 2/(3+1) = 0.5 -> (8-4)*0.5 + 4 = 6
	ema.Update(8)
	assert.InDelta(t, 6.0, ema.Value(), 1e-9)
}

func TestRSI_Extremes(t *testing.T) {
	t.Parallel()

	up := NewRSI(5)
	for i := 0; i < 10; i++ {
		up.Update(100 + float64(i))
	}
	require.True(t, up.Ready())
	assert.InDelta(t, 100.0, up.Value(), 1e-9)

	down := NewRSI(5)
	for i := 0; i < 10; i++ {
		down.Update(100 - float64(i))
	}
	require.True(t, down.Ready())
	assert.InDelta(t, 0.0, down.Value(), 1e-9)

	flat := NewRSI(5)
	for i := 0; i < 10; i++ {
		flat.Update(100)
	}
	require.True(t, flat.Ready())
	assert.InDelta(t, 50.0, flat.Value(), 1e-9)
}

func TestRSI_MixedSeries(t *testing.T) {
	t.Parallel()

	rsi := NewRSI(3)
	feed(rsi, 10, 11, 10.5, 11.5)
	require.True(t, rsi.Ready())

	v := rsi.Value()
	assert.Greater(t, v, 50.0, "net-up series should read above 50")
	assert.Less(t, v, 100.0)
}

func TestMomentum(t *testing.T) {
	t.Parallel()

	mom := NewMomentum(4)
	feed(mom, 100, 101, 102, 103)
	assert.False(t, mom.Ready())

	mom.Update(110)
	require.True(t, mom.Ready())
	assert.InDelta(t, 0.10, mom.Value(), 1e-9)
}

func TestVolatility(t *testing.T) {
	t.Parallel()

	flat := NewVolatility(5)
	feed(flat, 100, 100, 100, 100, 100, 100)
	require.True(t, flat.Ready())
	assert.InDelta(t, 0.0, flat.Value(), 1e-12)

	choppy := NewVolatility(5)
	feed(choppy, 100, 110, 99, 112, 98, 115)
	require.True(t, choppy.Ready())
	assert.Greater(t, choppy.Value(), 0.05)
}

func TestWarmupContracts(t *testing.T) {
	t.Parallel()

	inds := []Indicator{NewSMA(5), NewEMA(5), NewRSI(5), NewMomentum(5), NewVolatility(5)}
	for _, ind := range inds {
		assert.False(t, ind.Ready(), ind.Name())
		for i := 0; i < ind.Warmup(); i++ {
			ind.Update(100 + float64(i))
		}
		assert.True(t, ind.Ready(), ind.Name())
	}
}
