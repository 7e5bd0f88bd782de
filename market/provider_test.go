package market

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuoteStore_SetGet(t *testing.T) {
	t.Parallel()

	qs := NewQuoteStore()
	_, err := qs.Get("AAPL")
	assert.ErrorIs(t, err, ErrNoQuote)

	qs.Set(Quote{Symbol: "AAPL", Price: 187.32, Time: time.Now()})
	q, err := qs.Get("AAPL")
	require.NoError(t, err)
	assert.InDelta(t, 187.32, q.Price, 1e-9)
}

func TestSnapshot_Staleness(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 2, 15, 0, 0, 0, time.UTC)
	qs := NewQuoteStore()
	qs.Set(Quote{Symbol: "AAPL", Price: 187.0, Time: now.Add(-30 * time.Second)})
	qs.Set(Quote{Symbol: "MSFT", Price: 410.0, Time: now.Add(-5 * time.Minute)})

	snap := qs.Snapshot([]string{"AAPL", "MSFT", "NVDA"}, now, time.Minute)

	assert.True(t, snap.Fresh("AAPL"))
	assert.True(t, snap.IsStale("MSFT"))
	assert.False(t, snap.Fresh("MSFT"))

	// Missing symbols are omitted, not invented.
	_, ok := snap.Quote("NVDA")
	assert.False(t, ok)
	assert.False(t, snap.Fresh("NVDA"))
}

func TestSnapshot_ZeroMaxAgeDisablesStaleness(t *testing.T) {
	t.Parallel()

	now := time.Now()
	qs := NewQuoteStore()
	qs.Set(Quote{Symbol: "AAPL", Price: 187.0, Time: now.Add(-24 * time.Hour)})

	snap := qs.Snapshot([]string{"AAPL"}, now, 0)
	assert.True(t, snap.Fresh("AAPL"))
}

func TestSimProvider_GetSnapshot(t *testing.T) {
	t.Parallel()

	p := NewSimProvider()
	now := time.Now()
	p.Push(Quote{Symbol: "EURUSD", Price: 1.0850, Time: now})

	snap, err := p.GetSnapshot(context.Background(), []string{"EURUSD"}, now, time.Minute)
	require.NoError(t, err)
	q, ok := snap.Quote("EURUSD")
	require.True(t, ok)
	assert.InDelta(t, 1.0850, q.Price, 1e-9)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = p.GetSnapshot(ctx, []string{"EURUSD"}, now, time.Minute)
	assert.Error(t, err)
}
