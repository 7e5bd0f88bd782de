package rules

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/autotrader/market"
)

type stubIndicator struct {
	ready bool
	value float64
}

func (s stubIndicator) Name() string        { return "stub" }
func (s stubIndicator) Warmup() int         { return 0 }
func (s stubIndicator) Reset()              {}
func (s stubIndicator) Update(price float64) {}
func (s stubIndicator) Ready() bool         { return s.ready }
func (s stubIndicator) Value() float64      { return s.value }

// thresholdState builds a ruleState whose confidence is fully determined by
// the stubbed indicator value: threshold 30, op lt, so value 27 gives 1.0 and
// value 29 gives 1/3.
func thresholdState(value float64) *ruleState {
	return &ruleState{
		rule: Rule{Kind: KindThreshold, Indicator: IndRSI, Period: 14, Op: OpLT, Value: 30},
		main: stubIndicator{ready: true, value: value},
	}
}

func unsatisfiedState() *ruleState {
	return &ruleState{
		rule: Rule{Kind: KindThreshold, Indicator: IndRSI, Period: 14, Op: OpLT, Value: 30},
		main: stubIndicator{ready: true, value: 80},
	}
}

func TestCombine_AllUsesMinimumConfidence(t *testing.T) {
	t.Parallel()

	states := []*ruleState{thresholdState(27), thresholdState(29)} // conf 1.0, 1/3
	ok, conf := combine(ModeAll, states)
	require.True(t, ok)
	assert.InDelta(t, 1.0/3.0, conf, 1e-9)

	// Confidence never exceeds the weakest satisfied rule.
	for _, rs := range states {
		_, c := rs.evaluate()
		assert.LessOrEqual(t, conf, c+1e-12)
	}
}

func TestCombine_AllFailsOnAnyUnsatisfiedRule(t *testing.T) {
	t.Parallel()

	ok, conf := combine(ModeAll, []*ruleState{thresholdState(27), unsatisfiedState()})
	assert.False(t, ok)
	assert.Equal(t, 0.0, conf)
}

func TestCombine_AnyUsesMeanOfSatisfied(t *testing.T) {
	t.Parallel()

	// conf 1.0 and 1/3 satisfied, one unsatisfied rule ignored.
	states := []*ruleState{thresholdState(27), thresholdState(29), unsatisfiedState()}
	ok, conf := combine(ModeAny, states)
	require.True(t, ok)
	assert.InDelta(t, (1.0+1.0/3.0)/2.0, conf, 1e-9)
}

func TestCombine_EmptyRuleListNeverFires(t *testing.T) {
	t.Parallel()

	ok, _ := combine(ModeAll, nil)
	assert.False(t, ok)
	ok, _ = combine(ModeAny, nil)
	assert.False(t, ok)
}

func snapWith(sym string, price float64, now time.Time) market.Snapshot {
	return market.Snapshot{
		AsOf:   now,
		Quotes: map[string]market.Quote{sym: {Symbol: sym, Price: price, Time: now}},
		Stale:  map[string]bool{},
	}
}

func TestEvaluate_MissingDataForcesHold(t *testing.T) {
	t.Parallel()

	set := Set{Version: 1, Combine: ModeAll, Entry: []Rule{{Kind: KindThreshold, Indicator: IndRSI, Period: 2, Op: OpLT, Value: 30}}}
	require.NoError(t, set.Validate())

	ev := NewEvaluator(set, 100)
	now := time.Now()

	sig, warn := ev.Evaluate(market.Snapshot{AsOf: now, Quotes: map[string]market.Quote{}, Stale: map[string]bool{}}, "AAPL", now)
	assert.Equal(t, Hold, sig.Action)
	require.NotNil(t, warn)
	assert.Equal(t, "AAPL", warn.Symbol)
}

func TestEvaluate_StaleDataForcesHold(t *testing.T) {
	t.Parallel()

	set := Set{Version: 1, Combine: ModeAll, Entry: []Rule{{Kind: KindThreshold, Indicator: IndRSI, Period: 2, Op: OpLT, Value: 30}}}
	ev := NewEvaluator(set, 100)
	now := time.Now()

	snap := market.Snapshot{
		AsOf:   now,
		Quotes: map[string]market.Quote{"AAPL": {Symbol: "AAPL", Price: 100, Time: now.Add(-time.Hour)}},
		Stale:  map[string]bool{"AAPL": true},
	}
	sig, warn := ev.Evaluate(snap, "AAPL", now)
	assert.Equal(t, Hold, sig.Action)
	require.NotNil(t, warn)
}

func TestEvaluate_OversoldRSIEmitsBuy(t *testing.T) {
	t.Parallel()

	set := Set{
		Version: 1,
		Combine: ModeAll,
		Entry:   []Rule{{Kind: KindThreshold, Indicator: IndRSI, Period: 3, Op: OpLT, Value: 30}},
	}
	require.NoError(t, set.Validate())

	ev := NewEvaluator(set, 200)
	now := time.Now()

	// A steadily falling series drives RSI toward 0, well past the 30
	// threshold, so the margin confidence saturates at 1.0.
	var sig Signal
	price := 100.0
	for i := 0; i < 10; i++ {
		price -= 2
		sig, _ = ev.Evaluate(snapWith("AAPL", price, now), "AAPL", now)
	}

	require.Equal(t, Buy, sig.Action)
	assert.InDelta(t, 1.0, sig.Confidence, 1e-9)
	assert.InDelta(t, 200.0, sig.Quantity, 1e-9)
}

func TestEvaluate_ContradictorySignalsResolveToHold(t *testing.T) {
	t.Parallel()

	// RSI is bounded to [0,100], so entry (rsi > -1) and exit (rsi < 101)
	// are both always satisfied once warm.
	set := Set{
		Version: 1,
		Combine: ModeAll,
		Entry:   []Rule{{Kind: KindThreshold, Indicator: IndRSI, Period: 2, Op: OpGT, Value: -1}},
		Exit:    []Rule{{Kind: KindThreshold, Indicator: IndRSI, Period: 2, Op: OpLT, Value: 101}},
	}
	ev := NewEvaluator(set, 100)
	now := time.Now()

	var sig Signal
	for i := 0; i < 6; i++ {
		sig, _ = ev.Evaluate(snapWith("AAPL", 100+float64(i), now), "AAPL", now)
	}
	assert.Equal(t, Hold, sig.Action)
}

func TestSetValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		set     Set
		wantErr bool
	}{
		{
			name:    "empty rule set",
			set:     Set{Version: 1, Combine: ModeAll},
			wantErr: true,
		},
		{
			name: "bad combine mode",
			set: Set{Version: 1, Combine: "sometimes",
				Entry: []Rule{{Kind: KindThreshold, Indicator: IndRSI, Period: 14, Op: OpLT, Value: 30}}},
			wantErr: true,
		},
		{
			name: "unknown indicator",
			set: Set{Version: 1, Combine: ModeAll,
				Entry: []Rule{{Kind: KindThreshold, Indicator: "vibes", Period: 14, Op: OpLT, Value: 30}}},
			wantErr: true,
		},
		{
			name: "crossover fast not below slow",
			set: Set{Version: 1, Combine: ModeAll,
				Entry: []Rule{{Kind: KindCrossover, Fast: 50, Slow: 20, Op: OpGT}}},
			wantErr: true,
		},
		{
			name: "valid mixed set",
			set: Set{Version: 2, Combine: ModeAny,
				Entry: []Rule{
					{Kind: KindThreshold, Indicator: IndRSI, Period: 14, Op: OpLT, Value: 30},
					{Kind: KindCrossover, Fast: 10, Slow: 30, Op: OpGT},
				},
				Exit: []Rule{{Kind: KindMomentum, Period: 5, Op: OpLT, Value: -0.02}}},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.set.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
