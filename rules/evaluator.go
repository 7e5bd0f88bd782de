package rules

import (
	"time"

	"github.com/rustyeddy/autotrader/indicators"
	"github.com/rustyeddy/autotrader/market"
)

// Warning flags a data-quality problem for one symbol in one tick. The tick
// proceeds as HOLD; the caller is expected to log it.
type Warning struct {
	Symbol string
	Reason string
}

// Evaluator evaluates one rule Set against streaming market data and emits
// exactly one Signal per symbol per tick. It owns the indicator state for
// every rule, so a single Evaluator serves a single strategy.
type Evaluator struct {
	set     Set
	baseQty float64
	symbols map[string]*symbolState
}

type symbolState struct {
	entry []*ruleState
	exit  []*ruleState
}

type ruleState struct {
	rule Rule
	main indicators.Indicator // threshold value, momentum, or fast MA
	slow indicators.Indicator // crossover only
}

// NewEvaluator builds the per-symbol indicator state for a validated Set.
// baseQty is the suggested order size attached to non-HOLD signals; the risk
// gate may shrink it downstream.
func NewEvaluator(set Set, baseQty float64) *Evaluator {
	return &Evaluator{
		set:     set,
		baseQty: baseQty,
		symbols: make(map[string]*symbolState),
	}
}

// Set returns the rule snapshot this evaluator was built from.
func (e *Evaluator) Set() Set { return e.set }

func newRuleState(r Rule) *ruleState {
	rs := &ruleState{rule: r}
	switch r.Kind {
	case KindThreshold:
		switch r.Indicator {
		case IndRSI:
			rs.main = indicators.NewRSI(r.Period)
		case IndEMA:
			rs.main = indicators.NewEMA(r.Period)
		case IndSMA:
			rs.main = indicators.NewSMA(r.Period)
		}
	case KindCrossover:
		rs.main = indicators.NewEMA(r.Fast)
		rs.slow = indicators.NewEMA(r.Slow)
	case KindMomentum:
		rs.main = indicators.NewMomentum(r.Period)
	}
	return rs
}

func (e *Evaluator) state(symbol string) *symbolState {
	st, ok := e.symbols[symbol]
	if !ok {
		st = &symbolState{}
		for _, r := range e.set.Entry {
			st.entry = append(st.entry, newRuleState(r))
		}
		for _, r := range e.set.Exit {
			st.exit = append(st.exit, newRuleState(r))
		}
		e.symbols[symbol] = st
	}
	return st
}

// Evaluate consumes the snapshot's quote for symbol and returns the signal
// for this tick. Missing or stale data forces HOLD with a Warning and does
// not advance indicator state; prices are never fabricated.
func (e *Evaluator) Evaluate(snap market.Snapshot, symbol string, now time.Time) (Signal, *Warning) {
	hold := Signal{Symbol: symbol, Action: Hold, Time: now}

	q, ok := snap.Quote(symbol)
	if !ok {
		return hold, &Warning{Symbol: symbol, Reason: "no quote in snapshot"}
	}
	if snap.IsStale(symbol) {
		return hold, &Warning{Symbol: symbol, Reason: "quote older than tick interval"}
	}

	st := e.state(symbol)
	for _, rs := range st.entry {
		rs.update(q.Price)
	}
	for _, rs := range st.exit {
		rs.update(q.Price)
	}

	buyOK, buyConf := combine(e.set.Combine, st.entry)
	sellOK, sellConf := combine(e.set.Combine, st.exit)

	switch {
	case buyOK && sellOK:
		// Simultaneous entry and exit satisfaction is contradictory; fail safe.
		return hold, nil
	case buyOK:
		return Signal{Symbol: symbol, Action: Buy, Confidence: buyConf, Quantity: e.baseQty, Time: now}, nil
	case sellOK:
		return Signal{Symbol: symbol, Action: Sell, Confidence: sellConf, Quantity: e.baseQty, Time: now}, nil
	}
	return hold, nil
}

func (rs *ruleState) update(price float64) {
	rs.main.Update(price)
	if rs.slow != nil {
		rs.slow.Update(price)
	}
}

// evaluate returns whether the rule is satisfied and its confidence in [0,1].
// A rule whose indicators are still warming up is unsatisfied with zero
// confidence.
func (rs *ruleState) evaluate() (bool, float64) {
	if !rs.main.Ready() || (rs.slow != nil && !rs.slow.Ready()) {
		return false, 0
	}

	switch rs.rule.Kind {
	case KindThreshold:
		v := rs.main.Value()
		if !rs.rule.Op.compare(v, rs.rule.Value) {
			return false, 0
		}
		return true, marginConfidence(v, rs.rule.Value, 0.1)
	case KindCrossover:
		fast, slow := rs.main.Value(), rs.slow.Value()
		if !rs.rule.Op.compare(fast, slow) {
			return false, 0
		}
		return true, marginConfidence(fast, slow, 0.01)
	case KindMomentum:
		m := rs.main.Value()
		if !rs.rule.Op.compare(m, rs.rule.Value) {
			return false, 0
		}
		return true, marginConfidence(m, rs.rule.Value, 1.0)
	}
	return false, 0
}

// marginConfidence maps how far value sits beyond the threshold onto [0,1].
// Full confidence is reached once the margin exceeds frac of the threshold's
// magnitude (or frac itself when the threshold is near zero).
func marginConfidence(value, threshold, frac float64) float64 {
	scale := frac * abs(threshold)
	if scale == 0 {
		scale = frac
	}
	conf := abs(value-threshold) / scale
	if conf > 1 {
		return 1
	}
	return conf
}

// combine folds the per-rule results under the given mode.
//
// ModeAll: satisfied only if every rule is, with confidence equal to the
// minimum across rules (the weakest link gates the decision).
// ModeAny: satisfied if at least one rule is, with confidence equal to the
// mean of satisfied rules' confidences.
func combine(mode Mode, states []*ruleState) (bool, float64) {
	if len(states) == 0 {
		return false, 0
	}

	switch mode {
	case ModeAll:
		minConf := 1.0
		for _, rs := range states {
			ok, conf := rs.evaluate()
			if !ok {
				return false, 0
			}
			if conf < minConf {
				minConf = conf
			}
		}
		return true, minConf
	case ModeAny:
		sum, n := 0.0, 0
		for _, rs := range states {
			if ok, conf := rs.evaluate(); ok {
				sum += conf
				n++
			}
		}
		if n == 0 {
			return false, 0
		}
		return true, sum / float64(n)
	}
	return false, 0
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
