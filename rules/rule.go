// Package rules defines typed strategy rules and the evaluator that turns a
// market snapshot into trade signals.
package rules

import (
	"fmt"
	"time"
)

// Action is the evaluator's recommendation for one symbol in one tick.
type Action string

const (
	Buy  Action = "BUY"
	Sell Action = "SELL"
	Hold Action = "HOLD"
)

// Signal is ephemeral: produced and consumed within one tick, logged but
// never stored as a mutable entity.
type Signal struct {
	Symbol     string
	Action     Action
	Confidence float64
	Quantity   float64
	Time       time.Time
}

// Kind selects the predicate a rule evaluates.
type Kind string

const (
	// KindThreshold compares a single indicator value against Value.
	KindThreshold Kind = "threshold"
	// KindCrossover compares a fast moving average against a slow one.
	KindCrossover Kind = "crossover"
	// KindMomentum compares trailing fractional price change against Value.
	KindMomentum Kind = "momentum"
)

// Op is the comparison a threshold/momentum rule applies.
type Op string

const (
	OpLT Op = "lt"
	OpLE Op = "le"
	OpGT Op = "gt"
	OpGE Op = "ge"
)

// Indicator names accepted by threshold rules.
const (
	IndRSI = "rsi"
	IndEMA = "ema"
	IndSMA = "sma"
)

// Rule is one typed predicate. Rules are immutable once attached to a Set.
type Rule struct {
	Kind      Kind    `yaml:"kind" json:"kind"`
	Indicator string  `yaml:"indicator,omitempty" json:"indicator,omitempty"`
	Period    int     `yaml:"period,omitempty" json:"period,omitempty"`
	Fast      int     `yaml:"fast,omitempty" json:"fast,omitempty"`
	Slow      int     `yaml:"slow,omitempty" json:"slow,omitempty"`
	Op        Op      `yaml:"op,omitempty" json:"op,omitempty"`
	Value     float64 `yaml:"value,omitempty" json:"value,omitempty"`
}

// Mode is the combination policy for a rule list.
type Mode string

const (
	// ModeAll requires every rule to be satisfied (conservative, entries).
	ModeAll Mode = "all"
	// ModeAny requires at least one rule to be satisfied (exits/stops).
	ModeAny Mode = "any"
)

// Set is one immutable, versioned rule snapshot. A running strategy evaluates
// exactly one Set per tick; changes ship as a whole new version.
type Set struct {
	Version int    `yaml:"version" json:"version"`
	Combine Mode   `yaml:"combine" json:"combine"`
	Entry   []Rule `yaml:"entry" json:"entry"`
	Exit    []Rule `yaml:"exit" json:"exit"`
}

// Validate rejects malformed rules before a strategy is allowed to start.
func (s Set) Validate() error {
	if len(s.Entry) == 0 && len(s.Exit) == 0 {
		return fmt.Errorf("rule set v%d has no rules", s.Version)
	}
	if s.Combine != ModeAll && s.Combine != ModeAny {
		return fmt.Errorf("rule set v%d: unknown combine mode %q", s.Version, s.Combine)
	}
	for i, r := range append(append([]Rule{}, s.Entry...), s.Exit...) {
		if err := r.validate(); err != nil {
			return fmt.Errorf("rule set v%d rule %d: %w", s.Version, i, err)
		}
	}
	return nil
}

func (r Rule) validate() error {
	switch r.Kind {
	case KindThreshold:
		switch r.Indicator {
		case IndRSI, IndEMA, IndSMA:
		default:
			return fmt.Errorf("unknown indicator %q", r.Indicator)
		}
		if r.Period <= 0 {
			return fmt.Errorf("period must be positive, got %d", r.Period)
		}
		return r.Op.validate()
	case KindCrossover:
		if r.Fast <= 0 || r.Slow <= 0 {
			return fmt.Errorf("crossover periods must be positive, got fast=%d slow=%d", r.Fast, r.Slow)
		}
		if r.Fast >= r.Slow {
			return fmt.Errorf("crossover fast period %d must be below slow %d", r.Fast, r.Slow)
		}
		return r.Op.validate()
	case KindMomentum:
		if r.Period <= 0 {
			return fmt.Errorf("period must be positive, got %d", r.Period)
		}
		return r.Op.validate()
	default:
		return fmt.Errorf("unknown rule kind %q", r.Kind)
	}
}

func (o Op) validate() error {
	switch o {
	case OpLT, OpLE, OpGT, OpGE:
		return nil
	}
	return fmt.Errorf("unknown operator %q", o)
}

func (o Op) compare(value, threshold float64) bool {
	switch o {
	case OpLT:
		return value < threshold
	case OpLE:
		return value <= threshold
	case OpGT:
		return value > threshold
	case OpGE:
		return value >= threshold
	}
	return false
}
