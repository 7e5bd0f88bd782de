// Package sim converts gated signals into simulated fills. No order book or
// resting orders are modeled: MARKET orders fill immediately with slippage,
// LIMIT orders fill only when the last price has crossed the limit since the
// previous tick and are otherwise dropped.
package sim

import (
	"fmt"
	"time"

	"github.com/rustyeddy/autotrader/pkg/id"
	"github.com/rustyeddy/autotrader/portfolio"
	"github.com/rustyeddy/autotrader/rules"
)

// FillModel selects how an order turns into a fill.
type FillModel string

const (
	// Market fills immediately at last price adjusted by slippage.
	Market FillModel = "market"
	// Limit fills at the limit price only if last price crossed it since
	// the previous tick.
	Limit FillModel = "limit"
)

// Order is one candidate execution produced from a gated signal. Quantity is
// positive; direction comes from Action.
type Order struct {
	StrategyID string
	Symbol     string
	Action     rules.Action
	Quantity   float64
	Model      FillModel
	LimitPrice float64
}

// Fill is one executed simulated trade. Quantity is signed.
type Fill struct {
	ID         string
	StrategyID string
	Symbol     string
	Quantity   float64
	Price      float64
	RealizedPL float64
	Time       time.Time
}

// Simulator executes orders against a portfolio transaction. slippageBps is
// applied against MARKET fills: buys pay up, sells receive less.
type Simulator struct {
	slippageBps float64
}

func New(slippageBps float64) *Simulator {
	return &Simulator{slippageBps: slippageBps}
}

// Execute attempts to fill ord at the current last price. prev is the last
// price from the previous tick (zero when unknown). The position and cash
// updates are staged on tx, so they commit or roll back together with
// everything else in the tick.
//
// filled is false when a LIMIT order did not cross; that is a drop, not an
// error.
func (s *Simulator) Execute(tx *portfolio.Txn, ord Order, last, prev float64, now time.Time) (Fill, bool, error) {
	if ord.Quantity <= 0 {
		return Fill{}, false, fmt.Errorf("sim: order quantity must be positive, got %.4f", ord.Quantity)
	}
	if last <= 0 {
		return Fill{}, false, fmt.Errorf("sim: no valid last price for %s", ord.Symbol)
	}

	var sign float64
	switch ord.Action {
	case rules.Buy:
		sign = 1
	case rules.Sell:
		sign = -1
	default:
		return Fill{}, false, fmt.Errorf("sim: unfillable action %q", ord.Action)
	}

	var fillPrice float64
	switch ord.Model {
	case Market:
		fillPrice = last * (1 + sign*s.slippageBps/10000)
	case Limit:
		if ord.LimitPrice <= 0 {
			return Fill{}, false, fmt.Errorf("sim: limit order without limit price for %s", ord.Symbol)
		}
		if !crossed(ord.Action, ord.LimitPrice, last, prev) {
			return Fill{}, false, nil
		}
		fillPrice = ord.LimitPrice
	default:
		return Fill{}, false, fmt.Errorf("sim: unknown fill model %q", ord.Model)
	}

	realized, err := tx.ApplyFill(ord.Symbol, sign*ord.Quantity, fillPrice)
	if err != nil {
		return Fill{}, false, err
	}

	return Fill{
		ID:         id.New(),
		StrategyID: ord.StrategyID,
		Symbol:     ord.Symbol,
		Quantity:   sign * ord.Quantity,
		Price:      fillPrice,
		RealizedPL: realized,
		Time:       now,
	}, true, nil
}

// crossed reports whether last price crossed the limit since the previous
// tick. Without a previous tick there is nothing to cross from.
func crossed(action rules.Action, limit, last, prev float64) bool {
	if prev <= 0 {
		return false
	}
	switch action {
	case rules.Buy:
		return prev > limit && last <= limit
	case rules.Sell:
		return prev < limit && last >= limit
	}
	return false
}
