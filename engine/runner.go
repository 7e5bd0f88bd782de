package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/rustyeddy/autotrader/journal"
	"github.com/rustyeddy/autotrader/metrics"
	"github.com/rustyeddy/autotrader/portfolio"
	"github.com/rustyeddy/autotrader/risk"
	"github.com/rustyeddy/autotrader/rules"
	"github.com/rustyeddy/autotrader/sim"
)

// maxConsecutiveErrors is how many ticks may fail in a row before the
// strategy is failed over to ERROR. A single clean tick resets the count.
const maxConsecutiveErrors = 3

// run is the per-strategy scheduler goroutine. It owns the evaluator, the
// volatility trackers, and the prev-price map; nothing else touches them.
func (m *Manager) run(s *strategy, ticker Ticker) {
	defer close(s.done)
	defer ticker.Stop()

	for {
		// Stop wins over a tick that fired at the same instant.
		select {
		case <-s.stopCh:
			m.finishStop(s)
			return
		default:
		}

		select {
		case <-s.stopCh:
			m.finishStop(s)
			return
		case <-ticker.C():
			s.mu.Lock()
			st := s.state
			s.mu.Unlock()
			if Terminal(st) {
				return
			}
			if st == StatePaused {
				continue
			}
			if terminal := m.tick(s); terminal {
				return
			}
			// A tick that outran the interval leaves a fired tick behind.
			// Discard it; ticks are dropped, never queued.
			s.dropped.Add(drainTicker(ticker))
		}
	}
}

func drainTicker(t Ticker) uint64 {
	var n uint64
	for {
		select {
		case <-t.C():
			n++
		default:
			return n
		}
	}
}

func (m *Manager) finishStop(s *strategy) {
	// Losing to a concurrent fail transition is fine; terminal is terminal.
	_ = m.transition(s, evStop, "stop requested")
}

// softFail records one tick failure. The strategy keeps running until
// maxConsecutiveErrors failures in a row, then fails to ERROR.
func (m *Manager) softFail(s *strategy, err error) (terminal bool) {
	s.mu.Lock()
	s.consecErr++
	s.lastErr = err
	n := s.consecErr
	s.mu.Unlock()

	m.logger.Error("tick failed",
		zap.String("strategy", s.cfg.ID),
		zap.Int("consecutive", n),
		zap.Error(err))

	if n >= maxConsecutiveErrors {
		_ = m.transition(s, evFail, fmt.Sprintf("%d consecutive tick failures: %v", n, err))
		return true
	}
	return false
}

// tick executes one full cycle: snapshot, rule evaluation, risk gate, fill
// simulation, mark-to-market, metrics, journaling, events. The portfolio
// lock is held only for the gate-fill-metrics section, so strategies sharing
// a portfolio serialize exactly there and nowhere else.
func (m *Manager) tick(s *strategy) (terminal bool) {
	now := m.clock.Now()

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Interval)
	snap, err := m.provider.GetSnapshot(ctx, s.cfg.Symbols, now, s.cfg.Interval)
	cancel()
	if err != nil {
		return m.softFail(s, fmt.Errorf("market snapshot: %w", err))
	}

	s.pf.RollDay(now)

	// Evaluate rules and refresh volatility before taking the portfolio
	// lock. A warning means missing or stale data for that symbol: it holds
	// this tick and its indicators do not advance.
	signals := make([]rules.Signal, 0, len(s.cfg.Symbols))
	prices := make(map[string]float64, len(s.cfg.Symbols))
	for _, symbol := range s.cfg.Symbols {
		if q, ok := snap.Quote(symbol); ok {
			prices[symbol] = q.Price
		}
		sig, warn := s.eval.Evaluate(snap, symbol, now)
		if warn != nil {
			m.logger.Warn("holding on bad market data",
				zap.String("strategy", s.cfg.ID),
				zap.String("symbol", warn.Symbol),
				zap.String("reason", warn.Reason))
			continue
		}
		s.vols[symbol].Update(prices[symbol])
		if sig.Action != rules.Hold {
			signals = append(signals, sig)
		}
	}

	var (
		fills    []fillEntry
		breach   string
		riskSnap metrics.RiskSnapshot
	)
	view, err := s.pf.Commit(func(tx *portfolio.Txn) error {
		for _, sig := range signals {
			f, reason, stop := m.gateAndFill(s, tx, sig, prices[sig.Symbol], now)
			if stop != "" {
				breach = stop
				break
			}
			if f != nil {
				fills = append(fills, fillEntry{fill: *f, reason: reason})
			}
		}

		tx.MarkToMarket(prices, now)
		riskSnap = metrics.Compute(tx.View(), s.trades, prices, m.riskFree)

		// Equity can decay with no order in sight; re-check the circuit
		// breaker against the marked portfolio.
		if breach == "" {
			if reason, bad := risk.CheckBreach(tx.View(), s.cfg.Limits); bad {
				breach = reason
			}
		}
		return nil
	})
	if err != nil {
		return m.softFail(s, fmt.Errorf("portfolio commit: %w", err))
	}

	// Journal failures never undo a committed tick; they flag the event.
	unpersisted := false
	for _, fe := range fills {
		rec := journal.FillRecord{
			FillID:     fe.fill.ID,
			StrategyID: fe.fill.StrategyID,
			Symbol:     fe.fill.Symbol,
			Quantity:   fe.fill.Quantity,
			Price:      fe.fill.Price,
			RealizedPL: fe.fill.RealizedPL,
			Time:       fe.fill.Time,
			Reason:     fe.reason,
		}
		if jerr := m.journal.RecordFill(rec); jerr != nil {
			unpersisted = true
			m.logger.Error("journal fill failed", zap.String("strategy", s.cfg.ID), zap.Error(jerr))
		}
	}
	if jerr := m.journal.RecordEquity(journal.EquityRecord{Time: now, Cash: view.Cash, Equity: view.Equity()}); jerr != nil {
		unpersisted = true
		m.logger.Error("journal equity failed", zap.String("strategy", s.cfg.ID), zap.Error(jerr))
	}

	for sym := range prices {
		if snap.Fresh(sym) {
			s.prev[sym] = prices[sym]
		}
	}

	s.mu.Lock()
	s.lastTick = now
	s.lastErr = nil
	s.consecErr = 0
	s.risk = riskSnap
	s.mu.Unlock()
	tickN := s.ticks.Add(1)

	m.bus.Publish(Event{
		Type:        EventTickCompleted,
		StrategyID:  s.cfg.ID,
		Time:        now,
		Tick:        tickN,
		Risk:        &riskSnap,
		Unpersisted: unpersisted,
	})

	if breach != "" {
		s.mu.Lock()
		s.lastErr = errors.New(breach)
		s.mu.Unlock()
		m.bus.Publish(Event{
			Type:       EventRiskBreach,
			StrategyID: s.cfg.ID,
			Time:       now,
			Reason:     breach,
		})
		_ = m.transition(s, evFail, breach)
		return true
	}
	return false
}

type fillEntry struct {
	fill   sim.Fill
	reason string
}

// gateAndFill runs one signal through the risk gate and, when allowed, the
// fill simulator, staging the result on tx. A non-empty stop reason means a
// FORCE_STOP verdict: no fill, and the caller must fail the strategy.
func (m *Manager) gateAndFill(s *strategy, tx *portfolio.Txn, sig rules.Signal, price float64, now time.Time) (fill *sim.Fill, reason, stop string) {
	var vol float64
	if v := s.vols[sig.Symbol]; v != nil && v.Ready() {
		vol = v.Value()
	}

	out := risk.Check(sig, tx.View(), s.cfg.Limits, price, vol)
	switch out.Verdict {
	case risk.ForceStop:
		return nil, "", out.Reason
	case risk.Reject:
		m.logger.Info("signal rejected",
			zap.String("strategy", s.cfg.ID),
			zap.String("symbol", sig.Symbol),
			zap.String("reason", out.Reason))
		return nil, "", ""
	case risk.Resize:
		m.logger.Info("signal resized",
			zap.String("strategy", s.cfg.ID),
			zap.String("symbol", sig.Symbol),
			zap.Float64("from", sig.Quantity),
			zap.Float64("to", out.Quantity),
			zap.String("reason", out.Reason))
	}

	ord := sim.Order{
		StrategyID: s.cfg.ID,
		Symbol:     sig.Symbol,
		Action:     sig.Action,
		Quantity:   out.Quantity,
		Model:      s.cfg.FillModel,
	}
	if ord.Model == sim.Limit {
		off := s.cfg.LimitOffsetBps / 10000
		if sig.Action == rules.Buy {
			ord.LimitPrice = price * (1 - off)
		} else {
			ord.LimitPrice = price * (1 + off)
		}
	}

	// A fill opposing the current position closes quantity up to the
	// position size; that quantity becomes a closed trade for win-rate.
	var closing float64
	if pos, ok := tx.Position(sig.Symbol); ok {
		opposing := (pos.Quantity > 0 && sig.Action == rules.Sell) ||
			(pos.Quantity < 0 && sig.Action == rules.Buy)
		if opposing {
			closing = math.Min(ord.Quantity, math.Abs(pos.Quantity))
		}
	}

	f, filled, err := s.exec.Execute(tx, ord, price, s.prev[sig.Symbol], now)
	if err != nil {
		// An unfillable order (insufficient cash, bad price) skips the
		// order, not the tick. Nothing was staged.
		m.logger.Warn("order not executed",
			zap.String("strategy", s.cfg.ID),
			zap.String("symbol", sig.Symbol),
			zap.Error(err))
		return nil, "", ""
	}
	if !filled {
		m.logger.Debug("limit order did not cross",
			zap.String("strategy", s.cfg.ID),
			zap.String("symbol", sig.Symbol),
			zap.Float64("limit", ord.LimitPrice),
			zap.Float64("last", price))
		return nil, "", ""
	}

	if closing > 0 {
		s.trades = append(s.trades, metrics.ClosedTrade{
			Symbol:     sig.Symbol,
			Quantity:   closing,
			RealizedPL: f.RealizedPL,
		})
	}
	return &f, out.Verdict.String(), ""
}
