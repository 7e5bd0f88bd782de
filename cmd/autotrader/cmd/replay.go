package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rustyeddy/autotrader/config"
	"github.com/rustyeddy/autotrader/engine"
	"github.com/rustyeddy/autotrader/market"
	"github.com/rustyeddy/autotrader/portfolio"
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Replay a recorded quote file through the strategies",
	Long: `Replay a CSV quote recording (time,symbol,price[,volume]) through the
strategies in a config file on a virtual clock. The whole session runs as
fast as the engine can tick, fully deterministically.

Example:
  autotrader replay -f examples/engine.yaml --quotes session.csv`,
	RunE: runReplay,
}

var (
	replayConfigPath string
	replayQuotesPath string
)

func init() {
	rootCmd.AddCommand(replayCmd)

	replayCmd.Flags().StringVarP(&replayConfigPath, "config", "f", "", "path to config file (required)")
	replayCmd.Flags().StringVar(&replayQuotesPath, "quotes", "", "path to quote CSV (required)")
	replayCmd.MarkFlagRequired("config")
	replayCmd.MarkFlagRequired("quotes")
}

func runReplay(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(replayConfigPath)
	if err != nil {
		return err
	}
	src, err := market.LoadReplayCSV(replayQuotesPath)
	if err != nil {
		return err
	}
	first, last := src.Span()
	if first.IsZero() {
		return fmt.Errorf("replay file %s has no quotes", replayQuotesPath)
	}

	logger, err := newLogger()
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer logger.Sync()

	jnl, err := openJournal(cfg.Journal)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer jnl.Close()

	clock := engine.NewVirtualClock(first)
	mgr, err := engine.NewManager(engine.Options{
		Provider:     src,
		Journal:      jnl,
		Clock:        clock,
		Logger:       logger,
		GlobalLimits: cfg.Engine.GlobalLimits,
		RiskFreeRate: cfg.Engine.RiskFreeRate,
		EventBuffer:  cfg.Engine.EventBuffer,
	})
	if err != nil {
		return err
	}
	events := mgr.Bus().Subscribe()

	pf := portfolio.New(cfg.Account.Cash, first)
	strategies, err := cfg.EngineConfigs()
	if err != nil {
		return err
	}
	step := strategies[0].Interval
	for _, sc := range strategies {
		if sc.Interval < step {
			step = sc.Interval
		}
		if err := mgr.Start(sc, pf); err != nil {
			mgr.StopAll()
			return fmt.Errorf("start strategy %s: %w", sc.ID, err)
		}
	}

	fmt.Printf("Replaying %s → %s (%d symbol(s), step %s)\n",
		first.Format(time.RFC3339), last.Format(time.RFC3339), len(src.Symbols()), step)

	// Drive the virtual clock through the recording, waiting for every live
	// strategy to finish its tick before stepping again so nothing is
	// dropped. A strategy that hits ERROR mid-replay just leaves the pool.
	active := len(strategies)
	for now := first; active > 0 && now.Before(last); now = now.Add(step) {
		clock.Advance(step)
		for seen := 0; seen < active; {
			select {
			case ev := <-events:
				switch ev.Type {
				case engine.EventTickCompleted:
					seen++
				case engine.EventRiskBreach:
					logger.Warn("risk breach",
						zap.String("strategy", ev.StrategyID),
						zap.String("reason", ev.Reason))
				case engine.EventStateChanged:
					if engine.Terminal(ev.To) {
						active--
					}
				}
			case <-time.After(5 * time.Second):
				return fmt.Errorf("replay stalled waiting for ticks at %s", now)
			}
		}
	}

	mgr.StopAll()

	view := pf.Snapshot()
	fmt.Printf("\nReplay finished\n")
	fmt.Printf("  Cash:   $%.2f\n", view.Cash)
	fmt.Printf("  Equity: $%.2f\n", view.Equity())
	fmt.Printf("  P&L:    $%.2f\n", view.Equity()-cfg.Account.Cash)
	for _, sc := range strategies {
		st, serr := mgr.Status(sc.ID)
		if serr != nil {
			continue
		}
		fmt.Printf("  %s: %s after %d tick(s)", st.ID, st.State, st.Ticks)
		if st.LastError != "" {
			fmt.Printf(" (%s)", st.LastError)
		}
		fmt.Printf("  sharpe %.2f  maxDD %.2f%%  win %.0f%%\n",
			st.Risk.Sharpe, st.Risk.MaxDrawdown*100, st.Risk.WinRate*100)
	}
	return nil
}
