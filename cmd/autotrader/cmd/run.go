package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rustyeddy/autotrader/config"
	"github.com/rustyeddy/autotrader/engine"
	"github.com/rustyeddy/autotrader/journal"
	"github.com/rustyeddy/autotrader/market"
	"github.com/rustyeddy/autotrader/portfolio"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run strategies from a config file",
	Long: `Run every strategy in a configuration file until interrupted.

Example:
  autotrader run -f examples/engine.yaml`,
	RunE: runRun,
}

var runConfigPath string

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runConfigPath, "config", "f", "", "path to config file (YAML or JSON) (required)")
	runCmd.MarkFlagRequired("config")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(runConfigPath)
	if err != nil {
		return err
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	provider, err := openProvider(ctx, cfg.Market, logger)
	if err != nil {
		return fmt.Errorf("open market provider: %w", err)
	}

	mgr, err := engine.NewManager(engine.Options{
		Provider:     provider,
		Journal:      jnl,
		Logger:       logger,
		GlobalLimits: cfg.Engine.GlobalLimits,
		RiskFreeRate: cfg.Engine.RiskFreeRate,
		EventBuffer:  cfg.Engine.EventBuffer,
	})
	if err != nil {
		return err
	}
	go logEvents(logger, mgr.Bus().Subscribe())

	pf := portfolio.New(cfg.Account.Cash, time.Now())
	strategies, err := cfg.EngineConfigs()
	if err != nil {
		return err
	}
	for _, sc := range strategies {
		if err := mgr.Start(sc, pf); err != nil {
			mgr.StopAll()
			return fmt.Errorf("start strategy %s: %w", sc.ID, err)
		}
		logger.Info("strategy started",
			zap.String("strategy", sc.ID),
			zap.Strings("symbols", sc.Symbols),
			zap.Duration("interval", sc.Interval))
	}

	<-ctx.Done()
	logger.Info("shutting down")
	if failed := mgr.StopAll(); len(failed) > 0 {
		logger.Warn("strategies did not stop in time", zap.Strings("ids", failed))
	}

	view := pf.Snapshot()
	fmt.Printf("\nFinal portfolio: cash $%.2f, equity $%.2f, %d open position(s)\n",
		view.Cash, view.Equity(), len(view.Positions))
	return nil
}

func openJournal(jc config.JournalConfig) (journal.Journal, error) {
	switch jc.Type {
	case "", "none":
		return journal.Nop{}, nil
	case "csv":
		return journal.NewCSV(jc.TradesFile, jc.EquityFile)
	case "sqlite":
		return journal.NewSQLite(jc.DBPath)
	case "postgres":
		dsn := jc.DSN
		if dsn == "" {
			dsn = os.Getenv("AUTOTRADER_PG_DSN")
		}
		if dsn == "" {
			return nil, fmt.Errorf("postgres journal needs journal.dsn or AUTOTRADER_PG_DSN")
		}
		return journal.NewPostgres(dsn)
	}
	return nil, fmt.Errorf("unknown journal type %q", jc.Type)
}

func openProvider(ctx context.Context, mc config.MarketConfig, logger *zap.Logger) (market.Provider, error) {
	switch mc.Provider {
	case "", "sim":
		logger.Warn("sim provider has no external feed; strategies hold until quotes are pushed (see `autotrader demo`)")
		return market.NewSimProvider(), nil
	case "stream":
		p := market.NewStreamProvider(mc.URL, logger)
		go func() {
			if err := p.Run(ctx); err != nil && ctx.Err() == nil {
				logger.Error("quote stream stopped", zap.Error(err))
			}
		}()
		return p, nil
	}
	return nil, fmt.Errorf("unknown market provider %q", mc.Provider)
}

func logEvents(logger *zap.Logger, events <-chan engine.Event) {
	for ev := range events {
		switch ev.Type {
		case engine.EventStateChanged:
			logger.Info("strategy state changed",
				zap.String("strategy", ev.StrategyID),
				zap.String("from", string(ev.From)),
				zap.String("to", string(ev.To)),
				zap.String("reason", ev.Reason))
		case engine.EventRiskBreach:
			logger.Warn("risk breach",
				zap.String("strategy", ev.StrategyID),
				zap.String("reason", ev.Reason))
		case engine.EventTickCompleted:
			if ev.Risk == nil {
				continue
			}
			logger.Debug("tick completed",
				zap.String("strategy", ev.StrategyID),
				zap.Uint64("tick", ev.Tick),
				zap.Float64("daily_pnl_pct", ev.Risk.DailyPnLPct),
				zap.Float64("sharpe", ev.Risk.Sharpe),
				zap.Float64("max_drawdown", ev.Risk.MaxDrawdown),
				zap.Bool("unpersisted", ev.Unpersisted))
		}
	}
}
