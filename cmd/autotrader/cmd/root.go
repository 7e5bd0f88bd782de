package cmd

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "autotrader",
	Short: "A rule-driven strategy execution engine with simulated fills",
	Long: `Autotrader runs trading strategies against live or simulated market data.

Each strategy is a set of typed rules (indicator thresholds, crossovers,
momentum) ticked on its own schedule. Every signal passes a risk gate
(position size, daily loss, concentration, volatility) before it is filled by
the order simulator, and every tick recomputes the portfolio's risk metrics
(Sharpe, Sortino, Calmar, VaR/CVaR, drawdown).

Fills and equity points are journaled to CSV, SQLite, or Postgres.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Optional .env for provider URLs and database credentials.
		_ = godotenv.Load()
	},
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

func newLogger() (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
