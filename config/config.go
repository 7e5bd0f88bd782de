// Package config loads and validates engine configuration from YAML or JSON
// files. Parsing is strict: a key the engine does not know is a typo, and
// typos in risk limits are not something to discover in production.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rustyeddy/autotrader/engine"
	"github.com/rustyeddy/autotrader/risk"
	"github.com/rustyeddy/autotrader/rules"
	"github.com/rustyeddy/autotrader/sim"
)

// Config is the complete engine configuration: one account, one market data
// source, one journal, and any number of strategies trading the account.
type Config struct {
	Account    AccountConfig    `yaml:"account" json:"account"`
	Market     MarketConfig     `yaml:"market" json:"market"`
	Journal    JournalConfig    `yaml:"journal" json:"journal"`
	Engine     EngineConfig     `yaml:"engine" json:"engine"`
	Strategies []StrategyConfig `yaml:"strategies" json:"strategies"`
}

// AccountConfig seeds the shared portfolio.
type AccountConfig struct {
	Currency string  `yaml:"currency" json:"currency"`
	Cash     float64 `yaml:"cash" json:"cash"`
}

// MarketConfig selects the market data provider.
type MarketConfig struct {
	// Provider is "sim" for the in-memory provider or "stream" for a
	// websocket quote feed.
	Provider string `yaml:"provider" json:"provider"`
	// URL is the websocket endpoint for the stream provider.
	URL string `yaml:"url,omitempty" json:"url,omitempty"`
}

// JournalConfig selects the trade-ledger backend.
type JournalConfig struct {
	// Type is one of "none", "csv", "sqlite", "postgres".
	Type       string `yaml:"type" json:"type"`
	TradesFile string `yaml:"trades_file,omitempty" json:"trades_file,omitempty"`
	EquityFile string `yaml:"equity_file,omitempty" json:"equity_file,omitempty"`
	DBPath     string `yaml:"db_path,omitempty" json:"db_path,omitempty"`
	// DSN is the Postgres connection string. Usually supplied via the
	// AUTOTRADER_PG_DSN environment variable instead of the file.
	DSN string `yaml:"dsn,omitempty" json:"dsn,omitempty"`
}

// EngineConfig holds engine-wide settings.
type EngineConfig struct {
	// GlobalLimits caps every strategy's risk profile; zero fields are
	// unenforced.
	GlobalLimits risk.Limits `yaml:"global_limits" json:"global_limits"`
	// RiskFreeRate is the per-period risk-free rate for ratio metrics.
	RiskFreeRate float64 `yaml:"risk_free_rate,omitempty" json:"risk_free_rate,omitempty"`
	// EventBuffer sizes each event subscriber's channel.
	EventBuffer int `yaml:"event_buffer,omitempty" json:"event_buffer,omitempty"`
}

// StrategyConfig is the file form of one strategy. Interval is a duration
// string like "5s" or "1m".
type StrategyConfig struct {
	ID             string      `yaml:"id" json:"id"`
	Name           string      `yaml:"name,omitempty" json:"name,omitempty"`
	Symbols        []string    `yaml:"symbols" json:"symbols"`
	Interval       string      `yaml:"interval" json:"interval"`
	Rules          rules.Set   `yaml:"rules" json:"rules"`
	Limits         risk.Limits `yaml:"limits" json:"limits"`
	Quantity       float64     `yaml:"quantity" json:"quantity"`
	FillModel      string      `yaml:"fill_model,omitempty" json:"fill_model,omitempty"`
	SlippageBps    float64     `yaml:"slippage_bps,omitempty" json:"slippage_bps,omitempty"`
	LimitOffsetBps float64     `yaml:"limit_offset_bps,omitempty" json:"limit_offset_bps,omitempty"`
	VolWindow      int         `yaml:"vol_window,omitempty" json:"vol_window,omitempty"`
}

// Load reads, strictly parses, and validates a config file. JSON is chosen
// by a .json extension; anything else parses as YAML.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := &Config{}
	if filepath.Ext(path) == ".json" {
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	} else {
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the config to path, JSON for .json and YAML otherwise.
func (c *Config) Save(path string) error {
	var (
		data []byte
		err  error
	)
	if filepath.Ext(path) == ".json" {
		data, err = json.MarshalIndent(c, "", "  ")
	} else {
		data, err = yaml.Marshal(c)
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Validate checks everything that does not need the engine: account, backend
// selections, duplicate ids, and interval syntax. Strategy rules and limits
// get their deep validation from engine.StrategyConfig.Validate at start.
func (c *Config) Validate() error {
	if c.Account.Cash <= 0 {
		return fmt.Errorf("account.cash must be positive, got %.2f", c.Account.Cash)
	}

	switch c.Market.Provider {
	case "", "sim":
	case "stream":
		if c.Market.URL == "" {
			return fmt.Errorf("market.url is required for the stream provider")
		}
	default:
		return fmt.Errorf("unknown market.provider %q", c.Market.Provider)
	}

	switch c.Journal.Type {
	case "", "none":
	case "csv":
		if c.Journal.TradesFile == "" || c.Journal.EquityFile == "" {
			return fmt.Errorf("journal.trades_file and journal.equity_file are required for csv")
		}
	case "sqlite":
		if c.Journal.DBPath == "" {
			return fmt.Errorf("journal.db_path is required for sqlite")
		}
	case "postgres":
	default:
		return fmt.Errorf("unknown journal.type %q", c.Journal.Type)
	}

	if len(c.Strategies) == 0 {
		return fmt.Errorf("no strategies configured")
	}
	seen := make(map[string]bool, len(c.Strategies))
	for i, s := range c.Strategies {
		if s.ID == "" {
			return fmt.Errorf("strategies[%d]: missing id", i)
		}
		if seen[s.ID] {
			return fmt.Errorf("duplicate strategy id %q", s.ID)
		}
		seen[s.ID] = true
		if _, err := time.ParseDuration(s.Interval); err != nil {
			return fmt.Errorf("strategy %s: bad interval %q: %w", s.ID, s.Interval, err)
		}
	}
	return nil
}

// EngineConfigs converts the file strategies into engine configs.
func (c *Config) EngineConfigs() ([]engine.StrategyConfig, error) {
	out := make([]engine.StrategyConfig, 0, len(c.Strategies))
	for _, s := range c.Strategies {
		interval, err := time.ParseDuration(s.Interval)
		if err != nil {
			return nil, fmt.Errorf("strategy %s: bad interval %q: %w", s.ID, s.Interval, err)
		}
		name := s.Name
		if name == "" {
			name = s.ID
		}
		out = append(out, engine.StrategyConfig{
			ID:             s.ID,
			Name:           name,
			Symbols:        s.Symbols,
			Interval:       interval,
			Rules:          s.Rules,
			Limits:         s.Limits,
			Quantity:       s.Quantity,
			FillModel:      sim.FillModel(s.FillModel),
			SlippageBps:    s.SlippageBps,
			LimitOffsetBps: s.LimitOffsetBps,
			VolWindow:      s.VolWindow,
		})
	}
	return out, nil
}

// Default is a runnable sample configuration, used by `autotrader demo` and
// as a starting point for new deployments.
func Default() *Config {
	return &Config{
		Account: AccountConfig{Currency: "USD", Cash: 100_000},
		Market:  MarketConfig{Provider: "sim"},
		Journal: JournalConfig{Type: "none"},
		Engine: EngineConfig{
			GlobalLimits: risk.Limits{
				MaxPositionPct:      0.25,
				MaxDailyLossPct:     0.05,
				MaxConcentrationPct: 0.50,
				MaxVolatility:       1.0,
			},
		},
		Strategies: []StrategyConfig{{
			ID:       "rsi-reversion",
			Name:     "RSI mean reversion",
			Symbols:  []string{"ACME"},
			Interval: "1s",
			Rules: rules.Set{
				Version: 1,
				Combine: rules.ModeAll,
				Entry: []rules.Rule{{
					Kind:      rules.KindThreshold,
					Indicator: rules.IndRSI,
					Period:    14,
					Op:        rules.OpLT,
					Value:     30,
				}},
				Exit: []rules.Rule{{
					Kind:      rules.KindThreshold,
					Indicator: rules.IndRSI,
					Period:    14,
					Op:        rules.OpGT,
					Value:     70,
				}},
			},
			Limits: risk.Limits{
				MaxPositionPct:      0.10,
				MaxDailyLossPct:     0.02,
				MaxConcentrationPct: 0.25,
				MaxVolatility:       0.50,
			},
			Quantity:    100,
			FillModel:   "market",
			SlippageBps: 2,
		}},
	}
}
