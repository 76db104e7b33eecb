// backtest/types.go

package backtest

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"CryptoBacktester/internal/models"
	"CryptoBacktester/internal/operations/position"
	"CryptoBacktester/internal/operations/risk"
)

// Config holds every run parameter. It is immutable for a run; invalid
// combinations fail at construction. Cost rates (slippage, spread, fees) are
// fractional rates of price (0.0005 = 5 bps).
type Config struct {
	InitialCapital float64 `yaml:"initial_capital"`
	RiskPerTrade   float64 `yaml:"risk_per_trade"`

	SlippageBase       float64 `yaml:"slippage_base"`
	BidAskSpread       float64 `yaml:"bid_ask_spread"`
	FeeEntry           float64 `yaml:"fee_entry"`
	FeeExit            float64 `yaml:"fee_exit"`
	VolatilityLookback int     `yaml:"volatility_lookback"`

	MaxConcurrentTrades   int    `yaml:"max_concurrent_trades"`
	MaxPositionsPerSymbol int    `yaml:"max_positions_per_symbol"`
	PositionMode          string `yaml:"position_mode"`
	ExecutionPriority     string `yaml:"execution_priority"`

	MaxDailyLossPct float64 `yaml:"max_daily_loss_pct"`
	MaxDrawdownPct  float64 `yaml:"max_drawdown_pct"`
	MaxLeverage     float64 `yaml:"max_leverage"`
	PerAssetCapPct  float64 `yaml:"per_asset_cap_pct"`

	UseATRSizing     bool    `yaml:"use_atr_sizing"`
	ATRPeriod        int     `yaml:"atr_period"`
	VolatilityFactor float64 `yaml:"volatility_factor"`

	PartialCloseFraction float64 `yaml:"partial_close_fraction"`
	RandomSeed           int64   `yaml:"random_seed"`
}

// NewConfig creates default config
func NewConfig() Config {
	return Config{
		InitialCapital:        10000,
		RiskPerTrade:          0.01,
		VolatilityLookback:    20,
		MaxConcurrentTrades:   3,
		MaxPositionsPerSymbol: 1,
		PositionMode:          risk.PositionModeNetting,
		ExecutionPriority:     position.PriorityStopLossFirst,
		MaxDailyLossPct:       0.05,
		MaxDrawdownPct:        0.20,
		MaxLeverage:           10,
		PerAssetCapPct:        0.5,
		ATRPeriod:             14,
		VolatilityFactor:      1.5,
		PartialCloseFraction:  0.5,
		RandomSeed:            1,
	}
}

// LoadConfig reads run parameters from a YAML file over the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := NewConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read backtest config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse backtest config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks the configuration invariants.
func (c *Config) Validate() error {
	if c.InitialCapital <= 0 {
		return &ConfigurationError{"initial_capital", "must be positive"}
	}
	if c.RiskPerTrade <= 0 {
		return &ConfigurationError{"risk_per_trade", "must be positive"}
	}
	if c.SlippageBase < 0 {
		return &ConfigurationError{"slippage_base", "must not be negative"}
	}
	if c.BidAskSpread < 0 {
		return &ConfigurationError{"bid_ask_spread", "must not be negative"}
	}
	if c.FeeEntry < 0 {
		return &ConfigurationError{"fee_entry", "must not be negative"}
	}
	if c.FeeExit < 0 {
		return &ConfigurationError{"fee_exit", "must not be negative"}
	}
	if c.VolatilityLookback < 2 {
		return &ConfigurationError{"volatility_lookback", "must be at least 2"}
	}
	if c.MaxConcurrentTrades < 1 {
		return &ConfigurationError{"max_concurrent_trades", "must be at least 1"}
	}
	if c.MaxPositionsPerSymbol < 1 {
		return &ConfigurationError{"max_positions_per_symbol", "must be at least 1"}
	}
	if c.PositionMode != risk.PositionModeNetting && c.PositionMode != risk.PositionModeHedging {
		return &ConfigurationError{"position_mode", "must be netting or hedging"}
	}
	switch c.ExecutionPriority {
	case position.PriorityStopLossFirst, position.PriorityTakeProfitFirst, position.PriorityFIFO:
	default:
		return &ConfigurationError{"execution_priority", "must be stop_loss_first, take_profit_first or fifo"}
	}
	if c.MaxDailyLossPct <= 0 || c.MaxDailyLossPct > 1 {
		return &ConfigurationError{"max_daily_loss_pct", "must be in (0, 1]"}
	}
	if c.MaxDrawdownPct <= 0 || c.MaxDrawdownPct > 1 {
		return &ConfigurationError{"max_drawdown_pct", "must be in (0, 1]"}
	}
	if c.MaxLeverage <= 0 {
		return &ConfigurationError{"max_leverage", "must be positive"}
	}
	if c.PerAssetCapPct <= 0 {
		return &ConfigurationError{"per_asset_cap_pct", "must be positive"}
	}
	if c.UseATRSizing && c.ATRPeriod < 1 {
		return &ConfigurationError{"atr_period", "must be at least 1"}
	}
	if c.UseATRSizing && c.VolatilityFactor <= 0 {
		return &ConfigurationError{"volatility_factor", "must be positive with ATR sizing"}
	}
	if c.PartialCloseFraction <= 0 || c.PartialCloseFraction >= 1 {
		return &ConfigurationError{"partial_close_fraction", "must be in (0, 1)"}
	}
	return nil
}

// Summary counts the recoverable conditions of a run. They never interrupt
// the run and are only visible here.
type Summary struct {
	SkippedRiskHalt int // entry opportunities denied by the risk controller
	SkippedSizing   int // signals whose size capped to zero or could not be sized
	StrategyFaults  int // strategy panics, errors, or invalid signals treated as hold
}

// Result holds the raw trade log and equity curve a run exposes, plus the
// derived trade metrics.
type Result struct {
	Trades      []models.Position
	EquityCurve []models.EquityPoint
	Summary     Summary

	// Trade metrics
	TotalTrades   int
	WinningTrades int
	LosingTrades  int
	WinRate       float64
	AveragePnL    float64

	// Performance metrics
	MaxDrawdown  float64
	FinalCapital float64
	SharpeRatio  float64
}
