package config

import "time"

type config struct {
	Exchange ExchangeConfig
	Database DatabaseConfig
	Backtest BacktestRunConfig
	Symbols  []string
}

type ExchangeConfig struct {
	APIKey    string
	SecretKey string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
}

// BacktestRunConfig selects the run window, the data interval and where the
// engine parameters live. The engine parameters themselves are YAML
// (see backtest.LoadConfig).
type BacktestRunConfig struct {
	ConfigFile   string
	Strategy     string
	Interval     string
	BackfillDays int
	StartTime    time.Time
	EndTime      time.Time
}
