package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

func Load() (*config, error) {
	if err := godotenv.Load(); err != nil {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	return &config{
		Exchange: ExchangeConfig{
			APIKey:    os.Getenv("BINANCE_API_KEY"),
			SecretKey: os.Getenv("BINANCE_SECRET_KEY"),
		},
		Database: DatabaseConfig{
			Host:     os.Getenv("DB_HOST"),
			Port:     EnvtoInt(os.Getenv("DB_PORT")),
			User:     os.Getenv("DB_USER"),
			Password: os.Getenv("DB_PASSWORD"),
			DBName:   os.Getenv("DB_NAME"),
		},
		Backtest: BacktestRunConfig{
			ConfigFile:   envOrDefault("BACKTEST_CONFIG", "backtest.yaml"),
			Strategy:     envOrDefault("BACKTEST_STRATEGY", "breakout"),
			Interval:     envOrDefault("BACKTEST_INTERVAL", "5m"),
			BackfillDays: EnvtoInt(os.Getenv("BACKFILL_DAYS")),
			StartTime:    envToTime("BACKTEST_START", time.Now().UTC().AddDate(0, 0, -30)),
			EndTime:      envToTime("BACKTEST_END", time.Now().UTC()),
		},
		Symbols: getSymbols(),
	}, nil
}

// helper env(string) to int
func EnvtoInt(s string) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return i
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// helper env "2006-01-02" to time, falling back to def
func envToTime(key string, def time.Time) time.Time {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return def
	}
	return t
}

// helper to get symbols
func getSymbols() []string {
	symbols := os.Getenv("TRADING_SYMBOLS")
	if symbols == "" {
		return []string{"BTCUSDT", "ETHUSDT"} // Default pairs if none specified
	}
	return strings.Split(symbols, ",")
}
