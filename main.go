package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"CryptoBacktester/config"
	"CryptoBacktester/internal/handlers"
	"CryptoBacktester/internal/models"
	"CryptoBacktester/internal/operations/backtest"
	"CryptoBacktester/internal/operations/marketdata"
	"CryptoBacktester/internal/repositories"
	"CryptoBacktester/internal/services/strategy"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	runCfg, err := backtest.LoadConfig(cfg.Backtest.ConfigFile)
	if err != nil {
		log.Fatal("Failed to load backtest config:", err)
	}

	// Setup database
	db := setupDatabase(cfg.Database)

	// Initialize repositories
	barRepo := repositories.NewBarRepository(db)
	tradeRepo := repositories.NewTradeRepository(db)

	// Setup context for cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt, syscall.SIGTERM)
		<-c
		log.Println("Shutting down...")
		cancel()
	}()

	// Backfill historical bars when requested
	if cfg.Backtest.BackfillDays > 0 {
		fetcher := marketdata.NewFetcher(cfg.Exchange.APIKey, cfg.Exchange.SecretKey)
		barHandler := handlers.NewBarHandler(fetcher, barRepo, cfg.Symbols)
		if err := barHandler.Backfill(ctx, cfg.Backtest.Interval, cfg.Backtest.BackfillDays); err != nil {
			log.Fatal("Failed to backfill bars:", err)
		}
	}

	// Load bar streams for the run window
	barsBySymbol := make(map[string][]models.Bar)
	for _, symbol := range cfg.Symbols {
		bars, err := barRepo.GetBarsBySymbol(symbol, cfg.Backtest.StartTime, cfg.Backtest.EndTime)
		if err != nil {
			log.Fatal("Failed to load bars:", err)
		}
		if len(bars) == 0 {
			log.Printf("No bars for %s in run window, skipping", symbol)
			continue
		}
		barsBySymbol[symbol] = bars
	}
	if len(barsBySymbol) == 0 {
		log.Fatal("No bar data in run window; set BACKFILL_DAYS to fetch some")
	}

	// Create and run engine
	strat, err := buildStrategy(cfg.Backtest.Strategy, runCfg)
	if err != nil {
		log.Fatal("Failed to build strategy:", err)
	}
	engine, err := backtest.NewEngine(runCfg, strat)
	if err != nil {
		log.Fatal("Failed to create engine:", err)
	}

	results, err := engine.Run(ctx, barsBySymbol)
	if err != nil {
		log.Fatal("Backtest failed:", err)
	}

	printResults(results)

	// Persist trade log and equity curve for downstream analysis
	if err := tradeRepo.SaveTrades(results.Trades); err != nil {
		log.Fatal("Failed to save trades:", err)
	}
	if err := tradeRepo.SaveEquityCurve(results.EquityCurve); err != nil {
		log.Fatal("Failed to save equity curve:", err)
	}

	log.Println("Backtest complete")
}

func buildStrategy(name string, runCfg backtest.Config) (strategy.Strategy, error) {
	switch name {
	case "breakout":
		return strategy.NewBreakoutStrategy(20, runCfg.ATRPeriod), nil
	case "mean_reversion":
		return strategy.NewMeanReversionStrategy(14, 50, runCfg.ATRPeriod), nil
	default:
		return nil, fmt.Errorf("unknown strategy %q", name)
	}
}

func printResults(results *backtest.Result) {
	fmt.Println("\n=== Backtest Results ===")
	fmt.Printf("Total Trades: %d\n", results.TotalTrades)
	if results.TotalTrades > 0 {
		fmt.Printf("Winning Trades: %d (%.2f%%)\n", results.WinningTrades, results.WinRate*100)
		fmt.Printf("Average PnL: $%.2f\n", results.AveragePnL)
	}
	fmt.Printf("Max Drawdown: %.2f%%\n", results.MaxDrawdown*100)
	fmt.Printf("Final Capital: $%.2f\n", results.FinalCapital)
	fmt.Printf("Sharpe Ratio: %.2f\n", results.SharpeRatio)
	fmt.Printf("Skipped (risk halt): %d\n", results.Summary.SkippedRiskHalt)
	fmt.Printf("Skipped (sizing): %d\n", results.Summary.SkippedSizing)
	fmt.Printf("Strategy faults: %d\n", results.Summary.StrategyFaults)
}

func setupDatabase(dbConfig config.DatabaseConfig) *gorm.DB {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		dbConfig.Host,
		dbConfig.Port,
		dbConfig.User,
		dbConfig.Password,
		dbConfig.DBName)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Error),
	})
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	// Auto migrate database schemas
	if err := db.AutoMigrate(&models.Bar{}, &models.Position{}, &models.EquityPoint{}); err != nil {
		log.Fatal("Failed to migrate database:", err)
	}

	return db
}
