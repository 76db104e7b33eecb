package handlers

import (
	"context"
	"log"

	"CryptoBacktester/internal/operations/marketdata"
	"CryptoBacktester/internal/repositories"
)

// BarHandler backfills historical bars into the repository before a run.
type BarHandler struct {
	fetcher *marketdata.Fetcher
	barRepo *repositories.BarRepository
	symbols []string
}

func NewBarHandler(fetcher *marketdata.Fetcher, barRepo *repositories.BarRepository, symbols []string) *BarHandler {
	return &BarHandler{
		fetcher: fetcher,
		barRepo: barRepo,
		symbols: symbols,
	}
}

// Backfill fetches interval klines for every configured symbol and stores
// them. Symbols that already have data are skipped.
func (h *BarHandler) Backfill(ctx context.Context, interval string, days int) error {
	for _, symbol := range h.symbols {
		count, err := h.barRepo.CountBySymbol(symbol)
		if err != nil {
			return err
		}
		if count > 0 {
			log.Printf("Skip backfill for %s: %d bars already stored", symbol, count)
			continue
		}

		log.Printf("Fetching %s %s bars for %d days", symbol, interval, days)
		bars, err := h.fetcher.FetchBars(ctx, symbol, interval, days)
		if err != nil {
			return err
		}

		if err := h.barRepo.CreateBatch(bars); err != nil {
			return err
		}
		log.Printf("Stored %d bars for %s", len(bars), symbol)
	}
	return nil
}
