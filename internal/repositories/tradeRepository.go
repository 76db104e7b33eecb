package repositories

import (
	"errors"
	"time"

	"CryptoBacktester/internal/models"

	"gorm.io/gorm"
)

type TradeRepository struct {
	db *gorm.DB
}

// NewTradeRepository creates a new instance of TradeRepository
func NewTradeRepository(db *gorm.DB) *TradeRepository {
	return &TradeRepository{db: db}
}

// SaveTrades persists a run's trade log
func (r *TradeRepository) SaveTrades(trades []models.Position) error {
	if len(trades) == 0 {
		return nil
	}
	return r.db.CreateInBatches(trades, 500).Error
}

// SaveEquityCurve persists a run's equity curve
func (r *TradeRepository) SaveEquityCurve(points []models.EquityPoint) error {
	if len(points) == 0 {
		return nil
	}
	return r.db.CreateInBatches(points, 500).Error
}

// FindBySymbol retrieves trades for a specific symbol
func (r *TradeRepository) FindBySymbol(symbol string) ([]models.Position, error) {
	if symbol == "" {
		return nil, errors.New("invalid symbol")
	}
	var trades []models.Position
	err := r.db.Where("symbol = ?", symbol).Order("close_time ASC").Find(&trades).Error
	return trades, err
}

// GetTotalPnL calculates the total realized profit and loss for all trades
// closed within a time range
func (r *TradeRepository) GetTotalPnL(start, end time.Time) (float64, error) {
	var totalPnL float64
	err := r.db.Model(&models.Position{}).
		Where("close_time BETWEEN ? AND ? AND status = ?", start, end, models.PositionStatusClosed).
		Select("COALESCE(SUM(realized_pnl), 0) as total_pnl").
		Scan(&totalPnL).Error
	return totalPnL, err
}
