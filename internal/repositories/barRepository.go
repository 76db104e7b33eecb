package repositories

import (
	"errors"
	"time"

	"CryptoBacktester/internal/models"

	"gorm.io/gorm"
)

type BarRepository struct {
	db *gorm.DB
}

// NewBarRepository creates a new instance of BarRepository
func NewBarRepository(db *gorm.DB) *BarRepository {
	return &BarRepository{db: db}
}

// Create adds a new Bar record to the database
func (r *BarRepository) Create(bar *models.Bar) error {
	if bar == nil {
		return errors.New("bar cannot be nil")
	}
	return r.db.Create(bar).Error
}

// CreateBatch inserts bars in chunks
func (r *BarRepository) CreateBatch(bars []models.Bar) error {
	if len(bars) == 0 {
		return nil
	}
	return r.db.CreateInBatches(bars, 500).Error
}

// GetBarsBySymbol retrieves bars for a symbol within a time range, ordered
// by open time.
func (r *BarRepository) GetBarsBySymbol(symbol string, start, end time.Time) ([]models.Bar, error) {
	if symbol == "" {
		return nil, errors.New("invalid symbol")
	}

	var bars []models.Bar
	err := r.db.Where("symbol = ? AND open_time BETWEEN ? AND ?", symbol, start, end).
		Order("open_time ASC").
		Find(&bars).Error
	return bars, err
}

// CountBySymbol returns the number of stored bars for a symbol
func (r *BarRepository) CountBySymbol(symbol string) (int64, error) {
	var count int64
	err := r.db.Model(&models.Bar{}).Where("symbol = ?", symbol).Count(&count).Error
	return count, err
}

// GetLatestBar gets the most recent bar for a symbol
func (r *BarRepository) GetLatestBar(symbol string) (*models.Bar, error) {
	if symbol == "" {
		return nil, errors.New("invalid symbol")
	}

	var bar models.Bar
	err := r.db.Where("symbol = ?", symbol).
		Order("open_time DESC").
		First(&bar).Error

	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	return &bar, err
}
