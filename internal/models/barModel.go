package models

import (
	"fmt"
	"time"
)

// Bar is one OHLCV sample for a symbol at a timestamp.
type Bar struct {
	ID       uint      `gorm:"primaryKey"`
	Symbol   string    `gorm:"index;not null"`
	OpenTime time.Time `gorm:"index;not null"`
	Open     float64   `gorm:"type:decimal(20,8)"`
	High     float64   `gorm:"type:decimal(20,8)"`
	Low      float64   `gorm:"type:decimal(20,8)"`
	Close    float64   `gorm:"type:decimal(20,8)"`
	Volume   float64   `gorm:"type:decimal(20,8)"`
}

// TableName sets the table name for Bar model
func (Bar) TableName() string {
	return "bars"
}

// Validate checks the OHLC sanity invariant: low <= open,close <= high.
func (b *Bar) Validate() error {
	if b.Low > b.High {
		return fmt.Errorf("low %.8f above high %.8f", b.Low, b.High)
	}
	if b.Open < b.Low || b.Open > b.High {
		return fmt.Errorf("open %.8f outside [%.8f, %.8f]", b.Open, b.Low, b.High)
	}
	if b.Close < b.Low || b.Close > b.High {
		return fmt.Errorf("close %.8f outside [%.8f, %.8f]", b.Close, b.Low, b.High)
	}
	return nil
}
