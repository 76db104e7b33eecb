package models

import "time"

// EquityPoint is one mark-to-market sample of account value, appended once
// per processed bar timestamp.
type EquityPoint struct {
	ID          uint      `gorm:"primaryKey"`
	Timestamp   time.Time `gorm:"index;not null"`
	Equity      float64   `gorm:"type:decimal(20,8);not null"`
	DrawdownPct float64   `gorm:"type:decimal(20,8)"`
}

// TableName sets the table name for EquityPoint model
func (EquityPoint) TableName() string {
	return "equity_points"
}
