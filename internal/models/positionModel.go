package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	PositionStatusOpen            = "open"
	PositionStatusPartiallyClosed = "partially_closed"
	PositionStatusClosed          = "closed"

	ExitReasonStopLoss          = "stop_loss"
	ExitReasonStopLossBreakeven = "stop_loss_breakeven"
	ExitReasonTakeProfit2       = "take_profit_2"
	ExitReasonEndOfData         = "end_of_data"
)

// Position is a simulated trade. It is created on entry fill and mutated only
// through the transition methods below, so the lifecycle invariants
// (size never grows, breakeven stop set exactly once, closed means size zero)
// are enforced in one place.
type Position struct {
	ID     string `gorm:"primaryKey"`
	Symbol string `gorm:"index;not null"`
	Side   string `gorm:"not null"`

	// EntryPrice is the effective fill price after slippage and spread.
	EntryPrice   float64 `gorm:"type:decimal(20,8);not null"`
	Size         float64 `gorm:"type:decimal(20,8);not null"`
	OriginalSize float64 `gorm:"type:decimal(20,8);not null"`

	StopLoss    float64 `gorm:"type:decimal(20,8);not null"`
	TakeProfit1 float64 `gorm:"type:decimal(20,8);not null"`
	TakeProfit2 float64 `gorm:"type:decimal(20,8);not null"`

	OpenTime  time.Time `gorm:"index;not null"`
	CloseTime time.Time `gorm:"index"`
	Status    string    `gorm:"not null"`

	RealizedPnL  float64 `gorm:"column:realized_pnl;type:decimal(20,8)"`
	FeesPaid     float64 `gorm:"type:decimal(20,8)"`
	SlippagePaid float64 `gorm:"type:decimal(20,8)"`
	ExitReason   string

	Tags map[string]string `gorm:"serializer:json"`
}

// TableName sets the table name for Position model
func (Position) TableName() string {
	return "trades"
}

// NewPosition creates an open position. The id is derived from symbol, open
// time and a run-scoped sequence number, so identical runs produce identical
// trade logs.
func NewPosition(seq int64, symbol, side string, entryPrice, size float64, sig *Signal, openTime time.Time) *Position {
	id := uuid.NewSHA1(uuid.NameSpaceOID,
		[]byte(fmt.Sprintf("%s|%d|%d", symbol, openTime.UnixNano(), seq))).String()

	return &Position{
		ID:           id,
		Symbol:       symbol,
		Side:         side,
		EntryPrice:   entryPrice,
		Size:         size,
		OriginalSize: size,
		StopLoss:     sig.StopLoss,
		TakeProfit1:  sig.TakeProfit1,
		TakeProfit2:  sig.TakeProfit2,
		OpenTime:     openTime,
		Status:       PositionStatusOpen,
		Tags:         sig.Tags,
	}
}

// BookEntryCosts charges entry fee and slippage to the position. Entry costs
// are realized immediately.
func (p *Position) BookEntryCosts(fee, slippage float64) {
	p.RealizedPnL -= fee
	p.FeesPaid += fee
	p.SlippagePaid += slippage
}

// ApplyPartialClose books a take-profit-1 fill: qty closes, the stop moves to
// breakeven (the entry price) and never moves again.
func (p *Position) ApplyPartialClose(qty, netPnL, fee, slippage float64) error {
	if p.Status != PositionStatusOpen {
		return fmt.Errorf("partial close on %s position %s", p.Status, p.ID)
	}
	if qty <= 0 || qty >= p.Size {
		return fmt.Errorf("partial close qty %.8f out of range (0, %.8f)", qty, p.Size)
	}

	p.Size -= qty
	p.RealizedPnL += netPnL
	p.FeesPaid += fee
	p.SlippagePaid += slippage
	p.StopLoss = p.EntryPrice
	p.Status = PositionStatusPartiallyClosed
	return nil
}

// ApplyClose books the final fill for the full remaining size and finalizes
// the position.
func (p *Position) ApplyClose(netPnL, fee, slippage float64, reason string, closeTime time.Time) error {
	if p.Status == PositionStatusClosed {
		return fmt.Errorf("close on already closed position %s", p.ID)
	}
	if p.Size <= 0 {
		return fmt.Errorf("close on position %s with size %.8f", p.ID, p.Size)
	}

	p.Size = 0
	p.RealizedPnL += netPnL
	p.FeesPaid += fee
	p.SlippagePaid += slippage
	p.Status = PositionStatusClosed
	p.ExitReason = reason
	p.CloseTime = closeTime
	return nil
}

// UnrealizedPnL marks the remaining size to the given price.
func (p *Position) UnrealizedPnL(markPrice float64) float64 {
	if p.Size <= 0 {
		return 0
	}
	if p.Side == SideLong {
		return (markPrice - p.EntryPrice) * p.Size
	}
	return (p.EntryPrice - markPrice) * p.Size
}

// Notional is the remaining exposure at the entry price.
func (p *Position) Notional() float64 {
	return p.Size * p.EntryPrice
}
