package position

import (
	"fmt"
	"time"

	"CryptoBacktester/internal/models"
	"CryptoBacktester/internal/operations/costmodel"
)

// Execution priority decides the winner when a bar touches both the stop and
// the active take-profit. Real intrabar sequencing is unknowable from OHLC
// alone, so the tie-break is an explicit policy.
const (
	PriorityStopLossFirst   = "stop_loss_first"
	PriorityTakeProfitFirst = "take_profit_first"
	// PriorityFIFO resolves by level registration order; entry registers
	// the stop before the target, so it behaves like stop-first.
	PriorityFIFO = "fifo"
)

// FillEvent is one realized exit fill, partial or final.
type FillEvent struct {
	PositionID  string
	Symbol      string
	Qty         float64
	Price       float64
	RealizedPnL float64 // net of exit fee
	Fee         float64
	Slippage    float64
	Reason      string
	Time        time.Time
	Final       bool
}

// Manager owns the lifecycle of open positions: intrabar fill detection, the
// partial-exit and breakeven-stop transition, and final closure. At most one
// state transition is applied per position per bar.
type Manager struct {
	costs           *costmodel.CostModel
	priority        string
	partialFraction float64
}

// NewManager creates a position manager.
func NewManager(costs *costmodel.CostModel, priority string, partialFraction float64) *Manager {
	return &Manager{
		costs:           costs,
		priority:        priority,
		partialFraction: partialFraction,
	}
}

// Advance runs one bar through an open or partially closed position and
// returns the fill event it produced, or nil when no level was touched.
func (m *Manager) Advance(pos *models.Position, bar models.Bar, volRatio float64) (*FillEvent, error) {
	switch pos.Status {
	case models.PositionStatusOpen:
		stop := stopTouched(pos, bar)
		target := targetTouched(pos, bar, pos.TakeProfit1)

		if stop && target {
			if m.stopWins() {
				target = false
			} else {
				stop = false
			}
		}
		if stop {
			return m.closeRemainder(pos, bar, pos.StopLoss, models.ExitReasonStopLoss, volRatio)
		}
		if target {
			return m.partialClose(pos, bar, volRatio)
		}

	case models.PositionStatusPartiallyClosed:
		stop := stopTouched(pos, bar)
		target := targetTouched(pos, bar, pos.TakeProfit2)

		if stop && target {
			if m.stopWins() {
				target = false
			} else {
				stop = false
			}
		}
		if stop {
			return m.closeRemainder(pos, bar, pos.StopLoss, models.ExitReasonStopLossBreakeven, volRatio)
		}
		if target {
			return m.closeRemainder(pos, bar, pos.TakeProfit2, models.ExitReasonTakeProfit2, volRatio)
		}

	default:
		return nil, fmt.Errorf("advance on %s position %s", pos.Status, pos.ID)
	}

	return nil, nil
}

// ForceClose closes whatever remains at the bar close price. Used on the
// final bar of the dataset.
func (m *Manager) ForceClose(pos *models.Position, bar models.Bar, volRatio float64) (*FillEvent, error) {
	return m.closeRemainder(pos, bar, bar.Close, models.ExitReasonEndOfData, volRatio)
}

func (m *Manager) stopWins() bool {
	return m.priority != PriorityTakeProfitFirst
}

func (m *Manager) partialClose(pos *models.Position, bar models.Bar, volRatio float64) (*FillEvent, error) {
	qty := pos.Size * m.partialFraction

	fill, err := m.costs.Fill(pos.Side, pos.TakeProfit1, qty, volRatio, false)
	if err != nil {
		return nil, fmt.Errorf("partial close fill for %s: %w", pos.ID, err)
	}

	net := grossPnL(pos.Side, pos.EntryPrice, fill.Price, qty) - fill.Fee
	if err := pos.ApplyPartialClose(qty, net, fill.Fee, fill.Slippage); err != nil {
		return nil, err
	}

	return &FillEvent{
		PositionID:  pos.ID,
		Symbol:      pos.Symbol,
		Qty:         qty,
		Price:       fill.Price,
		RealizedPnL: net,
		Fee:         fill.Fee,
		Slippage:    fill.Slippage,
		Reason:      "take_profit_1",
		Time:        bar.OpenTime,
	}, nil
}

func (m *Manager) closeRemainder(pos *models.Position, bar models.Bar, price float64, reason string, volRatio float64) (*FillEvent, error) {
	qty := pos.Size

	fill, err := m.costs.Fill(pos.Side, price, qty, volRatio, false)
	if err != nil {
		return nil, fmt.Errorf("close fill for %s: %w", pos.ID, err)
	}

	net := grossPnL(pos.Side, pos.EntryPrice, fill.Price, qty) - fill.Fee
	if err := pos.ApplyClose(net, fill.Fee, fill.Slippage, reason, bar.OpenTime); err != nil {
		return nil, err
	}

	return &FillEvent{
		PositionID:  pos.ID,
		Symbol:      pos.Symbol,
		Qty:         qty,
		Price:       fill.Price,
		RealizedPnL: net,
		Fee:         fill.Fee,
		Slippage:    fill.Slippage,
		Reason:      reason,
		Time:        bar.OpenTime,
		Final:       true,
	}, nil
}

func stopTouched(pos *models.Position, bar models.Bar) bool {
	if pos.Side == models.SideLong {
		return bar.Low <= pos.StopLoss
	}
	return bar.High >= pos.StopLoss
}

func targetTouched(pos *models.Position, bar models.Bar, level float64) bool {
	if pos.Side == models.SideLong {
		return bar.High >= level
	}
	return bar.Low <= level
}

func grossPnL(side string, entry, exit, qty float64) float64 {
	if side == models.SideLong {
		return (exit - entry) * qty
	}
	return (entry - exit) * qty
}
