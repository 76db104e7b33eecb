package position

import (
	"math"
	"testing"
	"time"

	"CryptoBacktester/internal/models"
	"CryptoBacktester/internal/operations/costmodel"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// zeroCosts makes fills exact so lifecycle math is checkable by hand.
func zeroCosts() *costmodel.CostModel {
	return costmodel.NewCostModel(0, 0, 0, 0, 0, 1)
}

func longPosition(size float64) *models.Position {
	sig := &models.Signal{
		Direction:   models.SideLong,
		EntryPrice:  100,
		StopLoss:    98,
		TakeProfit1: 102.5,
		TakeProfit2: 105,
	}
	return models.NewPosition(1, "BTCUSDT", models.SideLong, 100, size, sig, t0)
}

func shortPosition(size float64) *models.Position {
	sig := &models.Signal{
		Direction:   models.SideShort,
		EntryPrice:  100,
		StopLoss:    102,
		TakeProfit1: 97.5,
		TakeProfit2: 95,
	}
	return models.NewPosition(1, "BTCUSDT", models.SideShort, 100, size, sig, t0)
}

func bar(open, high, low, close float64, at time.Time) models.Bar {
	return models.Bar{Symbol: "BTCUSDT", OpenTime: at, Open: open, High: high, Low: low, Close: close}
}

func TestAdvancePartialThenBreakevenStop(t *testing.T) {
	m := NewManager(zeroCosts(), PriorityStopLossFirst, 0.5)
	pos := longPosition(4)

	// Bar reaches TP1 at 102.5: half the size exits for (102.5-100)*2 = 5.
	evt, err := m.Advance(pos, bar(101, 103, 100.5, 102, t0.Add(time.Minute)), 1)
	if err != nil {
		t.Fatal(err)
	}
	if evt == nil || evt.Final {
		t.Fatalf("event = %+v, want non-final partial", evt)
	}
	if evt.Reason != "take_profit_1" || evt.Qty != 2 || evt.Price != 102.5 {
		t.Errorf("partial event = %+v", evt)
	}
	if math.Abs(evt.RealizedPnL-5) > 1e-9 {
		t.Errorf("partial pnl = %v, want 5", evt.RealizedPnL)
	}
	if pos.Status != models.PositionStatusPartiallyClosed {
		t.Errorf("status = %s, want partially_closed", pos.Status)
	}
	if pos.StopLoss != pos.EntryPrice {
		t.Errorf("stop = %v after partial, want breakeven %v", pos.StopLoss, pos.EntryPrice)
	}
	if pos.Size != 2 {
		t.Errorf("remaining size = %v, want 2", pos.Size)
	}

	// Next bar dips to the breakeven stop: the remainder exits flat.
	evt, err = m.Advance(pos, bar(102, 102.2, 99.5, 100.5, t0.Add(2*time.Minute)), 1)
	if err != nil {
		t.Fatal(err)
	}
	if evt == nil || !evt.Final {
		t.Fatalf("event = %+v, want final", evt)
	}
	if evt.Reason != models.ExitReasonStopLossBreakeven || evt.Price != 100 {
		t.Errorf("breakeven event = %+v", evt)
	}
	if math.Abs(evt.RealizedPnL) > 1e-9 {
		t.Errorf("breakeven pnl = %v, want 0", evt.RealizedPnL)
	}
	if pos.Status != models.PositionStatusClosed || pos.Size != 0 {
		t.Errorf("position = %+v, want closed with zero size", pos)
	}
	if math.Abs(pos.RealizedPnL-5) > 1e-9 {
		t.Errorf("total pnl = %v, want 5", pos.RealizedPnL)
	}
}

func TestAdvanceStopLossFullExit(t *testing.T) {
	m := NewManager(zeroCosts(), PriorityStopLossFirst, 0.5)
	pos := longPosition(4)

	evt, err := m.Advance(pos, bar(99, 99.5, 97.5, 98.2, t0.Add(time.Minute)), 1)
	if err != nil {
		t.Fatal(err)
	}
	if evt == nil || !evt.Final || evt.Reason != models.ExitReasonStopLoss {
		t.Fatalf("event = %+v, want final stop loss", evt)
	}
	if evt.Price != 98 || math.Abs(evt.RealizedPnL+8) > 1e-9 {
		t.Errorf("stop exit = %+v, want price 98 pnl -8", evt)
	}
	if pos.Status != models.PositionStatusClosed {
		t.Errorf("status = %s, want closed", pos.Status)
	}
}

func TestAdvanceShortSideLevels(t *testing.T) {
	m := NewManager(zeroCosts(), PriorityStopLossFirst, 0.5)

	// Short stop is above entry and is hit by the bar high.
	pos := shortPosition(4)
	evt, err := m.Advance(pos, bar(101, 102.5, 100.5, 102, t0.Add(time.Minute)), 1)
	if err != nil {
		t.Fatal(err)
	}
	if evt == nil || evt.Reason != models.ExitReasonStopLoss {
		t.Fatalf("event = %+v, want stop loss", evt)
	}
	if math.Abs(evt.RealizedPnL+8) > 1e-9 {
		t.Errorf("short stop pnl = %v, want -8", evt.RealizedPnL)
	}

	// Short TP1 is below entry and is hit by the bar low.
	pos = shortPosition(4)
	evt, err = m.Advance(pos, bar(99, 99.5, 97, 98, t0.Add(time.Minute)), 1)
	if err != nil {
		t.Fatal(err)
	}
	if evt == nil || evt.Reason != "take_profit_1" {
		t.Fatalf("event = %+v, want take profit 1", evt)
	}
	if math.Abs(evt.RealizedPnL-5) > 1e-9 {
		t.Errorf("short partial pnl = %v, want 5", evt.RealizedPnL)
	}
}

func TestAdvanceBothTouchedFollowsPriority(t *testing.T) {
	// One wide bar sweeps both the stop at 98 and TP1 at 102.5.
	wide := bar(100, 103, 97, 100, t0.Add(time.Minute))

	cases := []struct {
		priority   string
		wantReason string
	}{
		{PriorityStopLossFirst, models.ExitReasonStopLoss},
		{PriorityTakeProfitFirst, "take_profit_1"},
		{PriorityFIFO, models.ExitReasonStopLoss},
	}
	for _, tc := range cases {
		t.Run(tc.priority, func(t *testing.T) {
			m := NewManager(zeroCosts(), tc.priority, 0.5)
			pos := longPosition(4)
			evt, err := m.Advance(pos, wide, 1)
			if err != nil {
				t.Fatal(err)
			}
			if evt == nil || evt.Reason != tc.wantReason {
				t.Errorf("event = %+v, want reason %s", evt, tc.wantReason)
			}
		})
	}
}

func TestAdvanceOneTransitionPerBar(t *testing.T) {
	m := NewManager(zeroCosts(), PriorityStopLossFirst, 0.5)
	pos := longPosition(4)

	// The bar reaches TP1 and then trades back through the entry. Only the
	// partial applies on this bar; the breakeven stop cannot fire until the
	// next one.
	evt, err := m.Advance(pos, bar(101, 103, 99.5, 100, t0.Add(time.Minute)), 1)
	if err != nil {
		t.Fatal(err)
	}
	if evt == nil || evt.Final {
		t.Fatalf("event = %+v, want non-final partial only", evt)
	}
	if pos.Status != models.PositionStatusPartiallyClosed {
		t.Errorf("status = %s, want partially_closed after the bar", pos.Status)
	}
}

func TestAdvancePartiallyClosedToTakeProfit2(t *testing.T) {
	m := NewManager(zeroCosts(), PriorityStopLossFirst, 0.5)
	pos := longPosition(4)

	if _, err := m.Advance(pos, bar(101, 102.6, 100.5, 102, t0.Add(time.Minute)), 1); err != nil {
		t.Fatal(err)
	}
	evt, err := m.Advance(pos, bar(103, 105.5, 102.8, 105, t0.Add(2*time.Minute)), 1)
	if err != nil {
		t.Fatal(err)
	}
	if evt == nil || evt.Reason != models.ExitReasonTakeProfit2 || evt.Price != 105 {
		t.Fatalf("event = %+v, want take profit 2 at 105", evt)
	}
	// 5 from the partial plus (105-100)*2 from the runner.
	if math.Abs(pos.RealizedPnL-15) > 1e-9 {
		t.Errorf("total pnl = %v, want 15", pos.RealizedPnL)
	}
}

func TestAdvanceNoTouchNoEvent(t *testing.T) {
	m := NewManager(zeroCosts(), PriorityStopLossFirst, 0.5)
	pos := longPosition(4)

	evt, err := m.Advance(pos, bar(100, 101, 99, 100.5, t0.Add(time.Minute)), 1)
	if err != nil {
		t.Fatal(err)
	}
	if evt != nil {
		t.Errorf("event = %+v, want nil inside the levels", evt)
	}
	if pos.Status != models.PositionStatusOpen || pos.Size != 4 {
		t.Errorf("position mutated without a touch: %+v", pos)
	}
}

func TestAdvanceClosedPositionErrors(t *testing.T) {
	m := NewManager(zeroCosts(), PriorityStopLossFirst, 0.5)
	pos := longPosition(4)
	if _, err := m.ForceClose(pos, bar(100, 101, 99, 100, t0.Add(time.Minute)), 1); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Advance(pos, bar(100, 101, 99, 100, t0.Add(2*time.Minute)), 1); err == nil {
		t.Error("advance on a closed position did not error")
	}
}

func TestForceCloseAtBarClose(t *testing.T) {
	m := NewManager(zeroCosts(), PriorityStopLossFirst, 0.5)
	pos := longPosition(4)

	evt, err := m.ForceClose(pos, bar(100, 101.5, 99.5, 101, t0.Add(time.Minute)), 1)
	if err != nil {
		t.Fatal(err)
	}
	if evt == nil || !evt.Final || evt.Reason != models.ExitReasonEndOfData {
		t.Fatalf("event = %+v, want final end_of_data", evt)
	}
	if evt.Price != 101 || math.Abs(evt.RealizedPnL-4) > 1e-9 {
		t.Errorf("forced exit = %+v, want price 101 pnl 4", evt)
	}
}
