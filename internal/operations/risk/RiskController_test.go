package risk

import (
	"testing"
	"time"
)

func baseLimits() Limits {
	return Limits{
		MaxDailyLossPct:       0.05,
		MaxDrawdownPct:        0.20,
		MaxConcurrentTrades:   3,
		MaxPositionsPerSymbol: 1,
		PositionMode:          PositionModeNetting,
	}
}

func day(d int) time.Time {
	return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC)
}

func TestAdmitNettingOnePositionPerSymbol(t *testing.T) {
	c := NewController(10000, baseLimits())
	c.OnBarTime(day(1))

	if ok, reason := c.Admit("BTCUSDT"); !ok {
		t.Fatalf("fresh controller denied entry: %s", reason)
	}
	c.RegisterOpen("BTCUSDT", 5000)

	if ok, reason := c.Admit("BTCUSDT"); ok || reason != DenyNetting {
		t.Errorf("Admit = (%v, %q), want netting denial", ok, reason)
	}
	if ok, _ := c.Admit("ETHUSDT"); !ok {
		t.Error("other symbol denied while netting BTCUSDT")
	}

	c.OnPositionClosed("BTCUSDT")
	if ok, _ := c.Admit("BTCUSDT"); !ok {
		t.Error("symbol still denied after close")
	}
}

func TestAdmitHedgingPerSymbolCap(t *testing.T) {
	limits := baseLimits()
	limits.PositionMode = PositionModeHedging
	limits.MaxPositionsPerSymbol = 2
	c := NewController(10000, limits)

	c.RegisterOpen("BTCUSDT", 1000)
	if ok, _ := c.Admit("BTCUSDT"); !ok {
		t.Error("hedging denied second position under the cap")
	}
	c.RegisterOpen("BTCUSDT", 1000)
	if ok, reason := c.Admit("BTCUSDT"); ok || reason != DenyPerSymbol {
		t.Errorf("Admit = (%v, %q), want per-symbol denial", ok, reason)
	}
}

func TestAdmitMaxConcurrent(t *testing.T) {
	limits := baseLimits()
	limits.MaxConcurrentTrades = 2
	c := NewController(10000, limits)

	c.RegisterOpen("BTCUSDT", 1000)
	c.RegisterOpen("ETHUSDT", 1000)
	if ok, reason := c.Admit("SOLUSDT"); ok || reason != DenyMaxConcurrent {
		t.Errorf("Admit = (%v, %q), want concurrent denial", ok, reason)
	}
}

func TestDailyHaltResetsNextDay(t *testing.T) {
	c := NewController(10000, baseLimits())
	c.OnBarTime(day(1))

	// 5% of 10000 lost exactly at the limit triggers the halt.
	c.OnFill(-500)
	if ok, reason := c.Admit("BTCUSDT"); ok || reason != DenyDailyHalt {
		t.Fatalf("Admit = (%v, %q), want daily halt", ok, reason)
	}
	if !c.Snapshot().DailyHalt {
		t.Fatal("snapshot missing daily halt")
	}

	// Same day: still halted.
	c.OnBarTime(day(1).Add(6 * time.Hour))
	if ok, _ := c.Admit("BTCUSDT"); ok {
		t.Error("halt lifted within the same trading day")
	}

	// Next UTC day: halt resets and the limit rebases on the reduced capital.
	c.OnBarTime(day(2))
	if ok, reason := c.Admit("BTCUSDT"); !ok {
		t.Fatalf("next day still denied: %s", reason)
	}
	c.OnFill(-474)
	if c.Snapshot().DailyHalt {
		t.Error("halted below 5% of the day-start capital 9500")
	}
	c.OnFill(-1)
	if !c.Snapshot().DailyHalt {
		t.Error("not halted at 5% of the day-start capital 9500")
	}
}

func TestDrawdownHaltIsPermanent(t *testing.T) {
	c := NewController(10000, baseLimits())

	if dd := c.OnEquity(10000); dd != 0 {
		t.Fatalf("drawdown = %v at peak, want 0", dd)
	}
	c.OnEquity(7900) // 21% under the 10000 peak
	if ok, reason := c.Admit("BTCUSDT"); ok || reason != DenyDrawdownHalt {
		t.Fatalf("Admit = (%v, %q), want drawdown halt", ok, reason)
	}

	// Recovery reduces the drawdown but never clears the halt.
	if dd := c.OnEquity(10000); dd != 0 {
		t.Errorf("drawdown = %v after full recovery, want 0", dd)
	}
	if ok, _ := c.Admit("BTCUSDT"); ok {
		t.Error("drawdown halt cleared by recovery")
	}

	// New day does not clear it either.
	c.OnBarTime(day(5))
	if ok, _ := c.Admit("BTCUSDT"); ok {
		t.Error("drawdown halt cleared by day rollover")
	}
}

func TestExposureBookkeeping(t *testing.T) {
	c := NewController(10000, baseLimits())

	c.RegisterOpen("BTCUSDT", 5000)
	if got := c.Exposure("BTCUSDT"); got != 5000 {
		t.Fatalf("exposure = %v, want 5000", got)
	}

	c.ReleaseExposure("BTCUSDT", 2500)
	if got := c.Exposure("BTCUSDT"); got != 2500 {
		t.Errorf("exposure = %v after partial release, want 2500", got)
	}

	// Releases never go negative.
	c.ReleaseExposure("BTCUSDT", 9999)
	if got := c.Exposure("BTCUSDT"); got != 0 {
		t.Errorf("exposure = %v after over-release, want 0", got)
	}

	c.OnPositionClosed("BTCUSDT")
	if got := c.OpenPositionCount(); got != 0 {
		t.Errorf("open count = %d, want 0", got)
	}
}

func TestOnFillMovesCapital(t *testing.T) {
	c := NewController(10000, baseLimits())
	c.OnBarTime(day(1))

	c.OnFill(250)
	c.OnFill(-100)
	if got := c.Capital(); got != 10150 {
		t.Errorf("capital = %v, want 10150", got)
	}
	if got := c.Snapshot().DailyPnL; got != 150 {
		t.Errorf("daily pnl = %v, want 150", got)
	}
}
