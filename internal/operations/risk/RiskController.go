package risk

import "time"

const (
	PositionModeNetting = "netting"
	PositionModeHedging = "hedging"
)

// Deny reasons returned by Admit.
const (
	DenyDailyHalt     = "daily loss halt"
	DenyDrawdownHalt  = "drawdown halt"
	DenyMaxConcurrent = "max concurrent trades"
	DenyPerSymbol     = "max positions per symbol"
	DenyNetting       = "netting mode: position already open"
)

// Limits holds the portfolio risk thresholds for one run.
type Limits struct {
	MaxDailyLossPct       float64
	MaxDrawdownPct        float64
	MaxConcurrentTrades   int
	MaxPositionsPerSymbol int
	PositionMode          string
}

// State is a read-only snapshot of the controller for inspection.
type State struct {
	Capital            float64
	PeakEquity         float64
	CurrentDrawdownPct float64
	TradingDayKey      string
	DailyPnL           float64
	DailyHalt          bool
	DrawdownHalt       bool
	OpenPositionCount  int
}

// Controller tracks run-wide risk state: capital, daily P&L, peak equity and
// drawdown, and open-position exposure. It gates new entries and is updated
// after every realized fill. One controller per run, never shared.
type Controller struct {
	limits Limits

	capital           float64
	peakEquity        float64
	drawdownPct       float64
	dayKey            string
	capitalAtDayStart float64
	dailyPnL          float64
	dailyHalt         bool
	drawdownHalt      bool

	openCount      int
	perSymbolCount map[string]int
	perSymbolNotnl map[string]float64
}

// NewController creates a risk controller seeded with the initial capital.
func NewController(initialCapital float64, limits Limits) *Controller {
	return &Controller{
		limits:            limits,
		capital:           initialCapital,
		peakEquity:        initialCapital,
		capitalAtDayStart: initialCapital,
		perSymbolCount:    make(map[string]int),
		perSymbolNotnl:    make(map[string]float64),
	}
}

// OnBarTime rolls the trading day over when the bar timestamp crosses a UTC
// calendar day boundary. The daily halt resets; the drawdown halt is
// permanent for the run.
func (c *Controller) OnBarTime(ts time.Time) {
	key := ts.UTC().Format("2006-01-02")
	if key == c.dayKey {
		return
	}
	c.dayKey = key
	c.dailyPnL = 0
	c.dailyHalt = false
	c.capitalAtDayStart = c.capital
}

// Admit reports whether a new entry for symbol may be opened. A denial is a
// normal outcome, not an error.
func (c *Controller) Admit(symbol string) (bool, string) {
	if c.dailyHalt {
		return false, DenyDailyHalt
	}
	if c.drawdownHalt {
		return false, DenyDrawdownHalt
	}
	if c.openCount >= c.limits.MaxConcurrentTrades {
		return false, DenyMaxConcurrent
	}
	if c.limits.PositionMode == PositionModeNetting && c.perSymbolCount[symbol] > 0 {
		return false, DenyNetting
	}
	if c.perSymbolCount[symbol] >= c.limits.MaxPositionsPerSymbol {
		return false, DenyPerSymbol
	}
	return true, ""
}

// RegisterOpen records a newly opened position and its entry notional.
func (c *Controller) RegisterOpen(symbol string, notional float64) {
	c.openCount++
	c.perSymbolCount[symbol]++
	c.perSymbolNotnl[symbol] += notional
}

// OnFill books a realized P&L amount (net of fees) against capital and the
// daily loss limit.
func (c *Controller) OnFill(realizedPnL float64) {
	c.capital += realizedPnL
	c.dailyPnL += realizedPnL

	if c.dailyPnL <= -c.limits.MaxDailyLossPct*c.capitalAtDayStart {
		c.dailyHalt = true
	}
}

// ReleaseExposure returns entry notional to the symbol's budget after a
// partial or full close.
func (c *Controller) ReleaseExposure(symbol string, notional float64) {
	c.perSymbolNotnl[symbol] -= notional
	if c.perSymbolNotnl[symbol] < 0 {
		c.perSymbolNotnl[symbol] = 0
	}
}

// OnPositionClosed decrements the open-position counters for symbol.
func (c *Controller) OnPositionClosed(symbol string) {
	if c.openCount > 0 {
		c.openCount--
	}
	if c.perSymbolCount[symbol] > 0 {
		c.perSymbolCount[symbol]--
	}
}

// OnEquity updates peak equity and the drawdown halt from one equity sample.
// Returns the current drawdown percentage. The drawdown halt never resets.
func (c *Controller) OnEquity(equity float64) float64 {
	if equity > c.peakEquity {
		c.peakEquity = equity
	}
	if c.peakEquity > 0 {
		c.drawdownPct = (c.peakEquity - equity) / c.peakEquity
	}
	if c.drawdownPct >= c.limits.MaxDrawdownPct {
		c.drawdownHalt = true
	}
	return c.drawdownPct
}

// Capital is the realized capital (initial capital plus realized P&L).
func (c *Controller) Capital() float64 {
	return c.capital
}

// Exposure is the remaining entry notional open for symbol.
func (c *Controller) Exposure(symbol string) float64 {
	return c.perSymbolNotnl[symbol]
}

// OpenPositionCount is the number of open positions across all symbols.
func (c *Controller) OpenPositionCount() int {
	return c.openCount
}

// Snapshot copies the current state for reporting and tests.
func (c *Controller) Snapshot() State {
	return State{
		Capital:            c.capital,
		PeakEquity:         c.peakEquity,
		CurrentDrawdownPct: c.drawdownPct,
		TradingDayKey:      c.dayKey,
		DailyPnL:           c.dailyPnL,
		DailyHalt:          c.dailyHalt,
		DrawdownHalt:       c.drawdownHalt,
		OpenPositionCount:  c.openCount,
	}
}
