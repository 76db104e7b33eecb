// backtest/engine.go

package backtest

import (
	"context"
	"errors"
	"log"
	"math"
	"sort"
	"time"

	"CryptoBacktester/internal/models"
	"CryptoBacktester/internal/operations/costmodel"
	"CryptoBacktester/internal/operations/position"
	"CryptoBacktester/internal/operations/risk"
	"CryptoBacktester/internal/operations/sizing"
	"CryptoBacktester/internal/services/indicators"
	"CryptoBacktester/internal/services/strategy"
)

// Engine replays historical bars against a strategy. It owns all run state
// (risk controller, open positions, equity curve) exclusively for the
// duration of one run; bars are processed sequentially in strict timestamp
// order, so a single run must never be driven concurrently.
type Engine struct {
	config Config
	strat  strategy.Strategy
	tagFn  strategy.TagFunc

	costs   *costmodel.CostModel
	sizer   *sizing.PositionSizer
	riskCtl *risk.Controller
	manager *position.Manager

	// Per-symbol run state
	vol       map[string]*indicators.VolatilityService
	history   map[string][]models.Bar
	lastTime  map[string]time.Time
	lastClose map[string]float64
	open      map[string][]*models.Position

	// Results
	trades      []models.Position
	equityCurve []models.EquityPoint
	summary     Summary
	seq         int64
}

// NewEngine validates the configuration and wires the run components.
func NewEngine(config Config, strat strategy.Strategy) (*Engine, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	// One run-scoped cost model, shared by entries and the position
	// manager so the seeded generator drives a single stream.
	costs := costmodel.NewCostModel(
		config.SlippageBase,
		config.BidAskSpread,
		config.FeeEntry,
		config.FeeExit,
		config.VolatilityFactor,
		config.RandomSeed,
	)

	return &Engine{
		config: config,
		strat:  strat,
		costs:  costs,
		sizer: sizing.NewPositionSizer(sizing.Policy{
			RiskPerTrade:     config.RiskPerTrade,
			MaxLeverage:      config.MaxLeverage,
			PerAssetCapPct:   config.PerAssetCapPct,
			UseATRSizing:     config.UseATRSizing,
			ATRPeriod:        config.ATRPeriod,
			VolatilityFactor: config.VolatilityFactor,
		}),
		riskCtl: risk.NewController(config.InitialCapital, risk.Limits{
			MaxDailyLossPct:       config.MaxDailyLossPct,
			MaxDrawdownPct:        config.MaxDrawdownPct,
			MaxConcurrentTrades:   config.MaxConcurrentTrades,
			MaxPositionsPerSymbol: config.MaxPositionsPerSymbol,
			PositionMode:          config.PositionMode,
		}),
		manager: position.NewManager(costs, config.ExecutionPriority, config.PartialCloseFraction),
		vol:       make(map[string]*indicators.VolatilityService),
		history:   make(map[string][]models.Bar),
		lastTime:  make(map[string]time.Time),
		lastClose: make(map[string]float64),
		open:      make(map[string][]*models.Position),
	}, nil
}

// SetTagFunc attaches a tag function whose output is merged into the tags of
// every position opened from that bar, for downstream attribution.
func (e *Engine) SetTagFunc(fn strategy.TagFunc) {
	e.tagFn = fn
}

type tickBar struct {
	symbol string
	bar    models.Bar
	last   bool // final bar of this symbol's stream
}

// Run replays the given bar streams. The caller may cancel between bars via
// ctx; no partial-bar state is ever exposed.
func (e *Engine) Run(ctx context.Context, barsBySymbol map[string][]models.Bar) (*Result, error) {
	ticks := mergeStreams(barsBySymbol)

	for i := 0; i < len(ticks); {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		ts := ticks[i].bar.OpenTime
		e.riskCtl.OnBarTime(ts)

		// All symbols sharing this timestamp, in deterministic order.
		for ; i < len(ticks) && ticks[i].bar.OpenTime.Equal(ts); i++ {
			if err := e.processBar(ticks[i]); err != nil {
				return nil, err
			}
		}

		e.recordEquity(ts)
	}

	return e.calculateResults(), nil
}

// mergeStreams flattens the per-symbol streams into one timeline ordered by
// timestamp, tie-broken by symbol so runs are deterministic.
func mergeStreams(barsBySymbol map[string][]models.Bar) []tickBar {
	var ticks []tickBar
	for symbol, bars := range barsBySymbol {
		for i, bar := range bars {
			bar.Symbol = symbol
			ticks = append(ticks, tickBar{
				symbol: symbol,
				bar:    bar,
				last:   i == len(bars)-1,
			})
		}
	}

	sort.Slice(ticks, func(i, j int) bool {
		if !ticks[i].bar.OpenTime.Equal(ticks[j].bar.OpenTime) {
			return ticks[i].bar.OpenTime.Before(ticks[j].bar.OpenTime)
		}
		return ticks[i].symbol < ticks[j].symbol
	})
	return ticks
}

func (e *Engine) processBar(tb tickBar) error {
	symbol, bar := tb.symbol, tb.bar

	if err := bar.Validate(); err != nil {
		return &DataError{Symbol: symbol, Timestamp: bar.OpenTime, Reason: err.Error()}
	}
	if prev, seen := e.lastTime[symbol]; seen && !bar.OpenTime.After(prev) {
		return &DataError{Symbol: symbol, Timestamp: bar.OpenTime, Reason: "timestamp not strictly increasing"}
	}
	e.lastTime[symbol] = bar.OpenTime
	e.lastClose[symbol] = bar.Close
	e.history[symbol] = append(e.history[symbol], bar)

	if e.vol[symbol] == nil {
		e.vol[symbol] = indicators.NewVolatilityService(e.config.VolatilityLookback)
	}
	e.vol[symbol].Update(bar.Close)
	volRatio := e.vol[symbol].Ratio()

	// 1. Advance existing positions.
	if err := e.advancePositions(symbol, bar, volRatio); err != nil {
		return err
	}

	// 2-4. Admission, strategy query, sizing, entry.
	if ok, _ := e.riskCtl.Admit(symbol); !ok {
		e.summary.SkippedRiskHalt++
	} else if sig := e.querySignal(symbol); sig != nil {
		if err := e.openPosition(symbol, bar, sig, volRatio); err != nil {
			return err
		}
	}

	// 7. Force-close whatever is still open at the symbol's final bar.
	if tb.last {
		if err := e.forceClose(symbol, bar, volRatio); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) advancePositions(symbol string, bar models.Bar, volRatio float64) error {
	remaining := e.open[symbol][:0]
	for _, pos := range e.open[symbol] {
		evt, err := e.manager.Advance(pos, bar, volRatio)
		if err != nil {
			return &InvariantViolationError{Symbol: symbol, Timestamp: bar.OpenTime, Reason: err.Error()}
		}
		if evt == nil {
			remaining = append(remaining, pos)
			continue
		}

		e.applyFill(pos, evt)
		if !evt.Final {
			remaining = append(remaining, pos)
		}
	}
	e.open[symbol] = remaining
	return nil
}

// applyFill books a realized exit fill against the risk controller and, for
// final fills, moves the position into the trade log.
func (e *Engine) applyFill(pos *models.Position, evt *position.FillEvent) {
	e.riskCtl.OnFill(evt.RealizedPnL)
	e.riskCtl.ReleaseExposure(evt.Symbol, evt.Qty*pos.EntryPrice)
	if evt.Final {
		e.riskCtl.OnPositionClosed(evt.Symbol)
		e.trades = append(e.trades, *pos)
	}
}

// querySignal invokes the strategy with the bar history up to and including
// the current bar. A panic, an error, or a signal violating the level
// ordering is treated as hold and counted; a single strategy glitch never
// aborts an otherwise valid run.
func (e *Engine) querySignal(symbol string) (sig *models.Signal) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("strategy panic for %s: %v", symbol, r)
			e.summary.StrategyFaults++
			sig = nil
		}
	}()

	s, err := e.strat.Analyze(e.history[symbol])
	if err != nil {
		e.summary.StrategyFaults++
		return nil
	}
	if s.IsHold() {
		return nil
	}
	if err := s.Validate(); err != nil {
		log.Printf("invalid signal for %s: %v", symbol, err)
		e.summary.StrategyFaults++
		return nil
	}
	return s
}

func (e *Engine) openPosition(symbol string, bar models.Bar, sig *models.Signal, volRatio float64) error {
	stopDistance := math.Abs(sig.EntryPrice - sig.StopLoss)

	size, err := e.sizer.Size(
		e.riskCtl.Capital(),
		sig.EntryPrice,
		stopDistance,
		sig.SizeHint,
		e.riskCtl.Exposure(symbol),
		e.history[symbol],
	)
	if err != nil {
		var sizeErr *sizing.SizingError
		if errors.As(err, &sizeErr) {
			e.summary.SkippedSizing++
			return nil
		}
		return err
	}
	if size <= 0 {
		e.summary.SkippedSizing++
		return nil
	}

	// Admission already passed; exceeding the cap here is an engine bug.
	if e.riskCtl.OpenPositionCount() >= e.config.MaxConcurrentTrades {
		return &InvariantViolationError{
			Symbol:    symbol,
			Timestamp: bar.OpenTime,
			Reason:    "open position count at cap despite admission",
		}
	}

	fill, err := e.costs.Fill(sig.Direction, sig.EntryPrice, size, volRatio, true)
	if err != nil {
		return &InvariantViolationError{Symbol: symbol, Timestamp: bar.OpenTime, Reason: err.Error()}
	}

	e.seq++
	pos := models.NewPosition(e.seq, symbol, sig.Direction, fill.Price, size, sig, bar.OpenTime)
	if e.tagFn != nil {
		for k, v := range e.tagFn(e.history[symbol], bar.OpenTime) {
			if pos.Tags == nil {
				pos.Tags = make(map[string]string)
			}
			pos.Tags[k] = v
		}
	}

	pos.BookEntryCosts(fill.Fee, fill.Slippage)
	e.riskCtl.OnFill(-fill.Fee)
	e.riskCtl.RegisterOpen(symbol, pos.Notional())
	e.open[symbol] = append(e.open[symbol], pos)
	return nil
}

func (e *Engine) forceClose(symbol string, bar models.Bar, volRatio float64) error {
	for _, pos := range e.open[symbol] {
		evt, err := e.manager.ForceClose(pos, bar, volRatio)
		if err != nil {
			return &InvariantViolationError{Symbol: symbol, Timestamp: bar.OpenTime, Reason: err.Error()}
		}
		e.applyFill(pos, evt)
	}
	e.open[symbol] = nil
	return nil
}

// recordEquity appends one mark-to-market sample after all symbols at a
// timestamp were processed. Equity is realized capital plus the unrealized
// value of open positions at their latest close.
func (e *Engine) recordEquity(ts time.Time) {
	equity := e.riskCtl.Capital()

	symbols := make([]string, 0, len(e.open))
	for symbol := range e.open {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)
	for _, symbol := range symbols {
		for _, pos := range e.open[symbol] {
			equity += pos.UnrealizedPnL(e.lastClose[symbol])
		}
	}

	drawdown := e.riskCtl.OnEquity(equity)
	e.equityCurve = append(e.equityCurve, models.EquityPoint{
		Timestamp:   ts,
		Equity:      equity,
		DrawdownPct: drawdown,
	})
}

func (e *Engine) calculateResults() *Result {
	result := &Result{
		Trades:       e.trades,
		EquityCurve:  e.equityCurve,
		Summary:      e.summary,
		FinalCapital: e.riskCtl.Capital(),
	}

	if len(e.trades) > 0 {
		totalPnL := 0.0
		for _, trade := range e.trades {
			if trade.RealizedPnL > 0 {
				result.WinningTrades++
			} else {
				result.LosingTrades++
			}
			totalPnL += trade.RealizedPnL
		}
		result.TotalTrades = len(e.trades)
		result.WinRate = float64(result.WinningTrades) / float64(result.TotalTrades)
		result.AveragePnL = totalPnL / float64(result.TotalTrades)
	}

	// Max drawdown over the equity curve.
	peak := e.config.InitialCapital
	for _, point := range e.equityCurve {
		if point.Equity > peak {
			peak = point.Equity
		}
		if dd := (peak - point.Equity) / peak; dd > result.MaxDrawdown {
			result.MaxDrawdown = dd
		}
	}

	result.SharpeRatio = e.calculateSharpeRatio()
	return result
}

func (e *Engine) calculateSharpeRatio() float64 {
	if len(e.equityCurve) < 2 {
		return 0
	}

	returns := make([]float64, len(e.equityCurve)-1)
	for i := 1; i < len(e.equityCurve); i++ {
		returns[i-1] = (e.equityCurve[i].Equity - e.equityCurve[i-1].Equity) /
			e.equityCurve[i-1].Equity
	}

	avgReturn := 0.0
	for _, r := range returns {
		avgReturn += r
	}
	avgReturn /= float64(len(returns))

	variance := 0.0
	for _, r := range returns {
		variance += math.Pow(r-avgReturn, 2)
	}
	variance /= float64(len(returns) - 1)
	stdDev := math.Sqrt(variance)

	if stdDev == 0 {
		return 0
	}

	// Annualize (assuming daily returns)
	annualizedReturn := avgReturn * 252
	annualizedStdDev := stdDev * math.Sqrt(252)

	return annualizedReturn / annualizedStdDev
}
