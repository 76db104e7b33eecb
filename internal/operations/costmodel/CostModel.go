package costmodel

import (
	"fmt"
	"math/rand"

	"CryptoBacktester/internal/models"
)

// InvalidCostInputError reports a fill request with a non-positive notional.
type InvalidCostInputError struct {
	Price float64
	Qty   float64
}

func (e *InvalidCostInputError) Error() string {
	return fmt.Sprintf("invalid cost input: price=%.8f qty=%.8f (notional must be positive)", e.Price, e.Qty)
}

// Fill is the effective execution of one order leg.
type Fill struct {
	// Price is the effective fill price after slippage and spread,
	// always worse for the trader than the requested price.
	Price float64
	// Fee is charged on the post-slippage notional.
	Fee float64
	// Slippage is the adverse price cost (slippage plus half spread) in
	// quote currency.
	Slippage float64
}

// CostModel maps a requested execution to an effective fill. Slippage scales
// with recent volatility and a small seeded jitter; the half bid/ask spread
// is charged against the trader on every fill. SlippageBase and spread are
// fractional rates of price (0.0005 = 5 bps).
type CostModel struct {
	slippageBase float64
	spread       float64
	feeEntry     float64
	feeExit      float64
	volFactor    float64

	// run-scoped generator: identical seeds give identical runs
	rng *rand.Rand
}

// NewCostModel creates a cost model with a run-scoped seeded generator.
func NewCostModel(slippageBase, spread, feeEntry, feeExit, volFactor float64, seed int64) *CostModel {
	return &CostModel{
		slippageBase: slippageBase,
		spread:       spread,
		feeEntry:     feeEntry,
		feeExit:      feeExit,
		volFactor:    volFactor,
		rng:          rand.New(rand.NewSource(seed)),
	}
}

// Fill computes the effective price and fee for one leg of a position with
// the given side. volRatio is the recent-to-average volatility ratio from the
// tracker, already clamped.
func (m *CostModel) Fill(side string, requestedPrice, qty, volRatio float64, isEntry bool) (*Fill, error) {
	if requestedPrice*qty <= 0 {
		return nil, &InvalidCostInputError{Price: requestedPrice, Qty: qty}
	}

	if volRatio < 0 {
		volRatio = 0
	}

	slipRate := 0.0
	if m.slippageBase > 0 {
		jitter := 0.75 + 0.5*m.rng.Float64()
		slipRate = m.slippageBase * (1 + m.volFactor*volRatio) * jitter
	}
	adverseRate := slipRate + m.spread/2

	// A long entry and a short exit buy; a long exit and a short entry sell.
	buying := (side == models.SideLong) == isEntry

	var effective float64
	if buying {
		effective = requestedPrice * (1 + adverseRate)
	} else {
		effective = requestedPrice * (1 - adverseRate)
	}

	feeRate := m.feeExit
	if isEntry {
		feeRate = m.feeEntry
	}

	return &Fill{
		Price:    effective,
		Fee:      effective * qty * feeRate,
		Slippage: requestedPrice * adverseRate * qty,
	}, nil
}
