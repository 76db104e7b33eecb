package sizing

import (
	"fmt"

	"CryptoBacktester/internal/models"
	"CryptoBacktester/internal/services/indicators"
)

// minSize below which a capped size is treated as a rejection.
const minSize = 1e-9

// SizingError reports a stop distance the fixed-risk formula cannot size.
type SizingError struct {
	StopDistance float64
}

func (e *SizingError) Error() string {
	return fmt.Sprintf("cannot size position: stop distance %.8f must be positive", e.StopDistance)
}

// Policy holds the sizing parameters for one run.
type Policy struct {
	RiskPerTrade     float64
	MaxLeverage      float64
	PerAssetCapPct   float64
	UseATRSizing     bool
	ATRPeriod        int
	VolatilityFactor float64
}

// PositionSizer converts capital and a stop distance into a position size,
// then applies the leverage and per-asset caps.
type PositionSizer struct {
	policy Policy
	atr    *indicators.ATRService
}

// NewPositionSizer creates a sizer for the given policy.
func NewPositionSizer(policy Policy) *PositionSizer {
	return &PositionSizer{
		policy: policy,
		atr:    indicators.NewATRService(),
	}
}

// Size returns the position size in units, or 0 when the caps reduce the
// entry to nothing (a rejection, not an error). With ATR sizing enabled the
// stop distance is recomputed as ATR * volatility factor and the signal's own
// stop is ignored for distance.
func (s *PositionSizer) Size(capital, entryPrice, stopDistance, sizeHint, existingNotional float64, history []models.Bar) (float64, error) {
	if s.policy.UseATRSizing {
		stopDistance = s.atr.Calculate(history, s.policy.ATRPeriod) * s.policy.VolatilityFactor
	}
	if stopDistance <= 0 {
		return 0, &SizingError{StopDistance: stopDistance}
	}
	if entryPrice <= 0 {
		return 0, &SizingError{StopDistance: stopDistance}
	}

	size := (capital * s.policy.RiskPerTrade) / stopDistance

	if sizeHint > 0 && size > sizeHint {
		size = sizeHint
	}

	// Leverage cap: notional must not exceed capital * max leverage.
	if maxNotional := capital * s.policy.MaxLeverage; size*entryPrice > maxNotional {
		size = maxNotional / entryPrice
	}

	// Per-asset cap: symbol exposure including this entry must not exceed
	// capital * per-asset cap.
	if allowed := capital*s.policy.PerAssetCapPct - existingNotional; size*entryPrice > allowed {
		size = allowed / entryPrice
	}

	if size < minSize {
		return 0, nil
	}
	return size, nil
}
