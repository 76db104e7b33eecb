package models

import "fmt"

const (
	SideLong  = "long"
	SideShort = "short"
	SideHold  = "hold"
)

// Signal is a strategy's directional decision with entry/stop/target levels,
// or a hold. Produced externally, consumed once per bar per symbol.
type Signal struct {
	Direction   string
	EntryPrice  float64
	StopLoss    float64
	TakeProfit1 float64
	TakeProfit2 float64

	// SizeHint, when positive, caps the sized quantity. Optional.
	SizeHint float64

	Tags map[string]string
}

// IsHold reports whether the signal carries no directional decision.
func (s *Signal) IsHold() bool {
	return s == nil || s.Direction == SideHold || s.Direction == ""
}

// Validate enforces the level ordering invariant:
// long:  stop_loss < entry < take_profit_1 < take_profit_2
// short: stop_loss > entry > take_profit_1 > take_profit_2
// Hold signals are always valid.
func (s *Signal) Validate() error {
	if s.IsHold() {
		return nil
	}

	switch s.Direction {
	case SideLong:
		if !(s.StopLoss < s.EntryPrice && s.EntryPrice < s.TakeProfit1 && s.TakeProfit1 < s.TakeProfit2) {
			return fmt.Errorf("long signal levels out of order: sl=%.8f entry=%.8f tp1=%.8f tp2=%.8f",
				s.StopLoss, s.EntryPrice, s.TakeProfit1, s.TakeProfit2)
		}
	case SideShort:
		if !(s.StopLoss > s.EntryPrice && s.EntryPrice > s.TakeProfit1 && s.TakeProfit1 > s.TakeProfit2) {
			return fmt.Errorf("short signal levels out of order: sl=%.8f entry=%.8f tp1=%.8f tp2=%.8f",
				s.StopLoss, s.EntryPrice, s.TakeProfit1, s.TakeProfit2)
		}
	default:
		return fmt.Errorf("unknown signal direction %q", s.Direction)
	}

	if s.EntryPrice <= 0 {
		return fmt.Errorf("non-positive entry price %.8f", s.EntryPrice)
	}
	return nil
}
