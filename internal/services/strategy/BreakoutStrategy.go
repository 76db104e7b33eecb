package strategy

import (
	"CryptoBacktester/internal/models"
	"CryptoBacktester/internal/services/indicators"
)

// BreakoutStrategy is the reference strategy: go long when the close breaks
// the previous lookback high, short when it breaks the previous lookback low.
// Stops and targets are placed off the current ATR.
type BreakoutStrategy struct {
	lookback  int
	atrPeriod int
	atr       *indicators.ATRService
}

// NewBreakoutStrategy creates a breakout strategy.
func NewBreakoutStrategy(lookback, atrPeriod int) *BreakoutStrategy {
	return &BreakoutStrategy{
		lookback:  lookback,
		atrPeriod: atrPeriod,
		atr:       indicators.NewATRService(),
	}
}

func (s *BreakoutStrategy) Analyze(history []models.Bar) (*models.Signal, error) {
	need := s.lookback + 1
	if s.atrPeriod+1 > need {
		need = s.atrPeriod + 1
	}
	if len(history) < need {
		return Hold(), nil
	}

	atr := s.atr.Calculate(history, s.atrPeriod)
	if atr <= 0 {
		return Hold(), nil
	}

	current := history[len(history)-1]
	window := history[len(history)-1-s.lookback : len(history)-1]

	highest, lowest := window[0].High, window[0].Low
	for _, bar := range window[1:] {
		if bar.High > highest {
			highest = bar.High
		}
		if bar.Low < lowest {
			lowest = bar.Low
		}
	}

	if current.Close > highest {
		return &models.Signal{
			Direction:   models.SideLong,
			EntryPrice:  current.Close,
			StopLoss:    current.Close - 1.5*atr,
			TakeProfit1: current.Close + 1.5*atr,
			TakeProfit2: current.Close + 3*atr,
			Tags:        map[string]string{"setup": "breakout_high"},
		}, nil
	}

	if current.Close < lowest {
		return &models.Signal{
			Direction:   models.SideShort,
			EntryPrice:  current.Close,
			StopLoss:    current.Close + 1.5*atr,
			TakeProfit1: current.Close - 1.5*atr,
			TakeProfit2: current.Close - 3*atr,
			Tags:        map[string]string{"setup": "breakout_low"},
		}, nil
	}

	return Hold(), nil
}
