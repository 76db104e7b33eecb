package strategy

import (
	"CryptoBacktester/internal/models"
	"CryptoBacktester/internal/services/indicators"
)

const (
	rsiOversold   = 30.0
	rsiOverbought = 70.0
)

// MeanReversionStrategy fades RSI extremes in the direction of the longer
// EMA trend: long when RSI is oversold during an uptrend, short when RSI is
// overbought during a downtrend. Stops and targets are placed off the
// current ATR, like the breakout strategy.
type MeanReversionStrategy struct {
	rsiPeriod int
	emaPeriod int
	atrPeriod int

	rsi *indicators.RSIService
	ema *indicators.EMAService
	atr *indicators.ATRService
}

// NewMeanReversionStrategy creates a mean reversion strategy.
func NewMeanReversionStrategy(rsiPeriod, emaPeriod, atrPeriod int) *MeanReversionStrategy {
	return &MeanReversionStrategy{
		rsiPeriod: rsiPeriod,
		emaPeriod: emaPeriod,
		atrPeriod: atrPeriod,
		rsi:       indicators.NewRSIService(),
		ema:       indicators.NewEMAService(),
		atr:       indicators.NewATRService(),
	}
}

func (s *MeanReversionStrategy) Analyze(history []models.Bar) (*models.Signal, error) {
	need := s.rsiPeriod + 1
	if s.emaPeriod > need {
		need = s.emaPeriod
	}
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

	closes := make([]float64, len(history))
	for i, bar := range history {
		closes[i] = bar.Close
	}

	rsi := s.rsi.Calculate(closes, s.rsiPeriod)
	ema := s.ema.Latest(closes, s.emaPeriod)
	last := closes[len(closes)-1]

	if rsi <= rsiOversold && last > ema {
		return &models.Signal{
			Direction:   models.SideLong,
			EntryPrice:  last,
			StopLoss:    last - 1.5*atr,
			TakeProfit1: last + 1.5*atr,
			TakeProfit2: last + 3*atr,
			Tags:        map[string]string{"setup": "rsi_oversold"},
		}, nil
	}

	if rsi >= rsiOverbought && last < ema {
		return &models.Signal{
			Direction:   models.SideShort,
			EntryPrice:  last,
			StopLoss:    last + 1.5*atr,
			TakeProfit1: last - 1.5*atr,
			TakeProfit2: last - 3*atr,
			Tags:        map[string]string{"setup": "rsi_overbought"},
		}, nil
	}

	return Hold(), nil
}
