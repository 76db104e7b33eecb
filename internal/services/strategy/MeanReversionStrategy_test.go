package strategy

import (
	"math"
	"testing"

	"CryptoBacktester/internal/models"
)

func barsFromCloses(closes []float64) []models.Bar {
	bars := make([]models.Bar, len(closes))
	for i, c := range closes {
		open := c
		if i > 0 {
			open = closes[i-1]
		}
		bars[i] = models.Bar{Open: open, High: c + 1, Low: c - 1, Close: c}
	}
	return bars
}

func TestMeanReversionLongOnOversoldPullback(t *testing.T) {
	s := NewMeanReversionStrategy(2, 10, 2)

	// A strong advance stalls into three small down closes: RSI collapses
	// while price still holds above the trend EMA.
	closes := []float64{100, 104, 108, 112, 116, 120, 121, 122, 123, 122, 121, 120}
	sig, err := s.Analyze(barsFromCloses(closes))
	if err != nil {
		t.Fatal(err)
	}
	if sig.IsHold() || sig.Direction != models.SideLong {
		t.Fatalf("signal = %+v, want long", sig)
	}
	if sig.EntryPrice != 120 {
		t.Errorf("entry = %v, want the pullback close 120", sig.EntryPrice)
	}
	// ATR(2) of the fixture is 2, so the stop sits 3 points away.
	if math.Abs(sig.StopLoss-117) > 1e-9 || math.Abs(sig.TakeProfit1-123) > 1e-9 || math.Abs(sig.TakeProfit2-126) > 1e-9 {
		t.Errorf("levels = sl %v tp1 %v tp2 %v", sig.StopLoss, sig.TakeProfit1, sig.TakeProfit2)
	}
	if err := sig.Validate(); err != nil {
		t.Errorf("emitted signal fails validation: %v", err)
	}
	if sig.Tags["setup"] != "rsi_oversold" {
		t.Errorf("tags = %v, want rsi_oversold", sig.Tags)
	}
}

func TestMeanReversionShortOnOverboughtBounce(t *testing.T) {
	s := NewMeanReversionStrategy(2, 10, 2)

	closes := []float64{140, 136, 132, 128, 124, 120, 119, 118, 117, 118, 119, 120}
	sig, err := s.Analyze(barsFromCloses(closes))
	if err != nil {
		t.Fatal(err)
	}
	if sig.IsHold() || sig.Direction != models.SideShort {
		t.Fatalf("signal = %+v, want short", sig)
	}
	if err := sig.Validate(); err != nil {
		t.Errorf("emitted signal fails validation: %v", err)
	}
	if sig.Tags["setup"] != "rsi_overbought" {
		t.Errorf("tags = %v, want rsi_overbought", sig.Tags)
	}
}

func TestMeanReversionHoldsWithoutExtreme(t *testing.T) {
	s := NewMeanReversionStrategy(2, 10, 2)

	// A steady advance keeps RSI pinned high but above the EMA: neither
	// side qualifies.
	closes := []float64{100, 101, 102, 103, 104, 105, 106, 107, 108, 109, 110, 111}
	sig, err := s.Analyze(barsFromCloses(closes))
	if err != nil {
		t.Fatal(err)
	}
	if !sig.IsHold() {
		t.Errorf("signal = %+v, want hold", sig)
	}

	// Not enough history is always a hold.
	sig, err = s.Analyze(barsFromCloses(closes[:5]))
	if err != nil {
		t.Fatal(err)
	}
	if !sig.IsHold() {
		t.Errorf("signal = %+v, want hold with short history", sig)
	}
}
