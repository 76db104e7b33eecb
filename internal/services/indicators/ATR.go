package indicators

import (
	"math"

	"CryptoBacktester/internal/models"
)

// ATRService provides Average True Range calculations
type ATRService struct{}

// NewATRService creates a new ATR service instance
func NewATRService() *ATRService {
	return &ATRService{}
}

// Calculate computes the ATR over the last period bars. Returns 0 when the
// history is too short.
func (s *ATRService) Calculate(bars []models.Bar, period int) float64 {
	if period <= 0 || len(bars) < period+1 {
		return 0
	}

	start := len(bars) - period
	sum := 0.0
	for i := start; i < len(bars); i++ {
		sum += trueRange(bars[i], bars[i-1])
	}
	return sum / float64(period)
}

// trueRange is max(high-low, |high-prevClose|, |low-prevClose|)
func trueRange(cur, prev models.Bar) float64 {
	tr := cur.High - cur.Low
	if v := math.Abs(cur.High - prev.Close); v > tr {
		tr = v
	}
	if v := math.Abs(cur.Low - prev.Close); v > tr {
		tr = v
	}
	return tr
}
