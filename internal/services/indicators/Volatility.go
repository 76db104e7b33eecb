package indicators

import "math"

// maxVolRatio caps the volatility ratio so data gaps cannot produce
// unbounded slippage.
const maxVolRatio = 3.0

// VolatilityService tracks the rolling standard deviation of close-to-close
// returns over a fixed lookback, plus its running average across the whole
// stream. One instance per symbol per run.
type VolatilityService struct {
	lookback  int
	prevClose float64
	returns   []float64

	volSum   float64
	volCount int
}

// NewVolatilityService creates a volatility tracker with the given lookback.
func NewVolatilityService(lookback int) *VolatilityService {
	if lookback < 2 {
		lookback = 2
	}
	return &VolatilityService{lookback: lookback}
}

// Update feeds one bar close into the tracker.
func (s *VolatilityService) Update(close float64) {
	if s.prevClose > 0 && close > 0 {
		r := (close - s.prevClose) / s.prevClose
		s.returns = append(s.returns, r)
		if len(s.returns) > s.lookback {
			s.returns = s.returns[1:]
		}
		if v := s.Current(); v > 0 {
			s.volSum += v
			s.volCount++
		}
	}
	s.prevClose = close
}

// Current is the rolling stddev of returns, 0 until enough samples exist.
func (s *VolatilityService) Current() float64 {
	n := len(s.returns)
	if n < 2 {
		return 0
	}

	mean := 0.0
	for _, r := range s.returns {
		mean += r
	}
	mean /= float64(n)

	variance := 0.0
	for _, r := range s.returns {
		variance += math.Pow(r-mean, 2)
	}
	variance /= float64(n - 1)
	return math.Sqrt(variance)
}

// Ratio is current volatility over its run average, clamped to
// [0, maxVolRatio]. Returns 1 while there is not enough data to compare.
func (s *VolatilityService) Ratio() float64 {
	if s.volCount == 0 {
		return 1
	}
	avg := s.volSum / float64(s.volCount)
	if avg <= 0 {
		return 1
	}

	ratio := s.Current() / avg
	if ratio > maxVolRatio {
		return maxVolRatio
	}
	if ratio < 0 {
		return 0
	}
	return ratio
}
