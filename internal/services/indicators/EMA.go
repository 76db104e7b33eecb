package indicators

// EMAService provides exponential moving average calculations.
type EMAService struct{}

// NewEMAService creates a new EMA service instance
func NewEMAService() *EMAService {
	return &EMAService{}
}

// Calculate computes the EMA series over values, seeded with the simple
// average of the first period values. Returns nil when the input is too
// short.
func (s *EMAService) Calculate(values []float64, period int) []float64 {
	if period <= 0 || len(values) < period {
		return nil
	}

	seed := 0.0
	for _, v := range values[:period] {
		seed += v
	}
	ema := seed / float64(period)

	out := make([]float64, 0, len(values)-period+1)
	out = append(out, ema)

	k := 2.0 / float64(period+1)
	for _, v := range values[period:] {
		ema = v*k + ema*(1-k)
		out = append(out, ema)
	}
	return out
}

// Latest is the most recent EMA value, 0 when the series is too short.
func (s *EMAService) Latest(values []float64, period int) float64 {
	series := s.Calculate(values, period)
	if len(series) == 0 {
		return 0
	}
	return series[len(series)-1]
}
