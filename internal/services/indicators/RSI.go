package indicators

// Neutral RSI reading used when there is not enough history to compute one.
const rsiNeutral = 50.0

// RSIService provides Relative Strength Index calculations.
type RSIService struct{}

// NewRSIService creates a new RSI service instance
func NewRSIService() *RSIService {
	return &RSIService{}
}

// Calculate computes Wilder's RSI over the closes. Returns the neutral
// reading while the history is shorter than period+1.
func (s *RSIService) Calculate(closes []float64, period int) float64 {
	if period <= 0 || len(closes) < period+1 {
		return rsiNeutral
	}

	avgGain, avgLoss := 0.0, 0.0
	for i := 1; i <= period; i++ {
		if d := closes[i] - closes[i-1]; d > 0 {
			avgGain += d
		} else {
			avgLoss -= d
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	// Wilder smoothing over the remainder of the series.
	for i := period + 1; i < len(closes); i++ {
		gain, loss := 0.0, 0.0
		if d := closes[i] - closes[i-1]; d > 0 {
			gain = d
		} else {
			loss = -d
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
	}

	if avgLoss == 0 {
		if avgGain == 0 {
			return rsiNeutral
		}
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}
