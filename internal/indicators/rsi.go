package indicators

import (
	"errors"

	"github.com/ducminhle1904/momentum-risk-bot/pkg/types"
)

// ErrInsufficientData is returned when a series is shorter than the indicator needs.
var ErrInsufficientData = errors.New("insufficient data")

// RSI calculates the Relative Strength Index using Wilder smoothing
type RSI struct {
	period int
}

// NewRSI creates a new RSI instance with the given period
func NewRSI(period int) *RSI {
	return &RSI{period: period}
}

// Series returns one RSI value per close starting at index period.
// The result is empty when there are not more than period closes.
func (r *RSI) Series(closes []float64) []float64 {
	if r.period <= 0 || len(closes) <= r.period {
		return nil
	}

	var avgGain, avgLoss float64
	for i := 1; i <= r.period; i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			avgGain += change
		} else {
			avgLoss -= change
		}
	}
	p := float64(r.period)
	avgGain /= p
	avgLoss /= p

	out := make([]float64, 0, len(closes)-r.period)
	out = append(out, rsiValue(avgGain, avgLoss))

	for i := r.period + 1; i < len(closes); i++ {
		change := closes[i] - closes[i-1]
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*(p-1) + gain) / p
		avgLoss = (avgLoss*(p-1) + loss) / p
		out = append(out, rsiValue(avgGain, avgLoss))
	}

	return out
}

// Calculate computes the latest RSI value for the given bars
func (r *RSI) Calculate(data []types.OHLCV) (float64, error) {
	series := r.Series(types.Closes(data))
	if len(series) == 0 {
		return 0, ErrInsufficientData
	}
	return series[len(series)-1], nil
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		if avgGain == 0 {
			return 50
		}
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs))
}
