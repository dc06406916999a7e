package indicators

import (
	"github.com/ducminhle1904/momentum-risk-bot/pkg/types"
)

// EMA represents the Exponential Moving Average technical indicator
type EMA struct {
	period int
	alpha  float64
}

// NewEMA creates a new EMA indicator
func NewEMA(period int) *EMA {
	return &EMA{
		period: period,
		alpha:  2.0 / float64(period+1),
	}
}

// Calculate returns the latest EMA of the closes
func (e *EMA) Calculate(data []types.OHLCV) (float64, error) {
	series := e.Series(types.Closes(data))
	if len(series) == 0 {
		return 0, ErrInsufficientData
	}
	return series[len(series)-1], nil
}

// Series returns EMA values aligned to values[period-1:], seeded with the SMA
// of the first period values.
func (e *EMA) Series(values []float64) []float64 {
	if e.period <= 0 || len(values) < e.period {
		return nil
	}

	seed := 0.0
	for i := 0; i < e.period; i++ {
		seed += values[i]
	}
	last := seed / float64(e.period)

	out := make([]float64, 0, len(values)-e.period+1)
	out = append(out, last)
	for i := e.period; i < len(values); i++ {
		last = values[i]*e.alpha + last*(1-e.alpha)
		out = append(out, last)
	}
	return out
}
