package indicators

import (
	"github.com/ducminhle1904/momentum-risk-bot/pkg/types"
)

// SMA represents the Simple Moving Average technical indicator
type SMA struct {
	period int
}

// NewSMA creates a new SMA indicator
func NewSMA(period int) *SMA {
	return &SMA{period: period}
}

// Calculate calculates the SMA of the last period closes
func (s *SMA) Calculate(data []types.OHLCV) (float64, error) {
	return SMAOf(types.Closes(data), s.period)
}

// SMAOf averages the trailing period values.
func SMAOf(values []float64, period int) (float64, error) {
	if period <= 0 || len(values) < period {
		return 0, ErrInsufficientData
	}

	sum := 0.0
	for i := len(values) - period; i < len(values); i++ {
		sum += values[i]
	}
	return sum / float64(period), nil
}
