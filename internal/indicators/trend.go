package indicators

import (
	"github.com/ducminhle1904/momentum-risk-bot/pkg/types"
)

// Trend is a moving-average trend label.
type Trend int

const (
	Sideways Trend = iota
	Uptrend
	Downtrend
)

// String returns the trend label
func (t Trend) String() string {
	switch t {
	case Uptrend:
		return "UPTREND"
	case Downtrend:
		return "DOWNTREND"
	default:
		return "SIDEWAYS"
	}
}

// DetectTrend compares the 20 and 50 period SMAs of the closes.
func DetectTrend(data []types.OHLCV) Trend {
	return DetectTrendWith(data, 20, 50)
}

// DetectTrendWith compares a short and a long SMA. Too little data is SIDEWAYS.
func DetectTrendWith(data []types.OHLCV, short, long int) Trend {
	closes := types.Closes(data)
	s, err := SMAOf(closes, short)
	if err != nil {
		return Sideways
	}
	l, err := SMAOf(closes, long)
	if err != nil {
		return Sideways
	}

	switch {
	case s > l:
		return Uptrend
	case s < l:
		return Downtrend
	default:
		return Sideways
	}
}
