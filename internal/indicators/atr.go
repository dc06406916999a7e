package indicators

import (
	"math"

	"github.com/ducminhle1904/momentum-risk-bot/pkg/types"
)

// ATR represents the Average True Range technical indicator
// ATR measures market volatility by decomposing the entire range of an asset price for that period
type ATR struct {
	period int
}

// NewATR creates a new ATR indicator
func NewATR(period int) *ATR {
	return &ATR{period: period}
}

// Calculate returns the Wilder-smoothed ATR of the last bar. It needs
// period+1 bars since the first true range uses the previous close.
func (a *ATR) Calculate(data []types.OHLCV) (float64, error) {
	if a.period <= 0 || len(data) < a.period+1 {
		return 0, ErrInsufficientData
	}

	p := float64(a.period)
	atr := 0.0
	for i := 1; i <= a.period; i++ {
		atr += trueRange(data[i], data[i-1].Close)
	}
	atr /= p

	for i := a.period + 1; i < len(data); i++ {
		atr = (atr*(p-1) + trueRange(data[i], data[i-1].Close)) / p
	}
	return atr, nil
}

// Percent returns ATR as a percent of price, NaN when unavailable.
func (a *ATR) Percent(data []types.OHLCV, price float64) float64 {
	atr, err := a.Calculate(data)
	if err != nil || price <= 0 {
		return math.NaN()
	}
	return atr / price * 100
}

// GetPeriod returns the period used for ATR calculation
func (a *ATR) GetPeriod() int {
	return a.period
}

// trueRange = max(High-Low, abs(High-PrevClose), abs(Low-PrevClose))
func trueRange(current types.OHLCV, prevClose float64) float64 {
	hl := current.High - current.Low
	hc := math.Abs(current.High - prevClose)
	lc := math.Abs(current.Low - prevClose)
	return math.Max(hl, math.Max(hc, lc))
}
