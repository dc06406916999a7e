package indicators

import (
	"github.com/ducminhle1904/momentum-risk-bot/pkg/types"
)

// MACD computes the moving average convergence divergence with an EMA signal line
type MACD struct {
	fastPeriod   int
	slowPeriod   int
	signalPeriod int
}

// MACDResult is the latest MACD reading.
type MACDResult struct {
	MACD      float64
	Signal    float64
	Histogram float64
}

// Bullish reports whether the MACD line is above its signal line.
func (m MACDResult) Bullish() bool { return m.MACD > m.Signal }

// Bearish reports whether the MACD line is below its signal line.
func (m MACDResult) Bearish() bool { return m.MACD < m.Signal }

// NewMACD creates a new MACD instance with specified fast, slow, and signal periods
func NewMACD(fast, slow, signal int) *MACD {
	return &MACD{
		fastPeriod:   fast,
		slowPeriod:   slow,
		signalPeriod: signal,
	}
}

// Calculate computes the MACD line, signal line, and histogram for the last bar
func (m *MACD) Calculate(data []types.OHLCV) (MACDResult, error) {
	closes := types.Closes(data)
	if len(closes) < m.slowPeriod+m.signalPeriod-1 {
		return MACDResult{}, ErrInsufficientData
	}

	fast := NewEMA(m.fastPeriod).Series(closes)
	slow := NewEMA(m.slowPeriod).Series(closes)

	// fast starts at index fastPeriod-1, slow at slowPeriod-1
	offset := m.slowPeriod - m.fastPeriod
	line := make([]float64, len(slow))
	for i := range slow {
		line[i] = fast[i+offset] - slow[i]
	}

	signal := NewEMA(m.signalPeriod).Series(line)
	if len(signal) == 0 {
		return MACDResult{}, ErrInsufficientData
	}

	last := line[len(line)-1]
	sig := signal[len(signal)-1]
	return MACDResult{MACD: last, Signal: sig, Histogram: last - sig}, nil
}
