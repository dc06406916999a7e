package indicators

import (
	"math"

	"github.com/ducminhle1904/momentum-risk-bot/pkg/types"
)

// Default periods used across the system.
const (
	RSIPeriod     = 14
	ATRPeriod     = 14
	MACDFast      = 12
	MACDSlow      = 26
	MACDSignal    = 9
	BollingerLen  = 20
	BollingerMult = 2.0
)

// Snapshot holds the derived values for the most recent bar of a series.
// Values that could not be computed are NaN, HasMACD and HasBands flag the
// composite readings.
type Snapshot struct {
	Price    float64
	RSI      float64
	MACD     MACDResult
	HasMACD  bool
	SMA20    float64
	SMA50    float64
	SMA200   float64
	EMA9     float64
	ATR      float64
	Bands    Bands
	HasBands bool
	Volume   VolumeAnalysis
	Trend    Trend
}

// NewSnapshot computes every indicator for bars. It never fails; short
// series simply leave fields unset.
func NewSnapshot(bars []types.OHLCV) Snapshot {
	nan := math.NaN()
	s := Snapshot{
		Price:  nan,
		RSI:    nan,
		SMA20:  nan,
		SMA50:  nan,
		SMA200: nan,
		EMA9:   nan,
		ATR:    nan,
	}
	if len(bars) == 0 {
		return s
	}

	closes := types.Closes(bars)
	s.Price = closes[len(closes)-1]

	if v, err := NewRSI(RSIPeriod).Calculate(bars); err == nil {
		s.RSI = v
	}
	if m, err := NewMACD(MACDFast, MACDSlow, MACDSignal).Calculate(bars); err == nil {
		s.MACD, s.HasMACD = m, true
	}
	if v, err := SMAOf(closes, 20); err == nil {
		s.SMA20 = v
	}
	if v, err := SMAOf(closes, 50); err == nil {
		s.SMA50 = v
	}
	if v, err := SMAOf(closes, 200); err == nil {
		s.SMA200 = v
	}
	if v, err := NewEMA(9).Calculate(bars); err == nil {
		s.EMA9 = v
	}
	if v, err := NewATR(ATRPeriod).Calculate(bars); err == nil {
		s.ATR = v
	}
	if b, err := NewBollingerBands(BollingerLen, BollingerMult).Calculate(closes); err == nil {
		s.Bands, s.HasBands = b, true
	}
	s.Volume = AnalyzeVolume(bars)
	s.Trend = DetectTrend(bars)

	return s
}

// ATRPercent returns ATR relative to the last price, NaN when unavailable.
func (s Snapshot) ATRPercent() float64 {
	if math.IsNaN(s.ATR) || math.IsNaN(s.Price) || s.Price <= 0 {
		return math.NaN()
	}
	return s.ATR / s.Price * 100
}
