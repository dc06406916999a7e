package signal

import (
	"math"

	"github.com/ducminhle1904/momentum-risk-bot/internal/indicators"
	"github.com/ducminhle1904/momentum-risk-bot/pkg/types"
)

const (
	DefaultRSIPeriod   = 14
	DefaultSlopePeriod = 3

	divergenceWindow    = 5
	divergenceThreshold = 0.5
)

// RSISlopeAnalysis classifies momentum from the slope of recent RSI values
type RSISlopeAnalysis struct {
	RSI      float64
	Slope    float64
	Momentum Momentum
	Signal   SlopeSignal
	Strength float64
	Series   []float64
}

// AnalyzeRSISlope returns nil when fewer than slopePeriod RSI values exist.
func AnalyzeRSISlope(bars []types.OHLCV, rsiPeriod, slopePeriod int) *RSISlopeAnalysis {
	if slopePeriod < 1 {
		return nil
	}
	series := indicators.NewRSI(rsiPeriod).Series(types.Closes(bars))
	if len(series) < slopePeriod {
		return nil
	}

	current := series[len(series)-1]
	recent := series[len(series)-slopePeriod:]
	slope := RegressionSlope(recent)
	momentum := momentumOf(recent)

	return &RSISlopeAnalysis{
		RSI:      current,
		Slope:    slope,
		Momentum: momentum,
		Signal:   classify(current, slope, momentum),
		Strength: slopeStrength(current, slope, momentum),
		Series:   series,
	}
}

// IsBullish is true for BUY-class ladder signals or rising RSI with positive slope.
func (a *RSISlopeAnalysis) IsBullish() bool {
	if a == nil {
		return false
	}
	return a.Signal.Direction() == Buy || (a.Slope > 0 && a.Momentum == MomentumUp)
}

// IsBearish mirrors IsBullish.
func (a *RSISlopeAnalysis) IsBearish() bool {
	if a == nil {
		return false
	}
	return a.Signal.Direction() == Sell || (a.Slope < 0 && a.Momentum == MomentumDown)
}

// RegressionSlope is the least-squares slope of values against their index.
// Fewer than two values have no slope.
func RegressionSlope(values []float64) float64 {
	n := len(values)
	if n < 2 {
		return 0
	}
	xMean := float64(n-1) / 2
	yMean := 0.0
	for _, v := range values {
		yMean += v
	}
	yMean /= float64(n)

	var num, den float64
	for i, v := range values {
		dx := float64(i) - xMean
		num += dx * (v - yMean)
		den += dx * dx
	}
	return num / den
}

func momentumOf(values []float64) Momentum {
	up, down := 0, 0
	for i := 1; i < len(values); i++ {
		switch {
		case values[i] > values[i-1]:
			up++
		case values[i] < values[i-1]:
			down++
		}
	}
	switch {
	case up > down:
		return MomentumUp
	case down > up:
		return MomentumDown
	default:
		return MomentumFlat
	}
}

// classify walks the ladder; first match wins.
func classify(rsi, slope float64, m Momentum) SlopeSignal {
	up, down := m == MomentumUp, m == MomentumDown
	switch {
	case rsi < 40 && slope > 2 && up:
		return StrongBuy
	case rsi > 30 && rsi < 60 && slope > 1 && up:
		return BuySignal
	case rsi > 50 && rsi < 70 && slope > 0.5 && up:
		return WeakBuy
	case rsi > 60 && slope < -2 && down:
		return StrongSell
	case rsi > 40 && rsi < 70 && slope < -1 && down:
		return SellSignal
	case rsi > 30 && rsi < 50 && slope < -0.5 && down:
		return WeakSell
	case rsi < 30 && slope > 0 && up:
		return ReversalBuy
	case rsi > 70 && slope < 0 && down:
		return ReversalSell
	default:
		return NoSignal
	}
}

func slopeStrength(rsi, slope float64, m Momentum) float64 {
	strength := 50 + math.Min(math.Abs(slope)*5, 20)
	if m != MomentumFlat {
		strength += 10
	}
	if rsi > 30 && rsi < 70 {
		strength += 10
	}
	if (rsi < 40 && slope > 2) || (rsi > 60 && slope < -2) {
		strength += 10
	}
	return math.Min(strength, 100)
}

// DetectDivergence compares price and RSI slopes over the last five values.
func DetectDivergence(closes, rsi []float64) Divergence {
	if len(closes) < divergenceWindow || len(rsi) < divergenceWindow {
		return NoDivergence
	}
	priceSlope := RegressionSlope(closes[len(closes)-divergenceWindow:])
	rsiSlope := RegressionSlope(rsi[len(rsi)-divergenceWindow:])

	switch {
	case priceSlope < -divergenceThreshold && rsiSlope > divergenceThreshold:
		return BullishDivergence
	case priceSlope > divergenceThreshold && rsiSlope < -divergenceThreshold:
		return BearishDivergence
	default:
		return NoDivergence
	}
}
