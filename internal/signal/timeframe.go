package signal

import (
	"fmt"
	"math"

	"github.com/ducminhle1904/momentum-risk-bot/internal/indicators"
	"github.com/ducminhle1904/momentum-risk-bot/pkg/types"
)

// MinTimeframeBars is the history a timeframe needs before it votes
const MinTimeframeBars = 50

const (
	confirmationBonus = 10
	maxStrength       = 100
)

// TimeframeSignal is one timeframe's classified vote
type TimeframeSignal struct {
	Timeframe  string
	Direction  Direction
	Strength   float64
	RSI        *RSISlopeAnalysis
	MACD       indicators.MACDResult
	HasMACD    bool
	Trend      indicators.Trend
	HighVolume bool
}

// Confirmation is the combined call across timeframes
type Confirmation struct {
	Direction  Direction
	Strength   float64
	Confirmed  bool
	Reasoning  string
	Timeframes []*TimeframeSignal
}

// AnalyzeTimeframe classifies a single bar series. Nil when there is not enough history.
func AnalyzeTimeframe(bars []types.OHLCV, timeframe string) *TimeframeSignal {
	if len(bars) < MinTimeframeBars {
		return nil
	}

	rsi := AnalyzeRSISlope(bars, DefaultRSIPeriod, DefaultSlopePeriod)
	macd, macdErr := indicators.NewMACD(indicators.MACDFast, indicators.MACDSlow, indicators.MACDSignal).Calculate(bars)
	trend := indicators.DetectTrend(bars)
	volume := indicators.AnalyzeVolume(bars)

	tf := &TimeframeSignal{
		Timeframe:  timeframe,
		Direction:  Neutral,
		RSI:        rsi,
		MACD:       macd,
		HasMACD:    macdErr == nil,
		Trend:      trend,
		HighVolume: volume.IsHigh,
	}

	switch {
	case rsi.IsBullish():
		tf.Direction = Buy
	case rsi.IsBearish():
		tf.Direction = Sell
	default:
		return tf
	}
	tf.Strength = rsi.Strength
	if tf.Strength == 0 {
		tf.Strength = 50
	}

	if tf.HasMACD && ((tf.Direction == Buy && macd.Bullish()) || (tf.Direction == Sell && macd.Bearish())) {
		tf.Strength += 10
	}
	if (tf.Direction == Buy && trend == indicators.Uptrend) || (tf.Direction == Sell && trend == indicators.Downtrend) {
		tf.Strength += 10
	}
	if volume.IsHigh {
		tf.Strength += 10
	}
	tf.Strength = math.Min(tf.Strength, maxStrength)

	return tf
}

// Confirm combines timeframe votes ordered fast to slow; nil entries are skipped.
// Two agreeing timeframes confirm a direction.
func Confirm(timeframes ...*TimeframeSignal) Confirmation {
	available := make([]*TimeframeSignal, 0, len(timeframes))
	for _, tf := range timeframes {
		if tf != nil {
			available = append(available, tf)
		}
	}
	if len(available) == 0 {
		return Confirmation{Direction: Neutral, Reasoning: "No timeframe data available"}
	}

	var buys, sells []*TimeframeSignal
	for _, tf := range available {
		switch tf.Direction {
		case Buy:
			buys = append(buys, tf)
		case Sell:
			sells = append(sells, tf)
		}
	}

	slowest := available[len(available)-1]
	switch {
	case len(buys) >= 2:
		return agreed(Buy, buys, available, slowest.Trend == indicators.Uptrend, "bullish")
	case len(sells) >= 2:
		return agreed(Sell, sells, available, slowest.Trend == indicators.Downtrend, "bearish")
	}

	return Confirmation{
		Direction:  Neutral,
		Reasoning:  fmt.Sprintf("Conflicting signals: %d BUY, %d SELL", len(buys), len(sells)),
		Timeframes: available,
	}
}

func agreed(dir Direction, votes, available []*TimeframeSignal, higherConfirms bool, label string) Confirmation {
	sum := 0.0
	for _, tf := range votes {
		sum += tf.Strength
	}
	strength := sum / float64(len(votes))

	reasoning := fmt.Sprintf("%d/%d timeframes %s", len(votes), len(available), label)
	if higherConfirms {
		strength += confirmationBonus
		reasoning += " + higher TF confirms"
	}

	return Confirmation{
		Direction:  dir,
		Strength:   math.Min(strength, maxStrength),
		Confirmed:  true,
		Reasoning:  reasoning,
		Timeframes: available,
	}
}

// AnalyzeWithConfirmation classifies up to three series and confirms them.
// Series shorter than MinTimeframeBars are left out of the vote.
func AnalyzeWithConfirmation(fast, medium, slow []types.OHLCV) Confirmation {
	return Confirm(
		AnalyzeTimeframe(fast, "fast"),
		AnalyzeTimeframe(medium, "medium"),
		AnalyzeTimeframe(slow, "slow"),
	)
}

// QuickCheck confirms when two independently computed directions match and are not NEUTRAL.
func QuickCheck(a, b Direction) Confirmation {
	if a == b && a != Neutral {
		return Confirmation{Direction: a, Confirmed: true, Reasoning: "quick check agrees"}
	}
	return Confirmation{Direction: Neutral, Reasoning: fmt.Sprintf("quick check mismatch: %s vs %s", a, b)}
}
