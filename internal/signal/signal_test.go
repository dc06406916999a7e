package signal

import (
	"testing"
	"time"

	"github.com/ducminhle1904/momentum-risk-bot/internal/indicators"
	"github.com/ducminhle1904/momentum-risk-bot/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeBars(closes []float64) []types.OHLCV {
	start := time.Date(2025, 3, 3, 14, 0, 0, 0, time.UTC)
	bars := make([]types.OHLCV, len(closes))
	for i, c := range closes {
		bars[i] = types.OHLCV{Open: c, High: c + 0.5, Low: c - 0.5, Close: c, Volume: 500, Timestamp: start.Add(time.Duration(i) * time.Minute)}
	}
	return bars
}

// vShape falls for down bars then rises for up bars, so RSI climbs steadily at the end.
func vShape(down, up int) []float64 {
	closes := make([]float64, 0, down+up)
	price := 100.0
	for i := 0; i < down; i++ {
		closes = append(closes, price)
		price--
	}
	for i := 0; i < up; i++ {
		closes = append(closes, price)
		price++
	}
	return closes
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		rsi      float64
		slope    float64
		momentum Momentum
		want     SlopeSignal
	}{
		{"strong buy", 35, 3, MomentumUp, StrongBuy},
		{"buy", 45, 1.5, MomentumUp, BuySignal},
		{"weak buy", 65, 0.8, MomentumUp, WeakBuy},
		{"strong sell", 65, -3, MomentumDown, StrongSell},
		{"sell", 50, -1.5, MomentumDown, SellSignal},
		{"weak sell", 45, -0.8, MomentumDown, WeakSell},
		{"reversal buy", 25, 0.3, MomentumUp, ReversalBuy},
		{"reversal sell", 75, -0.3, MomentumDown, ReversalSell},
		{"flat", 50, 0, MomentumFlat, NoSignal},
		{"steep slope without direction", 35, 3, MomentumFlat, NoSignal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classify(tt.rsi, tt.slope, tt.momentum))
		})
	}
}

func TestSlopeStrength(t *testing.T) {
	assert.InDelta(t, 95.0, slopeStrength(35, 3, MomentumUp), 1e-9)
	assert.InDelta(t, 60.0, slopeStrength(50, 0, MomentumFlat), 1e-9)
	assert.InDelta(t, 90.0, slopeStrength(80, -5, MomentumDown), 1e-9)
	assert.LessOrEqual(t, slopeStrength(50, 40, MomentumUp), 100.0)
}

func TestRegressionSlope(t *testing.T) {
	assert.InDelta(t, 1.0, RegressionSlope([]float64{1, 2, 3}), 1e-9)
	assert.InDelta(t, -2.0, RegressionSlope([]float64{3, 1}), 1e-9)
	assert.InDelta(t, 0.0, RegressionSlope([]float64{5}), 1e-9)
	assert.Equal(t, MomentumFlat, momentumOf([]float64{1, 2, 1}))
	assert.Equal(t, MomentumUp, momentumOf([]float64{1, 2, 3}))
	assert.Equal(t, MomentumDown, momentumOf([]float64{3, 3, 1}))
}

func TestAnalyzeRSISlope(t *testing.T) {
	t.Run("fewer RSI values than slope window", func(t *testing.T) {
		// 16 closes give two RSI values
		assert.Nil(t, AnalyzeRSISlope(makeBars(vShape(8, 8)), 14, 3))
	})

	t.Run("rising RSI is bullish", func(t *testing.T) {
		a := AnalyzeRSISlope(makeBars(vShape(40, 20)), 14, 3)
		require.NotNil(t, a)
		assert.Len(t, a.Series, 60-14)
		assert.Equal(t, MomentumUp, a.Momentum)
		assert.Greater(t, a.Slope, 0.0)
		assert.True(t, a.IsBullish())
		assert.False(t, a.IsBearish())
		assert.GreaterOrEqual(t, a.Strength, 50.0)
		assert.LessOrEqual(t, a.Strength, 100.0)
	})

	t.Run("nil analysis is neither", func(t *testing.T) {
		var a *RSISlopeAnalysis
		assert.False(t, a.IsBullish())
		assert.False(t, a.IsBearish())
	})
}

func TestDetectDivergence(t *testing.T) {
	falling := []float64{10, 9, 8, 7, 6}
	rising := []float64{30, 31, 32, 33, 34}

	assert.Equal(t, BullishDivergence, DetectDivergence(falling, rising))
	assert.Equal(t, BearishDivergence, DetectDivergence(rising, []float64{70, 69, 68, 67, 66}))
	assert.Equal(t, NoDivergence, DetectDivergence(rising, rising))
	assert.Equal(t, NoDivergence, DetectDivergence(falling[:4], rising))
}

func TestAnalyzeTimeframe(t *testing.T) {
	assert.Nil(t, AnalyzeTimeframe(makeBars(vShape(20, 20)), "1m"))

	flat := make([]float64, 60)
	for i := range flat {
		flat[i] = 100
	}
	tf := AnalyzeTimeframe(makeBars(flat), "1m")
	require.NotNil(t, tf)
	assert.Equal(t, Neutral, tf.Direction)
	assert.Zero(t, tf.Strength)

	tf = AnalyzeTimeframe(makeBars(vShape(40, 20)), "5m")
	require.NotNil(t, tf)
	assert.Equal(t, "5m", tf.Timeframe)
	assert.Equal(t, Buy, tf.Direction)
	assert.GreaterOrEqual(t, tf.Strength, 50.0)
	assert.LessOrEqual(t, tf.Strength, 100.0)
}

func vote(dir Direction, strength float64, trend indicators.Trend) *TimeframeSignal {
	return &TimeframeSignal{Direction: dir, Strength: strength, Trend: trend}
}

func TestConfirm(t *testing.T) {
	tests := []struct {
		name      string
		votes     []*TimeframeSignal
		direction Direction
		strength  float64
		confirmed bool
		reasoning string
	}{
		{
			name:      "no data",
			votes:     []*TimeframeSignal{nil, nil, nil},
			direction: Neutral,
			reasoning: "No timeframe data available",
		},
		{
			name:      "two buys, slow timeframe missing",
			votes:     []*TimeframeSignal{vote(Buy, 70, indicators.Sideways), vote(Buy, 80, indicators.Sideways), nil},
			direction: Buy,
			strength:  75,
			confirmed: true,
			reasoning: "2/2 timeframes bullish",
		},
		{
			name:      "two buys with uptrend on slowest",
			votes:     []*TimeframeSignal{vote(Buy, 70, indicators.Sideways), vote(Buy, 80, indicators.Uptrend)},
			direction: Buy,
			strength:  85,
			confirmed: true,
			reasoning: "2/2 timeframes bullish + higher TF confirms",
		},
		{
			name:      "bearish majority",
			votes:     []*TimeframeSignal{vote(Sell, 60, indicators.Sideways), vote(Buy, 90, indicators.Uptrend), vote(Sell, 80, indicators.Downtrend)},
			direction: Sell,
			strength:  80,
			confirmed: true,
			reasoning: "2/3 timeframes bearish + higher TF confirms",
		},
		{
			name:      "strength capped",
			votes:     []*TimeframeSignal{vote(Buy, 95, indicators.Uptrend), vote(Buy, 100, indicators.Uptrend)},
			direction: Buy,
			strength:  100,
			confirmed: true,
			reasoning: "2/2 timeframes bullish + higher TF confirms",
		},
		{
			name:      "conflict",
			votes:     []*TimeframeSignal{vote(Buy, 90, indicators.Uptrend), vote(Sell, 90, indicators.Downtrend), vote(Neutral, 0, indicators.Sideways)},
			direction: Neutral,
			reasoning: "Conflicting signals: 1 BUY, 1 SELL",
		},
		{
			name:      "single vote",
			votes:     []*TimeframeSignal{vote(Buy, 90, indicators.Uptrend)},
			direction: Neutral,
			reasoning: "Conflicting signals: 1 BUY, 0 SELL",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Confirm(tt.votes...)
			assert.Equal(t, tt.direction, c.Direction)
			assert.InDelta(t, tt.strength, c.Strength, 1e-9)
			assert.Equal(t, tt.confirmed, c.Confirmed)
			assert.Equal(t, tt.reasoning, c.Reasoning)
		})
	}
}

func TestAnalyzeWithConfirmation_SkipsShortSeries(t *testing.T) {
	c := AnalyzeWithConfirmation(makeBars(vShape(5, 5)), nil, nil)
	assert.False(t, c.Confirmed)
	assert.Equal(t, "No timeframe data available", c.Reasoning)
}

func TestQuickCheck(t *testing.T) {
	assert.True(t, QuickCheck(Buy, Buy).Confirmed)
	assert.Equal(t, Sell, QuickCheck(Sell, Sell).Direction)
	assert.False(t, QuickCheck(Neutral, Neutral).Confirmed)
	assert.False(t, QuickCheck(Buy, Sell).Confirmed)
	assert.Equal(t, Neutral, QuickCheck(Buy, Neutral).Direction)
}

func TestDirectionHelpers(t *testing.T) {
	assert.Equal(t, Buy, ReversalBuy.Direction())
	assert.Equal(t, Sell, WeakSell.Direction())
	assert.Equal(t, Neutral, NoSignal.Direction())
	assert.Equal(t, Sell, Buy.Opposite())
	assert.Equal(t, Neutral, Neutral.Opposite())
}
