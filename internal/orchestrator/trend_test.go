package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ducminhle1904/momentum-risk-bot/internal/exchange"
	"github.com/ducminhle1904/momentum-risk-bot/internal/logger"
	"github.com/ducminhle1904/momentum-risk-bot/pkg/types"
)

func lineBars(n int, start, step float64, every time.Duration) []types.OHLCV {
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]types.OHLCV, n)
	for i := range bars {
		c := start + step*float64(i)
		bars[i] = types.OHLCV{Open: c, High: c + 0.5, Low: c - 0.5, Close: c, Volume: 1000, Timestamp: t0.Add(time.Duration(i) * every)}
	}
	return bars
}

func rising(b *exchange.PaperBroker, symbol string) {
	b.SetBars(symbol, types.Timeframe1Hour, lineBars(100, 100, 1, time.Hour))
	b.SetBars(symbol, types.Timeframe1Day, lineBars(50, 100, 2, 24*time.Hour))
}

func falling(b *exchange.PaperBroker, symbol string) {
	b.SetBars(symbol, types.Timeframe1Hour, lineBars(100, 200, -1, time.Hour))
	b.SetBars(symbol, types.Timeframe1Day, lineBars(50, 300, -2, 24*time.Hour))
}

func TestSentimentLabel(t *testing.T) {
	tests := []struct {
		score float64
		want  string
	}{
		{85, VeryBullish},
		{70, VeryBullish},
		{69.9, Bullish},
		{60, Bullish},
		{50, Neutral},
		{49.99, Bearish},
		{40, Bearish},
		{12, VeryBearish},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SentimentLabel(tt.score), "score %.2f", tt.score)
	}
}

func TestTopCount(t *testing.T) {
	assert.Equal(t, 9, TopCount(17, 0.5, 5))
	assert.Equal(t, 5, TopCount(4, 0.5, 5))
	assert.Equal(t, 10, TopCount(20, 0.5, 5))
	assert.Equal(t, 4, TopCount(7, 0.5, 1))
}

func TestScoreBars(t *testing.T) {
	up, ok := ScoreBars(lineBars(100, 100, 1, time.Hour), lineBars(50, 100, 2, 24*time.Hour))
	require.True(t, ok)
	// momentum 25, trend 25 and an overbought RSI already pass the cap
	assert.Equal(t, 100.0, up)

	down, ok := ScoreBars(lineBars(100, 200, -1, time.Hour), lineBars(50, 300, -2, 24*time.Hour))
	require.True(t, ok)
	assert.GreaterOrEqual(t, down, 40.0)
	assert.LessOrEqual(t, down, 53.0)

	_, ok = ScoreBars(lineBars(49, 100, 1, time.Hour), lineBars(50, 100, 2, 24*time.Hour))
	assert.False(t, ok)
	_, ok = ScoreBars(lineBars(100, 100, 1, time.Hour), lineBars(19, 100, 2, 24*time.Hour))
	assert.False(t, ok)
}

func TestMomentumScore(t *testing.T) {
	tests := []struct {
		name   string
		hourly []float64
		daily  []float64
		want   float64
	}{
		{"strong both", []float64{100, 106}, []float64{100, 111}, 30},
		{"mild both", []float64{100, 103}, []float64{100, 106}, 20},
		{"barely up", []float64{100, 100.5}, []float64{100, 101}, 10},
		{"flat", []float64{100, 100}, []float64{100, 100}, 0},
		{"small dip is ignored", []float64{100, 99}, []float64{100, 97}, 0},
		{"selloff", []float64{100, 97}, []float64{100, 90}, -10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, momentumScore(tt.hourly, tt.daily))
		})
	}
}

func TestTrendAnalyzer_Rank(t *testing.T) {
	broker := exchange.NewPaperBroker(10000)
	rising(broker, "BTCUSD")
	rising(broker, "AAPL")
	falling(broker, "TSLA")
	falling(broker, "ETHUSD")
	// SPY has hourly bars only and QQQ nothing at all
	broker.SetBars("SPY", types.Timeframe1Hour, lineBars(100, 100, 1, time.Hour))

	u := Universe{Crypto: []string{"BTCUSD", "ETHUSD"}, Stocks: []string{"AAPL", "TSLA", "SPY", "QQQ", "NVDA"}}
	a := NewTrendAnalyzer(broker, logger.Nop())

	ranking := a.Rank(context.Background(), u, 0.5, 1)
	require.Len(t, ranking, 4)
	assert.Equal(t, "BTCUSD", ranking[0].Symbol)
	assert.Equal(t, "AAPL", ranking[1].Symbol)
	assert.ElementsMatch(t, []string{"ETHUSD", "TSLA"}, []string{ranking[2].Symbol, ranking[3].Symbol})
	assert.Equal(t, 100.0, a.ScoreOf("BTCUSD"))
	assert.Zero(t, a.ScoreOf("SPY"))
	assert.False(t, a.LastRun().IsZero())

	assert.Equal(t, []string{"BTCUSD", "ETHUSD"}, a.Top(u, true, 3))
	assert.Equal(t, []string{"AAPL"}, a.Top(u, false, 1))

	s := a.Sentiment(u)
	assert.InDelta(t, (100+a.ScoreOf("ETHUSD"))/2, s.Crypto, 1e-9)
	assert.InDelta(t, (100+a.ScoreOf("TSLA"))/2, s.Stocks, 1e-9)
	assert.InDelta(t, (s.Crypto+s.Stocks)/2, s.Overall, 1e-9)
	assert.Equal(t, SentimentLabel(s.Crypto), s.CryptoLabel)
}

func TestTrendAnalyzer_NothingScored(t *testing.T) {
	broker := exchange.NewPaperBroker(10000)
	broker.FailOn(exchange.OpBars, errors.New("feed down"))
	a := NewTrendAnalyzer(broker, nil)

	assert.Empty(t, a.Rank(context.Background(), DefaultUniverse(), 0.5, 5))

	s := a.Sentiment(DefaultUniverse())
	assert.Equal(t, 50.0, s.Crypto)
	assert.Equal(t, 50.0, s.Stocks)
	assert.Equal(t, 50.0, s.Overall)
	assert.Equal(t, Neutral, s.StocksLabel)
}

func TestUniverse(t *testing.T) {
	u := Universe{Crypto: []string{"BTCUSD"}, Stocks: []string{"AAPL"}}
	assert.Equal(t, []string{"BTCUSD", "AAPL"}, u.All())
	assert.True(t, u.IsCrypto("BTCUSD"))
	assert.False(t, u.IsCrypto("AAPL"))
	assert.True(t, u.IsCrypto("ETHUSD"))
	assert.False(t, u.IsCrypto("MSFT"))
	assert.Len(t, DefaultUniverse().All(), 17)
}
