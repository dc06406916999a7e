package orchestrator

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	boterrors "github.com/ducminhle1904/momentum-risk-bot/internal/errors"
	"github.com/ducminhle1904/momentum-risk-bot/internal/exchange"
	"github.com/ducminhle1904/momentum-risk-bot/internal/indicators"
	"github.com/ducminhle1904/momentum-risk-bot/internal/logger"
	"github.com/ducminhle1904/momentum-risk-bot/internal/monitoring"
	"github.com/ducminhle1904/momentum-risk-bot/pkg/types"
)

const (
	hourlyBars    = 100
	dailyBars     = 50
	minHourlyBars = 50
	minDailyBars  = 20
	neutralScore  = 50.0
)

// Sentiment labels
const (
	VeryBullish = "VERY BULLISH"
	Bullish     = "BULLISH"
	Neutral     = "NEUTRAL"
	Bearish     = "BEARISH"
	VeryBearish = "VERY BEARISH"
)

// Sentiment averages the latest trend scores per asset class
type Sentiment struct {
	Crypto      float64
	Stocks      float64
	Overall     float64
	CryptoLabel string
	StocksLabel string
}

// SentimentLabel buckets an average trend score
func SentimentLabel(score float64) string {
	switch {
	case score >= 70:
		return VeryBullish
	case score >= 60:
		return Bullish
	case score >= 50:
		return Neutral
	case score >= 40:
		return Bearish
	default:
		return VeryBearish
	}
}

// Ranked is a symbol with its trend score
type Ranked struct {
	Symbol string
	Score  float64
}

// TrendAnalyzer scores symbols on hourly and daily bars and keeps the latest
// ranking for rotation.
type TrendAnalyzer struct {
	bars exchange.BarSource
	log  *logger.Logger
	now  func() time.Time

	mu      sync.RWMutex
	scores  map[string]float64
	ranking []Ranked
	lastRun time.Time
}

func NewTrendAnalyzer(bars exchange.BarSource, log *logger.Logger) *TrendAnalyzer {
	if log == nil {
		log = logger.Nop()
	}
	return &TrendAnalyzer{
		bars:   bars,
		log:    log.With("component", "trend"),
		now:    time.Now,
		scores: make(map[string]float64),
	}
}

// Score fetches bars for symbol and scores them. ok is false when either
// series is missing or too short.
func (a *TrendAnalyzer) Score(ctx context.Context, symbol string) (float64, bool) {
	hourly, err := a.bars.GetBars(ctx, symbol, types.Timeframe1Hour, hourlyBars)
	if err != nil {
		a.log.LogWarning("trend", "hourly bars for %s: %v", symbol, err)
		monitoring.RecordError("market_data")
		return 0, false
	}
	daily, err := a.bars.GetBars(ctx, symbol, types.Timeframe1Day, dailyBars)
	if err != nil {
		a.log.LogWarning("trend", "daily bars for %s: %v", symbol, err)
		monitoring.RecordError("market_data")
		return 0, false
	}
	score, ok := ScoreBars(hourly, daily)
	if !ok {
		err := boterrors.NewInsufficientDataError("trend", "Score",
			fmt.Sprintf("%s has %d hourly and %d daily bars, need %d and %d", symbol, len(hourly), len(daily), minHourlyBars, minDailyBars))
		a.log.Debug("%v", err)
	}
	return score, ok
}

// ScoreBars rates momentum, trend, volume, technicals and volatility on a
// 0-100 scale starting from 50
func ScoreBars(hourly, daily []types.OHLCV) (float64, bool) {
	if len(hourly) < minHourlyBars || len(daily) < minDailyBars {
		return 0, false
	}
	h := indicators.NewSnapshot(hourly)
	d := indicators.NewSnapshot(daily)
	hc, dc := types.Closes(hourly), types.Closes(daily)

	score := neutralScore +
		momentumScore(hc, dc) +
		trendScore(dc) +
		volumeScore(h.Volume) +
		technicalScore(h, d) +
		volatilityScore(h)
	return math.Min(score, 100), true
}

func changeOver(closes []float64, n int) float64 {
	cur := closes[len(closes)-1]
	past := closes[max(0, len(closes)-n)]
	if past == 0 {
		return 0
	}
	return (cur - past) / past * 100
}

func momentumScore(hourly, daily []float64) float64 {
	var s float64
	switch ch := changeOver(hourly, 24); {
	case ch > 5:
		s += 15
	case ch > 2:
		s += 10
	case ch > 0:
		s += 5
	case ch < -2:
		s -= 5
	}
	switch ch := changeOver(daily, 7); {
	case ch > 10:
		s += 15
	case ch > 5:
		s += 10
	case ch > 0:
		s += 5
	case ch < -5:
		s -= 5
	}
	return s
}

// smaOrAll averages the last period values, or all of them on a short series
func smaOrAll(values []float64, period int) float64 {
	if v, err := indicators.SMAOf(values, min(period, len(values))); err == nil {
		return v
	}
	return math.NaN()
}

func trendScore(daily []float64) float64 {
	price := daily[len(daily)-1]
	sma20 := smaOrAll(daily, 20)
	sma50 := smaOrAll(daily, 50)

	var s float64
	if price > sma20 && price > sma50 {
		s += 10
	}
	if sma20 > sma50 {
		s += 10
	}

	above := 0
	for i := len(daily) - 10; i < len(daily); i++ {
		if i < 0 {
			continue
		}
		if daily[i] > smaOrAll(daily[:i+1], 20) {
			above++
		}
	}
	if above >= 8 {
		s += 5
	}
	return s
}

func volumeScore(v indicators.VolumeAnalysis) float64 {
	switch {
	case v.Ratio > 2:
		return 15
	case v.Ratio > 1.5:
		return 10
	case v.Ratio > 1.2:
		return 5
	}
	return 0
}

func technicalScore(h, d indicators.Snapshot) float64 {
	var s float64
	switch {
	case h.RSI > 40 && h.RSI < 70:
		s += 5
	case h.RSI >= 70:
		s += 3
	}
	if d.HasMACD && d.MACD.Bullish() {
		s += 8
	}
	if d.RSI > 50 && d.RSI < 75 {
		s += 7
	}
	return s
}

func volatilityScore(h indicators.Snapshot) float64 {
	pct := h.ATRPercent()
	switch {
	case pct > 3:
		return 15
	case pct > 2:
		return 10
	case pct > 1:
		return 5
	}
	return 0
}

// TopCount is the size of the active subset for a universe of n symbols
func TopCount(n int, fraction float64, minActive int) int {
	return max(int(math.Ceil(float64(n)*fraction)), minActive)
}

// Rank scores every symbol of u and returns the top TopCount of them, best
// first. Symbols that could not be scored are left out; an empty result means
// nothing could be scored.
func (a *TrendAnalyzer) Rank(ctx context.Context, u Universe, fraction float64, minActive int) []Ranked {
	all := u.All()
	ranking := make([]Ranked, 0, len(all))
	scores := make(map[string]float64, len(all))
	for _, sym := range all {
		if ctx.Err() != nil {
			break
		}
		sc, ok := a.Score(ctx, sym)
		if !ok {
			continue
		}
		scores[sym] = sc
		ranking = append(ranking, Ranked{Symbol: sym, Score: sc})
		monitoring.UpdateTrendScore(sym, sc)
	}
	sort.SliceStable(ranking, func(i, j int) bool { return ranking[i].Score > ranking[j].Score })

	if n := TopCount(len(all), fraction, minActive); len(ranking) > n {
		ranking = ranking[:n]
	}

	a.mu.Lock()
	a.scores = scores
	a.ranking = ranking
	a.lastRun = a.now()
	a.mu.Unlock()

	a.log.Info("Trend ranking: %d of %d symbols scored, %d active", len(scores), len(all), len(ranking))
	return append([]Ranked(nil), ranking...)
}

// ScoreOf returns the last score of symbol, 0 when unscored
func (a *TrendAnalyzer) ScoreOf(symbol string) float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.scores[symbol]
}

// LastRun is the time of the last Rank call
func (a *TrendAnalyzer) LastRun() time.Time {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.lastRun
}

// Top returns up to n ranked symbols of one asset class
func (a *TrendAnalyzer) Top(u Universe, crypto bool, n int) []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]string, 0, n)
	for _, r := range a.ranking {
		if len(out) == n {
			break
		}
		if u.IsCrypto(r.Symbol) == crypto {
			out = append(out, r.Symbol)
		}
	}
	return out
}

// Sentiment averages the latest scores per asset class; a class with no
// scores counts as neutral
func (a *TrendAnalyzer) Sentiment(u Universe) Sentiment {
	a.mu.RLock()
	defer a.mu.RUnlock()

	var cSum, sSum float64
	var cN, sN int
	for sym, sc := range a.scores {
		if u.IsCrypto(sym) {
			cSum += sc
			cN++
		} else {
			sSum += sc
			sN++
		}
	}
	s := Sentiment{Crypto: neutralScore, Stocks: neutralScore}
	if cN > 0 {
		s.Crypto = cSum / float64(cN)
	}
	if sN > 0 {
		s.Stocks = sSum / float64(sN)
	}
	s.Overall = (s.Crypto + s.Stocks) / 2
	s.CryptoLabel = SentimentLabel(s.Crypto)
	s.StocksLabel = SentimentLabel(s.Stocks)
	return s
}
