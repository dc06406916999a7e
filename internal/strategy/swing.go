package strategy

import (
	"context"
	"math"

	"github.com/ducminhle1904/momentum-risk-bot/internal/exchange"
	"github.com/ducminhle1904/momentum-risk-bot/internal/indicators"
	"github.com/ducminhle1904/momentum-risk-bot/internal/logger"
	"github.com/ducminhle1904/momentum-risk-bot/internal/monitoring"
	"github.com/ducminhle1904/momentum-risk-bot/internal/session"
	"github.com/ducminhle1904/momentum-risk-bot/internal/signal"
	"github.com/ducminhle1904/momentum-risk-bot/pkg/types"
)

const (
	swingMinBars          = 200
	swingFallbackStrength = 70
	swingStopMult         = 1.5
	swingTargetMult       = 2.0
)

// SwingTrading needs hourly and daily agreement and favors entries aligned
// with the 50/200 moving average structure. It trades at any hour and sizes
// by time-of-day quality instead.
type SwingTrading struct {
	exec        *Executor
	bars        exchange.BarSource
	minStrength float64
	log         *logger.Logger
}

func NewSwingTrading(exec *Executor, bars exchange.BarSource, cfg StyleConfig, log *logger.Logger) *SwingTrading {
	if log == nil {
		log = logger.Nop()
	}
	return &SwingTrading{exec: exec, bars: bars, minStrength: cfg.MinStrength, log: log.With("strategy", "swing")}
}

func (s *SwingTrading) Style() session.Style       { return session.StyleSwing }
func (s *SwingTrading) Timeframe() types.Timeframe { return types.Timeframe1Hour }
func (s *SwingTrading) Lookback() int              { return swingMinBars }

func (s *SwingTrading) Analyze(ctx context.Context, symbol string, bars []types.OHLCV) Signal {
	if len(bars) < swingMinBars {
		return neutral(symbol, s.Style())
	}

	daily, err := s.bars.GetBars(ctx, symbol, types.Timeframe1Day, confirmBars)
	if err != nil {
		s.log.LogWarning("confirmation bars", "%s: %v", symbol, err)
		monitoring.RecordError("market_data")
	}
	mtf := signal.AnalyzeWithConfirmation(bars, bars, daily)
	if !mtf.Confirmed {
		return neutral(symbol, s.Style())
	}

	slope := signal.AnalyzeRSISlope(bars, signal.DefaultRSIPeriod, signal.DefaultSlopePeriod)
	snap := indicators.NewSnapshot(bars)

	dir, strength := signal.Neutral, 0.0
	switch {
	case slope.IsBullish():
		dir, strength = signal.Buy, fallback(slope.Strength, swingFallbackStrength)
	case slope.IsBearish():
		dir, strength = signal.Sell, fallback(slope.Strength, swingFallbackStrength)
	}

	price := snap.Price
	golden := price > snap.SMA50 && snap.SMA50 > snap.SMA200
	death := price < snap.SMA50 && snap.SMA50 < snap.SMA200
	if (dir == signal.Buy && golden) || (dir == signal.Sell && death) {
		strength += 15
	}
	if snap.HasMACD && ((dir == signal.Buy && snap.MACD.Bullish()) || (dir == signal.Sell && snap.MACD.Bearish())) {
		strength += 10
	}
	if (dir == signal.Buy && snap.Trend == indicators.Uptrend) || (dir == signal.Sell && snap.Trend == indicators.Downtrend) {
		strength += 15
	}
	if snap.Volume.IsHigh {
		strength += 5
	}
	if mtf.Strength > 0 {
		strength += 10
	}

	if dir == signal.Neutral || strength < s.minStrength {
		return neutral(symbol, s.Style())
	}
	return Signal{
		Symbol:    symbol,
		Strategy:  s.Style(),
		Direction: dir,
		Strength:  math.Min(strength, 100),
		Price:     price,
		RSI:       slope.RSI,
		Reasoning: mtf.Reasoning,
		Bars:      bars,
	}
}

func (s *SwingTrading) Execute(ctx context.Context, sig Signal) (Result, error) {
	return s.exec.execute(ctx, sig, profile{
		style:        s.Style(),
		stopMult:     swingStopMult,
		targetMult:   swingTargetMult,
		sizeByDollar: true,
	})
}
