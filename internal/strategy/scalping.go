package strategy

import (
	"context"
	"fmt"
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
	scalpOversold   = 30
	scalpOverbought = 70
	confirmBars     = 100
)

// Scalping fades RSI extremes on one-minute bars when volume spikes away
// from the nine period EMA. The five-minute series must agree.
type Scalping struct {
	exec        *Executor
	bars        exchange.BarSource
	minStrength float64
	log         *logger.Logger
}

func NewScalping(exec *Executor, bars exchange.BarSource, cfg StyleConfig, log *logger.Logger) *Scalping {
	if log == nil {
		log = logger.Nop()
	}
	return &Scalping{exec: exec, bars: bars, minStrength: cfg.MinStrength, log: log.With("strategy", "scalping")}
}

func (s *Scalping) Style() session.Style       { return session.StyleScalping }
func (s *Scalping) Timeframe() types.Timeframe { return types.Timeframe1Min }
func (s *Scalping) Lookback() int              { return confirmBars }

// extremeCall is the raw RSI/EMA/volume read of one series
type extremeCall struct {
	direction signal.Direction
	strength  float64
	rsi       float64
	ema       float64
	price     float64
}

func readExtremes(bars []types.OHLCV) extremeCall {
	snap := indicators.NewSnapshot(bars)
	c := extremeCall{direction: signal.Neutral, rsi: snap.RSI, ema: snap.EMA9, price: snap.Price}
	if math.IsNaN(snap.RSI) || math.IsNaN(snap.EMA9) || !snap.Volume.IsHigh {
		return c
	}
	switch {
	case snap.RSI < scalpOversold && snap.Price < snap.EMA9:
		c.direction = signal.Buy
		c.strength = math.Min(100, (scalpOversold-snap.RSI)*2+20)
	case snap.RSI > scalpOverbought && snap.Price > snap.EMA9:
		c.direction = signal.Sell
		c.strength = math.Min(100, (snap.RSI-scalpOverbought)*2+20)
	}
	return c
}

func (s *Scalping) Analyze(ctx context.Context, symbol string, bars []types.OHLCV) Signal {
	if len(bars) < signal.MinTimeframeBars {
		return neutral(symbol, s.Style())
	}

	call := readExtremes(bars)

	reasoning := "1Min only"
	confirm, err := s.bars.GetBars(ctx, symbol, types.Timeframe5Min, confirmBars)
	if err != nil {
		s.log.LogWarning("confirmation bars", "%s: %v", symbol, err)
		monitoring.RecordError("market_data")
	} else if len(confirm) >= signal.MinTimeframeBars {
		quick := signal.QuickCheck(call.direction, readExtremes(confirm).direction)
		if !quick.Confirmed {
			return neutral(symbol, s.Style())
		}
		reasoning = quick.Reasoning
	}

	slope := signal.AnalyzeRSISlope(bars, signal.DefaultRSIPeriod, signal.DefaultSlopePeriod)
	strength := call.strength
	switch {
	case slope.IsBullish() && call.direction == signal.Buy, slope.IsBearish() && call.direction == signal.Sell:
		strength += 10
	case slope.IsBullish() && call.direction == signal.Sell, slope.IsBearish() && call.direction == signal.Buy:
		strength -= 20
	}

	if strength < s.minStrength || call.direction == signal.Neutral {
		return neutral(symbol, s.Style())
	}
	return Signal{
		Symbol:    symbol,
		Strategy:  s.Style(),
		Direction: call.direction,
		Strength:  math.Min(strength, 100),
		Price:     call.price,
		RSI:       call.rsi,
		Reasoning: fmt.Sprintf("%s, RSI %.1f vs EMA9 %.2f", reasoning, call.rsi, call.ema),
		Bars:      bars,
	}
}

func (s *Scalping) Execute(ctx context.Context, sig Signal) (Result, error) {
	return s.exec.execute(ctx, sig, profile{style: s.Style(), stopMult: 1, targetMult: 1})
}
