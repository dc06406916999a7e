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
	dayFallbackStrength = 60
	dayFlatStrength     = 40
	dayFlatOversold     = 35
	dayFlatOverbought   = 65
)

// DayTrading follows RSI slope on five-minute bars. Hourly agreement adds
// a bonus but is not required.
type DayTrading struct {
	exec        *Executor
	bars        exchange.BarSource
	minStrength float64
	log         *logger.Logger
}

func NewDayTrading(exec *Executor, bars exchange.BarSource, cfg StyleConfig, log *logger.Logger) *DayTrading {
	if log == nil {
		log = logger.Nop()
	}
	return &DayTrading{exec: exec, bars: bars, minStrength: cfg.MinStrength, log: log.With("strategy", "day")}
}

func (d *DayTrading) Style() session.Style       { return session.StyleDay }
func (d *DayTrading) Timeframe() types.Timeframe { return types.Timeframe5Min }
func (d *DayTrading) Lookback() int              { return confirmBars }

func (d *DayTrading) Analyze(ctx context.Context, symbol string, bars []types.OHLCV) Signal {
	if len(bars) < signal.MinTimeframeBars {
		return neutral(symbol, d.Style())
	}

	hourly, err := d.bars.GetBars(ctx, symbol, types.Timeframe1Hour, confirmBars)
	if err != nil {
		d.log.LogWarning("confirmation bars", "%s: %v", symbol, err)
		monitoring.RecordError("market_data")
	}
	mtf := signal.AnalyzeWithConfirmation(bars, bars, hourly)

	slope := signal.AnalyzeRSISlope(bars, signal.DefaultRSIPeriod, signal.DefaultSlopePeriod)
	snap := indicators.NewSnapshot(bars)

	dir, strength := signal.Neutral, 0.0
	switch {
	case slope.IsBullish():
		dir, strength = signal.Buy, fallback(slope.Strength, dayFallbackStrength)
	case slope.IsBearish():
		dir, strength = signal.Sell, fallback(slope.Strength, dayFallbackStrength)
	case slope != nil && slope.RSI < dayFlatOversold:
		dir, strength = signal.Buy, dayFlatStrength
	case slope != nil && slope.RSI > dayFlatOverbought:
		dir, strength = signal.Sell, dayFlatStrength
	}

	if snap.HasMACD && ((dir == signal.Buy && snap.MACD.Bullish()) || (dir == signal.Sell && snap.MACD.Bearish())) {
		strength += 10
	}
	if (dir == signal.Buy && snap.Trend == indicators.Uptrend) || (dir == signal.Sell && snap.Trend == indicators.Downtrend) {
		strength += 10
	}
	if snap.Volume.IsHigh {
		strength += 5
	}
	if mtf.Confirmed {
		strength += 15
	}

	if dir == signal.Neutral || strength < d.minStrength {
		return neutral(symbol, d.Style())
	}
	return Signal{
		Symbol:    symbol,
		Strategy:  d.Style(),
		Direction: dir,
		Strength:  math.Min(strength, 100),
		Price:     snap.Price,
		RSI:       slope.RSI,
		Reasoning: mtf.Reasoning,
		Bars:      bars,
	}
}

func (d *DayTrading) Execute(ctx context.Context, sig Signal) (Result, error) {
	return d.exec.execute(ctx, sig, profile{style: d.Style(), stopMult: 1, targetMult: 1})
}

func fallback(v, def float64) float64 {
	if v == 0 {
		return def
	}
	return v
}
