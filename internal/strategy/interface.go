package strategy

import (
	"context"
	"time"

	"github.com/ducminhle1904/momentum-risk-bot/internal/session"
	"github.com/ducminhle1904/momentum-risk-bot/internal/signal"
	"github.com/ducminhle1904/momentum-risk-bot/pkg/types"
)

// Strategy turns a bar series into a directional call for one symbol
type Strategy interface {
	// Style names the strategy and selects its time-of-day rule
	Style() session.Style

	// Timeframe and Lookback select the series Analyze expects
	Timeframe() types.Timeframe
	Lookback() int

	// Analyze classifies the latest bars. Anything short of the strategy's
	// minimum strength comes back NEUTRAL with zero strength.
	Analyze(ctx context.Context, symbol string, bars []types.OHLCV) Signal

	// Execute drives the entry or exit for a signal Analyze produced
	Execute(ctx context.Context, sig Signal) (Result, error)
}

// Signal is a strategy's call for one symbol at one point in time
type Signal struct {
	Symbol    string
	Strategy  session.Style
	Direction signal.Direction
	Strength  float64
	Price     float64
	RSI       float64
	Reasoning string
	Bars      []types.OHLCV
	At        time.Time
}

// Actionable reports a BUY or SELL with positive strength
func (s Signal) Actionable() bool {
	return s.Direction != signal.Neutral && s.Strength > 0
}

func neutral(symbol string, style session.Style) Signal {
	return Signal{Symbol: symbol, Strategy: style, Direction: signal.Neutral}
}

// TradeIntent is the order a gated, sized entry resolves to
type TradeIntent struct {
	ID              string
	Symbol          string
	Side            types.OrderSide
	Qty             float64
	EntryPriceHint  float64
	StopLossPrice   float64
	TakeProfitPrice float64
	Strategy        session.Style
}

// TradeOutcome is the feedback recorded when a position closes
type TradeOutcome struct {
	Symbol     string
	IsWin      bool
	RealizedPL float64
}

// StyleConfig tunes one strategy
type StyleConfig struct {
	Enabled     bool    `yaml:"enabled"`
	MinStrength float64 `yaml:"min_strength" validate:"gte=0,lte=100"`
}

// Config holds the per-style settings
type Config struct {
	Scalping StyleConfig `yaml:"scalping"`
	Day      StyleConfig `yaml:"day"`
	Swing    StyleConfig `yaml:"swing"`
}

// DefaultConfig enables every style at its usual threshold
func DefaultConfig() Config {
	return Config{
		Scalping: StyleConfig{Enabled: true, MinStrength: 60},
		Day:      StyleConfig{Enabled: true, MinStrength: 45},
		Swing:    StyleConfig{Enabled: true, MinStrength: 75},
	}
}
