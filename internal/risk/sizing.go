package risk

import (
	"context"
	"math"

	boterrors "github.com/ducminhle1904/momentum-risk-bot/internal/errors"
	"github.com/ducminhle1904/momentum-risk-bot/internal/indicators"
	"github.com/ducminhle1904/momentum-risk-bot/pkg/types"
)

// PositionSize returns the dollar amount for a new entry: the configured
// percent of equity scaled by drawdown and sentiment, bounded by buying
// power and reduced by the slippage safety factor.
func (m *Manager) PositionSize(ctx context.Context) (float64, error) {
	account, err := m.broker.GetAccount(ctx)
	if err != nil {
		return 0, boterrors.NewExchangeError("risk", "PositionSize", err)
	}

	m.mu.Lock()
	dd := m.positionSizeMultiplier
	sent := m.sentimentMultiplierLocked()
	m.mu.Unlock()

	pct := m.cfg.BasePositionSizePercent * dd * sent
	m.logger.Debug("Position size: %.2f%% * %.2f (drawdown) * %.2f (sentiment) = %.2f%%",
		m.cfg.BasePositionSizePercent, dd, sent, pct)

	capital := math.Min(account.Equity*pct/100, account.BuyingPower)
	if capital < 0 {
		capital = 0
	}
	return capital * m.cfg.SizeSafetyFactor, nil
}

// ShareQuantity floors dollars/price to whole units; zero means too small to trade.
func ShareQuantity(dollars, price float64) int {
	if price <= 0 || dollars <= 0 {
		return 0
	}
	return int(math.Floor(dollars / price))
}

// Stops are the protective levels for a long entry
type Stops struct {
	StopLossPercent   float64
	TakeProfitPercent float64
	StopLoss          float64
	TakeProfit        float64
	ATRPercent        float64
	UsedATR           bool
}

// AdaptiveStopPercents widens the base stop and target with volatility.
// A NaN, zero or negative ATR percent falls back to the base values.
func AdaptiveStopPercents(atrPercent, baseSL, baseTP, maxSL, maxTP float64) (sl, tp float64) {
	if math.IsNaN(atrPercent) || atrPercent <= 0 {
		return baseSL, baseTP
	}
	sl = math.Min(math.Max(atrPercent*2, baseSL), maxSL)
	tp = math.Min(math.Max(atrPercent*3, baseTP), maxTP)
	return sl, tp
}

// StopLevels prices the ATR-based stop and target for entry.
func (m *Manager) StopLevels(entry float64, bars []types.OHLCV) Stops {
	atrPct := indicators.NewATR(indicators.ATRPeriod).Percent(bars, entry)
	sl, tp := AdaptiveStopPercents(atrPct, m.cfg.BaseStopLossPercent, m.cfg.BaseTakeProfitPercent,
		m.cfg.MaxStopLossPercent, m.cfg.MaxTakeProfitPercent)

	s := Stops{
		StopLossPercent:   sl,
		TakeProfitPercent: tp,
		ATRPercent:        atrPct,
		UsedATR:           !math.IsNaN(atrPct) && atrPct > 0,
	}
	return s.priced(entry)
}

// Scaled multiplies the stop and target percentages and reprices them.
func (s Stops) Scaled(slMult, tpMult, entry float64) Stops {
	s.StopLossPercent *= slMult
	s.TakeProfitPercent *= tpMult
	return s.priced(entry)
}

func (s Stops) priced(entry float64) Stops {
	s.StopLoss = entry * (1 - s.StopLossPercent/100)
	s.TakeProfit = entry * (1 + s.TakeProfitPercent/100)
	return s
}
