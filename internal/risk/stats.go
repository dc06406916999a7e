package risk

import (
	"context"
	"time"

	"github.com/ducminhle1904/momentum-risk-bot/pkg/types"
)

// TradeRecord is one executed order or closed trade for the day
type TradeRecord struct {
	Symbol   string
	Side     types.OrderSide
	Qty      float64
	Price    float64
	PL       float64
	Strategy string
	At       time.Time
}

// DailyStats summarizes today's trades
type DailyStats struct {
	TotalTrades      int
	WinningTrades    int
	LosingTrades     int
	WinRate          float64
	TotalPL          float64
	CurrentPositions int
}

// PortfolioSummary is the account and risk view shown on the status table
type PortfolioSummary struct {
	Equity                 float64
	BuyingPower            float64
	DailyPL                float64
	DailyPLPercent         float64
	Positions              int
	Trades                 int
	EmergencyStop          bool
	PortfolioHeat          float64
	ConsecutiveLosses      int
	PositionSizeMultiplier float64
}

// RecordTrade appends a trade to today's list
func (m *Manager) RecordTrade(t TradeRecord) {
	if t.At.IsZero() {
		t.At = m.now()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dailyTrades = append(m.dailyTrades, t)
}

// DailyStats counts winners and losers among today's trades
func (m *Manager) DailyStats() DailyStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := DailyStats{TotalTrades: len(m.dailyTrades), CurrentPositions: m.positionCount}
	for _, t := range m.dailyTrades {
		switch {
		case t.PL > 0:
			s.WinningTrades++
		case t.PL < 0:
			s.LosingTrades++
		}
		s.TotalPL += t.PL
	}
	if s.TotalTrades > 0 {
		s.WinRate = float64(s.WinningTrades) / float64(s.TotalTrades) * 100
	}
	return s
}

// PortfolioSummary combines a fresh account read with the risk state
func (m *Manager) PortfolioSummary(ctx context.Context) (PortfolioSummary, error) {
	account, err := m.broker.GetAccount(ctx)
	if err != nil {
		return PortfolioSummary{}, err
	}
	plPct, err := m.dailyPLPercent(account.Equity)
	if err != nil {
		return PortfolioSummary{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return PortfolioSummary{
		Equity:                 account.Equity,
		BuyingPower:            account.BuyingPower,
		DailyPL:                account.Equity - m.dailyStartEquity,
		DailyPLPercent:         plPct,
		Positions:              m.positionCount,
		Trades:                 len(m.dailyTrades),
		EmergencyStop:          m.emergencyStop,
		PortfolioHeat:          m.portfolioHeat,
		ConsecutiveLosses:      m.consecutiveLosses,
		PositionSizeMultiplier: m.positionSizeMultiplier,
	}, nil
}
