package backtest

import (
	"sort"
)

// Summary aggregates closed trades against a starting balance
type Summary struct {
	Name           string
	Trades         int
	Wins           int
	Losses         int
	WinRate        float64
	GrossProfit    float64
	GrossLoss      float64
	NetPL          float64
	AvgWin         float64
	AvgLoss        float64
	ProfitFactor   float64
	MaxDrawdown    float64
	InitialBalance float64
	FinalBalance   float64
	TotalReturn    float64
}

// Summarize computes win rate, P/L, profit factor and the peak-to-trough
// drawdown of the balance as trades close in exit order. Percentages are
// 0-100. Breakeven trades count toward Trades only.
func Summarize(name string, initial float64, trades []Trade) Summary {
	s := Summary{Name: name, Trades: len(trades), InitialBalance: initial}

	ordered := append([]Trade(nil), trades...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].ExitTime.Before(ordered[j].ExitTime) })

	balance, peak := initial, initial
	for _, t := range ordered {
		switch {
		case t.PnL > 0:
			s.Wins++
			s.GrossProfit += t.PnL
		case t.PnL < 0:
			s.Losses++
			s.GrossLoss += -t.PnL
		}
		balance += t.PnL
		if balance > peak {
			peak = balance
		}
		if peak > 0 {
			if dd := (peak - balance) / peak * 100; dd > s.MaxDrawdown {
				s.MaxDrawdown = dd
			}
		}
	}

	s.NetPL = s.GrossProfit - s.GrossLoss
	s.FinalBalance = balance
	if s.Trades > 0 {
		s.WinRate = float64(s.Wins) / float64(s.Trades) * 100
	}
	if s.Wins > 0 {
		s.AvgWin = s.GrossProfit / float64(s.Wins)
	}
	if s.Losses > 0 {
		s.AvgLoss = s.GrossLoss / float64(s.Losses)
	}
	// zero when nothing was lost
	if s.GrossLoss > 0 {
		s.ProfitFactor = s.GrossProfit / s.GrossLoss
	}
	if initial > 0 {
		s.TotalReturn = s.NetPL / initial * 100
	}
	return s
}

// Recommendations turns a summary into plain-language warnings and notes
func Recommendations(s Summary) []string {
	var out []string
	switch {
	case s.Trades > 0 && s.WinRate < 40:
		out = append(out, "Low win rate. Consider adjusting strategy parameters.")
	case s.WinRate >= 50:
		out = append(out, "Good win rate.")
	}
	switch {
	case s.MaxDrawdown > 20:
		out = append(out, "High drawdown. Consider stricter risk limits.")
	case s.Trades > 0 && s.MaxDrawdown < 10:
		out = append(out, "Low drawdown. Risk limits are holding.")
	}
	switch {
	case s.ProfitFactor > 1.5:
		out = append(out, "Profit factor above 1.5.")
	case s.Losses > 0 && s.ProfitFactor < 1:
		out = append(out, "Profit factor below 1. Strategies need tuning.")
	}
	switch {
	case s.TotalReturn < 0:
		out = append(out, "Negative return. Do not trade these settings live.")
	case s.TotalReturn > 10:
		out = append(out, "Strong return. Consider going live with reduced size.")
	}
	return out
}

// Report is the aggregate of a batch of replays
type Report struct {
	InitialBalance float64
	Results        []*Result
	Strategies     []Summary
	Overall        Summary
	Trades         []Trade
}

// NewReport summarizes results per strategy, in the order the strategies
// first appear, and overall.
func NewReport(initial float64, results []*Result) *Report {
	r := &Report{InitialBalance: initial, Results: results}
	byStrategy := make(map[string][]Trade)
	var order []string
	for _, res := range results {
		if _, ok := byStrategy[res.Strategy]; !ok {
			order = append(order, res.Strategy)
			byStrategy[res.Strategy] = nil
		}
		byStrategy[res.Strategy] = append(byStrategy[res.Strategy], res.Trades...)
		r.Trades = append(r.Trades, res.Trades...)
	}
	for _, name := range order {
		r.Strategies = append(r.Strategies, Summarize(name, initial, byStrategy[name]))
	}
	sort.SliceStable(r.Trades, func(i, j int) bool { return r.Trades[i].ExitTime.Before(r.Trades[j].ExitTime) })
	r.Overall = Summarize("overall", initial, r.Trades)
	return r
}

// Recent returns the last n trades, newest first
func (r *Report) Recent(n int) []Trade {
	if n > len(r.Trades) {
		n = len(r.Trades)
	}
	out := make([]Trade, 0, n)
	for i := len(r.Trades) - 1; i >= len(r.Trades)-n; i-- {
		out = append(out, r.Trades[i])
	}
	return out
}
