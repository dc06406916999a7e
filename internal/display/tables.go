package display

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/ducminhle1904/momentum-risk-bot/internal/backtest"
	"github.com/ducminhle1904/momentum-risk-bot/internal/history"
	"github.com/ducminhle1904/momentum-risk-bot/internal/risk"
	"github.com/ducminhle1904/momentum-risk-bot/pkg/types"
)

// StartupView is what the bot prints once before the first cycle
type StartupView struct {
	Mode        string
	Broker      string
	Environment string
	Equity      float64
	BuyingPower float64
	Crypto      []string
	Stocks      []string
	Strategies  []string
	Timezone    string
}

// StatusView is the periodic account and risk snapshot
type StatusView struct {
	Summary       risk.PortfolioSummary
	Positions     []types.Position
	ActiveSymbols []string
	ActiveLocks   int
	Sentiment     string
	RealizedPL    float64
}

// SignalRow is one line of the analyze output
type SignalRow struct {
	Strategy  string
	Timeframe string
	Direction string
	Strength  float64
	Confirmed bool
	Reasoning string
}

func newWriter(w io.Writer, title string) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle(title)
	t.SetStyle(table.StyleRounded)
	return t
}

func money(v float64) string { return fmt.Sprintf("$%.2f", v) }

func listOr(items []string) string {
	if len(items) == 0 {
		return "none"
	}
	return strings.Join(items, ", ")
}

// RenderStartup prints the initialization table
func RenderStartup(w io.Writer, v StartupView) {
	t := newWriter(w, "BOT INITIALIZATION")
	t.AppendRows([]table.Row{
		{"🚨 Mode", v.Mode},
		{"🏪 Broker", v.Broker},
		{"🔧 Environment", v.Environment},
		{"⏰ Timezone", v.Timezone},
	})
	t.AppendSeparator()
	t.AppendRows([]table.Row{
		{"💰 Portfolio", money(v.Equity)},
		{"💵 Buying Power", money(v.BuyingPower)},
	})
	t.AppendSeparator()
	t.AppendRows([]table.Row{
		{"🪙 Crypto", listOr(v.Crypto)},
		{"📈 Stocks", listOr(v.Stocks)},
		{"📊 Strategies", listOr(v.Strategies)},
	})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, WidthMin: 16, WidthMax: 16, Align: text.AlignLeft},
		{Number: 2, WidthMin: 25, WidthMax: 60, Align: text.AlignLeft},
	})
	t.Render()
}

// RenderStatus prints the risk summary followed by open positions
func RenderStatus(w io.Writer, v StatusView) {
	s := v.Summary
	stop := "inactive"
	if s.EmergencyStop {
		stop = "ACTIVE"
	}

	t := newWriter(w, "PORTFOLIO STATUS")
	t.AppendRows([]table.Row{
		{"💰 Equity", money(s.Equity)},
		{"💵 Buying Power", money(s.BuyingPower)},
		{"📅 Daily P/L", fmt.Sprintf("%s (%.2f%%)", money(s.DailyPL), s.DailyPLPercent)},
		{"✅ Realized P/L", money(v.RealizedPL)},
	})
	t.AppendSeparator()
	t.AppendRows([]table.Row{
		{"🔥 Heat", fmt.Sprintf("%.2f%%", s.PortfolioHeat)},
		{"📉 Loss Streak", s.ConsecutiveLosses},
		{"⚖️ Size Mult", fmt.Sprintf("%.2fx", s.PositionSizeMultiplier)},
		{"🛑 Emergency", stop},
		{"🔒 Locks", v.ActiveLocks},
	})
	t.AppendSeparator()
	t.AppendRows([]table.Row{
		{"🎯 Active", listOr(v.ActiveSymbols)},
		{"🌡️ Sentiment", v.Sentiment},
		{"🔁 Trades Today", s.Trades},
	})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, WidthMin: 16, WidthMax: 16, Align: text.AlignLeft},
		{Number: 2, WidthMin: 25, WidthMax: 60, Align: text.AlignLeft},
	})
	t.Render()

	if len(v.Positions) == 0 {
		return
	}
	p := newWriter(w, "OPEN POSITIONS")
	p.AppendHeader(table.Row{"Symbol", "Qty", "Entry", "Current", "Value", "P/L"})
	var total float64
	for _, pos := range v.Positions {
		pl := pos.UnrealizedPL()
		total += pl
		p.AppendRow(table.Row{pos.Symbol, pos.Qty, money(pos.AvgEntryPrice), money(pos.CurrentPrice), money(pos.MarketValue()), money(pl)})
	}
	p.AppendFooter(table.Row{"", "", "", "", "Total", money(total)})
	p.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight},
		{Number: 3, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
		{Number: 6, Align: text.AlignRight},
	})
	p.Render()
}

// RenderSignals prints per-strategy signal evaluations for symbol
func RenderSignals(w io.Writer, symbol string, rows []SignalRow) {
	t := newWriter(w, "SIGNALS "+symbol)
	t.AppendHeader(table.Row{"Strategy", "Timeframe", "Direction", "Strength", "Confirmed", "Reasoning"})
	for _, r := range rows {
		confirmed := "no"
		if r.Confirmed {
			confirmed = "yes"
		}
		t.AppendRow(table.Row{r.Strategy, r.Timeframe, r.Direction, fmt.Sprintf("%.1f", r.Strength), confirmed, r.Reasoning})
	}
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 4, Align: text.AlignRight},
		{Number: 6, WidthMax: 50},
	})
	t.Render()
}

// RenderHistory prints per-day closed trade stats
func RenderHistory(w io.Writer, days []history.Stats, lifetime history.Stats) {
	t := newWriter(w, "TRADE HISTORY")
	t.AppendHeader(table.Row{"Date", "Trades", "Wins", "Losses", "Win Rate", "P/L"})
	for _, d := range days {
		t.AppendRow(table.Row{d.Date, d.TotalTrades, d.WinningTrades, d.LosingTrades, fmt.Sprintf("%.1f%%", d.WinRate), money(d.TotalPL)})
	}
	t.AppendFooter(table.Row{"Lifetime", lifetime.TotalTrades, lifetime.WinningTrades, lifetime.LosingTrades,
		fmt.Sprintf("%.1f%%", lifetime.WinRate), money(lifetime.TotalPL)})
	t.Render()
}

func signedMoney(v float64) string {
	if v >= 0 {
		return "+" + money(v)
	}
	return "-" + money(-v)
}

// RenderBacktest prints the overall and per-strategy results, the last
// trades and the recommendations of a backtest
func RenderBacktest(w io.Writer, r *backtest.Report, recent int) {
	o := r.Overall
	t := newWriter(w, "BACKTEST RESULTS")
	t.AppendRows([]table.Row{
		{"Initial Capital", money(o.InitialBalance)},
		{"Final Capital", money(o.FinalBalance)},
		{"Total P/L", signedMoney(o.NetPL)},
		{"Total Return", fmt.Sprintf("%+.2f%%", o.TotalReturn)},
		{"Max Drawdown", fmt.Sprintf("%.2f%%", o.MaxDrawdown)},
	})
	t.AppendSeparator()
	t.AppendRows([]table.Row{
		{"Total Trades", o.Trades},
		{"Winning Trades", o.Wins},
		{"Losing Trades", o.Losses},
		{"Win Rate", fmt.Sprintf("%.2f%%", o.WinRate)},
		{"Average Win", money(o.AvgWin)},
		{"Average Loss", money(o.AvgLoss)},
		{"Profit Factor", fmt.Sprintf("%.2f", o.ProfitFactor)},
	})
	t.Render()

	s := newWriter(w, "STRATEGY BREAKDOWN")
	s.AppendHeader(table.Row{"Strategy", "Trades", "Win Rate", "P/L", "Max Drawdown"})
	for _, sum := range r.Strategies {
		s.AppendRow(table.Row{sum.Name, sum.Trades, fmt.Sprintf("%.2f%%", sum.WinRate), signedMoney(sum.NetPL), fmt.Sprintf("%.2f%%", sum.MaxDrawdown)})
	}
	s.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight},
		{Number: 3, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
	})
	s.Render()

	var skipped []string
	for _, res := range r.Results {
		if res.Skipped != "" {
			skipped = append(skipped, fmt.Sprintf("%s/%s: %s", res.Strategy, res.Symbol, res.Skipped))
		}
	}
	if len(skipped) > 0 {
		k := newWriter(w, "SKIPPED")
		for _, line := range skipped {
			k.AppendRow(table.Row{line})
		}
		k.Render()
	}

	if trades := r.Recent(recent); len(trades) > 0 {
		l := newWriter(w, fmt.Sprintf("LAST %d TRADES", len(trades)))
		l.AppendHeader(table.Row{"", "Symbol", "Strategy", "Entry", "Exit", "P/L", "Exit Reason"})
		for _, tr := range trades {
			mark := "✓"
			if tr.PnL < 0 {
				mark = "✗"
			}
			l.AppendRow(table.Row{mark, tr.Symbol, tr.Strategy, money(tr.EntryPrice), money(tr.ExitPrice), signedMoney(tr.PnL), string(tr.Exit)})
		}
		l.Render()
	}

	if recs := backtest.Recommendations(o); len(recs) > 0 {
		rc := newWriter(w, "RECOMMENDATIONS")
		for _, line := range recs {
			rc.AppendRow(table.Row{line})
		}
		rc.Render()
	}
}
