package main

import (
	"context"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ducminhle1904/momentum-risk-bot/internal/display"
	"github.com/ducminhle1904/momentum-risk-bot/internal/exchange"
	"github.com/ducminhle1904/momentum-risk-bot/internal/signal"
	"github.com/ducminhle1904/momentum-risk-bot/internal/strategy"
	"github.com/ducminhle1904/momentum-risk-bot/pkg/types"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze SYMBOL",
	Short: "Print every strategy's current call for one symbol without trading",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, true)
		if err != nil {
			return err
		}
		defer a.Close()

		symbol := strings.ToUpper(args[0])
		rows := analyzeSymbol(ctx, a.broker, a.strategies(), symbol)
		display.RenderSignals(os.Stdout, symbol, rows)
		return nil
	},
}

// analyzeSymbol runs each strategy plus the 5m/1h/1d confirmation. A failed
// bar fetch is reported in the row instead of aborting the others.
func analyzeSymbol(ctx context.Context, bars exchange.BarSource, strategies []strategy.Strategy, symbol string) []display.SignalRow {
	rows := make([]display.SignalRow, 0, len(strategies)+1)
	for _, s := range strategies {
		row := display.SignalRow{Strategy: string(s.Style()), Timeframe: string(s.Timeframe()), Direction: string(signal.Neutral)}
		series, err := bars.GetBars(ctx, symbol, s.Timeframe(), s.Lookback())
		if err != nil {
			row.Reasoning = "bars unavailable: " + err.Error()
			rows = append(rows, row)
			continue
		}
		sig := s.Analyze(ctx, symbol, series)
		row.Direction = string(sig.Direction)
		row.Strength = sig.Strength
		row.Reasoning = sig.Reasoning
		rows = append(rows, row)
	}

	fast, _ := bars.GetBars(ctx, symbol, types.Timeframe5Min, 100)
	medium, _ := bars.GetBars(ctx, symbol, types.Timeframe1Hour, 100)
	slow, _ := bars.GetBars(ctx, symbol, types.Timeframe1Day, 100)
	conf := signal.AnalyzeWithConfirmation(fast, medium, slow)
	rows = append(rows, display.SignalRow{
		Strategy:  "multi-timeframe",
		Timeframe: "5Min/1Hour/1Day",
		Direction: string(conf.Direction),
		Strength:  conf.Strength,
		Confirmed: conf.Confirmed,
		Reasoning: conf.Reasoning,
	})
	return rows
}
