package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ducminhle1904/momentum-risk-bot/internal/backtest"
	"github.com/ducminhle1904/momentum-risk-bot/internal/config"
	"github.com/ducminhle1904/momentum-risk-bot/internal/correlation"
	"github.com/ducminhle1904/momentum-risk-bot/internal/display"
	boterrors "github.com/ducminhle1904/momentum-risk-bot/internal/errors"
	"github.com/ducminhle1904/momentum-risk-bot/internal/exchange"
	"github.com/ducminhle1904/momentum-risk-bot/internal/logger"
)

var (
	backtestSymbols []string
	backtestBars    int
	backtestData    string
	backtestOut     string
	backtestWorkers int
	backtestRecent  int
)

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Replay the enabled strategies over historical bars",
	Long: `Replay every enabled strategy over historical bars through the same
gates, sizing and stops used live, on a paper account per strategy and
symbol. Positions exit when a later bar crosses the stop or target, on a
SELL signal, or at the end of the data.

Bars come from <data>/<SYMBOL>/<timeframe>/candles.csv when --data is set,
otherwise from Bybit.

Example:
  momentum-bot backtest --symbols BTCUSD,ETHUSD --bars 1000 --out reports/backtest.xlsx`,
	RunE: runBacktest,
}

func init() {
	f := backtestCmd.Flags()
	f.StringSliceVar(&backtestSymbols, "symbols", nil, "symbols to replay (defaults to backtest.symbols)")
	f.IntVar(&backtestBars, "bars", 0, "bars to load per timeframe (defaults to backtest.bars)")
	f.StringVar(&backtestData, "data", "", "directory of CSV candles (defaults to backtest.data_dir)")
	f.StringVarP(&backtestOut, "out", "o", "", "write an XLSX report to this path")
	f.IntVar(&backtestWorkers, "workers", -1, "parallel replays, 0 for one per CPU (defaults to backtest.workers)")
	f.IntVar(&backtestRecent, "recent", 10, "number of recent trades to print")
}

func runBacktest(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyBacktestFlags(&cfg.Backtest)

	log, err := logger.New(cfg.Log)
	if err != nil {
		return err
	}
	defer log.Close()

	src, err := backtestSource(cfg, log)
	if err != nil {
		return err
	}
	return backtestRun(ctx, cfg, src, log, os.Stdout)
}

// applyBacktestFlags overrides the configured replay settings with the flags
// that were set
func applyBacktestFlags(bc *backtest.Config) {
	if len(backtestSymbols) > 0 {
		bc.Symbols = backtestSymbols
	}
	if backtestBars > 0 {
		bc.Bars = backtestBars
	}
	if backtestData != "" {
		bc.DataDir = backtestData
	}
	if backtestWorkers >= 0 {
		bc.Workers = backtestWorkers
	}
}

func backtestSource(cfg *config.Config, log *logger.Logger) (exchange.BarSource, error) {
	if cfg.Backtest.DataDir != "" {
		return backtest.NewCSVSource(cfg.Backtest.DataDir), nil
	}
	if cfg.Broker.Bybit.APIKey == "" || cfg.Broker.Bybit.APISecret == "" {
		return nil, boterrors.NewConfigurationError("backtest", "data source",
			"set --data or backtest.data_dir, or provide BYBIT_API_KEY and BYBIT_API_SECRET")
	}
	broker, _, err := exchange.New(cfg.Broker, true, exchange.NewMemoryCache(), log)
	if err != nil {
		return nil, err
	}
	return broker, nil
}

// backtestRun loads the series, replays every enabled strategy and renders
// the report to w, writing the XLSX file when --out is set
func backtestRun(ctx context.Context, cfg *config.Config, src exchange.BarSource, log *logger.Logger, w io.Writer) error {
	bc := cfg.Backtest
	symbols := bc.Symbols
	if len(symbols) == 0 {
		symbols = append(append([]string(nil), cfg.Assets.Crypto...), cfg.Assets.Stocks...)
	}
	builders := backtest.Builders(cfg.Strategies)
	if len(builders) == 0 {
		return boterrors.NewConfigurationError("backtest", "strategies", "no strategy is enabled")
	}

	guard, err := correlation.NewGuard(cfg.Correlation.Groups, cfg.Correlation.MaxPerGroup)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "Loading %d bars per timeframe for %d symbols...\n", bc.Bars, len(symbols))
	series, err := backtest.LoadSeries(ctx, src, symbols, backtest.Timeframes, bc.Bars, log)
	if err != nil {
		return err
	}

	engine := backtest.NewEngine(bc, cfg.Trading, cfg.Session, guard, log)
	report, err := engine.RunAll(ctx, builders, symbols, series)
	if err != nil {
		return err
	}
	display.RenderBacktest(w, report, backtestRecent)

	if backtestOut != "" {
		if err := backtest.ExportXLSX(report, backtestOut); err != nil {
			return fmt.Errorf("write backtest report: %w", err)
		}
		fmt.Fprintf(w, "Report written to %s\n", backtestOut)
	}
	return nil
}
