package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ducminhle1904/momentum-risk-bot/internal/display"
	"github.com/ducminhle1904/momentum-risk-bot/internal/monitoring"
	"github.com/ducminhle1904/momentum-risk-bot/internal/orchestrator"
)

var runDryRun bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start trading until interrupted",
	Long: `Start the orchestrator: symbol rotation, the analysis loop, the lock
sweep and the status refresh. The bot stops on SIGINT or SIGTERM and sends
the daily summary before exiting.

Example:
  momentum-bot run --config configs/bot.yaml --dry-run`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "route orders to the paper account")
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, runDryRun)
	if err != nil {
		return err
	}
	defer a.Close()

	strategies := a.strategies()
	names := make([]string, 0, len(strategies))
	for _, s := range strategies {
		names = append(names, string(s.Style()))
	}

	view := display.StartupView{
		Mode:        a.cfg.Mode(runDryRun),
		Broker:      a.broker.Name(),
		Environment: a.cfg.Environment,
		Crypto:      a.cfg.Assets.Crypto,
		Stocks:      a.cfg.Assets.Stocks,
		Strategies:  names,
		Timezone:    a.session.Location().String(),
	}
	if account, err := a.broker.GetAccount(ctx); err == nil {
		view.Equity = account.Equity
		view.BuyingPower = account.BuyingPower
	}
	display.RenderStartup(os.Stdout, view)

	health := monitoring.NewHealthChecker(a.cfg.Monitoring.StaleAfter)
	if addr := a.cfg.Monitoring.Addr; addr != "" {
		go func() {
			if err := monitoring.Serve(ctx, addr, health); err != nil {
				a.log.LogError("monitoring", err)
			}
		}()
		a.log.Info("Serving /metrics and /health on %s", addr)
	}

	engine := orchestrator.New(a.cfg.Schedule, a.cfg.Assets, orchestrator.Deps{
		Broker:     a.broker,
		Risk:       a.risk,
		Session:    a.session,
		Tracker:    a.tracker,
		Strategies: strategies,
		Notifier:   a.notifier,
		Health:     health,
		Logger:     a.log,
		Status:     os.Stdout,
		Mode:       view.Mode,
	})
	return engine.Run(ctx)
}
