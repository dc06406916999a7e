package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/ducminhle1904/momentum-risk-bot/internal/display"
)

var statusDays int

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the account, risk state and recent trade history",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		a, err := newApp(ctx, false)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.risk.Initialize(ctx); err != nil {
			return err
		}
		summary, err := a.risk.PortfolioSummary(ctx)
		if err != nil {
			return err
		}
		positions, err := a.broker.GetOpenPositions(ctx)
		if err != nil {
			return err
		}
		display.RenderStatus(os.Stdout, display.StatusView{
			Summary:     summary,
			Positions:   positions,
			ActiveLocks: a.risk.ActiveLocks(),
		})

		days, err := a.store.RecentDays(ctx, statusDays)
		if err != nil {
			return err
		}
		lifetime, err := a.store.LifetimeStats(ctx)
		if err != nil {
			return err
		}
		display.RenderHistory(os.Stdout, days, lifetime)
		return nil
	},
}

func init() {
	statusCmd.Flags().IntVar(&statusDays, "days", 7, "number of trading days of history to show")
}
