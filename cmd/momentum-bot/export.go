package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ducminhle1904/momentum-risk-bot/internal/config"
	"github.com/ducminhle1904/momentum-risk-bot/internal/history"
)

var (
	exportDate string
	exportOut  string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export closed positions to an Excel workbook",
	Long: `Write the closed positions of one trading day (or the whole history when
--date is omitted) to an .xlsx file with a summary sheet.

Example:
  momentum-bot export --date 2025-06-04 --out reports/2025-06-04.xlsx`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return exportHistory(cmd.Context(), cfg, exportDate, exportOut, cmd.OutOrStdout())
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportDate, "date", "", "trading day to export as YYYY-MM-DD (all days when empty)")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "output path (defaults to trades_<date>.xlsx next to the history database)")
}

func exportHistory(ctx context.Context, cfg *config.Config, date, out string, w io.Writer) error {
	store, err := history.Open(cfg.History.Path, nil)
	if err != nil {
		return fmt.Errorf("open trade history: %w", err)
	}
	defer store.Close()

	if out == "" {
		name := "trades_all.xlsx"
		if date != "" {
			name = "trades_" + date + ".xlsx"
		}
		out = filepath.Join(filepath.Dir(cfg.History.Path), name)
	}
	n, err := store.ExportXLSX(ctx, date, out)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Exported %d closed positions to %s\n", n, out)
	return nil
}
