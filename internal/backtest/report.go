package backtest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"
)

const (
	summarySheet = "Summary"
	tradesSheet  = "Trades"
)

type reportStyles struct {
	header   int
	currency int
	percent  int
	gain     int
	loss     int
}

func newReportStyles(fx *excelize.File) (reportStyles, error) {
	var st reportStyles
	var err error

	border := []excelize.Border{
		{Type: "left", Color: "E0E0E0", Style: 1},
		{Type: "right", Color: "E0E0E0", Style: 1},
		{Type: "bottom", Color: "E0E0E0", Style: 1},
	}
	st.header, err = fx.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11, Color: "FFFFFF", Family: "Calibri"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"1F3A5F"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return st, err
	}
	st.currency, err = fx.NewStyle(&excelize.Style{NumFmt: 7, Border: border})
	if err != nil {
		return st, err
	}
	st.percent, err = fx.NewStyle(&excelize.Style{NumFmt: 10, Border: border})
	if err != nil {
		return st, err
	}
	st.gain, err = fx.NewStyle(&excelize.Style{NumFmt: 7, Font: &excelize.Font{Color: "008000"}, Border: border})
	if err != nil {
		return st, err
	}
	st.loss, err = fx.NewStyle(&excelize.Style{NumFmt: 7, Font: &excelize.Font{Color: "FF0000"}, Border: border})
	return st, err
}

// ExportXLSX writes the per-strategy summary and every simulated trade to path
func ExportXLSX(r *Report, path string) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	fx := excelize.NewFile()
	defer fx.Close()

	fx.SetSheetName(fx.GetSheetName(0), summarySheet)
	if _, err := fx.NewSheet(tradesSheet); err != nil {
		return err
	}
	st, err := newReportStyles(fx)
	if err != nil {
		return err
	}
	if err := writeSummaries(fx, r, st); err != nil {
		return err
	}
	if err := writeTrades(fx, r.Trades, st); err != nil {
		return err
	}
	return fx.SaveAs(path)
}

func writeHeader(fx *excelize.File, sheet string, headers []string, widths []float64, style int) error {
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		col, _ := excelize.ColumnNumberToName(i + 1)
		fx.SetColWidth(sheet, col, col, widths[i])
		if err := fx.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
	}
	last, _ := excelize.CoordinatesToCellName(len(headers), 1)
	return fx.SetCellStyle(sheet, "A1", last, style)
}

func writeSummaries(fx *excelize.File, r *Report, st reportStyles) error {
	headers := []string{"Strategy", "Trades", "Wins", "Losses", "Win Rate", "Net P/L", "Avg Win", "Avg Loss", "Profit Factor", "Max Drawdown", "Return"}
	widths := []float64{12, 8, 8, 8, 10, 12, 12, 12, 13, 14, 10}
	if err := writeHeader(fx, summarySheet, headers, widths, st.header); err != nil {
		return err
	}

	rows := append(append([]Summary(nil), r.Strategies...), r.Overall)
	for i, s := range rows {
		row := i + 2
		values := []interface{}{
			s.Name, s.Trades, s.Wins, s.Losses, s.WinRate / 100, s.NetPL, s.AvgWin, s.AvgLoss,
			s.ProfitFactor, s.MaxDrawdown / 100, s.TotalReturn / 100,
		}
		cell, _ := excelize.CoordinatesToCellName(1, row)
		if err := fx.SetSheetRow(summarySheet, cell, &values); err != nil {
			return err
		}
		set := func(col int, style int) {
			c, _ := excelize.CoordinatesToCellName(col, row)
			fx.SetCellStyle(summarySheet, c, c, style)
		}
		set(5, st.percent)
		pl := st.gain
		if s.NetPL < 0 {
			pl = st.loss
		}
		set(6, pl)
		set(7, st.currency)
		set(8, st.currency)
		set(10, st.percent)
		set(11, st.percent)
	}
	return nil
}

func writeTrades(fx *excelize.File, trades []Trade, st reportStyles) error {
	headers := []string{"Symbol", "Strategy", "Entry Time", "Exit Time", "Qty", "Entry", "Exit", "P/L", "Exit Reason"}
	widths := []float64{10, 10, 20, 20, 8, 12, 12, 12, 14}
	if err := writeHeader(fx, tradesSheet, headers, widths, st.header); err != nil {
		return err
	}

	for i, t := range trades {
		row := i + 2
		values := []interface{}{
			t.Symbol, t.Strategy,
			t.EntryTime.UTC().Format("2006-01-02 15:04"), t.ExitTime.UTC().Format("2006-01-02 15:04"),
			t.Qty, t.EntryPrice, t.ExitPrice, t.PnL, string(t.Exit),
		}
		cell, _ := excelize.CoordinatesToCellName(1, row)
		if err := fx.SetSheetRow(tradesSheet, cell, &values); err != nil {
			return err
		}
		entry, _ := excelize.CoordinatesToCellName(6, row)
		exit, _ := excelize.CoordinatesToCellName(7, row)
		fx.SetCellStyle(tradesSheet, entry, exit, st.currency)

		plCell, _ := excelize.CoordinatesToCellName(8, row)
		pl := st.gain
		if t.PnL < 0 {
			pl = st.loss
		}
		fx.SetCellStyle(tradesSheet, plCell, plCell, pl)
	}
	return nil
}
