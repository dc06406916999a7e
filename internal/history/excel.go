package history

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"
)

const (
	positionsSheet = "Closed Positions"
	summarySheet   = "Summary"
)

type sheetStyles struct {
	header   int
	currency int
	percent  int
	gain     int
	loss     int
}

func newSheetStyles(fx *excelize.File) (sheetStyles, error) {
	var st sheetStyles
	var err error

	border := []excelize.Border{
		{Type: "left", Color: "E0E0E0", Style: 1},
		{Type: "right", Color: "E0E0E0", Style: 1},
		{Type: "bottom", Color: "E0E0E0", Style: 1},
	}

	st.header, err = fx.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11, Color: "FFFFFF", Family: "Calibri"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"2F4F4F"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	if err != nil {
		return st, err
	}
	st.currency, err = fx.NewStyle(&excelize.Style{NumFmt: 7, Alignment: &excelize.Alignment{Horizontal: "right"}, Border: border})
	if err != nil {
		return st, err
	}
	st.percent, err = fx.NewStyle(&excelize.Style{NumFmt: 10, Alignment: &excelize.Alignment{Horizontal: "right"}, Border: border})
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

// ExportXLSX writes the closed positions of date (every date when empty)
// and a summary sheet to path. It returns the number of rows written.
func (s *Store) ExportXLSX(ctx context.Context, date, path string) (int, error) {
	var (
		positions []ClosedPosition
		err       error
	)
	if date == "" {
		positions, err = s.ListAll(ctx)
	} else {
		positions, err = s.ListByDate(ctx, date)
	}
	if err != nil {
		return 0, err
	}

	var stats Stats
	if date == "" {
		stats, err = s.LifetimeStats(ctx)
		stats.Date = "all"
	} else {
		stats, err = s.DayStats(ctx, date)
	}
	if err != nil {
		return 0, err
	}

	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return 0, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	fx := excelize.NewFile()
	defer fx.Close()

	fx.SetSheetName(fx.GetSheetName(0), positionsSheet)
	if _, err := fx.NewSheet(summarySheet); err != nil {
		return 0, err
	}
	styles, err := newSheetStyles(fx)
	if err != nil {
		return 0, err
	}

	if err := writePositions(fx, positions, styles); err != nil {
		return 0, err
	}
	if err := writeSummary(fx, stats, styles); err != nil {
		return 0, err
	}
	if err := fx.SaveAs(path); err != nil {
		return 0, err
	}
	return len(positions), nil
}

func writePositions(fx *excelize.File, positions []ClosedPosition, st sheetStyles) error {
	headers := []string{"ID", "Date", "Symbol", "Strategy", "Qty", "Entry", "Exit", "P/L", "P/L %", "Hold (min)", "Closed At"}
	widths := []float64{28, 12, 10, 10, 8, 12, 12, 12, 10, 11, 22}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		col, _ := excelize.ColumnNumberToName(i + 1)
		fx.SetColWidth(positionsSheet, col, col, widths[i])
		if err := fx.SetCellValue(positionsSheet, cell, h); err != nil {
			return err
		}
		fx.SetCellStyle(positionsSheet, cell, cell, st.header)
	}

	for i, p := range positions {
		row := i + 2
		values := []interface{}{
			p.ID, p.TradeDate, p.Symbol, p.Strategy, p.Qty, p.EntryPrice, p.ExitPrice,
			p.PL, p.PLPercent / 100, p.HoldTime.Minutes(), p.ClosedAt.UTC().Format("2006-01-02 15:04:05"),
		}
		for j, v := range values {
			cell, _ := excelize.CoordinatesToCellName(j+1, row)
			if err := fx.SetCellValue(positionsSheet, cell, v); err != nil {
				return err
			}
		}
		entry, _ := excelize.CoordinatesToCellName(6, row)
		exit, _ := excelize.CoordinatesToCellName(7, row)
		fx.SetCellStyle(positionsSheet, entry, exit, st.currency)

		plCell, _ := excelize.CoordinatesToCellName(8, row)
		plStyle := st.gain
		if p.PL < 0 {
			plStyle = st.loss
		}
		fx.SetCellStyle(positionsSheet, plCell, plCell, plStyle)

		pctCell, _ := excelize.CoordinatesToCellName(9, row)
		fx.SetCellStyle(positionsSheet, pctCell, pctCell, st.percent)
	}
	return nil
}

func writeSummary(fx *excelize.File, stats Stats, st sheetStyles) error {
	fx.SetColWidth(summarySheet, "A", "A", 18)
	fx.SetColWidth(summarySheet, "B", "B", 14)

	rows := [][]interface{}{
		{"Metric", "Value"},
		{"Date", stats.Date},
		{"Total Trades", stats.TotalTrades},
		{"Winning Trades", stats.WinningTrades},
		{"Losing Trades", stats.LosingTrades},
		{"Win Rate", stats.WinRate / 100},
		{"Total P/L", stats.TotalPL},
	}
	for i, r := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := fx.SetSheetRow(summarySheet, cell, &r); err != nil {
			return err
		}
	}
	fx.SetCellStyle(summarySheet, "A1", "B1", st.header)
	fx.SetCellStyle(summarySheet, "B6", "B6", st.percent)
	fx.SetCellStyle(summarySheet, "B7", "B7", st.currency)
	return nil
}
