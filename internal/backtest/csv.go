package backtest

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/ducminhle1904/momentum-risk-bot/pkg/types"
)

// CSVColumns maps CSV columns to bar fields
type CSVColumns struct {
	Timestamp  int
	Open       int
	High       int
	Low        int
	Close      int
	Volume     int
	DateFormat string
}

// DefaultCSVColumns reads timestamp,open,high,low,close,volume
var DefaultCSVColumns = CSVColumns{
	Timestamp:  0,
	Open:       1,
	High:       2,
	Low:        3,
	Close:      4,
	Volume:     5,
	DateFormat: "2006-01-02 15:04:05",
}

func (c CSVColumns) minColumns() int {
	n := 0
	for _, col := range []int{c.Timestamp, c.Open, c.High, c.Low, c.Close, c.Volume} {
		if col+1 > n {
			n = col + 1
		}
	}
	return n
}

// CSVSource serves bars from <dir>/<SYMBOL>/<timeframe>/candles.csv. Parsed
// files are cached for the life of the source.
type CSVSource struct {
	dir     string
	columns CSVColumns

	mu    sync.RWMutex
	cache map[string][]types.OHLCV
}

func NewCSVSource(dir string) *CSVSource {
	return &CSVSource{dir: dir, columns: DefaultCSVColumns, cache: make(map[string][]types.OHLCV)}
}

// SetColumns changes the column layout for files not read yet
func (s *CSVSource) SetColumns(c CSVColumns) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.columns = c
}

// Path returns the file read for symbol and tf
func (s *CSVSource) Path(symbol string, tf types.Timeframe) string {
	return filepath.Join(s.dir, symbol, string(tf), "candles.csv")
}

func (s *CSVSource) GetBars(ctx context.Context, symbol string, tf types.Timeframe, limit int) ([]types.OHLCV, error) {
	path := s.Path(symbol, tf)

	s.mu.RLock()
	bars, ok := s.cache[path]
	columns := s.columns
	s.mu.RUnlock()

	if !ok {
		var err error
		bars, err = readCSV(path, columns)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.cache[path] = bars
		s.mu.Unlock()
	}

	if limit > 0 && len(bars) > limit {
		bars = bars[len(bars)-limit:]
	}
	return append([]types.OHLCV(nil), bars...), nil
}

// readCSV parses a headed CSV file. Rows that do not parse or describe an
// impossible bar are dropped.
func readCSV(path string, c CSVColumns) ([]types.OHLCV, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file %s: %w", path, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	if _, err := reader.Read(); err != nil {
		return nil, fmt.Errorf("failed to read header of %s: %w", path, err)
	}

	var bars []types.OHLCV
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error reading %s at line %d: %w", path, line, err)
		}
		if bar, ok := parseRow(record, c); ok {
			bars = append(bars, bar)
		}
	}
	return bars, nil
}

func parseRow(record []string, c CSVColumns) (types.OHLCV, bool) {
	if len(record) < c.minColumns() {
		return types.OHLCV{}, false
	}
	ts, err := time.Parse(c.DateFormat, record[c.Timestamp])
	if err != nil {
		return types.OHLCV{}, false
	}
	var vals [5]float64
	for i, col := range []int{c.Open, c.High, c.Low, c.Close, c.Volume} {
		v, err := strconv.ParseFloat(record[col], 64)
		if err != nil {
			return types.OHLCV{}, false
		}
		vals[i] = v
	}
	bar := types.OHLCV{Timestamp: ts, Open: vals[0], High: vals[1], Low: vals[2], Close: vals[3], Volume: vals[4]}

	if bar.Open <= 0 || bar.High <= 0 || bar.Low <= 0 || bar.Close <= 0 {
		return types.OHLCV{}, false
	}
	if bar.High < bar.Open || bar.High < bar.Close || bar.High < bar.Low {
		return types.OHLCV{}, false
	}
	if bar.Low > bar.Open || bar.Low > bar.Close {
		return types.OHLCV{}, false
	}
	return bar, true
}
