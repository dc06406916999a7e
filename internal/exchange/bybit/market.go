package bybit

import (
	"context"
	"fmt"
	"sort"

	"github.com/ducminhle1904/momentum-risk-bot/pkg/types"
)

const maxKlineLimit = 1000

var intervals = map[types.Timeframe]string{
	types.Timeframe1Min:  "1",
	types.Timeframe5Min:  "5",
	types.Timeframe1Hour: "60",
	types.Timeframe4Hour: "240",
	types.Timeframe1Day:  "D",
}

// GetBars retrieves klines oldest first
func (c *Client) GetBars(ctx context.Context, symbol string, tf types.Timeframe, limit int) ([]types.OHLCV, error) {
	interval, ok := intervals[tf]
	if !ok {
		return nil, fmt.Errorf("unsupported timeframe %q", tf)
	}
	if limit <= 0 || limit > maxKlineLimit {
		limit = maxKlineLimit
	}

	params := map[string]interface{}{
		"category": c.cfg.Category,
		"symbol":   c.venueSymbol(symbol),
		"interval": interval,
		"limit":    limit,
	}
	result, err := c.api.NewUtaBybitServiceWithParams(params).GetMarketKline(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get klines for %s: %w", symbol, err)
	}
	return parseKlines(result)
}

func parseKlines(response interface{}) ([]types.OHLCV, error) {
	var klines struct {
		Symbol string     `json:"symbol"`
		List   [][]string `json:"list"`
	}
	if err := decode(response, "get klines", &klines); err != nil {
		return nil, err
	}

	bars := make([]types.OHLCV, 0, len(klines.List))
	for _, row := range klines.List {
		// [startTime, open, high, low, close, volume, turnover]
		if len(row) < 6 {
			continue
		}
		bars = append(bars, types.OHLCV{
			Timestamp: parseMillis(row[0]),
			Open:      parseFloat64(row[1]),
			High:      parseFloat64(row[2]),
			Low:       parseFloat64(row[3]),
			Close:     parseFloat64(row[4]),
			Volume:    parseFloat64(row[5]),
		})
	}
	// The API lists newest first.
	sort.SliceStable(bars, func(i, j int) bool { return bars[i].Timestamp.Before(bars[j].Timestamp) })
	return bars, nil
}
