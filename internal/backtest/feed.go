package backtest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ducminhle1904/momentum-risk-bot/internal/exchange"
	"github.com/ducminhle1904/momentum-risk-bot/internal/logger"
	"github.com/ducminhle1904/momentum-risk-bot/pkg/types"
)

// Timeframes are the series every replay loads: the strategy timeframes plus
// the confirmation timeframes they read.
var Timeframes = []types.Timeframe{types.Timeframe1Min, types.Timeframe5Min, types.Timeframe1Hour, types.Timeframe1Day}

// Series holds historical bars per symbol and timeframe, oldest first
type Series map[string]map[types.Timeframe][]types.OHLCV

// Bars returns the series for symbol and tf, nil when it was never loaded
func (s Series) Bars(symbol string, tf types.Timeframe) []types.OHLCV {
	return s[symbol][tf]
}

// Set installs bars for symbol and tf, sorted by timestamp
func (s Series) Set(symbol string, tf types.Timeframe, bars []types.OHLCV) {
	sorted := append([]types.OHLCV(nil), bars...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Timestamp.Before(sorted[j].Timestamp) })
	if s[symbol] == nil {
		s[symbol] = make(map[types.Timeframe][]types.OHLCV)
	}
	s[symbol][tf] = sorted
}

// LoadSeries fetches up to limit bars of every timeframe for each symbol.
// A series that fails to load is logged and left out; only cancellation
// aborts the load.
func LoadSeries(ctx context.Context, src exchange.BarSource, symbols []string, timeframes []types.Timeframe, limit int, log *logger.Logger) (Series, error) {
	if log == nil {
		log = logger.Nop()
	}
	series := make(Series)
	for _, symbol := range symbols {
		for _, tf := range timeframes {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			bars, err := src.GetBars(ctx, symbol, tf, limit)
			if err != nil {
				log.LogWarning("backtest", "%s %s bars unavailable: %v", symbol, tf, err)
				continue
			}
			if len(bars) > 0 {
				series.Set(symbol, tf, bars)
			}
		}
	}
	return series, nil
}

// replayFeed serves each series as it looked at the replay clock. A bar is
// visible once it has closed.
type replayFeed struct {
	series Series

	mu  sync.RWMutex
	now time.Time
}

func newReplayFeed(series Series) *replayFeed {
	return &replayFeed{series: series}
}

func (f *replayFeed) Now() time.Time {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.now
}

func (f *replayFeed) advance(t time.Time) {
	f.mu.Lock()
	f.now = t
	f.mu.Unlock()
}

func (f *replayFeed) GetBars(ctx context.Context, symbol string, tf types.Timeframe, limit int) ([]types.OHLCV, error) {
	now := f.Now()
	bars := f.series.Bars(symbol, tf)
	d := tf.Duration()
	n := sort.Search(len(bars), func(i int) bool { return bars[i].Timestamp.Add(d).After(now) })
	visible := bars[:n]
	if limit > 0 && len(visible) > limit {
		visible = visible[len(visible)-limit:]
	}
	return append([]types.OHLCV(nil), visible...), nil
}
