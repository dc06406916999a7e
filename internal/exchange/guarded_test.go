package exchange

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	boterrors "github.com/ducminhle1904/momentum-risk-bot/internal/errors"
	"github.com/ducminhle1904/momentum-risk-bot/internal/logger"
	"github.com/ducminhle1904/momentum-risk-bot/pkg/types"
)

// countingBroker counts bar fetches that reach the broker.
type countingBroker struct {
	*PaperBroker
	barCalls atomic.Int32
}

func (c *countingBroker) GetBars(ctx context.Context, symbol string, tf types.Timeframe, limit int) ([]types.OHLCV, error) {
	c.barCalls.Add(1)
	return c.PaperBroker.GetBars(ctx, symbol, tf, limit)
}

func fastGuard() GuardConfig {
	return GuardConfig{RequestsPerSecond: 1000, Burst: 100, FailureThreshold: 3, OpenTimeout: time.Minute}
}

func TestGuarded_TripsAfterConsecutiveFailures(t *testing.T) {
	ctx := context.Background()
	paper := NewPaperBroker(1000)
	g := NewGuarded(paper, fastGuard(), nil, logger.Nop())

	boom := errors.New("connection reset")
	paper.FailOn(OpAccount, boom)
	for i := 0; i < 3; i++ {
		_, err := g.GetAccount(ctx)
		assert.ErrorIs(t, err, boom)
	}
	assert.Equal(t, "open", g.State())

	paper.FailOn(OpAccount, nil)
	_, err := g.GetAccount(ctx)
	assert.ErrorIs(t, err, boterrors.ErrCircuitOpen)
	assert.Equal(t, boterrors.ErrorCategoryTemporary, boterrors.CategorizeError(err, "test", "get account").Category)
}

func TestGuarded_CancellationDoesNotTrip(t *testing.T) {
	paper := NewPaperBroker(1000)
	g := NewGuarded(paper, fastGuard(), nil, logger.Nop())

	paper.FailOn(OpPositions, context.Canceled)
	for i := 0; i < 5; i++ {
		_, err := g.GetOpenPositions(context.Background())
		assert.ErrorIs(t, err, context.Canceled)
	}
	assert.Equal(t, "closed", g.State())
}

func TestGuarded_LimiterHonoursContext(t *testing.T) {
	g := NewGuarded(NewPaperBroker(1000), GuardConfig{RequestsPerSecond: 0.001, Burst: 1}, nil, logger.Nop())
	ctx := context.Background()
	_, err := g.GetAccount(ctx)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	_, err = g.GetAccount(ctx)
	assert.Error(t, err)
}

func TestGuarded_BarCache(t *testing.T) {
	ctx := context.Background()
	inner := &countingBroker{PaperBroker: NewPaperBroker(1000)}
	inner.SetBars("BTCUSD", types.Timeframe1Min, testBars(20, 100))

	cache := NewMemoryCache()
	g := NewGuarded(inner, fastGuard(), cache, logger.Nop())

	for i := 0; i < 3; i++ {
		bars, err := g.GetBars(ctx, "BTCUSD", types.Timeframe1Min, 10)
		require.NoError(t, err)
		assert.Len(t, bars, 10)
	}
	assert.Equal(t, int32(1), inner.barCalls.Load())

	_, err := g.GetBars(ctx, "BTCUSD", types.Timeframe1Min, 5)
	require.NoError(t, err)
	assert.Equal(t, int32(2), inner.barCalls.Load())
}

func TestGuarded_PassesThroughOrders(t *testing.T) {
	ctx := context.Background()
	paper := NewPaperBroker(10000)
	g := NewGuarded(paper, fastGuard(), nil, logger.Nop())

	_, err := g.SubmitBracketOrder(ctx, types.BracketOrder{Symbol: "AAPL", Side: types.SideBuy, Qty: 1, PriceHint: 100})
	require.NoError(t, err)

	pos, err := g.GetPosition(ctx, "AAPL")
	require.NoError(t, err)
	require.NotNil(t, pos)

	none, err := g.GetPosition(ctx, "MSFT")
	require.NoError(t, err)
	assert.Nil(t, none)

	_, err = g.ClosePosition(ctx, "AAPL")
	require.NoError(t, err)
	require.NoError(t, g.CancelAllOrders(ctx))
	assert.Equal(t, 1, paper.CancelCount())
	assert.Equal(t, "paper", g.Name())
}

// flakyAccount fails the first failures account reads with err.
type flakyAccount struct {
	*PaperBroker
	err      error
	failures int32
	calls    atomic.Int32
	submits  atomic.Int32
}

func (f *flakyAccount) GetAccount(ctx context.Context) (types.Account, error) {
	if f.calls.Add(1) <= f.failures {
		return types.Account{}, f.err
	}
	return f.PaperBroker.GetAccount(ctx)
}

func (f *flakyAccount) SubmitBracketOrder(ctx context.Context, o types.BracketOrder) (*types.Order, error) {
	f.submits.Add(1)
	return nil, f.err
}

func TestGuarded_RetriesTransientReads(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		failures  int32
		wantErr   bool
		wantCalls int32
	}{
		{"network blip recovers", errors.New("dial tcp: connection refused"), 2, false, 3},
		{"rate limit waits then recovers", errors.New("too many requests"), 1, false, 2},
		{"retries exhausted", errors.New("request timeout"), 5, true, 3},
		{"validation is not retried", errors.New("invalid symbol"), 5, true, 1},
		{"credentials are not retried", errors.New("api key expired"), 5, true, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inner := &flakyAccount{PaperBroker: NewPaperBroker(1000), err: tt.err, failures: tt.failures}
			cfg := fastGuard()
			cfg.FailureThreshold = 10
			cfg.ReadRetries = 2
			cfg.RetryBackoff = time.Millisecond
			g := NewGuarded(inner, cfg, nil, logger.Nop())

			account, err := g.GetAccount(context.Background())
			if tt.wantErr {
				assert.ErrorIs(t, err, tt.err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, 1000.0, account.Equity)
			}
			assert.Equal(t, tt.wantCalls, inner.calls.Load())
		})
	}
}

func TestGuarded_OrdersAreNeverRetried(t *testing.T) {
	inner := &flakyAccount{PaperBroker: NewPaperBroker(1000), err: errors.New("connection reset"), failures: 5}
	cfg := fastGuard()
	cfg.ReadRetries = 3
	cfg.RetryBackoff = time.Millisecond
	g := NewGuarded(inner, cfg, nil, logger.Nop())

	_, err := g.SubmitBracketOrder(context.Background(), types.BracketOrder{Symbol: "AAPL", Side: types.SideBuy, Qty: 1, PriceHint: 100})
	assert.Error(t, err)
	assert.Equal(t, int32(1), inner.submits.Load())
}

func TestGuarded_RetryStopsWhenCircuitOpens(t *testing.T) {
	inner := &flakyAccount{PaperBroker: NewPaperBroker(1000), err: errors.New("connection reset"), failures: 100}
	cfg := fastGuard()
	cfg.FailureThreshold = 2
	cfg.ReadRetries = 5
	cfg.RetryBackoff = time.Millisecond
	g := NewGuarded(inner, cfg, nil, logger.Nop())

	_, err := g.GetAccount(context.Background())
	assert.ErrorIs(t, err, boterrors.ErrCircuitOpen)
	assert.Equal(t, int32(2), inner.calls.Load())
}
