package exchange

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	boterrors "github.com/ducminhle1904/momentum-risk-bot/internal/errors"
	"github.com/ducminhle1904/momentum-risk-bot/pkg/types"
)

func testBars(n int, start float64) []types.OHLCV {
	t0 := time.Date(2025, 6, 2, 14, 0, 0, 0, time.UTC)
	bars := make([]types.OHLCV, n)
	for i := range bars {
		c := start + float64(i)
		bars[i] = types.OHLCV{Open: c, High: c + 1, Low: c - 1, Close: c, Volume: 1000, Timestamp: t0.Add(time.Duration(i) * time.Minute)}
	}
	return bars
}

func TestPaperBroker_BracketFillAndClose(t *testing.T) {
	ctx := context.Background()
	p := NewPaperBroker(10000)

	order, err := p.SubmitBracketOrder(ctx, types.BracketOrder{
		ClientID: "c1", Symbol: "AAPL", Side: types.SideBuy, Qty: 10, PriceHint: 100, StopLoss: 98, TakeProfit: 103,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, order.ID)
	assert.Equal(t, "c1", order.ClientID)
	assert.Equal(t, 98.0, order.StopLoss)

	pos, err := p.GetPosition(ctx, "AAPL")
	require.NoError(t, err)
	require.NotNil(t, pos)
	assert.Equal(t, 10.0, pos.Qty)
	assert.Equal(t, 100.0, pos.AvgEntryPrice)

	acct, _ := p.GetAccount(ctx)
	assert.Equal(t, 9000.0, acct.BuyingPower)

	p.SetBars("AAPL", types.Timeframe1Min, testBars(5, 101))
	closed, err := p.ClosePosition(ctx, "AAPL")
	require.NoError(t, err)
	assert.Equal(t, types.SideSell, closed.Side)

	acct, _ = p.GetAccount(ctx)
	assert.InDelta(t, 10050.0, acct.Equity, 1e-9)
	assert.InDelta(t, 10050.0, acct.BuyingPower, 1e-9)

	pos, err = p.GetPosition(ctx, "AAPL")
	require.NoError(t, err)
	assert.Nil(t, pos)
	assert.Len(t, p.Orders(), 2)
}

func TestPaperBroker_Rejections(t *testing.T) {
	ctx := context.Background()
	p := NewPaperBroker(1000)

	tests := []struct {
		name     string
		order    types.BracketOrder
		category boterrors.ErrorCategory
	}{
		{"zero qty", types.BracketOrder{Symbol: "AAPL", Side: types.SideBuy, PriceHint: 10}, boterrors.ErrorCategoryValidation},
		{"no price", types.BracketOrder{Symbol: "AAPL", Side: types.SideBuy, Qty: 1}, boterrors.ErrorCategoryValidation},
		{"insufficient balance", types.BracketOrder{Symbol: "AAPL", Side: types.SideBuy, Qty: 100, PriceHint: 100}, boterrors.ErrorCategoryTemporary},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.SubmitBracketOrder(ctx, tt.order)
			require.Error(t, err)
			assert.Equal(t, tt.category, boterrors.CategoryOf(err))
		})
	}

	_, err := p.ClosePosition(ctx, "MSFT")
	assert.Error(t, err)
}

func TestPaperBroker_FailOnAndBars(t *testing.T) {
	ctx := context.Background()
	p := NewPaperBroker(1000)
	p.SetBars("BTCUSD", types.Timeframe5Min, testBars(10, 100))

	bars, err := p.GetBars(ctx, "BTCUSD", types.Timeframe5Min, 4)
	require.NoError(t, err)
	require.Len(t, bars, 4)
	assert.Equal(t, 109.0, bars[3].Close)

	boom := errors.New("boom")
	p.FailOn(OpBars, boom)
	_, err = p.GetBars(ctx, "BTCUSD", types.Timeframe5Min, 4)
	assert.ErrorIs(t, err, boom)

	p.FailOn(OpBars, nil)
	_, err = p.GetBars(ctx, "BTCUSD", types.Timeframe5Min, 4)
	assert.NoError(t, err)

	require.NoError(t, p.CancelAllOrders(ctx))
	assert.Equal(t, 1, p.CancelCount())
}

func TestPaperBroker_UseFeedMarksPositions(t *testing.T) {
	ctx := context.Background()
	feed := NewPaperBroker(0)
	feed.SetBars("ETHUSD", types.Timeframe1Hour, testBars(3, 2000))

	p := NewPaperBroker(100000)
	p.UseFeed(feed)
	p.SetPosition(types.Position{Symbol: "ETHUSD", Qty: 1, AvgEntryPrice: 1990, CurrentPrice: 1990})

	bars, err := p.GetBars(ctx, "ETHUSD", types.Timeframe1Hour, 0)
	require.NoError(t, err)
	assert.Len(t, bars, 3)

	pos, _ := p.GetPosition(ctx, "ETHUSD")
	assert.Equal(t, 2002.0, pos.CurrentPrice)
}
