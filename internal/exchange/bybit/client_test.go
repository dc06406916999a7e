package bybit

import (
	"testing"
	"time"

	bybit_api "github.com/bybit-exchange/bybit.go.api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	boterrors "github.com/ducminhle1904/momentum-risk-bot/internal/errors"
	"github.com/ducminhle1904/momentum-risk-bot/internal/logger"
)

func ok(result interface{}) *bybit_api.ServerResponse {
	return &bybit_api.ServerResponse{RetCode: 0, RetMsg: "OK", Result: result}
}

func TestNewClient_RequiresCredentials(t *testing.T) {
	_, err := NewClient(Config{}, nil)
	require.Error(t, err)
	assert.Equal(t, boterrors.ErrorCategoryCredentials, boterrors.CategoryOf(err))
	assert.True(t, boterrors.IsFatal(err))
}

func TestClient_Environment(t *testing.T) {
	tests := []struct {
		cfg  Config
		want string
	}{
		{Config{APIKey: "k", APISecret: "s", Demo: true}, "demo"},
		{Config{APIKey: "k", APISecret: "s", Testnet: true}, "testnet"},
		{Config{APIKey: "k", APISecret: "s"}, "mainnet"},
	}
	for _, tt := range tests {
		c, err := NewClient(tt.cfg, logger.Nop())
		require.NoError(t, err)
		assert.Equal(t, tt.want, c.Environment())
		assert.Equal(t, "linear", c.cfg.Category)
	}
}

func TestSymbolMapping(t *testing.T) {
	c := newClient(Config{Symbols: map[string]string{"DOGEUSD": "1000DOGEUSDT"}}, logger.Nop())

	tests := []struct{ local, venue string }{
		{"BTCUSD", "BTCUSDT"},
		{"DOGEUSD", "1000DOGEUSDT"},
		{"AAPL", "AAPL"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.venue, c.venueSymbol(tt.local))
		assert.Equal(t, tt.local, c.localSymbol(tt.venue))
	}
}

func TestParseKlines_OldestFirst(t *testing.T) {
	resp := ok(map[string]interface{}{
		"symbol": "BTCUSDT",
		"list": [][]string{
			{"1700000120000", "102", "103", "101", "102.5", "12", "1200"},
			{"1700000060000", "101", "102", "100", "101.5", "11", "1100"},
			{"bad"},
			{"1700000000000", "100", "101", "99", "100.5", "10", "1000"},
		},
	})

	bars, err := parseKlines(resp)
	require.NoError(t, err)
	require.Len(t, bars, 3)
	assert.Equal(t, 100.5, bars[0].Close)
	assert.Equal(t, 102.5, bars[2].Close)
	assert.Equal(t, time.UnixMilli(1700000000000), bars[0].Timestamp)
	assert.Equal(t, 12.0, bars[2].Volume)
}

func TestDecode_APIErrorsAreCategorized(t *testing.T) {
	tests := []struct {
		code      int
		category  boterrors.ErrorCategory
		retryable bool
	}{
		{ErrCodeRateLimitExceeded, boterrors.ErrorCategoryRateLimit, true},
		{ErrCodeInvalidAPIKey, boterrors.ErrorCategoryCredentials, false},
		{ErrCodeInsufficientBalance, boterrors.ErrorCategoryOrder, false},
		{ErrCodeInvalidQuantity, boterrors.ErrorCategoryValidation, false},
		{99999, boterrors.ErrorCategoryExchange, true},
	}
	for _, tt := range tests {
		_, err := parseKlines(&bybit_api.ServerResponse{RetCode: tt.code, RetMsg: "nope"})
		require.Error(t, err)
		assert.Equal(t, tt.category, boterrors.CategoryOf(err), "code %d", tt.code)
		assert.Equal(t, tt.retryable, boterrors.IsRetryable(err), "code %d", tt.code)

		var apiErr *APIError
		assert.ErrorAs(t, err, &apiErr)
		assert.Equal(t, tt.code, apiErr.Code)
	}

	_, err := parseKlines("not a response")
	assert.Error(t, err)
}

func TestParseWallet(t *testing.T) {
	acct, err := parseWallet(ok(map[string]interface{}{
		"list": []map[string]interface{}{
			{"totalEquity": "10250.5", "totalAvailableBalance": "8000", "accountType": "UNIFIED"},
		},
	}))
	require.NoError(t, err)
	assert.Equal(t, 10250.5, acct.Equity)
	assert.Equal(t, 8000.0, acct.BuyingPower)

	_, err = parseWallet(ok(map[string]interface{}{"list": []interface{}{}}))
	assert.Error(t, err)
}

func TestSessionStartEquity(t *testing.T) {
	c := newClient(Config{}, logger.Nop())
	now := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	assert.Equal(t, 1000.0, c.sessionStartEquity(1000))
	assert.Equal(t, 1000.0, c.sessionStartEquity(950))

	now = now.Add(24 * time.Hour)
	assert.Equal(t, 950.0, c.sessionStartEquity(950))
}

func TestParsePositions(t *testing.T) {
	c := newClient(Config{}, logger.Nop())
	positions, err := c.parsePositions(ok(map[string]interface{}{
		"list": []map[string]interface{}{
			{"symbol": "BTCUSDT", "side": "Buy", "size": "0.5", "avgPrice": "60000", "markPrice": "61000"},
			{"symbol": "ETHUSDT", "side": "Sell", "size": "2", "avgPrice": "3000", "markPrice": "2900"},
			{"symbol": "SOLUSDT", "side": "", "size": "0", "avgPrice": "0", "markPrice": "150"},
		},
	}))
	require.NoError(t, err)
	require.Len(t, positions, 2)
	assert.Equal(t, "BTCUSD", positions[0].Symbol)
	assert.Equal(t, 0.5, positions[0].Qty)
	assert.Equal(t, -2.0, positions[1].Qty)
	assert.InDelta(t, 200.0, positions[1].UnrealizedPL(), 1e-9)
}

func TestParseOrder(t *testing.T) {
	o, err := parseOrder(ok(map[string]interface{}{"orderId": "abc", "orderLinkId": "link-1"}), "place order")
	require.NoError(t, err)
	assert.Equal(t, "abc", o.ID)
	assert.Equal(t, "link-1", o.ClientID)
}
