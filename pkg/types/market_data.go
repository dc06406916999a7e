package types

import (
	"strings"
	"time"
)

// OHLCV is a single price bar.
type OHLCV struct {
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
	Timestamp time.Time
}

// Closes extracts the close series from bars.
func Closes(bars []OHLCV) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}

// Account is a broker account snapshot.
type Account struct {
	Equity      float64
	LastEquity  float64 // equity at the previous session close
	BuyingPower float64
}

// Position is an open position snapshot.
type Position struct {
	Symbol        string
	Qty           float64
	AvgEntryPrice float64
	CurrentPrice  float64
}

// MarketValue returns qty * current price.
func (p Position) MarketValue() float64 {
	return p.Qty * p.CurrentPrice
}

// UnrealizedPL returns the open profit or loss.
func (p Position) UnrealizedPL() float64 {
	return (p.CurrentPrice - p.AvgEntryPrice) * p.Qty
}

// OrderSide is the direction of an order.
type OrderSide string

const (
	SideBuy  OrderSide = "buy"
	SideSell OrderSide = "sell"
)

// Order is the broker acknowledgement of a submitted order.
type Order struct {
	ID          string
	ClientID    string
	Symbol      string
	Side        OrderSide
	Qty         float64
	StopLoss    float64
	TakeProfit  float64
	SubmittedAt time.Time
}

// Asset classes
const (
	AssetCrypto = "crypto"
	AssetStock  = "stock"
)

// AssetType classifies a symbol into "crypto" or "stock".
// Crypto pairs are quoted against USD (BTCUSD, ETHUSD).
func AssetType(symbol string) string {
	if strings.Contains(symbol, "USD") {
		return AssetCrypto
	}
	return AssetStock
}

// Timeframe is a bar aggregation period.
type Timeframe string

const (
	Timeframe1Min  Timeframe = "1Min"
	Timeframe5Min  Timeframe = "5Min"
	Timeframe1Hour Timeframe = "1Hour"
	Timeframe4Hour Timeframe = "4Hour"
	Timeframe1Day  Timeframe = "1Day"
)

// Duration returns the length of one bar, zero for unknown timeframes.
func (tf Timeframe) Duration() time.Duration {
	switch tf {
	case Timeframe1Min:
		return time.Minute
	case Timeframe5Min:
		return 5 * time.Minute
	case Timeframe1Hour:
		return time.Hour
	case Timeframe4Hour:
		return 4 * time.Hour
	case Timeframe1Day:
		return 24 * time.Hour
	default:
		return 0
	}
}

// BracketOrder is a market entry with attached stop loss and take profit.
type BracketOrder struct {
	ClientID   string
	Symbol     string
	Side       OrderSide
	Qty        float64
	PriceHint  float64
	StopLoss   float64
	TakeProfit float64
}
