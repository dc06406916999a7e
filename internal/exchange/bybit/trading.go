package bybit

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/ducminhle1904/momentum-risk-bot/pkg/types"
)

const (
	sideBuy  = "Buy"
	sideSell = "Sell"
)

func venueSide(s types.OrderSide) string {
	if s == types.SideSell {
		return sideSell
	}
	return sideBuy
}

// SubmitBracketOrder places a market order with attached take profit and stop loss
func (c *Client) SubmitBracketOrder(ctx context.Context, o types.BracketOrder) (*types.Order, error) {
	if o.Qty <= 0 {
		return nil, fmt.Errorf("qty must be positive, got %v", o.Qty)
	}
	linkID := o.ClientID
	if linkID == "" {
		linkID = uuid.NewString()
	}

	params := map[string]interface{}{
		"category":    c.cfg.Category,
		"symbol":      c.venueSymbol(o.Symbol),
		"side":        venueSide(o.Side),
		"orderType":   "Market",
		"qty":         formatFloat(o.Qty),
		"orderLinkId": linkID,
	}
	if o.TakeProfit > 0 || o.StopLoss > 0 {
		params["tpslMode"] = "Full"
	}
	if o.TakeProfit > 0 {
		params["takeProfit"] = formatFloat(o.TakeProfit)
		params["tpTriggerBy"] = "LastPrice"
	}
	if o.StopLoss > 0 {
		params["stopLoss"] = formatFloat(o.StopLoss)
		params["slTriggerBy"] = "LastPrice"
	}

	result, err := c.api.NewUtaBybitServiceWithParams(params).PlaceOrder(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to place order: %w", err)
	}
	order, err := parseOrder(result, "place order")
	if err != nil {
		return nil, err
	}
	order.Symbol = o.Symbol
	order.Side = o.Side
	order.Qty = o.Qty
	order.StopLoss = o.StopLoss
	order.TakeProfit = o.TakeProfit
	order.SubmittedAt = c.now()
	return order, nil
}

// ClosePosition flattens symbol with a reduce-only market order
func (c *Client) ClosePosition(ctx context.Context, symbol string) (*types.Order, error) {
	pos, err := c.GetPosition(ctx, symbol)
	if err != nil {
		return nil, err
	}
	if pos == nil {
		return nil, fmt.Errorf("no open position for %s", symbol)
	}

	side, qty := types.SideSell, pos.Qty
	if qty < 0 {
		side, qty = types.SideBuy, -qty
	}
	params := map[string]interface{}{
		"category":    c.cfg.Category,
		"symbol":      c.venueSymbol(symbol),
		"side":        venueSide(side),
		"orderType":   "Market",
		"qty":         formatFloat(qty),
		"reduceOnly":  true,
		"orderLinkId": uuid.NewString(),
	}
	result, err := c.api.NewUtaBybitServiceWithParams(params).PlaceOrder(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to close position: %w", err)
	}
	order, err := parseOrder(result, "close position")
	if err != nil {
		return nil, err
	}
	order.Symbol = symbol
	order.Side = side
	order.Qty = qty
	order.SubmittedAt = c.now()
	return order, nil
}

// CancelAllOrders cancels every open order settled in the configured coin
func (c *Client) CancelAllOrders(ctx context.Context) error {
	params := map[string]interface{}{
		"category":   c.cfg.Category,
		"settleCoin": c.cfg.SettleCoin,
	}
	result, err := c.api.NewUtaBybitServiceWithParams(params).CancelAllOrders(ctx)
	if err != nil {
		return fmt.Errorf("failed to cancel all orders: %w", err)
	}
	var ignored struct{}
	return decode(result, "cancel all orders", &ignored)
}

func parseOrder(response interface{}, operation string) (*types.Order, error) {
	var ack struct {
		OrderID     string `json:"orderId"`
		OrderLinkID string `json:"orderLinkId"`
	}
	if err := decode(response, operation, &ack); err != nil {
		return nil, err
	}
	return &types.Order{ID: ack.OrderID, ClientID: ack.OrderLinkID}, nil
}
