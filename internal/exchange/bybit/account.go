package bybit

import (
	"context"
	"fmt"

	"github.com/ducminhle1904/momentum-risk-bot/pkg/types"
)

// GetAccount reads the unified wallet. LastEquity is the first equity seen
// on the current UTC day since the API has no prior-close figure.
func (c *Client) GetAccount(ctx context.Context) (types.Account, error) {
	params := map[string]interface{}{"accountType": c.cfg.AccountType}
	result, err := c.api.NewUtaBybitServiceWithParams(params).GetAccountWallet(ctx)
	if err != nil {
		return types.Account{}, fmt.Errorf("failed to get account balance: %w", err)
	}
	acct, err := parseWallet(result)
	if err != nil {
		return types.Account{}, err
	}
	acct.LastEquity = c.sessionStartEquity(acct.Equity)
	return acct, nil
}

func parseWallet(response interface{}) (types.Account, error) {
	var wallet struct {
		List []struct {
			TotalEquity           string `json:"totalEquity"`
			TotalAvailableBalance string `json:"totalAvailableBalance"`
			AccountType           string `json:"accountType"`
		} `json:"list"`
	}
	if err := decode(response, "get wallet", &wallet); err != nil {
		return types.Account{}, err
	}
	if len(wallet.List) == 0 {
		return types.Account{}, fmt.Errorf("no account data found")
	}
	w := wallet.List[0]
	return types.Account{
		Equity:      parseFloat64(w.TotalEquity),
		BuyingPower: parseFloat64(w.TotalAvailableBalance),
	}, nil
}

// GetOpenPositions lists non-empty positions settled in the configured coin
func (c *Client) GetOpenPositions(ctx context.Context) ([]types.Position, error) {
	return c.positions(ctx, map[string]interface{}{
		"category":   c.cfg.Category,
		"settleCoin": c.cfg.SettleCoin,
	})
}

// GetPosition returns nil when symbol is flat
func (c *Client) GetPosition(ctx context.Context, symbol string) (*types.Position, error) {
	positions, err := c.positions(ctx, map[string]interface{}{
		"category": c.cfg.Category,
		"symbol":   c.venueSymbol(symbol),
	})
	if err != nil {
		return nil, err
	}
	if len(positions) == 0 {
		return nil, nil
	}
	return &positions[0], nil
}

func (c *Client) positions(ctx context.Context, params map[string]interface{}) ([]types.Position, error) {
	result, err := c.api.NewUtaBybitServiceWithParams(params).GetPositionList(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get positions: %w", err)
	}
	return c.parsePositions(result)
}

func (c *Client) parsePositions(response interface{}) ([]types.Position, error) {
	var list struct {
		List []struct {
			Symbol    string `json:"symbol"`
			Side      string `json:"side"`
			Size      string `json:"size"`
			AvgPrice  string `json:"avgPrice"`
			MarkPrice string `json:"markPrice"`
		} `json:"list"`
	}
	if err := decode(response, "get positions", &list); err != nil {
		return nil, err
	}

	out := make([]types.Position, 0, len(list.List))
	for _, p := range list.List {
		qty := parseFloat64(p.Size)
		if qty == 0 {
			continue
		}
		if p.Side == sideSell {
			qty = -qty
		}
		out = append(out, types.Position{
			Symbol:        c.localSymbol(p.Symbol),
			Qty:           qty,
			AvgEntryPrice: parseFloat64(p.AvgPrice),
			CurrentPrice:  parseFloat64(p.MarkPrice),
		})
	}
	return out, nil
}
