package exchange

import (
	"context"

	"github.com/ducminhle1904/momentum-risk-bot/pkg/types"
)

// Broker is the account, market data and order surface used by the bot.
// Bars are returned oldest first.
type Broker interface {
	Name() string

	GetAccount(ctx context.Context) (types.Account, error)
	GetOpenPositions(ctx context.Context) ([]types.Position, error)
	// GetPosition returns nil without an error when the symbol is flat.
	GetPosition(ctx context.Context, symbol string) (*types.Position, error)
	GetBars(ctx context.Context, symbol string, tf types.Timeframe, limit int) ([]types.OHLCV, error)

	SubmitBracketOrder(ctx context.Context, order types.BracketOrder) (*types.Order, error)
	ClosePosition(ctx context.Context, symbol string) (*types.Order, error)
	CancelAllOrders(ctx context.Context) error
}
