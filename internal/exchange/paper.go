package exchange

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	boterrors "github.com/ducminhle1904/momentum-risk-bot/internal/errors"
	"github.com/ducminhle1904/momentum-risk-bot/pkg/types"
)

// Op names a broker call for failure injection on the paper broker.
type Op string

const (
	OpAccount   Op = "account"
	OpPositions Op = "positions"
	OpBars      Op = "bars"
	OpSubmit    Op = "submit"
	OpClose     Op = "close"
	OpCancel    Op = "cancel"
)

// PaperBroker is an in-memory broker. Bracket orders fill immediately at the
// price hint and closes fill at the position's current price.
type PaperBroker struct {
	mu        sync.Mutex
	account   types.Account
	positions map[string]types.Position
	bars      map[string]map[types.Timeframe][]types.OHLCV
	orders    []types.Order
	cancels   int
	failures  map[Op]error
	feed      BarSource
	now       func() time.Time
}

// BarSource supplies market data to the paper broker.
type BarSource interface {
	GetBars(ctx context.Context, symbol string, tf types.Timeframe, limit int) ([]types.OHLCV, error)
}

// NewPaperBroker creates a paper account funded with equity.
func NewPaperBroker(equity float64) *PaperBroker {
	return &PaperBroker{
		account: types.Account{
			Equity:      equity,
			LastEquity:  equity,
			BuyingPower: equity,
		},
		positions: make(map[string]types.Position),
		bars:      make(map[string]map[types.Timeframe][]types.OHLCV),
		failures:  make(map[Op]error),
		now:       time.Now,
	}
}

func (p *PaperBroker) Name() string { return "paper" }

// UseFeed reads bars from src instead of the installed series. Open
// positions are marked to the last close of every fetched series.
func (p *PaperBroker) UseFeed(src BarSource) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.feed = src
}

// SetAccount replaces the account snapshot.
func (p *PaperBroker) SetAccount(a types.Account) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.account = a
}

// SetPosition opens or replaces a position.
func (p *PaperBroker) SetPosition(pos types.Position) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.positions[pos.Symbol] = pos
}

// SetBars installs the series returned for symbol and timeframe. The last
// close also becomes the current price of an open position.
func (p *PaperBroker) SetBars(symbol string, tf types.Timeframe, bars []types.OHLCV) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bars[symbol] == nil {
		p.bars[symbol] = make(map[types.Timeframe][]types.OHLCV)
	}
	p.bars[symbol][tf] = append([]types.OHLCV(nil), bars...)
	p.markLocked(symbol, bars)
}

func (p *PaperBroker) mark(symbol string, bars []types.OHLCV) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.markLocked(symbol, bars)
}

func (p *PaperBroker) markLocked(symbol string, bars []types.OHLCV) {
	if pos, ok := p.positions[symbol]; ok && len(bars) > 0 {
		pos.CurrentPrice = bars[len(bars)-1].Close
		p.positions[symbol] = pos
	}
}

// FailOn makes every call of op return err until cleared with a nil err.
func (p *PaperBroker) FailOn(op Op, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err == nil {
		delete(p.failures, op)
		return
	}
	p.failures[op] = err
}

// Orders returns every order accepted so far.
func (p *PaperBroker) Orders() []types.Order {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]types.Order(nil), p.orders...)
}

// CancelCount returns how many times CancelAllOrders succeeded.
func (p *PaperBroker) CancelCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancels
}

func (p *PaperBroker) GetAccount(ctx context.Context) (types.Account, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.failure(OpAccount); err != nil {
		return types.Account{}, err
	}
	return p.account, nil
}

func (p *PaperBroker) GetOpenPositions(ctx context.Context) ([]types.Position, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.failure(OpPositions); err != nil {
		return nil, err
	}
	out := make([]types.Position, 0, len(p.positions))
	for _, pos := range p.positions {
		out = append(out, pos)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out, nil
}

func (p *PaperBroker) GetPosition(ctx context.Context, symbol string) (*types.Position, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.failure(OpPositions); err != nil {
		return nil, err
	}
	pos, ok := p.positions[symbol]
	if !ok {
		return nil, nil
	}
	return &pos, nil
}

func (p *PaperBroker) GetBars(ctx context.Context, symbol string, tf types.Timeframe, limit int) ([]types.OHLCV, error) {
	p.mu.Lock()
	feed, err := p.feed, p.failure(OpBars)
	p.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if feed != nil {
		bars, err := feed.GetBars(ctx, symbol, tf, limit)
		if err != nil {
			return nil, err
		}
		p.mark(symbol, bars)
		return bars, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	bars := p.bars[symbol][tf]
	if limit > 0 && len(bars) > limit {
		bars = bars[len(bars)-limit:]
	}
	return append([]types.OHLCV(nil), bars...), nil
}

func (p *PaperBroker) SubmitBracketOrder(ctx context.Context, o types.BracketOrder) (*types.Order, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.failure(OpSubmit); err != nil {
		return nil, err
	}
	if o.Qty <= 0 {
		return nil, boterrors.NewValidationError("paper", "SubmitBracketOrder", fmt.Sprintf("invalid quantity %v for %s", o.Qty, o.Symbol))
	}
	if o.PriceHint <= 0 {
		return nil, boterrors.NewValidationError("paper", "SubmitBracketOrder", "paper fill needs a price hint for "+o.Symbol)
	}
	cost := o.Qty * o.PriceHint
	if o.Side == types.SideBuy && cost > p.account.BuyingPower {
		return nil, fmt.Errorf("insufficient balance: need %.2f, have %.2f", cost, p.account.BuyingPower)
	}

	pos := p.positions[o.Symbol]
	qty := o.Qty
	if o.Side == types.SideSell {
		qty = -qty
	}
	if newQty := pos.Qty + qty; newQty != 0 {
		pos.AvgEntryPrice = (pos.AvgEntryPrice*pos.Qty + o.PriceHint*qty) / newQty
		pos.Qty = newQty
		pos.Symbol = o.Symbol
		pos.CurrentPrice = o.PriceHint
		p.positions[o.Symbol] = pos
	} else {
		delete(p.positions, o.Symbol)
	}
	p.account.BuyingPower -= cost

	return p.record(types.Order{
		ClientID:   o.ClientID,
		Symbol:     o.Symbol,
		Side:       o.Side,
		Qty:        o.Qty,
		StopLoss:   o.StopLoss,
		TakeProfit: o.TakeProfit,
	}), nil
}

func (p *PaperBroker) ClosePosition(ctx context.Context, symbol string) (*types.Order, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.failure(OpClose); err != nil {
		return nil, err
	}
	pos, ok := p.positions[symbol]
	if !ok {
		return nil, fmt.Errorf("no open position for %s", symbol)
	}
	delete(p.positions, symbol)

	p.account.Equity += pos.UnrealizedPL()
	p.account.BuyingPower += pos.Qty * pos.CurrentPrice

	side, qty := types.SideSell, pos.Qty
	if qty < 0 {
		side, qty = types.SideBuy, -qty
	}
	return p.record(types.Order{Symbol: symbol, Side: side, Qty: qty}), nil
}

func (p *PaperBroker) CancelAllOrders(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.failure(OpCancel); err != nil {
		return err
	}
	p.cancels++
	return nil
}

func (p *PaperBroker) failure(op Op) error {
	return p.failures[op]
}

// record must be called with mu held.
func (p *PaperBroker) record(o types.Order) *types.Order {
	o.ID = uuid.NewString()
	o.SubmittedAt = p.now()
	p.orders = append(p.orders, o)
	return &o
}
