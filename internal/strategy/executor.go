package strategy

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/ducminhle1904/momentum-risk-bot/internal/correlation"
	boterrors "github.com/ducminhle1904/momentum-risk-bot/internal/errors"
	"github.com/ducminhle1904/momentum-risk-bot/internal/exchange"
	"github.com/ducminhle1904/momentum-risk-bot/internal/history"
	"github.com/ducminhle1904/momentum-risk-bot/internal/logger"
	"github.com/ducminhle1904/momentum-risk-bot/internal/monitoring"
	"github.com/ducminhle1904/momentum-risk-bot/internal/notifications"
	"github.com/ducminhle1904/momentum-risk-bot/internal/portfolio"
	"github.com/ducminhle1904/momentum-risk-bot/internal/risk"
	"github.com/ducminhle1904/momentum-risk-bot/internal/session"
	"github.com/ducminhle1904/momentum-risk-bot/internal/signal"
	"github.com/ducminhle1904/momentum-risk-bot/pkg/types"
)

// State is a step of the execution state machine
type State string

const (
	StateIdle            State = "IDLE"
	StateSignalEvaluated State = "SIGNAL_EVALUATED"
	StateLockHeld        State = "LOCK_HELD"
	StateGated           State = "GATED"
	StateSized           State = "SIZED"
	StateSubmitted       State = "SUBMITTED"
	StateOpen            State = "OPEN"
	StateAborted         State = "ABORTED"
	StateExitSignaled    State = "EXIT_SIGNALED"
	StateClosed          State = "CLOSED"
)

// Result reports where a signal ended up. Intent is nil unless an order was built.
type Result struct {
	State   State
	Trail   []State
	Intent  *TradeIntent
	Order   *types.Order
	Outcome *TradeOutcome
	Gate    risk.Gate
	Reason  string
}

func (r *Result) to(s State) {
	r.State = s
	r.Trail = append(r.Trail, s)
}

// Deps are the collaborators shared by every strategy
type Deps struct {
	Broker   exchange.Broker
	Risk     *risk.Manager
	Guard    *correlation.Guard
	Session  *session.Service
	Tracker  *portfolio.Tracker
	Notifier notifications.Notifier
	Logger   *logger.Logger
}

// profile holds the entry adjustments that differ between styles
type profile struct {
	style        session.Style
	stopMult     float64
	targetMult   float64
	sizeByDollar bool
}

// Executor runs the gating chain for entries and the feedback path for exits.
// It is safe for concurrent use. The lock table serializes work per symbol and
// the risk manager's entry slot serializes gating across symbols.
type Executor struct {
	broker   exchange.Broker
	risk     *risk.Manager
	guard    *correlation.Guard
	session  *session.Service
	tracker  *portfolio.Tracker
	notifier notifications.Notifier
	log      *logger.Logger
}

// NewExecutor wires the executor; a nil notifier or tracker is allowed.
func NewExecutor(d Deps) *Executor {
	log := d.Logger
	if log == nil {
		log = logger.Nop()
	}
	n := d.Notifier
	if n == nil {
		n = notifications.Nop{}
	}
	return &Executor{
		broker:   d.Broker,
		risk:     d.Risk,
		guard:    d.Guard,
		session:  d.Session,
		tracker:  d.Tracker,
		notifier: n,
		log:      log.With("component", "executor"),
	}
}

// execute acts on sig. Only fatal errors are returned; every other failure
// leaves the result ABORTED with the cause logged.
func (e *Executor) execute(ctx context.Context, sig Signal, p profile) (res Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			perr := boterrors.NewStrategyError(string(p.style), "Execute", fmt.Errorf("panic: %v", r)).
				WithContext("symbol", sig.Symbol).
				WithRetryable(false)
			e.log.LogError(sig.Symbol, perr)
			monitoring.RecordError("panic")
			res.to(StateAborted)
			res.Reason = perr.Error()
			err = nil
		}
	}()

	res.to(StateIdle)
	if !sig.Actionable() {
		return res, nil
	}
	res.to(StateSignalEvaluated)

	pos, err := e.broker.GetPosition(ctx, sig.Symbol)
	if err != nil {
		return e.abort(res, "GetPosition", err)
	}

	switch {
	case sig.Direction == signal.Buy && pos == nil:
		return e.enter(ctx, sig, p, res)
	case sig.Direction == signal.Sell && pos != nil:
		return e.exit(ctx, sig, p, *pos, res)
	default:
		res.to(StateIdle)
		return res, nil
	}
}

func (e *Executor) enter(ctx context.Context, sig Signal, p profile, res Result) (Result, error) {
	assetType := types.AssetType(sig.Symbol)
	quality := session.Unknown
	if e.session != nil {
		var skip bool
		skip, quality = e.session.ShouldSkip(assetType, p.style)
		if skip {
			return e.reject(res, risk.GateTimeOfDay, fmt.Sprintf("%s quality for %s", quality, assetType))
		}
	}

	cfg := e.risk.Config()
	lease, ok := e.risk.AcquireLock(sig.Symbol, string(p.style), cfg.LockLease)
	if !ok {
		return e.reject(res, risk.GateLock, sig.Symbol+" locked by another strategy")
	}
	defer e.risk.ReleaseLock(lease)
	res.to(StateLockHeld)

	slot, err := e.risk.BeginEntry(ctx)
	if err != nil {
		return e.abort(res, "BeginEntry", err)
	}
	defer slot.Release()

	positions, err := e.risk.OpenPositions(ctx)
	if err != nil {
		return e.abort(res, "OpenPositions", err)
	}
	open := make([]string, 0, len(positions))
	for _, pp := range positions {
		open = append(open, pp.Symbol)
	}
	if e.guard != nil {
		if d := e.guard.CanAddPosition(sig.Symbol, open); !d.Allowed {
			return e.reject(res, risk.GateCorrelation, d.Reason)
		}
	}

	verdict, err := e.risk.CanOpenPosition(ctx, cfg.EstimatedNewHeat)
	if err != nil {
		return e.abort(res, "CanOpenPosition", err)
	}
	if !verdict.Allowed {
		return e.reject(res, verdict.Gate, verdict.Reason)
	}
	res.to(StateGated)

	dollars, err := e.risk.PositionSize(ctx)
	if err != nil {
		return e.abort(res, "PositionSize", err)
	}
	mult := quality.Multiplier()
	var qty int
	if p.sizeByDollar {
		qty = risk.ShareQuantity(dollars*mult, sig.Price)
	} else {
		qty = int(math.Floor(float64(risk.ShareQuantity(dollars, sig.Price)) * mult))
	}
	if qty < 1 {
		return e.reject(res, risk.GateSize, fmt.Sprintf("position size too small for %s ($%.2f at $%.2f)", sig.Symbol, dollars, sig.Price))
	}
	res.to(StateSized)

	stops := e.risk.StopLevels(sig.Price, sig.Bars)
	if p.stopMult != 1 || p.targetMult != 1 {
		stops = stops.Scaled(p.stopMult, p.targetMult, sig.Price)
	}

	intent := &TradeIntent{
		ID:              history.NewID(),
		Symbol:          sig.Symbol,
		Side:            types.SideBuy,
		Qty:             float64(qty),
		EntryPriceHint:  sig.Price,
		StopLossPrice:   stops.StopLoss,
		TakeProfitPrice: stops.TakeProfit,
		Strategy:        p.style,
	}
	res.Intent = intent
	res.to(StateSubmitted)

	order, err := e.broker.SubmitBracketOrder(ctx, types.BracketOrder{
		ClientID:   intent.ID,
		Symbol:     intent.Symbol,
		Side:       intent.Side,
		Qty:        intent.Qty,
		PriceHint:  intent.EntryPriceHint,
		StopLoss:   intent.StopLossPrice,
		TakeProfit: intent.TakeProfitPrice,
	})
	if err != nil {
		res.Intent = nil
		return e.abort(res, "SubmitBracketOrder", err)
	}
	res.Order = order
	slot.Submitted(types.Position{Symbol: sig.Symbol, Qty: intent.Qty, AvgEntryPrice: sig.Price, CurrentPrice: sig.Price})
	slot.Release()
	res.to(StateOpen)

	e.log.Trade("%s BUY %s x%d @ $%.2f SL $%.2f (%.2f%%) TP $%.2f (%.2f%%) quality %s",
		p.style, sig.Symbol, qty, sig.Price, stops.StopLoss, stops.StopLossPercent,
		stops.TakeProfit, stops.TakeProfitPercent, quality)

	if e.tracker != nil {
		e.tracker.RecordEntry(sig.Symbol, string(p.style), sig.Price, intent.Qty)
	}
	e.risk.RecordTrade(risk.TradeRecord{
		Symbol: sig.Symbol, Side: types.SideBuy, Qty: intent.Qty, Price: sig.Price, Strategy: string(p.style),
	})
	monitoring.RecordTrade(sig.Symbol, string(types.SideBuy), string(p.style), intent.Qty*sig.Price)
	e.notify(ctx, notifications.TradeEvent{
		Action:     "BUY",
		Symbol:     sig.Symbol,
		Qty:        intent.Qty,
		Type:       "bracket",
		StopLoss:   stops.StopLoss,
		TakeProfit: stops.TakeProfit,
		Strategy:   string(p.style),
	})
	return res, nil
}

func (e *Executor) exit(ctx context.Context, sig Signal, p profile, pos types.Position, res Result) (Result, error) {
	res.to(StateExitSignaled)

	qty := math.Abs(pos.Qty)
	isWin := sig.Price > pos.AvgEntryPrice
	e.risk.RecordTradeResult(ctx, isWin)

	order, err := e.broker.ClosePosition(ctx, sig.Symbol)
	if err != nil {
		return e.abort(res, "ClosePosition", err)
	}
	res.Order = order

	pl := (sig.Price - pos.AvgEntryPrice) * qty
	if e.tracker != nil {
		if closed, ok := e.tracker.RecordClose(ctx, sig.Symbol, sig.Price, qty); ok {
			pl = closed.PL
		}
	}
	res.Outcome = &TradeOutcome{Symbol: sig.Symbol, IsWin: isWin, RealizedPL: pl}
	res.to(StateClosed)

	outcome := "LOSS"
	if isWin {
		outcome = "WIN"
	}
	e.log.Trade("%s closed %s: %s (entry $%.2f, exit $%.2f, P/L $%.2f)",
		p.style, sig.Symbol, outcome, pos.AvgEntryPrice, sig.Price, pl)

	e.risk.RecordTrade(risk.TradeRecord{
		Symbol: sig.Symbol, Side: types.SideSell, Qty: qty, Price: sig.Price, PL: pl, Strategy: string(p.style),
	})
	monitoring.RecordTrade(sig.Symbol, string(types.SideSell), string(p.style), qty*sig.Price)
	e.notify(ctx, notifications.TradeEvent{
		Action:   "SELL",
		Symbol:   sig.Symbol,
		Qty:      qty,
		Type:     "market",
		Strategy: string(p.style),
	})
	return res, nil
}

func (e *Executor) reject(res Result, gate risk.Gate, reason string) (Result, error) {
	e.log.Info("entry blocked by %s: %s", gate, reason)
	monitoring.RecordRejection(string(gate))
	res.Gate = gate
	res.Reason = reason
	res.to(StateAborted)
	return res, nil
}

func (e *Executor) abort(res Result, op string, err error) (Result, error) {
	be := boterrors.CategorizeError(err, "executor", op)
	monitoring.RecordError(string(be.Category))
	res.Reason = err.Error()
	res.to(StateAborted)
	switch be.GetRecoveryAction() {
	case boterrors.RecoveryActionStop:
		return res, be
	case boterrors.RecoveryActionSkip:
		e.log.LogWarning(op, "skipping: %v", err)
	default:
		// the next analysis pass is the retry
		e.log.LogError(op, err)
	}
	return res, nil
}

func (e *Executor) notify(ctx context.Context, ev notifications.TradeEvent) {
	nctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := e.notifier.Trade(nctx, ev); err != nil {
		e.log.LogWarning("notify", "trade notification failed: %v", err)
	}
}
