package backtest

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/ducminhle1904/momentum-risk-bot/internal/correlation"
	"github.com/ducminhle1904/momentum-risk-bot/internal/exchange"
	"github.com/ducminhle1904/momentum-risk-bot/internal/logger"
	"github.com/ducminhle1904/momentum-risk-bot/internal/portfolio"
	"github.com/ducminhle1904/momentum-risk-bot/internal/risk"
	"github.com/ducminhle1904/momentum-risk-bot/internal/session"
	"github.com/ducminhle1904/momentum-risk-bot/internal/signal"
	"github.com/ducminhle1904/momentum-risk-bot/internal/strategy"
	"github.com/ducminhle1904/momentum-risk-bot/pkg/types"
)

// Config tunes a replay
type Config struct {
	InitialBalance float64  `yaml:"initial_balance" default:"10000" validate:"gt=0"`
	Warmup         int      `yaml:"warmup" default:"50" validate:"gte=1"`
	Bars           int      `yaml:"bars" default:"1000" validate:"gte=1"`
	Workers        int      `yaml:"workers" validate:"gte=0"`
	DataDir        string   `yaml:"data_dir"`
	Symbols        []string `yaml:"symbols"`
}

// DefaultConfig returns the replay settings used when nothing is configured
func DefaultConfig() Config {
	return Config{
		InitialBalance: 10000,
		Warmup:         50,
		Bars:           1000,
		Symbols:        []string{"BTCUSD", "ETHUSD", "SPY", "QQQ", "TSLA"},
	}
}

// ExitReason records what closed a simulated trade
type ExitReason string

const (
	ExitStopLoss   ExitReason = "stop_loss"
	ExitTakeProfit ExitReason = "take_profit"
	ExitSignal     ExitReason = "signal"
	ExitEndOfData  ExitReason = "end_of_data"
)

// Trade is one simulated round trip
type Trade struct {
	Symbol     string
	Strategy   string
	EntryTime  time.Time
	ExitTime   time.Time
	EntryPrice float64
	ExitPrice  float64
	Qty        float64
	PnL        float64
	Exit       ExitReason
}

// Result is the outcome of replaying one strategy over one symbol
type Result struct {
	Symbol   string
	Strategy string
	Bars     int
	Signals  int
	Rejected map[risk.Gate]int
	Trades   []Trade
	// Skipped is set when the replay never started
	Skipped string
}

// Builder constructs a strategy bound to a replay's executor
type Builder struct {
	Style session.Style
	New   func(exec *strategy.Executor, bars exchange.BarSource, log *logger.Logger) strategy.Strategy
}

// Builders returns one builder per enabled style in cfg
func Builders(cfg strategy.Config) []Builder {
	var out []Builder
	if cfg.Scalping.Enabled {
		sc := cfg.Scalping
		out = append(out, Builder{Style: session.StyleScalping, New: func(e *strategy.Executor, b exchange.BarSource, l *logger.Logger) strategy.Strategy {
			return strategy.NewScalping(e, b, sc, l)
		}})
	}
	if cfg.Day.Enabled {
		dc := cfg.Day
		out = append(out, Builder{Style: session.StyleDay, New: func(e *strategy.Executor, b exchange.BarSource, l *logger.Logger) strategy.Strategy {
			return strategy.NewDayTrading(e, b, dc, l)
		}})
	}
	if cfg.Swing.Enabled {
		wc := cfg.Swing
		out = append(out, Builder{Style: session.StyleSwing, New: func(e *strategy.Executor, b exchange.BarSource, l *logger.Logger) strategy.Strategy {
			return strategy.NewSwingTrading(e, b, wc, l)
		}})
	}
	return out
}

// Engine replays strategies over historical bars. Every replay gets its own
// paper account, risk manager and executor so entries pass the same gates
// they pass live.
type Engine struct {
	cfg     Config
	risk    risk.Config
	session session.Config
	guard   *correlation.Guard
	log     *logger.Logger
}

// NewEngine builds an engine; a nil guard disables the correlation gate.
func NewEngine(cfg Config, rc risk.Config, sc session.Config, guard *correlation.Guard, log *logger.Logger) *Engine {
	if log == nil {
		log = logger.Nop()
	}
	if cfg.Warmup < 1 {
		cfg.Warmup = 1
	}
	return &Engine{cfg: cfg, risk: rc, session: sc, guard: guard, log: log.With("component", "backtest")}
}

func (e *Engine) Config() Config { return e.cfg }

type openTrade struct {
	entryTime time.Time
	entry     float64
	qty       float64
	stop      float64
	target    float64
}

// exitOn checks bar against the bracket. A bar that touches both legs is
// treated as a stop; a gap through a leg fills at the open.
func (o *openTrade) exitOn(bar types.OHLCV) (float64, ExitReason, bool) {
	switch {
	case o.stop > 0 && bar.Low <= o.stop:
		return math.Min(o.stop, bar.Open), ExitStopLoss, true
	case o.target > 0 && bar.High >= o.target:
		return math.Max(o.target, bar.Open), ExitTakeProfit, true
	}
	return 0, "", false
}

// replay is the isolated trading stack of one Run
type replay struct {
	feed    *replayFeed
	paper   *exchange.PaperBroker
	risk    *risk.Manager
	session *session.Service
	strat   strategy.Strategy
}

func (e *Engine) newReplay(b Builder, series Series) (*replay, error) {
	feed := newReplayFeed(series)
	paper := exchange.NewPaperBroker(e.cfg.InitialBalance)
	paper.UseFeed(feed)

	sess, err := session.New(e.session, feed.Now)
	if err != nil {
		return nil, err
	}
	log := e.log.With("strategy", string(b.Style))
	rm := risk.NewManager(e.risk, paper, log, risk.WithClock(feed.Now))
	exec := strategy.NewExecutor(strategy.Deps{
		Broker:  paper,
		Risk:    rm,
		Guard:   e.guard,
		Session: sess,
		Tracker: portfolio.NewTracker(nil, log),
		Logger:  log,
	})
	return &replay{feed: feed, paper: paper, risk: rm, session: sess, strat: b.New(exec, paper, log)}, nil
}

// Run replays b over the primary series of symbol bar by bar. Entries go
// through the executor; open positions exit when a later bar crosses the
// stop or target, on a SELL signal, or at the end of the data.
func (e *Engine) Run(ctx context.Context, b Builder, symbol string, series Series) (*Result, error) {
	r, err := e.newReplay(b, series)
	if err != nil {
		return nil, err
	}
	tf := r.strat.Timeframe()
	bars := series.Bars(symbol, tf)
	res := &Result{Symbol: symbol, Strategy: string(b.Style), Bars: len(bars), Rejected: make(map[risk.Gate]int)}
	if len(bars) <= e.cfg.Warmup {
		res.Skipped = fmt.Sprintf("not enough %s data (%d bars, need more than %d)", tf, len(bars), e.cfg.Warmup)
		return res, nil
	}

	r.feed.advance(bars[e.cfg.Warmup-1].Timestamp.Add(tf.Duration()))
	if err := r.risk.Initialize(ctx); err != nil {
		return nil, err
	}
	day := r.session.Today()

	var open *openTrade
	for i := e.cfg.Warmup; i < len(bars); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		bar := bars[i]
		r.feed.advance(bar.Timestamp.Add(tf.Duration()))
		if today := r.session.Today(); today != day {
			day = today
			if err := r.risk.ResetDailyCounters(ctx); err != nil {
				return nil, err
			}
		}

		if open != nil {
			if price, reason, hit := open.exitOn(bar); hit {
				t, err := e.close(ctx, r, symbol, open, price, reason)
				if err != nil {
					return nil, err
				}
				res.Trades = append(res.Trades, t)
				open = nil
			}
		}

		window, err := r.paper.GetBars(ctx, symbol, tf, r.strat.Lookback())
		if err != nil {
			return nil, err
		}
		sig := r.strat.Analyze(ctx, symbol, window)
		if !sig.Actionable() {
			continue
		}
		sig.At = r.feed.Now()
		res.Signals++

		switch {
		case sig.Direction == signal.Buy && open == nil:
			out, err := r.strat.Execute(ctx, sig)
			if err != nil {
				return nil, err
			}
			if out.State != strategy.StateOpen || out.Intent == nil {
				if out.Gate != "" {
					res.Rejected[out.Gate]++
				}
				continue
			}
			open = &openTrade{
				entryTime: sig.At,
				entry:     sig.Price,
				qty:       out.Intent.Qty,
				stop:      out.Intent.StopLossPrice,
				target:    out.Intent.TakeProfitPrice,
			}
		case sig.Direction == signal.Sell && open != nil:
			t, err := e.close(ctx, r, symbol, open, sig.Price, ExitSignal)
			if err != nil {
				return nil, err
			}
			res.Trades = append(res.Trades, t)
			open = nil
		}
	}

	if open != nil {
		t, err := e.close(ctx, r, symbol, open, bars[len(bars)-1].Close, ExitEndOfData)
		if err != nil {
			return nil, err
		}
		res.Trades = append(res.Trades, t)
	}
	e.log.Debug("%s %s: %d bars, %d signals, %d trades", b.Style, symbol, len(bars), res.Signals, len(res.Trades))
	return res, nil
}

// close marks the paper position at price and exits it through the
// executor so the drawdown and P/L feedback paths run.
func (e *Engine) close(ctx context.Context, r *replay, symbol string, o *openTrade, price float64, reason ExitReason) (Trade, error) {
	pos, err := r.paper.GetPosition(ctx, symbol)
	if err != nil {
		return Trade{}, err
	}
	if pos == nil {
		return Trade{}, fmt.Errorf("no paper position for %s", symbol)
	}
	pos.CurrentPrice = price
	r.paper.SetPosition(*pos)

	out, err := r.strat.Execute(ctx, strategy.Signal{
		Symbol:    symbol,
		Strategy:  r.strat.Style(),
		Direction: signal.Sell,
		Strength:  100,
		Price:     price,
		Reasoning: string(reason),
		At:        r.feed.Now(),
	})
	if err != nil {
		return Trade{}, err
	}
	if out.State != strategy.StateClosed || out.Outcome == nil {
		return Trade{}, fmt.Errorf("exit of %s ended %s: %s", symbol, out.State, out.Reason)
	}
	return Trade{
		Symbol:     symbol,
		Strategy:   string(r.strat.Style()),
		EntryTime:  o.entryTime,
		ExitTime:   r.feed.Now(),
		EntryPrice: o.entry,
		ExitPrice:  price,
		Qty:        o.qty,
		PnL:        out.Outcome.RealizedPL,
		Exit:       reason,
	}, nil
}
