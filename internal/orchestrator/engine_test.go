package orchestrator

import (
	"bytes"
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	boterrors "github.com/ducminhle1904/momentum-risk-bot/internal/errors"
	"github.com/ducminhle1904/momentum-risk-bot/internal/exchange"
	"github.com/ducminhle1904/momentum-risk-bot/internal/logger"
	"github.com/ducminhle1904/momentum-risk-bot/internal/monitoring"
	"github.com/ducminhle1904/momentum-risk-bot/internal/notifications"
	"github.com/ducminhle1904/momentum-risk-bot/internal/portfolio"
	"github.com/ducminhle1904/momentum-risk-bot/internal/risk"
	"github.com/ducminhle1904/momentum-risk-bot/internal/session"
	"github.com/ducminhle1904/momentum-risk-bot/internal/signal"
	"github.com/ducminhle1904/momentum-risk-bot/internal/strategy"
	"github.com/ducminhle1904/momentum-risk-bot/pkg/types"
)

// Wednesday noon in New York: both markets open
var noonNY = time.Date(2025, 6, 4, 16, 0, 0, 0, time.UTC)

// Wednesday 21:00 in New York: stocks closed
var eveningNY = time.Date(2025, 6, 5, 1, 0, 0, 0, time.UTC)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

// inflight flags a symbol being analyzed by two strategies at once
type inflight struct {
	mu      sync.Mutex
	running map[string]int
	overlap bool
}

func (f *inflight) enter(symbol string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.running[symbol]++
	if f.running[symbol] > 1 {
		f.overlap = true
	}
}

func (f *inflight) leave(symbol string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.running[symbol]--
}

type fakeStrategy struct {
	style   session.Style
	signals map[string]strategy.Signal
	panicOn string
	execErr error
	guard   *inflight
	delay   time.Duration

	mu       sync.Mutex
	executed []string
}

func (f *fakeStrategy) Style() session.Style       { return f.style }
func (f *fakeStrategy) Timeframe() types.Timeframe { return types.Timeframe1Min }
func (f *fakeStrategy) Lookback() int              { return 100 }

func (f *fakeStrategy) Analyze(ctx context.Context, symbol string, bars []types.OHLCV) strategy.Signal {
	if f.guard != nil {
		f.guard.enter(symbol)
		defer f.guard.leave(symbol)
	}
	if symbol == f.panicOn {
		panic("indicator blew up")
	}
	time.Sleep(f.delay)
	sig, ok := f.signals[symbol]
	if !ok {
		return strategy.Signal{Symbol: symbol, Strategy: f.style, Direction: signal.Neutral}
	}
	return sig
}

func (f *fakeStrategy) Execute(ctx context.Context, sig strategy.Signal) (strategy.Result, error) {
	f.mu.Lock()
	f.executed = append(f.executed, sig.Symbol)
	f.mu.Unlock()
	if f.execErr != nil {
		return strategy.Result{State: strategy.StateAborted}, f.execErr
	}
	return strategy.Result{State: strategy.StateOpen}, nil
}

func (f *fakeStrategy) Executed() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := append([]string(nil), f.executed...)
	sort.Strings(out)
	return out
}

func buySignal(symbol string, strength float64) strategy.Signal {
	return strategy.Signal{Symbol: symbol, Strategy: session.StyleDay, Direction: signal.Buy, Strength: strength, Price: 100}
}

type recordingNotifier struct {
	notifications.Nop
	mu        sync.Mutex
	rotations []notifications.RotationInfo
	summaries []notifications.DailySummary
	startups  int
	shutdowns []string
}

func (r *recordingNotifier) Rotation(ctx context.Context, info notifications.RotationInfo) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rotations = append(r.rotations, info)
	return nil
}

func (r *recordingNotifier) DailySummary(ctx context.Context, s notifications.DailySummary) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.summaries = append(r.summaries, s)
	return nil
}

func (r *recordingNotifier) Startup(ctx context.Context, info notifications.StartupInfo) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.startups++
	return nil
}

func (r *recordingNotifier) Shutdown(ctx context.Context, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.shutdowns = append(r.shutdowns, reason)
	return errors.New("webhook down")
}

type engineFixture struct {
	clock    *clock
	broker   *exchange.PaperBroker
	risk     *risk.Manager
	tracker  *portfolio.Tracker
	notifier *recordingNotifier
	health   *monitoring.HealthChecker
	status   *bytes.Buffer
	engine   *Engine
}

func newEngineFixture(t *testing.T, at time.Time, u Universe, strategies ...strategy.Strategy) *engineFixture {
	t.Helper()
	c := &clock{t: at}
	broker := exchange.NewPaperBroker(100000)
	for _, sym := range u.All() {
		broker.SetBars(sym, types.Timeframe1Min, lineBars(100, 100, 0.1, time.Minute))
	}
	rm := risk.NewManager(risk.DefaultConfig(), broker, logger.Nop(), risk.WithClock(c.Now))
	sess, err := session.New(session.Config{Timezone: "America/New_York", CryptoEnabled: true, Crypto24x7: true, StocksMarketHoursOnly: true}, c.Now)
	require.NoError(t, err)

	f := &engineFixture{
		clock:    c,
		broker:   broker,
		risk:     rm,
		tracker:  portfolio.NewTracker(nil, logger.Nop()),
		notifier: &recordingNotifier{},
		health:   monitoring.NewHealthChecker(time.Minute),
		status:   &bytes.Buffer{},
	}
	cfg := DefaultConfig()
	cfg.Workers = 3
	f.engine = New(cfg, u, Deps{
		Broker:     broker,
		Risk:       rm,
		Session:    sess,
		Tracker:    f.tracker,
		Strategies: strategies,
		Notifier:   f.notifier,
		Health:     f.health,
		Status:     f.status,
		Mode:       "PAPER TRADING",
	})
	f.engine.now = c.Now
	return f
}

func mixedUniverse() Universe {
	return Universe{Crypto: []string{"BTCUSD", "ETHUSD"}, Stocks: []string{"AAPL", "MSFT"}}
}

func TestEngine_AnalyzeOnceDispatch(t *testing.T) {
	s := &fakeStrategy{style: session.StyleDay, signals: map[string]strategy.Signal{
		"BTCUSD": buySignal("BTCUSD", 80),
		"ETHUSD": buySignal("ETHUSD", 69.9),
		"AAPL":   buySignal("AAPL", 70),
		"MSFT":   {Symbol: "MSFT", Direction: signal.Buy, Strength: 90},
	}}
	f := newEngineFixture(t, noonNY, mixedUniverse(), s)

	require.NoError(t, f.engine.AnalyzeOnce(context.Background()))
	// MSFT has no price so it is never dispatched
	assert.Equal(t, []string{"AAPL", "BTCUSD"}, s.Executed())

	st, _ := f.health.Status()
	assert.False(t, st.LastCycle.IsZero())
}

func TestEngine_TradableFollowsMarketHours(t *testing.T) {
	f := newEngineFixture(t, eveningNY, mixedUniverse())
	assert.Equal(t, []string{"BTCUSD", "ETHUSD"}, f.engine.Tradable())

	f.clock.Set(noonNY)
	assert.Equal(t, []string{"BTCUSD", "ETHUSD", "AAPL", "MSFT"}, f.engine.Tradable())

	f.engine.mu.Lock()
	f.engine.active = []string{"MSFT", "ETHUSD"}
	f.engine.mu.Unlock()
	assert.Equal(t, []string{"MSFT", "ETHUSD"}, f.engine.Tradable())
}

func TestEngine_FailuresStayPerSymbol(t *testing.T) {
	tests := []struct {
		name     string
		panicOn  string
		execErr  error
		wantErr  bool
		executed []string
	}{
		{name: "panic is recovered", panicOn: "ETHUSD", executed: []string{"AAPL", "BTCUSD", "MSFT"}},
		{name: "execution error is logged", execErr: errors.New("broker timeout"), executed: []string{"AAPL", "BTCUSD", "ETHUSD", "MSFT"}},
		{name: "fatal error propagates", execErr: boterrors.NewFatalError("risk", "CanOpenPosition", "not initialized"), wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			signals := map[string]strategy.Signal{}
			for _, sym := range mixedUniverse().All() {
				signals[sym] = buySignal(sym, 90)
			}
			s := &fakeStrategy{style: session.StyleDay, signals: signals, panicOn: tt.panicOn, execErr: tt.execErr}
			f := newEngineFixture(t, noonNY, mixedUniverse(), s)

			err := f.engine.AnalyzeOnce(context.Background())
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, boterrors.IsFatal(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.executed, s.Executed())
		})
	}
}

func TestEngine_BarFailureSkipsStrategy(t *testing.T) {
	s := &fakeStrategy{style: session.StyleDay, signals: map[string]strategy.Signal{"BTCUSD": buySignal("BTCUSD", 90)}}
	f := newEngineFixture(t, noonNY, mixedUniverse(), s)
	f.broker.FailOn(exchange.OpBars, errors.New("rate limited"))

	require.NoError(t, f.engine.AnalyzeOnce(context.Background()))
	assert.Empty(t, s.Executed())
	st, _ := f.health.Status()
	assert.NotEmpty(t, st.Errors)
}

func TestEngine_SymbolNeverAnalyzedConcurrently(t *testing.T) {
	guard := &inflight{running: map[string]int{}}
	var strategies []strategy.Strategy
	for _, style := range []session.Style{session.StyleScalping, session.StyleDay, session.StyleSwing} {
		strategies = append(strategies, &fakeStrategy{style: style, guard: guard, delay: 2 * time.Millisecond})
	}
	f := newEngineFixture(t, noonNY, mixedUniverse(), strategies...)

	for i := 0; i < 3; i++ {
		require.NoError(t, f.engine.AnalyzeOnce(context.Background()))
	}
	assert.False(t, guard.overlap)
}

func TestEngine_Rotate(t *testing.T) {
	u := Universe{Crypto: []string{"BTCUSD", "ETHUSD"}, Stocks: []string{"AAPL", "TSLA"}}
	f := newEngineFixture(t, noonNY, u)
	rising(f.broker, "ETHUSD")
	rising(f.broker, "AAPL")
	falling(f.broker, "TSLA")

	f.engine.Rotate(context.Background())

	assert.Equal(t, []string{"ETHUSD", "AAPL", "TSLA"}, f.engine.Active())
	sent := f.engine.Sentiment()
	assert.Equal(t, 100.0, sent.Crypto)
	assert.Equal(t, VeryBullish, sent.CryptoLabel)
	assert.Equal(t, risk.SentimentMultiplier(sent.Overall), f.risk.State().SentimentMultiplier)

	require.Len(t, f.notifier.rotations, 1)
	rot := f.notifier.rotations[0]
	assert.Equal(t, []string{"ETHUSD", "AAPL", "TSLA"}, rot.ActiveAssets)
	assert.Equal(t, []string{"ETHUSD"}, rot.TopCrypto)
	assert.Equal(t, []string{"AAPL", "TSLA"}, rot.TopStocks)
}

func TestEngine_RotateWithNothingScoredUsesUniverse(t *testing.T) {
	f := newEngineFixture(t, noonNY, mixedUniverse())
	f.engine.Rotate(context.Background())
	assert.Empty(t, f.engine.Active())
	assert.Equal(t, mixedUniverse().All(), f.engine.Tradable())
}

func TestEngine_DailyRollover(t *testing.T) {
	f := newEngineFixture(t, noonNY, mixedUniverse())
	ctx := context.Background()
	require.NoError(t, f.risk.Initialize(ctx))

	f.tracker.RecordEntry("AAPL", "day", 100, 10)
	_, ok := f.tracker.RecordClose(ctx, "AAPL", 110, 10)
	require.True(t, ok)
	f.risk.RecordTradeResult(ctx, false)
	f.risk.RecordTradeResult(ctx, false)
	require.Equal(t, 2, f.risk.State().ConsecutiveLosses)

	f.engine.mu.Lock()
	f.engine.lastReset = "2025-06-04"
	f.engine.mu.Unlock()

	f.engine.Refresh(ctx)
	assert.Empty(t, f.notifier.summaries, "same session date")

	// 00:30 in New York on Thursday
	f.clock.Set(time.Date(2025, 6, 5, 4, 30, 0, 0, time.UTC))
	f.engine.Refresh(ctx)

	require.Len(t, f.notifier.summaries, 1)
	sum := f.notifier.summaries[0]
	assert.Equal(t, 1, sum.TotalTrades)
	assert.Equal(t, 100.0, sum.TotalPL)
	require.NotNil(t, sum.TopWinner)
	assert.Equal(t, "AAPL", sum.TopWinner.Symbol)
	assert.Equal(t, 100000.0, sum.StartingEquity)

	assert.Zero(t, f.risk.State().ConsecutiveLosses)
	assert.Zero(t, f.tracker.DailyRealizedPL())

	f.engine.Refresh(ctx)
	assert.Len(t, f.notifier.summaries, 1)
}

func TestEngine_RefreshStatusAndHealth(t *testing.T) {
	f := newEngineFixture(t, noonNY, mixedUniverse())
	ctx := context.Background()
	require.NoError(t, f.risk.Initialize(ctx))
	f.engine.mu.Lock()
	f.engine.lastReset = "2025-06-04"
	f.engine.mu.Unlock()

	f.engine.Refresh(ctx)
	assert.Contains(t, f.status.String(), "PORTFOLIO STATUS")
	st, _ := f.health.Status()
	assert.True(t, st.IsConnected)

	f.status.Reset()
	f.clock.Set(noonNY.Add(time.Minute))
	f.engine.Refresh(ctx)
	assert.Empty(t, f.status.String(), "status renders once per interval")

	f.clock.Set(noonNY.Add(6 * time.Minute))
	f.engine.Refresh(ctx)
	assert.NotEmpty(t, f.status.String())

	f.broker.FailOn(exchange.OpAccount, errors.New("down"))
	f.engine.Refresh(ctx)
	st, code := f.health.Status()
	assert.False(t, st.IsConnected)
	assert.Equal(t, 500, code)
}

func TestEngine_SweepLocks(t *testing.T) {
	f := newEngineFixture(t, noonNY, mixedUniverse())
	_, ok := f.risk.AcquireLock("BTCUSD", "day", time.Minute)
	require.True(t, ok)

	f.engine.SweepLocks()
	assert.Equal(t, 1, f.risk.ActiveLocks())

	f.clock.Set(noonNY.Add(2 * time.Minute))
	f.engine.SweepLocks()
	assert.Zero(t, f.risk.ActiveLocks())
}

func TestEngine_RunUntilCancelled(t *testing.T) {
	s := &fakeStrategy{style: session.StyleDay, signals: map[string]strategy.Signal{"BTCUSD": buySignal("BTCUSD", 90)}}
	f := newEngineFixture(t, noonNY, mixedUniverse(), s)
	f.engine.cfg.RefreshInterval = 5 * time.Millisecond
	f.engine.cfg.AnalysisInterval = 5 * time.Millisecond
	f.engine.cfg.RotationInterval = time.Hour
	f.engine.cfg.LockSweepInterval = 5 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.engine.Run(ctx) }()

	require.Eventually(t, func() bool { return len(s.Executed()) >= 2 }, 2*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("engine did not stop")
	}

	f.notifier.mu.Lock()
	defer f.notifier.mu.Unlock()
	assert.Equal(t, 1, f.notifier.startups)
	assert.Equal(t, []string{"stopped by user"}, f.notifier.shutdowns)
	assert.Len(t, f.notifier.rotations, 1)
}

func TestEngine_RunStopsOnFatal(t *testing.T) {
	s := &fakeStrategy{
		style:   session.StyleDay,
		signals: map[string]strategy.Signal{"BTCUSD": buySignal("BTCUSD", 90)},
		execErr: boterrors.NewFatalError("risk", "CanOpenPosition", "state corrupted"),
	}
	f := newEngineFixture(t, noonNY, mixedUniverse(), s)

	err := f.engine.Run(context.Background())
	require.Error(t, err)
	assert.True(t, boterrors.IsFatal(err))
	require.Len(t, f.notifier.shutdowns, 1)
	assert.Contains(t, f.notifier.shutdowns[0], "state corrupted")
}

func TestEngine_RunFailsWithoutAccount(t *testing.T) {
	f := newEngineFixture(t, noonNY, mixedUniverse())
	f.broker.FailOn(exchange.OpAccount, errors.New("unauthorized"))
	assert.Error(t, f.engine.Run(context.Background()))
	assert.Zero(t, f.notifier.startups)
}

func TestRunPass(t *testing.T) {
	var mu sync.Mutex
	seen := map[string]int{}
	symbols := []string{"A", "B", "C", "D", "E", "F", "G"}
	boom := errors.New("boom")

	err := runPass(context.Background(), 3, symbols, func(ctx context.Context, s string) error {
		mu.Lock()
		seen[s]++
		mu.Unlock()
		if s == "C" {
			return boom
		}
		return nil
	})
	assert.ErrorIs(t, err, boom)
	assert.Len(t, seen, len(symbols))
	for _, n := range seen {
		assert.Equal(t, 1, n)
	}

	assert.NoError(t, runPass(context.Background(), 0, nil, nil))
}
