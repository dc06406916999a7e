package orchestrator

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/ducminhle1904/momentum-risk-bot/internal/display"
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
)

const notifyTimeout = 15 * time.Second

// Deps are the collaborators the engine drives. Notifier, Health, Tracker
// and Status are optional.
type Deps struct {
	Broker     exchange.Broker
	Risk       *risk.Manager
	Session    *session.Service
	Tracker    *portfolio.Tracker
	Trend      *TrendAnalyzer
	Strategies []strategy.Strategy
	Notifier   notifications.Notifier
	Health     *monitoring.HealthChecker
	Logger     *logger.Logger
	Status     io.Writer
	Mode       string
}

// Engine runs the periodic refresh, analysis, rotation and lock sweep tasks
type Engine struct {
	cfg        Config
	universe   Universe
	broker     exchange.Broker
	risk       *risk.Manager
	session    *session.Service
	tracker    *portfolio.Tracker
	trend      *TrendAnalyzer
	strategies []strategy.Strategy
	notifier   notifications.Notifier
	health     *monitoring.HealthChecker
	log        *logger.Logger
	status     io.Writer
	mode       string
	now        func() time.Time

	mu         sync.RWMutex
	active     []string
	sentiment  Sentiment
	lastReset  string
	lastStatus time.Time
}

func New(cfg Config, universe Universe, d Deps) *Engine {
	log := d.Logger
	if log == nil {
		log = logger.Nop()
	}
	n := d.Notifier
	if n == nil {
		n = notifications.Nop{}
	}
	trend := d.Trend
	if trend == nil {
		trend = NewTrendAnalyzer(d.Broker, log)
	}
	return &Engine{
		cfg:        cfg,
		universe:   universe,
		broker:     d.Broker,
		risk:       d.Risk,
		session:    d.Session,
		tracker:    d.Tracker,
		trend:      trend,
		strategies: d.Strategies,
		notifier:   n,
		health:     d.Health,
		log:        log.With("component", "orchestrator"),
		status:     d.Status,
		mode:       d.Mode,
		now:        time.Now,
		sentiment:  Sentiment{Crypto: neutralScore, Stocks: neutralScore, Overall: neutralScore, CryptoLabel: Neutral, StocksLabel: Neutral},
	}
}

// Run initializes the risk state, does one rotation and one analysis pass,
// then runs every periodic task until ctx is cancelled. A fatal error from
// any task stops the engine and is returned.
func (e *Engine) Run(ctx context.Context) error {
	if err := e.risk.Initialize(ctx); err != nil {
		return err
	}
	e.mu.Lock()
	e.lastReset = e.session.Today()
	e.mu.Unlock()

	e.announceStartup(ctx)
	e.Rotate(ctx)
	if err := e.AnalyzeOnce(ctx); err != nil {
		e.shutdown(fmt.Sprintf("fatal error: %v", err))
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg    sync.WaitGroup
		once  sync.Once
		fatal error
	)
	stop := func(err error) {
		once.Do(func() {
			fatal = err
			cancel()
		})
	}
	every := func(name string, interval time.Duration, task func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			e.log.Debug("%s task every %s", name, interval)
			for {
				select {
				case <-runCtx.Done():
					return
				case <-ticker.C:
					if err := task(runCtx); err != nil {
						e.log.Error("%s task stopped the engine: %v", name, err)
						stop(err)
						return
					}
				}
			}
		}()
	}

	every("refresh", e.cfg.RefreshInterval, func(c context.Context) error { e.Refresh(c); return nil })
	every("analysis", e.cfg.AnalysisInterval, e.AnalyzeOnce)
	every("rotation", e.cfg.RotationInterval, func(c context.Context) error { e.Rotate(c); return nil })
	every("lock-sweep", e.cfg.LockSweepInterval, func(context.Context) error { e.SweepLocks(); return nil })

	e.log.Info("Trading engine started: %d strategies, %d active symbols", len(e.strategies), len(e.Active()))
	<-runCtx.Done()
	wg.Wait()

	reason := "stopped by user"
	if fatal != nil {
		reason = fmt.Sprintf("fatal error: %v", fatal)
	}
	e.shutdown(reason)
	return fatal
}

func (e *Engine) announceStartup(ctx context.Context) {
	info := notifications.StartupInfo{
		Mode:         e.mode,
		CryptoAssets: e.universe.Crypto,
		StockAssets:  e.universe.Stocks,
	}
	for _, s := range e.strategies {
		info.Strategies = append(info.Strategies, string(s.Style()))
	}
	if account, err := e.broker.GetAccount(ctx); err == nil {
		info.PortfolioValue = account.Equity
		info.BuyingPower = account.BuyingPower
	} else {
		e.log.LogWarning("startup", "account unavailable: %v", err)
	}
	nctx, cancel := context.WithTimeout(ctx, notifyTimeout)
	defer cancel()
	if err := e.notifier.Startup(nctx, info); err != nil {
		e.log.LogWarning("notify", "startup notification failed: %v", err)
	}
}

func (e *Engine) shutdown(reason string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*notifyTimeout)
	defer cancel()
	e.sendDailySummary(ctx)
	if err := e.notifier.Shutdown(ctx, reason); err != nil {
		e.log.LogWarning("notify", "shutdown notification failed: %v", err)
	}
	e.log.Info("Trading engine stopped: %s", reason)
}

// Active returns the current active subset
func (e *Engine) Active() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]string(nil), e.active...)
}

// Sentiment returns the sentiment of the last rotation
func (e *Engine) Sentiment() Sentiment {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.sentiment
}

// Tradable is the active subset, or the whole universe before any symbol was
// ranked, filtered to markets that are open now
func (e *Engine) Tradable() []string {
	symbols := e.Active()
	if len(symbols) == 0 {
		symbols = e.universe.All()
	}
	return e.session.Tradable(symbols)
}

// Rotate rebuilds the active subset from trend scores and pushes the market
// sentiment into the risk manager
func (e *Engine) Rotate(ctx context.Context) {
	ranking := e.trend.Rank(ctx, e.universe, e.cfg.ActiveFraction, e.cfg.MinActive)
	active := make([]string, 0, len(ranking))
	for _, r := range ranking {
		active = append(active, r.Symbol)
	}
	sent := e.trend.Sentiment(e.universe)

	e.mu.Lock()
	e.active = active
	e.sentiment = sent
	e.mu.Unlock()

	e.risk.UpdateSentiment(sent.Overall)
	e.log.Info("Market sentiment: crypto %s (%.1f), stocks %s (%.1f); trading %d symbols",
		sent.CryptoLabel, sent.Crypto, sent.StocksLabel, sent.Stocks, len(active))

	nctx, cancel := context.WithTimeout(ctx, notifyTimeout)
	defer cancel()
	err := e.notifier.Rotation(nctx, notifications.RotationInfo{
		ActiveAssets:    active,
		CryptoSentiment: sent.CryptoLabel,
		StockSentiment:  sent.StocksLabel,
		TopCrypto:       e.trend.Top(e.universe, true, 3),
		TopStocks:       e.trend.Top(e.universe, false, 3),
	})
	if err != nil {
		e.log.LogWarning("notify", "rotation notification failed: %v", err)
	}
}

// AnalyzeOnce runs every strategy over the tradable symbols on the worker
// pool. Only fatal errors are returned.
func (e *Engine) AnalyzeOnce(ctx context.Context) error {
	symbols := e.Tradable()
	e.log.Info("Analyzing %d symbols", len(symbols))
	err := runPass(ctx, e.cfg.Workers, symbols, e.analyzeSymbol)
	if e.health != nil {
		e.health.CycleCompleted()
	}
	return err
}

func (e *Engine) analyzeSymbol(ctx context.Context, symbol string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("panic analyzing %s: %v", symbol, r)
			monitoring.RecordError("panic")
			err = nil
		}
	}()

	for _, s := range e.strategies {
		bars, ferr := e.broker.GetBars(ctx, symbol, s.Timeframe(), s.Lookback())
		if ferr != nil {
			e.log.LogWarning(string(s.Style()), "bars for %s: %v", symbol, ferr)
			monitoring.RecordError("market_data")
			if e.health != nil {
				e.health.RecordError(ferr)
			}
			continue
		}
		if len(bars) == 0 {
			e.log.Debug("%v", boterrors.NewInsufficientDataError(string(s.Style()), "GetBars",
				fmt.Sprintf("no %s bars for %s", s.Timeframe(), symbol)))
			continue
		}

		sig := s.Analyze(ctx, symbol, bars)
		if sig.Direction == signal.Neutral || sig.Price <= 0 {
			continue
		}
		monitoring.RecordSignal(string(sig.Strategy), string(sig.Direction))
		if sig.Strength < e.cfg.ExecuteThreshold {
			continue
		}

		res, xerr := s.Execute(ctx, sig)
		if xerr != nil {
			if boterrors.IsFatal(xerr) {
				return xerr
			}
			e.log.LogError("execute", xerr)
			continue
		}
		switch res.State {
		case strategy.StateOpen, strategy.StateClosed:
			e.log.Info("%s %s %s: %s", s.Style(), sig.Direction, symbol, res.State)
		}
	}
	return nil
}

// Refresh checks the daily rollover and loss limit and updates health and
// risk gauges. The status table is rendered every StatusInterval.
func (e *Engine) Refresh(ctx context.Context) {
	e.checkRollover(ctx)

	if _, err := e.risk.CheckDailyLossLimit(ctx); err != nil {
		e.log.LogWarning("refresh", "daily loss check failed: %v", err)
	}

	summary, err := e.risk.PortfolioSummary(ctx)
	if e.health != nil {
		e.health.SetConnected(err == nil)
		e.health.SetEmergencyStop(e.risk.EmergencyStopActive())
		if err != nil {
			e.health.RecordError(err)
		}
	}
	if err != nil {
		monitoring.RecordError("account")
		return
	}
	monitoring.UpdateRisk(monitoring.RiskSnapshot{
		Equity:                 summary.Equity,
		PortfolioHeatPercent:   summary.PortfolioHeat,
		PositionSizeMultiplier: summary.PositionSizeMultiplier,
		EmergencyStopActive:    summary.EmergencyStop,
		ActiveLocks:            e.risk.ActiveLocks(),
	})

	if e.status == nil || e.cfg.StatusInterval <= 0 {
		return
	}
	now := e.now()
	e.mu.Lock()
	due := e.lastStatus.IsZero() || now.Sub(e.lastStatus) >= e.cfg.StatusInterval
	if due {
		e.lastStatus = now
	}
	e.mu.Unlock()
	if due {
		e.renderStatus(ctx, summary)
	}
}

func (e *Engine) renderStatus(ctx context.Context, summary risk.PortfolioSummary) {
	positions, err := e.broker.GetOpenPositions(ctx)
	if err != nil {
		e.log.LogWarning("status", "positions unavailable: %v", err)
	}
	sent := e.Sentiment()
	view := display.StatusView{
		Summary:       summary,
		Positions:     positions,
		ActiveSymbols: e.Active(),
		ActiveLocks:   e.risk.ActiveLocks(),
		Sentiment:     fmt.Sprintf("crypto %s, stocks %s", sent.CryptoLabel, sent.StocksLabel),
	}
	if e.tracker != nil {
		view.RealizedPL = e.tracker.DailyRealizedPL()
	}
	display.RenderStatus(e.status, view)
}

// checkRollover resets the daily counters once the session date changes
func (e *Engine) checkRollover(ctx context.Context) {
	today := e.session.Today()
	e.mu.RLock()
	last := e.lastReset
	e.mu.RUnlock()
	if today == last {
		return
	}

	e.log.Info("New trading day %s (was %s)", today, last)
	e.sendDailySummary(ctx)
	if err := e.risk.ResetDailyCounters(ctx); err != nil {
		e.log.LogError("rollover", err)
		return
	}
	if e.tracker != nil {
		e.tracker.ResetDaily()
	}
	e.mu.Lock()
	e.lastReset = today
	e.mu.Unlock()
}

// SweepLocks drops expired symbol leases
func (e *Engine) SweepLocks() {
	if n := e.risk.CleanExpiredLocks(); n > 0 {
		e.log.Info("Released %d expired symbol locks", n)
	}
}

// DailySummary builds the end of day report from the tracker and the account
func (e *Engine) DailySummary(ctx context.Context) notifications.DailySummary {
	var s notifications.DailySummary
	if e.tracker != nil {
		st := e.tracker.DailyStats()
		s.TotalTrades = st.TotalTrades
		s.WinningTrades = st.WinningTrades
		s.LosingTrades = st.LosingTrades
		s.WinRate = st.WinRate
		s.TotalPL = st.RealizedPL
		if st.TopWinner != nil {
			s.TopWinner = &notifications.SymbolPL{Symbol: st.TopWinner.Symbol, PL: st.TopWinner.PL}
		}
		if st.TopLoser != nil {
			s.TopLoser = &notifications.SymbolPL{Symbol: st.TopLoser.Symbol, PL: st.TopLoser.PL}
		}
	}

	s.StartingEquity = e.risk.State().DailyStartEquity
	if summary, err := e.risk.PortfolioSummary(ctx); err == nil {
		s.EndingEquity = summary.Equity
		s.OpenPositions = summary.Positions
		if s.StartingEquity > 0 {
			s.TotalPLPercent = (s.EndingEquity - s.StartingEquity) / s.StartingEquity * 100
		}
	} else {
		e.log.LogWarning("summary", "account unavailable: %v", err)
	}
	return s
}

func (e *Engine) sendDailySummary(ctx context.Context) {
	nctx, cancel := context.WithTimeout(ctx, notifyTimeout)
	defer cancel()
	if err := e.notifier.DailySummary(nctx, e.DailySummary(nctx)); err != nil {
		e.log.LogWarning("notify", "daily summary failed: %v", err)
	}
}
