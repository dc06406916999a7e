package main

import (
	"context"
	"fmt"
	"os"

	"github.com/ducminhle1904/momentum-risk-bot/internal/config"
	"github.com/ducminhle1904/momentum-risk-bot/internal/correlation"
	"github.com/ducminhle1904/momentum-risk-bot/internal/exchange"
	"github.com/ducminhle1904/momentum-risk-bot/internal/history"
	"github.com/ducminhle1904/momentum-risk-bot/internal/logger"
	"github.com/ducminhle1904/momentum-risk-bot/internal/notifications"
	"github.com/ducminhle1904/momentum-risk-bot/internal/portfolio"
	"github.com/ducminhle1904/momentum-risk-bot/internal/risk"
	"github.com/ducminhle1904/momentum-risk-bot/internal/session"
	"github.com/ducminhle1904/momentum-risk-bot/internal/strategy"
)

// app holds every component a command may need
type app struct {
	cfg      *config.Config
	dryRun   bool
	log      *logger.Logger
	broker   *exchange.Guarded
	paper    *exchange.PaperBroker
	store    *history.Store
	notifier notifications.Notifier
	session  *session.Service
	risk     *risk.Manager
	guard    *correlation.Guard
	tracker  *portfolio.Tracker
	closers  []func() error
}

func loadConfig() (*config.Config, error) {
	if err := config.LoadEnvFile(envFile); err != nil {
		return nil, err
	}
	return config.Load(configFile)
}

func newApp(ctx context.Context, dryRun bool) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	log, err := logger.New(cfg.Log)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, dryRun: dryRun, log: log}

	var cache exchange.BarCache
	switch cfg.Cache.Backend {
	case "redis":
		rc, err := exchange.NewRedisCache(ctx, cfg.Cache.Redis)
		if err != nil {
			log.LogWarning("cache", "redis unavailable, using memory cache: %v", err)
			cache = exchange.NewMemoryCache()
		} else {
			a.closers = append(a.closers, rc.Close)
			cache = rc
		}
	case "memory":
		cache = exchange.NewMemoryCache()
	}

	a.broker, a.paper, err = exchange.New(cfg.Broker, dryRun, cache, log)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.session, err = session.New(cfg.Session, nil)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.store, err = history.Open(cfg.History.Path, a.session.Location())
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("open trade history: %w", err)
	}
	a.closers = append(a.closers, a.store.Close)

	a.notifier = notifications.New(cfg.Notifications)
	a.risk = risk.NewManager(cfg.Trading, a.broker, log, risk.WithAlerter(a.notifier))
	a.guard, err = correlation.NewGuard(cfg.Correlation.Groups, cfg.Correlation.MaxPerGroup)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.tracker = portfolio.NewTracker(a.store, log)
	return a, nil
}

// strategies builds the enabled styles around one shared executor
func (a *app) strategies() []strategy.Strategy {
	exec := strategy.NewExecutor(strategy.Deps{
		Broker:   a.broker,
		Risk:     a.risk,
		Guard:    a.guard,
		Session:  a.session,
		Tracker:  a.tracker,
		Notifier: a.notifier,
		Logger:   a.log,
	})
	sc := a.cfg.Strategies
	var out []strategy.Strategy
	if sc.Scalping.Enabled {
		out = append(out, strategy.NewScalping(exec, a.broker, sc.Scalping, a.log))
	}
	if sc.Day.Enabled {
		out = append(out, strategy.NewDayTrading(exec, a.broker, sc.Day, a.log))
	}
	if sc.Swing.Enabled {
		out = append(out, strategy.NewSwingTrading(exec, a.broker, sc.Swing, a.log))
	}
	return out
}

// Close releases resources in reverse order of creation. The logger is closed
// last so earlier close failures still reach it.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.LogError("shutdown", err)
		}
	}
	a.closers = nil
	if err := a.log.Close(); err != nil {
		fmt.Fprintln(os.Stderr, "close log:", err)
	}
}
