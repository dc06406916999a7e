package exchange

import (
	"context"
	"errors"
	"fmt"
	"time"

	cb "github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	boterrors "github.com/ducminhle1904/momentum-risk-bot/internal/errors"
	"github.com/ducminhle1904/momentum-risk-bot/internal/logger"
	"github.com/ducminhle1904/momentum-risk-bot/pkg/types"
)

// GuardConfig tunes request throttling and the circuit breaker.
type GuardConfig struct {
	RequestsPerSecond float64       `yaml:"requests_per_second" default:"8" validate:"gt=0"`
	Burst             int           `yaml:"burst" default:"4" validate:"gte=1"`
	FailureThreshold  uint32        `yaml:"failure_threshold" default:"3" validate:"gte=1"`
	OpenTimeout       time.Duration `yaml:"open_timeout" default:"60s"`
	BarTTL            time.Duration `yaml:"bar_ttl" default:"1m"`
	ReadRetries       int           `yaml:"read_retries" default:"2" validate:"gte=0,lte=5"`
	RetryBackoff      time.Duration `yaml:"retry_backoff" default:"250ms"`
}

// Guarded wraps a Broker with a rate limiter, a circuit breaker and an
// optional bar cache. Open-circuit failures surface as ErrCircuitOpen.
// Reads are retried on transient failures; orders are never repeated.
type Guarded struct {
	next    Broker
	breaker *cb.CircuitBreaker
	limiter *rate.Limiter
	cache   BarCache
	ttl     time.Duration
	retries int
	backoff time.Duration
	log     *logger.Logger
}

// NewGuarded wraps next. A nil cache disables bar caching.
func NewGuarded(next Broker, cfg GuardConfig, cache BarCache, log *logger.Logger) *Guarded {
	if log == nil {
		log = logger.Nop()
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 8
	}
	if cfg.Burst < 1 {
		cfg.Burst = 1
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 3
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 60 * time.Second
	}
	if cfg.BarTTL <= 0 {
		cfg.BarTTL = DefaultBarTTL
	}
	if cfg.ReadRetries < 0 {
		cfg.ReadRetries = 0
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 250 * time.Millisecond
	}

	g := &Guarded{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		cache:   cache,
		ttl:     cfg.BarTTL,
		retries: cfg.ReadRetries,
		backoff: cfg.RetryBackoff,
		log:     log.With("component", "broker_guard"),
	}

	st := cb.Settings{Name: next.Name()}
	st.Interval = 60 * time.Second
	st.Timeout = cfg.OpenTimeout
	threshold := cfg.FailureThreshold
	st.ReadyToTrip = func(counts cb.Counts) bool {
		return counts.ConsecutiveFailures >= threshold
	}
	// Caller cancellation says nothing about broker health.
	st.IsSuccessful = func(err error) bool {
		return err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
	}
	st.OnStateChange = func(name string, from, to cb.State) {
		g.log.Warning("circuit %s: %s -> %s", name, from, to)
	}
	g.breaker = cb.NewCircuitBreaker(st)
	return g
}

// State reports the breaker state.
func (g *Guarded) State() string {
	return g.breaker.State().String()
}

func (g *Guarded) Name() string { return g.next.Name() }

func call[T any](ctx context.Context, g *Guarded, op string, fn func() (T, error)) (T, error) {
	var zero T
	if err := g.limiter.Wait(ctx); err != nil {
		return zero, err
	}
	res, err := g.breaker.Execute(func() (any, error) {
		return fn()
	})
	if err != nil {
		if errors.Is(err, cb.ErrOpenState) || errors.Is(err, cb.ErrTooManyRequests) {
			return zero, fmt.Errorf("%s %s: %w", g.next.Name(), op, boterrors.ErrCircuitOpen)
		}
		return zero, err
	}
	out, _ := res.(T)
	return out, nil
}

// read repeats an idempotent call while its failure category asks for a
// retry. Rate limits wait longer between attempts.
func read[T any](ctx context.Context, g *Guarded, op string, fn func() (T, error)) (T, error) {
	var zero T
	for attempt := 0; ; attempt++ {
		res, err := call(ctx, g, op, fn)
		if err == nil {
			return res, nil
		}
		if attempt >= g.retries || ctx.Err() != nil || errors.Is(err, boterrors.ErrCircuitOpen) ||
			errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return zero, err
		}
		be := boterrors.CategorizeError(err, "broker", op)
		if !boterrors.IsRetryable(be) {
			return zero, err
		}
		wait := g.backoff * time.Duration(attempt+1)
		switch be.GetRecoveryAction() {
		case boterrors.RecoveryActionRetry:
		case boterrors.RecoveryActionWait:
			wait *= 4
		default:
			return zero, err
		}
		g.log.Debug("%s %s failed (%s), retry %d in %s", g.next.Name(), op, be.Category, attempt+1, wait)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, err
		case <-timer.C:
		}
	}
}

func (g *Guarded) GetAccount(ctx context.Context) (types.Account, error) {
	return read(ctx, g, "get account", func() (types.Account, error) {
		return g.next.GetAccount(ctx)
	})
}

func (g *Guarded) GetOpenPositions(ctx context.Context) ([]types.Position, error) {
	return read(ctx, g, "get positions", func() ([]types.Position, error) {
		return g.next.GetOpenPositions(ctx)
	})
}

func (g *Guarded) GetPosition(ctx context.Context, symbol string) (*types.Position, error) {
	return read(ctx, g, "get position", func() (*types.Position, error) {
		return g.next.GetPosition(ctx, symbol)
	})
}

// GetBars consults the cache first. Cache errors only cost a broker call.
func (g *Guarded) GetBars(ctx context.Context, symbol string, tf types.Timeframe, limit int) ([]types.OHLCV, error) {
	key := BarKey(symbol, tf, limit)
	if g.cache != nil {
		bars, err := g.cache.Get(ctx, key)
		if err == nil {
			return bars, nil
		}
		if !errors.Is(err, ErrCacheMiss) {
			g.log.Debug("bar cache read %s: %v", key, err)
		}
	}

	bars, err := read(ctx, g, "get bars", func() ([]types.OHLCV, error) {
		return g.next.GetBars(ctx, symbol, tf, limit)
	})
	if err != nil {
		return nil, err
	}
	if g.cache != nil && len(bars) > 0 {
		if err := g.cache.Set(ctx, key, bars, g.ttl); err != nil {
			g.log.Debug("bar cache write %s: %v", key, err)
		}
	}
	return bars, nil
}

func (g *Guarded) SubmitBracketOrder(ctx context.Context, order types.BracketOrder) (*types.Order, error) {
	return call(ctx, g, "submit order", func() (*types.Order, error) {
		return g.next.SubmitBracketOrder(ctx, order)
	})
}

func (g *Guarded) ClosePosition(ctx context.Context, symbol string) (*types.Order, error) {
	return call(ctx, g, "close position", func() (*types.Order, error) {
		return g.next.ClosePosition(ctx, symbol)
	})
}

func (g *Guarded) CancelAllOrders(ctx context.Context) error {
	_, err := call(ctx, g, "cancel orders", func() (struct{}, error) {
		return struct{}{}, g.next.CancelAllOrders(ctx)
	})
	return err
}
