package risk

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	boterrors "github.com/ducminhle1904/momentum-risk-bot/internal/errors"
	"github.com/ducminhle1904/momentum-risk-bot/internal/logger"
	"github.com/ducminhle1904/momentum-risk-bot/pkg/types"
)

// Broker is the account view the risk manager needs
type Broker interface {
	GetAccount(ctx context.Context) (types.Account, error)
	GetOpenPositions(ctx context.Context) ([]types.Position, error)
	CancelAllOrders(ctx context.Context) error
}

// Alerter raises operator alerts; failures are logged and ignored
type Alerter interface {
	Error(ctx context.Context, title string, err error) error
}

// Gate names the check that rejected an entry
type Gate string

const (
	GateLock          Gate = "lock"
	GateCorrelation   Gate = "correlation"
	GateEmergencyStop Gate = "emergency_stop"
	GateMaxPositions  Gate = "max_positions"
	GatePortfolioHeat Gate = "portfolio_heat"
	GateDailyLoss     Gate = "daily_loss"
	GateBuyingPower   Gate = "buying_power"
	GateTimeOfDay     Gate = "time_of_day"
	GateSize          Gate = "size"
)

// Verdict is the outcome of an entry check
type Verdict struct {
	Allowed bool
	Gate    Gate
	Reason  string
}

func allow() Verdict { return Verdict{Allowed: true} }

func reject(g Gate, format string, args ...interface{}) Verdict {
	return Verdict{Gate: g, Reason: fmt.Sprintf(format, args...)}
}

// State is a snapshot of the mutable risk state
type State struct {
	StartingEquity         float64
	DailyStartEquity       float64
	ConsecutiveLosses      int
	PositionSizeMultiplier float64
	PortfolioHeatPercent   float64
	EmergencyStopActive    bool
	SentimentMultiplier    float64
	PositionCount          int
}

// EmergencyAction records one activation of the emergency stop
type EmergencyAction struct {
	Timestamp       time.Time
	Trigger         string
	OrdersCancelled bool
	Alerted         bool
}

// Manager owns the account risk state and the symbol lock table.
// All mutations happen under mu.
type Manager struct {
	cfg     Config
	broker  Broker
	alerter Alerter
	logger  *logger.Logger
	locks   *LockTable
	now     func() time.Time

	mu                     sync.Mutex
	startingEquity         float64
	dailyStartEquity       float64
	consecutiveLosses      int
	positionSizeMultiplier float64
	portfolioHeat          float64
	positionCount          int
	emergencyStop          bool
	sentiment              *float64
	cooldown               *time.Timer
	cooldownGen            uint64
	dailyTrades            []TradeRecord
	emergencyHistory       []EmergencyAction
	pending                map[string]pendingEntry

	// capacity one; see BeginEntry
	entry chan struct{}
}

// Option customizes a Manager
type Option func(*Manager)

// WithClock replaces time.Now for lease and trade timestamps
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithAlerter sets the emergency notification channel
func WithAlerter(a Alerter) Option {
	return func(m *Manager) { m.alerter = a }
}

// NewManager creates a manager; Initialize must run before the first entry check.
func NewManager(cfg Config, broker Broker, log *logger.Logger, opts ...Option) *Manager {
	if log == nil {
		log = logger.Nop()
	}
	m := &Manager{
		cfg:                    cfg,
		broker:                 broker,
		logger:                 log.With("component", "risk"),
		now:                    time.Now,
		positionSizeMultiplier: 1.0,
		pending:                make(map[string]pendingEntry),
		entry:                  make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.locks = NewLockTable(m.now)
	return m
}

// Config returns the limits the manager was built with
func (m *Manager) Config() Config { return m.cfg }

// Initialize seeds the equity baselines from the broker account
func (m *Manager) Initialize(ctx context.Context) error {
	account, err := m.broker.GetAccount(ctx)
	if err != nil {
		return boterrors.NewExchangeError("risk", "Initialize", err)
	}
	if account.Equity <= 0 {
		return boterrors.NewFatalError("risk", "Initialize", fmt.Sprintf("account equity %.2f is not positive", account.Equity))
	}

	dailyStart := account.LastEquity
	if dailyStart <= 0 {
		dailyStart = account.Equity
	}

	m.mu.Lock()
	m.startingEquity = account.Equity
	m.dailyStartEquity = dailyStart
	m.mu.Unlock()

	if _, err := m.refreshPositions(ctx); err != nil {
		return err
	}

	m.logger.Info("Risk manager initialized: equity $%.2f, daily start $%.2f", account.Equity, dailyStart)
	return nil
}

// AcquireLock claims symbol for owner for the lease duration (config default when zero)
func (m *Manager) AcquireLock(symbol, owner string, lease time.Duration) (*Lease, bool) {
	if lease <= 0 {
		lease = m.cfg.LockLease
	}
	l, ok := m.locks.Acquire(symbol, owner, lease)
	if !ok {
		if cur, held := m.locks.Holder(symbol); held {
			m.logger.Info("Symbol %s locked by %s", symbol, cur.Owner)
		}
	}
	return l, ok
}

// ReleaseLock drops a lease obtained from AcquireLock
func (m *Manager) ReleaseLock(l *Lease) {
	m.locks.Release(l)
}

// CleanExpiredLocks sweeps lapsed leases
func (m *Manager) CleanExpiredLocks() int {
	n := m.locks.Sweep()
	if n > 0 {
		m.logger.Warning("Swept %d expired symbol locks", n)
	}
	return n
}

// ActiveLocks counts live leases
func (m *Manager) ActiveLocks() int { return m.locks.Active() }

// refreshPositions re-reads open positions, adds pending entries and recomputes portfolio heat.
func (m *Manager) refreshPositions(ctx context.Context) ([]types.Position, error) {
	positions, err := m.broker.GetOpenPositions(ctx)
	if err != nil {
		return nil, boterrors.NewPositionError("risk", "GetOpenPositions", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	positions = m.withPendingLocked(positions)
	heat, err := m.heatLocked(positions)
	if err != nil {
		return nil, err
	}
	m.portfolioHeat = heat
	m.positionCount = len(positions)
	return positions, nil
}

// heatLocked sums the base stop distance of every position as a percent of starting equity.
func (m *Manager) heatLocked(positions []types.Position) (float64, error) {
	if len(positions) == 0 {
		return 0, nil
	}
	if m.startingEquity <= 0 {
		return 0, boterrors.NewFatalError("risk", "PortfolioHeat", "starting equity is not positive")
	}
	total := 0.0
	for _, p := range positions {
		risk := p.AvgEntryPrice * (m.cfg.BaseStopLossPercent / 100) * math.Abs(p.Qty)
		total += risk / m.startingEquity * 100
	}
	return total, nil
}

// PortfolioHeat recomputes heat from a fresh position snapshot
func (m *Manager) PortfolioHeat(ctx context.Context) (float64, error) {
	if _, err := m.refreshPositions(ctx); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.portfolioHeat, nil
}

// CanOpenPosition runs the account gates in order, re-reading positions and
// the account first. A breached daily loss limit triggers the emergency stop.
func (m *Manager) CanOpenPosition(ctx context.Context, estimatedHeat float64) (Verdict, error) {
	if estimatedHeat <= 0 {
		estimatedHeat = m.cfg.EstimatedNewHeat
	}
	if _, err := m.refreshPositions(ctx); err != nil {
		return Verdict{}, err
	}

	m.mu.Lock()
	stopped, count, heat := m.emergencyStop, m.positionCount, m.portfolioHeat
	m.mu.Unlock()

	if stopped {
		return reject(GateEmergencyStop, "Emergency stop active - no new positions allowed"), nil
	}
	if count >= m.cfg.MaxPositions {
		return reject(GateMaxPositions, "Max positions reached (%d)", m.cfg.MaxPositions), nil
	}
	if heat+estimatedHeat > m.cfg.MaxPortfolioHeat {
		return reject(GatePortfolioHeat, "Portfolio heat too high: %.1f%% + %.1f%% > %.1f%%", heat, estimatedHeat, m.cfg.MaxPortfolioHeat), nil
	}

	account, err := m.broker.GetAccount(ctx)
	if err != nil {
		return Verdict{}, boterrors.NewExchangeError("risk", "GetAccount", err)
	}
	plPct, err := m.dailyPLPercent(account.Equity)
	if err != nil {
		return Verdict{}, err
	}
	if plPct <= -m.cfg.DailyLossLimitPercent {
		reason := fmt.Sprintf("Daily loss limit reached: %.2f%%", plPct)
		m.TriggerEmergencyStop(ctx, reason)
		return reject(GateDailyLoss, "%s", reason), nil
	}

	if account.BuyingPower < m.cfg.MinBuyingPower {
		return reject(GateBuyingPower, "Insufficient buying power: $%.2f", account.BuyingPower), nil
	}

	return allow(), nil
}

func (m *Manager) dailyPLPercent(equity float64) (float64, error) {
	m.mu.Lock()
	start := m.dailyStartEquity
	m.mu.Unlock()

	if start <= 0 {
		return 0, boterrors.NewFatalError("risk", "DailyPL", "daily start equity is not positive")
	}
	return (equity - start) / start * 100, nil
}

// CheckDailyLossLimit triggers the emergency stop when today's loss breaches the limit.
// It returns false once the limit is breached.
func (m *Manager) CheckDailyLossLimit(ctx context.Context) (bool, error) {
	account, err := m.broker.GetAccount(ctx)
	if err != nil {
		return false, boterrors.NewExchangeError("risk", "GetAccount", err)
	}
	plPct, err := m.dailyPLPercent(account.Equity)
	if err != nil {
		return false, err
	}
	if plPct <= -m.cfg.DailyLossLimitPercent {
		if !m.EmergencyStopActive() {
			m.TriggerEmergencyStop(ctx, fmt.Sprintf("Daily loss limit reached: %.2f%%", plPct))
		}
		return false, nil
	}
	return true, nil
}

// TriggerEmergencyStop blocks new entries, cancels open orders and alerts.
// Exits are never blocked.
func (m *Manager) TriggerEmergencyStop(ctx context.Context, reason string) {
	m.mu.Lock()
	m.emergencyStop = true
	m.mu.Unlock()

	m.logger.Error("EMERGENCY STOP TRIGGERED: %s", reason)

	action := EmergencyAction{Timestamp: m.now(), Trigger: reason}
	if err := m.broker.CancelAllOrders(ctx); err != nil {
		m.logger.LogError("Cancel orders during emergency stop", err)
	} else {
		action.OrdersCancelled = true
	}
	if m.alerter != nil {
		if err := m.alerter.Error(ctx, "EMERGENCY STOP TRIGGERED", fmt.Errorf("%s", reason)); err != nil {
			m.logger.LogError("Emergency stop alert", err)
		} else {
			action.Alerted = true
		}
	}

	m.mu.Lock()
	m.emergencyHistory = append(m.emergencyHistory, action)
	m.mu.Unlock()
}

// ResetEmergencyStop re-enables entries
func (m *Manager) ResetEmergencyStop() {
	m.mu.Lock()
	m.emergencyStop = false
	m.mu.Unlock()
	m.logger.Info("Emergency stop reset")
}

// EmergencyStopActive reports whether entries are blocked
func (m *Manager) EmergencyStopActive() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.emergencyStop
}

// EmergencyHistory returns a copy of past activations
func (m *Manager) EmergencyHistory() []EmergencyAction {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]EmergencyAction, len(m.emergencyHistory))
	copy(out, m.emergencyHistory)
	return out
}

// ResetDailyCounters starts a new trading day from the current equity.
func (m *Manager) ResetDailyCounters(ctx context.Context) error {
	account, err := m.broker.GetAccount(ctx)
	if err != nil {
		return boterrors.NewExchangeError("risk", "ResetDailyCounters", err)
	}

	m.mu.Lock()
	m.dailyStartEquity = account.Equity
	m.dailyTrades = nil
	m.emergencyStop = false
	m.consecutiveLosses = 0
	m.positionSizeMultiplier = 1.0
	m.stopCooldownLocked()
	m.mu.Unlock()

	m.logger.Info("Daily counters reset: start equity $%.2f", account.Equity)
	return nil
}

// State returns a snapshot of the risk state
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return State{
		StartingEquity:         m.startingEquity,
		DailyStartEquity:       m.dailyStartEquity,
		ConsecutiveLosses:      m.consecutiveLosses,
		PositionSizeMultiplier: m.positionSizeMultiplier,
		PortfolioHeatPercent:   m.portfolioHeat,
		EmergencyStopActive:    m.emergencyStop,
		SentimentMultiplier:    m.sentimentMultiplierLocked(),
		PositionCount:          m.positionCount,
	}
}
