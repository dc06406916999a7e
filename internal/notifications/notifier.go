package notifications

import (
	"context"
	"errors"
)

// Level is the severity of a free-form alert
type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
	LevelSuccess Level = "success"
)

// TradeEvent describes an executed order
type TradeEvent struct {
	Action     string // BUY, SELL, CLOSE
	Symbol     string
	Qty        float64
	Type       string // market, bracket
	StopLoss   float64
	TakeProfit float64
	Strategy   string
}

// SymbolPL is a symbol with its realized profit or loss
type SymbolPL struct {
	Symbol string
	PL     float64
}

// DailySummary is the end of day report
type DailySummary struct {
	TotalTrades    int
	WinningTrades  int
	LosingTrades   int
	WinRate        float64
	TotalPL        float64
	TotalPLPercent float64
	StartingEquity float64
	EndingEquity   float64
	OpenPositions  int
	TopWinner      *SymbolPL
	TopLoser       *SymbolPL
}

// StartupInfo is reported once when the engine starts
type StartupInfo struct {
	Mode           string
	PortfolioValue float64
	BuyingPower    float64
	CryptoAssets   []string
	StockAssets    []string
	Strategies     []string
}

// RotationInfo is reported after the active symbol set is rebuilt
type RotationInfo struct {
	ActiveAssets    []string
	CryptoSentiment string
	StockSentiment  string
	TopCrypto       []string
	TopStocks       []string
}

// Notifier delivers operator notifications. Delivery is best effort and
// callers log returned errors without acting on them.
type Notifier interface {
	SendAlert(ctx context.Context, level Level, message string) error
	Trade(ctx context.Context, e TradeEvent) error
	Error(ctx context.Context, title string, err error) error
	DailySummary(ctx context.Context, s DailySummary) error
	Startup(ctx context.Context, info StartupInfo) error
	Shutdown(ctx context.Context, reason string) error
	Rotation(ctx context.Context, info RotationInfo) error
}

// Multi fans every notification out to all of its notifiers.
type Multi []Notifier

func (m Multi) each(fn func(Notifier) error) error {
	var errs []error
	for _, n := range m {
		if err := fn(n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) SendAlert(ctx context.Context, level Level, message string) error {
	return m.each(func(n Notifier) error { return n.SendAlert(ctx, level, message) })
}

func (m Multi) Trade(ctx context.Context, e TradeEvent) error {
	return m.each(func(n Notifier) error { return n.Trade(ctx, e) })
}

func (m Multi) Error(ctx context.Context, title string, err error) error {
	return m.each(func(n Notifier) error { return n.Error(ctx, title, err) })
}

func (m Multi) DailySummary(ctx context.Context, s DailySummary) error {
	return m.each(func(n Notifier) error { return n.DailySummary(ctx, s) })
}

func (m Multi) Startup(ctx context.Context, info StartupInfo) error {
	return m.each(func(n Notifier) error { return n.Startup(ctx, info) })
}

func (m Multi) Shutdown(ctx context.Context, reason string) error {
	return m.each(func(n Notifier) error { return n.Shutdown(ctx, reason) })
}

func (m Multi) Rotation(ctx context.Context, info RotationInfo) error {
	return m.each(func(n Notifier) error { return n.Rotation(ctx, info) })
}

// Nop discards every notification
type Nop struct{}

func (Nop) SendAlert(context.Context, Level, string) error { return nil }
func (Nop) Trade(context.Context, TradeEvent) error { return nil }
func (Nop) Error(context.Context, string, error) error { return nil }
func (Nop) DailySummary(context.Context, DailySummary) error { return nil }
func (Nop) Startup(context.Context, StartupInfo) error { return nil }
func (Nop) Shutdown(context.Context, string) error { return nil }
func (Nop) Rotation(context.Context, RotationInfo) error { return nil }

// Config selects the notification channels
type Config struct {
	Discord  DiscordConfig  `yaml:"discord"`
	Telegram TelegramConfig `yaml:"telegram"`
}

// New builds a notifier for every configured channel, Nop when none are.
func New(cfg Config) Notifier {
	var m Multi
	if cfg.Discord.enabled() {
		m = append(m, NewDiscordNotifier(cfg.Discord))
	}
	if cfg.Telegram.Token != "" && cfg.Telegram.ChatID != "" {
		m = append(m, NewTelegramNotifier(cfg.Telegram))
	}
	switch len(m) {
	case 0:
		return Nop{}
	case 1:
		return m[0]
	default:
		return m
	}
}
