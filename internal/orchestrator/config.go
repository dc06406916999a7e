package orchestrator

import (
	"time"

	"github.com/ducminhle1904/momentum-risk-bot/pkg/types"
)

// Config schedules the periodic tasks and tunes signal dispatch
type Config struct {
	ExecuteThreshold  float64       `yaml:"execute_threshold" default:"70" validate:"gte=0,lte=100"`
	RefreshInterval   time.Duration `yaml:"refresh_interval" default:"1s"`
	AnalysisInterval  time.Duration `yaml:"analysis_interval" default:"60s"`
	RotationInterval  time.Duration `yaml:"rotation_interval" default:"4h"`
	LockSweepInterval time.Duration `yaml:"lock_sweep_interval" default:"60s"`
	StatusInterval    time.Duration `yaml:"status_interval" default:"5m"`
	Workers           int           `yaml:"workers" default:"4" validate:"gte=1,lte=64"`
	ActiveFraction    float64       `yaml:"active_fraction" default:"0.5" validate:"gt=0,lte=1"`
	MinActive         int           `yaml:"min_active" default:"5" validate:"gte=1"`
}

// DefaultConfig matches the struct tag defaults
func DefaultConfig() Config {
	return Config{
		ExecuteThreshold:  70,
		RefreshInterval:   time.Second,
		AnalysisInterval:  time.Minute,
		RotationInterval:  4 * time.Hour,
		LockSweepInterval: time.Minute,
		StatusInterval:    5 * time.Minute,
		Workers:           4,
		ActiveFraction:    0.5,
		MinActive:         5,
	}
}

// Universe is the configured symbol list split by asset class
type Universe struct {
	Crypto []string `yaml:"crypto"`
	Stocks []string `yaml:"stocks"`
}

// DefaultUniverse covers every symbol of the default correlation groups that
// the broker lists
func DefaultUniverse() Universe {
	return Universe{
		Crypto: []string{"BTCUSD", "ETHUSD", "SOLUSD", "AVAXUSD", "DOTUSD", "LINKUSD", "DOGEUSD"},
		Stocks: []string{"AAPL", "MSFT", "GOOGL", "AMZN", "NVDA", "AMD", "META", "TSLA", "SPY", "QQQ"},
	}
}

// All returns crypto symbols followed by stocks
func (u Universe) All() []string {
	out := make([]string, 0, len(u.Crypto)+len(u.Stocks))
	out = append(out, u.Crypto...)
	return append(out, u.Stocks...)
}

// IsCrypto reports whether symbol is listed as crypto, falling back to the
// symbol naming rule for unlisted symbols
func (u Universe) IsCrypto(symbol string) bool {
	for _, s := range u.Crypto {
		if s == symbol {
			return true
		}
	}
	for _, s := range u.Stocks {
		if s == symbol {
			return false
		}
	}
	return types.AssetType(symbol) == types.AssetCrypto
}
