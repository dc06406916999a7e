package session

import (
	"fmt"
	"time"
	_ "time/tzdata"

	"github.com/ducminhle1904/momentum-risk-bot/pkg/types"
)

// Quality grades how good the current time is for trading an asset class
type Quality string

const (
	Prime   Quality = "PRIME"
	Good    Quality = "GOOD"
	Low     Quality = "LOW"
	Closed  Quality = "CLOSED"
	Unknown Quality = "UNKNOWN"
)

// Multiplier scales position size by time-of-day quality
func (q Quality) Multiplier() float64 {
	switch q {
	case Prime:
		return 1.2
	case Good:
		return 1.0
	case Low:
		return 0.7
	case Closed:
		return 0
	default:
		return 1.0
	}
}

// Style is the trading horizon a strategy runs at
type Style string

const (
	StyleScalping Style = "scalping"
	StyleDay      Style = "day"
	StyleSwing    Style = "swing"
)

// Config describes the session calendar
type Config struct {
	Timezone              string `yaml:"timezone" default:"America/New_York"`
	CryptoEnabled         bool   `yaml:"crypto_enabled" default:"true"`
	Crypto24x7            bool   `yaml:"crypto_24_7" default:"true"`
	StocksMarketHoursOnly bool   `yaml:"stocks_market_hours_only" default:"true"`
}

// Service answers market-hours and time-of-day questions in one timezone
type Service struct {
	cfg Config
	loc *time.Location
	now func() time.Time
}

// New loads the configured timezone. A nil clock uses time.Now.
func New(cfg Config, now func() time.Time) (*Service, error) {
	if cfg.Timezone == "" {
		cfg.Timezone = "America/New_York"
	}
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %s: %w", cfg.Timezone, err)
	}
	if now == nil {
		now = time.Now
	}
	return &Service{cfg: cfg, loc: loc, now: now}, nil
}

// Now returns the current time in the session timezone
func (s *Service) Now() time.Time {
	return s.now().In(s.loc)
}

// Today is the session-local date as YYYY-MM-DD
func (s *Service) Today() string {
	return s.Now().Format("2006-01-02")
}

// Location returns the session timezone
func (s *Service) Location() *time.Location { return s.loc }

// Quality grades the current time for an asset class
func (s *Service) Quality(assetType string) Quality {
	return QualityAt(assetType, s.Now())
}

// QualityAt grades t, which must already be in the session timezone.
func QualityAt(assetType string, t time.Time) Quality {
	hour, minute := t.Hour(), t.Minute()

	switch assetType {
	case types.AssetCrypto:
		switch {
		case hour >= 7 && hour < 20:
			return Prime
		case (hour >= 20 && hour < 23) || hour == 6:
			return Good
		default:
			return Low
		}
	case types.AssetStock:
		switch {
		case (hour == 9 && minute >= 30) || hour == 10 || hour == 15:
			return Prime
		case hour >= 11 && hour < 15:
			return Good
		default:
			return Closed
		}
	}
	return Unknown
}

// ShouldSkip reports whether style must not enter now. Scalping needs PRIME,
// day trading avoids LOW and CLOSED, swing trades any time.
func (s *Service) ShouldSkip(assetType string, style Style) (bool, Quality) {
	q := s.Quality(assetType)
	return SkipFor(style, q), q
}

// SkipFor applies the per-style time filter to a quality grade
func SkipFor(style Style, q Quality) bool {
	switch style {
	case StyleScalping:
		return q != Prime
	case StyleDay:
		return q == Low || q == Closed
	default:
		return false
	}
}

// IsWeekend reports Saturday or Sunday in the session timezone
func (s *Service) IsWeekend() bool {
	return isWeekend(s.Now())
}

func isWeekend(t time.Time) bool {
	d := t.Weekday()
	return d == time.Saturday || d == time.Sunday
}

// IsMarketOpen reports regular equity hours, Mon-Fri 09:30-16:00
func (s *Service) IsMarketOpen() bool {
	return IsMarketOpenAt(s.Now())
}

// IsMarketOpenAt checks t against regular equity hours in t's location
func IsMarketOpenAt(t time.Time) bool {
	if isWeekend(t) {
		return false
	}
	open := time.Date(t.Year(), t.Month(), t.Day(), 9, 30, 0, 0, t.Location())
	closing := time.Date(t.Year(), t.Month(), t.Day(), 16, 0, 0, 0, t.Location())
	return !t.Before(open) && t.Before(closing)
}

// NextMarketOpen returns the next 09:30 weekday open after now
func (s *Service) NextMarketOpen() time.Time {
	now := s.Now()
	next := time.Date(now.Year(), now.Month(), now.Day(), 9, 30, 0, 0, s.loc)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	for isWeekend(next) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// ShouldTradeStocks is true during market hours, or always when not restricted
func (s *Service) ShouldTradeStocks() bool {
	if !s.cfg.StocksMarketHoursOnly {
		return true
	}
	return s.IsMarketOpen()
}

// ShouldTradeCrypto is false when crypto is disabled, otherwise 24/7 or market hours
func (s *Service) ShouldTradeCrypto() bool {
	if !s.cfg.CryptoEnabled {
		return false
	}
	if s.cfg.Crypto24x7 {
		return true
	}
	return s.IsMarketOpen()
}

// Tradable filters symbols down to those whose market is open now
func (s *Service) Tradable(symbols []string) []string {
	stocks, crypto := s.ShouldTradeStocks(), s.ShouldTradeCrypto()
	out := make([]string, 0, len(symbols))
	for _, sym := range symbols {
		switch types.AssetType(sym) {
		case types.AssetCrypto:
			if crypto {
				out = append(out, sym)
			}
		default:
			if stocks {
				out = append(out, sym)
			}
		}
	}
	return out
}
