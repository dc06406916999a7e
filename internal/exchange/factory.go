package exchange

import (
	"fmt"
	"strings"

	boterrors "github.com/ducminhle1904/momentum-risk-bot/internal/errors"
	"github.com/ducminhle1904/momentum-risk-bot/internal/exchange/bybit"
	"github.com/ducminhle1904/momentum-risk-bot/internal/logger"
)

// Config selects and tunes the broker.
type Config struct {
	Provider    string       `yaml:"provider" default:"paper" validate:"oneof=paper bybit"`
	PaperEquity float64      `yaml:"paper_equity" default:"100000" validate:"gt=0"`
	Bybit       bybit.Config `yaml:"bybit"`
	Guard       GuardConfig  `yaml:"guard"`
}

// SupportedProviders lists the broker names accepted by New.
func SupportedProviders() []string {
	return []string{"paper", "bybit"}
}

// New builds the configured broker wrapped in a Guarded. With dryRun the
// orders go to a paper account; market data still comes from Bybit when
// credentials are present.
func New(cfg Config, dryRun bool, cache BarCache, log *logger.Logger) (*Guarded, *PaperBroker, error) {
	name := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if dryRun {
		name = "paper"
	}

	switch name {
	case "paper":
		paper := NewPaperBroker(cfg.PaperEquity)
		if cfg.Bybit.APIKey != "" && cfg.Bybit.APISecret != "" {
			feed, err := bybit.NewClient(cfg.Bybit, log)
			if err != nil {
				return nil, nil, err
			}
			paper.UseFeed(feed)
		}
		return NewGuarded(paper, cfg.Guard, cache, log), paper, nil
	case "bybit":
		client, err := bybit.NewClient(cfg.Bybit, log)
		if err != nil {
			return nil, nil, err
		}
		return NewGuarded(client, cfg.Guard, cache, log), nil, nil
	default:
		return nil, nil, boterrors.NewConfigurationError("exchange", "new broker",
			fmt.Sprintf("provider %q is not supported (supported: %s)", cfg.Provider, strings.Join(SupportedProviders(), ", ")))
	}
}
