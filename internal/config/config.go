package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/ducminhle1904/momentum-risk-bot/internal/backtest"
	"github.com/ducminhle1904/momentum-risk-bot/internal/correlation"
	boterrors "github.com/ducminhle1904/momentum-risk-bot/internal/errors"
	"github.com/ducminhle1904/momentum-risk-bot/internal/exchange"
	"github.com/ducminhle1904/momentum-risk-bot/internal/logger"
	"github.com/ducminhle1904/momentum-risk-bot/internal/notifications"
	"github.com/ducminhle1904/momentum-risk-bot/internal/orchestrator"
	"github.com/ducminhle1904/momentum-risk-bot/internal/risk"
	"github.com/ducminhle1904/momentum-risk-bot/internal/session"
	"github.com/ducminhle1904/momentum-risk-bot/internal/strategy"
)

// Config is the full bot configuration. Secrets never come from the YAML
// file; they are read from the environment.
type Config struct {
	Environment   string                `yaml:"environment" default:"development"`
	Trading       risk.Config           `yaml:"trading"`
	Assets        orchestrator.Universe `yaml:"assets"`
	Correlation   CorrelationConfig     `yaml:"correlation"`
	Strategies    strategy.Config       `yaml:"strategies"`
	Schedule      orchestrator.Config   `yaml:"schedule"`
	Session       session.Config        `yaml:"session"`
	Broker        exchange.Config       `yaml:"broker"`
	Cache         CacheConfig           `yaml:"cache"`
	History       HistoryConfig         `yaml:"history"`
	Notifications notifications.Config  `yaml:"notifications"`
	Monitoring    MonitoringConfig      `yaml:"monitoring"`
	Backtest      backtest.Config       `yaml:"backtest"`
	Log           logger.Config         `yaml:"log"`
}

// CorrelationConfig lists the symbol groups that may not pile up
type CorrelationConfig struct {
	Groups      map[string][]string `yaml:"groups"`
	MaxPerGroup int                 `yaml:"max_per_group" default:"2" validate:"gte=1"`
}

// CacheConfig selects where bars are cached between analysis passes
type CacheConfig struct {
	Backend string               `yaml:"backend" default:"memory" validate:"oneof=none memory redis"`
	Redis   exchange.RedisConfig `yaml:"redis"`
}

type HistoryConfig struct {
	Path string `yaml:"path" default:"data/trading_history.db"`
}

// MonitoringConfig serves /metrics and /health when Addr is set
type MonitoringConfig struct {
	Addr       string        `yaml:"addr"`
	StaleAfter time.Duration `yaml:"stale_after" default:"5m"`
}

var validate = validator.New()

// Default returns the configuration used when no file is given
func Default() *Config {
	cfg := &Config{
		Trading:    risk.DefaultConfig(),
		Strategies: strategy.DefaultConfig(),
		Schedule:   orchestrator.DefaultConfig(),
		Backtest:   backtest.DefaultConfig(),
	}
	// defaults only fills zero values, so the explicit defaults above win
	if err := defaults.Set(cfg); err != nil {
		panic(fmt.Sprintf("config defaults: %v", err))
	}
	return cfg
}

// Load reads path (optional) over the defaults, applies environment
// overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, boterrors.WrapError(err, boterrors.ErrorCategoryConfiguration, "config", "Load")
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, boterrors.WrapError(fmt.Errorf("parse %s: %w", path, err), boterrors.ErrorCategoryConfiguration, "config", "Load")
		}
	}

	cfg.applyEnv()
	cfg.fillEmpty()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadEnvFile loads a .env file into the process environment. A missing
// file is not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return boterrors.WrapError(err, boterrors.ErrorCategoryConfiguration, "config", "LoadEnvFile")
	}
	return nil
}

// Validate checks struct tags and the cross-field rules
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return boterrors.NewConfigurationError("config", "Validate", describe(err))
	}
	if len(c.Assets.All()) == 0 {
		return boterrors.NewConfigurationError("config", "Validate", "assets: at least one symbol is required")
	}
	if c.Broker.Provider == "bybit" && (c.Broker.Bybit.APIKey == "" || c.Broker.Bybit.APISecret == "") {
		return boterrors.NewCredentialsError("config", "Validate", "BYBIT_API_KEY and BYBIT_API_SECRET are required for the bybit broker")
	}
	if c.Trading.BaseStopLossPercent > c.Trading.MaxStopLossPercent {
		return boterrors.NewConfigurationError("config", "Validate", "trading.base_stop_loss_percent exceeds max_stop_loss_percent")
	}
	if c.Trading.BaseTakeProfitPercent > c.Trading.MaxTakeProfitPercent {
		return boterrors.NewConfigurationError("config", "Validate", "trading.base_take_profit_percent exceeds max_take_profit_percent")
	}
	return nil
}

func describe(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s must satisfy %s=%s", fe.Namespace(), fe.Tag(), fe.Param()))
		} else {
			parts = append(parts, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
		}
	}
	return strings.Join(parts, "; ")
}

func (c *Config) applyEnv() {
	c.Environment = getEnv("ENV", c.Environment)
	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)

	c.Broker.Provider = getEnv("BROKER_PROVIDER", c.Broker.Provider)
	c.Broker.Bybit.APIKey = getEnv("BYBIT_API_KEY", c.Broker.Bybit.APIKey)
	c.Broker.Bybit.APISecret = getEnv("BYBIT_API_SECRET", c.Broker.Bybit.APISecret)
	c.Broker.Bybit.Testnet = getEnvBool("BYBIT_TESTNET", c.Broker.Bybit.Testnet)
	c.Broker.Bybit.Demo = getEnvBool("BYBIT_DEMO", c.Broker.Bybit.Demo)

	d := &c.Notifications.Discord
	d.TradeWebhook = getEnv("DISCORD_TRADE_WEBHOOK", d.TradeWebhook)
	d.ErrorWebhook = getEnv("DISCORD_ERROR_WEBHOOK", d.ErrorWebhook)
	d.SummaryWebhook = getEnv("DISCORD_SUMMARY_WEBHOOK", d.SummaryWebhook)
	c.Notifications.Telegram.Token = getEnv("TELEGRAM_BOT_TOKEN", c.Notifications.Telegram.Token)
	c.Notifications.Telegram.ChatID = getEnv("TELEGRAM_CHAT_ID", c.Notifications.Telegram.ChatID)

	c.Cache.Redis.Addr = getEnv("REDIS_ADDR", c.Cache.Redis.Addr)
	c.Cache.Redis.Password = getEnv("REDIS_PASSWORD", c.Cache.Redis.Password)
	c.History.Path = getEnv("HISTORY_PATH", c.History.Path)
	c.Monitoring.Addr = getEnv("METRICS_ADDR", c.Monitoring.Addr)
	c.Schedule.AnalysisInterval = getEnvDuration("ANALYSIS_INTERVAL", c.Schedule.AnalysisInterval)
}

func (c *Config) fillEmpty() {
	if len(c.Assets.Crypto) == 0 && len(c.Assets.Stocks) == 0 {
		c.Assets = orchestrator.DefaultUniverse()
	}
	if len(c.Correlation.Groups) == 0 {
		c.Correlation.Groups = correlation.DefaultGroups()
	}
}

// Mode is the label used in startup notifications
func (c *Config) Mode(dryRun bool) string {
	if dryRun || c.Broker.Provider == "paper" {
		return "PAPER TRADING"
	}
	if c.Broker.Bybit.Demo || c.Broker.Bybit.Testnet {
		return "DEMO TRADING"
	}
	return "LIVE TRADING"
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
