package bybit

import (
	"strings"
	"sync"
	"time"

	bybit_api "github.com/bybit-exchange/bybit.go.api"

	boterrors "github.com/ducminhle1904/momentum-risk-bot/internal/errors"
	"github.com/ducminhle1904/momentum-risk-bot/internal/logger"
)

const demoURL = "https://api-demo.bybit.com"

// Config holds the configuration for the Bybit client
type Config struct {
	APIKey      string            `yaml:"-"`
	APISecret   string            `yaml:"-"`
	Testnet     bool              `yaml:"testnet"`
	Demo        bool              `yaml:"demo" default:"true"`
	Category    string            `yaml:"category" default:"linear" validate:"oneof=linear spot inverse"`
	SettleCoin  string            `yaml:"settle_coin" default:"USDT"`
	AccountType string            `yaml:"account_type" default:"UNIFIED"`
	Symbols     map[string]string `yaml:"symbols"` // bot symbol -> venue symbol
}

// Client is a Broker backed by the Bybit v5 unified trading API
type Client struct {
	api  *bybit_api.Client
	cfg  Config
	log  *logger.Logger
	now  func() time.Time
	back map[string]string

	mu        sync.Mutex
	equityDay string
	dayStart  float64
}

// NewClient creates a client for the demo, testnet or mainnet environment
func NewClient(cfg Config, log *logger.Logger) (*Client, error) {
	if cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, boterrors.NewCredentialsError("bybit", "new client", "api key and secret are required")
	}
	if cfg.Category == "" {
		cfg.Category = "linear"
	}
	if cfg.SettleCoin == "" {
		cfg.SettleCoin = "USDT"
	}
	if cfg.AccountType == "" {
		cfg.AccountType = "UNIFIED"
	}
	if log == nil {
		log = logger.Nop()
	}

	baseURL := bybit_api.MAINNET
	switch {
	case cfg.Demo:
		baseURL = demoURL
	case cfg.Testnet:
		baseURL = bybit_api.TESTNET
	}

	c := newClient(cfg, log)
	c.api = bybit_api.NewBybitHttpClient(cfg.APIKey, cfg.APISecret, bybit_api.WithBaseURL(baseURL))
	c.log.Info("bybit client ready (%s, %s)", c.Environment(), cfg.Category)
	return c, nil
}

func newClient(cfg Config, log *logger.Logger) *Client {
	back := make(map[string]string, len(cfg.Symbols))
	for local, venue := range cfg.Symbols {
		back[venue] = local
	}
	return &Client{
		cfg:  cfg,
		log:  log.With("component", "bybit"),
		now:  time.Now,
		back: back,
	}
}

func (c *Client) Name() string { return "bybit" }

// Environment returns demo, testnet or mainnet
func (c *Client) Environment() string {
	switch {
	case c.cfg.Demo:
		return "demo"
	case c.cfg.Testnet:
		return "testnet"
	default:
		return "mainnet"
	}
}

// venueSymbol maps BTCUSD onto the USDT-settled contract unless overridden.
func (c *Client) venueSymbol(symbol string) string {
	if v, ok := c.cfg.Symbols[symbol]; ok {
		return v
	}
	if strings.HasSuffix(symbol, "USD") {
		return symbol + "T"
	}
	return symbol
}

func (c *Client) localSymbol(venue string) string {
	if s, ok := c.back[venue]; ok {
		return s
	}
	if strings.HasSuffix(venue, "USDT") {
		return strings.TrimSuffix(venue, "T")
	}
	return venue
}

// sessionStartEquity remembers the first equity reading of each UTC day.
func (c *Client) sessionStartEquity(equity float64) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	day := c.now().UTC().Format("2006-01-02")
	if day != c.equityDay || c.dayStart <= 0 {
		c.equityDay = day
		c.dayStart = equity
	}
	return c.dayStart
}
