package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	boterrors "github.com/ducminhle1904/momentum-risk-bot/internal/errors"
)

// Embed colors
const (
	colorGreen  = 0x00ff00
	colorRed    = 0xff0000
	colorAmber  = 0xffaa00
	colorBlue   = 0x0099ff
	colorOrange = 0xff9900
	colorCyan   = 0x00d9ff
)

// DiscordConfig holds the webhook URLs. Events routed to an empty URL are dropped.
type DiscordConfig struct {
	TradeWebhook   string `yaml:"trade_webhook"`
	ErrorWebhook   string `yaml:"error_webhook"`
	SummaryWebhook string `yaml:"summary_webhook"`
}

func (c DiscordConfig) enabled() bool {
	return c.TradeWebhook != "" || c.ErrorWebhook != "" || c.SummaryWebhook != ""
}

type embedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

type embed struct {
	Title       string       `json:"title"`
	Description string       `json:"description,omitempty"`
	Color       int          `json:"color"`
	Fields      []embedField `json:"fields,omitempty"`
	Timestamp   string       `json:"timestamp"`
}

type webhookPayload struct {
	Embeds []embed `json:"embeds"`
}

// DiscordNotifier posts embeds to Discord webhooks
type DiscordNotifier struct {
	cfg    DiscordConfig
	client *http.Client
	now    func() time.Time
}

func NewDiscordNotifier(cfg DiscordConfig) *DiscordNotifier {
	return &DiscordNotifier{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
		now:    time.Now,
	}
}

func (d *DiscordNotifier) send(ctx context.Context, url string, e embed) error {
	if url == "" {
		return nil
	}
	e.Timestamp = d.now().UTC().Format(time.RFC3339)
	body, err := json.Marshal(webhookPayload{Embeds: []embed{e}})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return boterrors.NewNetworkError("discord", "webhook", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("discord webhook returned status %d", resp.StatusCode)
	}
	return nil
}

func money(v float64) string { return fmt.Sprintf("$%.2f", v) }

func joinOr(items []string, empty string) string {
	if len(items) == 0 {
		return empty
	}
	return strings.Join(items, ", ")
}

func (d *DiscordNotifier) SendAlert(ctx context.Context, level Level, message string) error {
	color := colorBlue
	switch level {
	case LevelWarning:
		color = colorAmber
	case LevelError:
		color = colorRed
	case LevelSuccess:
		color = colorGreen
	}
	url := d.cfg.TradeWebhook
	if level == LevelError {
		url = d.cfg.ErrorWebhook
	}
	return d.send(ctx, url, embed{Title: strings.ToUpper(string(level)), Description: message, Color: color})
}

func (d *DiscordNotifier) Trade(ctx context.Context, t TradeEvent) error {
	color := colorAmber
	switch t.Action {
	case "BUY":
		color = colorGreen
	case "SELL":
		color = colorRed
	}
	e := embed{
		Title: t.Action + " ORDER EXECUTED",
		Color: color,
		Fields: []embedField{
			{Name: "Symbol", Value: t.Symbol, Inline: true},
			{Name: "Quantity", Value: fmt.Sprintf("%g", t.Qty), Inline: true},
			{Name: "Type", Value: strings.ToUpper(t.Type), Inline: true},
		},
	}
	if t.StopLoss > 0 {
		e.Fields = append(e.Fields, embedField{Name: "Stop Loss", Value: money(t.StopLoss), Inline: true})
	}
	if t.TakeProfit > 0 {
		e.Fields = append(e.Fields, embedField{Name: "Take Profit", Value: money(t.TakeProfit), Inline: true})
	}
	if t.Strategy != "" {
		e.Fields = append(e.Fields, embedField{Name: "Strategy", Value: t.Strategy, Inline: true})
	}
	return d.send(ctx, d.cfg.TradeWebhook, e)
}

func (d *DiscordNotifier) Error(ctx context.Context, title string, err error) error {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return d.send(ctx, d.cfg.ErrorWebhook, embed{
		Title:       "ERROR: " + title,
		Description: msg,
		Color:       colorRed,
	})
}

func (d *DiscordNotifier) DailySummary(ctx context.Context, s DailySummary) error {
	color := colorGreen
	if s.TotalPL < 0 {
		color = colorRed
	}
	e := embed{
		Title: "DAILY TRADING SUMMARY",
		Color: color,
		Fields: []embedField{
			{Name: "Total Trades", Value: fmt.Sprint(s.TotalTrades), Inline: true},
			{Name: "Winning Trades", Value: fmt.Sprint(s.WinningTrades), Inline: true},
			{Name: "Losing Trades", Value: fmt.Sprint(s.LosingTrades), Inline: true},
			{Name: "Win Rate", Value: fmt.Sprintf("%.2f%%", s.WinRate), Inline: true},
			{Name: "Total P/L", Value: money(s.TotalPL), Inline: true},
			{Name: "P/L %", Value: fmt.Sprintf("%.2f%%", s.TotalPLPercent), Inline: true},
			{Name: "Starting Equity", Value: money(s.StartingEquity), Inline: true},
			{Name: "Ending Equity", Value: money(s.EndingEquity), Inline: true},
			{Name: "Open Positions", Value: fmt.Sprint(s.OpenPositions), Inline: true},
		},
	}
	if s.TopWinner != nil {
		e.Fields = append(e.Fields, embedField{Name: "Top Winner", Value: fmt.Sprintf("%s: %s", s.TopWinner.Symbol, money(s.TopWinner.PL)), Inline: true})
	}
	if s.TopLoser != nil {
		e.Fields = append(e.Fields, embedField{Name: "Top Loser", Value: fmt.Sprintf("%s: %s", s.TopLoser.Symbol, money(s.TopLoser.PL)), Inline: true})
	}
	return d.send(ctx, d.cfg.SummaryWebhook, e)
}

func (d *DiscordNotifier) Startup(ctx context.Context, info StartupInfo) error {
	return d.send(ctx, d.cfg.TradeWebhook, embed{
		Title: "TRADING BOT STARTED",
		Color: colorBlue,
		Fields: []embedField{
			{Name: "Mode", Value: info.Mode, Inline: true},
			{Name: "Portfolio Value", Value: money(info.PortfolioValue), Inline: true},
			{Name: "Buying Power", Value: money(info.BuyingPower), Inline: true},
			{Name: "Crypto Assets", Value: joinOr(info.CryptoAssets, "None")},
			{Name: "Stock Assets", Value: joinOr(info.StockAssets, "None")},
			{Name: "Active Strategies", Value: joinOr(info.Strategies, "None")},
		},
	})
}

func (d *DiscordNotifier) Shutdown(ctx context.Context, reason string) error {
	return d.send(ctx, d.cfg.TradeWebhook, embed{
		Title:       "TRADING BOT SHUTDOWN",
		Description: reason,
		Color:       colorOrange,
	})
}

func (d *DiscordNotifier) Rotation(ctx context.Context, info RotationInfo) error {
	return d.send(ctx, d.cfg.TradeWebhook, embed{
		Title: "Symbol Rotation Complete",
		Color: colorCyan,
		Fields: []embedField{
			{Name: "Active Assets", Value: joinOr(info.ActiveAssets, "None")},
			{Name: "Crypto Sentiment", Value: info.CryptoSentiment, Inline: true},
			{Name: "Stock Sentiment", Value: info.StockSentiment, Inline: true},
			{Name: "Top Crypto", Value: joinOr(info.TopCrypto, "None"), Inline: true},
			{Name: "Top Stocks", Value: joinOr(info.TopStocks, "None"), Inline: true},
		},
	})
}
