package notifications

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	boterrors "github.com/ducminhle1904/momentum-risk-bot/internal/errors"
)

const telegramAPI = "https://api.telegram.org"

// TelegramConfig holds the bot token and destination chat
type TelegramConfig struct {
	Token  string `yaml:"-"`
	ChatID string `yaml:"chat_id"`
}

// TelegramNotifier sends every event as a Markdown text message
type TelegramNotifier struct {
	token   string
	chatID  string
	baseURL string
	client  *http.Client
}

func NewTelegramNotifier(cfg TelegramConfig) *TelegramNotifier {
	return &TelegramNotifier{
		token:   cfg.Token,
		chatID:  cfg.ChatID,
		baseURL: telegramAPI,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (t *TelegramNotifier) post(ctx context.Context, text string) error {
	data := url.Values{}
	data.Set("chat_id", t.chatID)
	data.Set("text", text)
	data.Set("parse_mode", "Markdown")

	apiURL := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, strings.NewReader(data.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.client.Do(req)
	if err != nil {
		return boterrors.NewNetworkError("telegram", "sendMessage", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram API returned status %d", resp.StatusCode)
	}
	return nil
}

func (t *TelegramNotifier) SendAlert(ctx context.Context, level Level, message string) error {
	emoji := "ℹ️"
	switch level {
	case LevelWarning:
		emoji = "⚠️"
	case LevelError:
		emoji = "🚨"
	case LevelSuccess:
		emoji = "✅"
	}
	return t.post(ctx, fmt.Sprintf("%s *Momentum Bot*\n\n%s", emoji, message))
}

func (t *TelegramNotifier) Trade(ctx context.Context, e TradeEvent) error {
	var b strings.Builder
	fmt.Fprintf(&b, "*%s ORDER EXECUTED*\n%s x %g (%s)", e.Action, e.Symbol, e.Qty, strings.ToUpper(e.Type))
	if e.StopLoss > 0 {
		fmt.Fprintf(&b, "\nStop Loss: %s", money(e.StopLoss))
	}
	if e.TakeProfit > 0 {
		fmt.Fprintf(&b, "\nTake Profit: %s", money(e.TakeProfit))
	}
	if e.Strategy != "" {
		fmt.Fprintf(&b, "\nStrategy: %s", e.Strategy)
	}
	return t.post(ctx, b.String())
}

func (t *TelegramNotifier) Error(ctx context.Context, title string, err error) error {
	return t.SendAlert(ctx, LevelError, fmt.Sprintf("*%s*\n%v", title, err))
}

func (t *TelegramNotifier) DailySummary(ctx context.Context, s DailySummary) error {
	text := fmt.Sprintf("*DAILY TRADING SUMMARY*\nTrades: %d (%d W / %d L, %.2f%%)\nP/L: %s (%.2f%%)\nEquity: %s -> %s\nOpen positions: %d",
		s.TotalTrades, s.WinningTrades, s.LosingTrades, s.WinRate,
		money(s.TotalPL), s.TotalPLPercent,
		money(s.StartingEquity), money(s.EndingEquity), s.OpenPositions)
	return t.post(ctx, text)
}

func (t *TelegramNotifier) Startup(ctx context.Context, info StartupInfo) error {
	return t.SendAlert(ctx, LevelSuccess, fmt.Sprintf("Started in %s mode\nPortfolio: %s\nStrategies: %s",
		info.Mode, money(info.PortfolioValue), joinOr(info.Strategies, "None")))
}

func (t *TelegramNotifier) Shutdown(ctx context.Context, reason string) error {
	return t.SendAlert(ctx, LevelWarning, "Shutdown: "+reason)
}

func (t *TelegramNotifier) Rotation(ctx context.Context, info RotationInfo) error {
	return t.SendAlert(ctx, LevelInfo, fmt.Sprintf("Rotation: %s\nCrypto %s, Stocks %s",
		joinOr(info.ActiveAssets, "None"), info.CryptoSentiment, info.StockSentiment))
}
