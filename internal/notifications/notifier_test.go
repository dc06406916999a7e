package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	boterrors "github.com/ducminhle1904/momentum-risk-bot/internal/errors"
)

type capture struct {
	mu       sync.Mutex
	payloads []webhookPayload
	paths    []string
	forms    []url.Values
	status   int
}

func (c *capture) server(t *testing.T) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.paths = append(c.paths, r.URL.Path)
		if r.Header.Get("Content-Type") == "application/json" {
			var p webhookPayload
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&p))
			c.payloads = append(c.payloads, p)
		} else {
			assert.NoError(t, r.ParseForm())
			c.forms = append(c.forms, r.PostForm)
		}
		if c.status != 0 {
			w.WriteHeader(c.status)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newDiscord(srv *httptest.Server) *DiscordNotifier {
	d := NewDiscordNotifier(DiscordConfig{
		TradeWebhook:   srv.URL + "/trade",
		ErrorWebhook:   srv.URL + "/error",
		SummaryWebhook: srv.URL + "/summary",
	})
	d.now = func() time.Time { return time.Date(2025, 6, 2, 15, 0, 0, 0, time.UTC) }
	return d
}

func TestDiscord_TradeEmbed(t *testing.T) {
	c := &capture{}
	d := newDiscord(c.server(t))

	err := d.Trade(context.Background(), TradeEvent{
		Action: "BUY", Symbol: "AAPL", Qty: 10, Type: "bracket", StopLoss: 98, TakeProfit: 103, Strategy: "day",
	})
	require.NoError(t, err)

	require.Len(t, c.payloads, 1)
	e := c.payloads[0].Embeds[0]
	assert.Equal(t, "/trade", c.paths[0])
	assert.Equal(t, "BUY ORDER EXECUTED", e.Title)
	assert.Equal(t, colorGreen, e.Color)
	assert.Equal(t, "2025-06-02T15:00:00Z", e.Timestamp)
	require.Len(t, e.Fields, 6)
	assert.Equal(t, embedField{Name: "Type", Value: "BRACKET", Inline: true}, e.Fields[2])
	assert.Equal(t, "$98.00", e.Fields[3].Value)
	assert.Equal(t, "day", e.Fields[5].Value)
}

func TestDiscord_Routing(t *testing.T) {
	c := &capture{}
	d := newDiscord(c.server(t))
	ctx := context.Background()

	require.NoError(t, d.Error(ctx, "EMERGENCY STOP TRIGGERED", errors.New("5 consecutive losses")))
	require.NoError(t, d.DailySummary(ctx, DailySummary{TotalPL: -12.5, TopLoser: &SymbolPL{Symbol: "TSLA", PL: -20}}))
	require.NoError(t, d.Startup(ctx, StartupInfo{Mode: "paper"}))
	require.NoError(t, d.Shutdown(ctx, "signal"))
	require.NoError(t, d.Rotation(ctx, RotationInfo{ActiveAssets: []string{"BTCUSD"}}))

	assert.Equal(t, []string{"/error", "/summary", "/trade", "/trade", "/trade"}, c.paths)

	tests := []struct {
		title string
		color int
	}{
		{"ERROR: EMERGENCY STOP TRIGGERED", colorRed},
		{"DAILY TRADING SUMMARY", colorRed},
		{"TRADING BOT STARTED", colorBlue},
		{"TRADING BOT SHUTDOWN", colorOrange},
		{"Symbol Rotation Complete", colorCyan},
	}
	for i, tt := range tests {
		e := c.payloads[i].Embeds[0]
		assert.Equal(t, tt.title, e.Title)
		assert.Equal(t, tt.color, e.Color)
	}
	assert.Equal(t, "5 consecutive losses", c.payloads[0].Embeds[0].Description)
	summary := c.payloads[1].Embeds[0].Fields
	assert.Equal(t, "TSLA: $-20.00", summary[len(summary)-1].Value)
}

func TestDiscord_EmptyWebhookIsSkipped(t *testing.T) {
	d := NewDiscordNotifier(DiscordConfig{})
	assert.NoError(t, d.Trade(context.Background(), TradeEvent{Action: "BUY"}))
}

func TestDiscord_StatusError(t *testing.T) {
	c := &capture{status: http.StatusTooManyRequests}
	d := newDiscord(c.server(t))
	err := d.Shutdown(context.Background(), "bye")
	assert.ErrorContains(t, err, "429")
}

func TestTelegram_SendAlert(t *testing.T) {
	c := &capture{}
	srv := c.server(t)
	n := NewTelegramNotifier(TelegramConfig{Token: "TOKEN", ChatID: "42"})
	n.baseURL = srv.URL

	require.NoError(t, n.SendAlert(context.Background(), LevelWarning, "heat above 12%"))
	require.Len(t, c.forms, 1)
	assert.Equal(t, "/botTOKEN/sendMessage", c.paths[0])
	assert.Equal(t, "42", c.forms[0].Get("chat_id"))
	assert.Equal(t, "Markdown", c.forms[0].Get("parse_mode"))
	assert.Contains(t, c.forms[0].Get("text"), "heat above 12%")

	require.NoError(t, n.Trade(context.Background(), TradeEvent{Action: "SELL", Symbol: "ETHUSD", Qty: 2, Type: "market"}))
	assert.Contains(t, c.forms[1].Get("text"), "SELL ORDER EXECUTED")
}

func TestUnreachableEndpointIsNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	tg := NewTelegramNotifier(TelegramConfig{Token: "TOKEN", ChatID: "42"})
	tg.baseURL = srv.URL

	tests := []struct {
		name string
		send func() error
	}{
		{"telegram", func() error { return tg.SendAlert(context.Background(), LevelError, "down") }},
		{"discord", func() error { return newDiscord(srv).SendAlert(context.Background(), LevelError, "down") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.send()
			require.Error(t, err)
			assert.Equal(t, boterrors.ErrorCategoryNetwork, boterrors.CategoryOf(err))
			assert.True(t, boterrors.IsRetryable(err))
		})
	}
}

type failing struct{ Nop }

func (failing) Shutdown(context.Context, string) error { return errors.New("down") }

func TestMulti(t *testing.T) {
	c := &capture{}
	d := newDiscord(c.server(t))
	m := Multi{d, failing{}, Nop{}}

	err := m.Shutdown(context.Background(), "bye")
	assert.ErrorContains(t, err, "down")
	assert.Len(t, c.payloads, 1)

	assert.NoError(t, m.Startup(context.Background(), StartupInfo{}))
}

func TestNew(t *testing.T) {
	assert.IsType(t, Nop{}, New(Config{}))
	assert.IsType(t, &DiscordNotifier{}, New(Config{Discord: DiscordConfig{TradeWebhook: "http://x"}}))
	assert.IsType(t, Multi{}, New(Config{
		Discord:  DiscordConfig{ErrorWebhook: "http://x"},
		Telegram: TelegramConfig{Token: "t", ChatID: "1"},
	}))
}
