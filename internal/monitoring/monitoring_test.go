package monitoring

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	before := testutil.ToFloat64(gateRejections.WithLabelValues("portfolio_heat"))
	RecordRejection("portfolio_heat")
	RecordRejection("portfolio_heat")
	assert.Equal(t, before+2, testutil.ToFloat64(gateRejections.WithLabelValues("portfolio_heat")))

	RecordTrade("AAPL", "buy", "day", 1000)
	assert.GreaterOrEqual(t, testutil.ToFloat64(tradesTotal.WithLabelValues("AAPL", "buy", "day")), 1.0)

	RecordSignal("swing", "BUY")
	RecordError("EXCHANGE")
	UpdateTrendScore("BTCUSD", 82)
	assert.Equal(t, 82.0, testutil.ToFloat64(trendScore.WithLabelValues("BTCUSD")))
}

func TestUpdateRisk(t *testing.T) {
	UpdateRisk(RiskSnapshot{Equity: 10000, PortfolioHeatPercent: 5, PositionSizeMultiplier: 0.66, EmergencyStopActive: true, ActiveLocks: 2})
	assert.Equal(t, 10000.0, testutil.ToFloat64(equity))
	assert.Equal(t, 5.0, testutil.ToFloat64(portfolioHeat))
	assert.Equal(t, 0.66, testutil.ToFloat64(sizeMultiplier))
	assert.Equal(t, 1.0, testutil.ToFloat64(emergencyStop))
	assert.Equal(t, 2.0, testutil.ToFloat64(activeLocks))

	UpdateRisk(RiskSnapshot{})
	assert.Equal(t, 0.0, testutil.ToFloat64(emergencyStop))
}

func TestHealthChecker(t *testing.T) {
	now := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)
	h := NewHealthChecker(5 * time.Minute)
	h.now = func() time.Time { return now }
	h.started = now

	tests := []struct {
		name  string
		setup func()
		want  string
		code  int
	}{
		{"disconnected", func() {}, "unhealthy", http.StatusInternalServerError},
		{"no cycle yet", func() { h.SetConnected(true) }, "degraded", http.StatusServiceUnavailable},
		{"fresh cycle", func() { h.CycleCompleted() }, "healthy", http.StatusOK},
		{"stale cycle", func() { now = now.Add(6 * time.Minute) }, "degraded", http.StatusServiceUnavailable},
		{"emergency stop", func() { h.CycleCompleted(); h.SetEmergencyStop(true) }, "degraded", http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setup()
			st, code := h.Status()
			assert.Equal(t, tt.want, st.Status)
			assert.Equal(t, tt.code, code)
		})
	}
}

func TestHealthChecker_ServeHTTP(t *testing.T) {
	now := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)
	h := NewHealthChecker(time.Minute)
	h.now = func() time.Time { return now }
	h.SetConnected(true)
	h.CycleCompleted()
	for i := 0; i < 12; i++ {
		h.RecordError(errors.New("bars timeout"))
	}
	h.RecordError(nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var st HealthStatus
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&st))
	assert.Equal(t, "healthy", st.Status)
	assert.Len(t, st.Errors, maxHealthErrors)

	now = now.Add(errorWindow + time.Second)
	h.CycleCompleted()
	st, _ = h.Status()
	assert.Empty(t, st.Errors)
}
