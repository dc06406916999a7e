package monitoring

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Trading metrics
	tradesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "momentum_bot_trades_total",
			Help: "Total number of orders submitted",
		},
		[]string{"symbol", "side", "strategy"},
	)

	tradeNotional = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "momentum_bot_trade_notional",
			Help:    "Distribution of order notional values",
			Buckets: prometheus.ExponentialBuckets(50, 2, 10),
		},
		[]string{"strategy"},
	)

	// Signal metrics
	signalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "momentum_bot_signals_total",
			Help: "Signals produced by strategy and direction",
		},
		[]string{"strategy", "direction"},
	)

	gateRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "momentum_bot_gate_rejections_total",
			Help: "Entries rejected by the gating chain",
		},
		[]string{"gate"},
	)

	trendScore = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "momentum_bot_trend_score",
			Help: "Latest trend score per symbol",
		},
		[]string{"symbol"},
	)

	// Risk metrics
	portfolioHeat = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "momentum_bot_portfolio_heat_percent",
		Help: "Capital at risk across open positions",
	})

	equity = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "momentum_bot_equity",
		Help: "Account equity",
	})

	sizeMultiplier = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "momentum_bot_position_size_multiplier",
		Help: "Drawdown position size multiplier",
	})

	emergencyStop = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "momentum_bot_emergency_stop",
		Help: "1 while the emergency stop blocks entries",
	})

	activeLocks = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "momentum_bot_active_locks",
		Help: "Symbol locks currently held",
	})

	// Error metrics
	errorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "momentum_bot_errors_total",
			Help: "Total number of errors",
		},
		[]string{"type"},
	)
)

func init() {
	prometheus.MustRegister(
		tradesTotal,
		tradeNotional,
		signalsTotal,
		gateRejections,
		trendScore,
		portfolioHeat,
		equity,
		sizeMultiplier,
		emergencyStop,
		activeLocks,
		errorsTotal,
	)
}

// MetricsHandler serves the default registry
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// RecordTrade counts a submitted order
func RecordTrade(symbol, side, strategy string, notional float64) {
	tradesTotal.WithLabelValues(symbol, side, strategy).Inc()
	tradeNotional.WithLabelValues(strategy).Observe(notional)
}

// RecordSignal counts a classified signal
func RecordSignal(strategy, direction string) {
	signalsTotal.WithLabelValues(strategy, direction).Inc()
}

// RecordRejection counts an entry blocked by gate
func RecordRejection(gate string) {
	gateRejections.WithLabelValues(gate).Inc()
}

// RecordError records an error metric
func RecordError(errorType string) {
	errorsTotal.WithLabelValues(errorType).Inc()
}

// UpdateTrendScore sets the latest trend score for symbol
func UpdateTrendScore(symbol string, score float64) {
	trendScore.WithLabelValues(symbol).Set(score)
}

// RiskSnapshot is the subset of risk state exported as gauges
type RiskSnapshot struct {
	Equity                 float64
	PortfolioHeatPercent   float64
	PositionSizeMultiplier float64
	EmergencyStopActive    bool
	ActiveLocks            int
}

// UpdateRisk refreshes the risk gauges
func UpdateRisk(s RiskSnapshot) {
	equity.Set(s.Equity)
	portfolioHeat.Set(s.PortfolioHeatPercent)
	sizeMultiplier.Set(s.PositionSizeMultiplier)
	activeLocks.Set(float64(s.ActiveLocks))
	if s.EmergencyStopActive {
		emergencyStop.Set(1)
	} else {
		emergencyStop.Set(0)
	}
}
