// Package monitoring exposes the bot's operational metrics over
// prometheus: signal/trade/block counters and portfolio gauges.
package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"example.com/deltabot/models"
)

var riskLevelValues = map[models.RiskLevel]float64{
	models.RiskLow:      0,
	models.RiskMedium:   1,
	models.RiskHigh:     2,
	models.RiskCritical: 3,
}

// Metrics bundles every collector the bot updates.
type Metrics struct {
	registry *prometheus.Registry

	signalsTotal  *prometheus.CounterVec
	tradesTotal   *prometheus.CounterVec
	blockedTotal  *prometheus.CounterVec
	tickErrors    prometheus.Counter
	iterations    prometheus.Counter
	signalStrength *prometheus.GaugeVec

	portfolioValue prometheus.Gauge
	dailyPnL       prometheus.Gauge
	drawdownPct    prometheus.Gauge
	riskLevel      prometheus.Gauge
	openPositions  prometheus.Gauge
}

// New builds the collector set on its own registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		signalsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bot_signals_total",
			Help: "Trading signals generated, by strategy and type.",
		}, []string{"strategy", "signal_type"}),
		tradesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bot_trades_total",
			Help: "Orders placed, by side.",
		}, []string{"side"}),
		blockedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bot_trades_blocked_total",
			Help: "Trades rejected by the risk gate, by check.",
		}, []string{"check"}),
		tickErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bot_tick_errors_total",
			Help: "Tick iterations that degraded to no-action.",
		}),
		iterations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bot_iterations_total",
			Help: "Completed scheduler ticks.",
		}),
		signalStrength: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "bot_last_signal_strength",
			Help: "Strength of the most recent signal per strategy.",
		}, []string{"strategy"}),
		portfolioValue: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bot_portfolio_value",
			Help: "Current account balance.",
		}),
		dailyPnL: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bot_daily_pnl",
			Help: "Profit and loss since day start.",
		}),
		drawdownPct: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bot_drawdown_percent",
			Help: "Current drawdown from peak balance.",
		}),
		riskLevel: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bot_risk_level",
			Help: "Portfolio risk level: 0 low, 1 medium, 2 high, 3 critical.",
		}),
		openPositions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bot_open_positions",
			Help: "Number of open positions.",
		}),
	}

	reg.MustRegister(
		m.signalsTotal, m.tradesTotal, m.blockedTotal,
		m.tickErrors, m.iterations, m.signalStrength,
		m.portfolioValue, m.dailyPnL, m.drawdownPct, m.riskLevel, m.openPositions,
	)
	return m
}

// RecordSignal counts a generated signal and stores its strength.
func (m *Metrics) RecordSignal(strategy string, sig models.TradingSignal) {
	m.signalsTotal.WithLabelValues(strategy, string(sig.Type)).Inc()
	m.signalStrength.WithLabelValues(strategy).Set(sig.Strength)
}

// RecordTrade counts an executed order.
func (m *Metrics) RecordTrade(side models.SignalType) {
	m.tradesTotal.WithLabelValues(string(side)).Inc()
}

// RecordBlock counts a risk-gate rejection under a coarse check label so
// label cardinality stays bounded.
func (m *Metrics) RecordBlock(check string) {
	m.blockedTotal.WithLabelValues(check).Inc()
}

// RecordTickError counts a degraded tick.
func (m *Metrics) RecordTickError() { m.tickErrors.Inc() }

// RecordIteration counts a completed tick.
func (m *Metrics) RecordIteration() { m.iterations.Inc() }

// UpdatePortfolio refreshes the portfolio gauges from a risk snapshot.
func (m *Metrics) UpdatePortfolio(balance float64, rm models.RiskMetrics, positions int) {
	m.portfolioValue.Set(balance)
	m.dailyPnL.Set(rm.DailyPnL)
	m.drawdownPct.Set(rm.MaxDrawdown)
	m.riskLevel.Set(riskLevelValues[rm.RiskLevel])
	m.openPositions.Set(float64(positions))
}

// Serve exposes /metrics on addr. Blocks; run in a goroutine.
func (m *Metrics) Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	log.Info().Str("addr", addr).Msg("metrics endpoint listening")
	return srv.ListenAndServe()
}
