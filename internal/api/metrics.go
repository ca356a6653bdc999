package api

import (
	"github.com/atlas-desktop/papertrade/internal/engine"
	"github.com/atlas-desktop/papertrade/pkg/types"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes engine activity as Prometheus series.
type Metrics struct {
	registry *prometheus.Registry

	ordersFilled   *prometheus.CounterVec
	ordersRejected prometheus.Counter
	signals        *prometheus.CounterVec
	sessionsClosed prometheus.Counter
	equity         prometheus.Gauge
	cash           prometheus.Gauge
	cycles         prometheus.Gauge
	lossUsage      prometheus.Gauge
	riskBlocks     prometheus.Gauge
}

// NewMetrics registers all series on a private registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ordersFilled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "papertrade_orders_filled_total",
			Help: "Filled orders by side.",
		}, []string{"side"}),
		ordersRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "papertrade_orders_rejected_total",
			Help: "Orders rejected by the ledger.",
		}),
		signals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "papertrade_signals_total",
			Help: "Fused signals by type.",
		}, []string{"type"}),
		sessionsClosed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "papertrade_sessions_closed_total",
			Help: "Trading sessions closed.",
		}),
		equity: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "papertrade_equity",
			Help: "Total portfolio value at last status read.",
		}),
		cash: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "papertrade_cash",
			Help: "Uninvested cash at last status read.",
		}),
		cycles: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "papertrade_cycles",
			Help: "Trading cycles completed this session.",
		}),
		lossUsage: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "papertrade_daily_loss_usage",
			Help: "Consumed fraction of the daily loss budget.",
		}),
		riskBlocks: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "papertrade_risk_blocks",
			Help: "Orders blocked by risk rules since session start.",
		}),
	}

	m.registry.MustRegister(
		m.ordersFilled, m.ordersRejected, m.signals, m.sessionsClosed,
		m.equity, m.cash, m.cycles, m.lossUsage, m.riskBlocks,
	)
	return m
}

// Registry returns the private registry for the /metrics handler.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// ObserveOrder counts a ledger order.
func (m *Metrics) ObserveOrder(order types.Order) {
	if order.Status == types.OrderStatusRejected {
		m.ordersRejected.Inc()
		return
	}
	m.ordersFilled.WithLabelValues(string(order.Side)).Inc()
}

// ObserveSignal counts a fused signal.
func (m *Metrics) ObserveSignal(sig types.Signal) {
	m.signals.WithLabelValues(string(sig.Type)).Inc()
}

// ObserveSessionClose counts a session close.
func (m *Metrics) ObserveSessionClose(types.TradingSession) {
	m.sessionsClosed.Inc()
}

// ObserveStatus refreshes the gauges from an engine status read.
func (m *Metrics) ObserveStatus(status engine.Status) {
	m.equity.Set(status.Portfolio.TotalValue.InexactFloat64())
	m.cash.Set(status.Portfolio.Cash.InexactFloat64())
	m.cycles.Set(float64(status.Cycles))
	m.lossUsage.Set(status.Risk.LossUsage)
	m.riskBlocks.Set(float64(status.Risk.ViolationCount))
}
