// Package metrics exposes the engine's Prometheus collectors: signals
// emitted, gate rejections, positions opened/closed, running NAV and
// the current regime. New wiring — the teacher lists
// prometheus/client_golang in go.mod but never imports it.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shopspring/decimal"

	"github.com/perpsignal/engine/pkg/types"
)

// Collectors groups every metric the engine publishes. Construct once
// with NewCollectors and pass the same instance to every component that
// needs to record an observation.
type Collectors struct {
	SignalsEmitted  *prometheus.CounterVec
	GatesRejected   *prometheus.CounterVec
	PositionsOpened *prometheus.CounterVec
	PositionsClosed *prometheus.CounterVec
	MessagesDropped prometheus.Counter

	NAV           prometheus.Gauge
	OpenPositions prometheus.Gauge
	Regime        *prometheus.GaugeVec
	DrawdownPct   prometheus.Gauge
}

// NewCollectors registers every collector against reg and returns them.
// Pass prometheus.NewRegistry() (or prometheus.DefaultRegisterer) for reg.
func NewCollectors(reg prometheus.Registerer) *Collectors {
	factory := promauto.With(reg)

	return &Collectors{
		SignalsEmitted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "perpsignal",
			Name:      "signals_emitted_total",
			Help:      "Signals emitted by the scorer, by symbol and mode.",
		}, []string{"symbol", "mode"}),

		GatesRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "perpsignal",
			Name:      "gate_rejections_total",
			Help:      "Rejections at each gate in the pipeline, by gate name.",
		}, []string{"gate"}),

		PositionsOpened: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "perpsignal",
			Name:      "positions_opened_total",
			Help:      "Paper positions opened, by symbol and direction.",
		}, []string{"symbol", "direction"}),

		PositionsClosed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "perpsignal",
			Name:      "positions_closed_total",
			Help:      "Paper positions closed, by symbol and result (SL/TP).",
		}, []string{"symbol", "result"}),

		MessagesDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "perpsignal",
			Name:      "notify_messages_dropped_total",
			Help:      "Outbound alert messages dropped because the queue was full.",
		}),

		NAV: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "perpsignal",
			Name:      "simulator_nav",
			Help:      "Current simulated net asset value.",
		}),

		OpenPositions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "perpsignal",
			Name:      "open_positions",
			Help:      "Number of currently open paper positions.",
		}),

		Regime: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "perpsignal",
			Name:      "regime_active",
			Help:      "1 for the currently active market regime, 0 otherwise.",
		}, []string{"regime"}),

		DrawdownPct: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "perpsignal",
			Name:      "drawdown_pct",
			Help:      "Current drawdown from peak NAV, as a fraction.",
		}),
	}
}

var allRegimes = []types.Regime{
	types.RegimeNormal, types.RegimeTrend, types.RegimeRange,
	types.RegimePanic, types.RegimeRecovery,
}

// SetRegime marks active as the sole regime with a 1 value.
func (c *Collectors) SetRegime(active types.Regime) {
	for _, r := range allRegimes {
		v := 0.0
		if r == active {
			v = 1.0
		}
		c.Regime.WithLabelValues(string(r)).Set(v)
	}
}

// RecordSignal increments the per-symbol/mode signal counter.
func (c *Collectors) RecordSignal(sig types.Signal) {
	c.SignalsEmitted.WithLabelValues(sig.Symbol, string(sig.Mode)).Inc()
}

// RecordGateRejection increments the named gate's rejection counter.
func (c *Collectors) RecordGateRejection(gate string) {
	c.GatesRejected.WithLabelValues(gate).Inc()
}

// RecordOpen increments the open-position counter and gauge.
func (c *Collectors) RecordOpen(pos types.Position) {
	c.PositionsOpened.WithLabelValues(pos.Symbol, string(pos.Direction)).Inc()
	c.OpenPositions.Inc()
}

// RecordClose increments the close counter and decrements the open gauge.
func (c *Collectors) RecordClose(res types.CloseResult) {
	c.PositionsClosed.WithLabelValues(res.Symbol, res.Result).Inc()
	c.OpenPositions.Dec()
	c.NAV.Set(toFloat(res.NAV))
}

// RecordDrawdown updates the NAV and drawdown gauges from a snapshot.
func (c *Collectors) RecordDrawdown(state types.DrawdownState) {
	c.NAV.Set(toFloat(state.NAV))
	c.DrawdownPct.Set(toFloat(state.DDPct))
}

func toFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}
