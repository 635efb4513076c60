// Package metrics registers the refresher and connection collectors:
//
//	b3pulse_refresh_cycles_total{outcome}
//	b3pulse_symbol_skips_total{reason}
//	b3pulse_refresh_cycle_seconds
//	b3pulse_snapshot_symbols
//	b3pulse_provider_connected
//
// plus go_* and process_* collectors, exposed by the HTTP server on /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
)

var Module = fx.Module("metrics",
	fx.Provide(New),
)

const (
	OutcomeOK     = "ok"
	OutcomeFailed = "failed"
)

type Metrics struct {
	registry *prometheus.Registry

	cycles        *prometheus.CounterVec
	skips         *prometheus.CounterVec
	cycleDuration prometheus.Histogram
	snapshotSize  prometheus.Gauge
	connected     prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		cycles: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "b3pulse_refresh_cycles_total",
				Help: "Number of refresh cycles by outcome",
			},
			[]string{"outcome"},
		),
		skips: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "b3pulse_symbol_skips_total",
				Help: "Symbols omitted from a snapshot, by reason",
			},
			[]string{"reason"},
		),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "b3pulse_refresh_cycle_seconds",
			Help:    "Duration of a full refresh cycle",
			Buckets: []float64{.05, .1, .25, .5, 1, 2, 5},
		}),
		snapshotSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "b3pulse_snapshot_symbols",
			Help: "Symbols in the current snapshot",
		}),
		connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "b3pulse_provider_connected",
			Help: "1 while the data provider is connected",
		}),
	}

	m.registry.MustRegister(
		m.cycles,
		m.skips,
		m.cycleDuration,
		m.snapshotSize,
		m.connected,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

func (m *Metrics) ObserveCycle(outcome string, seconds float64, symbols int) {
	m.cycles.WithLabelValues(outcome).Inc()
	if outcome == OutcomeOK {
		m.cycleDuration.Observe(seconds)
		m.snapshotSize.Set(float64(symbols))
	}
}

func (m *Metrics) IncSkip(reason string) {
	m.skips.WithLabelValues(reason).Inc()
}

func (m *Metrics) SetConnected(connected bool) {
	if connected {
		m.connected.Set(1)
		return
	}
	m.connected.Set(0)
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
