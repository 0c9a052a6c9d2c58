package ingest

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the ingest-side prometheus instruments on a private
// registry so tests can build services independently.
type Metrics struct {
	registry *prometheus.Registry

	reportsTotal    *prometheus.CounterVec
	invalidPayloads prometheus.Counter
	writeErrors     prometheus.Counter
	nodesSeen       prometheus.Gauge
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		reportsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ingest_reports_total",
			Help: "Total sensor reports ingested, by channel kind.",
		}, []string{"kind"}),
		invalidPayloads: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ingest_invalid_payloads_total",
			Help: "Total MQTT payloads dropped as unparseable or unknown.",
		}),
		writeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ingest_influx_write_errors_total",
			Help: "Total asynchronous InfluxDB write errors.",
		}),
		nodesSeen: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ingest_nodes_seen",
			Help: "Number of distinct nodes with at least one cached report.",
		}),
	}

	m.registry.MustRegister(
		m.reportsTotal,
		m.invalidPayloads,
		m.writeErrors,
		m.nodesSeen,
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// WriteErrorHook is passed to the Writer so async Influx failures show
// up as a counter.
func (m *Metrics) WriteErrorHook() func() {
	return func() { m.writeErrors.Inc() }
}
