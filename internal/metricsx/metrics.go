// Package metricsx exposes the discovery run's Prometheus metrics on an
// isolated registry, in the style of pkg/p2pnet's Metrics type: one
// struct of pre-registered collectors, served by promhttp when a
// listen address is configured.
package metricsx

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the discovery engine's Prometheus collectors on an
// isolated registry, so a run's metrics never collide with the default
// global registry.
type Metrics struct {
	Registry *prometheus.Registry

	AuthoritiesTotal    prometheus.Gauge
	AuthoritiesReached  prometheus.Gauge
	DHTErrorsTotal      prometheus.Counter
	InFlightRecordQueries  prometheus.Gauge
	InFlightDiscoveryQueries prometheus.Gauge
	RuntimeAPIDuration  prometheus.Histogram
	BuildInfo           *prometheus.GaugeVec
}

// New creates a Metrics instance with all collectors registered on a
// fresh registry, recording version/goVersion as labels on the
// authdisco_info gauge.
func New(version, goVersion string) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewGoCollector())
	reg.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	m := &Metrics{
		Registry: reg,

		AuthoritiesTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "authdisco_authorities_total",
			Help: "Number of authorities returned by the runtime API for this run.",
		}),
		AuthoritiesReached: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "authdisco_authorities_reached",
			Help: "Number of authorities whose peer answered identify.",
		}),
		DHTErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "authdisco_dht_errors_total",
			Help: "Total DHT records that failed to decode or verify.",
		}),
		InFlightRecordQueries: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "authdisco_inflight_record_queries",
			Help: "Current number of in-flight GetRecord DHT queries.",
		}),
		InFlightDiscoveryQueries: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "authdisco_inflight_discovery_queries",
			Help: "Current number of in-flight GetClosestPeers discovery queries.",
		}),
		RuntimeAPIDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "authdisco_runtime_api_duration_seconds",
			Help:    "Duration of the AuthorityDiscoveryApi_authorities state_call.",
			Buckets: prometheus.DefBuckets,
		}),
		BuildInfo: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "authdisco_info",
			Help: "Build information for the running discover-authorities instance.",
		}, []string{"version", "go_version"}),
	}

	reg.MustRegister(
		m.AuthoritiesTotal,
		m.AuthoritiesReached,
		m.DHTErrorsTotal,
		m.InFlightRecordQueries,
		m.InFlightDiscoveryQueries,
		m.RuntimeAPIDuration,
		m.BuildInfo,
	)
	m.BuildInfo.WithLabelValues(version, goVersion).Set(1)

	return m
}

// Handler returns an http.Handler that serves the Prometheus metrics
// endpoint for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
